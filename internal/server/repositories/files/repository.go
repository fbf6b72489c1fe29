package files

import (
	"context"

	"github.com/karenhirayama/filevault/internal/server/models"
)

// ListFilter narrows a tenant-scoped file listing. Zero-valued fields are
// ignored; FolderID restricts to direct children of that folder, Search
// matches stored or original name case-insensitively, MimeTypePrefix
// restricts to MIME types starting with the prefix.
type ListFilter struct {
	UserID         string
	FolderID       *string
	Search         string
	MimeTypePrefix string
	Offset         int
	Limit          int
}

type Repository interface {
	Create(ctx context.Context, file *models.File) (*models.File, error)
	GetByID(ctx context.Context, userID, id string) (*models.File, error)
	Delete(ctx context.Context, userID, id string) error
	List(ctx context.Context, filter ListFilter) ([]*models.File, error)
	Count(ctx context.Context, filter ListFilter) (int64, error)
	ListByFolder(ctx context.Context, userID, folderID string) ([]*models.File, error)
}
