package folders

import (
	"context"

	"github.com/karenhirayama/filevault/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, folder *models.Folder) (*models.Folder, error)
	Update(ctx context.Context, folder *models.Folder) (*models.Folder, error)
	Delete(ctx context.Context, userID, id string) error
	GetByID(ctx context.Context, userID, id string) (*models.Folder, error)
	ListByUser(ctx context.Context, userID string) ([]*models.FolderSummary, error)
	ListChildren(ctx context.Context, userID, parentID string) ([]*models.FolderSummary, error)
	CountChildren(ctx context.Context, id string) (*models.FolderCounts, error)
}
