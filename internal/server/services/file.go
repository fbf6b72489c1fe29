package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/karenhirayama/filevault/internal/common"
	"github.com/karenhirayama/filevault/internal/logging"
	"github.com/karenhirayama/filevault/internal/server/blobstore"
	"github.com/karenhirayama/filevault/internal/server/models"
	"github.com/karenhirayama/filevault/internal/server/repositories/files"
	"github.com/karenhirayama/filevault/internal/server/repositories/repomanager"
	"github.com/karenhirayama/filevault/internal/server/staging"
)

// DefaultPageSize is the file listing page size when the caller does not
// provide one.
const DefaultPageSize = 50

// FileService implements the upload pipeline, the delete pipeline, and the
// tenant-scoped listing/search over file metadata.
type FileService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	blob        blobstore.Client
	logger      logging.Logger
}

// NewFileService constructs a FileService.
func NewFileService(db *sql.DB, m repomanager.RepositoryManager, blob blobstore.Client, logger logging.Logger) *FileService {
	return &FileService{db: db, repomanager: m, blob: blob, logger: logger}
}

// Upload runs the upload pipeline for a staged artifact: resolve the target
// folder (tenant-scoped), push the bytes to the blob store, then persist the
// metadata row. The staged artifact is discarded on every path out of this
// function; a remote failure leaves no metadata row behind.
func (s *FileService) Upload(ctx context.Context, userID string, folderID *string, art *staging.Artifact, originalName string) (*models.File, error) {
	defer art.Discard(ctx)

	if folderID != nil {
		if _, err := s.repomanager.Folders(s.db).GetByID(ctx, userID, *folderID); err != nil {
			if errors.Is(err, common.ErrNotFound) {
				return nil, fmt.Errorf("target folder: %w", common.ErrNotFound)
			}
			return nil, fmt.Errorf("error resolving target folder: %w", err)
		}
	}

	class := blobstore.ClassificationFor(art.MimeType)

	res, err := s.blob.Put(ctx, art.Path, art.MimeType, class)
	if err != nil {
		return nil, err
	}

	file, err := s.repomanager.Files(s.db).Create(ctx, &models.File{
		Name:         art.Name,
		OriginalName: originalName,
		Size:         art.Size,
		MimeType:     art.MimeType,
		URL:          res.Locator,
		PublicID:     &res.RemoteID,
		UserID:       userID,
		FolderID:     folderID,
	})
	if err != nil {
		// The pushed object is orphaned now; record it so it can be reaped.
		s.logger.Warn(ctx, "metadata commit failed after remote push, object orphaned",
			"remote_id", res.RemoteID, "error", err)
		return nil, fmt.Errorf("error creating file record: %w", err)
	}

	s.logger.Info(ctx, "file uploaded",
		"file_id", file.ID, "user_id", userID, "size", file.Size, "classification", string(class))

	return file, nil
}

// Delete runs the delete pipeline: resolve ownership, attempt the remote
// delete (failures are logged and swallowed so a blob-store outage cannot
// block the catalog), then remove the metadata row unconditionally.
func (s *FileService) Delete(ctx context.Context, userID, fileID string) error {
	repo := s.repomanager.Files(s.db)

	file, err := repo.GetByID(ctx, userID, fileID)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return err
		}
		return fmt.Errorf("error resolving file: %w", err)
	}

	class := blobstore.ClassificationFor(file.MimeType)

	if file.PublicID != nil {
		if err := s.blob.Delete(ctx, *file.PublicID, class); err != nil {
			s.logger.Warn(ctx, "remote delete failed, proceeding with metadata delete",
				"file_id", fileID, "remote_id", *file.PublicID, "classification", string(class), "error", err)
		}
	} else {
		s.logger.Warn(ctx, "file has no remote id, skipping remote delete", "file_id", fileID)
	}

	if err := repo.Delete(ctx, userID, fileID); err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return err
		}
		return fmt.Errorf("error deleting file record: %w", err)
	}

	s.logger.Info(ctx, "file deleted", "file_id", fileID, "user_id", userID)
	return nil
}

// Get returns a single file, strictly scoped to userID.
func (s *FileService) Get(ctx context.Context, userID, fileID string) (*models.File, error) {
	file, err := s.repomanager.Files(s.db).GetByID(ctx, userID, fileID)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("error getting file: %w", err)
	}
	return file, nil
}

// ListFilters narrows a file listing request.
type ListFilters struct {
	FolderID       *string
	Page           int
	Limit          int
	Search         string
	MimeTypePrefix string
}

// FilePage is one page of a file listing with offset-pagination metadata.
type FilePage struct {
	Files      []*models.File `json:"files"`
	Total      int64          `json:"total"`
	Page       int            `json:"page"`
	Limit      int            `json:"limit"`
	TotalPages int            `json:"totalPages"`
	HasNext    bool           `json:"hasNext"`
	HasPrev    bool           `json:"hasPrev"`
}

// List returns one page of the user's files, newest first, applying the
// folder, name-search, and MIME-prefix filters.
func (s *FileService) List(ctx context.Context, userID string, f ListFilters) (*FilePage, error) {
	page := f.Page
	if page < 1 {
		page = 1
	}
	limit := f.Limit
	if limit < 1 {
		limit = DefaultPageSize
	}

	repo := s.repomanager.Files(s.db)

	filter := files.ListFilter{
		UserID:         userID,
		FolderID:       f.FolderID,
		Search:         f.Search,
		MimeTypePrefix: f.MimeTypePrefix,
		Offset:         (page - 1) * limit,
		Limit:          limit,
	}

	total, err := repo.Count(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("error counting files: %w", err)
	}

	items, err := repo.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("error listing files: %w", err)
	}

	totalPages := int((total + int64(limit) - 1) / int64(limit))

	return &FilePage{
		Files:      items,
		Total:      total,
		Page:       page,
		Limit:      limit,
		TotalPages: totalPages,
		HasNext:    page < totalPages,
		HasPrev:    page > 1 && total > 0,
	}, nil
}
