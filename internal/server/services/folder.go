package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/karenhirayama/filevault/internal/common"
	"github.com/karenhirayama/filevault/internal/dbx"
	"github.com/karenhirayama/filevault/internal/server/models"
	"github.com/karenhirayama/filevault/internal/server/repositories/repomanager"
)

// FolderService manages the per-user folder hierarchy. All operations are
// scoped to the calling user; a folder id belonging to another tenant is
// indistinguishable from a missing one.
type FolderService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
}

// NewFolderService constructs a FolderService.
func NewFolderService(db *sql.DB, m repomanager.RepositoryManager) *FolderService {
	return &FolderService{db: db, repomanager: m}
}

// Create adds a folder for userID. When parentID is set it must reference a
// folder owned by the same user, otherwise common.ErrNotFound.
func (s *FolderService) Create(ctx context.Context, userID, name string, description, parentID *string) (*models.FolderSummary, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: folder name is required", common.ErrValidation)
	}

	repo := s.repomanager.Folders(s.db)

	if parentID != nil {
		if _, err := repo.GetByID(ctx, userID, *parentID); err != nil {
			if errors.Is(err, common.ErrNotFound) {
				return nil, fmt.Errorf("parent folder: %w", common.ErrNotFound)
			}
			return nil, fmt.Errorf("error resolving parent folder: %w", err)
		}
	}

	folder, err := repo.Create(ctx, &models.Folder{
		Name:        name,
		Description: description,
		UserID:      userID,
		ParentID:    parentID,
	})
	if err != nil {
		return nil, fmt.Errorf("error creating folder: %w", err)
	}

	// A new folder has no children yet.
	return &models.FolderSummary{Folder: *folder}, nil
}

// Update renames a folder and replaces its description.
func (s *FolderService) Update(ctx context.Context, userID, folderID, name string, description *string) (*models.FolderSummary, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: folder name is required", common.ErrValidation)
	}

	repo := s.repomanager.Folders(s.db)

	folder, err := repo.Update(ctx, &models.Folder{
		ID:          folderID,
		Name:        name,
		Description: description,
		UserID:      userID,
	})
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("error updating folder: %w", err)
	}

	counts, err := repo.CountChildren(ctx, folderID)
	if err != nil {
		return nil, fmt.Errorf("error counting folder children: %w", err)
	}

	return &models.FolderSummary{Folder: *folder, Counts: *counts}, nil
}

// Delete removes an empty folder. A folder with at least one direct file or
// subfolder yields common.ErrConflict; counts are computed at call time
// inside the same transaction as the delete.
func (s *FolderService) Delete(ctx context.Context, userID, folderID string) error {
	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.Folders(tx)

		if _, err := repo.GetByID(ctx, userID, folderID); err != nil {
			if errors.Is(err, common.ErrNotFound) {
				return err
			}
			return fmt.Errorf("error resolving folder: %w", err)
		}

		counts, err := repo.CountChildren(ctx, folderID)
		if err != nil {
			return fmt.Errorf("error counting folder children: %w", err)
		}
		if counts.Files > 0 || counts.Folders > 0 {
			return fmt.Errorf("%w: cannot delete folder that contains files or subfolders", common.ErrConflict)
		}

		if err := repo.Delete(ctx, userID, folderID); err != nil {
			if errors.Is(err, common.ErrNotFound) {
				return err
			}
			return fmt.Errorf("error deleting folder: %w", err)
		}
		return nil
	})
}

// Get returns a folder with its direct files (newest first) and its direct
// subfolders annotated with child counts.
func (s *FolderService) Get(ctx context.Context, userID, folderID string) (*models.FolderDetail, error) {
	folderRepo := s.repomanager.Folders(s.db)
	fileRepo := s.repomanager.Files(s.db)

	folder, err := folderRepo.GetByID(ctx, userID, folderID)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("error resolving folder: %w", err)
	}

	files, err := fileRepo.ListByFolder(ctx, userID, folderID)
	if err != nil {
		return nil, fmt.Errorf("error listing folder files: %w", err)
	}

	children, err := folderRepo.ListChildren(ctx, userID, folderID)
	if err != nil {
		return nil, fmt.Errorf("error listing subfolders: %w", err)
	}

	return &models.FolderDetail{Folder: *folder, Files: files, Children: children}, nil
}

// List returns all folders owned by userID, newest first, annotated with
// direct child counts.
func (s *FolderService) List(ctx context.Context, userID string) ([]*models.FolderSummary, error) {
	result, err := s.repomanager.Folders(s.db).ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("error listing folders: %w", err)
	}
	return result, nil
}
