package folders

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/karenhirayama/filevault/internal/common"
	"github.com/karenhirayama/filevault/internal/dbx"
	"github.com/karenhirayama/filevault/internal/server/models"
)

// summaryColumns selects a folder row together with its direct child counts.
const summaryColumns = `
	f.id, f.name, f.description, f.user_id, f.parent_id, f.created_at,
	(SELECT count(*) FROM files x WHERE x.folder_id = f.id) AS file_count,
	(SELECT count(*) FROM folders c WHERE c.parent_id = f.id) AS folder_count`

// PostgresRepository implements folder storage over a dbx.DBTX (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, folder *models.Folder) (*models.Folder, error) {
	query := `
		INSERT INTO folders (name, description, user_id, parent_id)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
	`
	err := r.db.QueryRowContext(ctx, query,
		folder.Name, folder.Description, folder.UserID, folder.ParentID).
		Scan(&folder.ID, &folder.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return folder, nil
}

// Update renames a folder and replaces its description. The statement is
// scoped by user_id, so a foreign folder id affects zero rows (ErrNotFound).
func (r *PostgresRepository) Update(ctx context.Context, folder *models.Folder) (*models.Folder, error) {
	query := `
		UPDATE folders SET name = $1, description = $2
		WHERE id = $3 AND user_id = $4
		RETURNING created_at
	`
	err := r.db.QueryRowContext(ctx, query,
		folder.Name, folder.Description, folder.ID, folder.UserID).
		Scan(&folder.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return folder, nil
}

func (r *PostgresRepository) Delete(ctx context.Context, userID, id string) error {
	query := `DELETE FROM folders WHERE id = $1 AND user_id = $2`
	res, err := r.db.ExecContext(ctx, query, id, userID)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	if n == 0 {
		return common.ErrNotFound
	}
	return nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, userID, id string) (*models.Folder, error) {
	query := `
		SELECT id, name, description, user_id, parent_id, created_at FROM folders
		WHERE id = $1 AND user_id = $2
	`
	folder := &models.Folder{}
	err := r.db.QueryRowContext(ctx, query, id, userID).
		Scan(&folder.ID, &folder.Name, &folder.Description, &folder.UserID, &folder.ParentID, &folder.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return folder, nil
}

// ListByUser returns all folders owned by userID, newest first, each
// annotated with direct file and subfolder counts.
func (r *PostgresRepository) ListByUser(ctx context.Context, userID string) ([]*models.FolderSummary, error) {
	query := `
		SELECT ` + summaryColumns + `
		FROM folders f
		WHERE f.user_id = $1
		ORDER BY f.created_at DESC
	`
	return r.querySummaries(ctx, query, userID)
}

// ListChildren returns the direct subfolders of parentID, newest first,
// each annotated with counts.
func (r *PostgresRepository) ListChildren(ctx context.Context, userID, parentID string) ([]*models.FolderSummary, error) {
	query := `
		SELECT ` + summaryColumns + `
		FROM folders f
		WHERE f.user_id = $1 AND f.parent_id = $2
		ORDER BY f.created_at DESC
	`
	return r.querySummaries(ctx, query, userID, parentID)
}

func (r *PostgresRepository) querySummaries(ctx context.Context, query string, args ...any) ([]*models.FolderSummary, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to select folders: %w", err)
	}
	defer rows.Close()

	result := []*models.FolderSummary{}
	for rows.Next() {
		var item models.FolderSummary
		if err := rows.Scan(&item.ID, &item.Name, &item.Description, &item.UserID, &item.ParentID,
			&item.CreatedAt, &item.Counts.Files, &item.Counts.Folders); err != nil {
			return nil, err
		}
		result = append(result, &item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// CountChildren returns the direct file and subfolder counts for a folder,
// computed at call time.
func (r *PostgresRepository) CountChildren(ctx context.Context, id string) (*models.FolderCounts, error) {
	query := `
		SELECT
			(SELECT count(*) FROM files WHERE folder_id = $1),
			(SELECT count(*) FROM folders WHERE parent_id = $1)
	`
	counts := &models.FolderCounts{}
	if err := r.db.QueryRowContext(ctx, query, id).Scan(&counts.Files, &counts.Folders); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return counts, nil
}
