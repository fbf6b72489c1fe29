package files

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/karenhirayama/filevault/internal/common"
	"github.com/karenhirayama/filevault/internal/dbx"
	"github.com/karenhirayama/filevault/internal/server/models"
)

// fileColumns selects a file row joined with the owning folder's name.
const fileColumns = `
	f.id, f.name, f.original_name, f.size, f.mime_type, f.url, f.public_id,
	f.user_id, f.folder_id, f.created_at, d.name`

// PostgresRepository implements file metadata storage over a dbx.DBTX
// (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, file *models.File) (*models.File, error) {
	query := `
		INSERT INTO files (name, original_name, size, mime_type, url, public_id, user_id, folder_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at
	`
	err := r.db.QueryRowContext(ctx, query,
		file.Name, file.OriginalName, file.Size, file.MimeType, file.URL,
		file.PublicID, file.UserID, file.FolderID).
		Scan(&file.ID, &file.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return file, nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, userID, id string) (*models.File, error) {
	query := `
		SELECT ` + fileColumns + `
		FROM files f
		LEFT JOIN folders d ON d.id = f.folder_id
		WHERE f.id = $1 AND f.user_id = $2
	`
	file, err := scanFile(r.db.QueryRowContext(ctx, query, id, userID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return file, nil
}

// Delete removes the metadata row, scoped by owner. Deleting a row that does
// not exist (or is owned by someone else) yields ErrNotFound.
func (r *PostgresRepository) Delete(ctx context.Context, userID, id string) error {
	query := `DELETE FROM files WHERE id = $1 AND user_id = $2`
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

// List returns one page of files matching the filter, newest first.
func (r *PostgresRepository) List(ctx context.Context, filter ListFilter) ([]*models.File, error) {
	where, args := buildWhere(filter)

	args = append(args, filter.Limit, filter.Offset)
	query := fmt.Sprintf(`
		SELECT `+fileColumns+`
		FROM files f
		LEFT JOIN folders d ON d.id = f.folder_id
		WHERE %s
		ORDER BY f.created_at DESC
		LIMIT $%d OFFSET $%d
	`, where, len(args)-1, len(args))

	return r.queryFiles(ctx, query, args...)
}

// Count returns the total number of files matching the filter, ignoring
// pagination.
func (r *PostgresRepository) Count(ctx context.Context, filter ListFilter) (int64, error) {
	where, args := buildWhere(filter)
	query := fmt.Sprintf(`SELECT count(*) FROM files f WHERE %s`, where)

	var total int64
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&total); err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return total, nil
}

// ListByFolder returns all direct files of a folder, newest first.
func (r *PostgresRepository) ListByFolder(ctx context.Context, userID, folderID string) ([]*models.File, error) {
	query := `
		SELECT ` + fileColumns + `
		FROM files f
		LEFT JOIN folders d ON d.id = f.folder_id
		WHERE f.user_id = $1 AND f.folder_id = $2
		ORDER BY f.created_at DESC
	`
	return r.queryFiles(ctx, query, userID, folderID)
}

// buildWhere assembles the tenant-scoped WHERE clause for List/Count.
// The user_id condition is always present.
func buildWhere(filter ListFilter) (string, []any) {
	conds := []string{"f.user_id = $1"}
	args := []any{filter.UserID}

	if filter.FolderID != nil {
		args = append(args, *filter.FolderID)
		conds = append(conds, fmt.Sprintf("f.folder_id = $%d", len(args)))
	}
	if filter.Search != "" {
		args = append(args, "%"+filter.Search+"%")
		n := len(args)
		conds = append(conds, fmt.Sprintf("(f.name ILIKE $%d OR f.original_name ILIKE $%d)", n, n))
	}
	if filter.MimeTypePrefix != "" {
		args = append(args, filter.MimeTypePrefix+"%")
		conds = append(conds, fmt.Sprintf("f.mime_type LIKE $%d", len(args)))
	}

	return strings.Join(conds, " AND "), args
}

func (r *PostgresRepository) queryFiles(ctx context.Context, query string, args ...any) ([]*models.File, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to select files: %w", err)
	}
	defer rows.Close()

	result := []*models.File{}
	for rows.Next() {
		file, err := scanFile(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, file)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanFile(row scanner) (*models.File, error) {
	file := &models.File{}
	var folderName sql.NullString
	if err := row.Scan(&file.ID, &file.Name, &file.OriginalName, &file.Size, &file.MimeType,
		&file.URL, &file.PublicID, &file.UserID, &file.FolderID, &file.CreatedAt, &folderName); err != nil {
		return nil, err
	}
	if file.FolderID != nil && folderName.Valid {
		file.Folder = &models.FolderRef{ID: *file.FolderID, Name: folderName.String}
	}
	return file, nil
}
