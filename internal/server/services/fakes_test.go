package services

import (
	"context"
	"database/sql"
	"io"
	"log/slog"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/karenhirayama/filevault/internal/common"
	"github.com/karenhirayama/filevault/internal/dbx"
	"github.com/karenhirayama/filevault/internal/logging"
	"github.com/karenhirayama/filevault/internal/server/blobstore"
	"github.com/karenhirayama/filevault/internal/server/models"
	filesrepo "github.com/karenhirayama/filevault/internal/server/repositories/files"
	foldersrepo "github.com/karenhirayama/filevault/internal/server/repositories/folders"
	usersrepo "github.com/karenhirayama/filevault/internal/server/repositories/users"
)

// --- helpers ---

func newSQLMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return db, mock
}

func testLogger(t *testing.T) logging.Logger {
	t.Helper()
	return logging.NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

// --- users repo fake ---

type fakeUsersRepo struct {
	createOut *models.User
	createErr error

	byEmailOut *models.User
	byEmailErr error

	byIDOut *models.User
	byIDErr error
}

func (f *fakeUsersRepo) Create(ctx context.Context, u *models.User) (*models.User, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	if f.createOut != nil {
		return f.createOut, nil
	}
	u.ID = "new-user"
	return u, nil
}

func (f *fakeUsersRepo) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	if f.byEmailErr != nil {
		return nil, f.byEmailErr
	}
	return f.byEmailOut, nil
}

func (f *fakeUsersRepo) GetByID(ctx context.Context, id string) (*models.User, error) {
	if f.byIDErr != nil {
		return nil, f.byIDErr
	}
	return f.byIDOut, nil
}

// --- folders repo fake ---

type fakeFoldersRepo struct {
	folders map[string]*models.Folder // keyed by id, with UserID scoping

	counts    *models.FolderCounts
	countsErr error

	createErr error
	updateErr error
	deleteErr error

	listOut     []*models.FolderSummary
	childrenOut []*models.FolderSummary

	deleted []string
}

func (f *fakeFoldersRepo) Create(ctx context.Context, folder *models.Folder) (*models.Folder, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	folder.ID = "new-folder"
	return folder, nil
}

func (f *fakeFoldersRepo) Update(ctx context.Context, folder *models.Folder) (*models.Folder, error) {
	if f.updateErr != nil {
		return nil, f.updateErr
	}
	existing, err := f.GetByID(ctx, folder.UserID, folder.ID)
	if err != nil {
		return nil, err
	}
	existing.Name = folder.Name
	existing.Description = folder.Description
	return existing, nil
}

func (f *fakeFoldersRepo) Delete(ctx context.Context, userID, id string) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	if _, err := f.GetByID(ctx, userID, id); err != nil {
		return err
	}
	f.deleted = append(f.deleted, id)
	return nil
}

func (f *fakeFoldersRepo) GetByID(ctx context.Context, userID, id string) (*models.Folder, error) {
	folder, ok := f.folders[id]
	if !ok || folder.UserID != userID {
		return nil, common.ErrNotFound
	}
	return folder, nil
}

func (f *fakeFoldersRepo) ListByUser(ctx context.Context, userID string) ([]*models.FolderSummary, error) {
	return f.listOut, nil
}

func (f *fakeFoldersRepo) ListChildren(ctx context.Context, userID, parentID string) ([]*models.FolderSummary, error) {
	return f.childrenOut, nil
}

func (f *fakeFoldersRepo) CountChildren(ctx context.Context, id string) (*models.FolderCounts, error) {
	if f.countsErr != nil {
		return nil, f.countsErr
	}
	if f.counts != nil {
		return f.counts, nil
	}
	return &models.FolderCounts{}, nil
}

// --- files repo fake ---

type fakeFilesRepo struct {
	files map[string]*models.File

	createErr error
	created   []*models.File

	listOut  []*models.File
	listErr  error
	countOut int64
	countErr error

	lastFilter filesrepo.ListFilter

	deleted []string
}

func (f *fakeFilesRepo) Create(ctx context.Context, file *models.File) (*models.File, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	file.ID = "new-file"
	f.created = append(f.created, file)
	return file, nil
}

func (f *fakeFilesRepo) GetByID(ctx context.Context, userID, id string) (*models.File, error) {
	file, ok := f.files[id]
	if !ok || file.UserID != userID {
		return nil, common.ErrNotFound
	}
	return file, nil
}

func (f *fakeFilesRepo) Delete(ctx context.Context, userID, id string) error {
	if _, err := f.GetByID(ctx, userID, id); err != nil {
		return err
	}
	delete(f.files, id)
	f.deleted = append(f.deleted, id)
	return nil
}

func (f *fakeFilesRepo) List(ctx context.Context, filter filesrepo.ListFilter) ([]*models.File, error) {
	f.lastFilter = filter
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.listOut, nil
}

func (f *fakeFilesRepo) Count(ctx context.Context, filter filesrepo.ListFilter) (int64, error) {
	if f.countErr != nil {
		return 0, f.countErr
	}
	return f.countOut, nil
}

func (f *fakeFilesRepo) ListByFolder(ctx context.Context, userID, folderID string) ([]*models.File, error) {
	return f.listOut, nil
}

// --- repo manager fake ---

type fakeRepoManager struct {
	u *fakeUsersRepo
	d *fakeFoldersRepo
	f *fakeFilesRepo
}

func (m *fakeRepoManager) RunMigrations(context.Context, *sql.DB) error { return nil }
func (m *fakeRepoManager) Users(db dbx.DBTX) usersrepo.Repository       { return m.u }
func (m *fakeRepoManager) Folders(db dbx.DBTX) foldersrepo.Repository   { return m.d }
func (m *fakeRepoManager) Files(db dbx.DBTX) filesrepo.Repository       { return m.f }

// --- blob store fake ---

type fakeBlob struct {
	putOut *blobstore.UploadResult
	putErr error

	deleteErr error

	putCalls    int
	putClass    blobstore.Classification
	deleteCalls int
	deletedID   string
	deleteClass blobstore.Classification
}

func (b *fakeBlob) Put(ctx context.Context, localPath, contentType string, class blobstore.Classification) (*blobstore.UploadResult, error) {
	b.putCalls++
	b.putClass = class
	if b.putErr != nil {
		return nil, b.putErr
	}
	if b.putOut != nil {
		return b.putOut, nil
	}
	return &blobstore.UploadResult{
		Locator:        "http://blob.local/filevault/media/2025/1/1/key",
		RemoteID:       "media/2025/1/1/key",
		Format:         "png",
		Classification: class,
	}, nil
}

func (b *fakeBlob) Delete(ctx context.Context, remoteID string, class blobstore.Classification) error {
	b.deleteCalls++
	b.deletedID = remoteID
	b.deleteClass = class
	return b.deleteErr
}
