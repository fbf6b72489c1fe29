package httpapi

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/karenhirayama/filevault/internal/common"
	"github.com/karenhirayama/filevault/internal/dbx"
	"github.com/karenhirayama/filevault/internal/logging"
	"github.com/karenhirayama/filevault/internal/server/auth"
	"github.com/karenhirayama/filevault/internal/server/blobstore"
	sc "github.com/karenhirayama/filevault/internal/server/config"
	"github.com/karenhirayama/filevault/internal/server/models"
	filesrepo "github.com/karenhirayama/filevault/internal/server/repositories/files"
	foldersrepo "github.com/karenhirayama/filevault/internal/server/repositories/folders"
	usersrepo "github.com/karenhirayama/filevault/internal/server/repositories/users"
	"github.com/karenhirayama/filevault/internal/server/services"
	"github.com/karenhirayama/filevault/internal/server/staging"
)

const testSecret = "test-secret"

// memStore is an in-memory stand-in for the Postgres repositories, shared by
// all three repo fakes so cross-entity behavior (child counts, folder
// annotations) stays consistent within a test.
type memStore struct {
	seq     int
	users   map[string]*models.User
	folders map[string]*models.Folder
	files   map[string]*models.File
}

func newMemStore() *memStore {
	return &memStore{
		users:   map[string]*models.User{},
		folders: map[string]*models.Folder{},
		files:   map[string]*models.File{},
	}
}

func (s *memStore) nextID(prefix string) string {
	s.seq++
	return fmt.Sprintf("%s-%d", prefix, s.seq)
}

func (s *memStore) addUser(id, email string) *models.User {
	u := &models.User{ID: id, Name: id, Email: email, CreatedAt: time.Now()}
	s.users[id] = u
	return u
}

func (s *memStore) addFolder(id, userID string, parentID *string) *models.Folder {
	f := &models.Folder{ID: id, Name: id, UserID: userID, ParentID: parentID, CreatedAt: time.Now()}
	s.folders[id] = f
	return f
}

func (s *memStore) addFile(id, userID string, folderID *string, mimeType string) *models.File {
	remoteID := "media/" + id
	f := &models.File{
		ID: id, Name: "file-" + id, OriginalName: id + ".bin", Size: 64,
		MimeType: mimeType, URL: "http://blob.local/filevault/" + remoteID,
		PublicID: &remoteID, UserID: userID, FolderID: folderID, CreatedAt: time.Now(),
	}
	s.files[id] = f
	return f
}

func (s *memStore) counts(folderID string) *models.FolderCounts {
	c := &models.FolderCounts{}
	for _, f := range s.files {
		if f.FolderID != nil && *f.FolderID == folderID {
			c.Files++
		}
	}
	for _, d := range s.folders {
		if d.ParentID != nil && *d.ParentID == folderID {
			c.Folders++
		}
	}
	return c
}

// --- users repo ---

type memUsersRepo struct{ s *memStore }

func (r *memUsersRepo) Create(ctx context.Context, u *models.User) (*models.User, error) {
	for _, existing := range r.s.users {
		if existing.Email == u.Email {
			return nil, common.ErrAlreadyExists
		}
	}
	u.ID = r.s.nextID("u")
	u.CreatedAt = time.Now()
	r.s.users[u.ID] = u
	return u, nil
}

func (r *memUsersRepo) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	for _, u := range r.s.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, common.ErrNotFound
}

func (r *memUsersRepo) GetByID(ctx context.Context, id string) (*models.User, error) {
	if u, ok := r.s.users[id]; ok {
		return u, nil
	}
	return nil, common.ErrNotFound
}

// --- folders repo ---

type memFoldersRepo struct{ s *memStore }

func (r *memFoldersRepo) Create(ctx context.Context, folder *models.Folder) (*models.Folder, error) {
	folder.ID = r.s.nextID("d")
	folder.CreatedAt = time.Now()
	r.s.folders[folder.ID] = folder
	return folder, nil
}

func (r *memFoldersRepo) Update(ctx context.Context, folder *models.Folder) (*models.Folder, error) {
	existing, ok := r.s.folders[folder.ID]
	if !ok || existing.UserID != folder.UserID {
		return nil, common.ErrNotFound
	}
	existing.Name = folder.Name
	existing.Description = folder.Description
	folder.CreatedAt = existing.CreatedAt
	folder.ParentID = existing.ParentID
	return folder, nil
}

func (r *memFoldersRepo) Delete(ctx context.Context, userID, id string) error {
	existing, ok := r.s.folders[id]
	if !ok || existing.UserID != userID {
		return common.ErrNotFound
	}
	delete(r.s.folders, id)
	return nil
}

func (r *memFoldersRepo) GetByID(ctx context.Context, userID, id string) (*models.Folder, error) {
	existing, ok := r.s.folders[id]
	if !ok || existing.UserID != userID {
		return nil, common.ErrNotFound
	}
	return existing, nil
}

func (r *memFoldersRepo) ListByUser(ctx context.Context, userID string) ([]*models.FolderSummary, error) {
	result := []*models.FolderSummary{}
	for _, d := range r.s.folders {
		if d.UserID == userID {
			result = append(result, &models.FolderSummary{Folder: *d, Counts: *r.s.counts(d.ID)})
		}
	}
	sortSummaries(result)
	return result, nil
}

func (r *memFoldersRepo) ListChildren(ctx context.Context, userID, parentID string) ([]*models.FolderSummary, error) {
	result := []*models.FolderSummary{}
	for _, d := range r.s.folders {
		if d.UserID == userID && d.ParentID != nil && *d.ParentID == parentID {
			result = append(result, &models.FolderSummary{Folder: *d, Counts: *r.s.counts(d.ID)})
		}
	}
	sortSummaries(result)
	return result, nil
}

func (r *memFoldersRepo) CountChildren(ctx context.Context, id string) (*models.FolderCounts, error) {
	return r.s.counts(id), nil
}

func sortSummaries(items []*models.FolderSummary) {
	sort.Slice(items, func(i, j int) bool { return items[i].ID > items[j].ID })
}

// --- files repo ---

type memFilesRepo struct{ s *memStore }

func (r *memFilesRepo) Create(ctx context.Context, file *models.File) (*models.File, error) {
	file.ID = r.s.nextID("f")
	file.CreatedAt = time.Now()
	r.s.files[file.ID] = file
	return file, nil
}

func (r *memFilesRepo) annotate(file *models.File) *models.File {
	out := *file
	if out.FolderID != nil {
		if d, ok := r.s.folders[*out.FolderID]; ok {
			out.Folder = &models.FolderRef{ID: d.ID, Name: d.Name}
		}
	}
	return &out
}

func (r *memFilesRepo) GetByID(ctx context.Context, userID, id string) (*models.File, error) {
	existing, ok := r.s.files[id]
	if !ok || existing.UserID != userID {
		return nil, common.ErrNotFound
	}
	return r.annotate(existing), nil
}

func (r *memFilesRepo) Delete(ctx context.Context, userID, id string) error {
	existing, ok := r.s.files[id]
	if !ok || existing.UserID != userID {
		return common.ErrNotFound
	}
	delete(r.s.files, id)
	return nil
}

func (r *memFilesRepo) matches(f *models.File, filter filesrepo.ListFilter) bool {
	if f.UserID != filter.UserID {
		return false
	}
	if filter.FolderID != nil && (f.FolderID == nil || *f.FolderID != *filter.FolderID) {
		return false
	}
	if filter.Search != "" {
		needle := strings.ToLower(filter.Search)
		if !strings.Contains(strings.ToLower(f.Name), needle) &&
			!strings.Contains(strings.ToLower(f.OriginalName), needle) {
			return false
		}
	}
	if filter.MimeTypePrefix != "" && !strings.HasPrefix(f.MimeType, filter.MimeTypePrefix) {
		return false
	}
	return true
}

func (r *memFilesRepo) matching(filter filesrepo.ListFilter) []*models.File {
	result := []*models.File{}
	for _, f := range r.s.files {
		if r.matches(f, filter) {
			result = append(result, r.annotate(f))
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID > result[j].ID })
	return result
}

func (r *memFilesRepo) List(ctx context.Context, filter filesrepo.ListFilter) ([]*models.File, error) {
	all := r.matching(filter)
	if filter.Offset >= len(all) {
		return []*models.File{}, nil
	}
	all = all[filter.Offset:]
	if filter.Limit > 0 && filter.Limit < len(all) {
		all = all[:filter.Limit]
	}
	return all, nil
}

func (r *memFilesRepo) Count(ctx context.Context, filter filesrepo.ListFilter) (int64, error) {
	return int64(len(r.matching(filter))), nil
}

func (r *memFilesRepo) ListByFolder(ctx context.Context, userID, folderID string) ([]*models.File, error) {
	return r.matching(filesrepo.ListFilter{UserID: userID, FolderID: &folderID}), nil
}

// --- repo manager ---

type memRepoManager struct{ s *memStore }

func (m *memRepoManager) RunMigrations(context.Context, *sql.DB) error { return nil }
func (m *memRepoManager) Users(db dbx.DBTX) usersrepo.Repository       { return &memUsersRepo{s: m.s} }
func (m *memRepoManager) Folders(db dbx.DBTX) foldersrepo.Repository   { return &memFoldersRepo{s: m.s} }
func (m *memRepoManager) Files(db dbx.DBTX) filesrepo.Repository       { return &memFilesRepo{s: m.s} }

// --- blob store ---

type memBlob struct {
	objects map[string][]byte
	seq     int

	putErr    error
	deleteErr error
}

func newMemBlob() *memBlob {
	return &memBlob{objects: map[string][]byte{}}
}

func (b *memBlob) Put(ctx context.Context, localPath, contentType string, class blobstore.Classification) (*blobstore.UploadResult, error) {
	if b.putErr != nil {
		return nil, b.putErr
	}
	prefix := "media"
	if class == blobstore.Binary {
		prefix = "raw"
	}
	b.seq++
	key := fmt.Sprintf("%s/obj-%d", prefix, b.seq)
	b.objects[key] = []byte("stored")
	return &blobstore.UploadResult{
		Locator:        "http://blob.local/filevault/" + key,
		RemoteID:       key,
		Format:         contentType[strings.IndexByte(contentType, '/')+1:],
		Classification: class,
	}, nil
}

func (b *memBlob) Delete(ctx context.Context, remoteID string, class blobstore.Classification) error {
	if b.deleteErr != nil {
		return b.deleteErr
	}
	delete(b.objects, remoteID)
	return nil
}

// --- test server ---

type testEnv struct {
	handler http.Handler
	store   *memStore
	blob    *memBlob
	mock    sqlmock.Sqlmock
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	store := newMemStore()
	rm := &memRepoManager{s: store}
	blob := newMemBlob()
	logger := logging.NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))

	cfg := &sc.Config{SecretKey: testSecret, AccessTokenValidityDuration: time.Hour}

	guard, err := staging.NewGuard(t.TempDir(), logger)
	if err != nil {
		t.Fatalf("staging.NewGuard error: %v", err)
	}

	srv, err := NewServer("127.0.0.1:0", logger,
		services.NewUserService(db, rm, cfg),
		services.NewFolderService(db, rm),
		services.NewFileService(db, rm, blob, logger),
		guard, testSecret)
	if err != nil {
		t.Fatalf("NewServer error: %v", err)
	}

	return &testEnv{handler: srv.Routes(), store: store, blob: blob, mock: mock}
}

func (e *testEnv) token(t *testing.T, userID string) string {
	t.Helper()
	token, err := auth.GenerateToken(userID, []byte(testSecret), time.Hour)
	if err != nil {
		t.Fatalf("GenerateToken error: %v", err)
	}
	return token
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(buf)
	}

	req := httptest.NewRequest(method, path, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

// doRawAuth issues a request with a verbatim Authorization header, including
// malformed ones do() cannot produce.
func (e *testEnv) doRawAuth(t *testing.T, method, path, header string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

// upload posts a multipart body to /api/files/upload with an explicit part
// content type, the way browsers submit file inputs.
func (e *testEnv) upload(t *testing.T, token, filename, contentType string, content []byte, folderID string) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	h := textproto.MIMEHeader{}
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, filename))
	h.Set("Content-Type", contentType)
	part, err := mw.CreatePart(h)
	if err != nil {
		t.Fatalf("create part: %v", err)
	}
	if _, err := part.Write(content); err != nil {
		t.Fatalf("write part: %v", err)
	}
	if folderID != "" {
		if err := mw.WriteField("folderId", folderID); err != nil {
			t.Fatalf("write folderId: %v", err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/files/upload", &buf)
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return out
}
