package httpapi

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/karenhirayama/filevault/internal/server/services"
	"github.com/karenhirayama/filevault/internal/server/staging"
)

// multipartOverhead is headroom on top of the payload ceiling for multipart
// framing and the folderId field.
const multipartOverhead = 1 << 20

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := userIDFrom(ctx)

	r.Body = http.MaxBytesReader(w, r.Body, staging.MaxUploadSize+multipartOverhead)

	part, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "no file uploaded")
		return
	}
	defer part.Close()

	var folderID *string
	if v := r.FormValue("folderId"); v != "" {
		folderID = &v
	}

	art, err := s.guard.Stage(ctx, part, header.Filename, header.Header.Get("Content-Type"), header.Size)
	if err != nil {
		s.respondError(ctx, w, err)
		return
	}

	file, err := s.files.Upload(ctx, userID, folderID, art, header.Filename)
	if err != nil {
		s.respondError(ctx, w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"message": "File uploaded successfully",
		"file":    file,
	})
}

func (s *Server) handleListFiles(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()

	filters := services.ListFilters{
		Search:         q.Get("search"),
		MimeTypePrefix: q.Get("mimeType"),
	}
	if v := q.Get("folderId"); v != "" {
		filters.FolderID = &v
	}
	if v, err := strconv.Atoi(q.Get("page")); err == nil {
		filters.Page = v
	}
	if v, err := strconv.Atoi(q.Get("limit")); err == nil {
		filters.Limit = v
	}

	page, err := s.files.List(ctx, userIDFrom(ctx), filters)
	if err != nil {
		s.respondError(ctx, w, err)
		return
	}

	writeJSON(w, http.StatusOK, page)
}

func (s *Server) handleGetFile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	file, err := s.files.Get(ctx, userIDFrom(ctx), chi.URLParam(r, "id"))
	if err != nil {
		s.respondError(ctx, w, err)
		return
	}

	writeJSON(w, http.StatusOK, file)
}

func (s *Server) handleDeleteFile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if err := s.files.Delete(ctx, userIDFrom(ctx), chi.URLParam(r, "id")); err != nil {
		s.respondError(ctx, w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "File deleted successfully"})
}
