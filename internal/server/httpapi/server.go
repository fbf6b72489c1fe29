// Package httpapi exposes the REST surface of the server: authentication,
// file upload/listing/deletion, and folder management. Handlers translate
// HTTP requests into service calls and sentinel errors into status codes.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/karenhirayama/filevault/internal/logging"
	"github.com/karenhirayama/filevault/internal/server/services"
	"github.com/karenhirayama/filevault/internal/server/staging"
)

type Server struct {
	address   string
	logger    logging.Logger
	users     *services.UserService
	folders   *services.FolderService
	files     *services.FileService
	guard     *staging.Guard
	jwtSecret []byte
}

func NewServer(address string, l logging.Logger, us *services.UserService, fos *services.FolderService,
	fis *services.FileService, guard *staging.Guard, secretKey string) (*Server, error) {
	return &Server{
		address:   address,
		logger:    l.With("module", "http_server"),
		users:     us,
		folders:   fos,
		files:     fis,
		guard:     guard,
		jwtSecret: []byte(secretKey),
	}, nil
}

// Routes assembles the chi router for the public API.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", s.handleRegister)
			r.Post("/login", s.handleLogin)
			r.With(s.requireAuth).Get("/me", s.handleMe)
		})

		r.Group(func(r chi.Router) {
			r.Use(s.requireAuth)

			r.Route("/files", func(r chi.Router) {
				r.Get("/", s.handleListFiles)
				r.Post("/upload", s.handleUpload)
				r.Get("/{id}", s.handleGetFile)
				r.Delete("/{id}", s.handleDeleteFile)
			})

			r.Route("/folders", func(r chi.Router) {
				r.Get("/", s.handleListFolders)
				r.Post("/", s.handleCreateFolder)
				r.Get("/{id}", s.handleGetFolder)
				r.Put("/{id}", s.handleUpdateFolder)
				r.Delete("/{id}", s.handleDeleteFolder)
			})
		})
	})

	return r
}

// Run serves the API until ctx is cancelled, then drains in-flight requests.
func (s *Server) Run(ctx context.Context) error {

	srv := &http.Server{
		Addr:    s.address,
		Handler: s.Routes(),
	}

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Error(ctx, "shutdown error", "error", err)
		}
	}()

	s.logger.Info(ctx, "Starting HTTP server", "address", s.address)

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "OK",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}
