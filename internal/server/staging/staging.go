// Package staging implements the upload staging guard: inbound byte streams
// are written to temporary local storage, validated against the MIME
// allow-list and the size ceiling, and removed again on every exit path.
package staging

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/karenhirayama/filevault/internal/common"
	"github.com/karenhirayama/filevault/internal/filex"
	"github.com/karenhirayama/filevault/internal/logging"
)

// MaxUploadSize is the hard ceiling for a single uploaded file (10 MiB).
const MaxUploadSize = 10 << 20

var allowedMimeTypes = map[string]struct{}{
	"image/jpeg":         {},
	"image/png":          {},
	"image/gif":          {},
	"application/pdf":    {},
	"text/plain":         {},
	"application/msword": {},
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": {},
}

// IsAllowedMimeType reports whether mimeType is on the upload allow-list.
func IsAllowedMimeType(mimeType string) bool {
	_, ok := allowedMimeTypes[mimeType]
	return ok
}

// Guard stages inbound uploads into a local directory.
type Guard struct {
	dir    string
	logger logging.Logger
}

// NewGuard ensures the staging directory exists and returns a Guard
// writing into it.
func NewGuard(dir string, logger logging.Logger) (*Guard, error) {
	path, err := filex.EnsureDir(dir)
	if err != nil {
		return nil, fmt.Errorf("staging dir: %w", err)
	}
	return &Guard{dir: path, logger: logger}, nil
}

// Artifact is a staged local copy of an uploaded file. It is owned by the
// single request that created it and must be discarded before the request
// finishes, on success and failure alike.
type Artifact struct {
	// Path is the absolute location of the staged file.
	Path string
	// Name is the unique stored name (the base of Path).
	Name string
	// Size is the staged byte count, measured on disk.
	Size int64
	// MimeType is the declared content type the artifact was validated against.
	MimeType string

	logger     logging.Logger
	removeOnce sync.Once
}

// Discard removes the staged file. It runs at most once per artifact;
// a removal failure is logged and never propagated, so cleanup cannot
// mask the error that triggered it.
func (a *Artifact) Discard(ctx context.Context) {
	a.removeOnce.Do(func() {
		if err := os.Remove(a.Path); err != nil {
			a.logger.Warn(ctx, "staged artifact cleanup failed", "path", a.Path, "error", err)
		}
	})
}

// uniqueName builds a collision-free staged file name that keeps the
// original extension.
func uniqueName(originalName string) string {
	return fmt.Sprintf("file-%d-%s%s", time.Now().UnixNano(), uuid.New(), filepath.Ext(originalName))
}

// Stage validates the declared type and size, then streams r into a unique
// file under the staging directory. The size ceiling is enforced twice:
// while streaming, so an overlong body is abandoned early, and again against
// the on-disk size of the staged file. Any failure discards the partial
// artifact before returning.
func (g *Guard) Stage(ctx context.Context, r io.Reader, originalName, mimeType string, declaredSize int64) (*Artifact, error) {
	if !IsAllowedMimeType(mimeType) {
		return nil, fmt.Errorf("%w: invalid file type: %s", common.ErrValidation, mimeType)
	}
	if declaredSize > MaxUploadSize {
		return nil, fmt.Errorf("%w: file size too large, maximum size is %d bytes", common.ErrValidation, MaxUploadSize)
	}

	name := uniqueName(originalName)
	path := filepath.Join(g.dir, name)

	dst, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return nil, fmt.Errorf("create staged file: %w", err)
	}

	art := &Artifact{Path: path, Name: name, MimeType: mimeType, logger: g.logger}

	// One byte past the limit is enough to detect an oversize stream
	// without draining it.
	written, err := io.Copy(dst, io.LimitReader(r, MaxUploadSize+1))
	if cerr := dst.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		art.Discard(ctx)
		return nil, fmt.Errorf("stage upload: %w", err)
	}
	if written > MaxUploadSize {
		art.Discard(ctx)
		return nil, fmt.Errorf("%w: file size too large, maximum size is %d bytes", common.ErrValidation, MaxUploadSize)
	}

	// Re-check against the artifact on disk in case the stream undercounted.
	info, err := os.Stat(path)
	if err != nil {
		art.Discard(ctx)
		return nil, fmt.Errorf("stat staged file: %w", err)
	}
	if info.Size() > MaxUploadSize {
		art.Discard(ctx)
		return nil, fmt.Errorf("%w: file size too large, maximum size is %d bytes", common.ErrValidation, MaxUploadSize)
	}

	art.Size = info.Size()
	return art, nil
}
