// Package blobstore wraps remote object storage behind a small client
// interface. Pipelines receive a constructed Client instance, which lets
// tests substitute a double for the real S3-backed implementation.
package blobstore

import "context"

// Classification tells the store how to treat an object: an opaque binary
// is persisted byte-for-byte, while transformable media may be re-encoded
// or optimized by the backend.
type Classification string

const (
	Binary        Classification = "binary"
	Transformable Classification = "transformable"
)

// ClassificationFor derives the storage classification from a MIME type.
// PDFs must never be transcoded; everything else on the upload allow-list
// may be optimized.
func ClassificationFor(mimeType string) Classification {
	if mimeType == "application/pdf" {
		return Binary
	}
	return Transformable
}

// UploadResult describes a successfully stored object.
type UploadResult struct {
	// Locator is the stable public URL of the object; it is what gets
	// persisted as the durable reference to file content.
	Locator string
	// RemoteID identifies the object for later deletion.
	RemoteID string
	// Format is the short format name derived from the content type.
	Format string
	// Classification echoes the hint the object was stored under.
	Classification Classification
	// Width and Height are populated only by backends that inspect
	// image content; zero otherwise.
	Width  int
	Height int
}

// Client is the remote object-storage interface consumed by the upload and
// delete pipelines.
type Client interface {
	// Put uploads the file at localPath and returns its locator and
	// remote id. Failures are reported as common.ErrRemote.
	Put(ctx context.Context, localPath, contentType string, class Classification) (*UploadResult, error)

	// Delete removes the object identified by remoteID, using the
	// classification hint to select the delete mode on backends that
	// distinguish binary from transformable objects.
	Delete(ctx context.Context, remoteID string, class Classification) error
}
