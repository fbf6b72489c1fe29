package models

import "time"

// File describes metadata for a stored object. The bytes themselves live in
// remote object storage; only the locator (URL) and the remote id used for
// deletion are persisted here.
type File struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	OriginalName string    `json:"originalName"`
	Size         int64     `json:"size"`
	MimeType     string    `json:"mimeType"`
	URL          string    `json:"url"`
	PublicID     *string   `json:"publicId,omitempty"`
	UserID       string    `json:"userId"`
	FolderID     *string   `json:"folderId,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`

	// Folder is the owning folder reference, populated on reads when
	// FolderID is set.
	Folder *FolderRef `json:"folder,omitempty"`
}

// FolderRef is the minimal folder annotation embedded in file responses.
type FolderRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}
