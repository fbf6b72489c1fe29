package models

import "time"

// Folder is a node in a per-user folder tree. ParentID is nil for
// root-level folders; when set it must reference a folder owned by the
// same user.
type Folder struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description *string   `json:"description,omitempty"`
	UserID      string    `json:"userId"`
	ParentID    *string   `json:"parentId,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

// FolderCounts holds the number of direct children of a folder.
// A folder may be deleted only when both counts are zero.
type FolderCounts struct {
	Files   int64 `json:"files"`
	Folders int64 `json:"folders"`
}

// FolderSummary is a folder annotated with its direct child counts,
// as returned by folder listings.
type FolderSummary struct {
	Folder
	Counts FolderCounts `json:"_count"`
}

// FolderDetail is a folder with its direct files (newest first) and its
// direct child folders, each annotated with counts.
type FolderDetail struct {
	Folder
	Files    []*File          `json:"files"`
	Children []*FolderSummary `json:"children"`
}
