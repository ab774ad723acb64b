package models

import "time"

// FileRecord tracks a stored file within a workspace. A record is
// uniquely identified by (workspace, path). The checksum is a sha256
// hex digest of the current content, used to detect identical writes
// and to diff across versions.
type FileRecord struct {
	// ID is the unique identifier for this record.
	ID string `json:"id"`
	// WorkspaceID scopes the file to a workspace.
	WorkspaceID string `json:"workspace_id"`
	// Path is the workspace-relative file path.
	Path string `json:"path"`
	// Category groups files by origin (e.g. draft, research, upload).
	Category string `json:"category,omitempty"`
	// MimeType is the detected content type.
	MimeType string `json:"mime_type,omitempty"`
	// Size is the current content length in bytes.
	Size int64 `json:"size"`
	// Checksum is the sha256 hex digest of the current content.
	Checksum string `json:"checksum"`
	// CurrentVersion is the latest version number.
	CurrentVersion int `json:"current_version"`
	// CreatedAt is when the record was created.
	CreatedAt time.Time `json:"created_at"`
	// UpdatedAt is when the record was last written.
	UpdatedAt time.Time `json:"updated_at"`
}

// FileVersion is an immutable snapshot of a file's content at one write.
// Versions are append-only; they are never mutated or deleted.
type FileVersion struct {
	// ID is the unique identifier for this version.
	ID string `json:"id"`
	// FileID is the owning FileRecord.
	FileID string `json:"file_id"`
	// Version is the monotonically increasing version number, starting at 1.
	Version int `json:"version"`
	// SnapshotPath locates the snapshot copy on disk.
	SnapshotPath string `json:"snapshot_path"`
	// Checksum is the sha256 hex digest of the snapshot content.
	Checksum string `json:"checksum"`
	// Size is the snapshot length in bytes.
	Size int64 `json:"size"`
	// CreatedBy identifies the writer (run, sub-agent, or caller).
	CreatedBy string `json:"created_by,omitempty"`
	// CreatedAt is when the snapshot was taken.
	CreatedAt time.Time `json:"created_at"`
}
