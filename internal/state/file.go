package state

import (
	"database/sql"
	"fmt"

	"github.com/quillworks/quill/pkg/models"
)

// File record and version CRUD operations

// SaveFileVersion upserts a file record and appends its new version in a
// single transaction. A failure mid-way leaves neither applied.
func (db *DB) SaveFileVersion(file *models.FileRecord, version *models.FileVersion) error {
	return db.Transaction(func(tx *sql.Tx) error {
		var exists int
		err := tx.QueryRow("SELECT COUNT(1) FROM files WHERE id = ?", file.ID).Scan(&exists)
		if err != nil {
			return fmt.Errorf("check file: %w", err)
		}

		if exists == 0 {
			_, err = tx.Exec(`
				INSERT INTO files (id, workspace_id, path, category, mime_type, size, checksum,
					current_version, created_at, updated_at)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			`, file.ID, file.WorkspaceID, file.Path, file.Category, file.MimeType, file.Size,
				file.Checksum, file.CurrentVersion, formatTime(file.CreatedAt), formatTime(file.UpdatedAt))
			if err != nil {
				return fmt.Errorf("insert file: %w", err)
			}
		} else {
			_, err = tx.Exec(`
				UPDATE files SET category = ?, mime_type = ?, size = ?, checksum = ?,
					current_version = ?, updated_at = ?
				WHERE id = ?
			`, file.Category, file.MimeType, file.Size, file.Checksum,
				file.CurrentVersion, formatTime(file.UpdatedAt), file.ID)
			if err != nil {
				return fmt.Errorf("update file: %w", err)
			}
		}

		_, err = tx.Exec(`
			INSERT INTO file_versions (id, file_id, version, snapshot_path, checksum, size, created_by, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`, version.ID, version.FileID, version.Version, version.SnapshotPath,
			version.Checksum, version.Size, version.CreatedBy, formatTime(version.CreatedAt))
		if err != nil {
			return fmt.Errorf("insert file version: %w", err)
		}

		return nil
	})
}

// GetFileByPath retrieves a file record by workspace and path.
// Returns nil if not found.
func (db *DB) GetFileByPath(workspaceID, path string) (*models.FileRecord, error) {
	row := db.QueryRow(`
		SELECT id, workspace_id, path, category, mime_type, size, checksum,
			current_version, created_at, updated_at
		FROM files WHERE workspace_id = ? AND path = ?
	`, workspaceID, path)

	f, err := scanFile(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get file by path: %w", err)
	}
	return f, nil
}

// ListFiles lists a workspace's file records ordered by path.
func (db *DB) ListFiles(workspaceID string) ([]*models.FileRecord, error) {
	rows, err := db.Query(`
		SELECT id, workspace_id, path, category, mime_type, size, checksum,
			current_version, created_at, updated_at
		FROM files WHERE workspace_id = ? ORDER BY path
	`, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("list files: %w", err)
	}
	defer rows.Close()

	var files []*models.FileRecord
	for rows.Next() {
		f, err := scanFile(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan file: %w", err)
		}
		files = append(files, f)
	}
	return files, rows.Err()
}

// ListFileVersions lists a file's versions, newest first.
func (db *DB) ListFileVersions(fileID string) ([]*models.FileVersion, error) {
	rows, err := db.Query(`
		SELECT id, file_id, version, snapshot_path, checksum, size, created_by, created_at
		FROM file_versions WHERE file_id = ? ORDER BY version DESC
	`, fileID)
	if err != nil {
		return nil, fmt.Errorf("list file versions: %w", err)
	}
	defer rows.Close()

	var versions []*models.FileVersion
	for rows.Next() {
		var v models.FileVersion
		var createdBy sql.NullString
		var createdAt string
		if err := rows.Scan(&v.ID, &v.FileID, &v.Version, &v.SnapshotPath,
			&v.Checksum, &v.Size, &createdBy, &createdAt); err != nil {
			return nil, fmt.Errorf("scan file version: %w", err)
		}
		if createdBy.Valid {
			v.CreatedBy = createdBy.String
		}
		v.CreatedAt, _ = parseTime(createdAt)
		versions = append(versions, &v)
	}
	return versions, rows.Err()
}

// GetFileVersion retrieves one version of a file. Returns nil if not found.
func (db *DB) GetFileVersion(fileID string, version int) (*models.FileVersion, error) {
	row := db.QueryRow(`
		SELECT id, file_id, version, snapshot_path, checksum, size, created_by, created_at
		FROM file_versions WHERE file_id = ? AND version = ?
	`, fileID, version)

	var v models.FileVersion
	var createdBy sql.NullString
	var createdAt string
	err := row.Scan(&v.ID, &v.FileID, &v.Version, &v.SnapshotPath,
		&v.Checksum, &v.Size, &createdBy, &createdAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get file version: %w", err)
	}

	if createdBy.Valid {
		v.CreatedBy = createdBy.String
	}
	v.CreatedAt, _ = parseTime(createdAt)
	return &v, nil
}

// scanFile scans one file row via the given scan function.
func scanFile(scan func(dest ...any) error) (*models.FileRecord, error) {
	var f models.FileRecord
	var category, mimeType sql.NullString
	var createdAt, updatedAt string

	err := scan(&f.ID, &f.WorkspaceID, &f.Path, &category, &mimeType, &f.Size,
		&f.Checksum, &f.CurrentVersion, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	if category.Valid {
		f.Category = category.String
	}
	if mimeType.Valid {
		f.MimeType = mimeType.String
	}
	f.CreatedAt, _ = parseTime(createdAt)
	f.UpdatedAt, _ = parseTime(updatedAt)
	return &f, nil
}
