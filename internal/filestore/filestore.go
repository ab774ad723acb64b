// Package filestore provides path-safe, versioned file storage for a
// workspace. Every write appends an immutable snapshot and records it in
// sqlite alongside the file record, so content history survives restarts.
package filestore

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/quillworks/quill/internal/state"
	"github.com/quillworks/quill/pkg/models"
)

// ExternalizeThreshold is the content length above which callers should
// store content here instead of keeping it inline in conversation context.
const ExternalizeThreshold = 10000

// snapshotDir holds per-file version snapshots under the workspace root.
const snapshotDir = ".versions"

// metaDir holds quill-internal state (database, signals) under the root.
const metaDir = ".quill"

var (
	// ErrPathOutsideWorkspace is returned when a path escapes the root.
	ErrPathOutsideWorkspace = errors.New("path outside workspace")
	// ErrFileNotFound is returned when no record exists for a path.
	ErrFileNotFound = errors.New("file not found")
	// ErrMatchNotFound is returned by Edit when matchText is absent.
	ErrMatchNotFound = errors.New("match not found")
	// ErrInvalidLineRange is returned by EditLines for an out-of-bounds edit.
	ErrInvalidLineRange = errors.New("invalid line range")
	// ErrOverlappingEdits is returned by EditLines when two edits overlap.
	ErrOverlappingEdits = errors.New("overlapping edits")
)

// Store is a versioned file store rooted at a single workspace directory.
// One instance serves one workspace; writes to the same path are serialized
// while writes to distinct paths proceed independently.
type Store struct {
	root        string
	db          *state.DB
	workspaceID string

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// New creates a file store over root, creating the directory if missing.
func New(root string, db *state.DB, workspaceID string) (*Store, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve workspace root: %w", err)
	}
	if err := os.MkdirAll(abs, 0755); err != nil {
		return nil, fmt.Errorf("create workspace root: %w", err)
	}
	return &Store{
		root:        abs,
		db:          db,
		workspaceID: workspaceID,
		locks:       make(map[string]*sync.Mutex),
	}, nil
}

// Root returns the absolute workspace root.
func (s *Store) Root() string {
	return s.root
}

// ShouldExternalize reports whether content is large enough that callers
// should write it to the store instead of keeping it inline. The boundary
// is exclusive: content exactly at the threshold stays inline.
func ShouldExternalize(content string) bool {
	return len(content) > ExternalizeThreshold
}

// resolve turns a caller path into its absolute location under the root
// and its canonical workspace-relative form. Paths that resolve outside
// the root are rejected.
func (s *Store) resolve(path string) (abs, rel string, err error) {
	if strings.TrimSpace(path) == "" {
		return "", "", fmt.Errorf("empty path: %w", ErrPathOutsideWorkspace)
	}

	p := path
	if !filepath.IsAbs(p) {
		p = filepath.Join(s.root, p)
	}
	abs, err = filepath.Abs(p)
	if err != nil {
		return "", "", fmt.Errorf("resolve %s: %w", path, err)
	}

	if abs != s.root && !strings.HasPrefix(abs, s.root+string(filepath.Separator)) {
		return "", "", fmt.Errorf("%s: %w", path, ErrPathOutsideWorkspace)
	}

	rel, err = filepath.Rel(s.root, abs)
	if err != nil {
		return "", "", fmt.Errorf("relativize %s: %w", path, err)
	}
	if rel == "." {
		return "", "", fmt.Errorf("%s resolves to the workspace root: %w", path, ErrPathOutsideWorkspace)
	}
	return abs, rel, nil
}

// pathLock returns the write lock for a canonical relative path, creating
// it on first use. Locks are never removed; the map grows with the number
// of distinct paths written, which is bounded by workspace size.
func (s *Store) pathLock(rel string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.locks[rel]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[rel] = lock
	}
	return lock
}

// Write stores content at path and appends a new version. Concurrent
// writers to the same path are serialized so the version history stays
// linear; writers to distinct paths do not contend.
func (s *Store) Write(ctx context.Context, path, content, category, createdBy string) (*models.FileRecord, error) {
	abs, rel, err := s.resolve(path)
	if err != nil {
		return nil, err
	}

	lock := s.pathLock(rel)
	lock.Lock()
	defer lock.Unlock()

	return s.writeLocked(ctx, abs, rel, content, category, createdBy)
}

// writeLocked performs the actual write. The caller must hold the path lock.
func (s *Store) writeLocked(ctx context.Context, abs, rel, content, category, createdBy string) (*models.FileRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	record, err := s.db.GetFileByPath(s.workspaceID, rel)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	sum := sha256.Sum256([]byte(content))
	checksum := hex.EncodeToString(sum[:])

	if record == nil {
		record = &models.FileRecord{
			ID:          uuid.New().String(),
			WorkspaceID: s.workspaceID,
			Path:        rel,
			CreatedAt:   now,
		}
	}
	if category != "" {
		record.Category = category
	}
	record.MimeType = detectMime(rel)
	record.Size = int64(len(content))
	record.Checksum = checksum
	record.CurrentVersion++
	record.UpdatedAt = now

	if err := os.MkdirAll(filepath.Dir(abs), 0755); err != nil {
		return nil, fmt.Errorf("create parent directory: %w", err)
	}
	if err := os.WriteFile(abs, []byte(content), 0644); err != nil {
		return nil, fmt.Errorf("write %s: %w", rel, err)
	}

	version := &models.FileVersion{
		ID:           uuid.New().String(),
		FileID:       record.ID,
		Version:      record.CurrentVersion,
		SnapshotPath: filepath.Join(snapshotDir, record.ID, fmt.Sprintf("v%d", record.CurrentVersion)),
		Checksum:     checksum,
		Size:         record.Size,
		CreatedBy:    createdBy,
		CreatedAt:    now,
	}

	snapAbs := filepath.Join(s.root, version.SnapshotPath)
	if err := os.MkdirAll(filepath.Dir(snapAbs), 0755); err != nil {
		return nil, fmt.Errorf("create snapshot directory: %w", err)
	}
	if err := os.WriteFile(snapAbs, []byte(content), 0644); err != nil {
		return nil, fmt.Errorf("write snapshot: %w", err)
	}

	if err := s.db.SaveFileVersion(record, version); err != nil {
		return nil, err
	}
	return record, nil
}

// Read returns the current content of path byte-exactly as last written.
func (s *Store) Read(ctx context.Context, path string) (string, error) {
	abs, rel, err := s.resolve(path)
	if err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	record, err := s.db.GetFileByPath(s.workspaceID, rel)
	if err != nil {
		return "", err
	}
	if record == nil {
		return "", fmt.Errorf("%s: %w", rel, ErrFileNotFound)
	}

	data, err := os.ReadFile(abs)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", rel, err)
	}
	return string(data), nil
}

// detectMime maps a file extension to its MIME type, defaulting to
// text/plain for unknown or missing extensions.
func detectMime(path string) string {
	if typ := mime.TypeByExtension(filepath.Ext(path)); typ != "" {
		return typ
	}
	return "text/plain"
}
