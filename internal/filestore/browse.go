package filestore

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/quillworks/quill/pkg/models"
)

// GrepMatch is one matching line from Grep.
type GrepMatch struct {
	File    string `json:"file"`
	Line    int    `json:"line"`
	Content string `json:"content"`
}

// Ls returns sorted workspace-relative file paths under dir whose base
// name matches pattern. Empty dir means the workspace root; empty pattern
// matches everything. Internal bookkeeping directories are skipped.
func (s *Store) Ls(ctx context.Context, dir, pattern string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	base := s.root
	if dir != "" {
		abs, _, err := s.resolve(dir)
		if err != nil {
			return nil, err
		}
		base = abs
	}

	var paths []string
	err := filepath.WalkDir(base, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if p != base && skipDir(d.Name()) {
				return filepath.SkipDir
			}
			return nil
		}
		if pattern != "" {
			ok, err := filepath.Match(pattern, d.Name())
			if err != nil {
				return fmt.Errorf("bad pattern %q: %w", pattern, err)
			}
			if !ok {
				return nil
			}
		}
		rel, err := filepath.Rel(s.root, p)
		if err != nil {
			return err
		}
		paths = append(paths, rel)
		return nil
	})
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("walk %s: %w", dir, err)
	}

	sort.Strings(paths)
	return paths, nil
}

// skipDir reports whether a directory holds internal bookkeeping that Ls
// and Grep must not surface.
func skipDir(name string) bool {
	return name == snapshotDir || name == metaDir
}

// Grep scans files under dir for a case-insensitive substring match and
// returns one entry per matching line, in path order.
func (s *Store) Grep(ctx context.Context, pattern, dir string) ([]GrepMatch, error) {
	if pattern == "" {
		return nil, fmt.Errorf("grep pattern is required")
	}

	paths, err := s.Ls(ctx, dir, "")
	if err != nil {
		return nil, err
	}

	needle := strings.ToLower(pattern)
	var matches []GrepMatch
	for _, rel := range paths {
		data, err := os.ReadFile(filepath.Join(s.root, rel))
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", rel, err)
		}
		for i, line := range strings.Split(string(data), "\n") {
			if strings.Contains(strings.ToLower(line), needle) {
				matches = append(matches, GrepMatch{File: rel, Line: i + 1, Content: line})
			}
		}
	}
	return matches, nil
}

// Versions returns a file's version history, newest first.
func (s *Store) Versions(ctx context.Context, path string) ([]*models.FileVersion, error) {
	_, rel, err := s.resolve(path)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	record, err := s.db.GetFileByPath(s.workspaceID, rel)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, fmt.Errorf("%s: %w", rel, ErrFileNotFound)
	}
	return s.db.ListFileVersions(record.ID)
}

// ReadVersion returns the content of one historical version of path.
func (s *Store) ReadVersion(ctx context.Context, path string, version int) (string, error) {
	_, rel, err := s.resolve(path)
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

	v, err := s.db.GetFileVersion(record.ID, version)
	if err != nil {
		return "", err
	}
	if v == nil {
		return "", fmt.Errorf("%s version %d: %w", rel, version, ErrFileNotFound)
	}

	data, err := os.ReadFile(filepath.Join(s.root, v.SnapshotPath))
	if err != nil {
		return "", fmt.Errorf("read snapshot for %s v%d: %w", rel, version, err)
	}
	return string(data), nil
}
