package filestore

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/quillworks/quill/pkg/models"
)

// LineEdit replaces an inclusive, 1-indexed line range with new content.
// NewContent may span multiple lines; it is split on "\n" when spliced.
type LineEdit struct {
	StartLine  int    `json:"start_line"`
	EndLine    int    `json:"end_line"`
	NewContent string `json:"new_content"`
}

// Edit replaces the first literal occurrence of matchText in the file at
// path and writes the result as a new version. When matchText does not
// occur, nothing is written and ErrMatchNotFound is returned.
func (s *Store) Edit(ctx context.Context, path, matchText, newText, editedBy string) (*models.FileRecord, error) {
	if matchText == "" {
		return nil, fmt.Errorf("empty match text: %w", ErrMatchNotFound)
	}

	abs, rel, err := s.resolve(path)
	if err != nil {
		return nil, err
	}

	// Hold the path lock across read-modify-write so a concurrent writer
	// cannot slip in between.
	lock := s.pathLock(rel)
	lock.Lock()
	defer lock.Unlock()

	record, content, err := s.currentLocked(rel, abs)
	if err != nil {
		return nil, err
	}

	idx := strings.Index(content, matchText)
	if idx < 0 {
		return nil, fmt.Errorf("%s: %w", rel, ErrMatchNotFound)
	}

	updated := content[:idx] + newText + content[idx+len(matchText):]
	return s.writeLocked(ctx, abs, rel, updated, record.Category, editedBy)
}

// EditLines applies a batch of non-overlapping line-range replacements as
// one atomic write. Every edit is validated against the current content
// before any is applied; a single invalid edit leaves the file untouched.
func (s *Store) EditLines(ctx context.Context, path string, edits []LineEdit, editedBy string) (*models.FileRecord, error) {
	if len(edits) == 0 {
		return nil, fmt.Errorf("no edits given: %w", ErrInvalidLineRange)
	}

	abs, rel, err := s.resolve(path)
	if err != nil {
		return nil, err
	}

	lock := s.pathLock(rel)
	lock.Lock()
	defer lock.Unlock()

	record, content, err := s.currentLocked(rel, abs)
	if err != nil {
		return nil, err
	}

	lines := strings.Split(content, "\n")

	for _, edit := range edits {
		if edit.StartLine < 1 {
			return nil, fmt.Errorf("start line %d is before line 1: %w", edit.StartLine, ErrInvalidLineRange)
		}
		if edit.EndLine < edit.StartLine {
			return nil, fmt.Errorf("end line %d is before start line %d: %w", edit.EndLine, edit.StartLine, ErrInvalidLineRange)
		}
		if edit.EndLine > len(lines) {
			return nil, fmt.Errorf("end line %d exceeds %d lines: %w", edit.EndLine, len(lines), ErrInvalidLineRange)
		}
	}

	// Sort descending so splicing never shifts the line numbers of edits
	// that have not been applied yet.
	sorted := make([]LineEdit, len(edits))
	copy(sorted, edits)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].StartLine > sorted[j].StartLine })

	for i := 1; i < len(sorted); i++ {
		if sorted[i].EndLine >= sorted[i-1].StartLine {
			return nil, fmt.Errorf("lines %d-%d and %d-%d: %w",
				sorted[i].StartLine, sorted[i].EndLine,
				sorted[i-1].StartLine, sorted[i-1].EndLine, ErrOverlappingEdits)
		}
	}

	for _, edit := range sorted {
		replacement := strings.Split(edit.NewContent, "\n")
		rest := append([]string{}, lines[edit.EndLine:]...)
		lines = append(lines[:edit.StartLine-1], append(replacement, rest...)...)
	}

	return s.writeLocked(ctx, abs, rel, strings.Join(lines, "\n"), record.Category, editedBy)
}

// currentLocked loads the record and on-disk content for an existing file.
// The caller must hold the path lock.
func (s *Store) currentLocked(rel, abs string) (*models.FileRecord, string, error) {
	record, err := s.db.GetFileByPath(s.workspaceID, rel)
	if err != nil {
		return nil, "", err
	}
	if record == nil {
		return nil, "", fmt.Errorf("%s: %w", rel, ErrFileNotFound)
	}

	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, "", fmt.Errorf("read %s: %w", rel, err)
	}
	return record, string(data), nil
}
