package filestore

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/quillworks/quill/internal/state"
)

func setupStore(t *testing.T) (*Store, string) {
	t.Helper()
	root := t.TempDir()

	db, err := state.Open(filepath.Join(root, ".quill", "quill.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := db.Migrate(); err != nil {
		t.Fatalf("Migrate: %v", err)
	}

	st, err := New(root, db, "ws-test")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return st, root
}

func TestWrite_CreatesRecordAndSnapshot(t *testing.T) {
	st, root := setupStore(t)
	ctx := context.Background()

	content := "# Draft\n\nOpening paragraph."
	record, err := st.Write(ctx, "drafts/post.md", content, "draft", "run-1")
	if err != nil {
		t.Fatalf("Write: %v", err)
	}

	if record.Path != "drafts/post.md" {
		t.Errorf("Path = %q", record.Path)
	}
	if record.CurrentVersion != 1 {
		t.Errorf("CurrentVersion = %d, want 1", record.CurrentVersion)
	}
	if record.Size != int64(len(content)) {
		t.Errorf("Size = %d, want %d", record.Size, len(content))
	}
	if record.Category != "draft" {
		t.Errorf("Category = %q", record.Category)
	}

	sum := sha256.Sum256([]byte(content))
	if record.Checksum != hex.EncodeToString(sum[:]) {
		t.Errorf("Checksum = %q", record.Checksum)
	}

	onDisk, err := os.ReadFile(filepath.Join(root, "drafts", "post.md"))
	if err != nil {
		t.Fatalf("read file: %v", err)
	}
	if string(onDisk) != content {
		t.Errorf("on-disk content = %q", onDisk)
	}

	snapshot := filepath.Join(root, ".versions", record.ID, "v1")
	snapData, err := os.ReadFile(snapshot)
	if err != nil {
		t.Fatalf("read snapshot: %v", err)
	}
	if string(snapData) != content {
		t.Errorf("snapshot content = %q", snapData)
	}
}

func TestWrite_SecondWriteBumpsVersion(t *testing.T) {
	st, _ := setupStore(t)
	ctx := context.Background()

	if _, err := st.Write(ctx, "doc.md", "first", "draft", "run-1"); err != nil {
		t.Fatalf("Write: %v", err)
	}
	record, err := st.Write(ctx, "doc.md", "second", "", "run-1")
	if err != nil {
		t.Fatalf("Write: %v", err)
	}

	if record.CurrentVersion != 2 {
		t.Errorf("CurrentVersion = %d, want 2", record.CurrentVersion)
	}
	// Category sticks from the first write when not re-specified.
	if record.Category != "draft" {
		t.Errorf("Category = %q, want draft", record.Category)
	}

	versions, err := st.Versions(ctx, "doc.md")
	if err != nil {
		t.Fatalf("Versions: %v", err)
	}
	if len(versions) != 2 {
		t.Fatalf("expected 2 versions, got %d", len(versions))
	}
	if versions[0].Version != 2 || versions[1].Version != 1 {
		t.Errorf("versions not newest first: %d, %d", versions[0].Version, versions[1].Version)
	}
}

func TestWrite_PathEscapeRejected(t *testing.T) {
	st, root := setupStore(t)
	ctx := context.Background()

	escapes := []string{
		"../escape.txt",
		"a/../../escape.txt",
		"/etc/passwd",
		"",
		".",
	}
	for _, path := range escapes {
		if _, err := st.Write(ctx, path, "x", "", ""); !errors.Is(err, ErrPathOutsideWorkspace) {
			t.Errorf("Write(%q): expected ErrPathOutsideWorkspace, got %v", path, err)
		}
	}

	if _, err := os.Stat(filepath.Join(filepath.Dir(root), "escape.txt")); !os.IsNotExist(err) {
		t.Error("escape file was created outside the workspace")
	}
}

func TestWrite_NormalizesPath(t *testing.T) {
	st, _ := setupStore(t)
	ctx := context.Background()

	record, err := st.Write(ctx, "sub/../doc.md", "content", "", "")
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if record.Path != "doc.md" {
		t.Errorf("Path = %q, want doc.md", record.Path)
	}

	got, err := st.Read(ctx, "doc.md")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if got != "content" {
		t.Errorf("Read = %q", got)
	}
}

func TestRead_ByteExact(t *testing.T) {
	st, _ := setupStore(t)
	ctx := context.Background()

	content := "ünïcode line\n\ttabbed\ntrailing newline\n"
	if _, err := st.Write(ctx, "exact.txt", content, "", ""); err != nil {
		t.Fatalf("Write: %v", err)
	}

	got, err := st.Read(ctx, "exact.txt")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if got != content {
		t.Errorf("round trip mismatch: %q != %q", got, content)
	}
}

func TestRead_MissingFile(t *testing.T) {
	st, _ := setupStore(t)

	_, err := st.Read(context.Background(), "nope.md")
	if !errors.Is(err, ErrFileNotFound) {
		t.Errorf("expected ErrFileNotFound, got %v", err)
	}
}

func TestConcurrentWritesSamePath_LinearHistory(t *testing.T) {
	st, _ := setupStore(t)
	ctx := context.Background()

	const writers = 10
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			content := fmt.Sprintf("writer %d content", n)
			if _, err := st.Write(ctx, "shared.md", content, "", fmt.Sprintf("agent-%d", n)); err != nil {
				t.Errorf("Write: %v", err)
			}
		}(i)
	}
	wg.Wait()

	versions, err := st.Versions(ctx, "shared.md")
	if err != nil {
		t.Fatalf("Versions: %v", err)
	}
	if len(versions) != writers {
		t.Fatalf("expected %d versions, got %d", writers, len(versions))
	}
	// Version numbers must be a contiguous descending sequence: no lost
	// updates, no duplicates.
	for i, v := range versions {
		want := writers - i
		if v.Version != want {
			t.Errorf("versions[%d].Version = %d, want %d", i, v.Version, want)
		}
	}

	// The current content matches the newest snapshot.
	current, err := st.Read(ctx, "shared.md")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	last, err := st.ReadVersion(ctx, "shared.md", writers)
	if err != nil {
		t.Fatalf("ReadVersion: %v", err)
	}
	if current != last {
		t.Errorf("current content %q != newest snapshot %q", current, last)
	}
}

func TestConcurrentWritesDistinctPaths(t *testing.T) {
	st, _ := setupStore(t)
	ctx := context.Background()

	const writers = 5
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			path := fmt.Sprintf("notes/n%d.md", n)
			if _, err := st.Write(ctx, path, "content", "", ""); err != nil {
				t.Errorf("Write(%s): %v", path, err)
			}
		}(i)
	}
	wg.Wait()

	for i := 0; i < writers; i++ {
		versions, err := st.Versions(ctx, fmt.Sprintf("notes/n%d.md", i))
		if err != nil {
			t.Fatalf("Versions: %v", err)
		}
		if len(versions) != 1 {
			t.Errorf("notes/n%d.md has %d versions, want 1", i, len(versions))
		}
	}
}

func TestShouldExternalize_Threshold(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    bool
	}{
		{"empty", "", false},
		{"small", "short note", false},
		{"exactly at threshold", strings.Repeat("a", ExternalizeThreshold), false},
		{"one over threshold", strings.Repeat("a", ExternalizeThreshold+1), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ShouldExternalize(tt.content); got != tt.want {
				t.Errorf("ShouldExternalize(len=%d) = %v, want %v", len(tt.content), got, tt.want)
			}
		})
	}
}

func TestDetectMime(t *testing.T) {
	if got := detectMime("data/config.json"); !strings.HasPrefix(got, "application/json") {
		t.Errorf("detectMime(.json) = %q", got)
	}
	if got := detectMime("README"); got != "text/plain" {
		t.Errorf("detectMime(no extension) = %q, want text/plain", got)
	}
}
