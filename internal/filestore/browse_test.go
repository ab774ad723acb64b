package filestore

import (
	"context"
	"errors"
	"reflect"
	"testing"
)

func TestLs_SkipsInternalDirs(t *testing.T) {
	st, _ := setupStore(t)
	ctx := context.Background()

	writeFixture(t, st, "a.md", "alpha")
	writeFixture(t, st, "notes/b.md", "beta")

	// Snapshots under .versions and the database under .quill exist by now
	// but must not be listed.
	paths, err := st.Ls(ctx, "", "")
	if err != nil {
		t.Fatalf("Ls: %v", err)
	}

	want := []string{"a.md", "notes/b.md"}
	if !reflect.DeepEqual(paths, want) {
		t.Errorf("Ls = %v, want %v", paths, want)
	}
}

func TestLs_PatternFiltersBaseNames(t *testing.T) {
	st, _ := setupStore(t)
	ctx := context.Background()

	writeFixture(t, st, "post.md", "md")
	writeFixture(t, st, "data.json", "{}")
	writeFixture(t, st, "notes/extra.md", "md")

	paths, err := st.Ls(ctx, "", "*.md")
	if err != nil {
		t.Fatalf("Ls: %v", err)
	}

	want := []string{"notes/extra.md", "post.md"}
	if !reflect.DeepEqual(paths, want) {
		t.Errorf("Ls = %v, want %v", paths, want)
	}
}

func TestLs_ScopedToDir(t *testing.T) {
	st, _ := setupStore(t)
	ctx := context.Background()

	writeFixture(t, st, "top.md", "top")
	writeFixture(t, st, "notes/inner.md", "inner")

	paths, err := st.Ls(ctx, "notes", "")
	if err != nil {
		t.Fatalf("Ls: %v", err)
	}

	want := []string{"notes/inner.md"}
	if !reflect.DeepEqual(paths, want) {
		t.Errorf("Ls = %v, want %v", paths, want)
	}
}

func TestLs_MissingDirIsEmpty(t *testing.T) {
	st, _ := setupStore(t)

	paths, err := st.Ls(context.Background(), "missing", "")
	if err != nil {
		t.Fatalf("Ls: %v", err)
	}
	if len(paths) != 0 {
		t.Errorf("expected no paths, got %v", paths)
	}
}

func TestLs_EscapeRejected(t *testing.T) {
	st, _ := setupStore(t)

	if _, err := st.Ls(context.Background(), "../elsewhere", ""); !errors.Is(err, ErrPathOutsideWorkspace) {
		t.Errorf("expected ErrPathOutsideWorkspace, got %v", err)
	}
}

func TestGrep_CaseInsensitive(t *testing.T) {
	st, _ := setupStore(t)
	ctx := context.Background()

	writeFixture(t, st, "doc.md", "Hello World\nsecond line\nhello again")

	matches, err := st.Grep(ctx, "HELLO", "")
	if err != nil {
		t.Fatalf("Grep: %v", err)
	}
	if len(matches) != 2 {
		t.Fatalf("expected 2 matches, got %d", len(matches))
	}
	if matches[0].File != "doc.md" || matches[0].Line != 1 || matches[0].Content != "Hello World" {
		t.Errorf("matches[0] = %+v", matches[0])
	}
	if matches[1].Line != 3 {
		t.Errorf("matches[1].Line = %d, want 3", matches[1].Line)
	}
}

func TestGrep_AcrossFiles(t *testing.T) {
	st, _ := setupStore(t)
	ctx := context.Background()

	writeFixture(t, st, "a.md", "needle here")
	writeFixture(t, st, "b.md", "nothing")
	writeFixture(t, st, "c/d.md", "another needle")

	matches, err := st.Grep(ctx, "needle", "")
	if err != nil {
		t.Fatalf("Grep: %v", err)
	}
	if len(matches) != 2 {
		t.Fatalf("expected 2 matches, got %d", len(matches))
	}
	// Path order from Ls.
	if matches[0].File != "a.md" || matches[1].File != "c/d.md" {
		t.Errorf("match files = %s, %s", matches[0].File, matches[1].File)
	}
}

func TestGrep_EmptyPattern(t *testing.T) {
	st, _ := setupStore(t)

	if _, err := st.Grep(context.Background(), "", ""); err == nil {
		t.Fatal("expected error for empty pattern")
	}
}

func TestReadVersion_HistoricalContent(t *testing.T) {
	st, _ := setupStore(t)
	ctx := context.Background()

	writeFixture(t, st, "doc.md", "version one")
	if _, err := st.Write(ctx, "doc.md", "version two", "", "test"); err != nil {
		t.Fatalf("Write: %v", err)
	}

	v1, err := st.ReadVersion(ctx, "doc.md", 1)
	if err != nil {
		t.Fatalf("ReadVersion(1): %v", err)
	}
	if v1 != "version one" {
		t.Errorf("v1 = %q", v1)
	}

	v2, err := st.ReadVersion(ctx, "doc.md", 2)
	if err != nil {
		t.Fatalf("ReadVersion(2): %v", err)
	}
	if v2 != "version two" {
		t.Errorf("v2 = %q", v2)
	}
}

func TestReadVersion_MissingVersion(t *testing.T) {
	st, _ := setupStore(t)
	writeFixture(t, st, "doc.md", "content")

	if _, err := st.ReadVersion(context.Background(), "doc.md", 99); !errors.Is(err, ErrFileNotFound) {
		t.Errorf("expected ErrFileNotFound, got %v", err)
	}
}

func TestVersions_MissingFile(t *testing.T) {
	st, _ := setupStore(t)

	if _, err := st.Versions(context.Background(), "nope.md"); !errors.Is(err, ErrFileNotFound) {
		t.Errorf("expected ErrFileNotFound, got %v", err)
	}
}
