//go:build integration

package integration

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/quillworks/quill/internal/filestore"
	"github.com/quillworks/quill/internal/memory"
	"github.com/quillworks/quill/internal/orchestrator"
	"github.com/quillworks/quill/internal/state"
	"github.com/quillworks/quill/internal/vector"
	"github.com/quillworks/quill/pkg/models"
)

// TestMemoryVectorRecall tests memory storage and recall through the
// persistent vector index, including survival across an index reopen.
func TestMemoryVectorRecall(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "quill-integration-*")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tmpDir)

	db, err := state.Open(filepath.Join(tmpDir, ".quill", "quill.db"))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer db.Close()
	if err := db.Migrate(); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}

	vectorPath := filepath.Join(tmpDir, ".quill", "vectors")
	idx, err := vector.Open(vector.Config{Path: vectorPath})
	if err != nil {
		t.Fatalf("vector.Open() error = %v", err)
	}

	ctx := context.Background()
	mem := memory.New(db, idx)

	// Step 1: Store records of different types and subjects
	harbor, err := mem.StoreKnowledge(ctx, "ws-recall", "Harbor light history",
		"The harbor light was first lit in 1821 and electrified in 1923.", []string{"history"})
	if err != nil {
		t.Fatalf("StoreKnowledge() error = %v", err)
	}
	if _, err := mem.StoreKnowledge(ctx, "ws-recall", "Sourdough starter care",
		"A sourdough starter needs twice-daily feeding in warm weather.", []string{"baking"}); err != nil {
		t.Fatalf("StoreKnowledge() error = %v", err)
	}
	breakwater, err := mem.StoreGlossary(ctx, "ws-recall", "Breakwater",
		"A structure built out from a shore to protect a harbor from waves.")
	if err != nil {
		t.Fatalf("StoreGlossary() error = %v", err)
	}

	// Step 2: Every record was indexed, not just persisted
	if idx.Count() != 3 {
		t.Fatalf("Index Count() = %d, want 3", idx.Count())
	}
	if harbor.EmbeddingID == "" {
		t.Error("Knowledge record has no embedding ID after indexing")
	}

	// Step 3: Similarity recall surfaces the right record first
	records, err := mem.Load(ctx, "ws-recall", "when was the harbor light first lit", "", 2)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(records) == 0 {
		t.Fatal("Load() returned no records")
	}
	if records[0].ID != harbor.ID {
		t.Errorf("Load() first record = %q, want the harbor light record", records[0].Title)
	}

	// Step 4: Type filter narrows recall to one record type
	records, err = mem.Load(ctx, "ws-recall", "harbor", models.MemoryTypeGlossary, 5)
	if err != nil {
		t.Fatalf("Load() with type filter error = %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("Load(glossary) = %d records, want 1", len(records))
	}
	if records[0].ID != breakwater.ID {
		t.Errorf("Load(glossary) = %q, want the breakwater record", records[0].Title)
	}

	// Step 5: Recall survives reopening the persistent index
	reopened, err := vector.Open(vector.Config{Path: vectorPath})
	if err != nil {
		t.Fatalf("vector.Open() reopen error = %v", err)
	}
	if reopened.Count() != 3 {
		t.Fatalf("Reopened index Count() = %d, want 3", reopened.Count())
	}

	records, err = memory.New(db, reopened).Load(ctx, "ws-recall", "when was the harbor light first lit", "", 2)
	if err != nil {
		t.Fatalf("Load() after reopen error = %v", err)
	}
	if len(records) == 0 || records[0].ID != harbor.ID {
		t.Error("Recall after reopen did not surface the harbor light record first")
	}
}

// TestMemoryShapesRunContext tests that stored memories reach a run's
// planning conversation through the vector-backed memory store.
func TestMemoryShapesRunContext(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "quill-integration-*")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tmpDir)

	db, err := state.Open(filepath.Join(tmpDir, ".quill", "quill.db"))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer db.Close()
	if err := db.Migrate(); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}

	files, err := filestore.New(tmpDir, db, "ws-context")
	if err != nil {
		t.Fatalf("filestore.New() error = %v", err)
	}

	idx, err := vector.Open(vector.Config{Path: filepath.Join(tmpDir, ".quill", "vectors")})
	if err != nil {
		t.Fatalf("vector.Open() error = %v", err)
	}
	mem := memory.New(db, idx)

	ctx := context.Background()
	if _, err := mem.StoreStyle(ctx, "ws-context", "House tone",
		"Short sentences. Concrete nouns. No jargon.", nil); err != nil {
		t.Fatalf("StoreStyle() error = %v", err)
	}

	gen := &scriptedGen{}
	orch, err := orchestrator.New(orchestrator.Config{DB: db, Gen: gen, Files: files, Memory: mem})
	if err != nil {
		t.Fatalf("orchestrator.New() error = %v", err)
	}
	defer orch.Close()

	if _, err := orch.Run(ctx, "ws-context", "write about the harbor light"); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	// The first generation is the plan decomposition; the style note must
	// already be part of its conversation.
	first := gen.firstCall()
	if first == nil {
		t.Fatal("Generator was never called")
	}
	var sawStyle bool
	for _, msg := range first.messages {
		if strings.Contains(msg.Content, "Workspace style note") &&
			strings.Contains(msg.Content, "Short sentences. Concrete nouns.") {
			sawStyle = true
		}
	}
	if !sawStyle {
		t.Error("Plan decomposition did not receive the stored style note")
	}
}
