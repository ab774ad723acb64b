//go:build integration

package integration

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/quillworks/quill/internal/filestore"
	"github.com/quillworks/quill/internal/orchestrator"
	"github.com/quillworks/quill/internal/state"
	"github.com/quillworks/quill/internal/subagent"
	"github.com/quillworks/quill/pkg/models"
)

// scriptedGen routes generations by prompt content so full runs execute
// without a live model. It records every call for later inspection.
type scriptedGen struct {
	mu    sync.Mutex
	calls []scriptedCall
}

type scriptedCall struct {
	system   string
	messages []models.Message
}

const runPlanReply = `[
  {"title": "Gather harbor facts", "description": "Collect dates and sources about the harbor", "type": "research", "priority": "high", "dependencies": []},
  {"title": "Draft the harbor piece", "description": "Write the piece from the findings", "type": "draft", "priority": "medium", "dependencies": [0]}
]`

const draftText = "The harbor light has guided ships home since 1821."

func (g *scriptedGen) Generate(_ context.Context, system string, messages []models.Message) (string, error) {
	g.mu.Lock()
	g.calls = append(g.calls, scriptedCall{system: system, messages: messages})
	g.mu.Unlock()

	last := messages[len(messages)-1].Content
	switch {
	case strings.Contains(last, "Return ONLY a JSON array"):
		return runPlanReply, nil
	case system == subagent.DefaultProfiles()[models.AgentTypeResearch].SystemPrompt:
		return "FINDINGS: the harbor light was first lit in 1821 and automated in 1962.", nil
	case strings.Contains(system, "professional writer"):
		return draftText, nil
	case strings.Contains(system, "reporting back"):
		return "Done. The piece is under drafts/.", nil
	default:
		return "", fmt.Errorf("unexpected generation with system prompt %q", system)
	}
}

func (g *scriptedGen) firstCall() *scriptedCall {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.calls) == 0 {
		return nil
	}
	c := g.calls[0]
	return &c
}

// TestEditorialRunLifecycle tests the full editorial cycle: an orchestrated
// run produces research and a draft, the draft is revised through the file
// store, and the version history, search, and audit trail all line up.
func TestEditorialRunLifecycle(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "quill-integration-*")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tmpDir)

	// Step 1: Open the workspace state and file store
	db, err := state.Open(filepath.Join(tmpDir, ".quill", "quill.db"))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer db.Close()
	if err := db.Migrate(); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}

	files, err := filestore.New(tmpDir, db, "ws-lifecycle")
	if err != nil {
		t.Fatalf("filestore.New() error = %v", err)
	}

	// Step 2: Execute a run against a scripted generator
	gen := &scriptedGen{}
	orch, err := orchestrator.New(orchestrator.Config{DB: db, Gen: gen, Files: files})
	if err != nil {
		t.Fatalf("orchestrator.New() error = %v", err)
	}
	defer orch.Close()

	ctx := context.Background()
	result, err := orch.Run(ctx, "ws-lifecycle", "write about the harbor light")
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if len(result.Files) != 2 {
		t.Fatalf("Run produced %d files, want 2: %v", len(result.Files), result.Files)
	}
	if !strings.HasPrefix(result.Files[0], "research/") {
		t.Errorf("Files[0] = %s, want research/ output first", result.Files[0])
	}
	if !strings.HasPrefix(result.Files[1], "drafts/") {
		t.Errorf("Files[1] = %s, want drafts/ output second", result.Files[1])
	}

	// Step 3: Verify the plan's tasks completed with their outputs recorded
	tasks, err := db.ListTasksByPlan(result.PlanID)
	if err != nil {
		t.Fatalf("ListTasksByPlan() error = %v", err)
	}
	if len(tasks) != 2 {
		t.Fatalf("ListTasksByPlan() = %d tasks, want 2", len(tasks))
	}
	for _, task := range tasks {
		if task.Status != models.TaskStatusCompleted {
			t.Errorf("Task %s status = %s, want completed", task.Title, task.Status)
		}
		if len(task.Outputs) != 1 {
			t.Errorf("Task %s has %d outputs, want 1", task.Title, len(task.Outputs))
		}
	}

	// Step 4: Revise the draft through Edit
	draftPath := result.Files[1]
	record, err := files.Edit(ctx, draftPath, "since 1821", "since the winter of 1821", "copyeditor")
	if err != nil {
		t.Fatalf("Edit() error = %v", err)
	}
	if record.CurrentVersion != 2 {
		t.Errorf("After Edit, CurrentVersion = %d, want 2", record.CurrentVersion)
	}

	// Step 5: Reshape the draft through EditLines
	record, err = files.EditLines(ctx, draftPath, []filestore.LineEdit{
		{
			StartLine:  1,
			EndLine:    1,
			NewContent: "The harbor light has guided ships home since the winter of 1821.\nIt was automated in 1962.",
		},
	}, "copyeditor")
	if err != nil {
		t.Fatalf("EditLines() error = %v", err)
	}
	if record.CurrentVersion != 3 {
		t.Errorf("After EditLines, CurrentVersion = %d, want 3", record.CurrentVersion)
	}

	// Step 6: Verify the version history survived every revision
	versions, err := files.Versions(ctx, draftPath)
	if err != nil {
		t.Fatalf("Versions() error = %v", err)
	}
	if len(versions) != 3 {
		t.Fatalf("Versions() = %d, want 3", len(versions))
	}
	if versions[0].Version != 3 {
		t.Errorf("Versions()[0].Version = %d, want newest first", versions[0].Version)
	}

	original, err := files.ReadVersion(ctx, draftPath, 1)
	if err != nil {
		t.Fatalf("ReadVersion(1) error = %v", err)
	}
	if original != draftText {
		t.Errorf("ReadVersion(1) = %q, want the unrevised draft", original)
	}

	current, err := files.Read(ctx, draftPath)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if !strings.Contains(current, "automated in 1962") {
		t.Errorf("Current content missing the EditLines revision: %q", current)
	}

	// Step 7: Search and browse find the revised text
	matches, err := files.Grep(ctx, "automated", "")
	if err != nil {
		t.Fatalf("Grep() error = %v", err)
	}
	if len(matches) != 1 {
		t.Fatalf("Grep(automated) = %d matches, want 1", len(matches))
	}
	if matches[0].File != draftPath || matches[0].Line != 2 {
		t.Errorf("Grep match = %s:%d, want %s:2", matches[0].File, matches[0].Line, draftPath)
	}

	listed, err := files.Ls(ctx, "", "*.md")
	if err != nil {
		t.Fatalf("Ls() error = %v", err)
	}
	if len(listed) != 2 {
		t.Errorf("Ls(*.md) = %d files, want 2: %v", len(listed), listed)
	}

	// Step 8: Verify the persisted audit trail
	run, err := db.GetRun(result.RunID)
	if err != nil {
		t.Fatalf("GetRun() error = %v", err)
	}
	if run.Status != models.RunStatusCompleted {
		t.Errorf("Run status = %s, want completed", run.Status)
	}
	if run.FinishedAt == nil {
		t.Error("Run FinishedAt not set")
	}
	if len(run.SubAgentIDs) != 1 {
		t.Errorf("Run SubAgentIDs = %d, want 1", len(run.SubAgentIDs))
	}

	steps, err := db.ListRunSteps(result.RunID)
	if err != nil {
		t.Fatalf("ListRunSteps() error = %v", err)
	}
	wantStates := []string{"ANALYZE", "PLAN", "EXECUTE_TASK", "REFLECT", "EXECUTE_TASK", "REFLECT", "RESPOND"}
	if len(steps) != len(wantStates) {
		t.Fatalf("ListRunSteps() = %d steps, want %d", len(steps), len(wantStates))
	}
	for i, step := range steps {
		if step.State != wantStates[i] {
			t.Errorf("Step %d state = %s, want %s", i, step.State, wantStates[i])
		}
		if step.Seq != i+1 {
			t.Errorf("Step %d seq = %d, want %d", i, step.Seq, i+1)
		}
	}
}

// TestConcurrentRunsShareWorkspace tests that two runs against the same
// workspace state do not interfere: each gets its own plan, tasks, files,
// and audit trail.
func TestConcurrentRunsShareWorkspace(t *testing.T) {
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

	files, err := filestore.New(tmpDir, db, "ws-shared")
	if err != nil {
		t.Fatalf("filestore.New() error = %v", err)
	}

	orch, err := orchestrator.New(orchestrator.Config{DB: db, Gen: &scriptedGen{}, Files: files})
	if err != nil {
		t.Fatalf("orchestrator.New() error = %v", err)
	}
	defer orch.Close()

	type outcome struct {
		result *orchestrator.RunResult
		err    error
	}
	outcomes := make(chan outcome, 2)
	for i := 0; i < 2; i++ {
		go func() {
			result, err := orch.Run(context.Background(), "ws-shared", "write about the harbor light")
			outcomes <- outcome{result, err}
		}()
	}

	var results []*orchestrator.RunResult
	for i := 0; i < 2; i++ {
		out := <-outcomes
		if out.err != nil {
			t.Fatalf("Run() error = %v", out.err)
		}
		results = append(results, out.result)
	}

	if results[0].RunID == results[1].RunID {
		t.Error("Concurrent runs shared a run ID")
	}
	if results[0].PlanID == results[1].PlanID {
		t.Error("Concurrent runs shared a plan ID")
	}

	// Each run produced its own two files; all four are distinct paths.
	seen := map[string]bool{}
	for _, r := range results {
		for _, f := range r.Files {
			if seen[f] {
				t.Errorf("File %s produced by both runs", f)
			}
			seen[f] = true
		}
	}
	if len(seen) != 4 {
		t.Errorf("Produced %d distinct files, want 4", len(seen))
	}

	// Both audit trails are complete and separate.
	for _, r := range results {
		steps, err := db.ListRunSteps(r.RunID)
		if err != nil {
			t.Fatalf("ListRunSteps(%s) error = %v", r.RunID, err)
		}
		if len(steps) != 7 {
			t.Errorf("Run %s recorded %d steps, want 7", r.RunID, len(steps))
		}
	}
}
