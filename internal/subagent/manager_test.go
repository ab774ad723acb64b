package subagent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/quillworks/quill/pkg/models"
)

type fakeGenerator struct {
	mu    sync.Mutex
	calls int
	fn    func(system string, messages []models.Message) (string, error)
}

func (f *fakeGenerator) Generate(_ context.Context, system string, messages []models.Message) (string, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.fn == nil {
		return "ok", nil
	}
	return f.fn(system, messages)
}

func (f *fakeGenerator) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func TestSpawnRejectsUnknownType(t *testing.T) {
	m := NewManager(&fakeGenerator{}, nil)

	_, err := m.Spawn(context.Background(), models.AgentType("poet"), "write a sonnet", nil, 0)
	if !errors.Is(err, ErrUnknownAgentType) {
		t.Fatalf("expected ErrUnknownAgentType, got %v", err)
	}
}

func TestSpawnRequiresTask(t *testing.T) {
	m := NewManager(&fakeGenerator{}, nil)

	_, err := m.Spawn(context.Background(), models.AgentTypeResearch, "", nil, 0)
	if err == nil {
		t.Fatal("expected error for empty task")
	}
}

func TestSpawnRegistersPendingAgent(t *testing.T) {
	m := NewManager(&fakeGenerator{}, nil)
	caller := []models.Message{
		{Role: models.RoleUser, Content: "draft an article about tide pools"},
	}

	id, err := m.Spawn(context.Background(), models.AgentTypeResearch, "find sources on tide pools", caller, 0)
	if err != nil {
		t.Fatalf("Spawn failed: %v", err)
	}

	agent := m.Get(id)
	if agent == nil {
		t.Fatal("expected agent to be registered")
	}
	if agent.Type != models.AgentTypeResearch {
		t.Errorf("expected type research, got %s", agent.Type)
	}
	if agent.Task != "find sources on tide pools" {
		t.Errorf("unexpected task: %q", agent.Task)
	}
	if agent.Status != models.AgentStatusPending {
		t.Errorf("expected status pending, got %s", agent.Status)
	}
	if len(agent.Messages) != 1 || agent.Messages[0].Content != caller[0].Content {
		t.Errorf("expected caller context to be carried over, got %+v", agent.Messages)
	}
}

func TestSpawnIsolatesCallerContext(t *testing.T) {
	m := NewManager(&fakeGenerator{}, nil)
	caller := []models.Message{
		{Role: models.RoleUser, Content: "original"},
	}

	id, err := m.Spawn(context.Background(), models.AgentTypeEditing, "polish the draft", caller, 0)
	if err != nil {
		t.Fatalf("Spawn failed: %v", err)
	}

	caller[0].Content = "mutated by caller"

	agent := m.Get(id)
	if agent.Messages[0].Content != "original" {
		t.Errorf("agent context was mutated through the caller slice: %q", agent.Messages[0].Content)
	}

	// Mutating the returned copy must not reach the registered agent either.
	agent.Messages[0].Content = "mutated by reader"
	if again := m.Get(id); again.Messages[0].Content != "original" {
		t.Errorf("agent context was mutated through a Get copy: %q", again.Messages[0].Content)
	}
}

func TestCoordinateExecutesAllAgents(t *testing.T) {
	gen := &fakeGenerator{
		fn: func(system string, messages []models.Message) (string, error) {
			task := messages[len(messages)-1].Content
			return "done: " + task, nil
		},
	}
	m := NewManager(gen, nil)

	var ids []string
	for i := 0; i < 3; i++ {
		id, err := m.Spawn(context.Background(), models.AgentTypeResearch, fmt.Sprintf("task-%d", i), nil, 0)
		if err != nil {
			t.Fatalf("Spawn failed: %v", err)
		}
		ids = append(ids, id)
	}

	results, err := m.Coordinate(context.Background(), ids)
	if err != nil {
		t.Fatalf("Coordinate failed: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}

	for i, id := range ids {
		res := results[id]
		if res.Err != nil {
			t.Errorf("agent %d failed: %v", i, res.Err)
		}
		want := fmt.Sprintf("done: task-%d", i)
		if res.Output != want {
			t.Errorf("agent %d: expected %q, got %q", i, want, res.Output)
		}

		agent := m.Get(id)
		if agent.Status != models.AgentStatusCompleted {
			t.Errorf("agent %d: expected status completed, got %s", i, agent.Status)
		}
		if agent.Result != want {
			t.Errorf("agent %d: expected result %q, got %q", i, want, agent.Result)
		}
	}
}

func TestCoordinateIsolatesSiblingFailure(t *testing.T) {
	gen := &fakeGenerator{
		fn: func(system string, messages []models.Message) (string, error) {
			task := messages[len(messages)-1].Content
			if strings.Contains(task, "fail") {
				return "", errors.New("model unavailable")
			}
			return "verified", nil
		},
	}
	m := NewManager(gen, nil)

	good, err := m.Spawn(context.Background(), models.AgentTypeFactCheck, "check the statistics", nil, 0)
	if err != nil {
		t.Fatalf("Spawn failed: %v", err)
	}
	bad, err := m.Spawn(context.Background(), models.AgentTypeFactCheck, "fail on purpose", nil, 0)
	if err != nil {
		t.Fatalf("Spawn failed: %v", err)
	}

	results, err := m.Coordinate(context.Background(), []string{good, bad})
	if err != nil {
		t.Fatalf("Coordinate failed: %v", err)
	}

	if results[good].Err != nil {
		t.Errorf("healthy sibling failed: %v", results[good].Err)
	}
	if results[good].Output != "verified" {
		t.Errorf("expected healthy output, got %q", results[good].Output)
	}
	if results[bad].Err == nil {
		t.Error("expected failing agent to report an error")
	}

	if agent := m.Get(good); agent.Status != models.AgentStatusCompleted {
		t.Errorf("expected healthy agent completed, got %s", agent.Status)
	}
	failed := m.Get(bad)
	if failed.Status != models.AgentStatusFailed {
		t.Errorf("expected failing agent failed, got %s", failed.Status)
	}
	if failed.Err == "" {
		t.Error("expected failure message on the agent context")
	}
}

func TestCoordinateRejectsUnknownID(t *testing.T) {
	m := NewManager(&fakeGenerator{}, nil)

	id, err := m.Spawn(context.Background(), models.AgentTypeResearch, "look things up", nil, 0)
	if err != nil {
		t.Fatalf("Spawn failed: %v", err)
	}

	_, err = m.Coordinate(context.Background(), []string{id, "missing"})
	if !errors.Is(err, ErrAgentNotFound) {
		t.Fatalf("expected ErrAgentNotFound, got %v", err)
	}
}

func TestCoordinateBoundsConcurrency(t *testing.T) {
	var running, peak int32
	gen := &fakeGenerator{
		fn: func(system string, messages []models.Message) (string, error) {
			cur := atomic.AddInt32(&running, 1)
			for {
				old := atomic.LoadInt32(&peak)
				if cur <= old || atomic.CompareAndSwapInt32(&peak, old, cur) {
					break
				}
			}
			time.Sleep(20 * time.Millisecond)
			atomic.AddInt32(&running, -1)
			return "ok", nil
		},
	}
	m := NewManager(gen, nil, WithMaxWorkers(2))

	var ids []string
	for i := 0; i < 6; i++ {
		id, err := m.Spawn(context.Background(), models.AgentTypeTranslation, fmt.Sprintf("translate part %d", i), nil, 0)
		if err != nil {
			t.Fatalf("Spawn failed: %v", err)
		}
		ids = append(ids, id)
	}

	results, err := m.Coordinate(context.Background(), ids)
	if err != nil {
		t.Fatalf("Coordinate failed: %v", err)
	}
	if len(results) != 6 {
		t.Fatalf("expected 6 results, got %d", len(results))
	}
	if got := atomic.LoadInt32(&peak); got > 2 {
		t.Errorf("expected at most 2 concurrent executions, observed %d", got)
	}
}

func TestCollectResultsSkipsUnknownIDs(t *testing.T) {
	gen := &fakeGenerator{
		fn: func(system string, messages []models.Message) (string, error) {
			return "findings", nil
		},
	}
	m := NewManager(gen, nil)

	id, err := m.Spawn(context.Background(), models.AgentTypeResearch, "dig into archives", nil, 0)
	if err != nil {
		t.Fatalf("Spawn failed: %v", err)
	}
	if _, err := m.Coordinate(context.Background(), []string{id}); err != nil {
		t.Fatalf("Coordinate failed: %v", err)
	}

	collected := m.CollectResults([]string{id, "missing"})
	if len(collected) != 1 {
		t.Fatalf("expected 1 collected result, got %d", len(collected))
	}
	if collected[0].ID != id || collected[0].Result != "findings" {
		t.Errorf("unexpected collected result: %+v", collected[0])
	}
	if collected[0].Type != models.AgentTypeResearch {
		t.Errorf("expected type research, got %s", collected[0].Type)
	}
}

func TestRecordArtifactTracksScopedFiles(t *testing.T) {
	m := NewManager(&fakeGenerator{}, nil)

	id, err := m.Spawn(context.Background(), models.AgentTypeResearch, "collect references", nil, 0)
	if err != nil {
		t.Fatalf("Spawn failed: %v", err)
	}

	if err := m.RecordArtifact(id, "research/notes.md"); err != nil {
		t.Fatalf("RecordArtifact failed: %v", err)
	}
	if err := m.RecordMemories(id, []string{"mem-1", "mem-2"}); err != nil {
		t.Fatalf("RecordMemories failed: %v", err)
	}

	agent := m.Get(id)
	if len(agent.ScopedFiles) != 1 || agent.ScopedFiles[0] != "research/notes.md" {
		t.Errorf("unexpected scoped files: %v", agent.ScopedFiles)
	}
	if len(agent.ScopedMemories) != 2 {
		t.Errorf("unexpected scoped memories: %v", agent.ScopedMemories)
	}

	if err := m.RecordArtifact("missing", "x.md"); !errors.Is(err, ErrAgentNotFound) {
		t.Errorf("expected ErrAgentNotFound, got %v", err)
	}
}

func TestGetUnknownAgentReturnsNil(t *testing.T) {
	m := NewManager(&fakeGenerator{}, nil)
	if agent := m.Get("missing"); agent != nil {
		t.Errorf("expected nil for unknown agent, got %+v", agent)
	}
}
