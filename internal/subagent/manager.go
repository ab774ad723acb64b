// Package subagent runs typed, isolated sub-agents under a bounded worker
// pool. Each agent gets a private, budget-filtered copy of the caller's
// conversation; executing one never mutates the caller or a sibling.
package subagent

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/quillworks/quill/internal/api"
	"github.com/quillworks/quill/pkg/models"
)

// defaultMaxWorkers bounds concurrent agent executions per Coordinate call.
const defaultMaxWorkers = 4

var (
	// ErrUnknownAgentType is returned by Spawn for an unrecognized type.
	ErrUnknownAgentType = errors.New("unknown agent type")
	// ErrAgentNotFound is returned when an agent ID is not registered.
	ErrAgentNotFound = errors.New("agent not found")
)

// Result is the outcome of one sub-agent execution.
type Result struct {
	// Output is the agent's reply on success.
	Output string
	// Err is the agent's failure, nil on success.
	Err error
}

// AgentResult is a read-only projection of an executed sub-agent.
type AgentResult struct {
	ID     string           `json:"id"`
	Type   models.AgentType `json:"type"`
	Task   string           `json:"task"`
	Result string           `json:"result"`
}

// Manager owns the sub-agents of a single orchestrator run. There is no
// process-wide registry; concurrent runs each hold their own Manager.
type Manager struct {
	gen        api.Generator
	profiles   Profiles
	maxWorkers int

	mu     sync.Mutex
	agents map[string]*models.SubAgentContext
}

// Option configures a Manager.
type Option func(*Manager)

// WithMaxWorkers bounds how many agents Coordinate executes at once.
func WithMaxWorkers(n int) Option {
	return func(m *Manager) {
		if n > 0 {
			m.maxWorkers = n
		}
	}
}

// NewManager creates a sub-agent manager for one run. A nil profiles map
// falls back to the compiled-in defaults.
func NewManager(gen api.Generator, profiles Profiles, opts ...Option) *Manager {
	if profiles == nil {
		profiles = DefaultProfiles()
	}
	m := &Manager{
		gen:        gen,
		profiles:   profiles,
		maxWorkers: defaultMaxWorkers,
		agents:     make(map[string]*models.SubAgentContext),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Spawn allocates a new agent of the given type. The caller's conversation
// is filtered to maxContextSize (see filterContext) and deep-copied into
// the agent's private message set. Returns the agent's ID.
func (m *Manager) Spawn(ctx context.Context, typ models.AgentType, task string, callerContext []models.Message, maxContextSize int) (string, error) {
	if !typ.Valid() {
		return "", fmt.Errorf("%q: %w", typ, ErrUnknownAgentType)
	}
	if task == "" {
		return "", fmt.Errorf("task description is required")
	}

	filtered := m.filterContext(ctx, task, callerContext, maxContextSize)

	// Private copy: the agent owns its messages from here on.
	messages := make([]models.Message, len(filtered))
	copy(messages, filtered)

	agent := &models.SubAgentContext{
		ID:        uuid.New().String(),
		Type:      typ,
		Task:      task,
		Messages:  messages,
		Status:    models.AgentStatusPending,
		CreatedAt: time.Now().UTC(),
	}

	m.mu.Lock()
	m.agents[agent.ID] = agent
	m.mu.Unlock()

	return agent.ID, nil
}

// Coordinate executes the listed agents concurrently under the worker
// bound. A failing agent is captured as its own Result and never affects a
// sibling. The returned map has one entry per listed agent.
func (m *Manager) Coordinate(ctx context.Context, ids []string) (map[string]Result, error) {
	m.mu.Lock()
	agents := make([]*models.SubAgentContext, 0, len(ids))
	for _, id := range ids {
		agent, ok := m.agents[id]
		if !ok {
			m.mu.Unlock()
			return nil, fmt.Errorf("%s: %w", id, ErrAgentNotFound)
		}
		agents = append(agents, agent)
	}
	m.mu.Unlock()

	results := make(map[string]Result, len(agents))
	var resultsMu sync.Mutex

	sem := make(chan struct{}, m.maxWorkers)
	var wg sync.WaitGroup
	for _, agent := range agents {
		wg.Add(1)
		go func(a *models.SubAgentContext) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			output, err := m.execute(ctx, a)

			resultsMu.Lock()
			results[a.ID] = Result{Output: output, Err: err}
			resultsMu.Unlock()
		}(agent)
	}
	wg.Wait()

	return results, nil
}

// execute runs one agent to completion: a single generation over the
// agent's private messages plus its task.
func (m *Manager) execute(ctx context.Context, agent *models.SubAgentContext) (string, error) {
	m.mu.Lock()
	agent.Status = models.AgentStatusRunning
	history := make([]models.Message, 0, len(agent.Messages)+1)
	history = append(history, agent.Messages...)
	m.mu.Unlock()

	history = append(history, models.Message{Role: models.RoleUser, Content: agent.Task})

	profile := m.profiles.For(agent.Type)
	output, err := m.gen.Generate(ctx, profile.SystemPrompt, history)

	m.mu.Lock()
	defer m.mu.Unlock()
	if err != nil {
		agent.Status = models.AgentStatusFailed
		agent.Err = err.Error()
		return "", fmt.Errorf("agent %s (%s): %w", agent.ID, agent.Type, err)
	}

	agent.Messages = append(agent.Messages,
		models.Message{Role: models.RoleUser, Content: agent.Task},
		models.Message{Role: models.RoleAssistant, Content: output},
	)
	agent.Result = output
	agent.Status = models.AgentStatusCompleted
	return output, nil
}

// CollectResults projects the already-executed agents with the given IDs.
// Unknown IDs are skipped.
func (m *Manager) CollectResults(ids []string) []AgentResult {
	m.mu.Lock()
	defer m.mu.Unlock()

	results := make([]AgentResult, 0, len(ids))
	for _, id := range ids {
		agent, ok := m.agents[id]
		if !ok {
			continue
		}
		results = append(results, AgentResult{
			ID:     agent.ID,
			Type:   agent.Type,
			Task:   agent.Task,
			Result: agent.Result,
		})
	}
	return results
}

// Get returns a copy of an agent's context, or nil if unknown. Returning
// a copy keeps callers from reaching into the agent's private state.
func (m *Manager) Get(id string) *models.SubAgentContext {
	m.mu.Lock()
	defer m.mu.Unlock()

	agent, ok := m.agents[id]
	if !ok {
		return nil
	}
	cp := *agent
	cp.Messages = append([]models.Message(nil), agent.Messages...)
	cp.ScopedFiles = append([]string(nil), agent.ScopedFiles...)
	cp.ScopedMemories = append([]string(nil), agent.ScopedMemories...)
	return &cp
}

// RecordArtifact notes a file path written on behalf of an agent.
func (m *Manager) RecordArtifact(id, path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	agent, ok := m.agents[id]
	if !ok {
		return fmt.Errorf("%s: %w", id, ErrAgentNotFound)
	}
	agent.ScopedFiles = append(agent.ScopedFiles, path)
	return nil
}

// RecordMemories notes the memory records attached to an agent's context.
func (m *Manager) RecordMemories(id string, memoryIDs []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	agent, ok := m.agents[id]
	if !ok {
		return fmt.Errorf("%s: %w", id, ErrAgentNotFound)
	}
	agent.ScopedMemories = append(agent.ScopedMemories, memoryIDs...)
	return nil
}
