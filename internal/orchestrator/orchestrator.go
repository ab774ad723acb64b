package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/quillworks/quill/internal/api"
	"github.com/quillworks/quill/internal/filestore"
	"github.com/quillworks/quill/internal/graph"
	"github.com/quillworks/quill/internal/memory"
	"github.com/quillworks/quill/internal/planner"
	"github.com/quillworks/quill/internal/signal"
	"github.com/quillworks/quill/internal/state"
	"github.com/quillworks/quill/internal/subagent"
	"github.com/quillworks/quill/pkg/models"
)

// State identifies a phase of the run state machine.
type State string

const (
	// StateAnalyze extracts the goal and loads memory context.
	StateAnalyze State = "ANALYZE"
	// StatePlan decomposes the goal into a validated plan.
	StatePlan State = "PLAN"
	// StateExecuteTask runs the next eligible task.
	StateExecuteTask State = "EXECUTE_TASK"
	// StateReflect decides whether to execute again or respond.
	StateReflect State = "REFLECT"
	// StateRespond synthesizes the final response.
	StateRespond State = "RESPOND"
)

const (
	// defaultContextBudget caps the conversation (in runes) handed to a
	// sub-agent before relevance filtering kicks in.
	defaultContextBudget = 20000
	// defaultEventBuffer is the event channel capacity.
	defaultEventBuffer = 100
)

// ErrRunStopped is returned when a stop signal halts the run between
// state transitions.
var ErrRunStopped = errors.New("run stopped by signal")

const writerSystem = `You are a professional writer executing one task of a larger writing plan. Produce the task's deliverable directly, with no preamble about the process.`

const respondSystem = `You are a writing assistant reporting back to the user. Be concrete about what was produced and where it is stored.`

// Config wires an Orchestrator. DB, Gen, and Files are required; the rest
// default sensibly.
type Config struct {
	// DB is the relational state store.
	DB *state.DB
	// Gen produces text for planning, task execution, and synthesis.
	Gen api.Generator
	// Files is the workspace file store task outputs land in.
	Files *filestore.Store
	// Memory retrieves long-term context. Nil falls back to a store
	// without a vector backend.
	Memory *memory.Store
	// Planner decomposes goals. Nil builds one from Gen and DB.
	Planner *planner.Planner
	// Profiles prime sub-agents by type. Nil uses the compiled-in defaults.
	Profiles subagent.Profiles
	// Signals watches for out-of-band stop/pause requests. Optional.
	Signals *signal.Manager
	// MaxWorkers bounds concurrent sub-agents per run. Zero means the
	// sub-agent manager default.
	MaxWorkers int
	// ContextBudget is the rune budget for sub-agent conversations.
	ContextBudget int
	// EventBuffer is the event channel capacity.
	EventBuffer int
}

// RunResult is what a completed run returns to the caller.
type RunResult struct {
	// Response is the synthesized reply.
	Response string `json:"response"`
	// Files lists the workspace paths produced during the run.
	Files []string `json:"files,omitempty"`
	// PlanID is the plan executed, if one was created.
	PlanID string `json:"plan_id,omitempty"`
	// RunID identifies the persisted run record.
	RunID string `json:"run_id"`
}

// Orchestrator executes writing runs. It holds only immutable wiring;
// everything mutable lives on the per-run state, so concurrent runs are
// independent.
type Orchestrator struct {
	db            *state.DB
	gen           api.Generator
	planner       *planner.Planner
	files         *filestore.Store
	memory        *memory.Store
	profiles      subagent.Profiles
	signals       *signal.Manager
	emitter       *eventEmitter
	maxWorkers    int
	contextBudget int
}

// run carries the mutable state of one Run invocation.
type run struct {
	id        string
	workspace string
	input     string
	goal      string
	planID    string
	record    *models.Run
	agents    *subagent.Manager
	graph     *graph.DependencyGraph
	history   []models.Message
	files     []string
	memoryIDs []string
	stepSeq   int
}

// New creates an orchestrator from the given wiring.
func New(cfg Config) (*Orchestrator, error) {
	if cfg.DB == nil {
		return nil, fmt.Errorf("state db is required")
	}
	if cfg.Gen == nil {
		return nil, fmt.Errorf("generator is required")
	}
	if cfg.Files == nil {
		return nil, fmt.Errorf("file store is required")
	}
	if cfg.Planner == nil {
		cfg.Planner = planner.New(cfg.Gen, cfg.DB)
	}
	if cfg.Memory == nil {
		cfg.Memory = memory.New(cfg.DB, nil)
	}
	if cfg.Profiles == nil {
		cfg.Profiles = subagent.DefaultProfiles()
	}
	if cfg.ContextBudget <= 0 {
		cfg.ContextBudget = defaultContextBudget
	}
	if cfg.EventBuffer <= 0 {
		cfg.EventBuffer = defaultEventBuffer
	}

	return &Orchestrator{
		db:            cfg.DB,
		gen:           cfg.Gen,
		planner:       cfg.Planner,
		files:         cfg.Files,
		memory:        cfg.Memory,
		profiles:      cfg.Profiles,
		signals:       cfg.Signals,
		emitter:       newEventEmitter(cfg.EventBuffer),
		maxWorkers:    cfg.MaxWorkers,
		contextBudget: cfg.ContextBudget,
	}, nil
}

// Events returns the progress event channel.
func (o *Orchestrator) Events() <-chan Event {
	return o.emitter.events
}

// DroppedEvents returns how many events were dropped because the channel
// was full.
func (o *Orchestrator) DroppedEvents() uint64 {
	return o.emitter.droppedCount()
}

// Close closes the event channel. Call only after all runs have returned.
func (o *Orchestrator) Close() {
	o.emitter.close()
}

// Run executes one writing run to completion. The run record is persisted
// at entry and finalized as completed or failed on exit.
func (o *Orchestrator) Run(ctx context.Context, workspaceID, input string) (*RunResult, error) {
	if workspaceID == "" {
		return nil, fmt.Errorf("workspace id is required")
	}

	var workers []subagent.Option
	if o.maxWorkers > 0 {
		workers = append(workers, subagent.WithMaxWorkers(o.maxWorkers))
	}

	r := &run{
		id:        uuid.New().String(),
		workspace: workspaceID,
		input:     strings.TrimSpace(input),
		agents:    subagent.NewManager(o.gen, o.profiles, workers...),
	}
	r.record = &models.Run{
		ID:          r.id,
		WorkspaceID: workspaceID,
		Status:      models.RunStatusRunning,
		StartedAt:   time.Now().UTC(),
	}
	if err := o.db.CreateRun(r.record); err != nil {
		return nil, fmt.Errorf("create run: %w", err)
	}
	o.emit(Event{Type: EventRunStarted, RunID: r.id, Message: r.input})

	result, err := o.drive(ctx, r)

	now := time.Now().UTC()
	r.record.FinishedAt = &now
	if err != nil {
		r.record.Status = models.RunStatusFailed
		if updateErr := o.db.UpdateRun(r.record); updateErr != nil {
			log.Printf("[orchestrator] persist failed run %s: %v", r.id, updateErr)
		}
		o.emit(Event{Type: EventRunFailed, RunID: r.id, Err: err})
		return nil, err
	}

	r.record.Status = models.RunStatusCompleted
	r.record.Response = result.Response
	if err := o.db.UpdateRun(r.record); err != nil {
		return nil, fmt.Errorf("persist run: %w", err)
	}
	o.emit(Event{Type: EventRunDone, RunID: r.id, Message: result.Response})
	return result, nil
}

// drive advances the state machine until RESPOND returns or a state fails.
func (o *Orchestrator) drive(ctx context.Context, r *run) (*RunResult, error) {
	current := StateAnalyze
	for {
		if err := o.interrupted(ctx); err != nil {
			return nil, err
		}
		o.enter(r, current)

		switch current {
		case StateAnalyze:
			o.analyze(ctx, r)
			if r.goal == "" {
				current = StateRespond
				continue
			}
			current = StatePlan

		case StatePlan:
			if err := o.plan(ctx, r); err != nil {
				return nil, err
			}
			current = StateExecuteTask

		case StateExecuteTask:
			if err := o.waitIfPaused(ctx); err != nil {
				return nil, err
			}
			if err := o.executeTask(ctx, r); err != nil {
				return nil, err
			}
			current = StateReflect

		case StateReflect:
			if r.graph != nil && r.graph.NextEligible() != nil {
				current = StateExecuteTask
			} else {
				current = StateRespond
			}

		case StateRespond:
			return o.respond(ctx, r)

		default:
			return nil, fmt.Errorf("unknown state %q", current)
		}
	}
}

// interrupted checks context cancellation and the external stop signal.
func (o *Orchestrator) interrupted(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	if o.signals != nil && o.signals.ShouldStop() {
		return ErrRunStopped
	}
	return nil
}

// waitIfPaused blocks while a pause signal is set. Stop signals and
// context cancellation take precedence over waiting.
func (o *Orchestrator) waitIfPaused(ctx context.Context) error {
	if o.signals == nil {
		return nil
	}
	for o.signals.ShouldPause() {
		if o.signals.ShouldStop() {
			return ErrRunStopped
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(200 * time.Millisecond):
		}
	}
	return nil
}

// enter records a state transition as a run step and emits an event. Step
// persistence is audit data; failures are logged, never fatal.
func (o *Orchestrator) enter(r *run, s State) {
	r.stepSeq++
	step := &models.RunStep{
		ID:        uuid.New().String(),
		RunID:     r.id,
		Seq:       r.stepSeq,
		State:     string(s),
		CreatedAt: time.Now().UTC(),
	}
	if err := o.db.AppendRunStep(step); err != nil {
		log.Printf("[orchestrator] append run step %s/%d: %v", r.id, r.stepSeq, err)
	}
	o.emit(Event{Type: EventStateEntered, RunID: r.id, State: s})
}

// analyze extracts the goal from the caller input and loads memory
// context. Memory failures are absorbed: a run never dies because
// retrieval did.
func (o *Orchestrator) analyze(ctx context.Context, r *run) {
	r.goal = r.input
	if r.goal == "" {
		return
	}

	records, err := o.memory.Load(ctx, r.workspace, r.goal, "", memory.DefaultTopK)
	if err != nil {
		log.Printf("[orchestrator] memory load for run %s: %v", r.id, err)
		records = nil
	}
	for _, rec := range records {
		r.memoryIDs = append(r.memoryIDs, rec.ID)
		r.history = append(r.history, models.Message{
			Role:    models.RoleUser,
			Content: fmt.Sprintf("Workspace %s note:\n%s", rec.Type, rec.SearchableText()),
		})
	}
	r.history = append(r.history, models.Message{Role: models.RoleUser, Content: r.goal})
}

// plan creates and validates the plan, then builds the run's dependency
// graph. An invalid plan is a run error: it is the one planner failure
// that must surface.
func (o *Orchestrator) plan(ctx context.Context, r *run) error {
	p, tasks, err := o.planner.CreatePlan(ctx, r.workspace, r.goal, r.history)
	if err != nil {
		return fmt.Errorf("create plan: %w", err)
	}
	r.planID = p.ID
	r.record.Goal = r.goal
	r.record.PlanID = p.ID

	result, err := o.planner.ValidateDependencies(ctx, p.ID)
	if err != nil {
		return fmt.Errorf("validate plan: %w", err)
	}
	if !result.Valid {
		return fmt.Errorf("plan %s rejected: %s", p.ID, result.Reason)
	}

	g := graph.New()
	if err := g.Build(tasks); err != nil {
		return fmt.Errorf("build dependency graph: %w", err)
	}
	r.graph = g
	return nil
}

// executeTask runs the next eligible task. No eligible task is not an
// error; REFLECT decides what happens next. Task failures propagate
// unwrapped in meaning: the run fails fast with no retry.
func (o *Orchestrator) executeTask(ctx context.Context, r *run) error {
	task := r.graph.NextEligible()
	if task == nil {
		return nil
	}

	o.emit(Event{Type: EventTaskStarted, RunID: r.id, TaskID: task.ID, TaskTitle: task.Title})

	var path string
	var err error
	switch task.Type {
	case models.TaskTypeResearch:
		path, err = o.runResearchTask(ctx, r, task)
	case models.TaskTypeOutline, models.TaskTypeDraft, models.TaskTypeEdit, models.TaskTypePublish:
		path, err = o.runDirectTask(ctx, r, task)
	default:
		err = fmt.Errorf("unhandled task type %q", task.Type)
	}
	if err != nil {
		return err
	}

	outputs := []string{path}
	if err := o.db.MarkTaskCompleted(task.ID, outputs, time.Now().UTC()); err != nil {
		return fmt.Errorf("mark task completed: %w", err)
	}
	task.Outputs = outputs
	r.graph.MarkCompleted(task.ID)
	r.files = append(r.files, path)

	o.emit(Event{Type: EventTaskCompleted, RunID: r.id, TaskID: task.ID, TaskTitle: task.Title, Message: path})
	return nil
}

// runResearchTask delegates a research task to an isolated sub-agent and
// stores its findings under research/.
func (o *Orchestrator) runResearchTask(ctx context.Context, r *run, task *models.Task) (string, error) {
	description := task.Description
	if description == "" {
		description = task.Title
	}

	taskContext, err := o.taskContext(ctx, r, task)
	if err != nil {
		return "", err
	}

	agentID, err := r.agents.Spawn(ctx, models.AgentTypeResearch, description, taskContext, o.contextBudget)
	if err != nil {
		return "", fmt.Errorf("spawn research agent: %w", err)
	}
	r.record.SubAgentIDs = append(r.record.SubAgentIDs, agentID)
	if len(r.memoryIDs) > 0 {
		if err := r.agents.RecordMemories(agentID, r.memoryIDs); err != nil {
			log.Printf("[orchestrator] record memories for agent %s: %v", agentID, err)
		}
	}
	o.emit(Event{Type: EventSubagentSpawned, RunID: r.id, TaskID: task.ID, TaskTitle: task.Title, AgentID: agentID})

	if err := o.db.MarkTaskStarted(task.ID, agentID, time.Now().UTC()); err != nil {
		return "", fmt.Errorf("mark task started: %w", err)
	}

	results, err := r.agents.Coordinate(ctx, []string{agentID})
	if err != nil {
		return "", fmt.Errorf("coordinate research agent: %w", err)
	}
	res := results[agentID]
	if res.Err != nil {
		return "", res.Err
	}

	path := "research/" + task.ID + ".md"
	if _, err := o.files.Write(ctx, path, res.Output, "research", agentID); err != nil {
		return "", fmt.Errorf("store research output: %w", err)
	}
	if err := r.agents.RecordArtifact(agentID, path); err != nil {
		log.Printf("[orchestrator] record artifact for agent %s: %v", agentID, err)
	}

	r.history = append(r.history,
		models.Message{Role: models.RoleUser, Content: taskPrompt(task)},
		models.Message{Role: models.RoleAssistant, Content: res.Output},
	)
	return path, nil
}

// runDirectTask executes outline, draft, edit, and publish tasks with a
// single generation and stores the output under drafts/.
func (o *Orchestrator) runDirectTask(ctx context.Context, r *run, task *models.Task) (string, error) {
	if err := o.db.MarkTaskStarted(task.ID, "", time.Now().UTC()); err != nil {
		return "", fmt.Errorf("mark task started: %w", err)
	}

	messages, err := o.taskContext(ctx, r, task)
	if err != nil {
		return "", err
	}
	prompt := taskPrompt(task)
	messages = append(messages, models.Message{Role: models.RoleUser, Content: prompt})

	output, err := o.gen.Generate(ctx, writerSystem, messages)
	if err != nil {
		return "", fmt.Errorf("execute task %s: %w", task.ID, err)
	}

	path := "drafts/" + task.ID + ".md"
	if _, err := o.files.Write(ctx, path, output, "draft", r.id); err != nil {
		return "", fmt.Errorf("store task output: %w", err)
	}

	r.history = append(r.history,
		models.Message{Role: models.RoleUser, Content: prompt},
		models.Message{Role: models.RoleAssistant, Content: output},
	)
	return path, nil
}

// taskContext assembles the messages a task execution sees: the run
// conversation plus the stored output of every dependency.
func (o *Orchestrator) taskContext(ctx context.Context, r *run, task *models.Task) ([]models.Message, error) {
	messages := append([]models.Message(nil), r.history...)
	for _, depID := range task.DependsOn {
		dep := r.graph.Get(depID)
		if dep == nil {
			continue
		}
		for _, out := range dep.Outputs {
			content, err := o.files.Read(ctx, out)
			if err != nil {
				return nil, fmt.Errorf("read dependency output %s: %w", out, err)
			}
			messages = append(messages, models.Message{
				Role:    models.RoleUser,
				Content: fmt.Sprintf("Output of %q (%s):\n%s", dep.Title, out, content),
			})
		}
	}
	return messages, nil
}

// respond synthesizes the final reply from the run conversation and the
// workspace drafts listing.
func (o *Orchestrator) respond(ctx context.Context, r *run) (*RunResult, error) {
	drafts, err := o.files.Ls(ctx, "drafts", "")
	if err != nil {
		return nil, fmt.Errorf("list drafts: %w", err)
	}

	messages := append([]models.Message(nil), r.history...)
	messages = append(messages, models.Message{Role: models.RoleUser, Content: respondPrompt(r, drafts)})

	response, err := o.gen.Generate(ctx, respondSystem, messages)
	if err != nil {
		return nil, fmt.Errorf("synthesize response: %w", err)
	}
	r.history = append(r.history, models.Message{Role: models.RoleAssistant, Content: response})

	return &RunResult{
		Response: response,
		Files:    r.files,
		PlanID:   r.planID,
		RunID:    r.id,
	}, nil
}

// taskPrompt renders a task into the instruction handed to the model.
func taskPrompt(task *models.Task) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Task (%s): %s", task.Type, task.Title)
	if task.Description != "" {
		b.WriteString("\n\n")
		b.WriteString(task.Description)
	}
	return b.String()
}

// respondPrompt renders the synthesis instruction for RESPOND.
func respondPrompt(r *run, drafts []string) string {
	if r.goal == "" {
		return "No writing goal was set. Write a short reply asking what the user would like to work on."
	}

	var b strings.Builder
	fmt.Fprintf(&b, "The goal was: %s\n", r.goal)
	if len(r.files) > 0 {
		b.WriteString("\nFiles produced this run:\n")
		for _, f := range r.files {
			fmt.Fprintf(&b, "- %s\n", f)
		}
	}
	if len(drafts) > 0 {
		b.WriteString("\nAll drafts in the workspace:\n")
		for _, f := range drafts {
			fmt.Fprintf(&b, "- %s\n", f)
		}
	}
	b.WriteString("\nWrite the final response: summarize what was produced and where it is stored.")
	return b.String()
}

// emit stamps and sends an event without blocking the run.
func (o *Orchestrator) emit(event Event) {
	event.Timestamp = time.Now().UTC()
	o.emitter.emit(event)
}
