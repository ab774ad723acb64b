// Package planner turns a writing goal into a validated, dependency-ordered
// task plan.
package planner

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/quillworks/quill/internal/api"
	"github.com/quillworks/quill/internal/graph"
	"github.com/quillworks/quill/internal/state"
	"github.com/quillworks/quill/pkg/models"
)

// ErrPlanNotFound is returned by plan-scoped operations when no plan with
// the given id exists.
var ErrPlanNotFound = errors.New("plan not found")

// maxTitleRunes caps the fallback task title derived from a goal.
const maxTitleRunes = 80

// plannedTask is the JSON structure the model returns for a single task.
// Dependencies reference sibling tasks by array index.
type plannedTask struct {
	Title        string `json:"title"`
	Description  string `json:"description"`
	Type         string `json:"type"`
	Priority     string `json:"priority"`
	Dependencies []int  `json:"dependencies"`
}

// DraftTask is one planned unit of work before IDs are assigned.
type DraftTask struct {
	Title        string
	Description  string
	Type         models.TaskType
	Priority     models.TaskPriority
	Dependencies []int
}

// Analysis is a goal decomposition prior to persistence.
type Analysis struct {
	Goal  string
	Tasks []DraftTask
}

// ValidationResult reports whether a plan's dependency relation is a DAG.
// An invalid plan is a result, not an error.
type ValidationResult struct {
	Valid  bool   `json:"valid"`
	Reason string `json:"reason,omitempty"`
}

// Planner decomposes goals into tasks and persists them as plans.
type Planner struct {
	gen api.Generator
	db  *state.DB
}

// New creates a planner backed by the given generator and state store.
func New(gen api.Generator, db *state.DB) *Planner {
	return &Planner{gen: gen, db: db}
}

// AnalyzeGoal asks the model to decompose a goal into tasks. Any generation
// or parse failure degrades to a single draft task carrying the raw goal,
// so the analysis is never empty and decomposition noise never surfaces as
// an error.
func (p *Planner) AnalyzeGoal(ctx context.Context, goal string, history []models.Message) (*Analysis, error) {
	if strings.TrimSpace(goal) == "" {
		return nil, fmt.Errorf("goal is required")
	}

	prompt := fmt.Sprintf(decompositionPrompt, goal)
	messages := make([]models.Message, 0, len(history)+1)
	messages = append(messages, history...)
	messages = append(messages, models.Message{Role: models.RoleUser, Content: prompt})

	reply, err := p.gen.Generate(ctx, plannerSystem, messages)
	if err != nil {
		log.Printf("[planner] decomposition failed, using single-task fallback: %v", err)
		return fallbackAnalysis(goal), nil
	}

	tasks, err := parsePlannedTasks(reply)
	if err != nil {
		log.Printf("[planner] unparsable decomposition, using single-task fallback: %v", err)
		return fallbackAnalysis(goal), nil
	}

	return &Analysis{Goal: goal, Tasks: tasks}, nil
}

// CreatePlan analyzes a goal and persists the resulting plan with all of
// its tasks in one transaction. Local dependency indices are remapped to
// the freshly assigned task IDs; out-of-range indices are dropped.
func (p *Planner) CreatePlan(ctx context.Context, workspaceID, goal string, history []models.Message) (*models.Plan, []*models.Task, error) {
	if workspaceID == "" {
		return nil, nil, fmt.Errorf("workspace id is required")
	}

	analysis, err := p.AnalyzeGoal(ctx, goal, history)
	if err != nil {
		return nil, nil, err
	}

	now := time.Now().UTC()
	plan := &models.Plan{
		ID:           uuid.New().String(),
		WorkspaceID:  workspaceID,
		Goal:         goal,
		SourcePrompt: goal,
		Status:       models.PlanStatusActive,
		CreatedAt:    now,
	}

	ids := make([]string, len(analysis.Tasks))
	for i := range ids {
		ids[i] = uuid.New().String()
	}

	tasks := make([]*models.Task, len(analysis.Tasks))
	for i, draft := range analysis.Tasks {
		task := &models.Task{
			ID:          ids[i],
			PlanID:      plan.ID,
			Title:       draft.Title,
			Description: draft.Description,
			Type:        draft.Type,
			Priority:    draft.Priority,
			Status:      models.TaskStatusPending,
			CreatedAt:   now,
		}
		for _, dep := range draft.Dependencies {
			if dep < 0 || dep >= len(ids) {
				continue
			}
			task.DependsOn = append(task.DependsOn, ids[dep])
		}
		tasks[i] = task
	}

	if err := p.db.CreatePlanWithTasks(plan, tasks); err != nil {
		return nil, nil, fmt.Errorf("persist plan: %w", err)
	}
	return plan, tasks, nil
}

// GetNextTask returns the first task in creation order that is pending with
// all dependencies completed, or nil when no task is eligible.
func (p *Planner) GetNextTask(ctx context.Context, planID string) (*models.Task, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	tasks, err := p.loadPlanTasks(planID)
	if err != nil {
		return nil, err
	}
	if len(tasks) == 0 {
		return nil, nil
	}

	g := graph.New()
	if err := g.Build(tasks); err != nil {
		return nil, fmt.Errorf("build dependency graph: %w", err)
	}
	return g.NextEligible(), nil
}

// ValidateDependencies checks that a plan's dependency relation is acyclic
// and closed over the plan's tasks. A bad plan yields Valid=false with the
// reason; the error return is reserved for storage failures.
func (p *Planner) ValidateDependencies(ctx context.Context, planID string) (*ValidationResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	tasks, err := p.loadPlanTasks(planID)
	if err != nil {
		return nil, err
	}

	g := graph.New()
	if err := g.Build(tasks); err != nil {
		return &ValidationResult{Valid: false, Reason: err.Error()}, nil
	}
	return &ValidationResult{Valid: true}, nil
}

// loadPlanTasks loads a plan's tasks, distinguishing a missing plan from a
// plan that merely has no tasks.
func (p *Planner) loadPlanTasks(planID string) ([]*models.Task, error) {
	plan, err := p.db.GetPlan(planID)
	if err != nil {
		return nil, fmt.Errorf("load plan: %w", err)
	}
	if plan == nil {
		return nil, fmt.Errorf("plan %s: %w", planID, ErrPlanNotFound)
	}

	tasks, err := p.db.ListTasksByPlan(planID)
	if err != nil {
		return nil, fmt.Errorf("load plan tasks: %w", err)
	}
	return tasks, nil
}

// parsePlannedTasks extracts the first JSON array from a model reply and
// decodes it. Unknown type and priority strings are normalized rather than
// rejected; a missing title fails the whole parse.
func parsePlannedTasks(reply string) ([]DraftTask, error) {
	start := strings.Index(reply, "[")
	end := strings.LastIndex(reply, "]")
	if start == -1 || end == -1 || end <= start {
		return nil, fmt.Errorf("no JSON array found in decomposition reply")
	}

	var raw []plannedTask
	if err := json.Unmarshal([]byte(reply[start:end+1]), &raw); err != nil {
		return nil, fmt.Errorf("unmarshal decomposition: %w", err)
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("empty task list returned")
	}

	tasks := make([]DraftTask, len(raw))
	for i, rt := range raw {
		if strings.TrimSpace(rt.Title) == "" {
			return nil, fmt.Errorf("task %d has no title", i)
		}
		tasks[i] = DraftTask{
			Title:        rt.Title,
			Description:  rt.Description,
			Type:         normalizeType(rt.Type),
			Priority:     normalizePriority(rt.Priority),
			Dependencies: rt.Dependencies,
		}
	}
	return tasks, nil
}

// normalizeType maps a model-supplied type string onto a known TaskType,
// defaulting to draft.
func normalizeType(s string) models.TaskType {
	typ := models.TaskType(strings.ToLower(strings.TrimSpace(s)))
	if typ.Valid() {
		return typ
	}
	return models.TaskTypeDraft
}

// normalizePriority maps a model-supplied priority string onto a known
// TaskPriority, defaulting to medium.
func normalizePriority(s string) models.TaskPriority {
	pri := models.TaskPriority(strings.ToLower(strings.TrimSpace(s)))
	if pri.Valid() {
		return pri
	}
	return models.PriorityMedium
}

// fallbackAnalysis is the single-task plan used when decomposition fails:
// one high-priority draft task carrying the goal verbatim.
func fallbackAnalysis(goal string) *Analysis {
	return &Analysis{
		Goal: goal,
		Tasks: []DraftTask{{
			Title:       titleFrom(goal),
			Description: goal,
			Type:        models.TaskTypeDraft,
			Priority:    models.PriorityHigh,
		}},
	}
}

// titleFrom derives a short title from a goal: its first line, capped.
func titleFrom(goal string) string {
	line := goal
	if idx := strings.IndexByte(line, '\n'); idx >= 0 {
		line = line[:idx]
	}
	line = strings.TrimSpace(line)
	if utf8.RuneCountInString(line) <= maxTitleRunes {
		return line
	}
	runes := []rune(line)
	return string(runes[:maxTitleRunes])
}
