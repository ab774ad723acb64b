package models

import "time"

// TaskStatus represents the current state of a task.
type TaskStatus string

const (
	// TaskStatusPending indicates the task has not started.
	TaskStatusPending TaskStatus = "pending"
	// TaskStatusInProgress indicates the task is being worked on.
	TaskStatusInProgress TaskStatus = "in_progress"
	// TaskStatusBlocked indicates the task cannot proceed.
	TaskStatusBlocked TaskStatus = "blocked"
	// TaskStatusCompleted indicates the task completed successfully.
	TaskStatusCompleted TaskStatus = "completed"
)

// Valid returns true if the status is a known value.
func (s TaskStatus) Valid() bool {
	switch s {
	case TaskStatusPending, TaskStatusInProgress, TaskStatusBlocked, TaskStatusCompleted:
		return true
	default:
		return false
	}
}

// TaskType classifies the kind of writing work a task performs.
// Dispatch on task type is exhaustive; unknown types are rejected at
// plan-creation time, never silently skipped.
type TaskType string

const (
	// TaskTypeOutline produces a structural outline for the piece.
	TaskTypeOutline TaskType = "outline"
	// TaskTypeDraft produces prose directly.
	TaskTypeDraft TaskType = "draft"
	// TaskTypeResearch gathers supporting material via a research sub-agent.
	TaskTypeResearch TaskType = "research"
	// TaskTypeEdit revises previously produced content.
	TaskTypeEdit TaskType = "edit"
	// TaskTypePublish finalizes content for delivery.
	TaskTypePublish TaskType = "publish"
)

// Valid returns true if the type is a known value.
func (t TaskType) Valid() bool {
	switch t {
	case TaskTypeOutline, TaskTypeDraft, TaskTypeResearch, TaskTypeEdit, TaskTypePublish:
		return true
	default:
		return false
	}
}

// TaskPriority ranks tasks for display and planning.
type TaskPriority string

const (
	// PriorityLow marks optional or deferred work.
	PriorityLow TaskPriority = "low"
	// PriorityMedium is the default priority.
	PriorityMedium TaskPriority = "medium"
	// PriorityHigh marks work on the critical path.
	PriorityHigh TaskPriority = "high"
)

// Valid returns true if the priority is a known value.
func (p TaskPriority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	default:
		return false
	}
}

// Task represents a unit of work within a plan.
type Task struct {
	// ID is the unique identifier for this task.
	ID string `json:"id"`
	// PlanID is the ID of the plan that owns this task.
	PlanID string `json:"plan_id"`
	// Title is the short description of the task.
	Title string `json:"title"`
	// Description provides detailed information about the task.
	Description string `json:"description,omitempty"`
	// Type is the kind of writing work this task performs.
	Type TaskType `json:"type"`
	// Priority ranks the task relative to its siblings.
	Priority TaskPriority `json:"priority"`
	// Status is the current state of the task.
	Status TaskStatus `json:"status"`
	// DependsOn lists task IDs that must complete before this task.
	DependsOn []string `json:"depends_on,omitempty"`
	// Outputs lists file paths produced by this task.
	Outputs []string `json:"outputs,omitempty"`
	// AssignedTo is the ID of the sub-agent working on this task, if any.
	AssignedTo string `json:"assigned_to,omitempty"`
	// CreatedAt is when the task was created.
	CreatedAt time.Time `json:"created_at"`
	// StartedAt is when execution began, if it has.
	StartedAt *time.Time `json:"started_at,omitempty"`
	// CompletedAt is when the task was completed, if applicable.
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}
