package models

import "time"

// PlanStatus represents the lifecycle state of a plan. Status is
// informational only; it never gates task execution.
type PlanStatus string

const (
	// PlanStatusActive indicates the plan is current.
	PlanStatusActive PlanStatus = "active"
	// PlanStatusCompleted indicates all plan work finished.
	PlanStatusCompleted PlanStatus = "completed"
	// PlanStatusArchived indicates the plan was set aside.
	PlanStatusArchived PlanStatus = "archived"
)

// Valid returns true if the status is a known value.
func (s PlanStatus) Valid() bool {
	switch s {
	case PlanStatusActive, PlanStatusCompleted, PlanStatusArchived:
		return true
	default:
		return false
	}
}

// Plan is an ordered collection of tasks derived from a single goal.
// A plan owns its tasks: deleting the plan deletes them. The dependency
// relation over a plan's tasks must be acyclic.
type Plan struct {
	// ID is the unique identifier for this plan.
	ID string `json:"id"`
	// WorkspaceID scopes the plan to a workspace.
	WorkspaceID string `json:"workspace_id"`
	// Goal is the objective the plan decomposes.
	Goal string `json:"goal"`
	// SourcePrompt is the raw caller input the goal was extracted from.
	SourcePrompt string `json:"source_prompt,omitempty"`
	// Status is the informational lifecycle state.
	Status PlanStatus `json:"status"`
	// CreatedAt is when the plan was created.
	CreatedAt time.Time `json:"created_at"`
}
