package models

import "time"

// RunStatus represents the state of an orchestrator run.
type RunStatus string

const (
	// RunStatusPending indicates the run has not started.
	RunStatusPending RunStatus = "pending"
	// RunStatusRunning indicates the run is executing.
	RunStatusRunning RunStatus = "running"
	// RunStatusCompleted indicates the run finished and responded.
	RunStatusCompleted RunStatus = "completed"
	// RunStatusFailed indicates the run aborted with an error.
	RunStatusFailed RunStatus = "failed"
)

// Valid returns true if the status is a known value.
func (s RunStatus) Valid() bool {
	switch s {
	case RunStatusPending, RunStatusRunning, RunStatusCompleted, RunStatusFailed:
		return true
	default:
		return false
	}
}

// Run is the persisted record of one orchestrator execution.
type Run struct {
	// ID is the unique identifier for this run.
	ID string `json:"id"`
	// WorkspaceID scopes the run to a workspace.
	WorkspaceID string `json:"workspace_id"`
	// Goal is the objective extracted from the caller input.
	Goal string `json:"goal,omitempty"`
	// PlanID is the plan created for this run, if any.
	PlanID string `json:"plan_id,omitempty"`
	// Status is the current state of the run.
	Status RunStatus `json:"status"`
	// Response is the final synthesized reply.
	Response string `json:"response,omitempty"`
	// SubAgentIDs lists the sub-agent contexts spawned during the run.
	SubAgentIDs []string `json:"sub_agent_ids,omitempty"`
	// StartedAt is when the run began.
	StartedAt time.Time `json:"started_at"`
	// FinishedAt is when the run terminated, if it has.
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// RunStep is one recorded state transition within a run. Steps are
// append-only and exist for audit and display.
type RunStep struct {
	// ID is the unique identifier for this step.
	ID string `json:"id"`
	// RunID is the owning run.
	RunID string `json:"run_id"`
	// Seq orders steps within the run, starting at 1.
	Seq int `json:"seq"`
	// State names the orchestrator state entered.
	State string `json:"state"`
	// Detail carries state-specific context (task id, file path, ...).
	Detail string `json:"detail,omitempty"`
	// CreatedAt is when the transition happened.
	CreatedAt time.Time `json:"created_at"`
}
