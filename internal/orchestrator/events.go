// Package orchestrator drives a writing run through its state machine:
// ANALYZE, PLAN, EXECUTE_TASK, REFLECT, RESPOND.
package orchestrator

import "time"

// EventType represents the type of orchestrator event.
type EventType string

const (
	// EventRunStarted indicates a run has begun.
	EventRunStarted EventType = "run_started"
	// EventStateEntered indicates the run transitioned into a state.
	EventStateEntered EventType = "state_entered"
	// EventTaskStarted indicates a task began executing.
	EventTaskStarted EventType = "task_started"
	// EventTaskCompleted indicates a task completed and stored its output.
	EventTaskCompleted EventType = "task_completed"
	// EventSubagentSpawned indicates a sub-agent was allocated for a task.
	EventSubagentSpawned EventType = "subagent_spawned"
	// EventRunDone indicates the run completed with a response.
	EventRunDone EventType = "run_done"
	// EventRunFailed indicates the run aborted with an error.
	EventRunFailed EventType = "run_failed"
)

// Event is emitted on run progress. Events exist for display; consumers
// that fall behind lose events rather than stalling the run.
type Event struct {
	// Type is the kind of event.
	Type EventType
	// RunID is the run this event belongs to.
	RunID string
	// State is the state entered, for state_entered events.
	State State
	// TaskID is the ID of the related task, if applicable.
	TaskID string
	// TaskTitle is the title of the related task, if applicable.
	TaskTitle string
	// AgentID is the ID of the related sub-agent, if applicable.
	AgentID string
	// Message provides additional context about the event.
	Message string
	// Err carries error details for failure events.
	Err error
	// Timestamp is when the event occurred.
	Timestamp time.Time
}
