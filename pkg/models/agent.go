package models

import "time"

// AgentType selects the specialization of a sub-agent. Each type maps to
// a fixed system preamble and context budget.
type AgentType string

const (
	// AgentTypeResearch gathers and summarizes supporting material.
	AgentTypeResearch AgentType = "research"
	// AgentTypeTranslation translates content between languages.
	AgentTypeTranslation AgentType = "translation"
	// AgentTypeEditing revises prose for clarity and correctness.
	AgentTypeEditing AgentType = "editing"
	// AgentTypeFactCheck verifies factual claims in content.
	AgentTypeFactCheck AgentType = "fact_check"
)

// Valid returns true if the type is a known value.
func (t AgentType) Valid() bool {
	switch t {
	case AgentTypeResearch, AgentTypeTranslation, AgentTypeEditing, AgentTypeFactCheck:
		return true
	default:
		return false
	}
}

// AgentStatus represents the current state of a sub-agent.
type AgentStatus string

const (
	// AgentStatusPending indicates the agent has not started.
	AgentStatusPending AgentStatus = "pending"
	// AgentStatusRunning indicates the agent is actively working.
	AgentStatusRunning AgentStatus = "running"
	// AgentStatusCompleted indicates the agent finished its work.
	AgentStatusCompleted AgentStatus = "completed"
	// AgentStatusFailed indicates the agent encountered an error.
	AgentStatusFailed AgentStatus = "failed"
)

// Valid returns true if the status is a known value.
func (s AgentStatus) Valid() bool {
	switch s {
	case AgentStatusPending, AgentStatusRunning, AgentStatusCompleted, AgentStatusFailed:
		return true
	default:
		return false
	}
}

// Role identifies the author of a conversation message.
type Role string

const (
	// RoleUser is caller-authored content.
	RoleUser Role = "user"
	// RoleAssistant is model-generated content.
	RoleAssistant Role = "assistant"
)

// Message is one entry in an ordered conversation.
type Message struct {
	// Role identifies who authored the message.
	Role Role `json:"role"`
	// Content is the message text.
	Content string `json:"content"`
}

// SubAgentContext is the isolated execution context of one sub-agent.
// It is owned exclusively by the run that spawned it. Messages is a
// private copy; executing the agent never mutates the parent run's
// conversation or any sibling context.
type SubAgentContext struct {
	// ID is the unique identifier for this context.
	ID string `json:"id"`
	// Type is the agent specialization.
	Type AgentType `json:"type"`
	// Task is the instruction the agent executes.
	Task string `json:"task"`
	// Messages is the agent's private, budget-filtered conversation copy.
	Messages []Message `json:"messages"`
	// ScopedFiles lists file paths the agent may reference.
	ScopedFiles []string `json:"scoped_files,omitempty"`
	// ScopedMemories lists memory record IDs attached to the agent.
	ScopedMemories []string `json:"scoped_memories,omitempty"`
	// Result holds the agent's output after execution.
	Result string `json:"result,omitempty"`
	// Err holds the agent's failure message after execution, if any.
	Err string `json:"error,omitempty"`
	// Status is the current state of the agent.
	Status AgentStatus `json:"status"`
	// CreatedAt is when the context was allocated.
	CreatedAt time.Time `json:"created_at"`
}
