package models

import (
	"sort"
	"time"
)

// MemoryType classifies a long-term memory record.
type MemoryType string

const (
	// MemoryTypeStyle captures voice and tone guidance.
	MemoryTypeStyle MemoryType = "style"
	// MemoryTypeGlossary captures term definitions.
	MemoryTypeGlossary MemoryType = "glossary"
	// MemoryTypeKnowledge captures topical facts.
	MemoryTypeKnowledge MemoryType = "knowledge"
	// MemoryTypePreference captures caller preferences.
	MemoryTypePreference MemoryType = "preference"
)

// Valid returns true if the type is a known value.
func (t MemoryType) Valid() bool {
	switch t {
	case MemoryTypeStyle, MemoryTypeGlossary, MemoryTypeKnowledge, MemoryTypePreference:
		return true
	default:
		return false
	}
}

// DefaultImportance returns the importance score assigned to new records
// of this type. Importance drives the ranked fallback when no vector
// backend is available.
func (t MemoryType) DefaultImportance() float64 {
	switch t {
	case MemoryTypeStyle:
		return 0.8
	case MemoryTypeGlossary:
		return 0.7
	case MemoryTypeKnowledge:
		return 0.6
	case MemoryTypePreference:
		return 0.5
	default:
		return 0.5
	}
}

// MemoryRecord is a typed long-term record scoped to a workspace.
type MemoryRecord struct {
	// ID is the unique identifier for this record.
	ID string `json:"id"`
	// WorkspaceID scopes the record to a workspace.
	WorkspaceID string `json:"workspace_id"`
	// Type classifies the record.
	Type MemoryType `json:"type"`
	// Title is a short label for the record.
	Title string `json:"title"`
	// Payload holds type-specific fields (term/definition, topic/content, ...).
	Payload map[string]string `json:"payload"`
	// ImportanceScore in [0,1] ranks records in the non-vector fallback.
	ImportanceScore float64 `json:"importance_score"`
	// EmbeddingID references the vector backend entry, if one was upserted.
	EmbeddingID string `json:"embedding_id,omitempty"`
	// Tags are free-form labels.
	Tags []string `json:"tags,omitempty"`
	// CreatedAt is when the record was stored.
	CreatedAt time.Time `json:"created_at"`
}

// SearchableText flattens the record into the text indexed by the
// vector backend. Payload fields are appended in sorted key order so
// the indexed text is stable across upserts.
func (m *MemoryRecord) SearchableText() string {
	keys := make([]string, 0, len(m.Payload))
	for k := range m.Payload {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	text := m.Title
	for _, k := range keys {
		if m.Payload[k] == "" {
			continue
		}
		text += "\n" + m.Payload[k]
	}
	return text
}
