// Package memory provides typed long-term memory with optional
// vector-backed recall and a deterministic importance-ranked fallback.
package memory

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/quillworks/quill/internal/state"
	"github.com/quillworks/quill/pkg/models"
)

// DefaultTopK is the record count Load returns when the caller passes a
// non-positive topK.
const DefaultTopK = 5

// maxTitleRunes caps titles derived from free-form text.
const maxTitleRunes = 80

// Backend indexes memory records for semantic retrieval. It is optional:
// without one, Load serves importance-ranked relational scans.
type Backend interface {
	// Upsert stores (or replaces) the searchable text for a record.
	Upsert(ctx context.Context, id, text string, meta map[string]string) error
	// Query returns record IDs ordered by similarity, best first.
	Query(ctx context.Context, text string, filter map[string]string, topK int) ([]string, error)
}

// Store persists typed memory records and retrieves them by relevance.
type Store struct {
	db      *state.DB
	backend Backend
}

// New creates a memory store. backend may be nil to disable vector recall.
func New(db *state.DB, backend Backend) *Store {
	return &Store{db: db, backend: backend}
}

// StoreStyle persists a style guideline (tone, voice, formatting rules).
func (s *Store) StoreStyle(ctx context.Context, workspaceID, title, guideline string, examples []string) (*models.MemoryRecord, error) {
	payload := map[string]string{"guideline": guideline}
	if len(examples) > 0 {
		payload["examples"] = strings.Join(examples, "\n")
	}
	return s.store(ctx, workspaceID, models.MemoryTypeStyle, title, payload, nil)
}

// StoreGlossary persists a term with its canonical definition or translation.
func (s *Store) StoreGlossary(ctx context.Context, workspaceID, term, definition string) (*models.MemoryRecord, error) {
	payload := map[string]string{"definition": definition}
	return s.store(ctx, workspaceID, models.MemoryTypeGlossary, term, payload, nil)
}

// StoreKnowledge persists a reusable fact or reference note.
func (s *Store) StoreKnowledge(ctx context.Context, workspaceID, topic, content string, tags []string) (*models.MemoryRecord, error) {
	payload := map[string]string{"content": content}
	return s.store(ctx, workspaceID, models.MemoryTypeKnowledge, topic, payload, tags)
}

// StorePreference persists a caller preference stated in free form. The
// record title is derived from the first line of the preference text.
func (s *Store) StorePreference(ctx context.Context, workspaceID, preference string) (*models.MemoryRecord, error) {
	payload := map[string]string{"preference": preference}
	return s.store(ctx, workspaceID, models.MemoryTypePreference, titleFrom(preference), payload, nil)
}

func (s *Store) store(ctx context.Context, workspaceID string, typ models.MemoryType, title string, payload map[string]string, tags []string) (*models.MemoryRecord, error) {
	if workspaceID == "" {
		return nil, fmt.Errorf("workspace id is required")
	}
	if title == "" {
		return nil, fmt.Errorf("memory title is required")
	}

	rec := &models.MemoryRecord{
		ID:              uuid.New().String(),
		WorkspaceID:     workspaceID,
		Type:            typ,
		Title:           title,
		Payload:         payload,
		ImportanceScore: typ.DefaultImportance(),
		Tags:            tags,
		CreatedAt:       time.Now().UTC(),
	}
	if err := s.db.CreateMemory(rec); err != nil {
		return nil, fmt.Errorf("create %s memory: %w", typ, err)
	}

	s.index(ctx, rec)
	return rec, nil
}

// index pushes a record into the vector backend. Failures are logged and
// swallowed; record creation never depends on the backend being healthy.
func (s *Store) index(ctx context.Context, rec *models.MemoryRecord) {
	if s.backend == nil {
		return
	}

	meta := map[string]string{
		"workspace": rec.WorkspaceID,
		"type":      string(rec.Type),
		"title":     rec.Title,
	}
	if err := s.backend.Upsert(ctx, rec.ID, rec.SearchableText(), meta); err != nil {
		log.Printf("[memory] vector upsert for %s: %v", rec.ID, err)
		return
	}

	rec.EmbeddingID = rec.ID
	if err := s.db.SetMemoryEmbedding(rec.ID, rec.ID); err != nil {
		log.Printf("[memory] record embedding id for %s: %v", rec.ID, err)
	}
}

// Load returns up to topK records relevant to query. With a backend
// configured it runs a similarity search scoped to the workspace (and type,
// when given) and maps the returned ids back to full records preserving the
// backend's order. Without a backend, or when the backend errors or returns
// nothing, Load falls back to a relational scan ranked by importance score.
func (s *Store) Load(ctx context.Context, workspaceID, query string, typ models.MemoryType, topK int) ([]*models.MemoryRecord, error) {
	if workspaceID == "" {
		return nil, fmt.Errorf("workspace id is required")
	}
	if topK <= 0 {
		topK = DefaultTopK
	}

	if s.backend != nil && query != "" {
		filter := map[string]string{"workspace": workspaceID}
		if typ != "" {
			filter["type"] = string(typ)
		}

		ids, err := s.backend.Query(ctx, query, filter, topK)
		switch {
		case err != nil:
			log.Printf("[memory] vector query: %v", err)
		case len(ids) > 0:
			records, err := s.db.GetMemoriesByIDs(ids)
			if err != nil {
				log.Printf("[memory] map vector ids to records: %v", err)
			} else if len(records) > 0 {
				return records, nil
			}
		}
	}

	records, err := s.db.ListMemoriesRanked(workspaceID, typ, topK)
	if err != nil {
		return nil, fmt.Errorf("ranked memory scan: %w", err)
	}
	return records, nil
}

// titleFrom derives a short title from free-form text: the first line,
// truncated to maxTitleRunes.
func titleFrom(text string) string {
	title := strings.TrimSpace(text)
	if i := strings.IndexByte(title, '\n'); i >= 0 {
		title = strings.TrimSpace(title[:i])
	}
	runes := []rune(title)
	if len(runes) > maxTitleRunes {
		title = string(runes[:maxTitleRunes])
	}
	return title
}
