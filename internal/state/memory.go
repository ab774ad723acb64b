package state

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/quillworks/quill/pkg/models"
)

// Memory record CRUD operations

// CreateMemory inserts a memory record.
func (db *DB) CreateMemory(m *models.MemoryRecord) error {
	payload, err := json.Marshal(m.Payload)
	if err != nil {
		return fmt.Errorf("encode memory payload: %w", err)
	}
	tags, _ := json.Marshal(m.Tags)

	_, err = db.Exec(`
		INSERT INTO memories (id, workspace_id, type, title, payload, importance_score, embedding_id, tags, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, m.ID, m.WorkspaceID, string(m.Type), m.Title, string(payload),
		m.ImportanceScore, m.EmbeddingID, string(tags), formatTime(m.CreatedAt))
	if err != nil {
		return fmt.Errorf("create memory: %w", err)
	}
	return nil
}

// GetMemory retrieves a memory record by ID. Returns nil if not found.
func (db *DB) GetMemory(id string) (*models.MemoryRecord, error) {
	row := db.QueryRow(`
		SELECT id, workspace_id, type, title, payload, importance_score, embedding_id, tags, created_at
		FROM memories WHERE id = ?
	`, id)

	m, err := scanMemory(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get memory: %w", err)
	}
	return m, nil
}

// SetMemoryEmbedding records the vector backend reference for a memory.
func (db *DB) SetMemoryEmbedding(id, embeddingID string) error {
	_, err := db.Exec("UPDATE memories SET embedding_id = ? WHERE id = ?", embeddingID, id)
	if err != nil {
		return fmt.Errorf("set memory embedding: %w", err)
	}
	return nil
}

// ListMemoriesRanked lists a workspace's memories ordered by importance
// score descending (ties broken newest first), truncated to limit.
// An empty typ matches all types. This is the deterministic fallback
// ranking used when no vector backend is available.
func (db *DB) ListMemoriesRanked(workspaceID string, typ models.MemoryType, limit int) ([]*models.MemoryRecord, error) {
	var rows *sql.Rows
	var err error

	if typ != "" {
		rows, err = db.Query(`
			SELECT id, workspace_id, type, title, payload, importance_score, embedding_id, tags, created_at
			FROM memories WHERE workspace_id = ? AND type = ?
			ORDER BY importance_score DESC, created_at DESC LIMIT ?
		`, workspaceID, string(typ), limit)
	} else {
		rows, err = db.Query(`
			SELECT id, workspace_id, type, title, payload, importance_score, embedding_id, tags, created_at
			FROM memories WHERE workspace_id = ?
			ORDER BY importance_score DESC, created_at DESC LIMIT ?
		`, workspaceID, limit)
	}
	if err != nil {
		return nil, fmt.Errorf("list memories: %w", err)
	}
	defer rows.Close()

	return scanMemories(rows)
}

// GetMemoriesByIDs retrieves the records for the given IDs, preserving
// the input order. IDs with no matching row are skipped.
func (db *DB) GetMemoriesByIDs(ids []string) ([]*models.MemoryRecord, error) {
	byID := make(map[string]*models.MemoryRecord, len(ids))
	for _, id := range ids {
		m, err := db.GetMemory(id)
		if err != nil {
			return nil, err
		}
		if m != nil {
			byID[id] = m
		}
	}

	records := make([]*models.MemoryRecord, 0, len(byID))
	for _, id := range ids {
		if m, ok := byID[id]; ok {
			records = append(records, m)
		}
	}
	return records, nil
}

// DeleteMemory deletes a memory record by ID.
func (db *DB) DeleteMemory(id string) error {
	_, err := db.Exec("DELETE FROM memories WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete memory: %w", err)
	}
	return nil
}

// scanMemories scans memory rows into a slice.
func scanMemories(rows *sql.Rows) ([]*models.MemoryRecord, error) {
	var records []*models.MemoryRecord
	for rows.Next() {
		m, err := scanMemory(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan memory: %w", err)
		}
		records = append(records, m)
	}
	return records, rows.Err()
}

// scanMemory scans one memory row via the given scan function.
func scanMemory(scan func(dest ...any) error) (*models.MemoryRecord, error) {
	var m models.MemoryRecord
	var payload string
	var embeddingID, tags sql.NullString
	var createdAt string

	err := scan(&m.ID, &m.WorkspaceID, &m.Type, &m.Title, &payload,
		&m.ImportanceScore, &embeddingID, &tags, &createdAt)
	if err != nil {
		return nil, err
	}

	json.Unmarshal([]byte(payload), &m.Payload)
	if embeddingID.Valid {
		m.EmbeddingID = embeddingID.String
	}
	if tags.Valid {
		json.Unmarshal([]byte(tags.String), &m.Tags)
	}
	m.CreatedAt, _ = parseTime(createdAt)
	return &m, nil
}
