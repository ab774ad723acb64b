package state

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/quillworks/quill/pkg/models"
)

// Run and run step CRUD operations

// CreateRun inserts a run record.
func (db *DB) CreateRun(r *models.Run) error {
	subAgents, _ := json.Marshal(r.SubAgentIDs)

	_, err := db.Exec(`
		INSERT INTO runs (id, workspace_id, goal, plan_id, status, response, sub_agent_ids, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, r.ID, r.WorkspaceID, r.Goal, r.PlanID, string(r.Status), r.Response,
		string(subAgents), formatTime(r.StartedAt), nil)
	if err != nil {
		return fmt.Errorf("create run: %w", err)
	}
	return nil
}

// UpdateRun updates a run's mutable fields.
func (db *DB) UpdateRun(r *models.Run) error {
	subAgents, _ := json.Marshal(r.SubAgentIDs)
	var finishedAt *string
	if r.FinishedAt != nil {
		s := formatTime(*r.FinishedAt)
		finishedAt = &s
	}

	_, err := db.Exec(`
		UPDATE runs SET goal = ?, plan_id = ?, status = ?, response = ?, sub_agent_ids = ?, finished_at = ?
		WHERE id = ?
	`, r.Goal, r.PlanID, string(r.Status), r.Response, string(subAgents), finishedAt, r.ID)
	if err != nil {
		return fmt.Errorf("update run: %w", err)
	}
	return nil
}

// GetRun retrieves a run by ID. Returns nil if not found.
func (db *DB) GetRun(id string) (*models.Run, error) {
	row := db.QueryRow(`
		SELECT id, workspace_id, goal, plan_id, status, response, sub_agent_ids, started_at, finished_at
		FROM runs WHERE id = ?
	`, id)

	var r models.Run
	var goal, planID, response, subAgents sql.NullString
	var startedAt string
	var finishedAt sql.NullString
	err := row.Scan(&r.ID, &r.WorkspaceID, &goal, &planID, &r.Status, &response, &subAgents, &startedAt, &finishedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}

	if goal.Valid {
		r.Goal = goal.String
	}
	if planID.Valid {
		r.PlanID = planID.String
	}
	if response.Valid {
		r.Response = response.String
	}
	if subAgents.Valid {
		json.Unmarshal([]byte(subAgents.String), &r.SubAgentIDs)
	}
	r.StartedAt, _ = parseTime(startedAt)
	r.FinishedAt = parseNullableTime(finishedAt)
	return &r, nil
}

// AppendRunStep inserts a run step.
func (db *DB) AppendRunStep(s *models.RunStep) error {
	_, err := db.Exec(`
		INSERT INTO run_steps (id, run_id, seq, state, detail, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, s.ID, s.RunID, s.Seq, s.State, s.Detail, formatTime(s.CreatedAt))
	if err != nil {
		return fmt.Errorf("append run step: %w", err)
	}
	return nil
}

// ListRunSteps lists a run's steps in sequence order.
func (db *DB) ListRunSteps(runID string) ([]*models.RunStep, error) {
	rows, err := db.Query(`
		SELECT id, run_id, seq, state, detail, created_at
		FROM run_steps WHERE run_id = ? ORDER BY seq
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("list run steps: %w", err)
	}
	defer rows.Close()

	var steps []*models.RunStep
	for rows.Next() {
		var s models.RunStep
		var detail sql.NullString
		var createdAt string
		if err := rows.Scan(&s.ID, &s.RunID, &s.Seq, &s.State, &detail, &createdAt); err != nil {
			return nil, fmt.Errorf("scan run step: %w", err)
		}
		if detail.Valid {
			s.Detail = detail.String
		}
		s.CreatedAt, _ = parseTime(createdAt)
		steps = append(steps, &s)
	}
	return steps, rows.Err()
}
