package state

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/quillworks/quill/pkg/models"
)

// Plan and task CRUD operations

// CreatePlanWithTasks inserts a plan and all of its tasks in a single
// transaction. Task order in the slice becomes creation order. The write
// is all-or-nothing: a failure on any insert leaves neither the plan nor
// any task behind.
func (db *DB) CreatePlanWithTasks(plan *models.Plan, tasks []*models.Task) error {
	return db.Transaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(`
			INSERT INTO plans (id, workspace_id, goal, source_prompt, status, created_at)
			VALUES (?, ?, ?, ?, ?, ?)
		`, plan.ID, plan.WorkspaceID, plan.Goal, plan.SourcePrompt, string(plan.Status), formatTime(plan.CreatedAt))
		if err != nil {
			return fmt.Errorf("insert plan: %w", err)
		}

		for i, t := range tasks {
			dependsOn, _ := json.Marshal(t.DependsOn)
			outputs, _ := json.Marshal(t.Outputs)
			_, err := tx.Exec(`
				INSERT INTO tasks (id, plan_id, seq, title, description, type, priority, status,
					depends_on, outputs, assigned_to, created_at)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			`, t.ID, t.PlanID, i+1, t.Title, t.Description, string(t.Type), string(t.Priority),
				string(t.Status), string(dependsOn), string(outputs), t.AssignedTo, formatTime(t.CreatedAt))
			if err != nil {
				return fmt.Errorf("insert task %s: %w", t.ID, err)
			}
		}

		return nil
	})
}

// GetPlan retrieves a plan by ID. Returns nil if not found.
func (db *DB) GetPlan(id string) (*models.Plan, error) {
	row := db.QueryRow(`
		SELECT id, workspace_id, goal, source_prompt, status, created_at
		FROM plans WHERE id = ?
	`, id)

	var p models.Plan
	var sourcePrompt sql.NullString
	var createdAt string
	err := row.Scan(&p.ID, &p.WorkspaceID, &p.Goal, &sourcePrompt, &p.Status, &createdAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get plan: %w", err)
	}

	if sourcePrompt.Valid {
		p.SourcePrompt = sourcePrompt.String
	}
	p.CreatedAt, _ = parseTime(createdAt)
	return &p, nil
}

// UpdatePlanStatus updates a plan's lifecycle status.
func (db *DB) UpdatePlanStatus(id string, status models.PlanStatus) error {
	_, err := db.Exec("UPDATE plans SET status = ? WHERE id = ?", string(status), id)
	if err != nil {
		return fmt.Errorf("update plan status: %w", err)
	}
	return nil
}

// DeletePlan deletes a plan; its tasks cascade.
func (db *DB) DeletePlan(id string) error {
	_, err := db.Exec("DELETE FROM plans WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete plan: %w", err)
	}
	return nil
}

// ListPlans lists plans for a workspace, newest first.
func (db *DB) ListPlans(workspaceID string) ([]*models.Plan, error) {
	rows, err := db.Query(`
		SELECT id, workspace_id, goal, source_prompt, status, created_at
		FROM plans WHERE workspace_id = ? ORDER BY created_at DESC
	`, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("list plans: %w", err)
	}
	defer rows.Close()

	var plans []*models.Plan
	for rows.Next() {
		var p models.Plan
		var sourcePrompt sql.NullString
		var createdAt string
		if err := rows.Scan(&p.ID, &p.WorkspaceID, &p.Goal, &sourcePrompt, &p.Status, &createdAt); err != nil {
			return nil, fmt.Errorf("scan plan: %w", err)
		}
		if sourcePrompt.Valid {
			p.SourcePrompt = sourcePrompt.String
		}
		p.CreatedAt, _ = parseTime(createdAt)
		plans = append(plans, &p)
	}
	return plans, rows.Err()
}

// GetTask retrieves a task by ID. Returns nil if not found.
func (db *DB) GetTask(id string) (*models.Task, error) {
	row := db.QueryRow(`
		SELECT id, plan_id, title, description, type, priority, status,
			depends_on, outputs, assigned_to, created_at, started_at, completed_at
		FROM tasks WHERE id = ?
	`, id)

	t, err := scanTask(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get task: %w", err)
	}
	return t, nil
}

// UpdateTask updates a task's mutable fields.
func (db *DB) UpdateTask(t *models.Task) error {
	dependsOn, _ := json.Marshal(t.DependsOn)
	outputs, _ := json.Marshal(t.Outputs)

	var startedAt, completedAt *string
	if t.StartedAt != nil {
		s := formatTime(*t.StartedAt)
		startedAt = &s
	}
	if t.CompletedAt != nil {
		s := formatTime(*t.CompletedAt)
		completedAt = &s
	}

	_, err := db.Exec(`
		UPDATE tasks SET title = ?, description = ?, type = ?, priority = ?, status = ?,
			depends_on = ?, outputs = ?, assigned_to = ?, started_at = ?, completed_at = ?
		WHERE id = ?
	`, t.Title, t.Description, string(t.Type), string(t.Priority), string(t.Status),
		string(dependsOn), string(outputs), t.AssignedTo, startedAt, completedAt, t.ID)
	if err != nil {
		return fmt.Errorf("update task: %w", err)
	}
	return nil
}

// ListTasksByPlan lists a plan's tasks in creation order.
func (db *DB) ListTasksByPlan(planID string) ([]*models.Task, error) {
	rows, err := db.Query(`
		SELECT id, plan_id, title, description, type, priority, status,
			depends_on, outputs, assigned_to, created_at, started_at, completed_at
		FROM tasks WHERE plan_id = ? ORDER BY seq
	`, planID)
	if err != nil {
		return nil, fmt.Errorf("list tasks by plan: %w", err)
	}
	defer rows.Close()

	var tasks []*models.Task
	for rows.Next() {
		t, err := scanTask(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

// scanTask scans one task row via the given scan function.
func scanTask(scan func(dest ...any) error) (*models.Task, error) {
	var t models.Task
	var description, dependsOn, outputs, assignedTo sql.NullString
	var createdAt string
	var startedAt, completedAt sql.NullString

	err := scan(&t.ID, &t.PlanID, &t.Title, &description, &t.Type, &t.Priority, &t.Status,
		&dependsOn, &outputs, &assignedTo, &createdAt, &startedAt, &completedAt)
	if err != nil {
		return nil, err
	}

	if description.Valid {
		t.Description = description.String
	}
	if dependsOn.Valid {
		json.Unmarshal([]byte(dependsOn.String), &t.DependsOn)
	}
	if outputs.Valid {
		json.Unmarshal([]byte(outputs.String), &t.Outputs)
	}
	if assignedTo.Valid {
		t.AssignedTo = assignedTo.String
	}
	t.CreatedAt, _ = parseTime(createdAt)
	t.StartedAt = parseNullableTime(startedAt)
	t.CompletedAt = parseNullableTime(completedAt)
	return &t, nil
}

// MarkTaskStarted sets a task in_progress with its start time and assignee.
func (db *DB) MarkTaskStarted(id, assignedTo string, at time.Time) error {
	_, err := db.Exec(`
		UPDATE tasks SET status = ?, assigned_to = ?, started_at = ? WHERE id = ?
	`, string(models.TaskStatusInProgress), assignedTo, formatTime(at), id)
	if err != nil {
		return fmt.Errorf("mark task started: %w", err)
	}
	return nil
}

// MarkTaskCompleted sets a task completed with its outputs.
func (db *DB) MarkTaskCompleted(id string, outputs []string, at time.Time) error {
	encoded, _ := json.Marshal(outputs)
	_, err := db.Exec(`
		UPDATE tasks SET status = ?, outputs = ?, completed_at = ? WHERE id = ?
	`, string(models.TaskStatusCompleted), string(encoded), formatTime(at), id)
	if err != nil {
		return fmt.Errorf("mark task completed: %w", err)
	}
	return nil
}
