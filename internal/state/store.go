package state

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dispatchd/dispatch/pkg/models"
)

// SaveSnapshot replaces the persisted task table with the given
// snapshot, history included. The write is transactional: a failed
// save leaves the previous snapshot intact.
func (db *DB) SaveSnapshot(tasks []*models.Task) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM task_history"); err != nil {
		return fmt.Errorf("clear history: %w", err)
	}
	if _, err := tx.Exec("DELETE FROM tasks"); err != nil {
		return fmt.Errorf("clear tasks: %w", err)
	}

	for _, task := range tasks {
		if err := insertTask(tx, task); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit snapshot: %w", err)
	}
	return nil
}

func insertTask(tx *sql.Tx, task *models.Task) error {
	caps, err := marshalList(task.RequiredCapabilities)
	if err != nil {
		return fmt.Errorf("marshal capabilities for %s: %w", task.ID, err)
	}
	deps, err := marshalList(task.DependsOn)
	if err != nil {
		return fmt.Errorf("marshal dependencies for %s: %w", task.ID, err)
	}
	prefers, err := marshalList(task.Prefers)
	if err != nil {
		return fmt.Errorf("marshal prefers for %s: %w", task.ID, err)
	}
	conflicts, err := marshalList(task.ConflictsWith)
	if err != nil {
		return fmt.Errorf("marshal conflicts for %s: %w", task.ID, err)
	}

	_, err = tx.Exec(`
		INSERT INTO tasks (id, title, description, priority, status,
			assigned_to, created_at, attempts,
			required_capabilities, depends_on, prefers, conflicts_with)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		task.ID, task.Title, task.Description, string(task.Priority),
		string(task.Status), task.AssignedTo,
		task.CreatedAt.UTC().Format(time.RFC3339Nano), task.Attempts,
		caps, deps, prefers, conflicts,
	)
	if err != nil {
		return fmt.Errorf("insert task %s: %w", task.ID, err)
	}

	for _, change := range task.History {
		_, err = tx.Exec(`
			INSERT INTO task_history (task_id, state, timestamp)
			VALUES (?, ?, ?)`,
			task.ID, string(change.State),
			change.Timestamp.UTC().Format(time.RFC3339Nano),
		)
		if err != nil {
			return fmt.Errorf("insert history for %s: %w", task.ID, err)
		}
	}
	return nil
}

// LoadTasks returns the persisted task snapshot, history included,
// ordered by creation time.
func (db *DB) LoadTasks() ([]*models.Task, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	rows, err := db.conn.Query(`
		SELECT id, title, description, priority, status,
			assigned_to, created_at, attempts,
			required_capabilities, depends_on, prefers, conflicts_with
		FROM tasks ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("query tasks: %w", err)
	}
	defer rows.Close()

	var tasks []*models.Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, task)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tasks: %w", err)
	}

	for _, task := range tasks {
		history, err := db.loadHistory(task.ID)
		if err != nil {
			return nil, err
		}
		task.History = history
	}
	return tasks, nil
}

func scanTask(rows *sql.Rows) (*models.Task, error) {
	var task models.Task
	var priority, status, createdAt string
	var description, assignedTo sql.NullString
	var caps, deps, prefers, conflicts sql.NullString

	err := rows.Scan(&task.ID, &task.Title, &description, &priority,
		&status, &assignedTo, &createdAt, &task.Attempts,
		&caps, &deps, &prefers, &conflicts)
	if err != nil {
		return nil, fmt.Errorf("scan task: %w", err)
	}

	task.Description = description.String
	task.Priority = models.Priority(priority)
	task.Status = models.TaskState(status)
	task.AssignedTo = assignedTo.String

	task.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return nil, fmt.Errorf("parse created_at for %s: %w", task.ID, err)
	}

	if task.RequiredCapabilities, err = unmarshalList(caps); err != nil {
		return nil, fmt.Errorf("unmarshal capabilities for %s: %w", task.ID, err)
	}
	if task.DependsOn, err = unmarshalList(deps); err != nil {
		return nil, fmt.Errorf("unmarshal dependencies for %s: %w", task.ID, err)
	}
	if task.Prefers, err = unmarshalList(prefers); err != nil {
		return nil, fmt.Errorf("unmarshal prefers for %s: %w", task.ID, err)
	}
	if task.ConflictsWith, err = unmarshalList(conflicts); err != nil {
		return nil, fmt.Errorf("unmarshal conflicts for %s: %w", task.ID, err)
	}
	return &task, nil
}

func (db *DB) loadHistory(taskID string) ([]models.StateChange, error) {
	rows, err := db.conn.Query(`
		SELECT state, timestamp FROM task_history
		WHERE task_id = ? ORDER BY id`, taskID)
	if err != nil {
		return nil, fmt.Errorf("query history for %s: %w", taskID, err)
	}
	defer rows.Close()

	var history []models.StateChange
	for rows.Next() {
		var state, timestamp string
		if err := rows.Scan(&state, &timestamp); err != nil {
			return nil, fmt.Errorf("scan history for %s: %w", taskID, err)
		}
		ts, err := time.Parse(time.RFC3339Nano, timestamp)
		if err != nil {
			return nil, fmt.Errorf("parse history timestamp for %s: %w", taskID, err)
		}
		history = append(history, models.StateChange{
			State:     models.TaskState(state),
			Timestamp: ts,
		})
	}
	return history, rows.Err()
}

// CountByStatus returns the number of persisted tasks per status.
func (db *DB) CountByStatus() (map[models.TaskState]int, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	rows, err := db.conn.Query("SELECT status, COUNT(*) FROM tasks GROUP BY status")
	if err != nil {
		return nil, fmt.Errorf("count tasks: %w", err)
	}
	defer rows.Close()

	counts := make(map[models.TaskState]int)
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("scan count: %w", err)
		}
		counts[models.TaskState(status)] = count
	}
	return counts, rows.Err()
}

func marshalList(list []string) (string, error) {
	if len(list) == 0 {
		return "", nil
	}
	data, err := json.Marshal(list)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func unmarshalList(value sql.NullString) ([]string, error) {
	if !value.Valid || value.String == "" {
		return nil, nil
	}
	var list []string
	if err := json.Unmarshal([]byte(value.String), &list); err != nil {
		return nil, err
	}
	return list, nil
}
