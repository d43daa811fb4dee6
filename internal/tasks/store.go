// internal/tasks/store.go
package tasks

import (
	"database/sql"
	"encoding/json"
)

// Store persists task metadata to SQLite for post-mortem inspection. Task
// execution state itself (the Work closure) never round-trips through
// storage; only the observable record does.
type Store struct {
	db *sql.DB
}

// NewStore creates a new task store.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Init creates the tasks table.
func (s *Store) Init() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS tasks (
			id TEXT PRIMARY KEY,
			type TEXT,
			priority INTEGER NOT NULL DEFAULT 5,
			status TEXT NOT NULL DEFAULT 'pending',
			result TEXT,
			error TEXT,
			metadata TEXT,
			created_at TIMESTAMP NOT NULL,
			completed_at TIMESTAMP
		)
	`)
	return err
}

// Save creates or updates a task record.
func (s *Store) Save(task *Task) error {
	metadata, _ := json.Marshal(task.Metadata)
	result, _ := json.Marshal(task.Result)

	_, err := s.db.Exec(`
		INSERT INTO tasks (id, type, priority, status, result, error, metadata, created_at, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status=excluded.status,
			result=excluded.result,
			error=excluded.error,
			metadata=excluded.metadata,
			completed_at=excluded.completed_at
	`,
		task.ID, string(task.Type), task.Priority, task.Status,
		string(result), task.Err, string(metadata),
		task.CreatedAt, task.CompletedAt,
	)
	return err
}

// GetByID retrieves a task record by ID.
func (s *Store) GetByID(id string) (*Task, error) {
	row := s.db.QueryRow(`
		SELECT id, type, priority, status, result, error, metadata, created_at, completed_at
		FROM tasks WHERE id = ?
	`, id)
	return s.scanTask(row)
}

// GetByStatus retrieves all task records with a given status.
func (s *Store) GetByStatus(status Status) ([]*Task, error) {
	rows, err := s.db.Query(`
		SELECT id, type, priority, status, result, error, metadata, created_at, completed_at
		FROM tasks WHERE status = ? ORDER BY priority, created_at
	`, status)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return s.scanTasks(rows)
}

// GetAll retrieves all task records.
func (s *Store) GetAll() ([]*Task, error) {
	rows, err := s.db.Query(`
		SELECT id, type, priority, status, result, error, metadata, created_at, completed_at
		FROM tasks ORDER BY priority, created_at
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return s.scanTasks(rows)
}

// Delete removes a task record.
func (s *Store) Delete(id string) error {
	_, err := s.db.Exec(`DELETE FROM tasks WHERE id = ?`, id)
	return err
}

func (s *Store) scanTask(row *sql.Row) (*Task, error) {
	var task Task
	var taskType, result, errStr, metadata sql.NullString
	var completedAt sql.NullTime

	err := row.Scan(&task.ID, &taskType, &task.Priority, &task.Status,
		&result, &errStr, &metadata, &task.CreatedAt, &completedAt)
	if err != nil {
		return nil, err
	}
	s.fillNullable(&task, taskType, result, errStr, metadata, completedAt)
	return &task, nil
}

func (s *Store) scanTasks(rows *sql.Rows) ([]*Task, error) {
	var tasks []*Task
	for rows.Next() {
		var task Task
		var taskType, result, errStr, metadata sql.NullString
		var completedAt sql.NullTime

		err := rows.Scan(&task.ID, &taskType, &task.Priority, &task.Status,
			&result, &errStr, &metadata, &task.CreatedAt, &completedAt)
		if err != nil {
			return nil, err
		}
		s.fillNullable(&task, taskType, result, errStr, metadata, completedAt)
		tasks = append(tasks, &task)
	}
	return tasks, rows.Err()
}

func (s *Store) fillNullable(task *Task, taskType, result, errStr, metadata sql.NullString, completedAt sql.NullTime) {
	if taskType.Valid {
		task.Type = Type(taskType.String)
	}
	if errStr.Valid {
		task.Err = errStr.String
	}
	if completedAt.Valid {
		task.CompletedAt = &completedAt.Time
	}
	if result.Valid && result.String != "" && result.String != "null" {
		var v interface{}
		if err := json.Unmarshal([]byte(result.String), &v); err == nil {
			task.Result = v
		}
	}
	if metadata.Valid && metadata.String != "" {
		if err := json.Unmarshal([]byte(metadata.String), &task.Metadata); err != nil {
			task.Metadata = make(map[string]interface{})
		}
	}
}
