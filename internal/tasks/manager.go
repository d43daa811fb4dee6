// internal/tasks/manager.go
package tasks

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/jobpilot/automation/internal/types"
	_ "modernc.org/sqlite"
)

// ActivityLogger is the narrow slice of the tracker the Task Manager needs.
// Defined here (rather than importing the tracker package) to avoid a
// dependency cycle, following the teacher's small-interface-per-capability
// idiom.
type ActivityLogger interface {
	LogActivity(activityType, details string, status types.ActivityStatus, agentName, jobID string)
}

// Config controls the Task Manager's bounded-concurrency behaviour.
type Config struct {
	MaxConcurrent     int
	TaskTimeout       time.Duration
	QueueCheckInterval time.Duration
}

// DefaultConfig mirrors the original implementation's defaults
// (max_concurrent=3, task_timeout=300s).
func DefaultConfig() Config {
	return Config{
		MaxConcurrent:      3,
		TaskTimeout:        300 * time.Second,
		QueueCheckInterval: 250 * time.Millisecond,
	}
}

// Manager is the bounded-concurrency task engine described in the
// orchestration core: at most MaxConcurrent tasks run simultaneously, each
// bounded by TaskTimeout, with cooperative cancellation.
type Manager struct {
	cfg    Config
	log    ActivityLogger
	queue  *Queue
	store  *Store
	mu     sync.Mutex
	active int
}

// NewManager creates a Task Manager. log may be nil in tests.
func NewManager(cfg Config, log ActivityLogger) *Manager {
	return &Manager{
		cfg:   cfg,
		log:   log,
		queue: NewQueue(),
	}
}

// OpenManager creates a Task Manager backed by a SQLite store at dbPath, so
// every create/run/terminate transition is mirrored for post-mortem
// inspection after a crash or restart. log may be nil in tests.
func OpenManager(cfg Config, log ActivityLogger, dbPath string) (*Manager, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("tasks: failed to create data dir: %w", err)
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("tasks: failed to open store: %w", err)
	}
	store := NewStore(db)
	if err := store.Init(); err != nil {
		db.Close()
		return nil, fmt.Errorf("tasks: failed to initialize schema: %w", err)
	}

	m := NewManager(cfg, log)
	m.store = store
	return m, nil
}

// Close releases the underlying store, if this Manager was built with
// OpenManager. Safe to call on a Manager built with NewManager.
func (m *Manager) Close() error {
	if m.store == nil {
		return nil
	}
	return m.store.db.Close()
}

func (m *Manager) persist(t *Task) {
	if m.store == nil {
		return
	}
	if err := m.store.Save(t); err != nil {
		log.Printf("[TaskManager] failed to persist task %s: %v", t.ID, err)
	}
}

func (m *Manager) logActivity(activityType, details string, status types.ActivityStatus, jobID string) {
	if m.log == nil {
		return
	}
	m.log.LogActivity(activityType, details, status, "task_manager", jobID)
}

// Create registers a new task and returns it in pending state. It does not
// start execution; call Run to execute it.
func (m *Manager) Create(taskType Type, priority int, work Work) *Task {
	t := NewTask(taskType, priority, work)
	m.queue.Add(t)
	m.logActivity("task", fmt.Sprintf("created %s", t.ID), types.StatusCreated, "")
	m.persist(t)
	return t
}

// Run blocks (cooperatively, polling at QueueCheckInterval) until a
// concurrency slot is free, then executes the task synchronously, bounded
// by TaskTimeout, and returns its result.
func (m *Manager) Run(ctx context.Context, t *Task) (interface{}, error) {
	if err := t.Validate(); err != nil {
		return nil, err
	}

	if err := m.waitForSlot(ctx); err != nil {
		return nil, err
	}
	defer m.releaseSlot()

	if err := t.TransitionTo(StatusRunning); err != nil {
		return nil, err
	}
	m.logActivity("task", fmt.Sprintf("running %s", t.ID), types.StatusInfo, "")
	m.persist(t)

	runCtx, timeoutCancel := context.WithTimeout(ctx, m.cfg.TaskTimeout)
	t.cancel = func() {
		t.cancelRequested.Store(true)
		timeoutCancel()
	}
	defer timeoutCancel()

	resultCh := make(chan struct {
		val interface{}
		err error
	}, 1)

	go func() {
		val, err := t.work(runCtx)
		resultCh <- struct {
			val interface{}
			err error
		}{val, err}
	}()

	select {
	case r := <-resultCh:
		if r.err != nil {
			if t.cancelRequested.Load() || ctx.Err() != nil {
				t.TransitionTo(StatusCancelled)
				m.logActivity("task", fmt.Sprintf("cancelled %s", t.ID), types.StatusCancelled, "")
				m.persist(t)
				return nil, types.ErrTaskCancelled
			}
			if runCtx.Err() == context.DeadlineExceeded {
				t.TransitionTo(StatusTimeout)
				t.Err = types.ErrTaskTimeout.Error()
				m.logActivity("task", fmt.Sprintf("timeout %s", t.ID), types.StatusTimeout, "")
				m.persist(t)
				return nil, types.ErrTaskTimeout
			}
			t.TransitionTo(StatusFailed)
			t.Err = r.err.Error()
			m.logActivity("task", fmt.Sprintf("failed %s: %v", t.ID, r.err), types.StatusError, "")
			m.persist(t)
			return nil, r.err
		}
		t.TransitionTo(StatusCompleted)
		t.Result = r.val
		m.logActivity("task", fmt.Sprintf("completed %s", t.ID), types.StatusSuccess, "")
		m.persist(t)
		return r.val, nil

	case <-runCtx.Done():
		if t.cancelRequested.Load() || ctx.Err() != nil {
			t.TransitionTo(StatusCancelled)
			m.logActivity("task", fmt.Sprintf("cancelled %s", t.ID), types.StatusCancelled, "")
			m.persist(t)
			return nil, types.ErrTaskCancelled
		}
		t.TransitionTo(StatusTimeout)
		t.Err = types.ErrTaskTimeout.Error()
		m.logActivity("task", fmt.Sprintf("timeout %s", t.ID), types.StatusTimeout, "")
		m.persist(t)
		return nil, types.ErrTaskTimeout
	}
}

// waitForSlot polls until fewer than MaxConcurrent tasks are running, or ctx
// is cancelled.
func (m *Manager) waitForSlot(ctx context.Context) error {
	for {
		m.mu.Lock()
		if m.active < m.cfg.MaxConcurrent {
			m.active++
			m.mu.Unlock()
			return nil
		}
		m.mu.Unlock()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(m.cfg.QueueCheckInterval):
		}
	}
}

func (m *Manager) releaseSlot() {
	m.mu.Lock()
	m.active--
	m.mu.Unlock()
}

// Cancel stops a running task. It succeeds only for tasks in running state.
func (m *Manager) Cancel(taskID string) bool {
	t := m.queue.GetByID(taskID)
	if t == nil || t.Status != StatusRunning {
		return false
	}
	if t.cancel != nil {
		t.cancel()
	}
	return true
}

// Active returns all tasks currently in the running state.
func (m *Manager) Active() []*Task {
	return m.queue.GetByStatus(StatusRunning)
}

// Get returns a task by ID, or nil.
func (m *Manager) Get(taskID string) *Task {
	return m.queue.GetByID(taskID)
}

// History returns the persisted task records for a given status, read back
// from the SQLite store rather than the in-memory queue, so it survives
// across the queue being reset on restart. Returns nil if this Manager was
// not built with OpenManager.
func (m *Manager) History(status Status) ([]*Task, error) {
	if m.store == nil {
		return nil, nil
	}
	return m.store.GetByStatus(status)
}

// Dispatch enqueues and runs a task identified by name rather than by an
// explicit closure. Recognised types are job_search and captcha; the
// remaining reserved types (state_restoration, recovery, verification) are
// accepted but have no registered handler yet and are logged and dropped,
// matching the decision recorded for the reserved dispatch types.
func (m *Manager) Dispatch(ctx context.Context, taskType Type, priority int, handlers map[Type]Work) (interface{}, error) {
	work, ok := handlers[taskType]
	if !ok {
		switch taskType {
		case TypeStateRestoration, TypeRecovery, TypeVerification:
			log.Printf("[TaskManager] no handler registered for reserved type %s, dropping", taskType)
			m.logActivity("task", fmt.Sprintf("dropped unrecognised type %s", taskType), types.StatusInfo, "")
			return nil, nil
		default:
			log.Printf("[TaskManager] unknown task type %s, dropping", taskType)
			m.logActivity("task", fmt.Sprintf("dropped unknown type %s", taskType), types.StatusInfo, "")
			return nil, nil
		}
	}

	t := m.Create(taskType, priority, work)
	return m.Run(ctx, t)
}
