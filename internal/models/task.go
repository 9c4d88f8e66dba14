package models

import (
	"fmt"
	"time"
)

type TaskStatus string

const (
	TaskQueued    TaskStatus = "queued"
	TaskRunning   TaskStatus = "running"
	TaskCompleted TaskStatus = "completed"
	TaskFailed    TaskStatus = "failed"
)

// taskTransitions is the single source of truth for task status moves.
// running -> queued is the retry edge.
var taskTransitions = map[TaskStatus][]TaskStatus{
	TaskQueued:  {TaskRunning},
	TaskRunning: {TaskCompleted, TaskQueued, TaskFailed},
}

func (s TaskStatus) IsValid() bool {
	switch s {
	case TaskQueued, TaskRunning, TaskCompleted, TaskFailed:
		return true
	default:
		return false
	}
}

// Task priorities are bounded so every queue backend can order them exactly.
const (
	MinPriority = -100
	MaxPriority = 100
)

func PriorityInRange(p int) bool { return p >= MinPriority && p <= MaxPriority }

func (s TaskStatus) IsTerminal() bool { return s == TaskCompleted || s == TaskFailed }

func (s TaskStatus) CanTransition(to TaskStatus) bool {
	for _, next := range taskTransitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

// TaskTransitionError is returned when a task is asked to make a move the
// transition table does not allow.
type TaskTransitionError struct {
	TaskID string
	From   TaskStatus
	To     TaskStatus
}

func (e *TaskTransitionError) Error() string {
	return fmt.Sprintf("task %s: cannot move from %s to %s", e.TaskID, e.From, e.To)
}

// BackoffFunc returns the delay before attempt number retryCount+1.
type BackoffFunc func(retryCount int) time.Duration

type AnalysisTask struct {
	TaskID       string     `gorm:"column:task_id;type:uuid;primaryKey" json:"task_id"`
	SessionID    string     `gorm:"column:session_id;type:text;index;not null" json:"session_id"`
	Status       TaskStatus `gorm:"column:status;type:text;index;not null" json:"status"`
	Priority     int        `gorm:"column:priority;not null;default:0" json:"priority"`
	RetryCount   int        `gorm:"column:retry_count;not null;default:0" json:"retry_count"`
	MaxRetries   int        `gorm:"column:max_retries;not null" json:"max_retries"`
	ErrorMessage string     `gorm:"column:error_message;type:text" json:"error_message,omitempty"`

	RunAfter    time.Time  `gorm:"column:run_after;type:timestamptz" json:"run_after"`
	LeaseUntil  *time.Time `gorm:"column:lease_until;type:timestamptz" json:"lease_until,omitempty"`
	WorkerID    string     `gorm:"column:worker_id;type:text" json:"worker_id,omitempty"`
	RetriedFrom string     `gorm:"column:retried_from;type:text" json:"retried_from,omitempty"`

	Version int64 `gorm:"column:version;not null;default:0" json:"-"`

	StartedAt   *time.Time `gorm:"column:started_at;type:timestamptz" json:"started_at,omitempty"`
	CompletedAt *time.Time `gorm:"column:completed_at;type:timestamptz" json:"completed_at,omitempty"`
	CreatedAt   time.Time  `gorm:"column:created_at;type:timestamptz;index" json:"created_at"`
	UpdatedAt   time.Time  `gorm:"column:updated_at;type:timestamptz" json:"updated_at"`
}

func (AnalysisTask) TableName() string { return "analysis_tasks" }

func (t *AnalysisTask) move(to TaskStatus) error {
	if !t.Status.CanTransition(to) {
		return &TaskTransitionError{TaskID: t.TaskID, From: t.Status, To: to}
	}
	t.Status = to
	return nil
}

// LeaseExpired reports whether a running task was abandoned by its worker.
func (t *AnalysisTask) LeaseExpired(now time.Time) bool {
	return t.Status == TaskRunning && (t.LeaseUntil == nil || !now.Before(*t.LeaseUntil))
}

// Start leases the task to workerID. A running task whose lease ran out may be
// taken over; that is a lease change, not a status move.
func (t *AnalysisTask) Start(now time.Time, workerID string, lease time.Duration) error {
	if t.Status == TaskRunning {
		if !t.LeaseExpired(now) {
			return &TaskTransitionError{TaskID: t.TaskID, From: t.Status, To: TaskRunning}
		}
	} else if err := t.move(TaskRunning); err != nil {
		return err
	}
	until := now.Add(lease)
	t.LeaseUntil = &until
	t.WorkerID = workerID
	t.StartedAt = &now
	t.UpdatedAt = now
	return nil
}

func (t *AnalysisTask) Complete(now time.Time) error {
	if err := t.move(TaskCompleted); err != nil {
		return err
	}
	t.CompletedAt = &now
	t.LeaseUntil = nil
	t.UpdatedAt = now
	return nil
}

// Fail records a failed attempt. While retries remain the task goes back to
// queued with RunAfter pushed out by backoff; once RetryCount == MaxRetries
// the task becomes permanently failed. The returned bool reports a retry.
func (t *AnalysisTask) Fail(now time.Time, errMsg string, backoff BackoffFunc) (bool, error) {
	if t.Status != TaskRunning {
		return false, &TaskTransitionError{TaskID: t.TaskID, From: t.Status, To: TaskFailed}
	}
	t.ErrorMessage = errMsg
	t.LeaseUntil = nil
	t.WorkerID = ""
	t.UpdatedAt = now

	if t.RetryCount < t.MaxRetries {
		if err := t.move(TaskQueued); err != nil {
			return false, err
		}
		t.RetryCount++
		var delay time.Duration
		if backoff != nil {
			delay = backoff(t.RetryCount)
		}
		t.RunAfter = now.Add(delay)
		return true, nil
	}

	if err := t.move(TaskFailed); err != nil {
		return false, err
	}
	t.CompletedAt = &now
	return false, nil
}

// NewRetryOf builds the fresh task an operator retry creates for a
// permanently failed one.
func NewRetryOf(failed *AnalysisTask, taskID string, now time.Time) *AnalysisTask {
	return &AnalysisTask{
		TaskID:      taskID,
		SessionID:   failed.SessionID,
		Status:      TaskQueued,
		Priority:    failed.Priority,
		MaxRetries:  failed.MaxRetries,
		RunAfter:    now,
		RetriedFrom: failed.TaskID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// TaskFilter narrows task listings.
type TaskFilter struct {
	Status    TaskStatus
	SessionID string
	Limit     int
	Offset    int
}
