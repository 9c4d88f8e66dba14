package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/yoockh/yoointerview/internal/models"
)

var ErrPriorityRange = fmt.Errorf("priority must be between %d and %d", models.MinPriority, models.MaxPriority)

func checkItem(it Item) error {
	if it.TaskID == "" {
		return errors.New("queue item has no task id")
	}
	if !models.PriorityInRange(it.Priority) {
		return ErrPriorityRange
	}
	return nil
}

// Item is a schedulable reference to an analysis task. The task record is
// the source of truth; the queue only orders and leases ids.
type Item struct {
	TaskID    string    `json:"task_id"`
	Priority  int       `json:"priority"`
	CreatedAt time.Time `json:"created_at"`
	// RunAt delays eligibility; zero means now.
	RunAt time.Time `json:"run_at"`
}

// Claimed is an item leased to one worker until Deadline.
type Claimed struct {
	Item
	Deadline time.Time
}

type Stats struct {
	Ready   int64 `json:"ready"`
	Delayed int64 `json:"delayed"`
	Leased  int64 `json:"leased"`
}

// Queue orders ready items by priority descending then CreatedAt ascending.
// A claimed item that is neither acked nor pushed again before its lease
// deadline becomes ready again.
type Queue interface {
	// Push schedules the item, replacing any ready, delayed or leased entry
	// with the same TaskID. Priorities outside models.MinPriority and
	// models.MaxPriority return ErrPriorityRange.
	Push(ctx context.Context, it Item) error
	// Claim leases the best ready item. It returns nil when nothing is ready.
	Claim(ctx context.Context, lease time.Duration) (*Claimed, error)
	// Ack removes the item entirely.
	Ack(ctx context.Context, taskID string) error
	Stats(ctx context.Context) (Stats, error)
}
