package queue

import (
	"container/heap"
	"context"
	"sync"
	"time"
)

type entry struct {
	Item
	seq   uint64
	index int
}

type readyHeap []*entry

func (h readyHeap) Len() int { return len(h) }

func (h readyHeap) Less(i, j int) bool {
	a, b := h[i], h[j]
	if a.Priority != b.Priority {
		return a.Priority > b.Priority
	}
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.seq < b.seq
}

func (h readyHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *readyHeap) Push(x any) {
	e := x.(*entry)
	e.index = len(*h)
	*h = append(*h, e)
}

func (h *readyHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	e.index = -1
	*h = old[:n-1]
	return e
}

// Memory is an in-process Queue for single-instance deployments and tests.
type Memory struct {
	mu      sync.Mutex
	now     func() time.Time
	seq     uint64
	ready   readyHeap
	byID    map[string]*entry
	delayed map[string]*entry
	leased  map[string]leasedEntry
}

type leasedEntry struct {
	e        *entry
	deadline time.Time
}

func NewMemory() *Memory {
	return newMemoryWithClock(time.Now)
}

func newMemoryWithClock(now func() time.Time) *Memory {
	return &Memory{
		now:     now,
		byID:    make(map[string]*entry),
		delayed: make(map[string]*entry),
		leased:  make(map[string]leasedEntry),
	}
}

func (q *Memory) removeLocked(taskID string) {
	if e, ok := q.byID[taskID]; ok {
		if e.index >= 0 {
			heap.Remove(&q.ready, e.index)
		}
		delete(q.byID, taskID)
	}
	delete(q.delayed, taskID)
	delete(q.leased, taskID)
}

func (q *Memory) makeReadyLocked(e *entry) {
	q.byID[e.TaskID] = e
	heap.Push(&q.ready, e)
}

func (q *Memory) Push(_ context.Context, it Item) error {
	if err := checkItem(it); err != nil {
		return err
	}
	q.mu.Lock()
	defer q.mu.Unlock()

	q.removeLocked(it.TaskID)
	q.seq++
	e := &entry{Item: it, seq: q.seq, index: -1}
	if it.RunAt.After(q.now()) {
		q.delayed[it.TaskID] = e
		return nil
	}
	q.makeReadyLocked(e)
	return nil
}

// promoteLocked moves due delayed items and expired leases into ready.
func (q *Memory) promoteLocked(now time.Time) {
	for id, e := range q.delayed {
		if !e.RunAt.After(now) {
			delete(q.delayed, id)
			q.makeReadyLocked(e)
		}
	}
	for id, l := range q.leased {
		if !now.Before(l.deadline) {
			delete(q.leased, id)
			q.makeReadyLocked(l.e)
		}
	}
}

func (q *Memory) Claim(_ context.Context, lease time.Duration) (*Claimed, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	now := q.now()
	q.promoteLocked(now)
	if q.ready.Len() == 0 {
		return nil, nil
	}
	e := heap.Pop(&q.ready).(*entry)
	delete(q.byID, e.TaskID)

	deadline := now.Add(lease)
	q.leased[e.TaskID] = leasedEntry{e: e, deadline: deadline}
	return &Claimed{Item: e.Item, Deadline: deadline}, nil
}

func (q *Memory) Ack(_ context.Context, taskID string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.removeLocked(taskID)
	return nil
}

func (q *Memory) Stats(_ context.Context) (Stats, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return Stats{
		Ready:   int64(q.ready.Len()),
		Delayed: int64(len(q.delayed)),
		Leased:  int64(len(q.leased)),
	}, nil
}
