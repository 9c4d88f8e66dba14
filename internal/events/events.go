package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/yoockh/yoointerview/internal/models"
)

// TaskEvent is published on every analysis task status change.
type TaskEvent struct {
	Type         string            `json:"type"`
	TaskID       string            `json:"task_id"`
	SessionID    string            `json:"session_id"`
	Status       models.TaskStatus `json:"status"`
	RetryCount   int               `json:"retry_count"`
	ErrorMessage string            `json:"error_message,omitempty"`
	At           time.Time         `json:"at"`
}

func NewTaskEvent(t *models.AnalysisTask, at time.Time) TaskEvent {
	return TaskEvent{
		Type:         "analysis_status",
		TaskID:       t.TaskID,
		SessionID:    t.SessionID,
		Status:       t.Status,
		RetryCount:   t.RetryCount,
		ErrorMessage: t.ErrorMessage,
		At:           at,
	}
}

type Publisher interface {
	Publish(ctx context.Context, ev TaskEvent) error
}

// Discard drops every event.
type Discard struct{}

func (Discard) Publish(context.Context, TaskEvent) error { return nil }

func StatusChannel(sessionID string) string {
	return "analysis:session:" + sessionID + ":status"
}

type RedisPubSub struct {
	rdb *redis.Client
}

func NewRedisPubSub(rdb *redis.Client) *RedisPubSub {
	return &RedisPubSub{rdb: rdb}
}

func (p *RedisPubSub) Publish(ctx context.Context, ev TaskEvent) error {
	b, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return p.rdb.Publish(ctx, StatusChannel(ev.SessionID), b).Err()
}

// Subscribe streams raw event payloads for one session until ctx ends or
// the returned close func is called.
func (p *RedisPubSub) Subscribe(ctx context.Context, sessionID string) (<-chan string, func() error, error) {
	sub := p.rdb.Subscribe(ctx, StatusChannel(sessionID))
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, nil, err
	}

	out := make(chan string)
	go func() {
		defer close(out)
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				select {
				case out <- msg.Payload:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, sub.Close, nil
}
