package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yoockh/yoointerview/internal/models"
)

func TestRedisPubSubRoundTrip(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	ps := NewRedisPubSub(rdb)
	ch, closeSub, err := ps.Subscribe(ctx, "s1")
	require.NoError(t, err)
	defer closeSub()

	task := &models.AnalysisTask{TaskID: "t1", SessionID: "s1", Status: models.TaskRunning}
	require.NoError(t, ps.Publish(ctx, NewTaskEvent(task, time.Now())))

	select {
	case raw := <-ch:
		var ev TaskEvent
		require.NoError(t, json.Unmarshal([]byte(raw), &ev))
		assert.Equal(t, "t1", ev.TaskID)
		assert.Equal(t, models.TaskRunning, ev.Status)
	case <-ctx.Done():
		t.Fatal("no event received")
	}
}

func TestStatusChannel(t *testing.T) {
	assert.Equal(t, "analysis:session:abc:status", StatusChannel("abc"))
	assert.NoError(t, Discard{}.Publish(context.Background(), TaskEvent{}))
}
