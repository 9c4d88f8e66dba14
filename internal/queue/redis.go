package queue

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// claimScript promotes due delayed entries and expired leases, then moves
// the lowest-scored ready entry into the leased set.
//
// KEYS: ready, delayed, leased, scores. ARGV: now ms, lease deadline ms.
var claimScript = redis.NewScript(`
local function promote(set)
  local ids = redis.call('ZRANGEBYSCORE', set, '-inf', ARGV[1])
  for _, id in ipairs(ids) do
    redis.call('ZREM', set, id)
    local score = redis.call('HGET', KEYS[4], id)
    if score then
      redis.call('ZADD', KEYS[1], score, id)
    end
  end
end
promote(KEYS[2])
promote(KEYS[3])
local top = redis.call('ZRANGE', KEYS[1], 0, 0)
if #top == 0 then
  return false
end
redis.call('ZREM', KEYS[1], top[1])
redis.call('ZADD', KEYS[3], ARGV[2], top[1])
return top[1]
`)

// Redis is a Queue shared by every worker process. Ready entries live in a
// sorted set scored so that ZRANGE order is priority desc, created asc.
type Redis struct {
	rdb    *redis.Client
	prefix string
	now    func() time.Time
}

func NewRedis(rdb *redis.Client, prefix string) *Redis {
	if prefix == "" {
		prefix = "analysis:queue"
	}
	return &Redis{rdb: rdb, prefix: prefix, now: time.Now}
}

func (q *Redis) readyKey() string   { return q.prefix + ":ready" }
func (q *Redis) delayedKey() string { return q.prefix + ":delayed" }
func (q *Redis) leasedKey() string  { return q.prefix + ":leased" }
func (q *Redis) scoresKey() string  { return q.prefix + ":scores" }
func (q *Redis) itemsKey() string   { return q.prefix + ":items" }

// readyScore stays exact in a float64 while |priority| <= models.MaxPriority:
// 100 * 1e13 + unix millis < 2^53.
func readyScore(it Item) int64 {
	return -int64(it.Priority)*1e13 + it.CreatedAt.UnixMilli()
}

func (q *Redis) Push(ctx context.Context, it Item) error {
	if err := checkItem(it); err != nil {
		return err
	}
	raw, err := json.Marshal(it)
	if err != nil {
		return err
	}
	id := it.TaskID
	score := strconv.FormatInt(readyScore(it), 10)

	_, err = q.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.HSet(ctx, q.itemsKey(), id, raw)
		p.HSet(ctx, q.scoresKey(), id, score)
		p.ZRem(ctx, q.leasedKey(), id)
		if it.RunAt.After(q.now()) {
			p.ZRem(ctx, q.readyKey(), id)
			p.ZAdd(ctx, q.delayedKey(), redis.Z{Score: float64(it.RunAt.UnixMilli()), Member: id})
		} else {
			p.ZRem(ctx, q.delayedKey(), id)
			p.ZAdd(ctx, q.readyKey(), redis.Z{Score: float64(readyScore(it)), Member: id})
		}
		return nil
	})
	return err
}

func (q *Redis) Claim(ctx context.Context, lease time.Duration) (*Claimed, error) {
	now := q.now()
	deadline := now.Add(lease)

	id, err := claimScript.Run(ctx, q.rdb,
		[]string{q.readyKey(), q.delayedKey(), q.leasedKey(), q.scoresKey()},
		strconv.FormatInt(now.UnixMilli(), 10),
		strconv.FormatInt(deadline.UnixMilli(), 10),
	).Text()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	raw, err := q.rdb.HGet(ctx, q.itemsKey(), id).Bytes()
	if errors.Is(err, redis.Nil) {
		// acked between claim and read
		_ = q.rdb.ZRem(ctx, q.leasedKey(), id).Err()
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var it Item
	if err := json.Unmarshal(raw, &it); err != nil {
		return nil, err
	}
	return &Claimed{Item: it, Deadline: deadline}, nil
}

func (q *Redis) Ack(ctx context.Context, taskID string) error {
	_, err := q.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.ZRem(ctx, q.readyKey(), taskID)
		p.ZRem(ctx, q.delayedKey(), taskID)
		p.ZRem(ctx, q.leasedKey(), taskID)
		p.HDel(ctx, q.scoresKey(), taskID)
		p.HDel(ctx, q.itemsKey(), taskID)
		return nil
	})
	return err
}

func (q *Redis) Stats(ctx context.Context) (Stats, error) {
	var ready, delayed, leased *redis.IntCmd
	_, err := q.rdb.Pipelined(ctx, func(p redis.Pipeliner) error {
		ready = p.ZCard(ctx, q.readyKey())
		delayed = p.ZCard(ctx, q.delayedKey())
		leased = p.ZCard(ctx, q.leasedKey())
		return nil
	})
	if err != nil {
		return Stats{}, err
	}
	return Stats{Ready: ready.Val(), Delayed: delayed.Val(), Leased: leased.Val()}, nil
}
