package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// claimScript pops the oldest pending task and records it as in flight under
// a fresh receipt in one step, so a crash cannot lose it between the two.
// KEYS: pending, inflight, receipts. ARGV: deadline, receipt.
var claimScript = redis.NewScript(`
local payload = redis.call('RPOP', KEYS[1])
if not payload then
	return false
end
redis.call('HSET', KEYS[3], ARGV[2], payload)
redis.call('ZADD', KEYS[2], ARGV[1], ARGV[2])
return payload
`)

// ackScript forgets one claim. A receipt that Requeue already reclaimed is
// gone, so a late ack cannot touch the claim of a later consumer.
var ackScript = redis.NewScript(`
redis.call('HDEL', KEYS[3], ARGV[1])
return redis.call('ZREM', KEYS[2], ARGV[1])
`)

// requeueScript moves expired claims back to the consuming end of the
// pending list.
var requeueScript = redis.NewScript(`
local expired = redis.call('ZRANGEBYSCORE', KEYS[2], '-inf', ARGV[1], 'LIMIT', 0, ARGV[2])
local moved = 0
for _, receipt in ipairs(expired) do
	if redis.call('ZREM', KEYS[2], receipt) == 1 then
		local payload = redis.call('HGET', KEYS[3], receipt)
		redis.call('HDEL', KEYS[3], receipt)
		if payload then
			redis.call('RPUSH', KEYS[1], payload)
			moved = moved + 1
		end
	end
end
return moved
`)

const (
	defaultPollInterval = 500 * time.Millisecond
	requeueBatch        = 500
)

// Redis is a Queue shared by any number of scanner and worker processes.
// Each family uses a pending list, an in-flight sorted set of claim receipts
// scored by visibility deadline (unix milliseconds) and a hash from receipt
// to payload.
type Redis struct {
	client       redis.UniversalClient
	prefix       string
	visibility   time.Duration
	pollInterval time.Duration
	now          func() time.Time
}

// RedisOption configures a Redis queue.
type RedisOption func(*Redis)

// WithPollInterval sets how long an idle Dequeue waits between claims.
func WithPollInterval(d time.Duration) RedisOption {
	return func(q *Redis) {
		if d > 0 {
			q.pollInterval = d
		}
	}
}

// WithRedisClock overrides time.Now for visibility deadlines.
func WithRedisClock(now func() time.Time) RedisOption {
	return func(q *Redis) { q.now = now }
}

func NewRedis(client redis.UniversalClient, prefix string, visibility time.Duration, opts ...RedisOption) *Redis {
	q := &Redis{
		client:       client,
		prefix:       prefix,
		visibility:   visibility,
		pollInterval: defaultPollInterval,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

func (q *Redis) pendingKey(f Family) string  { return q.key(f, "pending") }
func (q *Redis) inflightKey(f Family) string { return q.key(f, "inflight") }
func (q *Redis) receiptsKey(f Family) string { return q.key(f, "receipts") }

func (q *Redis) familyKeys(f Family) []string {
	return []string{q.pendingKey(f), q.inflightKey(f), q.receiptsKey(f)}
}

func (q *Redis) key(f Family, suffix string) string {
	if q.prefix == "" {
		return fmt.Sprintf("queue:%s:%s", f, suffix)
	}
	return fmt.Sprintf("%s:queue:%s:%s", q.prefix, f, suffix)
}

func (q *Redis) Enqueue(ctx context.Context, task Task) error {
	if err := prepare(&task, q.now()); err != nil {
		return err
	}
	payload, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("marshal task: %w", err)
	}
	if err := q.client.LPush(ctx, q.pendingKey(task.Family), payload).Err(); err != nil {
		return fmt.Errorf("enqueue %s: %w", task.Family, err)
	}
	return nil
}

func (q *Redis) Dequeue(ctx context.Context, family Family) (*Delivery, error) {
	if !family.IsValid() {
		return nil, ErrUnknownFamily
	}
	keys := q.familyKeys(family)
	for {
		deadline := q.now().Add(q.visibility).UnixMilli()
		receipt := uuid.NewString()
		payload, err := claimScript.Run(ctx, q.client, keys, deadline, receipt).Text()
		switch {
		case err == nil:
			var task Task
			if err := json.Unmarshal([]byte(payload), &task); err != nil {
				// Drop poison payloads so they do not cycle through Requeue.
				ackScript.Run(ctx, q.client, keys, receipt)
				return nil, fmt.Errorf("decode task: %w", err)
			}
			return &Delivery{Task: task, receipt: receipt}, nil
		case errors.Is(err, redis.Nil):
		default:
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, fmt.Errorf("dequeue %s: %w", family, err)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(q.pollInterval):
		}
	}
}

func (q *Redis) Ack(ctx context.Context, d *Delivery) error {
	if err := ackScript.Run(ctx, q.client, q.familyKeys(d.Task.Family), d.receipt).Err(); err != nil {
		return fmt.Errorf("ack %s: %w", d.Task.ID, err)
	}
	return nil
}

func (q *Redis) Requeue(ctx context.Context) (int, error) {
	total := 0
	now := q.now().UnixMilli()
	for _, family := range Families {
		n, err := requeueScript.Run(ctx, q.client, q.familyKeys(family), now, requeueBatch).Int()
		if err != nil {
			return total, fmt.Errorf("requeue %s: %w", family, err)
		}
		total += n
	}
	return total, nil
}

// Len reports pending and in-flight counts for family.
func (q *Redis) Len(ctx context.Context, family Family) (pending, inFlight int64, err error) {
	pending, err = q.client.LLen(ctx, q.pendingKey(family)).Result()
	if err != nil {
		return 0, 0, err
	}
	inFlight, err = q.client.ZCard(ctx, q.inflightKey(family)).Result()
	return pending, inFlight, err
}
