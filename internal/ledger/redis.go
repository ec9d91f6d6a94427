package ledger

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis is the cross-process ledger. Every operation on a counter runs as a
// single Lua script, so concurrent reservations are serialized by the redis
// event loop and can never together exceed the budget.
type Redis struct {
	R      *redis.Client
	Prefix string
	// TTL bounds how long a reservation may stay pending.
	TTL time.Duration
	// DoneTTL bounds how long commit idempotency markers are kept.
	DoneTTL time.Duration
	// Now allows tests to control the clock used for reservation deadlines.
	Now func() time.Time
}

// Reservation state per counter lives in four keys: a committed-use counter,
// a pending hash (token -> count), a deadline zset (token -> expiry ms) and a
// done hash for commit idempotency. Expired pending entries are swept at the
// start of every script.

var reserveScript = redis.NewScript(`
local pending, deadlines, used = KEYS[1], KEYS[2], KEYS[3]
local now, ttl, limit, requested, token = tonumber(ARGV[1]), tonumber(ARGV[2]), tonumber(ARGV[3]), tonumber(ARGV[4]), ARGV[5]

local stale = redis.call("zrangebyscore", deadlines, "-inf", now)
for _, t in ipairs(stale) do
  redis.call("hdel", pending, t)
  redis.call("zrem", deadlines, t)
end

local existing = redis.call("hget", pending, token)
if existing then
  return tonumber(existing)
end

local usedCount = tonumber(redis.call("get", used) or "0")
local pendingSum = 0
for _, v in ipairs(redis.call("hvals", pending)) do
  pendingSum = pendingSum + tonumber(v)
end

local avail = limit - usedCount - pendingSum
if avail <= 0 then
  return 0
end
local grant = math.min(avail, requested)
redis.call("hset", pending, token, grant)
redis.call("zadd", deadlines, now + ttl, token)
return grant
`)

var commitScript = redis.NewScript(`
local pending, deadlines, used, done = KEYS[1], KEYS[2], KEYS[3], KEYS[4]
local token, doneTTL = ARGV[1], tonumber(ARGV[2])

local prior = redis.call("hget", done, token)
if prior then
  return tonumber(prior)
end
local count = redis.call("hget", pending, token)
if not count then
  return -1
end
redis.call("hdel", pending, token)
redis.call("zrem", deadlines, token)
redis.call("incrby", used, count)
redis.call("hset", done, token, count)
redis.call("pexpire", done, doneTTL)
return tonumber(count)
`)

var shrinkScript = redis.NewScript(`
local pending, deadlines = KEYS[1], KEYS[2]
local now, count, token = tonumber(ARGV[1]), tonumber(ARGV[2]), ARGV[3]

local stale = redis.call("zrangebyscore", deadlines, "-inf", now)
for _, t in ipairs(stale) do
  redis.call("hdel", pending, t)
  redis.call("zrem", deadlines, t)
end

local existing = redis.call("hget", pending, token)
if not existing then
  return 0
end
if count <= 0 then
  redis.call("hdel", pending, token)
  redis.call("zrem", deadlines, token)
  return 0
end
if count < tonumber(existing) then
  redis.call("hset", pending, token, count)
  return count
end
return tonumber(existing)
`)

var refundScript = redis.NewScript(`
local used = KEYS[1]
local count = tonumber(ARGV[1])
local current = tonumber(redis.call("get", used) or "0")
local next = current - count
if next < 0 then
  next = 0
end
redis.call("set", used, next)
return next
`)

// TryReserve implements Ledger.
func (l *Redis) TryReserve(ctx context.Context, counterID string, limit int, token string, requested int) (int, error) {
	if requested <= 0 {
		return 0, nil
	}
	now := l.now().UnixMilli()
	granted, err := reserveScript.Run(ctx, l.R,
		[]string{l.key(counterID, "pending"), l.key(counterID, "deadline"), l.key(counterID, "used")},
		now, l.ttl().Milliseconds(), limit, requested, token,
	).Int()
	if err != nil {
		return 0, err
	}
	return granted, nil
}

// Commit implements Ledger.
func (l *Redis) Commit(ctx context.Context, counterID, token string) (int, error) {
	count, err := commitScript.Run(ctx, l.R,
		[]string{l.key(counterID, "pending"), l.key(counterID, "deadline"), l.key(counterID, "used"), l.key(counterID, "done")},
		token, l.doneTTL().Milliseconds(),
	).Int()
	if err != nil {
		return 0, err
	}
	if count < 0 {
		return 0, ErrUnknownReservation
	}
	return count, nil
}

// Release implements Ledger.
func (l *Redis) Release(ctx context.Context, counterID, token string) error {
	pipe := l.R.TxPipeline()
	pipe.HDel(ctx, l.key(counterID, "pending"), token)
	pipe.ZRem(ctx, l.key(counterID, "deadline"), token)
	_, err := pipe.Exec(ctx)
	return err
}

// Shrink implements Ledger.
func (l *Redis) Shrink(ctx context.Context, counterID, token string, count int) error {
	return shrinkScript.Run(ctx, l.R,
		[]string{l.key(counterID, "pending"), l.key(counterID, "deadline")},
		l.now().UnixMilli(), count, token,
	).Err()
}

// Refund implements Ledger.
func (l *Redis) Refund(ctx context.Context, counterID string, count int) error {
	if count <= 0 {
		return nil
	}
	return refundScript.Run(ctx, l.R, []string{l.key(counterID, "used")}, count).Err()
}

// Used implements Ledger.
func (l *Redis) Used(ctx context.Context, counterID string) (int, error) {
	v, err := l.R.Get(ctx, l.key(counterID, "used")).Int()
	if err == redis.Nil {
		return 0, nil
	}
	return v, err
}

func (l *Redis) key(counterID, part string) string {
	prefix := l.Prefix
	if prefix == "" {
		prefix = "promo:ledger:"
	}
	return prefix + counterID + ":" + part
}

func (l *Redis) now() time.Time {
	if l.Now != nil {
		return l.Now()
	}
	return time.Now()
}

func (l *Redis) ttl() time.Duration {
	if l.TTL > 0 {
		return l.TTL
	}
	return 30 * time.Second
}

func (l *Redis) doneTTL() time.Duration {
	if l.DoneTTL > 0 {
		return l.DoneTTL
	}
	return 24 * time.Hour
}
