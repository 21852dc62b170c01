// Package ratelimit implements a sliding-window request limiter.
package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Decision is the limiter's answer for one request.
type Decision struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// Limiter admits at most Limit requests per key in any trailing window.
type Limiter interface {
	Allow(ctx context.Context, key string) (Decision, error)
}

// slidingWindowScript trims the window, then records the request only when it is admitted.
// Scores are Unix microseconds.
const slidingWindowScript = `
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])
local expiry = tonumber(ARGV[4])
local member = ARGV[5]

redis.call('ZREMRANGEBYSCORE', key, 0, now - window)

local count = redis.call('ZCARD', key)
local oldest = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
local oldestScore = now
if oldest[2] then
    oldestScore = tonumber(oldest[2])
end

if count >= limit then
    return {0, 0, oldestScore}
end

redis.call('ZADD', key, now, member)
redis.call('EXPIRE', key, expiry)
if count == 0 then
    oldestScore = now
end
return {1, limit - count - 1, oldestScore}
`

// Redis is a Limiter shared by every process that talks to the same Redis.
type Redis struct {
	client *redis.Client
	script *redis.Script
	limit  int
	window time.Duration
	prefix string
	now    func() time.Time
}

// NewRedis creates a Redis-backed limiter allowing limit requests per window.
func NewRedis(client *redis.Client, limit int, window time.Duration) *Redis {
	return &Redis{
		client: client,
		script: redis.NewScript(slidingWindowScript),
		limit:  limit,
		window: window,
		prefix: "ratelimit:",
		now:    time.Now,
	}
}

func (l *Redis) Allow(ctx context.Context, key string) (Decision, error) {
	now := l.now()
	res, err := l.script.Run(ctx, l.client, []string{l.prefix + key},
		now.UnixMicro(),
		l.window.Microseconds(),
		l.limit,
		int(l.window.Seconds())+60,
		uuid.NewString(),
	).Int64Slice()
	if err != nil {
		return Decision{}, fmt.Errorf("rate limit script: %w", err)
	}
	if len(res) != 3 {
		return Decision{}, fmt.Errorf("rate limit script: unexpected reply %v", res)
	}
	return Decision{
		Allowed:   res[0] == 1,
		Limit:     l.limit,
		Remaining: int(res[1]),
		ResetAt:   time.UnixMicro(res[2]).Add(l.window),
	}, nil
}

// Memory is a process-local Limiter with the same window semantics as Redis.
// The HTTP and middleware tests use it in place of a Redis server.
type Memory struct {
	mu        sync.Mutex
	limit     int
	window    time.Duration
	hits      map[string][]time.Time
	lastSweep time.Time
	now       func() time.Time
}

// NewMemory creates an in-process limiter allowing limit requests per window.
func NewMemory(limit int, window time.Duration) *Memory {
	return &Memory{limit: limit, window: window, hits: make(map[string][]time.Time), now: time.Now}
}

// SetClock replaces the limiter's clock.
func (l *Memory) SetClock(now func() time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.now = now
}

func (l *Memory) Allow(_ context.Context, key string) (Decision, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	cutoff := now.Add(-l.window)
	if now.Sub(l.lastSweep) >= l.window {
		l.sweep(cutoff)
		l.lastSweep = now
	}

	hits := l.hits[key]
	i := 0
	for i < len(hits) && !hits[i].After(cutoff) {
		i++
	}
	hits = hits[i:]

	d := Decision{Limit: l.limit, ResetAt: now.Add(l.window)}
	if len(hits) > 0 {
		d.ResetAt = hits[0].Add(l.window)
	}
	if len(hits) >= l.limit {
		if len(hits) == 0 {
			delete(l.hits, key)
		} else {
			l.hits[key] = hits
		}
		return d, nil
	}
	hits = append(hits, now)
	l.hits[key] = hits
	d.Allowed = true
	d.Remaining = l.limit - len(hits)
	return d, nil
}

// sweep drops keys whose newest hit has left the window.
func (l *Memory) sweep(cutoff time.Time) {
	for key, hits := range l.hits {
		if len(hits) == 0 || !hits[len(hits)-1].After(cutoff) {
			delete(l.hits, key)
		}
	}
}
