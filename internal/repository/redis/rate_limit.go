package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/NoroNetwork/ppv-streaming/internal/core/port"
)

// slidingWindowScript trims the window, then records the attempt only while
// the count is below the limit. Scores are unix milliseconds.
//
// KEYS[1] window key
// ARGV[1] now, ARGV[2] exclusive lower bound "(<now-window>", ARGV[3] limit,
// ARGV[4] member, ARGV[5] ttl in ms
var slidingWindowScript = redis.NewScript(`
redis.call('ZREMRANGEBYSCORE', KEYS[1], '-inf', ARGV[2])
local count = redis.call('ZCARD', KEYS[1])
local allowed = 0
if count < tonumber(ARGV[3]) then
	redis.call('ZADD', KEYS[1], ARGV[1], ARGV[4])
	redis.call('PEXPIRE', KEYS[1], ARGV[5])
	count = count + 1
	allowed = 1
end
local oldest = -1
local first = redis.call('ZRANGE', KEYS[1], 0, 0, 'WITHSCORES')
if first[2] then
	oldest = tonumber(first[2])
end
return {allowed, count, oldest}
`)

// RateLimitRepository keeps sliding-window attempt logs in Redis sorted sets.
type RateLimitRepository struct {
	client    redis.Scripter
	keyPrefix string
}

var _ port.RateLimitStore = (*RateLimitRepository)(nil)

// NewRateLimitRepository constructs a store over any go-redis scripter.
func NewRateLimitRepository(client redis.Scripter, keyPrefix string) *RateLimitRepository {
	return &RateLimitRepository{client: client, keyPrefix: keyPrefix}
}

// Allow atomically trims the window ending at now and records an attempt
// when fewer than limit attempts remain. The window is inclusive of its
// start: an attempt ages out only once now is strictly past attempt+window.
func (r *RateLimitRepository) Allow(ctx context.Context, identifier string, limit int, window time.Duration, now time.Time) (port.RateLimitDecision, error) {
	if limit <= 0 {
		return port.RateLimitDecision{}, errors.New("limit must be positive")
	}
	if window <= 0 {
		return port.RateLimitDecision{}, errors.New("window must be positive")
	}

	nowMs := now.UnixMilli()
	member := strconv.FormatInt(nowMs, 10) + "-" + uuid.NewString()

	res, err := slidingWindowScript.Run(ctx, r.client, []string{r.key(identifier)},
		nowMs,
		"("+strconv.FormatInt(nowMs-window.Milliseconds(), 10),
		limit,
		member,
		window.Milliseconds(),
	).Int64Slice()
	if err != nil {
		return port.RateLimitDecision{}, fmt.Errorf("redis sliding window: %w", err)
	}
	if len(res) != 3 {
		return port.RateLimitDecision{}, fmt.Errorf("redis sliding window: unexpected reply length %d", len(res))
	}

	decision := port.RateLimitDecision{
		Allowed: res[0] == 1,
		Count:   int(res[1]),
	}
	if res[2] >= 0 {
		decision.Oldest = time.UnixMilli(res[2])
	}
	return decision, nil
}

func (r *RateLimitRepository) key(identifier string) string {
	if r.keyPrefix == "" {
		return identifier
	}
	return fmt.Sprintf("%s:%s", r.keyPrefix, identifier)
}
