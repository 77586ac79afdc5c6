package usecase

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/NoroNetwork/ppv-streaming/internal/core/port"
)

// Rate limit identifier prefixes, one per throttled action.
const (
	RateLimitActionLogin    = "login"
	RateLimitActionRegister = "register"
	RateLimitActionAPI      = "api"
)

// RateLimitMetrics counts rejected attempts and store failures per action.
type RateLimitMetrics interface {
	IncRateLimitRejection(action string)
	IncRateLimitStoreError(action string)
}

// RateLimiter throttles identifiers over a sliding window held in a shared store.
type RateLimiter struct {
	store   port.RateLimitStore
	logger  *zap.Logger
	metrics RateLimitMetrics
	now     func() time.Time
}

// NewRateLimiter constructs a limiter over store.
func NewRateLimiter(store port.RateLimitStore) *RateLimiter {
	return &RateLimiter{
		store:  store,
		logger: zap.NewNop(),
		now:    time.Now,
	}
}

func (r *RateLimiter) WithLogger(logger *zap.Logger) *RateLimiter {
	if logger != nil {
		r.logger = logger
	}
	return r
}

func (r *RateLimiter) WithMetrics(metrics RateLimitMetrics) *RateLimiter {
	if metrics != nil {
		r.metrics = metrics
	}
	return r
}

func (r *RateLimiter) WithNow(now func() time.Time) *RateLimiter {
	if now != nil {
		r.now = now
	}
	return r
}

// RateLimitKey builds the identifier for action performed from ip.
func RateLimitKey(action, ip string) string {
	return action + ":" + ip
}

// CheckAndRecord records an attempt for identifier and reports whether it fits
// within maxAttempts over window. Rejected attempts are not recorded.
// Store failures let the request through and are counted so an outage that
// disables throttling shows up on dashboards.
func (r *RateLimiter) CheckAndRecord(ctx context.Context, identifier string, maxAttempts int, window time.Duration) bool {
	decision, err := r.store.Allow(ctx, identifier, maxAttempts, window, r.now())
	if err != nil {
		r.logger.Warn("rate limit store unavailable, allowing request",
			zap.String("identifier", identifier),
			zap.Error(err),
		)
		if r.metrics != nil {
			r.metrics.IncRateLimitStoreError(actionOf(identifier))
		}
		return true
	}
	if !decision.Allowed && r.metrics != nil {
		r.metrics.IncRateLimitRejection(actionOf(identifier))
	}
	return decision.Allowed
}

func actionOf(identifier string) string {
	if i := strings.IndexByte(identifier, ':'); i > 0 {
		return identifier[:i]
	}
	return identifier
}
