package usecase

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/NoroNetwork/ppv-streaming/internal/core/domain"
	"github.com/NoroNetwork/ppv-streaming/internal/core/port"
	"github.com/NoroNetwork/ppv-streaming/internal/infra/logger"
)

// SecurityEventMetrics counts audit events by type.
type SecurityEventMetrics interface {
	IncSecurityEvent(event string)
}

// SecurityEventLog records audit events. Recording never fails the caller:
// when the durable write fails the event is emitted on the logger instead.
type SecurityEventLog struct {
	repo    port.SecurityEventRepository
	logger  *zap.Logger
	metrics SecurityEventMetrics
	now     func() time.Time
}

// NewSecurityEventLog constructs the audit log writer.
func NewSecurityEventLog(repo port.SecurityEventRepository) *SecurityEventLog {
	return &SecurityEventLog{
		repo:   repo,
		logger: zap.NewNop(),
		now:    time.Now,
	}
}

func (l *SecurityEventLog) WithLogger(log *zap.Logger) *SecurityEventLog {
	if log != nil {
		l.logger = log
	}
	return l
}

func (l *SecurityEventLog) WithMetrics(metrics SecurityEventMetrics) *SecurityEventLog {
	if metrics != nil {
		l.metrics = metrics
	}
	return l
}

func (l *SecurityEventLog) WithNow(now func() time.Time) *SecurityEventLog {
	if now != nil {
		l.now = now
	}
	return l
}

// Record appends an audit event. The source (ip, user agent) is taken from
// the request metadata carried on ctx.
func (l *SecurityEventLog) Record(ctx context.Context, eventType string, fields map[string]any) {
	if l == nil {
		return
	}
	src := SourceFromContext(ctx)
	event := domain.SecurityEvent{
		Event:     eventType,
		IP:        src.IP,
		UserAgent: src.UserAgent,
		Context:   fields,
		CreatedAt: l.now().UTC(),
	}

	if l.metrics != nil {
		l.metrics.IncSecurityEvent(eventType)
	}

	log := l.logger.With(zap.String("request_id", logger.RequestIDFromContext(ctx)))
	if l.repo != nil {
		err := l.repo.Insert(ctx, event)
		if err == nil {
			return
		}
		log.Warn("security event persistence failed", zap.String("event", eventType), zap.Error(err))
	}

	log.Warn("security event",
		zap.String("event", eventType),
		zap.String("ip", logger.MaskIP(event.IP)),
		zap.String("user_agent", event.UserAgent),
		zap.Any("context", fields),
		zap.Time("created_at", event.CreatedAt),
	)
}
