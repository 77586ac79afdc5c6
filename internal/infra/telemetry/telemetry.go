package telemetry

import (
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "ppv"

// Metrics holds the domain counters of the control plane. A nil *Metrics is a no-op.
type Metrics struct {
	logins              *prometheus.CounterVec
	rateLimitRejections *prometheus.CounterVec
	rateLimitFailOpens  *prometheus.CounterVec
	securityEvents      *prometheus.CounterVec
	entitlementGrants   *prometheus.CounterVec
	webhookEvents       *prometheus.CounterVec
}

// NewMetrics registers the domain counters with reg, reusing collectors that
// are already registered. A nil reg means the default registerer.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	var (
		m   Metrics
		err error
	)
	if m.logins, err = registerCounterVec(reg, "auth", "login_total",
		"Login attempts partitioned by outcome.", "outcome"); err != nil {
		return nil, err
	}
	if m.rateLimitRejections, err = registerCounterVec(reg, "", "rate_limit_rejections_total",
		"Requests rejected by the sliding-window rate limiter.", "action"); err != nil {
		return nil, err
	}
	if m.rateLimitFailOpens, err = registerCounterVec(reg, "", "rate_limit_store_errors_total",
		"Rate limit checks let through because the store failed.", "action"); err != nil {
		return nil, err
	}
	if m.securityEvents, err = registerCounterVec(reg, "", "security_events_total",
		"Security events recorded, partitioned by event type.", "event"); err != nil {
		return nil, err
	}
	if m.entitlementGrants, err = registerCounterVec(reg, "", "entitlement_grants_total",
		"Payment confirmations applied to the ledger, partitioned by result.", "result"); err != nil {
		return nil, err
	}
	if m.webhookEvents, err = registerCounterVec(reg, "", "webhook_events_total",
		"Verified payment webhook events, partitioned by gateway event type.", "type"); err != nil {
		return nil, err
	}
	return &m, nil
}

func registerCounterVec(reg prometheus.Registerer, subsystem, name, help string, labels ...string) (*prometheus.CounterVec, error) {
	vec := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      name,
		Help:      help,
	}, labels)

	if err := reg.Register(vec); err != nil {
		var already prometheus.AlreadyRegisteredError
		if !errors.As(err, &already) {
			return nil, fmt.Errorf("register %s collector: %w", name, err)
		}
		existing, ok := already.ExistingCollector.(*prometheus.CounterVec)
		if !ok {
			return nil, fmt.Errorf("existing %s collector has unexpected type %T", name, already.ExistingCollector)
		}
		return existing, nil
	}
	return vec, nil
}

// IncLogin counts a login attempt by outcome (success, invalid_credentials, locked, rate_limited, ...).
func (m *Metrics) IncLogin(outcome string) {
	if m == nil {
		return
	}
	m.logins.WithLabelValues(outcome).Inc()
}

func (m *Metrics) IncRateLimitRejection(action string) {
	if m == nil {
		return
	}
	m.rateLimitRejections.WithLabelValues(action).Inc()
}

// IncRateLimitStoreError counts checks that failed open.
func (m *Metrics) IncRateLimitStoreError(action string) {
	if m == nil {
		return
	}
	m.rateLimitFailOpens.WithLabelValues(action).Inc()
}

func (m *Metrics) IncSecurityEvent(event string) {
	if m == nil {
		return
	}
	m.securityEvents.WithLabelValues(event).Inc()
}

// IncEntitlementGrant counts ledger outcomes: granted, duplicate, ignored.
func (m *Metrics) IncEntitlementGrant(result string) {
	if m == nil {
		return
	}
	m.entitlementGrants.WithLabelValues(result).Inc()
}

func (m *Metrics) IncWebhookEvent(eventType string) {
	if m == nil {
		return
	}
	m.webhookEvents.WithLabelValues(eventType).Inc()
}
