package usecase

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/NoroNetwork/ppv-streaming/internal/core/domain"
	"github.com/NoroNetwork/ppv-streaming/internal/core/port"
	"github.com/NoroNetwork/ppv-streaming/internal/repository"
)

type fakeUserRepository struct {
	mu          sync.Mutex
	byEmail     map[string]*domain.User
	windowStart map[string]time.Time
	createErr   error
}

func newFakeUserRepository() *fakeUserRepository {
	return &fakeUserRepository{byEmail: map[string]*domain.User{}, windowStart: map[string]time.Time{}}
}

func (f *fakeUserRepository) Create(_ context.Context, user domain.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	key := strings.ToLower(user.Email)
	if _, ok := f.byEmail[key]; ok {
		return repository.ErrDuplicate
	}
	u := user
	f.byEmail[key] = &u
	return nil
}

func (f *fakeUserRepository) GetByID(_ context.Context, id string) (*domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.byEmail {
		if u.ID == id {
			cp := *u
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (f *fakeUserRepository) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.byEmail[strings.ToLower(email)]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (f *fakeUserRepository) EmailExists(_ context.Context, email string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.byEmail[strings.ToLower(email)]
	return ok, nil
}

func (f *fakeUserRepository) RegisterFailedLogin(_ context.Context, id string, threshold int, window time.Duration, now time.Time) (int, *time.Time, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.byEmail {
		if u.ID != id {
			continue
		}
		start, ok := f.windowStart[id]
		stale := (u.LockedUntil != nil && !u.LockedUntil.After(now)) || !ok || !start.After(now.Add(-window))
		if stale {
			u.FailedLoginAttempts = 0
			u.LockedUntil = nil
			f.windowStart[id] = now
		}
		u.FailedLoginAttempts++
		if u.FailedLoginAttempts >= threshold {
			until := now.Add(window)
			u.LockedUntil = &until
		}
		return u.FailedLoginAttempts, u.LockedUntil, nil
	}
	return 0, nil, repository.ErrNotFound
}

func (f *fakeUserRepository) RegisterSuccessfulLogin(_ context.Context, id string, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.byEmail {
		if u.ID == id {
			u.FailedLoginAttempts = 0
			u.LockedUntil = nil
			delete(f.windowStart, id)
			last := at
			u.LastLogin = &last
			return nil
		}
	}
	return repository.ErrNotFound
}

func (f *fakeUserRepository) get(email string) *domain.User {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.byEmail[email]
}

type fakeLoginAttempts struct {
	mu       sync.Mutex
	attempts []domain.LoginAttempt
	countErr error
}

func (f *fakeLoginAttempts) Record(_ context.Context, attempt domain.LoginAttempt) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.attempts = append(f.attempts, attempt)
	return nil
}

func (f *fakeLoginAttempts) CountRecentFailures(_ context.Context, email string, since time.Time) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.countErr != nil {
		return 0, f.countErr
	}
	var lastSuccess time.Time
	for _, a := range f.attempts {
		if a.Email == email && a.Succeeded && a.CreatedAt.After(lastSuccess) {
			lastSuccess = a.CreatedAt
		}
	}
	count := 0
	for _, a := range f.attempts {
		if a.Email == email && !a.Succeeded && a.CreatedAt.After(since) && a.CreatedAt.After(lastSuccess) {
			count++
		}
	}
	return count, nil
}

type fakeSecurityEvents struct {
	mu        sync.Mutex
	events    []domain.SecurityEvent
	insertErr error
}

func (f *fakeSecurityEvents) Insert(_ context.Context, event domain.SecurityEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.insertErr != nil {
		return f.insertErr
	}
	f.events = append(f.events, event)
	return nil
}

func (f *fakeSecurityEvents) count(eventType string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, e := range f.events {
		if e.Event == eventType {
			n++
		}
	}
	return n
}

func (f *fakeSecurityEvents) last(eventType string) (domain.SecurityEvent, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.events) - 1; i >= 0; i-- {
		if f.events[i].Event == eventType {
			return f.events[i], true
		}
	}
	return domain.SecurityEvent{}, false
}

// fakeRateLimitStore keeps a sliding window per identifier in memory.
type fakeRateLimitStore struct {
	mu      sync.Mutex
	windows map[string][]time.Time
	err     error
}

func newFakeRateLimitStore() *fakeRateLimitStore {
	return &fakeRateLimitStore{windows: map[string][]time.Time{}}
}

func (f *fakeRateLimitStore) Allow(_ context.Context, identifier string, limit int, window time.Duration, now time.Time) (port.RateLimitDecision, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return port.RateLimitDecision{}, f.err
	}
	cutoff := now.Add(-window)
	kept := f.windows[identifier][:0]
	for _, ts := range f.windows[identifier] {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	allowed := len(kept) < limit
	if allowed {
		kept = append(kept, now)
	}
	f.windows[identifier] = kept

	decision := port.RateLimitDecision{Allowed: allowed, Count: len(kept)}
	if len(kept) > 0 {
		decision.Oldest = kept[0]
	}
	return decision, nil
}

// plainHasher keeps tests fast; the real argon2 hasher is covered in security.
type plainHasher struct{}

func (plainHasher) Hash(password string) (string, error) {
	if password == "" {
		return "", errors.New("empty password")
	}
	return "plain$" + password, nil
}

func (plainHasher) Verify(password, encoded string) (bool, error) {
	return encoded == "plain$"+password, nil
}

type fakePublisher struct {
	mu         sync.Mutex
	registered []domain.UserRegisteredEvent
	granted    []domain.EntitlementGrantedEvent
	err        error
}

func (f *fakePublisher) PublishUserRegistered(_ context.Context, event domain.UserRegisteredEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.registered = append(f.registered, event)
	return f.err
}

func (f *fakePublisher) PublishEntitlementGranted(_ context.Context, event domain.EntitlementGrantedEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.granted = append(f.granted, event)
	return f.err
}

type streamRevenue struct {
	revenue   decimal.Decimal
	purchases int
}

// fakeEntitlementRepository enforces both unique keys the way the table does.
type fakeEntitlementRepository struct {
	mu       sync.Mutex
	grants   []domain.EntitlementGrant
	stats    map[string]streamRevenue
	existErr error
	grantErr error
}

func newFakeEntitlementRepository() *fakeEntitlementRepository {
	return &fakeEntitlementRepository{stats: map[string]streamRevenue{}}
}

func (f *fakeEntitlementRepository) Exists(_ context.Context, userID, streamID, paymentReference string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.existErr != nil {
		return false, f.existErr
	}
	for _, g := range f.grants {
		if g.UserID == userID && g.StreamID == streamID {
			return true, nil
		}
		if paymentReference != "" && g.PaymentReference == paymentReference {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeEntitlementRepository) Grant(_ context.Context, grant domain.EntitlementGrant) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.grantErr != nil {
		return f.grantErr
	}
	for _, g := range f.grants {
		if (g.UserID == grant.UserID && g.StreamID == grant.StreamID) || g.PaymentReference == grant.PaymentReference {
			return repository.ErrDuplicate
		}
	}
	f.grants = append(f.grants, grant)
	st := f.stats[grant.StreamID]
	st.revenue = st.revenue.Add(grant.AmountPaid)
	st.purchases++
	f.stats[grant.StreamID] = st
	return nil
}

func (f *fakeEntitlementRepository) ListByUser(_ context.Context, userID string) ([]domain.EntitlementGrant, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.EntitlementGrant
	for _, g := range f.grants {
		if g.UserID == userID {
			out = append(out, g)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].GrantedAt.After(out[j].GrantedAt) })
	return out, nil
}

func (f *fakeEntitlementRepository) grantsWithReference(ref string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, g := range f.grants {
		if g.PaymentReference == ref {
			n++
		}
	}
	return n
}

func (f *fakeEntitlementRepository) revenue(streamID string) streamRevenue {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stats[streamID]
}

type fakeStreamRepository struct {
	streams  map[string]domain.Stream
	sales    map[string]domain.StreamSales
	salesErr error
}

func (f *fakeStreamRepository) Totals(_ context.Context, id string) (domain.StreamSales, error) {
	if f.salesErr != nil {
		return domain.StreamSales{}, f.salesErr
	}
	return f.sales[id], nil
}

func (f *fakeStreamRepository) GetByID(_ context.Context, id string) (*domain.Stream, error) {
	s, ok := f.streams[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &s, nil
}

type fakeGateway struct {
	event     domain.PaymentEvent
	verifyErr error

	intent       domain.PaymentIntent
	intentErr    error
	intentCalls  int
	lastAmount   int64
	lastCurrency string
	lastMetadata map[string]string
}

func (f *fakeGateway) CreateIntent(_ context.Context, amountCents int64, currency string, metadata map[string]string) (domain.PaymentIntent, error) {
	f.intentCalls++
	f.lastAmount = amountCents
	f.lastCurrency = currency
	f.lastMetadata = metadata
	if f.intentErr != nil {
		return domain.PaymentIntent{}, f.intentErr
	}
	return f.intent, nil
}

func (f *fakeGateway) VerifySignature([]byte, string) (domain.PaymentEvent, error) {
	if f.verifyErr != nil {
		return domain.PaymentEvent{}, f.verifyErr
	}
	return f.event, nil
}

type fakeMediaServer struct {
	created []string
	deleted []string
	stats   domain.StreamStats
	err     error
}

func (f *fakeMediaServer) CreateStream(_ context.Context, key string) (domain.StreamEndpoints, error) {
	if f.err != nil {
		return domain.StreamEndpoints{}, f.err
	}
	f.created = append(f.created, key)
	return f.Endpoints(key), nil
}

func (f *fakeMediaServer) DeleteStream(_ context.Context, key string) error {
	if f.err != nil {
		return f.err
	}
	f.deleted = append(f.deleted, key)
	return nil
}

func (f *fakeMediaServer) GetStats(context.Context, string) (domain.StreamStats, error) {
	return f.stats, f.err
}

func (f *fakeMediaServer) Endpoints(key string) domain.StreamEndpoints {
	return domain.StreamEndpoints{
		StreamKey: key,
		RTMPURL:   "rtmp://media.local:1935/" + key,
		HLSURL:    "http://media.local:8888/" + key + "/index.m3u8",
	}
}

type fakeMetrics struct {
	mu     sync.Mutex
	counts map[string]int
}

func newFakeMetrics() *fakeMetrics {
	return &fakeMetrics{counts: map[string]int{}}
}

func (f *fakeMetrics) inc(key string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.counts[key]++
}

func (f *fakeMetrics) get(key string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.counts[key]
}

func (f *fakeMetrics) IncLogin(outcome string)             { f.inc("login:" + outcome) }
func (f *fakeMetrics) IncRateLimitRejection(action string) { f.inc("rate_limit:" + action) }
func (f *fakeMetrics) IncRateLimitStoreError(action string) { f.inc("rate_limit_store_error:" + action) }
func (f *fakeMetrics) IncSecurityEvent(event string)       { f.inc("security:" + event) }
func (f *fakeMetrics) IncEntitlementGrant(result string)   { f.inc("grant:" + result) }
func (f *fakeMetrics) IncWebhookEvent(eventType string)    { f.inc("webhook:" + eventType) }
