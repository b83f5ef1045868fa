//go:build !integration

package usecase_test

import (
	"context"
	"io"
	"sort"
	"sync"
	"testing/fstest"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"mymedaga-payments/internal/domain"
	"mymedaga-payments/internal/domain/model"
	"mymedaga-payments/internal/domain/ports/adapter"
	"mymedaga-payments/internal/domain/ports/repository"
	"mymedaga-payments/internal/infra/i18n"
)

// -----------------------------
// Utilities: tiny helpers
// -----------------------------

func int64p(v int64) *int64 { return &v }

func xof(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

// =============================
// Transactions
// =============================

// MockTxManager runs fn immediately. Transactions are serialized, which is
// what row locks give the real code paths under test.
type MockTxManager struct {
	mu sync.Mutex

	Commits   int
	Rollbacks int

	WithTxFunc func(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error
}

func NewMockTxManager() *MockTxManager {
	return &MockTxManager{}
}

var _ repository.TransactionManager = (*MockTxManager)(nil)

func (m *MockTxManager) WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
	if m.WithTxFunc != nil {
		return m.WithTxFunc(ctx, txOpt, fn)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := fn(ctx, "tx"); err != nil {
		m.Rollbacks++
		return err
	}
	m.Commits++
	return nil
}

// =============================
// Repositories
// =============================

// ---- Mock PaymentRepository ----

type MockPaymentRepo struct {
	mu   sync.Mutex
	data map[string]*model.Payment // by id

	CreateFunc             func(ctx context.Context, tx repository.Tx, p *model.Payment) error
	UpdateStatusIfOpenFunc func(ctx context.Context, tx repository.Tx, id string, status model.PaymentStatus, metadata map[string]any, paidAt *time.Time) (bool, error)
}

var _ repository.PaymentRepository = (*MockPaymentRepo)(nil)

func NewMockPaymentRepo() *MockPaymentRepo {
	return &MockPaymentRepo{data: map[string]*model.Payment{}}
}

// Put seeds a payment.
func (r *MockPaymentRepo) Put(p *model.Payment) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *p
	r.data[p.ID] = &cp
}

// Get returns a copy of the stored payment, nil when missing.
func (r *MockPaymentRepo) Get(id string) *model.Payment {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.data[id]
	if !ok {
		return nil
	}
	cp := *p
	return &cp
}

func (r *MockPaymentRepo) All() []*model.Payment {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*model.Payment, 0, len(r.data))
	for _, p := range r.data {
		cp := *p
		out = append(out, &cp)
	}
	return out
}

func (r *MockPaymentRepo) Create(ctx context.Context, tx repository.Tx, p *model.Payment) error {
	if r.CreateFunc != nil {
		return r.CreateFunc(ctx, tx, p)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.data {
		if existing.TransactionID == p.TransactionID {
			return domain.ErrAlreadyExists
		}
	}
	cp := *p
	r.data[p.ID] = &cp
	return nil
}

func (r *MockPaymentRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Payment, error) {
	if p := r.Get(id); p != nil {
		return p, nil
	}
	return nil, domain.ErrNotFound
}

func (r *MockPaymentRepo) find(match func(*model.Payment) bool) (*model.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.data {
		if match(p) {
			cp := *p
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (r *MockPaymentRepo) FindByTransactionID(ctx context.Context, tx repository.Tx, transactionID string) (*model.Payment, error) {
	return r.find(func(p *model.Payment) bool { return p.TransactionID == transactionID })
}

func (r *MockPaymentRepo) FindByReference(ctx context.Context, tx repository.Tx, reference string) (*model.Payment, error) {
	return r.find(func(p *model.Payment) bool { return p.PaymentReference != "" && p.PaymentReference == reference })
}

func (r *MockPaymentRepo) UpdateStatusIfOpen(ctx context.Context, tx repository.Tx, id string, status model.PaymentStatus, metadata map[string]any, paidAt *time.Time) (bool, error) {
	if r.UpdateStatusIfOpenFunc != nil {
		return r.UpdateStatusIfOpenFunc(ctx, tx, id, status, metadata, paidAt)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.data[id]
	if !ok {
		return false, domain.ErrNotFound
	}
	if p.Status.IsTerminal() {
		return false, nil
	}
	p.Status = status
	p.PaidAt = paidAt
	p.MergeMetadata(metadata)
	return true, nil
}

func (r *MockPaymentRepo) RecordProviderResponse(ctx context.Context, tx repository.Tx, id string, status model.PaymentStatus, externalID string, metadata map[string]any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.data[id]
	if !ok {
		return domain.ErrNotFound
	}
	if p.Status.IsTerminal() {
		return nil
	}
	p.Status = status
	if externalID != "" {
		p.ExternalID = externalID
	}
	p.MergeMetadata(metadata)
	return nil
}

func (r *MockPaymentRepo) ListOpenOlderThan(ctx context.Context, tx repository.Tx, olderThan time.Time, limit int) ([]*model.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.Payment
	for _, p := range r.data {
		if !p.Status.IsTerminal() && p.CreatedAt.Before(olderThan) {
			cp := *p
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// ---- Mock TargetRepository ----

type MockTargetRepo struct {
	mu sync.Mutex

	Snapshots     map[model.PayableTarget]*model.TargetSnapshot
	Stores        map[int64]*model.Store
	Subscriptions map[int64]*model.Subscription
	Promotions    map[int64]*model.Promotion
	Products      map[int64]*model.Product

	OrderPaymentStatus map[int64]string
	ConfirmedOrders    []int64
	ActivatedSubs      []int64
	ActivatedPromos    []int64
	VerifiedStores     []int64
	FeaturedStores     []int64
	FeaturedProducts   map[int64]time.Time

	ActivateSubscriptionFunc func(ctx context.Context, tx repository.Tx, id int64, startsAt, expiresAt time.Time) error
}

var _ repository.TargetRepository = (*MockTargetRepo)(nil)

func NewMockTargetRepo() *MockTargetRepo {
	return &MockTargetRepo{
		Snapshots:          map[model.PayableTarget]*model.TargetSnapshot{},
		Stores:             map[int64]*model.Store{},
		Subscriptions:      map[int64]*model.Subscription{},
		Promotions:         map[int64]*model.Promotion{},
		Products:           map[int64]*model.Product{},
		OrderPaymentStatus: map[int64]string{},
		FeaturedProducts:   map[int64]time.Time{},
	}
}

func (r *MockTargetRepo) Snapshot(ctx context.Context, tx repository.Tx, t model.PayableTarget) (*model.TargetSnapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.Snapshots[t]; ok {
		cp := *s
		return &cp, nil
	}
	return nil, domain.ErrNotFound
}

func (r *MockTargetRepo) FindStore(ctx context.Context, tx repository.Tx, storeID int64) (*model.Store, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.Stores[storeID]; ok {
		cp := *s
		return &cp, nil
	}
	return nil, domain.ErrNotFound
}

func (r *MockTargetRepo) FindSubscription(ctx context.Context, tx repository.Tx, id int64) (*model.Subscription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.Subscriptions[id]; ok {
		cp := *s
		return &cp, nil
	}
	return nil, domain.ErrNotFound
}

func (r *MockTargetRepo) FindPromotion(ctx context.Context, tx repository.Tx, id int64) (*model.Promotion, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.Promotions[id]; ok {
		cp := *p
		return &cp, nil
	}
	return nil, domain.ErrNotFound
}

func (r *MockTargetRepo) FindProduct(ctx context.Context, tx repository.Tx, id int64) (*model.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.Products[id]; ok {
		cp := *p
		return &cp, nil
	}
	return nil, domain.ErrNotFound
}

func (r *MockTargetRepo) SetOrderPaymentStatus(ctx context.Context, tx repository.Tx, orderID int64, paymentStatus string, method model.PaymentMethod) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.OrderPaymentStatus[orderID] = paymentStatus
	return nil
}

func (r *MockTargetRepo) ConfirmOrder(ctx context.Context, tx repository.Tx, orderID int64, method model.PaymentMethod) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ConfirmedOrders = append(r.ConfirmedOrders, orderID)
	r.OrderPaymentStatus[orderID] = string(model.PaymentStatusCompleted)
	return nil
}

func (r *MockTargetRepo) ActivateSubscription(ctx context.Context, tx repository.Tx, id int64, startsAt, expiresAt time.Time) error {
	if r.ActivateSubscriptionFunc != nil {
		return r.ActivateSubscriptionFunc(ctx, tx, id, startsAt, expiresAt)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ActivatedSubs = append(r.ActivatedSubs, id)
	if s, ok := r.Subscriptions[id]; ok {
		s.IsActive = true
		s.Status = "completed"
		s.StartsAt, s.ExpiresAt = &startsAt, &expiresAt
	}
	return nil
}

func (r *MockTargetRepo) ActivatePromotion(ctx context.Context, tx repository.Tx, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ActivatedPromos = append(r.ActivatedPromos, id)
	return nil
}

func (r *MockTargetRepo) MarkStoreVerified(ctx context.Context, tx repository.Tx, storeID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.VerifiedStores = append(r.VerifiedStores, storeID)
	return nil
}

func (r *MockTargetRepo) FeatureStore(ctx context.Context, tx repository.Tx, storeID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.FeaturedStores = append(r.FeaturedStores, storeID)
	return nil
}

func (r *MockTargetRepo) FeatureProduct(ctx context.Context, tx repository.Tx, productID int64, until time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.FeaturedProducts[productID] = until
	return nil
}

// ---- Mock NotificationRepository ----

type MockNotificationRepo struct {
	mu      sync.Mutex
	nextID  int64
	Items   []*model.Notification
	leased  map[int64]time.Time
	Claimed int

	EnqueueFunc func(ctx context.Context, tx repository.Tx, n *model.Notification) error
}

var _ repository.NotificationRepository = (*MockNotificationRepo)(nil)

func NewMockNotificationRepo() *MockNotificationRepo {
	return &MockNotificationRepo{}
}

func (r *MockNotificationRepo) Enqueue(ctx context.Context, tx repository.Tx, n *model.Notification) error {
	if r.EnqueueFunc != nil {
		return r.EnqueueFunc(ctx, tx, n)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	n.ID = r.nextID
	cp := *n
	r.Items = append(r.Items, &cp)
	return nil
}

func (r *MockNotificationRepo) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.Items)
}

func (r *MockNotificationRepo) ClaimUnpublished(ctx context.Context, tx repository.Tx, limit, maxAttempts int, lease time.Duration) ([]*model.Notification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.leased == nil {
		r.leased = map[int64]time.Time{}
	}
	now := time.Now()
	var out []*model.Notification
	for _, n := range r.Items {
		if limit > 0 && len(out) == limit {
			break
		}
		if n.PublishedAt != nil || n.Attempts >= maxAttempts {
			continue
		}
		if until, ok := r.leased[n.ID]; ok && until.After(now) {
			continue
		}
		r.leased[n.ID] = now.Add(lease)
		cp := *n
		out = append(out, &cp)
	}
	r.Claimed += len(out)
	return out, nil
}

func (r *MockNotificationRepo) byID(id int64) *model.Notification {
	for _, n := range r.Items {
		if n.ID == id {
			return n
		}
	}
	return nil
}

func (r *MockNotificationRepo) MarkPublished(ctx context.Context, tx repository.Tx, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := r.byID(id)
	if n == nil {
		return domain.ErrNotFound
	}
	now := time.Now()
	n.PublishedAt = &now
	n.Attempts++
	delete(r.leased, id)
	return nil
}

func (r *MockNotificationRepo) MarkFailed(ctx context.Context, tx repository.Tx, id int64, lastErr string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := r.byID(id)
	if n == nil {
		return domain.ErrNotFound
	}
	n.Attempts++
	n.LastError = lastErr
	delete(r.leased, id)
	return nil
}

// ---- Mock VerificationCodeRepository ----

type MockCodeRepo struct {
	mu     sync.Mutex
	nextID int64
	data   map[int64]*model.VerificationCode

	ExistsCodeFunc func(ctx context.Context, tx repository.Tx, code string) (bool, error)
	CreateFunc     func(ctx context.Context, tx repository.Tx, c *model.VerificationCode) error
}

var _ repository.VerificationCodeRepository = (*MockCodeRepo)(nil)

func NewMockCodeRepo() *MockCodeRepo {
	return &MockCodeRepo{data: map[int64]*model.VerificationCode{}}
}

func (r *MockCodeRepo) Put(c *model.VerificationCode) *model.VerificationCode {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c.ID == 0 {
		r.nextID++
		c.ID = r.nextID
	}
	cp := *c
	r.data[c.ID] = &cp
	return c
}

func (r *MockCodeRepo) Get(id int64) *model.VerificationCode {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.data[id]
	if !ok {
		return nil
	}
	cp := *c
	return &cp
}

func (r *MockCodeRepo) Create(ctx context.Context, tx repository.Tx, c *model.VerificationCode) error {
	if r.CreateFunc != nil {
		return r.CreateFunc(ctx, tx, c)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.data {
		if existing.Code == c.Code {
			return domain.ErrAlreadyExists
		}
	}
	r.nextID++
	c.ID = r.nextID
	cp := *c
	r.data[c.ID] = &cp
	return nil
}

func (r *MockCodeRepo) ExistsCode(ctx context.Context, tx repository.Tx, code string) (bool, error) {
	if r.ExistsCodeFunc != nil {
		return r.ExistsCodeFunc(ctx, tx, code)
	}
	_, err := r.FindByCode(ctx, tx, code)
	return err == nil, nil
}

func (r *MockCodeRepo) FindByCode(ctx context.Context, tx repository.Tx, code string) (*model.VerificationCode, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.data {
		if c.Code == code {
			cp := *c
			return &cp, nil
		}
	}
	return nil, domain.ErrCodeNotFound
}

func (r *MockCodeRepo) FindByID(ctx context.Context, tx repository.Tx, id int64) (*model.VerificationCode, error) {
	if c := r.Get(id); c != nil {
		return c, nil
	}
	return nil, domain.ErrCodeNotFound
}

func (r *MockCodeRepo) Update(ctx context.Context, tx repository.Tx, c *model.VerificationCode) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.data[c.ID]; !ok {
		return domain.ErrCodeNotFound
	}
	cp := *c
	r.data[c.ID] = &cp
	return nil
}

func (r *MockCodeRepo) Delete(ctx context.Context, tx repository.Tx, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.data[id]; !ok {
		return domain.ErrCodeNotFound
	}
	delete(r.data, id)
	return nil
}

func (r *MockCodeRepo) ListByStore(ctx context.Context, tx repository.Tx, storeID int64, f repository.CodeFilter) ([]*model.VerificationCode, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.VerificationCode
	for _, c := range r.data {
		if c.StoreID != storeID || (f.Type != "" && c.Type != f.Type) || (f.Status != "" && c.Status != f.Status) {
			continue
		}
		cp := *c
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *MockCodeRepo) ExpirePending(ctx context.Context, tx repository.Tx, now time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, c := range r.data {
		if c.ExpireIfDue(now) {
			n++
		}
	}
	return n, nil
}

func (r *MockCodeRepo) CountByTypeStatus(ctx context.Context, tx repository.Tx) (map[model.CodeType]map[model.CodeStatus]int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := map[model.CodeType]map[model.CodeStatus]int{}
	for _, c := range r.data {
		if out[c.Type] == nil {
			out[c.Type] = map[model.CodeStatus]int{}
		}
		out[c.Type][c.Status]++
	}
	return out, nil
}

func (r *MockCodeRepo) CountUsedSince(ctx context.Context, tx repository.Tx, since time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, c := range r.data {
		if c.UsedAt != nil && !c.UsedAt.Before(since) {
			n++
		}
	}
	return n, nil
}

// ---- Mock CodeUsageRepository ----

type MockUsageRepo struct {
	mu    sync.Mutex
	Items []*model.CodeUsage
}

var _ repository.CodeUsageRepository = (*MockUsageRepo)(nil)

func NewMockUsageRepo() *MockUsageRepo { return &MockUsageRepo{} }

func (r *MockUsageRepo) Append(ctx context.Context, tx repository.Tx, u *model.CodeUsage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	cp := *u
	r.Items = append(r.Items, &cp)
	return nil
}

func (r *MockUsageRepo) All() []*model.CodeUsage {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*model.CodeUsage(nil), r.Items...)
}

func (r *MockUsageRepo) CountValidationsSince(ctx context.Context, tx repository.Tx, since time.Time) (int, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var attempts, successes int
	for _, u := range r.Items {
		if u.Action != model.CodeActionValidate || u.CreatedAt.Before(since) {
			continue
		}
		attempts++
		if u.Success {
			successes++
		}
	}
	return attempts, successes, nil
}

// =============================
// Adapters
// =============================

// ---- Fake Provider ----

type FakeProvider struct {
	mu sync.Mutex

	MethodValue model.PaymentMethod
	Webhooks    bool

	InitiateCalls []adapter.InitiateRequest
	VerifyCalls   []adapter.VerifyRequest

	InitiateFunc func(ctx context.Context, req adapter.InitiateRequest) model.ProviderResult
	VerifyFunc   func(ctx context.Context, req adapter.VerifyRequest) model.ProviderResult
}

var (
	_ adapter.Provider          = (*FakeProvider)(nil)
	_ adapter.WebhookGuaranteed = (*FakeProvider)(nil)
)

func (p *FakeProvider) Method() model.PaymentMethod { return p.MethodValue }
func (p *FakeProvider) GuaranteesWebhook() bool     { return p.Webhooks }

func (p *FakeProvider) InitiatePayment(ctx context.Context, req adapter.InitiateRequest) model.ProviderResult {
	p.mu.Lock()
	p.InitiateCalls = append(p.InitiateCalls, req)
	p.mu.Unlock()
	if p.InitiateFunc != nil {
		return p.InitiateFunc(ctx, req)
	}
	return model.ProviderResult{Success: true, Status: model.ProviderStatusPending, ExternalID: "ext-" + req.TransactionID}
}

func (p *FakeProvider) VerifyPayment(ctx context.Context, req adapter.VerifyRequest) model.ProviderResult {
	p.mu.Lock()
	p.VerifyCalls = append(p.VerifyCalls, req)
	p.mu.Unlock()
	if p.VerifyFunc != nil {
		return p.VerifyFunc(ctx, req)
	}
	return model.ProviderResult{Success: true, Status: model.ProviderStatusPending}
}

// ---- Mock ProviderRegistry ----

type MockRegistry struct {
	Providers map[model.PaymentMethod]adapter.Provider
}

func NewMockRegistry(ps ...*FakeProvider) *MockRegistry {
	r := &MockRegistry{Providers: map[model.PaymentMethod]adapter.Provider{}}
	for _, p := range ps {
		r.Providers[p.MethodValue] = p
	}
	return r
}

func (r *MockRegistry) Resolve(method string) (adapter.Provider, error) {
	m, ok := model.ParseMethod(method)
	if !ok {
		return nil, domain.ErrUnknownMethod
	}
	p, ok := r.Providers[m]
	if !ok {
		return nil, domain.ErrConfiguration
	}
	return p, nil
}

func (r *MockRegistry) Configured(m model.PaymentMethod) bool {
	_, ok := r.Providers[m]
	return ok
}

func (r *MockRegistry) ListAvailableMethods(store *model.Store) []model.MethodInfo {
	var out []model.MethodInfo
	for _, m := range model.AllMethods {
		if _, ok := r.Providers[m]; ok {
			out = append(out, model.MethodInfo{Code: m, Name: m.DisplayName(), MobileMoney: m.IsMobileMoney()})
		}
	}
	return out
}

// ---- In-memory Locker (implements redis.Locker port) ----

type MockLocker struct {
	mu    sync.Mutex
	held  map[string]string
	ErrOn map[string]error
}

func NewMockLocker() *MockLocker {
	return &MockLocker{held: map[string]string{}, ErrOn: map[string]error{}}
}

func (l *MockLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err, bad := l.ErrOn[key]; bad {
		return "", err
	}
	if tok, ok := l.held[key]; ok && tok != "" {
		return "", domain.ErrConcurrency
	}
	tok := uuid.NewString()
	l.held[key] = tok
	return tok, nil
}

func (l *MockLocker) Unlock(ctx context.Context, key, token string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[key] == token {
		delete(l.held, key)
		return nil
	}
	return domain.ErrConcurrency
}

// Hold marks key as owned by someone else.
func (l *MockLocker) Hold(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.held[key] = "other"
}

// ---- Mock RateLimiter ----

type MockLimiter struct {
	AllowFunc func(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

func (l *MockLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	if l.AllowFunc != nil {
		return l.AllowFunc(ctx, key, limit, window)
	}
	return true, nil
}

// ---- Mock VerificationScheduler ----

type MockScheduler struct {
	mu  sync.Mutex
	IDs []string
}

func (s *MockScheduler) Schedule(paymentID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.IDs = append(s.IDs, paymentID)
}

// ---- Mock Alerter ----

type MockAlerter struct {
	mu    sync.Mutex
	Texts []string
}

var _ adapter.Alerter = (*MockAlerter)(nil)

func (a *MockAlerter) Alert(ctx context.Context, text string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.Texts = append(a.Texts, text)
	return nil
}

func (a *MockAlerter) Count() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.Texts)
}

// ---- Mock NotificationPublisher ----

type MockPublisher struct {
	mu        sync.Mutex
	Published []*model.Notification

	PublishFunc func(ctx context.Context, n *model.Notification) error
}

var _ adapter.NotificationPublisher = (*MockPublisher)(nil)

func (p *MockPublisher) Publish(ctx context.Context, n *model.Notification) error {
	if p.PublishFunc != nil {
		return p.PublishFunc(ctx, n)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Published = append(p.Published, n)
	return nil
}

// newTestLogger creates a silent zerolog.Logger for use in tests.
// It writes to io.Discard to prevent logs from cluttering test output.
func newTestLogger() *zerolog.Logger {
	logger := zerolog.New(io.Discard)
	return &logger
}

// --- Test Translator

func newTestTranslator() *i18n.Translator {
	testFS := fstest.MapFS{
		"locales/fr.yaml": {Data: []byte(`
notify_order_paid: "order %d paid %s %s"
notify_subscription_active: "plan %s until %s"
notify_promotion_active: "promotion %d until %s"
notify_code_certification: "code plan %s until %s"
notify_code_promotion: "code product until %s"
alert_signature_failure: "bad signature %s %s %s"
alert_payment_completed: "paid %s %s %s %s"
`)},
	}
	// The fixture is static, so the error can be ignored.
	translator, _ := i18n.NewTranslator(testFS, "fr")
	return translator
}
