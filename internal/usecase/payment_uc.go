package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"mymedaga-payments/internal/domain"
	"mymedaga-payments/internal/domain/model"
	"mymedaga-payments/internal/domain/ports/adapter"
	"mymedaga-payments/internal/domain/ports/repository"
	"mymedaga-payments/internal/infra/adapters/provider"
	"mymedaga-payments/internal/infra/logging"
)

// Compile-time check
var _ PaymentUseCase = (*paymentUC)(nil)

// PaymentUseCase creates payments, starts them at the provider and exposes
// their state. Terminal transitions are delegated to the Settler.
type PaymentUseCase interface {
	CreatePending(ctx context.Context, target model.PayableTarget, method model.PaymentMethod, amount decimal.Decimal, currency string, payer model.Payer) (*model.Payment, error)
	Transition(ctx context.Context, paymentID string, status model.PaymentStatus, providerResponse map[string]any) (*model.Payment, bool, error)
	Initiate(ctx context.Context, in InitiateInput) (*InitiateOutput, error)
	StripeIntent(ctx context.Context, in StripeIntentInput) (*StripeIntentOutput, error)
	Get(ctx context.Context, paymentID string) (*model.Payment, error)
	ListMethods(ctx context.Context, storeID int64) ([]model.MethodInfo, error)
}

// ProviderRegistry resolves adapters by method code.
type ProviderRegistry interface {
	Resolve(method string) (adapter.Provider, error)
	Configured(method model.PaymentMethod) bool
	ListAvailableMethods(store *model.Store) []model.MethodInfo
}

// VerificationScheduler queues one delayed provider check for a payment.
type VerificationScheduler interface {
	Schedule(paymentID string)
}

type InitiateInput struct {
	UserID     int64  `validate:"required,gt=0"`
	TargetType string `json:"target_type" validate:"required,oneof=order subscription promotion"`
	TargetID   int64  `json:"target_id" validate:"required,gt=0"`
	Method     string `json:"payment_method" validate:"required,max=32"`
	Phone      string `json:"phone" validate:"omitempty,max=32"`
	Name       string `json:"name" validate:"omitempty,max=120"`
	Email      string `json:"email" validate:"omitempty,email,max=254"`
	Currency   string `json:"currency" validate:"omitempty,len=3,alpha"`
}

type InitiateOutput struct {
	Success       bool
	PaymentID     string
	TransactionID string
	PaymentURL    string
	Status        model.PaymentStatus
	Error         string
}

type StripeIntentInput struct {
	UserID     int64  `validate:"required,gt=0"`
	TargetType string `json:"target_type" validate:"required,oneof=order subscription promotion"`
	TargetID   int64  `json:"target_id" validate:"required,gt=0"`
	Email      string `json:"email" validate:"omitempty,email,max=254"`
}

type StripeIntentOutput struct {
	PaymentID      string
	TransactionID  string
	ClientSecret   string
	PublishableKey string
}

type paymentUC struct {
	payments  repository.PaymentRepository
	targets   repository.TargetRepository
	tm        repository.TransactionManager
	registry  ProviderRegistry
	settler   *Settler
	scheduler VerificationScheduler
	validate  *validator.Validate
	log       *zerolog.Logger
	now       func() time.Time
}

func NewPaymentUseCase(
	payments repository.PaymentRepository,
	targets repository.TargetRepository,
	tm repository.TransactionManager,
	registry ProviderRegistry,
	settler *Settler,
	scheduler VerificationScheduler,
	logger *zerolog.Logger,
) *paymentUC {
	l := logger.With().Str("component", "PaymentUC").Logger()
	return &paymentUC{
		payments:  payments,
		targets:   targets,
		tm:        tm,
		registry:  registry,
		settler:   settler,
		scheduler: scheduler,
		validate:  validator.New(),
		log:       &l,
		now:       time.Now,
	}
}

// CreatePending inserts a pending payment with a fresh transaction id. On a
// transaction id collision a random suffix is appended once.
func (u *paymentUC) CreatePending(ctx context.Context, target model.PayableTarget, method model.PaymentMethod, amount decimal.Decimal, currency string, payer model.Payer) (*model.Payment, error) {
	defer logging.TraceDuration(u.log, "PaymentUC.CreatePending")()
	if err := target.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrTargetMismatch, err)
	}
	if !amount.IsPositive() {
		return nil, fmt.Errorf("%w: amount must be greater than zero", domain.ErrValidation)
	}
	if _, ok := model.ParseMethod(string(method)); !ok {
		return nil, fmt.Errorf("%w: %w %q", domain.ErrConfiguration, domain.ErrUnknownMethod, method)
	}
	now := u.now()
	p := &model.Payment{
		ID:            ulid.Make().String(),
		Amount:        amount,
		Currency:      strings.ToUpper(currency),
		Method:        method,
		Status:        model.PaymentStatusPending,
		TransactionID: target.TransactionID(now),
		Payer:         payer,
		Target:        target,
		Metadata:      map[string]any{},
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	err := u.payments.Create(ctx, nil, p)
	if errors.Is(err, domain.ErrAlreadyExists) {
		p.TransactionID = fmt.Sprintf("%s_%s", target.TransactionID(now), uuid.NewString()[:4])
		err = u.payments.Create(ctx, nil, p)
	}
	if err != nil {
		return nil, fmt.Errorf("create payment: %w", err)
	}
	return p, nil
}

func (u *paymentUC) Transition(ctx context.Context, paymentID string, status model.PaymentStatus, providerResponse map[string]any) (*model.Payment, bool, error) {
	return u.settler.Transition(ctx, paymentID, status, providerResponse)
}

// Initiate charges a target through the chosen provider. The amount always
// comes from the target, never from the caller. The provider call happens
// outside any database transaction.
func (u *paymentUC) Initiate(ctx context.Context, in InitiateInput) (*InitiateOutput, error) {
	defer logging.TraceDuration(u.log, "PaymentUC.Initiate")()
	if err := u.validate.Struct(in); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}
	prov, err := u.usableProvider(in.Method)
	if err != nil {
		return nil, err
	}
	if err := provider.CheckPhone(prov.Method(), in.Phone); err != nil {
		return nil, err
	}
	target := model.PayableTarget{Type: model.TargetType(in.TargetType), ID: in.TargetID}
	snap, store, err := u.chargeable(ctx, target, in.UserID)
	if err != nil {
		return nil, err
	}

	currency := snap.Currency
	if in.Currency != "" {
		currency = strings.ToUpper(in.Currency)
	}
	payer := model.Payer{Name: in.Name, Email: in.Email, Phone: in.Phone}
	p, err := u.CreatePending(ctx, target, prov.Method(), snap.Amount, currency, payer)
	if err != nil {
		return nil, err
	}
	log := logging.With(logging.WithPaymentID(ctx, p.ID), u.log)

	meta := map[string]string{provider.MetaPaymentID: p.ID}
	if target.Type == model.TargetOrder {
		for k, v := range provider.StoreMetadata(store, prov.Method()) {
			meta[k] = v
		}
	}
	res := prov.InitiatePayment(ctx, adapter.InitiateRequest{
		Amount:        p.Amount,
		Currency:      p.Currency,
		Phone:         in.Phone,
		Email:         in.Email,
		Description:   description(target),
		TransactionID: p.TransactionID,
		Metadata:      meta,
	})

	out := &InitiateOutput{PaymentID: p.ID, TransactionID: p.TransactionID}
	status, err := u.recordInitiation(ctx, p, res)
	if err != nil {
		return nil, err
	}
	out.Status = status
	if !res.Success {
		log.Warn().Str("error", res.Error).Msg("provider rejected initiation")
		out.Error = res.Error
		return out, nil
	}
	out.Success = true
	out.PaymentURL = res.PaymentURL

	if status == model.PaymentStatusProcessing && !guaranteesWebhook(prov) && u.scheduler != nil {
		u.scheduler.Schedule(p.ID)
	}
	log.Info().Str("method", string(p.Method)).Str("transaction_id", p.TransactionID).Msg("payment initiated")
	return out, nil
}

// StripeIntent creates a PaymentIntent. Order intents are routed to the
// store's connected account with the platform fee.
func (u *paymentUC) StripeIntent(ctx context.Context, in StripeIntentInput) (*StripeIntentOutput, error) {
	defer logging.TraceDuration(u.log, "PaymentUC.StripeIntent")()
	if err := u.validate.Struct(in); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}
	prov, err := u.usableProvider(string(model.MethodStripe))
	if err != nil {
		return nil, err
	}
	target := model.PayableTarget{Type: model.TargetType(in.TargetType), ID: in.TargetID}
	snap, store, err := u.chargeable(ctx, target, in.UserID)
	if err != nil {
		return nil, err
	}
	meta := map[string]string{}
	if target.Type == model.TargetOrder {
		meta = provider.StoreMetadata(store, model.MethodStripe)
		if meta[provider.MetaStripeAccount] == "" {
			return nil, fmt.Errorf("%w: store %d has no Stripe account", domain.ErrConfiguration, snap.StoreID)
		}
	}

	p, err := u.CreatePending(ctx, target, model.MethodStripe, snap.Amount, snap.Currency, model.Payer{Email: in.Email})
	if err != nil {
		return nil, err
	}
	meta[provider.MetaPaymentID] = p.ID
	meta[string(target.Type)+"_id"] = fmt.Sprint(target.ID)
	res := prov.InitiatePayment(ctx, adapter.InitiateRequest{
		Amount:        p.Amount,
		Currency:      p.Currency,
		Email:         in.Email,
		Description:   description(target),
		TransactionID: p.TransactionID,
		Metadata:      meta,
	})
	if _, err := u.recordInitiation(ctx, p, res); err != nil {
		return nil, err
	}
	if !res.Success {
		return nil, fmt.Errorf("%w: %s", domain.ErrProvider, res.Error)
	}
	secret, _ := res.ProviderResponse[provider.MetaClientSecret].(string)
	pk, _ := res.ProviderResponse[provider.MetaPublishableKey].(string)
	return &StripeIntentOutput{PaymentID: p.ID, TransactionID: p.TransactionID, ClientSecret: secret, PublishableKey: pk}, nil
}

func (u *paymentUC) Get(ctx context.Context, paymentID string) (*model.Payment, error) {
	return u.payments.FindByID(ctx, nil, paymentID)
}

// ListMethods lists configured methods; storeID 0 skips the per-store filter.
func (u *paymentUC) ListMethods(ctx context.Context, storeID int64) ([]model.MethodInfo, error) {
	if storeID == 0 {
		return u.registry.ListAvailableMethods(nil), nil
	}
	store, err := u.targets.FindStore(ctx, nil, storeID)
	if err != nil {
		return nil, err
	}
	return u.registry.ListAvailableMethods(store), nil
}

// usableProvider resolves method and refuses providers missing credentials,
// so nothing is written for a payment that cannot start.
func (u *paymentUC) usableProvider(method string) (adapter.Provider, error) {
	prov, err := u.registry.Resolve(method)
	if err != nil {
		return nil, err
	}
	if !u.registry.Configured(prov.Method()) {
		return nil, fmt.Errorf("%w: %s is not configured", domain.ErrConfiguration, prov.Method())
	}
	return prov, nil
}

// chargeable loads the target and refuses targets that are already paid or
// that the caller does not own.
func (u *paymentUC) chargeable(ctx context.Context, target model.PayableTarget, userID int64) (*model.TargetSnapshot, *model.Store, error) {
	if err := target.Validate(); err != nil {
		return nil, nil, fmt.Errorf("%w: %w", domain.ErrValidation, err)
	}
	snap, err := u.targets.Snapshot(ctx, nil, target)
	if err != nil {
		return nil, nil, err
	}
	if target.Type != model.TargetOrder && snap.OwnerID != userID {
		return nil, nil, fmt.Errorf("%w: %s %d belongs to another store", domain.ErrForbidden, target.Type, target.ID)
	}
	switch snap.Status {
	case "completed", "confirmed", "active":
		return nil, nil, fmt.Errorf("%w: %s %d is already paid", domain.ErrState, target.Type, target.ID)
	}
	if !snap.Amount.IsPositive() {
		return nil, nil, fmt.Errorf("%w: %s %d has no amount to charge", domain.ErrValidation, target.Type, target.ID)
	}
	store, err := u.targets.FindStore(ctx, nil, snap.StoreID)
	if err != nil {
		return nil, nil, err
	}
	return snap, store, nil
}

// recordInitiation stores the adapter answer. Failures and immediate
// terminal answers settle right away; everything else becomes processing.
func (u *paymentUC) recordInitiation(ctx context.Context, p *model.Payment, res model.ProviderResult) (model.PaymentStatus, error) {
	if !res.Success {
		_, _, err := u.settler.Transition(ctx, p.ID, model.PaymentStatusFailed, map[string]any{
			"error":             res.Error,
			"provider_response": persistable(res.ProviderResponse),
		})
		return model.PaymentStatusFailed, err
	}
	switch res.Status {
	case model.ProviderStatusCompleted:
		_, _, err := u.settler.Transition(ctx, p.ID, model.PaymentStatusCompleted, map[string]any{"provider_response": persistable(res.ProviderResponse)})
		return model.PaymentStatusCompleted, err
	case model.ProviderStatusFailed:
		_, _, err := u.settler.Transition(ctx, p.ID, model.PaymentStatusFailed, map[string]any{"provider_response": persistable(res.ProviderResponse)})
		return model.PaymentStatusFailed, err
	}

	err := u.tm.WithTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted}, func(ctx context.Context, tx repository.Tx) error {
		meta := map[string]any{"provider_response": persistable(res.ProviderResponse)}
		if res.PaymentURL != "" {
			meta["payment_url"] = res.PaymentURL
		}
		if err := u.payments.RecordProviderResponse(ctx, tx, p.ID, model.PaymentStatusProcessing, res.ExternalID, meta); err != nil {
			return err
		}
		if p.Target.Type == model.TargetOrder {
			return u.targets.SetOrderPaymentStatus(ctx, tx, p.Target.ID, string(model.PaymentStatusProcessing), p.Method)
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("record initiation of %s: %w", p.ID, err)
	}
	p.Status = model.PaymentStatusProcessing
	p.ExternalID = res.ExternalID
	return model.PaymentStatusProcessing, nil
}

// persistable drops secrets that must never reach the metadata column.
func persistable(resp map[string]any) map[string]any {
	if resp == nil {
		return map[string]any{}
	}
	out := make(map[string]any, len(resp))
	for k, v := range resp {
		if k == provider.MetaClientSecret {
			continue
		}
		out[k] = v
	}
	return out
}

func guaranteesWebhook(p adapter.Provider) bool {
	g, ok := p.(adapter.WebhookGuaranteed)
	return ok && g.GuaranteesWebhook()
}

func description(t model.PayableTarget) string {
	switch t.Type {
	case model.TargetSubscription:
		return fmt.Sprintf("Abonnement #%d", t.ID)
	case model.TargetPromotion:
		return fmt.Sprintf("Promotion #%d", t.ID)
	default:
		return fmt.Sprintf("Commande #%d", t.ID)
	}
}
