package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"mymedaga-payments/internal/domain"
	"mymedaga-payments/internal/domain/model"
	"mymedaga-payments/internal/domain/ports/repository"
	"mymedaga-payments/internal/infra/i18n"
	"mymedaga-payments/internal/infra/logging"
	"mymedaga-payments/internal/infra/metrics"
	"mymedaga-payments/internal/infra/redis"
)

// Compile-time check
var _ CodeUseCase = (*codeUC)(nil)

// CodeUseCase manages manual verification codes: issuing, redeeming and
// administering them. Every redemption attempt leaves an audit row.
type CodeUseCase interface {
	Generate(ctx context.Context, in GenerateInput) ([]*model.VerificationCode, error)
	ValidateAndConsume(ctx context.Context, code string, storeID int64, actor Actor) (*CodeResult, error)
	RecordFailedAttempt(ctx context.Context, code string, actor Actor, reason string) error
	Cancel(ctx context.Context, codeID int64, actor Actor, reason string) error
	Delete(ctx context.Context, codeID int64, actor Actor) error
	ListByStore(ctx context.Context, storeID int64, f repository.CodeFilter) ([]*model.VerificationCode, error)
	CleanExpired(ctx context.Context) (int, error)
	Stats(ctx context.Context) (*model.CodeStats, error)
}

// RateLimiter throttles redemption attempts.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// Actor is who performs a code action, with request details for the audit trail.
type Actor struct {
	UserID    int64
	IP        string
	UserAgent string
}

type CodeReason string

const (
	ReasonInvalidOrExpired CodeReason = "invalid_or_expired"
	ReasonWrongStore       CodeReason = "wrong_store"
	ReasonAlreadyUsed      CodeReason = "already_used"
	ReasonRateLimited      CodeReason = "rate_limited"
)

// CodeResult is the business outcome of a redemption. Failures are values,
// not errors.
type CodeResult struct {
	Success       bool
	Reason        CodeReason
	Code          *model.VerificationCode
	Activation    *Activation
	DiscountType  model.DiscountType
	DiscountValue decimal.Decimal
}

type GenerateInput struct {
	Type           model.CodeType     `json:"code_type" validate:"required,oneof=certification promotion"`
	SubscriptionID *int64             `json:"subscription_id" validate:"required_if=Type certification"`
	ProductID      *int64             `json:"product_id" validate:"required_if=Type promotion"`
	StoreID        int64              `json:"store_id" validate:"required,gt=0"`
	UsageLimit     *int               `json:"usage_limit" validate:"omitempty,gte=0,lte=10000"`
	MaxAttempts    int                `json:"max_attempts" validate:"gte=0,lte=100"`
	TTLDays        int                `json:"ttl_days" validate:"gte=0,lte=365"`
	DiscountType   model.DiscountType `json:"discount_type" validate:"omitempty,oneof=percentage fixed"`
	DiscountValue  decimal.Decimal    `json:"discount_value"`
	Count          int                `json:"count" validate:"gte=0,lte=100"`
	Notes          string             `json:"notes" validate:"max=500"`
	CreatedBy      int64              `json:"-" validate:"required,gt=0"`
}

// CodeLimits configures redemption throttling.
type CodeLimits struct {
	RateLimit  int
	RateWindow time.Duration
}

const maxCodeGenerationAttempts = 10

type codeUC struct {
	codes         repository.VerificationCodeRepository
	usages        repository.CodeUsageRepository
	targets       repository.TargetRepository
	notifications repository.NotificationRepository
	tm            repository.TransactionManager
	activator     *targetActivator
	limiter       RateLimiter
	limits        CodeLimits
	tr            *i18n.Translator
	validate      *validator.Validate
	log           *zerolog.Logger
	now           func() time.Time
}

func NewCodeUseCase(
	codes repository.VerificationCodeRepository,
	usages repository.CodeUsageRepository,
	targets repository.TargetRepository,
	notifications repository.NotificationRepository,
	tm repository.TransactionManager,
	limiter RateLimiter,
	limits CodeLimits,
	tr *i18n.Translator,
	logger *zerolog.Logger,
) *codeUC {
	if limits.RateLimit <= 0 {
		limits.RateLimit = 10
	}
	if limits.RateWindow <= 0 {
		limits.RateWindow = time.Minute
	}
	l := logger.With().Str("component", "CodeUC").Logger()
	return &codeUC{
		codes:         codes,
		usages:        usages,
		targets:       targets,
		notifications: notifications,
		tm:            tm,
		activator:     &targetActivator{targets: targets},
		limiter:       limiter,
		limits:        limits,
		tr:            tr,
		validate:      validator.New(),
		log:           &l,
		now:           time.Now,
	}
}

// Generate issues Count codes (1 by default) for a subscription or product of the store.
func (u *codeUC) Generate(ctx context.Context, in GenerateInput) ([]*model.VerificationCode, error) {
	defer logging.TraceDuration(u.log, "CodeUC.Generate")()
	if err := u.validate.Struct(in); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}
	if err := u.checkGenerateTarget(ctx, in); err != nil {
		return nil, err
	}
	if in.Type == model.CodeTypePromotion {
		if err := validateDiscount(in.DiscountType, in.DiscountValue); err != nil {
			return nil, err
		}
	}

	count := in.Count
	if count == 0 {
		count = 1
	}
	usageLimit := model.DefaultCodeUsageLimit
	if in.UsageLimit != nil {
		usageLimit = *in.UsageLimit
	}
	maxAttempts := in.MaxAttempts
	if maxAttempts == 0 {
		maxAttempts = model.DefaultCodeMaxAttempts
	}
	ttl := in.TTLDays
	if ttl == 0 {
		ttl = model.DefaultCodeTTLDays
	}

	now := u.now()
	out := make([]*model.VerificationCode, 0, count)
	for i := 0; i < count; i++ {
		c := &model.VerificationCode{
			Type:        in.Type,
			Status:      model.CodeStatusPending,
			UsageLimit:  usageLimit,
			MaxAttempts: maxAttempts,
			ExpiresAt:   now.AddDate(0, 0, ttl),
			CreatedBy:   in.CreatedBy,
			StoreID:     in.StoreID,
			Notes:       in.Notes,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		switch in.Type {
		case model.CodeTypeCertification:
			c.SubscriptionID = in.SubscriptionID
		case model.CodeTypePromotion:
			c.ProductID = in.ProductID
			c.DiscountType = in.DiscountType
			c.DiscountValue = in.DiscountValue
		}
		if err := u.insertUnique(ctx, c); err != nil {
			return out, fmt.Errorf("generate code %d/%d: %w", i+1, count, err)
		}
		out = append(out, c)
	}
	metrics.AddCodesGenerated(string(in.Type), len(out))
	u.log.Info().Int64("store_id", in.StoreID).Str("type", string(in.Type)).Int("count", len(out)).Msg("verification codes generated")
	return out, nil
}

func (u *codeUC) checkGenerateTarget(ctx context.Context, in GenerateInput) error {
	var storeID int64
	switch in.Type {
	case model.CodeTypeCertification:
		sub, err := u.targets.FindSubscription(ctx, nil, *in.SubscriptionID)
		if err != nil {
			return err
		}
		storeID = sub.StoreID
	case model.CodeTypePromotion:
		product, err := u.targets.FindProduct(ctx, nil, *in.ProductID)
		if err != nil {
			return err
		}
		storeID = product.StoreID
	}
	if storeID != in.StoreID {
		return fmt.Errorf("%w: %s target does not belong to store %d", domain.ErrForbidden, in.Type, in.StoreID)
	}
	return nil
}

func validateDiscount(t model.DiscountType, v decimal.Decimal) error {
	if t == "" {
		if !v.IsZero() {
			return fmt.Errorf("%w: discount_value needs a discount_type", domain.ErrValidation)
		}
		return nil
	}
	if !v.IsPositive() {
		return fmt.Errorf("%w: discount_value must be positive", domain.ErrValidation)
	}
	if t == model.DiscountPercentage && v.GreaterThan(decimal.NewFromInt(100)) {
		return fmt.Errorf("%w: percentage discount above 100", domain.ErrValidation)
	}
	return nil
}

// insertUnique draws codes until one is free, then falls back to a UUID-based code.
func (u *codeUC) insertUnique(ctx context.Context, c *model.VerificationCode) error {
	for attempt := 0; attempt < maxCodeGenerationAttempts; attempt++ {
		code, err := generateVerificationCode()
		if err != nil {
			return err
		}
		exists, err := u.codes.ExistsCode(ctx, nil, code)
		if err != nil {
			return err
		}
		if exists {
			continue
		}
		c.Code = code
		err = u.codes.Create(ctx, nil, c)
		if errors.Is(err, domain.ErrAlreadyExists) {
			continue
		}
		return err
	}
	u.log.Warn().Msg("code generation kept colliding, using fallback code")
	c.Code = fallbackCode()
	err := u.codes.Create(ctx, nil, c)
	if errors.Is(err, domain.ErrAlreadyExists) {
		return domain.ErrCodeGeneration
	}
	return err
}

// ValidateAndConsume redeems a code for storeID. The code row stays locked
// for the whole check so concurrent redemptions serialize.
func (u *codeUC) ValidateAndConsume(ctx context.Context, code string, storeID int64, actor Actor) (*CodeResult, error) {
	defer logging.TraceDuration(u.log, "CodeUC.ValidateAndConsume")()
	code = NormalizeCode(code)
	if code == "" || storeID <= 0 {
		return nil, fmt.Errorf("%w: code and store are required", domain.ErrValidation)
	}
	if !u.allow(ctx, storeID, actor) {
		metrics.IncCodeValidation(string(ReasonRateLimited))
		return &CodeResult{Reason: ReasonRateLimited}, nil
	}

	var res *CodeResult
	err := u.tm.WithTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted}, func(ctx context.Context, tx repository.Tx) error {
		res = nil
		now := u.now()
		if !codeShape.MatchString(code) {
			res = &CodeResult{Reason: ReasonInvalidOrExpired}
			return u.audit(ctx, tx, nil, code, model.CodeActionValidate, storeID, actor, res, nil)
		}
		c, err := u.codes.FindByCode(ctx, tx, code)
		if errors.Is(err, domain.ErrCodeNotFound) {
			res = &CodeResult{Reason: ReasonInvalidOrExpired}
			return u.audit(ctx, tx, nil, code, model.CodeActionValidate, storeID, actor, res, nil)
		}
		if err != nil {
			return err
		}

		switch {
		case c.Status == model.CodeStatusUsed || c.Exhausted():
			res = &CodeResult{Reason: ReasonAlreadyUsed, Code: c}
		case c.ExpireIfDue(now):
			if err := u.codes.Update(ctx, tx, c); err != nil {
				return err
			}
			res = &CodeResult{Reason: ReasonInvalidOrExpired, Code: c}
		case !c.IsValid(now):
			res = &CodeResult{Reason: ReasonInvalidOrExpired, Code: c}
		case c.StoreID != storeID:
			c.RecordFailedAttempt(now)
			if err := u.codes.Update(ctx, tx, c); err != nil {
				return err
			}
			res = &CodeResult{Reason: ReasonWrongStore, Code: c}
		default:
			act, err := u.redeem(ctx, tx, c, actor, now)
			if err != nil {
				return err
			}
			res = &CodeResult{Success: true, Code: c, Activation: act, DiscountType: c.DiscountType, DiscountValue: c.DiscountValue}
		}
		return u.audit(ctx, tx, &c.ID, c.Code, model.CodeActionValidate, storeID, actor, res, nil)
	})
	if err != nil {
		return nil, fmt.Errorf("validate code: %w", err)
	}

	result := "success"
	if !res.Success {
		result = string(res.Reason)
	}
	metrics.IncCodeValidation(result)
	u.log.Info().Int64("store_id", storeID).Int64("user_id", actor.UserID).Str("result", result).Msg("code validation")
	return res, nil
}

// redeem consumes one use and activates what the code unlocks.
func (u *codeUC) redeem(ctx context.Context, tx repository.Tx, c *model.VerificationCode, actor Actor, now time.Time) (*Activation, error) {
	c.RecordUsage(now, actor.UserID)
	if err := u.codes.Update(ctx, tx, c); err != nil {
		return nil, err
	}

	var (
		act *Activation
		err error
		msg string
	)
	switch c.Type {
	case model.CodeTypeCertification:
		act, err = u.activator.activateSubscription(ctx, tx, *c.SubscriptionID, now)
		if err == nil {
			msg = u.tr.T("notify_code_certification", act.PlanType, act.ExpiresAt.Format("02/01/2006"))
		}
	case model.CodeTypePromotion:
		act, err = u.activator.featureProduct(ctx, tx, *c.ProductID, c.ExpiresAt)
		if err == nil {
			msg = u.tr.T("notify_code_promotion", act.ExpiresAt.Format("02/01/2006"))
		}
	default:
		err = fmt.Errorf("%w: unknown code type %q", domain.ErrValidation, c.Type)
	}
	if err != nil {
		return nil, err
	}

	n := &model.Notification{
		UserID:    act.OwnerID,
		Type:      model.NotificationSubscription,
		Message:   msg,
		Link:      dashboardLink,
		EventType: EventCodeRedeemed,
		Payload: map[string]any{
			"code_id":   c.ID,
			"code_type": string(c.Type),
			"store_id":  c.StoreID,
			"user_id":   actor.UserID,
		},
	}
	if c.Type == model.CodeTypePromotion {
		n.Type = model.NotificationPromotion
	}
	if err := u.notifications.Enqueue(ctx, tx, n); err != nil {
		return nil, err
	}
	return act, nil
}

// allow fails open when the limiter is unreachable; the row lock and attempt
// counters still bound abuse.
func (u *codeUC) allow(ctx context.Context, storeID int64, actor Actor) bool {
	if u.limiter == nil {
		return true
	}
	ok, err := u.limiter.Allow(ctx, redis.CodeValidationKey(storeID, actor.IP), u.limits.RateLimit, u.limits.RateWindow)
	if err != nil {
		u.log.Warn().Err(err).Msg("rate limiter unavailable")
		return true
	}
	return ok
}

// RecordFailedAttempt burns one attempt on a code; reaching the maximum expires it.
func (u *codeUC) RecordFailedAttempt(ctx context.Context, code string, actor Actor, reason string) error {
	defer logging.TraceDuration(u.log, "CodeUC.RecordFailedAttempt")()
	code = NormalizeCode(code)
	return u.tm.WithTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted}, func(ctx context.Context, tx repository.Tx) error {
		c, err := u.codes.FindByCode(ctx, tx, code)
		if err != nil {
			return err
		}
		c.RecordFailedAttempt(u.now())
		if err := u.codes.Update(ctx, tx, c); err != nil {
			return err
		}
		return u.audit(ctx, tx, &c.ID, c.Code, model.CodeActionValidate, c.StoreID, actor,
			&CodeResult{Reason: CodeReason(reason)}, map[string]any{"failed_attempts": c.FailedAttempts})
	})
}

// Cancel moves a pending code to cancelled. Used, expired and cancelled codes are left alone.
func (u *codeUC) Cancel(ctx context.Context, codeID int64, actor Actor, reason string) error {
	defer logging.TraceDuration(u.log, "CodeUC.Cancel")()
	return u.tm.WithTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted}, func(ctx context.Context, tx repository.Tx) error {
		c, err := u.codes.FindByID(ctx, tx, codeID)
		if err != nil {
			return err
		}
		if !c.Cancel(u.now()) {
			return fmt.Errorf("%w: code is %s", domain.ErrState, c.Status)
		}
		if reason != "" {
			c.Notes = reason
		}
		if err := u.codes.Update(ctx, tx, c); err != nil {
			return err
		}
		return u.audit(ctx, tx, &c.ID, c.Code, model.CodeActionCancel, c.StoreID, actor,
			&CodeResult{Success: true, Reason: CodeReason(reason)}, nil)
	})
}

// Delete removes a code. The audit row is written first and keeps the code string.
func (u *codeUC) Delete(ctx context.Context, codeID int64, actor Actor) error {
	defer logging.TraceDuration(u.log, "CodeUC.Delete")()
	return u.tm.WithTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted}, func(ctx context.Context, tx repository.Tx) error {
		c, err := u.codes.FindByID(ctx, tx, codeID)
		if err != nil {
			return err
		}
		details := map[string]any{"type": string(c.Type), "status": string(c.Status), "usage_count": c.UsageCount}
		if err := u.audit(ctx, tx, &c.ID, c.Code, model.CodeActionDelete, c.StoreID, actor, &CodeResult{Success: true}, details); err != nil {
			return err
		}
		return u.codes.Delete(ctx, tx, c.ID)
	})
}

func (u *codeUC) ListByStore(ctx context.Context, storeID int64, f repository.CodeFilter) ([]*model.VerificationCode, error) {
	return u.codes.ListByStore(ctx, nil, storeID, f)
}

// CleanExpired flips pending codes past their expiry. Run daily.
func (u *codeUC) CleanExpired(ctx context.Context) (int, error) {
	n, err := u.codes.ExpirePending(ctx, nil, u.now())
	if err != nil {
		return 0, err
	}
	metrics.AddCodesExpired(n)
	if n > 0 {
		u.log.Info().Int("expired", n).Msg("expired verification codes")
	}
	return n, nil
}

// Stats aggregates code counts and the last 24h redemption success rate.
func (u *codeUC) Stats(ctx context.Context) (*model.CodeStats, error) {
	byTypeStatus, err := u.codes.CountByTypeStatus(ctx, nil)
	if err != nil {
		return nil, err
	}
	since := u.now().Add(-24 * time.Hour)
	used, err := u.codes.CountUsedSince(ctx, nil, since)
	if err != nil {
		return nil, err
	}
	attempts, successes, err := u.usages.CountValidationsSince(ctx, nil, since)
	if err != nil {
		return nil, err
	}
	for t, statuses := range byTypeStatus {
		for s, n := range statuses {
			metrics.SetCodeStatus(string(t), string(s), n)
		}
	}
	return &model.CodeStats{
		ByTypeStatus:      byTypeStatus,
		UsedLast24h:       used,
		Attempts24h:       attempts,
		SuccessfulLast24h: successes,
	}, nil
}

func (u *codeUC) audit(ctx context.Context, tx repository.Tx, codeID *int64, code string, action model.CodeAction, storeID int64, actor Actor, res *CodeResult, details map[string]any) error {
	return u.usages.Append(ctx, tx, &model.CodeUsage{
		CodeID:    codeID,
		Code:      code,
		Action:    action,
		Success:   res.Success,
		Reason:    string(res.Reason),
		ActorID:   actor.UserID,
		StoreID:   storeID,
		IP:        actor.IP,
		UserAgent: actor.UserAgent,
		Details:   details,
		CreatedAt: u.now(),
	})
}
