package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type CodeType string

const (
	CodeTypeCertification CodeType = "certification"
	CodeTypePromotion     CodeType = "promotion"
)

type CodeStatus string

const (
	CodeStatusPending   CodeStatus = "pending"
	CodeStatusUsed      CodeStatus = "used"
	CodeStatusExpired   CodeStatus = "expired"
	CodeStatusCancelled CodeStatus = "cancelled"
)

type DiscountType string

const (
	DiscountPercentage DiscountType = "percentage"
	DiscountFixed      DiscountType = "fixed"
)

const (
	DefaultCodeUsageLimit  = 1
	DefaultCodeMaxAttempts = 5
	DefaultCodeTTLDays     = 30
)

// VerificationCode is a manual fallback authorization token (format XXXX-XXXX-XXXX).
type VerificationCode struct {
	ID             int64
	Code           string
	Type           CodeType
	Status         CodeStatus
	UsageLimit     int // 0 = unlimited
	UsageCount     int
	MaxAttempts    int
	FailedAttempts int
	ExpiresAt      time.Time
	CreatedBy      int64
	StoreID        int64
	SubscriptionID *int64 // certification codes
	ProductID      *int64 // promotion codes
	DiscountType   DiscountType
	DiscountValue  decimal.Decimal
	UsedAt         *time.Time
	UsedBy         *int64
	Notes          string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// HasReference reports whether the type-specific target reference is set.
func (c *VerificationCode) HasReference() bool {
	switch c.Type {
	case CodeTypeCertification:
		return c.SubscriptionID != nil
	case CodeTypePromotion:
		return c.ProductID != nil
	}
	return false
}

// Exhausted reports whether the usage limit has been reached.
func (c *VerificationCode) Exhausted() bool {
	return c.UsageLimit > 0 && c.UsageCount >= c.UsageLimit
}

// IsValid is re-evaluated on every call; nothing is cached.
func (c *VerificationCode) IsValid(now time.Time) bool {
	return c.Status == CodeStatusPending &&
		now.Before(c.ExpiresAt) &&
		!c.Exhausted() &&
		c.FailedAttempts < c.MaxAttempts &&
		c.HasReference()
}

// ExpireIfDue flips a pending code past its expiry to expired and reports whether it did.
func (c *VerificationCode) ExpireIfDue(now time.Time) bool {
	if c.Status == CodeStatusPending && !now.Before(c.ExpiresAt) {
		c.Status = CodeStatusExpired
		c.UpdatedAt = now
		return true
	}
	return false
}

// RecordUsage consumes one use; the code becomes used once the limit is reached.
func (c *VerificationCode) RecordUsage(now time.Time, userID int64) {
	c.UsageCount++
	c.UsedAt = &now
	c.UsedBy = &userID
	if c.Exhausted() {
		c.Status = CodeStatusUsed
	}
	c.UpdatedAt = now
}

// RecordFailedAttempt burns one attempt; reaching MaxAttempts expires the code.
func (c *VerificationCode) RecordFailedAttempt(now time.Time) {
	c.FailedAttempts++
	if c.FailedAttempts >= c.MaxAttempts && c.Status == CodeStatusPending {
		c.Status = CodeStatusExpired
	}
	c.UpdatedAt = now
}

// Cancel moves a pending code to cancelled. Terminal codes are left unchanged.
func (c *VerificationCode) Cancel(now time.Time) bool {
	if c.Status != CodeStatusPending {
		return false
	}
	c.Status = CodeStatusCancelled
	c.UpdatedAt = now
	return true
}

// Discount applies the promotion discount to amount. Never returns a negative value.
func (c *VerificationCode) Discount(amount decimal.Decimal) decimal.Decimal {
	if c.Type != CodeTypePromotion || c.DiscountValue.IsZero() {
		return amount
	}
	var out decimal.Decimal
	switch c.DiscountType {
	case DiscountPercentage:
		out = amount.Sub(amount.Mul(c.DiscountValue).Div(decimal.NewFromInt(100)))
	case DiscountFixed:
		out = amount.Sub(c.DiscountValue)
	default:
		return amount
	}
	if out.IsNegative() {
		return decimal.Zero
	}
	return out.Round(2)
}

type CodeAction string

const (
	CodeActionValidate CodeAction = "validate"
	CodeActionCancel   CodeAction = "cancel"
	CodeActionDelete   CodeAction = "delete"
)

// CodeUsage is a write-once audit record of an action against a code.
type CodeUsage struct {
	ID        string // ULID
	CodeID    *int64 // nil once the code is deleted
	Code      string
	Action    CodeAction
	Success   bool
	Reason    string
	ActorID   int64
	StoreID   int64
	IP        string
	UserAgent string
	Details   map[string]any
	CreatedAt time.Time
}

// CodeStats aggregates code counts for dashboards and the periodic statistics job.
type CodeStats struct {
	ByTypeStatus      map[CodeType]map[CodeStatus]int
	UsedLast24h       int
	Attempts24h       int
	SuccessfulLast24h int
}

// SuccessRate is the share of successful validations in the last 24h, in percent.
func (s CodeStats) SuccessRate() float64 {
	if s.Attempts24h == 0 {
		return 0
	}
	return float64(s.SuccessfulLast24h) * 100 / float64(s.Attempts24h)
}
