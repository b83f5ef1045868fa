package adapter

import (
	"context"

	"github.com/shopspring/decimal"

	"mymedaga-payments/internal/domain/model"
)

// InitiateRequest carries everything an adapter needs to start a payment.
// TransactionID is the caller's idempotency key; adapters never invent one.
type InitiateRequest struct {
	Amount        decimal.Decimal
	Currency      string
	Phone         string
	Email         string
	Description   string
	TransactionID string
	// Metadata is forwarded to providers supporting it (Stripe destination account, target ids).
	Metadata map[string]string
}

// VerifyRequest identifies a payment to look up. TransactionID is always set;
// ExternalID is the provider-assigned id when the provider returned one.
type VerifyRequest struct {
	TransactionID string
	ExternalID    string
}

// Provider is the port every payment provider adapter implements.
// Implementations must not retry and must never panic or return errors past
// this boundary: every failure is described by the returned ProviderResult.
type Provider interface {
	Method() model.PaymentMethod
	InitiatePayment(ctx context.Context, req InitiateRequest) model.ProviderResult
	VerifyPayment(ctx context.Context, req VerifyRequest) model.ProviderResult
}

// WebhookGuaranteed is implemented by providers that always call back; the
// delayed verifier is skipped for them.
type WebhookGuaranteed interface {
	GuaranteesWebhook() bool
}
