package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type PaymentStatus string

const (
	PaymentStatusPending    PaymentStatus = "pending"    // created, provider not called yet
	PaymentStatusProcessing PaymentStatus = "processing" // provider accepted the request; awaiting confirmation
	PaymentStatusCompleted  PaymentStatus = "completed"
	PaymentStatusFailed     PaymentStatus = "failed"
	PaymentStatusRefunded   PaymentStatus = "refunded"
	PaymentStatusCancelled  PaymentStatus = "cancelled"
)

// IsTerminal reports whether the status can no longer change.
func (s PaymentStatus) IsTerminal() bool {
	switch s {
	case PaymentStatusCompleted, PaymentStatusFailed, PaymentStatusRefunded, PaymentStatusCancelled:
		return true
	}
	return false
}

// Payer holds the contact details captured at initiation.
type Payer struct {
	Name  string
	Email string
	Phone string
}

// Payment records one payment attempt against exactly one payable target.
type Payment struct {
	ID               string // ULID
	Amount           decimal.Decimal
	Currency         string
	Method           PaymentMethod
	Status           PaymentStatus
	TransactionID    string // caller-generated, globally unique
	ExternalID       string // provider-assigned id
	PaymentReference string // provider or SMS reference
	Payer            Payer
	Target           PayableTarget
	Metadata         map[string]any // provider responses, webhook payloads (JSONB)
	PaidAt           *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// MergeMetadata copies kv into the payment metadata, allocating it when needed.
func (p *Payment) MergeMetadata(kv map[string]any) {
	if len(kv) == 0 {
		return
	}
	if p.Metadata == nil {
		p.Metadata = make(map[string]any, len(kv))
	}
	for k, v := range kv {
		p.Metadata[k] = v
	}
}

// ProviderStatus is the normalized status vocabulary returned by adapters.
type ProviderStatus string

const (
	ProviderStatusPending   ProviderStatus = "pending"
	ProviderStatusCompleted ProviderStatus = "completed"
	ProviderStatusFailed    ProviderStatus = "failed"
)

// ProviderResult is the common shape every provider adapter returns.
// Adapters never return Go errors to callers; failures are described by Error.
type ProviderResult struct {
	Success          bool
	Status           ProviderStatus
	PaymentURL       string
	ExternalID       string
	ProviderResponse map[string]any
	Error            string
}

// Failure builds a non-success result.
func Failure(msg string, resp map[string]any) ProviderResult {
	return ProviderResult{Success: false, Error: msg, ProviderResponse: resp}
}
