package repository

import (
	"context"
	"time"

	"mymedaga-payments/internal/domain/model"
)

// -----------------------------
// Payments
// -----------------------------

type PaymentRepository interface {
	// Create inserts a new payment; a duplicate transaction_id yields domain.ErrAlreadyExists.
	Create(ctx context.Context, tx Tx, p *model.Payment) error
	// FindByID and FindByTransactionID lock the row when tx is a real transaction.
	FindByID(ctx context.Context, tx Tx, id string) (*model.Payment, error)
	FindByTransactionID(ctx context.Context, tx Tx, transactionID string) (*model.Payment, error)
	FindByReference(ctx context.Context, tx Tx, reference string) (*model.Payment, error)
	// UpdateStatusIfOpen is the compare-and-swap used by every terminal transition:
	// it only applies while status is pending or processing and reports whether it did.
	UpdateStatusIfOpen(ctx context.Context, tx Tx, id string, status model.PaymentStatus, metadata map[string]any, paidAt *time.Time) (bool, error)
	// RecordProviderResponse stores initiation details without touching terminal rows.
	RecordProviderResponse(ctx context.Context, tx Tx, id string, status model.PaymentStatus, externalID string, metadata map[string]any) error
	ListOpenOlderThan(ctx context.Context, tx Tx, olderThan time.Time, limit int) ([]*model.Payment, error)
}
