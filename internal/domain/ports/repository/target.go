package repository

import (
	"context"
	"time"

	"mymedaga-payments/internal/domain/model"
)

// TargetRepository reads and flips the payable business objects owned by the storefront.
type TargetRepository interface {
	// Snapshot loads what the payment core needs to charge a target.
	Snapshot(ctx context.Context, tx Tx, t model.PayableTarget) (*model.TargetSnapshot, error)
	FindStore(ctx context.Context, tx Tx, storeID int64) (*model.Store, error)
	FindSubscription(ctx context.Context, tx Tx, id int64) (*model.Subscription, error)
	FindPromotion(ctx context.Context, tx Tx, id int64) (*model.Promotion, error)
	FindProduct(ctx context.Context, tx Tx, id int64) (*model.Product, error)

	SetOrderPaymentStatus(ctx context.Context, tx Tx, orderID int64, paymentStatus string, method model.PaymentMethod) error
	ConfirmOrder(ctx context.Context, tx Tx, orderID int64, method model.PaymentMethod) error
	ActivateSubscription(ctx context.Context, tx Tx, id int64, startsAt, expiresAt time.Time) error
	ActivatePromotion(ctx context.Context, tx Tx, id int64) error
	MarkStoreVerified(ctx context.Context, tx Tx, storeID int64) error
	FeatureStore(ctx context.Context, tx Tx, storeID int64) error
	FeatureProduct(ctx context.Context, tx Tx, productID int64, until time.Time) error
}
