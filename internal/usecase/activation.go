package usecase

import (
	"context"
	"fmt"
	"time"

	"mymedaga-payments/internal/domain"
	"mymedaga-payments/internal/domain/model"
	"mymedaga-payments/internal/domain/ports/repository"
)

// Activation describes what a successful payment or code switched on.
type Activation struct {
	Target    model.PayableTarget
	StoreID   int64
	OwnerID   int64
	PlanType  string
	ExpiresAt time.Time
}

// targetActivator flips the payable objects. Every method must run inside the
// caller's transaction.
type targetActivator struct {
	targets repository.TargetRepository
}

func (a *targetActivator) activate(ctx context.Context, tx repository.Tx, t model.PayableTarget, method model.PaymentMethod, now time.Time) (*Activation, error) {
	switch t.Type {
	case model.TargetOrder:
		return a.confirmOrder(ctx, tx, t, method)
	case model.TargetSubscription:
		return a.activateSubscription(ctx, tx, t.ID, now)
	case model.TargetPromotion:
		return a.activatePromotion(ctx, tx, t.ID)
	}
	return nil, fmt.Errorf("%w: unknown target %q", domain.ErrValidation, t.Type)
}

func (a *targetActivator) confirmOrder(ctx context.Context, tx repository.Tx, t model.PayableTarget, method model.PaymentMethod) (*Activation, error) {
	snap, err := a.targets.Snapshot(ctx, tx, t)
	if err != nil {
		return nil, err
	}
	if err := a.targets.ConfirmOrder(ctx, tx, t.ID, method); err != nil {
		return nil, err
	}
	return &Activation{Target: t, StoreID: snap.StoreID, OwnerID: snap.OwnerID}, nil
}

// activateSubscription starts the plan now and certifies the store.
func (a *targetActivator) activateSubscription(ctx context.Context, tx repository.Tx, id int64, now time.Time) (*Activation, error) {
	sub, err := a.targets.FindSubscription(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	start, end := sub.ActivationWindow(now)
	if err := a.targets.ActivateSubscription(ctx, tx, id, start, end); err != nil {
		return nil, err
	}
	if err := a.targets.MarkStoreVerified(ctx, tx, sub.StoreID); err != nil {
		return nil, err
	}
	store, err := a.targets.FindStore(ctx, tx, sub.StoreID)
	if err != nil {
		return nil, err
	}
	return &Activation{
		Target:    model.PayableTarget{Type: model.TargetSubscription, ID: id},
		StoreID:   sub.StoreID,
		OwnerID:   store.OwnerID,
		PlanType:  sub.PlanType,
		ExpiresAt: end,
	}, nil
}

func (a *targetActivator) activatePromotion(ctx context.Context, tx repository.Tx, id int64) (*Activation, error) {
	t := model.PayableTarget{Type: model.TargetPromotion, ID: id}
	promo, err := a.targets.FindPromotion(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	snap, err := a.targets.Snapshot(ctx, tx, t)
	if err != nil {
		return nil, err
	}
	if err := a.targets.ActivatePromotion(ctx, tx, id); err != nil {
		return nil, err
	}
	switch {
	case promo.Type == model.PromotionProduct && promo.ProductID != nil:
		err = a.targets.FeatureProduct(ctx, tx, *promo.ProductID, promo.ExpiresAt)
	case promo.Type == model.PromotionStore && promo.StoreID != nil:
		err = a.targets.FeatureStore(ctx, tx, *promo.StoreID)
	default:
		err = fmt.Errorf("%w: promotion %d has no %s reference", domain.ErrValidation, id, promo.Type)
	}
	if err != nil {
		return nil, err
	}
	return &Activation{Target: t, StoreID: snap.StoreID, OwnerID: snap.OwnerID, ExpiresAt: promo.ExpiresAt}, nil
}

// featureProduct is the promotion-code path: no promotion row, the product is
// featured until the given time.
func (a *targetActivator) featureProduct(ctx context.Context, tx repository.Tx, productID int64, until time.Time) (*Activation, error) {
	product, err := a.targets.FindProduct(ctx, tx, productID)
	if err != nil {
		return nil, err
	}
	if err := a.targets.FeatureProduct(ctx, tx, productID, until); err != nil {
		return nil, err
	}
	store, err := a.targets.FindStore(ctx, tx, product.StoreID)
	if err != nil {
		return nil, err
	}
	return &Activation{StoreID: product.StoreID, OwnerID: store.OwnerID, ExpiresAt: until}, nil
}
