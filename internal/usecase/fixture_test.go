//go:build !integration

package usecase_test

import (
	"time"

	"mymedaga-payments/internal/domain/model"
	"mymedaga-payments/internal/usecase"
)

const (
	storeID   int64 = 1
	ownerID   int64 = 100
	orderID   int64 = 40
	subID     int64 = 10
	promoID   int64 = 20
	productID int64 = 30
)

// fixture wires the use cases over in-memory ports seeded with one store
// owning an order, a subscription and a product promotion.
type fixture struct {
	tm            *MockTxManager
	payments      *MockPaymentRepo
	targets       *MockTargetRepo
	notifications *MockNotificationRepo
	codes         *MockCodeRepo
	usages        *MockUsageRepo
	alerter       *MockAlerter
	locker        *MockLocker
	scheduler     *MockScheduler
	settler       *usecase.Settler
}

func newFixture() *fixture {
	f := &fixture{
		tm:            NewMockTxManager(),
		payments:      NewMockPaymentRepo(),
		targets:       NewMockTargetRepo(),
		notifications: NewMockNotificationRepo(),
		codes:         NewMockCodeRepo(),
		usages:        NewMockUsageRepo(),
		alerter:       &MockAlerter{},
		locker:        NewMockLocker(),
		scheduler:     &MockScheduler{},
	}
	f.settler = usecase.NewSettler(f.tm, f.payments, f.targets, f.notifications, newTestTranslator(), f.alerter, newTestLogger())

	expires := time.Now().AddDate(0, 0, 7)
	f.targets.Stores[storeID] = &model.Store{ID: storeID, OwnerID: ownerID, Name: "Boutique Test", StripeAccountID: "acct_123"}
	f.targets.Subscriptions[subID] = &model.Subscription{ID: subID, StoreID: storeID, PlanType: "premium", Amount: xof(15000), Status: "pending", PlanDurationDays: 30}
	f.targets.Promotions[promoID] = &model.Promotion{ID: promoID, Type: model.PromotionProduct, ProductID: int64p(productID), Amount: xof(2000), Currency: "XOF", Status: "pending", ExpiresAt: expires}
	f.targets.Products[productID] = &model.Product{ID: productID, StoreID: storeID, Name: "Pagne"}

	order := model.PayableTarget{Type: model.TargetOrder, ID: orderID}
	sub := model.PayableTarget{Type: model.TargetSubscription, ID: subID}
	promo := model.PayableTarget{Type: model.TargetPromotion, ID: promoID}
	f.targets.Snapshots[order] = &model.TargetSnapshot{Target: order, StoreID: storeID, OwnerID: ownerID, Amount: xof(5000), Currency: "XOF", Status: "pending"}
	f.targets.Snapshots[sub] = &model.TargetSnapshot{Target: sub, StoreID: storeID, OwnerID: ownerID, Amount: xof(15000), Currency: "XOF", Status: "pending"}
	f.targets.Snapshots[promo] = &model.TargetSnapshot{Target: promo, StoreID: storeID, OwnerID: ownerID, Amount: xof(2000), Currency: "XOF", Status: "pending"}
	return f
}

// seedPayment stores an open payment for target.
func (f *fixture) seedPayment(id string, t model.PayableTarget, method model.PaymentMethod, status model.PaymentStatus) *model.Payment {
	p := &model.Payment{
		ID:            id,
		Amount:        f.targets.Snapshots[t].Amount,
		Currency:      "XOF",
		Method:        method,
		Status:        status,
		TransactionID: t.TransactionID(time.Unix(1717000000, 0)),
		Target:        t,
		Metadata:      map[string]any{},
		CreatedAt:     time.Now().Add(-time.Hour),
	}
	f.payments.Put(p)
	return p
}
