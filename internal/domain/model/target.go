package model

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

type TargetType string

const (
	TargetOrder        TargetType = "order"
	TargetSubscription TargetType = "subscription"
	TargetPromotion    TargetType = "promotion"
)

// PayableTarget is the business object a payment is for. Exactly one per payment.
type PayableTarget struct {
	Type TargetType
	ID   int64
}

func (t PayableTarget) Validate() error {
	switch t.Type {
	case TargetOrder, TargetSubscription, TargetPromotion:
	default:
		return fmt.Errorf("unknown target type %q", t.Type)
	}
	if t.ID <= 0 {
		return fmt.Errorf("target id must be positive")
	}
	return nil
}

// TransactionPrefix is the prefix used in generated transaction ids.
func (t PayableTarget) TransactionPrefix() string {
	switch t.Type {
	case TargetSubscription:
		return "SUB"
	case TargetPromotion:
		return "PRO"
	default:
		return "ORD"
	}
}

// TransactionID builds "<PREFIX><id>_<unix seconds>", e.g. ORD42_1717000000.
func (t PayableTarget) TransactionID(now time.Time) string {
	return fmt.Sprintf("%s%d_%d", t.TransactionPrefix(), t.ID, now.Unix())
}

// Pointers splits the target into the three nullable foreign keys used by storage.
func (t PayableTarget) Pointers() (orderID, subscriptionID, promotionID *int64) {
	id := t.ID
	switch t.Type {
	case TargetOrder:
		orderID = &id
	case TargetSubscription:
		subscriptionID = &id
	case TargetPromotion:
		promotionID = &id
	}
	return
}

// TargetFromPointers is the inverse of Pointers. More than one non-nil key is an error.
func TargetFromPointers(orderID, subscriptionID, promotionID *int64) (PayableTarget, error) {
	var out PayableTarget
	n := 0
	if orderID != nil {
		out, n = PayableTarget{Type: TargetOrder, ID: *orderID}, n+1
	}
	if subscriptionID != nil {
		out, n = PayableTarget{Type: TargetSubscription, ID: *subscriptionID}, n+1
	}
	if promotionID != nil {
		out, n = PayableTarget{Type: TargetPromotion, ID: *promotionID}, n+1
	}
	if n != 1 {
		return PayableTarget{}, fmt.Errorf("payment references %d targets", n)
	}
	return out, nil
}

// Store is the tenant owning orders, subscriptions and promotions.
type Store struct {
	ID                 int64
	OwnerID            int64
	Name               string
	IsVerified         bool
	IsFeatured         bool
	StripeAccountID    string
	FedaPayMerchantID  string
	PaystackSubaccount string
}

type Order struct {
	ID            int64
	StoreID       int64
	CustomerID    *int64
	ProductID     int64
	TotalPrice    decimal.Decimal
	DeliveryFee   decimal.Decimal
	Currency      string
	Status        string // pending, confirmed, ...
	PaymentStatus string // mirrors PaymentStatus values
	PaymentMethod string
}

// TotalWithDelivery is the amount charged for the order.
func (o *Order) TotalWithDelivery() decimal.Decimal {
	return o.TotalPrice.Add(o.DeliveryFee)
}

// DefaultSubscriptionDays is used when a plan does not define its own duration.
const DefaultSubscriptionDays = 30

type Subscription struct {
	ID               int64
	StoreID          int64
	PlanType         string
	Amount           decimal.Decimal
	Status           string // pending, active, failed, cancelled
	IsActive         bool
	PlanDurationDays int
	StartsAt         *time.Time
	ExpiresAt        *time.Time
}

// ActivationWindow returns the [start, end) the subscription covers when activated at now.
func (s *Subscription) ActivationWindow(now time.Time) (time.Time, time.Time) {
	days := s.PlanDurationDays
	if days <= 0 {
		days = DefaultSubscriptionDays
	}
	return now, now.AddDate(0, 0, days)
}

type PromotionType string

const (
	PromotionProduct PromotionType = "product"
	PromotionStore   PromotionType = "store"
)

type Promotion struct {
	ID        int64
	Type      PromotionType
	ProductID *int64
	StoreID   *int64
	Amount    decimal.Decimal
	Currency  string
	Status    string // pending, active, expired, cancelled
	StartsAt  time.Time
	ExpiresAt time.Time
}

type Product struct {
	ID            int64
	StoreID       int64
	Name          string
	Currency      string
	IsFeatured    bool
	FeaturedUntil *time.Time
}

// TargetSnapshot is what the payment core needs to know about a target before charging it.
type TargetSnapshot struct {
	Target   PayableTarget
	StoreID  int64
	OwnerID  int64 // user to notify
	Amount   decimal.Decimal
	Currency string
	Status   string
}
