package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/shopspring/decimal"

	"mymedaga-payments/internal/domain"
	"mymedaga-payments/internal/domain/model"
	"mymedaga-payments/internal/domain/ports/repository"
)

var _ repository.TargetRepository = (*targetRepo)(nil)

// targetRepo works on storefront-owned tables; it only touches payment and activation columns.
type targetRepo struct{ pool *pgxpool.Pool }

func NewTargetRepo(pool *pgxpool.Pool) *targetRepo {
	return &targetRepo{pool: pool}
}

func (r *targetRepo) Snapshot(ctx context.Context, tx repository.Tx, t model.PayableTarget) (*model.TargetSnapshot, error) {
	var q string
	switch t.Type {
	case model.TargetOrder:
		q = `SELECT o.store_id, s.owner_id, o.total_price + o.delivery_fee, p.currency, o.payment_status
FROM orders o JOIN stores s ON s.id = o.store_id JOIN products p ON p.id = o.product_id
WHERE o.id = $1`
	case model.TargetSubscription:
		q = `SELECT sub.store_id, s.owner_id, sub.amount, 'XAF', sub.status
FROM subscriptions sub JOIN stores s ON s.id = sub.store_id
WHERE sub.id = $1`
	case model.TargetPromotion:
		q = `SELECT COALESCE(pr.store_id, p.store_id), s.owner_id, pr.amount, COALESCE(p.currency, 'XAF'), pr.status
FROM promotions pr
LEFT JOIN products p ON p.id = pr.product_id
JOIN stores s ON s.id = COALESCE(pr.store_id, p.store_id)
WHERE pr.id = $1`
	default:
		return nil, domain.ErrInvalidArgument
	}
	row, err := pickRow(ctx, r.pool, tx, q, t.ID)
	if err != nil {
		return nil, err
	}
	snap := &model.TargetSnapshot{Target: t}
	if err := row.Scan(&snap.StoreID, &snap.OwnerID, &snap.Amount, &snap.Currency, &snap.Status); err != nil {
		if err == pgx.ErrNoRows {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	return snap, nil
}

func (r *targetRepo) FindStore(ctx context.Context, tx repository.Tx, storeID int64) (*model.Store, error) {
	const q = `SELECT id, owner_id, name, is_verified, is_featured, stripe_account_id, fedapay_merchant_id, paystack_subaccount
FROM stores WHERE id = $1`
	row, err := pickRow(ctx, r.pool, tx, q, storeID)
	if err != nil {
		return nil, err
	}
	var s model.Store
	if err := row.Scan(&s.ID, &s.OwnerID, &s.Name, &s.IsVerified, &s.IsFeatured, &s.StripeAccountID, &s.FedaPayMerchantID, &s.PaystackSubaccount); err != nil {
		if err == pgx.ErrNoRows {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	return &s, nil
}

func (r *targetRepo) FindSubscription(ctx context.Context, tx repository.Tx, id int64) (*model.Subscription, error) {
	q := lockClause(`SELECT id, store_id, plan_type, amount, status, is_active, plan_duration_days, starts_at, expires_at
FROM subscriptions WHERE id = $1`, tx)
	row, err := pickRow(ctx, r.pool, tx, q, id)
	if err != nil {
		return nil, err
	}
	var s model.Subscription
	if err := row.Scan(&s.ID, &s.StoreID, &s.PlanType, &s.Amount, &s.Status, &s.IsActive, &s.PlanDurationDays, &s.StartsAt, &s.ExpiresAt); err != nil {
		if err == pgx.ErrNoRows {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	return &s, nil
}

func (r *targetRepo) FindPromotion(ctx context.Context, tx repository.Tx, id int64) (*model.Promotion, error) {
	q := lockClause(`SELECT id, promotion_type, product_id, store_id, amount, status, starts_at, expires_at
FROM promotions WHERE id = $1`, tx)
	row, err := pickRow(ctx, r.pool, tx, q, id)
	if err != nil {
		return nil, err
	}
	var (
		p   model.Promotion
		typ string
		amt decimal.Decimal
	)
	if err := row.Scan(&p.ID, &typ, &p.ProductID, &p.StoreID, &amt, &p.Status, &p.StartsAt, &p.ExpiresAt); err != nil {
		if err == pgx.ErrNoRows {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	p.Type = model.PromotionType(typ)
	p.Amount = amt
	return &p, nil
}

func (r *targetRepo) FindProduct(ctx context.Context, tx repository.Tx, id int64) (*model.Product, error) {
	const q = `SELECT id, store_id, name, currency, is_featured, featured_until FROM products WHERE id = $1`
	row, err := pickRow(ctx, r.pool, tx, q, id)
	if err != nil {
		return nil, err
	}
	var p model.Product
	if err := row.Scan(&p.ID, &p.StoreID, &p.Name, &p.Currency, &p.IsFeatured, &p.FeaturedUntil); err != nil {
		if err == pgx.ErrNoRows {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	return &p, nil
}

func (r *targetRepo) SetOrderPaymentStatus(ctx context.Context, tx repository.Tx, orderID int64, paymentStatus string, method model.PaymentMethod) error {
	const q = `UPDATE orders SET payment_status = $2, payment_method = $3, updated_at = NOW()
WHERE id = $1 AND payment_status <> 'completed'`
	return r.exec(ctx, tx, q, orderID, paymentStatus, string(method))
}

func (r *targetRepo) ConfirmOrder(ctx context.Context, tx repository.Tx, orderID int64, method model.PaymentMethod) error {
	const q = `UPDATE orders
   SET payment_status = 'completed',
       status = CASE WHEN status = 'pending' THEN 'confirmed' ELSE status END,
       payment_method = $2,
       updated_at = NOW()
 WHERE id = $1`
	return r.mustAffect(ctx, tx, q, orderID, string(method))
}

func (r *targetRepo) ActivateSubscription(ctx context.Context, tx repository.Tx, id int64, startsAt, expiresAt time.Time) error {
	const q = `UPDATE subscriptions
   SET status = 'active', is_active = TRUE, starts_at = $2, expires_at = $3, updated_at = NOW()
 WHERE id = $1`
	return r.mustAffect(ctx, tx, q, id, startsAt, expiresAt)
}

func (r *targetRepo) ActivatePromotion(ctx context.Context, tx repository.Tx, id int64) error {
	const q = `UPDATE promotions SET status = 'active', updated_at = NOW() WHERE id = $1`
	return r.mustAffect(ctx, tx, q, id)
}

func (r *targetRepo) MarkStoreVerified(ctx context.Context, tx repository.Tx, storeID int64) error {
	return r.mustAffect(ctx, tx, `UPDATE stores SET is_verified = TRUE WHERE id = $1`, storeID)
}

func (r *targetRepo) FeatureStore(ctx context.Context, tx repository.Tx, storeID int64) error {
	return r.mustAffect(ctx, tx, `UPDATE stores SET is_featured = TRUE WHERE id = $1`, storeID)
}

// FeatureProduct never shortens an existing featured window.
func (r *targetRepo) FeatureProduct(ctx context.Context, tx repository.Tx, productID int64, until time.Time) error {
	const q = `UPDATE products
   SET is_featured = TRUE,
       featured_until = GREATEST(COALESCE(featured_until, $2), $2)
 WHERE id = $1`
	return r.mustAffect(ctx, tx, q, productID, until)
}

func (r *targetRepo) exec(ctx context.Context, tx repository.Tx, q string, args ...interface{}) error {
	_, err := execSQL(ctx, r.pool, tx, q, args...)
	return mapErr(err)
}

func (r *targetRepo) mustAffect(ctx context.Context, tx repository.Tx, q string, args ...interface{}) error {
	cmd, err := execSQL(ctx, r.pool, tx, q, args...)
	if err != nil {
		return mapErr(err)
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}
