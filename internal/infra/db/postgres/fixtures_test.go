//go:build integration

package postgres

import (
	"context"
	"testing"
	"time"
)

// storefront inserts one store with a product, an order, a subscription and a
// store promotion, returning their ids.
type storefront struct {
	StoreID, OwnerID, ProductID, OrderID, SubscriptionID, PromotionID int64
}

func seedStorefront(t *testing.T) storefront {
	t.Helper()
	ctx := context.Background()
	sf := storefront{OwnerID: 77}
	mustScan := func(q string, dst *int64, args ...interface{}) {
		t.Helper()
		if err := testPool.QueryRow(ctx, q, args...).Scan(dst); err != nil {
			t.Fatalf("seed %q: %v", q, err)
		}
	}
	mustScan(`INSERT INTO stores (owner_id, name, stripe_account_id) VALUES ($1, 'Boutique', 'acct_1') RETURNING id`, &sf.StoreID, sf.OwnerID)
	mustScan(`INSERT INTO products (store_id, name, currency) VALUES ($1, 'Pagne', 'XOF') RETURNING id`, &sf.ProductID, sf.StoreID)
	mustScan(`INSERT INTO orders (store_id, product_id, customer_id, total_price, delivery_fee) VALUES ($1, $2, 5, 10000, 500) RETURNING id`,
		&sf.OrderID, sf.StoreID, sf.ProductID)
	mustScan(`INSERT INTO subscriptions (store_id, amount) VALUES ($1, 5000) RETURNING id`, &sf.SubscriptionID, sf.StoreID)
	mustScan(`INSERT INTO promotions (promotion_type, store_id, amount, expires_at) VALUES ('store', $1, 2000, $2) RETURNING id`,
		&sf.PromotionID, sf.StoreID, time.Now().Add(7*24*time.Hour))
	return sf
}
