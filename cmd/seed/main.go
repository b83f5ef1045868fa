// File: cmd/seed/main.go
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/jackc/pgx/v4"

	"mymedaga-payments/internal/config"
	"mymedaga-payments/internal/infra/api/apiv1"
	pg "mymedaga-payments/internal/infra/db/postgres"
	"mymedaga-payments/internal/infra/logging"
)

// seed creates a sandbox store with one payable object of each kind and
// prints bearer tokens for the owner and an admin.
func main() {
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	ownerID := flag.Int64("owner", 1001, "store owner user id")
	tokenTTL := flag.Duration("ttl", 24*time.Hour, "token lifetime")
	flag.Parse()

	cfg, err := config.Load(*cfgPath, true)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	logger := logging.New(cfg.Log, true)
	if cfg.Runtime.IsProduction() {
		logger.Fatal().Msg("refusing to seed a production environment")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, 4)
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres")
	}
	defer pool.Close()

	var storeID, productID, orderID, subID, promoID int64
	err = pool.BeginTxFunc(ctx, pgx.TxOptions{}, func(tx pgx.Tx) error {
		if err := tx.QueryRow(ctx,
			`INSERT INTO stores (owner_id, name) VALUES ($1, 'Boutique Sandbox') RETURNING id`, *ownerID).Scan(&storeID); err != nil {
			return fmt.Errorf("store: %w", err)
		}
		if err := tx.QueryRow(ctx,
			`INSERT INTO products (store_id, name, currency) VALUES ($1, 'Pagne wax', 'XOF') RETURNING id`, storeID).Scan(&productID); err != nil {
			return fmt.Errorf("product: %w", err)
		}
		if err := tx.QueryRow(ctx,
			`INSERT INTO orders (store_id, product_id, customer_id, total_price, delivery_fee)
			 VALUES ($1, $2, $3, 4500, 500) RETURNING id`, storeID, productID, *ownerID+1).Scan(&orderID); err != nil {
			return fmt.Errorf("order: %w", err)
		}
		if err := tx.QueryRow(ctx,
			`INSERT INTO subscriptions (store_id, plan_type, amount) VALUES ($1, 'premium', 15000) RETURNING id`, storeID).Scan(&subID); err != nil {
			return fmt.Errorf("subscription: %w", err)
		}
		if err := tx.QueryRow(ctx,
			`INSERT INTO promotions (promotion_type, product_id, store_id, amount, expires_at)
			 VALUES ('product', $1, $2, 2000, NOW() + INTERVAL '7 days') RETURNING id`, productID, storeID).Scan(&promoID); err != nil {
			return fmt.Errorf("promotion: %w", err)
		}
		return nil
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("seed")
	}

	auth := apiv1.NewAuthenticator(cfg.Auth.JWTSecret)
	ownerTok, err := auth.Mint(*ownerID, storeID, "", *tokenTTL)
	if err != nil {
		logger.Fatal().Err(err).Msg("mint owner token")
	}
	adminTok, err := auth.Mint(1, 0, apiv1.RoleAdmin, *tokenTTL)
	if err != nil {
		logger.Fatal().Err(err).Msg("mint admin token")
	}

	fmt.Printf("store=%d product=%d order=%d subscription=%d promotion=%d\n", storeID, productID, orderID, subID, promoID)
	fmt.Printf("owner token: %s\n", ownerTok)
	fmt.Printf("admin token: %s\n", adminTok)
}
