package repository

import (
	"context"

	"github.com/jackc/pgx/v4"
)

// Tx is the storage-defined transaction handle (pgx.Tx for Postgres).
// Repositories accept nil to run outside a transaction and switch to
// row-locking reads (SELECT ... FOR UPDATE) when a real tx is passed.
type Tx interface{}

var NoTX interface{}

// TransactionManager runs fn inside a single database transaction.
// fn's error rolls the transaction back; nil commits it.
type TransactionManager interface {
	WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx Tx) error) error
}
