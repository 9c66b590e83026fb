package repository

import (
	"context"

	"github.com/jackc/pgx/v4"
)

// Tx is an opaque transaction handle. Repositories accept nil (pool-backed
// path) or the infra-defined handle (pgx.Tx for Postgres).
type Tx interface{}

// TransactionManager executes fn inside a database transaction, passing the
// underlying handle down so repository calls within fn share it. Keeps the
// use-case interfaces free of storage types.
type TransactionManager interface {
	WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx Tx) error) error
}
