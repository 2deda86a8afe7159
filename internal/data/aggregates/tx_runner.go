package aggregates

import (
	"context"
	"database/sql"

	"gorm.io/gorm"

	domainagg "github.com/yungbote/tastequest-backend/internal/domain/aggregates"
	"github.com/yungbote/tastequest-backend/internal/platform/dbctx"
)

// TxRunner is the transaction boundary for aggregate writes.
type TxRunner interface {
	InTx(ctx context.Context, fn func(dbc dbctx.Context) error) error
}

type gormTxRunner struct {
	db   *gorm.DB
	opts *sql.TxOptions
}

// NewGormTxRunner returns a runner backed by GORM transactions at the
// driver's default isolation level.
func NewGormTxRunner(db *gorm.DB) TxRunner {
	return &gormTxRunner{db: db}
}

// NewGormTxRunnerWithOptions pins the isolation level, e.g. serializable for
// deployments that prefer retries to row locks.
func NewGormTxRunnerWithOptions(db *gorm.DB, opts *sql.TxOptions) TxRunner {
	return &gormTxRunner{db: db, opts: opts}
}

func (r *gormTxRunner) InTx(ctx context.Context, fn func(dbc dbctx.Context) error) error {
	if fn == nil {
		return nil
	}
	if r == nil || r.db == nil {
		return domainagg.NewError(domainagg.CodeInternal, "aggregate.tx", "transaction runner has nil db", nil)
	}
	var opts []*sql.TxOptions
	if r.opts != nil {
		opts = append(opts, r.opts)
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(dbctx.Context{Ctx: ctx, Tx: tx})
	}, opts...)
}
