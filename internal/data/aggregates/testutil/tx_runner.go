package testutil

import (
	"context"
	"sync"

	"github.com/yungbote/tastequest-backend/internal/data/aggregates"
	"github.com/yungbote/tastequest-backend/internal/platform/dbctx"
)

// InjectedTxRunner wraps Inner (or runs the body without a transaction when
// Inner is nil) and injects failures around it.
type InjectedTxRunner struct {
	mu sync.Mutex

	Inner aggregates.TxRunner

	// FailBegin fails every call before the body runs.
	FailBegin error
	// FailFirst fails the first FailFirstN calls with FailFirst, then
	// behaves normally. Used to simulate lost races that later succeed.
	FailFirst  error
	FailFirstN int
	FailCommit error

	BeginCalls    int
	CommitCalls   int
	RollbackCalls int
}

var _ aggregates.TxRunner = (*InjectedTxRunner)(nil)

func (r *InjectedTxRunner) InTx(ctx context.Context, fn func(dbc dbctx.Context) error) error {
	r.mu.Lock()
	r.BeginCalls++
	call := r.BeginCalls
	failBegin := r.FailBegin
	failFirst := r.FailFirst
	failFirstN := r.FailFirstN
	failCommit := r.FailCommit
	inner := r.Inner
	r.mu.Unlock()

	if failBegin != nil {
		return failBegin
	}
	if failFirst != nil && call <= failFirstN {
		r.rollback()
		return failFirst
	}
	if fn == nil {
		r.commit()
		return nil
	}

	var err error
	if inner != nil {
		err = inner.InTx(ctx, fn)
	} else {
		err = fn(dbctx.Context{Ctx: ctx})
	}
	if err != nil {
		r.rollback()
		return err
	}
	if failCommit != nil {
		r.rollback()
		return failCommit
	}
	r.commit()
	return nil
}

func (r *InjectedTxRunner) Calls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.BeginCalls
}

func (r *InjectedTxRunner) commit() {
	r.mu.Lock()
	r.CommitCalls++
	r.mu.Unlock()
}

func (r *InjectedTxRunner) rollback() {
	r.mu.Lock()
	r.RollbackCalls++
	r.mu.Unlock()
}
