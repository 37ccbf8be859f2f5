package db

import (
	"context"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Transactor runs fn as one atomic unit. Repositories pick the unit of work
// up from the context passed to fn; a nested WithinTx joins the outer unit.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type txKey struct{}
type hooksKey struct{}

// TxFromContext returns the transaction started by WithinTx, or nil.
func TxFromContext(ctx context.Context) pgx.Tx {
	tx, _ := ctx.Value(txKey{}).(pgx.Tx)
	return tx
}

// CommitHooks collects callbacks that must only run once the surrounding
// unit of work has committed.
type CommitHooks struct {
	mu  sync.Mutex
	fns []func()
}

// WithCommitHooks attaches a fresh hook list to ctx.
func WithCommitHooks(ctx context.Context) (context.Context, *CommitHooks) {
	h := &CommitHooks{}
	return context.WithValue(ctx, hooksKey{}, h), h
}

// Run invokes the collected callbacks in registration order.
func (h *CommitHooks) Run() {
	h.mu.Lock()
	fns := h.fns
	h.fns = nil
	h.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

// AfterCommit defers fn until the unit of work in ctx commits. Outside a unit
// of work fn runs immediately. Hooks are dropped on rollback.
func AfterCommit(ctx context.Context, fn func()) {
	h, _ := ctx.Value(hooksKey{}).(*CommitHooks)
	if h == nil {
		fn()
		return
	}
	h.mu.Lock()
	h.fns = append(h.fns, fn)
	h.mu.Unlock()
}

// PGTransactor implements Transactor on a pgx pool.
type PGTransactor struct {
	pool *pgxpool.Pool
}

func NewTransactor(pool *pgxpool.Pool) *PGTransactor {
	return &PGTransactor{pool: pool}
}

func (t *PGTransactor) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if TxFromContext(ctx) != nil {
		return fn(ctx)
	}

	tx, err := t.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	ctx, hooks := WithCommitHooks(ctx)
	ctx = context.WithValue(ctx, txKey{}, tx)

	if err := fn(ctx); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	hooks.Run()
	return nil
}
