package repository

import (
	"context"
	"fmt"
	"math"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Querier is satisfied by both *pgxpool.Pool and pgx.Tx so repositories can be
// bound to either.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// OpenEnd marks a Span without an upper bound.
const OpenEnd = math.MaxInt32

// Span is an inclusive range of positions.
type Span struct {
	From int
	To   int
}

// Sequence is a sibling scope whose positions form a dense zero-based range.
// The scope id is the category id for tickets and the owner id for categories.
type Sequence interface {
	Count(ctx context.Context, scopeID string) (int, error)
	Shift(ctx context.Context, scopeID string, span Span, delta int) error
	SetPosition(ctx context.Context, id string, position int) error
}

// Repositories bundles every repository bound to the same Querier.
type Repositories struct {
	Users       UserRepository
	Categories  CategoryRepository
	Tickets     TicketRepository
	History     TicketHistoryRepository
	Assignments AssignmentRepository
	Locks       LockRepository
}

// Store hands out repositories and runs units of work.
type Store interface {
	// Repositories returns repositories bound to the pool, outside any transaction.
	Repositories() Repositories
	// WithTx runs fn inside one transaction. The transaction commits when fn
	// returns nil and rolls back on error, panic or context cancellation.
	WithTx(ctx context.Context, fn func(Repositories) error) error
}

// NewRepositories binds all repositories to q.
func NewRepositories(q Querier) Repositories {
	return Repositories{
		Users:       NewUserRepository(q),
		Categories:  NewCategoryRepository(q),
		Tickets:     NewTicketRepository(q),
		History:     NewTicketHistoryRepository(q),
		Assignments: NewAssignmentRepository(q),
		Locks:       NewLockRepository(q),
	}
}

type pgStore struct {
	pool *pgxpool.Pool
}

// NewStore returns a Postgres-backed Store.
func NewStore(pool *pgxpool.Pool) Store {
	return &pgStore{pool: pool}
}

func (s *pgStore) Repositories() Repositories {
	return NewRepositories(s.pool)
}

func (s *pgStore) WithTx(ctx context.Context, fn func(Repositories) error) (err error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback(context.WithoutCancel(ctx))
			panic(p)
		}
	}()

	if err := fn(NewRepositories(tx)); err != nil {
		if rbErr := tx.Rollback(context.WithoutCancel(ctx)); rbErr != nil && rbErr != pgx.ErrTxClosed {
			return fmt.Errorf("%w (rollback: %v)", err, rbErr)
		}
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}
