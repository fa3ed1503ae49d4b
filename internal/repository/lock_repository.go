package repository

import (
	"context"
	"sort"
)

// LockRepository takes Postgres advisory locks scoped to the current transaction.
type LockRepository interface {
	// LockKeys blocks until every key is locked. Keys are locked in sorted
	// order so concurrent callers cannot deadlock on each other.
	LockKeys(ctx context.Context, keys ...string) error
}

type lockRepository struct {
	q Querier
}

// NewLockRepository builds repository.
func NewLockRepository(q Querier) LockRepository {
	return &lockRepository{q: q}
}

func (r *lockRepository) LockKeys(ctx context.Context, keys ...string) error {
	sorted := append([]string(nil), keys...)
	sort.Strings(sorted)
	var last string
	for i, key := range sorted {
		if i > 0 && key == last {
			continue
		}
		last = key
		if _, err := r.q.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, key); err != nil {
			return err
		}
	}
	return nil
}
