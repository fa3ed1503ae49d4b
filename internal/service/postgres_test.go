package service

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/kanban-service/internal/config"
	"github.com/spec-kit/kanban-service/internal/domain"
	"github.com/spec-kit/kanban-service/internal/persistence"
	"github.com/spec-kit/kanban-service/internal/repository"
)

// TestPostgresConcurrentWriters runs concurrent drags, creates and deletes
// against a real database, where row locks and advisory locks interact.
func TestPostgresConcurrentWriters(t *testing.T) {
	dsn := os.Getenv("POSTGRES_DSN")
	if dsn == "" {
		t.Skip("POSTGRES_DSN not set")
	}
	ctx := context.Background()
	require.NoError(t, persistence.RunMigrations(dsn, zap.NewNop()))
	pg, err := persistence.NewPostgres(ctx, config.PostgresConfig{DSN: dsn, MaxConns: 16}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(pg.Close)

	store := repository.NewStore(pg.PoolHandle())
	users := store.Repositories().Users
	suffix := uuid.NewString()[:8]
	owner := &domain.User{Email: "pg-" + suffix + "@example.com", Username: "pg-" + suffix, PasswordHash: "-", IsActive: true}
	require.NoError(t, users.Create(ctx, owner))
	t.Cleanup(func() {
		_, _ = pg.PoolHandle().Exec(context.Background(), `DELETE FROM users WHERE id=$1`, owner.ID)
	})

	dispatcher := &recordingDispatcher{}
	categories := NewCategoryService(CategoryDependencies{Store: store, Dispatcher: dispatcher, AdvisoryLocks: true})
	tickets := NewTicketService(TicketDependencies{Store: store, Relocator: NewRelocator(true), Dispatcher: dispatcher})

	var columns []*domain.Category
	for _, name := range []string{"Todo", "Doing", "Done"} {
		column, err := categories.Create(ctx, owner.ID, CategoryCreateInput{Name: name})
		require.NoError(t, err)
		columns = append(columns, column)
	}
	var seeded []*domain.Ticket
	for i := 0; i < 8; i++ {
		ticket, err := tickets.Create(ctx, owner.ID, TicketCreateInput{Title: fmt.Sprintf("t%d", i), CategoryID: columns[0].ID})
		require.NoError(t, err)
		seeded = append(seeded, ticket)
	}

	var wg sync.WaitGroup
	for i := 0; i < 40; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := tickets.DragDrop(ctx, owner.ID, DragDropInput{
				TicketID:   seeded[i%len(seeded)].ID,
				CategoryID: columns[i%len(columns)].ID,
				Position:   (i * 7) % 6,
			})
			assert.NoError(t, err)
		}(i)
	}
	for i := 0; i < 6; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := tickets.Create(ctx, owner.ID, TicketCreateInput{Title: fmt.Sprintf("extra%d", i), CategoryID: columns[i%len(columns)].ID})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	require.NoError(t, tickets.Delete(ctx, owner.ID, seeded[0].ID))

	repos := store.Repositories()
	total := 0
	for _, column := range columns {
		list, err := repos.Tickets.ListByCategory(ctx, column.ID)
		require.NoError(t, err)
		for i, ticket := range list {
			assert.Equal(t, i, ticket.Position, "column %s ticket %s", column.Name, ticket.Title)
		}
		total += len(list)
	}
	assert.Equal(t, len(seeded)+6-1, total)
}
