package service

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/spec-kit/kanban-service/internal/domain"
	"github.com/spec-kit/kanban-service/internal/events"
	"github.com/spec-kit/kanban-service/internal/repository/memory"
)

type recordingDispatcher struct {
	mu        sync.Mutex
	published []events.Event
}

func (d *recordingDispatcher) Publish(_ context.Context, event events.Event) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.published = append(d.published, event)
	return nil
}

func (d *recordingDispatcher) Subscribe(events.EventType, events.EventHandler) {}

func (d *recordingDispatcher) types() []events.EventType {
	d.mu.Lock()
	defer d.mu.Unlock()
	types := make([]events.EventType, 0, len(d.published))
	for _, event := range d.published {
		types = append(types, event.Type)
	}
	return types
}

func (d *recordingDispatcher) reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.published = nil
}

type fixture struct {
	t          *testing.T
	ctx        context.Context
	store      *memory.Store
	dispatcher *recordingDispatcher
	categories *CategoryService
	tickets    *TicketService
	owner      string
	other      string
}

func newFixture(t *testing.T) *fixture {
	return newFixtureWithRelocator(t, NewRelocator(false))
}

func newFixtureWithRelocator(t *testing.T, relocator *Relocator) *fixture {
	t.Helper()
	store := memory.NewStore()
	dispatcher := &recordingDispatcher{}
	f := &fixture{
		t:          t,
		ctx:        context.Background(),
		store:      store,
		dispatcher: dispatcher,
		categories: NewCategoryService(CategoryDependencies{Store: store, Dispatcher: dispatcher}),
		tickets: NewTicketService(TicketDependencies{
			Store:      store,
			Relocator:  relocator,
			Dispatcher: dispatcher,
		}),
	}
	f.owner = f.user("alice")
	f.other = f.user("bob")
	return f
}

func (f *fixture) user(name string) string {
	f.t.Helper()
	user := &domain.User{Email: name + "@example.com", Username: name, PasswordHash: "-", IsActive: true}
	require.NoError(f.t, f.store.Repositories().Users.Create(f.ctx, user))
	return user.ID
}

func (f *fixture) category(name string) *domain.Category {
	f.t.Helper()
	category, err := f.categories.Create(f.ctx, f.owner, CategoryCreateInput{Name: name})
	require.NoError(f.t, err)
	return category
}

func (f *fixture) ticket(categoryID, title string) *domain.Ticket {
	f.t.Helper()
	ticket, err := f.tickets.Create(f.ctx, f.owner, TicketCreateInput{Title: title, CategoryID: categoryID})
	require.NoError(f.t, err)
	return ticket
}

// column returns the ticket titles of a category in position order and fails
// the test unless positions are exactly 0..n-1.
func (f *fixture) column(categoryID string) []string {
	f.t.Helper()
	tickets, err := f.store.Repositories().Tickets.ListByCategory(f.ctx, categoryID)
	require.NoError(f.t, err)
	titles := make([]string, 0, len(tickets))
	for i, ticket := range tickets {
		require.Equal(f.t, i, ticket.Position, "position gap or duplicate at %q", ticket.Title)
		titles = append(titles, ticket.Title)
	}
	return titles
}

// board returns the owner's category names in position order, checking density.
func (f *fixture) board() []string {
	f.t.Helper()
	categories, err := f.store.Repositories().Categories.ListByOwner(f.ctx, f.owner)
	require.NoError(f.t, err)
	names := make([]string, 0, len(categories))
	for i, category := range categories {
		require.Equal(f.t, i, category.Position, "position gap or duplicate at %q", category.Name)
		names = append(names, category.Name)
	}
	return names
}

func (f *fixture) history(ticketID string) []domain.TicketHistory {
	f.t.Helper()
	entries, _, err := f.store.Repositories().History.ListByTicket(f.ctx, ticketID, 0, 0)
	require.NoError(f.t, err)
	return entries
}
