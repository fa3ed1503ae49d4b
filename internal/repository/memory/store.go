// Package memory is an in-process implementation of repository.Store. A
// transaction works on a private copy of the data that replaces the committed
// copy only when the unit of work succeeds.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/spec-kit/kanban-service/internal/domain"
	"github.com/spec-kit/kanban-service/internal/repository"
)

type state struct {
	users       map[string]domain.User
	categories  map[string]domain.Category
	tickets     map[string]domain.Ticket
	history     []domain.TicketHistory
	assignments map[string]map[string]time.Time
}

func newState() *state {
	return &state{
		users:       map[string]domain.User{},
		categories:  map[string]domain.Category{},
		tickets:     map[string]domain.Ticket{},
		assignments: map[string]map[string]time.Time{},
	}
}

func (s *state) clone() *state {
	c := newState()
	for k, v := range s.users {
		c.users[k] = v
	}
	for k, v := range s.categories {
		c.categories[k] = v
	}
	for k, v := range s.tickets {
		v.AssignedUserIDs = append([]string(nil), v.AssignedUserIDs...)
		c.tickets[k] = v
	}
	c.history = append(c.history, s.history...)
	for k, v := range s.assignments {
		inner := make(map[string]time.Time, len(v))
		for u, at := range v {
			inner[u] = at
		}
		c.assignments[k] = inner
	}
	return c
}

// Store is a repository.Store held in memory.
type Store struct {
	mu        sync.Mutex
	committed *state
	failures  map[string]error
	clock     time.Time
	acquired  []string
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{
		committed: newState(),
		failures:  map[string]error{},
		clock:     time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC),
	}
}

// FailOn makes every call of op (for example "tickets.Update") return err
// until ClearFailures is called.
func (s *Store) FailOn(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[op] = err
}

// ClearFailures removes all injected failures.
func (s *Store) ClearFailures() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures = map[string]error{}
}

// Acquisitions lists advisory lock keys and ticket row locks ("ticket:<id>")
// in the order they were taken.
func (s *Store) Acquisitions() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.acquired...)
}

// Repositories returns repositories operating directly on committed data.
func (s *Store) Repositories() repository.Repositories {
	return s.bind(&view{store: s, shared: true})
}

// WithTx serializes transactions and applies fn's writes only when it succeeds.
func (s *Store) WithTx(ctx context.Context, fn func(repository.Repositories) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	v := &view{store: s, st: s.committed.clone()}
	if err := fn(s.bind(v)); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.committed = v.st
	return nil
}

func (s *Store) bind(v *view) repository.Repositories {
	return repository.Repositories{
		Users:       &userRepo{v},
		Categories:  &categoryRepo{v},
		Tickets:     &ticketRepo{v},
		History:     &historyRepo{v},
		Assignments: &assignmentRepo{v},
		Locks:       &lockRepo{v},
	}
}

// view is the data a set of repositories operates on. Shared views read the
// committed state under the store mutex; transactional views own a private
// copy and run while the mutex is already held.
type view struct {
	store  *Store
	shared bool
	st     *state
}

func (v *view) enter(op string) (*state, func(), error) {
	release := func() {}
	st := v.st
	if v.shared {
		v.store.mu.Lock()
		release = v.store.mu.Unlock
		st = v.store.committed
	}
	if err, ok := v.store.failures[op]; ok {
		release()
		return nil, nil, err
	}
	return st, release, nil
}

func (v *view) now() time.Time {
	v.store.clock = v.store.clock.Add(time.Second)
	return v.store.clock
}

func uniqueViolation(constraint string) error {
	return &pgconn.PgError{Code: "23505", ConstraintName: constraint, Message: "duplicate key value violates unique constraint"}
}

type userRepo struct{ v *view }

func (r *userRepo) Create(_ context.Context, user *domain.User) error {
	st, done, err := r.v.enter("users.Create")
	if err != nil {
		return err
	}
	defer done()
	for _, existing := range st.users {
		if existing.Email == user.Email {
			return uniqueViolation("users_email_key")
		}
		if existing.Username == user.Username {
			return uniqueViolation("users_username_key")
		}
	}
	user.ID = uuid.NewString()
	user.CreatedAt = r.v.now()
	user.UpdatedAt = user.CreatedAt
	st.users[user.ID] = *user
	return nil
}

func (r *userRepo) Update(_ context.Context, user *domain.User) error {
	st, done, err := r.v.enter("users.Update")
	if err != nil {
		return err
	}
	defer done()
	if _, ok := st.users[user.ID]; !ok {
		return pgx.ErrNoRows
	}
	user.UpdatedAt = r.v.now()
	st.users[user.ID] = *user
	return nil
}

func (r *userRepo) find(op string, match func(domain.User) bool) (*domain.User, error) {
	st, done, err := r.v.enter(op)
	if err != nil {
		return nil, err
	}
	defer done()
	for _, user := range st.users {
		if match(user) {
			u := user
			return &u, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r *userRepo) GetByID(_ context.Context, id string) (*domain.User, error) {
	return r.find("users.GetByID", func(u domain.User) bool { return u.ID == id })
}

func (r *userRepo) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	return r.find("users.GetByEmail", func(u domain.User) bool { return u.Email == email })
}

func (r *userRepo) GetByUsername(_ context.Context, username string) (*domain.User, error) {
	return r.find("users.GetByUsername", func(u domain.User) bool { return u.Username == username })
}

func (r *userRepo) ListActive(_ context.Context) ([]domain.User, error) {
	st, done, err := r.v.enter("users.ListActive")
	if err != nil {
		return nil, err
	}
	defer done()
	var result []domain.User
	for _, user := range st.users {
		if user.IsActive {
			result = append(result, user)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Username < result[j].Username })
	return result, nil
}

func (r *userRepo) ExistingActiveIDs(_ context.Context, ids []string) ([]string, error) {
	st, done, err := r.v.enter("users.ExistingActiveIDs")
	if err != nil {
		return nil, err
	}
	defer done()
	var result []string
	for _, id := range ids {
		if user, ok := st.users[id]; ok && user.IsActive {
			result = append(result, id)
		}
	}
	return result, nil
}

type categoryRepo struct{ v *view }

func (r *categoryRepo) Create(_ context.Context, category *domain.Category) error {
	st, done, err := r.v.enter("categories.Create")
	if err != nil {
		return err
	}
	defer done()
	for _, existing := range st.categories {
		if existing.UserID == category.UserID && existing.Name == category.Name {
			return uniqueViolation("unique_category_name_per_user")
		}
	}
	category.ID = uuid.NewString()
	category.IsDeleted = false
	category.CreatedAt = r.v.now()
	category.UpdatedAt = category.CreatedAt
	st.categories[category.ID] = *category
	return nil
}

func (r *categoryRepo) Update(_ context.Context, category *domain.Category) error {
	st, done, err := r.v.enter("categories.Update")
	if err != nil {
		return err
	}
	defer done()
	current, ok := st.categories[category.ID]
	if !ok || current.IsDeleted {
		return pgx.ErrNoRows
	}
	for _, existing := range st.categories {
		if existing.ID != category.ID && existing.UserID == current.UserID && existing.Name == category.Name {
			return uniqueViolation("unique_category_name_per_user")
		}
	}
	current.Name = category.Name
	current.Color = category.Color
	current.Position = category.Position
	current.UpdatedAt = r.v.now()
	category.UpdatedAt = current.UpdatedAt
	st.categories[category.ID] = current
	return nil
}

func (r *categoryRepo) GetForOwner(_ context.Context, id, ownerID string) (*domain.Category, error) {
	st, done, err := r.v.enter("categories.GetForOwner")
	if err != nil {
		return nil, err
	}
	defer done()
	category, ok := st.categories[id]
	if !ok || category.UserID != ownerID || category.IsDeleted {
		return nil, pgx.ErrNoRows
	}
	return &category, nil
}

func (r *categoryRepo) GetByID(_ context.Context, id string) (*domain.Category, error) {
	st, done, err := r.v.enter("categories.GetByID")
	if err != nil {
		return nil, err
	}
	defer done()
	category, ok := st.categories[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &category, nil
}

func (r *categoryRepo) ListByOwner(_ context.Context, ownerID string) ([]domain.Category, error) {
	st, done, err := r.v.enter("categories.ListByOwner")
	if err != nil {
		return nil, err
	}
	defer done()
	return ownedCategories(st, ownerID), nil
}

func ownedCategories(st *state, ownerID string) []domain.Category {
	var result []domain.Category
	for _, category := range st.categories {
		if category.UserID == ownerID && !category.IsDeleted {
			result = append(result, category)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Position != result[j].Position {
			return result[i].Position < result[j].Position
		}
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result
}

func (r *categoryRepo) NameTaken(_ context.Context, ownerID, name, excludeID string) (bool, error) {
	st, done, err := r.v.enter("categories.NameTaken")
	if err != nil {
		return false, err
	}
	defer done()
	for _, category := range st.categories {
		if category.UserID == ownerID && category.Name == name && category.ID != excludeID {
			return true, nil
		}
	}
	return false, nil
}

func (r *categoryRepo) SoftDelete(_ context.Context, id string) error {
	st, done, err := r.v.enter("categories.SoftDelete")
	if err != nil {
		return err
	}
	defer done()
	category, ok := st.categories[id]
	if !ok || category.IsDeleted {
		return pgx.ErrNoRows
	}
	category.IsDeleted = true
	category.UpdatedAt = r.v.now()
	st.categories[id] = category
	return nil
}

func (r *categoryRepo) Count(_ context.Context, ownerID string) (int, error) {
	st, done, err := r.v.enter("categories.Count")
	if err != nil {
		return 0, err
	}
	defer done()
	return len(ownedCategories(st, ownerID)), nil
}

func (r *categoryRepo) Shift(_ context.Context, ownerID string, span repository.Span, delta int) error {
	st, done, err := r.v.enter("categories.Shift")
	if err != nil {
		return err
	}
	defer done()
	for id, category := range st.categories {
		if category.UserID == ownerID && !category.IsDeleted && category.Position >= span.From && category.Position <= span.To {
			category.Position += delta
			st.categories[id] = category
		}
	}
	return nil
}

func (r *categoryRepo) SetPosition(_ context.Context, id string, position int) error {
	st, done, err := r.v.enter("categories.SetPosition")
	if err != nil {
		return err
	}
	defer done()
	category, ok := st.categories[id]
	if !ok || category.IsDeleted {
		return pgx.ErrNoRows
	}
	category.Position = position
	st.categories[id] = category
	return nil
}

type ticketRepo struct{ v *view }

func (r *ticketRepo) Create(_ context.Context, ticket *domain.Ticket) error {
	st, done, err := r.v.enter("tickets.Create")
	if err != nil {
		return err
	}
	defer done()
	if _, ok := st.categories[ticket.CategoryID]; !ok {
		return &pgconn.PgError{Code: "23503", Message: "category does not exist"}
	}
	ticket.ID = uuid.NewString()
	ticket.CreatedAt = r.v.now()
	ticket.UpdatedAt = ticket.CreatedAt
	stored := *ticket
	stored.AssignedUserIDs = nil
	st.tickets[ticket.ID] = stored
	return nil
}

func (r *ticketRepo) Update(_ context.Context, ticket *domain.Ticket) error {
	st, done, err := r.v.enter("tickets.Update")
	if err != nil {
		return err
	}
	defer done()
	current, ok := st.tickets[ticket.ID]
	if !ok {
		return pgx.ErrNoRows
	}
	current.Title = ticket.Title
	current.Description = ticket.Description
	current.ExpiryDate = ticket.ExpiryDate
	current.Position = ticket.Position
	current.CategoryID = ticket.CategoryID
	current.UpdatedAt = r.v.now()
	ticket.UpdatedAt = current.UpdatedAt
	st.tickets[ticket.ID] = current
	return nil
}

func (r *ticketRepo) Delete(_ context.Context, id string) error {
	st, done, err := r.v.enter("tickets.Delete")
	if err != nil {
		return err
	}
	defer done()
	if _, ok := st.tickets[id]; !ok {
		return pgx.ErrNoRows
	}
	delete(st.tickets, id)
	delete(st.assignments, id)
	kept := st.history[:0:0]
	for _, entry := range st.history {
		if entry.TicketID != id {
			kept = append(kept, entry)
		}
	}
	st.history = kept
	return nil
}

func (r *ticketRepo) ownedBy(st *state, ticket domain.Ticket, userID string) bool {
	category, ok := st.categories[ticket.CategoryID]
	return ok && !category.IsDeleted && category.UserID == userID
}

func (r *ticketRepo) visibleTo(st *state, ticket domain.Ticket, userID string) bool {
	category, ok := st.categories[ticket.CategoryID]
	if !ok || category.IsDeleted {
		return false
	}
	if category.UserID == userID {
		return true
	}
	_, assigned := st.assignments[ticket.ID][userID]
	return assigned
}

func (r *ticketRepo) getForOwner(op, id, ownerID string, lock bool) (*domain.Ticket, error) {
	st, done, err := r.v.enter(op)
	if err != nil {
		return nil, err
	}
	defer done()
	ticket, ok := st.tickets[id]
	if !ok || !r.ownedBy(st, ticket, ownerID) {
		return nil, pgx.ErrNoRows
	}
	if lock {
		r.v.store.acquired = append(r.v.store.acquired, "ticket:"+id)
	}
	return &ticket, nil
}

func (r *ticketRepo) GetForOwner(_ context.Context, id, ownerID string) (*domain.Ticket, error) {
	return r.getForOwner("tickets.GetForOwner", id, ownerID, false)
}

func (r *ticketRepo) LockForOwner(_ context.Context, id, ownerID string) (*domain.Ticket, error) {
	return r.getForOwner("tickets.LockForOwner", id, ownerID, true)
}

func (r *ticketRepo) GetVisible(_ context.Context, id, userID string) (*domain.Ticket, error) {
	st, done, err := r.v.enter("tickets.GetVisible")
	if err != nil {
		return nil, err
	}
	defer done()
	ticket, ok := st.tickets[id]
	if !ok || !r.visibleTo(st, ticket, userID) {
		return nil, pgx.ErrNoRows
	}
	return &ticket, nil
}

func (r *ticketRepo) ListByCategory(_ context.Context, categoryID string) ([]domain.Ticket, error) {
	st, done, err := r.v.enter("tickets.ListByCategory")
	if err != nil {
		return nil, err
	}
	defer done()
	var result []domain.Ticket
	for _, ticket := range st.tickets {
		if ticket.CategoryID == categoryID {
			result = append(result, ticket)
		}
	}
	sortTickets(st, result)
	return result, nil
}

func (r *ticketRepo) List(_ context.Context, filter repository.TicketFilter) ([]domain.Ticket, int, error) {
	st, done, err := r.v.enter("tickets.List")
	if err != nil {
		return nil, 0, err
	}
	defer done()
	var matched []domain.Ticket
	for _, ticket := range st.tickets {
		category, ok := st.categories[ticket.CategoryID]
		if !ok || category.IsDeleted {
			continue
		}
		if filter.VisibleTo != "" && !r.visibleTo(st, ticket, filter.VisibleTo) {
			continue
		}
		if filter.CategoryID != nil && ticket.CategoryID != *filter.CategoryID {
			continue
		}
		matched = append(matched, ticket)
	}
	sortTickets(st, matched)
	total := len(matched)
	if filter.Limit > 0 {
		start := filter.Offset
		if start > total {
			start = total
		}
		end := start + filter.Limit
		if end > total {
			end = total
		}
		matched = matched[start:end]
	}
	return matched, total, nil
}

func sortTickets(st *state, tickets []domain.Ticket) {
	sort.Slice(tickets, func(i, j int) bool {
		ci, cj := st.categories[tickets[i].CategoryID], st.categories[tickets[j].CategoryID]
		if ci.Position != cj.Position {
			return ci.Position < cj.Position
		}
		if tickets[i].Position != tickets[j].Position {
			return tickets[i].Position < tickets[j].Position
		}
		return tickets[i].CreatedAt.Before(tickets[j].CreatedAt)
	})
}

func (r *ticketRepo) Count(_ context.Context, categoryID string) (int, error) {
	st, done, err := r.v.enter("tickets.Count")
	if err != nil {
		return 0, err
	}
	defer done()
	count := 0
	for _, ticket := range st.tickets {
		if ticket.CategoryID == categoryID {
			count++
		}
	}
	return count, nil
}

func (r *ticketRepo) Shift(_ context.Context, categoryID string, span repository.Span, delta int) error {
	st, done, err := r.v.enter("tickets.Shift")
	if err != nil {
		return err
	}
	defer done()
	for id, ticket := range st.tickets {
		if ticket.CategoryID == categoryID && ticket.Position >= span.From && ticket.Position <= span.To {
			ticket.Position += delta
			st.tickets[id] = ticket
		}
	}
	return nil
}

func (r *ticketRepo) SetPosition(_ context.Context, id string, position int) error {
	st, done, err := r.v.enter("tickets.SetPosition")
	if err != nil {
		return err
	}
	defer done()
	ticket, ok := st.tickets[id]
	if !ok {
		return pgx.ErrNoRows
	}
	ticket.Position = position
	st.tickets[id] = ticket
	return nil
}

type historyRepo struct{ v *view }

func (r *historyRepo) Create(_ context.Context, history *domain.TicketHistory) error {
	st, done, err := r.v.enter("history.Create")
	if err != nil {
		return err
	}
	defer done()
	if _, ok := st.tickets[history.TicketID]; !ok {
		return &pgconn.PgError{Code: "23503", Message: "ticket does not exist"}
	}
	history.ID = uuid.NewString()
	history.CreatedAt = r.v.now()
	stored := *history
	stored.TicketTitle = nil
	st.history = append(st.history, stored)
	return nil
}

func (r *historyRepo) page(st *state, match func(domain.TicketHistory) bool, limit, offset int) ([]domain.TicketHistory, int) {
	var matched []domain.TicketHistory
	for _, entry := range st.history {
		if !match(entry) {
			continue
		}
		if ticket, ok := st.tickets[entry.TicketID]; ok {
			title := ticket.Title
			entry.TicketTitle = &title
		}
		matched = append(matched, entry)
	}
	sort.SliceStable(matched, func(i, j int) bool { return matched[i].CreatedAt.After(matched[j].CreatedAt) })
	total := len(matched)
	if offset > total {
		offset = total
	}
	end := offset + limit
	if limit <= 0 || end > total {
		end = total
	}
	return matched[offset:end], total
}

func (r *historyRepo) ListByTicket(_ context.Context, ticketID string, limit, offset int) ([]domain.TicketHistory, int, error) {
	st, done, err := r.v.enter("history.ListByTicket")
	if err != nil {
		return nil, 0, err
	}
	defer done()
	items, total := r.page(st, func(h domain.TicketHistory) bool { return h.TicketID == ticketID }, limit, offset)
	return items, total, nil
}

func (r *historyRepo) ListByOwner(_ context.Context, ownerID string, limit, offset int) ([]domain.TicketHistory, int, error) {
	st, done, err := r.v.enter("history.ListByOwner")
	if err != nil {
		return nil, 0, err
	}
	defer done()
	items, total := r.page(st, func(h domain.TicketHistory) bool {
		ticket, ok := st.tickets[h.TicketID]
		if !ok {
			return false
		}
		category, ok := st.categories[ticket.CategoryID]
		return ok && category.UserID == ownerID
	}, limit, offset)
	return items, total, nil
}

type assignmentRepo struct{ v *view }

func (r *assignmentRepo) ListUserIDs(_ context.Context, ticketID string) ([]string, error) {
	st, done, err := r.v.enter("assignments.ListUserIDs")
	if err != nil {
		return nil, err
	}
	defer done()
	return sortedKeys(st.assignments[ticketID]), nil
}

func (r *assignmentRepo) ListForTickets(_ context.Context, ticketIDs []string) (map[string][]string, error) {
	st, done, err := r.v.enter("assignments.ListForTickets")
	if err != nil {
		return nil, err
	}
	defer done()
	result := make(map[string][]string, len(ticketIDs))
	for _, id := range ticketIDs {
		if users := st.assignments[id]; len(users) > 0 {
			result[id] = sortedKeys(users)
		}
	}
	return result, nil
}

func (r *assignmentRepo) Add(_ context.Context, ticketID string, userIDs []string) error {
	st, done, err := r.v.enter("assignments.Add")
	if err != nil {
		return err
	}
	defer done()
	if _, ok := st.tickets[ticketID]; !ok {
		return &pgconn.PgError{Code: "23503", Message: "ticket does not exist"}
	}
	if st.assignments[ticketID] == nil {
		st.assignments[ticketID] = map[string]time.Time{}
	}
	for _, userID := range userIDs {
		if _, ok := st.users[userID]; !ok {
			return &pgconn.PgError{Code: "23503", Message: fmt.Sprintf("user %s does not exist", userID)}
		}
		if _, ok := st.assignments[ticketID][userID]; !ok {
			st.assignments[ticketID][userID] = r.v.now()
		}
	}
	return nil
}

func (r *assignmentRepo) Remove(_ context.Context, ticketID string, userIDs []string) error {
	st, done, err := r.v.enter("assignments.Remove")
	if err != nil {
		return err
	}
	defer done()
	for _, userID := range userIDs {
		delete(st.assignments[ticketID], userID)
	}
	return nil
}

func sortedKeys(m map[string]time.Time) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

type lockRepo struct{ v *view }

func (r *lockRepo) LockKeys(_ context.Context, keys ...string) error {
	_, done, err := r.v.enter("locks.LockKeys")
	if err != nil {
		return err
	}
	defer done()
	sorted := append([]string(nil), keys...)
	sort.Strings(sorted)
	for i, key := range sorted {
		if i > 0 && key == sorted[i-1] {
			continue
		}
		r.v.store.acquired = append(r.v.store.acquired, key)
	}
	return nil
}

var _ repository.Store = (*Store)(nil)
