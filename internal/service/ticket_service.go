package service

import (
	"context"
	"errors"
	"reflect"
	"time"

	"github.com/spec-kit/kanban-service/internal/domain"
	"github.com/spec-kit/kanban-service/internal/events"
	"github.com/spec-kit/kanban-service/internal/repository"
	apperrors "github.com/spec-kit/kanban-service/pkg/util/errorutil"
)

// Default and maximum page sizes of history listings.
const (
	DefaultHistoryPageSize = 50
	MaxHistoryPageSize     = 100
)

// txAttempts bounds how often a ticket transaction starts over after
// errTicketMoved.
const txAttempts = 3

// TicketService coordinates ticket workflows.
type TicketService struct {
	store              repository.Store
	positions          PositionManager
	history            HistoryRecorder
	relocator          *Relocator
	publisher          publisher
	historyPageSize    int
	historyMaxPageSize int
}

// TicketDependencies bundles collaborators for the ticket service.
type TicketDependencies struct {
	Store              repository.Store
	Relocator          *Relocator
	Dispatcher         events.Dispatcher
	HistoryPageSize    int
	HistoryMaxPageSize int
}

// TicketCreateInput describes ticket creation payload. A nil AssignedUserIDs
// assigns the creator.
type TicketCreateInput struct {
	Title           string
	Description     *string
	ExpiryDate      *time.Time
	CategoryID      string
	AssignedUserIDs []string
}

// TicketListFilter describes listing parameters. PageSize zero lists all.
type TicketListFilter struct {
	CategoryID *string
	Page       int
	PageSize   int
}

// DragDropInput is a drop of a ticket onto a category slot.
type DragDropInput struct {
	TicketID   string
	CategoryID string
	Position   int
}

// TicketWithCategory pairs a ticket with the category it lives in.
type TicketWithCategory struct {
	Ticket   domain.Ticket
	Category domain.Category
}

// TicketDetails is a ticket, its category and optionally its history.
type TicketDetails struct {
	TicketWithCategory
	History []domain.TicketHistory
}

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	relocator := deps.Relocator
	if relocator == nil {
		relocator = NewRelocator(false)
	}
	pageSize := deps.HistoryPageSize
	if pageSize <= 0 {
		pageSize = DefaultHistoryPageSize
	}
	maxPageSize := deps.HistoryMaxPageSize
	if maxPageSize <= 0 {
		maxPageSize = MaxHistoryPageSize
	}
	return &TicketService{
		store:              deps.Store,
		relocator:          relocator,
		publisher:          publisher{dispatcher: deps.Dispatcher},
		historyPageSize:    pageSize,
		historyMaxPageSize: maxPageSize,
	}
}

// Create appends a ticket to the end of a category owned by actorID.
func (s *TicketService) Create(ctx context.Context, actorID string, input TicketCreateInput) (*domain.Ticket, error) {
	title, err := requireText("title", input.Title)
	if err != nil {
		return nil, err
	}
	if err := requireID("category_id", input.CategoryID); err != nil {
		return nil, err
	}
	assignees := []string{actorID}
	if input.AssignedUserIDs != nil {
		if err := requireIDs("assigned_user_ids", input.AssignedUserIDs); err != nil {
			return nil, err
		}
		assignees = domain.UniqueSorted(input.AssignedUserIDs)
	}

	ticket := &domain.Ticket{
		Title:       title,
		Description: input.Description,
		ExpiryDate:  input.ExpiryDate,
		CategoryID:  input.CategoryID,
		UserID:      actorID,
	}
	err = s.withTx(ctx, func(repos repository.Repositories) error {
		category, err := repos.Categories.GetForOwner(ctx, input.CategoryID, actorID)
		if err != nil {
			return notFound(err, "category", "category_id", input.CategoryID)
		}
		if err := ensureActiveUsers(ctx, repos.Users, assignees); err != nil {
			return err
		}
		if err := s.relocator.LockCategories(ctx, repos, category.ID); err != nil {
			return err
		}
		position, err := s.positions.Next(ctx, repos.Tickets, category.ID)
		if err != nil {
			return err
		}
		ticket.Position = position
		if err := repos.Tickets.Create(ctx, ticket); err != nil {
			return err
		}
		if err := repos.Assignments.Add(ctx, ticket.ID, assignees); err != nil {
			return err
		}
		ticket.AssignedUserIDs = assignees
		_, err = s.history.RecordCreated(ctx, repos.History, actorID, ticket, category)
		return err
	})
	if err != nil {
		return nil, apperrors.MapError(err)
	}

	s.publisher.publish(ctx, []events.Event{{
		Type:       events.EventTicketCreated,
		TicketID:   ticket.ID,
		CategoryID: ticket.CategoryID,
		Actor:      userActor(actorID),
		Payload: events.TicketCreatedPayload{
			CategoryID:      ticket.CategoryID,
			Title:           ticket.Title,
			Position:        ticket.Position,
			AssignedUserIDs: ticket.AssignedUserIDs,
		},
	}})
	return ticket, nil
}

// List returns the tickets visible to userID in board order.
func (s *TicketService) List(ctx context.Context, userID string, filter TicketListFilter) (domain.Page[TicketWithCategory], error) {
	if filter.Page < 1 {
		return domain.Page[TicketWithCategory]{}, apperrors.NewValidationError("page must be at least 1",
			map[string]any{"page": filter.Page})
	}
	if filter.PageSize < 0 {
		return domain.Page[TicketWithCategory]{}, apperrors.NewValidationError("page_size must not be negative",
			map[string]any{"page_size": filter.PageSize})
	}
	if filter.CategoryID != nil {
		if err := requireID("category_id", *filter.CategoryID); err != nil {
			return domain.Page[TicketWithCategory]{}, err
		}
	}

	repos := s.store.Repositories()
	tickets, total, err := repos.Tickets.List(ctx, repository.TicketFilter{
		VisibleTo:  userID,
		CategoryID: filter.CategoryID,
		Limit:      filter.PageSize,
		Offset:     domain.Offset(filter.Page, filter.PageSize),
	})
	if err != nil {
		return domain.Page[TicketWithCategory]{}, apperrors.MapError(err)
	}
	items, err := s.withCategories(ctx, repos, tickets)
	if err != nil {
		return domain.Page[TicketWithCategory]{}, apperrors.MapError(err)
	}
	return domain.NewPage(items, total, filter.Page, filter.PageSize), nil
}

// Get loads a ticket the user owns or is assigned to.
func (s *TicketService) Get(ctx context.Context, userID, ticketID string, includeHistory bool) (*TicketDetails, error) {
	if err := requireID("ticket_id", ticketID); err != nil {
		return nil, err
	}
	repos := s.store.Repositories()
	ticket, err := repos.Tickets.GetVisible(ctx, ticketID, userID)
	if err != nil {
		return nil, apperrors.MapError(notFound(err, "ticket", "ticket_id", ticketID))
	}
	items, err := s.withCategories(ctx, repos, []domain.Ticket{*ticket})
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	details := &TicketDetails{TicketWithCategory: items[0], History: []domain.TicketHistory{}}
	if includeHistory {
		entries, _, err := repos.History.ListByTicket(ctx, ticket.ID, 0, 0)
		if err != nil {
			return nil, apperrors.MapError(err)
		}
		if entries != nil {
			details.History = entries
		}
	}
	return details, nil
}

// Update applies a partial update. A category change moves the ticket to the
// requested position of the new category, or to its end when no position is
// given; a bare position change moves it within its category.
func (s *TicketService) Update(ctx context.Context, actorID, ticketID string, patch domain.TicketPatch) (*domain.Ticket, error) {
	if err := requireID("ticket_id", ticketID); err != nil {
		return nil, err
	}
	if err := validateTicketPatch(&patch); err != nil {
		return nil, err
	}

	var (
		ticket     *domain.Ticket
		relocation *Relocation
		added      []string
		removed    []string
		recorded   bool
	)
	err := s.withTx(ctx, func(repos repository.Repositories) error {
		relocation, added, removed, recorded = nil, nil, nil, false
		var err error
		if patch.CategoryID.Valid || patch.Position.Valid {
			var targets []string
			if patch.CategoryID.Valid {
				targets = append(targets, patch.CategoryID.Value)
			}
			ticket, err = s.relocator.LockTicket(ctx, repos, actorID, ticketID, targets...)
		} else {
			ticket, err = repos.Tickets.LockForOwner(ctx, ticketID, actorID)
		}
		if err != nil {
			return notFound(err, "ticket", "ticket_id", ticketID)
		}
		source, err := repos.Categories.GetByID(ctx, ticket.CategoryID)
		if err != nil {
			return err
		}
		if ticket.AssignedUserIDs, err = repos.Assignments.ListUserIDs(ctx, ticket.ID); err != nil {
			return err
		}
		before := domain.Snapshot(ticket)
		fromPosition := ticket.Position

		patch.Apply(ticket)

		if patch.AssignedUserIDs.Set {
			desired := domain.UniqueSorted(patch.AssignedUserIDs.Value)
			added, removed = domain.DiffAssignees(ticket.AssignedUserIDs, desired)
			if err := ensureActiveUsers(ctx, repos.Users, added); err != nil {
				return err
			}
			if err := repos.Assignments.Remove(ctx, ticket.ID, removed); err != nil {
				return err
			}
			if err := repos.Assignments.Add(ctx, ticket.ID, added); err != nil {
				return err
			}
			ticket.AssignedUserIDs = desired
		}

		target := source
		if patch.CategoryID.Valid && patch.CategoryID.Value != source.ID {
			if target, err = repos.Categories.GetForOwner(ctx, patch.CategoryID.Value, actorID); err != nil {
				return notFound(err, "category", "category_id", patch.CategoryID.Value)
			}
		}
		if target.ID != source.ID || patch.Position.Valid {
			position := repository.OpenEnd
			if patch.Position.Valid {
				position = patch.Position.Value
			}
			changed, err := s.relocator.Relocate(ctx, repos, ticket, source, target, position)
			if err != nil {
				return err
			}
			relocation = &Relocation{Ticket: ticket, From: source, To: target, FromPosition: fromPosition, Changed: changed}
		}

		after := domain.Snapshot(ticket)
		if reflect.DeepEqual(before, after) {
			return nil
		}
		if err := repos.Tickets.Update(ctx, ticket); err != nil {
			return err
		}
		recorded = true
		if relocation != nil && relocation.CategoryChanged() {
			_, err = s.history.RecordMoved(ctx, repos.History, actorID, before, ticket, source, target)
		} else {
			_, err = s.history.RecordUpdated(ctx, repos.History, actorID, before, ticket)
		}
		return err
	})
	if err != nil {
		return nil, apperrors.MapError(err)
	}

	if recorded {
		s.publisher.publish(ctx, s.updateEvents(actorID, ticket, relocation, added, removed))
	}
	return ticket, nil
}

// Delete removes a ticket, recording its final state first and closing the
// gap it leaves in its category.
func (s *TicketService) Delete(ctx context.Context, actorID, ticketID string) error {
	if err := requireID("ticket_id", ticketID); err != nil {
		return err
	}

	var ticket *domain.Ticket
	err := s.withTx(ctx, func(repos repository.Repositories) error {
		var err error
		ticket, err = s.relocator.LockTicket(ctx, repos, actorID, ticketID)
		if err != nil {
			return notFound(err, "ticket", "ticket_id", ticketID)
		}
		category, err := repos.Categories.GetByID(ctx, ticket.CategoryID)
		if err != nil {
			return err
		}
		if ticket.AssignedUserIDs, err = repos.Assignments.ListUserIDs(ctx, ticket.ID); err != nil {
			return err
		}
		if _, err := s.history.RecordDeleted(ctx, repos.History, actorID, ticket, category); err != nil {
			return err
		}
		if err := repos.Tickets.Delete(ctx, ticket.ID); err != nil {
			return err
		}
		return s.positions.CloseGap(ctx, repos.Tickets, category.ID, ticket.Position)
	})
	if err != nil {
		return apperrors.MapError(err)
	}

	s.publisher.publish(ctx, []events.Event{{
		Type:       events.EventTicketDeleted,
		TicketID:   ticket.ID,
		CategoryID: ticket.CategoryID,
		Actor:      userActor(actorID),
		Payload:    events.TicketDeletedPayload{CategoryID: ticket.CategoryID, Title: ticket.Title},
	}})
	return nil
}

// DragDrop relocates a ticket to a category slot in one transaction.
func (s *TicketService) DragDrop(ctx context.Context, actorID string, input DragDropInput) (*Relocation, error) {
	if err := requireID("ticket_id", input.TicketID); err != nil {
		return nil, err
	}
	if err := requireID("category_id", input.CategoryID); err != nil {
		return nil, err
	}

	var relocation *Relocation
	err := s.withTx(ctx, func(repos repository.Repositories) error {
		var err error
		relocation, err = s.relocator.DragDrop(ctx, repos, actorID, input.TicketID, input.CategoryID, input.Position)
		return err
	})
	if err != nil {
		return nil, apperrors.MapError(err)
	}

	if relocation.Changed {
		s.publisher.publish(ctx, s.updateEvents(actorID, relocation.Ticket, relocation, nil, nil))
	}
	return relocation, nil
}

// withTx runs fn in a transaction and starts over while a ticket it locks
// keeps moving between categories underneath it.
func (s *TicketService) withTx(ctx context.Context, fn func(repository.Repositories) error) error {
	for attempt := 1; ; attempt++ {
		err := s.store.WithTx(ctx, fn)
		if !errors.Is(err, errTicketMoved) || attempt == txAttempts {
			return err
		}
	}
}

// History lists the entries of one visible ticket, newest first.
func (s *TicketService) History(ctx context.Context, userID, ticketID string, page, pageSize int) (domain.Page[domain.TicketHistory], error) {
	if err := requireID("ticket_id", ticketID); err != nil {
		return domain.Page[domain.TicketHistory]{}, err
	}
	page, pageSize, err := pageRequest(page, pageSize, s.historyPageSize, s.historyMaxPageSize)
	if err != nil {
		return domain.Page[domain.TicketHistory]{}, err
	}
	repos := s.store.Repositories()
	if _, err := repos.Tickets.GetVisible(ctx, ticketID, userID); err != nil {
		return domain.Page[domain.TicketHistory]{}, apperrors.MapError(notFound(err, "ticket", "ticket_id", ticketID))
	}
	entries, total, err := repos.History.ListByTicket(ctx, ticketID, pageSize, domain.Offset(page, pageSize))
	if err != nil {
		return domain.Page[domain.TicketHistory]{}, apperrors.MapError(err)
	}
	return domain.NewPage(entries, total, page, pageSize), nil
}

// Activity lists history across every ticket on the owner's board.
func (s *TicketService) Activity(ctx context.Context, ownerID string, page, pageSize int) (domain.Page[domain.TicketHistory], error) {
	page, pageSize, err := pageRequest(page, pageSize, s.historyPageSize, s.historyMaxPageSize)
	if err != nil {
		return domain.Page[domain.TicketHistory]{}, err
	}
	entries, total, err := s.store.Repositories().History.ListByOwner(ctx, ownerID, pageSize, domain.Offset(page, pageSize))
	if err != nil {
		return domain.Page[domain.TicketHistory]{}, apperrors.MapError(err)
	}
	return domain.NewPage(entries, total, page, pageSize), nil
}

func (s *TicketService) withCategories(ctx context.Context, repos repository.Repositories, tickets []domain.Ticket) ([]TicketWithCategory, error) {
	if err := attachAssignees(ctx, repos.Assignments, tickets); err != nil {
		return nil, err
	}
	categories := map[string]*domain.Category{}
	items := make([]TicketWithCategory, 0, len(tickets))
	for _, ticket := range tickets {
		category, ok := categories[ticket.CategoryID]
		if !ok {
			var err error
			if category, err = repos.Categories.GetByID(ctx, ticket.CategoryID); err != nil {
				return nil, err
			}
			categories[ticket.CategoryID] = category
		}
		items = append(items, TicketWithCategory{Ticket: ticket, Category: *category})
	}
	return items, nil
}

func (s *TicketService) updateEvents(actorID string, ticket *domain.Ticket, relocation *Relocation, added, removed []string) []events.Event {
	var pending []events.Event
	if relocation != nil && relocation.CategoryChanged() {
		pending = append(pending, events.Event{
			Type:       events.EventTicketMoved,
			TicketID:   ticket.ID,
			CategoryID: ticket.CategoryID,
			Actor:      userActor(actorID),
			Payload: events.TicketMovedPayload{
				FromCategoryID:   relocation.From.ID,
				ToCategoryID:     relocation.To.ID,
				FromCategoryName: relocation.From.Name,
				ToCategoryName:   relocation.To.Name,
				FromPosition:     relocation.FromPosition,
				ToPosition:       ticket.Position,
			},
		})
	} else {
		pending = append(pending, events.Event{
			Type:       events.EventTicketUpdated,
			TicketID:   ticket.ID,
			CategoryID: ticket.CategoryID,
			Actor:      userActor(actorID),
			Payload:    events.TicketUpdatedPayload{Title: ticket.Title, Position: ticket.Position},
		})
	}
	if len(added) > 0 || len(removed) > 0 {
		pending = append(pending, events.Event{
			Type:       events.EventTicketAssigned,
			TicketID:   ticket.ID,
			CategoryID: ticket.CategoryID,
			Actor:      userActor(actorID),
			Payload:    events.TicketAssignedPayload{Added: added, Removed: removed},
		})
	}
	return pending
}

func validateTicketPatch(patch *domain.TicketPatch) error {
	if patch.Title.Set {
		if !patch.Title.Valid {
			return apperrors.NewValidationError("title cannot be null", map[string]any{"field": "title"})
		}
		title, err := requireText("title", patch.Title.Value)
		if err != nil {
			return err
		}
		patch.Title.Value = title
	}
	if patch.Position.Set && !patch.Position.Valid {
		return apperrors.NewValidationError("position cannot be null", map[string]any{"field": "position"})
	}
	if patch.Position.Valid && patch.Position.Value < 0 {
		return apperrors.NewValidationError("position must not be negative",
			map[string]any{"position": patch.Position.Value})
	}
	if patch.CategoryID.Set {
		if !patch.CategoryID.Valid {
			return apperrors.NewValidationError("category_id cannot be null", map[string]any{"field": "category_id"})
		}
		if err := requireID("category_id", patch.CategoryID.Value); err != nil {
			return err
		}
	}
	if patch.AssignedUserIDs.Valid {
		if err := requireIDs("assigned_user_ids", patch.AssignedUserIDs.Value); err != nil {
			return err
		}
	}
	return nil
}

// ensureActiveUsers fails with a validation error naming every id that is not
// an active user.
func ensureActiveUsers(ctx context.Context, users repository.UserRepository, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	found, err := users.ExistingActiveIDs(ctx, ids)
	if err != nil {
		return err
	}
	known := make(map[string]struct{}, len(found))
	for _, id := range found {
		known[id] = struct{}{}
	}
	var missing []string
	for _, id := range ids {
		if _, ok := known[id]; !ok {
			missing = append(missing, id)
		}
	}
	if len(missing) > 0 {
		return apperrors.NewValidationError("unknown or inactive users", map[string]any{"user_ids": missing})
	}
	return nil
}
