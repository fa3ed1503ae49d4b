package service

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/kanban-service/internal/domain"
	"github.com/spec-kit/kanban-service/internal/repository"
	apperrors "github.com/spec-kit/kanban-service/pkg/util/errorutil"
)

// errTicketMoved reports a ticket that changed category between the plain
// read and the row lock of LockTicket. Ticket writers start the transaction
// over when they see it.
var errTicketMoved = apperrors.NewConflict("ticket was moved concurrently, retry", nil)

// Relocator moves tickets between positions and categories while keeping
// both the source and destination orderings dense.
type Relocator struct {
	positions     PositionManager
	history       HistoryRecorder
	advisoryLocks bool
}

// NewRelocator builds a relocator. With advisoryLocks set, every transaction
// that shifts a category holds that category's transaction-scoped advisory
// lock, taken before any ticket row lock.
func NewRelocator(advisoryLocks bool) *Relocator {
	return &Relocator{advisoryLocks: advisoryLocks}
}

// Relocation describes the outcome of a relocation.
type Relocation struct {
	Ticket       *domain.Ticket
	From         *domain.Category
	To           *domain.Category
	FromPosition int
	// Changed is false when the ticket already sat at the requested spot.
	Changed bool
	History *domain.TicketHistory
}

// CategoryChanged reports whether the ticket left its category.
func (r *Relocation) CategoryChanged() bool {
	return r.From.ID != r.To.ID
}

// Relocate shifts siblings and rewrites the ticket's category and position.
// position is clamped to the end of the target scope. The caller must hold
// the ticket through LockTicket with the target category included.
func (r *Relocator) Relocate(ctx context.Context, repos repository.Repositories, ticket *domain.Ticket, source, target *domain.Category, position int) (bool, error) {
	if position < 0 {
		return false, apperrors.NewValidationError("position must not be negative",
			map[string]any{"position": position})
	}

	count, err := repos.Tickets.Count(ctx, target.ID)
	if err != nil {
		return false, err
	}

	if source.ID == target.ID {
		to, err := r.positions.Clamp(position, count-1)
		if err != nil {
			return false, err
		}
		if to == ticket.Position {
			return false, nil
		}
		if err := r.positions.Move(ctx, repos.Tickets, source.ID, ticket.ID, ticket.Position, to); err != nil {
			return false, err
		}
		ticket.Position = to
		return true, nil
	}

	to, err := r.positions.Clamp(position, count)
	if err != nil {
		return false, err
	}
	if err := r.positions.CloseGap(ctx, repos.Tickets, source.ID, ticket.Position); err != nil {
		return false, err
	}
	if err := r.positions.OpenSlot(ctx, repos.Tickets, target.ID, to); err != nil {
		return false, err
	}
	ticket.CategoryID = target.ID
	ticket.Position = to
	if err := repos.Tickets.Update(ctx, ticket); err != nil {
		return false, err
	}
	return true, nil
}

// DragDrop resolves the ticket and target category for ownerID, relocates the
// ticket and records the matching history entry. Nothing is recorded when the
// ticket is dropped where it already is.
func (r *Relocator) DragDrop(ctx context.Context, repos repository.Repositories, ownerID, ticketID, categoryID string, position int) (*Relocation, error) {
	ticket, err := r.LockTicket(ctx, repos, ownerID, ticketID, categoryID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
		}
		return nil, err
	}
	target, err := repos.Categories.GetForOwner(ctx, categoryID, ownerID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("category", map[string]any{"category_id": categoryID})
		}
		return nil, err
	}
	source := target
	if ticket.CategoryID != target.ID {
		if source, err = repos.Categories.GetByID(ctx, ticket.CategoryID); err != nil {
			return nil, err
		}
	}

	if ticket.AssignedUserIDs, err = repos.Assignments.ListUserIDs(ctx, ticket.ID); err != nil {
		return nil, err
	}
	before := domain.Snapshot(ticket)
	fromPosition := ticket.Position

	changed, err := r.Relocate(ctx, repos, ticket, source, target, position)
	if err != nil {
		return nil, err
	}
	result := &Relocation{Ticket: ticket, From: source, To: target, FromPosition: fromPosition, Changed: changed}
	if !changed {
		return result, nil
	}

	if result.CategoryChanged() {
		result.History, err = r.history.RecordMoved(ctx, repos.History, ownerID, before, ticket, source, target)
	} else {
		result.History, err = r.history.RecordUpdated(ctx, repos.History, ownerID, before, ticket)
	}
	if err != nil {
		return nil, err
	}
	return result, nil
}

// LockTicket row-locks one of ownerID's tickets for the rest of the
// transaction. With advisory locks enabled it first takes the keys of the
// ticket's category and of categoryIDs in one sorted batch, so a transaction
// never waits for a category key while holding a ticket row. A ticket that
// changed category between the plain read and the row lock yields
// errTicketMoved.
func (r *Relocator) LockTicket(ctx context.Context, repos repository.Repositories, ownerID, ticketID string, categoryIDs ...string) (*domain.Ticket, error) {
	if !r.advisoryLocks {
		return repos.Tickets.LockForOwner(ctx, ticketID, ownerID)
	}
	current, err := repos.Tickets.GetForOwner(ctx, ticketID, ownerID)
	if err != nil {
		return nil, err
	}
	if err := r.LockCategories(ctx, repos, append([]string{current.CategoryID}, categoryIDs...)...); err != nil {
		return nil, err
	}
	ticket, err := repos.Tickets.LockForOwner(ctx, ticketID, ownerID)
	if err != nil {
		return nil, err
	}
	if ticket.CategoryID != current.CategoryID {
		return nil, errTicketMoved
	}
	return ticket, nil
}

// LockCategories takes the advisory keys of categoryIDs when enabled.
func (r *Relocator) LockCategories(ctx context.Context, repos repository.Repositories, categoryIDs ...string) error {
	if !r.advisoryLocks {
		return nil
	}
	keys := make([]string, 0, len(categoryIDs))
	for _, id := range categoryIDs {
		keys = append(keys, "category:"+id)
	}
	return repos.Locks.LockKeys(ctx, keys...)
}
