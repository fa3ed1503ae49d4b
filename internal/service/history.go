package service

import (
	"context"

	"github.com/spec-kit/kanban-service/internal/domain"
	"github.com/spec-kit/kanban-service/internal/repository"
)

// HistoryRecorder writes one audit entry per ticket lifecycle event. Callers
// pass snapshots taken from live state inside the same transaction.
type HistoryRecorder struct{}

// RecordCreated stores the initial state of a ticket.
func (HistoryRecorder) RecordCreated(ctx context.Context, repo repository.TicketHistoryRepository, actorID string, ticket *domain.Ticket, category *domain.Category) (*domain.TicketHistory, error) {
	return record(ctx, repo, &domain.TicketHistory{
		TicketID:       ticket.ID,
		UserID:         actorID,
		ActionType:     domain.HistoryActionCreated,
		NewValues:      domain.Snapshot(ticket),
		ToCategoryName: stringPtr(category.Name),
	})
}

// RecordUpdated stores a change that kept the ticket in its category.
func (HistoryRecorder) RecordUpdated(ctx context.Context, repo repository.TicketHistoryRepository, actorID string, before map[string]any, ticket *domain.Ticket) (*domain.TicketHistory, error) {
	return record(ctx, repo, &domain.TicketHistory{
		TicketID:   ticket.ID,
		UserID:     actorID,
		ActionType: domain.HistoryActionUpdated,
		OldValues:  before,
		NewValues:  domain.Snapshot(ticket),
	})
}

// RecordMoved stores a change of category.
func (HistoryRecorder) RecordMoved(ctx context.Context, repo repository.TicketHistoryRepository, actorID string, before map[string]any, ticket *domain.Ticket, from, to *domain.Category) (*domain.TicketHistory, error) {
	return record(ctx, repo, &domain.TicketHistory{
		TicketID:         ticket.ID,
		UserID:           actorID,
		ActionType:       domain.HistoryActionMoved,
		OldValues:        before,
		NewValues:        domain.Snapshot(ticket),
		FromCategoryName: stringPtr(from.Name),
		ToCategoryName:   stringPtr(to.Name),
	})
}

// RecordDeleted stores the final state of a ticket. It must run before the
// ticket row is removed.
func (HistoryRecorder) RecordDeleted(ctx context.Context, repo repository.TicketHistoryRepository, actorID string, ticket *domain.Ticket, category *domain.Category) (*domain.TicketHistory, error) {
	return record(ctx, repo, &domain.TicketHistory{
		TicketID:         ticket.ID,
		UserID:           actorID,
		ActionType:       domain.HistoryActionDeleted,
		OldValues:        domain.Snapshot(ticket),
		FromCategoryName: stringPtr(category.Name),
	})
}

func record(ctx context.Context, repo repository.TicketHistoryRepository, entry *domain.TicketHistory) (*domain.TicketHistory, error) {
	if err := repo.Create(ctx, entry); err != nil {
		return nil, err
	}
	return entry, nil
}

func stringPtr(s string) *string {
	return &s
}
