package repository

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/kanban-service/internal/domain"
)

// TicketHistoryRepository stores append-only audit entries.
type TicketHistoryRepository interface {
	Create(ctx context.Context, history *domain.TicketHistory) error
	// ListByTicket returns a ticket's entries newest first plus the total
	// count. A limit of zero returns every entry.
	ListByTicket(ctx context.Context, ticketID string, limit, offset int) ([]domain.TicketHistory, int, error)
	// ListByOwner returns entries for every ticket in categories owned by ownerID.
	ListByOwner(ctx context.Context, ownerID string, limit, offset int) ([]domain.TicketHistory, int, error)
}

type ticketHistoryRepository struct {
	q Querier
}

// NewTicketHistoryRepository builds repository.
func NewTicketHistoryRepository(q Querier) TicketHistoryRepository {
	return &ticketHistoryRepository{q: q}
}

const historyColumns = `h.id, h.ticket_id, h.user_id, h.action_type, h.old_values, h.new_values,
        h.from_category_name, h.to_category_name, h.created_at, t.title`

func (r *ticketHistoryRepository) Create(ctx context.Context, history *domain.TicketHistory) error {
	const query = `
        INSERT INTO ticket_history (ticket_id, user_id, action_type, old_values, new_values, from_category_name, to_category_name)
        VALUES ($1,$2,$3,$4,$5,$6,$7)
        RETURNING id, created_at`
	return r.q.QueryRow(ctx, query,
		history.TicketID,
		history.UserID,
		history.ActionType,
		history.OldValues,
		history.NewValues,
		history.FromCategoryName,
		history.ToCategoryName,
	).Scan(&history.ID, &history.CreatedAt)
}

func (r *ticketHistoryRepository) ListByTicket(ctx context.Context, ticketID string, limit, offset int) ([]domain.TicketHistory, int, error) {
	var total int
	if err := r.q.QueryRow(ctx, `SELECT COUNT(*) FROM ticket_history WHERE ticket_id=$1`, ticketID).Scan(&total); err != nil {
		return nil, 0, err
	}
	const query = `
        SELECT ` + historyColumns + `
        FROM ticket_history h JOIN tickets t ON t.id = h.ticket_id
        WHERE h.ticket_id=$1
        ORDER BY h.created_at DESC, h.id
        LIMIT $2 OFFSET $3`
	rows, err := r.q.Query(ctx, query, ticketID, limitArg(limit), offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	entries, err := scanHistory(rows)
	return entries, total, err
}

func (r *ticketHistoryRepository) ListByOwner(ctx context.Context, ownerID string, limit, offset int) ([]domain.TicketHistory, int, error) {
	const from = `
        FROM ticket_history h
        JOIN tickets t ON t.id = h.ticket_id
        JOIN categories c ON c.id = t.category_id
        WHERE c.user_id=$1`
	var total int
	if err := r.q.QueryRow(ctx, `SELECT COUNT(*) `+from, ownerID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.q.Query(ctx, `SELECT `+historyColumns+from+` ORDER BY h.created_at DESC, h.id LIMIT $2 OFFSET $3`,
		ownerID, limitArg(limit), offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	entries, err := scanHistory(rows)
	return entries, total, err
}

// limitArg maps a non-positive limit to NULL, which Postgres treats as no limit.
func limitArg(limit int) any {
	if limit <= 0 {
		return nil
	}
	return limit
}

func scanHistory(rows pgx.Rows) ([]domain.TicketHistory, error) {
	var result []domain.TicketHistory
	for rows.Next() {
		var history domain.TicketHistory
		if err := rows.Scan(
			&history.ID,
			&history.TicketID,
			&history.UserID,
			&history.ActionType,
			&history.OldValues,
			&history.NewValues,
			&history.FromCategoryName,
			&history.ToCategoryName,
			&history.CreatedAt,
			&history.TicketTitle,
		); err != nil {
			return nil, err
		}
		result = append(result, history)
	}
	return result, rows.Err()
}
