package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
)

// AssignmentRepository writes the ticket_users association directly.
type AssignmentRepository interface {
	ListUserIDs(ctx context.Context, ticketID string) ([]string, error)
	// ListForTickets returns assigned user ids keyed by ticket id.
	ListForTickets(ctx context.Context, ticketIDs []string) (map[string][]string, error)
	Add(ctx context.Context, ticketID string, userIDs []string) error
	Remove(ctx context.Context, ticketID string, userIDs []string) error
}

type assignmentRepository struct {
	q Querier
}

// NewAssignmentRepository builds repository.
func NewAssignmentRepository(q Querier) AssignmentRepository {
	return &assignmentRepository{q: q}
}

func (r *assignmentRepository) ListUserIDs(ctx context.Context, ticketID string) ([]string, error) {
	rows, err := r.q.Query(ctx, `SELECT user_id::text FROM ticket_users WHERE ticket_id=$1 ORDER BY user_id`, ticketID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[string])
}

func (r *assignmentRepository) ListForTickets(ctx context.Context, ticketIDs []string) (map[string][]string, error) {
	result := make(map[string][]string, len(ticketIDs))
	if len(ticketIDs) == 0 {
		return result, nil
	}
	rows, err := r.q.Query(ctx, `
        SELECT ticket_id::text, user_id::text FROM ticket_users
        WHERE ticket_id = ANY($1::uuid[])
        ORDER BY ticket_id, user_id`, ticketIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var ticketID, userID string
		if err := rows.Scan(&ticketID, &userID); err != nil {
			return nil, err
		}
		result[ticketID] = append(result[ticketID], userID)
	}
	return result, rows.Err()
}

func (r *assignmentRepository) Add(ctx context.Context, ticketID string, userIDs []string) error {
	if len(userIDs) == 0 {
		return nil
	}
	const query = `
        INSERT INTO ticket_users (ticket_id, user_id)
        SELECT $1, u FROM unnest($2::uuid[]) AS u
        ON CONFLICT (ticket_id, user_id) DO NOTHING`
	_, err := r.q.Exec(ctx, query, ticketID, userIDs)
	return err
}

func (r *assignmentRepository) Remove(ctx context.Context, ticketID string, userIDs []string) error {
	if len(userIDs) == 0 {
		return nil
	}
	_, err := r.q.Exec(ctx, `DELETE FROM ticket_users WHERE ticket_id=$1 AND user_id = ANY($2::uuid[])`, ticketID, userIDs)
	return err
}
