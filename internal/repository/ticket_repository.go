package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/kanban-service/internal/domain"
)

// TicketFilter captures listing parameters.
type TicketFilter struct {
	// VisibleTo limits results to tickets in categories the user owns or
	// tickets the user is assigned to.
	VisibleTo  string
	CategoryID *string
	// Limit of zero returns every matching row.
	Limit  int
	Offset int
}

// TicketRepository encapsulates ticket persistence. The Sequence scope is the
// category id.
type TicketRepository interface {
	Sequence

	Create(ctx context.Context, ticket *domain.Ticket) error
	Update(ctx context.Context, ticket *domain.Ticket) error
	Delete(ctx context.Context, id string) error
	// GetForOwner loads a ticket whose category belongs to ownerID.
	GetForOwner(ctx context.Context, id, ownerID string) (*domain.Ticket, error)
	// LockForOwner is GetForOwner taking a row lock for the rest of the transaction.
	LockForOwner(ctx context.Context, id, ownerID string) (*domain.Ticket, error)
	// GetVisible loads a ticket the user owns through its category or is assigned to.
	GetVisible(ctx context.Context, id, userID string) (*domain.Ticket, error)
	ListByCategory(ctx context.Context, categoryID string) ([]domain.Ticket, error)
	List(ctx context.Context, filter TicketFilter) ([]domain.Ticket, int, error)
}

type ticketRepository struct {
	q Querier
}

// NewTicketRepository instantiates repository.
func NewTicketRepository(q Querier) TicketRepository {
	return &ticketRepository{q: q}
}

const ticketColumns = `t.id, t.title, t.description, t.expiry_date, t.position, t.category_id, t.user_id, t.created_at, t.updated_at`

func (r *ticketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        INSERT INTO tickets (title, description, expiry_date, position, category_id, user_id)
        VALUES ($1,$2,$3,$4,$5,$6)
        RETURNING id, created_at, updated_at`
	return r.q.QueryRow(ctx, query,
		ticket.Title,
		ticket.Description,
		ticket.ExpiryDate,
		ticket.Position,
		ticket.CategoryID,
		ticket.UserID,
	).Scan(&ticket.ID, &ticket.CreatedAt, &ticket.UpdatedAt)
}

func (r *ticketRepository) Update(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        UPDATE tickets SET title=$1, description=$2, expiry_date=$3, position=$4, category_id=$5, updated_at=NOW()
        WHERE id=$6
        RETURNING updated_at`
	return r.q.QueryRow(ctx, query,
		ticket.Title,
		ticket.Description,
		ticket.ExpiryDate,
		ticket.Position,
		ticket.CategoryID,
		ticket.ID,
	).Scan(&ticket.UpdatedAt)
}

func (r *ticketRepository) Delete(ctx context.Context, id string) error {
	cmd, err := r.q.Exec(ctx, `DELETE FROM tickets WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *ticketRepository) GetForOwner(ctx context.Context, id, ownerID string) (*domain.Ticket, error) {
	const query = `
        SELECT ` + ticketColumns + `
        FROM tickets t JOIN categories c ON c.id = t.category_id
        WHERE t.id=$1 AND c.user_id=$2 AND NOT c.is_deleted`
	return scanTicket(r.q.QueryRow(ctx, query, id, ownerID))
}

func (r *ticketRepository) LockForOwner(ctx context.Context, id, ownerID string) (*domain.Ticket, error) {
	const query = `
        SELECT ` + ticketColumns + `
        FROM tickets t JOIN categories c ON c.id = t.category_id
        WHERE t.id=$1 AND c.user_id=$2 AND NOT c.is_deleted
        FOR UPDATE OF t`
	return scanTicket(r.q.QueryRow(ctx, query, id, ownerID))
}

func (r *ticketRepository) GetVisible(ctx context.Context, id, userID string) (*domain.Ticket, error) {
	const query = `
        SELECT ` + ticketColumns + `
        FROM tickets t JOIN categories c ON c.id = t.category_id
        WHERE t.id=$1 AND NOT c.is_deleted
          AND (c.user_id=$2 OR EXISTS (SELECT 1 FROM ticket_users tu WHERE tu.ticket_id=t.id AND tu.user_id=$2))`
	return scanTicket(r.q.QueryRow(ctx, query, id, userID))
}

func (r *ticketRepository) ListByCategory(ctx context.Context, categoryID string) ([]domain.Ticket, error) {
	const query = `
        SELECT ` + ticketColumns + `
        FROM tickets t WHERE t.category_id=$1
        ORDER BY t.position, t.created_at`
	rows, err := r.q.Query(ctx, query, categoryID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTickets(rows)
}

func (r *ticketRepository) List(ctx context.Context, filter TicketFilter) ([]domain.Ticket, int, error) {
	clauses := []string{"NOT c.is_deleted"}
	args := []any{}

	if filter.VisibleTo != "" {
		args = append(args, filter.VisibleTo)
		placeholder := fmt.Sprintf("$%d", len(args))
		clauses = append(clauses, fmt.Sprintf(
			"(c.user_id=%s OR EXISTS (SELECT 1 FROM ticket_users tu WHERE tu.ticket_id=t.id AND tu.user_id=%s))",
			placeholder, placeholder))
	}
	if filter.CategoryID != nil {
		args = append(args, *filter.CategoryID)
		clauses = append(clauses, fmt.Sprintf("t.category_id=$%d", len(args)))
	}

	from := `FROM tickets t JOIN categories c ON c.id = t.category_id WHERE ` + strings.Join(clauses, " AND ")

	var total int
	if err := r.q.QueryRow(ctx, `SELECT COUNT(*) `+from, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + ticketColumns + ` ` + from + ` ORDER BY c.position, t.position, t.created_at`
	if filter.Limit > 0 {
		offset := filter.Offset
		if offset < 0 {
			offset = 0
		}
		query += fmt.Sprintf(" LIMIT %d OFFSET %d", filter.Limit, offset)
	}

	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	tickets, err := scanTickets(rows)
	if err != nil {
		return nil, 0, err
	}
	return tickets, total, nil
}

func (r *ticketRepository) Count(ctx context.Context, categoryID string) (int, error) {
	var count int
	err := r.q.QueryRow(ctx, `SELECT COUNT(*) FROM tickets WHERE category_id=$1`, categoryID).Scan(&count)
	return count, err
}

func (r *ticketRepository) Shift(ctx context.Context, categoryID string, span Span, delta int) error {
	const query = `
        UPDATE tickets SET position = position + $1, updated_at=NOW()
        WHERE category_id=$2 AND position BETWEEN $3 AND $4`
	_, err := r.q.Exec(ctx, query, delta, categoryID, span.From, span.To)
	return err
}

func (r *ticketRepository) SetPosition(ctx context.Context, id string, position int) error {
	cmd, err := r.q.Exec(ctx, `UPDATE tickets SET position=$1, updated_at=NOW() WHERE id=$2`, position, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func scanTicket(row pgx.Row) (*domain.Ticket, error) {
	var ticket domain.Ticket
	if err := row.Scan(
		&ticket.ID,
		&ticket.Title,
		&ticket.Description,
		&ticket.ExpiryDate,
		&ticket.Position,
		&ticket.CategoryID,
		&ticket.UserID,
		&ticket.CreatedAt,
		&ticket.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &ticket, nil
}

func scanTickets(rows pgx.Rows) ([]domain.Ticket, error) {
	var result []domain.Ticket
	for rows.Next() {
		ticket, err := scanTicket(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *ticket)
	}
	return result, rows.Err()
}
