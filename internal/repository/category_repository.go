package repository

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/kanban-service/internal/domain"
)

// CategoryRepository persists board columns. Every read except GetByID
// ignores soft-deleted rows, and the Sequence scope is the owner id.
type CategoryRepository interface {
	Sequence

	Create(ctx context.Context, category *domain.Category) error
	Update(ctx context.Context, category *domain.Category) error
	GetForOwner(ctx context.Context, id, ownerID string) (*domain.Category, error)
	GetByID(ctx context.Context, id string) (*domain.Category, error)
	ListByOwner(ctx context.Context, ownerID string) ([]domain.Category, error)
	// NameTaken reports whether ownerID already has a category called name,
	// soft-deleted ones included, other than excludeID.
	NameTaken(ctx context.Context, ownerID, name, excludeID string) (bool, error)
	SoftDelete(ctx context.Context, id string) error
}

type categoryRepository struct {
	q Querier
}

// NewCategoryRepository instantiates repository.
func NewCategoryRepository(q Querier) CategoryRepository {
	return &categoryRepository{q: q}
}

const categoryColumns = `id, name, color, position, user_id, is_deleted, created_at, updated_at`

func (r *categoryRepository) Create(ctx context.Context, category *domain.Category) error {
	const query = `
        INSERT INTO categories (name, color, position, user_id)
        VALUES ($1, $2, $3, $4)
        RETURNING id, is_deleted, created_at, updated_at`
	return r.q.QueryRow(ctx, query,
		category.Name,
		category.Color,
		category.Position,
		category.UserID,
	).Scan(&category.ID, &category.IsDeleted, &category.CreatedAt, &category.UpdatedAt)
}

func (r *categoryRepository) Update(ctx context.Context, category *domain.Category) error {
	const query = `
        UPDATE categories SET name=$1, color=$2, position=$3, updated_at=NOW()
        WHERE id=$4 AND NOT is_deleted
        RETURNING updated_at`
	return r.q.QueryRow(ctx, query,
		category.Name,
		category.Color,
		category.Position,
		category.ID,
	).Scan(&category.UpdatedAt)
}

func (r *categoryRepository) GetForOwner(ctx context.Context, id, ownerID string) (*domain.Category, error) {
	const query = `SELECT ` + categoryColumns + ` FROM categories WHERE id=$1 AND user_id=$2 AND NOT is_deleted`
	return scanCategory(r.q.QueryRow(ctx, query, id, ownerID))
}

func (r *categoryRepository) GetByID(ctx context.Context, id string) (*domain.Category, error) {
	const query = `SELECT ` + categoryColumns + ` FROM categories WHERE id=$1`
	return scanCategory(r.q.QueryRow(ctx, query, id))
}

func (r *categoryRepository) ListByOwner(ctx context.Context, ownerID string) ([]domain.Category, error) {
	const query = `
        SELECT ` + categoryColumns + ` FROM categories
        WHERE user_id=$1 AND NOT is_deleted
        ORDER BY position, created_at`
	rows, err := r.q.Query(ctx, query, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Category
	for rows.Next() {
		category, err := scanCategory(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *category)
	}
	return result, rows.Err()
}

func (r *categoryRepository) NameTaken(ctx context.Context, ownerID, name, excludeID string) (bool, error) {
	const query = `
        SELECT EXISTS (
            SELECT 1 FROM categories
            WHERE user_id=$1 AND name=$2 AND ($3 = '' OR id::text <> $3)
        )`
	var taken bool
	err := r.q.QueryRow(ctx, query, ownerID, name, excludeID).Scan(&taken)
	return taken, err
}

func (r *categoryRepository) SoftDelete(ctx context.Context, id string) error {
	cmd, err := r.q.Exec(ctx, `UPDATE categories SET is_deleted=TRUE, updated_at=NOW() WHERE id=$1 AND NOT is_deleted`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *categoryRepository) Count(ctx context.Context, ownerID string) (int, error) {
	var count int
	err := r.q.QueryRow(ctx, `SELECT COUNT(*) FROM categories WHERE user_id=$1 AND NOT is_deleted`, ownerID).Scan(&count)
	return count, err
}

func (r *categoryRepository) Shift(ctx context.Context, ownerID string, span Span, delta int) error {
	const query = `
        UPDATE categories SET position = position + $1, updated_at=NOW()
        WHERE user_id=$2 AND NOT is_deleted AND position BETWEEN $3 AND $4`
	_, err := r.q.Exec(ctx, query, delta, ownerID, span.From, span.To)
	return err
}

func (r *categoryRepository) SetPosition(ctx context.Context, id string, position int) error {
	cmd, err := r.q.Exec(ctx, `UPDATE categories SET position=$1, updated_at=NOW() WHERE id=$2 AND NOT is_deleted`, position, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func scanCategory(row pgx.Row) (*domain.Category, error) {
	var category domain.Category
	if err := row.Scan(
		&category.ID,
		&category.Name,
		&category.Color,
		&category.Position,
		&category.UserID,
		&category.IsDeleted,
		&category.CreatedAt,
		&category.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &category, nil
}
