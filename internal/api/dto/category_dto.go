package dto

import (
	"time"

	"github.com/spec-kit/kanban-service/internal/domain"
)

// CreateCategoryRequest payload. Color defaults when omitted.
type CreateCategoryRequest struct {
	Name  string  `json:"name"`
	Color *string `json:"color"`
}

// UpdateCategoryRequest is a partial category update.
type UpdateCategoryRequest struct {
	Name     domain.Optional[string] `json:"name"`
	Color    domain.Optional[string] `json:"color"`
	Position domain.Optional[int]    `json:"position"`
}

// CategoryPositionRequest is one entry of a bulk reorder.
type CategoryPositionRequest struct {
	ID       string `json:"id"`
	Position int    `json:"position"`
}

// CategoryResponse is a board column.
type CategoryResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Color     string    `json:"color"`
	Position  int       `json:"position"`
	UserID    string    `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CategoryWithTicketsResponse is a column with its cards in position order.
type CategoryWithTicketsResponse struct {
	CategoryResponse
	Tickets []TicketResponse `json:"tickets"`
}

// Patch converts the request into a domain patch.
func (r UpdateCategoryRequest) Patch() domain.CategoryPatch {
	return domain.CategoryPatch{Name: r.Name, Color: r.Color, Position: r.Position}
}

// Assignments converts a reorder payload.
func Assignments(items []CategoryPositionRequest) []domain.PositionAssignment {
	out := make([]domain.PositionAssignment, 0, len(items))
	for _, item := range items {
		out = append(out, domain.PositionAssignment{ID: item.ID, Position: item.Position})
	}
	return out
}
