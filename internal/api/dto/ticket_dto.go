package dto

import (
	"time"

	"github.com/spec-kit/kanban-service/internal/domain"
)

// CreateTicketRequest payload. Omitting assigned_user_ids assigns the creator;
// an empty list leaves the ticket unassigned.
type CreateTicketRequest struct {
	Title           string     `json:"title"`
	Description     *string    `json:"description"`
	ExpiryDate      *time.Time `json:"expiry_date"`
	CategoryID      string     `json:"category_id"`
	AssignedUserIDs []string   `json:"assigned_user_ids"`
}

// UpdateTicketRequest is a partial ticket update.
type UpdateTicketRequest struct {
	Title           domain.Optional[string]    `json:"title"`
	Description     domain.Optional[string]    `json:"description"`
	ExpiryDate      domain.Optional[time.Time] `json:"expiry_date"`
	Position        domain.Optional[int]       `json:"position"`
	CategoryID      domain.Optional[string]    `json:"category_id"`
	AssignedUserIDs domain.Optional[[]string]  `json:"assigned_user_ids"`
}

// DragDropRequest drops a ticket onto a slot of a category.
type DragDropRequest struct {
	TicketID         string `json:"ticket_id"`
	TargetCategoryID string `json:"target_category_id"`
	TargetPosition   *int   `json:"target_position"`
}

// TicketResponse is a card.
type TicketResponse struct {
	ID              string     `json:"id"`
	Title           string     `json:"title"`
	Description     *string    `json:"description"`
	ExpiryDate      *time.Time `json:"expiry_date"`
	Position        int        `json:"position"`
	CategoryID      string     `json:"category_id"`
	UserID          string     `json:"user_id"`
	AssignedUserIDs []string   `json:"assigned_user_ids"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// TicketWithCategoryResponse is a card with its column.
type TicketWithCategoryResponse struct {
	TicketResponse
	Category CategoryResponse `json:"category"`
}

// TicketDetailResponse adds the audit trail when it was requested.
type TicketDetailResponse struct {
	TicketWithCategoryResponse
	History []HistoryResponse `json:"history,omitempty"`
}

// DragDropResponse reports the ticket after a drop.
type DragDropResponse struct {
	TicketResponse
	Moved bool `json:"moved"`
}

// HistoryResponse is one audit entry.
type HistoryResponse struct {
	ID               string         `json:"id"`
	TicketID         string         `json:"ticket_id"`
	TicketTitle      *string        `json:"ticket_title"`
	UserID           string         `json:"user_id"`
	ActionType       string         `json:"action_type"`
	OldValues        map[string]any `json:"old_values"`
	NewValues        map[string]any `json:"new_values"`
	FromCategoryName *string        `json:"from_category_name"`
	ToCategoryName   *string        `json:"to_category_name"`
	CreatedAt        time.Time      `json:"created_at"`
}

// PageResponse wraps one page of a listing.
type PageResponse[T any] struct {
	Items      []T `json:"items"`
	Total      int `json:"total"`
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalPages int `json:"total_pages"`
}

// Patch converts the request into a domain patch.
func (r UpdateTicketRequest) Patch() domain.TicketPatch {
	return domain.TicketPatch{
		Title:           r.Title,
		Description:     r.Description,
		ExpiryDate:      r.ExpiryDate,
		Position:        r.Position,
		CategoryID:      r.CategoryID,
		AssignedUserIDs: r.AssignedUserIDs,
	}
}
