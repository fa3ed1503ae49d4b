package events

import (
	"time"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketCreated     EventType = "ticket_created"
	EventTicketUpdated     EventType = "ticket_updated"
	EventTicketMoved       EventType = "ticket_moved"
	EventTicketDeleted     EventType = "ticket_deleted"
	EventTicketAssigned    EventType = "ticket_assigned"
	EventCategoryCreated   EventType = "category_created"
	EventCategoryUpdated   EventType = "category_updated"
	EventCategoryDeleted   EventType = "category_deleted"
	EventCategoriesReorder EventType = "categories_reordered"
)

// Actor identifies the user that caused an event.
type Actor struct {
	UserID string `json:"user_id"`
}

// Event represents a domain event emitted by services after commit.
type Event struct {
	ID         string      `json:"id"`
	Type       EventType   `json:"type"`
	TicketID   string      `json:"ticket_id,omitempty"`
	CategoryID string      `json:"category_id,omitempty"`
	Actor      Actor       `json:"actor"`
	Timestamp  time.Time   `json:"timestamp"`
	Payload    interface{} `json:"payload"`
}

// TicketCreatedPayload payload.
type TicketCreatedPayload struct {
	CategoryID      string   `json:"category_id"`
	Title           string   `json:"title"`
	Position        int      `json:"position"`
	AssignedUserIDs []string `json:"assigned_user_ids"`
}

// TicketUpdatedPayload payload.
type TicketUpdatedPayload struct {
	Title    string `json:"title"`
	Position int    `json:"position"`
}

// TicketMovedPayload payload.
type TicketMovedPayload struct {
	FromCategoryID   string `json:"from_category_id"`
	ToCategoryID     string `json:"to_category_id"`
	FromCategoryName string `json:"from_category_name"`
	ToCategoryName   string `json:"to_category_name"`
	FromPosition     int    `json:"from_position"`
	ToPosition       int    `json:"to_position"`
}

// TicketDeletedPayload payload.
type TicketDeletedPayload struct {
	CategoryID string `json:"category_id"`
	Title      string `json:"title"`
}

// TicketAssignedPayload payload.
type TicketAssignedPayload struct {
	Added   []string `json:"added,omitempty"`
	Removed []string `json:"removed,omitempty"`
}

// CategoryPayload payload.
type CategoryPayload struct {
	Name     string `json:"name"`
	Color    string `json:"color"`
	Position int    `json:"position"`
}

// CategoriesReorderedPayload payload.
type CategoriesReorderedPayload struct {
	Positions map[string]int `json:"positions"`
}
