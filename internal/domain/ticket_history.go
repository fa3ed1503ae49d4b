package domain

import (
	"time"
)

// HistoryAction captures what happened to a ticket.
type HistoryAction string

const (
	HistoryActionCreated HistoryAction = "created"
	HistoryActionUpdated HistoryAction = "updated"
	HistoryActionMoved   HistoryAction = "moved"
	HistoryActionDeleted HistoryAction = "deleted"
)

// TicketHistory is an immutable audit trail entry.
type TicketHistory struct {
	ID               string
	TicketID         string
	UserID           string
	ActionType       HistoryAction
	OldValues        map[string]any
	NewValues        map[string]any
	FromCategoryName *string
	ToCategoryName   *string
	CreatedAt        time.Time

	// TicketTitle is joined in at read time and never stored.
	TicketTitle *string
}

// Snapshot keys.
const (
	SnapshotTitle           = "title"
	SnapshotDescription     = "description"
	SnapshotExpiryDate      = "expiry_date"
	SnapshotPosition        = "position"
	SnapshotCategoryID      = "category_id"
	SnapshotAssignedUserIDs = "assigned_user_ids"
)

// Snapshot renders the full recordable state of a ticket. Values are JSON
// friendly so a snapshot round-trips through JSONB unchanged.
func Snapshot(ticket *Ticket) map[string]any {
	var description any
	if ticket.Description != nil {
		description = *ticket.Description
	}
	var expiry any
	if ticket.ExpiryDate != nil {
		expiry = ticket.ExpiryDate.UTC().Format(time.RFC3339Nano)
	}
	assigned := UniqueSorted(ticket.AssignedUserIDs)
	return map[string]any{
		SnapshotTitle:           ticket.Title,
		SnapshotDescription:     description,
		SnapshotExpiryDate:      expiry,
		SnapshotPosition:        ticket.Position,
		SnapshotCategoryID:      ticket.CategoryID,
		SnapshotAssignedUserIDs: assigned,
	}
}
