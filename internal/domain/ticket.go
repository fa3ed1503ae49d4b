package domain

import (
	"sort"
	"time"
)

// Ticket is a card living in exactly one category.
type Ticket struct {
	ID              string
	Title           string
	Description     *string
	ExpiryDate      *time.Time
	Position        int
	CategoryID      string
	UserID          string
	AssignedUserIDs []string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// TicketPatch is a partial ticket update. Apply only merges the content fields;
// Position and CategoryID go through the relocator and AssignedUserIDs through
// DiffAssignees.
type TicketPatch struct {
	Title           Optional[string]
	Description     Optional[string]
	ExpiryDate      Optional[time.Time]
	Position        Optional[int]
	CategoryID      Optional[string]
	AssignedUserIDs Optional[[]string]
}

// Apply merges title, description and expiry date into ticket.
func (p TicketPatch) Apply(ticket *Ticket) bool {
	changed := false
	if p.Title.Valid && p.Title.Value != ticket.Title {
		ticket.Title = p.Title.Value
		changed = true
	}
	if p.Description.Set {
		ticket.Description = p.Description.Ptr()
		changed = true
	}
	if p.ExpiryDate.Set {
		ticket.ExpiryDate = p.ExpiryDate.Ptr()
		changed = true
	}
	return changed
}

// Empty reports whether the patch carries no fields at all.
func (p TicketPatch) Empty() bool {
	return !p.Title.Set && !p.Description.Set && !p.ExpiryDate.Set &&
		!p.Position.Set && !p.CategoryID.Set && !p.AssignedUserIDs.Set
}

// DiffAssignees computes the association rows to insert and delete to turn
// current into desired. Both outputs are sorted and duplicate free.
func DiffAssignees(current, desired []string) (toAdd, toRemove []string) {
	have := make(map[string]struct{}, len(current))
	for _, id := range current {
		have[id] = struct{}{}
	}
	want := make(map[string]struct{}, len(desired))
	for _, id := range desired {
		want[id] = struct{}{}
	}
	for id := range want {
		if _, ok := have[id]; !ok {
			toAdd = append(toAdd, id)
		}
	}
	for id := range have {
		if _, ok := want[id]; !ok {
			toRemove = append(toRemove, id)
		}
	}
	sort.Strings(toAdd)
	sort.Strings(toRemove)
	return toAdd, toRemove
}

// UniqueSorted returns ids without duplicates in ascending order.
func UniqueSorted(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
