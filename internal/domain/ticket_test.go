package domain

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOptionalDistinguishesAbsentNullAndValue(t *testing.T) {
	var patch struct {
		Title       Optional[string] `json:"title"`
		Description Optional[string] `json:"description"`
		Position    Optional[int]    `json:"position"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"description":null,"position":3}`), &patch))

	assert.False(t, patch.Title.Set)
	assert.True(t, patch.Description.Set)
	assert.False(t, patch.Description.Valid)
	assert.Nil(t, patch.Description.Ptr())
	assert.Equal(t, Some(3), patch.Position)
}

func TestOptionalRejectsWrongType(t *testing.T) {
	var value Optional[int]
	assert.Error(t, json.Unmarshal([]byte(`"three"`), &value))
}

func TestOptionalMarshal(t *testing.T) {
	out, err := json.Marshal(map[string]Optional[string]{"a": Some("x"), "b": Null[string]()})
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":"x","b":null}`, string(out))
}

func TestTicketPatchApply(t *testing.T) {
	description := "old"
	ticket := &Ticket{Title: "Write docs", Description: &description}

	changed := TicketPatch{Title: Some("Write docs")}.Apply(ticket)
	assert.False(t, changed, "same title is not a change")

	changed = TicketPatch{Title: Some("Ship docs"), Description: Null[string]()}.Apply(ticket)
	assert.True(t, changed)
	assert.Equal(t, "Ship docs", ticket.Title)
	assert.Nil(t, ticket.Description)

	due := time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)
	TicketPatch{ExpiryDate: Some(due)}.Apply(ticket)
	require.NotNil(t, ticket.ExpiryDate)
	assert.True(t, due.Equal(*ticket.ExpiryDate))
}

func TestTicketPatchEmpty(t *testing.T) {
	assert.True(t, TicketPatch{}.Empty())
	assert.False(t, TicketPatch{AssignedUserIDs: Null[[]string]()}.Empty())
}

func TestDiffAssignees(t *testing.T) {
	toAdd, toRemove := DiffAssignees([]string{"a", "b", "c"}, []string{"d", "b", "a", "d"})
	assert.Equal(t, []string{"d"}, toAdd)
	assert.Equal(t, []string{"c"}, toRemove)

	toAdd, toRemove = DiffAssignees(nil, nil)
	assert.Empty(t, toAdd)
	assert.Empty(t, toRemove)
}

func TestSnapshotIsStable(t *testing.T) {
	ticket := &Ticket{
		Title:           "Fix login",
		Position:        2,
		CategoryID:      "cat",
		AssignedUserIDs: []string{"u2", "u1", "u2"},
	}
	snapshot := Snapshot(ticket)

	assert.Equal(t, "Fix login", snapshot[SnapshotTitle])
	assert.Nil(t, snapshot[SnapshotDescription])
	assert.Nil(t, snapshot[SnapshotExpiryDate])
	assert.Equal(t, 2, snapshot[SnapshotPosition])
	assert.Equal(t, []string{"u1", "u2"}, snapshot[SnapshotAssignedUserIDs])
	assert.Equal(t, snapshot, Snapshot(ticket))

	encoded, err := json.Marshal(snapshot)
	require.NoError(t, err)
	assert.JSONEq(t, `{"title":"Fix login","description":null,"expiry_date":null,"position":2,
		"category_id":"cat","assigned_user_ids":["u1","u2"]}`, string(encoded))
}

func TestNewPage(t *testing.T) {
	page := NewPage([]int{1, 2}, 5, 1, 2)
	assert.Equal(t, 3, page.TotalPages)

	page = NewPage[int](nil, 0, 1, 10)
	assert.NotNil(t, page.Items)
	assert.Equal(t, 0, page.TotalPages)

	page = NewPage([]int{1, 2, 3}, 3, 1, 0)
	assert.Equal(t, 1, page.TotalPages)
}

func TestOffset(t *testing.T) {
	assert.Equal(t, 0, Offset(1, 20))
	assert.Equal(t, 40, Offset(3, 20))
	assert.Equal(t, 0, Offset(0, 20))
	assert.Equal(t, 0, Offset(4, 0))
}

func TestCategoryAndUserPatches(t *testing.T) {
	category := &Category{Name: "Todo", Color: DefaultCategoryColor}
	assert.False(t, CategoryPatch{Position: Some(1)}.Apply(category))
	assert.True(t, CategoryPatch{Color: Some("#FF0000")}.Apply(category))
	assert.Equal(t, "#FF0000", category.Color)

	first := "Ada"
	user := &User{FirstName: &first}
	assert.False(t, UserPatch{}.Apply(user))
	assert.True(t, UserPatch{FirstName: Null[string](), LastName: Some("Lovelace")}.Apply(user))
	assert.Nil(t, user.FirstName)
	require.NotNil(t, user.LastName)
	assert.Equal(t, "Lovelace", *user.LastName)
}
