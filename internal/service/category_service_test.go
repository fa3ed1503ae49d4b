package service

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/kanban-service/internal/domain"
	"github.com/spec-kit/kanban-service/internal/events"
	apperrors "github.com/spec-kit/kanban-service/pkg/util/errorutil"
)

func TestCreateCategory(t *testing.T) {
	f := newFixture(t)

	todo := f.category("Todo")
	color := "#10B981"
	done, err := f.categories.Create(f.ctx, f.owner, CategoryCreateInput{Name: "Done", Color: &color})
	require.NoError(t, err)

	assert.Equal(t, domain.DefaultCategoryColor, todo.Color)
	assert.Equal(t, 0, todo.Position)
	assert.Equal(t, 1, done.Position)
	assert.Equal(t, color, done.Color)
	assert.Equal(t, []string{"Todo", "Done"}, f.board())

	_, err = f.categories.Create(f.ctx, f.owner, CategoryCreateInput{Name: "Todo"})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeConflict))

	other, err := f.categories.Create(f.ctx, f.other, CategoryCreateInput{Name: "Todo"})
	require.NoError(t, err, "names are unique per owner")
	assert.Equal(t, 0, other.Position)

	bad := "blue"
	_, err = f.categories.Create(f.ctx, f.owner, CategoryCreateInput{Name: "Blocked", Color: &bad})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidation))

	_, err = f.categories.Create(f.ctx, f.owner, CategoryCreateInput{Name: " "})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidation))
}

func TestGetCategoryWithTickets(t *testing.T) {
	f := newFixture(t)
	todo := f.category("Todo")
	f.ticket(todo.ID, "t0")
	f.ticket(todo.ID, "t1")

	result, err := f.categories.Get(f.ctx, f.owner, todo.ID)
	require.NoError(t, err)
	require.Len(t, result.Tickets, 2)
	assert.Equal(t, "t0", result.Tickets[0].Title)
	assert.Equal(t, []string{f.owner}, result.Tickets[1].AssignedUserIDs)

	_, err = f.categories.Get(f.ctx, f.other, todo.ID)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeNotFound))
}

func TestUpdateCategory(t *testing.T) {
	f := newFixture(t)
	f.category("Todo")
	f.category("Doing")
	done := f.category("Done")
	f.dispatcher.reset()

	updated, err := f.categories.Update(f.ctx, f.owner, done.ID, domain.CategoryPatch{
		Name:     domain.Some("Shipped"),
		Position: domain.Some(0),
	})
	require.NoError(t, err)
	assert.Equal(t, "Shipped", updated.Name)
	assert.Equal(t, 0, updated.Position)
	assert.Equal(t, []string{"Shipped", "Todo", "Doing"}, f.board())
	assert.Equal(t, []events.EventType{events.EventCategoryUpdated}, f.dispatcher.types())

	_, err = f.categories.Update(f.ctx, f.owner, done.ID, domain.CategoryPatch{Position: domain.Some(99)})
	require.NoError(t, err)
	assert.Equal(t, []string{"Todo", "Doing", "Shipped"}, f.board())

	_, err = f.categories.Update(f.ctx, f.owner, done.ID, domain.CategoryPatch{Name: domain.Some("Todo")})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeConflict))

	for name, patch := range map[string]domain.CategoryPatch{
		"null name":         {Name: domain.Null[string]()},
		"null color":        {Color: domain.Null[string]()},
		"bad color":         {Color: domain.Some("#12345")},
		"negative position": {Position: domain.Some(-2)},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := f.categories.Update(f.ctx, f.owner, done.ID, patch)
			assert.True(t, apperrors.HasCode(err, apperrors.CodeValidation))
		})
	}
	assert.Equal(t, []string{"Todo", "Doing", "Shipped"}, f.board())
}

func TestDeleteCategory(t *testing.T) {
	f := newFixture(t)
	todo := f.category("Todo")
	doing := f.category("Doing")
	f.category("Done")
	ticket := f.ticket(doing.ID, "busy")

	err := f.categories.Delete(f.ctx, f.owner, doing.ID)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeConflict))
	assert.Equal(t, []string{"Todo", "Doing", "Done"}, f.board())

	_, err = f.tickets.DragDrop(f.ctx, f.owner, DragDropInput{TicketID: ticket.ID, CategoryID: todo.ID})
	require.NoError(t, err)
	require.NoError(t, f.categories.Delete(f.ctx, f.owner, doing.ID))
	assert.Equal(t, []string{"Todo", "Done"}, f.board())

	_, err = f.categories.Get(f.ctx, f.owner, doing.ID)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeNotFound))
	err = f.categories.Delete(f.ctx, f.owner, doing.ID)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeNotFound))

	stored, err := f.store.Repositories().Categories.GetByID(f.ctx, doing.ID)
	require.NoError(t, err)
	assert.True(t, stored.IsDeleted, "deleted categories are kept")

	next := f.category("Later")
	assert.Equal(t, 2, next.Position)
}

func TestReorderCategories(t *testing.T) {
	f := newFixture(t)
	todo := f.category("Todo")
	doing := f.category("Doing")
	done := f.category("Done")
	f.dispatcher.reset()

	board, err := f.categories.Reorder(f.ctx, f.owner, []domain.PositionAssignment{
		{ID: done.ID, Position: 0},
		{ID: todo.ID, Position: 2},
	})
	require.NoError(t, err)
	require.Len(t, board, 3)
	assert.Equal(t, "Done", board[0].Name)
	assert.Equal(t, []string{"Done", "Doing", "Todo"}, f.board())
	assert.Equal(t, []events.EventType{events.EventCategoriesReorder}, f.dispatcher.types())

	_, err = f.categories.Reorder(f.ctx, f.owner, []domain.PositionAssignment{{ID: uuid.NewString(), Position: 0}})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeConflict))

	_, err = f.categories.Reorder(f.ctx, f.owner, []domain.PositionAssignment{{ID: doing.ID, Position: 0}})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidation))

	_, err = f.categories.Reorder(f.ctx, f.owner, []domain.PositionAssignment{{ID: "first", Position: 0}})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidation))

	theirs, err := f.categories.Create(f.ctx, f.other, CategoryCreateInput{Name: "Theirs"})
	require.NoError(t, err)
	_, err = f.categories.Reorder(f.ctx, f.owner, []domain.PositionAssignment{{ID: theirs.ID, Position: 0}})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeConflict))

	assert.Equal(t, []string{"Done", "Doing", "Todo"}, f.board())
}

func TestListCategoriesIsNeverNil(t *testing.T) {
	f := newFixture(t)
	categories, err := f.categories.List(f.ctx, f.owner)
	require.NoError(t, err)
	assert.NotNil(t, categories)
	assert.Empty(t, categories)
}

func TestCategoryWritersTakeBoardKey(t *testing.T) {
	f := newFixture(t)
	categories := NewCategoryService(CategoryDependencies{Store: f.store, Dispatcher: f.dispatcher, AdvisoryLocks: true})
	board := "board:" + f.owner
	mark := 0
	taken := func() []string {
		all := f.store.Acquisitions()
		got := all[mark:]
		mark = len(all)
		return got
	}

	todo, err := categories.Create(f.ctx, f.owner, CategoryCreateInput{Name: "Todo"})
	require.NoError(t, err)
	done, err := categories.Create(f.ctx, f.owner, CategoryCreateInput{Name: "Done"})
	require.NoError(t, err)
	assert.Equal(t, []string{board, board}, taken())

	_, err = categories.Update(f.ctx, f.owner, done.ID, domain.CategoryPatch{Name: domain.Some("Shipped")})
	require.NoError(t, err)
	assert.Empty(t, taken(), "renames do not touch positions")

	_, err = categories.Update(f.ctx, f.owner, done.ID, domain.CategoryPatch{Position: domain.Some(0)})
	require.NoError(t, err)
	assert.Equal(t, []string{board}, taken())

	_, err = categories.Reorder(f.ctx, f.owner, []domain.PositionAssignment{{ID: todo.ID, Position: 0}, {ID: done.ID, Position: 1}})
	require.NoError(t, err)
	assert.Equal(t, []string{board}, taken())

	require.NoError(t, categories.Delete(f.ctx, f.owner, todo.ID))
	assert.Equal(t, []string{board, "category:" + todo.ID}, taken(), "delete also holds off ticket creates in the column")
	assert.Equal(t, []string{"Shipped"}, f.board())
}
