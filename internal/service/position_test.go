package service

import (
	"context"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/kanban-service/internal/domain"
	"github.com/spec-kit/kanban-service/internal/repository"
	apperrors "github.com/spec-kit/kanban-service/pkg/util/errorutil"
)

// sequence is a single-scope repository.Sequence keyed by id.
type sequence struct {
	positions map[string]int
	sets      []string
}

func newSequence(ids ...string) *sequence {
	s := &sequence{positions: map[string]int{}}
	for i, id := range ids {
		s.positions[id] = i
	}
	return s
}

func (s *sequence) Count(context.Context, string) (int, error) {
	return len(s.positions), nil
}

func (s *sequence) Shift(_ context.Context, _ string, span repository.Span, delta int) error {
	for id, position := range s.positions {
		if position >= span.From && position <= span.To {
			s.positions[id] = position + delta
		}
	}
	return nil
}

func (s *sequence) SetPosition(_ context.Context, id string, position int) error {
	s.positions[id] = position
	s.sets = append(s.sets, id)
	return nil
}

func (s *sequence) order() []string {
	ids := make([]string, 0, len(s.positions))
	for id := range s.positions {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return s.positions[ids[i]] < s.positions[ids[j]] })
	return ids
}

func TestPositionManagerMove(t *testing.T) {
	tests := []struct {
		name     string
		id       string
		from, to int
		want     []string
	}{
		{"forward", "a", 0, 2, []string{"b", "c", "a", "d"}},
		{"backward", "d", 3, 1, []string{"a", "d", "b", "c"}},
		{"to front", "c", 2, 0, []string{"c", "a", "b", "d"}},
		{"in place", "b", 1, 1, []string{"a", "b", "c", "d"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seq := newSequence("a", "b", "c", "d")
			require.NoError(t, PositionManager{}.Move(context.Background(), seq, "", tt.id, tt.from, tt.to))
			assert.Equal(t, tt.want, seq.order())
			for i, id := range seq.order() {
				assert.Equal(t, i, seq.positions[id])
			}
		})
	}
}

func TestPositionManagerGaps(t *testing.T) {
	ctx := context.Background()
	seq := newSequence("a", "b", "c")

	next, err := PositionManager{}.Next(ctx, seq, "")
	require.NoError(t, err)
	assert.Equal(t, 3, next)

	delete(seq.positions, "b")
	require.NoError(t, PositionManager{}.CloseGap(ctx, seq, "", 1))
	assert.Equal(t, map[string]int{"a": 0, "c": 1}, seq.positions)

	require.NoError(t, PositionManager{}.OpenSlot(ctx, seq, "", 0))
	assert.Equal(t, map[string]int{"a": 1, "c": 2}, seq.positions)
}

func TestPositionManagerClamp(t *testing.T) {
	pm := PositionManager{}

	got, err := pm.Clamp(1, 3)
	require.NoError(t, err)
	assert.Equal(t, 1, got)

	got, err = pm.Clamp(10, 3)
	require.NoError(t, err)
	assert.Equal(t, 3, got)

	got, err = pm.Clamp(4, -1)
	require.NoError(t, err)
	assert.Equal(t, 0, got, "an empty scope only has slot 0")

	_, err = pm.Clamp(-1, 3)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidation))
}

func TestPositionManagerReorder(t *testing.T) {
	ctx := context.Background()
	current := map[string]int{"a": 0, "b": 1, "c": 2}

	t.Run("swap", func(t *testing.T) {
		seq := newSequence("a", "b", "c")
		final, err := PositionManager{}.Reorder(ctx, seq, current, []domain.PositionAssignment{
			{ID: "a", Position: 2}, {ID: "c", Position: 0}, {ID: "b", Position: 1},
		})
		require.NoError(t, err)
		assert.Equal(t, map[string]int{"a": 2, "b": 1, "c": 0}, final)
		assert.Equal(t, []string{"c", "b", "a"}, seq.order())
		assert.ElementsMatch(t, []string{"a", "c"}, seq.sets, "unchanged entries are not written")
	})

	t.Run("unknown id", func(t *testing.T) {
		seq := newSequence("a", "b", "c")
		_, err := PositionManager{}.Reorder(ctx, seq, current, []domain.PositionAssignment{{ID: "z", Position: 0}})
		assert.True(t, apperrors.HasCode(err, apperrors.CodeConflict))
		assert.Empty(t, seq.sets)
	})

	t.Run("not dense", func(t *testing.T) {
		seq := newSequence("a", "b", "c")
		_, err := PositionManager{}.Reorder(ctx, seq, current, []domain.PositionAssignment{{ID: "a", Position: 1}})
		assert.True(t, apperrors.HasCode(err, apperrors.CodeValidation))
		assert.Empty(t, seq.sets)
	})

	t.Run("out of range", func(t *testing.T) {
		seq := newSequence("a", "b", "c")
		_, err := PositionManager{}.Reorder(ctx, seq, current, []domain.PositionAssignment{
			{ID: "a", Position: 3}, {ID: "b", Position: 0}, {ID: "c", Position: 1},
		})
		assert.True(t, apperrors.HasCode(err, apperrors.CodeValidation))
	})

	t.Run("duplicate id", func(t *testing.T) {
		seq := newSequence("a", "b", "c")
		_, err := PositionManager{}.Reorder(ctx, seq, current, []domain.PositionAssignment{
			{ID: "a", Position: 0}, {ID: "a", Position: 0},
		})
		assert.True(t, apperrors.HasCode(err, apperrors.CodeValidation))
	})

	t.Run("empty", func(t *testing.T) {
		_, err := PositionManager{}.Reorder(ctx, newSequence(), current, nil)
		assert.True(t, apperrors.HasCode(err, apperrors.CodeValidation))
	})
}
