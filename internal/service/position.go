package service

import (
	"context"
	"sort"

	"github.com/spec-kit/kanban-service/internal/domain"
	"github.com/spec-kit/kanban-service/internal/repository"
	apperrors "github.com/spec-kit/kanban-service/pkg/util/errorutil"
)

// PositionManager keeps the positions of a sibling scope dense and zero-based.
// Every method expects to run inside the transaction that performs the
// surrounding insert, delete or move.
type PositionManager struct{}

// Next returns the position an appended sibling takes.
func (PositionManager) Next(ctx context.Context, seq repository.Sequence, scopeID string) (int, error) {
	return seq.Count(ctx, scopeID)
}

// Move relocates id from one index to another inside the same scope, shifting
// the siblings in between by one.
func (PositionManager) Move(ctx context.Context, seq repository.Sequence, scopeID, id string, from, to int) error {
	switch {
	case from == to:
		return nil
	case from < to:
		if err := seq.Shift(ctx, scopeID, repository.Span{From: from + 1, To: to}, -1); err != nil {
			return err
		}
	default:
		if err := seq.Shift(ctx, scopeID, repository.Span{From: to, To: from - 1}, 1); err != nil {
			return err
		}
	}
	return seq.SetPosition(ctx, id, to)
}

// CloseGap pulls every sibling after a removed position one step forward.
func (PositionManager) CloseGap(ctx context.Context, seq repository.Sequence, scopeID string, removed int) error {
	return seq.Shift(ctx, scopeID, repository.Span{From: removed + 1, To: repository.OpenEnd}, -1)
}

// OpenSlot pushes every sibling at or after position one step back.
func (PositionManager) OpenSlot(ctx context.Context, seq repository.Sequence, scopeID string, position int) error {
	return seq.Shift(ctx, scopeID, repository.Span{From: position, To: repository.OpenEnd}, 1)
}

// Clamp validates a requested position against the last valid index of the
// scope. Positions past the end land on the end.
func (PositionManager) Clamp(position, last int) (int, error) {
	if position < 0 {
		return 0, apperrors.NewValidationError("position must not be negative",
			map[string]any{"position": position})
	}
	if last < 0 {
		last = 0
	}
	if position > last {
		return last, nil
	}
	return position, nil
}

// Reorder overwrites positions in bulk. current holds the position of every
// sibling in scope. The request must only name siblings from current and the
// resulting ordering must still cover [0, len(current)) exactly once.
func (PositionManager) Reorder(ctx context.Context, seq repository.Sequence, current map[string]int, assignments []domain.PositionAssignment) (map[string]int, error) {
	if len(assignments) == 0 {
		return nil, apperrors.NewValidationError("reorder payload is empty", nil)
	}

	final := make(map[string]int, len(current))
	for id, position := range current {
		final[id] = position
	}

	seen := make(map[string]struct{}, len(assignments))
	var unknown []string
	for _, a := range assignments {
		if _, dup := seen[a.ID]; dup {
			return nil, apperrors.NewValidationError("reorder payload lists an id twice",
				map[string]any{"id": a.ID})
		}
		seen[a.ID] = struct{}{}
		if _, ok := current[a.ID]; !ok {
			unknown = append(unknown, a.ID)
			continue
		}
		final[a.ID] = a.Position
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return nil, apperrors.NewConflict("reorder payload references unknown ids",
			map[string]any{"ids": unknown})
	}

	taken := make([]bool, len(final))
	for id, position := range final {
		if position < 0 || position >= len(final) || taken[position] {
			return nil, apperrors.NewValidationError("reorder result is not a dense ordering",
				map[string]any{"id": id, "position": position})
		}
		taken[position] = true
	}

	for _, a := range assignments {
		if current[a.ID] == a.Position {
			continue
		}
		if err := seq.SetPosition(ctx, a.ID, a.Position); err != nil {
			return nil, err
		}
	}
	return final, nil
}
