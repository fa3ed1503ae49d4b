package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/kanban-service/internal/events"
	apperrors "github.com/spec-kit/kanban-service/pkg/util/errorutil"
)

// publisher fans events out to the dispatcher once a transaction committed.
type publisher struct {
	dispatcher events.Dispatcher
}

func (p publisher) publish(ctx context.Context, pending []events.Event) {
	if p.dispatcher == nil {
		return
	}
	for _, event := range pending {
		if event.ID == "" {
			event.ID = uuid.NewString()
		}
		if event.Timestamp.IsZero() {
			event.Timestamp = time.Now()
		}
		_ = p.dispatcher.Publish(ctx, event)
	}
}

func userActor(userID string) events.Actor {
	return events.Actor{UserID: userID}
}

func requireID(field, value string) error {
	if _, err := uuid.Parse(value); err != nil {
		return apperrors.NewValidationError("invalid "+field, map[string]any{field: value})
	}
	return nil
}

func requireIDs(field string, values []string) error {
	for _, value := range values {
		if err := requireID(field, value); err != nil {
			return err
		}
	}
	return nil
}

func requireText(field string, value string) (string, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return "", apperrors.NewValidationError(field+" is required", map[string]any{"field": field})
	}
	return trimmed, nil
}

// notFound converts a missing row into a NotFound for resource and passes
// other errors through.
func notFound(err error, resource, field, id string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return apperrors.NewNotFound(resource, map[string]any{field: id})
	}
	return err
}

// pageRequest validates pagination input. A zero page size falls back to
// fallback; limit caps it when positive.
func pageRequest(page, pageSize, fallback, limit int) (int, int, error) {
	if page < 1 {
		return 0, 0, apperrors.NewValidationError("page must be at least 1", map[string]any{"page": page})
	}
	if pageSize < 0 {
		return 0, 0, apperrors.NewValidationError("page_size must not be negative", map[string]any{"page_size": pageSize})
	}
	if pageSize == 0 {
		pageSize = fallback
	}
	if limit > 0 && pageSize > limit {
		return 0, 0, apperrors.NewValidationError("page_size too large",
			map[string]any{"page_size": pageSize, "max": limit})
	}
	return page, pageSize, nil
}
