package handlers

import (
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/kanban-service/internal/api/dto"
	"github.com/spec-kit/kanban-service/internal/auth"
	"github.com/spec-kit/kanban-service/internal/domain"
	"github.com/spec-kit/kanban-service/internal/service"
	apperrors "github.com/spec-kit/kanban-service/pkg/util/errorutil"
)

func currentUserID(c *fiber.Ctx) (string, error) {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok || principal.User == nil {
		return "", apperrors.NewUnauthorized("user required")
	}
	return principal.UserID(), nil
}

func parseBody(c *fiber.Ctx, out any) error {
	if err := c.BodyParser(out); err != nil {
		return apperrors.NewValidationError("invalid payload", map[string]any{"reason": err.Error()})
	}
	return nil
}

func parseInt(c *fiber.Ctx, key string, def int) (int, error) {
	val := strings.TrimSpace(c.Query(key))
	if val == "" {
		return def, nil
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, apperrors.NewValidationError(key+" must be an integer", map[string]any{"field": key})
	}
	return n, nil
}

func parseBool(c *fiber.Ctx, key string, def bool) (bool, error) {
	val := strings.TrimSpace(c.Query(key))
	if val == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return false, apperrors.NewValidationError(key+" must be a boolean", map[string]any{"field": key})
	}
	return b, nil
}

func userResponse(user *domain.User) dto.UserResponse {
	return dto.UserResponse{
		ID:             user.ID,
		Email:          user.Email,
		Username:       user.Username,
		FirstName:      user.FirstName,
		LastName:       user.LastName,
		ProfilePicture: user.ProfilePicture,
		IsActive:       user.IsActive,
		CreatedAt:      user.CreatedAt,
		UpdatedAt:      user.UpdatedAt,
	}
}

func categoryResponse(category *domain.Category) dto.CategoryResponse {
	return dto.CategoryResponse{
		ID:        category.ID,
		Name:      category.Name,
		Color:     category.Color,
		Position:  category.Position,
		UserID:    category.UserID,
		CreatedAt: category.CreatedAt,
		UpdatedAt: category.UpdatedAt,
	}
}

func categoryResponses(categories []domain.Category) []dto.CategoryResponse {
	items := make([]dto.CategoryResponse, 0, len(categories))
	for i := range categories {
		items = append(items, categoryResponse(&categories[i]))
	}
	return items
}

func ticketResponse(ticket *domain.Ticket) dto.TicketResponse {
	assigned := ticket.AssignedUserIDs
	if assigned == nil {
		assigned = []string{}
	}
	return dto.TicketResponse{
		ID:              ticket.ID,
		Title:           ticket.Title,
		Description:     ticket.Description,
		ExpiryDate:      ticket.ExpiryDate,
		Position:        ticket.Position,
		CategoryID:      ticket.CategoryID,
		UserID:          ticket.UserID,
		AssignedUserIDs: assigned,
		CreatedAt:       ticket.CreatedAt,
		UpdatedAt:       ticket.UpdatedAt,
	}
}

func ticketResponses(tickets []domain.Ticket) []dto.TicketResponse {
	items := make([]dto.TicketResponse, 0, len(tickets))
	for i := range tickets {
		items = append(items, ticketResponse(&tickets[i]))
	}
	return items
}

func ticketWithCategoryResponse(item *service.TicketWithCategory) dto.TicketWithCategoryResponse {
	return dto.TicketWithCategoryResponse{
		TicketResponse: ticketResponse(&item.Ticket),
		Category:       categoryResponse(&item.Category),
	}
}

func historyResponses(entries []domain.TicketHistory) []dto.HistoryResponse {
	items := make([]dto.HistoryResponse, 0, len(entries))
	for _, entry := range entries {
		items = append(items, dto.HistoryResponse{
			ID:               entry.ID,
			TicketID:         entry.TicketID,
			TicketTitle:      entry.TicketTitle,
			UserID:           entry.UserID,
			ActionType:       string(entry.ActionType),
			OldValues:        entry.OldValues,
			NewValues:        entry.NewValues,
			FromCategoryName: entry.FromCategoryName,
			ToCategoryName:   entry.ToCategoryName,
			CreatedAt:        entry.CreatedAt,
		})
	}
	return items
}

func pageResponse[T, R any](page domain.Page[T], items []R) dto.PageResponse[R] {
	return dto.PageResponse[R]{
		Items:      items,
		Total:      page.Total,
		Page:       page.Page,
		PageSize:   page.PageSize,
		TotalPages: page.TotalPages,
	}
}
