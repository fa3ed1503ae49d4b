package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/kanban-service/internal/api/dto"
	"github.com/spec-kit/kanban-service/internal/service"
	apperrors "github.com/spec-kit/kanban-service/pkg/util/errorutil"
)

// TicketsHandler manages ticket endpoints.
type TicketsHandler struct {
	service *service.TicketService
}

// NewTicketsHandler constructs handler.
func NewTicketsHandler(ticketService *service.TicketService) *TicketsHandler {
	return &TicketsHandler{service: ticketService}
}

// CreateTicket POST /tickets.
func (h *TicketsHandler) CreateTicket(c *fiber.Ctx) error {
	userID, err := currentUserID(c)
	if err != nil {
		return err
	}
	var req dto.CreateTicketRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	input := service.TicketCreateInput{
		Title:           req.Title,
		Description:     req.Description,
		ExpiryDate:      req.ExpiryDate,
		CategoryID:      req.CategoryID,
		AssignedUserIDs: req.AssignedUserIDs,
	}
	ticket, err := h.service.Create(c.UserContext(), userID, input)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": ticketResponse(ticket)})
}

// ListTickets GET /tickets.
func (h *TicketsHandler) ListTickets(c *fiber.Ctx) error {
	userID, err := currentUserID(c)
	if err != nil {
		return err
	}
	filter, err := parseTicketQuery(c)
	if err != nil {
		return err
	}
	page, err := h.service.List(c.UserContext(), userID, filter)
	if err != nil {
		return err
	}
	items := make([]dto.TicketWithCategoryResponse, 0, len(page.Items))
	for i := range page.Items {
		items = append(items, ticketWithCategoryResponse(&page.Items[i]))
	}
	return c.JSON(fiber.Map{"data": pageResponse(page, items)})
}

// GetTicket GET /tickets/:id.
func (h *TicketsHandler) GetTicket(c *fiber.Ctx) error {
	userID, err := currentUserID(c)
	if err != nil {
		return err
	}
	includeHistory, err := parseBool(c, "include_history", true)
	if err != nil {
		return err
	}
	details, err := h.service.Get(c.UserContext(), userID, c.Params("id"), includeHistory)
	if err != nil {
		return err
	}
	resp := dto.TicketDetailResponse{TicketWithCategoryResponse: ticketWithCategoryResponse(&details.TicketWithCategory)}
	if includeHistory {
		resp.History = historyResponses(details.History)
	}
	return c.JSON(fiber.Map{"data": resp})
}

// UpdateTicket PUT /tickets/:id.
func (h *TicketsHandler) UpdateTicket(c *fiber.Ctx) error {
	userID, err := currentUserID(c)
	if err != nil {
		return err
	}
	var req dto.UpdateTicketRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	ticket, err := h.service.Update(c.UserContext(), userID, c.Params("id"), req.Patch())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketResponse(ticket)})
}

// DeleteTicket DELETE /tickets/:id.
func (h *TicketsHandler) DeleteTicket(c *fiber.Ctx) error {
	userID, err := currentUserID(c)
	if err != nil {
		return err
	}
	if err := h.service.Delete(c.UserContext(), userID, c.Params("id")); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}

// DragDrop PUT /tickets/drag-drop.
func (h *TicketsHandler) DragDrop(c *fiber.Ctx) error {
	userID, err := currentUserID(c)
	if err != nil {
		return err
	}
	var req dto.DragDropRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	if req.TargetPosition == nil {
		return apperrors.NewValidationError("target_position required", map[string]any{"field": "target_position"})
	}
	relocation, err := h.service.DragDrop(c.UserContext(), userID, service.DragDropInput{
		TicketID:   req.TicketID,
		CategoryID: req.TargetCategoryID,
		Position:   *req.TargetPosition,
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.DragDropResponse{
		TicketResponse: ticketResponse(relocation.Ticket),
		Moved:          relocation.Changed,
	}})
}

// TicketHistory GET /tickets/:id/history.
func (h *TicketsHandler) TicketHistory(c *fiber.Ctx) error {
	userID, err := currentUserID(c)
	if err != nil {
		return err
	}
	page, pageSize, err := parsePage(c)
	if err != nil {
		return err
	}
	history, err := h.service.History(c.UserContext(), userID, c.Params("id"), page, pageSize)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": pageResponse(history, historyResponses(history.Items))})
}

// Activity GET /tickets/history/all.
func (h *TicketsHandler) Activity(c *fiber.Ctx) error {
	userID, err := currentUserID(c)
	if err != nil {
		return err
	}
	page, pageSize, err := parsePage(c)
	if err != nil {
		return err
	}
	history, err := h.service.Activity(c.UserContext(), userID, page, pageSize)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": pageResponse(history, historyResponses(history.Items))})
}

func parseTicketQuery(c *fiber.Ctx) (service.TicketListFilter, error) {
	filter := service.TicketListFilter{}
	if categoryID := c.Query("category_id"); categoryID != "" {
		filter.CategoryID = &categoryID
	}
	page, pageSize, err := parsePage(c)
	if err != nil {
		return filter, err
	}
	filter.Page = page
	filter.PageSize = pageSize
	return filter, nil
}

func parsePage(c *fiber.Ctx) (int, int, error) {
	page, err := parseInt(c, "page", 1)
	if err != nil {
		return 0, 0, err
	}
	pageSize, err := parseInt(c, "page_size", 0)
	if err != nil {
		return 0, 0, err
	}
	return page, pageSize, nil
}
