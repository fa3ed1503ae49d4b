package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/kanban-service/internal/api/dto"
	"github.com/spec-kit/kanban-service/internal/service"
)

// CategoriesHandler manages the caller's board columns.
type CategoriesHandler struct {
	service *service.CategoryService
}

// NewCategoriesHandler constructs handler.
func NewCategoriesHandler(categoryService *service.CategoryService) *CategoriesHandler {
	return &CategoriesHandler{service: categoryService}
}

// CreateCategory POST /categories.
func (h *CategoriesHandler) CreateCategory(c *fiber.Ctx) error {
	userID, err := currentUserID(c)
	if err != nil {
		return err
	}
	var req dto.CreateCategoryRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	category, err := h.service.Create(c.UserContext(), userID, service.CategoryCreateInput{Name: req.Name, Color: req.Color})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": categoryResponse(category)})
}

// ListCategories GET /categories.
func (h *CategoriesHandler) ListCategories(c *fiber.Ctx) error {
	userID, err := currentUserID(c)
	if err != nil {
		return err
	}
	categories, err := h.service.List(c.UserContext(), userID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": categoryResponses(categories)})
}

// GetCategory GET /categories/:id.
func (h *CategoriesHandler) GetCategory(c *fiber.Ctx) error {
	userID, err := currentUserID(c)
	if err != nil {
		return err
	}
	result, err := h.service.Get(c.UserContext(), userID, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.CategoryWithTicketsResponse{
		CategoryResponse: categoryResponse(&result.Category),
		Tickets:          ticketResponses(result.Tickets),
	}})
}

// UpdateCategory PUT /categories/:id.
func (h *CategoriesHandler) UpdateCategory(c *fiber.Ctx) error {
	userID, err := currentUserID(c)
	if err != nil {
		return err
	}
	var req dto.UpdateCategoryRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	category, err := h.service.Update(c.UserContext(), userID, c.Params("id"), req.Patch())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": categoryResponse(category)})
}

// DeleteCategory DELETE /categories/:id.
func (h *CategoriesHandler) DeleteCategory(c *fiber.Ctx) error {
	userID, err := currentUserID(c)
	if err != nil {
		return err
	}
	if err := h.service.Delete(c.UserContext(), userID, c.Params("id")); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}

// ReorderCategories PUT /categories/reorder.
func (h *CategoriesHandler) ReorderCategories(c *fiber.Ctx) error {
	userID, err := currentUserID(c)
	if err != nil {
		return err
	}
	var req []dto.CategoryPositionRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	categories, err := h.service.Reorder(c.UserContext(), userID, dto.Assignments(req))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": categoryResponses(categories)})
}
