package service

import (
	"context"
	"regexp"
	"strings"

	"github.com/spec-kit/kanban-service/internal/domain"
	"github.com/spec-kit/kanban-service/internal/events"
	"github.com/spec-kit/kanban-service/internal/repository"
	apperrors "github.com/spec-kit/kanban-service/pkg/util/errorutil"
)

var colorPattern = regexp.MustCompile(`^#[0-9A-Fa-f]{6}$`)

// CategoryService coordinates board column workflows.
type CategoryService struct {
	store         repository.Store
	positions     PositionManager
	publisher     publisher
	advisoryLocks bool
}

// CategoryDependencies bundles collaborators for the category service.
type CategoryDependencies struct {
	Store      repository.Store
	Dispatcher events.Dispatcher
	// AdvisoryLocks serializes writers of one owner's board on "board:<owner>".
	AdvisoryLocks bool
}

// CategoryCreateInput describes category creation payload.
type CategoryCreateInput struct {
	Name  string
	Color *string
}

// CategoryWithTickets is a category and its tickets in board order.
type CategoryWithTickets struct {
	Category domain.Category
	Tickets  []domain.Ticket
}

// NewCategoryService constructs the service.
func NewCategoryService(deps CategoryDependencies) *CategoryService {
	return &CategoryService{
		store:         deps.Store,
		publisher:     publisher{dispatcher: deps.Dispatcher},
		advisoryLocks: deps.AdvisoryLocks,
	}
}

// Create appends a category to the end of the owner's board.
func (s *CategoryService) Create(ctx context.Context, ownerID string, input CategoryCreateInput) (*domain.Category, error) {
	name, err := requireText("name", input.Name)
	if err != nil {
		return nil, err
	}
	color := domain.DefaultCategoryColor
	if input.Color != nil {
		if color, err = validColor(*input.Color); err != nil {
			return nil, err
		}
	}

	category := &domain.Category{Name: name, Color: color, UserID: ownerID}
	err = s.store.WithTx(ctx, func(repos repository.Repositories) error {
		if err := s.lock(ctx, repos, ownerID); err != nil {
			return err
		}
		if err := ensureNameFree(ctx, repos.Categories, ownerID, name, ""); err != nil {
			return err
		}
		position, err := s.positions.Next(ctx, repos.Categories, ownerID)
		if err != nil {
			return err
		}
		category.Position = position
		return repos.Categories.Create(ctx, category)
	})
	if err != nil {
		return nil, apperrors.MapError(err)
	}

	s.publisher.publish(ctx, []events.Event{categoryEvent(events.EventCategoryCreated, ownerID, category)})
	return category, nil
}

// List returns the owner's live categories in board order.
func (s *CategoryService) List(ctx context.Context, ownerID string) ([]domain.Category, error) {
	categories, err := s.store.Repositories().Categories.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	if categories == nil {
		categories = []domain.Category{}
	}
	return categories, nil
}

// Get loads a category with its tickets.
func (s *CategoryService) Get(ctx context.Context, ownerID, categoryID string) (*CategoryWithTickets, error) {
	if err := requireID("category_id", categoryID); err != nil {
		return nil, err
	}
	repos := s.store.Repositories()
	category, err := repos.Categories.GetForOwner(ctx, categoryID, ownerID)
	if err != nil {
		return nil, apperrors.MapError(notFound(err, "category", "category_id", categoryID))
	}
	tickets, err := repos.Tickets.ListByCategory(ctx, category.ID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	if err := attachAssignees(ctx, repos.Assignments, tickets); err != nil {
		return nil, apperrors.MapError(err)
	}
	return &CategoryWithTickets{Category: *category, Tickets: tickets}, nil
}

// Update applies a partial update. A new position moves the category within
// the owner's board.
func (s *CategoryService) Update(ctx context.Context, ownerID, categoryID string, patch domain.CategoryPatch) (*domain.Category, error) {
	if err := requireID("category_id", categoryID); err != nil {
		return nil, err
	}
	if err := validateCategoryPatch(&patch); err != nil {
		return nil, err
	}

	var category *domain.Category
	err := s.store.WithTx(ctx, func(repos repository.Repositories) error {
		if patch.Position.Valid {
			if err := s.lock(ctx, repos, ownerID); err != nil {
				return err
			}
		}
		var err error
		category, err = repos.Categories.GetForOwner(ctx, categoryID, ownerID)
		if err != nil {
			return notFound(err, "category", "category_id", categoryID)
		}
		if patch.Name.Valid && patch.Name.Value != category.Name {
			if err := ensureNameFree(ctx, repos.Categories, ownerID, patch.Name.Value, category.ID); err != nil {
				return err
			}
		}
		patch.Apply(category)

		if patch.Position.Valid {
			count, err := repos.Categories.Count(ctx, ownerID)
			if err != nil {
				return err
			}
			to, err := s.positions.Clamp(patch.Position.Value, count-1)
			if err != nil {
				return err
			}
			if err := s.positions.Move(ctx, repos.Categories, ownerID, category.ID, category.Position, to); err != nil {
				return err
			}
			category.Position = to
		}
		return repos.Categories.Update(ctx, category)
	})
	if err != nil {
		return nil, apperrors.MapError(err)
	}

	s.publisher.publish(ctx, []events.Event{categoryEvent(events.EventCategoryUpdated, ownerID, category)})
	return category, nil
}

// Delete soft-deletes an empty category and closes the gap it leaves.
func (s *CategoryService) Delete(ctx context.Context, ownerID, categoryID string) error {
	if err := requireID("category_id", categoryID); err != nil {
		return err
	}

	var category *domain.Category
	err := s.store.WithTx(ctx, func(repos repository.Repositories) error {
		if err := s.lock(ctx, repos, ownerID, categoryID); err != nil {
			return err
		}
		var err error
		category, err = repos.Categories.GetForOwner(ctx, categoryID, ownerID)
		if err != nil {
			return notFound(err, "category", "category_id", categoryID)
		}
		count, err := repos.Tickets.Count(ctx, category.ID)
		if err != nil {
			return err
		}
		if count > 0 {
			return apperrors.NewConflict("category still contains tickets",
				map[string]any{"category_id": category.ID, "tickets": count})
		}
		if err := repos.Categories.SoftDelete(ctx, category.ID); err != nil {
			return err
		}
		category.IsDeleted = true
		return s.positions.CloseGap(ctx, repos.Categories, ownerID, category.Position)
	})
	if err != nil {
		return apperrors.MapError(err)
	}

	s.publisher.publish(ctx, []events.Event{categoryEvent(events.EventCategoryDeleted, ownerID, category)})
	return nil
}

// Reorder rewrites board positions in bulk and returns the resulting board.
func (s *CategoryService) Reorder(ctx context.Context, ownerID string, assignments []domain.PositionAssignment) ([]domain.Category, error) {
	for _, a := range assignments {
		if err := requireID("category_id", a.ID); err != nil {
			return nil, err
		}
	}

	var (
		board []domain.Category
		final map[string]int
	)
	err := s.store.WithTx(ctx, func(repos repository.Repositories) error {
		if err := s.lock(ctx, repos, ownerID); err != nil {
			return err
		}
		categories, err := repos.Categories.ListByOwner(ctx, ownerID)
		if err != nil {
			return err
		}
		current := make(map[string]int, len(categories))
		for _, category := range categories {
			current[category.ID] = category.Position
		}
		if final, err = s.positions.Reorder(ctx, repos.Categories, current, assignments); err != nil {
			return err
		}
		board, err = repos.Categories.ListByOwner(ctx, ownerID)
		return err
	})
	if err != nil {
		return nil, apperrors.MapError(err)
	}

	s.publisher.publish(ctx, []events.Event{{
		Type:    events.EventCategoriesReorder,
		Actor:   userActor(ownerID),
		Payload: events.CategoriesReorderedPayload{Positions: final},
	}})
	return board, nil
}

func validateCategoryPatch(patch *domain.CategoryPatch) error {
	if patch.Name.Set {
		if !patch.Name.Valid {
			return apperrors.NewValidationError("name cannot be null", map[string]any{"field": "name"})
		}
		name, err := requireText("name", patch.Name.Value)
		if err != nil {
			return err
		}
		patch.Name.Value = name
	}
	if patch.Color.Set {
		if !patch.Color.Valid {
			return apperrors.NewValidationError("color cannot be null", map[string]any{"field": "color"})
		}
		color, err := validColor(patch.Color.Value)
		if err != nil {
			return err
		}
		patch.Color.Value = color
	}
	if patch.Position.Set && !patch.Position.Valid {
		return apperrors.NewValidationError("position cannot be null", map[string]any{"field": "position"})
	}
	return nil
}

func validColor(color string) (string, error) {
	color = strings.TrimSpace(color)
	if !colorPattern.MatchString(color) {
		return "", apperrors.NewValidationError("color must look like #RRGGBB", map[string]any{"color": color})
	}
	return color, nil
}

func ensureNameFree(ctx context.Context, categories repository.CategoryRepository, ownerID, name, excludeID string) error {
	taken, err := categories.NameTaken(ctx, ownerID, name, excludeID)
	if err != nil {
		return err
	}
	if taken {
		return apperrors.NewConflict("category name already used", map[string]any{"name": name})
	}
	return nil
}

func attachAssignees(ctx context.Context, assignments repository.AssignmentRepository, tickets []domain.Ticket) error {
	if len(tickets) == 0 {
		return nil
	}
	ids := make([]string, len(tickets))
	for i := range tickets {
		ids[i] = tickets[i].ID
	}
	assigned, err := assignments.ListForTickets(ctx, ids)
	if err != nil {
		return err
	}
	for i := range tickets {
		tickets[i].AssignedUserIDs = assigned[tickets[i].ID]
		if tickets[i].AssignedUserIDs == nil {
			tickets[i].AssignedUserIDs = []string{}
		}
	}
	return nil
}

func categoryEvent(eventType events.EventType, actorID string, category *domain.Category) events.Event {
	return events.Event{
		Type:       eventType,
		CategoryID: category.ID,
		Actor:      userActor(actorID),
		Payload: events.CategoryPayload{
			Name:     category.Name,
			Color:    category.Color,
			Position: category.Position,
		},
	}
}

// lock takes the owner's board key and the keys of categoryIDs. "board:"
// sorts before "category:", which matches the order ticket writers use.
func (s *CategoryService) lock(ctx context.Context, repos repository.Repositories, ownerID string, categoryIDs ...string) error {
	if !s.advisoryLocks {
		return nil
	}
	keys := []string{"board:" + ownerID}
	for _, id := range categoryIDs {
		keys = append(keys, "category:"+id)
	}
	return repos.Locks.LockKeys(ctx, keys...)
}
