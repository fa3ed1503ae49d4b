package domain

import "time"

// DefaultCategoryColor is applied when a category is created without a color.
const DefaultCategoryColor = "#3B82F6"

// Category is a user-owned board column.
type Category struct {
	ID        string
	Name      string
	Color     string
	Position  int
	UserID    string
	IsDeleted bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// CategoryPatch is a partial category update. Position is handled by the
// position manager rather than Apply.
type CategoryPatch struct {
	Name     Optional[string]
	Color    Optional[string]
	Position Optional[int]
}

// Apply merges name and color into category.
func (p CategoryPatch) Apply(category *Category) bool {
	changed := false
	if p.Name.Valid && p.Name.Value != category.Name {
		category.Name = p.Name.Value
		changed = true
	}
	if p.Color.Valid && p.Color.Value != category.Color {
		category.Color = p.Color.Value
		changed = true
	}
	return changed
}

// PositionAssignment pairs an entity id with its requested position.
type PositionAssignment struct {
	ID       string
	Position int
}
