package domain

// Page is one slice of a paginated listing.
type Page[T any] struct {
	Items      []T
	Total      int
	Page       int
	PageSize   int
	TotalPages int
}

// NewPage computes TotalPages. A pageSize of zero means everything on one page.
func NewPage[T any](items []T, total, page, pageSize int) Page[T] {
	if items == nil {
		items = []T{}
	}
	totalPages := 1
	if pageSize > 0 {
		totalPages = (total + pageSize - 1) / pageSize
	}
	if total == 0 {
		totalPages = 0
	}
	return Page[T]{Items: items, Total: total, Page: page, PageSize: pageSize, TotalPages: totalPages}
}

// Offset converts a 1-based page into a row offset.
func Offset(page, pageSize int) int {
	if page < 1 || pageSize <= 0 {
		return 0
	}
	return (page - 1) * pageSize
}
