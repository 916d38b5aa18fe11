package shared

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// Filter pages list queries over ledger history (transactions, invoices,
// refunds). Page is 1-based. Out of range input is clamped, never rejected,
// so a bad query string still returns the first page.
type Filter struct {
	Page     int
	PageSize int
}

func DefaultFilter() Filter {
	return Filter{Page: 1, PageSize: defaultPageSize}
}

func (f Filter) page() int {
	return max(f.Page, 1)
}

// Offset is the number of rows skipped before the page
func (f Filter) Offset() int {
	return (f.page() - 1) * f.Limit()
}

// Limit is the effective page size
func (f Filter) Limit() int {
	if f.PageSize < 1 {
		return defaultPageSize
	}
	return min(f.PageSize, maxPageSize)
}

// Paginated is one page of a list together with the totals a client needs
// to walk the rest.
type Paginated[T any] struct {
	Items      []T   `json:"items"`
	Total      int64 `json:"total"`
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	TotalPages int   `json:"total_pages"`
}

func NewPaginated[T any](items []T, total int64, filter Filter) Paginated[T] {
	size := int64(filter.Limit())
	return Paginated[T]{
		Items:      items,
		Total:      total,
		Page:       filter.page(),
		PageSize:   int(size),
		TotalPages: int((total + size - 1) / size),
	}
}
