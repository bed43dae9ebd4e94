// File: internal/common/pagination.go
package common

const (
	DefaultPage     = 1
	DefaultPageSize = 10
	MaxPageSize     = 100
	// MaxPage bounds offsets so they cannot overflow.
	MaxPage = 10000
)

// PaginationQuery is a page request normalized by Offset and Limit.
type PaginationQuery struct {
	Page     int
	PageSize int
}

// Offset calculates the offset for database queries.
func (pq *PaginationQuery) Offset() int {
	if pq.Page <= 0 {
		pq.Page = DefaultPage
	}
	if pq.Page > MaxPage {
		pq.Page = MaxPage
	}
	return (pq.Page - 1) * pq.Limit()
}

// Limit calculates the limit for database queries.
func (pq *PaginationQuery) Limit() int {
	if pq.PageSize <= 0 {
		pq.PageSize = DefaultPageSize
	}
	if pq.PageSize > MaxPageSize {
		pq.PageSize = MaxPageSize
	}
	return pq.PageSize
}
