package utils

// Pagination is the page envelope returned by list endpoints.
type Pagination struct {
	CurrentPage int `json:"currentPage"`
	TotalPages  int `json:"totalPages"`
}

// Paginate clamps page into [1, totalPages] for the given total row
// count and returns the envelope plus the row offset for the query.
// An empty result set still reports one (empty) page.
func Paginate(page, pageSize, total int) (Pagination, int) {
	if pageSize < 1 {
		pageSize = 1
	}

	totalPages := (total + pageSize - 1) / pageSize
	if totalPages < 1 {
		totalPages = 1
	}

	if page < 1 {
		page = 1
	}
	if page > totalPages {
		page = totalPages
	}

	return Pagination{CurrentPage: page, TotalPages: totalPages}, (page - 1) * pageSize
}
