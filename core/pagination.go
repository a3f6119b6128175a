package core

import "math"

const (
	DefaultPageSize = 20
	MaxPageSize     = 100

	// MaxPage keeps (page-1)*pageSize within an int.
	MaxPage = math.MaxInt / MaxPageSize
)

// PageRequest is the page/pageSize pair every list operation accepts.
type PageRequest struct {
	Page     int `query:"page"`
	PageSize int `query:"page_size"`
}

// Normalize clamps the request into valid bounds.
func (pr PageRequest) Normalize() PageRequest {
	switch {
	case pr.Page <= 0:
		pr.Page = 1
	case pr.Page > MaxPage:
		pr.Page = MaxPage
	}
	switch {
	case pr.PageSize > MaxPageSize:
		pr.PageSize = MaxPageSize
	case pr.PageSize <= 0:
		pr.PageSize = DefaultPageSize
	}
	return pr
}

func (pr PageRequest) Offset() int {
	pr = pr.Normalize()
	return (pr.Page - 1) * pr.PageSize
}

func (pr PageRequest) Limit() int {
	return pr.Normalize().PageSize
}

// Window returns the [start, end) bounds of the page within n items.
func (pr PageRequest) Window(n int) (int, int) {
	start := pr.Offset()
	if start > n {
		start = n
	}
	end := start + pr.Limit()
	if end > n {
		end = n
	}
	return start, end
}

// Page defines the structure for any paginated response.
type Page struct {
	Data        interface{} `json:"data"`
	TotalRows   int         `json:"total_rows"`
	TotalPages  int         `json:"total_pages"`
	CurrentPage int         `json:"current_page"`
	PageSize    int         `json:"page_size"`
}

func NewPage(data interface{}, totalRows int, pr PageRequest) Page {
	pr = pr.Normalize()
	totalPages := 0
	if totalRows > 0 {
		totalPages = int(math.Ceil(float64(totalRows) / float64(pr.PageSize)))
	}
	return Page{
		Data:        data,
		TotalRows:   totalRows,
		TotalPages:  totalPages,
		CurrentPage: pr.Page,
		PageSize:    pr.PageSize,
	}
}
