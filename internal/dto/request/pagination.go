package request

import (
	"net/url"
	"strconv"
)

const maxPerPage = 100

type PaginatedRequest struct {
	Page    int `json:"page" validate:"min=1"`
	PerPage int `json:"per_page" validate:"min=1,max=100"`
}

// PaginationFromQuery reads ?page= and ?per_page=, falling back on junk
// input and capping the page size
func PaginationFromQuery(q url.Values, defaultPerPage int) *PaginatedRequest {
	return &PaginatedRequest{
		Page:    positiveInt(q.Get("page"), 1),
		PerPage: min(positiveInt(q.Get("per_page"), defaultPerPage), maxPerPage),
	}
}

func (p PaginatedRequest) Offset() int {
	if p.Page < 1 {
		return 0
	}
	return (p.Page - 1) * p.Limit()
}

func (p PaginatedRequest) Limit() int {
	if p.PerPage < 1 {
		return 10
	}
	return min(p.PerPage, maxPerPage)
}

func positiveInt(raw string, fallback int) int {
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return fallback
	}
	return n
}
