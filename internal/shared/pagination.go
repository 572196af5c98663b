package shared

import (
	"net/url"
	"strconv"
)

const (
	defaultPageSize = 50
	maxPageSize     = 200
)

// PageParams bounds a listing query.
type PageParams struct {
	Limit  int
	Offset int
}

// ParsePageParams reads limit/offset query values, clamping to sane bounds.
// Absent or malformed values fall back to the defaults.
func ParsePageParams(q url.Values) PageParams {
	limit, _ := strconv.Atoi(q.Get("limit"))
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	offset, _ := strconv.Atoi(q.Get("offset"))
	if offset < 0 {
		offset = 0
	}
	return PageParams{Limit: limit, Offset: offset}
}
