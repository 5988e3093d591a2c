package coretypes

import (
	"math"
)

const (
	// MaxPageSize is the upper bound applied to any requested page size.
	MaxPageSize = 1000
	// DefaultPageSize is used when a request does not name a page size.
	DefaultPageSize = 500
)

// Messages reported by Paginate.
const (
	MessageNoResults   = "no results"
	MessageInvalidPage = "invalid page"
)

// ResultNotifications is the envelope of every query API response.
type ResultNotifications struct {
	CurrentHeight uint32        `json:"current_height"`
	Message       string        `json:"message"`
	Results       []interface{} `json:"results"`
	Page          int           `json:"page"`
	PageLen       int           `json:"page_len"`
	Total         int           `json:"total"`
	TotalPages    int           `json:"total_pages"`
}

// NewResultNotifications returns an unpaginated envelope holding results.
func NewResultNotifications(height uint32, message string, results []interface{}) *ResultNotifications {
	if results == nil {
		results = []interface{}{}
	}
	return &ResultNotifications{
		CurrentHeight: height,
		Message:       message,
		Results:       results,
	}
}

// ValidatePageSize clamps perPage to MaxPageSize and replaces a non-positive
// value with DefaultPageSize.
func ValidatePageSize(perPage int) int {
	if perPage <= 0 {
		return DefaultPageSize
	}
	if perPage > MaxPageSize {
		return MaxPageSize
	}
	return perPage
}

// TotalPages returns the number of pages of size perPage needed for total
// results.
func TotalPages(total, perPage int) int {
	if total <= 0 {
		return 0
	}
	return int(math.Ceil(float64(total) / float64(perPage)))
}

// Paginate replaces Results with the requested page. The page metadata is
// always filled in. An empty result set or a page outside [1, total_pages]
// leaves Results empty and sets Message accordingly.
func (r *ResultNotifications) Paginate(page, perPage int) {
	perPage = ValidatePageSize(perPage)

	r.Total = len(r.Results)
	r.PageLen = perPage
	r.TotalPages = TotalPages(r.Total, perPage)
	r.Page = page

	if r.Total == 0 {
		r.Message = MessageNoResults
		r.Results = []interface{}{}
		return
	}
	if page <= 0 || page > r.TotalPages {
		r.Message = MessageInvalidPage
		r.Results = []interface{}{}
		return
	}

	offset := perPage * (page - 1)
	count := perPage
	if offset+count > r.Total {
		count = r.Total - offset
	}
	r.Results = r.Results[offset : offset+count]
}

// ResultHealth is returned by the liveness route.
type ResultHealth struct {
	CurrentHeight uint32 `json:"current_height"`
}
