package records

import (
	"errors"
	"fmt"
	"math"
	"net/url"
	"strconv"
)

// PageSize is the fixed number of records requested per page.
const PageSize = 10

// MaxPage is the highest accepted page number. Both the offset of MaxPage
// and MaxPage+1 fit in an int.
const MaxPage = math.MaxInt / PageSize

// Query parameter names understood by the records endpoint.
const (
	ParamOffset = "offset"
	ParamLimit  = "limit"
	ParamColor  = "color[]"
)

var (
	// ErrInvalidPage is returned for page numbers outside 1..MaxPage.
	ErrInvalidPage = errors.New("page out of range")

	// ErrInvalidColor is returned for empty color filter values.
	ErrInvalidColor = errors.New("color filter values must be non-empty")
)

// PageRequest selects one page of records.
type PageRequest struct {
	// Page is 1-based. Zero means the first page.
	Page int

	// Colors filters by color. Nil or empty means no filter.
	Colors []string
}

// Normalize applies the default page and validates the request.
func (r PageRequest) Normalize() (PageRequest, error) {
	if r.Page == 0 {
		r.Page = 1
	}
	if r.Page < 1 || r.Page > MaxPage {
		return r, fmt.Errorf("%w (got %d, want 1..%d)", ErrInvalidPage, r.Page, MaxPage)
	}
	for i, c := range r.Colors {
		if c == "" {
			return r, fmt.Errorf("%w (index %d)", ErrInvalidColor, i)
		}
	}
	return r, nil
}

// Next returns the request for the following page with the same filter.
func (r PageRequest) Next() PageRequest {
	return PageRequest{Page: r.Page + 1, Colors: r.Colors}
}

// Query is the wire-level form of a page request.
type Query struct {
	Offset int
	Limit  int
	Colors []string
}

// QueryFor converts a page request into offset/limit form.
// Offset is 10 * max(page-1, 0).
func QueryFor(req PageRequest) Query {
	offset := 0
	if req.Page > 1 {
		offset = PageSize * (req.Page - 1)
	}
	return Query{
		Offset: offset,
		Limit:  PageSize,
		Colors: req.Colors,
	}
}

// Values encodes the query. One color[] parameter is added per color;
// with no colors the parameter is omitted entirely.
func (q Query) Values() url.Values {
	v := url.Values{}
	v.Set(ParamOffset, strconv.Itoa(q.Offset))
	v.Set(ParamLimit, strconv.Itoa(q.Limit))
	for _, c := range q.Colors {
		v.Add(ParamColor, c)
	}
	return v
}
