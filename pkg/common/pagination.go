package common

import (
	"net/http"
	"strconv"
)

// PageParams are the cursor pagination parameters of a list request.
type PageParams struct {
	Limit  int    `json:"limit"`
	Cursor string `json:"cursor,omitempty"`
}

// ExtractPageParams reads limit and cursor from the query string. Invalid or
// missing limits fall back to 0, which lets the query apply its default;
// limits above max are capped.
func ExtractPageParams(r *http.Request, max int) PageParams {
	q := r.URL.Query()
	params := PageParams{Cursor: q.Get("cursor")}
	if limit := q.Get("limit"); limit != "" {
		if n, err := strconv.Atoi(limit); err == nil && n > 0 {
			if max > 0 && n > max {
				n = max
			}
			params.Limit = n
		}
	}
	return params
}
