package viewcounter

import "github.com/eringen/viewcounter/counter"

// incrementRequest is the body posted by the site's page-view script.
type incrementRequest struct {
	Slug string `json:"slug"`
}

type incrementResponse struct {
	Total int64 `json:"total"`
}

type subscriberCountResponse struct {
	SubscriberCount int64 `json:"subscriberCount"`
}

// viewsResponse is both the single-slug read body and the SSE event payload.
type viewsResponse struct {
	Slug  string `json:"slug"`
	Total int64  `json:"total"`
}

type topViewsResponse struct {
	Total int64               `json:"total"`
	Pages []counter.PageViews `json:"pages"`
}

type errorResponse struct {
	Error string `json:"error"`
}
