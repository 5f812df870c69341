package domain

import "net/http"

// Response is a successful (2xx) backend reply.
type Response struct {
	Status int
	Header http.Header
	Raw    []byte
	// Body is the decoded JSON value, the raw text for non-JSON responses,
	// or nil for an empty body.
	Body any
}
