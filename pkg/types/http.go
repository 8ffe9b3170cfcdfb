package types

import (
	"context"
	"time"
)

// RequestContext represents the normalized inbound request the defense
// chain inspects. It is built once per request by the middleware.
type RequestContext struct {
	Context    context.Context
	Identifier string
	Country    string
	Headers    map[string][]string
	Method     string
	Path       string
	Body       []byte
	Metadata   map[string]interface{}
	Stage      Stage
	ReceivedAt time.Time
}

// Header returns the first value for key, or "".
func (r *RequestContext) Header(key string) string {
	if values, ok := r.Headers[key]; ok && len(values) > 0 {
		return values[0]
	}
	return ""
}

// ResponseContext carries the outcome of the upstream call back to the
// post-response observers.
type ResponseContext struct {
	StatusCode int
	Size       int
	Headers    map[string][]string
	Metadata   map[string]interface{}
}
