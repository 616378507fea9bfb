package web

import (
	"context"
	"errors"
)

// GetValues returns the Values stashed in ctx by Handle. Every Handler
// invoked through an App has one; a Handler called outside that path
// (directly from a test, say) does not, hence the error return instead of
// a panic.
func GetValues(ctx context.Context) (*Values, error) {
	v, ok := ctx.Value(key).(*Values)
	if !ok {
		return nil, errors.New("web value missing from context")
	}
	return v, nil
}

// setStatusCode records the status code Respond wrote, for Logger
// middleware to report after the handler returns.
func setStatusCode(ctx context.Context, statusCode int) {
	v, ok := ctx.Value(key).(*Values)
	if !ok {
		return
	}
	v.StatusCode = statusCode
}
