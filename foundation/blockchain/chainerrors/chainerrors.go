// Package chainerrors defines the error taxonomy the chain engine tags
// every returned error with, in the business/web/errs.Trusted idiom of
// wrapping an error with additional context (there: an HTTP status; here:
// a category), so Transport can map any category onto a status code.
package chainerrors

import (
	"errors"
	"fmt"
)

// Category tags an error with the area of the system that rejected it.
type Category string

const (
	Validation  Category = "ValidationError"
	Consensus   Category = "ConsensusError"
	State       Category = "StateError"
	Persistence Category = "PersistenceError"
	Network     Category = "NetworkError"
	Pool        Category = "PoolError"
	Config      Category = "ConfigError"
	Fatal       Category = "Fatal"
)

// Categorized wraps an underlying error with its taxonomy category.
type Categorized struct {
	Category Category
	Err      error
}

// New wraps err with category. If err is nil, New returns nil.
func New(category Category, err error) error {
	if err == nil {
		return nil
	}
	return &Categorized{Category: category, Err: err}
}

// Newf builds a Categorized error from a format string.
func Newf(category Category, format string, args ...any) error {
	return &Categorized{Category: category, Err: fmt.Errorf(format, args...)}
}

func (c *Categorized) Error() string {
	return fmt.Sprintf("%s: %s", c.Category, c.Err)
}

func (c *Categorized) Unwrap() error {
	return c.Err
}

// CategoryOf extracts the Category tagged onto err, if any.
func CategoryOf(err error) (Category, bool) {
	var c *Categorized
	if !errors.As(err, &c) {
		return "", false
	}
	return c.Category, true
}

// Is reports whether err (or any error it wraps) is tagged with category.
func Is(err error, category Category) bool {
	c, ok := CategoryOf(err)
	return ok && c == category
}
