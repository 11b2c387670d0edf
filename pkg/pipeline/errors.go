package pipeline

import "errors"

// ErrorCollector accumulates errors during multi-step operations such as
// manifest compilation, so callers can report every problem in one pass
// instead of stopping at the first. With failFast set it keeps only the
// first error.
type ErrorCollector struct {
	errors   []error
	failFast bool
}

// NewErrorCollector creates a collector that accumulates all errors.
func NewErrorCollector() *ErrorCollector {
	return &ErrorCollector{}
}

// NewFailFastCollector creates a collector that stops at the first error.
func NewFailFastCollector() *ErrorCollector {
	return &ErrorCollector{failFast: true}
}

// Add records an error. Nil errors are ignored.
func (c *ErrorCollector) Add(err error) {
	if err == nil {
		return
	}
	if c.failFast && len(c.errors) > 0 {
		return
	}
	c.errors = append(c.errors, err)
}

// HasErrors reports whether any error was recorded.
func (c *ErrorCollector) HasErrors() bool {
	return len(c.errors) > 0
}

// Count returns the number of recorded errors.
func (c *ErrorCollector) Count() int {
	return len(c.errors)
}

// Err joins the recorded errors, or returns nil when none were recorded.
func (c *ErrorCollector) Err() error {
	return errors.Join(c.errors...)
}
