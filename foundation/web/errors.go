package web

// shutdownError is returned by a Handler to request that the service stop
// accepting new work and begin a graceful shutdown, the same way an
// operating system signal does.
type shutdownError struct {
	message string
}

// NewShutdownError returns an error that Handle recognizes as a request to
// signal the service's shutdown channel after the handler returns.
func NewShutdownError(message string) error {
	return &shutdownError{message}
}

func (e *shutdownError) Error() string {
	return e.message
}

// isShutdown reports whether err (or anything it wraps) is a shutdown
// error.
func isShutdown(err error) bool {
	_, ok := err.(*shutdownError)
	return ok
}

// IsShutdown reports whether err is a shutdown error, for middleware
// outside this package that needs to let one keep propagating instead of
// treating it as an ordinary request error.
func IsShutdown(err error) bool {
	return isShutdown(err)
}
