package checkpoint

import "errors"

// ErrConflict is returned by Append when another writer appended to the same
// thread concurrently.
var ErrConflict = errors.New("concurrent checkpoint append")

// NotFoundError is returned when a thread has no checkpoints.
type NotFoundError struct {
	ThreadID string
}

func (e NotFoundError) Error() string {
	if e.ThreadID == "" {
		return "checkpoint not found"
	}

	return "checkpoint not found for thread: " + e.ThreadID
}

// IsNotFound reports whether err is, or wraps, a NotFoundError.
func IsNotFound(err error) bool {
	var nf NotFoundError
	return errors.As(err, &nf)
}
