package weather

import "errors"

// ErrorKind classifies a fetch failure for retry decisions upstream.
type ErrorKind string

const (
	// Transient failures (timeouts, 5xx, connection resets) were retried
	// before being surfaced and may succeed on a later sync.
	Transient ErrorKind = "transient"
	// Permanent failures (4xx, malformed bodies) are not retried.
	Permanent ErrorKind = "permanent"
)

// FetchError is the only error type returned by Client.Fetch.
type FetchError struct {
	Kind    ErrorKind
	Message string
}

func (e *FetchError) Error() string {
	return string(e.Kind) + " fetch error: " + e.Message
}

// IsTransient reports whether err is a transient FetchError.
func IsTransient(err error) bool {
	var fe *FetchError
	return errors.As(err, &fe) && fe.Kind == Transient
}
