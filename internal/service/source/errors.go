package source

import "errors"

// ErrUnavailable is returned by an Opener that cannot handle a source; the Reader then
// moves on to the next Opener.
var ErrUnavailable = errors.New("backend unavailable")

// SourceError is a terminal analysis failure. Its message is reported to the caller verbatim.
type SourceError struct {
	Message string
	Err     error
}

func (e *SourceError) Error() string {
	return e.Message
}

func (e *SourceError) Unwrap() error {
	return e.Err
}

func sourceError(message string, err error) *SourceError {
	return &SourceError{Message: message, Err: err}
}
