package remote

import (
	"fmt"
	"net/http"
)

// RemoteError is a non-2xx response. Message is the server's text, shown to
// the user verbatim.
type RemoteError struct {
	Status  int
	Message string
}

func (e *RemoteError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("request failed: %d %s", e.Status, http.StatusText(e.Status))
}

// TransportError is a failure before a status code was obtained.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// DecodeError is a response body that does not describe a valid entity.
type DecodeError struct {
	Entity string
	Reason string
	Err    error
}

func (e *DecodeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("decode %s: %s: %v", e.Entity, e.Reason, e.Err)
	}
	return fmt.Sprintf("decode %s: %s", e.Entity, e.Reason)
}

func (e *DecodeError) Unwrap() error { return e.Err }
