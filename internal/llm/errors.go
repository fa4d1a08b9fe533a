package llm

import (
	"errors"
	"fmt"
)

// ErrTransport classifies any failure of the external call itself:
// connection errors, timeouts, provider errors and empty replies.
var ErrTransport = errors.New("llm transport failure")

// TransportError carries the provider name and, for HTTP providers, the
// upstream status code.
type TransportError struct {
	Provider string
	Status   int
	Err      error
}

func (e *TransportError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s: upstream %d: %v", e.Provider, e.Status, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Provider, e.Err)
}

func (e *TransportError) Unwrap() []error {
	return []error{ErrTransport, e.Err}
}

func transportErr(provider string, status int, err error) error {
	return &TransportError{Provider: provider, Status: status, Err: err}
}

var errEmptyReply = errors.New("empty reply")
