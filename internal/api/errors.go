package api

import (
	"errors"
	"fmt"
)

// DomainError is a request the backend understood and rejected
// (an envelope with success=false).
type DomainError struct {
	Op      string
	Status  int
	Message string
}

func (e *DomainError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s rejected by server (status %d)", e.Op, e.Status)
	}
	return e.Message
}

// TransportError is a request that never produced an envelope: connection
// failures, timeouts, cancelled contexts and undecodable responses.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// IsDomain reports whether err carries a backend rejection.
func IsDomain(err error) bool {
	var de *DomainError
	return errors.As(err, &de)
}

// IsTransport reports whether err is a transport failure.
func IsTransport(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}
