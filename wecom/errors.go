package wecom

import (
	"errors"
	"fmt"
)

// Application-level error codes returned by the remote service that mean the
// presented bearer credential is expired or unrecognized. These are the only
// codes that trigger the refresh-and-retry path.
const (
	ErrCodeInvalidCredential = 40001
	ErrCodeCredentialExpired = 42001
)

var (
	// ErrSuiteTicketNotSet is returned when a suite token fetch is attempted
	// before the remote service has pushed a suite ticket.
	ErrSuiteTicketNotSet = errors.New("suite ticket not set")

	// ErrNoPermanentCode is returned when no permanent code is known for the
	// requested corp.
	ErrNoPermanentCode = errors.New("no permanent code registered for corp")

	// ErrDuplicateOperation is returned by Registry.Register when an
	// operation name is already taken.
	ErrDuplicateOperation = errors.New("duplicate operation name")
)

// TransportError reports a non-success HTTP status. It is never retried by
// the executor; network-level retry is the caller's decision.
type TransportError struct {
	StatusCode int
	Body       []byte
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("wecom: unexpected http status %d", e.StatusCode)
}

// ParseError reports a response that claimed a JSON content type but did not
// decode, even after control-character sanitizing. RawBody is kept verbatim
// for diagnosis.
type ParseError struct {
	RawBody []byte
	Err     error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("wecom: response body is not valid json: %v", e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// APIError carries the remote service's application-level error envelope
// verbatim.
type APIError struct {
	Code    int64
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("wecom: api error %d: %s", e.Code, e.Message)
}

// CredentialInvalid reports whether the error denotes an expired or
// unrecognized bearer credential, as opposed to any other remote failure.
func (e *APIError) CredentialInvalid() bool {
	return e.Code == ErrCodeInvalidCredential || e.Code == ErrCodeCredentialExpired
}
