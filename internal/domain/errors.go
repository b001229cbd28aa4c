package domain

import (
	"errors"
	"strconv"
)

// RetriableError defines an interface for errors that can be retried
type RetriableError interface {
	error
	IsRetriable() bool
}

// IsRetriable checks if an error is retriable
func IsRetriable(err error) bool {
	var re RetriableError
	if errors.As(err, &re) {
		return re.IsRetriable()
	}
	return false
}

// NetworkError represents a network-related error that may be retriable
type NetworkError struct {
	Op        string // Operation that failed (e.g., "connect", "read", "write")
	Err       error  // Underlying error
	Retriable bool   // Whether this error is retriable
}

func (e *NetworkError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

func (e *NetworkError) IsRetriable() bool {
	return e.Retriable
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// NewNetworkError creates a new retriable network error
func NewNetworkError(op string, err error) *NetworkError {
	return &NetworkError{Op: op, Err: err, Retriable: true}
}

// NewFatalNetworkError creates a non-retriable network error
func NewFatalNetworkError(op string, err error) *NetworkError {
	return &NetworkError{Op: op, Err: err, Retriable: false}
}

// ConfigError represents a configuration error (never retriable)
type ConfigError struct {
	Field string
	Err   error
}

func (e *ConfigError) Error() string {
	return "config error [" + e.Field + "]: " + e.Err.Error()
}

func (e *ConfigError) IsRetriable() bool {
	return false
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// RequestError is a venue REST call that completed with a non-success status.
type RequestError struct {
	Op     string // e.g. "GET /market"
	Status int
	Body   string
}

func (e *RequestError) Error() string {
	msg := e.Op + ": status " + strconv.Itoa(e.Status)
	if e.Body != "" {
		msg += ": " + e.Body
	}
	return msg
}

// IsRetriable reports server-side failures as retriable. Nothing retries
// automatically; the operator decides.
func (e *RequestError) IsRetriable() bool {
	return e.Status >= 500
}

var (
	// ErrConnectionFailed is returned when websocket connection fails. It's usually retriable.
	ErrConnectionFailed = errors.New("connection failed")

	// ErrMalformedFrame is returned when a stream frame cannot be decoded.
	ErrMalformedFrame = errors.New("malformed frame")

	// ErrPriceRequired is returned when a LIMIT order has no price.
	ErrPriceRequired = errors.New("price is required for LIMIT orders")

	// ErrBootstrapIncomplete is returned while the initial load has not been applied.
	ErrBootstrapIncomplete = errors.New("bootstrap incomplete")

	// ErrSessionClosed is returned when the dashboard session has ended.
	ErrSessionClosed = errors.New("session closed")

	// ErrConfigNotFound is returned when configuration file is missing
	ErrConfigNotFound = errors.New("configuration not found")
)
