package errors

import (
	"fmt"
	"time"
)

// ErrorType classifies worker errors. Scraping-surface errors (network,
// parsing) are recoverable by design because the input is adversarial;
// configuration errors are the only class that aborts a run.
type ErrorType string

const (
	// ErrorTypeNetwork represents transport failures and HTTP error statuses
	ErrorTypeNetwork ErrorType = "network"
	// ErrorTypeParsing represents HTML/XML/JSON parsing errors
	ErrorTypeParsing ErrorType = "parsing"
	// ErrorTypeSource represents store-source (Overpass) failures
	ErrorTypeSource ErrorType = "source"
	// ErrorTypeRateLimit represents politeness blocks on an origin
	ErrorTypeRateLimit ErrorType = "rate_limit"
	// ErrorTypePublisher represents publisher-related errors
	ErrorTypePublisher ErrorType = "publisher"
	// ErrorTypeNotify represents alert-delivery errors
	ErrorTypeNotify ErrorType = "notify"
	// ErrorTypeValidation represents validation errors
	ErrorTypeValidation ErrorType = "validation"
	// ErrorTypeConfiguration represents configuration errors
	ErrorTypeConfiguration ErrorType = "configuration"
)

// WorkerError is an error with a type, the subject it occurred on (an origin,
// a URL, an endpoint) and the underlying cause.
type WorkerError struct {
	Type    ErrorType
	Subject string
	Message string
	Err     error
	Time    time.Time
}

// Error implements the error interface
func (e *WorkerError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %s - %v", e.Type, e.Subject, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Type, e.Subject, e.Message)
}

// Unwrap returns the underlying error
func (e *WorkerError) Unwrap() error {
	return e.Err
}

// IsRetryable returns true if the error is worth another attempt.
func (e *WorkerError) IsRetryable() bool {
	switch e.Type {
	case ErrorTypeNetwork, ErrorTypeSource:
		return true
	default:
		return false
	}
}

// New creates a new WorkerError
func New(errType ErrorType, subject, message string, err error) *WorkerError {
	return &WorkerError{
		Type:    errType,
		Subject: subject,
		Message: message,
		Err:     err,
		Time:    time.Now(),
	}
}

// NewNetwork creates a new network error
func NewNetwork(subject, message string, err error) *WorkerError {
	return New(ErrorTypeNetwork, subject, message, err)
}

// NewParsing creates a new parsing error
func NewParsing(subject, message string, err error) *WorkerError {
	return New(ErrorTypeParsing, subject, message, err)
}

// NewSource creates a new store-source error
func NewSource(subject, message string, err error) *WorkerError {
	return New(ErrorTypeSource, subject, message, err)
}

// NewRateLimit creates a new rate limit error
func NewRateLimit(subject string, duration time.Duration) *WorkerError {
	message := fmt.Sprintf("rate limited for %v", duration)
	return New(ErrorTypeRateLimit, subject, message, nil)
}

// NewPublisher creates a new publisher error
func NewPublisher(subject, message string, err error) *WorkerError {
	return New(ErrorTypePublisher, subject, message, err)
}

// NewNotify creates a new alert-delivery error
func NewNotify(subject, message string, err error) *WorkerError {
	return New(ErrorTypeNotify, subject, message, err)
}

// NewValidation creates a new validation error
func NewValidation(subject, message string) *WorkerError {
	return New(ErrorTypeValidation, subject, message, nil)
}

// NewConfiguration creates a new configuration error
func NewConfiguration(message string, err error) *WorkerError {
	return New(ErrorTypeConfiguration, "", message, err)
}
