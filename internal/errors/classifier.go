package errors

import (
	"errors"
	"net"
	"syscall"
)

// ErrorCategory represents the category of an error for retry logic.
type ErrorCategory int

const (
	ErrorTransient  ErrorCategory = iota // Temporary errors - retry with backoff
	ErrorPermanent                       // Permanent errors - no retry
	ErrorCritical                        // System-level errors - alert immediately
	ErrorValidation                      // Compile/validation errors - no retry
	ErrorNetwork                         // Network-related - retry with backoff
)

// Classifier categorizes errors for the client's connection retry logic.
// Status-code retries are the router's job; this only covers plain errors
// observed on the transport before a status code exists.
type Classifier struct{}

// NewClassifier creates a new error classifier.
func NewClassifier() *Classifier {
	return &Classifier{}
}

// Classify determines the category of an error.
func (c *Classifier) Classify(err error) ErrorCategory {
	if err == nil {
		return ErrorPermanent // Should not happen, but safe default
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return ErrorNetwork
	}

	var sysErr syscall.Errno
	if errors.As(err, &sysErr) {
		switch sysErr {
		case syscall.EAGAIN, syscall.ETIMEDOUT, syscall.ECONNREFUSED, syscall.ECONNRESET, syscall.EPIPE:
			return ErrorNetwork
		case syscall.ENOENT, syscall.EINVAL, syscall.EEXIST:
			return ErrorPermanent
		case syscall.EIO, syscall.ENOSPC, syscall.ENOMEM:
			return ErrorCritical
		}
	}

	if IsCompileError(err) {
		return ErrorValidation
	}

	switch {
	case errors.Is(err, ErrInvalidFrame), errors.Is(err, ErrFrameTooLarge):
		return ErrorValidation
	case errors.Is(err, ErrQueueFull):
		return ErrorTransient
	case errors.Is(err, ErrServerStopped),
		errors.Is(err, ErrProcedureNotFound), errors.Is(err, ErrUnknownPartition):
		return ErrorPermanent
	case errors.Is(err, ErrCatalogLoad), errors.Is(err, ErrCatalogWrite):
		return ErrorCritical
	}

	// Default: treat as permanent (no retry)
	return ErrorPermanent
}

// ShouldRetry returns true if the error category indicates retry is appropriate.
func (c *Classifier) ShouldRetry(category ErrorCategory) bool {
	return category == ErrorTransient || category == ErrorNetwork
}

// IsCritical returns true if the error requires immediate attention.
func (c *Classifier) IsCritical(category ErrorCategory) bool {
	return category == ErrorCritical
}
