package errors

import (
	"errors"
	"fmt"
)

var (
	// ErrProcedureNotFound is returned when invoking an unknown procedure
	ErrProcedureNotFound = errors.New("procedure not found")

	// ErrUnknownPartition is returned when a task names a partition outside
	// the current topology
	ErrUnknownPartition = errors.New("unknown partition")

	// ErrQueueFull is returned when the dispatch queue is at capacity
	ErrQueueFull = errors.New("dispatch queue is full")

	// ErrServerStopped is returned when the engine is shutting down
	ErrServerStopped = errors.New("server is stopped")

	// ErrInvalidFrame is returned when a wire frame has invalid format
	ErrInvalidFrame = errors.New("invalid frame format")

	// ErrFrameTooLarge is returned when a wire frame exceeds the maximum size
	ErrFrameTooLarge = errors.New("frame size exceeds maximum")

	// ErrCatalogLoad is returned when the compiled catalog artifact cannot
	// be read at startup
	ErrCatalogLoad = errors.New("failed to load catalog artifact")

	// ErrCatalogWrite is returned when the compiled catalog artifact cannot
	// be written
	ErrCatalogWrite = errors.New("failed to write catalog artifact")
)

// CompileError is a fatal DDL compilation failure. It aborts registration of
// the procedure being compiled; no partial partition spec is ever committed
// to the directory.
type CompileError struct {
	Procedure string // May be empty when the failure precedes name validation
	Message   string
}

func (e *CompileError) Error() string {
	if e.Procedure == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Procedure, e.Message)
}

// Compilef builds a CompileError with a formatted message.
func Compilef(procedure, format string, args ...any) *CompileError {
	return &CompileError{Procedure: procedure, Message: fmt.Sprintf(format, args...)}
}

// IsCompileError reports whether err is (or wraps) a CompileError.
func IsCompileError(err error) bool {
	var ce *CompileError
	return errors.As(err, &ce)
}
