package decode

import (
	"errors"
	"fmt"
)

// Sentinel errors for common conditions.
var (
	// ErrNoDecoderAvailable is returned when every capability failed to initialize.
	ErrNoDecoderAvailable = errors.New("decode: no decoder available")

	// ErrNotInitialized is returned when TryDetect runs before Init.
	ErrNotInitialized = errors.New("decode: chain not initialized")

	// ErrTransient marks a per-frame failure that the loop recovers from.
	ErrTransient = errors.New("decode: transient decode error")
)

// TransientError wraps a failed decode attempt with capability context.
type TransientError struct {
	Capability string
	Err        error
}

// Error implements the error interface.
func (e *TransientError) Error() string {
	return fmt.Sprintf("decode [%s]: %v", e.Capability, e.Err)
}

// Unwrap returns the underlying error.
func (e *TransientError) Unwrap() error {
	return e.Err
}

// Is reports ErrTransient so callers can classify without errors.As.
func (e *TransientError) Is(target error) bool {
	return target == ErrTransient
}

// ChainError aggregates errors from all capabilities in a chain.
type ChainError struct {
	Errors []error
}

// Error implements the error interface.
func (e *ChainError) Error() string {
	if len(e.Errors) == 0 {
		return "decode chain: no errors recorded"
	}
	if len(e.Errors) == 1 {
		return fmt.Sprintf("decode chain: %v", e.Errors[0])
	}
	return fmt.Sprintf("decode chain: all %d capabilities failed, last error: %v",
		len(e.Errors), e.Errors[len(e.Errors)-1])
}

// Unwrap returns every recorded error.
func (e *ChainError) Unwrap() []error {
	return e.Errors
}
