package scan

import (
	"errors"
	"fmt"

	"github.com/teslashibe/go-badgescan/pkg/camera"
	"github.com/teslashibe/go-badgescan/pkg/decode"
	"github.com/teslashibe/go-badgescan/pkg/identifier"
)

// Session and manager errors.
var (
	// ErrSessionUsed is returned when Start is called on a session that
	// already ran. Construct a new session to scan again.
	ErrSessionUsed = errors.New("scan: session already used")

	// ErrScanInProgress is returned when the camera is owned by a running session.
	ErrScanInProgress = errors.New("scan: scan in progress")

	// ErrUnknownSession is returned for handles the manager does not know.
	ErrUnknownSession = errors.New("scan: unknown session")
)

// ErrorKind classifies scan failures.
type ErrorKind int

const (
	KindNone ErrorKind = iota
	KindPermissionDenied
	KindDeviceUnavailable
	KindNoDecoderAvailable
	KindUnrecognizedFormat
	KindInvalidIdentifierShape
	KindTransientDecode
	KindInternal
)

var kindNames = map[ErrorKind]string{
	KindNone:                   "",
	KindPermissionDenied:       "permission_denied",
	KindDeviceUnavailable:      "device_unavailable",
	KindNoDecoderAvailable:     "no_decoder_available",
	KindUnrecognizedFormat:     "unrecognized_format",
	KindInvalidIdentifierShape: "invalid_identifier_shape",
	KindTransientDecode:        "transient_decode_error",
	KindInternal:               "internal",
}

func (k ErrorKind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Fatal reports whether the kind ends a session.
func (k ErrorKind) Fatal() bool {
	switch k {
	case KindPermissionDenied, KindDeviceUnavailable, KindNoDecoderAvailable, KindInternal:
		return true
	}
	return false
}

// MarshalText encodes the kind as its snake_case name.
func (k ErrorKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText decodes a snake_case kind name.
func (k *ErrorKind) UnmarshalText(b []byte) error {
	for kind, name := range kindNames {
		if name == string(b) {
			*k = kind
			return nil
		}
	}
	return fmt.Errorf("scan: unknown error kind %q", b)
}

// KindOf maps an error chain onto an ErrorKind.
func KindOf(err error) ErrorKind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, camera.ErrPermissionDenied):
		return KindPermissionDenied
	case errors.Is(err, camera.ErrDeviceUnavailable), errors.Is(err, camera.ErrInvalidConstraints):
		return KindDeviceUnavailable
	case errors.Is(err, decode.ErrNoDecoderAvailable):
		return KindNoDecoderAvailable
	case errors.Is(err, identifier.ErrUnrecognizedFormat):
		return KindUnrecognizedFormat
	case errors.Is(err, identifier.ErrInvalidShape):
		return KindInvalidIdentifierShape
	case errors.Is(err, decode.ErrTransient):
		return KindTransientDecode
	}
	return KindInternal
}
