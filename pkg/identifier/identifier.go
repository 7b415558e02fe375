// Package identifier validates worker badge identifiers.
//
// An ID is one uppercase letter followed by exactly three digits ("W007").
// The only ways to obtain a non-zero ID are Parse and Extract, so holding
// one means the value already passed validation.
package identifier

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// Rejection reasons.
var (
	// ErrUnrecognizedFormat means no candidate could be found in the payload.
	ErrUnrecognizedFormat = errors.New("identifier: unrecognized format")

	// ErrInvalidShape means a candidate was found but is not [A-Z]\d{3}.
	ErrInvalidShape = errors.New("identifier: invalid identifier shape")
)

// Marker prefixes the identifier in badges printed by the worker registry.
const Marker = "worker:"

var (
	strictPattern = regexp.MustCompile(`^[A-Z]\d{3}$`)
	wholePattern  = regexp.MustCompile(`(?i)^[a-z]\d{3}$`)
	markerPattern = regexp.MustCompile(regexp.QuoteMeta(Marker) + `(\w+)`)
	loosePattern  = regexp.MustCompile(`(?i)[a-z]\d+`)
)

// ID is a validated worker identifier.
type ID struct {
	value string
}

// Parse validates s against the strict pattern without any normalization.
func Parse(s string) (ID, error) {
	if !strictPattern.MatchString(s) {
		return ID{}, fmt.Errorf("%w: %q", ErrInvalidShape, s)
	}
	return ID{value: s}, nil
}

// MustParse is like Parse but panics on invalid input. For tests and constants.
func MustParse(s string) ID {
	id, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return id
}

// String returns the identifier text.
func (id ID) String() string { return id.value }

// IsZero reports whether id is the zero value.
func (id ID) IsZero() bool { return id.value == "" }

// MarshalJSON encodes the identifier as a JSON string, or null when zero.
func (id ID) MarshalJSON() ([]byte, error) {
	if id.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(id.value)
}

// UnmarshalJSON decodes and re-validates an identifier.
func (id *ID) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*id = ID{}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := Parse(s)
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

// Extract finds and validates an identifier in decoded badge text.
//
// Candidates are taken, in order, from a "worker:<value>" marker, from the
// whole text when it already has the identifier shape, or from the first
// letter-plus-digits run. The candidate must then match [A-Z]\d{3}
// exactly; longer digit runs are rejected, never truncated.
func Extract(text string) (ID, error) {
	text = strings.TrimSpace(text)

	candidate, ok := candidateOf(text)
	if !ok {
		return ID{}, ErrUnrecognizedFormat
	}
	return Parse(candidate)
}

func candidateOf(text string) (string, bool) {
	if m := markerPattern.FindStringSubmatch(text); m != nil {
		return m[1], true
	}
	if wholePattern.MatchString(text) {
		return strings.ToUpper(text), true
	}
	if m := loosePattern.FindString(text); m != "" {
		return strings.ToUpper(m), true
	}
	return "", false
}
