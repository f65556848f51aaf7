package engine

import (
	"errors"
	"fmt"

	"github.com/totoccar/SpaceSituationalAwareness/internal/age"
	"github.com/totoccar/SpaceSituationalAwareness/internal/features"
	"github.com/totoccar/SpaceSituationalAwareness/internal/propagation"
	"github.com/totoccar/SpaceSituationalAwareness/internal/tle"
)

// ErrorKind is the top-level failure category reported to callers.
type ErrorKind string

const (
	ValidationError     ErrorKind = "ValidationError"
	ParseError          ErrorKind = "ParseError"
	PropagationError    ErrorKind = "PropagationError"
	FeatureError        ErrorKind = "FeatureError"
	ClassificationError ErrorKind = "ClassificationError"
	Canceled            ErrorKind = "Canceled"
)

// Error is the single failure value the pipeline returns. Detail carries the
// originating sub-kind (e.g. ChecksumMismatch, DecayedOrbit). TLEInfo is set
// only when the element set parsed and its age is safe to report.
type Error struct {
	Kind    ErrorKind `json:"kind" yaml:"kind"`
	Detail  string    `json:"detail,omitempty" yaml:"detail,omitempty"`
	Message string    `json:"message" yaml:"message"`
	TLEInfo *age.Info `json:"tle_info,omitempty" yaml:"tle_info,omitempty"`
	Err     error     `json:"-" yaml:"-"`
}

func (e *Error) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s (%s): %s", e.Kind, e.Detail, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

func fromParseError(err error) *Error {
	var pe *tle.ParseError
	if !errors.As(err, &pe) {
		return &Error{Kind: ParseError, Message: err.Error(), Err: err}
	}
	kind := ParseError
	// A request without two lines is a malformed request, not a bad TLE.
	if pe.Kind == tle.WrongLineCount {
		kind = ValidationError
	}
	return &Error{Kind: kind, Detail: string(pe.Kind), Message: pe.Error(), Err: err}
}

func fromPropagationError(err error, info *age.Info) *Error {
	e := &Error{Kind: PropagationError, Message: err.Error(), TLEInfo: info, Err: err}
	var pe *propagation.Error
	if errors.As(err, &pe) {
		e.Detail = string(pe.Kind)
	}
	return e
}

func fromFeatureError(err error) *Error {
	e := &Error{Kind: FeatureError, Message: err.Error(), Err: err}
	var fe *features.Error
	if errors.As(err, &fe) {
		e.Detail = string(fe.Kind)
	}
	return e
}
