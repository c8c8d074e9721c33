// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package tools

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
)

// DuplicateToolError is returned by Register when a tool name is taken.
type DuplicateToolError struct {
	Name string
}

func (e *DuplicateToolError) Error() string {
	return fmt.Sprintf("tool %q already registered", e.Name)
}

// ArgumentValidationError reports a tool call whose arguments do not match
// the tool's spec. Param names the offending parameter when there is one.
type ArgumentValidationError struct {
	Tool   string
	Param  string
	Reason string
}

func (e *ArgumentValidationError) Error() string {
	if e.Param == "" {
		return fmt.Sprintf("invalid call to %s: %s", e.Tool, e.Reason)
	}
	return fmt.Sprintf("invalid argument %q for %s: %s", e.Param, e.Tool, e.Reason)
}

// IntentParseError reports model output that cannot be turned into a
// final answer or a set of tool calls.
type IntentParseError struct {
	Reason string
	// Raw is the offending fragment of model output, possibly truncated.
	Raw string
	Err error
}

func (e *IntentParseError) Error() string {
	msg := "unusable model output: " + e.Reason
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *IntentParseError) Unwrap() error { return e.Err }

// FailureKind qualifies a fatal adapter failure.
type FailureKind string

const (
	KindAuth              FailureKind = "auth"
	KindNotFound          FailureKind = "not-found"
	KindUnsupportedFormat FailureKind = "unsupported-format"
	KindTooLarge          FailureKind = "too-large"
	KindInvalid           FailureKind = "invalid"
	KindUnreachable       FailureKind = "unreachable"
)

// TransientAdapterError is a retryable infrastructure failure: timeout,
// rate limit, unreachable host, 5xx.
type TransientAdapterError struct {
	Tool string
	Op   string
	Err  error
}

func (e *TransientAdapterError) Error() string {
	return prefix(e.Tool, e.Op) + e.Err.Error()
}

func (e *TransientAdapterError) Unwrap() error { return e.Err }

// FatalAdapterError is a failure that retrying cannot fix.
type FatalAdapterError struct {
	Tool string
	Op   string
	Kind FailureKind
	Err  error
}

func (e *FatalAdapterError) Error() string {
	return prefix(e.Tool, e.Op) + string(e.Kind) + ": " + e.Err.Error()
}

func (e *FatalAdapterError) Unwrap() error { return e.Err }

func prefix(tool, op string) string {
	switch {
	case tool != "" && op != "":
		return tool + ": " + op + ": "
	case tool != "":
		return tool + ": "
	case op != "":
		return op + ": "
	}
	return ""
}

// Transient wraps err as a TransientAdapterError for operation op.
func Transient(op string, err error) error {
	return &TransientAdapterError{Op: op, Err: err}
}

// Fatal wraps err as a FatalAdapterError of the given kind.
func Fatal(kind FailureKind, op string, err error) error {
	return &FatalAdapterError{Op: op, Kind: kind, Err: err}
}

// Fatalf builds a FatalAdapterError from a format string.
func Fatalf(kind FailureKind, op, format string, args ...any) error {
	return Fatal(kind, op, fmt.Errorf(format, args...))
}

// ErrorClass groups errors by how the retry policy treats them.
type ErrorClass int

const (
	ClassFatal ErrorClass = iota
	ClassTransient
	ClassValidation
	ClassCanceled
)

func (c ErrorClass) String() string {
	switch c {
	case ClassTransient:
		return "transient"
	case ClassValidation:
		return "validation"
	case ClassCanceled:
		return "canceled"
	default:
		return "fatal"
	}
}

// statusCoder is implemented by errors that carry an HTTP status.
type statusCoder interface {
	StatusCode() int
}

// TransientStatus reports whether an HTTP status is worth retrying.
func TransientStatus(code int) bool {
	switch {
	case code == http.StatusRequestTimeout, code == http.StatusTooEarly, code == http.StatusTooManyRequests:
		return true
	case code >= 500:
		return true
	}
	return false
}

// KindForStatus maps a non-retryable HTTP status to a failure kind.
func KindForStatus(code int) FailureKind {
	switch code {
	case http.StatusUnauthorized, http.StatusForbidden:
		return KindAuth
	case http.StatusNotFound, http.StatusGone:
		return KindNotFound
	case http.StatusRequestEntityTooLarge:
		return KindTooLarge
	case http.StatusUnsupportedMediaType:
		return KindUnsupportedFormat
	}
	return KindInvalid
}

// Classify decides how the retry policy treats err.
func Classify(err error) ErrorClass {
	if err == nil {
		return ClassFatal
	}
	var ave *ArgumentValidationError
	if errors.As(err, &ave) {
		return ClassValidation
	}
	if errors.Is(err, context.Canceled) {
		return ClassCanceled
	}
	var te *TransientAdapterError
	if errors.As(err, &te) {
		return ClassTransient
	}
	var fe *FatalAdapterError
	if errors.As(err, &fe) {
		return ClassFatal
	}
	var sc statusCoder
	if errors.As(err, &sc) {
		if TransientStatus(sc.StatusCode()) {
			return ClassTransient
		}
		return ClassFatal
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ClassTransient
	}
	var ne net.Error
	if errors.As(err, &ne) {
		return ClassTransient
	}
	var ue *url.Error
	if errors.As(err, &ue) {
		return ClassTransient
	}
	return ClassFatal
}

// withTool stamps the tool name onto adapter errors that lack one.
func withTool(tool string, err error) error {
	var te *TransientAdapterError
	if errors.As(err, &te) && te.Tool == "" {
		te.Tool = tool
	}
	var fe *FatalAdapterError
	if errors.As(err, &fe) && fe.Tool == "" {
		fe.Tool = tool
	}
	var ave *ArgumentValidationError
	if errors.As(err, &ave) && ave.Tool == "" {
		ave.Tool = tool
	}
	return err
}

// StatusFailure wraps an HTTP status error: 408, 425, 429 and 5xx are
// transient, everything else is fatal with the matching kind.
func StatusFailure(op string, code int, err error) error {
	if TransientStatus(code) {
		return Transient(op, err)
	}
	return Fatal(KindForStatus(code), op, err)
}
