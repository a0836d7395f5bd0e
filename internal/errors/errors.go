// Package errors provides the error taxonomy for odtl.
//
// Every sensor read, transport write, asset load and prompt returns one of
// the typed errors below so the owner of each boundary can apply the
// log-and-continue policy explicitly:
//
//   - SensorError: a detector could not open or read its sensor
//   - TransportError: the actuator link could not be opened or written
//   - AssetError: an image or sound asset is missing or unplayable
//   - InputError: an operator answer was invalid or input closed
//   - FaultError: an unexpected failure in the sequencing loop
//
// Only FaultError (and context cancellation) ends a session; everything
// else is recoverable and is logged at the boundary where it occurs.
//
// # Usage
//
//	err := errors.NewSensorError("open camera", errors.ErrSensorUnavailable).WithDetector("camera")
//
//	if errors.Is(err, errors.ErrSensorUnavailable) { ... }
//
//	var sensorErr *errors.SensorError
//	if errors.As(err, &sensorErr) { ... }
//
//	if errors.IsRecoverable(err) { log and continue }
package errors

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Re-export standard library functions for convenience.
var (
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
	New    = errors.New
	Join   = errors.Join
)

// Severity represents the severity level of an error.
type Severity int

const (
	// SeverityDebug is for conditions that only matter when debugging.
	SeverityDebug Severity = iota
	// SeverityInfo is for expected conditions such as a missing optional asset.
	SeverityInfo
	// SeverityWarning is for degraded behavior the session survives.
	SeverityWarning
	// SeverityError is for failures of a single operation.
	SeverityError
	// SeverityCritical is for failures that end the session.
	SeverityCritical
)

// String returns the string representation of the severity level.
func (s Severity) String() string {
	switch s {
	case SeverityDebug:
		return "debug"
	case SeverityInfo:
		return "info"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	case SeverityCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// -----------------------------------------------------------------------------
// Sentinel Errors
// -----------------------------------------------------------------------------

// Sensor sentinels
var (
	// ErrSensorUnavailable indicates a sensor could not be opened.
	ErrSensorUnavailable = New("sensor unavailable")
	// ErrSensorRead indicates a single frame could not be read.
	ErrSensorRead = New("sensor read failed")
)

// Transport sentinels
var (
	// ErrTransportClosed indicates the actuator link is not connected.
	ErrTransportClosed = New("transport not connected")
	// ErrTransportWrite indicates a write to the actuator failed.
	ErrTransportWrite = New("transport write failed")
	// ErrUnknownTransport indicates an unsupported transport name.
	ErrUnknownTransport = New("unknown transport")
)

// Asset sentinels
var (
	// ErrAssetMissing indicates an optional asset does not exist.
	ErrAssetMissing = New("asset missing")
	// ErrPlaybackFailed indicates an audio clip could not be played.
	ErrPlaybackFailed = New("playback failed")
)

// Input sentinels
var (
	// ErrInvalidChoice indicates an answer outside the option set.
	ErrInvalidChoice = New("invalid choice")
	// ErrInputClosed indicates the operator input stream ended.
	ErrInputClosed = New("input closed")
)

// Session sentinels
var (
	// ErrSessionFault indicates an unexpected failure in the sequencing loop.
	ErrSessionFault = New("session fault")
	// ErrCatalogInvalid indicates a challenge catalog failed validation.
	ErrCatalogInvalid = New("catalog invalid")
)

// -----------------------------------------------------------------------------
// Base Error
// -----------------------------------------------------------------------------

// GameError is implemented by every typed error in this package.
type GameError interface {
	error
	Unwrap() error
	Severity() Severity
	// IsRecoverable reports whether the session may continue after the error.
	IsRecoverable() bool
}

type baseError struct {
	message     string
	cause       error
	severity    Severity
	recoverable bool
}

func (e *baseError) Unwrap() error       { return e.cause }
func (e *baseError) Severity() Severity  { return e.severity }
func (e *baseError) IsRecoverable() bool { return e.recoverable }

// format renders "kind [k=v, ...]: message: cause".
func (e *baseError) format(kind string, parts ...string) string {
	var ctx []string
	for i := 0; i+1 < len(parts); i += 2 {
		if parts[i+1] != "" {
			ctx = append(ctx, parts[i]+"="+parts[i+1])
		}
	}

	prefix := kind
	if len(ctx) > 0 {
		prefix = fmt.Sprintf("%s [%s]", kind, strings.Join(ctx, ", "))
	}
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", prefix, e.message)
}

// -----------------------------------------------------------------------------
// Domain Errors
// -----------------------------------------------------------------------------

// SensorError is returned when a detector cannot open or read its sensor.
type SensorError struct {
	baseError
	DetectorID string
}

// NewSensorError creates a SensorError.
func NewSensorError(message string, cause error) *SensorError {
	return &SensorError{baseError: baseError{
		message:     message,
		cause:       cause,
		severity:    SeverityWarning,
		recoverable: true,
	}}
}

// WithDetector records which detector failed.
func (e *SensorError) WithDetector(id string) *SensorError {
	e.DetectorID = id
	return e
}

func (e *SensorError) Error() string {
	return e.format("sensor error", "detector", e.DetectorID)
}

// TransportError is returned when the actuator link cannot be opened or
// written.
type TransportError struct {
	baseError
	Transport string
	Address   string
}

// NewTransportError creates a TransportError.
func NewTransportError(message string, cause error) *TransportError {
	return &TransportError{baseError: baseError{
		message:     message,
		cause:       cause,
		severity:    SeverityError,
		recoverable: true,
	}}
}

// WithTransport records the transport kind and address.
func (e *TransportError) WithTransport(kind, address string) *TransportError {
	e.Transport = kind
	e.Address = address
	return e
}

func (e *TransportError) Error() string {
	return e.format("transport error", "transport", e.Transport, "address", e.Address)
}

// AssetError is returned when an image or sound cannot be used.
type AssetError struct {
	baseError
	Path string
}

// NewAssetError creates an AssetError. Missing assets are informational;
// other causes are warnings.
func NewAssetError(path string, cause error) *AssetError {
	severity := SeverityWarning
	if errors.Is(cause, ErrAssetMissing) {
		severity = SeverityInfo
	}
	return &AssetError{
		baseError: baseError{
			message:     "asset unusable",
			cause:       cause,
			severity:    severity,
			recoverable: true,
		},
		Path: path,
	}
}

func (e *AssetError) Error() string {
	return e.format("asset error", "path", e.Path)
}

// InputError is returned when operator input cannot be used.
type InputError struct {
	baseError
	Input string
}

// NewInputError creates an InputError for the raw input that was rejected.
func NewInputError(input string, cause error) *InputError {
	return &InputError{
		baseError: baseError{
			message:     "rejected input",
			cause:       cause,
			severity:    SeverityDebug,
			recoverable: !errors.Is(cause, ErrInputClosed),
		},
		Input: input,
	}
}

func (e *InputError) Error() string {
	return e.format("input error", "input", fmt.Sprintf("%q", e.Input))
}

// FaultError wraps an unexpected failure in the sequencing loop. It always
// ends the session.
type FaultError struct {
	baseError
	Challenge int
}

// NewFaultError creates a FaultError for the challenge at the given index.
func NewFaultError(challenge int, cause error) *FaultError {
	return &FaultError{
		baseError: baseError{
			message:  "session aborted",
			cause:    cause,
			severity: SeverityCritical,
		},
		Challenge: challenge,
	}
}

func (e *FaultError) Error() string {
	return e.format("fault", "challenge", fmt.Sprint(e.Challenge))
}

// Is makes every FaultError match ErrSessionFault.
func (e *FaultError) Is(target error) bool {
	return target == ErrSessionFault
}

// -----------------------------------------------------------------------------
// Classification Helpers
// -----------------------------------------------------------------------------

// IsRecoverable reports whether a session may continue after err.
// Nil errors are recoverable; context cancellation and faults are not.
// Errors from outside this package are treated as faults.
func IsRecoverable(err error) bool {
	if err == nil {
		return true
	}
	if Is(err, context.Canceled) || Is(err, context.DeadlineExceeded) {
		return false
	}

	var gameErr GameError
	if As(err, &gameErr) {
		return gameErr.IsRecoverable()
	}
	return false
}

// GetSeverity returns the severity of err, SeverityError for foreign errors
// and SeverityDebug for nil.
func GetSeverity(err error) Severity {
	if err == nil {
		return SeverityDebug
	}

	var gameErr GameError
	if As(err, &gameErr) {
		return gameErr.Severity()
	}
	return SeverityError
}
