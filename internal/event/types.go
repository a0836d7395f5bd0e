package event

import "time"

// Event is the interface that all events must implement.
type Event interface {
	// EventType returns "category.action", e.g. "alert.started".
	EventType() string

	// Timestamp returns when the event occurred.
	Timestamp() time.Time
}

// Event type identifiers.
const (
	TypeChallengeStarted  = "challenge.started"
	TypeChallengeResolved = "challenge.resolved"
	TypeWindowOpened      = "window.opened"
	TypeWindowClosed      = "window.closed"
	TypeDetection         = "detection.triggered"
	TypeAlertStarted      = "alert.started"
	TypeAlertSuppressed   = "alert.suppressed"
	TypeAlertFinished     = "alert.finished"
	TypeActuatorFailed    = "actuator.failed"
	TypeSessionEnded      = "session.ended"
)

type baseEvent struct {
	eventType string
	timestamp time.Time
}

func (e baseEvent) EventType() string    { return e.eventType }
func (e baseEvent) Timestamp() time.Time { return e.timestamp }

func newBaseEvent(eventType string) baseEvent {
	return baseEvent{eventType: eventType, timestamp: time.Now()}
}

// -----------------------------------------------------------------------------
// Challenge Events
// -----------------------------------------------------------------------------

// ChallengeStartedEvent is emitted when the sequencer begins a challenge.
type ChallengeStartedEvent struct {
	baseEvent
	Index int    // Position in the shuffled order
	Kind  string // plain, camera or microphone
	Text  string
}

// NewChallengeStartedEvent creates a ChallengeStartedEvent.
func NewChallengeStartedEvent(index int, kind, text string) ChallengeStartedEvent {
	return ChallengeStartedEvent{
		baseEvent: newBaseEvent(TypeChallengeStarted),
		Index:     index,
		Kind:      kind,
		Text:      text,
	}
}

// ChallengeResolvedEvent is emitted when the sequencer leaves a challenge.
type ChallengeResolvedEvent struct {
	baseEvent
	Index  int
	Kind   string
	Answer string // Chosen option for plain challenges
}

// NewChallengeResolvedEvent creates a ChallengeResolvedEvent.
func NewChallengeResolvedEvent(index int, kind, answer string) ChallengeResolvedEvent {
	return ChallengeResolvedEvent{
		baseEvent: newBaseEvent(TypeChallengeResolved),
		Index:     index,
		Kind:      kind,
		Answer:    answer,
	}
}

// -----------------------------------------------------------------------------
// Detection Events
// -----------------------------------------------------------------------------

// WindowOpenedEvent is emitted when a detection window starts.
type WindowOpenedEvent struct {
	baseEvent
	Detectors []string
	Duration  time.Duration
}

// NewWindowOpenedEvent creates a WindowOpenedEvent.
func NewWindowOpenedEvent(detectors []string, d time.Duration) WindowOpenedEvent {
	return WindowOpenedEvent{
		baseEvent: newBaseEvent(TypeWindowOpened),
		Detectors: detectors,
		Duration:  d,
	}
}

// WindowClosedEvent is emitted when a detection window has expired and all
// of its sensors are released.
type WindowClosedEvent struct {
	baseEvent
	Detected int
	Elapsed  time.Duration
}

// NewWindowClosedEvent creates a WindowClosedEvent.
func NewWindowClosedEvent(detected int, elapsed time.Duration) WindowClosedEvent {
	return WindowClosedEvent{
		baseEvent: newBaseEvent(TypeWindowClosed),
		Detected:  detected,
		Elapsed:   elapsed,
	}
}

// DetectionEvent is emitted for every trigger a detector task reports.
type DetectionEvent struct {
	baseEvent
	DetectorID string
	Label      string
}

// NewDetectionEvent creates a DetectionEvent.
func NewDetectionEvent(detectorID, label string) DetectionEvent {
	return DetectionEvent{
		baseEvent:  newBaseEvent(TypeDetection),
		DetectorID: detectorID,
		Label:      label,
	}
}

// -----------------------------------------------------------------------------
// Alert Events
// -----------------------------------------------------------------------------

// AlertStartedEvent is emitted when a new alert session is created.
type AlertStartedEvent struct {
	baseEvent
	Label string
}

// NewAlertStartedEvent creates an AlertStartedEvent.
func NewAlertStartedEvent(label string) AlertStartedEvent {
	return AlertStartedEvent{baseEvent: newBaseEvent(TypeAlertStarted), Label: label}
}

// AlertSuppressedEvent is emitted when a trigger arrives while an alert is
// already on screen.
type AlertSuppressedEvent struct {
	baseEvent
	Label string
}

// NewAlertSuppressedEvent creates an AlertSuppressedEvent.
func NewAlertSuppressedEvent(label string) AlertSuppressedEvent {
	return AlertSuppressedEvent{baseEvent: newBaseEvent(TypeAlertSuppressed), Label: label}
}

// AlertFinishedEvent is emitted when the visual alert has been torn down.
type AlertFinishedEvent struct {
	baseEvent
	Label    string
	Duration time.Duration
}

// NewAlertFinishedEvent creates an AlertFinishedEvent.
func NewAlertFinishedEvent(label string, d time.Duration) AlertFinishedEvent {
	return AlertFinishedEvent{baseEvent: newBaseEvent(TypeAlertFinished), Label: label, Duration: d}
}

// ActuatorFailedEvent is emitted when a command could not be delivered.
type ActuatorFailedEvent struct {
	baseEvent
	Command string
	Err     error
}

// NewActuatorFailedEvent creates an ActuatorFailedEvent.
func NewActuatorFailedEvent(command string, err error) ActuatorFailedEvent {
	return ActuatorFailedEvent{baseEvent: newBaseEvent(TypeActuatorFailed), Command: command, Err: err}
}

// -----------------------------------------------------------------------------
// Session Events
// -----------------------------------------------------------------------------

// SessionEndedEvent is emitted once when a session stops, for any reason.
type SessionEndedEvent struct {
	baseEvent
	Played int
	Reason string // completed, stopped, canceled or fault
}

// NewSessionEndedEvent creates a SessionEndedEvent.
func NewSessionEndedEvent(played int, reason string) SessionEndedEvent {
	return SessionEndedEvent{baseEvent: newBaseEvent(TypeSessionEnded), Played: played, Reason: reason}
}
