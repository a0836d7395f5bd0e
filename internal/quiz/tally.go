package quiz

import (
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/b1zarr-e/ODTL/internal/event"
)

// Summary is a count of what happened during a session.
type Summary struct {
	Challenges       int
	Windows          int
	Triggers         int
	AlertsStarted    int
	AlertsSuppressed int
	ActuatorFailures int
}

// String formats the summary for the end-of-game report.
func (s Summary) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Challenges played:  %d\n", s.Challenges)
	fmt.Fprintf(&b, "Detection windows:  %d\n", s.Windows)
	fmt.Fprintf(&b, "Triggers:           %d\n", s.Triggers)
	fmt.Fprintf(&b, "Jumpscares:         %d (%d suppressed)\n", s.AlertsStarted, s.AlertsSuppressed)
	if s.ActuatorFailures > 0 {
		fmt.Fprintf(&b, "Actuator failures:  %d\n", s.ActuatorFailures)
	}
	return b.String()
}

// Tally counts session events from a bus.
type Tally struct {
	bus *event.Bus
	sub string

	challenges atomic.Int64
	windows    atomic.Int64
	triggers   atomic.Int64
	started    atomic.Int64
	suppressed atomic.Int64
	failures   atomic.Int64
}

// NewTally subscribes a Tally to every event on bus.
func NewTally(bus *event.Bus) *Tally {
	t := &Tally{bus: bus}
	t.sub = bus.SubscribeAll(t.handle)
	return t
}

func (t *Tally) handle(e event.Event) {
	switch e.EventType() {
	case event.TypeChallengeResolved:
		t.challenges.Add(1)
	case event.TypeWindowClosed:
		t.windows.Add(1)
	case event.TypeDetection:
		t.triggers.Add(1)
	case event.TypeAlertStarted:
		t.started.Add(1)
	case event.TypeAlertSuppressed:
		t.suppressed.Add(1)
	case event.TypeActuatorFailed:
		t.failures.Add(1)
	}
}

// Summary returns the counts so far.
func (t *Tally) Summary() Summary {
	return Summary{
		Challenges:       int(t.challenges.Load()),
		Windows:          int(t.windows.Load()),
		Triggers:         int(t.triggers.Load()),
		AlertsStarted:    int(t.started.Load()),
		AlertsSuppressed: int(t.suppressed.Load()),
		ActuatorFailures: int(t.failures.Load()),
	}
}

// Close unsubscribes from the bus.
func (t *Tally) Close() {
	t.bus.Unsubscribe(t.sub)
}
