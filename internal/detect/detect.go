// Package detect provides the sensors a detection window races: a vision
// detector backed by a face classifier and an audio detector backed by a
// loudness threshold.
//
// A [Detector] is opened once per window. The returned [Probe] owns the
// sensor handle until Close, so every exit path of a window task releases
// it. Sample answers whether the detection condition holds for one frame.
package detect

import (
	"context"
	"sync/atomic"
)

// Detector is a sensor that can be opened for the duration of one window.
type Detector interface {
	// ID identifies the detector in logs and events (e.g. "camera").
	ID() string
	// Label is the message shown when this detector triggers an alert.
	Label() string
	// Open acquires the underlying sensor. An error means the detector
	// contributes nothing to the current window.
	Open(ctx context.Context) (Probe, error)
}

// Probe is an opened sensor.
type Probe interface {
	// Sample reads one frame and reports whether the condition holds.
	Sample(ctx context.Context) (bool, error)
	// Close releases the sensor. It is safe to call more than once.
	Close() error
}

// Streamer is implemented by sources and opened sensors whose reads block
// until fresh input arrives, such as a live microphone pipe. The arbiter
// samples a streaming sensor back to back instead of once per poll
// interval, so it never falls behind the stream.
type Streamer interface {
	Streaming() bool
}

// IsStreaming reports whether v implements Streamer and says yes.
func IsStreaming(v any) bool {
	s, ok := v.(Streamer)
	return ok && s.Streaming()
}

// Fixed is a detector whose answer never changes. It backs dry runs and
// tests.
type Fixed struct {
	id       string
	label    string
	detected bool
	opens    atomic.Int64
	closes   atomic.Int64
}

// NewFixed returns a detector that always answers detected.
func NewFixed(id, label string, detected bool) *Fixed {
	return &Fixed{id: id, label: label, detected: detected}
}

// Never returns a detector that never detects.
func Never(id string) *Fixed {
	return NewFixed(id, "", false)
}

func (f *Fixed) ID() string    { return f.id }
func (f *Fixed) Label() string { return f.label }

// Open always succeeds.
func (f *Fixed) Open(context.Context) (Probe, error) {
	f.opens.Add(1)
	return &fixedProbe{owner: f}, nil
}

// Opens returns how many probes have been opened.
func (f *Fixed) Opens() int64 { return f.opens.Load() }

// Closes returns how many probes have been released.
func (f *Fixed) Closes() int64 { return f.closes.Load() }

type fixedProbe struct {
	owner  *Fixed
	closed atomic.Bool
}

func (p *fixedProbe) Sample(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	return p.owner.detected, nil
}

func (p *fixedProbe) Close() error {
	if p.closed.CompareAndSwap(false, true) {
		p.owner.closes.Add(1)
	}
	return nil
}
