// Package arbiter runs detection windows: a fixed-duration race between
// detectors in which every detector that fires reports a trigger.
//
// The arbiter does not pick a winner. Two detectors that both fire inside
// one window both produce a trigger; deduplicating the visible effect is
// the alert coordinator's job.
package arbiter

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sourcegraph/conc"

	"github.com/b1zarr-e/ODTL/internal/detect"
	"github.com/b1zarr-e/ODTL/internal/event"
	"github.com/b1zarr-e/ODTL/internal/logging"
)

// DefaultPollInterval is used when Options.PollInterval is zero.
const DefaultPollInterval = 100 * time.Millisecond

// Options configures an Arbiter.
type Options struct {
	// PollInterval is the minimum spacing between samples of one detector.
	// It is clamped below the window duration. Streaming sensors (see
	// detect.Streamer) are read back to back and ignore it.
	PollInterval time.Duration
	// CancelOnTrigger stops the remaining detector tasks as soon as any
	// detector fires. Off by default: siblings run to their own completion.
	CancelOnTrigger bool
	Logger          *logging.Logger
	Bus             *event.Bus
}

// Arbiter starts detection windows.
type Arbiter struct {
	pollInterval    time.Duration
	cancelOnTrigger bool
	logger          *logging.Logger
	bus             *event.Bus
}

// New creates an Arbiter.
func New(opts Options) *Arbiter {
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	if opts.Logger == nil {
		opts.Logger = logging.NopLogger()
	}
	return &Arbiter{
		pollInterval:    opts.PollInterval,
		cancelOnTrigger: opts.CancelOnTrigger,
		logger:          opts.Logger,
		bus:             opts.Bus,
	}
}

// Trigger is reported once by each detector that fires inside a window.
type Trigger struct {
	DetectorID string
	Label      string
	// After is the time since the window opened.
	After time.Duration
}

// Window is one running detection window. Its trigger channel is closed
// once the duration has elapsed and every detector has released its
// sensor, so ranging over Triggers returns after about the window
// duration whatever the detectors do.
type Window struct {
	start    time.Time
	duration time.Duration

	triggers chan Trigger
	done     chan struct{}

	detected  atomic.Int64
	mu        sync.Mutex
	lastLabel string
}

// RunWindow opens every detector and polls them concurrently until d has
// elapsed or ctx ends. Each call returns a new window.
func (a *Arbiter) RunWindow(ctx context.Context, detectors []detect.Detector, d time.Duration) *Window {
	w := &Window{
		start:    time.Now(),
		duration: d,
		// Each task reports at most once, so sends never block.
		triggers: make(chan Trigger, len(detectors)),
		done:     make(chan struct{}),
	}

	windowCtx, cancelWindow := context.WithTimeout(ctx, d)
	taskCtx, cancelTasks := context.WithCancel(windowCtx)

	interval := a.pollInterval
	if interval >= d {
		interval = d / 2
	}
	if interval <= 0 {
		interval = time.Millisecond
	}

	ids := make([]string, len(detectors))
	for i, det := range detectors {
		ids[i] = det.ID()
	}
	a.bus.Publish(event.NewWindowOpenedEvent(ids, d))
	a.logger.Debug("detection window opened", "detectors", ids, "duration", d.String())

	var tasks conc.WaitGroup
	for _, det := range detectors {
		tasks.Go(func() {
			if a.poll(taskCtx, w, det, interval) && a.cancelOnTrigger {
				cancelTasks()
			}
		})
	}

	go func() {
		if r := tasks.WaitAndRecover(); r != nil {
			a.logger.Error("detector task panicked", "error", fmt.Sprint(r.Value))
		}
		// The window always lasts its full duration unless the caller
		// cancels; sensors are already released at this point.
		<-windowCtx.Done()
		cancelTasks()
		cancelWindow()

		close(w.triggers)
		elapsed := time.Since(w.start)
		a.logger.Debug("detection window closed", "detected", w.Detected(), "elapsed", elapsed.String())
		a.bus.Publish(event.NewWindowClosedEvent(w.Detected(), elapsed))
		close(w.done)
	}()

	return w
}

// poll samples one detector until it fires or ctx ends. It reports
// whether the detector fired.
func (a *Arbiter) poll(ctx context.Context, w *Window, det detect.Detector, interval time.Duration) bool {
	log := a.logger.WithDetector(det.ID())

	probe, err := det.Open(ctx)
	if err != nil {
		if ctx.Err() == nil {
			log.Warn("sensor unavailable for this window", "error", err.Error())
		}
		return false
	}
	defer func() {
		if err := probe.Close(); err != nil {
			log.Debug("sensor close failed", "error", err.Error())
		}
	}()

	// A streaming sensor blocks in Sample until the next frame is ready,
	// so it is read back to back; waiting a tick would let the stream
	// back up and every later frame would be stale.
	streaming := detect.IsStreaming(probe)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	readFailures := 0
	for {
		ok, err := probe.Sample(ctx)
		if ctx.Err() != nil {
			return false
		}
		switch {
		case err != nil:
			readFailures++
			if readFailures == 1 {
				log.Warn("sensor read failed", "error", err.Error())
			}
		case ok:
			w.report(Trigger{DetectorID: det.ID(), Label: det.Label(), After: time.Since(w.start)})
			log.Info("detection", "label", det.Label())
			a.bus.Publish(event.NewDetectionEvent(det.ID(), det.Label()))
			return true
		case streaming:
			continue
		}

		select {
		case <-ctx.Done():
			return false
		case <-ticker.C:
		}
	}
}

func (w *Window) report(t Trigger) {
	w.mu.Lock()
	w.lastLabel = t.Label
	w.mu.Unlock()
	w.detected.Add(1)
	w.triggers <- t
}

// Triggers returns the window's trigger stream. It is closed when the
// window ends.
func (w *Window) Triggers() <-chan Trigger { return w.triggers }

// Done is closed when the window has ended and its sensors are released.
func (w *Window) Done() <-chan struct{} { return w.done }

// Wait blocks until the window has ended.
func (w *Window) Wait() { <-w.done }

// Detected returns how many triggers have been reported so far.
func (w *Window) Detected() int { return int(w.detected.Load()) }

// LastLabel returns the label of the most recent trigger, or "".
func (w *Window) LastLabel() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastLabel
}

// Start returns when the window opened.
func (w *Window) Start() time.Time { return w.start }

// Duration returns the configured window length.
func (w *Window) Duration() time.Duration { return w.duration }
