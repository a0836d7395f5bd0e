package alert

import (
	"context"
	"fmt"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/sourcegraph/conc"

	"github.com/b1zarr-e/ODTL/internal/errors"
	"github.com/b1zarr-e/ODTL/internal/event"
	"github.com/b1zarr-e/ODTL/internal/logging"
)

// Command sent to the actuator for every alert.
const Command = "JUMPSCARE"

// DefaultTeardownWait bounds how long Trigger waits for the visual alert.
const DefaultTeardownWait = 2500 * time.Millisecond

// Notifier delivers a command to the effect device. It must not block for
// long and must not fail loudly.
type Notifier interface {
	Send(command string)
}

// Presenter shows a visual alert; see Visual.
type Presenter interface {
	Show(ctx context.Context, message string) <-chan struct{}
}

// Outcome reports what Trigger did.
type Outcome int

const (
	// Started means a new alert session was created.
	Started Outcome = iota
	// Suppressed means an alert was already live.
	Suppressed
)

func (o Outcome) String() string {
	switch o {
	case Started:
		return "started"
	case Suppressed:
		return "suppressed"
	default:
		return "unknown"
	}
}

// Options configures a Coordinator.
type Options struct {
	Actuator Notifier
	Audio    Player
	Visual   Presenter
	// TeardownWait bounds how long Trigger blocks for the visual teardown.
	TeardownWait time.Duration
	// StrictDedup creates alert sessions with compare-and-swap. When false
	// the liveness check and the store are separate steps, so two
	// concurrent triggers can both start a session.
	StrictDedup bool
	Logger      *logging.Logger
	Bus         *event.Bus
}

// Coordinator turns triggers into at most one live alert session.
type Coordinator struct {
	actuator     Notifier
	audio        Player
	visual       Presenter
	teardownWait time.Duration
	strict       bool
	logger       *logging.Logger
	bus          *event.Bus

	// live holds the start of the live session in unix nanos, or 0 when
	// no session is live. One word carries both facts so Active and
	// StartedAt always agree.
	live atomic.Int64

	started    atomic.Int64
	suppressed atomic.Int64

	inflight conc.WaitGroup
}

// NewCoordinator creates a Coordinator. A nil Actuator or Audio is
// skipped; Visual is required.
func NewCoordinator(opts Options) *Coordinator {
	if opts.TeardownWait <= 0 {
		opts.TeardownWait = DefaultTeardownWait
	}
	if opts.Audio == nil {
		opts.Audio = Silent{}
	}
	if opts.Logger == nil {
		opts.Logger = logging.NopLogger()
	}
	return &Coordinator{
		actuator:     opts.Actuator,
		audio:        opts.Audio,
		visual:       opts.Visual,
		teardownWait: opts.TeardownWait,
		strict:       opts.StrictDedup,
		logger:       opts.Logger,
		bus:          opts.Bus,
	}
}

// Trigger starts an alert session for label unless one is live. When it
// starts one it blocks until the visual alert is torn down, the teardown
// wait expires or ctx ends, whichever comes first.
func (c *Coordinator) Trigger(ctx context.Context, label string) Outcome {
	start := time.Now()
	if !c.acquire(start) {
		c.suppressed.Add(1)
		c.logger.Debug("alert suppressed", "label", label)
		c.bus.Publish(event.NewAlertSuppressedEvent(label))
		return Suppressed
	}

	c.started.Add(1)
	c.logger.Info("alert started", "label", label)
	c.bus.Publish(event.NewAlertStartedEvent(label))

	if c.actuator != nil {
		c.inflight.Go(func() { c.actuator.Send(Command) })
	}
	c.inflight.Go(func() {
		if err := c.audio.Play(ctx); err != nil && ctx.Err() == nil {
			c.logPlayback(err)
		}
	})

	shown := c.visual.Show(ctx, label)
	c.inflight.Go(func() {
		<-shown
		c.live.Store(0)
		c.bus.Publish(event.NewAlertFinishedEvent(label, time.Since(start)))
	})

	timer := time.NewTimer(c.teardownWait)
	defer timer.Stop()
	select {
	case <-shown:
	case <-timer.C:
		c.logger.Warn("visual teardown still pending", "waited", c.teardownWait.String())
	case <-ctx.Done():
	}
	return Started
}

// acquire marks a session started at now as live. It reports false when
// one already is.
func (c *Coordinator) acquire(now time.Time) bool {
	stamp := now.UnixNano()
	if stamp == 0 {
		stamp = 1
	}
	if c.strict {
		return c.live.CompareAndSwap(0, stamp)
	}
	if c.live.Load() != 0 {
		return false
	}
	// Yield between check and set so concurrent callers can interleave.
	runtime.Gosched()
	c.live.Store(stamp)
	return true
}

func (c *Coordinator) logPlayback(err error) {
	if errors.Is(err, errors.ErrAssetMissing) {
		c.logger.Info("sound asset missing, playing nothing", "error", err.Error())
		return
	}
	c.logger.Warn("sound playback failed", "error", err.Error())
}

// Active reports whether a visual alert is currently live.
func (c *Coordinator) Active() bool { return c.live.Load() != 0 }

// StartedAt returns when the live session began, or the zero time.
func (c *Coordinator) StartedAt() time.Time {
	stamp := c.live.Load()
	if stamp == 0 {
		return time.Time{}
	}
	return time.Unix(0, stamp)
}

// Started returns how many sessions have been created.
func (c *Coordinator) Started() int { return int(c.started.Load()) }

// Suppressed returns how many triggers were dropped as duplicates.
func (c *Coordinator) Suppressed() int { return int(c.suppressed.Load()) }

// Wait blocks until every actuator send, sound and visual alert started so
// far has finished.
func (c *Coordinator) Wait() {
	if r := c.inflight.WaitAndRecover(); r != nil {
		c.logger.Error("alert task panicked", "error", fmt.Sprint(r.Value))
	}
}
