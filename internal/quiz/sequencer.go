// Package quiz drives a game session: it shuffles the challenge catalog,
// presents each challenge, collects answers and runs a detection window
// for sensor-gated challenges, handing every trigger to the alert
// coordinator.
package quiz

import (
	"context"
	"fmt"
	"io"
	"math/rand/v2"
	"slices"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sourcegraph/conc"

	"github.com/b1zarr-e/ODTL/internal/alert"
	"github.com/b1zarr-e/ODTL/internal/arbiter"
	"github.com/b1zarr-e/ODTL/internal/catalog"
	"github.com/b1zarr-e/ODTL/internal/detect"
	"github.com/b1zarr-e/ODTL/internal/errors"
	"github.com/b1zarr-e/ODTL/internal/event"
	"github.com/b1zarr-e/ODTL/internal/logging"
)

// Default timings.
const (
	DefaultWindow   = 3 * time.Second
	DefaultPauseMin = 2 * time.Second
	DefaultPauseMax = 4 * time.Second
)

// Reasons a session ends.
const (
	ReasonCompleted = "completed"
	ReasonStopped   = "stopped"
	ReasonCanceled  = "canceled"
	ReasonFault     = "fault"
)

// Alerter receives triggers; *alert.Coordinator implements it.
type Alerter interface {
	Trigger(ctx context.Context, label string) alert.Outcome
	Wait()
}

// Options configures a Sequencer.
type Options struct {
	Challenges []catalog.Challenge
	// Detectors lists the detectors polled for each sensor-gated kind.
	// A kind with no detectors still waits out its window.
	Detectors map[catalog.Kind][]detect.Detector
	Arbiter   *arbiter.Arbiter
	Alerts    Alerter

	Window   time.Duration
	PauseMin time.Duration
	PauseMax time.Duration
	// Intro prints the opening banner and the closing line.
	Intro bool

	Presenter Presenter
	Prompter  Prompter
	// Countdown, when set, shows the time left in each detection window.
	Countdown *Countdown
	// Rand shuffles the catalog and draws pauses. Defaults to a randomly
	// seeded source.
	Rand *rand.Rand
	// Sleep waits between challenges. Defaults to a context-aware timer.
	Sleep func(ctx context.Context, d time.Duration) error

	Logger *logging.Logger
	Bus    *event.Bus
}

// Report describes a finished session.
type Report struct {
	Played  int
	Reason  string
	Elapsed time.Duration
	Answers []Answer
}

// Answer is the operator's choice on a plain challenge.
type Answer struct {
	Text   string
	Choice string
}

// Session is a snapshot of the sequencer's progress.
type Session struct {
	Order   []catalog.Challenge
	Index   int
	Running bool
}

// Sequencer runs one game session at a time.
type Sequencer struct {
	opts Options

	// inProgress guards against overlapping sessions; running is cleared
	// by Stop and only asks the loop to end.
	inProgress atomic.Bool
	running    atomic.Bool
	index      atomic.Int64

	mu    sync.Mutex
	order []catalog.Challenge

	dispatch conc.WaitGroup
}

// NewSequencer creates a Sequencer, filling unset options with defaults.
func NewSequencer(opts Options) *Sequencer {
	if opts.Window <= 0 {
		opts.Window = DefaultWindow
	}
	if opts.PauseMin < 0 {
		opts.PauseMin = 0
	}
	if opts.PauseMax < opts.PauseMin {
		opts.PauseMax = opts.PauseMin
	}
	if opts.Arbiter == nil {
		opts.Arbiter = arbiter.New(arbiter.Options{Logger: opts.Logger, Bus: opts.Bus})
	}
	if opts.Rand == nil {
		opts.Rand = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	if opts.Sleep == nil {
		opts.Sleep = sleepContext
	}
	if opts.Logger == nil {
		opts.Logger = logging.NopLogger()
	}
	if opts.Presenter == nil {
		opts.Presenter = Instant{Out: io.Discard}
	}
	return &Sequencer{opts: opts}
}

// Start plays every challenge in a shuffled order. It returns when the
// catalog is exhausted, Stop is observed between challenges, ctx ends,
// input closes or the loop faults. Alerts still in flight are waited for
// before Start returns.
//
// The error is nil for a completed, stopped or canceled session. Closed
// input returns an InputError and a fault returns a FaultError.
func (s *Sequencer) Start(ctx context.Context) (*Report, error) {
	if !s.inProgress.CompareAndSwap(false, true) {
		return nil, errors.New("session already running")
	}
	defer s.inProgress.Store(false)
	s.running.Store(true)
	defer s.running.Store(false)

	start := time.Now()
	order := slices.Clone(s.opts.Challenges)
	s.opts.Rand.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })
	s.mu.Lock()
	s.order = order
	s.mu.Unlock()
	s.index.Store(0)

	report := &Report{Reason: ReasonCompleted}
	log := s.opts.Logger
	log.Info("session started", "challenges", len(order))

	err := s.intro(ctx)
	for i, ch := range order {
		if err != nil {
			break
		}
		if !s.running.Load() {
			report.Reason = ReasonStopped
			break
		}
		s.index.Store(int64(i))

		var answer string
		answer, err = s.playSafe(ctx, i, ch)
		if err != nil {
			break
		}
		report.Played++
		if ch.Kind == catalog.Plain {
			report.Answers = append(report.Answers, Answer{Text: ch.Text, Choice: answer})
		}
		s.opts.Bus.Publish(event.NewChallengeResolvedEvent(i, ch.Kind.String(), answer))

		err = s.opts.Sleep(ctx, s.pause())
	}

	switch {
	case err == nil:
	case errors.Is(err, errors.ErrSessionFault):
		report.Reason = ReasonFault
		log.Error("session fault", "error", err.Error())
	case errors.Is(err, errors.ErrInputClosed):
		report.Reason = ReasonStopped
		log.Info("input closed, ending session")
	case ctx.Err() != nil:
		report.Reason = ReasonCanceled
		err = nil
	default:
		report.Reason = ReasonFault
		err = errors.NewFaultError(int(s.index.Load()), err)
		log.Error("session fault", "error", err.Error())
	}

	s.cleanup()
	if s.opts.Intro && report.Reason != ReasonFault {
		s.opts.Presenter.Print("\nThe game has ended...or has it?\n")
	}

	report.Elapsed = time.Since(start)
	log.Info("session ended", "reason", report.Reason, "played", report.Played, "elapsed", report.Elapsed.String())
	s.opts.Bus.Publish(event.NewSessionEndedEvent(report.Played, report.Reason))
	return report, err
}

// cleanup waits for trigger dispatches and the alerts they started.
func (s *Sequencer) cleanup() {
	if r := s.dispatch.WaitAndRecover(); r != nil {
		s.opts.Logger.Error("alert dispatch panicked", "error", fmt.Sprint(r.Value))
	}
	if s.opts.Alerts != nil {
		s.opts.Alerts.Wait()
	}
}

// Stop asks the session to end before the next challenge. A challenge in
// progress, with its window and alerts, runs to completion, and a new
// Start is refused until it has.
func (s *Sequencer) Stop() {
	s.running.Store(false)
}

// Running reports whether a session is in progress and not stopped.
func (s *Sequencer) Running() bool {
	return s.inProgress.Load() && s.running.Load()
}

// Session returns a snapshot of the current session.
func (s *Sequencer) Session() Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Session{
		Order:   slices.Clone(s.order),
		Index:   int(s.index.Load()),
		Running: s.Running(),
	}
}

func (s *Sequencer) pause() time.Duration {
	lo, hi := s.opts.PauseMin, s.opts.PauseMax
	if hi <= lo {
		return lo
	}
	return lo + time.Duration(s.opts.Rand.Int64N(int64(hi-lo)+1))
}

func (s *Sequencer) intro(ctx context.Context) error {
	if !s.opts.Intro {
		return nil
	}
	p := s.opts.Presenter
	p.Print(banner("HORROR GAME INITIATED"))
	if err := s.opts.Sleep(ctx, 2*time.Second); err != nil {
		return err
	}
	p.Print("The game will ask you questions...\n")
	if err := s.opts.Sleep(ctx, time.Second); err != nil {
		return err
	}
	p.Print("Answer truthfully... or else.\n")
	return s.opts.Sleep(ctx, 2*time.Second)
}

// playSafe runs one challenge and converts a panic into a FaultError.
func (s *Sequencer) playSafe(ctx context.Context, i int, ch catalog.Challenge) (answer string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.NewFaultError(i, fmt.Errorf("panic: %v", r))
		}
	}()
	return s.play(ctx, i, ch)
}

func (s *Sequencer) play(ctx context.Context, i int, ch catalog.Challenge) (string, error) {
	s.opts.Bus.Publish(event.NewChallengeStartedEvent(i, ch.Kind.String(), ch.Text))
	s.opts.Logger.WithChallenge(i).Debug("challenge started", "kind", ch.Kind.String())

	if err := s.opts.Presenter.Type(ctx, ch.Text); err != nil {
		return "", err
	}

	switch ch.Kind {
	case catalog.Plain:
		return s.playPlain(ctx, ch)
	case catalog.CameraTrigger:
		return "", s.playCamera(ctx, ch)
	case catalog.AudioTrigger:
		return "", s.playAudio(ctx, ch)
	default:
		return "", fmt.Errorf("unknown challenge kind %d", ch.Kind)
	}
}

func (s *Sequencer) playPlain(ctx context.Context, ch catalog.Challenge) (string, error) {
	p := s.opts.Presenter
	options := ch.Options
	if len(options) == 0 {
		options = catalog.DefaultPlainOptions
	}
	for i, opt := range options {
		p.Print(fmt.Sprintf("%d. %s\n", i+1, opt))
	}

	for {
		p.Print("\n" + promptStyle.Render(fmt.Sprintf("Enter your choice (1 or %d): ", len(options))))
		line, err := s.readLine(ctx)
		if err != nil {
			return "", err
		}

		choice, err := parseChoice(line, len(options))
		if err != nil {
			s.opts.Logger.Debug("invalid choice", "error", err.Error())
			if errors.Is(err, strconv.ErrSyntax) || errors.Is(err, strconv.ErrRange) {
				p.Print("Please enter a valid number.\n")
			} else {
				p.Print(fmt.Sprintf("Please enter a number between 1 and %d.\n", len(options)))
			}
			continue
		}

		answer := options[choice-1]
		p.Print(fmt.Sprintf("You chose: %s\n", answer))
		return answer, nil
	}
}

// parseChoice returns the 1-based option number in line.
func parseChoice(line string, n int) (int, error) {
	line = strings.TrimSpace(line)
	choice, err := strconv.Atoi(line)
	if err != nil {
		return 0, errors.NewInputError(line, errors.Join(errors.ErrInvalidChoice, err))
	}
	if choice < 1 || choice > n {
		return 0, errors.NewInputError(line, errors.ErrInvalidChoice)
	}
	return choice, nil
}

func (s *Sequencer) playCamera(ctx context.Context, ch catalog.Challenge) error {
	s.opts.Presenter.Print("\nPress Enter to continue...\n")
	if _, err := s.readLine(ctx); err != nil {
		return err
	}

	warning := ch.Warning
	if warning == "" {
		warning = catalog.DefaultWarning
	}
	if err := s.opts.Presenter.Type(ctx, warning); err != nil {
		return err
	}
	return s.runWindow(ctx, catalog.CameraTrigger)
}

func (s *Sequencer) playAudio(ctx context.Context, ch catalog.Challenge) error {
	options := ch.Options
	if len(options) == 0 {
		options = catalog.DefaultAudioOptions
	}
	for _, opt := range options {
		s.opts.Presenter.Print("- " + opt + "\n")
	}
	s.opts.Presenter.Print("\nListening...\n")
	return s.runWindow(ctx, catalog.AudioTrigger)
}

// runWindow opens a detection window for kind and hands every trigger to
// the alerter as it arrives. It returns once the window has closed.
func (s *Sequencer) runWindow(ctx context.Context, kind catalog.Kind) error {
	w := s.opts.Arbiter.RunWindow(ctx, s.opts.Detectors[kind], s.opts.Window)
	if s.opts.Countdown != nil {
		var meter conc.WaitGroup
		meter.Go(func() { s.opts.Countdown.Run(w.Start(), w.Duration(), w.Done()) })
		defer meter.Wait()
	}
	for t := range w.Triggers() {
		s.opts.Logger.Info("trigger", "detector", t.DetectorID, "label", t.Label, "after", t.After.String())
		if s.opts.Alerts == nil {
			continue
		}
		s.dispatch.Go(func() {
			outcome := s.opts.Alerts.Trigger(ctx, t.Label)
			s.opts.Logger.Debug("trigger handled", "label", t.Label, "outcome", outcome.String())
		})
	}
	w.Wait()
	return ctx.Err()
}

func (s *Sequencer) readLine(ctx context.Context) (string, error) {
	if s.opts.Prompter == nil {
		return "", errors.NewInputError("", errors.ErrInputClosed)
	}
	return s.opts.Prompter.ReadLine(ctx)
}
