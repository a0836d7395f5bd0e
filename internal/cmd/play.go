package cmd

import (
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/spf13/cobra"

	"github.com/b1zarr-e/ODTL/internal/arbiter"
	"github.com/b1zarr-e/ODTL/internal/config"
	"github.com/b1zarr-e/ODTL/internal/errors"
	"github.com/b1zarr-e/ODTL/internal/quiz"
	"github.com/b1zarr-e/ODTL/internal/session"
	"github.com/b1zarr-e/ODTL/internal/util"
)

// countdownWidth caps the detection window bar.
const countdownWidth = 40

var playCmd = &cobra.Command{
	Use:   "play",
	Short: "Start a game session",
	Long: `Start a game session.

The challenges are shuffled and asked one at a time. Camera and microphone
questions listen for a few seconds; anything seen or heard triggers a
jumpscare. Press Ctrl+C to end the session early.`,
	Args: cobra.NoArgs,
	RunE: runPlay,
}

var (
	playDryRun  bool
	playSeed    uint64
	playNoIntro bool
)

func init() {
	playCmd.Flags().BoolVar(&playDryRun, "dry-run", false, "never detect anything and skip the actuator")
	playCmd.Flags().Uint64Var(&playSeed, "seed", 0, "shuffle seed (0 picks a random one)")
	playCmd.Flags().BoolVar(&playNoIntro, "no-intro", false, "skip the opening banner and closing line")
	rootCmd.AddCommand(playCmd)
}

func runPlay(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	challenges, err := loadChallenges(cfg.Game.CatalogFile)
	if err != nil {
		return err
	}

	baseLogger := createLogger(cfg)
	defer func() { _ = baseLogger.Close() }()

	seed := playSeed
	if seed == 0 {
		seed = rand.Uint64()
	}
	logger := baseLogger.WithSession(fmt.Sprintf("%016x", seed))

	ctx, stop := signalContext(cmd.Context())
	defer stop()

	bus := newBus(logger)
	tally := quiz.NewTally(bus)
	defer tally.Close()

	out := cmd.OutOrStdout()
	opts := []session.Option{session.WithOutput(out)}
	if playDryRun {
		opts = append(opts, session.WithDryRun(), session.WithoutActuator())
	} else if cfg.Actuator.Transport != "none" {
		lock, err := session.AcquireLock(config.ConfigDir(), cfg.Actuator.Address, logger)
		if err != nil {
			return err
		}
		defer func() { _ = lock.Release() }()
	}

	res, err := session.Open(ctx, cfg, logger, bus, opts...)
	if err != nil {
		return err
	}
	defer func() { _ = res.Close() }()

	var presenter quiz.Presenter = quiz.Instant{Out: out}
	if lo, hi := cfg.Game.TypingRange(); hi > 0 {
		presenter = quiz.NewTypewriter(out, lo, hi, seed)
	}
	pauseMin, pauseMax := cfg.Game.PauseRange()

	var countdown *quiz.Countdown
	if cols := util.TerminalWidth(out, 0); cols > 0 {
		countdown = quiz.NewCountdown(out, min(countdownWidth, cols-1), res.Coordinator.Active)
	}

	seq := quiz.NewSequencer(quiz.Options{
		Challenges: challenges,
		Detectors:  res.Detectors,
		Arbiter: arbiter.New(arbiter.Options{
			PollInterval:    cfg.Detection.PollInterval(),
			CancelOnTrigger: cfg.Detection.CancelOnTrigger,
			Logger:          logger,
			Bus:             bus,
		}),
		Alerts:    res.Coordinator,
		Window:    cfg.Detection.Window(),
		PauseMin:  pauseMin,
		PauseMax:  pauseMax,
		Intro:     cfg.Game.Intro && !playNoIntro,
		Presenter: presenter,
		Prompter:  quiz.NewLinePrompter(cmd.InOrStdin()),
		Countdown: countdown,
		Rand:      rand.New(rand.NewPCG(seed, seed)),
		Logger:    logger,
		Bus:       bus,
	})

	report, runErr := seq.Start(ctx)
	if err := res.Close(); err != nil {
		logger.Warn("session cleanup failed", "error", err.Error())
	}

	if report != nil {
		fmt.Fprintf(out, "\nSession %s after %s (seed %d)\n", report.Reason, report.Elapsed.Round(100*time.Millisecond), seed)
		fmt.Fprint(out, tally.Summary().String())
	}
	if runErr != nil && !errors.Is(runErr, errors.ErrInputClosed) {
		return runErr
	}
	return nil
}
