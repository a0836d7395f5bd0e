package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/b1zarr-e/ODTL/internal/arbiter"
	"github.com/b1zarr-e/ODTL/internal/catalog"
	"github.com/b1zarr-e/ODTL/internal/config"
	"github.com/b1zarr-e/ODTL/internal/detect"
	"github.com/b1zarr-e/ODTL/internal/session"
)

var probeCmd = &cobra.Command{
	Use:   "probe [camera|microphone|all]",
	Short: "Run one detection window against the configured sensors",
	Long: `Run one detection window against the configured sensors and print
every trigger. Useful for tuning the microphone threshold or checking the
camera feed before a game.`,
	Args:      cobra.MaximumNArgs(1),
	ValidArgs: []string{"camera", "microphone", "all"},
	RunE:      runProbe,
}

var probeWindow time.Duration

func init() {
	probeCmd.Flags().DurationVar(&probeWindow, "window", 0, "window length (default: detection.window_ms)")
	rootCmd.AddCommand(probeCmd)
}

func runProbe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := createLogger(cfg)
	defer func() { _ = logger.Close() }()

	which := "all"
	if len(args) == 1 {
		which = args[0]
	}
	var kinds []catalog.Kind
	switch which {
	case "camera":
		kinds = []catalog.Kind{catalog.CameraTrigger}
	case "microphone", "mic":
		kinds = []catalog.Kind{catalog.AudioTrigger}
	case "all":
		kinds = []catalog.Kind{catalog.CameraTrigger, catalog.AudioTrigger}
	default:
		return fmt.Errorf("unknown sensor %q (want camera, microphone or all)", which)
	}

	byKind, err := session.BuildDetectors(cfg, logger, false)
	if err != nil {
		return err
	}
	var detectors []detect.Detector
	for _, k := range kinds {
		detectors = append(detectors, byKind[k]...)
	}
	if len(detectors) == 0 {
		return fmt.Errorf("no %s detector is enabled", which)
	}

	window := probeWindow
	if window <= 0 {
		window = cfg.Detection.Window()
	}

	ctx, stop := signalContext(cmd.Context())
	defer stop()

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Listening on %d detector(s) for %s...\n", len(detectors), window)

	arb := arbiter.New(arbiter.Options{
		PollInterval:    cfg.Detection.PollInterval(),
		CancelOnTrigger: cfg.Detection.CancelOnTrigger,
		Logger:          logger,
	})
	w := arb.RunWindow(ctx, detectors, window)
	for t := range w.Triggers() {
		fmt.Fprintf(out, "  %s: %s after %s\n", t.DetectorID, t.Label, t.After.Round(time.Millisecond))
	}
	w.Wait()

	fmt.Fprintf(out, "%d trigger(s)\n", w.Detected())
	return nil
}
