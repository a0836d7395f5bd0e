// Package session opens and closes the handles a game session shares:
// the actuator link, the detectors, the asset watcher and the alert
// pipeline. Every component receives what it needs from [Resources]
// explicitly.
package session

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/b1zarr-e/ODTL/internal/actuator"
	"github.com/b1zarr-e/ODTL/internal/alert"
	"github.com/b1zarr-e/ODTL/internal/catalog"
	"github.com/b1zarr-e/ODTL/internal/config"
	"github.com/b1zarr-e/ODTL/internal/detect"
	"github.com/b1zarr-e/ODTL/internal/errors"
	"github.com/b1zarr-e/ODTL/internal/event"
	"github.com/b1zarr-e/ODTL/internal/logging"
)

// Resources are the session-scoped handles. Open them once per session
// and Close them once at the end.
type Resources struct {
	// Link is nil in standalone mode.
	Link        *actuator.Link
	Standalone  bool
	Detectors   map[catalog.Kind][]detect.Detector
	Surface     alert.Surface
	Visual      *alert.Visual
	Audio       alert.Player
	Coordinator *alert.Coordinator

	assets    alert.AssetChecker
	closeOnce sync.Once
	closeErr  error
	logger    *logging.Logger
}

type openOptions struct {
	surface alert.Surface
	out     io.Writer
	dryRun  bool
	noLink  bool
}

// Option customizes Open.
type Option func(*openOptions)

// WithSurface replaces the terminal surface, for tests and headless runs.
func WithSurface(s alert.Surface) Option {
	return func(o *openOptions) { o.surface = s }
}

// WithOutput sets where operator-facing notices are printed.
func WithOutput(w io.Writer) Option {
	return func(o *openOptions) { o.out = w }
}

// WithDryRun replaces every detector with one that never fires.
func WithDryRun() Option {
	return func(o *openOptions) { o.dryRun = true }
}

// WithoutActuator skips the actuator even when one is configured.
func WithoutActuator() Option {
	return func(o *openOptions) { o.noLink = true }
}

// Open builds the session resources from cfg. An actuator that cannot be
// reached puts the session in standalone mode; it is not an error.
func Open(ctx context.Context, cfg *config.Config, logger *logging.Logger, bus *event.Bus, opts ...Option) (*Resources, error) {
	o := openOptions{out: os.Stdout}
	for _, opt := range opts {
		opt(&o)
	}
	if logger == nil {
		logger = logging.NopLogger()
	}

	r := &Resources{logger: logger}

	if err := r.openLink(ctx, cfg.Actuator, o, bus); err != nil {
		return nil, err
	}

	detectors, err := BuildDetectors(cfg, logger, o.dryRun)
	if err != nil {
		_ = r.Close()
		return nil, err
	}
	r.Detectors = detectors

	r.assets = alert.StatChecker{}
	if cfg.Alert.WatchAssets {
		w, err := alert.NewAssetWatcher(cfg.Alert.ImagePath, cfg.Alert.SoundPath)
		if err != nil {
			logger.Warn("asset watcher unavailable, using stat", "error", err.Error())
		} else {
			r.assets = w
		}
	}

	r.Surface = o.surface
	if r.Surface == nil {
		r.Surface = alert.NewTerminalSurface(os.Stdout)
	}
	r.Visual = alert.NewVisual(alert.VisualOptions{
		Surface:   r.Surface,
		ImagePath: cfg.Alert.ImagePath,
		Assets:    r.assets,
		Display:   cfg.Alert.Display(),
		Logger:    logger,
	})
	r.Audio = alert.Silent{}
	if len(cfg.Alert.PlayerCommand) > 0 {
		r.Audio = &alert.CommandPlayer{Argv: cfg.Alert.PlayerCommand, Path: cfg.Alert.SoundPath, Assets: r.assets}
	}

	var notifier alert.Notifier
	if r.Link != nil {
		notifier = r.Link
	}
	r.Coordinator = alert.NewCoordinator(alert.Options{
		Actuator:     notifier,
		Audio:        r.Audio,
		Visual:       r.Visual,
		TeardownWait: cfg.Alert.TeardownWait(),
		StrictDedup:  cfg.Alert.StrictDedup,
		Logger:       logger,
		Bus:          bus,
	})
	return r, nil
}

func (r *Resources) openLink(ctx context.Context, cfg config.ActuatorConfig, o openOptions, bus *event.Bus) error {
	if o.noLink {
		r.Standalone = true
		return nil
	}
	w, err := actuator.Dial(ctx, cfg)
	switch {
	case err == nil:
		r.Link = actuator.NewLink(w, actuator.Options{
			Transport: cfg.Transport,
			Address:   cfg.Address,
			Logger:    r.logger,
			Bus:       bus,
		})
		r.logger.Info("actuator connected", "transport", cfg.Transport, "address", cfg.Address)
		_, _ = fmt.Fprintln(o.out, "Connected to effect device")
	case errors.Is(err, actuator.ErrDisabled):
		r.Standalone = true
	case ctx.Err() != nil:
		return ctx.Err()
	default:
		r.Standalone = true
		r.logger.Warn("actuator unavailable", "error", err.Error())
		_, _ = fmt.Fprintf(o.out, "Failed to connect to effect device: %v\nRunning in standalone mode\n", err)
	}
	return nil
}

// BuildDetectors creates the configured detectors for each sensor-gated
// kind. A camera whose cascade cannot be loaded is left out with a
// warning; its challenges still wait out their windows.
func BuildDetectors(cfg *config.Config, logger *logging.Logger, dryRun bool) (map[catalog.Kind][]detect.Detector, error) {
	detectors := make(map[catalog.Kind][]detect.Detector)

	if cfg.Camera.Enabled {
		if dryRun {
			detectors[catalog.CameraTrigger] = []detect.Detector{detect.Never("camera")}
		} else if d, err := newCamera(cfg.Camera); err != nil {
			logger.Warn("camera detector disabled", "error", err.Error())
		} else {
			detectors[catalog.CameraTrigger] = []detect.Detector{d}
		}
	}

	if cfg.Microphone.Enabled {
		if dryRun {
			detectors[catalog.AudioTrigger] = []detect.Detector{detect.Never("microphone")}
		} else {
			d, err := newMicrophone(cfg.Microphone)
			if err != nil {
				return nil, err
			}
			detectors[catalog.AudioTrigger] = []detect.Detector{d}
		}
	}
	return detectors, nil
}

func newCamera(cfg config.CameraConfig) (detect.Detector, error) {
	params := detect.DefaultCascadeParams()
	params.ScaleFactor = cfg.ScaleFactor
	params.MinNeighbors = cfg.MinNeighbors
	params.MinSize = cfg.MinSize

	classifier, err := detect.LoadPigoClassifier(cfg.CascadePath, params)
	if err != nil {
		return nil, err
	}

	var source detect.VideoSource
	switch cfg.Source {
	case "http":
		source = &detect.SnapshotSource{URL: cfg.URL}
	case "file":
		source = &detect.FileFrameSource{Path: cfg.Path}
	default:
		return nil, fmt.Errorf("unknown camera source %q", cfg.Source)
	}
	return detect.NewVision("camera", cfg.Label, source, classifier), nil
}

func newMicrophone(cfg config.MicrophoneConfig) (detect.Detector, error) {
	var source detect.AudioSource
	switch cfg.Source {
	case "command":
		source = &detect.CommandAudioSource{Argv: cfg.Command}
	case "file":
		source = &detect.ReaderAudioSource{Path: cfg.Path}
	default:
		return nil, fmt.Errorf("unknown microphone source %q", cfg.Source)
	}
	return detect.NewAudio("microphone", cfg.Label, source, cfg.Threshold, cfg.FrameSize), nil
}

// Close waits for in-flight alerts, then releases the actuator link and
// the asset watcher. Only the first call does anything.
func (r *Resources) Close() error {
	r.closeOnce.Do(func() {
		if r.Coordinator != nil {
			r.Coordinator.Wait()
		}
		var errs []error
		if r.Link != nil {
			if err := r.Link.Close(); err != nil {
				errs = append(errs, fmt.Errorf("closing actuator: %w", err))
			}
		}
		if c, ok := r.assets.(io.Closer); ok {
			if err := c.Close(); err != nil {
				errs = append(errs, fmt.Errorf("closing asset watcher: %w", err))
			}
		}
		if r.Surface != nil {
			_ = r.Surface.Dismiss()
		}
		r.closeErr = errors.Join(errs...)
		r.logger.Debug("session resources closed")
	})
	return r.closeErr
}
