package alert

import (
	"context"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"sync"
	"time"

	"golang.org/x/image/draw"

	"github.com/b1zarr-e/ODTL/internal/errors"
	"github.com/b1zarr-e/ODTL/internal/logging"
)

// DefaultDisplay is how long a visual alert stays up.
const DefaultDisplay = 2000 * time.Millisecond

// VisualOptions configures a Visual.
type VisualOptions struct {
	Surface   Surface
	ImagePath string
	Assets    AssetChecker
	Display   time.Duration
	Logger    *logging.Logger
}

// Visual shows full-screen alerts on a surface, one at a time.
type Visual struct {
	surface   Surface
	imagePath string
	assets    AssetChecker
	display   time.Duration
	logger    *logging.Logger

	mu sync.Mutex // held while the surface is in use
}

// NewVisual creates a Visual.
func NewVisual(opts VisualOptions) *Visual {
	if opts.Assets == nil {
		opts.Assets = StatChecker{}
	}
	if opts.Display <= 0 {
		opts.Display = DefaultDisplay
	}
	if opts.Logger == nil {
		opts.Logger = logging.NopLogger()
	}
	return &Visual{
		surface:   opts.Surface,
		imagePath: opts.ImagePath,
		assets:    opts.Assets,
		display:   opts.Display,
		logger:    opts.Logger,
	}
}

// Show presents message (or the configured image) in the background and
// returns a channel that is closed once the alert has been torn down. The
// alert comes down after the display duration or when ctx ends.
func (v *Visual) Show(ctx context.Context, message string) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)

		v.mu.Lock()
		defer v.mu.Unlock()

		frame := v.compose(message)
		if err := v.surface.Present(frame); err != nil {
			v.logger.Warn("visual alert failed", "error", err.Error())
			return
		}

		timer := time.NewTimer(v.display)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
		}

		if err := v.surface.Dismiss(); err != nil {
			v.logger.Warn("visual teardown failed", "error", err.Error())
		}
	}()
	return done
}

// compose builds the frame for message: the image scaled to the surface
// when it can be loaded, the message as text otherwise.
func (v *Visual) compose(message string) Frame {
	if !v.assets.Exists(v.imagePath) {
		v.logger.Debug("image asset missing, showing text", "path", v.imagePath)
		return Frame{Text: message}
	}

	img, err := loadImage(v.imagePath)
	if err != nil {
		v.logger.Warn("image asset unusable, showing text", "error", errors.NewAssetError(v.imagePath, err).Error())
		return Frame{Text: message}
	}
	return Frame{Image: Scale(img, v.surface.Bounds())}
}

func loadImage(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	img, _, err := image.Decode(f)
	return img, err
}

// Scale stretches src to fill bounds exactly.
func Scale(src image.Image, bounds image.Rectangle) image.Image {
	dst := image.NewRGBA(bounds)
	draw.CatmullRom.Scale(dst, bounds, src, src.Bounds(), draw.Src, nil)
	return dst
}
