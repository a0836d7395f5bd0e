package alert

import (
	"context"
	"fmt"
	"os/exec"

	"github.com/b1zarr-e/ODTL/internal/errors"
)

// Player plays the alert sound.
type Player interface {
	Play(ctx context.Context) error
}

// CommandPlayer plays a sound file with an external player such as ffplay.
// The file path is appended to Argv.
type CommandPlayer struct {
	Argv   []string
	Path   string
	Assets AssetChecker
}

// Play runs the player to completion, or until ctx ends. A missing file
// returns an AssetError wrapping ErrAssetMissing without running anything.
func (p *CommandPlayer) Play(ctx context.Context) error {
	assets := p.Assets
	if assets == nil {
		assets = StatChecker{}
	}
	if !assets.Exists(p.Path) {
		return errors.NewAssetError(p.Path, errors.ErrAssetMissing)
	}
	if len(p.Argv) == 0 {
		return errors.NewAssetError(p.Path, fmt.Errorf("%w: no player configured", errors.ErrPlaybackFailed))
	}

	args := append(append([]string{}, p.Argv[1:]...), p.Path)
	cmd := exec.CommandContext(ctx, p.Argv[0], args...)
	if out, err := cmd.CombinedOutput(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return errors.NewAssetError(p.Path, fmt.Errorf("%w: %s: %w (%s)", errors.ErrPlaybackFailed, p.Argv[0], err, out))
	}
	return nil
}

// Silent is a Player that does nothing.
type Silent struct{}

// Play returns immediately.
func (Silent) Play(context.Context) error { return nil }
