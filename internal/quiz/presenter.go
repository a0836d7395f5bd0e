package quiz

import (
	"context"
	"io"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"
)

// Presenter writes the game's text to the operator.
type Presenter interface {
	// Type renders text on its own paragraph, possibly one character at
	// a time. It returns early with ctx's error when ctx ends.
	Type(ctx context.Context, text string) error
	// Print writes text as is.
	Print(text string)
}

var (
	bannerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FF0000"))
	promptStyle = lipgloss.NewStyle().Faint(true)
)

// Instant prints everything immediately.
type Instant struct {
	Out io.Writer
}

// Type writes text framed by blank lines.
func (p Instant) Type(ctx context.Context, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, _ = io.WriteString(p.Out, "\n\n"+text+"\n\n")
	return nil
}

// Print writes text.
func (p Instant) Print(text string) {
	_, _ = io.WriteString(p.Out, text)
}

// Typewriter prints text one character at a time with a random delay
// drawn from [Min, Max] between characters.
type Typewriter struct {
	Out   io.Writer
	Min   time.Duration
	Max   time.Duration
	Style lipgloss.Style

	mu  sync.Mutex
	rng *rand.Rand
}

// NewTypewriter creates a Typewriter writing to out.
func NewTypewriter(out io.Writer, minDelay, maxDelay time.Duration, seed uint64) *Typewriter {
	return &Typewriter{
		Out: out,
		Min: minDelay,
		Max: maxDelay,
		rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
	}
}

// Type writes text character by character.
func (p *Typewriter) Type(ctx context.Context, text string) error {
	_, _ = io.WriteString(p.Out, "\n\n")
	for _, r := range text {
		_, _ = io.WriteString(p.Out, p.Style.Render(string(r)))
		if err := sleepContext(ctx, p.delay()); err != nil {
			_, _ = io.WriteString(p.Out, "\n")
			return err
		}
	}
	_, _ = io.WriteString(p.Out, "\n\n")
	return nil
}

// Print writes text.
func (p *Typewriter) Print(text string) {
	_, _ = io.WriteString(p.Out, text)
}

func (p *Typewriter) delay() time.Duration {
	if p.Max <= p.Min {
		return p.Min
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.rng == nil {
		p.rng = rand.New(rand.NewPCG(1, 2))
	}
	return p.Min + time.Duration(p.rng.Int64N(int64(p.Max-p.Min)+1))
}

func banner(title string) string {
	rule := strings.Repeat("=", 50)
	return "\n" + rule + "\n" + bannerStyle.Render(title) + "\n" + rule + "\n\n"
}

// sleepContext waits for d or until ctx ends.
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
