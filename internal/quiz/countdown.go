package quiz

import (
	"io"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/progress"
)

// DefaultCountdownInterval is how often the countdown bar is redrawn.
const DefaultCountdownInterval = 100 * time.Millisecond

// clearLine returns the cursor to column 0 and erases the line.
const clearLine = "\r\x1b[2K"

// Countdown draws a draining bar on the current line while a detection
// window is open, so the player can see how long the sensors listen.
type Countdown struct {
	out      io.Writer
	interval time.Duration
	// hidden reports whether something else owns the screen, such as a
	// live alert; the bar is not drawn then.
	hidden func() bool

	mu  sync.Mutex
	bar progress.Model
}

// NewCountdown creates a countdown bar width columns wide. hidden may be
// nil.
func NewCountdown(out io.Writer, width int, hidden func() bool) *Countdown {
	bar := progress.New(
		progress.WithSolidFill("#FF0000"),
		progress.WithoutPercentage(),
		progress.WithWidth(width),
	)
	return &Countdown{out: out, interval: DefaultCountdownInterval, hidden: hidden, bar: bar}
}

// Frame renders the bar with remaining in [0, 1] of the window left.
func (c *Countdown) Frame(remaining float64) string {
	remaining = min(max(remaining, 0), 1)
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.bar.ViewAs(remaining)
}

// Run redraws the bar for a window of length d that opened at start,
// until done is closed. The line is cleared before Run returns.
func (c *Countdown) Run(start time.Time, d time.Duration, done <-chan struct{}) {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	drawn := false
	for {
		if c.hidden == nil || !c.hidden() {
			remaining := 1.0
			if d > 0 {
				remaining = 1 - float64(time.Since(start))/float64(d)
			}
			_, _ = io.WriteString(c.out, clearLine+c.Frame(remaining))
			drawn = true
		}

		select {
		case <-done:
			if drawn {
				_, _ = io.WriteString(c.out, clearLine)
			}
			return
		case <-ticker.C:
		}
	}
}
