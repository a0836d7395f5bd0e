package alert

import (
	"image"
	"image/color"
	"os"
	"strings"
	"sync"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

// Frame is what a surface shows: either an image already scaled to the
// surface bounds or a text message.
type Frame struct {
	Image image.Image
	Text  string
}

// Surface is an exclusive full-screen display.
type Surface interface {
	// Bounds returns the drawable area in pixels.
	Bounds() image.Rectangle
	// Present replaces whatever is on screen with f.
	Present(f Frame) error
	// Dismiss clears the screen and restores the previous content.
	Dismiss() error
}

// Fallback terminal size when the output is not a terminal.
const (
	fallbackCols = 80
	fallbackRows = 24
)

var (
	alertColor = lipgloss.Color("#FF0000")
	voidColor  = lipgloss.Color("#000000")

	alertText = lipgloss.NewStyle().
			Bold(true).
			Foreground(alertColor).
			Background(voidColor)
)

// TerminalSurface shows frames on the terminal's alternate screen. Each
// terminal cell holds two vertically stacked pixels, so the pixel bounds
// are cols x rows*2.
type TerminalSurface struct {
	out *os.File

	mu      sync.Mutex
	program *tea.Program
	done    chan struct{}
}

// NewTerminalSurface creates a surface that draws to out (normally
// os.Stdout).
func NewTerminalSurface(out *os.File) *TerminalSurface {
	return &TerminalSurface{out: out}
}

func (s *TerminalSurface) size() (int, int) {
	if cols, rows, err := term.GetSize(int(s.out.Fd())); err == nil && cols > 0 && rows > 0 {
		return cols, rows
	}
	return fallbackCols, fallbackRows
}

// Bounds returns the current terminal size in half-block pixels.
func (s *TerminalSurface) Bounds() image.Rectangle {
	cols, rows := s.size()
	return image.Rect(0, 0, cols, rows*2)
}

// Present starts a full-screen program showing f. A frame that is already
// up is replaced.
func (s *TerminalSurface) Present(f Frame) error {
	if err := s.Dismiss(); err != nil {
		return err
	}

	cols, rows := s.size()
	content := RenderFrame(f, cols, rows)

	s.mu.Lock()
	defer s.mu.Unlock()

	p := tea.NewProgram(
		frameModel{content: content},
		tea.WithAltScreen(),
		tea.WithInput(nil),
		tea.WithOutput(s.out),
		tea.WithoutSignalHandler(),
	)
	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = p.Run()
	}()
	s.program = p
	s.done = done
	return nil
}

// Dismiss quits the running program and waits for the terminal to be
// restored.
func (s *TerminalSurface) Dismiss() error {
	s.mu.Lock()
	p, done := s.program, s.done
	s.program, s.done = nil, nil
	s.mu.Unlock()

	if p == nil {
		return nil
	}
	p.Quit()
	<-done
	return nil
}

// frameModel is a bubbletea model that shows pre-rendered content until
// told to quit.
type frameModel struct {
	content string
}

func (m frameModel) Init() tea.Cmd { return nil }

func (m frameModel) Update(tea.Msg) (tea.Model, tea.Cmd) { return m, nil }

func (m frameModel) View() string { return m.content }

// RenderFrame renders f for a terminal of cols x rows cells.
func RenderFrame(f Frame, cols, rows int) string {
	if f.Image != nil {
		return RenderImage(f.Image)
	}
	return RenderText(f.Text, cols, rows)
}

// RenderText centres msg in red on a black screen of cols x rows cells.
func RenderText(msg string, cols, rows int) string {
	return lipgloss.Place(cols, rows, lipgloss.Center, lipgloss.Center,
		alertText.Render(msg),
		lipgloss.WithWhitespaceBackground(voidColor),
	)
}

// RenderImage draws img with upper-half block characters: the foreground
// colours the top pixel of each cell and the background the bottom one.
func RenderImage(img image.Image) string {
	b := img.Bounds()
	var sb strings.Builder
	for y := b.Min.Y; y < b.Max.Y; y += 2 {
		if y > b.Min.Y {
			sb.WriteByte('\n')
		}
		for x := b.Min.X; x < b.Max.X; x++ {
			top := hex(img.At(x, y))
			bottom := top
			if y+1 < b.Max.Y {
				bottom = hex(img.At(x, y+1))
			}
			sb.WriteString(lipgloss.NewStyle().
				Foreground(lipgloss.Color(top)).
				Background(lipgloss.Color(bottom)).
				Render("▀"))
		}
	}
	return sb.String()
}

func hex(c color.Color) string {
	r, g, b, _ := c.RGBA()
	const digits = "0123456789ABCDEF"
	buf := []byte{'#', 0, 0, 0, 0, 0, 0}
	for i, v := range []uint32{r >> 8, g >> 8, b >> 8} {
		buf[1+2*i] = digits[v>>4]
		buf[2+2*i] = digits[v&0xF]
	}
	return string(buf)
}
