package quiz

import (
	"bufio"
	"context"
	"io"
	"strings"

	"github.com/b1zarr-e/ODTL/internal/errors"
)

// Prompter reads one line of operator input.
type Prompter interface {
	ReadLine(ctx context.Context) (string, error)
}

// LinePrompter reads newline-terminated answers from a reader, normally
// os.Stdin. It is meant for a single caller.
type LinePrompter struct {
	lines   chan lineResult
	req     chan struct{}
	pending bool
}

type lineResult struct {
	text string
	err  error
}

// NewLinePrompter starts reading lines from r on demand.
func NewLinePrompter(r io.Reader) *LinePrompter {
	p := &LinePrompter{
		lines: make(chan lineResult, 1),
		req:   make(chan struct{}, 1),
	}
	go p.readLoop(bufio.NewScanner(r))
	return p
}

func (p *LinePrompter) readLoop(sc *bufio.Scanner) {
	for range p.req {
		if sc.Scan() {
			p.lines <- lineResult{text: strings.TrimRight(sc.Text(), "\r")}
			continue
		}
		err := sc.Err()
		if err == nil {
			err = io.EOF
		}
		p.lines <- lineResult{err: errors.NewInputError("", errors.Join(errors.ErrInputClosed, err))}
		close(p.lines)
		return
	}
}

// ReadLine returns the next line without its terminator. It returns an
// InputError wrapping ErrInputClosed once the reader is exhausted, and
// ctx's error when ctx ends first. A line still being read when ctx ends
// is delivered to the next call.
func (p *LinePrompter) ReadLine(ctx context.Context) (string, error) {
	if !p.pending {
		select {
		case p.req <- struct{}{}:
		default:
		}
		p.pending = true
	}

	select {
	case res, ok := <-p.lines:
		p.pending = false
		if !ok {
			return "", errors.NewInputError("", errors.ErrInputClosed)
		}
		return res.text, res.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}
