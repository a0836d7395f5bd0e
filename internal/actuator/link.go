// Package actuator delivers alert commands to the external effect device.
//
// A [Link] wraps any byte stream and writes one command per line. It is
// fire-and-forget: no acknowledgement is read, nothing is retried, and a
// failed write is logged and reported on the event bus instead of being
// returned. [Dial] opens the configured transport.
package actuator

import (
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"github.com/b1zarr-e/ODTL/internal/errors"
	"github.com/b1zarr-e/ODTL/internal/event"
	"github.com/b1zarr-e/ODTL/internal/logging"
)

// Commands understood by the device.
const (
	CommandJumpscare = "JUMPSCARE"
	CommandAmbient   = "AMBIENT"
)

// Options describes a Link for logging.
type Options struct {
	Transport string
	Address   string
	Logger    *logging.Logger
	Bus       *event.Bus
}

// Link is a best-effort command writer shared by every alert in a
// session. It is safe for concurrent use.
type Link struct {
	w         io.Writer
	transport string
	address   string
	logger    *logging.Logger
	bus       *event.Bus

	mu     sync.Mutex // serializes writes
	closed atomic.Bool
	once   sync.Once
	err    error
}

// NewLink creates a Link over w. If w is also an io.Closer it is closed by
// Close.
func NewLink(w io.Writer, opts Options) *Link {
	if opts.Logger == nil {
		opts.Logger = logging.NopLogger()
	}
	return &Link{
		w:         w,
		transport: opts.Transport,
		address:   opts.Address,
		logger:    opts.Logger,
		bus:       opts.Bus,
	}
}

// Send writes command followed by a newline. It never returns an error and
// never panics; every failed send produces exactly one error log entry.
// Send on a nil Link does nothing.
func (l *Link) Send(command string) {
	if l == nil {
		return
	}
	if err := l.write(command); err != nil {
		l.logger.Error("actuator send failed",
			"command", command,
			"transport", l.transport,
			"error", err.Error(),
		)
		l.bus.Publish(event.NewActuatorFailedEvent(command, err))
		return
	}
	l.logger.Debug("actuator command sent", "command", command)
}

func (l *Link) write(command string) (err error) {
	if l.closed.Load() || l.w == nil {
		return l.transportError(command, errors.ErrTransportClosed)
	}

	defer func() {
		if r := recover(); r != nil {
			err = l.transportError(command, fmt.Errorf("%w: panic: %v", errors.ErrTransportWrite, r))
		}
	}()

	l.mu.Lock()
	defer l.mu.Unlock()
	if _, werr := io.WriteString(l.w, command+"\n"); werr != nil {
		return l.transportError(command, fmt.Errorf("%w: %w", errors.ErrTransportWrite, werr))
	}
	return nil
}

func (l *Link) transportError(command string, cause error) error {
	return errors.NewTransportError("send "+command, cause).WithTransport(l.transport, l.address)
}

// Close closes the underlying transport. Only the first call has any
// effect; later calls return the first result.
func (l *Link) Close() error {
	if l == nil {
		return nil
	}
	l.once.Do(func() {
		l.closed.Store(true)
		l.mu.Lock()
		defer l.mu.Unlock()
		if c, ok := l.w.(io.Closer); ok {
			l.err = c.Close()
		}
	})
	return l.err
}

// Closed reports whether Close has been called.
func (l *Link) Closed() bool {
	return l == nil || l.closed.Load()
}
