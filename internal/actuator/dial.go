package actuator

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"go.bug.st/serial"

	"github.com/b1zarr-e/ODTL/internal/config"
	"github.com/b1zarr-e/ODTL/internal/errors"
)

// ErrDisabled is returned by Dial for the "none" transport.
var ErrDisabled = stderrors.New("actuator disabled")

// DefaultDialTimeout applies when the configuration leaves it at zero.
const DefaultDialTimeout = 2 * time.Second

// Dial opens the transport named by cfg.Transport:
//
//   - serial: a serial port at cfg.Address with cfg.BaudRate
//   - tcp: a TCP connection to host:port
//   - websocket: a ws:// or wss:// URL; each command is one text message
//   - http: a base URL; each command is GET <url>?command=<command>
//   - none: returns ErrDisabled
func Dial(ctx context.Context, cfg config.ActuatorConfig) (io.WriteCloser, error) {
	timeout := cfg.DialTimeout()
	if timeout <= 0 {
		timeout = DefaultDialTimeout
	}

	var (
		w   io.WriteCloser
		err error
	)
	switch cfg.Transport {
	case "serial":
		w, err = serial.Open(cfg.Address, &serial.Mode{BaudRate: cfg.BaudRate})
	case "tcp":
		d := net.Dialer{Timeout: timeout}
		w, err = d.DialContext(ctx, "tcp", cfg.Address)
	case "websocket":
		w, err = dialWebSocket(ctx, cfg.Address, timeout)
	case "http":
		w, err = newHTTPWriter(cfg.Address, timeout)
	case "none", "":
		return nil, ErrDisabled
	default:
		return nil, errors.NewTransportError("dial", fmt.Errorf("%w: %q", errors.ErrUnknownTransport, cfg.Transport)).
			WithTransport(cfg.Transport, cfg.Address)
	}
	if err != nil {
		return nil, errors.NewTransportError("dial", err).WithTransport(cfg.Transport, cfg.Address)
	}
	return w, nil
}

// wsWriter sends each Write as one text message without the trailing
// newline; websocket framing already delimits commands.
type wsWriter struct {
	conn *websocket.Conn
}

func dialWebSocket(ctx context.Context, address string, timeout time.Duration) (*wsWriter, error) {
	dialer := websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: timeout,
	}
	conn, _, err := dialer.DialContext(ctx, address, nil)
	if err != nil {
		return nil, err
	}
	return &wsWriter{conn: conn}, nil
}

func (w *wsWriter) Write(p []byte) (int, error) {
	if err := w.conn.WriteMessage(websocket.TextMessage, bytes.TrimRight(p, "\r\n")); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (w *wsWriter) Close() error {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = w.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	return w.conn.Close()
}

// httpWriter turns each line into a GET request with a command query
// parameter, the interface exposed by the device's web server.
type httpWriter struct {
	base   *url.URL
	client *http.Client
}

func newHTTPWriter(address string, timeout time.Duration) (*httpWriter, error) {
	u, err := url.Parse(address)
	if err != nil {
		return nil, err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("unsupported URL scheme %q", u.Scheme)
	}
	return &httpWriter{base: u, client: &http.Client{Timeout: timeout}}, nil
}

func (w *httpWriter) Write(p []byte) (int, error) {
	for _, line := range strings.Split(strings.TrimSpace(string(p)), "\n") {
		if line = strings.TrimSpace(line); line == "" {
			continue
		}
		if err := w.get(line); err != nil {
			return 0, err
		}
	}
	return len(p), nil
}

func (w *httpWriter) get(command string) error {
	u := *w.base
	q := u.Query()
	q.Set("command", command)
	u.RawQuery = q.Encode()

	resp, err := w.client.Get(u.String())
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("device returned %s", resp.Status)
	}
	return nil
}

func (w *httpWriter) Close() error {
	w.client.CloseIdleConnections()
	return nil
}
