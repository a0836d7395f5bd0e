package actuator

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/b1zarr-e/ODTL/internal/config"
	"github.com/b1zarr-e/ODTL/internal/errors"
	"github.com/b1zarr-e/ODTL/internal/event"
	"github.com/b1zarr-e/ODTL/internal/logging"
	"github.com/b1zarr-e/ODTL/internal/testutil"
)

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

type brokenWriter struct{}

func (brokenWriter) Write([]byte) (int, error) { return 0, io.ErrClosedPipe }

type panickyWriter struct{}

func (panickyWriter) Write([]byte) (int, error) { panic("device unplugged") }

type countingCloser struct {
	syncBuffer
	closes int
}

func (c *countingCloser) Close() error {
	c.closes++
	return nil
}

func TestLink_Send(t *testing.T) {
	out := &syncBuffer{}
	link := NewLink(out, Options{Transport: "tcp"})

	link.Send(CommandJumpscare)
	link.Send(CommandAmbient)

	if got, want := out.String(), "JUMPSCARE\nAMBIENT\n"; got != want {
		t.Errorf("written = %q, want %q", got, want)
	}
}

func TestLink_SendFailureLoggedOnce(t *testing.T) {
	tests := []struct {
		name string
		w    io.Writer
	}{
		{"write error", brokenWriter{}},
		{"panicking writer", panickyWriter{}},
		{"no writer", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logs := &testutil.LogBuffer{}
			bus := event.NewBus()
			var failed []event.ActuatorFailedEvent
			bus.Subscribe(event.TypeActuatorFailed, func(e event.Event) {
				failed = append(failed, e.(event.ActuatorFailedEvent))
			})

			link := NewLink(tt.w, Options{
				Transport: "serial",
				Address:   "/dev/ttyUSB0",
				Logger:    logging.NewWriterLogger(logs, "debug"),
				Bus:       bus,
			})
			link.Send(CommandJumpscare)

			if n := logs.Count("ERROR"); n != 1 {
				t.Errorf("logged %d errors, want exactly 1:\n%s", n, logs.String())
			}
			if len(failed) != 1 {
				t.Fatalf("published %d failure events, want 1", len(failed))
			}
			var te *errors.TransportError
			if !errors.As(failed[0].Err, &te) || te.Transport != "serial" {
				t.Errorf("event error = %v, want a serial TransportError", failed[0].Err)
			}
		})
	}
}

func TestLink_SendAfterClose(t *testing.T) {
	logs := &testutil.LogBuffer{}
	out := &countingCloser{}
	link := NewLink(out, Options{Logger: logging.NewWriterLogger(logs, "info")})

	if err := link.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	link.Send(CommandJumpscare)

	if out.String() != "" {
		t.Errorf("closed link wrote %q", out.String())
	}
	if logs.Count("ERROR") != 1 {
		t.Errorf("expected one error for a closed link:\n%s", logs.String())
	}
	if !link.Closed() {
		t.Error("Closed() should report true")
	}
}

func TestLink_CloseOnce(t *testing.T) {
	out := &countingCloser{}
	link := NewLink(out, Options{})

	for range 3 {
		if err := link.Close(); err != nil {
			t.Errorf("Close() error = %v", err)
		}
	}
	if out.closes != 1 {
		t.Errorf("underlying Close called %d times, want 1", out.closes)
	}
}

func TestLink_Nil(t *testing.T) {
	var link *Link
	link.Send(CommandJumpscare)
	if err := link.Close(); err != nil {
		t.Errorf("Close() on nil link = %v", err)
	}
	if !link.Closed() {
		t.Error("nil link should report closed")
	}
}

func TestLink_ConcurrentSends(t *testing.T) {
	out := &syncBuffer{}
	link := NewLink(out, Options{})

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			link.Send(CommandJumpscare)
		}()
	}
	wg.Wait()

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) != 8 {
		t.Fatalf("got %d lines, want 8", len(lines))
	}
	for _, l := range lines {
		if l != CommandJumpscare {
			t.Errorf("interleaved line %q", l)
		}
	}
}

func TestDial_TCP(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = ln.Close() }()

	received := make(chan string, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer func() { _ = conn.Close() }()
		line, _ := bufio.NewReader(conn).ReadString('\n')
		received <- line
	}()

	w, err := Dial(context.Background(), config.ActuatorConfig{Transport: "tcp", Address: ln.Addr().String()})
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	link := NewLink(w, Options{Transport: "tcp"})
	defer func() { _ = link.Close() }()

	link.Send(CommandJumpscare)

	select {
	case line := <-received:
		if line != "JUMPSCARE\n" {
			t.Errorf("device received %q", line)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("device received nothing")
	}
}

func TestDial_WebSocket(t *testing.T) {
	received := make(chan string, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer func() { _ = conn.Close() }()
		_, data, err := conn.ReadMessage()
		if err == nil {
			received <- string(data)
		}
	}))
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	w, err := Dial(context.Background(), config.ActuatorConfig{Transport: "websocket", Address: wsURL})
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	link := NewLink(w, Options{Transport: "websocket"})
	defer func() { _ = link.Close() }()

	link.Send(CommandJumpscare)

	select {
	case msg := <-received:
		if msg != CommandJumpscare {
			t.Errorf("device received %q, want %q", msg, CommandJumpscare)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("device received nothing")
	}
}

func TestDial_HTTP(t *testing.T) {
	var mu sync.Mutex
	var commands []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		commands = append(commands, r.URL.Query().Get("command"))
		mu.Unlock()
		_, _ = io.WriteString(w, "OK")
	}))
	defer srv.Close()

	w, err := Dial(context.Background(), config.ActuatorConfig{Transport: "http", Address: srv.URL + "/control"})
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	logs := &testutil.LogBuffer{}
	link := NewLink(w, Options{Transport: "http", Logger: logging.NewWriterLogger(logs, "info")})
	defer func() { _ = link.Close() }()

	link.Send(CommandJumpscare)

	mu.Lock()
	defer mu.Unlock()
	if len(commands) != 1 || commands[0] != CommandJumpscare {
		t.Errorf("device saw commands %v", commands)
	}
	if logs.Count("ERROR") != 0 {
		t.Errorf("unexpected errors:\n%s", logs.String())
	}
}

func TestDial_HTTPErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "busy", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	w, err := Dial(context.Background(), config.ActuatorConfig{Transport: "http", Address: srv.URL})
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	logs := &testutil.LogBuffer{}
	link := NewLink(w, Options{Transport: "http", Logger: logging.NewWriterLogger(logs, "info")})
	link.Send(CommandJumpscare)

	if logs.Count("ERROR") != 1 {
		t.Errorf("expected one error for a 503:\n%s", logs.String())
	}
}

func TestDial_Errors(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.ActuatorConfig
		want error
	}{
		{"none", config.ActuatorConfig{Transport: "none"}, ErrDisabled},
		{"unknown", config.ActuatorConfig{Transport: "carrier-pigeon"}, errors.ErrUnknownTransport},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Dial(context.Background(), tt.cfg)
			if !errors.Is(err, tt.want) {
				t.Errorf("Dial() error = %v, want %v", err, tt.want)
			}
		})
	}

	t.Run("missing serial port", func(t *testing.T) {
		_, err := Dial(context.Background(), config.ActuatorConfig{
			Transport: "serial",
			Address:   filepath.Join(t.TempDir(), "ttyUSB9"),
			BaudRate:  115200,
		})
		var te *errors.TransportError
		if !errors.As(err, &te) || te.Transport != "serial" {
			t.Errorf("Dial() error = %v, want a serial TransportError", err)
		}
	})

	t.Run("bad http scheme", func(t *testing.T) {
		_, err := Dial(context.Background(), config.ActuatorConfig{Transport: "http", Address: "ftp://device"})
		if err == nil {
			t.Error("expected an error for a non-http URL")
		}
	})

	t.Run("tcp refused", func(t *testing.T) {
		ln, err := net.Listen("tcp", "127.0.0.1:0")
		if err != nil {
			t.Fatal(err)
		}
		addr := ln.Addr().String()
		_ = ln.Close()

		_, err = Dial(context.Background(), config.ActuatorConfig{Transport: "tcp", Address: addr, DialTimeoutMs: 200})
		if err == nil {
			t.Error("expected a dial error")
		}
	})
}
