// Package testutil provides testing utilities for odtl tests.
package testutil

import (
	"bytes"
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"
)

// LogBuffer collects JSON log lines from concurrent writers.
type LogBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

// Write implements io.Writer.
func (b *LogBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

// Entries parses every line written so far. Lines that are not JSON are
// skipped.
func (b *LogBuffer) Entries() []map[string]any {
	b.mu.Lock()
	data := b.buf.String()
	b.mu.Unlock()

	var entries []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(data), "\n") {
		if line == "" {
			continue
		}
		var entry map[string]any
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			continue
		}
		entries = append(entries, entry)
	}
	return entries
}

// Count returns how many entries were logged at level ("ERROR", "WARN", ...).
func (b *LogBuffer) Count(level string) int {
	n := 0
	for _, e := range b.Entries() {
		if e["level"] == level {
			n++
		}
	}
	return n
}

// Messages returns the msg field of every entry at level.
func (b *LogBuffer) Messages(level string) []string {
	var msgs []string
	for _, e := range b.Entries() {
		if e["level"] == level {
			msg, _ := e["msg"].(string)
			msgs = append(msgs, msg)
		}
	}
	return msgs
}

// String returns the raw log text.
func (b *LogBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// Eventually polls cond every few milliseconds until it holds or timeout
// passes, then fails the test.
func Eventually(t *testing.T, timeout time.Duration, cond func() bool, msg string) {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	if !cond() {
		t.Fatalf("condition not met within %v: %s", timeout, msg)
	}
}

// AssertDuration fails the test unless got is within [want-early, want+late].
func AssertDuration(t *testing.T, got, want, early, late time.Duration) {
	t.Helper()

	if got < want-early || got > want+late {
		t.Errorf("elapsed %v, want %v (-%v/+%v)", got, want, early, late)
	}
}
