package logging

import (
	"bytes"
	"compress/gzip"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const historyLog = `{"time":"2026-01-02T10:00:02Z","level":"INFO","msg":"detection window opened","session_id":"abc","challenge":3}
{"time":"2026-01-02T10:00:03Z","level":"WARN","msg":"cascade missing","detector":"camera"}
not json at all
{"time":"2026-01-02T10:00:04Z","level":"ERROR","msg":"actuator send failed","session_id":"abc","error":"broken pipe"}
`

func writeHistory(t *testing.T, dir string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, FileName), []byte(historyLog), 0644); err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	_, _ = gz.Write([]byte(`{"time":"2026-01-02T09:59:00Z","level":"DEBUG","msg":"frame sampled","detector":"microphone"}` + "\n"))
	if err := gz.Close(); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, FileName+".1.gz"), buf.Bytes(), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestReadHistory(t *testing.T) {
	dir := t.TempDir()
	writeHistory(t, dir)

	entries, err := ReadHistory(dir)
	if err != nil {
		t.Fatalf("ReadHistory() error = %v", err)
	}
	if len(entries) != 4 {
		t.Fatalf("got %d entries, want 4", len(entries))
	}

	if entries[0].Message != "frame sampled" {
		t.Errorf("entries[0] = %q, want the gzipped backup first", entries[0].Message)
	}
	if entries[1].Challenge != 3 || entries[1].SessionID != "abc" {
		t.Errorf("entries[1] = %+v, want challenge 3 in session abc", entries[1])
	}
	if entries[2].Detector != "camera" || entries[2].Challenge != -1 {
		t.Errorf("entries[2] = %+v, want detector camera without challenge", entries[2])
	}
	if entries[3].Attrs["error"] != "broken pipe" {
		t.Errorf("entries[3].Attrs = %v, want error attr", entries[3].Attrs)
	}
}

func TestReadHistory_Missing(t *testing.T) {
	_, err := ReadHistory(t.TempDir())
	if err == nil || !strings.Contains(err.Error(), "no log file") {
		t.Errorf("ReadHistory() error = %v, want no log file", err)
	}
}

func TestFilterEntries(t *testing.T) {
	dir := t.TempDir()
	writeHistory(t, dir)
	entries, err := ReadHistory(dir)
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name   string
		filter Filter
		want   int
	}{
		{"empty filter", Filter{}, 4},
		{"level warn", Filter{Level: "warn"}, 2},
		{"level error", Filter{Level: LevelError}, 1},
		{"unknown level keeps all", Filter{Level: "loud"}, 4},
		{"session", Filter{SessionID: "abc"}, 2},
		{"detector", Filter{Detector: "microphone"}, 1},
		{"since", Filter{Since: time.Date(2026, 1, 2, 10, 0, 3, 0, time.UTC)}, 2},
		{"message", Filter{MessageContains: "window"}, 1},
		{"combined", Filter{SessionID: "abc", Level: LevelWarn}, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FilterEntries(entries, tt.filter)
			if len(got) != tt.want {
				t.Errorf("FilterEntries() returned %d entries, want %d", len(got), tt.want)
			}
		})
	}
}

func TestWriteEntries(t *testing.T) {
	entries := []Entry{
		{
			Timestamp: time.Date(2026, 1, 2, 10, 0, 0, 0, time.UTC),
			Level:     LevelInfo,
			Message:   "alert started",
			SessionID: "abc",
			Challenge: 2,
			Detector:  "camera",
			Attrs:     map[string]any{"label": "I SEE YOU"},
		},
		{
			Timestamp: time.Date(2026, 1, 2, 10, 0, 1, 0, time.UTC),
			Level:     LevelWarn,
			Message:   "sound failed",
			Challenge: -1,
		},
	}

	t.Run("text", func(t *testing.T) {
		var buf bytes.Buffer
		if err := WriteEntries(&buf, entries, FormatText, 0); err != nil {
			t.Fatal(err)
		}
		lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
		if len(lines) != 2 {
			t.Fatalf("got %d lines, want 2", len(lines))
		}
		want := `[2026-01-02 10:00:00.000] INFO - alert started (session=abc, challenge=2, detector=camera) {"label":"I SEE YOU"}`
		if lines[0] != want {
			t.Errorf("line 0 = %q, want %q", lines[0], want)
		}
		if lines[1] != "[2026-01-02 10:00:01.000] WARN - sound failed" {
			t.Errorf("line 1 = %q", lines[1])
		}
	})

	t.Run("text truncated", func(t *testing.T) {
		var buf bytes.Buffer
		if err := WriteEntries(&buf, entries, FormatText, 30); err != nil {
			t.Fatal(err)
		}
		for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
			if len(line) > 30 {
				t.Errorf("line %q is longer than 30 columns", line)
			}
			if !strings.HasSuffix(line, "...") {
				t.Errorf("line %q should end with an ellipsis", line)
			}
		}
	})

	t.Run("json", func(t *testing.T) {
		var buf bytes.Buffer
		if err := WriteEntries(&buf, entries, "JSON", 0); err != nil {
			t.Fatal(err)
		}
		var decoded []Entry
		if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
			t.Fatalf("output is not JSON: %v", err)
		}
		if len(decoded) != 2 || decoded[0].Detector != "camera" {
			t.Errorf("decoded = %+v", decoded)
		}
	})

	t.Run("csv", func(t *testing.T) {
		var buf bytes.Buffer
		if err := WriteEntries(&buf, entries, FormatCSV, 0); err != nil {
			t.Fatal(err)
		}
		records, err := csv.NewReader(&buf).ReadAll()
		if err != nil {
			t.Fatalf("output is not CSV: %v", err)
		}
		if len(records) != 3 {
			t.Fatalf("got %d records, want header plus 2", len(records))
		}
		if records[1][4] != "2" || records[2][4] != "" {
			t.Errorf("challenge column = %q, %q", records[1][4], records[2][4])
		}
	})

	t.Run("unsupported", func(t *testing.T) {
		if err := WriteEntries(&bytes.Buffer{}, entries, "xml", 0); err == nil {
			t.Error("expected error for unsupported format")
		}
	})
}

func TestNewWriterLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWriterLogger(&buf, LevelWarn).WithDetector("microphone")

	logger.Info("dropped")
	logger.Warn("kept", "threshold", 1000)

	entry, err := parseEntry(strings.TrimSpace(buf.String()))
	if err != nil {
		t.Fatalf("output is not a single JSON line: %q", buf.String())
	}
	if entry.Message != "kept" || entry.Detector != "microphone" {
		t.Errorf("entry = %+v", entry)
	}
	if err := logger.Close(); err != nil {
		t.Errorf("Close() = %v, want nil for a caller-owned writer", err)
	}
}
