package detect

import (
	"bytes"
	"context"
	"encoding/binary"
	"image"
	"image/color"
	"image/png"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	pigo "github.com/esimov/pigo/core"

	"github.com/b1zarr-e/ODTL/internal/errors"
)

func TestMeanAbsAmplitude(t *testing.T) {
	tests := []struct {
		name    string
		samples []int16
		want    float64
	}{
		{"empty", nil, 0},
		{"silence", []int16{0, 0, 0, 0}, 0},
		{"symmetric", []int16{100, -100, 100, -100}, 100},
		{"mixed", []int16{10, -30, 20, 0}, 15},
		{"extremes", []int16{-32768, 32767}, 32767.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := MeanAbsAmplitude(tt.samples); got != tt.want {
				t.Errorf("MeanAbsAmplitude() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFixed(t *testing.T) {
	d := NewFixed("camera", "I SEE YOU", true)
	if d.ID() != "camera" || d.Label() != "I SEE YOU" {
		t.Errorf("ID/Label = %q/%q", d.ID(), d.Label())
	}

	probe, err := d.Open(context.Background())
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	ok, err := probe.Sample(context.Background())
	if err != nil || !ok {
		t.Errorf("Sample() = %v, %v; want true, nil", ok, err)
	}

	_ = probe.Close()
	_ = probe.Close()
	if d.Opens() != 1 || d.Closes() != 1 {
		t.Errorf("opens/closes = %d/%d, want 1/1", d.Opens(), d.Closes())
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	probe, _ = Never("mic").Open(ctx)
	if _, err := probe.Sample(ctx); err == nil {
		t.Error("Sample() should report a canceled context")
	}
}

// pcm encodes samples as S16LE.
func pcm(samples ...int16) []byte {
	var buf bytes.Buffer
	for _, s := range samples {
		_ = binary.Write(&buf, binary.LittleEndian, s)
	}
	return buf.Bytes()
}

type bytesAudio struct {
	data []byte
	err  error
}

func (b bytesAudio) Open(context.Context) (io.ReadCloser, error) {
	if b.err != nil {
		return nil, b.err
	}
	return io.NopCloser(bytes.NewReader(b.data)), nil
}

func TestAudio_Threshold(t *testing.T) {
	tests := []struct {
		name    string
		samples []int16
		want    bool
	}{
		{"quiet", []int16{10, -10, 5, -5}, false},
		{"at threshold", []int16{1000, -1000, 1000, -1000}, false},
		{"loud", []int16{2000, -2000, 1500, -1500}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := NewAudio("mic", "I HEARD YOU", bytesAudio{data: pcm(tt.samples...)}, 1000, 4)
			probe, err := d.Open(context.Background())
			if err != nil {
				t.Fatalf("Open() error = %v", err)
			}
			defer func() { _ = probe.Close() }()

			got, err := probe.Sample(context.Background())
			if err != nil {
				t.Fatalf("Sample() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("Sample() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestAudio_ShortFrame(t *testing.T) {
	d := NewAudio("mic", "I HEARD YOU", bytesAudio{data: pcm(1, 2)}, 1000, 4)
	probe, _ := d.Open(context.Background())

	_, err := probe.Sample(context.Background())
	if !errors.Is(err, errors.ErrSensorRead) {
		t.Errorf("Sample() error = %v, want ErrSensorRead", err)
	}
}

func TestAudio_OpenFailure(t *testing.T) {
	d := NewAudio("mic", "I HEARD YOU", bytesAudio{err: os.ErrNotExist}, 1000, 4)

	_, err := d.Open(context.Background())
	if !errors.Is(err, errors.ErrSensorUnavailable) {
		t.Fatalf("Open() error = %v, want ErrSensorUnavailable", err)
	}
	var sensorErr *errors.SensorError
	if !errors.As(err, &sensorErr) || sensorErr.DetectorID != "mic" {
		t.Errorf("expected SensorError for mic, got %v", err)
	}
}

type blockingAudio struct{}

func (blockingAudio) Open(context.Context) (io.ReadCloser, error) {
	r, w := io.Pipe()
	_ = w // never written
	return r, nil
}

func TestAudio_SampleHonorsContext(t *testing.T) {
	d := NewAudio("mic", "I HEARD YOU", blockingAudio{}, 1000, 4)
	probe, _ := d.Open(context.Background())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := probe.Sample(ctx)
		done <- err
	}()
	cancel()

	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Errorf("Sample() error = %v, want context.Canceled", err)
	}
}

func TestReaderAudioSource_Loops(t *testing.T) {
	path := filepath.Join(t.TempDir(), "loud.raw")
	if err := os.WriteFile(path, pcm(3000, -3000), 0o644); err != nil {
		t.Fatal(err)
	}

	d := NewAudio("mic", "I HEARD YOU", &ReaderAudioSource{Path: path}, 1000, 6)
	probe, err := d.Open(context.Background())
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer func() { _ = probe.Close() }()

	for i := range 3 {
		got, err := probe.Sample(context.Background())
		if err != nil || !got {
			t.Fatalf("sample %d = %v, %v; want true, nil", i, got, err)
		}
	}
}

func TestCommandAudioSource_Empty(t *testing.T) {
	if _, err := (&CommandAudioSource{}).Open(context.Background()); err == nil {
		t.Error("Open() should fail without a command")
	}
}

type countingClassifier struct{ faces int }

func (c countingClassifier) Detect(image.Image) (int, error) { return c.faces, nil }

func testImage() image.Image {
	img := image.NewRGBA(image.Rect(0, 0, 8, 6))
	for x := range 8 {
		img.Set(x, 3, color.White)
	}
	return img
}

type staticSource struct{ err error }

func (s staticSource) Open(context.Context) (FrameReader, error) {
	if s.err != nil {
		return nil, s.err
	}
	return StaticFrames(testImage()), nil
}

func TestVision(t *testing.T) {
	tests := []struct {
		faces int
		want  bool
	}{
		{0, false},
		{1, true},
		{3, true},
	}

	for _, tt := range tests {
		d := NewVision("camera", "I SEE YOU", staticSource{}, countingClassifier{faces: tt.faces})
		probe, err := d.Open(context.Background())
		if err != nil {
			t.Fatalf("Open() error = %v", err)
		}
		got, err := probe.Sample(context.Background())
		if err != nil {
			t.Fatalf("Sample() error = %v", err)
		}
		if got != tt.want {
			t.Errorf("faces=%d: Sample() = %v, want %v", tt.faces, got, tt.want)
		}
		if err := probe.Close(); err != nil {
			t.Errorf("Close() error = %v", err)
		}
	}
}

func TestVision_OpenFailure(t *testing.T) {
	d := NewVision("camera", "I SEE YOU", staticSource{err: io.EOF}, countingClassifier{})
	if _, err := d.Open(context.Background()); !errors.Is(err, errors.ErrSensorUnavailable) {
		t.Errorf("Open() error = %v, want ErrSensorUnavailable", err)
	}
}

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestSnapshotSource(t *testing.T) {
	body := encodePNG(t, testImage())
	var requests atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/capture" {
			http.NotFound(w, r)
			return
		}
		requests.Add(1)
		_, _ = w.Write(body)
	}))
	defer srv.Close()

	src := &SnapshotSource{URL: srv.URL + "/capture", Client: srv.Client()}
	reader, err := src.Open(context.Background())
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer func() { _ = reader.Close() }()

	img, err := reader.ReadFrame(context.Background())
	if err != nil {
		t.Fatalf("ReadFrame() error = %v", err)
	}
	if img.Bounds().Dx() != 8 || img.Bounds().Dy() != 6 {
		t.Errorf("frame bounds = %v", img.Bounds())
	}
	if got := requests.Load(); got != 1 {
		t.Errorf("requests after Open and first ReadFrame = %d, want 1", got)
	}

	if _, err := reader.ReadFrame(context.Background()); err != nil {
		t.Fatalf("second ReadFrame() error = %v", err)
	}
	if got := requests.Load(); got != 2 {
		t.Errorf("requests after second ReadFrame = %d, want 2", got)
	}

	bad := &SnapshotSource{URL: srv.URL + "/missing", Client: srv.Client()}
	if _, err := bad.Open(context.Background()); err == nil {
		t.Error("Open() should fail on a non-200 response")
	}
}

func TestSnapshotSource_OwnClient(t *testing.T) {
	body := encodePNG(t, testImage())
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(body)
	}))
	defer srv.Close()

	src := &SnapshotSource{URL: srv.URL + "/capture"}
	reader, err := src.Open(context.Background())
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	sr := reader.(*snapshotReader)
	if !sr.owned || sr.client == http.DefaultClient {
		t.Error("a source without a client should create its own")
	}
	if err := reader.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}

	shared := srv.Client()
	reader, err = (&SnapshotSource{URL: srv.URL, Client: shared}).Open(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if reader.(*snapshotReader).owned {
		t.Error("a caller-supplied client must not be treated as owned")
	}
	_ = reader.Close()
}

func TestAudio_Streaming(t *testing.T) {
	tests := []struct {
		name   string
		source AudioSource
		want   bool
	}{
		{"file source polls", &ReaderAudioSource{Path: "x.raw"}, false},
		{"in-memory source polls", bytesAudio{data: pcm(1, 2, 3, 4)}, false},
		{"live source streams", streamingAudio{bytesAudio{data: pcm(1, 2, 3, 4)}}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsStreaming(tt.source); got != tt.want {
				t.Errorf("IsStreaming(source) = %v, want %v", got, tt.want)
			}
		})
	}

	if !IsStreaming(&CommandAudioSource{Argv: []string{"arecord"}}) {
		t.Error("capture commands produce live audio and should stream")
	}

	d := NewAudio("mic", "I HEARD YOU", streamingAudio{bytesAudio{data: pcm(1, 2, 3, 4)}}, 1000, 4)
	sensor, err := d.Open(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = sensor.Close() }()
	if !IsStreaming(sensor) {
		t.Error("an opened streaming source should report streaming")
	}
}

type streamingAudio struct {
	bytesAudio
}

func (streamingAudio) Streaming() bool { return true }

func TestFileFrameSource(t *testing.T) {
	path := filepath.Join(t.TempDir(), "frame.png")
	if err := os.WriteFile(path, encodePNG(t, testImage()), 0o644); err != nil {
		t.Fatal(err)
	}

	reader, err := (&FileFrameSource{Path: path}).Open(context.Background())
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	img, err := reader.ReadFrame(context.Background())
	if err != nil || img.Bounds().Dx() != 8 {
		t.Errorf("ReadFrame() = %v, %v", img.Bounds(), err)
	}

	if _, err := (&FileFrameSource{Path: filepath.Join(t.TempDir(), "none.png")}).Open(context.Background()); err == nil {
		t.Error("Open() should fail for a missing file")
	}
}

func TestNeighbors(t *testing.T) {
	face := pigo.Detection{Row: 50, Col: 50, Scale: 40}
	raw := []pigo.Detection{
		{Row: 50, Col: 50, Scale: 40},
		{Row: 52, Col: 48, Scale: 42},
		{Row: 49, Col: 51, Scale: 38},
		{Row: 200, Col: 200, Scale: 40},
	}

	if got := neighbors(face, raw); got != 3 {
		t.Errorf("neighbors() = %d, want 3", got)
	}
	if got := iou(face, face); got != 1 {
		t.Errorf("iou(self) = %v, want 1", got)
	}
	if got := iou(face, raw[3]); got != 0 {
		t.Errorf("iou(disjoint) = %v, want 0", got)
	}
}

func TestDefaultCascadeParams(t *testing.T) {
	p := DefaultCascadeParams()
	if p.ScaleFactor != 1.1 || p.MinNeighbors != 5 || p.MinSize != 30 {
		t.Errorf("DefaultCascadeParams() = %+v", p)
	}
}
