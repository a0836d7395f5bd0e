package detect

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"net/http"
	"os"
	"time"

	"github.com/b1zarr-e/ODTL/internal/errors"
)

// Classifier counts the faces in a frame.
type Classifier interface {
	Detect(img image.Image) (int, error)
}

// VideoSource opens a frame stream.
type VideoSource interface {
	Open(ctx context.Context) (FrameReader, error)
}

// FrameReader yields frames from an open video source.
type FrameReader interface {
	ReadFrame(ctx context.Context) (image.Image, error)
	Close() error
}

// Vision detects a face in frames from a video source.
type Vision struct {
	id         string
	label      string
	source     VideoSource
	classifier Classifier
}

// NewVision creates a vision detector.
func NewVision(id, label string, source VideoSource, classifier Classifier) *Vision {
	return &Vision{id: id, label: label, source: source, classifier: classifier}
}

func (v *Vision) ID() string    { return v.id }
func (v *Vision) Label() string { return v.label }

// Open opens the video source for one window.
func (v *Vision) Open(ctx context.Context) (Probe, error) {
	reader, err := v.source.Open(ctx)
	if err != nil {
		return nil, errors.NewSensorError("open video source", fmt.Errorf("%w: %w", errors.ErrSensorUnavailable, err)).WithDetector(v.id)
	}
	return &visionProbe{id: v.id, reader: reader, classifier: v.classifier}, nil
}

type visionProbe struct {
	id         string
	reader     FrameReader
	classifier Classifier
	closed     bool
}

// Sample captures one frame; detected means at least one face region.
func (p *visionProbe) Sample(ctx context.Context) (bool, error) {
	frame, err := p.reader.ReadFrame(ctx)
	if err != nil {
		return false, errors.NewSensorError("read frame", fmt.Errorf("%w: %w", errors.ErrSensorRead, err)).WithDetector(p.id)
	}
	faces, err := p.classifier.Detect(frame)
	if err != nil {
		return false, errors.NewSensorError("classify frame", err).WithDetector(p.id)
	}
	return faces >= 1, nil
}

func (p *visionProbe) Close() error {
	if p.closed {
		return nil
	}
	p.closed = true
	return p.reader.Close()
}

// DefaultSnapshotTimeout bounds a single snapshot request when the source
// creates its own client.
const DefaultSnapshotTimeout = 2 * time.Second

// SnapshotSource fetches single JPEG frames over HTTP, as served by an
// ESP32-CAM at /capture. A nil Client gets a dedicated client per window.
type SnapshotSource struct {
	URL    string
	Client *http.Client
}

// Open fetches the first frame to check that the camera answers. That
// frame is the first one ReadFrame returns.
func (s *SnapshotSource) Open(ctx context.Context) (FrameReader, error) {
	r := &snapshotReader{url: s.URL, client: s.Client}
	if r.client == nil {
		r.client = &http.Client{Timeout: DefaultSnapshotTimeout}
		r.owned = true
	}
	first, err := r.fetch(ctx)
	if err != nil {
		r.release()
		return nil, err
	}
	r.pending = first
	return r, nil
}

type snapshotReader struct {
	url     string
	client  *http.Client
	owned   bool
	pending image.Image
}

func (r *snapshotReader) ReadFrame(ctx context.Context) (image.Image, error) {
	if img := r.pending; img != nil {
		r.pending = nil
		return img, nil
	}
	return r.fetch(ctx)
}

func (r *snapshotReader) fetch(ctx context.Context) (image.Image, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("snapshot %s: unexpected status %s", r.url, resp.Status)
	}
	img, _, err := image.Decode(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("decoding snapshot: %w", err)
	}
	return img, nil
}

// release drops idle connections of a client this reader created. A
// caller-supplied client is left alone.
func (r *snapshotReader) release() {
	if r.owned {
		r.client.CloseIdleConnections()
	}
}

func (r *snapshotReader) Close() error {
	r.pending = nil
	r.release()
	return nil
}

// FileFrameSource serves the same decoded image on every read. Useful for
// exercising the classifier without a camera.
type FileFrameSource struct {
	Path string
}

// Open decodes the image once.
func (s *FileFrameSource) Open(context.Context) (FrameReader, error) {
	data, err := os.ReadFile(s.Path)
	if err != nil {
		return nil, err
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", s.Path, err)
	}
	return StaticFrames(img), nil
}

// StaticFrames returns a reader that always yields img.
func StaticFrames(img image.Image) FrameReader {
	return staticReader{img: img}
}

type staticReader struct {
	img image.Image
}

func (r staticReader) ReadFrame(ctx context.Context) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return r.img, nil
}

func (staticReader) Close() error { return nil }
