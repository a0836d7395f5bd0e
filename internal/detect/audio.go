package detect

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"

	"github.com/b1zarr-e/ODTL/internal/errors"
)

// AudioSource opens a stream of signed 16-bit little-endian mono samples.
type AudioSource interface {
	Open(ctx context.Context) (io.ReadCloser, error)
}

// Audio detects a loud frame on an audio stream.
type Audio struct {
	id        string
	label     string
	source    AudioSource
	threshold float64
	frameSize int
	streaming bool
}

// NewAudio creates an audio detector that reads frameSize samples per
// Sample and fires when their mean absolute amplitude exceeds threshold.
func NewAudio(id, label string, source AudioSource, threshold float64, frameSize int) *Audio {
	if frameSize <= 0 {
		frameSize = 1024
	}
	return &Audio{
		id:        id,
		label:     label,
		source:    source,
		threshold: threshold,
		frameSize: frameSize,
		streaming: IsStreaming(source),
	}
}

func (a *Audio) ID() string    { return a.id }
func (a *Audio) Label() string { return a.label }

// Open opens the audio stream for one window.
func (a *Audio) Open(ctx context.Context) (Probe, error) {
	stream, err := a.source.Open(ctx)
	if err != nil {
		return nil, errors.NewSensorError("open audio source", fmt.Errorf("%w: %w", errors.ErrSensorUnavailable, err)).WithDetector(a.id)
	}
	return &audioProbe{
		id:        a.id,
		stream:    stream,
		threshold: a.threshold,
		buf:       make([]byte, a.frameSize*2),
		samples:   make([]int16, a.frameSize),
		streaming: a.streaming,
	}, nil
}

type audioProbe struct {
	id        string
	stream    io.ReadCloser
	threshold float64
	buf       []byte
	samples   []int16
	streaming bool
	closeOnce sync.Once
	closeErr  error
}

// Sample reads one full frame and compares its loudness to the threshold.
// A blocked read is abandoned when ctx ends by closing the stream.
func (p *audioProbe) Sample(ctx context.Context) (bool, error) {
	stop := context.AfterFunc(ctx, func() { _ = p.Close() })
	defer stop()

	if _, err := io.ReadFull(p.stream, p.buf); err != nil {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		return false, errors.NewSensorError("read audio frame", fmt.Errorf("%w: %w", errors.ErrSensorRead, err)).WithDetector(p.id)
	}
	for i := range p.samples {
		p.samples[i] = int16(binary.LittleEndian.Uint16(p.buf[2*i:]))
	}
	return MeanAbsAmplitude(p.samples) > p.threshold, nil
}

// Streaming reports whether the stream is live. Each Sample then consumes
// exactly one frame of new audio.
func (p *audioProbe) Streaming() bool { return p.streaming }

func (p *audioProbe) Close() error {
	p.closeOnce.Do(func() { p.closeErr = p.stream.Close() })
	return p.closeErr
}

// MeanAbsAmplitude returns the mean of |s| over the frame, 0 for an empty
// frame.
func MeanAbsAmplitude(samples []int16) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum int64
	for _, s := range samples {
		v := int64(s)
		if v < 0 {
			v = -v
		}
		sum += v
	}
	return float64(sum) / float64(len(samples))
}

// CommandAudioSource captures audio by running a program that writes raw
// S16LE mono samples to stdout, such as arecord.
type CommandAudioSource struct {
	Argv []string
}

// Streaming is always true: the program produces audio in real time.
func (s *CommandAudioSource) Streaming() bool { return true }

// Open starts the capture program. Closing the stream kills it.
func (s *CommandAudioSource) Open(ctx context.Context) (io.ReadCloser, error) {
	if len(s.Argv) == 0 {
		return nil, fmt.Errorf("no capture command configured")
	}
	cmd := exec.Command(s.Argv[0], s.Argv[1:]...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("starting %s: %w", s.Argv[0], err)
	}
	return &commandStream{cmd: cmd, stdout: stdout}, nil
}

type commandStream struct {
	cmd    *exec.Cmd
	stdout io.ReadCloser
	once   sync.Once
}

func (c *commandStream) Read(p []byte) (int, error) { return c.stdout.Read(p) }

func (c *commandStream) Close() error {
	c.once.Do(func() {
		_ = c.cmd.Process.Kill()
		_ = c.stdout.Close()
		_ = c.cmd.Wait()
	})
	return nil
}

// ReaderAudioSource serves samples from a file, looping at EOF. It is not
// a stream, so it is sampled once per poll interval.
type ReaderAudioSource struct {
	Path string
}

// Open opens the file.
func (s *ReaderAudioSource) Open(context.Context) (io.ReadCloser, error) {
	f, err := os.Open(s.Path)
	if err != nil {
		return nil, err
	}
	return &loopingFile{f: f}, nil
}

type loopingFile struct {
	f *os.File
}

func (l *loopingFile) Read(p []byte) (int, error) {
	n, err := l.f.Read(p)
	if err != io.EOF {
		return n, err
	}
	if _, err := l.f.Seek(0, io.SeekStart); err != nil {
		return n, err
	}
	if n > 0 {
		return n, nil
	}
	n, err = l.f.Read(p)
	if err == io.EOF {
		// empty file
		return 0, io.ErrUnexpectedEOF
	}
	return n, err
}

func (l *loopingFile) Close() error { return l.f.Close() }
