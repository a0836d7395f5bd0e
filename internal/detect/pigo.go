package detect

import (
	"fmt"
	"image"
	"os"
	"sync"

	pigo "github.com/esimov/pigo/core"
	"golang.org/x/image/draw"
)

// CascadeParams tunes the face classifier.
type CascadeParams struct {
	// ScaleFactor is the growth of the search window between passes (> 1)
	ScaleFactor float64
	// MinNeighbors is how many raw hits must support a face
	MinNeighbors int
	// MinSize is the smallest face edge in pixels
	MinSize int
	// MaxSize is the largest face edge in pixels; 0 means the frame's shorter side
	MaxSize int
	// ShiftFactor is the window step as a fraction of its size
	ShiftFactor float64
	// MinQuality drops clustered detections scoring below it
	MinQuality float32
}

// DefaultCascadeParams returns the classic 1.1 / 5 / 30x30 settings.
func DefaultCascadeParams() CascadeParams {
	return CascadeParams{
		ScaleFactor:  1.1,
		MinNeighbors: 5,
		MinSize:      30,
		ShiftFactor:  0.1,
		MinQuality:   5.0,
	}
}

// clusterIoU is the overlap above which two hits are the same face.
const clusterIoU = 0.2

// PigoClassifier finds faces with a pigo cascade.
type PigoClassifier struct {
	params CascadeParams

	mu         sync.Mutex // pigo reuses internal buffers between runs
	classifier *pigo.Pigo
}

// NewPigoClassifier unpacks a cascade file's contents.
func NewPigoClassifier(cascade []byte, params CascadeParams) (*PigoClassifier, error) {
	classifier, err := pigo.NewPigo().Unpack(cascade)
	if err != nil {
		return nil, fmt.Errorf("unpacking cascade: %w", err)
	}
	return &PigoClassifier{params: params, classifier: classifier}, nil
}

// LoadPigoClassifier reads a cascade from disk.
func LoadPigoClassifier(path string, params CascadeParams) (*PigoClassifier, error) {
	cascade, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading cascade: %w", err)
	}
	return NewPigoClassifier(cascade, params)
}

// Detect returns the number of faces supported by at least MinNeighbors
// raw hits.
func (c *PigoClassifier) Detect(img image.Image) (int, error) {
	b := img.Bounds()
	if b.Empty() {
		return 0, nil
	}
	nrgba := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(nrgba, nrgba.Bounds(), img, b.Min, draw.Src)

	maxSize := c.params.MaxSize
	if maxSize <= 0 {
		maxSize = min(b.Dx(), b.Dy())
	}
	if maxSize < c.params.MinSize {
		return 0, nil
	}

	params := pigo.CascadeParams{
		MinSize:     c.params.MinSize,
		MaxSize:     maxSize,
		ShiftFactor: c.params.ShiftFactor,
		ScaleFactor: c.params.ScaleFactor,
		ImageParams: pigo.ImageParams{
			Pixels: pigo.RgbToGrayscale(nrgba),
			Rows:   b.Dy(),
			Cols:   b.Dx(),
			Dim:    b.Dx(),
		},
	}

	c.mu.Lock()
	raw := c.classifier.RunCascade(params, 0.0)
	clustered := c.classifier.ClusterDetections(raw, clusterIoU)
	c.mu.Unlock()

	faces := 0
	for _, det := range clustered {
		if det.Q < c.params.MinQuality {
			continue
		}
		if neighbors(det, raw) >= c.params.MinNeighbors {
			faces++
		}
	}
	return faces, nil
}

// neighbors counts the raw hits that overlap a clustered detection.
func neighbors(face pigo.Detection, raw []pigo.Detection) int {
	n := 0
	for _, r := range raw {
		if iou(face, r) > clusterIoU {
			n++
		}
	}
	return n
}

func iou(a, b pigo.Detection) float64 {
	ra := square(a)
	rb := square(b)
	inter := ra.Intersect(rb)
	if inter.Empty() {
		return 0
	}
	ia := float64(inter.Dx() * inter.Dy())
	union := float64(ra.Dx()*ra.Dy()+rb.Dx()*rb.Dy()) - ia
	return ia / union
}

func square(d pigo.Detection) image.Rectangle {
	half := d.Scale / 2
	return image.Rect(d.Col-half, d.Row-half, d.Col+half, d.Row+half)
}
