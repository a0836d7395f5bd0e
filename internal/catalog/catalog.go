// Package catalog defines the challenge records a session plays through and
// loads them from the built-in set or a YAML file.
package catalog

import (
	"fmt"
	"os"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/b1zarr-e/ODTL/internal/errors"
)

// Kind selects how a challenge is handled.
type Kind int

const (
	// Plain challenges ask for a numbered choice.
	Plain Kind = iota
	// CameraTrigger challenges open a detection window on the camera.
	CameraTrigger
	// AudioTrigger challenges open a detection window on the microphone.
	AudioTrigger
)

// String returns the name used in catalog files and logs.
func (k Kind) String() string {
	switch k {
	case Plain:
		return "plain"
	case CameraTrigger:
		return "camera"
	case AudioTrigger:
		return "microphone"
	default:
		return "unknown"
	}
}

// ParseKind converts a catalog name into a Kind. "audio" and "mic" are
// accepted for microphone challenges.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "plain", "":
		return Plain, nil
	case "camera":
		return CameraTrigger, nil
	case "microphone", "mic", "audio":
		return AudioTrigger, nil
	default:
		return Plain, fmt.Errorf("unknown challenge kind %q", s)
	}
}

// UnmarshalYAML decodes a kind name.
func (k *Kind) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := ParseKind(s)
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// MarshalYAML encodes a kind by name.
func (k Kind) MarshalYAML() (any, error) {
	return k.String(), nil
}

// Defaults applied when a challenge leaves a field empty.
var (
	DefaultPlainOptions = []string{"Yes", "No"}
	DefaultAudioOptions = []string{"Yes", "IT CAN HEAR YOU"}
)

// DefaultWarning is typed before a camera window opens.
const DefaultWarning = "H I D E"

// Challenge is one question in a session. Values are treated as immutable
// once loaded.
type Challenge struct {
	Text    string   `yaml:"text"`
	Kind    Kind     `yaml:"kind"`
	Options []string `yaml:"options,omitempty"`
	Warning string   `yaml:"warning,omitempty"`
}

// SensorGated reports whether the challenge opens a detection window.
func (c Challenge) SensorGated() bool {
	return c.Kind == CameraTrigger || c.Kind == AudioTrigger
}

func (c Challenge) withDefaults() Challenge {
	switch c.Kind {
	case Plain:
		if len(c.Options) == 0 {
			c.Options = slices.Clone(DefaultPlainOptions)
		}
	case AudioTrigger:
		if len(c.Options) == 0 {
			c.Options = slices.Clone(DefaultAudioOptions)
		}
	case CameraTrigger:
		if c.Warning == "" {
			c.Warning = DefaultWarning
		}
	}
	return c
}

// File is the on-disk catalog format.
type File struct {
	// Version is the file format version (currently "1")
	Version    string      `yaml:"version"`
	Challenges []Challenge `yaml:"challenges"`
}

// Load reads a catalog file and returns its challenges with defaults
// applied.
func Load(path string) ([]Challenge, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading catalog file: %w", err)
	}
	return Parse(data)
}

// Parse decodes catalog YAML.
func Parse(data []byte) ([]Challenge, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing catalog file: %w", err)
	}
	if f.Version != "" && f.Version != "1" {
		return nil, fmt.Errorf("%w: unsupported version %s (supported: 1)", errors.ErrCatalogInvalid, f.Version)
	}

	challenges := make([]Challenge, len(f.Challenges))
	for i, c := range f.Challenges {
		challenges[i] = c.withDefaults()
	}
	if err := Validate(challenges); err != nil {
		return nil, err
	}
	return challenges, nil
}

// Validate checks that a catalog can be played.
func Validate(challenges []Challenge) error {
	if len(challenges) == 0 {
		return fmt.Errorf("%w: no challenges", errors.ErrCatalogInvalid)
	}

	var problems []error
	for i, c := range challenges {
		if strings.TrimSpace(c.Text) == "" {
			problems = append(problems, fmt.Errorf("challenge %d: text is required", i+1))
		}
		if c.Kind == Plain && len(c.Options) < 2 {
			problems = append(problems, fmt.Errorf("challenge %d: plain challenges need at least two options", i+1))
		}
		for j, opt := range c.Options {
			if strings.TrimSpace(opt) == "" {
				problems = append(problems, fmt.Errorf("challenge %d: option %d is empty", i+1, j+1))
			}
		}
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %w", errors.ErrCatalogInvalid, errors.Join(problems...))
	}
	return nil
}

// Encode renders challenges in the catalog file format.
func Encode(challenges []Challenge) ([]byte, error) {
	return yaml.Marshal(File{Version: "1", Challenges: challenges})
}

// Count returns how many challenges of each kind are present.
func Count(challenges []Challenge) map[Kind]int {
	counts := make(map[Kind]int, 3)
	for _, c := range challenges {
		counts[c.Kind]++
	}
	return counts
}
