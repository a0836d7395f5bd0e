package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Config represents the complete odtl configuration
type Config struct {
	Game       GameConfig       `mapstructure:"game"`
	Detection  DetectionConfig  `mapstructure:"detection"`
	Camera     CameraConfig     `mapstructure:"camera"`
	Microphone MicrophoneConfig `mapstructure:"microphone"`
	Alert      AlertConfig      `mapstructure:"alert"`
	Actuator   ActuatorConfig   `mapstructure:"actuator"`
	Logging    LoggingConfig    `mapstructure:"logging"`
}

// GameConfig controls the question sequence
type GameConfig struct {
	// CatalogFile is a YAML challenge catalog; empty uses the built-in twelve questions
	CatalogFile string `mapstructure:"catalog_file"`
	// PauseMinMs and PauseMaxMs bound the random pause after each challenge (inclusive)
	PauseMinMs int `mapstructure:"pause_min_ms"`
	PauseMaxMs int `mapstructure:"pause_max_ms"`
	// TypingMinMs and TypingMaxMs bound the per-character typing delay; 0/0 prints instantly
	TypingMinMs int `mapstructure:"typing_min_ms"`
	TypingMaxMs int `mapstructure:"typing_max_ms"`
	// Intro prints the opening banner and closing line
	Intro bool `mapstructure:"intro"`
}

// DetectionConfig controls detection windows
type DetectionConfig struct {
	// WindowMs is how long each sensor-gated challenge listens
	WindowMs int `mapstructure:"window_ms"`
	// PollIntervalMs is the minimum spacing between samples of one detector
	PollIntervalMs int `mapstructure:"poll_interval_ms"`
	// CancelOnTrigger stops sibling detectors once any detector fires
	CancelOnTrigger bool `mapstructure:"cancel_on_trigger"`
}

// CameraConfig controls the vision detector
type CameraConfig struct {
	Enabled bool `mapstructure:"enabled"`
	// Source is where frames come from
	// Options: "http" (JPEG snapshot URL), "file" (image on disk)
	Source string `mapstructure:"source"`
	URL    string `mapstructure:"url"`
	Path   string `mapstructure:"path"`
	// CascadePath is the pigo face cascade file
	CascadePath  string  `mapstructure:"cascade_path"`
	ScaleFactor  float64 `mapstructure:"scale_factor"`
	MinNeighbors int     `mapstructure:"min_neighbors"`
	// MinSize is the smallest face edge in pixels
	MinSize int    `mapstructure:"min_size"`
	Label   string `mapstructure:"label"`
}

// MicrophoneConfig controls the audio detector
type MicrophoneConfig struct {
	Enabled bool `mapstructure:"enabled"`
	// Source is where samples come from
	// Options: "command" (capture program writing raw S16LE to stdout), "file" (raw S16LE file)
	Source  string   `mapstructure:"source"`
	Command []string `mapstructure:"command"`
	Path    string   `mapstructure:"path"`
	// FrameSize is the number of samples per read
	FrameSize int `mapstructure:"frame_size"`
	// Threshold is the mean absolute amplitude that counts as a detection
	Threshold float64 `mapstructure:"threshold"`
	Label     string  `mapstructure:"label"`
}

// AlertConfig controls the jumpscare presentation
type AlertConfig struct {
	ImagePath     string   `mapstructure:"image_path"`
	SoundPath     string   `mapstructure:"sound_path"`
	PlayerCommand []string `mapstructure:"player_command"`
	// DisplayMs is how long the visual alert stays on screen
	DisplayMs int `mapstructure:"display_ms"`
	// TeardownWaitMs bounds how long a trigger waits for the visual teardown
	TeardownWaitMs int `mapstructure:"teardown_wait_ms"`
	// StrictDedup guards alert creation with compare-and-swap; false keeps the racy check
	StrictDedup bool `mapstructure:"strict_dedup"`
	// WatchAssets tracks asset files with fsnotify instead of stat on every alert
	WatchAssets bool `mapstructure:"watch_assets"`
}

// ActuatorConfig controls the link to the effect device
type ActuatorConfig struct {
	// Transport selects how commands are delivered
	// Options: "serial", "tcp", "websocket", "http", "none"
	Transport string `mapstructure:"transport"`
	// Address is a device path, host:port or URL depending on transport
	Address       string `mapstructure:"address"`
	BaudRate      int    `mapstructure:"baud_rate"`
	DialTimeoutMs int    `mapstructure:"dial_timeout_ms"`
}

// LoggingConfig controls debug logging behavior
type LoggingConfig struct {
	// Enabled controls whether logging is enabled (default: true)
	Enabled bool `mapstructure:"enabled"`
	// Level sets the minimum log level: "debug", "info", "warn", "error" (default: "info")
	Level string `mapstructure:"level"`
	// Dir is where odtl.log is written; empty logs to stderr
	Dir string `mapstructure:"dir"`
	// MaxSizeMB is the maximum size in megabytes before rotation (default: 10)
	MaxSizeMB int `mapstructure:"max_size_mb"`
	// MaxBackups is the number of backup files to keep (default: 3)
	MaxBackups int `mapstructure:"max_backups"`
	// Compress gzips rotated files
	Compress bool `mapstructure:"compress"`
}

// Default returns a Config with sensible default values
func Default() *Config {
	return &Config{
		Game: GameConfig{
			CatalogFile: "", // Empty means the built-in catalog
			PauseMinMs:  2000,
			PauseMaxMs:  4000,
			TypingMinMs: 50,
			TypingMaxMs: 150,
			Intro:       true,
		},
		Detection: DetectionConfig{
			WindowMs:        3000,
			PollIntervalMs:  100,
			CancelOnTrigger: false,
		},
		Camera: CameraConfig{
			Enabled:      true,
			Source:       "http",
			URL:          "http://192.168.4.1/capture",
			CascadePath:  "facefinder",
			ScaleFactor:  1.1,
			MinNeighbors: 5,
			MinSize:      30,
			Label:        "I SEE YOU",
		},
		Microphone: MicrophoneConfig{
			Enabled:   true,
			Source:    "command",
			Command:   []string{"arecord", "-q", "-t", "raw", "-f", "S16_LE", "-c", "1", "-r", "44100"},
			FrameSize: 1024,
			Threshold: 1000,
			Label:     "I HEARD YOU",
		},
		Alert: AlertConfig{
			ImagePath:      "jumpscare.png",
			SoundPath:      "screeching-sound-effect-312866.mp3",
			PlayerCommand:  []string{"ffplay", "-nodisp", "-autoexit", "-loglevel", "quiet"},
			DisplayMs:      2000,
			TeardownWaitMs: 2500,
			StrictDedup:    true,
			WatchAssets:    true,
		},
		Actuator: ActuatorConfig{
			Transport:     "serial",
			Address:       "/dev/ttyUSB0",
			BaudRate:      115200,
			DialTimeoutMs: 2000,
		},
		Logging: LoggingConfig{
			Enabled:    true,
			Level:      "info",
			MaxSizeMB:  10,
			MaxBackups: 3,
		},
	}
}

// PauseRange returns the inclusive bounds of the inter-question pause
func (c *GameConfig) PauseRange() (time.Duration, time.Duration) {
	return ms(c.PauseMinMs), ms(c.PauseMaxMs)
}

// TypingRange returns the inclusive bounds of the per-character delay
func (c *GameConfig) TypingRange() (time.Duration, time.Duration) {
	return ms(c.TypingMinMs), ms(c.TypingMaxMs)
}

// Window returns the detection window duration
func (c *DetectionConfig) Window() time.Duration {
	return ms(c.WindowMs)
}

// PollInterval returns the spacing between samples
func (c *DetectionConfig) PollInterval() time.Duration {
	return ms(c.PollIntervalMs)
}

// Display returns how long the visual alert is shown
func (c *AlertConfig) Display() time.Duration {
	return ms(c.DisplayMs)
}

// TeardownWait returns the bound on waiting for visual teardown
func (c *AlertConfig) TeardownWait() time.Duration {
	return ms(c.TeardownWaitMs)
}

// DialTimeout returns the actuator connect timeout
func (c *ActuatorConfig) DialTimeout() time.Duration {
	return ms(c.DialTimeoutMs)
}

func ms(n int) time.Duration {
	return time.Duration(n) * time.Millisecond
}

// SetDefaults registers default values with viper
func SetDefaults() {
	defaults := Default()

	// Game defaults
	viper.SetDefault("game.catalog_file", defaults.Game.CatalogFile)
	viper.SetDefault("game.pause_min_ms", defaults.Game.PauseMinMs)
	viper.SetDefault("game.pause_max_ms", defaults.Game.PauseMaxMs)
	viper.SetDefault("game.typing_min_ms", defaults.Game.TypingMinMs)
	viper.SetDefault("game.typing_max_ms", defaults.Game.TypingMaxMs)
	viper.SetDefault("game.intro", defaults.Game.Intro)

	// Detection defaults
	viper.SetDefault("detection.window_ms", defaults.Detection.WindowMs)
	viper.SetDefault("detection.poll_interval_ms", defaults.Detection.PollIntervalMs)
	viper.SetDefault("detection.cancel_on_trigger", defaults.Detection.CancelOnTrigger)

	// Camera defaults
	viper.SetDefault("camera.enabled", defaults.Camera.Enabled)
	viper.SetDefault("camera.source", defaults.Camera.Source)
	viper.SetDefault("camera.url", defaults.Camera.URL)
	viper.SetDefault("camera.path", defaults.Camera.Path)
	viper.SetDefault("camera.cascade_path", defaults.Camera.CascadePath)
	viper.SetDefault("camera.scale_factor", defaults.Camera.ScaleFactor)
	viper.SetDefault("camera.min_neighbors", defaults.Camera.MinNeighbors)
	viper.SetDefault("camera.min_size", defaults.Camera.MinSize)
	viper.SetDefault("camera.label", defaults.Camera.Label)

	// Microphone defaults
	viper.SetDefault("microphone.enabled", defaults.Microphone.Enabled)
	viper.SetDefault("microphone.source", defaults.Microphone.Source)
	viper.SetDefault("microphone.command", defaults.Microphone.Command)
	viper.SetDefault("microphone.path", defaults.Microphone.Path)
	viper.SetDefault("microphone.frame_size", defaults.Microphone.FrameSize)
	viper.SetDefault("microphone.threshold", defaults.Microphone.Threshold)
	viper.SetDefault("microphone.label", defaults.Microphone.Label)

	// Alert defaults
	viper.SetDefault("alert.image_path", defaults.Alert.ImagePath)
	viper.SetDefault("alert.sound_path", defaults.Alert.SoundPath)
	viper.SetDefault("alert.player_command", defaults.Alert.PlayerCommand)
	viper.SetDefault("alert.display_ms", defaults.Alert.DisplayMs)
	viper.SetDefault("alert.teardown_wait_ms", defaults.Alert.TeardownWaitMs)
	viper.SetDefault("alert.strict_dedup", defaults.Alert.StrictDedup)
	viper.SetDefault("alert.watch_assets", defaults.Alert.WatchAssets)

	// Actuator defaults
	viper.SetDefault("actuator.transport", defaults.Actuator.Transport)
	viper.SetDefault("actuator.address", defaults.Actuator.Address)
	viper.SetDefault("actuator.baud_rate", defaults.Actuator.BaudRate)
	viper.SetDefault("actuator.dial_timeout_ms", defaults.Actuator.DialTimeoutMs)

	// Logging defaults
	viper.SetDefault("logging.enabled", defaults.Logging.Enabled)
	viper.SetDefault("logging.level", defaults.Logging.Level)
	viper.SetDefault("logging.dir", defaults.Logging.Dir)
	viper.SetDefault("logging.max_size_mb", defaults.Logging.MaxSizeMB)
	viper.SetDefault("logging.max_backups", defaults.Logging.MaxBackups)
	viper.SetDefault("logging.compress", defaults.Logging.Compress)
}

// Load reads the configuration from viper into a Config struct and validates it
func Load() (*Config, error) {
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	// Validate the configuration
	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, ValidationErrors(errs)
	}

	return &cfg, nil
}

// Get returns the current configuration (convenience function)
func Get() *Config {
	cfg, err := Load()
	if err != nil {
		// Fall back to defaults if unmarshaling fails
		return Default()
	}
	return cfg
}

// ConfigDir returns the path to the user's config directory
func ConfigDir() string {
	// Check XDG_CONFIG_HOME first
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "odtl")
	}
	// Fall back to ~/.config/odtl
	home, err := os.UserHomeDir()
	if err != nil {
		return ".odtl"
	}
	return filepath.Join(home, ".config", "odtl")
}

// ConfigFile returns the path to the config file
func ConfigFile() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}

// ValidTransports returns the list of valid actuator transports
func ValidTransports() []string {
	return []string{"serial", "tcp", "websocket", "http", "none"}
}

// ValidCameraSources returns the list of valid camera sources
func ValidCameraSources() []string {
	return []string{"http", "file"}
}

// ValidMicrophoneSources returns the list of valid microphone sources
func ValidMicrophoneSources() []string {
	return []string{"command", "file"}
}
