package config

import (
	"fmt"
	"net/url"
	"slices"
	"strings"
)

// ValidationError represents a single validation failure
type ValidationError struct {
	Field   string // The config field path (e.g., "detection.window_ms")
	Value   any    // The invalid value
	Message string // Human-readable error description
}

// Error implements the error interface for ValidationError
func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s (got: %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

// Error implements the error interface for ValidationErrors
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	if len(e) == 1 {
		return e[0].Error()
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d validation errors:\n", len(e)))
	for i, err := range e {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Error()))
	}
	return sb.String()
}

// ValidLogLevels returns the list of valid log levels
func ValidLogLevels() []string {
	return []string{"debug", "info", "warn", "error"}
}

// Validate checks the Config for invalid values and returns all validation errors found
func (c *Config) Validate() []ValidationError {
	var errors []ValidationError

	errors = append(errors, c.validateGame()...)
	errors = append(errors, c.validateDetection()...)
	errors = append(errors, c.validateCamera()...)
	errors = append(errors, c.validateMicrophone()...)
	errors = append(errors, c.validateAlert()...)
	errors = append(errors, c.validateActuator()...)
	errors = append(errors, c.validateLogging()...)

	return errors
}

// validateGame validates the GameConfig
func (c *Config) validateGame() []ValidationError {
	var errors []ValidationError

	errors = append(errors, validateRange("game.pause", c.Game.PauseMinMs, c.Game.PauseMaxMs)...)
	errors = append(errors, validateRange("game.typing", c.Game.TypingMinMs, c.Game.TypingMaxMs)...)

	if strings.ContainsRune(c.Game.CatalogFile, '\x00') {
		errors = append(errors, ValidationError{
			Field:   "game.catalog_file",
			Value:   c.Game.CatalogFile,
			Message: "contains invalid null character",
		})
	}

	return errors
}

// validateRange checks a <prefix>_min_ms / <prefix>_max_ms pair
func validateRange(prefix string, lo, hi int) []ValidationError {
	var errors []ValidationError

	if lo < 0 {
		errors = append(errors, ValidationError{
			Field:   prefix + "_min_ms",
			Value:   lo,
			Message: "must be non-negative",
		})
	}
	if hi < lo {
		errors = append(errors, ValidationError{
			Field:   prefix + "_max_ms",
			Value:   hi,
			Message: fmt.Sprintf("must be at least %s_min_ms (%d)", prefix, lo),
		})
	}

	return errors
}

// validateDetection validates the DetectionConfig
func (c *Config) validateDetection() []ValidationError {
	var errors []ValidationError

	const minWindow = 10      // 10ms minimum
	const maxWindow = 600_000 // 10 minutes maximum

	if c.Detection.WindowMs < minWindow {
		errors = append(errors, ValidationError{
			Field:   "detection.window_ms",
			Value:   c.Detection.WindowMs,
			Message: fmt.Sprintf("must be at least %dms", minWindow),
		})
	}
	if c.Detection.WindowMs > maxWindow {
		errors = append(errors, ValidationError{
			Field:   "detection.window_ms",
			Value:   c.Detection.WindowMs,
			Message: fmt.Sprintf("exceeds maximum of %dms", maxWindow),
		})
	}

	// The poll interval must leave room for more than one sample per window
	if c.Detection.PollIntervalMs <= 0 {
		errors = append(errors, ValidationError{
			Field:   "detection.poll_interval_ms",
			Value:   c.Detection.PollIntervalMs,
			Message: "must be positive",
		})
	} else if c.Detection.PollIntervalMs >= c.Detection.WindowMs {
		errors = append(errors, ValidationError{
			Field:   "detection.poll_interval_ms",
			Value:   c.Detection.PollIntervalMs,
			Message: fmt.Sprintf("must be less than detection.window_ms (%d)", c.Detection.WindowMs),
		})
	}

	return errors
}

// validateCamera validates the CameraConfig
func (c *Config) validateCamera() []ValidationError {
	if !c.Camera.Enabled {
		return nil
	}

	var errors []ValidationError

	switch c.Camera.Source {
	case "http":
		if u, err := url.Parse(c.Camera.URL); err != nil || u.Scheme == "" || u.Host == "" {
			errors = append(errors, ValidationError{
				Field:   "camera.url",
				Value:   c.Camera.URL,
				Message: "must be an absolute URL",
			})
		}
	case "file":
		if c.Camera.Path == "" {
			errors = append(errors, ValidationError{
				Field:   "camera.path",
				Value:   c.Camera.Path,
				Message: "is required when camera.source is file",
			})
		}
	default:
		errors = append(errors, ValidationError{
			Field:   "camera.source",
			Value:   c.Camera.Source,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidCameraSources(), ", ")),
		})
	}

	if c.Camera.ScaleFactor <= 1.0 {
		errors = append(errors, ValidationError{
			Field:   "camera.scale_factor",
			Value:   c.Camera.ScaleFactor,
			Message: "must be greater than 1.0",
		})
	}
	if c.Camera.MinNeighbors < 0 {
		errors = append(errors, ValidationError{
			Field:   "camera.min_neighbors",
			Value:   c.Camera.MinNeighbors,
			Message: "must be non-negative",
		})
	}
	if c.Camera.MinSize <= 0 {
		errors = append(errors, ValidationError{
			Field:   "camera.min_size",
			Value:   c.Camera.MinSize,
			Message: "must be positive",
		})
	}
	if strings.TrimSpace(c.Camera.Label) == "" {
		errors = append(errors, ValidationError{
			Field:   "camera.label",
			Value:   c.Camera.Label,
			Message: "cannot be empty",
		})
	}

	return errors
}

// validateMicrophone validates the MicrophoneConfig
func (c *Config) validateMicrophone() []ValidationError {
	if !c.Microphone.Enabled {
		return nil
	}

	var errors []ValidationError

	switch c.Microphone.Source {
	case "command":
		if len(c.Microphone.Command) == 0 || c.Microphone.Command[0] == "" {
			errors = append(errors, ValidationError{
				Field:   "microphone.command",
				Value:   c.Microphone.Command,
				Message: "is required when microphone.source is command",
			})
		}
	case "file":
		if c.Microphone.Path == "" {
			errors = append(errors, ValidationError{
				Field:   "microphone.path",
				Value:   c.Microphone.Path,
				Message: "is required when microphone.source is file",
			})
		}
	default:
		errors = append(errors, ValidationError{
			Field:   "microphone.source",
			Value:   c.Microphone.Source,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidMicrophoneSources(), ", ")),
		})
	}

	const maxFrameSize = 1 << 20
	if c.Microphone.FrameSize <= 0 || c.Microphone.FrameSize > maxFrameSize {
		errors = append(errors, ValidationError{
			Field:   "microphone.frame_size",
			Value:   c.Microphone.FrameSize,
			Message: fmt.Sprintf("must be between 1 and %d samples", maxFrameSize),
		})
	}

	// 16-bit samples cannot exceed 32768 in magnitude
	if c.Microphone.Threshold < 0 || c.Microphone.Threshold > 32768 {
		errors = append(errors, ValidationError{
			Field:   "microphone.threshold",
			Value:   c.Microphone.Threshold,
			Message: "must be between 0 and 32768",
		})
	}
	if strings.TrimSpace(c.Microphone.Label) == "" {
		errors = append(errors, ValidationError{
			Field:   "microphone.label",
			Value:   c.Microphone.Label,
			Message: "cannot be empty",
		})
	}

	return errors
}

// validateAlert validates the AlertConfig
func (c *Config) validateAlert() []ValidationError {
	var errors []ValidationError

	if c.Alert.DisplayMs <= 0 {
		errors = append(errors, ValidationError{
			Field:   "alert.display_ms",
			Value:   c.Alert.DisplayMs,
			Message: "must be positive",
		})
	}
	if c.Alert.TeardownWaitMs < 0 {
		errors = append(errors, ValidationError{
			Field:   "alert.teardown_wait_ms",
			Value:   c.Alert.TeardownWaitMs,
			Message: "must be non-negative",
		})
	}

	for _, field := range []struct {
		name, path string
	}{
		{"alert.image_path", c.Alert.ImagePath},
		{"alert.sound_path", c.Alert.SoundPath},
	} {
		if strings.ContainsRune(field.path, '\x00') {
			errors = append(errors, ValidationError{
				Field:   field.name,
				Value:   field.path,
				Message: "contains invalid null character",
			})
		}
	}

	return errors
}

// validateActuator validates the ActuatorConfig
func (c *Config) validateActuator() []ValidationError {
	var errors []ValidationError

	if !slices.Contains(ValidTransports(), c.Actuator.Transport) {
		errors = append(errors, ValidationError{
			Field:   "actuator.transport",
			Value:   c.Actuator.Transport,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidTransports(), ", ")),
		})
		return errors
	}

	if c.Actuator.Transport != "none" && c.Actuator.Address == "" {
		errors = append(errors, ValidationError{
			Field:   "actuator.address",
			Value:   c.Actuator.Address,
			Message: fmt.Sprintf("is required for the %s transport", c.Actuator.Transport),
		})
	}
	if c.Actuator.Transport == "serial" && c.Actuator.BaudRate <= 0 {
		errors = append(errors, ValidationError{
			Field:   "actuator.baud_rate",
			Value:   c.Actuator.BaudRate,
			Message: "must be positive",
		})
	}
	if c.Actuator.DialTimeoutMs < 0 {
		errors = append(errors, ValidationError{
			Field:   "actuator.dial_timeout_ms",
			Value:   c.Actuator.DialTimeoutMs,
			Message: "must be non-negative (0 disables timeout)",
		})
	}

	return errors
}

// validateLogging validates the LoggingConfig
func (c *Config) validateLogging() []ValidationError {
	var errors []ValidationError

	// Validate log level
	if c.Logging.Level != "" && !slices.Contains(ValidLogLevels(), c.Logging.Level) {
		errors = append(errors, ValidationError{
			Field:   "logging.level",
			Value:   c.Logging.Level,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidLogLevels(), ", ")),
		})
	}

	// Max size must be positive
	if c.Logging.MaxSizeMB <= 0 {
		errors = append(errors, ValidationError{
			Field:   "logging.max_size_mb",
			Value:   c.Logging.MaxSizeMB,
			Message: "must be positive",
		})
	}

	// Reasonable upper bound for log file size
	const maxLogSizeMB = 1000 // 1GB
	if c.Logging.MaxSizeMB > maxLogSizeMB {
		errors = append(errors, ValidationError{
			Field:   "logging.max_size_mb",
			Value:   c.Logging.MaxSizeMB,
			Message: fmt.Sprintf("exceeds maximum of %dMB", maxLogSizeMB),
		})
	}

	// Max backups must be non-negative
	if c.Logging.MaxBackups < 0 {
		errors = append(errors, ValidationError{
			Field:   "logging.max_backups",
			Value:   c.Logging.MaxBackups,
			Message: "must be non-negative",
		})
	}

	return errors
}
