// Package config provides CLI commands for managing odtl configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/b1zarr-e/ODTL/internal/catalog"
	appconfig "github.com/b1zarr-e/ODTL/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "View or manage odtl configuration",
	Long: `View or manage odtl configuration.

Without arguments, displays the current configuration.`,
	RunE: runConfigShow,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE:  runConfigShow,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a default config file",
	Long:  `Create a default config file at ~/.config/odtl/config.yaml with all available options.`,
	RunE:  runConfigInit,
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Show the config file path",
	RunE:  runConfigPath,
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check the configuration and catalog for errors",
	RunE:  runConfigValidate,
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configPathCmd)
	configCmd.AddCommand(configValidateCmd)
}

// Register adds all config-related commands to the given parent command.
func Register(parent *cobra.Command) {
	parent.AddCommand(configCmd)
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	if viper.ConfigFileUsed() != "" {
		fmt.Fprintf(out, "# Config file: %s\n", viper.ConfigFileUsed())
	} else {
		fmt.Fprintln(out, "# Config file: (none - using defaults)")
	}

	settings := viper.AllSettings()
	delete(settings, "config")
	data, err := yaml.Marshal(settings)
	if err != nil {
		return fmt.Errorf("failed to encode configuration: %w", err)
	}
	_, err = out.Write(data)
	return err
}

// DefaultConfigContent is written by config init.
const DefaultConfigContent = `# odtl configuration

game:
  # YAML challenge catalog; empty uses the built-in questions
  catalog_file: ""
  # Random pause after each challenge, inclusive bounds in ms
  pause_min_ms: 2000
  pause_max_ms: 4000
  # Per-character typing delay in ms; 0/0 prints instantly
  typing_min_ms: 50
  typing_max_ms: 150
  # Opening banner and closing line
  intro: true

detection:
  # How long camera and microphone questions listen
  window_ms: 3000
  # Minimum spacing between samples of one sensor
  poll_interval_ms: 100
  # Stop the other sensors as soon as one fires
  cancel_on_trigger: false

camera:
  enabled: true
  # Options: http (JPEG snapshot URL), file (image on disk)
  source: http
  url: http://192.168.4.1/capture
  path: ""
  # pigo face cascade file
  cascade_path: facefinder
  scale_factor: 1.1
  min_neighbors: 5
  min_size: 30
  label: I SEE YOU

microphone:
  enabled: true
  # Options: command (raw S16LE on stdout), file (raw S16LE file)
  source: command
  command: [arecord, -q, -t, raw, -f, S16_LE, -c, "1", -r, "44100"]
  path: ""
  frame_size: 1024
  # Mean absolute amplitude that counts as a noise
  threshold: 1000
  label: I HEARD YOU

alert:
  image_path: jumpscare.png
  sound_path: screeching-sound-effect-312866.mp3
  player_command: [ffplay, -nodisp, -autoexit, -loglevel, quiet]
  display_ms: 2000
  teardown_wait_ms: 2500
  # Create alerts with compare-and-swap; false allows overlapping alerts
  strict_dedup: true
  # Track asset files with fsnotify
  watch_assets: true

actuator:
  # Options: serial, tcp, websocket, http, none
  transport: serial
  address: /dev/ttyUSB0
  baud_rate: 115200
  dial_timeout_ms: 2000

logging:
  enabled: true
  level: info
  # Directory for odtl.log; empty logs to stderr
  dir: ""
  max_size_mb: 10
  max_backups: 3
  compress: false
`

func runConfigInit(cmd *cobra.Command, args []string) error {
	configDir := appconfig.ConfigDir()
	configFile := appconfig.ConfigFile()

	if _, err := os.Stat(configFile); err == nil {
		return fmt.Errorf("config file already exists at %s", configFile)
	}
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(configFile, []byte(DefaultConfigContent), 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Created config file at %s\n", configFile)
	fmt.Fprintln(out, "Edit this file to point odtl at your camera, microphone and effect device.")
	return nil
}

func runConfigPath(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	configFile := appconfig.ConfigFile()

	if viper.ConfigFileUsed() != "" {
		fmt.Fprintf(out, "Active config: %s\n", viper.ConfigFileUsed())
	} else {
		fmt.Fprintf(out, "Default path: %s (not created)\n", configFile)
	}

	fmt.Fprintln(out, "\nSearch paths:")
	fmt.Fprintf(out, "  1. %s\n", filepath.Join(appconfig.ConfigDir(), "config.yaml"))
	fmt.Fprintf(out, "  2. $HOME/.config/odtl/config.yaml\n")
	fmt.Fprintf(out, "  3. ./config.yaml (current directory)\n")
	fmt.Fprintln(out, "\nEnvironment variables: ODTL_* (e.g., ODTL_ACTUATOR_TRANSPORT)")
	return nil
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	cfg, err := appconfig.Load()
	if err != nil {
		return err
	}

	if cfg.Game.CatalogFile != "" {
		challenges, err := catalog.Load(cfg.Game.CatalogFile)
		if err != nil {
			return err
		}
		if err := catalog.Validate(challenges); err != nil {
			return err
		}
		fmt.Fprintf(out, "Catalog %s: %d challenges\n", cfg.Game.CatalogFile, len(challenges))
	}

	fmt.Fprintln(out, "Configuration is valid")
	return nil
}
