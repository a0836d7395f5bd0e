package cmd

import (
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	configcmd "github.com/b1zarr-e/ODTL/internal/cmd/config"
	"github.com/b1zarr-e/ODTL/internal/config"
)

var rootCmd = &cobra.Command{
	Use:   "odtl",
	Short: "Sensor-gated horror quiz with jumpscare effects",
	Long: `odtl asks the player a shuffled series of questions. Some questions
open a short detection window on the camera or microphone; if the player
is seen or heard, a full-screen jumpscare fires, a sound plays and the
external effect device is told to run its sequence.`,
	SilenceUsage: true,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringP("config", "c", "", "config file (default is $HOME/.config/odtl/config.yaml)")
	_ = viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))

	configcmd.Register(rootCmd)
}

func initConfig() {
	// Set defaults first so they're available even without a config file
	config.SetDefaults()

	if cfgFile := viper.GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(config.ConfigDir())
		viper.AddConfigPath("$HOME/.config/odtl")
		viper.AddConfigPath(".")
	}

	viper.AutomaticEnv()
	viper.SetEnvPrefix("ODTL")
	// e.g., ODTL_ACTUATOR_TRANSPORT for actuator.transport
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Read config file if it exists (ignore error if not found)
	_ = viper.ReadInConfig()
}
