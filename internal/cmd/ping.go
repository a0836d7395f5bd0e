package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/b1zarr-e/ODTL/internal/actuator"
	"github.com/b1zarr-e/ODTL/internal/config"
	"github.com/b1zarr-e/ODTL/internal/event"
)

var pingCmd = &cobra.Command{
	Use:   "ping [command]",
	Short: "Send one command to the effect device",
	Long: `Open the configured actuator transport and send one command.

The device understands JUMPSCARE (the default) and AMBIENT.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runPing,
}

func init() {
	rootCmd.AddCommand(pingCmd)
}

func runPing(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := createLogger(cfg)
	defer func() { _ = logger.Close() }()

	command := actuator.CommandJumpscare
	if len(args) == 1 {
		command = strings.ToUpper(strings.TrimSpace(args[0]))
	}

	w, err := actuator.Dial(cmd.Context(), cfg.Actuator)
	if err != nil {
		return err
	}

	bus := newBus(logger)
	var sendErr error
	bus.Subscribe(event.TypeActuatorFailed, func(e event.Event) {
		if f, ok := e.(event.ActuatorFailedEvent); ok {
			sendErr = f.Err
		}
	})

	link := actuator.NewLink(w, actuator.Options{
		Transport: cfg.Actuator.Transport,
		Address:   cfg.Actuator.Address,
		Logger:    logger,
		Bus:       bus,
	})
	link.Send(command)
	if err := link.Close(); err != nil {
		logger.Warn("closing actuator failed", "error", err.Error())
	}
	if sendErr != nil {
		return sendErr
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Sent %s via %s %s\n", command, cfg.Actuator.Transport, cfg.Actuator.Address)
	return nil
}
