// cmd/token-programmer/main.go
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// global flags
var (
	cfgPath  string
	simulate string
	logLevel string
)

func main() {
	root := &cobra.Command{
		Use:           "token-programmer",
		Short:         "SPI token (EEPROM / NOR-Flash) programming station",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&cfgPath, "config", "token-programmer.yaml", "station config file")
	root.PersistentFlags().StringVar(&simulate, "simulate", "", "run against a simulated token: eeprom | flash")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "info", "debug | info | warn | error")

	root.AddCommand(
		runCmd(),
		infoCmd(),
		readCmd(),
		writeCmd(),
		eraseCmd(),
		protectCmd(),
		selftestCmd(),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		stop()
		os.Exit(1)
	}
}

func newLogger() (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(logLevel)); err != nil {
		return nil, fmt.Errorf("--log-level: %w", err)
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})), nil
}
