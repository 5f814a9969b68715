package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/wirewarden/wirewarden/internal/daemon/configstore"
	"github.com/wirewarden/wirewarden/internal/daemon/convergence"
	"github.com/wirewarden/wirewarden/internal/daemon/netlink"
)

var daemonIntervalSeconds int

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Run the convergence loop",
	Long: "Runs the convergence loop until SIGINT/SIGTERM. Unlike connect, daemon\n" +
		"requires the registration file to already exist and be non-empty.",
	RunE: runDaemon,
}

func init() {
	daemonCmd.Flags().IntVarP(&daemonIntervalSeconds, "interval", "i", int(convergence.DefaultInterval/time.Second), "seconds between convergence ticks")
	rootCmd.AddCommand(daemonCmd)
}

func runDaemon(cmd *cobra.Command, _ []string) error {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	store := configstore.New(cfgFile)
	if !store.Exists() {
		return fmt.Errorf("wirewarden daemon: registration file %s is missing or empty; run `wirewarden connect` first", store.Path)
	}

	driver := netlink.New(logger)
	loop := convergence.New(store, driver, logger, time.Duration(daemonIntervalSeconds)*time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigs
		logger.Info("shutdown signal received")
		cancel()
	}()

	if err := loop.Run(ctx); err != nil && ctx.Err() == nil {
		return fmt.Errorf("wirewarden daemon: %w", err)
	}
	return nil
}
