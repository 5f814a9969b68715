// Package cmd implements the wirewarden-agent CLI commands.
package cmd

import (
	"github.com/spf13/cobra"

	"github.com/wirewarden/wirewarden/internal/daemon/configstore"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "wirewarden",
	Short: "wirewarden is the WireWarden gateway agent",
	Long: "wirewarden runs on a WireGuard gateway. It registers the gateway with a\n" +
		"Network Planner and continuously converges the local kernel WireGuard\n" +
		"interface to the state the planner serves.",
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "registration file path (default "+configstore.DefaultPath+")")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
