package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/wirewarden/wirewarden/internal/daemon/configstore"
)

var (
	connectAPIHost   string
	connectAPIToken  string
	connectInterface string
)

var connectCmd = &cobra.Command{
	Use:   "connect",
	Short: "Register this gateway with a Network Planner",
	Long: "Appends a registration to the local config file. A missing file is\n" +
		"created; a duplicate interface or (api_host, api_token) pair is rejected\n" +
		"and the file is left byte-unchanged.",
	RunE: runConnect,
}

func init() {
	connectCmd.Flags().StringVar(&connectAPIHost, "api-host", "", "Network Planner base URL (required)")
	connectCmd.Flags().StringVar(&connectAPIToken, "api-token", "", "gateway capability token, a UUID (required)")
	connectCmd.Flags().StringVar(&connectInterface, "interface", "", "WireGuard interface name (default: lowest unused wgN)")
	connectCmd.MarkFlagRequired("api-host")
	connectCmd.MarkFlagRequired("api-token")
	rootCmd.AddCommand(connectCmd)
}

func runConnect(cmd *cobra.Command, _ []string) error {
	store := configstore.New(cfgFile)

	ifname := connectInterface
	if ifname == "" {
		assigned, err := store.AutoAssignInterface()
		if err != nil {
			exitWith(1, fmt.Errorf("wirewarden connect: %w", err))
		}
		ifname = assigned
	}

	reg := configstore.Registration{
		APIHost:   connectAPIHost,
		APIToken:  connectAPIToken,
		Interface: ifname,
	}

	if err := store.Append(reg); err != nil {
		if errors.Is(err, configstore.ErrDuplicate) {
			exitWith(2, fmt.Errorf("wirewarden connect: %w", err))
		}
		exitWith(1, fmt.Errorf("wirewarden connect: %w", err))
	}

	fmt.Fprintf(cmd.OutOrStdout(), "registered %s with interface %s\n", connectAPIHost, ifname)
	return nil
}

// exitWith prints err to stderr and exits with code. It never returns,
// giving connect the distinct 0/1/2 exit codes spec.md §6 requires —
// codes cobra's own error path can't express since it always exits 1.
func exitWith(code int, err error) {
	fmt.Fprintln(os.Stderr, err)
	os.Exit(code)
}
