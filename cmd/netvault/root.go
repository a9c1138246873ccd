package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"
)

// NewCommand returns the root command of the netvault CLI.
func NewCommand() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:           "netvault",
		Short:         "Network device monitoring and audit",
		Long:          `netvault polls routers, switches and firewalls over SNMP, SSH and REST, and audits them individually and as a fleet.`,
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to configuration file")

	cmd.AddCommand(
		NewServeCommand(&configPath),
		NewPollCommand(&configPath),
		NewTestCommand(&configPath),
		NewStatusCommand(&configPath),
		NewAuditCommand(&configPath),
		NewAlertsCommand(&configPath),
		NewCredentialCommand(&configPath),
		NewInventoryCommand(&configPath),
		NewVersionCommand(),
	)
	return cmd
}

func printJSON(w io.Writer, v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(out))
	return err
}

func parseID(arg string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid device id %q", arg)
	}
	return id, nil
}
