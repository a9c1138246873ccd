package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewAuditCommand returns the audit command.
func NewAuditCommand(configPath *string) *cobra.Command {
	var (
		network bool
		history bool
		limit   int
	)
	cmd := &cobra.Command{
		Use:   "audit [device-id]",
		Short: "Run a device audit, or the fleet-wide network audit",
		Example: `  netvault audit 3
  netvault audit --network
  netvault audit --history --limit 10`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			app, err := openApp(ctx, *configPath, !history)
			if err != nil {
				return err
			}
			defer app.Close()

			if history {
				var deviceID *int64
				if len(args) == 1 {
					id, err := parseID(args[0])
					if err != nil {
						return err
					}
					deviceID = &id
				}
				logs, err := app.Engine.GetAuditResults(ctx, deviceID, limit)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), logs)
			}

			if network || len(args) == 0 {
				res, err := app.Engine.RunNetworkAudit(ctx)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), res)
			}

			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			res, err := app.Engine.RunDeviceAudit(ctx, id)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), res)
		},
	}
	cmd.Flags().BoolVar(&network, "network", false, "run the fleet-wide network audit")
	cmd.Flags().BoolVar(&history, "history", false, "list stored audit results instead of running an audit")
	cmd.Flags().IntVar(&limit, "limit", 50, "number of stored results to list")
	return cmd
}

// NewAlertsCommand returns the alerts command.
func NewAlertsCommand(configPath *string) *cobra.Command {
	var ack int64
	cmd := &cobra.Command{
		Use:   "alerts",
		Short: "List active alerts, or acknowledge one with --ack",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			app, err := openApp(ctx, *configPath, false)
			if err != nil {
				return err
			}
			defer app.Close()

			if ack > 0 {
				ok, err := app.Audits.AcknowledgeAlert(ctx, ack)
				if err != nil {
					return err
				}
				if !ok {
					return fmt.Errorf("alert %d not found", ack)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "alert %d acknowledged\n", ack)
				return nil
			}

			alerts, err := app.Audits.ListActiveAlerts(ctx)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), alerts)
		},
	}
	cmd.Flags().Int64Var(&ack, "ack", 0, "acknowledge the alert with this id")
	return cmd
}
