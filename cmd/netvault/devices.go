package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewPollCommand returns the poll command.
func NewPollCommand(configPath *string) *cobra.Command {
	var (
		maxConcurrent int
		full          bool
	)
	cmd := &cobra.Command{
		Use:   "poll [device-id]",
		Short: "Poll one device, or every device when no id is given",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			app, err := openApp(ctx, *configPath, true)
			if err != nil {
				return err
			}
			defer app.Close()

			if len(args) == 0 {
				statuses, err := app.Manager.PollAll(ctx, maxConcurrent)
				if perr := printJSON(cmd.OutOrStdout(), statuses); perr != nil {
					return perr
				}
				return err
			}

			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			if full {
				res, err := app.Manager.RefreshDeviceData(ctx, id)
				if err != nil {
					return err
				}
				if res == nil {
					return fmt.Errorf("device %d is unreachable", id)
				}
				return printJSON(cmd.OutOrStdout(), res)
			}
			status, err := app.Manager.PollDevice(ctx, id)
			if err != nil {
				return err
			}
			out := map[string]any{"device_id": id, "status": status}
			if data, ok := app.Manager.GetCachedData(id); ok {
				out["data"] = data
			}
			return printJSON(cmd.OutOrStdout(), out)
		},
	}
	cmd.Flags().IntVar(&maxConcurrent, "max-concurrent", 0, "concurrent polls (default polling.max_concurrent)")
	cmd.Flags().BoolVar(&full, "full", false, "also collect ARP, MAC and route tables")
	return cmd
}

// NewTestCommand returns the test command.
func NewTestCommand(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "test <device-id>",
		Short: "Test connectivity to a device without changing its status",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			app, err := openApp(ctx, *configPath, true)
			if err != nil {
				return err
			}
			defer app.Close()

			res, err := app.Manager.TestDevice(ctx, id)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), res)
		},
	}
}

// NewStatusCommand returns the status command.
func NewStatusCommand(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "status [device-id]",
		Short: "Show the recorded status of one or every device",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			app, err := openApp(ctx, *configPath, false)
			if err != nil {
				return err
			}
			defer app.Close()

			if len(args) == 0 {
				return printJSON(cmd.OutOrStdout(), app.Manager.Devices())
			}
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			d, ok := app.Manager.Device(id)
			if !ok {
				return fmt.Errorf("device %d not found", id)
			}
			return printJSON(cmd.OutOrStdout(), d)
		},
	}
}
