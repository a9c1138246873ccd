package main

import (
	"github.com/spf13/cobra"

	"github.com/HerbHall/netvault/internal/inventory"
)

// NewInventoryCommand returns the inventory command group.
func NewInventoryCommand(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "inventory",
		Short: "Manage the devices.yml inventory",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "load [path]",
		Short: "Upsert the devices of an inventory file by name",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			app, err := openApp(ctx, *configPath, false)
			if err != nil {
				return err
			}
			defer app.Close()

			path := app.Config.Inventory.Path
			if len(args) == 1 {
				path = args[0]
			}
			res, err := inventory.NewLoader(app.Devices, app.Logger.Named("inventory")).Load(ctx, path)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), res)
		},
	})
	return cmd
}
