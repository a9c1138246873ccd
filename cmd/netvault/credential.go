package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

// NewCredentialCommand returns the credential command group.
func NewCredentialCommand(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "credential",
		Short: "Manage encrypted device credentials",
	}
	cmd.AddCommand(
		newCredentialAddCommand(configPath),
		newCredentialListCommand(configPath),
		newCredentialDeleteCommand(configPath),
	)
	return cmd
}

func newCredentialAddCommand(configPath *string) *cobra.Command {
	var (
		credType string
		pairs    []string
		rawJSON  string
	)
	cmd := &cobra.Command{
		Use:   "add <name>",
		Short: "Store a credential",
		Example: `  netvault credential add snmp-ro --type snmp --set community=s3cret
  netvault credential add fw-api --type rest --json '{"username":"api","password":"..."}'`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := credentialData(pairs, rawJSON)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			app, err := openApp(ctx, *configPath, true)
			if err != nil {
				return err
			}
			defer app.Close()

			cred, err := app.Vault.Store(ctx, args[0], credType, data)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), cred)
		},
	}
	cmd.Flags().StringVar(&credType, "type", "", "credential type (snmp, ssh, rest)")
	cmd.Flags().StringArrayVar(&pairs, "set", nil, "secret field as key=value (repeatable)")
	cmd.Flags().StringVar(&rawJSON, "json", "", "secret fields as a JSON object")
	return cmd
}

func credentialData(pairs []string, rawJSON string) (map[string]any, error) {
	data := map[string]any{}
	if rawJSON != "" {
		if err := json.Unmarshal([]byte(rawJSON), &data); err != nil {
			return nil, fmt.Errorf("parse --json: %w", err)
		}
	}
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid --set %q, want key=value", p)
		}
		data[k] = v
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("no secret fields given; use --set or --json")
	}
	return data, nil
}

func newCredentialListCommand(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List credential names and types",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			app, err := openApp(ctx, *configPath, false)
			if err != nil {
				return err
			}
			defer app.Close()

			creds, err := app.Vault.List(ctx)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), creds)
		},
	}
}

func newCredentialDeleteCommand(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <name>",
		Short: "Delete a credential",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			app, err := openApp(ctx, *configPath, false)
			if err != nil {
				return err
			}
			defer app.Close()

			if err := app.Vault.Delete(ctx, args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "credential %q deleted\n", args[0])
			return nil
		},
	}
}
