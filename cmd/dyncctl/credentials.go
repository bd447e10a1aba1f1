package main

import (
	"fmt"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	dynccreds "dync/credentials"
)

// newCredentialsCmd manages keyring-stored credentials for an adapter
// name, grounded on cmd/gosynctasks/credentials.go's set/get/delete
// layout and its --prompt interactive-password convention.
func newCredentialsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "credentials",
		Short: "Manage adapter credentials in the OS keyring",
	}
	cmd.AddCommand(newCredentialsSetCmd())
	cmd.AddCommand(newCredentialsDeleteCmd())
	return cmd
}

func newCredentialsSetCmd() *cobra.Command {
	var prompt bool
	cmd := &cobra.Command{
		Use:   "set <adapter> <username> [password]",
		Short: "Store a password in the OS keyring",
		Args:  cobra.RangeArgs(2, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			adapterName, username := args[0], args[1]

			var password string
			switch {
			case prompt:
				fmt.Printf("Enter password for %s@%s: ", username, adapterName)
				raw, err := term.ReadPassword(int(syscall.Stdin))
				fmt.Println()
				if err != nil {
					return fmt.Errorf("dyncctl: read password: %w", err)
				}
				password = string(raw)
			case len(args) == 3:
				password = args[2]
			default:
				return fmt.Errorf("dyncctl: password is required (use --prompt for interactive input)")
			}

			if err := dynccreds.SetKeyring(adapterName, username, password); err != nil {
				return err
			}
			fmt.Printf("credentials stored for %s@%s\n", username, adapterName)
			return nil
		},
	}
	cmd.Flags().BoolVar(&prompt, "prompt", false, "prompt for the password interactively")
	return cmd
}

func newCredentialsDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <adapter> <username>",
		Short: "Remove a credential from the OS keyring",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := dynccreds.DeleteKeyring(args[0], args[1]); err != nil {
				return err
			}
			fmt.Printf("credentials removed for %s@%s\n", args[1], args[0])
			return nil
		},
	}
}
