package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/thebtf/promptvault/internal/service"
)

func newUserCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage accounts",
	}
	cmd.AddCommand(newUserCreateCmd())
	return cmd
}

func newUserCreateCmd() *cobra.Command {
	var req service.SignupRequest
	var email, name string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an account",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, closer, err := bootstrap(cmd)
			if err != nil {
				return err
			}
			defer closer.Close()

			store, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			if email != "" {
				req.Email = &email
			}
			if name != "" {
				req.Name = &name
			}
			u, err := service.New(store, nil).Users.Signup(cmd.Context(), req)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created user %s (%s)\n", u.Username, u.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&req.Username, "username", "", "Account username")
	cmd.Flags().StringVar(&req.Password, "password", "", "Account password")
	cmd.Flags().StringVar(&email, "email", "", "Optional email address")
	cmd.Flags().StringVar(&name, "name", "", "Optional display name")
	_ = cmd.MarkFlagRequired("username")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}
