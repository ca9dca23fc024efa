package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"productsnap/internal/adapter/repo"
	"productsnap/internal/middleware"
)

func userCmd(e *env) *cobra.Command {
	cmd := &cobra.Command{Use: "user", Short: "Manage users"}

	var name string
	var ttl time.Duration
	token := &cobra.Command{
		Use:   "token <email>",
		Short: "Create the user if needed and print an API bearer token",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			runner, err := e.sql(cmd.Context())
			if err != nil {
				return err
			}
			if err := e.cfg.ValidateAPI(); err != nil {
				return err
			}
			user, err := repo.NewUserRepository(runner).Upsert(cmd.Context(), args[0], name)
			if err != nil {
				return err
			}
			signed, err := middleware.SignToken(e.cfg.JWTSecret, user.ID, user.Email, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "user %s (%s)\n", user.ID, user.DisplayName())
			fmt.Fprintln(cmd.OutOrStdout(), signed)
			return nil
		},
	}
	token.Flags().StringVar(&name, "name", "", "full name for a new user")
	token.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")

	cmd.AddCommand(token)
	return cmd
}
