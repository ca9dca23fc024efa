package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"productsnap/internal/infra/credentials"
)

func apikeyCmd(e *env) *cobra.Command {
	cmd := &cobra.Command{Use: "apikey", Short: "Manage the generation backend API key"}
	set := &cobra.Command{
		Use:   "set <key>",
		Short: "Store the generation API key used when GENERATION_API_KEY is unset",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			runner, err := e.sql(cmd.Context())
			if err != nil {
				return err
			}
			if err := credentials.NewStore(runner).SetGenerationAPIKey(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "generation api key stored")
			return nil
		},
	}
	cmd.AddCommand(set)
	return cmd
}
