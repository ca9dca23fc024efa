package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"productsnap/internal/adapter/repo"
	"productsnap/internal/domain"
)

func planCmd(e *env) *cobra.Command {
	cmd := &cobra.Command{Use: "plan", Short: "Manage subscription plans"}

	var userID, plan, status string
	set := &cobra.Command{
		Use:   "set",
		Short: "Assign a plan to a user",
		RunE: func(cmd *cobra.Command, _ []string) error {
			p := domain.Plan(strings.ToLower(strings.TrimSpace(plan)))
			if !p.Valid() {
				return fmt.Errorf("unsupported plan %q", plan)
			}
			s := domain.SubscriptionStatus(strings.ToLower(strings.TrimSpace(status)))
			switch s {
			case domain.SubscriptionActive, domain.SubscriptionCancelled, domain.SubscriptionExpired, domain.SubscriptionPending:
			default:
				return fmt.Errorf("unsupported status %q", status)
			}
			runner, err := e.sql(cmd.Context())
			if err != nil {
				return err
			}
			if _, err := repo.NewUserRepository(runner).GetByID(cmd.Context(), userID); err != nil {
				return fmt.Errorf("load user %s: %w", userID, err)
			}
			sub := &domain.Subscription{UserID: userID, Plan: p, Status: s}
			if err := repo.NewSubscriptionRepository(runner).Upsert(cmd.Context(), sub); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "user %s now on %s (%s), effective plan %s\n", userID, p, s, sub.EffectivePlan())
			return nil
		},
	}
	set.Flags().StringVar(&userID, "user", "", "user id")
	set.Flags().StringVar(&plan, "plan", "", "plan: "+joinPlans())
	set.Flags().StringVar(&status, "status", string(domain.SubscriptionActive), "subscription status")
	_ = set.MarkFlagRequired("user")
	_ = set.MarkFlagRequired("plan")

	cmd.AddCommand(set)
	return cmd
}

func joinPlans() string {
	names := make([]string, 0, len(domain.Plans))
	for _, p := range domain.Plans {
		names = append(names, string(p))
	}
	return strings.Join(names, ", ")
}
