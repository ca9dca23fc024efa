package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"productsnap/internal/adapter/repo"
	"productsnap/internal/ledger"
	"productsnap/internal/queue"
	"productsnap/internal/worker"
)

func reapCmd(e *env) *cobra.Command {
	var reconcile bool
	cmd := &cobra.Command{
		Use:   "reap",
		Short: "Run one stale-job sweep",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			runner, err := e.sql(cmd.Context())
			if err != nil {
				return err
			}
			rdb, err := e.redis(cmd.Context())
			if err != nil {
				return err
			}
			reaper := worker.NewReaper(repo.NewJobRepository(runner), queue.New(rdb, e.cfg.QueueName), ledger.New(rdb), e.logger, worker.ReaperOptions{
				StaleAfter:           e.cfg.ReaperStaleAfter,
				ReconcileConcurrency: reconcile || e.cfg.ReaperReconcileConcurrency,
			})
			n, err := reaper.SweepOnce(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "requeued %d stale job(s)\n", n)
			return nil
		},
	}
	cmd.Flags().BoolVar(&reconcile, "reconcile", false, "recount concurrency for affected users")
	return cmd
}
