package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"productsnap/internal/adapter/repo"
	"productsnap/internal/domain"
	"productsnap/internal/queue"
)

func queueCmd(e *env) *cobra.Command {
	cmd := &cobra.Command{Use: "queue", Short: "Inspect the job queue"}

	open := func(cmd *cobra.Command) (*queue.Queue, error) {
		rdb, err := e.redis(cmd.Context())
		if err != nil {
			return nil, err
		}
		return queue.New(rdb, e.cfg.QueueName), nil
	}

	length := &cobra.Command{
		Use:   "len",
		Short: "Print the number of queued job ids",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			q, err := open(cmd)
			if err != nil {
				return err
			}
			n, err := q.Len(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), n)
			return nil
		},
	}

	var n int64
	peek := &cobra.Command{
		Use:   "peek",
		Short: "List the next job ids without removing them",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			q, err := open(cmd)
			if err != nil {
				return err
			}
			ids, err := q.Peek(cmd.Context(), n)
			if err != nil {
				return err
			}
			for _, id := range ids {
				fmt.Fprintln(cmd.OutOrStdout(), id)
			}
			return nil
		},
	}
	peek.Flags().Int64Var(&n, "n", 10, "number of ids to show")

	push := &cobra.Command{
		Use:   "push <job-id>",
		Short: "Re-enqueue an existing queued job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			runner, err := e.sql(cmd.Context())
			if err != nil {
				return err
			}
			job, err := repo.NewJobRepository(runner).GetByID(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("load job %s: %w", args[0], err)
			}
			if job.Status != domain.JobStatusQueued && job.Status != domain.JobStatusPending {
				return fmt.Errorf("job %s is %s, only queued jobs can be pushed", job.ID, job.Status)
			}
			q, err := open(cmd)
			if err != nil {
				return err
			}
			if err := q.Enqueue(cmd.Context(), job.ID); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "pushed %s\n", job.ID)
			return nil
		},
	}

	cmd.AddCommand(length, peek, push)
	return cmd
}
