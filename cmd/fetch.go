package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	fileutil "mp3fetch/internal/file"
	"mp3fetch/internal/task"
)

func newFetchCmd(opts *rootOptions) *cobra.Command {
	var reportPath string
	cmd := &cobra.Command{
		Use:   "fetch <url>",
		Short: "Download one video or playlist without starting the server",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			rt, err := buildRuntime(ctx, cfg)
			if err != nil {
				return err
			}
			defer rt.Close()
			rt.manager.SetBaseContext(ctx)

			final, err := fetch(ctx, rt.manager, args[0], cfg.PollInterval)
			if reportPath != "" && final.ID != "" {
				if werr := fileutil.WriteJSONAtomic(reportPath, final); werr != nil {
					log.Warn().Err(werr).Str("path", reportPath).Msg("write report failed")
				}
			}
			waitCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			rt.manager.WaitAll(waitCtx)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), final.ResultArtifact)
			return nil
		},
	}
	cmd.Flags().StringVar(&reportPath, "report", "", "write the final task record as JSON to this file")
	return cmd
}

// fetch submits ref and polls the task until it finishes, logging progress.
func fetch(ctx context.Context, tm *task.Manager, ref string, pollInterval time.Duration) (task.Task, error) {
	sub, err := tm.Submit(ctx, ref)
	if err != nil {
		return task.Task{}, err
	}
	log.Info().Str("task_id", sub.TaskID).Str("title", sub.Title).Int("items", sub.ItemsTotal).Msg("download started")

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	lastProgress := -1.0
	for {
		rec, err := tm.GetTask(context.WithoutCancel(ctx), sub.TaskID)
		if err != nil {
			return task.Task{}, err
		}
		if rec.Progress != lastProgress {
			evt := log.Info().Str("status", string(rec.Status)).Float64("progress", rec.Progress)
			if rec.Items != nil {
				evt = evt.Int("completed", rec.Items.Completed).Int("total", rec.Items.Total)
			}
			if rec.CurrentItemTitle != "" {
				evt = evt.Str("item", rec.CurrentItemTitle)
			}
			evt.Msg("progress")
			lastProgress = rec.Progress
		}
		switch rec.Status {
		case task.StatusCompleted:
			return rec, nil
		case task.StatusFailed:
			return rec, task.NewError(rec.ErrorKind, rec.ErrorMessage, nil)
		}
		select {
		case <-ticker.C:
		case <-ctx.Done():
			// the pipeline observes the same context and will fail the task
			if errors.Is(ctx.Err(), context.Canceled) {
				log.Warn().Str("task_id", sub.TaskID).Msg("interrupted, waiting for the task to stop")
			}
			ctx = context.WithoutCancel(ctx)
		}
	}
}
