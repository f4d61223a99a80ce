package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/siyavash-momeni/tracker/internal/calendar"
	"github.com/siyavash-momeni/tracker/internal/router"
	"github.com/siyavash-momeni/tracker/internal/seed"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 10 * time.Second

func serveCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := bootstrap(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			if addr == "" {
				addr = a.cfg.ListenAddr
			}
			srv := &http.Server{
				Addr:    addr,
				Handler: router.SetupRouter(a.api, a.cfg.SessionSecret),
			}

			errCh := make(chan error, 1)
			go func() {
				a.logger.Info("server listening", "addr", addr)
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
				close(errCh)
			}()

			select {
			case err := <-errCh:
				if err != nil {
					return fmt.Errorf("run server: %w", err)
				}
				return nil
			case <-ctx.Done():
			}

			a.logger.Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (defaults to LISTEN_ADDR or :PORT)")
	return cmd
}

func digestCmd() *cobra.Command {
	var testTo string

	cmd := &cobra.Command{
		Use:   "digest",
		Short: "Send this week's digest to every subscribed user",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := bootstrap(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			if testTo != "" {
				result, err := a.api.Digest().SendTest(ctx, testTo)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "sent test digest to %s (message %s)\n", result.SentTo, result.MessageID)
				return nil
			}

			result, err := a.api.Digest().RunWeekly(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "week %s: processed=%d sent=%d skipped=%d failed=%d\n",
				calendar.DayKey(result.WeekStartDate), result.ProcessedUsers, result.Sent, result.SkippedDuplicate, result.Failed)
			return nil
		},
	}

	cmd.Flags().StringVar(&testTo, "test-to", "", "send a sample digest to this address instead of running the batch")
	return cmd
}

func seedCmd() *cobra.Command {
	var opts seed.Options

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Generate demo habits, progress and notes",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := bootstrap(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			opts.Logger = a.logger
			opts.Cache = a.cache
			summary, err := seed.Run(cmd.Context(), a.db, opts)
			if err != nil {
				return err
			}
			if summary.Skipped {
				fmt.Fprintln(cmd.OutOrStdout(), "demo data already exists, nothing to do")
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "habits=%d completions=%d notes=%d\n", summary.Habits, summary.Completions, summary.Notes)
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.UserID, "user", seed.DefaultUserID, "identity provider user id")
	cmd.Flags().StringVar(&opts.Email, "email", seed.DefaultEmail, "user email")
	cmd.Flags().IntVar(&opts.Weeks, "weeks", seed.DefaultWeeks, "number of weeks of history")
	return cmd
}
