package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/lrocampoa/ExpenseTracker/internal/api"
)

func serveCmd() *cobra.Command {
	var (
		addr       string
		noSchedule bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API and run accounts on a schedule",
		Long: `Start the HTTP API for imports, reprocessing, corrections and rule suggestions.
Unless --no-schedule is given, every enabled account is also run on scheduler.interval.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			if addr == "" {
				addr = a.cfg.Server.Addr
			}
			if a.cfg.Logging.Level != "debug" {
				gin.SetMode(gin.ReleaseMode)
			}

			handler := api.NewHandler(a.service, a.cfg.UserID, a.logger)
			server := &http.Server{
				Addr:              addr,
				Handler:           api.NewRouter(handler),
				ReadHeaderTimeout: 10 * time.Second,
			}

			g, ctx := errgroup.WithContext(cmd.Context())

			g.Go(func() error {
				a.logger.Info("HTTP API listening", "addr", addr)
				if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return fmt.Errorf("failed to serve: %w", err)
				}
				return nil
			})

			g.Go(func() error {
				<-ctx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				return server.Shutdown(shutdownCtx)
			})

			if !noSchedule {
				g.Go(func() error {
					err := a.scheduler().Every(ctx, a.cfg.Scheduler.Interval)
					if errors.Is(err, context.Canceled) {
						return nil
					}
					return err
				})
			}

			return g.Wait()
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default: server.addr)")
	cmd.Flags().BoolVar(&noSchedule, "no-schedule", false, "serve the API without periodic runs")

	return cmd
}
