package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spigell/hh-matcher/internal/scheduler"
	"github.com/spigell/hh-matcher/internal/server"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the matcher over HTTP",
	Run: func(_ *cobra.Command, _ []string) {
		runServe()
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger, config, rt := setup(ctx)
	defer rt.Close()

	if rt.memory != nil && config.Cache.SweepSchedule != "" {
		sched := scheduler.New(rt.memory, config.Cache.SweepSchedule, logger.Named("scheduler"))
		if err := sched.Start(); err != nil {
			logger.Fatal("starting scheduler", zap.Error(err))
		}
		defer sched.Stop()
	}

	srv := server.New(rt.matcher, rt.jobs, rt.indexer, logger.Named("http"))

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Listen(config.Server.Listen)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			logger.Error("http server stopped", zap.Error(err))
		}
		return
	case <-ctx.Done():
	}

	logger.Info("shutting down", zap.Duration("timeout", config.Server.ShutdownTimeout))

	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutting down http server", zap.Error(err))
	}
}
