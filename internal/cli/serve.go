package cli

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"dermassist/client/internal/app"
	"dermassist/client/internal/capture"
	"dermassist/client/internal/handlers"
	"dermassist/client/internal/jobs"
	"dermassist/client/internal/log"
	"dermassist/client/internal/models"
	"dermassist/client/internal/server"
	"dermassist/client/internal/service"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the local web interface",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("host", "", "Listen host (overrides config)")
	serveCmd.Flags().Int("port", 0, "Listen port (overrides config)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if host, _ := cmd.Flags().GetString("host"); host != "" {
		cfg.HTTP.Host = host
	}
	if port, _ := cmd.Flags().GetInt("port"); port != 0 {
		cfg.HTTP.Port = port
	}

	logger := log.New(cfg.Environment)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	go a.Session.Initialize(ctx)

	runner := service.NewRunner(a.Analysis, cfg.Analysis.StageInterval, logger)
	device := capture.NewMJPEGDevice(cfg.Camera.Devices, capture.MJPEGOptions{
		DialTimeout: cfg.Camera.DialTimeout,
	}, logger)
	camera := capture.NewComponent(device, capture.Options{
		Width:  cfg.Camera.Width,
		Height: cfg.Camera.Height,
		OnSelect: func(*models.CapturedImage) {
			runner.Reset()
		},
	}, logger)
	defer camera.Close()

	handlerSet := handlers.NewHandlerSet(handlers.Deps{
		Config:   cfg,
		Log:      logger,
		Store:    a.Store,
		Sessions: a.Session,
		Theme:    a.Theme,
		Accounts: a.Backend,
		History:  a.History,
		Capture:  camera,
		Runner:   runner,
	})
	httpServer, err := server.NewHTTPServer(cfg, logger, handlerSet)
	if err != nil {
		return err
	}

	scheduler := jobs.NewScheduler(a.Session, cfg.Session.ExpirySweep, logger)
	if err := scheduler.Start(); err != nil {
		logger.Error().Err(err).Msg("scheduler start failed")
	}

	fmt.Fprintf(cmd.OutOrStdout(), "DermAssist running at http://%s\n", httpServer.Addr())

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- httpServer.Start()
	}()

	select {
	case err := <-serveErr:
		scheduler.Stop()
		runner.Reset()
		return err
	case <-ctx.Done():
	}

	waitForShutdown(logger, httpServer, scheduler, runner)
	return nil
}

func waitForShutdown(logger zerolog.Logger, srv *server.HTTPServer, scheduler *jobs.Scheduler, runner *service.Runner) {
	logger.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}

	scheduler.Stop()
	runner.Reset()

	logger.Info().Msg("server exited cleanly")
}
