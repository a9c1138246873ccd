package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/HerbHall/netvault/internal/inventory"
	"github.com/HerbHall/netvault/internal/notify"
	"github.com/HerbHall/netvault/internal/scheduler"
	"github.com/HerbHall/netvault/internal/version"
)

// NewServeCommand returns the serve command.
func NewServeCommand(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the polling scheduler, inventory watcher, notifiers and metrics endpoint",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, *configPath)
		},
	}
}

func serve(ctx context.Context, configPath string) error {
	app, err := openApp(ctx, configPath, true)
	if err != nil {
		return err
	}
	defer app.Close()

	cfg, logger := app.Config, app.Logger
	logger.Info("NetVault starting", zap.String("version", version.Short()))
	if f := app.Viper.ConfigFileUsed(); f != "" {
		logger.Info("configuration loaded", zap.String("source", f))
	} else {
		logger.Warn("no configuration file found, using defaults")
	}

	// Inventory.
	loader := inventory.NewLoader(app.Devices, logger.Named("inventory"))
	count, err := syncInventory(ctx, app, loader)
	if err != nil {
		return err
	}
	logger.Info("devices loaded", zap.Int("count", count))
	if cfg.Inventory.Watch {
		w := inventory.NewWatcher(cfg.Inventory.Path, loader, app.Manager.LoadDevices, 0, logger.Named("inventory"))
		go func() {
			if err := w.Run(ctx); err != nil {
				logger.Error("inventory watcher stopped", zap.Error(err))
			}
		}()
	}

	// Notifiers.
	notifiers, err := notify.FromConfig(cfg.Notify, logger.Named("notify"))
	if err != nil {
		return err
	}
	dispatcher := notify.NewDispatcher(logger.Named("notify"), notifiers...)
	unsubscribe := dispatcher.Subscribe(app.Bus)
	defer func() {
		unsubscribe()
		app.Bus.Wait()
		if err := dispatcher.Close(); err != nil {
			logger.Warn("closing notifiers", zap.Error(err))
		}
	}()
	logger.Info("notifiers configured", zap.Int("count", dispatcher.Len()))

	// Scheduler.
	sched := scheduler.New(logger.Named("scheduler"))
	if cfg.Scheduler.Enabled {
		if err := scheduler.RegisterJobs(sched, cfg, app.Manager, app.Engine, logger.Named("scheduler")); err != nil {
			return err
		}
		sched.Start(ctx)
		defer sched.Stop()
		for _, j := range sched.ListJobs() {
			logger.Info("job scheduled",
				zap.String("job", j.ID),
				zap.String("schedule", j.Schedule),
				zap.Time("next_run", j.NextRun),
			)
		}
	}

	// Metrics.
	var srv *http.Server
	if cfg.Metrics.Enabled {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		srv = &http.Server{
			Addr:              cfg.Metrics.Listen,
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		}
		go func() {
			logger.Info("metrics endpoint listening", zap.String("addr", srv.Addr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server failed", zap.Error(err))
			}
		}()
	}

	<-ctx.Done()
	logger.Info("shutting down")

	if srv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("metrics server shutdown", zap.Error(err))
		}
	}
	return nil
}

// syncInventory applies the inventory file when it exists, then reloads the
// manager from the store and returns the number of loaded devices. A bad
// inventory file is logged and leaves the stored devices in place.
func syncInventory(ctx context.Context, app *App, loader *inventory.Loader) (int, error) {
	path := app.Config.Inventory.Path
	if _, err := os.Stat(path); err != nil {
		app.Logger.Info("no inventory file", zap.String("path", path))
	} else if _, err := loader.Load(ctx, path); err != nil {
		app.Logger.Error("initial inventory load failed", zap.Error(err))
	}
	if err := app.Manager.LoadDevices(ctx); err != nil {
		return 0, err
	}
	return len(app.Manager.Devices()), nil
}
