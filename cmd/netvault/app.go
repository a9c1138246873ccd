package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/HerbHall/netvault/internal/audit"
	"github.com/HerbHall/netvault/internal/config"
	"github.com/HerbHall/netvault/internal/connector/builtin"
	"github.com/HerbHall/netvault/internal/devicemgr"
	"github.com/HerbHall/netvault/internal/event"
	"github.com/HerbHall/netvault/internal/store"
	"github.com/HerbHall/netvault/internal/vault"
	"github.com/HerbHall/netvault/internal/version"
	"github.com/HerbHall/netvault/internal/workpool"
)

// App holds the services shared by every subcommand.
type App struct {
	Viper  *viper.Viper
	Config *config.Config
	Logger *zap.Logger

	DB      *store.SQLiteStore
	Devices *store.DeviceStore
	Audits  *store.AuditStore
	Vault   *vault.Vault
	Pool    *workpool.Pool
	Bus     *event.Bus
	Manager *devicemgr.Manager
	Engine  *audit.Engine
}

// openApp loads configuration, opens the database and builds the device
// manager and audit engine. The vault is unsealed only when unseal is set.
func openApp(ctx context.Context, configPath string, unseal bool) (*App, error) {
	v, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	cfg, err := config.Decode(v)
	if err != nil {
		return nil, err
	}
	logger, err := config.NewLogger(v)
	if err != nil {
		return nil, fmt.Errorf("initialize logger: %w", err)
	}

	a := &App{Viper: v, Config: cfg, Logger: logger}
	if err := a.open(ctx, unseal); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) open(ctx context.Context, unseal bool) error {
	cfg := a.Config

	db, err := store.New(cfg.Database.Path)
	if err != nil {
		return err
	}
	a.DB = db
	if err := db.CheckVersion(ctx, version.Short()); err != nil {
		return err
	}
	if err := db.MigrateAll(ctx,
		store.Component{Name: "core", Migrations: store.CoreMigrations()},
		store.Component{Name: "vault", Migrations: vault.Migrations()},
	); err != nil {
		return fmt.Errorf("migrate database: %w", err)
	}
	a.Logger.Debug("database initialized", zap.String("path", cfg.Database.Path))

	a.Devices = store.NewDeviceStore(db.DB())
	a.Audits = store.NewAuditStore(db.DB())

	a.Vault = vault.New(db.DB(), a.Logger.Named("vault"))
	if unseal {
		if err := a.Vault.OpenFromEnv(ctx, cfg.Vault.MasterKeyEnv); err != nil {
			if errors.Is(err, vault.ErrNoMasterKey) {
				return fmt.Errorf("%w: set %s", err, cfg.Vault.MasterKeyEnv)
			}
			return fmt.Errorf("open vault: %w", err)
		}
	}

	a.Pool = workpool.New(cfg.SSH.Workers, a.Logger.Named("workpool"))
	registry, err := builtin.NewRegistry(a.Pool)
	if err != nil {
		return err
	}

	a.Bus = event.NewBus(a.Logger.Named("event"))

	var prober devicemgr.Prober
	if cfg.Ping.Enabled {
		prober = &devicemgr.ICMPProber{
			Count:      cfg.Ping.Count,
			Timeout:    cfg.Ping.Timeout,
			Privileged: cfg.Ping.Privileged,
			Logger:     a.Logger.Named("ping"),
		}
	}

	a.Manager = devicemgr.New(a.Devices, a.Vault, registry, devicemgr.Options{
		MaxConcurrent: cfg.Polling.MaxConcurrent,
		Bus:           a.Bus,
		Prober:        prober,
	}, a.Logger.Named("devicemgr"))

	a.Engine = audit.New(a.Manager, a.Audits, audit.Options{
		MaxConcurrent: cfg.Audit.MaxConcurrentAudits,
		Bus:           a.Bus,
	}, a.Logger.Named("audit"))

	return a.Manager.LoadDevices(ctx)
}

// Close releases everything openApp acquired.
func (a *App) Close() {
	if a.Manager != nil {
		a.Manager.Close()
	}
	if a.Bus != nil {
		a.Bus.Wait()
	}
	if a.Pool != nil {
		a.Pool.Close()
	}
	if a.Vault != nil {
		a.Vault.Close()
	}
	if a.DB != nil {
		a.DB.Close()
	}
	if a.Logger != nil {
		_ = a.Logger.Sync()
	}
}
