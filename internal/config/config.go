// Package config loads NetVault settings from a YAML file and NETVAULT_*
// environment variables through Viper.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// Config is the decoded configuration tree.
type Config struct {
	Database  DatabaseConfig  `mapstructure:"database"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Polling   PollingConfig   `mapstructure:"polling"`
	Audit     AuditConfig     `mapstructure:"audit"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Vault     VaultConfig     `mapstructure:"vault"`
	Inventory InventoryConfig `mapstructure:"inventory"`
	SSH       SSHConfig       `mapstructure:"ssh"`
	Ping      PingConfig      `mapstructure:"ping"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	Notify    NotifyConfig    `mapstructure:"notify"`
}

type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

type PollingConfig struct {
	IntervalMinutes int `mapstructure:"interval_minutes"`
	MaxConcurrent   int `mapstructure:"max_concurrent"`
}

// Interval returns the poll period.
func (p PollingConfig) Interval() time.Duration {
	if p.IntervalMinutes <= 0 {
		return 5 * time.Minute
	}
	return time.Duration(p.IntervalMinutes) * time.Minute
}

type AuditConfig struct {
	ScheduledTime       string `mapstructure:"scheduled_time"`
	MaxConcurrentAudits int    `mapstructure:"max_concurrent_audits"`
}

// DailyAt parses ScheduledTime as HH:MM. An invalid value is logged and
// replaced by 02:00.
func (a AuditConfig) DailyAt(logger *zap.Logger) (hour, minute int) {
	t, err := time.Parse("15:04", strings.TrimSpace(a.ScheduledTime))
	if err != nil {
		logger.Error("invalid audit.scheduled_time, using 02:00",
			zap.String("value", a.ScheduledTime), zap.Error(err))
		return 2, 0
	}
	return t.Hour(), t.Minute()
}

type SchedulerConfig struct {
	Enabled              bool          `mapstructure:"enabled"`
	CacheCleanupInterval time.Duration `mapstructure:"cache_cleanup_interval"`
	CacheMaxAge          time.Duration `mapstructure:"cache_max_age"`
}

type VaultConfig struct {
	MasterKeyEnv string `mapstructure:"master_key_env"`
}

type InventoryConfig struct {
	Path  string `mapstructure:"path"`
	Watch bool   `mapstructure:"watch"`
}

type SSHConfig struct {
	Workers int `mapstructure:"workers"`
}

type PingConfig struct {
	Enabled    bool          `mapstructure:"enabled"`
	Count      int           `mapstructure:"count"`
	Timeout    time.Duration `mapstructure:"timeout"`
	Privileged bool          `mapstructure:"privileged"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Listen  string `mapstructure:"listen"`
}

type NotifyConfig struct {
	Webhook WebhookConfig `mapstructure:"webhook"`
	NATS    NATSConfig    `mapstructure:"nats"`
	AMQP    AMQPConfig    `mapstructure:"amqp"`
}

type WebhookConfig struct {
	URL     string        `mapstructure:"url"`
	Secret  string        `mapstructure:"secret"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type NATSConfig struct {
	URL     string `mapstructure:"url"`
	Subject string `mapstructure:"subject"`
}

type AMQPConfig struct {
	URL   string `mapstructure:"url"`
	Queue string `mapstructure:"queue"`
}

// SetDefaults registers every default on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("database.path", "netvault.db")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stderr")
	v.SetDefault("polling.interval_minutes", 5)
	v.SetDefault("polling.max_concurrent", 5)
	v.SetDefault("audit.scheduled_time", "02:00")
	v.SetDefault("audit.max_concurrent_audits", 5)
	v.SetDefault("scheduler.enabled", true)
	v.SetDefault("scheduler.cache_cleanup_interval", "1h")
	v.SetDefault("scheduler.cache_max_age", "24h")
	v.SetDefault("vault.master_key_env", "CREDENTIALS_MASTER_KEY")
	v.SetDefault("inventory.path", "devices.yml")
	v.SetDefault("inventory.watch", true)
	v.SetDefault("ssh.workers", 4)
	v.SetDefault("ping.enabled", true)
	v.SetDefault("ping.count", 2)
	v.SetDefault("ping.timeout", "2s")
	v.SetDefault("ping.privileged", false)
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.listen", "127.0.0.1:9310")
	v.SetDefault("notify.webhook.url", "")
	v.SetDefault("notify.webhook.secret", "")
	v.SetDefault("notify.webhook.timeout", "10s")
	v.SetDefault("notify.nats.url", "")
	v.SetDefault("notify.nats.subject", "netvault.alerts")
	v.SetDefault("notify.amqp.url", "")
	v.SetDefault("notify.amqp.queue", "netvault.alerts")
}

// Load reads configuration from file and environment variables.
// An empty configPath searches ., ./configs and /etc/netvault for
// netvault.yaml; a missing file is not an error.
func Load(configPath string) (*viper.Viper, error) {
	v := viper.New()
	SetDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("netvault")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("/etc/netvault")
	}

	// Environment variable support: NETVAULT_POLLING_MAX_CONCURRENT=10
	v.SetEnvPrefix("NETVAULT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}
	return v, nil
}

// Decode unmarshals v into a Config.
func Decode(v *viper.Viper) (*Config, error) {
	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	return &c, nil
}
