package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

type AppConfig struct {
	API      *APIConfig      `mapstructure:"api"`
	Gin      *GinConfig      `mapstructure:"gin"`
	Postgres *PostgresConfig `mapstructure:"postgres"`
	Redis    *RedisConfig    `mapstructure:"redis"`
	Engine   *EngineConfig   `mapstructure:"engine"`
	Sweeper  *SweeperConfig  `mapstructure:"sweeper"`
	Metrics  *MetricsConfig  `mapstructure:"metrics"`
}

type APIConfig struct {
	Environment        string   `mapstructure:"environment"`
	Port               string   `mapstructure:"port"`
	BaseURL            string   `mapstructure:"base_url"`
	AllowedCORSDomains []string `mapstructure:"allowed_cors_domains"`
	JWTSigningKey      string   `mapstructure:"jwt_signing_key"`
}

type GinConfig struct {
	Mode string `mapstructure:"mode"`
}

type PostgresConfig struct {
	Host         string `mapstructure:"host"`
	Port         string `mapstructure:"port"`
	User         string `mapstructure:"user"`
	Password     string `mapstructure:"password"`
	DB           string `mapstructure:"db"`
	SSLMode      string `mapstructure:"ssl_mode"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
}

type RedisConfig struct {
	Enabled       bool   `mapstructure:"enabled"`
	URL           string `mapstructure:"url"`
	NotifyChannel string `mapstructure:"notify_channel"`
	LockPrefix    string `mapstructure:"lock_prefix"`
}

// EngineConfig holds the business constants of the booking engine.
type EngineConfig struct {
	PaymentWindow     time.Duration `mapstructure:"payment_window"`
	ReferralReward    int64         `mapstructure:"referral_reward"`
	ReferralRewardTTL time.Duration `mapstructure:"referral_reward_ttl"`
	RefundPointsTTL   time.Duration `mapstructure:"refund_points_ttl"`
	MaxTxRetries      int           `mapstructure:"max_tx_retries"`
}

type SweeperConfig struct {
	Enabled             bool          `mapstructure:"enabled"`
	TransactionInterval time.Duration `mapstructure:"transaction_interval"`
	PointsInterval      time.Duration `mapstructure:"points_interval"`
	BatchSize           int           `mapstructure:"batch_size"`
	LockTTL             time.Duration `mapstructure:"lock_ttl"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("api.environment", "development")
	v.SetDefault("api.port", "8080")
	v.SetDefault("api.base_url", "localhost:8080")
	v.SetDefault("gin.mode", "debug")
	v.SetDefault("postgres.host", "localhost")
	v.SetDefault("postgres.port", "5432")
	v.SetDefault("postgres.ssl_mode", "disable")
	v.SetDefault("postgres.max_open_conns", 20)
	v.SetDefault("postgres.max_idle_conns", 5)
	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.url", "redis://localhost:6379/0")
	v.SetDefault("redis.notify_channel", "ticketing.transactions")
	v.SetDefault("redis.lock_prefix", "ticketing:sweeper:")
	v.SetDefault("engine.payment_window", "2h")
	v.SetDefault("engine.referral_reward", 10000)
	v.SetDefault("engine.referral_reward_ttl", "8760h")
	v.SetDefault("engine.refund_points_ttl", "2160h")
	v.SetDefault("engine.max_tx_retries", 3)
	v.SetDefault("sweeper.enabled", true)
	v.SetDefault("sweeper.transaction_interval", "60s")
	v.SetDefault("sweeper.points_interval", "24h")
	v.SetDefault("sweeper.batch_size", 100)
	v.SetDefault("sweeper.lock_ttl", "55s")
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")
}

// Load reads the YAML file at path, lets environment variables override it
// (API_PORT overrides api.port) and watches the file for edits.
func Load(path string) (*AppConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("v.ReadInConfig -> %w", err)
	}

	conf := &AppConfig{}
	if err := v.Unmarshal(conf); err != nil {
		return nil, fmt.Errorf("v.Unmarshal -> %w", err)
	}

	if err := conf.validate(); err != nil {
		return nil, err
	}

	// Restart-only settings stay as loaded; the watcher only reports edits.
	v.OnConfigChange(func(e fsnotify.Event) {
		zap.L().Info("config file changed, restart to apply", zap.String("file", e.Name), zap.String("op", e.Op.String()))
	})
	v.WatchConfig()

	return conf, nil
}

func (c *AppConfig) validate() error {
	if c.API.JWTSigningKey == "" {
		return fmt.Errorf("api.jwt_signing_key is required")
	}
	if c.Engine.PaymentWindow <= 0 {
		return fmt.Errorf("engine.payment_window must be positive")
	}
	if c.Sweeper.TransactionInterval <= 0 || c.Sweeper.PointsInterval <= 0 {
		return fmt.Errorf("sweeper intervals must be positive")
	}
	return nil
}
