package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Redis     RedisConfig     `mapstructure:"redis"`
	MySQL     MySQLConfig     `mapstructure:"mysql"`
	Bolt      BoltConfig      `mapstructure:"bolt"`
	Ledger    LedgerConfig    `mapstructure:"ledger"`
	Trading   TradingConfig   `mapstructure:"trading"`
	Auth      AuthConfig      `mapstructure:"auth"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Watcher   WatcherConfig   `mapstructure:"watcher"`
	Leader    LeaderConfig    `mapstructure:"leader"`
	Instance  InstanceConfig  `mapstructure:"instance"`
	Log       LogConfig       `mapstructure:"log"`
	Auctions  []AuctionConfig `mapstructure:"auctions"`
}

type ServerConfig struct {
	Port int    `mapstructure:"port"`
	Host string `mapstructure:"host"`
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type MySQLConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ApplySchema     bool          `mapstructure:"apply_schema"`
}

type BoltConfig struct {
	Path string `mapstructure:"path"`
}

type LedgerConfig struct {
	// Driver is one of mysql, redis or bolt.
	Driver             string `mapstructure:"driver"`
	MaxConflictRetries int    `mapstructure:"max_conflict_retries"`
	RecentBidsLimit    int    `mapstructure:"recent_bids_limit"`
}

type TradingConfig struct {
	Timezone    string        `mapstructure:"timezone"`
	OpenMinute  int           `mapstructure:"open_minute"`
	CloseMinute int           `mapstructure:"close_minute"`
	Extension   time.Duration `mapstructure:"extension"`
	Step        time.Duration `mapstructure:"step"`
}

type AuthConfig struct {
	Header string `mapstructure:"header"`
}

type RateLimitConfig struct {
	RPS     float64       `mapstructure:"rps"`
	Burst   int           `mapstructure:"burst"`
	IdleTTL time.Duration `mapstructure:"idle_ttl"`
}

type WatcherConfig struct {
	Schedule string `mapstructure:"schedule"`
}

type LeaderConfig struct {
	TTL time.Duration `mapstructure:"ttl"`
}

type InstanceConfig struct {
	ID string `mapstructure:"id"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

// AuctionConfig is one static catalog entry. EndsAt is RFC3339.
type AuctionConfig struct {
	ID          string `mapstructure:"id"`
	Title       string `mapstructure:"title"`
	Description string `mapstructure:"description"`
	EndsAt      string `mapstructure:"ends_at"`
}

const noDeadline = "9999-12-31T23:59:59Z"

var defaultAuctions = []map[string]interface{}{
	{"id": "rome-bed", "title": "Rome Bed", "description": "Additional money for single bed for 3 nights", "ends_at": noDeadline},
	{"id": "rome-couch", "title": "Rome Couch", "description": "Additional money for single sofa bed for 3 nights", "ends_at": noDeadline},
	{"id": "venice-bed", "title": "Venice Bed", "description": "Additional money for single bed for 2 nights", "ends_at": noDeadline},
	{"id": "venice-couch-1", "title": "Venice Couch 1", "description": "Additional money for single sofa bed for 2 nights", "ends_at": noDeadline},
	{"id": "venice-couch-2", "title": "Venice Couch 2", "description": "Additional money for single sofa bed for 2 nights", "ends_at": noDeadline},
}

func newViper() *viper.Viper {
	v := viper.New()

	// Set default values
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("redis.address", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("mysql.dsn", "auction_user:auction_pass@tcp(localhost:3306)/auction_db?parseTime=true&loc=UTC")
	v.SetDefault("mysql.max_open_conns", 25)
	v.SetDefault("mysql.max_idle_conns", 10)
	v.SetDefault("mysql.conn_max_lifetime", 5*time.Minute)
	v.SetDefault("mysql.apply_schema", true)
	v.SetDefault("bolt.path", "auction.db")
	v.SetDefault("ledger.driver", "mysql")
	v.SetDefault("ledger.max_conflict_retries", 3)
	v.SetDefault("ledger.recent_bids_limit", 50)
	v.SetDefault("trading.timezone", "America/New_York")
	v.SetDefault("trading.open_minute", 13*60)
	v.SetDefault("trading.close_minute", 1*60)
	v.SetDefault("trading.extension", 6*time.Hour)
	v.SetDefault("trading.step", time.Minute)
	v.SetDefault("auth.header", "X-User-ID")
	v.SetDefault("rate_limit.rps", 2.0)
	v.SetDefault("rate_limit.burst", 5)
	v.SetDefault("rate_limit.idle_ttl", 15*time.Minute)
	v.SetDefault("watcher.schedule", "@every 1m")
	v.SetDefault("leader.ttl", 30*time.Second)
	v.SetDefault("instance.id", "auction-service-1")
	v.SetDefault("log.level", "info")
	v.SetDefault("auctions", defaultAuctions)

	// Environment variable support
	v.AutomaticEnv()

	// Environment variable mappings
	v.BindEnv("server.port", "SERVER_PORT")
	v.BindEnv("server.host", "SERVER_HOST")
	v.BindEnv("redis.address", "REDIS_ADDRESS")
	v.BindEnv("redis.password", "REDIS_PASSWORD")
	v.BindEnv("redis.db", "REDIS_DB")
	v.BindEnv("mysql.dsn", "MYSQL_DSN")
	v.BindEnv("mysql.max_open_conns", "MYSQL_MAX_OPEN_CONNS")
	v.BindEnv("mysql.max_idle_conns", "MYSQL_MAX_IDLE_CONNS")
	v.BindEnv("mysql.conn_max_lifetime", "MYSQL_CONN_MAX_LIFETIME")
	v.BindEnv("mysql.apply_schema", "MYSQL_APPLY_SCHEMA")
	v.BindEnv("bolt.path", "BOLT_PATH")
	v.BindEnv("ledger.driver", "LEDGER_DRIVER")
	v.BindEnv("ledger.max_conflict_retries", "LEDGER_MAX_CONFLICT_RETRIES")
	v.BindEnv("trading.timezone", "TRADING_TIMEZONE")
	v.BindEnv("trading.open_minute", "TRADING_OPEN_MINUTE")
	v.BindEnv("trading.close_minute", "TRADING_CLOSE_MINUTE")
	v.BindEnv("trading.extension", "TRADING_EXTENSION")
	v.BindEnv("auth.header", "AUTH_HEADER")
	v.BindEnv("rate_limit.rps", "RATE_LIMIT_RPS")
	v.BindEnv("rate_limit.burst", "RATE_LIMIT_BURST")
	v.BindEnv("leader.ttl", "LEADER_TTL")
	v.BindEnv("instance.id", "INSTANCE_ID")
	v.BindEnv("log.level", "LOG_LEVEL")

	return v
}

func Load() (*Config, error) {
	v := newViper()

	// Configuration file settings
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/live-auction/")

	// Read configuration file (optional - will use defaults/env vars if not found)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	return unmarshal(v)
}

// LoadFromFile loads configuration from a specific file path on top of the defaults.
func LoadFromFile(configPath string) (*Config, error) {
	v := newViper()
	v.SetConfigFile(configPath)

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	return unmarshal(v)
}

func unmarshal(v *viper.Viper) (*Config, error) {
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

func (c *Config) Validate() error {
	switch c.Ledger.Driver {
	case "mysql", "redis", "bolt":
	default:
		return fmt.Errorf("unsupported ledger driver %q", c.Ledger.Driver)
	}
	if c.Ledger.MaxConflictRetries < 0 {
		return fmt.Errorf("ledger.max_conflict_retries must not be negative")
	}
	if c.Ledger.RecentBidsLimit <= 0 {
		return fmt.Errorf("ledger.recent_bids_limit must be positive")
	}
	if len(c.Auctions) == 0 {
		return errors.New("auction catalog is empty")
	}
	return nil
}

// GetConfigString returns a formatted string representation of the config
func (c *Config) GetConfigString() string {
	return fmt.Sprintf(
		"Server: %s:%d, Ledger: %s, Redis: %s, Trading: %s %d-%d, Instance: %s, Auctions: %d",
		c.Server.Host,
		c.Server.Port,
		c.Ledger.Driver,
		c.Redis.Address,
		c.Trading.Timezone,
		c.Trading.OpenMinute,
		c.Trading.CloseMinute,
		c.Instance.ID,
		len(c.Auctions),
	)
}
