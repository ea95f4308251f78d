package config

import (
	"errors"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	App      AppConfig
	Log      LogConfig
	Postgres PostgresConfig
	Redis    RedisConfig
	Auth     AuthConfig
	Search   SearchConfig
	Hub      HubConfig
}

type AppConfig struct {
	Name        string
	Port        string
	CORSOrigins string
}

type LogConfig struct {
	Level       string
	Development bool
}

type PostgresConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	Migrate         bool
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	FeedTTL  time.Duration
	Relay    bool
}

// Enabled reports whether a Redis address was configured. Without one the
// feed cache and the cross-instance relay are disabled.
func (c RedisConfig) Enabled() bool {
	return c.Addr != ""
}

type AuthConfig struct {
	JWTSecret string
}

type SearchConfig struct {
	// IndexPath is the on-disk bleve index; empty keeps the index in memory.
	IndexPath string
	// Channel carries index changes between instances when the relay is on.
	Channel string
}

type HubConfig struct {
	SendQueue    int
	WriteTimeout time.Duration
	Channel      string
}

// Load reads .env (if present), the yaml file named app in the given paths,
// and DEVSOCIAL_* environment overrides.
func Load(paths ...string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}

	v := viper.New()
	setDefaults(v)

	if len(paths) == 0 {
		paths = []string{".", "./config"}
	}
	for _, p := range paths {
		v.AddConfigPath(p)
	}
	v.SetConfigType("yaml")
	v.SetConfigName("app")

	v.SetEnvPrefix("devsocial")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	return &Config{
		App: AppConfig{
			Name:        v.GetString("app.name"),
			Port:        v.GetString("app.port"),
			CORSOrigins: v.GetString("app.cors_origins"),
		},
		Log: LogConfig{
			Level:       v.GetString("log.level"),
			Development: v.GetBool("log.development"),
		},
		Postgres: PostgresConfig{
			URL:             v.GetString("postgres.url"),
			MaxOpenConns:    v.GetInt("postgres.max_open_conns"),
			MaxIdleConns:    v.GetInt("postgres.max_idle_conns"),
			ConnMaxLifetime: v.GetDuration("postgres.conn_max_lifetime"),
			ConnMaxIdleTime: v.GetDuration("postgres.conn_max_idle_time"),
			Migrate:         v.GetBool("postgres.migrate"),
		},
		Redis: RedisConfig{
			Addr:     v.GetString("redis.addr"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
			FeedTTL:  v.GetDuration("redis.feed_ttl"),
			Relay:    v.GetBool("redis.relay"),
		},
		Auth: AuthConfig{
			JWTSecret: v.GetString("auth.jwt_secret"),
		},
		Search: SearchConfig{
			IndexPath: v.GetString("search.index_path"),
			Channel:   v.GetString("search.channel"),
		},
		Hub: HubConfig{
			SendQueue:    v.GetInt("hub.send_queue"),
			WriteTimeout: v.GetDuration("hub.write_timeout"),
			Channel:      v.GetString("hub.channel"),
		},
	}, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "devsocial")
	v.SetDefault("app.port", "8082")
	v.SetDefault("app.cors_origins", "http://localhost:3000")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", false)

	// Serverless PG: keep pool small, connections short-lived
	v.SetDefault("postgres.max_open_conns", 10)
	v.SetDefault("postgres.max_idle_conns", 2)
	v.SetDefault("postgres.conn_max_lifetime", 3*time.Minute)
	v.SetDefault("postgres.conn_max_idle_time", 30*time.Second)
	v.SetDefault("postgres.migrate", true)

	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.feed_ttl", 15*time.Second)
	v.SetDefault("redis.relay", false)

	v.SetDefault("auth.jwt_secret", "dev-secret-key-change-in-production")

	v.SetDefault("search.channel", "devsocial:index")

	v.SetDefault("hub.send_queue", 64)
	v.SetDefault("hub.write_timeout", 10*time.Second)
	v.SetDefault("hub.channel", "devsocial:rooms")
}
