package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Port     string `mapstructure:"PORT"`
	GRPCPort string `mapstructure:"GRPC_PORT"`
	AppEnv   string `mapstructure:"APP_ENV"`
	LogLevel string `mapstructure:"LOG_LEVEL"`

	DBDriver   string `mapstructure:"DB_DRIVER"`
	DBHost     string `mapstructure:"DB_HOST"`
	DBPort     string `mapstructure:"DB_PORT"`
	DBUser     string `mapstructure:"DB_USER"`
	DBPassword string `mapstructure:"DB_PASSWORD"`
	DBName     string `mapstructure:"DB_NAME"`
	SQLitePath string `mapstructure:"SQLITE_PATH"`

	RedisAddr     string `mapstructure:"REDIS_ADDR"`
	RedisPassword string `mapstructure:"REDIS_PASSWORD"`

	JWTSecret      string `mapstructure:"JWT_SECRET"`
	AllowedOrigins string `mapstructure:"ALLOWED_ORIGINS"`

	CatalogCacheTTL   time.Duration `mapstructure:"CATALOG_CACHE_TTL"`
	WeeklyResetSpec   string        `mapstructure:"WEEKLY_RESET_SPEC"`
	DiscoverRateLimit int           `mapstructure:"DISCOVER_RATE_LIMIT"`
}

var keys = []string{
	"PORT", "GRPC_PORT", "APP_ENV", "LOG_LEVEL",
	"DB_DRIVER", "DB_HOST", "DB_PORT", "DB_USER", "DB_PASSWORD", "DB_NAME", "SQLITE_PATH",
	"REDIS_ADDR", "REDIS_PASSWORD",
	"JWT_SECRET", "ALLOWED_ORIGINS",
	"CATALOG_CACHE_TTL", "WEEKLY_RESET_SPEC", "DISCOVER_RATE_LIMIT",
}

// LoadConfig reads app.env from path and lets environment variables override it.
// A missing file is fine, everything can come from the environment.
func LoadConfig(path string) (config Config, err error) {
	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName("app")
	v.SetConfigType("env")
	v.AutomaticEnv()

	v.SetDefault("PORT", ":8080")
	v.SetDefault("GRPC_PORT", ":9090")
	v.SetDefault("APP_ENV", "production")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("DB_DRIVER", "postgres")
	v.SetDefault("DB_PORT", "5432")
	v.SetDefault("SQLITE_PATH", "cardvault.db")
	v.SetDefault("CATALOG_CACHE_TTL", "5m")
	v.SetDefault("WEEKLY_RESET_SPEC", "0 0 * * 1")
	v.SetDefault("DISCOVER_RATE_LIMIT", 30)

	for _, key := range keys {
		_ = v.BindEnv(key)
	}

	if err = v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return
		}
	}

	err = v.Unmarshal(&config)
	return
}

func (c Config) Origins() []string {
	var origins []string
	for _, o := range strings.Split(c.AllowedOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	return origins
}
