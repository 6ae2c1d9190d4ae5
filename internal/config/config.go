package config

import (
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Gateway  GatewayConfig
	Sessions SessionsConfig
}

type ServerConfig struct {
	Port string
	Mode string
}

type DatabaseConfig struct {
	URL            string
	MaxConnections int
	MaxIdleConns   int
}

type RedisConfig struct {
	URL string
}

type GatewayConfig struct {
	URL              string
	HandshakeTimeout time.Duration
}

type SessionsConfig struct {
	CredentialDir     string
	ReconnectDelay    time.Duration
	HeartbeatInterval time.Duration
	SendBurst         int
}

func Load() (*Config, error) {
	// Optional .env for local development.
	_ = godotenv.Load()

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.SetEnvPrefix("MSGMUX")
	viper.AutomaticEnv()

	// Set defaults
	viper.SetDefault("server.port", "8080")
	viper.SetDefault("server.mode", "debug")
	viper.SetDefault("database.maxconnections", 25)
	viper.SetDefault("database.maxidleconns", 5)
	viper.SetDefault("redis.url", "redis://localhost:6379/0")
	viper.SetDefault("gateway.handshaketimeout", "15s")
	viper.SetDefault("sessions.credentialdir", "./storage/sessions")
	viper.SetDefault("sessions.reconnectdelay", "5s")
	viper.SetDefault("sessions.heartbeatinterval", "30s")
	viper.SetDefault("sessions.sendburst", 20)

	var cfg Config
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	// Override with environment variables
	if url := os.Getenv("DATABASE_URL"); url != "" {
		cfg.Database.URL = url
	}
	if url := os.Getenv("REDIS_URL"); url != "" {
		cfg.Redis.URL = url
	}
	if url := os.Getenv("GATEWAY_URL"); url != "" {
		cfg.Gateway.URL = url
	}
	if dir := os.Getenv("CREDENTIAL_DIR"); dir != "" {
		cfg.Sessions.CredentialDir = dir
	}

	return &cfg, nil
}
