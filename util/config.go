package util

import (
	"errors"
	"io/fs"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

type Config struct {
	Port              string        `mapstructure:"port" validate:"required,number"`
	Mode              string        `mapstructure:"mode" validate:"oneof=debug release test"`
	LogLevel          string        `mapstructure:"log_level" validate:"oneof=trace debug info warn error"`
	TokenSymmetricKey string        `mapstructure:"token_symmetric_key" validate:"required,len=32"`
	TokenDuration     time.Duration `mapstructure:"token_duration" validate:"gt=0"`
	RequireAuth       bool          `mapstructure:"require_auth"`
	AllowedOrigins    []string      `mapstructure:"allowed_origins"`
	EgressBuffer      int           `mapstructure:"egress_buffer" validate:"gt=0"`
	PongWait          time.Duration `mapstructure:"pong_wait" validate:"gt=0"`
	ReadLimit         int64         `mapstructure:"read_limit" validate:"gt=0"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout" validate:"gt=0"`
}

// PingInterval is how often the server pings a client. Always below PongWait.
func (c *Config) PingInterval() time.Duration {
	return (c.PongWait * 9) / 10
}

// LoadConfig reads a .env file if present, then the environment. Every key
// has a default except the token key.
func LoadConfig() (*Config, error) {
	loadDotEnv()

	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("port", "8080")
	v.SetDefault("mode", "release")
	v.SetDefault("log_level", "info")
	v.SetDefault("token_symmetric_key", "")
	v.SetDefault("token_duration", "24h")
	v.SetDefault("require_auth", false)
	v.SetDefault("allowed_origins", []string{"http://localhost:3000", "http://localhost:8080"})
	v.SetDefault("egress_buffer", 64)
	v.SetDefault("pong_wait", "10s")
	v.SetDefault("read_limit", 512)
	v.SetDefault("shutdown_timeout", "5s")

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	if err := Validate.Struct(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

// loadDotEnv loads the given env files (".env" by default) into the process
// environment. A missing file is not an error.
func loadDotEnv(filenames ...string) error {
	err := godotenv.Load(filenames...)
	if err == nil || errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	log.Debug().Err(err).Str("module", "util").Msg("cannot load env file")
	return err
}
