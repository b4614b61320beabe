package configs

import (
	"errors"
	"fmt"
	"io/fs"
	"net"
	"path/filepath"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type Config struct {
	ServerHost             string  `mapstructure:"SERVER_HOST"`
	ServerPort             string  `mapstructure:"SERVER_PORT"`
	RelayMaxClients        int     `mapstructure:"RELAY_MAX_CLIENTS"`
	RelayMessageLimit      int     `mapstructure:"RELAY_MESSAGE_LIMIT"`
	RelayLockoutDuration   string  `mapstructure:"RELAY_LOCKOUT_DURATION"`
	RelaySweepInterval     string  `mapstructure:"RELAY_SWEEP_INTERVAL"`
	RelayDisconnectOnBlock bool    `mapstructure:"RELAY_DISCONNECT_ON_BLOCK"`
	RelayTransform         string  `mapstructure:"RELAY_TRANSFORM"`
	RelayAcceptRate        float64 `mapstructure:"RELAY_ACCEPT_RATE"`
	RelayStorage           string  `mapstructure:"RELAY_STORAGE"`
	RelayRedisAddr         string  `mapstructure:"RELAY_REDIS_ADDR"`
	RelayStatusAddr        string  `mapstructure:"RELAY_STATUS_ADDR"`
	RelayStatusRate        float64 `mapstructure:"RELAY_STATUS_RATE"`
	RelayShutdownTimeout   string  `mapstructure:"RELAY_SHUTDOWN_TIMEOUT"`
}

var defaults = map[string]any{
	"SERVER_HOST":               "",
	"SERVER_PORT":               "8000",
	"RELAY_MAX_CLIENTS":         5,
	"RELAY_MESSAGE_LIMIT":       5,
	"RELAY_LOCKOUT_DURATION":    "60s",
	"RELAY_SWEEP_INTERVAL":      "1s",
	"RELAY_DISCONNECT_ON_BLOCK": false,
	"RELAY_TRANSFORM":           "reverse",
	"RELAY_ACCEPT_RATE":         0.0,
	"RELAY_STORAGE":             "memory",
	"RELAY_REDIS_ADDR":          "localhost:6379",
	"RELAY_STATUS_ADDR":         "",
	"RELAY_STATUS_RATE":         10.0,
	"RELAY_SHUTDOWN_TIMEOUT":    "10s",
}

// FlagKeys maps command line flag names to configuration keys.
var FlagKeys = map[string]string{
	"host":                "SERVER_HOST",
	"port":                "SERVER_PORT",
	"max-clients":         "RELAY_MAX_CLIENTS",
	"limit":               "RELAY_MESSAGE_LIMIT",
	"lockout":             "RELAY_LOCKOUT_DURATION",
	"sweep-interval":      "RELAY_SWEEP_INTERVAL",
	"disconnect-on-block": "RELAY_DISCONNECT_ON_BLOCK",
	"transform":           "RELAY_TRANSFORM",
	"accept-rate":         "RELAY_ACCEPT_RATE",
	"storage":             "RELAY_STORAGE",
	"redis-addr":          "RELAY_REDIS_ADDR",
	"status-addr":         "RELAY_STATUS_ADDR",
	"status-rate":         "RELAY_STATUS_RATE",
	"shutdown-timeout":    "RELAY_SHUTDOWN_TIMEOUT",
}

// LoadConfig reads path/.env and the environment. Flags that were set on the
// command line take precedence. A missing .env file is not an error.
func LoadConfig(path string, flags *pflag.FlagSet) (*Config, error) {
	var config *Config

	v := viper.New()
	v.SetConfigType("env")
	v.SetConfigFile(filepath.Join(path, ".env"))
	v.AutomaticEnv()

	for key, value := range defaults {
		v.SetDefault(key, value)
		v.BindEnv(key)
	}
	if flags != nil {
		for name, key := range FlagKeys {
			if flag := flags.Lookup(name); flag != nil {
				if err := v.BindPFlag(key, flag); err != nil {
					return nil, err
				}
			}
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}

	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}
	return config, nil
}

func (c *Config) ListenAddr() string {
	return net.JoinHostPort(c.ServerHost, c.ServerPort)
}

// ParseDuration parses the duration stored under key.
func ParseDuration(key, value string) (time.Duration, error) {
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid duration format for %s: %s. Valid time units are \"ns\", \"us\" (or \"µs\"), \"ms\", \"s\", \"m\", \"h\"", key, value)
	}
	if d < 0 {
		return 0, fmt.Errorf("invalid duration for %s: %s must not be negative", key, value)
	}
	return d, nil
}
