// Package config loads server and client configuration from a YAML
// file or environment variables via cleanenv.
package config

import (
	"fmt"
	"os"

	"github.com/ilyakaznacheev/cleanenv"
)

// ServerConfig parameterizes the facility booking server.
type ServerConfig struct {
	Addr        string  `yaml:"addr" env:"FACILITYD_ADDR" env-default:"0.0.0.0:2222"`
	MetricsAddr string  `yaml:"metrics_addr" env:"FACILITYD_METRICS_ADDR" env-default:""`
	Semantics   string  `yaml:"semantics" env:"FACILITYD_SEMANTICS" env-default:"at-least-once"`
	Workers     int     `yaml:"workers" env:"FACILITYD_WORKERS" env-default:"0"`
	Timezone    string  `yaml:"timezone" env:"FACILITYD_TIMEZONE" env-default:"UTC"`
	DropRate    float64 `yaml:"drop_rate" env:"FACILITYD_DROP_RATE" env-default:"0"`
	DataDir     string  `yaml:"data_dir" env:"FACILITYD_DATA_DIR" env-default:""`
	CacheTTL    int     `yaml:"cache_ttl_seconds" env:"FACILITYD_CACHE_TTL" env-default:"300"`
	CacheLimit  int     `yaml:"cache_max_clients" env:"FACILITYD_CACHE_MAX_CLIENTS" env-default:"1000"`
}

// AtMostOnce reports whether Semantics selects the at-most-once
// response cache.
func (c ServerConfig) AtMostOnce() bool {
	return c.Semantics == "at-most-once"
}

// ClientConfig parameterizes the CLI client.
type ClientConfig struct {
	ServerAddr string  `yaml:"server_addr" env:"FACILITY_CLIENT_SERVER_ADDR" env-default:"127.0.0.1:2222"`
	TimeoutMS  int     `yaml:"timeout_ms" env:"FACILITY_CLIENT_TIMEOUT_MS" env-default:"2000"`
	Retries    int     `yaml:"retries" env:"FACILITY_CLIENT_RETRIES" env-default:"3"`
	DropRate   float64 `yaml:"drop_rate" env:"FACILITY_CLIENT_DROP_RATE" env-default:"0"`
}

// LoadServer reads ServerConfig from path if it exists, falling back to
// environment variables otherwise.
func LoadServer(path string) (ServerConfig, error) {
	cfg := ServerConfig{}
	if err := load(path, &cfg); err != nil {
		return ServerConfig{}, err
	}
	return cfg, nil
}

// LoadClient reads ClientConfig from path if it exists, falling back to
// environment variables otherwise.
func LoadClient(path string) (ClientConfig, error) {
	cfg := ClientConfig{}
	if err := load(path, &cfg); err != nil {
		return ClientConfig{}, err
	}
	return cfg, nil
}

func load(path string, dst any) error {
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if err := cleanenv.ReadConfig(path, dst); err != nil {
				return fmt.Errorf("read config %s: %w", path, err)
			}
			return nil
		}
	}
	if err := cleanenv.ReadEnv(dst); err != nil {
		return fmt.Errorf("read environment: %w", err)
	}
	return nil
}
