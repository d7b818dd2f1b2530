package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/jaam8/election_ledger/internal/service"
	"github.com/jaam8/election_ledger/pkg/redis"
	"github.com/jaam8/election_ledger/pkg/sqlite"
	"github.com/jaam8/election_ledger/pkg/tarantool"
	"github.com/joho/godotenv"
)

const (
	DriverMemory    = "memory"
	DriverSqlite    = "sqlite"
	DriverTarantool = "tarantool"
)

var ErrUnknownDriver = errors.New("unknown storage driver")

type Config struct {
	RestPort      string           `yaml:"REST_PORT" env:"REST_PORT" env-default:"8080"`
	BotToken      string           `yaml:"BOT_TOKEN" env:"BOT_TOKEN"`
	MmURL         string           `yaml:"MM_URL" env:"MM_URL"`
	MmWsURL       string           `yaml:"MM_WS_URL" env:"MM_WS_URL"`
	ChannelID     string           `yaml:"CHANNEL_ID" env:"CHANNEL_ID"`
	LogLevel      string           `yaml:"LOG_LEVEL" env:"LOG_LEVEL" env-default:"debug"`
	StorageDriver string           `yaml:"STORAGE_DRIVER" env:"STORAGE_DRIVER" env-default:"sqlite"`
	CacheTTL      time.Duration    `yaml:"RESULTS_CACHE_TTL" env:"RESULTS_CACHE_TTL" env-default:"10m"`
	Tarantool     tarantool.Config `yaml:"TARANTOOL" env:"TARANTOOL"`
	Sqlite        sqlite.Config    `yaml:"SQLITE" env:"SQLITE"`
	Redis         redis.Config     `yaml:"REDIS" env:"REDIS"`
	Ledger        service.Config   `yaml:"LEDGER" env:"LEDGER"`
}

// BotEnabled reports whether the Mattermost bot should be started.
func (c *Config) BotEnabled() bool {
	return c.BotToken != ""
}

// Durable reports whether votes outlive the process and are visible to other
// processes using the same configuration.
func (c *Config) Durable() bool {
	switch c.StorageDriver {
	case DriverMemory:
		return false
	case DriverSqlite:
		return c.Sqlite.DataDir != ""
	default:
		return true
	}
}

// New reads the environment, loading a .env file first when one exists.
func New() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}

	var config Config
	if err := cleanenv.ReadEnv(&config); err != nil {
		return nil, err
	}
	switch config.StorageDriver {
	case DriverMemory, DriverSqlite, DriverTarantool:
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, config.StorageDriver)
	}
	return &config, nil
}
