package redis

import (
	"fmt"

	"github.com/go-redis/redis"
)

type Config struct {
	Addr     string `yaml:"REDIS_ADDR" env:"REDIS_ADDR" env-default:""`
	Password string `yaml:"REDIS_PASSWORD" env:"REDIS_PASSWORD" env-default:""`
	DB       int    `yaml:"REDIS_DB" env:"REDIS_DB" env-default:"0"`
}

// Enabled reports whether a redis address is configured.
func (c Config) Enabled() bool {
	return c.Addr != ""
}

func New(config Config) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     config.Addr,
		Password: config.Password,
		DB:       config.DB,
	})
	if err := client.Ping().Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed connect to Redis: %w", err)
	}
	return client, nil
}
