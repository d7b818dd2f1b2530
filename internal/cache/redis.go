package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis"
	"github.com/jaam8/election_ledger/internal/models"
)

const keyPrefix = "results:"

type Redis struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedis stores views as JSON under results:<election id>. A zero ttl keeps
// them until they are deleted.
func NewRedis(client *redis.Client, ttl time.Duration) *Redis {
	return &Redis{client: client, ttl: ttl}
}

func resultsKey(electionID string) string {
	return keyPrefix + electionID
}

func (r *Redis) Get(ctx context.Context, electionID string) (*models.ResultsView, error) {
	val, err := r.client.WithContext(ctx).Get(resultsKey(electionID)).Bytes()
	if err == redis.Nil {
		return nil, models.ErrCacheMiss
	} else if err != nil {
		return nil, fmt.Errorf("cache: redis get error: %w", err)
	}
	view := &models.ResultsView{}
	if err := json.Unmarshal(val, view); err != nil {
		return nil, fmt.Errorf("cache: failed to unmarshal view: %w", err)
	}
	return view, nil
}

func (r *Redis) Set(ctx context.Context, view *models.ResultsView) error {
	buf, err := json.Marshal(view)
	if err != nil {
		return fmt.Errorf("cache: failed to marshal view: %w", err)
	}
	if err := r.client.WithContext(ctx).Set(resultsKey(view.ElectionID), buf, r.ttl).Err(); err != nil {
		return fmt.Errorf("cache: redis set error: %w", err)
	}
	return nil
}

func (r *Redis) Delete(ctx context.Context, electionID string) error {
	if err := r.client.WithContext(ctx).Del(resultsKey(electionID)).Err(); err != nil {
		return fmt.Errorf("cache: redis del error: %w", err)
	}
	return nil
}
