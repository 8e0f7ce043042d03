package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/jmorenov/plazacore/config"
	"github.com/jmorenov/plazacore/internal/domain"
)

type RedisCache struct {
	client   *redis.Client
	boardTTL time.Duration
}

func NewRedisCache(cfg config.RedisConfig, boardTTL time.Duration) *RedisCache {
	return &RedisCache{
		client:   redis.NewClient(&redis.Options{Addr: cfg.Addr, Password: cfg.Password, DB: cfg.DB}),
		boardTTL: boardTTL,
	}
}

// AcquireSpotHold takes a short-lived SetNX lock on a spot before the
// booking transaction runs, so concurrent bookings for the same spot
// mostly fail fast instead of contending on the row. The database
// guard remains the source of truth.
func (c *RedisCache) AcquireSpotHold(ctx context.Context, facilityID int64, number int, ttl time.Duration) (bool, error) {
	return c.client.SetNX(ctx, spotHoldKey(facilityID, number), "held", ttl).Result()
}

func (c *RedisCache) ReleaseSpotHold(ctx context.Context, facilityID int64, number int) error {
	return c.client.Del(ctx, spotHoldKey(facilityID, number)).Err()
}

// GetSpotBoard returns the cached facility dashboard, or nil on miss.
func (c *RedisCache) GetSpotBoard(ctx context.Context, facilityID int64) ([]domain.Spot, error) {
	data, err := c.client.Get(ctx, boardKey(facilityID)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, err
	}

	var spots []domain.Spot
	if err := json.Unmarshal(data, &spots); err != nil {
		return nil, err
	}
	return spots, nil
}

func (c *RedisCache) SetSpotBoard(ctx context.Context, facilityID int64, spots []domain.Spot) error {
	payload, err := json.Marshal(spots)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, boardKey(facilityID), payload, c.boardTTL).Err()
}

// InvalidateSpotBoard drops the cached board after any status flip.
func (c *RedisCache) InvalidateSpotBoard(ctx context.Context, facilityID int64) error {
	return c.client.Del(ctx, boardKey(facilityID)).Err()
}

func boardKey(facilityID int64) string {
	return fmt.Sprintf("cache:board:%d", facilityID)
}

func spotHoldKey(facilityID int64, number int) string {
	return fmt.Sprintf("hold:facility:%d:spot:%d", facilityID, number)
}
