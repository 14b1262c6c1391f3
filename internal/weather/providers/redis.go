package providers

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/i474232898/farm-assistant/internal/observability"
	"github.com/i474232898/farm-assistant/internal/weather"
)

const redisKeyPrefix = "farm-assistant:geocode:"

// RedisCachedGeocoder shares geocoding results between instances through Redis.
// Redis failures degrade to calling the inner geocoder.
type RedisCachedGeocoder struct {
	inner   weather.Geocoder
	client  *redis.Client
	ttl     time.Duration
	metrics *observability.Metrics
	logger  *zap.Logger
}

func NewRedisCachedGeocoder(inner weather.Geocoder, client *redis.Client, ttl time.Duration, metrics *observability.Metrics, logger *zap.Logger) *RedisCachedGeocoder {
	return &RedisCachedGeocoder{
		inner:   inner,
		client:  client,
		ttl:     ttl,
		metrics: metrics,
		logger:  logger,
	}
}

func (c *RedisCachedGeocoder) Name() string {
	return c.inner.Name()
}

func (c *RedisCachedGeocoder) Geocode(ctx context.Context, address string) (weather.GeocodingResult, error) {
	key := redisKeyPrefix + cacheKey(address)

	raw, err := c.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var result weather.GeocodingResult
		if jerr := json.Unmarshal(raw, &result); jerr == nil {
			c.metrics.GeocodeCache.WithLabelValues("redis", "hit").Inc()
			return result, nil
		}
		c.logger.Warn("discarding malformed cached geocode", zap.String("key", key))
	case errors.Is(err, redis.Nil):
	default:
		c.logger.Warn("redis geocode lookup failed", zap.Error(err))
	}
	c.metrics.GeocodeCache.WithLabelValues("redis", "miss").Inc()

	result, err := c.inner.Geocode(ctx, address)
	if err != nil {
		return result, err
	}

	if data, jerr := json.Marshal(result); jerr == nil {
		if serr := c.client.Set(ctx, key, data, c.ttl).Err(); serr != nil {
			c.logger.Warn("redis geocode store failed", zap.Error(serr))
		}
	}
	return result, nil
}
