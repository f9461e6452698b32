package timeseries

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const redisLatestTTL = 10 * time.Minute

// remoteCache mirrors the most recent (device, metric) value to Redis so a
// second edge process sharing the same broker pool can serve ValueProvider
// reads without waiting for its own in-process cache to warm up. It is
// strictly an accelerator: every read checks the local map first and asks
// Redis only on a local miss, and a Redis outage only costs the speedup,
// never correctness.
type remoteCache struct {
	client *redis.Client
	log    *zap.SugaredLogger
}

func newRemoteCache(url string, log *zap.SugaredLogger) (*remoteCache, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return &remoteCache{client: redis.NewClient(opts), log: log}, nil
}

func redisKey(deviceID, metric string) string {
	return "neomind:latest:" + deviceID + "\x1f" + metric
}

func (c *remoteCache) set(deviceID, metric string, p DataPoint) {
	if c == nil {
		return
	}
	buf, err := json.Marshal(p)
	if err != nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := c.client.Set(ctx, redisKey(deviceID, metric), buf, redisLatestTTL).Err(); err != nil && c.log != nil {
		c.log.Debugw("redis latest-value mirror failed", "device_id", deviceID, "metric", metric, "error", err)
	}
}

func (c *remoteCache) get(deviceID, metric string) (DataPoint, bool) {
	if c == nil {
		return DataPoint{}, false
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	raw, err := c.client.Get(ctx, redisKey(deviceID, metric)).Bytes()
	if err != nil {
		return DataPoint{}, false
	}
	var p DataPoint
	if err := json.Unmarshal(raw, &p); err != nil {
		return DataPoint{}, false
	}
	return p, true
}

// ConnectRemoteCache wires an optional Redis fast path in front of Latest.
// Safe to call with an empty url, in which case the store simply keeps
// serving Latest from its in-process map.
func (s *Store) ConnectRemoteCache(url string) error {
	if url == "" {
		return nil
	}
	rc, err := newRemoteCache(url, s.log)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.remote = rc
	s.mu.Unlock()
	return nil
}
