package vision

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/verity-catalog/verity-catalog/internal/verify"
)

// Detector is the narrow detection contract the cache wraps.
type Detector interface {
	Detect(ctx context.Context, imageRef string) ([]verify.DetectedConcept, error)
}

// CachedDetector memoizes detections in Redis. Cache trouble is never
// surfaced, the inner detector simply runs again.
type CachedDetector struct {
	inner  Detector
	client *redis.Client
	ttl    time.Duration
}

// NewCachedDetector wraps a detector with a Redis concept cache.
func NewCachedDetector(inner Detector, client *redis.Client, ttl time.Duration) *CachedDetector {
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	return &CachedDetector{inner: inner, client: client, ttl: ttl}
}

// Detect serves cached concepts when present, otherwise asks the inner
// detector and stores its answer. Detection errors are not cached.
func (d *CachedDetector) Detect(ctx context.Context, imageRef string) ([]verify.DetectedConcept, error) {
	if d == nil || d.client == nil {
		return d.inner.Detect(ctx, imageRef)
	}

	key := conceptKey(imageRef)
	payload, err := d.client.Get(ctx, key).Bytes()
	if err == nil {
		var cached []verify.DetectedConcept
		if json.Unmarshal(payload, &cached) == nil {
			return cached, nil
		}
	}

	concepts, err := d.inner.Detect(ctx, imageRef)
	if err != nil {
		return nil, err
	}
	if raw, err := json.Marshal(concepts); err == nil {
		_ = d.client.Set(ctx, key, raw, d.ttl).Err()
	}
	return concepts, nil
}

func conceptKey(imageRef string) string {
	sum := sha256.Sum256([]byte(imageRef))
	return "vision:concepts:" + hex.EncodeToString(sum[:])
}
