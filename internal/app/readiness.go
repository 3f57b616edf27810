// Package app wires application components and startup helpers.
//
// It provides dependency injection and application initialization.
// The package coordinates between different layers and provides
// a clean application bootstrap process.
package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/makeit3d/forge-gateway/internal/config"
)

// Pinger is the minimal interface for a database pool capable of Ping.
type Pinger interface {
	Ping(ctx context.Context) error
}

// BuildReadinessChecks returns the three collaborator checks the readiness
// endpoint probes (spec §6.2 GET /readyz): the job store, the asynq broker,
// and the blob store.
func BuildReadinessChecks(cfg config.Config, pool Pinger, redisClient *redis.Client) (
	dbCheck func(ctx context.Context) error,
	redisCheck func(ctx context.Context) error,
	blobCheck func(ctx context.Context) error,
) {
	dbCheck = func(ctx context.Context) error {
		if pool == nil {
			return fmt.Errorf("db not configured")
		}
		return pool.Ping(ctx)
	}
	redisCheck = func(ctx context.Context) error {
		if redisClient == nil {
			return fmt.Errorf("redis not configured")
		}
		return redisClient.Ping(ctx).Err()
	}
	blobCheck = func(ctx context.Context) error {
		if cfg.BlobStoreURL == "" {
			return fmt.Errorf("blobstore url not configured")
		}
		client := &http.Client{Timeout: 2 * time.Second}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, cfg.BlobStoreURL+"/storage/v1/bucket/"+cfg.BucketName, nil)
		if err != nil {
			return err
		}
		req.Header.Set("Authorization", "Bearer "+cfg.BlobStoreServiceKey)
		resp, err := client.Do(req)
		if err != nil {
			return err
		}
		defer func() { _ = resp.Body.Close() }()
		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return nil
		}
		return fmt.Errorf("blobstore status %d", resp.StatusCode)
	}
	return dbCheck, redisCheck, blobCheck
}
