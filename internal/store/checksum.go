package store

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"uw-workbench/internal/common/database"
	"uw-workbench/internal/common/errors"
)

// ChecksumCache remembers the checksum of the last persisted carrier
// response per submission, so re-ingesting an identical response can be
// skipped without touching Postgres.
type ChecksumCache struct {
	client *database.RedisClient
	ttl    time.Duration
}

func NewChecksumCache(client *database.RedisClient, ttl time.Duration) *ChecksumCache {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &ChecksumCache{client: client, ttl: ttl}
}

func checksumKey(submissionID string) string {
	return fmt.Sprintf("sync:checksum:%s", submissionID)
}

// Seen reports whether the submission's last stored response already carries
// this checksum. Cache errors are surfaced so the caller can decide to fall
// through to the database.
func (c *ChecksumCache) Seen(ctx context.Context, submissionID, checksum string) (bool, error) {
	val, err := c.client.Get(ctx, checksumKey(submissionID))
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, errors.NewChecksumCacheFailedError(err)
	}
	return val == checksum, nil
}

// Remember stores the checksum for the submission.
func (c *ChecksumCache) Remember(ctx context.Context, submissionID, checksum string) error {
	if err := c.client.Set(ctx, checksumKey(submissionID), checksum, c.ttl); err != nil {
		return errors.NewChecksumCacheFailedError(err)
	}
	return nil
}
