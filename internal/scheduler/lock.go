package scheduler

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"tutiful-scheduler/internal/common/logger"
)

const scanLockKey = "scheduler:progression:lock"

// releaseScript deletes the lock only if this process still owns it, so a
// slow scan that outlives its TTL cannot release a successor's lock.
var releaseScript = redis.NewScript(`
	if redis.call("GET", KEYS[1]) == ARGV[1] then
		return redis.call("DEL", KEYS[1])
	end
	return 0
`)

// ScanLock is a best-effort cross-replica mutex on the progression scan.
// Losing Redis degrades to every replica scanning; the conditional sent-flag
// update keeps that correct, just wasteful.
type ScanLock struct {
	client *redis.Client
	ttl    time.Duration
	log    logger.Logger
	token  string
}

// NewScanLock accepts a nil client, which disables locking.
func NewScanLock(client *redis.Client, ttl time.Duration, log logger.Logger) *ScanLock {
	return &ScanLock{
		client: client,
		ttl:    ttl,
		log:    log,
		token:  uuid.New().String(),
	}
}

// Acquire attempts to take the lock. It returns (false, nil) when another
// replica holds it.
func (l *ScanLock) Acquire(ctx context.Context) (bool, error) {
	if l == nil || l.client == nil {
		return true, nil
	}
	return l.client.SetNX(ctx, scanLockKey, l.token, l.ttl).Result()
}

// Release drops the lock if this process still owns it.
func (l *ScanLock) Release(ctx context.Context) {
	if l == nil || l.client == nil {
		return
	}

	if err := releaseScript.Run(ctx, l.client, []string{scanLockKey}, l.token).Err(); err != nil && err != redis.Nil {
		l.log.Warn("Scan lock release failed", map[string]interface{}{
			"error": err.Error(),
		})
	}
}
