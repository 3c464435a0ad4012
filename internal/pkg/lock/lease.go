package lock

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Lease is a Redis-backed run lease. Acquire succeeds only if no other holder
// owns the key; the TTL guarantees a crashed holder cannot block runs forever.
type Lease struct {
	client *redis.Client
}

// NewLease creates a lease manager
func NewLease(client *redis.Client) *Lease {
	return &Lease{client: client}
}

// Acquire attempts to take the named lease for ttl. It returns false if the
// lease is currently held by someone else.
func (l *Lease) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, string, error) {
	holder := uuid.New().String()
	ok, err := l.client.SetNX(ctx, key, holder, ttl).Result()
	if err != nil {
		return false, "", err
	}
	return ok, holder, nil
}

// releaseScript deletes the lease only if we still hold it, so an expired
// lease re-acquired by another run is never released from under them.
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

// Release gives the lease back if holder still owns it.
func (l *Lease) Release(ctx context.Context, key, holder string) error {
	return releaseScript.Run(ctx, l.client, []string{key}, holder).Err()
}
