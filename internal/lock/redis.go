package lock

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"k8s.io/klog/v2"
)

const releaseScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`

const (
	defaultLease     = 30 * time.Second
	defaultRetryStep = 25 * time.Millisecond
)

// Redis is a Locker shared by every process pointing at the same Redis.
// A held key is a string set with NX and a lease; the value is a random
// token so a holder never deletes a lock it lost to lease expiry.
type Redis struct {
	client  *redis.Client
	release *redis.Script
	prefix  string
	wait    time.Duration
	lease   time.Duration
	step    time.Duration
}

// NewRedis creates a Redis-backed locker. wait bounds how long Acquire polls
// before returning BUSY.
func NewRedis(client *redis.Client, prefix string, wait time.Duration) *Redis {
	return &Redis{
		client:  client,
		release: redis.NewScript(releaseScript),
		prefix:  prefix,
		wait:    wait,
		lease:   defaultLease,
		step:    defaultRetryStep,
	}
}

// Acquire implements Locker.
func (r *Redis) Acquire(ctx context.Context, key Key) (func(), error) {
	name := r.prefix + key.String()
	token := uuid.NewString()

	var deadline <-chan time.Time
	if r.wait > 0 {
		timer := time.NewTimer(r.wait)
		defer timer.Stop()
		deadline = timer.C
	}
	ticker := time.NewTicker(r.step)
	defer ticker.Stop()

	for {
		ok, err := r.client.SetNX(ctx, name, token, r.lease).Result()
		if err != nil {
			if ctx.Err() != nil {
				return nil, waitError(ctx, key)
			}
			return nil, err
		}
		if ok {
			break
		}
		select {
		case <-ctx.Done():
			return nil, waitError(ctx, key)
		case <-deadline:
			return nil, waitError(ctx, key)
		case <-ticker.C:
		}
	}

	var once sync.Once
	return func() {
		once.Do(func() { r.unlock(name, token) })
	}, nil
}

func (r *Redis) unlock(name, token string) {
	releaseCtx, cancel := context.WithTimeout(context.Background(), 250*time.Millisecond)
	defer cancel()
	if err := r.release.Run(releaseCtx, r.client, []string{name}, token).Err(); err != nil {
		klog.ErrorS(err, "Failed to release lock", "key", name)
	}
}
