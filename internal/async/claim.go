package async

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// claimFunc takes exclusive ownership of a contract for one run. ok is false
// when another worker already holds it; release must be called once the run
// ends.
type claimFunc func(ctx context.Context, id uuid.UUID) (release func(), ok bool, err error)

// localClaims guards contracts within one process.
type localClaims struct {
	mu   sync.Mutex
	held map[uuid.UUID]struct{}
}

func newLocalClaims() *localClaims {
	return &localClaims{held: make(map[uuid.UUID]struct{})}
}

func (c *localClaims) claim(_ context.Context, id uuid.UUID) (func(), bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, busy := c.held[id]; busy {
		return nil, false, nil
	}
	c.held[id] = struct{}{}
	return func() {
		c.mu.Lock()
		delete(c.held, id)
		c.mu.Unlock()
	}, true, nil
}

func (c *localClaims) addTo(ids map[uuid.UUID]struct{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for id := range c.held {
		ids[id] = struct{}{}
	}
}

// renewScript extends KEYS[1] by ARGV[2] ms while it still holds token ARGV[1].
var renewScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)

// releaseScript deletes KEYS[1] only if it still holds token ARGV[1].
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

func (q *RedisQueue) leasePrefix() string { return q.key + ":lease:" }

func (q *RedisQueue) leaseKey(id uuid.UUID) string { return q.leasePrefix() + id.String() }

// claim sets a lease with SET NX PX and renews it until release. A crashed
// owner's lease expires after leaseTTL.
func (q *RedisQueue) claim(ctx context.Context, id uuid.UUID) (func(), bool, error) {
	key := q.leaseKey(id)
	token := uuid.NewString()
	ok, err := q.client.SetNX(ctx, key, token, q.opts.leaseTTL).Result()
	if err != nil || !ok {
		return nil, false, err
	}

	stop := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		t := time.NewTicker(q.opts.leaseTTL / 3)
		defer t.Stop()
		for {
			select {
			case <-stop:
				return
			case <-t.C:
				kept, err := renewScript.Run(context.Background(), q.client, []string{key}, token, q.opts.leaseTTL.Milliseconds()).Int()
				if err != nil {
					q.logger.Warn("dispatcher.lease.renew", "contract_id", id, "error", err)
				} else if kept == 0 {
					q.logger.Warn("dispatcher.lease.lost", "contract_id", id)
				}
			}
		}
	}()

	release := func() {
		close(stop)
		<-done
		rctx, cancel := context.WithTimeout(context.Background(), redisConnectTimeout)
		defer cancel()
		if err := releaseScript.Run(rctx, q.client, []string{key}, token).Err(); err != nil {
			q.logger.Warn("dispatcher.lease.release", "contract_id", id, "error", err)
		}
	}
	return release, true, nil
}
