package async

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/joseph-ayodele/contract-intelligence/internal/common"
)

// DefaultRedisKey is the list jobs are pushed to.
const DefaultRedisKey = "contracts:jobs"

// pushScript pushes ARGV[1] unless the list already holds ARGV[2] entries.
// Returns the new length, or -1 when full.
var pushScript = redis.NewScript(`
if redis.call("LLEN", KEYS[1]) >= tonumber(ARGV[2]) then
	return -1
end
return redis.call("LPUSH", KEYS[1], ARGV[1])
`)

const redisConnectTimeout = 5 * time.Second

// NewRedisClient connects and pings.
func NewRedisClient(addr, password string, db int) (*redis.Client, error) {
	if addr == "" {
		return nil, errors.New("redis address is required")
	}
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), redisConnectTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return client, nil
}

// RedisQueue shares one bounded job list between processes. Any process can
// Enqueue; only processes that call Start consume.
type RedisQueue struct {
	client *redis.Client
	key    string
	proc   Processor
	logger *slog.Logger
	opts   options

	wg       sync.WaitGroup
	once     sync.Once
	pollCtx  context.Context
	stopPoll context.CancelFunc
	base     context.Context
	cancel   context.CancelFunc

	mu     sync.Mutex
	closed bool
}

var (
	_ Queue   = (*RedisQueue)(nil)
	_ Tracker = (*RedisQueue)(nil)
)

func NewRedisQueue(client *redis.Client, key string, proc Processor, logger *slog.Logger, opts ...Option) *RedisQueue {
	if logger == nil {
		logger = slog.Default()
	}
	if key == "" {
		key = DefaultRedisKey
	}
	o := defaultOptions()
	for _, fn := range opts {
		fn(&o)
	}
	pollCtx, stopPoll := context.WithCancel(context.Background())
	base, cancel := context.WithCancel(context.Background())
	return &RedisQueue{
		client:   client,
		key:      key,
		proc:     proc,
		logger:   logger,
		opts:     o,
		pollCtx:  pollCtx,
		stopPoll: stopPoll,
		base:     base,
		cancel:   cancel,
	}
}

// Enqueue pushes the job unless the list is at capacity.
func (q *RedisQueue) Enqueue(ctx context.Context, job Job) error {
	q.mu.Lock()
	closed := q.closed
	q.mu.Unlock()
	if closed {
		return ErrQueueClosed
	}

	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("encode job: %w", err)
	}
	depth, err := pushScript.Run(ctx, q.client, []string{q.key}, payload, q.opts.size).Int()
	if err != nil {
		q.logger.Error("dispatcher.enqueue.error", "contract_id", job.ContractID, "error", err)
		return fmt.Errorf("redis enqueue: %w", err)
	}
	if depth < 0 {
		q.opts.metrics.JobRejected()
		q.logger.Warn("dispatcher.enqueue.backpressure", "contract_id", job.ContractID, "capacity", q.opts.size)
		return common.ErrBackpressure
	}
	q.opts.metrics.SetQueueDepth(depth)
	q.logger.Info("dispatcher.enqueue.ok", "contract_id", job.ContractID, "depth", depth)
	return nil
}

// Len reports how many jobs are waiting in Redis.
func (q *RedisQueue) Len(ctx context.Context) (int, error) {
	n, err := q.client.LLen(ctx, q.key).Result()
	return int(n), err
}

// Tracked lists contracts waiting in Redis plus those under a live lease.
func (q *RedisQueue) Tracked(ctx context.Context) (map[uuid.UUID]struct{}, error) {
	items, err := q.client.LRange(ctx, q.key, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("redis list jobs: %w", err)
	}
	ids := make(map[uuid.UUID]struct{}, len(items))
	for _, raw := range items {
		var job Job
		if err := json.Unmarshal([]byte(raw), &job); err != nil {
			continue
		}
		ids[job.ContractID] = struct{}{}
	}

	prefix := q.leasePrefix()
	iter := q.client.Scan(ctx, 0, prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		id, err := uuid.Parse(strings.TrimPrefix(iter.Val(), prefix))
		if err != nil {
			continue
		}
		ids[id] = struct{}{}
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("redis scan leases: %w", err)
	}
	return ids, nil
}

// Start launches the consuming workers. Calling it twice is a no-op.
func (q *RedisQueue) Start() {
	q.once.Do(func() {
		for i := 0; i < q.opts.workers; i++ {
			q.wg.Add(1)
			go q.work(i + 1)
		}
	})
}

func (q *RedisQueue) work(workerID int) {
	defer q.wg.Done()
	q.logger.Debug("dispatcher.worker.start", "worker_id", workerID, "key", q.key)
	defer q.logger.Debug("dispatcher.worker.stop", "worker_id", workerID)

	for {
		if q.pollCtx.Err() != nil {
			return
		}
		res, err := q.client.BRPop(q.pollCtx, q.opts.pollTimeout, q.key).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			if q.pollCtx.Err() != nil {
				return
			}
			q.logger.Warn("dispatcher.poll.error", "worker_id", workerID, "error", err)
			q.pause()
			continue
		}
		if len(res) != 2 {
			continue
		}

		var job Job
		if err := json.Unmarshal([]byte(res[1]), &job); err != nil {
			q.logger.Error("dispatcher.job.decode", "worker_id", workerID, "payload", res[1], "error", err)
			continue
		}
		_ = runJob(q.base, q.proc, q.claim, job, q.opts, q.logger, workerID)
	}
}

func (q *RedisQueue) pause() {
	t := time.NewTimer(q.opts.pollTimeout)
	defer t.Stop()
	select {
	case <-q.pollCtx.Done():
	case <-t.C:
	}
}

// Shutdown stops intake and polling, then waits for running jobs. Jobs still
// in Redis stay there for the next consumer.
func (q *RedisQueue) Shutdown(ctx context.Context) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	q.mu.Unlock()
	q.stopPoll()

	done := make(chan struct{})
	go func() { defer close(done); q.wg.Wait() }()

	select {
	case <-ctx.Done():
		q.cancel()
		q.logger.Warn("dispatcher.shutdown.interrupted", "error", ctx.Err())
		<-done
	case <-done:
		q.cancel()
		q.logger.Info("dispatcher.shutdown.drained")
	}
}
