package async

import "time"

const (
	DefaultWorkers   = 4
	DefaultQueueSize = 256
	// DefaultPollTimeout bounds one BRPOP so workers notice shutdown.
	DefaultPollTimeout = 2 * time.Second
	// DefaultLeaseTTL is how long a Redis claim survives a crashed owner.
	DefaultLeaseTTL = 30 * time.Second
)

type options struct {
	workers     int
	size        int
	timeout     time.Duration
	pollTimeout time.Duration
	leaseTTL    time.Duration
	metrics     Metrics
}

func defaultOptions() options {
	return options{
		workers:     DefaultWorkers,
		size:        DefaultQueueSize,
		pollTimeout: DefaultPollTimeout,
		leaseTTL:    DefaultLeaseTTL,
		metrics:     noopMetrics{},
	}
}

type Option func(*options)

func WithWorkers(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.workers = n
		}
	}
}

// WithQueueSize bounds the number of waiting jobs.
func WithQueueSize(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.size = n
		}
	}
}

// WithProcessTimeout caps one contract run. Zero means no cap.
func WithProcessTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.timeout = d
		}
	}
}

func WithPollTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.pollTimeout = d
		}
	}
}

// WithLeaseTTL sets the lifetime of a Redis claim. Owners renew it at a
// third of the TTL while they run.
func WithLeaseTTL(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.leaseTTL = d
		}
	}
}

func WithMetrics(m Metrics) Option {
	return func(o *options) {
		if m != nil {
			o.metrics = m
		}
	}
}
