package scenario

import (
	"context"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

var replenishJobs = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "lingoflow_replenish_jobs_total",
		Help: "Replacement scenario jobs by outcome (queued, dropped, added, failed).",
	},
	[]string{"outcome"},
)

// Replenisher generates replacement scenarios in the background. Jobs are
// queued without blocking and dropped when the queue is full; one worker
// drains the queue at a limited rate.
type Replenisher struct {
	catalog *Catalog
	jobs    chan replenishJob
	limiter *rate.Limiter
	log     *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	mu     sync.Mutex
	closed bool
}

type replenishJob struct {
	reason string
	count  int
}

// NewReplenisher starts the worker. interval is the minimum gap between
// generations; zero disables throttling.
func NewReplenisher(catalog *Catalog, queueSize int, interval time.Duration, log *zap.Logger) *Replenisher {
	if log == nil {
		log = zap.NewNop()
	}
	if queueSize <= 0 {
		queueSize = 1
	}
	limit := rate.Inf
	if interval > 0 {
		limit = rate.Every(interval)
	}
	ctx, cancel := context.WithCancel(context.Background())
	r := &Replenisher{
		catalog: catalog,
		jobs:    make(chan replenishJob, queueSize),
		limiter: rate.NewLimiter(limit, 1),
		log:     log.Named("replenisher"),
		ctx:     ctx,
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	go r.run()
	return r
}

// Dispatch queues the generation of one replacement scenario. It never
// blocks and reports whether the job was accepted.
func (r *Replenisher) Dispatch(reason string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return false
	}
	select {
	case r.jobs <- replenishJob{reason: reason, count: 1}:
		replenishJobs.WithLabelValues("queued").Inc()
		return true
	default:
		replenishJobs.WithLabelValues("dropped").Inc()
		r.log.Warn("replenish queue full, job dropped", zap.String("reason", reason))
		return false
	}
}

func (r *Replenisher) run() {
	defer close(r.done)
	for job := range r.jobs {
		if err := r.limiter.Wait(r.ctx); err != nil {
			continue
		}
		added, err := r.catalog.Replenish(r.ctx, job.count)
		if err != nil {
			replenishJobs.WithLabelValues("failed").Inc()
			r.log.Warn("replenish failed", zap.String("reason", job.reason), zap.Error(err))
			continue
		}
		replenishJobs.WithLabelValues("added").Add(float64(added))
		r.log.Info("catalog replenished", zap.String("reason", job.reason), zap.Int("added", added))
	}
}

// Close stops accepting jobs, aborts pending ones and waits for the worker.
func (r *Replenisher) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		<-r.done
		return
	}
	r.closed = true
	close(r.jobs)
	r.mu.Unlock()

	r.cancel()
	<-r.done
}
