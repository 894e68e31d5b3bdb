package exchange

import (
	"context"
	"sync"

	"golang.org/x/time/rate"
)

const defaultQueueSize = 64

type throttledJob struct {
	ctx     context.Context
	run     func(context.Context)
	done    chan struct{}
	skipped bool
}

// Throttler is a FIFO work queue drained by a single worker that starts at
// most one job per 1/requestsPerSecond. Jobs run one at a time.
type Throttler struct {
	limiter *rate.Limiter
	queue   chan *throttledJob

	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// NewThrottler starts the worker. Call Close to stop it.
func NewThrottler(requestsPerSecond float64, queueSize int) *Throttler {
	if requestsPerSecond <= 0 {
		requestsPerSecond = 1
	}
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}

	ctx, cancel := context.WithCancel(context.Background())
	t := &Throttler{
		limiter: rate.NewLimiter(rate.Limit(requestsPerSecond), 1),
		queue:   make(chan *throttledJob, queueSize),
		ctx:     ctx,
		cancel:  cancel,
	}
	t.wg.Add(1)
	go t.loop()
	return t
}

func (t *Throttler) loop() {
	defer t.wg.Done()
	for {
		select {
		case <-t.ctx.Done():
			return
		case job := <-t.queue:
			t.process(job)
		}
	}
}

func (t *Throttler) process(job *throttledJob) {
	defer close(job.done)

	// Callers that gave up while queued do not consume a slot.
	if job.ctx.Err() != nil {
		job.skipped = true
		return
	}
	if err := t.limiter.Wait(t.ctx); err != nil {
		job.skipped = true
		return
	}
	if job.ctx.Err() != nil {
		job.skipped = true
		return
	}
	job.run(job.ctx)
}

// Do queues fn and blocks until it has run. It returns ctx.Err() when ctx
// ends first and ErrThrottlerClosed after Close.
func (t *Throttler) Do(ctx context.Context, fn func(context.Context)) error {
	job := &throttledJob{ctx: ctx, run: fn, done: make(chan struct{})}

	select {
	case <-t.ctx.Done():
		return ErrThrottlerClosed
	case <-ctx.Done():
		return ctx.Err()
	case t.queue <- job:
	}

	select {
	case <-job.done:
		if job.skipped {
			if err := ctx.Err(); err != nil {
				return err
			}
			return ErrThrottlerClosed
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-t.ctx.Done():
		return ErrThrottlerClosed
	}
}

// Close stops the worker. Queued jobs that have not started are abandoned.
func (t *Throttler) Close() {
	t.closeOnce.Do(func() {
		t.cancel()
		t.wg.Wait()
	})
}

// Throttle runs op through t and returns its result.
func Throttle[T any](ctx context.Context, t *Throttler, op func(context.Context) (T, error)) (T, error) {
	var (
		res   T
		opErr error
	)
	err := t.Do(ctx, func(ctx context.Context) {
		res, opErr = op(ctx)
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return res, opErr
}
