package queue

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"strconv"
	"sync"

	"github.com/rs/zerolog"

	"github.com/whisperchain/whisper-api/internal/api/metrics"
)

const (
	defaultWorkers = 8
	channelBuffer  = 256
)

// ErrStopped is returned by Submit once the dispatcher has shut down.
var ErrStopped = errors.New("dispatcher stopped")

type job struct {
	ctx  context.Context
	key  string
	fn   func(ctx context.Context) error
	done chan error
}

// Dispatcher runs submitted jobs on a fixed set of workers using consistent
// hashing on the job key, so jobs for one key execute one at a time and in
// submission order while different keys spread across workers.
type Dispatcher struct {
	workers []chan job
	log     zerolog.Logger

	stopped chan struct{}
	once    sync.Once
	wg      sync.WaitGroup
}

// NewDispatcher creates a Dispatcher with numWorkers sharded workers.
// If numWorkers <= 0, defaultWorkers is used.
func NewDispatcher(numWorkers int, log zerolog.Logger) *Dispatcher {
	if numWorkers <= 0 {
		numWorkers = defaultWorkers
	}
	d := &Dispatcher{
		workers: make([]chan job, numWorkers),
		log:     log,
		stopped: make(chan struct{}),
	}
	for i := range d.workers {
		d.workers[i] = make(chan job, channelBuffer)
	}
	return d
}

// Start launches all worker goroutines. Workers stop when ctx is cancelled.
func (d *Dispatcher) Start(ctx context.Context) {
	for i, ch := range d.workers {
		d.wg.Add(1)
		go d.runWorker(ctx, i, ch)
	}
	go func() {
		<-ctx.Done()
		d.once.Do(func() { close(d.stopped) })
	}()
}

// Wait blocks until every worker has exited.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

// Submit runs fn on the worker responsible for key and waits for its result.
// If ctx ends first Submit returns ctx.Err(); a job that already started keeps
// running and whatever it committed stands.
func (d *Dispatcher) Submit(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	idx := d.shardIndex(key)
	j := job{ctx: ctx, key: key, fn: fn, done: make(chan error, 1)}

	// count the job before the handoff so the worker's Dec never runs first
	depth := metrics.LedgerQueueDepth.WithLabelValues(strconv.Itoa(idx))
	depth.Inc()
	select {
	case d.workers[idx] <- j:
	case <-ctx.Done():
		depth.Dec()
		return ctx.Err()
	case <-d.stopped:
		depth.Dec()
		return ErrStopped
	}

	select {
	case err := <-j.done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-d.stopped:
		return ErrStopped
	}
}

// shardIndex maps a key deterministically to a worker index.
func (d *Dispatcher) shardIndex(key string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return int(h.Sum32() % uint32(len(d.workers)))
}

func (d *Dispatcher) runWorker(ctx context.Context, id int, ch <-chan job) {
	defer d.wg.Done()
	depth := metrics.LedgerQueueDepth.WithLabelValues(strconv.Itoa(id))
	for {
		select {
		case <-ctx.Done():
			return
		case j, ok := <-ch:
			if !ok {
				return
			}
			depth.Dec()
			if err := j.ctx.Err(); err != nil {
				j.done <- err
				continue
			}
			err := d.run(j)
			if err != nil {
				d.log.Debug().Err(err).
					Str("key", j.key).
					Int("worker_id", id).
					Msg("job failed")
			}
			j.done <- err
		}
	}
}

func (d *Dispatcher) run(j job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			d.log.Error().Interface("panic", r).Str("key", j.key).Msg("job panicked")
			err = fmt.Errorf("job panicked: %v", r)
		}
	}()
	return j.fn(j.ctx)
}
