// Package yielder implements ThreadedYielder: a priority-ordered concurrent
// work queue that is simultaneously a result stream (spec.md §4.4). Tasks
// may submit further tasks from within a worker, growing the queue from the
// inside; the consumer drains results as they are produced rather than
// waiting for the whole run to finish, the same producer/worker/collector
// channel shape tidb-tools' chunk checker uses, generalized from a fixed
// worker-per-channel fan-out to a single shared priority queue.
package yielder

import (
	"container/heap"
	"context"
	"fmt"
	"sync"

	"github.com/sourcegraph/conc/pool"
)

// Task is a unit of work submitted to the yielder. It returns the results it
// produced (diff rows, typically) or an error that aborts the run.
type Task func(y *Yielder) ([]any, error)

// item is one entry in the priority queue: lower Level runs first; ties
// broken by submission order so same-level work stays FIFO.
type item struct {
	task   Task
	level  int
	order  int64
	index  int // heap bookkeeping
}

type priorityQueue []*item

func (q priorityQueue) Len() int { return len(q) }
func (q priorityQueue) Less(i, j int) bool {
	if q[i].level != q[j].level {
		return q[i].level < q[j].level
	}
	return q[i].order < q[j].order
}
func (q priorityQueue) Swap(i, j int) {
	q[i], q[j] = q[j], q[i]
	q[i].index, q[j].index = i, j
}
func (q *priorityQueue) Push(x any) {
	it := x.(*item)
	it.index = len(*q)
	*q = append(*q, it)
}
func (q *priorityQueue) Pop() any {
	old := *q
	n := len(old)
	it := old[n-1]
	old[n-1] = nil
	*q = old[:n-1]
	return it
}

// Config controls yielder behavior (spec.md §4.4, §6).
type Config struct {
	// MaxThreadpoolSize bounds the worker pool. Ignored when Threaded is
	// false.
	MaxThreadpoolSize int
	// Threaded, when false, runs every task synchronously in submission
	// (priority) order on a single goroutine started by New — the in-order mode tests
	// rely on (spec.md §4.4 "threaded=false... in-order synchronous
	// execution").
	Threaded bool
	// YieldList, when true, emits each task's whole result slice as one
	// Result instead of one Result per element (spec.md §4.4 "yield_list
	// mode... for batched consumers").
	YieldList bool
}

// Result is one item produced by a task, delivered to the consumer as soon
// as it's available.
type Result struct {
	Value any
	Err   error
}

// Yielder is a priority work queue whose results are streamed out through
// Results() as tasks complete, not only once the whole run finishes.
type Yielder struct {
	cfg Config

	mu       sync.Mutex
	queue    priorityQueue
	nextOrd  int64
	inFlight int
	closed   bool

	wake    chan struct{}
	results chan Result
	done    chan struct{}

	cancel context.CancelFunc
}

// New creates a Yielder bound to ctx: cancelling ctx (or calling Close on
// the yielder) stops admission of new tasks; in-flight tasks run to
// completion (spec.md §5 Cancellation).
func New(ctx context.Context, cfg Config) *Yielder {
	ctx, cancel := context.WithCancel(ctx)
	y := &Yielder{
		cfg:     cfg,
		wake:    make(chan struct{}, 1),
		results: make(chan Result, 64),
		done:    make(chan struct{}),
		cancel:  cancel,
	}
	heap.Init(&y.queue)

	if cfg.Threaded {
		go y.runThreaded(ctx)
	} else {
		go y.runSynchronous(ctx)
	}
	return y
}

// Submit schedules fn at the given priority level (lower runs sooner). Safe
// to call from within a running task (spec.md §4.4 "tasks may call submit
// recursively").
func (y *Yielder) Submit(fn Task, level int) {
	y.mu.Lock()
	if y.closed {
		y.mu.Unlock()
		return
	}
	y.nextOrd++
	heap.Push(&y.queue, &item{task: fn, level: level, order: y.nextOrd})
	y.inFlight++
	y.mu.Unlock()

	select {
	case y.wake <- struct{}{}:
	default:
	}
}

// Results returns the channel the consumer drains. It closes once every
// submitted task, transitively, has finished (or the run was aborted by an
// error or cancellation).
func (y *Yielder) Results() <-chan Result {
	return y.results
}

// Close stops admission of new tasks and signals cancellation to any
// suspension point that honors the yielder's context. In-flight tasks still
// run to completion; queued-but-not-started tasks are dropped (spec.md §5).
func (y *Yielder) Close() {
	y.mu.Lock()
	y.closed = true
	y.mu.Unlock()
	y.cancel()
}

func (y *Yielder) emit(vals []any, err error) {
	if err != nil {
		select {
		case y.results <- Result{Err: err}:
		case <-y.done:
		}
		return
	}
	if y.cfg.YieldList {
		select {
		case y.results <- Result{Value: vals}:
		case <-y.done:
		}
		return
	}
	for _, v := range vals {
		select {
		case y.results <- Result{Value: v}:
		case <-y.done:
			return
		}
	}
}

// taskFinished decrements the in-flight counter and reports whether the
// queue is now drained and nothing remains running. It also wakes the
// dispatch loop: a task that completes without submitting further work
// (the common case for every run's last-completing task) would otherwise
// leave runThreaded parked on <-y.wake forever, since only Submit signals
// it.
func (y *Yielder) taskFinished() bool {
	y.mu.Lock()
	y.inFlight--
	drained := y.inFlight == 0 && len(y.queue) == 0
	y.mu.Unlock()

	select {
	case y.wake <- struct{}{}:
	default:
	}

	return drained
}

// runSynchronous drains the queue in strict priority order on one
// goroutine: the degenerate threaded=false mode (spec.md §4.4).
func (y *Yielder) runSynchronous(ctx context.Context) {
	defer close(y.done)
	defer close(y.results)

	for {
		y.mu.Lock()
		if len(y.queue) == 0 {
			y.mu.Unlock()
			return
		}
		next := heap.Pop(&y.queue).(*item)
		y.mu.Unlock()

		if ctx.Err() != nil {
			y.taskFinished()
			continue
		}

		vals, err := next.task(y)
		y.emit(vals, err)
		if err != nil {
			y.cancel()
		}
		if done := y.taskFinished(); done {
			return
		}
	}
}

// runThreaded drains the queue with a bounded worker pool via
// sourcegraph/conc. A panicking task is recovered and surfaced as an
// error rather than crashing the process (spec.md §4.4 "a worker-thrown
// exception aborts the run"). Termination relies on inFlight: Submit
// increments it before a task's caller (the spawning task, or the initial
// caller) moves on, and taskFinished decrements it after the task returns,
// so inFlight only reaches zero once every task a running task might still
// submit has, in fact, finished submitting and completing — the standard
// counter technique for dynamically-growing fan-out.
func (y *Yielder) runThreaded(ctx context.Context) {
	defer close(y.done)
	defer close(y.results)

	size := y.cfg.MaxThreadpoolSize
	if size <= 0 {
		size = 1
	}
	p := pool.New().WithMaxGoroutines(size).WithContext(ctx)
	drained := make(chan struct{})
	var closeOnce sync.Once

	for {
		y.mu.Lock()
		for len(y.queue) == 0 && y.inFlight > 0 && !y.closed {
			y.mu.Unlock()
			select {
			case <-y.wake:
			case <-ctx.Done():
			}
			y.mu.Lock()
		}

		if len(y.queue) == 0 {
			y.mu.Unlock()
			break
		}
		if y.closed || ctx.Err() != nil {
			// Drop everything still queued; in-flight tasks already
			// dispatched below run to completion.
			y.queue = y.queue[:0]
			y.mu.Unlock()
			break
		}

		next := heap.Pop(&y.queue).(*item)
		y.mu.Unlock()

		p.Go(func(taskCtx context.Context) (taskErr error) {
			defer func() {
				if done := y.taskFinished(); done {
					closeOnce.Do(func() { close(drained) })
				}
			}()
			defer func() {
				if r := recover(); r != nil {
					taskErr = fmt.Errorf("yielder: task panicked: %v", r)
					y.emit(nil, taskErr)
					y.cancel()
				}
			}()

			if taskCtx.Err() != nil {
				return nil
			}
			vals, err := next.task(y)
			y.emit(vals, err)
			if err != nil {
				y.cancel()
				return err
			}
			return nil
		})
	}

	select {
	case <-drained:
	case <-ctx.Done():
	}
	_ = p.Wait()
}
