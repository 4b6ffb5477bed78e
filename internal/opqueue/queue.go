// Package opqueue serializes asynchronous persistence work under priority,
// timeout and cancellation rules. A Queue is the sole writer path to durable
// storage: constructed once at application start, passed by handle, torn
// down with Close.
package opqueue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

type Priority int

// Highest first. The worker always drains the highest non-empty tier, so
// Medium/Low work never starts while Critical/High work is pending.
const (
	Critical Priority = iota
	High
	Medium
	Low

	numPriorities
)

func (p Priority) String() string {
	switch p {
	case Critical:
		return "critical"
	case High:
		return "high"
	case Medium:
		return "medium"
	case Low:
		return "low"
	default:
		return "unknown"
	}
}

var (
	// ErrTimeout is delivered to the submitter when an operation exceeds
	// its budget. The queue moves on; the operation's eventual return is
	// discarded.
	ErrTimeout = errors.New("operation timed out")

	// ErrCancelled is delivered for operations dropped by Clear or Close
	// before they started.
	ErrCancelled = errors.New("operation cancelled")

	// ErrClosed is returned by Submit on a closed queue.
	ErrClosed = errors.New("operation queue closed")
)

// Operation is one unit of queued work. The queue owns scheduling; the
// caller owns whatever state the Run closure captures.
type Operation struct {
	ID        string
	Name      string
	Priority  Priority
	Timeout   time.Duration // 0 => queue default
	Run       func(ctx context.Context) error
	CreatedAt time.Time
}

type queued struct {
	op   Operation
	done chan error
}

type Queue struct {
	log            *slog.Logger
	defaultTimeout time.Duration

	mu     sync.Mutex
	tiers  [numPriorities][]*queued
	closed bool

	wake chan struct{}
	quit chan struct{}
	idle chan struct{} // closed when the worker exits
}

// New starts the worker goroutine. defaultTimeout bounds operations that do
// not carry their own.
func New(defaultTimeout time.Duration, log *slog.Logger) *Queue {
	if log == nil {
		log = slog.Default()
	}
	if defaultTimeout <= 0 {
		defaultTimeout = 10 * time.Second
	}
	q := &Queue{
		log:            log,
		defaultTimeout: defaultTimeout,
		wake:           make(chan struct{}, 1),
		quit:           make(chan struct{}),
		idle:           make(chan struct{}),
	}
	go q.run()
	return q
}

// Submit enqueues op and returns the channel its result (nil, ErrTimeout,
// ErrCancelled or the Run error) is delivered on. Within one tier operations
// execute in submission order.
func (q *Queue) Submit(op Operation) <-chan error {
	done := make(chan error, 1)

	if op.Run == nil {
		done <- errors.New("operation has no Run func")
		return done
	}
	if op.ID == "" {
		op.ID = uuid.NewString()
	}
	if op.CreatedAt.IsZero() {
		op.CreatedAt = time.Now()
	}
	if op.Priority < Critical || op.Priority > Low {
		op.Priority = Low
	}

	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		done <- ErrClosed
		return done
	}
	q.tiers[op.Priority] = append(q.tiers[op.Priority], &queued{op: op, done: done})
	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}
	return done
}

// Clear drops every not-yet-started operation, delivering ErrCancelled to
// their submitters. The operation currently executing (if any) is not
// aborted; hard cancellation is the caller's business via its own context.
func (q *Queue) Clear() int {
	q.mu.Lock()
	dropped := q.clearLocked()
	q.mu.Unlock()
	return dropped
}

func (q *Queue) clearLocked() int {
	var dropped int
	for i := range q.tiers {
		for _, item := range q.tiers[i] {
			item.done <- ErrCancelled
			dropped++
		}
		q.tiers[i] = nil
	}
	return dropped
}

// Close clears pending work and stops the worker once the in-flight
// operation (if any) finishes.
func (q *Queue) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	dropped := q.clearLocked()
	q.mu.Unlock()

	if dropped > 0 {
		q.log.Info("operation queue closed with pending work", "dropped", dropped)
	}
	close(q.quit)
	<-q.idle
}

// Pending reports the number of not-yet-started operations.
func (q *Queue) Pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := 0
	for i := range q.tiers {
		n += len(q.tiers[i])
	}
	return n
}

func (q *Queue) run() {
	defer close(q.idle)
	for {
		item := q.next()
		if item == nil {
			select {
			case <-q.wake:
				continue
			case <-q.quit:
				return
			}
		}
		q.execute(item)
	}
}

func (q *Queue) next() *queued {
	q.mu.Lock()
	defer q.mu.Unlock()
	for i := range q.tiers {
		if len(q.tiers[i]) > 0 {
			item := q.tiers[i][0]
			q.tiers[i] = q.tiers[i][1:]
			return item
		}
	}
	return nil
}

func (q *Queue) execute(item *queued) {
	op := item.op
	timeout := op.Timeout
	if timeout <= 0 {
		timeout = q.defaultTimeout
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	res := make(chan error, 1)
	go func() {
		res <- op.Run(ctx)
	}()

	select {
	case err := <-res:
		if err != nil {
			q.log.Warn("operation failed", "op", op.Name, "priority", op.Priority.String(), "err", err)
		}
		item.done <- err
	case <-ctx.Done():
		// one slow task must never stall the queue; the closure keeps
		// running until it observes ctx, its result is discarded
		q.log.Warn("operation timed out", "op", op.Name, "priority", op.Priority.String(), "timeout", timeout)
		item.done <- fmt.Errorf("%s: %w", op.Name, ErrTimeout)
	}
}
