package persistence

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/wonny/tradebook/pkg/logger"
)

var (
	// ErrWriterClosed is reported to callbacks of writes enqueued after Close
	ErrWriterClosed = errors.New("persistence writer closed")
	// ErrQueueFull is reported to callbacks of writes dropped on a full queue
	ErrQueueFull = errors.New("persistence queue full")
)

// WriterConfig configures the async writer
type WriterConfig struct {
	QueueSize int
	Timeout   time.Duration // per write
}

type writeOp struct {
	name string
	run  func(ctx context.Context) error
	done func(error)
}

// Writer applies writes in order on a background goroutine.
// Callers never block on the database; they observe results through callbacks.
// Saves arrive while domain locks are held, so a full queue drops the write
// instead of stalling the engine.
type Writer struct {
	exec    Executor
	cfg     WriterConfig
	logger  *logger.Logger
	queue   chan writeOp
	mu      sync.RWMutex
	closed  bool
	stopped chan struct{}
	dropped atomic.Int64
}

// NewWriter starts a writer over exec
func NewWriter(exec Executor, cfg WriterConfig, log *logger.Logger) *Writer {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 1024
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}

	w := &Writer{
		exec:    exec,
		cfg:     cfg,
		logger:  log,
		queue:   make(chan writeOp, cfg.QueueSize),
		stopped: make(chan struct{}),
	}
	go w.loop()
	return w
}

// Executor returns the underlying executor
func (w *Writer) Executor() Executor {
	return w.exec
}

func (w *Writer) loop() {
	defer close(w.stopped)

	for op := range w.queue {
		ctx, cancel := context.WithTimeout(context.Background(), w.cfg.Timeout)
		err := op.run(ctx)
		cancel()

		if err != nil {
			w.logger.WithError(err).WithField("op", op.name).Error("Persistence write failed")
		}
		if op.done != nil {
			op.done(err)
		}
	}
}

// Enqueue schedules run; done (optional) observes the result.
// It never blocks: when the queue is full the write is dropped and done gets ErrQueueFull.
func (w *Writer) Enqueue(name string, run func(ctx context.Context) error, done func(error)) {
	w.mu.RLock()
	defer w.mu.RUnlock()

	if w.closed {
		if done != nil {
			done(ErrWriterClosed)
		}
		return
	}

	select {
	case w.queue <- writeOp{name: name, run: run, done: done}:
	default:
		n := w.dropped.Add(1)
		w.logger.WithFields(map[string]interface{}{
			"op":      name,
			"queue":   w.cfg.QueueSize,
			"dropped": n,
		}).Error("Persistence queue full, write dropped")
		if done != nil {
			done(ErrQueueFull)
		}
	}
}

// Dropped returns how many writes were lost to a full queue
func (w *Writer) Dropped() int64 {
	return w.dropped.Load()
}

// Flush waits until every write enqueued before the call has run.
// Unlike Enqueue it waits for queue space, bounded by ctx.
func (w *Writer) Flush(ctx context.Context) error {
	ch := make(chan error, 1)
	op := writeOp{
		name: "flush",
		run:  func(context.Context) error { return nil },
		done: func(err error) { ch <- err },
	}

	w.mu.RLock()
	if w.closed {
		w.mu.RUnlock()
		return ErrWriterClosed
	}
	select {
	case w.queue <- op:
		w.mu.RUnlock()
	case <-ctx.Done():
		w.mu.RUnlock()
		return ctx.Err()
	}

	select {
	case err := <-ch:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close drains the queue and stops the writer
func (w *Writer) Close() {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		<-w.stopped
		return
	}
	w.closed = true
	close(w.queue)
	w.mu.Unlock()

	<-w.stopped
}

// Save upserts rows of table t asynchronously
func Save[T any](w *Writer, t *Table[T], rows []T, done func(error)) {
	if len(rows) == 0 {
		return
	}
	stmt := UpsertSQL(w.exec.Dialect(), t)
	args := make([][]any, len(rows))
	for i := range rows {
		args[i] = t.Values(&rows[i])
	}
	w.Enqueue("save "+t.Name, func(ctx context.Context) error {
		return w.exec.ExecBatch(ctx, stmt, args)
	}, done)
}

// Remove deletes rows of table t by key asynchronously
func Remove[T any](w *Writer, t *Table[T], rows []T, done func(error)) {
	if len(rows) == 0 {
		return
	}
	stmt := DeleteSQL(w.exec.Dialect(), t)
	args := make([][]any, len(rows))
	for i := range rows {
		args[i] = t.KeyValues(&rows[i])
	}
	w.Enqueue("delete "+t.Name, func(ctx context.Context) error {
		return w.exec.ExecBatch(ctx, stmt, args)
	}, done)
}
