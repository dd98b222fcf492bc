package progress

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

var ErrWriterClosed = errors.New("progress writer closed")

type writeJob struct {
	snap *Snapshot
	ack  chan error
}

// Writer applies saves on a background goroutine in the order they were
// requested, so callers on the UI path never wait on disk.
type Writer struct {
	store  Store
	logger *log.Logger

	mu     sync.Mutex
	queue  []writeJob
	closed bool

	wake chan struct{}
	errs chan error
	done chan struct{}
}

func NewWriter(store Store, logger *log.Logger) *Writer {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	w := &Writer{
		store:  store,
		logger: logger,
		wake:   make(chan struct{}, 1),
		errs:   make(chan error, 8),
		done:   make(chan struct{}),
	}
	go w.loop()
	return w
}

// Save queues a copy of snap. It never blocks.
func (w *Writer) Save(snap Snapshot) {
	c := snap.Clone()
	w.enqueue(writeJob{snap: &c})
}

// Errors reports failed saves. Errors are dropped when nobody drains the
// channel fast enough.
func (w *Writer) Errors() <-chan error { return w.errs }

// Flush blocks until every save queued before the call has been applied.
func (w *Writer) Flush(ctx context.Context) error {
	ack := make(chan error, 1)
	if !w.enqueue(writeJob{ack: ack}) {
		return ErrWriterClosed
	}
	select {
	case err := <-ack:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close drains the queue and stops the loop. The store itself stays open.
func (w *Writer) Close(ctx context.Context) error {
	err := w.Flush(ctx)
	if errors.Is(err, ErrWriterClosed) {
		return nil
	}
	w.mu.Lock()
	w.closed = true
	w.mu.Unlock()
	w.signal()
	select {
	case <-w.done:
	case <-ctx.Done():
		return ctx.Err()
	}
	return err
}

func (w *Writer) enqueue(job writeJob) bool {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return false
	}
	w.queue = append(w.queue, job)
	w.mu.Unlock()
	w.signal()
	return true
}

func (w *Writer) signal() {
	select {
	case w.wake <- struct{}{}:
	default:
	}
}

func (w *Writer) loop() {
	defer close(w.done)
	var lastErr error
	for {
		w.mu.Lock()
		if len(w.queue) == 0 {
			closed := w.closed
			w.mu.Unlock()
			if closed {
				return
			}
			<-w.wake
			continue
		}
		job := w.queue[0]
		w.queue = w.queue[1:]
		w.mu.Unlock()

		if job.ack != nil {
			job.ack <- lastErr
			lastErr = nil
			continue
		}
		started := time.Now()
		if err := w.store.Save(context.Background(), *job.snap); err != nil {
			lastErr = err
			w.logger.Error("progress.save", "err", err)
			select {
			case w.errs <- err:
			default:
			}
			continue
		}
		lastErr = nil
		w.logger.Debug("progress.save", "units", len(job.snap.Units), "elapsed", time.Since(started))
	}
}
