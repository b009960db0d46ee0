package logger

import (
	"bufio"
	"errors"
	"io"
	"sync"
	"sync/atomic"
)

const writerQueueSize = 256

// asyncWriter copies log lines to its sinks from a single goroutine.
// Flush requests travel on the same channel as lines, so a flush observes
// every line enqueued before it.
type asyncWriter struct {
	ops   chan writerOp
	done  chan struct{}
	once   sync.Once
	closed atomic.Bool
	sinks  []*bufio.Writer

	mu  sync.Mutex
	err error
}

// writerOp carries either a line or a flush acknowledgement channel.
type writerOp struct {
	line []byte
	ack  chan error
}

func newAsyncWriter(writers []io.Writer, bufSize int) *asyncWriter {
	if bufSize <= 0 {
		bufSize = writerBufferSize
	}
	w := &asyncWriter{
		ops:  make(chan writerOp, writerQueueSize),
		done: make(chan struct{}),
	}
	for _, sink := range writers {
		if sink != nil {
			w.sinks = append(w.sinks, bufio.NewWriterSize(sink, bufSize))
		}
	}
	go w.run()
	return w
}

func (w *asyncWriter) run() {
	defer close(w.done)
	for op := range w.ops {
		if op.ack != nil {
			op.ack <- w.flush()
			continue
		}
		for _, sink := range w.sinks {
			if _, err := sink.Write(op.line); err != nil {
				w.fail(err)
			}
		}
		if len(w.ops) == 0 {
			w.fail(w.flush())
		}
	}
	w.fail(w.flush())
}

// Write queues a copy of p, blocking while the queue is full.
func (w *asyncWriter) Write(p []byte) error {
	if err := w.Err(); err != nil {
		return err
	}
	if len(p) == 0 || w.closed.Load() {
		return nil
	}
	w.ops <- writerOp{line: append([]byte(nil), p...)}
	return nil
}

// Flush waits until every queued line has reached the sinks.
func (w *asyncWriter) Flush() error {
	if w.closed.Load() {
		return w.Err()
	}
	ack := make(chan error, 1)
	w.ops <- writerOp{ack: ack}
	if err := <-ack; err != nil {
		return err
	}
	return w.Err()
}

// Close drains the queue and returns the first write error.
func (w *asyncWriter) Close() error {
	w.once.Do(func() {
		w.closed.Store(true)
		close(w.ops)
	})
	<-w.done
	return w.Err()
}

func (w *asyncWriter) Err() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.err
}

func (w *asyncWriter) fail(err error) {
	if err == nil {
		return
	}
	w.mu.Lock()
	if w.err == nil {
		w.err = err
	}
	w.mu.Unlock()
}

func (w *asyncWriter) flush() error {
	var errs []error
	for _, sink := range w.sinks {
		errs = append(errs, sink.Flush())
	}
	return errors.Join(errs...)
}
