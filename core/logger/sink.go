package logger

import (
	"bufio"
	"errors"
	"io"
	"sync"
)

var errSinkClosed = errors.New("logger: sink closed")

type sinkEntry struct {
	line []byte
	// ack is set for flush requests.
	ack chan error
}

// sink fans log lines out to writers from a single goroutine so slow
// outputs do not stall handlers.
type sink struct {
	entries chan sinkEntry
	done    chan struct{}
	outs    []*bufio.Writer

	// mu guards closed; senders hold it shared so Close cannot close
	// entries under them.
	mu     sync.RWMutex
	closed bool

	errMu sync.Mutex
	err   error
}

func newSink(writers []io.Writer, bufSize int) *sink {
	if bufSize <= 0 {
		bufSize = 64 * 1024
	}
	s := &sink{entries: make(chan sinkEntry, 256), done: make(chan struct{})}
	for _, w := range writers {
		if w != nil {
			s.outs = append(s.outs, bufio.NewWriterSize(w, bufSize))
		}
	}
	go s.run()
	return s
}

func (s *sink) run() {
	defer close(s.done)
	for e := range s.entries {
		if e.ack != nil {
			e.ack <- s.flush()
			continue
		}
		for _, out := range s.outs {
			if _, err := out.Write(e.line); err != nil {
				s.fail(err)
				continue
			}
			if err := out.Flush(); err != nil {
				s.fail(err)
			}
		}
	}
	_ = s.flush()
}

// Write queues a copy of line. It blocks while the queue is full.
func (s *sink) Write(line []byte) error {
	if len(line) == 0 {
		return nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return errSinkClosed
	}
	if err := s.firstErr(); err != nil {
		return err
	}
	s.entries <- sinkEntry{line: append([]byte(nil), line...)}
	return nil
}

// Flush waits until every line queued before it reached the writers.
func (s *sink) Flush() error {
	ack := make(chan error, 1)
	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return errSinkClosed
	}
	s.entries <- sinkEntry{ack: ack}
	s.mu.RUnlock()
	return <-ack
}

// Close drains the queue and reports the first write error.
func (s *sink) Close() error {
	s.mu.Lock()
	if !s.closed {
		s.closed = true
		close(s.entries)
	}
	s.mu.Unlock()
	<-s.done
	return s.firstErr()
}

func (s *sink) flush() error {
	var errs []error
	for _, out := range s.outs {
		if err := out.Flush(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (s *sink) fail(err error) {
	s.errMu.Lock()
	if s.err == nil {
		s.err = err
	}
	s.errMu.Unlock()
}

func (s *sink) firstErr() error {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	return s.err
}
