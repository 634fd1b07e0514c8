// Package asyncbufio provides a buffered writer whose writes are handed to a
// background goroutine, so that a slow destination (a pipe, a terminal) does
// not stall the sampling loop until the channel fills.
package asyncbufio

import (
	"bufio"
	"errors"
	"io"
	"sync"
	"time"
)

// ErrClosed is returned by any use of a Writer after Close.
var ErrClosed = errors.New("asyncbufio: writer is closed")

// ErrAborted is returned by any use of a Writer after Abort.
var ErrAborted = errors.New("asyncbufio: writer was aborted")

// Writer provides asynchronous writing to an underlying io.Writer using buffered channels.
type Writer struct {
	writer        *bufio.Writer // Buffered writer: this does the writing
	flushNow      chan struct{} // Channel to signal the underlying writer to flush itself
	flushComplete chan struct{} // Channel to signal underlying writer flush is complete
	datachannel   chan []byte   // Channel to hold data before writing it
	quit          chan struct{} // Closed by Close to stop the writeLoop
	done          chan struct{} // Closed by the writeLoop as it exits
	abort         chan struct{} // Closed by Abort; nobody waits on the writeLoop after that
	flushInterval time.Duration // Interval for flushing the writer periodically
	closeOnce     sync.Once
	abortOnce     sync.Once

	mu  sync.Mutex
	err error // first error from the underlying writer; sticky
}

// NewWriter creates a new Writer instance.
func NewWriter(w io.Writer, channelDepth int, flushInterval time.Duration) *Writer {
	if flushInterval <= 0 {
		flushInterval = time.Second
	}
	aw := &Writer{
		writer:        bufio.NewWriter(w),
		datachannel:   make(chan []byte, channelDepth),
		flushNow:      make(chan struct{}),
		flushComplete: make(chan struct{}),
		quit:          make(chan struct{}),
		done:          make(chan struct{}),
		abort:         make(chan struct{}),
		flushInterval: flushInterval,
	}

	go aw.writeLoop()
	return aw
}

// Err returns the first error reported by the underlying writer, if any.
func (aw *Writer) Err() error {
	aw.mu.Lock()
	defer aw.mu.Unlock()
	return aw.err
}

func (aw *Writer) setErr(err error) {
	if err == nil {
		return
	}
	aw.mu.Lock()
	defer aw.mu.Unlock()
	if aw.err == nil {
		aw.err = err
	}
}

// Write queues a copy of p for writing. It blocks while the channel is full.
// An error from an earlier write to the underlying writer is returned here.
func (aw *Writer) Write(p []byte) (int, error) {
	if err := aw.Err(); err != nil {
		return 0, err
	}
	select {
	case <-aw.abort:
		return 0, ErrAborted
	case <-aw.done:
		return 0, ErrClosed
	default:
	}
	data := make([]byte, len(p))
	copy(data, p)
	select {
	case aw.datachannel <- data:
		return len(p), nil
	case <-aw.abort:
		return 0, ErrAborted
	case <-aw.done:
		return 0, ErrClosed
	}
}

// WriteString queues s for writing.
func (aw *Writer) WriteString(s string) (int, error) {
	return aw.Write([]byte(s))
}

// Flush writes all queued data to the underlying writer.
// Blocks until the flush is complete.
func (aw *Writer) Flush() error {
	select {
	case aw.flushNow <- struct{}{}:
		select {
		case <-aw.flushComplete:
			return aw.Err()
		case <-aw.abort:
			return ErrAborted
		}
	case <-aw.abort:
		return ErrAborted
	case <-aw.done:
		return ErrClosed
	}
}

// Close flushes remaining data and waits for the writeLoop to finish. It does
// not close the underlying writer. A second Close returns ErrClosed. After
// Abort, Close stops the writeLoop without waiting for it and returns ErrAborted.
func (aw *Writer) Close() error {
	err := ErrClosed
	aw.closeOnce.Do(func() {
		close(aw.quit)
		select {
		case <-aw.done:
			err = aw.Err()
		case <-aw.abort:
			err = ErrAborted
		}
	})
	return err
}

// Abort releases every goroutine blocked in Write, Flush, or Close, even one
// whose data is stuck in a Write to the underlying writer. Queued data may be
// lost. The writeLoop exits once the underlying Write returns, so callers
// should also unblock that writer (a deadline, or closing it) when they can.
func (aw *Writer) Abort() {
	aw.abortOnce.Do(func() { close(aw.abort) })
}

// writeLoop is a goroutine that continuously moves data from the channel to the writer.
func (aw *Writer) writeLoop() {
	ticker := time.NewTicker(aw.flushInterval) // Ticker to flush periodically
	defer ticker.Stop()

	for {
		select {
		case data := <-aw.datachannel:
			aw.write(data)

		case <-aw.flushNow:
			aw.flush()
			// Signal whoever requested this that flushing is done
			select {
			case aw.flushComplete <- struct{}{}:
			case <-aw.abort:
			}

		case <-aw.quit:
			aw.flush()
			close(aw.done)
			return

		case <-ticker.C:
			aw.flush()
		}
	}
}

func (aw *Writer) write(data []byte) {
	// After a failure or an abort, keep draining the channel so writers never block on it.
	if aw.Err() != nil || aw.aborted() {
		return
	}
	_, err := aw.writer.Write(data)
	aw.setErr(err)
}

func (aw *Writer) aborted() bool {
	select {
	case <-aw.abort:
		return true
	default:
		return false
	}
}

func (aw *Writer) flush() {
	// This loop empties the aw.datachannel channel before finally
	// calling the underlying writer's Flush() method
	for {
		select {
		case data := <-aw.datachannel:
			aw.write(data)
		default:
			if aw.Err() == nil && !aw.aborted() {
				aw.setErr(aw.writer.Flush())
			}
			return
		}
	}
}
