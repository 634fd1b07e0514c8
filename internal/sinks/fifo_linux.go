//go:build linux

package sinks

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/lorenzosaino/go-sysctl"
	"github.com/usnistgov/adcsim"
	"golang.org/x/sys/unix"
)

// readerPollInterval is how often OpenFIFO checks for a reader.
const readerPollInterval = 50 * time.Millisecond

// OpenFIFO replaces any file at path with a new named pipe, waits for a reader
// to open it, and streams samples into it. The pipe buffer is enlarged to
// pipeSize bytes, capped at the kernel's fs.pipe-max-size. If ctx is done
// before a reader arrives, OpenFIFO gives up.
func OpenFIFO(ctx context.Context, path string, pipeSize int, enc adcsim.Encoding) (*Stream, error) {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}
	if err := unix.Mkfifo(path, 0666); err != nil {
		return nil, fmt.Errorf("mkfifo %s: %w", path, err)
	}

	// A non-blocking open for writing fails with ENXIO until a reader exists.
	var fd int
	for {
		var err error
		fd, err = unix.Open(path, unix.O_WRONLY|unix.O_NONBLOCK|unix.O_CLOEXEC, 0)
		if err == nil {
			break
		}
		if !errors.Is(err, unix.ENXIO) {
			return nil, fmt.Errorf("open fifo %s: %w", path, err)
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("open fifo %s: no reader: %w", path, ctx.Err())
		case <-time.After(readerPollInterval):
		}
	}
	if pipeSize > 0 {
		size := min(pipeSize, maxPipeSize())
		if _, err := unix.FcntlInt(uintptr(fd), unix.F_SETPIPE_SZ, size); err != nil {
			adcsim.ProblemLogger.Printf("Could not set pipe size of %s to %d bytes: %v", path, size, err)
		}
	}
	// The fd stays non-blocking so os.NewFile registers it with the runtime
	// poller, where Interrupt's write deadline can reach a stalled write.
	return newOwningStream(os.NewFile(uintptr(fd), path), enc), nil
}

// maxPipeSize reads fs.pipe-max-size, falling back to 1 MiB.
func maxPipeSize() int {
	const fallback = 1 << 20
	val, err := sysctl.Get("fs.pipe-max-size")
	if err != nil {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(val))
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}

// pipeSize returns the buffer size of the pipe f. It avoids f.Fd, which would
// put f back into blocking mode.
func pipeSize(f *os.File) (int, error) {
	rc, err := f.SyscallConn()
	if err != nil {
		return 0, err
	}
	var size int
	var fcntlErr error
	if err := rc.Control(func(fd uintptr) {
		size, fcntlErr = unix.FcntlInt(fd, unix.F_GETPIPE_SZ, 0)
	}); err != nil {
		return 0, err
	}
	return size, fcntlErr
}
