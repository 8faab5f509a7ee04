package transport

import (
	"errors"
	"io"
	"net"
	"os"
	"syscall"
)

var (
	// ErrClosed reports that the peer closed or reset the stream.
	ErrClosed = errors.New("transport: connection closed")
	// ErrNoData reports that a full frame is not available yet. Retry later.
	ErrNoData = errors.New("transport: no data available")
	// ErrShortWrite reports that a frame was only partially written.
	ErrShortWrite = errors.New("transport: short write")
)

// IsTransient reports whether err only means "try again later".
func IsTransient(err error) bool {
	return errors.Is(err, ErrNoData)
}

func isTimeout(err error) bool {
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

func isWouldBlock(err error) bool {
	return errors.Is(err, syscall.EAGAIN) || errors.Is(err, syscall.EWOULDBLOCK)
}

func isClosed(err error) bool {
	switch {
	case errors.Is(err, io.EOF),
		errors.Is(err, io.ErrUnexpectedEOF),
		errors.Is(err, io.ErrClosedPipe),
		errors.Is(err, net.ErrClosed),
		errors.Is(err, syscall.ECONNRESET),
		errors.Is(err, syscall.ECONNABORTED),
		errors.Is(err, syscall.EPIPE):
		return true
	}
	return false
}
