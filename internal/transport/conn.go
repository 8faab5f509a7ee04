// Package transport moves protocol frames over a byte stream.
// It reads and writes exactly one fixed-size frame per call and owns the
// buffer that carries a partially received frame between calls.
package transport

import (
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/park285/chesstp/internal/protocol"
	"go.uber.org/zap"
)

type readDeadliner interface {
	SetReadDeadline(t time.Time) error
}

// Conn is a single peer connection. It is not safe for concurrent readers or
// concurrent writers; one reader and one writer may run at the same time.
type Conn struct {
	rw     io.ReadWriter
	logger *zap.Logger

	// poll bounds each ReadMessage call when the stream supports read deadlines.
	poll time.Duration

	buf [protocol.FrameLen]byte
	n   int
}

// Option configures a Conn.
type Option func(*Conn)

// WithPoll makes ReadMessage give up after d with ErrNoData instead of
// blocking until a frame arrives. Requires a stream with read deadlines.
func WithPoll(d time.Duration) Option {
	return func(c *Conn) { c.poll = d }
}

// WithLogger sets the logger used for frame level debug output.
func WithLogger(l *zap.Logger) Option {
	return func(c *Conn) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewConn wraps rw.
func NewConn(rw io.ReadWriter, opts ...Option) *Conn {
	c := &Conn{rw: rw, logger: zap.NewNop()}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Buffered returns how many bytes of the next frame have already arrived.
func (c *Conn) Buffered() int { return c.n }

// RemoteAddr returns the peer address when the stream is a net.Conn.
func (c *Conn) RemoteAddr() string {
	if nc, ok := c.rw.(net.Conn); ok && nc.RemoteAddr() != nil {
		return nc.RemoteAddr().String()
	}
	return ""
}

// ReadMessage returns the next message once a full frame has been received.
//
// ErrNoData means the frame is not complete yet; bytes received so far are
// kept and the call should be repeated later. ErrClosed means the peer went
// away. Codec errors from protocol.Decode are returned unchanged.
func (c *Conn) ReadMessage() (protocol.Message, error) {
	if c.poll > 0 {
		if d, ok := c.rw.(readDeadliner); ok {
			_ = d.SetReadDeadline(time.Now().Add(c.poll))
		}
	}

	for c.n < protocol.FrameLen {
		n, err := c.rw.Read(c.buf[c.n:])
		c.n += n
		if err != nil {
			if c.n == protocol.FrameLen {
				// A complete frame arrived together with the error; deliver it
				// and let the next call observe the condition.
				break
			}
			return nil, c.readError(err)
		}
		if n == 0 {
			return nil, fmt.Errorf("%w: %d of %d bytes buffered", ErrNoData, c.n, protocol.FrameLen)
		}
		if c.n < protocol.FrameLen {
			c.logger.Debug("frame_partial", zap.Int("buffered", c.n))
		}
	}

	frame := c.buf
	c.n = 0
	msg, err := protocol.Decode(frame[:])
	if err != nil {
		c.logger.Debug("frame_decode_failed", zap.ByteString("frame", frame[:]), zap.Error(err))
		return nil, err
	}
	return msg, nil
}

func (c *Conn) readError(err error) error {
	switch {
	case isTimeout(err), isWouldBlock(err):
		return fmt.Errorf("%w: %d of %d bytes buffered", ErrNoData, c.n, protocol.FrameLen)
	case isClosed(err):
		if c.n > 0 {
			return fmt.Errorf("%w: truncated frame (%d bytes): %v", ErrClosed, c.n, err)
		}
		return fmt.Errorf("%w: %v", ErrClosed, err)
	default:
		return fmt.Errorf("transport: read: %w", err)
	}
}

// WriteMessage encodes m and writes the whole frame.
func (c *Conn) WriteMessage(m protocol.Message) error {
	frame, err := protocol.Encode(m)
	if err != nil {
		return err
	}
	n, err := c.rw.Write(frame)
	switch {
	case err != nil && isClosed(err):
		return fmt.Errorf("%w: %v", ErrClosed, err)
	case err != nil && (errors.Is(err, io.ErrShortWrite) || n > 0 && n < len(frame)):
		return fmt.Errorf("%w: %d of %d bytes: %v", ErrShortWrite, n, len(frame), err)
	case err != nil:
		return fmt.Errorf("transport: write: %w", err)
	case n != len(frame):
		return fmt.Errorf("%w: %d of %d bytes", ErrShortWrite, n, len(frame))
	}
	c.logger.Debug("frame_written", zap.ByteString("frame", frame))
	return nil
}

// Close closes the underlying stream if it can be closed.
func (c *Conn) Close() error {
	if cl, ok := c.rw.(io.Closer); ok {
		return cl.Close()
	}
	return nil
}
