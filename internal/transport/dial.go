package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"nhooyr.io/websocket"
)

const dialTimeout = 10 * time.Second

// IsWebSocket reports whether addr names a WebSocket endpoint.
func IsWebSocket(addr string) bool {
	a := strings.ToLower(strings.TrimSpace(addr))
	return strings.HasPrefix(a, "ws://") || strings.HasPrefix(a, "wss://")
}

// Dial connects to a hosting peer. Plain host:port dials TCP; ws:// and wss://
// open a WebSocket and expose it as a byte stream bound to ctx.
func Dial(ctx context.Context, addr string) (net.Conn, error) {
	if IsWebSocket(addr) {
		dctx, cancel := context.WithTimeout(ctx, dialTimeout)
		defer cancel()
		ws, _, err := websocket.Dial(dctx, addr, &websocket.DialOptions{
			CompressionMode: websocket.CompressionDisabled,
		})
		if err != nil {
			return nil, fmt.Errorf("websocket dial %s: %w", addr, err)
		}
		return websocket.NetConn(ctx, ws, websocket.MessageBinary), nil
	}

	d := net.Dialer{Timeout: dialTimeout}
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("tcp dial %s: %w", addr, err)
	}
	return conn, nil
}

// Listener hands out exactly one peer stream.
type Listener struct {
	ln     net.Listener
	logger *zap.Logger

	// WebSocket mode only.
	srv      *http.Server
	path     string
	accepted chan *wsConn
}

// Listen opens addr. Plain host:port listens on TCP; ws://host:port/path
// serves a WebSocket upgrade endpoint at path.
func Listen(ctx context.Context, addr string, logger *zap.Logger) (*Listener, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	l := &Listener{logger: logger}

	host := addr
	if IsWebSocket(addr) {
		u, err := url.Parse(addr)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", addr, err)
		}
		host = u.Host
		l.path = u.Path
		if l.path == "" {
			l.path = "/"
		}
	}

	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", host)
	if err != nil {
		return nil, fmt.Errorf("listen %s: %w", host, err)
	}
	l.ln = ln

	if l.path != "" {
		l.serveWebSocket(ctx)
	}
	return l, nil
}

// Addr returns the address a peer should dial.
func (l *Listener) Addr() string {
	if l.path != "" {
		return "ws://" + l.ln.Addr().String() + l.path
	}
	return l.ln.Addr().String()
}

// Accept waits for the peer. The listener stops taking connections once
// Accept returns, whatever the outcome.
func (l *Listener) Accept(ctx context.Context) (net.Conn, error) {
	defer l.Close()
	l.logger.Info("waiting_for_peer", zap.String("addr", l.Addr()))

	if l.path != "" {
		select {
		case c := <-l.accepted:
			return c, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	stop := context.AfterFunc(ctx, func() { _ = l.ln.Close() })
	defer stop()
	conn, err := l.ln.Accept()
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("accept: %w", err)
	}
	return conn, nil
}

// Close stops listening. Streams already handed out stay open.
func (l *Listener) Close() error {
	if l.srv != nil {
		sctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		return l.srv.Shutdown(sctx)
	}
	err := l.ln.Close()
	if errors.Is(err, net.ErrClosed) {
		return nil
	}
	return err
}

// wsConn keeps the HTTP handler that accepted the socket alive until the
// stream is closed.
type wsConn struct {
	net.Conn
	once sync.Once
	done chan struct{}
}

func (c *wsConn) Close() error {
	err := c.Conn.Close()
	c.once.Do(func() { close(c.done) })
	return err
}

func (l *Listener) serveWebSocket(ctx context.Context) {
	l.accepted = make(chan *wsConn, 1)
	var claimed sync.Once

	mux := http.NewServeMux()
	mux.HandleFunc(l.path, func(w http.ResponseWriter, r *http.Request) {
		first := false
		claimed.Do(func() { first = true })
		if !first {
			http.Error(w, "peer already connected", http.StatusConflict)
			return
		}
		ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			CompressionMode: websocket.CompressionDisabled,
		})
		if err != nil {
			l.logger.Warn("websocket_accept_failed", zap.Error(err))
			return
		}
		c := &wsConn{Conn: websocket.NetConn(ctx, ws, websocket.MessageBinary), done: make(chan struct{})}
		l.accepted <- c
		select {
		case <-c.done:
		case <-ctx.Done():
		}
	})

	l.srv = &http.Server{Handler: mux, ReadHeaderTimeout: dialTimeout}
	go func() {
		if err := l.srv.Serve(l.ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			l.logger.Warn("websocket_server_stopped", zap.Error(err))
		}
	}()
}
