package server

import (
	"context"
	"errors"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jcdorr003/marty-emulator/internal/metrics"
	"github.com/jcdorr003/marty-emulator/internal/ws"
	"go.uber.org/zap"
)

const (
	// handshakeTimeout bounds how long a peer may take to send its upgrade request
	handshakeTimeout = 10 * time.Second

	acceptRetryMin = 5 * time.Millisecond
	acceptRetryMax = time.Second
)

// Options configures a Server
type Options struct {
	Mode          ws.Mode
	MaxFrameBytes int64
	// IdleTimeout closes connections with no frame for this long; 0 waits forever
	IdleTimeout   time.Duration
	WriteTimeout  time.Duration
	ShutdownGrace time.Duration
	// HostID seeds robot serial numbers
	HostID string
}

// Server accepts TCP connections and runs one session per connection
type Server struct {
	opts     Options
	logger   *zap.SugaredLogger
	recorder *metrics.Recorder

	live     liveCounter
	nextID   atomic.Uint64
	sessions sync.WaitGroup
}

// New creates a server. recorder may be nil.
func New(opts Options, logger *zap.SugaredLogger, recorder *metrics.Recorder) *Server {
	if opts.Mode == "" {
		opts.Mode = ws.ModePermissive
	}
	return &Server{
		opts:     opts,
		logger:   logger,
		recorder: recorder,
	}
}

// LiveConnections returns the number of connections currently being served
func (s *Server) LiveConnections() int {
	return s.live.value()
}

// ListenAndServe binds addr and serves until ctx is cancelled
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve runs the accept loop on ln. When ctx is cancelled the listener is closed and
// in-flight sessions get ShutdownGrace to finish; stragglers are abandoned.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.logger.Infow("🤖 Emulator listening", "addr", ln.Addr().String(), "handshakeMode", s.opts.Mode)

	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	var retry time.Duration
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				s.drain()
				return nil
			}
			if errors.Is(err, net.ErrClosed) {
				s.drain()
				return err
			}

			// transient failures such as EMFILE or ECONNABORTED: back off like net/http
			if retry == 0 {
				retry = acceptRetryMin
			} else {
				retry *= 2
			}
			if retry > acceptRetryMax {
				retry = acceptRetryMax
			}
			s.logger.Warnw("Accept failed, retrying", "error", err, "retryIn", retry)

			select {
			case <-ctx.Done():
			case <-time.After(retry):
			}
			continue
		}
		retry = 0

		if s.recorder != nil {
			s.recorder.ConnectionAccepted()
		}

		s.sessions.Add(1)
		go func() {
			defer s.sessions.Done()
			s.serveConn(conn)
		}()
	}
}

func (s *Server) serveConn(conn net.Conn) {
	s.live.add(1, s.observeLive)
	defer func() {
		n := s.live.add(-1, s.observeLive)
		s.logger.Debugw("Live connections", "count", n)
	}()

	sess := newSession(s, conn, s.nextID.Add(1))
	sess.run()
}

func (s *Server) observeLive(n int) {
	if s.recorder != nil {
		s.recorder.SetLiveConnections(n)
	}
}

func (s *Server) drain() {
	done := make(chan struct{})
	go func() {
		s.sessions.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Infow("✅ All sessions finished")
	case <-time.After(s.opts.ShutdownGrace):
		s.logger.Warnw("⏱️  Shutdown grace elapsed, abandoning sessions", "live", s.live.value())
	}
}

// liveCounter is the only state shared between sessions
type liveCounter struct {
	mu sync.Mutex
	n  int
}

// add applies delta and hands the new count to observe before releasing the lock,
// so observers see counts in the order they were produced
func (c *liveCounter) add(delta int, observe func(int)) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.n += delta
	if observe != nil {
		observe(c.n)
	}
	return c.n
}

func (c *liveCounter) value() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.n
}
