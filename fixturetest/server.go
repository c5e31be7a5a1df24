// Package fixturetest runs an rpcfixture on an in-memory connection.
//
// Tests get a real gRPC round trip to the fixture without binding port 8080,
// in the manner of [httptest.Server].
package fixturetest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/connectivity"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/test/bufconn"

	"github.com/tomasbasham/rpcfixture"
)

// bufferSize is the default size of the buffered connection.
var bufferSize int32 = 1 << 20 // 1 MiB

// SetBufferSize sets the default buffer size for new servers. Must be called
// before creating any servers. Thread-safe.
func SetBufferSize(size int) {
	if size <= 0 {
		panic("fixturetest: buffer size must be positive")
	}
	atomic.StoreInt32(&bufferSize, int32(size))
}

func getBufferSize() int {
	return int(atomic.LoadInt32(&bufferSize))
}

// Server is a fixture listening on a buffered in-memory connection.
type Server struct {
	*rpcfixture.Fixture

	listener *bufconn.Listener
	cancel   context.CancelFunc
	ctx      context.Context
	once     sync.Once
	runErr   error
	runDone  chan struct{}

	mu     sync.Mutex
	conns  []*grpc.ClientConn
	closed bool
}

// errServerClosed is returned when a connection is requested from a server
// that has already been closed.
var errServerClosed = errors.New("fixturetest: server closed")

// NewServer creates an in-memory fixture with cfg. The listen address in cfg
// is ignored. Logs are discarded; use [NewServerWithLogger] to keep them.
func NewServer(cfg rpcfixture.Config, opts ...grpc.ServerOption) *Server {
	return NewServerWithLogger(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)), opts...)
}

// NewServerWithLogger is like [NewServer] but logs to logger.
func NewServerWithLogger(cfg rpcfixture.Config, logger *slog.Logger, opts ...grpc.ServerOption) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		Fixture:  rpcfixture.New(cfg, logger, opts...),
		listener: bufconn.Listen(getBufferSize()),
		ctx:      ctx,
		cancel:   cancel,
		runDone:  make(chan struct{}),
	}
}

// Start runs the fixture in the background. Safe to call multiple times.
func (s *Server) Start() {
	s.once.Do(func() {
		go func() {
			s.runErr = s.Run(s.ctx, s.listener)
			close(s.runDone)
		}()
	})
}

// Err blocks until the fixture has stopped serving and returns any error.
func (s *Server) Err() error {
	<-s.runDone
	return s.runErr
}

// Close closes every connection handed out by the server, shuts down the
// fixture and closes the listener.
func (s *Server) Close() {
	s.mu.Lock()
	conns := s.conns
	s.conns = nil
	s.closed = true
	s.mu.Unlock()

	for _, conn := range conns {
		conn.Close()
	}

	s.Fixture.Close()
	s.cancel()
	s.listener.Close()
}

// CloseOnCleanup registers the server to be closed automatically when the test
// ends.
func (s *Server) CloseOnCleanup(t testing.TB) {
	t.Cleanup(s.Close)
}

// Client returns a person service client connected to the fixture. The
// underlying connection is closed by [Server.Close].
func (s *Server) Client(opts ...grpc.DialOption) (*rpcfixture.Client, error) {
	conn, err := s.ClientConn(opts...)
	if err != nil {
		return nil, err
	}
	return rpcfixture.NewClient(conn), nil
}

// ClientConn returns a gRPC client connection to the fixture, closed by
// [Server.Close].
//
// The connection is configured to dial the server's in-memory listener.
// Additional [grpc.DialOption] values may be provided but the ContextDialer is
// fixed and cannot be overridden.
func (s *Server) ClientConn(opts ...grpc.DialOption) (*grpc.ClientConn, error) {
	return s.ClientConnContext(context.Background(), opts...)
}

// ClientConnContext is like [Server.ClientConn] but gives up waiting for the
// connection to become ready when ctx is done. It fails as soon as the
// fixture shuts down, returning an error that wraps [rpcfixture.Fixture.Cause].
func (s *Server) ClientConnContext(ctx context.Context, opts ...grpc.DialOption) (*grpc.ClientConn, error) {
	if err := s.stopped(); err != nil {
		return nil, err
	}

	opts = append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	}, opts...)
	opts = append(opts, grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
		return s.listener.DialContext(ctx)
	}))

	conn, err := grpc.NewClient("passthrough:///rpcfixture", opts...)
	if err != nil {
		return nil, err
	}
	if err := s.track(conn); err != nil {
		return nil, err
	}

	if err := s.waitReady(ctx, conn); err != nil {
		s.untrack(conn)
		conn.Close()
		return nil, err
	}
	return conn, nil
}

// waitReady drives conn out of idle and blocks until it is ready, ctx is
// done, five seconds pass or the fixture shuts down.
func (s *Server) waitReady(ctx context.Context, conn *grpc.ClientConn) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	go func() {
		select {
		case <-s.Done():
			cancel()
		case <-ctx.Done():
		}
	}()

	conn.Connect()
	for state := conn.GetState(); state != connectivity.Ready; state = conn.GetState() {
		if !conn.WaitForStateChange(ctx, state) {
			if err := s.stopped(); err != nil {
				return err
			}
			return ctx.Err()
		}
	}
	return nil
}

// stopped returns a non-nil error once the fixture is done or the server
// closed.
func (s *Server) stopped() error {
	if cause := s.Cause(); cause != nil {
		return fmt.Errorf("fixturetest: fixture stopped: %w", cause)
	}
	return nil
}

func (s *Server) track(conn *grpc.ClientConn) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		conn.Close()
		return errServerClosed
	}
	s.conns = append(s.conns, conn)
	return nil
}

func (s *Server) untrack(conn *grpc.ClientConn) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, c := range s.conns {
		if c == conn {
			s.conns = append(s.conns[:i], s.conns[i+1:]...)
			return
		}
	}
}
