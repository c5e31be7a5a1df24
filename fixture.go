package rpcfixture

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"sync"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthgrpc "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// Shutdown causes reported by [Fixture.Cause].
var (
	ErrWatchdogExpired    = errors.New("rpcfixture: watchdog expired")
	ErrTransformCompleted = errors.New("rpcfixture: transform completed")
	ErrClosed             = errors.New("rpcfixture: closed")
)

// Fixture is a gRPC server exposing the person service. It stops itself
// after a successful transform or when its watchdog expires. Stopping only
// closes [Fixture.Done]; the host decides what happens next.
type Fixture struct {
	cfg    Config
	logger *slog.Logger
	server *grpc.Server
	health *health.Server

	watchdog sync.Once

	mu     sync.Mutex
	timers []*time.Timer

	stop  sync.Once
	done  chan struct{}
	cause error
}

// New creates a fixture. Every method path without a registered service is
// routed to transform. A nil logger uses [slog.Default].
//
// gRPC serves those unregistered paths as streams, so interceptors installed
// with [grpc.UnaryInterceptor] only see registered methods; use
// [grpc.StreamInterceptor] to observe the rest. The fixture's own RPC logging
// covers both.
func New(cfg Config, logger *slog.Logger, opts ...grpc.ServerOption) *Fixture {
	if logger == nil {
		logger = slog.Default()
	}

	f := &Fixture{
		cfg:    cfg,
		logger: logger,
		health: health.NewServer(),
		done:   make(chan struct{}),
	}

	opts = append([]grpc.ServerOption{
		grpc.ChainUnaryInterceptor(f.logUnary),
		grpc.UnknownServiceHandler(f.handleUnknown),
	}, opts...)

	f.server = grpc.NewServer(opts...)
	RegisterPersonServiceServer(f.server, f)
	healthgrpc.RegisterHealthServer(f.server, f.health)
	f.health.SetServingStatus(ServiceName, healthgrpc.HealthCheckResponse_SERVING)

	return f
}

// Server returns the underlying gRPC server, for registering extra services
// before serving.
func (f *Fixture) Server() *grpc.Server {
	return f.server
}

// Transform parses input into a Person. A successful call arms the shutdown
// timer; a failed one leaves the fixture serving.
func (f *Fixture) Transform(ctx context.Context, input string) (Person, error) {
	p, err := ParsePerson(input)
	if err != nil {
		return Person{}, err
	}

	f.after(f.cfg.ShutdownDelay, func() {
		if f.shutdown(ErrTransformCompleted) {
			f.logger.Warn("fixture is now shutting down")
		}
	})
	return p, nil
}

// Serve arms the watchdog and serves on lis until the server is stopped.
// Use [Fixture.Run] to also stop the server once the fixture is done.
func (f *Fixture) Serve(lis net.Listener) error {
	f.watchdog.Do(func() {
		f.after(f.cfg.Watchdog, func() {
			if f.shutdown(ErrWatchdogExpired) {
				f.logger.Warn("fixture did not shut down normally", "watchdog", f.cfg.Watchdog)
			}
		})
	})

	f.logger.Info("serving", "addr", lis.Addr().String(), "service", ServiceName)
	return f.server.Serve(lis)
}

// Run serves on lis until ctx is cancelled or the fixture is done, then
// stops the server. A watchdog expiry stops it immediately; any other cause
// lets in-flight calls finish. Run returns nil on an orderly stop.
func (f *Fixture) Run(ctx context.Context, lis net.Listener) error {
	errc := make(chan error, 1)
	go func() {
		errc <- f.Serve(lis)
	}()

	select {
	case err := <-errc:
		f.shutdown(ErrClosed)
		f.stopTimers()
		return ignoreStopped(err)
	case <-ctx.Done():
		f.shutdown(ctx.Err())
	case <-f.done:
	}

	if errors.Is(f.Cause(), ErrWatchdogExpired) {
		f.server.Stop()
	} else {
		f.server.GracefulStop()
	}
	f.stopTimers()

	return ignoreStopped(<-errc)
}

// Done is closed once the fixture has begun shutting down.
func (f *Fixture) Done() <-chan struct{} {
	return f.done
}

// Cause returns why the fixture shut down, or nil while it is serving.
func (f *Fixture) Cause() error {
	select {
	case <-f.done:
		return f.cause
	default:
		return nil
	}
}

// Close stops the server and any pending timers.
func (f *Fixture) Close() {
	f.shutdown(ErrClosed)
	f.stopTimers()
	f.server.Stop()
}

// shutdown records cause and closes done. It reports whether this call was
// the one that did so.
func (f *Fixture) shutdown(cause error) (first bool) {
	f.stop.Do(func() {
		first = true
		f.cause = cause
		f.health.Shutdown()
		close(f.done)
	})
	return first
}

// after runs fn once d has elapsed. A zero d disables the timer.
func (f *Fixture) after(d time.Duration, fn func()) {
	if d <= 0 {
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	select {
	case <-f.done:
		return
	default:
	}
	f.timers = append(f.timers, time.AfterFunc(d, fn))
}

func (f *Fixture) stopTimers() {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, t := range f.timers {
		t.Stop()
	}
	f.timers = nil
}

// handleUnknown answers any unregistered method with transform.
func (f *Fixture) handleUnknown(_ any, stream grpc.ServerStream) error {
	method, _ := grpc.MethodFromServerStream(stream)

	in := new(wrapperspb.StringValue)
	if err := stream.RecvMsg(in); err != nil {
		return err
	}

	info := &grpc.UnaryServerInfo{
		Server:     f,
		FullMethod: method,
	}
	resp, err := f.logUnary(stream.Context(), in, info, func(ctx context.Context, req any) (any, error) {
		return transform(ctx, f, req.(*wrapperspb.StringValue))
	})
	if err != nil {
		return err
	}
	return stream.SendMsg(resp)
}

func (f *Fixture) logUnary(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	start := time.Now()
	resp, err := handler(ctx, req)
	f.logger.Debug("rpc",
		"method", info.FullMethod,
		"code", status.Code(err).String(),
		"duration", time.Since(start),
	)
	return resp, err
}

func ignoreStopped(err error) error {
	if errors.Is(err, grpc.ErrServerStopped) {
		return nil
	}
	return err
}
