// Package enginelistener runs the per-engine TCP acceptor: one instance
// per registered engine, listening on that engine's configured port and
// turning each accepted connection into a private engine process bridged
// to the client over a pipe pair, per spec.md §4.2.
package enginelistener

import (
	"context"
	"net"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/tecu23/jetson-gateway/internal/bridge"
	"github.com/tecu23/jetson-gateway/internal/instance"
	"github.com/tecu23/jetson-gateway/internal/metrics"
	"github.com/tecu23/jetson-gateway/internal/osinfo"
	"github.com/tecu23/jetson-gateway/internal/pipes"
	"github.com/tecu23/jetson-gateway/internal/registry"
	"github.com/tecu23/jetson-gateway/internal/supervisor"
)

// acceptPollInterval bounds how long Serve blocks in Accept before
// re-checking ctx, so shutdown is observed promptly without busy-polling.
const acceptPollInterval = time.Second

// Listener serves one engine's TCP port.
type Listener struct {
	reg     *registry.Registry
	handle  registry.EngineHandle
	arch    osinfo.Arch
	logger  *zap.Logger
	metrics *metrics.Metrics // nil disables metric reporting
}

// New returns a Listener bound to the given engine registry slot. m may be
// nil, in which case no metrics are reported.
func New(reg *registry.Registry, handle registry.EngineHandle, arch osinfo.Arch, logger *zap.Logger, m *metrics.Metrics) *Listener {
	return &Listener{reg: reg, handle: handle, arch: arch, logger: logger, metrics: m}
}

// Serve accepts connections on ln until ctx is canceled or ln is closed.
// Each accepted connection is handled in its own goroutine under group;
// Serve itself returns as soon as the accept loop stops, without waiting
// for in-flight client sessions to finish — callers that need a clean
// drain should wait on group themselves.
func (l *Listener) Serve(ctx context.Context, ln net.Listener, group *errgroup.Group) error {
	tln, ok := ln.(interface{ SetDeadline(time.Time) error })

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		if ok {
			_ = tln.SetDeadline(time.Now().Add(acceptPollInterval))
		}

		conn, err := ln.Accept()
		if err != nil {
			if ne, isNetErr := err.(net.Error); isNetErr && ne.Timeout() {
				continue
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			l.logger.Error("engine listener accept failed", zap.Error(err))
			continue
		}

		group.Go(func() error {
			l.handleConn(ctx, conn)
			return nil
		})
	}
}

// handleConn runs the full login flow for one accepted client connection:
// pipe creation, per-client executable copy, registry allocation, and the
// three concurrent activities (supervisor, ingress, egress), per spec.md
// §4.2.
func (l *Listener) handleConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	eng, ok := l.reg.EngineByHandle(l.handle)
	if !ok {
		l.logger.Error("engine vanished from registry before client login")
		return
	}

	clientIP := hostOf(conn.RemoteAddr())
	servIP := hostOf(conn.LocalAddr())

	sessionID := uuid.NewString()
	logger := l.logger.With(
		zap.String("engine", eng.Name),
		zap.String("client_ip", clientIP),
		zap.String("session_id", sessionID),
	)

	pair, err := pipes.Create(eng.Dir, eng.Name, clientIP)
	if err != nil {
		logger.Error("pipe creation failed", zap.Error(err))
		return
	}

	instName := instance.Name(eng.Name, clientIP)
	if err := instance.Copy(eng.Dir, eng.ExeName, instName); err != nil {
		logger.Error("instance copy failed", zap.Error(err))
		return
	}

	clientHandle, ok := l.reg.AllocClient(l.handle, conn, clientIP, servIP, instName, pair.ReqPath, pair.RspPath)
	if !ok {
		logger.Warn("client table full, rejecting connection")
		return
	}
	defer l.reg.MarkClientDisconnected(clientHandle)

	if l.metrics != nil {
		l.metrics.ClientsConnected.Inc()
		l.metrics.ClientsActive.Inc()
		defer func() {
			l.metrics.ClientsActive.Dec()
			l.metrics.ClientsDisconnected.Inc()
		}()
	}

	cmdline := supervisor.CommandLine(eng.Dir, instName, eng.Args, pair.ReqPath, pair.RspPath)

	sessionCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	group, gctx := errgroup.WithContext(sessionCtx)

	group.Go(func() error {
		err := supervisor.Run(gctx, cmdline)
		cancel()
		return err
	})

	group.Go(func() error {
		reqPipe, err := pipes.OpenRequestForWrite(pair.ReqPath)
		if err != nil {
			logger.Error("open request pipe failed", zap.Error(err))
			cancel()
			return err
		}
		defer reqPipe.Close()

		bridge.Ingress(conn, reqPipe, logger, cancel, l.onIngressBytes)
		return nil
	})

	group.Go(func() error {
		rspPipe, err := pipes.OpenResponseForRead(pair.RspPath)
		if err != nil {
			logger.Error("open response pipe failed", zap.Error(err))
			cancel()
			return err
		}
		defer rspPipe.Close()

		bridge.Egress(conn, rspPipe, l.arch.JreHeader(), servIP, eng.Name, logger, l.onEgressBytes)
		return nil
	})

	<-gctx.Done()
	conn.Close()
	_ = group.Wait()
}

func (l *Listener) onIngressBytes(n int) {
	if l.metrics != nil {
		l.metrics.BytesIngress.Add(float64(n))
	}
}

func (l *Listener) onEgressBytes(n int) {
	if l.metrics != nil {
		l.metrics.BytesEgress.Add(float64(n))
	}
}

func hostOf(addr net.Addr) string {
	if addr == nil {
		return ""
	}
	host, _, err := net.SplitHostPort(addr.String())
	if err != nil {
		return strings.TrimSpace(addr.String())
	}
	return host
}
