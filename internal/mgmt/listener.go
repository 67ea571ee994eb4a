// Package mgmt runs the management TCP listener: it accepts GUI/tooling
// connections on the configured management port and dispatches `scan` and
// `query` commands against the shared registry, per spec.md §4.6-4.7.
package mgmt

import (
	"context"
	"net"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/tecu23/jetson-gateway/internal/osinfo"
	"github.com/tecu23/jetson-gateway/internal/registry"
)

const (
	acceptPollInterval = time.Second
	reqBufSize         = 1024
)

// Deps bundles everything a management connection needs to service scan
// and query commands.
type Deps struct {
	Registry *registry.Registry
	Lock     *registry.OpLock
	WorkDir  string
	ConfFile string
	Host     string
	Arch     osinfo.Arch
	Launch   Launch
	Logger   *zap.Logger
}

// Serve accepts management connections on ln until ctx is canceled.
func Serve(ctx context.Context, ln net.Listener, deps Deps, group *errgroup.Group) error {
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
			deps.Logger.Error("mgmt listener accept failed", zap.Error(err))
			continue
		}

		group.Go(func() error {
			handleConn(ctx, conn, deps)
			return nil
		})
	}
}

func handleConn(ctx context.Context, conn net.Conn, deps Deps) {
	defer conn.Close()

	servIP := hostOf(conn.LocalAddr())
	logger := deps.Logger.With(zap.String("mgmt_client", hostOf(conn.RemoteAddr())))

	buf := make([]byte, reqBufSize)
	for {
		if ctx.Err() != nil {
			return
		}

		_ = conn.SetReadDeadline(time.Now().Add(acceptPollInterval))
		n, err := conn.Read(buf)
		if err != nil {
			if ne, isNetErr := err.(net.Error); isNetErr && ne.Timeout() {
				continue
			}
			logger.Info("mgmt closing connection", zap.Error(err))
			return
		}
		if n < 1 {
			return
		}

		cmd := strings.TrimSpace(string(buf[:n]))
		logger.Info("mgmt received command", zap.String("cmd", cmd))

		switch {
		case strings.HasPrefix(cmd, "scan"):
			if err := Scan(conn, deps.Registry, deps.Lock, deps.WorkDir, deps.ConfFile, deps.Arch.JreHeader(), servIP, logger, deps.Launch); err != nil {
				logger.Error("scan failed", zap.Error(err))
			}
		case cmd == "query":
			if err := Query(conn, deps.Registry, deps.Lock, deps.Host, deps.Arch); err != nil {
				logger.Error("query failed", zap.Error(err))
			}
		default:
			logger.Warn("unrecognized mgmt command", zap.String("cmd", cmd))
		}
	}
}

func hostOf(addr net.Addr) string {
	if addr == nil {
		return ""
	}
	host, _, err := net.SplitHostPort(addr.String())
	if err != nil {
		return addr.String()
	}
	return host
}
