// Package root wires together configuration, logging, the registry, the
// management listener and every engine listener into the running agent,
// and owns its startup and shutdown sequence, per spec.md §4.9.
package root

import (
	"context"
	"fmt"
	"net"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/tecu23/jetson-gateway/internal/config"
	"github.com/tecu23/jetson-gateway/internal/enginelistener"
	"github.com/tecu23/jetson-gateway/internal/metrics"
	"github.com/tecu23/jetson-gateway/internal/mgmt"
	"github.com/tecu23/jetson-gateway/internal/osinfo"
	"github.com/tecu23/jetson-gateway/internal/registry"
)

// confFile, mgmtPortFile and metricsAddrFile are fixed filenames looked up
// relative to the agent's working directory, matching the original's
// hardcoded gsAgentConfFile / gsMgmtPortFile.
const (
	confFile        = "jetson_agent.conf"
	mgmtPortFile    = "mgmt.port"
	metricsAddrFile = "metrics.addr"
)

// Config is everything Run needs from the environment before it can start.
type Config struct {
	WorkDir string
	Logger  *zap.Logger
}

// Run executes the agent's full lifecycle: detect the host, load
// configuration, start the management listener, load and launch every
// configured engine, then block until ctx is canceled or a termination
// signal arrives. After a shutdown it returns once every background
// listener has stopped; a startup error is returned right away.
func Run(ctx context.Context, cfg Config) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM, syscall.SIGABRT)
	defer stop()

	logger := cfg.Logger
	info := osinfo.Detect()
	logger.Info("agent starting",
		zap.String("arch", info.Arch.String()),
		zap.String("hostname", info.Hostname))

	reg := registry.New()
	lock := registry.NewOpLock()

	mgmtPort, err := config.LoadMgmtPort(cfg.WorkDir, mgmtPortFile)
	if err != nil {
		return fmt.Errorf("load mgmt port: %w", err)
	}
	logger.Info("management port resolved", zap.String("port", mgmtPort))

	metricsAddr, err := config.LoadMetricsAddr(cfg.WorkDir, metricsAddrFile)
	if err != nil {
		return fmt.Errorf("load metrics addr: %w", err)
	}

	var metricsHandles *metrics.Metrics
	var promReg *prometheus.Registry
	if metricsAddr != "" {
		metricsHandles, promReg = metrics.New()
	}

	group, gctx := errgroup.WithContext(ctx)

	if metricsAddr != "" {
		group.Go(func() error {
			return metrics.Serve(gctx, metricsAddr, promReg, logger)
		})
	}

	mgmtLn, err := net.Listen("tcp", ":"+mgmtPort)
	if err != nil {
		return fmt.Errorf("listen on mgmt port %s: %w", mgmtPort, err)
	}
	group.Go(func() error {
		defer mgmtLn.Close()
		return mgmt.Serve(gctx, mgmtLn, mgmt.Deps{
			Registry: reg,
			Lock:     lock,
			WorkDir:  cfg.WorkDir,
			ConfFile: confFile,
			Host:     info.Hostname,
			Arch:     info.Arch,
			Logger:   logger,
			Launch:   engineLauncher(gctx, cfg.WorkDir, reg, info.Arch, logger, metricsHandles, group),
		}, group)
	})

	launched, err := mgmt.LoadEngines(reg, lock, cfg.WorkDir, confFile, logger, engineLauncher(gctx, cfg.WorkDir, reg, info.Arch, logger, metricsHandles, group))
	if err != nil {
		return fmt.Errorf("initial engine load: %w", err)
	}
	logger.Info("initial engine load complete", zap.Int("engines_launched", len(launched)))

	<-gctx.Done()
	logger.Info("agent shutting down")

	return group.Wait()
}

// engineLauncher returns a mgmt.Launch that registers a new engine and
// starts its TCP listener in the background, under group so the agent's
// shutdown waits for it.
func engineLauncher(ctx context.Context, workDir string, reg *registry.Registry, arch osinfo.Arch, logger *zap.Logger, m *metrics.Metrics, group *errgroup.Group) mgmt.Launch {
	return func(spec config.EngineSpec) error {
		engineDir := filepath.Join(workDir, spec.Name)

		handle, ok := reg.AddEngine(engineDir, spec.Exe, spec.Port, spec.Name, spec.Args)
		if !ok {
			return fmt.Errorf("engine table full, cannot add %s", spec.Name)
		}

		ln, err := net.Listen("tcp", ":"+spec.Port)
		if err != nil {
			return fmt.Errorf("listen on engine port %s: %w", spec.Port, err)
		}

		l := enginelistener.New(reg, handle, arch, logger, m)
		group.Go(func() error {
			defer ln.Close()
			return l.Serve(ctx, ln, group)
		})

		return nil
	}
}
