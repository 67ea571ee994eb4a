package mgmt

import (
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"

	"github.com/tecu23/jetson-gateway/internal/config"
	"github.com/tecu23/jetson-gateway/internal/registry"
)

// scanPacing mirrors the 50ms pause the original takes between launching
// successive engines, so a burst of `scan` commands does not try to bind
// every port in the same instant.
const scanPacing = 50 * time.Millisecond

// Launch starts one newly discovered engine: registering it and serving
// its TCP port. It returns once the engine is registered and its port is
// bound; the listener's accept loop runs in the background and Launch
// does not wait for it.
type Launch func(spec config.EngineSpec) error

// LoadEngines parses jetson_agent.conf under workDir and launches every
// valid engine entry not already registered, pacing new launches by
// scanPacing. It returns every valid config-file entry in file order —
// both newly launched ones and ones already present in the registry from
// an earlier load — per spec.md §4.1. An entry whose launch call fails is
// logged and left out. Whether an entry is newly launched
// or already registered only gates the launch call; it is reported
// either way, because a repeated scan of an already-loaded config must
// report the same entries as the first scan (spec.md §8 Idempotence).
// This mirrors the original: in agent.cc's JetsonScanAndLoadEngines the
// per-line progress report is unconditional, while the JetsonFindEngine
// dedup check lives only inside the async launch thread and gates
// nothing but the re-bind. LoadEngines serializes the whole operation against
// lock — the registry's own per-call mutex is not enough, because a
// concurrent query must see either all-engines-loaded or none, never a
// partial table.
func LoadEngines(reg *registry.Registry, lock *registry.OpLock, workDir, confFile string, logger *zap.Logger, launch Launch) ([]config.EngineSpec, error) {
	lock.Acquire()
	defer lock.Release()

	specs, skipped, err := config.LoadEngineSpecs(workDir, confFile)
	if err != nil {
		return nil, fmt.Errorf("load engine config: %w", err)
	}

	for _, s := range skipped {
		logger.Warn("skipping malformed or missing engine config line", zap.String("line", s))
	}

	var reported []config.EngineSpec
	for _, spec := range specs {
		if reg.FindEngine(spec.Name) {
			logger.Info("engine already registered, reporting existing entry", zap.String("engine", spec.Name))
			reported = append(reported, spec)
			continue
		}

		logger.Info("launching engine",
			zap.String("engine", spec.Name),
			zap.String("port", spec.Port),
			zap.String("exe", spec.Exe),
			zap.String("args", spec.Args))

		if err := launch(spec); err != nil {
			logger.Error("failed to launch engine", zap.String("engine", spec.Name), zap.Error(err))
			continue
		}

		reported = append(reported, spec)
		time.Sleep(scanPacing)
	}

	return reported, nil
}

// Scan runs LoadEngines and streams one progress line per reported engine
// entry to w — newly launched or already running, per LoadEngines' doc —
// followed by the `scanisdone` terminator, per spec.md §4.6. servIP is
// the local interface address the management client connected through.
func Scan(w io.Writer, reg *registry.Registry, lock *registry.OpLock, workDir, confFile, jreHeader, servIP string, logger *zap.Logger, launch Launch) error {
	reported, err := LoadEngines(reg, lock, workDir, confFile, logger, launch)
	if err != nil {
		return err
	}

	for _, spec := range reported {
		line := fmt.Sprintf("%s%s_%s_%s\n", jreHeader, servIP, spec.Port, spec.Name)
		if _, err := w.Write([]byte(line)); err != nil {
			return err
		}
	}

	_, err = w.Write([]byte("scanisdone"))
	return err
}
