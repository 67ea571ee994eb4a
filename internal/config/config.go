// Package config parses the agent's on-disk configuration: the engine
// list (jetson_agent.conf), the management port override (mgmt.port), and
// the optional metrics listen address (metrics.addr).
package config

import (
	"bufio"
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// DefaultMgmtPort is used when mgmt.port is absent, per spec.md §6.
const DefaultMgmtPort = "53350"

// EngineSpec is one parsed line from jetson_agent.conf.
type EngineSpec struct {
	Name string
	Port string
	Exe  string
	Args string
}

// LoadEngineSpecs parses confPath (normally "jetson_agent.conf") relative
// to workDir. Lines starting with '#' or whitespace, and empty lines, are
// skipped. A line whose engine directory does not exist under workDir, or
// whose executable does not exist inside that directory, is skipped with
// the caller expected to log it — LoadEngineSpecs reports skipped lines
// via the skipped return value rather than logging itself, keeping this
// package silent and testable. The executable check mirrors agent.cc's
// EngineLaunchThread, which only registers an engine once
// FileExists(<dir>/<exe>) succeeds: a spec is only ever returned here if
// FindEngine(name) can honestly return true for it once loaded.
func LoadEngineSpecs(workDir, confPath string) (specs []EngineSpec, skipped []string, err error) {
	f, err := os.Open(filepath.Join(workDir, confPath))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil, nil
		}
		return nil, nil, err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" || line[0] == '#' || isSpace(line[0]) {
			continue
		}

		fields := strings.Fields(line)
		if len(fields) < 3 {
			skipped = append(skipped, line)
			continue
		}

		spec := EngineSpec{Name: fields[0], Port: fields[1], Exe: fields[2]}
		if len(fields) > 3 {
			spec.Args = fields[3]
		}

		if runtime.GOOS == "windows" && !strings.Contains(strings.ToLower(spec.Exe), ".exe") {
			spec.Exe += ".exe"
		}

		engineDir := filepath.Join(workDir, spec.Name)
		if !dirExists(engineDir) {
			skipped = append(skipped, line)
			continue
		}

		if !fileExists(filepath.Join(engineDir, spec.Exe)) {
			skipped = append(skipped, line)
			continue
		}

		specs = append(specs, spec)
	}

	if err := scanner.Err(); err != nil {
		return nil, nil, err
	}

	return specs, skipped, nil
}

func isSpace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\r' || b == '\n'
}

func dirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// LoadMgmtPort reads the management port override file. It returns
// DefaultMgmtPort if the file is absent or empty.
func LoadMgmtPort(workDir, portFile string) (string, error) {
	return loadSingleToken(workDir, portFile, DefaultMgmtPort)
}

// LoadMetricsAddr reads the optional metrics HTTP listen address file. An
// empty return value means the metrics HTTP server stays disabled.
func LoadMetricsAddr(workDir, addrFile string) (string, error) {
	return loadSingleToken(workDir, addrFile, "")
}

func loadSingleToken(workDir, fileName, fallback string) (string, error) {
	data, err := os.ReadFile(filepath.Join(workDir, fileName))
	if err != nil {
		if os.IsNotExist(err) {
			return fallback, nil
		}
		return "", err
	}

	token := strings.TrimSpace(string(data))
	if token == "" {
		return fallback, nil
	}

	return token, nil
}
