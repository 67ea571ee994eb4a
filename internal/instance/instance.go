// Package instance makes the per-client copy of an engine executable so
// each connected GUI session runs against a distinguishable process name
// (`jei_<clientIP>_<engineName>`), per spec.md §4.2.
package instance

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
)

// Name returns the per-client executable name for engineName/clientIP,
// with .exe appended on Windows.
func Name(engineName, clientIP string) string {
	name := fmt.Sprintf("jei_%s_%s", clientIP, engineName)
	if runtime.GOOS == "windows" {
		return name + ".exe"
	}
	return name
}

// Copy makes a copy of the engine executable at <engineDir>/<exeName> to
// <engineDir>/<instanceName>, preserving the executable permission bit.
func Copy(engineDir, exeName, instanceName string) error {
	src := filepath.Join(engineDir, exeName)
	dst := filepath.Join(engineDir, instanceName)

	info, err := os.Stat(src)
	if err != nil {
		return fmt.Errorf("stat engine executable %s: %w", src, err)
	}

	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open engine executable %s: %w", src, err)
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return fmt.Errorf("create instance executable %s: %w", dst, err)
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("copy instance executable %s: %w", dst, err)
	}

	if err := out.Close(); err != nil {
		return fmt.Errorf("close instance executable %s: %w", dst, err)
	}

	if runtime.GOOS != "windows" {
		if err := os.Chmod(dst, info.Mode().Perm()|0111); err != nil {
			return fmt.Errorf("chmod instance executable %s: %w", dst, err)
		}
	}

	return nil
}
