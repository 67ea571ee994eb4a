package instance

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestName(t *testing.T) {
	name := Name("stockfish", "10.0.0.5")
	want := "jei_10.0.0.5_stockfish"
	if runtime.GOOS == "windows" {
		want += ".exe"
	}
	if name != want {
		t.Fatalf("Name() = %q, want %q", name, want)
	}
}

func TestCopyPreservesExecBit(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("permission bits are not meaningful on windows")
	}

	dir := t.TempDir()
	src := filepath.Join(dir, "stockfish")
	require.NoError(t, os.WriteFile(src, []byte("#!/bin/sh\necho hi\n"), 0755))

	inst := Name("stockfish", "10.0.0.5")
	require.NoError(t, Copy(dir, "stockfish", inst))

	info, err := os.Stat(filepath.Join(dir, inst))
	require.NoError(t, err)
	require.NotZero(t, info.Mode().Perm()&0111, "copy must remain executable")
}
