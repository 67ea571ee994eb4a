package enginelistener

import (
	"bufio"
	"context"
	"net"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/tecu23/jetson-gateway/internal/osinfo"
	"github.com/tecu23/jetson-gateway/internal/registry"
)

// fakeEngineScript is a tiny stdin/stdout echo program standing in for a real
// UCI engine: it reads one line and answers with a fixed id-name reply
// plus an echo of what it received.
const fakeEngineScript = "#!/bin/sh\nread line\necho \"id name FakeEngine 1.0\"\necho \"got: $line\"\n"

func TestListenerFullClientLoginRoundTrip(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("shell script fixture is unix-only")
	}

	dir := t.TempDir()
	exe := filepath.Join(dir, "fakeengine")
	require.NoError(t, os.WriteFile(exe, []byte(fakeEngineScript), 0755))

	reg := registry.New()
	handle, ok := reg.AddEngine(dir, "fakeengine", "0", "fakeengine", "")
	require.True(t, ok)

	logger := zap.NewNop()
	l := New(reg, handle, osinfo.LinuxX64, logger, nil)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	group, _ := errgroup.WithContext(ctx)
	group.Go(func() error {
		return l.Serve(ctx, ln, group)
	})

	conn, err := net.Dial("tcp", ln.Addr().String())
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Write([]byte("uci"))
	require.NoError(t, err)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	reader := bufio.NewReader(conn)

	line, err := reader.ReadString('\n')
	require.NoError(t, err)
	require.Contains(t, line, "id name JRE_X64LNX_")
	require.Contains(t, line, "_fakeengine##FakeEngine 1.0")

	line2, err := reader.ReadString('\n')
	require.NoError(t, err)
	require.Contains(t, line2, "got: uci")
}
