package bridge

import (
	"bytes"
	"io"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestIngressForwardsWithNewline(t *testing.T) {
	client, agent := net.Pipe()
	defer client.Close()

	var pipeWrite bytes.Buffer
	disconnected := make(chan struct{})

	done := make(chan struct{})
	go func() {
		Ingress(agent, &pipeWrite, zap.NewNop(), func() { close(disconnected) }, nil)
		close(done)
	}()

	_, err := client.Write([]byte("uci"))
	require.NoError(t, err)

	client.Close()

	<-done
	<-disconnected

	assert.Equal(t, "uci\n", pipeWrite.String())
}

func TestIngressOversizedFrameIsTerminal(t *testing.T) {
	client, agent := net.Pipe()
	defer client.Close()

	var pipeWrite bytes.Buffer
	disconnected := make(chan struct{})
	done := make(chan struct{})

	go func() {
		Ingress(agent, &pipeWrite, zap.NewNop(), func() { close(disconnected) }, nil)
		close(done)
	}()

	oversized := strings.Repeat("x", ReqBufSize)
	go client.Write([]byte(oversized))

	select {
	case <-disconnected:
	case <-time.After(2 * time.Second):
		t.Fatal("oversized frame did not trigger disconnect")
	}

	client.Close()
	<-done
}

func TestEgressRewritesIdName(t *testing.T) {
	rspReader, rspWriter := io.Pipe()
	var sockOut bytes.Buffer

	done := make(chan struct{})
	go func() {
		Egress(&sockOut, rspReader, "JRE_X64LNX_", "10.0.0.5", "stockfish", zap.NewNop(), nil)
		close(done)
	}()

	_, err := rspWriter.Write([]byte("id name Stockfish 15\nuciok\n"))
	require.NoError(t, err)
	rspWriter.Close()

	<-done

	want := "id name JRE_X64LNX_10.0.0.5_stockfish##Stockfish 15\nuciok\n"
	assert.Equal(t, want, sockOut.String())
}

func TestEgressPassesThroughWithoutIdName(t *testing.T) {
	rspReader, rspWriter := io.Pipe()
	var sockOut bytes.Buffer

	done := make(chan struct{})
	go func() {
		Egress(&sockOut, rspReader, "JRE_X64LNX_", "10.0.0.5", "stockfish", zap.NewNop(), nil)
		close(done)
	}()

	_, err := rspWriter.Write([]byte("bestmove e2e4\n"))
	require.NoError(t, err)
	rspWriter.Close()

	<-done

	assert.Equal(t, "bestmove e2e4\n", sockOut.String())
}
