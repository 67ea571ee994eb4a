// Package bridge forwards bytes between a client's TCP socket and its
// private engine process's stdin/stdout pipes.
package bridge

import (
	"io"
	"net"

	"go.uber.org/zap"
)

// ReqBufSize is the maximum single read from the client socket, fixed per
// spec.md §6.
const ReqBufSize = 1024

// Ingress forwards UCI commands read from conn into the request pipe
// writer, appending a trailing newline to every read, per spec.md §4.4.
// It returns when the socket reaches a terminal condition (EOF, error, or
// an oversized read that fills the buffer) or the pipe write fails.
// disconnect is invoked exactly once, before Ingress returns, whenever the
// terminal condition originates on the socket side — this is how the
// bridge reports "this client is gone" to its owning listener without
// mutating shared listener state directly (see DESIGN.md, "shared
// readiness set"). onBytes, if non-nil, is called with the byte count of
// every successful forward, for metrics.
func Ingress(conn net.Conn, reqPipe io.Writer, logger *zap.Logger, disconnect func(), onBytes func(int)) {
	buf := make([]byte, ReqBufSize)

	for {
		n, err := conn.Read(buf)
		if n < 1 || n >= ReqBufSize {
			logger.Info("ingress closing client socket", zap.Int("bytes_read", n), zap.Error(err))
			disconnect()
			return
		}

		buf[n] = '\n'

		written, werr := reqPipe.Write(buf[:n+1])
		if werr != nil || written != n+1 {
			logger.Error("ingress pipe write failed",
				zap.Int("want_bytes", n+1),
				zap.Int("wrote_bytes", written),
				zap.Error(werr))
			return
		}

		if onBytes != nil {
			onBytes(written)
		}
	}
}
