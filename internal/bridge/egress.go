package bridge

import (
	"io"
	"strings"

	"go.uber.org/zap"
)

// RspBufSize is the maximum single read from the response pipe, fixed per
// spec.md §6.
const RspBufSize = 8192

const idNameMarker = "id name "

// Egress forwards bytes read from the response pipe to conn, rewriting any
// `id name <x>` line to `id name <jreHeader><servIP>_<engineName>##<x>` per
// spec.md §4.5 and §6. The rewrite is applied to the whole chunk as one
// substring replacement and only fires for a marker that arrives whole
// within a single pipe read; a marker split across two reads is forwarded
// unchanged.
// onBytes, if non-nil, is called with the byte count of every successful
// forward, for metrics.
func Egress(conn io.Writer, rspPipe io.Reader, jreHeader, servIP, engineName string, logger *zap.Logger, onBytes func(int)) {
	buf := make([]byte, RspBufSize)
	prefix := jreHeader + servIP + "_" + engineName + "##"

	for {
		n, err := rspPipe.Read(buf)
		if n <= 0 {
			logger.Info("egress pipe closed", zap.Error(err))
			return
		}

		chunk := strings.ReplaceAll(string(buf[:n]), idNameMarker, idNameMarker+prefix)

		if _, werr := conn.Write([]byte(chunk)); werr != nil {
			logger.Info("egress socket send failed", zap.Error(werr))
			return
		}

		if onBytes != nil {
			onBytes(n)
		}
	}
}
