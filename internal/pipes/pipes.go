// Package pipes creates and opens the request/response pipe pair used to
// wire a TCP client's socket to its private engine process. Unix builds
// use named FIFOs; Windows builds use named pipes via go-winio.
package pipes

import "io"

// Pair names the two named-pipe paths created for one client session. The
// paths are platform-native: FIFO paths on Unix, `\\.\pipe\...` names on
// Windows.
type Pair struct {
	ReqPath string
	RspPath string
}

// WriteCloser is satisfied by the request pipe once opened for writing.
type WriteCloser = io.WriteCloser

// ReadCloser is satisfied by the response pipe once opened for reading.
type ReadCloser = io.ReadCloser
