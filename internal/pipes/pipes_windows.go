//go:build windows

package pipes

import (
	"fmt"

	"github.com/Microsoft/go-winio"
)

// Create names the request/response named pipes for one client session.
// Unlike the Unix FIFO case, named pipes are not visible in the
// filesystem until something listens on them; the actual pipe instances
// are created lazily by OpenRequestForWrite/OpenResponseForRead.
func Create(engineDir, engineName, clientIP string) (Pair, error) {
	reqPath := fmt.Sprintf(`\\.\pipe\%s_req_%s`, engineName, clientIP)
	rspPath := fmt.Sprintf(`\\.\pipe\%s_rsp_%s`, engineName, clientIP)
	return Pair{ReqPath: reqPath, RspPath: rspPath}, nil
}

// OpenRequestForWrite creates the named pipe and blocks until the spawned
// engine's shell wrapper opens it for reading (its stdin redirection).
func OpenRequestForWrite(path string) (WriteCloser, error) {
	ln, err := winio.ListenPipe(path, nil)
	if err != nil {
		return nil, fmt.Errorf("listen request pipe %s: %w", path, err)
	}

	conn, err := ln.Accept()
	if err != nil {
		ln.Close()
		return nil, fmt.Errorf("accept request pipe %s: %w", path, err)
	}

	return &pipeConn{conn: conn, ln: ln}, nil
}

// OpenResponseForRead creates the named pipe and blocks until the spawned
// engine's shell wrapper opens it for writing (its stdout redirection).
func OpenResponseForRead(path string) (ReadCloser, error) {
	ln, err := winio.ListenPipe(path, nil)
	if err != nil {
		return nil, fmt.Errorf("listen response pipe %s: %w", path, err)
	}

	conn, err := ln.Accept()
	if err != nil {
		ln.Close()
		return nil, fmt.Errorf("accept response pipe %s: %w", path, err)
	}

	return &pipeConn{conn: conn, ln: ln}, nil
}

// pipeConn closes both the accepted pipe instance and its listener so the
// named pipe object is fully released once a client session ends.
type pipeConn struct {
	conn interface {
		Read([]byte) (int, error)
		Write([]byte) (int, error)
		Close() error
	}
	ln interface{ Close() error }
}

func (p *pipeConn) Read(b []byte) (int, error)  { return p.conn.Read(b) }
func (p *pipeConn) Write(b []byte) (int, error) { return p.conn.Write(b) }
func (p *pipeConn) Close() error {
	err := p.conn.Close()
	_ = p.ln.Close()
	return err
}
