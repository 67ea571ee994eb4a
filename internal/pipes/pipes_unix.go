//go:build !windows

package pipes

import (
	"fmt"
	"os"
	"path/filepath"
	"syscall"
)

// Create makes the request/response FIFO pair for one client session under
// the engine directory, named `<name>_req_<clientIP>` and
// `<name>_rsp_<clientIP>` per spec.md §4.2. Mode 0666 matches the original.
func Create(engineDir, engineName, clientIP string) (Pair, error) {
	reqPath := filepath.Join(engineDir, fmt.Sprintf("%s_req_%s", engineName, clientIP))
	rspPath := filepath.Join(engineDir, fmt.Sprintf("%s_rsp_%s", engineName, clientIP))

	if err := mkfifo(reqPath); err != nil {
		return Pair{}, fmt.Errorf("create request pipe %s: %w", reqPath, err)
	}
	if err := mkfifo(rspPath); err != nil {
		return Pair{}, fmt.Errorf("create response pipe %s: %w", rspPath, err)
	}

	return Pair{ReqPath: reqPath, RspPath: rspPath}, nil
}

func mkfifo(path string) error {
	err := syscall.Mkfifo(path, 0666)
	if err != nil && os.IsExist(err) {
		return nil
	}
	return err
}

// OpenRequestForWrite opens the request pipe write-only. This blocks until
// the spawned engine opens its stdin side for reading, per spec.md §4.4.
func OpenRequestForWrite(path string) (WriteCloser, error) {
	return os.OpenFile(path, os.O_WRONLY, 0)
}

// OpenResponseForRead opens the response pipe read-only. This blocks until
// the spawned engine opens its stdout side for writing, per spec.md §4.5.
func OpenResponseForRead(path string) (ReadCloser, error) {
	return os.OpenFile(path, os.O_RDONLY, 0)
}
