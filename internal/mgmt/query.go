package mgmt

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/tecu23/jetson-gateway/internal/osinfo"
	"github.com/tecu23/jetson-gateway/internal/registry"
)

// queryDoneTerminator ends every query report, per spec.md §4.7.
const queryDoneTerminator = "================================<<<querydone\n\n"

// Query writes a human-readable report of every registered engine and its
// connected clients to w, in the exact textual form spec.md §4.7 fixes as
// part of the wire protocol (GUI-facing tooling parses this output).
func Query(w io.Writer, reg *registry.Registry, lock *registry.OpLock, host string, arch osinfo.Arch) error {
	lock.Acquire()
	defer lock.Release()

	snap := reg.TakeSnapshot()

	var b strings.Builder
	fmt.Fprintf(&b, "\n===== Engine Table Entries from Server (%s) OS-ARCH (%s)  =====\n", host, arch.String())

	for i, e := range snap.Engines {
		if i > 0 {
			b.WriteString("\n")
		}

		fmt.Fprintf(&b, "Engine(%s) TCP Port(%s)\n", e.Name, e.Port)
		fmt.Fprintf(&b, "   Executable On Server(%s)\n", filepath.Join(e.Dir, e.ExeName))
		b.WriteString("   Connected Users:\n")

		for _, c := range e.Clients {
			fmt.Fprintf(&b, "      * Client IP[%s] Socket(%s) Server IP[%s] Engine Instance(%s)\n",
				c.ClientIP, c.Sock, c.ServerIP, c.InstanceExeName)
		}
	}

	b.WriteString(queryDoneTerminator)

	_, err := w.Write([]byte(b.String()))
	return err
}
