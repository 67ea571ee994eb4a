// Package osinfo detects the host OS/architecture once at startup and
// derives the JRE header prefix prepended to engine names reported to
// remote GUIs.
package osinfo

import (
	"os"
	"runtime"
)

// Arch identifies the combination of OS and CPU architecture the agent is
// running on.
type Arch int

const (
	Unknown Arch = iota
	LinuxX64
	WindowsX64
	XavierARM64
)

func (a Arch) String() string {
	switch a {
	case LinuxX64:
		return "Linux X86-64"
	case WindowsX64:
		return "Windows X86-64"
	case XavierARM64:
		return "Xavier ARM64"
	default:
		return "Unknown"
	}
}

// JreHeader returns the short architecture-tagging prefix prepended to
// engine names the GUI sees. Fixed per spec.md §6.
func (a Arch) JreHeader() string {
	switch a {
	case LinuxX64:
		return "JRE_X64LNX_"
	case WindowsX64:
		return "JRE_X64WIN_"
	case XavierARM64:
		return "JRE_XAVIER_"
	default:
		return ""
	}
}

// Info is the result of a one-time host introspection.
type Info struct {
	Arch     Arch
	Hostname string
}

// Detect resolves the host OS/architecture and hostname. Unlike the
// original, runtime.GOOS/GOARCH already encode the platform so there is no
// need to shell out to uname(1) or inspect utsname.
func Detect() Info {
	info := Info{Arch: resolveArch()}

	host, err := os.Hostname()
	if err != nil {
		host = "UNKNOWN_SERVER"
	}
	info.Hostname = host

	return info
}

func resolveArch() Arch {
	switch {
	case runtime.GOOS == "windows" && runtime.GOARCH == "amd64":
		return WindowsX64
	case runtime.GOOS == "linux" && runtime.GOARCH == "amd64":
		return LinuxX64
	case runtime.GOOS == "linux" && runtime.GOARCH == "arm64":
		return XavierARM64
	default:
		return Unknown
	}
}
