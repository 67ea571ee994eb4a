// Package supervisor runs the per-client engine process: it builds the
// shell command that wires the engine's stdin/stdout to the client's pipe
// pair and blocks until the process exits.
package supervisor

import (
	"context"
	"fmt"
	"os/exec"
	"runtime"
	"strings"
)

// BuildArgs turns the colon-separated launch arguments from
// jetson_agent.conf into a space-separated string, per spec.md §4.3. An
// empty input means "no arguments".
func BuildArgs(colonSeparated string) string {
	if colonSeparated == "" {
		return ""
	}

	parts := strings.Split(colonSeparated, ":")
	return strings.Join(parts, " ")
}

// CommandLine builds the shell-wrapped launch command for one client
// session: `cd <dir> && ./<exe> <args> < <req> > <rsp>` (Unix) or
// `cd <dir> && <exe> <args> < <req> > <rsp>` (Windows), matching spec.md
// §4.3. Delegating redirection to a shell avoids re-implementing
// cross-platform stdio plumbing; the price, as spec.md notes, is that the
// agent can only signal the shell wrapper, not the engine process
// directly.
func CommandLine(engineDir, instanceExe, args, reqPipe, rspPipe string) string {
	var b strings.Builder

	fmt.Fprintf(&b, "cd %s && ", shellQuote(engineDir))
	if runtime.GOOS == "windows" {
		fmt.Fprintf(&b, "%s", shellQuote(instanceExe))
	} else {
		fmt.Fprintf(&b, "./%s", shellQuote(instanceExe))
	}

	if a := BuildArgs(args); a != "" {
		fmt.Fprintf(&b, " %s", a)
	}

	fmt.Fprintf(&b, " < %s > %s", shellQuote(reqPipe), shellQuote(rspPipe))

	return b.String()
}

func shellQuote(s string) string {
	if !strings.ContainsAny(s, " \t'\"") {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

// Run launches the shell-wrapped engine process and blocks until it exits
// (normally or with an error). Run never restarts the child. If ctx is
// canceled first, the shell wrapper process is killed; the agent cannot
// signal the engine process behind it directly.
func Run(ctx context.Context, cmdline string) error {
	var cmd *exec.Cmd
	if runtime.GOOS == "windows" {
		cmd = exec.CommandContext(ctx, "cmd", "/C", cmdline)
	} else {
		cmd = exec.CommandContext(ctx, "sh", "-c", cmdline)
	}

	return cmd.Run()
}
