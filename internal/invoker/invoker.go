// Package invoker runs external processes on behalf of target actions.
//
// It is the boundary to the concrete build tools (compilers, test runners,
// package uploaders). The engine only needs success or failure from it;
// output is streamed to the configured writers with secrets masked.
package invoker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sort"
	"strings"
	"time"

	"github.com/vk/buildgrid/internal/ctxlog"
	"github.com/vk/buildgrid/internal/params"
)

// DefaultGracePeriod is how long a cancelled process may take to exit after
// being interrupted before it is killed.
const DefaultGracePeriod = 10 * time.Second

// Command is one process invocation.
type Command struct {
	Argv []string
	Dir  string
	// Env is added to the inherited environment.
	Env map[string]string
}

// ExitError reports a process that ran but exited unsuccessfully.
type ExitError struct {
	Argv0 string
	Code  int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("%s exited with code %d", e.Argv0, e.Code)
}

// Runner runs commands.
type Runner struct {
	Stdout      io.Writer
	Stderr      io.Writer
	Secrets     []string
	GracePeriod time.Duration
}

// Run starts cmd and waits for it. When ctx is cancelled the process is
// sent an interrupt and given GracePeriod to exit before being killed.
func (r *Runner) Run(ctx context.Context, cmd Command) error {
	if len(cmd.Argv) == 0 || cmd.Argv[0] == "" {
		return errors.New("command is empty")
	}
	redactor := params.NewRedactor(r.Secrets)
	logger := ctxlog.FromContext(ctx)
	line := redactor.Redact(FormatArgv(cmd.Argv))
	logger.Info("$ "+line, "dir", cmd.Dir)

	c := exec.CommandContext(ctx, cmd.Argv[0], cmd.Argv[1:]...)
	c.Dir = cmd.Dir
	c.Env = mergeEnv(os.Environ(), cmd.Env)
	c.Cancel = func() error {
		if err := c.Process.Signal(os.Interrupt); err != nil {
			return c.Process.Kill()
		}
		return nil
	}
	c.WaitDelay = r.GracePeriod
	if c.WaitDelay <= 0 {
		c.WaitDelay = DefaultGracePeriod
	}

	stdout := redactor.Writer(writerOrDiscard(r.Stdout))
	stderr := redactor.Writer(writerOrDiscard(r.Stderr))
	c.Stdout = stdout
	c.Stderr = stderr

	start := time.Now()
	err := c.Run()
	_ = stdout.Close()
	_ = stderr.Close()
	logger.Debug("Process finished.", "command", cmd.Argv[0], "duration", time.Since(start))

	if err == nil {
		return nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("%s interrupted: %w", cmd.Argv[0], ctxErr)
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return &ExitError{Argv0: cmd.Argv[0], Code: exitErr.ExitCode()}
	}
	return fmt.Errorf("failed to execute %s: %w", cmd.Argv[0], err)
}

// FormatArgv renders argv as a shell-like command line for display.
func FormatArgv(argv []string) string {
	parts := make([]string, len(argv))
	for i, a := range argv {
		if a == "" || strings.ContainsAny(a, " \t\"'") {
			parts[i] = fmt.Sprintf("%q", a)
		} else {
			parts[i] = a
		}
	}
	return strings.Join(parts, " ")
}

func mergeEnv(base []string, extra map[string]string) []string {
	if len(extra) == 0 {
		return base
	}
	keys := make([]string, 0, len(extra))
	for k := range extra {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]string, 0, len(base)+len(extra))
	for _, kv := range base {
		k, _, _ := strings.Cut(kv, "=")
		if _, overridden := extra[k]; !overridden {
			out = append(out, kv)
		}
	}
	for _, k := range keys {
		out = append(out, k+"="+extra[k])
	}
	return out
}

func writerOrDiscard(w io.Writer) io.Writer {
	if w == nil {
		return io.Discard
	}
	return w
}
