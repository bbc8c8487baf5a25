package invoker

import (
	"bytes"
	"context"
	"log/slog"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/buildgrid/internal/ctxlog"
	"github.com/vk/buildgrid/internal/params"
)

func requireShell(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("requires a POSIX shell")
	}
}

func TestRun_StreamsOutputWithSecretsMasked(t *testing.T) {
	t.Parallel()
	requireShell(t)

	// --- Arrange ---
	var out, logs bytes.Buffer
	ctx := ctxlog.WithLogger(context.Background(), slog.New(slog.NewTextHandler(&logs, nil)))
	r := &Runner{Stdout: &out, Secrets: []string{"oy2secret"}}

	// --- Act ---
	err := r.Run(ctx, Command{
		Argv: []string{"sh", "-c", "echo pushing with $KEY; printf tail", "--api-key=oy2secret"},
		Env:  map[string]string{"KEY": "oy2secret"},
	})

	// --- Assert ---
	require.NoError(t, err)
	assert.Equal(t, "pushing with "+params.Redacted+"\ntail", out.String())
	assert.NotContains(t, logs.String(), "oy2secret")
	assert.Contains(t, logs.String(), "--api-key="+params.Redacted)
}

func TestRun_ExitCode(t *testing.T) {
	t.Parallel()
	requireShell(t)

	err := (&Runner{}).Run(context.Background(), Command{Argv: []string{"sh", "-c", "exit 3"}})

	var exitErr *ExitError
	require.ErrorAs(t, err, &exitErr)
	assert.Equal(t, 3, exitErr.Code)
	assert.Equal(t, "sh exited with code 3", err.Error())
}

func TestRun_WorkingDirectory(t *testing.T) {
	t.Parallel()
	requireShell(t)

	dir := t.TempDir()
	var out bytes.Buffer
	err := (&Runner{Stdout: &out}).Run(context.Background(), Command{Argv: []string{"sh", "-c", "pwd"}, Dir: dir})

	require.NoError(t, err)
	assert.Contains(t, out.String(), dir)
}

func TestRun_StartFailure(t *testing.T) {
	t.Parallel()

	err := (&Runner{}).Run(context.Background(), Command{Argv: []string{"definitely-not-a-real-binary-xyz"}})
	assert.ErrorContains(t, err, "failed to execute definitely-not-a-real-binary-xyz")

	err = (&Runner{}).Run(context.Background(), Command{})
	assert.ErrorContains(t, err, "command is empty")
}

func TestRun_CancellationInterruptsProcess(t *testing.T) {
	t.Parallel()
	requireShell(t)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	start := time.Now()
	err := (&Runner{GracePeriod: 500 * time.Millisecond}).Run(ctx, Command{Argv: []string{"sleep", "30"}})

	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 10*time.Second)
}

func TestFormatArgv(t *testing.T) {
	t.Parallel()
	assert.Equal(t, `dotnet build -c Release "/p:Version=1.0 beta" ""`, FormatArgv([]string{"dotnet", "build", "-c", "Release", "/p:Version=1.0 beta", ""}))
}

func TestMergeEnv(t *testing.T) {
	t.Parallel()
	got := mergeEnv([]string{"PATH=/bin", "CONFIGURATION=Debug"}, map[string]string{"CONFIGURATION": "Release", "A": "1"})
	assert.Equal(t, []string{"PATH=/bin", "A=1", "CONFIGURATION=Release"}, got)
}
