package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"runtime"
	"time"

	"github.com/spf13/cobra"
	"github.com/vk/buildgrid/internal/app"
	"github.com/vk/buildgrid/internal/dag"
	"github.com/vk/buildgrid/internal/executor"
	"github.com/vk/buildgrid/internal/registry"
	"github.com/vk/buildgrid/internal/requirement"
)

// Version is set at build time with -ldflags "-X github.com/vk/buildgrid/internal/cli.Version=...".
var Version = "dev"

// Process exit codes.
const (
	ExitOK          = 0
	ExitFailure     = 1
	ExitUsage       = 2
	ExitUnknown     = 3
	ExitCycle       = 4
	ExitUnmet       = 5
	ExitDuplicate   = 6
	ExitInterrupted = 130
)

// ExitError is a custom error type that includes a specific exit code.
type ExitError struct {
	Code    int
	Message string
	Err     error
}

// Error implements the error interface for ExitError.
func (e *ExitError) Error() string {
	return e.Message
}

func (e *ExitError) Unwrap() error { return e.Err }

// ExitCode maps an error returned by the app to a process exit code.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}

	var (
		exitErr     *ExitError
		interrupted *executor.InterruptedError
		duplicate   *registry.DuplicateTargetError
		self        *registry.SelfDependencyError
		cycle       *dag.CyclicDependencyError
		unknown     *registry.UnknownTargetError
		unmet       *requirement.UnmetError
		failure     *executor.ActionFailure
	)
	switch {
	case errors.As(err, &exitErr) && exitErr.Code != 0:
		return exitErr.Code
	case errors.As(err, &interrupted), errors.Is(err, context.Canceled):
		return ExitInterrupted
	case errors.As(err, &duplicate):
		return ExitDuplicate
	case errors.As(err, &cycle), errors.As(err, &self):
		return ExitCycle
	case errors.As(err, &unknown):
		return ExitUnknown
	case errors.As(err, &unmet):
		return ExitUnmet
	case errors.As(err, &failure):
		return ExitFailure
	case errors.Is(err, app.ErrConfig), errors.Is(err, dag.ErrNoGoals):
		return ExitUsage
	}
	return ExitFailure
}

// flags holds the raw command-line values.
type flags struct {
	files       []string
	params      []string
	secrets     []string
	paramsFiles []string
	defaultGoal string
	plan        bool
	list        bool
	logLevel    string
	logFormat   string
	noColor     bool
	statusPort  int
	eventsURL   string
	eventsWait  time.Duration
}

// NewRootCommand builds the buildgrid command tree writing to outW.
func NewRootCommand(outW io.Writer) *cobra.Command {
	f := &flags{}
	cmd := &cobra.Command{
		Use:   "buildgrid [flags] [GOAL...]",
		Short: "Run build targets in dependency order",
		Long: `buildgrid runs the requested goals and every target they depend on,
each exactly once, in dependency order. Targets are declared in HCL build
files; with no -f the file ./build.hcl is used. With no goals the build
file's default_goal is run.

Every requirement of every planned target is checked before anything runs.
The build stops at the first failing target.`,
		Example: `  buildgrid Pack
  buildgrid -f build/ Push -p configuration=Release --secret nuget_api_key=$KEY
  buildgrid --plan Push`,
		Args:          cobra.ArbitraryArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBuild(cmd.Context(), cmd.OutOrStdout(), f, args)
		},
	}

	fs := cmd.Flags()
	fs.StringArrayVarP(&f.files, "file", "f", nil, "build file or directory of .hcl files (repeatable)")
	fs.StringArrayVarP(&f.params, "param", "p", nil, "set a parameter, key=value (repeatable)")
	fs.StringArrayVar(&f.secrets, "secret", nil, "set a secret parameter, key=value (repeatable)")
	fs.StringArrayVar(&f.paramsFiles, "params-file", nil, "read parameters from a .yaml, .json or .hcl file (repeatable)")
	fs.StringVar(&f.defaultGoal, "default-goal", "", "goal to run when none is given, overriding default_goal")
	fs.BoolVar(&f.plan, "plan", false, "print the resolved order and exit without running")
	fs.BoolVar(&f.list, "list", false, "list registered targets and exit")
	fs.StringVar(&f.logLevel, "log-level", "info", "log level: debug, info, warn or error")
	fs.StringVar(&f.logFormat, "log-format", "text", "log format: text or json")
	fs.BoolVar(&f.noColor, "no-color", false, "disable colored report")
	fs.IntVar(&f.statusPort, "status-port", 0, "serve /health and /status on this port (0 = off)")
	fs.StringVar(&f.eventsURL, "events-url", "", "publish build events to a socket.io endpoint")
	fs.DurationVar(&f.eventsWait, "events-timeout", 15*time.Second, "how long to wait for the events endpoint to connect")

	cmd.AddCommand(newVersionCommand())
	return cmd
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "buildgrid %s (%s %s/%s)\n", Version, runtime.Version(), runtime.GOOS, runtime.GOARCH)
		},
	}
}

func runBuild(ctx context.Context, outW io.Writer, f *flags, goals []string) error {
	cfg, err := app.NewConfig(app.Config{
		Files:         f.files,
		Goals:         goals,
		DefaultGoal:   f.defaultGoal,
		Params:        f.params,
		Secrets:       f.secrets,
		ParamsFiles:   f.paramsFiles,
		Plan:          f.plan,
		List:          f.list,
		LogLevel:      f.logLevel,
		LogFormat:     f.logFormat,
		NoColor:       f.noColor,
		StatusPort:    f.statusPort,
		EventsURL:     f.eventsURL,
		EventsTimeout: f.eventsWait,
	})
	if err != nil {
		return &ExitError{Code: ExitUsage, Message: err.Error(), Err: err}
	}

	a, err := app.NewApp(outW, cfg)
	if err != nil {
		// Parameters may not have resolved, so nothing is known to redact.
		return &ExitError{Code: ExitCode(err), Message: err.Error(), Err: err}
	}
	defer a.Close()

	if _, err := a.Run(ctx); err != nil {
		return &ExitError{Code: ExitCode(err), Message: a.Redact(err.Error()), Err: err}
	}
	return nil
}

// Run parses args and runs the build. The returned error, if any, is an
// *ExitError carrying the process exit code.
func Run(ctx context.Context, args []string, outW io.Writer) error {
	cmd := NewRootCommand(outW)
	cmd.SetArgs(args)
	cmd.SetOut(outW)
	cmd.SetErr(outW)

	err := cmd.ExecuteContext(ctx)
	if err == nil {
		return nil
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr
	}
	// Errors cobra returns before RunE are usage errors.
	return &ExitError{Code: ExitUsage, Message: err.Error(), Err: err}
}
