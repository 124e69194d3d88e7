package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rileyhilliard/vmwatch/internal/config"
	"github.com/rileyhilliard/vmwatch/internal/errors"
	"github.com/rileyhilliard/vmwatch/internal/logger"
	"github.com/rileyhilliard/vmwatch/internal/ui"
	"github.com/rileyhilliard/vmwatch/pkg/sshutil"
)

// globals holds the persistent flags shared by every command.
type globals struct {
	configPath string
	verbose    bool
	jsonOut    bool
	noColor    bool
}

// newRootCmd builds the full command tree. Each call returns fresh flag
// state, so tests can execute commands repeatedly.
func newRootCmd() *cobra.Command {
	g := &globals{}

	root := &cobra.Command{
		Use:   "vmw",
		Short: "Watch VM and container health over SSH",
		Long: `vmwatch collects CPU, RAM, disk and Docker telemetry from a fleet of
Linux VMs over SSH, evaluates alert thresholds and serves the results
over a JSON API.

Examples:
  vmw host add
  vmw stats web1
  vmw alerts --send
  vmw serve --addr :5050`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			logger.EnableDebug(g.verbose)
			if g.noColor || os.Getenv("NO_COLOR") != "" {
				ui.DisableColors()
			}
			return config.LoadEnvFiles()
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&g.configPath, "config", "", "config file (default: .vmwatch.yaml, then ~/.config/vmwatch/config.yaml)")
	flags.BoolVarP(&g.verbose, "verbose", "v", false, "print debug logs")
	flags.BoolVar(&g.jsonOut, "json", false, "machine-readable JSON output")
	flags.BoolVar(&g.noColor, "no-color", false, "disable colored output")

	root.AddCommand(
		newServeCmd(g),
		newStatsCmd(g),
		newTestCmd(g),
		newValidateCmd(g),
		newContainersCmd(g),
		newImagesCmd(g),
		newStoppedCmd(g),
		newContainerStatsCmd(g),
		newStartCmd(g),
		newStopCmd(g),
		newLogsCmd(g),
		newAlertsCmd(g),
		newHostCmd(g),
		newInitCmd(g),
		newVersionCmd(),
	)
	return root
}

// Execute runs the CLI and exits with the command's status.
func Execute() {
	code := run(os.Args[1:], os.Stdout, os.Stderr)
	sshutil.CloseAgent()
	os.Exit(code)
}

// run executes args against a fresh command tree and returns the exit code.
func run(args []string, stdout, stderr io.Writer) int {
	root := newRootCmd()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.Execute()
	if err == nil {
		return 0
	}
	if code, ok := errors.GetExitCode(err); ok {
		return code
	}

	if jsonRequested(args) {
		_ = WriteJSONFromError(stdout, err)
		return 1
	}

	if isUnknownCommandError(err) {
		fmt.Fprintln(stderr, ui.ErrorStyle().Render(ui.SymbolFail+" "+err.Error()))
		if name := extractUnknownCommand(err); name != "" {
			fmt.Fprintf(stderr, "\n  '%s' isn't a vmw command. Run 'vmw --help' to see what's available.\n", name)
		}
		return 1
	}

	fmt.Fprint(stderr, err.Error())
	if !strings.HasSuffix(err.Error(), "\n") {
		fmt.Fprintln(stderr)
	}
	return 1
}

// jsonRequested reports whether --json appears in args. Errors raised while
// cobra parses flags happen before the flag value is bound.
func jsonRequested(args []string) bool {
	for _, a := range args {
		if a == "--" {
			return false
		}
		if a == "--json" || a == "--json=true" {
			return true
		}
	}
	return false
}

// isUnknownCommandError checks if the error is cobra's unknown command or flag error.
func isUnknownCommandError(err error) bool {
	msg := err.Error()
	return strings.HasPrefix(msg, "unknown command") || strings.HasPrefix(msg, "unknown flag")
}

// extractUnknownCommand pulls the command name out of cobra's
// `unknown command "foo" for "vmw"` message.
func extractUnknownCommand(err error) string {
	msg := err.Error()
	start := strings.Index(msg, `"`)
	if start < 0 {
		return ""
	}
	end := strings.Index(msg[start+1:], `"`)
	if end < 0 {
		return ""
	}
	return msg[start+1 : start+1+end]
}
