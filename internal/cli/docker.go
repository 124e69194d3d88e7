package cli

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rileyhilliard/vmwatch/internal/errors"
	"github.com/rileyhilliard/vmwatch/internal/metrics"
	"github.com/rileyhilliard/vmwatch/internal/monitor"
	"github.com/rileyhilliard/vmwatch/internal/ui"
)

func newContainersCmd(g *globals) *cobra.Command {
	var running bool

	cmd := &cobra.Command{
		Use:   "containers <vm>",
		Short: "List Docker containers on a VM",
		Long: `List containers with docker ps -a, or only running ones with --running.

Examples:
  vmw containers web1
  vmw containers web1 --running --json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind := monitor.KindAll
			if running {
				kind = monitor.KindRunning
			}
			return runListing(cmd, g, args[0], kind)
		},
	}
	cmd.Flags().BoolVar(&running, "running", false, "only running containers")
	return cmd
}

func newImagesCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "images <vm>",
		Short: "List Docker images on a VM",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runListing(cmd, g, args[0], monitor.KindImages)
		},
	}
}

func newStoppedCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "stopped <vm>",
		Short: "List containers that exist but aren't running",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(g)
			if err != nil {
				return err
			}
			defer a.Close()

			return emitListing(cmd, g, a.monitor.StoppedContainers(cmd.Context(), args[0]))
		},
	}
}

func runListing(cmd *cobra.Command, g *globals, label string, kind monitor.DockerKind) error {
	a, err := openApp(g)
	if err != nil {
		return err
	}
	defer a.Close()

	res, err := a.monitor.ListDocker(cmd.Context(), label, kind)
	if err != nil {
		return errors.WrapWithCode(err, errors.ErrConfig,
			fmt.Sprintf("Can't list %s", kind),
			"Supported listings: all, running, images")
	}
	return emitListing(cmd, g, res)
}

func emitListing(cmd *cobra.Command, g *globals, res monitor.DockerListResult) error {
	var failure *JSONError
	if res.Status != monitor.StatusOK {
		failure = resultError(res.Code, res.Reason)
	}
	return emit(cmd, g, res, failure, func(w io.Writer) {
		if failure != nil {
			printFailure(w, res.Label, string(res.Status), res.Reason)
			return
		}
		if res.Count == 0 {
			fmt.Fprintln(w, ui.MutedStyle().Render("Nothing to show on "+res.Label))
			return
		}
		if res.Kind == monitor.KindImages {
			fmt.Fprint(w, ui.RenderTable([]string{"REPOSITORY", "TAG", "ID", "SIZE"}, imageRows(res.Items)))
			return
		}
		fmt.Fprint(w, ui.RenderTable([]string{"NAME", "IMAGE", "STATE", "STATUS"}, containerRows(res.Items)))
	})
}

func containerRows(items []metrics.Container) [][]string {
	rows := make([][]string, 0, len(items))
	for _, c := range items {
		state := c.State()
		rows = append(rows, []string{
			c.Name(),
			orDash(c.Image()),
			ui.RenderStatus(orDash(state)),
			orDash(field(c, "Status")),
		})
	}
	return rows
}

func imageRows(items []metrics.Container) [][]string {
	rows := make([][]string, 0, len(items))
	for _, c := range items {
		rows = append(rows, []string{
			orDash(field(c, "Repository")),
			orDash(field(c, "Tag")),
			orDash(field(c, "ID")),
			orDash(field(c, "Size")),
		})
	}
	return rows
}

// field reads a string attribute docker printed for c.
func field(c metrics.Container, key string) string {
	if v, ok := c[key].(string); ok {
		return v
	}
	return ""
}

func newContainerStatsCmd(g *globals) *cobra.Command {
	var resources bool

	cmd := &cobra.Command{
		Use:   "container-stats <vm> [container]",
		Short: "Show live resource usage of containers",
		Long: `Show docker stats for one container, or for every running container
when no name is given. --resources prints docker's raw JSON stats objects.

Examples:
  vmw container-stats web1
  vmw container-stats web1 api
  vmw container-stats web1 --resources --json`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(g)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx := cmd.Context()
			switch {
			case len(args) == 2:
				return emitContainerStats(cmd, g, a.monitor.ContainerStats(ctx, args[0], args[1]))
			case resources:
				return emitResources(cmd, g, a.monitor.ContainerResources(ctx, args[0]))
			default:
				return emitAllStats(cmd, g, a.monitor.AllContainerStats(ctx, args[0]))
			}
		},
	}
	cmd.Flags().BoolVar(&resources, "resources", false, "raw docker stats objects for running containers")
	return cmd
}

// statsCode gives a stats result the error code its status implies.
func statsCode(status metrics.StatsStatus) string {
	switch status {
	case metrics.StatsNotFound:
		return errors.ErrNotFound
	case metrics.StatsParseError:
		return errors.ErrParse
	default:
		return errors.ErrSSH
	}
}

func statsRow(s metrics.ContainerStats) []string {
	return []string{s.Container, s.CPUPercent, s.MemoryUsage, s.MemoryPercent, s.NetworkIO, s.BlockIO}
}

var statsHeaders = []string{"CONTAINER", "CPU", "MEMORY", "MEM %", "NET I/O", "BLOCK I/O"}

func emitContainerStats(cmd *cobra.Command, g *globals, res metrics.ContainerStatsResult) error {
	var failure *JSONError
	if res.Status != metrics.StatsOK {
		failure = resultError(statsCode(res.Status), res.Reason)
	}
	return emit(cmd, g, res, failure, func(w io.Writer) {
		if failure != nil || res.Stats == nil {
			printFailure(w, res.Container+" on "+res.Label, string(res.Status), res.Reason)
			return
		}
		fmt.Fprint(w, ui.RenderTable(statsHeaders, [][]string{statsRow(*res.Stats)}))
	})
}

func emitAllStats(cmd *cobra.Command, g *globals, res monitor.AllStatsResult) error {
	var failure *JSONError
	if res.Status != monitor.StatusOK {
		failure = resultError(res.Code, res.Reason)
	}
	return emit(cmd, g, res, failure, func(w io.Writer) {
		if failure != nil {
			printFailure(w, res.Label, string(res.Status), res.Reason)
			return
		}
		if len(res.Stats) == 0 {
			fmt.Fprintln(w, ui.MutedStyle().Render(orDash(res.Message)))
			return
		}
		rows := make([][]string, 0, len(res.Stats))
		for _, s := range res.Stats {
			rows = append(rows, statsRow(s))
		}
		fmt.Fprint(w, ui.RenderTable(statsHeaders, rows))
	})
}

func emitResources(cmd *cobra.Command, g *globals, res monitor.ResourcesResult) error {
	var failure *JSONError
	if res.Status != monitor.StatusOK {
		failure = resultError(res.Code, res.Reason)
	}
	return emit(cmd, g, res, failure, func(w io.Writer) {
		if failure != nil {
			printFailure(w, res.Label, string(res.Status), res.Reason)
			return
		}
		rows := make([][]string, 0, len(res.Resources))
		for _, c := range res.Resources {
			rows = append(rows, []string{
				orDash(field(c, "Name")),
				orDash(field(c, "CPUPerc")),
				orDash(field(c, "MemUsage")),
				orDash(field(c, "MemPerc")),
				orDash(field(c, "NetIO")),
				orDash(field(c, "BlockIO")),
			})
		}
		fmt.Fprint(w, ui.RenderTable(statsHeaders, rows))
	})
}

func newStartCmd(g *globals) *cobra.Command {
	return newLifecycleCmd(g, "start", "Start a stopped container", (*monitor.Monitor).StartContainer)
}

func newStopCmd(g *globals) *cobra.Command {
	return newLifecycleCmd(g, "stop", "Stop a running container", (*monitor.Monitor).StopContainer)
}

type lifecycleFunc func(m *monitor.Monitor, ctx context.Context, label, name string) monitor.ActionResult

func newLifecycleCmd(g *globals, verb, short string, action lifecycleFunc) *cobra.Command {
	return &cobra.Command{
		Use:   verb + " <vm> <container>",
		Short: short,
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(g)
			if err != nil {
				return err
			}
			defer a.Close()

			res := action(a.monitor, cmd.Context(), args[0], args[1])
			var failure *JSONError
			if res.Status == monitor.StatusFailed || res.Status == monitor.StatusNotFound {
				failure = resultError(res.Code, res.Reason)
			}
			return emit(cmd, g, res, failure, func(w io.Writer) {
				if failure != nil {
					printFailure(w, res.Container+" on "+res.Label, string(res.Status), res.Reason)
					return
				}
				fmt.Fprintf(w, "%s  %s on %s\n", ui.RenderStatus(string(res.Status)), res.Container, res.Label)
			})
		},
	}
}

func newLogsCmd(g *globals) *cobra.Command {
	var lines int

	cmd := &cobra.Command{
		Use:   "logs <vm> <container>",
		Short: "Print the tail of a container's logs",
		Long: `Print the last lines of a container's stdout and stderr.

Examples:
  vmw logs web1 api
  vmw logs web1 api --lines 500`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if lines <= 0 {
				return errors.New(errors.ErrConfig,
					fmt.Sprintf("--lines must be positive, got %d", lines),
					"Try --lines 100")
			}

			a, err := openApp(g)
			if err != nil {
				return err
			}
			defer a.Close()

			res := a.monitor.ContainerLogs(cmd.Context(), args[0], args[1], lines)
			var failure *JSONError
			if res.Status != monitor.StatusOK {
				failure = resultError(res.Code, res.Reason)
			}
			return emit(cmd, g, res, failure, func(w io.Writer) {
				if failure != nil {
					printFailure(w, res.Container+" on "+res.Label, string(res.Status), res.Reason)
					return
				}
				fmt.Fprint(w, res.Logs)
				if !strings.HasSuffix(res.Logs, "\n") && res.Logs != "" {
					fmt.Fprintln(w)
				}
			})
		},
	}
	cmd.Flags().IntVarP(&lines, "lines", "n", monitor.DefaultLogLines, "number of lines from the end")
	return cmd
}
