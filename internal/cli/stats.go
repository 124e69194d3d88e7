package cli

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/rileyhilliard/vmwatch/internal/metrics"
	"github.com/rileyhilliard/vmwatch/internal/monitor"
	"github.com/rileyhilliard/vmwatch/internal/ui"
)

const usageBarWidth = 20

func newStatsCmd(g *globals) *cobra.Command {
	var refresh bool

	cmd := &cobra.Command{
		Use:   "stats <vm>",
		Short: "Show CPU, RAM, disk and uptime for a VM",
		Long: `Fetch host metrics for a registered VM.

The values come from top, free, df and uptime run over SSH.

Examples:
  vmw stats web1
  vmw stats web1 --json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(g)
			if err != nil {
				return err
			}
			defer a.Close()

			fetch := a.monitor.HostMetrics
			if refresh {
				fetch = a.monitor.RefreshHostMetrics
			}
			res := fetch(cmd.Context(), args[0])

			var failure *JSONError
			if res.Status != metrics.HostConnected {
				failure = resultError(res.Code, res.Reason)
			}
			return emit(cmd, g, res, failure, func(w io.Writer) {
				printHostResult(w, res, a.cfg.Thresholds.HostRAM, a.cfg.Thresholds.HostDisk)
			})
		},
	}
	cmd.Flags().BoolVar(&refresh, "refresh", false, "bypass the metrics cache")
	return cmd
}

func printHostResult(w io.Writer, res metrics.HostResult, ramLimit, diskLimit float64) {
	if res.Status != metrics.HostConnected || res.Snapshot == nil {
		printFailure(w, res.Label, string(res.Status), res.Reason)
		return
	}
	s := res.Snapshot
	fmt.Fprintf(w, "%s  %s\n\n", ui.RenderStatus(string(res.Status)), ui.HeaderStyle().Render(s.Label))
	fmt.Fprint(w, ui.KeyValues([][2]string{
		{"address", s.Address},
		{"cpu", formatPercent(s.CPUPercent)},
		{"ram", fmt.Sprintf("%s  %d / %d MB", ui.RenderUsageBar(s.RAM.UsagePercent, usageBarWidth, ramLimit), s.RAM.UsedMB, s.RAM.TotalMB)},
		{"disk", fmt.Sprintf("%s  %s / %s", ui.RenderUsageBar(diskPercent(s.Disk.UsePercent), usageBarWidth, diskLimit), s.Disk.Used, s.Disk.Size)},
		{"uptime", orDash(s.Uptime)},
		{"fetched", formatTime(s.FetchedAt)},
	}))
}

// diskPercent reads df's "75%" column. Unparseable values read as 0.
func diskPercent(s string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSuffix(strings.TrimSpace(s), "%"), 64)
	if err != nil {
		return 0
	}
	return v
}

func newTestCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "test <vm>",
		Short: "Check that a VM is reachable over SSH",
		Long: `Dial a registered VM and run an echo round trip.

Examples:
  vmw test web1`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(g)
			if err != nil {
				return err
			}
			defer a.Close()

			res := a.monitor.TestConnection(cmd.Context(), args[0])
			return emitConnection(cmd, g, res)
		},
	}
}

func emitConnection(cmd *cobra.Command, g *globals, res monitor.ConnectionResult) error {
	var failure *JSONError
	if res.Status != monitor.StatusSuccess {
		failure = resultError(res.Code, res.Message)
	}
	return emit(cmd, g, res, failure, func(w io.Writer) {
		fmt.Fprintf(w, "%s  %s  %s", ui.RenderStatus(string(res.Status)), res.Label, res.Message)
		if res.Latency > 0 {
			fmt.Fprintf(w, "  %s", ui.MutedStyle().Render(res.Latency.Round(time.Millisecond).String()))
		}
		fmt.Fprintln(w)
	})
}

func newValidateCmd(g *globals) *cobra.Command {
	var input credentialInput

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check an SSH credential without saving it",
		Long: `Dial a host with the given credential and run an echo round trip.
Nothing is written to the registry.

Examples:
  vmw validate --address 10.0.0.5 --user ubuntu --auth key --key-file ~/.ssh/id_ed25519
  echo "$PASS" | vmw validate --address 10.0.0.5 --user ubuntu --password-stdin`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cred, err := input.credential(cmd.InOrStdin())
			if err != nil {
				return err
			}

			a, err := openApp(g)
			if err != nil {
				return err
			}
			defer a.Close()

			res := a.monitor.ValidateCredential(cmd.Context(), cred)
			return emitConnection(cmd, g, res)
		},
	}
	input.register(cmd)
	return cmd
}
