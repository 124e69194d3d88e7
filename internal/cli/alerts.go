package cli

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/rileyhilliard/vmwatch/internal/alerts"
	"github.com/rileyhilliard/vmwatch/internal/errors"
	"github.com/rileyhilliard/vmwatch/internal/ui"
	"github.com/rileyhilliard/vmwatch/internal/util"
)

// alertsExitCode is returned by --fail when any rule fired.
const alertsExitCode = 2

// alertsReport is the --json payload of `vmw alerts`.
type alertsReport struct {
	alerts.FleetReport
	Counts   map[alerts.Status]int `json:"counts"`
	Alerting int                   `json:"alerting"`
	Notified bool                  `json:"notified"`
}

func newAlertsCmd(g *globals) *cobra.Command {
	var (
		th   thresholdFlags
		send bool
		fail bool
	)

	cmd := &cobra.Command{
		Use:   "alerts [vm]",
		Short: "Evaluate alert thresholds across the fleet",
		Long: `Evaluate host RAM and disk plus per-container CPU, RAM and block I/O
against the configured thresholds. With a VM label only that host is checked.

--send delivers the alerting records through the configured notification
channel (SMTP when notify.email is set, the log otherwise).

Examples:
  vmw alerts
  vmw alerts web1 --ram 60
  vmw alerts --send --fail`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(g)
			if err != nil {
				return err
			}
			defer a.Close()

			limits, err := th.apply(cmd, a.cfg.Thresholds)
			if err != nil {
				return err
			}

			var spinner *ui.Spinner
			if !g.jsonOut && stderrIsTerminal() {
				spinner = ui.NewSpinner(cmd.ErrOrStderr(), "Evaluating alerts")
				spinner.Start()
			}

			ctx := cmd.Context()
			var report alerts.FleetReport
			if len(args) == 1 {
				report = singleHostReport(a, cmd, args[0], limits)
			} else {
				report = a.engine.EvaluateFleet(ctx, limits)
			}

			firing := alerts.Alerting(report.Records)
			if report.Error != "" {
				if spinner != nil {
					spinner.Fail("Evaluation failed")
				}
				return errors.New(errors.ErrRegistry, "Alert evaluation failed: "+report.Error,
					"Check the registry settings in your .vmwatch.yaml")
			}

			out := alertsReport{
				FleetReport: report,
				Counts:      alerts.CountByStatus(report.Records),
				Alerting:    len(firing),
			}

			if send && len(firing) > 0 {
				if spinner != nil {
					spinner.SetLabel("Sending " + util.Count(len(firing), "alert", "alerts"))
				}
				if err := a.sink.Send(ctx, firing); err != nil {
					if spinner != nil {
						spinner.Fail("Notification failed")
					}
					return err
				}
				out.Notified = true
			}
			if spinner != nil {
				spinner.Success(util.Count(report.Hosts, "host", "hosts") + " checked")
			}

			if err := emit(cmd, g, out, nil, func(w io.Writer) {
				printAlerts(w, out)
			}); err != nil {
				return err
			}
			if fail && len(firing) > 0 {
				return errors.NewExitError(alertsExitCode)
			}
			return nil
		},
	}
	th.register(cmd)
	cmd.Flags().BoolVar(&send, "send", false, "deliver alerting records through the notification channel")
	cmd.Flags().BoolVar(&fail, "fail", false, fmt.Sprintf("exit %d when any rule fires", alertsExitCode))
	return cmd
}

// singleHostReport wraps one host's records in a report so both modes print
// the same way.
func singleHostReport(a *app, cmd *cobra.Command, label string, th alerts.Thresholds) alerts.FleetReport {
	started := time.Now()
	records := a.engine.EvaluateHost(cmd.Context(), label, th)
	return alerts.FleetReport{
		RunID:      uuid.NewString(),
		StartedAt:  started,
		FinishedAt: time.Now(),
		Hosts:      1,
		Records:    records,
	}
}

func printAlerts(w io.Writer, r alertsReport) {
	if len(r.Records) == 0 {
		fmt.Fprintln(w, ui.MutedStyle().Render("No hosts registered. Add one with 'vmw host add'."))
		return
	}

	rows := make([][]string, 0, len(r.Records))
	for _, rec := range r.Records {
		rows = append(rows, []string{
			rec.Label,
			orDash(rec.Container),
			string(rec.Type),
			ui.RenderStatus(string(rec.Status)),
			formatValue(rec.CurrentValue, rec.Unit),
			formatValue(rec.Threshold, rec.Unit),
			rec.Message,
		})
	}
	fmt.Fprint(w, ui.RenderTable([]string{"VM", "CONTAINER", "RULE", "STATUS", "VALUE", "LIMIT", "MESSAGE"}, rows))
	fmt.Fprintln(w)
	fmt.Fprintln(w, summarizeCounts(r.Counts))

	switch {
	case r.Alerting == 0:
		fmt.Fprintln(w, ui.SuccessStyle().Render(ui.SymbolSuccess+" No alerts"))
	case r.Notified:
		fmt.Fprintln(w, ui.WarningStyle().Render(fmt.Sprintf("%s %s sent", ui.SymbolFail, util.Count(r.Alerting, "alert", "alerts"))))
	default:
		fmt.Fprintln(w, ui.ErrorStyle().Render(fmt.Sprintf("%s %s", ui.SymbolFail, util.Count(r.Alerting, "alert", "alerts"))))
	}
}

func formatValue(v float64, unit string) string {
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if unit == alerts.UnitMB {
		return s + " " + unit
	}
	return s + unit
}

// summarizeCounts renders "alert=2 ok=5" in a stable order.
func summarizeCounts(counts map[alerts.Status]int) string {
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, string(k))
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%d", k, counts[alerts.Status(k)]))
	}
	return ui.MutedStyle().Render(strings.Join(parts, " "))
}
