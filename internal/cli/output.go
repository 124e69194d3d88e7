package cli

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/rileyhilliard/vmwatch/internal/errors"
	"github.com/rileyhilliard/vmwatch/internal/ui"
)

// emit writes data as a JSON envelope or through human. A non-nil failure
// marks the envelope unsuccessful and makes the command exit 1 once the
// output is written.
func emit(cmd *cobra.Command, g *globals, data interface{}, failure *JSONError, human func(w io.Writer)) error {
	w := cmd.OutOrStdout()
	if g.jsonOut {
		var err error
		if failure == nil {
			err = WriteJSONSuccess(w, data)
		} else {
			err = WriteJSONFailure(w, data, failure)
		}
		if err != nil {
			return err
		}
	} else {
		human(w)
	}
	if failure != nil {
		return errors.NewExitError(1)
	}
	return nil
}

// printFailure renders a result's status and reason on one line.
func printFailure(w io.Writer, label, status, reason string) {
	fmt.Fprintf(w, "%s  %s\n", ui.RenderStatus(status), label)
	if reason != "" {
		fmt.Fprintf(w, "  %s\n", ui.MutedStyle().Render(reason))
	}
}

func formatPercent(v float64) string {
	return strconv.FormatFloat(v, 'f', 1, 64) + "%"
}

func formatMB(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64) + " MB"
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04:05")
}

// orDash keeps empty table cells visible.
func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
