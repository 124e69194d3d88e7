package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/rileyhilliard/vmwatch/internal/alerts"
	"github.com/rileyhilliard/vmwatch/internal/errors"
)

// thresholdFlags overrides the configured alert limits for one run.
type thresholdFlags struct {
	ram, disk, containerCPU, containerRAM, blockIO float64
}

func (f *thresholdFlags) register(cmd *cobra.Command) {
	fs := cmd.Flags()
	fs.Float64Var(&f.ram, "ram", 0, "host RAM threshold in percent")
	fs.Float64Var(&f.disk, "disk", 0, "host disk threshold in percent")
	fs.Float64Var(&f.containerCPU, "container-cpu", 0, "container CPU threshold in percent")
	fs.Float64Var(&f.containerRAM, "container-ram", 0, "container RAM threshold in percent")
	fs.Float64Var(&f.blockIO, "container-block-io", 0, "container block I/O threshold in MB")
}

// apply returns base with every flag the user set replaced.
func (f *thresholdFlags) apply(cmd *cobra.Command, base alerts.Thresholds) (alerts.Thresholds, error) {
	overrides := []struct {
		name   string
		value  float64
		target *float64
		max    float64
	}{
		{"ram", f.ram, &base.HostRAM, 100},
		{"disk", f.disk, &base.HostDisk, 100},
		{"container-cpu", f.containerCPU, &base.ContainerCPU, 100},
		{"container-ram", f.containerRAM, &base.ContainerRAM, 100},
		{"container-block-io", f.blockIO, &base.ContainerBlockIOMB, 0},
	}

	for _, o := range overrides {
		if !cmd.Flags().Changed(o.name) {
			continue
		}
		if o.value < 0 || (o.max > 0 && o.value > o.max) {
			return base, errors.New(errors.ErrConfig,
				fmt.Sprintf("--%s %g is out of range", o.name, o.value),
				"Percent thresholds go from 0 to 100; block I/O must not be negative")
		}
		*o.target = o.value
	}
	return base, nil
}

// stdinIsTerminal reports whether prompts can be shown.
func stdinIsTerminal() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

// stderrIsTerminal reports whether progress animations can be drawn.
func stderrIsTerminal() bool {
	return term.IsTerminal(int(os.Stderr.Fd()))
}
