package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/rileyhilliard/vmwatch/internal/config"
	"github.com/rileyhilliard/vmwatch/internal/errors"
	"github.com/rileyhilliard/vmwatch/internal/ui"
)

func newInitCmd(g *globals) *cobra.Command {
	var (
		force  bool
		global bool
	)

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create a .vmwatch.yaml configuration",
		Long: `Write a commented config file with the default settings.

The file goes to ./.vmwatch.yaml, or to ~/.config/vmwatch/config.yaml with
--global.

Examples:
  vmw init
  vmw init --global
  vmw init --force`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := initPath(global)
			if err != nil {
				return err
			}

			if _, err := os.Stat(path); err == nil && !force {
				if !promptsEnabled() {
					return errors.New(errors.ErrConfig,
						fmt.Sprintf("Config file already exists: %s", path),
						"Use --force to overwrite")
				}
				overwrite := false
				form := huh.NewForm(
					huh.NewGroup(
						huh.NewConfirm().
							Title(fmt.Sprintf("Config file '%s' already exists. Overwrite?", path)).
							Value(&overwrite),
					),
				)
				if err := form.Run(); err != nil {
					return errors.WrapWithCode(err, errors.ErrConfig,
						"Failed to get user input",
						"Try running with --force to overwrite")
				}
				if !overwrite {
					fmt.Fprintln(cmd.ErrOrStderr(), "Cancelled.")
					return nil
				}
			}

			if err := config.WriteDefault(path, true); err != nil {
				return errors.WrapWithCode(err, errors.ErrConfig,
					fmt.Sprintf("Couldn't write %s", path),
					"Check that the directory is writable")
			}

			cfg := config.DefaultConfig()
			data := map[string]string{"path": path, "summary": config.Summary(cfg)}
			return emit(cmd, g, data, nil, func(w io.Writer) {
				fmt.Fprintf(w, "%s Created %s\n", ui.SuccessStyle().Render(ui.SymbolSuccess), path)
				fmt.Fprintf(w, "  %s\n\n", ui.MutedStyle().Render(config.Summary(cfg)))
				fmt.Fprintln(w, "Next: register a VM with 'vmw host add'")
			})
		},
	}
	cmd.Flags().BoolVarP(&force, "force", "f", false, "overwrite existing config")
	cmd.Flags().BoolVar(&global, "global", false, "write the global config in ~/.config/vmwatch")
	return cmd
}

func initPath(global bool) (string, error) {
	if !global {
		return filepath.Join(".", config.ConfigFileName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", errors.WrapWithCode(err, errors.ErrConfig,
			"Can't find your home directory",
			"Set HOME, or run 'vmw init' without --global")
	}
	return filepath.Join(home, config.GlobalConfigDir, config.GlobalConfigFile), nil
}
