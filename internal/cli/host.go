package cli

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/rileyhilliard/vmwatch/internal/config"
	"github.com/rileyhilliard/vmwatch/internal/errors"
	"github.com/rileyhilliard/vmwatch/internal/monitor"
	"github.com/rileyhilliard/vmwatch/internal/registry"
	"github.com/rileyhilliard/vmwatch/internal/ui"
	"github.com/rileyhilliard/vmwatch/pkg/sshutil"
)

// promptsEnabled decides whether host add/remove may prompt. Tests turn it off.
var promptsEnabled = stdinIsTerminal

func newHostCmd(g *globals) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "host",
		Short: "Manage the host registry",
		Long: `List, add and remove the VMs vmwatch knows about.

With registry.driver sqlite (the default) hosts are stored in the registry
database, secrets sealed with the key named by registry.seal_key_env. With
the static driver they are written to the hosts list of your config file.`,
	}
	cmd.AddCommand(newHostListCmd(g), newHostAddCmd(g), newHostRemoveCmd(g))
	return cmd
}

func newHostListCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List registered hosts",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(g)
			if err != nil {
				return err
			}
			defer a.Close()

			hosts, err := a.reg.List(cmd.Context())
			if err != nil {
				return err
			}
			data := struct {
				Hosts []registry.Host `json:"vms"`
				Count int             `json:"count"`
			}{hosts, len(hosts)}

			return emit(cmd, g, data, nil, func(w io.Writer) {
				if len(hosts) == 0 {
					fmt.Fprintln(w, ui.MutedStyle().Render("No hosts registered. Add one with 'vmw host add'."))
					return
				}
				rows := make([][]string, 0, len(hosts))
				for _, h := range hosts {
					rows = append(rows, []string{h.Label, h.Address, strconv.Itoa(h.Port), orDash(h.Username), string(h.AuthMethod)})
				}
				fmt.Fprint(w, ui.RenderTable([]string{"LABEL", "ADDRESS", "PORT", "USER", "AUTH"}, rows))
			})
		},
	}
}

func newHostAddCmd(g *globals) *cobra.Command {
	var (
		input    credentialInput
		force    bool
		skipTest bool
	)

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Register a host",
		Long: `Register a VM and its SSH credential.

Without --address on a terminal, vmw offers the hosts from ~/.ssh/config
and prompts for anything missing. The credential is tested before it is
saved unless --skip-test is given.

Examples:
  vmw host add
  vmw host add --label web1 --address 10.0.0.5 --user ubuntu --key-file ~/.ssh/id_ed25519
  echo "$PASS" | vmw host add --label db1 --address 10.0.0.6 --user admin --password-stdin`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if input.incomplete() && promptsEnabled() {
				cancelled, err := promptCredential(&input, cmd.InOrStdin(), cmd.ErrOrStderr())
				if err != nil {
					return err
				}
				if cancelled {
					fmt.Fprintln(cmd.ErrOrStderr(), "Cancelled.")
					return nil
				}
			} else if input.address == "" {
				return errors.New(errors.ErrConfig,
					"--address is required",
					"Pass --address, or run 'vmw host add' in a terminal to be prompted")
			}

			cred, err := input.credential(cmd.InOrStdin())
			if err != nil {
				return err
			}

			a, err := openApp(g)
			if err != nil {
				return err
			}
			defer a.Close()

			if !skipTest {
				res := a.monitor.ValidateCredential(cmd.Context(), cred)
				if res.Status != monitor.StatusSuccess {
					return errors.New(res.Code,
						fmt.Sprintf("Can't connect to '%s': %s", cred.Label, res.Message),
						"Fix the credential, or save it anyway with --skip-test")
				}
			}

			if err := saveHost(cmd, a, cred, force); err != nil {
				return err
			}

			return emit(cmd, g, cred.Host(), nil, func(w io.Writer) {
				fmt.Fprintf(w, "%s Added host '%s' (%s)\n", ui.SuccessStyle().Render(ui.SymbolSuccess), cred.Label, cred.Endpoint())
			})
		},
	}
	input.register(cmd)
	cmd.Flags().BoolVarP(&force, "force", "f", false, "replace a host with the same label")
	cmd.Flags().BoolVar(&skipTest, "skip-test", false, "save without testing the connection")
	return cmd
}

// saveHost writes cred to the SQLite store, or to the config file for the
// static driver.
func saveHost(cmd *cobra.Command, a *app, cred registry.Credential, force bool) error {
	if a.cfg.Registry.Driver == config.DriverStatic {
		if a.path == "" {
			return errors.New(errors.ErrConfig,
				"No config file to add the host to",
				"Run 'vmw init' first")
		}
		if err := config.AddHost(a.path, cred, force); err != nil {
			return errors.WrapWithCode(err, errors.ErrConfig,
				fmt.Sprintf("Couldn't add '%s' to %s", cred.Label, a.path),
				"Use --force to replace an existing entry")
		}
		return nil
	}

	store, err := a.writableStore()
	if err != nil {
		return err
	}
	if !force {
		if _, err := store.Resolve(cmd.Context(), cred.Label); err == nil {
			return errors.New(errors.ErrConfig,
				fmt.Sprintf("Host '%s' already exists", cred.Label),
				"Choose a different label, or use --force to replace it.")
		}
	}
	return store.Put(cmd.Context(), cred)
}

func newHostRemoveCmd(g *globals) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:     "remove <label>",
		Aliases: []string{"rm"},
		Short:   "Remove a registered host",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			label := args[0]

			a, err := openApp(g)
			if err != nil {
				return err
			}
			defer a.Close()

			if _, err := a.reg.Resolve(cmd.Context(), label); err != nil {
				return err
			}

			if !yes && promptsEnabled() {
				confirmed := false
				form := huh.NewForm(
					huh.NewGroup(
						huh.NewConfirm().
							Title(fmt.Sprintf("Remove host '%s'?", label)).
							Value(&confirmed),
					),
				)
				if err := form.Run(); err != nil {
					return errors.WrapWithCode(err, errors.ErrConfig,
						"Failed to get user input",
						"Use --yes to skip the confirmation")
				}
				if !confirmed {
					fmt.Fprintln(cmd.ErrOrStderr(), "Cancelled.")
					return nil
				}
			}

			if err := deleteHost(cmd, a, label); err != nil {
				return err
			}
			return emit(cmd, g, map[string]string{"removed": label}, nil, func(w io.Writer) {
				fmt.Fprintf(w, "%s Removed host '%s'\n", ui.SuccessStyle().Render(ui.SymbolSuccess), label)
			})
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "don't ask for confirmation")
	return cmd
}

func deleteHost(cmd *cobra.Command, a *app, label string) error {
	if a.cfg.Registry.Driver == config.DriverStatic {
		removed, err := config.RemoveHost(a.path, label)
		if err != nil {
			return errors.WrapWithCode(err, errors.ErrConfig,
				fmt.Sprintf("Couldn't remove '%s' from %s", label, a.path),
				"Check that the file is writable")
		}
		if !removed {
			return errors.NotFound(label)
		}
		return nil
	}

	store, err := a.writableStore()
	if err != nil {
		return err
	}
	return store.Delete(cmd.Context(), label)
}

// promptCredential fills the fields the flags left empty. It reports
// cancelled when the user backs out of the picker.
func promptCredential(input *credentialInput, in io.Reader, out io.Writer) (cancelled bool, err error) {
	if input.address == "" {
		// An unreadable ~/.ssh/config just means manual entry.
		entries, _ := sshutil.ParseSSHConfig()
		choice, manual, err := ui.PickSSHHost(hostChoices(entries), in, out)
		if err != nil {
			return false, err
		}
		if choice == nil && !manual {
			return true, nil
		}
		if choice != nil {
			input.address = choice.Alias
			if input.label == "" {
				input.label = choice.Alias
			}
			if input.user == "" {
				input.user = choice.User
			}
			if input.port == 0 && choice.Port != "" {
				input.port, _ = strconv.Atoi(choice.Port)
			}
		}
	}

	auth := string(input.inferAuth())
	fields := []huh.Field{
		huh.NewInput().
			Title("Address").
			Description("IP, hostname or ~/.ssh/config alias").
			Value(&input.address).
			Validate(required("address")),
		huh.NewInput().
			Title("Label").
			Description("Name used in commands and alerts (defaults to the address)").
			Value(&input.label),
		huh.NewInput().
			Title("Username").
			Value(&input.user),
		huh.NewSelect[string]().
			Title("Auth method").
			Options(
				huh.NewOption("ssh-agent", string(registry.AuthAgent)),
				huh.NewOption("Private key file", string(registry.AuthKey)),
				huh.NewOption("Password", string(registry.AuthPassword)),
			).
			Value(&auth),
	}
	if err := huh.NewForm(huh.NewGroup(fields...)).Run(); err != nil {
		return false, promptError(err)
	}
	input.auth = auth

	var secret []huh.Field
	switch registry.AuthMethod(auth) {
	case registry.AuthKey:
		if input.keyFile == "" {
			input.keyFile = defaultKeyFile()
		}
		secret = append(secret, huh.NewInput().
			Title("Private key file").
			Value(&input.keyFile).
			Validate(required("key file")))
	case registry.AuthPassword:
		if !input.passwordStdin {
			secret = append(secret, huh.NewInput().
				Title("Password").
				EchoMode(huh.EchoModePassword).
				Value(&input.password).
				Validate(required("password")))
		}
	}
	if len(secret) > 0 {
		if err := huh.NewForm(huh.NewGroup(secret...)).Run(); err != nil {
			return false, promptError(err)
		}
	}
	return false, nil
}

func required(name string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("%s is required", name)
		}
		return nil
	}
}

func promptError(err error) error {
	return errors.WrapWithCode(err, errors.ErrConfig,
		"Failed to get user input",
		"Pass the credential with flags instead: vmw host add --help")
}

// hostChoices converts parsed ~/.ssh/config entries for the picker.
func hostChoices(entries []sshutil.SSHHostEntry) []ui.HostChoice {
	choices := make([]ui.HostChoice, 0, len(entries))
	for _, e := range entries {
		choices = append(choices, ui.HostChoice{
			Alias:    e.Alias,
			Hostname: e.Hostname,
			User:     e.User,
			Port:     e.Port,
		})
	}
	return choices
}

// defaultKeyFile suggests the first conventional key that exists.
func defaultKeyFile() string {
	for _, name := range []string{"id_ed25519", "id_ecdsa", "id_rsa"} {
		path := "~/.ssh/" + name
		if _, err := os.Stat(config.ExpandTilde(path)); err == nil {
			return path
		}
	}
	return "~/.ssh/id_ed25519"
}
