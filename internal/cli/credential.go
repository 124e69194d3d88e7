package cli

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rileyhilliard/vmwatch/internal/config"
	"github.com/rileyhilliard/vmwatch/internal/errors"
	"github.com/rileyhilliard/vmwatch/internal/registry"
)

// credentialInput collects a credential from flags. Secrets never come from
// flag values: passwords are read from stdin and keys from a file.
type credentialInput struct {
	label         string
	address       string
	port          int
	user          string
	auth          string
	keyFile       string
	passwordStdin bool

	// password is set by the interactive prompt.
	password string
}

func (c *credentialInput) register(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringVar(&c.label, "label", "", "host label (defaults to the address)")
	f.StringVar(&c.address, "address", "", "IP, hostname or ~/.ssh/config alias")
	f.IntVar(&c.port, "port", 0, "SSH port (default 22)")
	f.StringVar(&c.user, "user", "", "SSH username")
	f.StringVar(&c.auth, "auth", "", "auth method: password, key or agent (inferred when omitted)")
	f.StringVar(&c.keyFile, "key-file", "", "private key file for --auth key")
	f.BoolVar(&c.passwordStdin, "password-stdin", false, "read the password from stdin")
}

// inferAuth picks the auth method from the secret the user supplied.
func (c *credentialInput) inferAuth() registry.AuthMethod {
	switch {
	case c.auth != "":
		return registry.AuthMethod(strings.ToLower(c.auth))
	case c.keyFile != "":
		return registry.AuthKey
	case c.passwordStdin, c.password != "":
		return registry.AuthPassword
	default:
		return registry.AuthAgent
	}
}

// incomplete reports whether the flags leave out the address or the secret
// the auth method needs.
func (c *credentialInput) incomplete() bool {
	switch c.inferAuth() {
	case registry.AuthPassword:
		if !c.passwordStdin && c.password == "" {
			return true
		}
	case registry.AuthKey:
		if c.keyFile == "" {
			return true
		}
	}
	return c.address == ""
}

// credential builds a normalized, validated credential.
func (c *credentialInput) credential(in io.Reader) (registry.Credential, error) {
	cred := registry.Credential{
		Label:      c.label,
		Address:    c.address,
		Port:       c.port,
		Username:   c.user,
		AuthMethod: c.inferAuth(),
	}
	if cred.Label == "" {
		cred.Label = cred.Address
	}

	if c.keyFile != "" {
		key, err := os.ReadFile(config.ExpandTilde(c.keyFile))
		if err != nil {
			return cred, errors.WrapWithCode(err, errors.ErrConfig,
				fmt.Sprintf("Can't read key file %s", c.keyFile),
				"Check the path passed to --key-file")
		}
		cred.PrivateKey = string(key)
	}

	if c.password != "" {
		cred.Password = c.password
	} else if c.passwordStdin {
		password, err := readSecretLine(in)
		if err != nil {
			return cred, err
		}
		cred.Password = password
	}

	cred = cred.Normalize()
	if err := cred.Validate(); err != nil {
		return cred, err
	}
	return cred, nil
}

// readSecretLine reads the first line of in without its line ending.
func readSecretLine(in io.Reader) (string, error) {
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", errors.WrapWithCode(err, errors.ErrConfig,
			"Failed to read the password from stdin",
			"Pipe the password in: echo \"$PASS\" | vmw ... --password-stdin")
	}
	line = strings.TrimRight(line, "\r\n")
	if line == "" {
		return "", errors.New(errors.ErrConfig,
			"No password on stdin",
			"Pipe the password in: echo \"$PASS\" | vmw ... --password-stdin")
	}
	return line, nil
}
