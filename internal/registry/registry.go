// Package registry resolves host labels to SSH credentials. It is the only
// place credentials live; callers fetch them per operation and never keep them.
package registry

import (
	"context"
	"fmt"
	"net"
	"strings"

	"github.com/rileyhilliard/vmwatch/internal/errors"
)

// AuthMethod selects how a credential authenticates.
type AuthMethod string

const (
	AuthPassword AuthMethod = "password"
	AuthKey      AuthMethod = "key"
	AuthAgent    AuthMethod = "agent"
)

// DefaultPort is used when a credential has no port.
const DefaultPort = 22

// Credential is everything needed to open an SSH session to one host.
type Credential struct {
	Label      string     `yaml:"label" mapstructure:"label"`
	Address    string     `yaml:"address" mapstructure:"address"`
	Port       int        `yaml:"port" mapstructure:"port"`
	Username   string     `yaml:"username" mapstructure:"username"`
	AuthMethod AuthMethod `yaml:"auth_method" mapstructure:"auth_method"`
	Password   string     `yaml:"password,omitempty" mapstructure:"password"`
	PrivateKey string     `yaml:"private_key,omitempty" mapstructure:"private_key"`
}

// Host is the secret-free view of a Credential.
type Host struct {
	Label      string     `json:"label"`
	Address    string     `json:"ip"`
	Port       int        `json:"port"`
	Username   string     `json:"username"`
	AuthMethod AuthMethod `json:"auth_method"`
}

// Registry resolves labels to credentials and lists known hosts.
type Registry interface {
	// Resolve returns the credential for label, or a NOT_FOUND-coded error.
	Resolve(ctx context.Context, label string) (Credential, error)
	// List returns every host ordered by label.
	List(ctx context.Context) ([]Host, error)
}

// Store is a Registry that can also be written to.
type Store interface {
	Registry
	Put(ctx context.Context, cred Credential) error
	Delete(ctx context.Context, label string) error
	Close() error
}

// Host returns the secret-free view of c.
func (c Credential) Host() Host {
	return Host{
		Label:      c.Label,
		Address:    c.Address,
		Port:       c.EffectivePort(),
		Username:   c.Username,
		AuthMethod: c.AuthMethod,
	}
}

// EffectivePort returns Port or DefaultPort when unset.
func (c Credential) EffectivePort() int {
	if c.Port <= 0 {
		return DefaultPort
	}
	return c.Port
}

// Endpoint returns address:port.
func (c Credential) Endpoint() string {
	return net.JoinHostPort(c.Address, fmt.Sprint(c.EffectivePort()))
}

// Normalize fills defaults and maps legacy auth method names.
func (c Credential) Normalize() Credential {
	c.Label = strings.TrimSpace(c.Label)
	c.Address = strings.TrimSpace(c.Address)
	c.Port = c.EffectivePort()
	switch strings.ToLower(string(c.AuthMethod)) {
	case "ssh_key", "key", "publickey":
		c.AuthMethod = AuthKey
	case "password":
		c.AuthMethod = AuthPassword
	case "agent":
		c.AuthMethod = AuthAgent
	case "":
		switch {
		case c.PrivateKey != "":
			c.AuthMethod = AuthKey
		case c.Password != "":
			c.AuthMethod = AuthPassword
		default:
			c.AuthMethod = AuthAgent
		}
	}
	return c
}

// Validate checks that c can be used to dial.
func (c Credential) Validate() error {
	var problems []string
	if c.Label == "" {
		problems = append(problems, "label is required")
	}
	if c.Address == "" {
		problems = append(problems, "address is required")
	}
	if c.Port < 0 || c.Port > 65535 {
		problems = append(problems, fmt.Sprintf("port %d is out of range", c.Port))
	}
	switch c.AuthMethod {
	case AuthPassword:
		if c.Password == "" {
			problems = append(problems, "password auth needs a password")
		}
	case AuthKey:
		if c.PrivateKey == "" {
			problems = append(problems, "key auth needs a private key")
		}
	case AuthAgent:
	default:
		problems = append(problems, fmt.Sprintf("unknown auth method %q", c.AuthMethod))
	}

	if len(problems) > 0 {
		name := c.Label
		if name == "" {
			name = c.Address
		}
		return errors.New(errors.ErrConfig,
			fmt.Sprintf("Invalid credential for '%s': %s", name, strings.Join(problems, "; ")),
			"Supported auth methods: password, key, agent")
	}
	return nil
}
