package sshutil

import (
	"context"
	stderrors "errors"
	"fmt"
	"log"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/agent"

	"github.com/rileyhilliard/vmwatch/internal/errors"
)

// DefaultConnectTimeout bounds the TCP dial plus SSH handshake.
const DefaultConnectTimeout = 30 * time.Second

// Client wraps an SSH connection with additional metadata.
type Client struct {
	*ssh.Client
	Host    string // Label or alias used to connect
	Address string // Resolved host:port
}

// Target describes one host and the credential used to reach it. Exactly
// one of Password, PrivateKey or UseAgent is expected to be set.
type Target struct {
	Label      string
	Address    string // hostname, IP or ~/.ssh/config alias
	Port       int
	User       string
	Password   string
	PrivateKey []byte
	UseAgent   bool
}

// Options controls dialing behavior.
type Options struct {
	ConnectTimeout time.Duration
	// KnownHostsPath is the trust-on-first-use store. Defaults to ~/.ssh/known_hosts.
	KnownHostsPath string
	// InsecureIgnoreHostKey disables host key verification entirely.
	InsecureIgnoreHostKey bool
	// ResolveAliases applies HostName/Port/User from ~/.ssh/config when the
	// address matches a Host entry.
	ResolveAliases bool
}

// WarningHandler is a function that handles warning messages.
// If nil, warnings are printed to stderr via log.Printf.
var WarningHandler func(message string)

func emitWarning(message string) {
	if WarningHandler != nil {
		WarningHandler(message)
	} else {
		log.Printf("Warning: %s", message)
	}
}

var insecureWarningOnce sync.Once

// Dial establishes an authenticated SSH connection to target. The context
// bounds the TCP dial and handshake together with opts.ConnectTimeout.
func Dial(ctx context.Context, target Target, opts Options) (*Client, error) {
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = DefaultConnectTimeout
	}
	name := target.Label
	if name == "" {
		name = target.Address
	}

	settings := resolveSSHSettings(target, opts.ResolveAliases)

	config, err := buildSSHConfig(target, settings, opts)
	if err != nil {
		var vErr *errors.Error
		if stderrors.As(err, &vErr) {
			return nil, err
		}
		return nil, errors.WrapWithCode(err, errors.ErrSSH,
			fmt.Sprintf("Couldn't set up SSH for '%s'", name),
			"Check the stored credential for this host")
	}

	dialCtx, cancel := context.WithTimeout(ctx, opts.ConnectTimeout)
	defer cancel()

	address := settings.address()
	var d net.Dialer
	conn, err := d.DialContext(dialCtx, "tcp", address)
	if err != nil {
		return nil, errors.WrapWithCode(err, errors.Classify(err),
			fmt.Sprintf("Can't reach '%s' at %s", name, address),
			suggestionForDialError(err))
	}

	// ssh.NewClientConn has no context; a deadline on the conn bounds it.
	deadline, _ := dialCtx.Deadline()
	_ = conn.SetDeadline(deadline)
	stop := context.AfterFunc(dialCtx, func() { _ = conn.Close() })

	sshConn, chans, reqs, err := ssh.NewClientConn(conn, address, config)
	stop()
	if err != nil {
		conn.Close()

		var hostKeyErr *HostKeyMismatchError
		if stderrors.As(err, &hostKeyErr) {
			return nil, errors.WrapWithCode(hostKeyErr, errors.ErrHostKey,
				hostKeyErr.Error(),
				hostKeyErr.Suggestion())
		}

		return nil, errors.WrapWithCode(err, errors.Classify(err),
			fmt.Sprintf("SSH handshake with '%s' didn't go through", name),
			suggestionForHandshakeError(err))
	}
	_ = conn.SetDeadline(time.Time{})

	return &Client{
		Client:  ssh.NewClient(sshConn, chans, reqs),
		Host:    name,
		Address: address,
	}, nil
}

// Close closes the SSH connection.
func (c *Client) Close() error {
	if c.Client == nil {
		return nil
	}
	return c.Client.Close()
}

// GetHost returns the label or alias used to connect.
func (c *Client) GetHost() string {
	return c.Host
}

// GetAddress returns the resolved host:port address.
func (c *Client) GetAddress() string {
	return c.Address
}

// Alive checks the connection with a keepalive global request.
func (c *Client) Alive() bool {
	if c.Client == nil {
		return false
	}
	_, _, err := c.Client.SendRequest("keepalive@openssh.com", true, nil)
	return err == nil
}

// sshSettings holds resolved SSH connection parameters.
type sshSettings struct {
	hostname string
	port     string
	user     string
}

func (s *sshSettings) address() string {
	return net.JoinHostPort(s.hostname, s.port)
}

// resolveSSHSettings fills in connection parameters from the target, then
// from ~/.ssh/config for anything the target leaves empty.
func resolveSSHSettings(target Target, useSSHConfig bool) *sshSettings {
	settings := &sshSettings{
		hostname: target.Address,
		port:     "22",
		user:     target.User,
	}
	if target.Port > 0 {
		settings.port = strconv.Itoa(target.Port)
	}

	if !useSSHConfig {
		return settings
	}

	entry, ok := LookupHost(filepath.Join(homeDir(), ".ssh", "config"), target.Address)
	if !ok {
		return settings
	}
	if entry.Hostname != "" {
		settings.hostname = entry.Hostname
	}
	if target.Port == 0 && entry.Port != "" {
		settings.port = entry.Port
	}
	if settings.user == "" && entry.User != "" {
		settings.user = entry.User
	}
	return settings
}

// buildSSHConfig creates the client config for the target's auth method.
func buildSSHConfig(target Target, settings *sshSettings, opts Options) (*ssh.ClientConfig, error) {
	var authMethods []ssh.AuthMethod

	switch {
	case len(target.PrivateKey) > 0:
		signer, err := ParsePrivateKey(target.Label, target.PrivateKey)
		if err != nil {
			return nil, err
		}
		authMethods = append(authMethods, ssh.PublicKeys(signer))
	case target.Password != "":
		authMethods = append(authMethods,
			ssh.Password(target.Password),
			ssh.KeyboardInteractive(passwordChallenge(target.Password)))
	case target.UseAgent:
		if agentAuth := sshAgentAuth(); agentAuth != nil {
			authMethods = append(authMethods, agentAuth)
		}
	}

	if len(authMethods) == 0 {
		return nil, errors.New(errors.ErrAuth,
			fmt.Sprintf("No usable SSH auth method for '%s'", target.Label),
			"Store a password or private key for this host, or load a key into ssh-agent (ssh-add -l)")
	}

	if settings.user == "" {
		settings.user = currentUser()
	}

	var hostKeyCallback ssh.HostKeyCallback
	if opts.InsecureIgnoreHostKey {
		insecureWarningOnce.Do(func() {
			emitWarning("host key checking is disabled (ssh.strict_host_keys=false); connections are open to MITM")
		})
		hostKeyCallback = ssh.InsecureIgnoreHostKey() //nolint:gosec // explicitly disabled in config
	} else {
		knownHostsPath := opts.KnownHostsPath
		if knownHostsPath == "" {
			knownHostsPath = filepath.Join(homeDir(), ".ssh", "known_hosts")
		}
		var err error
		hostKeyCallback, err = TOFUHostKeyCallback(expandPath(knownHostsPath))
		if err != nil {
			return nil, errors.WrapWithCode(err, errors.ErrConfig,
				"Failed to load known_hosts",
				fmt.Sprintf("Check that %s is readable", knownHostsPath))
		}
	}

	return &ssh.ClientConfig{
		User:            settings.user,
		Auth:            authMethods,
		HostKeyCallback: hostKeyCallback,
		Timeout:         opts.ConnectTimeout,
	}, nil
}

// passwordChallenge answers keyboard-interactive prompts with the stored
// password, for servers that disable the plain password method.
func passwordChallenge(password string) ssh.KeyboardInteractiveChallenge {
	return func(user, instruction string, questions []string, echos []bool) ([]string, error) {
		answers := make([]string, len(questions))
		for i := range questions {
			answers[i] = password
		}
		return answers, nil
	}
}

var (
	agentConn     net.Conn
	agentClient   agent.ExtendedAgent
	agentConnOnce sync.Once
)

// sshAgentAuth returns an auth method using the SSH agent if available.
// The agent connection is reused across multiple SSH connections.
// Returns nil if the agent has no keys loaded.
func sshAgentAuth() ssh.AuthMethod {
	socket := os.Getenv("SSH_AUTH_SOCK")
	if socket == "" {
		return nil
	}

	agentConnOnce.Do(func() {
		conn, err := net.Dial("unix", socket)
		if err != nil {
			return
		}
		agentConn = conn
		agentClient = agent.NewClient(conn)
	})

	if agentClient == nil {
		return nil
	}

	signers, err := agentClient.Signers()
	if err != nil || len(signers) == 0 {
		return nil
	}

	return ssh.PublicKeysCallback(agentClient.Signers)
}

// CloseAgent closes the SSH agent connection if one is open.
func CloseAgent() {
	if agentConn != nil {
		agentConn.Close()
	}
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return os.Getenv("HOME")
	}
	return home
}

func currentUser() string {
	if user := os.Getenv("USER"); user != "" {
		return user
	}
	return "root"
}

func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		return filepath.Join(homeDir(), path[2:])
	}
	return path
}

func suggestionForDialError(err error) string {
	errStr := err.Error()
	if strings.Contains(errStr, "connection refused") {
		return "Is sshd running on the VM? Check the stored port."
	}
	if strings.Contains(errStr, "no route to host") || strings.Contains(errStr, "network is unreachable") {
		return "Can't route to the host. Check your network connection."
	}
	if strings.Contains(errStr, "timeout") || strings.Contains(errStr, "deadline exceeded") {
		return "Connection timed out. The VM might be offline or blocked by a firewall."
	}
	if strings.Contains(errStr, "no such host") {
		return "The address doesn't resolve. Check the stored IP or hostname."
	}
	return "Make sure the VM is reachable: ping <address>"
}

func suggestionForHandshakeError(err error) string {
	errStr := err.Error()
	if strings.Contains(errStr, "unable to authenticate") || strings.Contains(errStr, "no supported methods") {
		return "The VM rejected the stored credential. Update it with: vmw host add --force"
	}
	if strings.Contains(errStr, "host key") {
		return "Host key issue. Try connecting manually first: ssh <host>"
	}
	return "Something went wrong during SSH setup. Try: ssh <host>"
}
