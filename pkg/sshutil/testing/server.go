// Package testing provides an in-process SSH server for exercising real SSH
// clients in tests without a network dependency.
package testing

import (
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/binary"
	"encoding/pem"
	"net"
	"strconv"
	"sync"
	"testing"

	"golang.org/x/crypto/ssh"
)

// ExecHandler produces the result of one exec request.
type ExecHandler func(cmd string) (stdout, stderr string, exitCode int)

// Server is a minimal SSH server that answers exec requests.
type Server struct {
	listener net.Listener
	config   *ssh.ServerConfig
	hostKey  ssh.Signer

	mu       sync.Mutex
	handler  ExecHandler
	commands []string
	conns    []net.Conn
	accepted int
}

// Option configures a Server.
type Option func(*serverOptions)

type serverOptions struct {
	user       string
	password   string
	authorized []ssh.PublicKey
	hostKey    ssh.Signer
	handler    ExecHandler
}

// WithPassword accepts password auth for user/password.
func WithPassword(user, password string) Option {
	return func(o *serverOptions) {
		o.user = user
		o.password = password
	}
}

// WithAuthorizedKey accepts public key auth for key.
func WithAuthorizedKey(key ssh.PublicKey) Option {
	return func(o *serverOptions) {
		o.authorized = append(o.authorized, key)
	}
}

// WithHostKey uses signer as the server host key instead of a fresh one.
func WithHostKey(signer ssh.Signer) Option {
	return func(o *serverOptions) {
		o.hostKey = signer
	}
}

// WithHandler sets the exec handler. The default echoes nothing and exits 0.
func WithHandler(h ExecHandler) Option {
	return func(o *serverOptions) {
		o.handler = h
	}
}

// NewServer starts a server on 127.0.0.1 and stops it when the test ends.
func NewServer(t testing.TB, opts ...Option) *Server {
	t.Helper()

	o := &serverOptions{
		handler: func(string) (string, string, int) { return "", "", 0 },
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.hostKey == nil {
		o.hostKey = NewSigner(t)
	}

	config := &ssh.ServerConfig{}
	if o.password != "" {
		config.PasswordCallback = func(c ssh.ConnMetadata, pass []byte) (*ssh.Permissions, error) {
			if c.User() == o.user && string(pass) == o.password {
				return nil, nil
			}
			return nil, errRejected
		}
	}
	if len(o.authorized) > 0 {
		config.PublicKeyCallback = func(c ssh.ConnMetadata, key ssh.PublicKey) (*ssh.Permissions, error) {
			for _, k := range o.authorized {
				if string(k.Marshal()) == string(key.Marshal()) {
					return nil, nil
				}
			}
			return nil, errRejected
		}
	}
	config.AddHostKey(o.hostKey)

	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	s := &Server{
		listener: l,
		config:   config,
		hostKey:  o.hostKey,
		handler:  o.handler,
	}
	go s.serve()
	t.Cleanup(s.Close)
	return s
}

type rejectedError struct{}

func (rejectedError) Error() string { return "rejected" }

var errRejected = rejectedError{}

// Host returns the listening IP.
func (s *Server) Host() string {
	host, _, _ := net.SplitHostPort(s.listener.Addr().String())
	return host
}

// Port returns the listening port.
func (s *Server) Port() int {
	_, port, _ := net.SplitHostPort(s.listener.Addr().String())
	n, _ := strconv.Atoi(port)
	return n
}

// HostKey returns the server's public host key.
func (s *Server) HostKey() ssh.PublicKey {
	return s.hostKey.PublicKey()
}

// Commands returns every exec request received so far, in order.
func (s *Server) Commands() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.commands))
	copy(out, s.commands)
	return out
}

// Connections returns how many client connections completed a handshake.
func (s *Server) Connections() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.accepted
}

// SetHandler swaps the exec handler.
func (s *Server) SetHandler(h ExecHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handler = h
}

// Close stops accepting and drops open connections.
func (s *Server) Close() {
	_ = s.listener.Close()
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.conns {
		_ = c.Close()
	}
	s.conns = nil
}

func (s *Server) serve() {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			return
		}
		s.mu.Lock()
		s.conns = append(s.conns, conn)
		s.mu.Unlock()
		go s.handleConn(conn)
	}
}

func (s *Server) handleConn(conn net.Conn) {
	_, chans, reqs, err := ssh.NewServerConn(conn, s.config)
	if err != nil {
		_ = conn.Close()
		return
	}
	s.mu.Lock()
	s.accepted++
	s.mu.Unlock()

	go ssh.DiscardRequests(reqs)

	for newCh := range chans {
		if newCh.ChannelType() != "session" {
			_ = newCh.Reject(ssh.UnknownChannelType, "only session channels")
			continue
		}
		ch, chReqs, err := newCh.Accept()
		if err != nil {
			continue
		}
		go s.handleSession(ch, chReqs)
	}
}

func (s *Server) handleSession(ch ssh.Channel, reqs <-chan *ssh.Request) {
	defer ch.Close()

	for req := range reqs {
		if req.Type != "exec" {
			if req.WantReply {
				_ = req.Reply(req.Type == "signal", nil)
			}
			continue
		}

		cmd := parseString(req.Payload)
		_ = req.Reply(true, nil)

		s.mu.Lock()
		s.commands = append(s.commands, cmd)
		handler := s.handler
		s.mu.Unlock()

		stdout, stderr, code := handler(cmd)
		_, _ = ch.Write([]byte(stdout))
		_, _ = ch.Stderr().Write([]byte(stderr))

		status := make([]byte, 4)
		binary.BigEndian.PutUint32(status, uint32(code))
		_, _ = ch.SendRequest("exit-status", false, status)
		return
	}
}

func parseString(payload []byte) string {
	if len(payload) < 4 {
		return ""
	}
	n := binary.BigEndian.Uint32(payload[:4])
	if int(n) > len(payload)-4 {
		return ""
	}
	return string(payload[4 : 4+n])
}

// NewSigner returns a fresh ed25519 signer.
func NewSigner(t testing.TB) ssh.Signer {
	t.Helper()
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	signer, err := ssh.NewSignerFromKey(priv)
	if err != nil {
		t.Fatalf("signer: %v", err)
	}
	return signer
}

// KeyPEM generates a private key of the given kind ("rsa", "ed25519" or
// "ecdsa") and returns it PEM encoded with its public half.
func KeyPEM(t testing.TB, kind string) ([]byte, ssh.PublicKey) {
	t.Helper()

	var (
		block *pem.Block
		pub   any
		err   error
	)
	switch kind {
	case "rsa":
		var k *rsa.PrivateKey
		k, err = rsa.GenerateKey(rand.Reader, 2048)
		if err == nil {
			block = &pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(k)}
			pub = &k.PublicKey
		}
	case "ecdsa":
		var k *ecdsa.PrivateKey
		k, err = ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
		if err == nil {
			var der []byte
			der, err = x509.MarshalECPrivateKey(k)
			block = &pem.Block{Type: "EC PRIVATE KEY", Bytes: der}
			pub = &k.PublicKey
		}
	default:
		var priv ed25519.PrivateKey
		var edPub ed25519.PublicKey
		edPub, priv, err = ed25519.GenerateKey(rand.Reader)
		if err == nil {
			block, err = ssh.MarshalPrivateKey(priv, "")
			pub = edPub
		}
	}
	if err != nil {
		t.Fatalf("generate %s key: %v", kind, err)
	}

	sshPub, err := ssh.NewPublicKey(pub)
	if err != nil {
		t.Fatalf("public key: %v", err)
	}
	return pem.EncodeToMemory(block), sshPub
}
