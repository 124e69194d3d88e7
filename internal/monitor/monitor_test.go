package monitor

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rileyhilliard/vmwatch/internal/cache"
	"github.com/rileyhilliard/vmwatch/internal/errors"
	"github.com/rileyhilliard/vmwatch/internal/logger"
	"github.com/rileyhilliard/vmwatch/internal/metrics"
	"github.com/rileyhilliard/vmwatch/internal/registry"
	remotetesting "github.com/rileyhilliard/vmwatch/internal/remote/testing"
)

const (
	topOut    = "%Cpu(s):  7.5 us,  2.0 sy,  0.0 ni, 90.0 id,  0.5 wa"
	freeOut   = "              total        used        free      shared  buff/cache   available\nMem:           2000        1100         900          10         300        1800\nSwap:             0           0           0"
	dfOut     = "Filesystem      Size  Used Avail Use% Mounted on\n/dev/sda1        40G   30G   10G  75% /"
	uptimeOut = " 10:15:01 up 3 days,  2:04,  1 user,  load average: 0.10, 0.05, 0.01"
)

var testNow = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

func testRegistry(t *testing.T) registry.Registry {
	t.Helper()
	reg, err := registry.NewStatic([]registry.Credential{
		{Label: "web1", Address: "10.0.0.1", Username: "ops", Password: "pw"},
		{Label: "ghost1", Address: "10.0.0.99", Username: "ops", Password: "pw"},
	})
	require.NoError(t, err)
	return reg
}

func scriptHost(r *remotetesting.FakeRunner, label string) {
	r.SetResponse(label, "top -bn1 | grep '%Cpu'", topOut).
		SetResponse(label, "free -m", freeOut).
		SetResponse(label, "df -h /", dfOut).
		SetResponse(label, "uptime", uptimeOut)
}

func newTestMonitor(t *testing.T, runner *remotetesting.FakeRunner, opts ...Option) *Monitor {
	t.Helper()
	clock := func() time.Time { return testNow }
	c := cache.New(time.Minute, cache.WithClock(clock))
	opts = append([]Option{WithLogger(logger.Noop()), WithClock(clock)}, opts...)
	return New(testRegistry(t), runner, c, opts...)
}

func TestHostMetrics_Connected(t *testing.T) {
	runner := remotetesting.NewFakeRunner()
	scriptHost(runner, "web1")
	m := newTestMonitor(t, runner)

	r := m.HostMetrics(context.Background(), "web1")
	require.Equal(t, metrics.HostConnected, r.Status)
	require.NotNil(t, r.Snapshot)

	s := r.Snapshot
	assert.Equal(t, "web1", s.Label)
	assert.Equal(t, "10.0.0.1", s.Address)
	assert.Equal(t, 7.5, s.CPUPercent)
	assert.Equal(t, metrics.RAM{TotalMB: 2000, UsedMB: 1100, FreeMB: 900, UsagePercent: 55}, s.RAM)
	assert.Equal(t, "75%", s.Disk.UsePercent)
	assert.Contains(t, s.Uptime, "up 3 days")
	assert.Equal(t, testNow, s.FetchedAt)

	assert.Equal(t, []string{"top -bn1 | grep '%Cpu'", "free -m", "df -h /", "uptime"}, runner.Commands("web1"),
		"commands run in order over one session")
	assert.Equal(t, 1, runner.Opens("web1"))
}

func TestHostMetrics_Cached(t *testing.T) {
	runner := remotetesting.NewFakeRunner()
	scriptHost(runner, "web1")
	m := newTestMonitor(t, runner)

	first := m.HostMetrics(context.Background(), "web1")
	second := m.HostMetrics(context.Background(), "web1")
	assert.Equal(t, first, second)
	assert.Equal(t, 1, runner.Opens("web1"))

	m.RefreshHostMetrics(context.Background(), "web1")
	assert.Equal(t, 2, runner.Opens("web1"))
}

func TestHostMetrics_NotFound(t *testing.T) {
	runner := remotetesting.NewFakeRunner()
	m := newTestMonitor(t, runner)

	r := m.HostMetrics(context.Background(), "nope")
	assert.Equal(t, metrics.HostNotFound, r.Status)
	assert.Nil(t, r.Snapshot)
	assert.Equal(t, 0, runner.Opens("nope"), "no remote I/O for unknown labels")
}

func TestHostMetrics_ConnectionFailedNotCached(t *testing.T) {
	runner := remotetesting.NewFakeRunner()
	runner.SetOpenError("ghost1", errors.WrapWithCode(stderrors.New("i/o timeout"), errors.ErrTimeout, "Can't reach 'ghost1'", ""))
	m := newTestMonitor(t, runner)

	r := m.HostMetrics(context.Background(), "ghost1")
	assert.Equal(t, metrics.HostConnectionFailed, r.Status)
	assert.Equal(t, errors.ErrTimeout, r.Code)
	assert.Contains(t, r.Reason, "Can't reach")

	m.HostMetrics(context.Background(), "ghost1")
	assert.Equal(t, 2, runner.Opens("ghost1"))
	assert.Equal(t, 0, m.Cache().Stats().Size)
}

func TestHostMetrics_TimeoutDiscardsPartialFetch(t *testing.T) {
	runner := remotetesting.NewFakeRunner()
	scriptHost(runner, "web1")
	runner.SetTransportError("web1", "df -h /", context.DeadlineExceeded)
	m := newTestMonitor(t, runner)

	r := m.HostMetrics(context.Background(), "web1")
	assert.Equal(t, metrics.HostConnectionFailed, r.Status)
	assert.Equal(t, errors.ErrTimeout, r.Code)
	assert.Nil(t, r.Snapshot)
	assert.NotContains(t, runner.Commands("web1"), "uptime")
}

func TestHostMetrics_CommandFailureStillConnected(t *testing.T) {
	runner := remotetesting.NewFakeRunner()
	scriptHost(runner, "web1")
	runner.SetFailure("web1", "top -bn1 | grep '%Cpu'")
	m := newTestMonitor(t, runner)

	r := m.HostMetrics(context.Background(), "web1")
	require.Equal(t, metrics.HostConnected, r.Status)
	assert.Contains(t, runner.Commands("web1"), "top -bn1 | grep '%Cpu'")
	assert.Equal(t, 0.0, r.Snapshot.CPUPercent)
	assert.Equal(t, int64(2000), r.Snapshot.RAM.TotalMB)
}

func TestTestConnection(t *testing.T) {
	runner := remotetesting.NewFakeRunner()
	runner.SetResponse("web1", `echo "Connection test OK"`, "Connection test OK")
	runner.SetOpenError("ghost1", stderrors.New("dial tcp 10.0.0.99:22: connect: connection refused"))
	m := newTestMonitor(t, runner)

	tests := []struct {
		label      string
		wantStatus Status
		wantCode   string
	}{
		{"web1", StatusSuccess, ""},
		{"ghost1", StatusError, errors.ErrUnreachable},
		{"nope", StatusNotFound, errors.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.label, func(t *testing.T) {
			r := m.TestConnection(context.Background(), tt.label)
			assert.Equal(t, tt.wantStatus, r.Status)
			assert.Equal(t, tt.wantCode, r.Code)
			assert.NotEmpty(t, r.Message)
		})
	}
}

func TestTestConnection_WrongEcho(t *testing.T) {
	runner := remotetesting.NewFakeRunner()
	runner.SetResponse("web1", "echo", "something else")
	m := newTestMonitor(t, runner)

	r := m.TestConnection(context.Background(), "web1")
	assert.Equal(t, StatusError, r.Status)
	assert.Equal(t, errors.ErrExec, r.Code)
}

func TestValidateCredential(t *testing.T) {
	runner := remotetesting.NewFakeRunner()
	runner.SetResponse("10.0.0.7", `echo "SSH OK"`, "SSH OK")
	runner.SetOpenError("10.0.0.8", stderrors.New("ssh: handshake failed: ssh: unable to authenticate"))
	m := newTestMonitor(t, runner)

	tests := []struct {
		name     string
		cred     registry.Credential
		wantOK   bool
		wantCode string
	}{
		{"valid", registry.Credential{Address: "10.0.0.7", Username: "ops", AuthMethod: "password", Password: "pw"}, true, ""},
		{"rejected", registry.Credential{Address: "10.0.0.8", Username: "ops", AuthMethod: "password", Password: "bad"}, false, errors.ErrAuth},
		{"missing secret", registry.Credential{Address: "10.0.0.9", Username: "ops", AuthMethod: "ssh_key"}, false, errors.ErrConfig},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := m.ValidateCredential(context.Background(), tt.cred)
			assert.Equal(t, tt.wantOK, r.Status == StatusSuccess, r.Message)
			assert.Equal(t, tt.wantCode, r.Code)
		})
	}
	assert.Equal(t, 0, runner.Opens("10.0.0.9"), "invalid credentials are not dialed")
}
