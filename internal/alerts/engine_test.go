package alerts

import (
	"context"
	stderrors "errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rileyhilliard/vmwatch/internal/cache"
	"github.com/rileyhilliard/vmwatch/internal/logger"
	"github.com/rileyhilliard/vmwatch/internal/metrics"
	"github.com/rileyhilliard/vmwatch/internal/monitor"
	"github.com/rileyhilliard/vmwatch/internal/registry"
	remotetesting "github.com/rileyhilliard/vmwatch/internal/remote/testing"
)

var testNow = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

const (
	freeWeb1 = "              total        used        free\nMem:           2000        1100         900"
	dfWeb1   = "Filesystem      Size  Used Avail Use% Mounted on\n/dev/sda1        40G   30G   10G  75% /"
	statsFmt = "stats --no-stream --format '{{.Container}}|{{.CPUPerc}}|{{.MemUsage}}|{{.MemPerc}}|{{.NetIO}}|{{.BlockIO}}'"
)

func fleetRegistry(t *testing.T, labels ...string) registry.Registry {
	t.Helper()
	var creds []registry.Credential
	for _, l := range labels {
		creds = append(creds, registry.Credential{Label: l, Address: l + ".lan", Password: "pw"})
	}
	reg, err := registry.NewStatic(creds)
	require.NoError(t, err)
	return reg
}

func newFleet(t *testing.T, runner *remotetesting.FakeRunner, labels ...string) *Engine {
	t.Helper()
	reg := fleetRegistry(t, labels...)
	clock := func() time.Time { return testNow }
	mon := monitor.New(reg, runner, cache.New(time.Minute, cache.WithClock(clock)),
		monitor.WithLogger(logger.Noop()), monitor.WithClock(clock))
	return NewEngine(mon, reg, WithLogger(logger.Noop()), WithClock(clock), WithDialRate(0))
}

func scriptWeb1(r *remotetesting.FakeRunner) {
	r.SetResponse("web1", "top -bn1", "%Cpu(s):  7.5 us").
		SetResponse("web1", "free -m", freeWeb1).
		SetResponse("web1", "df -h /", dfWeb1).
		SetResponse("web1", "uptime", "up 3 days").
		SetResponse("web1", "sudo docker ps --format '{{json .}}'", `{"Names":"api"}`).
		SetResponse("web1", statsFmt+" 'api'", "api|91.00%|1GiB / 2GiB|50.00%|1kB / 2kB|60MB / 30MB")
}

func TestCheckHostRAM_WebAlert(t *testing.T) {
	runner := remotetesting.NewFakeRunner()
	scriptWeb1(runner)
	e := newFleet(t, runner, "web1")

	r := e.CheckHostRAM(context.Background(), "web1", 40)
	assert.Equal(t, TypeRAM, r.Type)
	assert.Equal(t, StatusAlert, r.Status)
	assert.Equal(t, 55.0, r.CurrentValue)
	assert.Equal(t, 40.0, r.Threshold)
	assert.Equal(t, "RAM alert: 55% > 40%", r.Message)
	assert.IsType(t, metrics.RAM{}, r.Source)
	assert.Equal(t, testNow, r.EvaluatedAt)
}

func TestCheckHostRAM_StrictComparison(t *testing.T) {
	runner := remotetesting.NewFakeRunner()
	scriptWeb1(runner)
	e := newFleet(t, runner, "web1")

	tests := []struct {
		threshold float64
		want      Status
	}{
		{54.99, StatusAlert},
		{55, StatusOK},
		{60, StatusOK},
	}
	for _, tt := range tests {
		r := e.CheckHostRAM(context.Background(), "web1", tt.threshold)
		assert.Equal(t, tt.want, r.Status, "threshold %v", tt.threshold)
		if r.Status == StatusOK {
			assert.Nil(t, r.Source, "ok records carry no source")
			assert.Contains(t, r.Message, "<=")
		}
	}
}

func TestCheckHostDisk(t *testing.T) {
	runner := remotetesting.NewFakeRunner()
	scriptWeb1(runner)
	e := newFleet(t, runner, "web1")

	r := e.CheckHostDisk(context.Background(), "web1", 80)
	assert.Equal(t, StatusOK, r.Status)
	assert.Equal(t, 75.0, r.CurrentValue)
	assert.Equal(t, "Disk OK: 75% <= 80%", r.Message)

	r = e.CheckHostDisk(context.Background(), "web1", 70)
	assert.Equal(t, StatusAlert, r.Status)
	assert.IsType(t, metrics.Disk{}, r.Source)
}

func TestHostRules_Unreachable(t *testing.T) {
	runner := remotetesting.NewFakeRunner()
	runner.SetOpenError("ghost1", stderrors.New("dial tcp: i/o timeout"))
	e := newFleet(t, runner, "ghost1")

	records := e.EvaluateHost(context.Background(), "ghost1", DefaultThresholds())
	require.Len(t, records, 2, "no container checks for an unreachable host")
	assert.Equal(t, StatusVMError, records[0].Status)
	assert.Equal(t, TypeRAM, records[0].Type)
	assert.Equal(t, StatusVMError, records[1].Status)
	assert.Equal(t, TypeDisk, records[1].Type)
	assert.Zero(t, records[0].CurrentValue)
	assert.NotContains(t, runner.Commands("ghost1"), "sudo docker ps --format '{{json .}}'")
	assert.Equal(t, 1, runner.Opens("ghost1"), "both host rules share one connection attempt")
}

func TestHostRules_NoData(t *testing.T) {
	runner := remotetesting.NewFakeRunner().
		SetResponse("web1", "free -m", "garbage").
		SetResponse("web1", "df -h /", "garbage")
	e := newFleet(t, runner, "web1")

	assert.Equal(t, StatusNoData, e.CheckHostRAM(context.Background(), "web1", 40).Status)
	assert.Equal(t, StatusNoData, e.CheckHostDisk(context.Background(), "web1", 80).Status)
}

func TestContainerRules(t *testing.T) {
	runner := remotetesting.NewFakeRunner()
	scriptWeb1(runner)
	runner.SetResponse("web1", statsFmt+" 'idle'", "idle|0.00%|0B / 2GiB|0.00%|0B / 0B|0B / 0B").
		SetResponse("web1", statsFmt+" 'blank'", "blank||0B / 2GiB||0B / 0B|").
		SetResponse("web1", statsFmt+" 'odd'", "odd|n/a|0B / 2GiB|??|0B / 0B|0B / 0B")
	e := newFleet(t, runner, "web1")
	ctx := context.Background()

	tests := []struct {
		name      string
		check     func() Record
		want      Status
		wantValue float64
	}{
		{"cpu alert", func() Record { return e.CheckContainerCPU(ctx, "web1", "api", 80) }, StatusAlert, 91},
		{"ram ok", func() Record { return e.CheckContainerRAM(ctx, "web1", "api", 80) }, StatusOK, 50},
		{"block io alert", func() Record { return e.CheckContainerBlockIO(ctx, "web1", "api", 80) }, StatusAlert, 90},
		{"block io ok", func() Record { return e.CheckContainerBlockIO(ctx, "web1", "api", 90) }, StatusOK, 90},
		{"zero cpu is no data", func() Record { return e.CheckContainerCPU(ctx, "web1", "idle", 80) }, StatusNoData, 0},
		{"zero ram is no data", func() Record { return e.CheckContainerRAM(ctx, "web1", "idle", 80) }, StatusNoData, 0},
		{"zero block io is ok", func() Record { return e.CheckContainerBlockIO(ctx, "web1", "idle", 80) }, StatusOK, 0},
		{"empty cpu is no data", func() Record { return e.CheckContainerCPU(ctx, "web1", "blank", 80) }, StatusNoData, 0},
		{"empty block io is no data", func() Record { return e.CheckContainerBlockIO(ctx, "web1", "blank", 80) }, StatusNoData, 0},
		{"unparsable ram is error", func() Record { return e.CheckContainerRAM(ctx, "web1", "odd", 80) }, StatusError, 0},
		{"missing container", func() Record { return e.CheckContainerCPU(ctx, "web1", "gone", 80) }, StatusContainerError, 0},
		{"unknown host", func() Record { return e.CheckContainerCPU(ctx, "nope", "api", 80) }, StatusContainerError, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := tt.check()
			assert.Equal(t, tt.want, r.Status, r.Message)
			assert.InDelta(t, tt.wantValue, r.CurrentValue, 0.01)
		})
	}

	r := e.CheckContainerBlockIO(ctx, "web1", "api", 80)
	assert.Equal(t, UnitMB, r.Unit)
	assert.Equal(t, "Container api disk alert: 90.00MB > 80MB", r.Message)
}

func TestEvaluateFleet(t *testing.T) {
	runner := remotetesting.NewFakeRunner()
	scriptWeb1(runner)
	runner.SetOpenError("ghost1", stderrors.New("connect: connection refused"))
	e := newFleet(t, runner, "web1", "ghost1")

	report := e.EvaluateFleet(context.Background(), DefaultThresholds())
	assert.NotEmpty(t, report.RunID)
	assert.Equal(t, 2, report.Hosts)
	assert.Empty(t, report.Error)

	// ghost1 sorts first in the registry.
	require.Len(t, report.Records, 2+2+3)
	assert.Equal(t, "ghost1", report.Records[0].Label)
	assert.Equal(t, StatusVMError, report.Records[0].Status)
	assert.Equal(t, "web1", report.Records[2].Label)
	assert.Equal(t, TypeRAM, report.Records[2].Type)
	assert.Equal(t, TypeDisk, report.Records[3].Type)
	assert.Equal(t, "api", report.Records[4].Container)

	alerting := Alerting(report.Records)
	types := make([]Type, 0, len(alerting))
	for _, r := range alerting {
		types = append(types, r.Type)
	}
	assert.ElementsMatch(t, []Type{TypeRAM, TypeContainerCPU, TypeContainerDisk}, types)
}

func TestEvaluateFleet_ContainerListingFailureIsolated(t *testing.T) {
	runner := remotetesting.NewFakeRunner()
	scriptWeb1(runner)
	runner.SetTransportError("web1", "sudo docker ps --format '{{json .}}'", stderrors.New("connection reset"))
	e := newFleet(t, runner, "web1")

	report := e.EvaluateFleet(context.Background(), DefaultThresholds())
	require.Len(t, report.Records, 2)
	assert.Equal(t, StatusAlert, report.Records[0].Status)
}

type listErrRegistry struct{ registry.Registry }

func (listErrRegistry) List(ctx context.Context) ([]registry.Host, error) {
	return nil, stderrors.New("database is locked")
}

func TestEvaluateFleet_RegistryFailure(t *testing.T) {
	runner := remotetesting.NewFakeRunner()
	e := newFleet(t, runner)
	e.registry = listErrRegistry{}

	report := e.EvaluateFleet(context.Background(), DefaultThresholds())
	assert.Empty(t, report.Records)
	assert.Contains(t, report.Error, "database is locked")
}

func TestEvaluateFleet_Cancelled(t *testing.T) {
	runner := remotetesting.NewFakeRunner()
	scriptWeb1(runner)
	e := newFleet(t, runner, "web1")
	WithDialRate(0.001)(e)
	_ = e.limiter.Allow()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	report := e.EvaluateFleet(ctx, DefaultThresholds())
	require.Len(t, report.Records, 2)
	assert.Equal(t, StatusError, report.Records[0].Status)
	assert.Contains(t, report.Records[0].Message, "cancelled")
}

// panicSource panics on every call.
type panicSource struct{}

func (panicSource) HostMetrics(ctx context.Context, label string) metrics.HostResult {
	panic("boom")
}

func (panicSource) ContainerStats(ctx context.Context, label, name string) metrics.ContainerStatsResult {
	panic("boom")
}

func (panicSource) ListDocker(ctx context.Context, label string, kind monitor.DockerKind) (monitor.DockerListResult, error) {
	panic("boom")
}

func TestEngine_RecoversPanics(t *testing.T) {
	e := NewEngine(panicSource{}, fleetRegistry(t, "web1"), WithLogger(logger.Noop()))

	r := e.CheckHostRAM(context.Background(), "web1", 40)
	assert.Equal(t, StatusError, r.Status)
	assert.Equal(t, "boom", r.Message)
	assert.Equal(t, TypeRAM, r.Type)

	r = e.CheckContainerBlockIO(context.Background(), "web1", "api", 80)
	assert.Equal(t, StatusError, r.Status)

	records := e.EvaluateHost(context.Background(), "web1", DefaultThresholds())
	require.Len(t, records, 2)
	for _, r := range records {
		assert.Equal(t, StatusError, r.Status)
	}
}

// countingSource wraps a Source and counts metric fetches.
type countingSource struct {
	Source
	mu    sync.Mutex
	hosts int
	stats int
}

func (s *countingSource) HostMetrics(ctx context.Context, label string) metrics.HostResult {
	s.mu.Lock()
	s.hosts++
	s.mu.Unlock()
	return s.Source.HostMetrics(ctx, label)
}

func (s *countingSource) ContainerStats(ctx context.Context, label, name string) metrics.ContainerStatsResult {
	s.mu.Lock()
	s.stats++
	s.mu.Unlock()
	return s.Source.ContainerStats(ctx, label, name)
}

func TestEvaluateHost_OneStatsFetchPerContainer(t *testing.T) {
	runner := remotetesting.NewFakeRunner()
	scriptWeb1(runner)
	base := newFleet(t, runner, "web1")
	src := &countingSource{Source: base.source}
	e := NewEngine(src, base.registry, WithLogger(logger.Noop()))

	records := e.EvaluateHost(context.Background(), "web1", DefaultThresholds())
	assert.Len(t, records, 5)
	assert.Equal(t, 1, src.hosts)
	assert.Equal(t, 1, src.stats)
}

func TestAlertingAndCounts(t *testing.T) {
	records := []Record{
		{Label: "a", Status: StatusAlert},
		{Label: "b", Status: StatusOK},
		{Label: "c", Status: StatusAlert},
		{Label: "d", Status: StatusVMError},
	}
	alerting := Alerting(records)
	require.Len(t, alerting, 2)
	assert.Equal(t, "a", alerting[0].Label)
	assert.Equal(t, "c", alerting[1].Label)

	counts := CountByStatus(records)
	assert.Equal(t, 2, counts[StatusAlert])
	assert.Equal(t, 1, counts[StatusVMError])
	assert.Empty(t, Alerting(nil))
}

func TestDefaultThresholds(t *testing.T) {
	th := DefaultThresholds()
	assert.Equal(t, 40.0, th.HostRAM)
	assert.Equal(t, 80.0, th.HostDisk)
	assert.Equal(t, 80.0, th.ContainerCPU)
	assert.Equal(t, 80.0, th.ContainerRAM)
	assert.Equal(t, 80.0, th.ContainerBlockIOMB)
}
