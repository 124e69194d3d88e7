package alerts

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/rileyhilliard/vmwatch/internal/errors"
	"github.com/rileyhilliard/vmwatch/internal/logger"
	"github.com/rileyhilliard/vmwatch/internal/metrics"
	"github.com/rileyhilliard/vmwatch/internal/monitor"
	"github.com/rileyhilliard/vmwatch/internal/registry"
)

// Fleet evaluation defaults.
const (
	DefaultConcurrency = 5
	DefaultDialRate    = 10 // host evaluations started per second
)

// Source is the part of monitor.Monitor the engine reads from.
type Source interface {
	HostMetrics(ctx context.Context, label string) metrics.HostResult
	ContainerStats(ctx context.Context, label, name string) metrics.ContainerStatsResult
	ListDocker(ctx context.Context, label string, kind monitor.DockerKind) (monitor.DockerListResult, error)
}

// Engine evaluates alert rules.
type Engine struct {
	source      Source
	registry    registry.Registry
	log         logger.Logger
	concurrency int
	limiter     *rate.Limiter
	now         func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(e *Engine) { e.log = l }
}

// WithConcurrency caps how many hosts are evaluated at once.
func WithConcurrency(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.concurrency = n
		}
	}
}

// WithDialRate limits how many host evaluations start per second. A
// non-positive rate disables pacing.
func WithDialRate(perSecond float64) Option {
	return func(e *Engine) {
		if perSecond <= 0 {
			e.limiter = rate.NewLimiter(rate.Inf, 1)
			return
		}
		e.limiter = rate.NewLimiter(rate.Limit(perSecond), 1)
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// NewEngine creates an engine reading metrics from source and the host
// list from reg.
func NewEngine(source Source, reg registry.Registry, opts ...Option) *Engine {
	e := &Engine{
		source:      source,
		registry:    reg,
		log:         logger.NewEnvLogger("[alerts]"),
		concurrency: DefaultConcurrency,
		limiter:     rate.NewLimiter(rate.Limit(DefaultDialRate), 1),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// guard turns a panic inside a rule into an error record.
func (e *Engine) guard(r *Record) {
	if p := recover(); p != nil {
		e.log.Error("rule %s for %s panicked: %v", r.Type, r.Label, p)
		r.Status = StatusError
		r.Message = fmt.Sprint(p)
		r.Source = nil
	}
}

// CheckHostRAM compares host RAM usage against threshold percent.
func (e *Engine) CheckHostRAM(ctx context.Context, label string, threshold float64) (r Record) {
	r = e.record(label, "", TypeRAM, threshold, UnitPercent)
	defer e.guard(&r)
	return evalHostRAM(r, e.source.HostMetrics(ctx, label))
}

// CheckHostDisk compares root filesystem usage against threshold percent.
func (e *Engine) CheckHostDisk(ctx context.Context, label string, threshold float64) (r Record) {
	r = e.record(label, "", TypeDisk, threshold, UnitPercent)
	defer e.guard(&r)
	return evalHostDisk(r, e.source.HostMetrics(ctx, label))
}

// CheckContainerCPU compares a container's CPU usage against threshold percent.
func (e *Engine) CheckContainerCPU(ctx context.Context, label, container string, threshold float64) (r Record) {
	r = e.record(label, container, TypeContainerCPU, threshold, UnitPercent)
	defer e.guard(&r)
	return evalContainerCPU(r, e.source.ContainerStats(ctx, label, container))
}

// CheckContainerRAM compares a container's memory usage against threshold percent.
func (e *Engine) CheckContainerRAM(ctx context.Context, label, container string, threshold float64) (r Record) {
	r = e.record(label, container, TypeContainerRAM, threshold, UnitPercent)
	defer e.guard(&r)
	return evalContainerRAM(r, e.source.ContainerStats(ctx, label, container))
}

// CheckContainerBlockIO compares a container's cumulative read+write
// megabytes against threshold MB.
func (e *Engine) CheckContainerBlockIO(ctx context.Context, label, container string, thresholdMB float64) (r Record) {
	r = e.record(label, container, TypeContainerDisk, thresholdMB, UnitMB)
	defer e.guard(&r)
	return evalContainerBlockIO(r, e.source.ContainerStats(ctx, label, container))
}

// EvaluateHost runs the host rules and, when the host is reachable, the
// three container rules for each running container. A failure to list
// containers leaves only the host records.
func (e *Engine) EvaluateHost(ctx context.Context, label string, th Thresholds) []Record {
	records := e.evaluateHostRules(ctx, label, th)
	if records[0].Status == StatusVMError {
		return records
	}

	containers, err := e.runningContainers(ctx, label)
	if err != nil {
		e.log.Warn("skipping container checks for %s: %s", label, errors.Reason(err))
		return records
	}
	for _, name := range containers {
		records = append(records, e.evaluateContainer(ctx, label, name, th)...)
	}
	return records
}

func (e *Engine) runningContainers(ctx context.Context, label string) (names []string, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("listing containers panicked: %v", p)
		}
	}()

	res, err := e.source.ListDocker(ctx, label, monitor.KindRunning)
	if err != nil {
		return nil, err
	}
	if res.Status != monitor.StatusOK {
		return nil, errors.New(errors.ErrPartial, fmt.Sprintf("container listing %s: %s", res.Status, res.Reason), "")
	}
	for _, c := range res.Items {
		if name := c.Name(); name != "" {
			names = append(names, name)
		}
	}
	return names, nil
}

// evaluateHostRules fetches host metrics once and applies the RAM and disk
// rules to them.
func (e *Engine) evaluateHostRules(ctx context.Context, label string, th Thresholds) []Record {
	ram := e.record(label, "", TypeRAM, th.HostRAM, UnitPercent)
	disk := e.record(label, "", TypeDisk, th.HostDisk, UnitPercent)

	host, err := e.hostMetrics(ctx, label)
	if err != nil {
		out := []Record{ram, disk}
		for i := range out {
			out[i].Status = StatusError
			out[i].Message = err.Error()
		}
		return out
	}

	return []Record{
		e.apply(ram, func(r Record) Record { return evalHostRAM(r, host) }),
		e.apply(disk, func(r Record) Record { return evalHostDisk(r, host) }),
	}
}

func (e *Engine) hostMetrics(ctx context.Context, label string) (res metrics.HostResult, err error) {
	defer func() {
		if p := recover(); p != nil {
			e.log.Error("metrics for %s panicked: %v", label, p)
			err = fmt.Errorf("%v", p)
		}
	}()
	return e.source.HostMetrics(ctx, label), nil
}

// evaluateContainer fetches stats once and applies the three container
// rules to them.
func (e *Engine) evaluateContainer(ctx context.Context, label, name string, th Thresholds) []Record {
	cpu := e.record(label, name, TypeContainerCPU, th.ContainerCPU, UnitPercent)
	ram := e.record(label, name, TypeContainerRAM, th.ContainerRAM, UnitPercent)
	disk := e.record(label, name, TypeContainerDisk, th.ContainerBlockIOMB, UnitMB)

	stats, err := e.containerStats(ctx, label, name)
	if err != nil {
		out := []Record{cpu, ram, disk}
		for i := range out {
			out[i].Status = StatusError
			out[i].Message = err.Error()
		}
		return out
	}

	return []Record{
		e.apply(cpu, func(r Record) Record { return evalContainerCPU(r, stats) }),
		e.apply(ram, func(r Record) Record { return evalContainerRAM(r, stats) }),
		e.apply(disk, func(r Record) Record { return evalContainerBlockIO(r, stats) }),
	}
}

func (e *Engine) containerStats(ctx context.Context, label, name string) (res metrics.ContainerStatsResult, err error) {
	defer func() {
		if p := recover(); p != nil {
			e.log.Error("stats for %s on %s panicked: %v", name, label, p)
			err = fmt.Errorf("%v", p)
		}
	}()
	return e.source.ContainerStats(ctx, label, name), nil
}

func (e *Engine) apply(r Record, eval func(Record) Record) (out Record) {
	out = r
	defer e.guard(&out)
	return eval(r)
}

// FleetReport is the result of one fleet-wide evaluation.
type FleetReport struct {
	RunID      string    `json:"run_id"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Hosts      int       `json:"hosts"`
	Records    []Record  `json:"alerts"`
	Error      string    `json:"error,omitempty"`
}

// EvaluateFleet evaluates every registered host with bounded concurrency.
// Records come back in registry order, each host's records before the next
// host's, host rules before container rules.
func (e *Engine) EvaluateFleet(ctx context.Context, th Thresholds) FleetReport {
	report := FleetReport{
		RunID:     uuid.NewString(),
		StartedAt: e.now(),
		Records:   []Record{},
	}

	hosts, err := e.registry.List(ctx)
	if err != nil {
		e.log.Error("fleet evaluation %s: listing hosts failed: %s", report.RunID, errors.Reason(err))
		report.Error = errors.Reason(err)
		report.FinishedAt = e.now()
		return report
	}
	report.Hosts = len(hosts)
	e.log.Debug("fleet evaluation %s: %d hosts", report.RunID, len(hosts))

	perHost := make([][]Record, len(hosts))
	var g errgroup.Group
	g.SetLimit(e.concurrency)

	for i, h := range hosts {
		g.Go(func() error {
			if err := e.limiter.Wait(ctx); err != nil {
				perHost[i] = e.cancelled(h.Label, th, err)
				return nil
			}
			perHost[i] = e.EvaluateHost(ctx, h.Label, th)
			return nil
		})
	}
	_ = g.Wait()

	for _, records := range perHost {
		report.Records = append(report.Records, records...)
	}
	report.FinishedAt = e.now()
	return report
}

func (e *Engine) cancelled(label string, th Thresholds, err error) []Record {
	ram := e.record(label, "", TypeRAM, th.HostRAM, UnitPercent)
	disk := e.record(label, "", TypeDisk, th.HostDisk, UnitPercent)
	ram.Status, ram.Message = StatusError, "evaluation cancelled: "+err.Error()
	disk.Status, disk.Message = StatusError, "evaluation cancelled: "+err.Error()
	return []Record{ram, disk}
}
