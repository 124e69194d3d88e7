package monitor

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"

	"github.com/rileyhilliard/vmwatch/internal/errors"
	"github.com/rileyhilliard/vmwatch/internal/metrics"
	"github.com/rileyhilliard/vmwatch/internal/monitor/parsers"
	"github.com/rileyhilliard/vmwatch/internal/util"
)

// DockerKind selects what ListDocker lists.
type DockerKind string

const (
	KindAll     DockerKind = "all"
	KindRunning DockerKind = "running"
	KindImages  DockerKind = "images"
)

// DefaultLogLines is the tail length when ContainerLogs gets lines <= 0.
const DefaultLogLines = 100

// ErrUnsupportedKind is returned by ListDocker for an unknown kind.
var ErrUnsupportedKind = stderrors.New("unsupported docker listing kind")

// ParseDockerKind maps user input to a DockerKind. "containers" is
// accepted as an alias for all.
func ParseDockerKind(s string) (DockerKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "all", "containers", "":
		return KindAll, nil
	case "running":
		return KindRunning, nil
	case "images":
		return KindImages, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedKind, s)
}

func (m *Monitor) listCommand(kind DockerKind) (string, error) {
	switch kind {
	case KindAll:
		return m.docker + " ps -a --format '{{json .}}'", nil
	case KindRunning:
		return m.docker + " ps --format '{{json .}}'", nil
	case KindImages:
		return m.docker + " images --format '{{json .}}'", nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedKind, kind)
}

// ListDocker lists containers or images on label. The only error is
// ErrUnsupportedKind, returned before any registry or remote work.
func (m *Monitor) ListDocker(ctx context.Context, label string, kind DockerKind) (DockerListResult, error) {
	cmd, err := m.listCommand(kind)
	if err != nil {
		return DockerListResult{}, err
	}

	res := DockerListResult{Label: label, Kind: kind}
	call, fail := m.open(ctx, label)
	if fail != nil {
		return m.listFailure(res, fail), nil
	}
	defer call.session.Close()

	out, _ := call.session.Run(ctx, cmd)
	if fail := call.transportFailure(); fail != nil {
		return m.listFailure(res, fail), nil
	}
	return m.listOK(res, parsers.ParseJSONLines(out, m.log)), nil
}

// StoppedContainers lists containers present in the all listing but not in
// the running one, compared by container name.
func (m *Monitor) StoppedContainers(ctx context.Context, label string) DockerListResult {
	res := DockerListResult{Label: label, Kind: KindAll}
	call, fail := m.open(ctx, label)
	if fail != nil {
		return m.listFailure(res, fail)
	}
	defer call.session.Close()

	allCmd, _ := m.listCommand(KindAll)
	runningCmd, _ := m.listCommand(KindRunning)

	allOut, _ := call.session.Run(ctx, allCmd)
	runningOut, _ := call.session.Run(ctx, runningCmd)
	if fail := call.transportFailure(); fail != nil {
		return m.listFailure(res, fail)
	}

	return m.listOK(res, StoppedFrom(
		parsers.ParseJSONLines(allOut, m.log),
		parsers.ParseJSONLines(runningOut, m.log),
	))
}

// StoppedFrom returns the containers of all whose name is not in running.
func StoppedFrom(all, running []metrics.Container) []metrics.Container {
	names := make(map[string]struct{}, len(running))
	for _, c := range running {
		names[c.Name()] = struct{}{}
	}

	stopped := make([]metrics.Container, 0, len(all))
	for _, c := range all {
		if _, ok := names[c.Name()]; !ok {
			stopped = append(stopped, c)
		}
	}
	return stopped
}

func (m *Monitor) listOK(res DockerListResult, items []metrics.Container) DockerListResult {
	res.Status = StatusOK
	res.Items = items
	res.Count = len(items)
	res.FetchedAt = m.now()
	return res
}

func (m *Monitor) listFailure(res DockerListResult, fail *failure) DockerListResult {
	res.Status = StatusFailed
	if fail.notFound {
		res.Status = StatusNotFound
	} else {
		m.log.Error("docker listing on %s failed: %s", res.Label, fail.reason)
	}
	res.Reason = fail.reason
	res.Code = fail.code
	res.FetchedAt = m.now()
	return res
}

// ContainerStats returns one container's live stats. Empty output means
// the container doesn't exist or isn't running; a field count other than
// six is a parse error carrying the raw output.
func (m *Monitor) ContainerStats(ctx context.Context, label, name string) metrics.ContainerStatsResult {
	res := metrics.ContainerStatsResult{Label: label, Container: name}
	call, fail := m.open(ctx, label)
	if fail != nil {
		return m.statsFailure(res, fail)
	}
	defer call.session.Close()

	cmd := fmt.Sprintf("%s stats --no-stream --format '%s' %s", m.docker, parsers.StatsLineFormat, util.ShellQuote(name))
	out, _ := call.session.Run(ctx, cmd)
	if fail := call.transportFailure(); fail != nil {
		return m.statsFailure(res, fail)
	}
	res.FetchedAt = m.now()

	stats, fields := parsers.ParseContainerStatsLine(out)
	switch {
	case fields == 0:
		res.Status = metrics.StatsNotFound
		res.Reason = "Container not found or no data"
	case fields != parsers.StatsFieldCount:
		res.Status = metrics.StatsParseError
		res.Reason = "Unexpected output format"
		res.RawOutput = out
	default:
		res.Status = metrics.StatsOK
		res.Stats = &stats
	}
	return res
}

func (m *Monitor) statsFailure(res metrics.ContainerStatsResult, fail *failure) metrics.ContainerStatsResult {
	res.Status = metrics.StatsFailed
	if fail.notFound {
		res.Status = metrics.StatsNotFound
	} else {
		m.log.Error("stats for %s on %s failed: %s", res.Container, res.Label, fail.reason)
	}
	res.Reason = fail.reason
	res.FetchedAt = m.now()
	return res
}

// AllContainerStats returns stats for every running container, querying
// each by name over one session. Containers whose stats can't be read are
// left out.
func (m *Monitor) AllContainerStats(ctx context.Context, label string) AllStatsResult {
	res := AllStatsResult{Label: label, Stats: []metrics.ContainerStats{}}
	call, fail := m.open(ctx, label)
	if fail != nil {
		return m.allStatsFailure(res, fail)
	}
	defer call.session.Close()

	namesOut, _ := call.session.Run(ctx, m.docker+" ps --format '{{.Names}}'")
	if fail := call.transportFailure(); fail != nil {
		return m.allStatsFailure(res, fail)
	}

	names := parsers.ParseNames(namesOut)
	if len(names) == 0 {
		res.Status = StatusOK
		res.Message = "No running containers"
		res.FetchedAt = m.now()
		return res
	}

	for _, name := range names {
		cmd := fmt.Sprintf("%s stats --no-stream --format '%s' %s", m.docker, parsers.StatsTableFormat, util.ShellQuote(name))
		out, ok := call.session.Run(ctx, cmd)
		if fail := call.transportFailure(); fail != nil {
			return m.allStatsFailure(res, fail)
		}
		if !ok {
			m.log.Warn("no stats for container %s on %s", name, label)
			continue
		}
		res.Stats = append(res.Stats, parsers.ParseStatsTable(out)...)
	}

	res.Status = StatusOK
	res.FetchedAt = m.now()
	return res
}

func (m *Monitor) allStatsFailure(res AllStatsResult, fail *failure) AllStatsResult {
	res.Status = StatusFailed
	if fail.notFound {
		res.Status = StatusNotFound
	}
	res.Reason = fail.reason
	res.Code = fail.code
	res.FetchedAt = m.now()
	return res
}

// ContainerResources returns docker's JSON stats objects for every running
// container.
func (m *Monitor) ContainerResources(ctx context.Context, label string) ResourcesResult {
	res := ResourcesResult{Label: label, Resources: []metrics.Container{}}
	call, fail := m.open(ctx, label)
	if fail != nil {
		res.Status = StatusFailed
		if fail.notFound {
			res.Status = StatusNotFound
		}
		res.Reason, res.Code, res.FetchedAt = fail.reason, fail.code, m.now()
		return res
	}
	defer call.session.Close()

	out, _ := call.session.Run(ctx, m.docker+" stats --no-stream --format '{{json .}}'")
	if fail := call.transportFailure(); fail != nil {
		res.Status = StatusFailed
		res.Reason, res.Code, res.FetchedAt = fail.reason, fail.code, m.now()
		return res
	}

	res.Resources = parsers.ParseJSONLines(out, m.log)
	res.Count = len(res.Resources)
	res.Status = StatusOK
	res.FetchedAt = m.now()
	return res
}

// StartContainer runs docker start for name.
func (m *Monitor) StartContainer(ctx context.Context, label, name string) ActionResult {
	return m.lifecycle(ctx, label, name, "start", StatusStarted)
}

// StopContainer runs docker stop for name.
func (m *Monitor) StopContainer(ctx context.Context, label, name string) ActionResult {
	return m.lifecycle(ctx, label, name, "stop", StatusStopped)
}

// lifecycle reports success unless the command exits non-zero or the
// session fails. The container's resulting state is not re-checked.
func (m *Monitor) lifecycle(ctx context.Context, label, name, verb string, done Status) ActionResult {
	res := ActionResult{Label: label, Container: name}
	call, fail := m.open(ctx, label)
	if fail != nil {
		return actionFailure(res, fail)
	}
	defer call.session.Close()

	out, ok := call.session.Run(ctx, fmt.Sprintf("%s %s %s", m.docker, verb, util.ShellQuote(name)))
	if fail := call.transportFailure(); fail != nil {
		return actionFailure(res, fail)
	}
	if !ok {
		res.Status = StatusFailed
		res.Reason = fmt.Sprintf("docker %s %s failed on the VM", verb, name)
		res.Code = errors.ErrExec
		return res
	}

	m.log.Info("%s container %s on %s", verb, name, label)
	res.Status = done
	res.Output = out
	return res
}

func actionFailure(res ActionResult, fail *failure) ActionResult {
	res.Status = StatusFailed
	if fail.notFound {
		res.Status = StatusNotFound
	}
	res.Reason = fail.reason
	res.Code = fail.code
	return res
}

// ContainerLogs returns the last lines of name's logs, both streams, as
// docker printed them.
func (m *Monitor) ContainerLogs(ctx context.Context, label, name string, lines int) LogsResult {
	if lines <= 0 {
		lines = DefaultLogLines
	}

	res := LogsResult{Label: label, Container: name}
	call, fail := m.open(ctx, label)
	if fail != nil {
		res.Status = StatusFailed
		if fail.notFound {
			res.Status = StatusNotFound
		}
		res.Reason, res.Code = fail.reason, fail.code
		return res
	}
	defer call.session.Close()

	out, ok := call.session.Run(ctx, fmt.Sprintf("%s logs --tail %d %s 2>&1", m.docker, lines, util.ShellQuote(name)))
	if fail := call.transportFailure(); fail != nil {
		res.Status, res.Reason, res.Code = StatusFailed, fail.reason, fail.code
		return res
	}
	if !ok {
		res.Status = StatusFailed
		res.Reason = fmt.Sprintf("docker logs %s failed on the VM", name)
		res.Code = errors.ErrExec
		return res
	}

	res.Status = StatusOK
	res.Logs = out
	return res
}
