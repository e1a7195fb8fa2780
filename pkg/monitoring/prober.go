package monitoring

import (
	"context"
	"fmt"

	"github.com/core-tools/hsu-unitmaster/pkg/coreapi"
	"github.com/core-tools/hsu-unitmaster/pkg/processstate"
	"github.com/core-tools/hsu-unitmaster/pkg/resourcelimits"
)

// ProbeResult is one probe outcome. Usage is attached when the prober
// samples resources.
type ProbeResult struct {
	OK     bool
	Detail string
	Usage  *resourcelimits.ResourceUsage
}

// Prober issues one liveness probe. Implementations honor the context
// deadline; the monitor sets it strictly shorter than the probe
// interval so probes cannot pile up.
type Prober interface {
	Name() string
	Probe(ctx context.Context) ProbeResult
}

// PIDProvider returns the current observed PID for a unit, 0 when no
// process is known. The PID changes across restarts, so probers
// resolve it per probe.
type PIDProvider func() int

// GatewayProvider returns the unit's core gateway, nil before the
// channel exists.
type GatewayProvider func() coreapi.Contract

// UsageSampler yields the latest resource usage sample; the resource
// monitor satisfies it.
type UsageSampler interface {
	GetCurrentUsage() (*resourcelimits.ResourceUsage, error)
}

// processProber checks bare OS-level process existence. Used for
// unmanaged units.
type processProber struct {
	pid PIDProvider
}

func NewProcessProber(pid PIDProvider) Prober {
	return &processProber{pid: pid}
}

func (p *processProber) Name() string {
	return "process"
}

func (p *processProber) Probe(ctx context.Context) ProbeResult {
	return checkProcessAlive(p.pid())
}

func checkProcessAlive(pid int) ProbeResult {
	if pid <= 0 {
		return ProbeResult{OK: false, Detail: "no process attached"}
	}
	running, err := processstate.IsProcessRunning(pid)
	if err != nil {
		return ProbeResult{OK: false, Detail: fmt.Sprintf("process check failed, pid: %d, error: %v", pid, err)}
	}
	if !running {
		return ProbeResult{OK: false, Detail: fmt.Sprintf("process not running, pid: %d", pid)}
	}
	return ProbeResult{OK: true, Detail: fmt.Sprintf("process running, pid: %d", pid)}
}

// managedProber checks process existence plus resource usage against
// configured limits. A critical limit violation counts as a probe
// failure; warnings only annotate the result.
type managedProber struct {
	pid     PIDProvider
	sampler UsageSampler
	limits  *resourcelimits.ResourceLimits
	checker resourcelimits.ResourceViolationChecker
}

func NewManagedProber(pid PIDProvider, sampler UsageSampler, limits *resourcelimits.ResourceLimits, checker resourcelimits.ResourceViolationChecker) Prober {
	return &managedProber{
		pid:     pid,
		sampler: sampler,
		limits:  limits,
		checker: checker,
	}
}

func (p *managedProber) Name() string {
	return "managed"
}

func (p *managedProber) Probe(ctx context.Context) ProbeResult {
	result := checkProcessAlive(p.pid())
	if !result.OK || p.sampler == nil {
		return result
	}

	usage, err := p.sampler.GetCurrentUsage()
	if err != nil {
		// The process is alive; a failed sample is not a liveness miss.
		result.Detail = fmt.Sprintf("%s (usage sampling failed: %v)", result.Detail, err)
		return result
	}
	result.Usage = usage

	if p.limits == nil || p.checker == nil {
		return result
	}
	violations := p.checker.CheckViolations(usage, p.limits)
	for _, violation := range violations {
		if violation.Severity == resourcelimits.ViolationSeverityCritical {
			return ProbeResult{OK: false, Detail: violation.Message, Usage: usage}
		}
		result.Detail = fmt.Sprintf("%s (warning: %s)", result.Detail, violation.Message)
	}
	return result
}

// pingProber probes an integrated unit over its core channel.
type pingProber struct {
	gateway GatewayProvider
}

func NewPingProber(gateway GatewayProvider) Prober {
	return &pingProber{gateway: gateway}
}

func (p *pingProber) Name() string {
	return "ping"
}

func (p *pingProber) Probe(ctx context.Context) ProbeResult {
	gateway := p.gateway()
	if gateway == nil {
		return ProbeResult{OK: false, Detail: "no core channel"}
	}
	if err := gateway.Ping(ctx); err != nil {
		return ProbeResult{OK: false, Detail: fmt.Sprintf("ping failed: %v", err)}
	}
	return ProbeResult{OK: true, Detail: "ping ok"}
}

// healthProber asks an integrated unit for its own health report. A
// degraded report still counts as alive.
type healthProber struct {
	gateway GatewayProvider
}

func NewHealthProber(gateway GatewayProvider) Prober {
	return &healthProber{gateway: gateway}
}

func (p *healthProber) Name() string {
	return "health"
}

func (p *healthProber) Probe(ctx context.Context) ProbeResult {
	gateway := p.gateway()
	if gateway == nil {
		return ProbeResult{OK: false, Detail: "no core channel"}
	}
	report, err := gateway.GetHealth(ctx)
	if err != nil {
		return ProbeResult{OK: false, Detail: fmt.Sprintf("health call failed: %v", err)}
	}
	if !report.Ok {
		detail := report.Detail
		if detail == "" {
			detail = "unit reports unhealthy"
		}
		return ProbeResult{OK: false, Detail: detail}
	}
	if report.Degraded {
		detail := report.Detail
		if detail == "" {
			detail = "unit reports degraded"
		}
		return ProbeResult{OK: true, Detail: detail}
	}
	return ProbeResult{OK: true, Detail: "health ok"}
}

// NewProberForMethod builds the integrated-unit prober selected by the
// probe options.
func NewProberForMethod(method ProbeMethod, gateway GatewayProvider) Prober {
	if method == ProbeMethodHealth {
		return NewHealthProber(gateway)
	}
	return NewPingProber(gateway)
}
