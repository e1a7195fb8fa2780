package monitoring

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/core-tools/hsu-unitmaster/pkg/coreapi"
	"github.com/core-tools/hsu-unitmaster/pkg/errors"
	"github.com/core-tools/hsu-unitmaster/pkg/logging"
	"github.com/core-tools/hsu-unitmaster/pkg/resourcelimits"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProcessProber(t *testing.T) {
	t.Run("own_process_is_running", func(t *testing.T) {
		prober := NewProcessProber(func() int { return os.Getpid() })
		result := prober.Probe(context.Background())
		assert.True(t, result.OK)
	})

	t.Run("no_process_attached", func(t *testing.T) {
		prober := NewProcessProber(func() int { return 0 })
		result := prober.Probe(context.Background())
		assert.False(t, result.OK)
		assert.Equal(t, "no process attached", result.Detail)
	})

	t.Run("dead_pid", func(t *testing.T) {
		prober := NewProcessProber(func() int { return 999999999 })
		result := prober.Probe(context.Background())
		assert.False(t, result.OK)
	})
}

type fakeSampler struct {
	mutex sync.Mutex
	usage *resourcelimits.ResourceUsage
	err   error
	calls int
}

func (s *fakeSampler) GetCurrentUsage() (*resourcelimits.ResourceUsage, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.usage, nil
}

func (s *fakeSampler) callCount() int {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.calls
}

func TestManagedProber(t *testing.T) {
	livePID := func() int { return os.Getpid() }
	checker := resourcelimits.NewResourceViolationChecker(logging.NewNullLogger())

	t.Run("alive_with_usage", func(t *testing.T) {
		sampler := &fakeSampler{usage: &resourcelimits.ResourceUsage{MemoryRSS: 128 << 20, Timestamp: time.Now()}}
		prober := NewManagedProber(livePID, sampler, nil, nil)

		result := prober.Probe(context.Background())
		assert.True(t, result.OK)
		require.NotNil(t, result.Usage)
		assert.Equal(t, int64(128<<20), result.Usage.MemoryRSS)
	})

	t.Run("critical_violation_fails_probe", func(t *testing.T) {
		sampler := &fakeSampler{usage: &resourcelimits.ResourceUsage{MemoryRSS: 2 << 30, Timestamp: time.Now()}}
		limits := &resourcelimits.ResourceLimits{
			Memory: &resourcelimits.MemoryLimits{MaxRSS: 1 << 30},
		}
		prober := NewManagedProber(livePID, sampler, limits, checker)

		result := prober.Probe(context.Background())
		assert.False(t, result.OK)
		assert.Contains(t, result.Detail, "exceeds limit")
		assert.NotNil(t, result.Usage)
	})

	t.Run("warning_violation_stays_alive", func(t *testing.T) {
		sampler := &fakeSampler{usage: &resourcelimits.ResourceUsage{MemoryRSS: 950 << 20, Timestamp: time.Now()}}
		limits := &resourcelimits.ResourceLimits{
			Memory: &resourcelimits.MemoryLimits{MaxRSS: 1 << 30, WarningThreshold: 90},
		}
		prober := NewManagedProber(livePID, sampler, limits, checker)

		result := prober.Probe(context.Background())
		assert.True(t, result.OK)
		assert.Contains(t, result.Detail, "warning")
	})

	t.Run("sampling_error_stays_alive", func(t *testing.T) {
		sampler := &fakeSampler{err: errors.NewIOError("proc read failed", nil)}
		prober := NewManagedProber(livePID, sampler, nil, nil)

		result := prober.Probe(context.Background())
		assert.True(t, result.OK)
		assert.Contains(t, result.Detail, "usage sampling failed")
	})

	t.Run("dead_process_skips_sampling", func(t *testing.T) {
		sampler := &fakeSampler{usage: &resourcelimits.ResourceUsage{}}
		prober := NewManagedProber(func() int { return 0 }, sampler, nil, nil)

		result := prober.Probe(context.Background())
		assert.False(t, result.OK)
		assert.Equal(t, 0, sampler.callCount())
	})
}

type fakeGateway struct {
	pingErr   error
	health    *coreapi.HealthReport
	healthErr error
}

func (g *fakeGateway) Ping(ctx context.Context) error {
	return g.pingErr
}

func (g *fakeGateway) GetHealth(ctx context.Context) (*coreapi.HealthReport, error) {
	if g.healthErr != nil {
		return nil, g.healthErr
	}
	return g.health, nil
}

func (g *fakeGateway) Shutdown(ctx context.Context, deadline time.Duration) error {
	return nil
}

func (g *fakeGateway) StreamLogs(ctx context.Context, sinceCursor string, sink coreapi.LogSink) error {
	return nil
}

func gatewayOf(contract coreapi.Contract) GatewayProvider {
	return func() coreapi.Contract { return contract }
}

func TestPingProber(t *testing.T) {
	t.Run("no_channel", func(t *testing.T) {
		prober := NewPingProber(func() coreapi.Contract { return nil })
		result := prober.Probe(context.Background())
		assert.False(t, result.OK)
		assert.Equal(t, "no core channel", result.Detail)
	})

	t.Run("ping_ok", func(t *testing.T) {
		prober := NewPingProber(gatewayOf(&fakeGateway{}))
		result := prober.Probe(context.Background())
		assert.True(t, result.OK)
	})

	t.Run("ping_error", func(t *testing.T) {
		prober := NewPingProber(gatewayOf(&fakeGateway{pingErr: errors.NewCommunicationError("endpoint unavailable", nil)}))
		result := prober.Probe(context.Background())
		assert.False(t, result.OK)
		assert.Contains(t, result.Detail, "ping failed")
	})
}

func TestHealthProber(t *testing.T) {
	t.Run("healthy_report", func(t *testing.T) {
		prober := NewHealthProber(gatewayOf(&fakeGateway{health: &coreapi.HealthReport{Ok: true}}))
		result := prober.Probe(context.Background())
		assert.True(t, result.OK)
		assert.Equal(t, "health ok", result.Detail)
	})

	t.Run("degraded_counts_as_alive", func(t *testing.T) {
		prober := NewHealthProber(gatewayOf(&fakeGateway{health: &coreapi.HealthReport{Ok: true, Degraded: true, Detail: "replica lag"}}))
		result := prober.Probe(context.Background())
		assert.True(t, result.OK)
		assert.Equal(t, "replica lag", result.Detail)
	})

	t.Run("unhealthy_report", func(t *testing.T) {
		prober := NewHealthProber(gatewayOf(&fakeGateway{health: &coreapi.HealthReport{Ok: false, Detail: "db down"}}))
		result := prober.Probe(context.Background())
		assert.False(t, result.OK)
		assert.Equal(t, "db down", result.Detail)
	})

	t.Run("call_error", func(t *testing.T) {
		prober := NewHealthProber(gatewayOf(&fakeGateway{healthErr: errors.NewTimeoutError("core call deadline exceeded", nil)}))
		result := prober.Probe(context.Background())
		assert.False(t, result.OK)
		assert.Contains(t, result.Detail, "health call failed")
	})

	t.Run("no_channel", func(t *testing.T) {
		prober := NewHealthProber(func() coreapi.Contract { return nil })
		result := prober.Probe(context.Background())
		assert.False(t, result.OK)
	})
}

func TestNewProberForMethod(t *testing.T) {
	gateway := gatewayOf(&fakeGateway{})

	assert.Equal(t, "ping", NewProberForMethod(ProbeMethodPing, gateway).Name())
	assert.Equal(t, "ping", NewProberForMethod("", gateway).Name())
	assert.Equal(t, "health", NewProberForMethod(ProbeMethodHealth, gateway).Name())
}
