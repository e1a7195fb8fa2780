package monitoring

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/core-tools/hsu-unitmaster/pkg/errors"
	"github.com/core-tools/hsu-unitmaster/pkg/logging"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedProber returns queued results, repeating the last one.
type scriptedProber struct {
	mutex   sync.Mutex
	results []ProbeResult
	calls   int
}

func (p *scriptedProber) Name() string { return "scripted" }

func (p *scriptedProber) Probe(ctx context.Context) ProbeResult {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	p.calls++
	if len(p.results) == 0 {
		return ProbeResult{OK: true, Detail: "ok"}
	}
	result := p.results[0]
	if len(p.results) > 1 {
		p.results = p.results[1:]
	}
	return result
}

func (p *scriptedProber) callCount() int {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	return p.calls
}

func pass() ProbeResult {
	return ProbeResult{OK: true, Detail: "ok"}
}

func fail(detail string) ProbeResult {
	return ProbeResult{OK: false, Detail: detail}
}

type eventRecorder struct {
	mutex  sync.Mutex
	events []ProbeEvent
}

func (r *eventRecorder) record(event ProbeEvent) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.events = append(r.events, event)
}

func (r *eventRecorder) all() []ProbeEvent {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	return append([]ProbeEvent(nil), r.events...)
}

type heartbeatRecorder struct {
	mutex sync.Mutex
	beats int
}

func (r *heartbeatRecorder) SetHeartbeat(id string, at time.Time) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.beats++
	return nil
}

func (r *heartbeatRecorder) count() int {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	return r.beats
}

func newProbeHarness(t *testing.T, prober Prober, options ProbeOptions) (*healthMonitor, *eventRecorder, *heartbeatRecorder) {
	t.Helper()
	events := &eventRecorder{}
	heartbeats := &heartbeatRecorder{}
	monitor := NewHealthMonitor(HealthMonitorConfig{
		UnitID:     "unit-1",
		Prober:     prober,
		Options:    options,
		Heartbeats: heartbeats,
		Callback:   events.record,
	}, logging.NewNullLogger()).(*healthMonitor)
	return monitor, events, heartbeats
}

func testProbeOptions() ProbeOptions {
	return ProbeOptions{
		Enabled:          true,
		Interval:         50 * time.Millisecond,
		Timeout:          20 * time.Millisecond,
		FailureThreshold: 3,
		RestartAfter:     time.Hour,
	}
}

func TestHealthMonitor_Debounce(t *testing.T) {
	ctx := context.Background()

	t.Run("single_miss_stays_quiet", func(t *testing.T) {
		prober := &scriptedProber{results: []ProbeResult{fail("miss")}}
		monitor, events, _ := newProbeHarness(t, prober, testProbeOptions())

		monitor.performProbe(ctx)

		assert.Empty(t, events.all())
		state := monitor.State()
		assert.Equal(t, ProbeStatusDegraded, state.Status)
		assert.Equal(t, 1, state.ConsecutiveFailures)
	})

	t.Run("threshold_crossing_reports_unhealthy_once", func(t *testing.T) {
		prober := &scriptedProber{results: []ProbeResult{fail("miss")}}
		monitor, events, _ := newProbeHarness(t, prober, testProbeOptions())

		for i := 0; i < 2; i++ {
			monitor.performProbe(ctx)
		}
		assert.Empty(t, events.all())

		monitor.performProbe(ctx)
		recorded := events.all()
		require.Len(t, recorded, 1)
		assert.Equal(t, VerdictUnhealthy, recorded[0].Verdict)
		assert.Equal(t, "miss", recorded[0].Detail)
		assert.Equal(t, "unit-1", recorded[0].UnitID)

		// Further misses do not repeat the verdict.
		monitor.performProbe(ctx)
		assert.Len(t, events.all(), 1)
		assert.Equal(t, ProbeStatusUnhealthy, monitor.State().Status)
	})

	t.Run("single_success_recovers", func(t *testing.T) {
		prober := &scriptedProber{results: []ProbeResult{fail("miss"), fail("miss"), fail("miss"), pass()}}
		monitor, events, _ := newProbeHarness(t, prober, testProbeOptions())

		for i := 0; i < 4; i++ {
			monitor.performProbe(ctx)
		}

		recorded := events.all()
		require.Len(t, recorded, 2)
		assert.Equal(t, VerdictUnhealthy, recorded[0].Verdict)
		assert.Equal(t, VerdictHealthy, recorded[1].Verdict)

		state := monitor.State()
		assert.Equal(t, ProbeStatusHealthy, state.Status)
		assert.Equal(t, 0, state.ConsecutiveFailures)
		assert.Equal(t, 1, state.ConsecutiveSuccesses)
	})
}

func TestHealthMonitor_FirstHealthyProbeReports(t *testing.T) {
	monitor, events, heartbeats := newProbeHarness(t, &scriptedProber{}, testProbeOptions())

	monitor.performProbe(context.Background())

	recorded := events.all()
	require.Len(t, recorded, 1)
	assert.Equal(t, VerdictHealthy, recorded[0].Verdict)
	assert.Equal(t, 1, heartbeats.count())
}

func TestHealthMonitor_HeartbeatOnEverySuccess(t *testing.T) {
	monitor, events, heartbeats := newProbeHarness(t, &scriptedProber{}, testProbeOptions())

	for i := 0; i < 3; i++ {
		monitor.performProbe(context.Background())
	}

	assert.Equal(t, 3, heartbeats.count())
	// Only the first success flips the status.
	assert.Len(t, events.all(), 1)
}

func TestHealthMonitor_RestartRequest(t *testing.T) {
	ctx := context.Background()

	t.Run("requested_after_unhealthy_persists", func(t *testing.T) {
		options := testProbeOptions()
		options.FailureThreshold = 1
		options.RestartAfter = 5 * time.Millisecond

		prober := &scriptedProber{results: []ProbeResult{fail("down")}}
		monitor, events, _ := newProbeHarness(t, prober, options)

		monitor.performProbe(ctx)
		recorded := events.all()
		require.Len(t, recorded, 1)
		assert.Equal(t, VerdictUnhealthy, recorded[0].Verdict)

		time.Sleep(10 * time.Millisecond)
		monitor.performProbe(ctx)
		recorded = events.all()
		require.Len(t, recorded, 2)
		assert.Equal(t, VerdictRestartNeeded, recorded[1].Verdict)

		// Only one restart request per unhealthy episode.
		monitor.performProbe(ctx)
		assert.Len(t, events.all(), 2)
	})

	t.Run("recovery_arms_a_new_episode", func(t *testing.T) {
		options := testProbeOptions()
		options.FailureThreshold = 1
		options.RestartAfter = 5 * time.Millisecond

		prober := &scriptedProber{results: []ProbeResult{fail("down"), fail("down"), pass(), fail("down"), fail("down")}}
		monitor, events, _ := newProbeHarness(t, prober, options)

		monitor.performProbe(ctx)
		time.Sleep(10 * time.Millisecond)
		monitor.performProbe(ctx)
		monitor.performProbe(ctx)
		monitor.performProbe(ctx)
		time.Sleep(10 * time.Millisecond)
		monitor.performProbe(ctx)

		verdicts := make([]Verdict, 0, 5)
		for _, event := range events.all() {
			verdicts = append(verdicts, event.Verdict)
		}
		assert.Equal(t, []Verdict{
			VerdictUnhealthy,
			VerdictRestartNeeded,
			VerdictHealthy,
			VerdictUnhealthy,
			VerdictRestartNeeded,
		}, verdicts)
	})
}

type blockingProber struct{}

func (blockingProber) Name() string { return "blocking" }

func (blockingProber) Probe(ctx context.Context) ProbeResult {
	<-ctx.Done()
	return ProbeResult{OK: false, Detail: fmt.Sprintf("probe aborted: %v", ctx.Err())}
}

func TestHealthMonitor_ProbeTimeout(t *testing.T) {
	options := testProbeOptions()
	options.FailureThreshold = 1
	monitor, events, _ := newProbeHarness(t, blockingProber{}, options)

	started := time.Now()
	monitor.performProbe(context.Background())
	elapsed := time.Since(started)

	assert.Less(t, elapsed, time.Second)
	recorded := events.all()
	require.Len(t, recorded, 1)
	assert.Equal(t, VerdictUnhealthy, recorded[0].Verdict)
	assert.Contains(t, monitor.State().Message, "deadline exceeded")
}

func TestHealthMonitor_StartStop(t *testing.T) {
	options := testProbeOptions()
	options.Interval = 10 * time.Millisecond
	options.Timeout = 5 * time.Millisecond

	prober := &scriptedProber{}
	monitor, _, heartbeats := newProbeHarness(t, prober, options)

	require.NoError(t, monitor.Start(context.Background()))
	assert.Eventually(t, func() bool {
		return heartbeats.count() >= 2
	}, 2*time.Second, 5*time.Millisecond)

	monitor.Stop()
	settled := heartbeats.count()
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, settled, heartbeats.count())
}

func TestHealthMonitor_DisabledDoesNotProbe(t *testing.T) {
	options := testProbeOptions()
	options.Enabled = false

	prober := &scriptedProber{}
	monitor, _, _ := newProbeHarness(t, prober, options)

	require.NoError(t, monitor.Start(context.Background()))
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, 0, prober.callCount())
	monitor.Stop()
}

func TestHealthMonitor_InvalidOptions(t *testing.T) {
	options := testProbeOptions()
	options.Timeout = options.Interval * 2

	monitor, _, _ := newProbeHarness(t, &scriptedProber{}, options)

	err := monitor.Start(context.Background())
	require.Error(t, err)
	assert.True(t, errors.IsValidationError(err))
}

func TestHealthMonitor_StateReturnsCopy(t *testing.T) {
	monitor, _, _ := newProbeHarness(t, &scriptedProber{}, testProbeOptions())
	monitor.performProbe(context.Background())

	state := monitor.State()
	state.Status = ProbeStatusUnhealthy
	state.ConsecutiveSuccesses = 99

	assert.Equal(t, ProbeStatusHealthy, monitor.State().Status)
	assert.Equal(t, 1, monitor.State().ConsecutiveSuccesses)
}
