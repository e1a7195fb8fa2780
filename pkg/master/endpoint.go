package master

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/core-tools/hsu-unitmaster/pkg/coreapi"
	"github.com/core-tools/hsu-unitmaster/pkg/errors"
	"github.com/core-tools/hsu-unitmaster/pkg/units"
)

// logStreamBatch is how many buffered entries one replay round moves.
const logStreamBatch = 256

// masterEndpoint exposes the master itself over the core API: liveness,
// a health roll-up across all units, remote shutdown, and unit log
// streaming.
type masterEndpoint struct {
	master *Master
}

func newMasterEndpoint(master *Master) coreapi.Contract {
	return &masterEndpoint{master: master}
}

func (e *masterEndpoint) Ping(ctx context.Context) error {
	return nil
}

// GetHealth rolls the unit states up into one report: ok while the
// master runs, degraded when any unit is unhealthy, restarting or
// failed.
func (e *masterEndpoint) GetHealth(ctx context.Context) (*coreapi.HealthReport, error) {
	masterState := e.master.GetMasterState()
	unitsCopy := e.master.ListUnits(units.ListFilter{})

	counts := make(map[units.UnitState]int)
	degraded := false
	for _, unit := range unitsCopy {
		counts[unit.State]++
		switch unit.State {
		case units.UnitStateUnhealthy, units.UnitStateRestarting, units.UnitStateFailed:
			degraded = true
		}
	}

	summary := make([]string, 0, len(counts))
	for _, state := range []units.UnitState{
		units.UnitStateRegistered, units.UnitStateStarting, units.UnitStateHealthy,
		units.UnitStateUnhealthy, units.UnitStateRestarting, units.UnitStateStopping,
		units.UnitStateStopped, units.UnitStateFailed,
	} {
		if count := counts[state]; count > 0 {
			summary = append(summary, fmt.Sprintf("%s: %d", state, count))
		}
	}

	detail := fmt.Sprintf("master: %s", masterState)
	if len(summary) > 0 {
		detail = fmt.Sprintf("%s, units: %s", detail, strings.Join(summary, ", "))
	}

	return &coreapi.HealthReport{
		Ok:       masterState == MasterStateRunning,
		Degraded: degraded,
		Detail:   detail,
	}, nil
}

// Shutdown acknowledges immediately and stops the master in the
// background, so the requesting stream can close before the server
// goes down.
func (e *masterEndpoint) Shutdown(ctx context.Context, deadline time.Duration) error {
	e.master.logger.Infof("Shutdown requested over core API, deadline: %s", deadline)
	go func() {
		stopCtx := context.Background()
		cancel := context.CancelFunc(func() {})
		if deadline > 0 {
			stopCtx, cancel = context.WithTimeout(stopCtx, deadline)
		}
		defer cancel()
		if err := e.master.Stop(stopCtx); err != nil {
			e.master.logger.Errorf("Shutdown completed with errors: %v", err)
		}
	}()
	return nil
}

// StreamLogs replays buffered log entries of one unit and then follows
// new ones until the caller goes away. The cursor selects the unit and
// the resume position: "<unit_id>" from the oldest retained entry, or
// "<unit_id>:<offset>" to resume after a previously streamed record.
func (e *masterEndpoint) StreamLogs(ctx context.Context, sinceCursor string, sink coreapi.LogSink) error {
	service := e.master.logs.Service()
	if service == nil {
		return errors.NewValidationError("log collection is disabled", nil)
	}

	unitID, offset, err := parseLogCursor(sinceCursor)
	if err != nil {
		return err
	}

	// Subscribe before the first read so appends between replay and
	// follow are never missed.
	notify, cancelSubscription, err := service.Subscribe(unitID)
	if err != nil {
		return err
	}
	defer cancelSubscription()

	cursor := offset
	for {
		entries, next, err := service.ReadLogs(unitID, cursor, logStreamBatch)
		if err != nil {
			return err
		}
		for _, entry := range entries {
			record := coreapi.LogRecord{
				Cursor:    unitID + ":" + strconv.FormatUint(entry.Cursor, 10),
				Timestamp: entry.Timestamp,
				Line:      entry.Line,
			}
			if err := sink(record); err != nil {
				return err
			}
		}
		cursor = next
		if len(entries) == logStreamBatch {
			// More backlog may be waiting.
			continue
		}

		select {
		case _, ok := <-notify:
			if !ok {
				// Unit unregistered or service stopped.
				return nil
			}
		case <-ctx.Done():
			return ctx.Err()
		case <-e.master.runCtx.Done():
			return nil
		}
	}
}

func parseLogCursor(cursor string) (string, uint64, error) {
	if cursor == "" {
		return "", 0, errors.NewValidationError(
			"log cursor must name a unit: '<unit_id>' or '<unit_id>:<offset>'", nil)
	}

	unitID := cursor
	var offset uint64
	if idx := strings.LastIndex(cursor, ":"); idx >= 0 {
		parsed, err := strconv.ParseUint(cursor[idx+1:], 10, 64)
		if err != nil {
			return "", 0, errors.NewValidationError("invalid log cursor offset", err).WithContext("cursor", cursor)
		}
		unitID = cursor[:idx]
		offset = parsed
	}

	if err := units.ValidateUnitID(unitID); err != nil {
		return "", 0, errors.NewValidationError("invalid unit ID in log cursor", err).WithContext("cursor", cursor)
	}
	return unitID, offset, nil
}
