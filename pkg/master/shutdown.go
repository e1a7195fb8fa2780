package master

import (
	"context"
	"sync"

	"github.com/core-tools/hsu-unitmaster/pkg/errors"
	"github.com/core-tools/hsu-unitmaster/pkg/units"
)

// stopAllUnits stops every unit, dependents strictly before the units
// they depend on. Units with no ordering relation between them stop
// concurrently, so one unit dragging through its grace window never
// delays an independent one; the context bounds the whole operation.
// Returns unit ids in completion order.
func (m *Master) stopAllUnits(ctx context.Context, errorCollection *errors.ErrorCollection) []string {
	supervisorsCopy := m.getAllSupervisors()
	unitsCopy := m.registry.List(units.ListFilter{})

	// dependents[v] lists the units that must be down before v stops.
	dependents := make(map[string][]string)
	for _, unit := range unitsCopy {
		for _, dependency := range unit.DependsOn {
			dependents[dependency] = append(dependents[dependency], unit.ID)
		}
	}

	done := make(map[string]chan struct{}, len(unitsCopy))
	for _, unit := range unitsCopy {
		done[unit.ID] = make(chan struct{})
	}

	var mu sync.Mutex
	var order []string
	var wg sync.WaitGroup

	// Launch in reverse registration order; with no dependency edges
	// that makes last-registered stop first.
	for i := len(unitsCopy) - 1; i >= 0; i-- {
		unit := unitsCopy[i]
		supervisor := supervisorsCopy[unit.ID]
		if supervisor == nil {
			close(done[unit.ID])
			continue
		}

		wg.Add(1)
		go func(id string, supervisor *unitSupervisor) {
			defer wg.Done()
			defer close(done[id])

			for _, dependent := range dependents[id] {
				select {
				case <-done[dependent]:
				case <-ctx.Done():
					// Out of time; stop anyway rather than leave the
					// process running.
				}
			}

			err := supervisor.requestStop(ctx)

			mu.Lock()
			if err != nil {
				errorCollection.Add(errors.NewProcessError("failed to stop unit", err).WithContext("unit_id", id))
			} else {
				order = append(order, id)
			}
			mu.Unlock()
		}(unit.ID, supervisor)
	}

	wg.Wait()
	return order
}
