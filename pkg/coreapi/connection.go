package coreapi

import (
	"context"
	"fmt"
	"sync"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/core-tools/hsu-unitmaster/pkg/errors"
	"github.com/core-tools/hsu-unitmaster/pkg/logging"
)

// ConnectionManager owns one long-lived gRPC channel per unit. A
// channel is created lazily on first use and torn down when the unit
// deregisters. Dialing is non-blocking, so an unreachable endpoint
// surfaces on the first call rather than at channel creation.
type ConnectionManager struct {
	logger logging.Logger

	mutex       sync.Mutex
	connections map[string]*unitConnection
}

type unitConnection struct {
	endpoint string
	conn     *grpc.ClientConn
	gateway  Contract
}

func NewConnectionManager(logger logging.Logger) *ConnectionManager {
	return &ConnectionManager{
		logger:      logger,
		connections: make(map[string]*unitConnection),
	}
}

// Gateway returns the unit's core contract, creating the channel on
// first use. A changed endpoint replaces the stale channel, which
// covers units that restarted on a different port.
func (cm *ConnectionManager) Gateway(unitID string, endpoint string) (Contract, error) {
	if endpoint == "" {
		return nil, errors.NewValidationError("empty endpoint for unit channel", nil).WithContext("unit_id", unitID)
	}

	cm.mutex.Lock()
	defer cm.mutex.Unlock()

	existing, ok := cm.connections[unitID]
	if ok && existing.endpoint == endpoint {
		return existing.gateway, nil
	}
	if ok {
		existing.conn.Close()
		delete(cm.connections, unitID)
		cm.logger.Debugf("Core channel replaced, unit: %s, endpoint: %s", unitID, endpoint)
	}

	conn, err := grpc.Dial(endpoint, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, errors.NewCommunicationError("failed to create core channel", err).
			WithContext("unit_id", unitID).
			WithContext("endpoint", endpoint)
	}

	cm.logger.Infof("Core channel created, unit: %s, endpoint: %s", unitID, endpoint)

	unitConn := &unitConnection{
		endpoint: endpoint,
		conn:     conn,
		gateway:  NewGRPCClientGateway(conn, logging.Prefixed(cm.logger, fmt.Sprintf("unit: %s , ", unitID))),
	}
	cm.connections[unitID] = unitConn
	return unitConn.gateway, nil
}

// Invoke dispatches an opaque business call over the unit's existing
// channel. The channel must have been created via Gateway first.
func (cm *ConnectionManager) Invoke(ctx context.Context, unitID string, method string, payload []byte) ([]byte, error) {
	cm.mutex.Lock()
	unitConn, ok := cm.connections[unitID]
	cm.mutex.Unlock()

	if !ok {
		return nil, errors.NewNotFoundError("no core channel for unit", nil).WithContext("unit_id", unitID)
	}
	return Invoke(ctx, unitConn.conn, method, payload, cm.logger)
}

// Close tears down the unit's channel. Deregistration calls this; a
// missing channel is not an error.
func (cm *ConnectionManager) Close(unitID string) {
	cm.mutex.Lock()
	unitConn, ok := cm.connections[unitID]
	delete(cm.connections, unitID)
	cm.mutex.Unlock()

	if ok {
		unitConn.conn.Close()
		cm.logger.Infof("Core channel closed, unit: %s", unitID)
	}
}

// CloseAll tears down every channel.
func (cm *ConnectionManager) CloseAll() {
	cm.mutex.Lock()
	connections := cm.connections
	cm.connections = make(map[string]*unitConnection)
	cm.mutex.Unlock()

	for unitID, unitConn := range connections {
		unitConn.conn.Close()
		cm.logger.Debugf("Core channel closed, unit: %s", unitID)
	}
}
