package coreapi

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"

	"github.com/core-tools/hsu-unitmaster/pkg/errors"
	"github.com/core-tools/hsu-unitmaster/pkg/logging"
)

const correlationIDHeader = "x-correlation-id"

// Invoke dispatches a unit business method over an existing channel
// without knowing its message types: the payload travels as pre-encoded
// bytes and the response comes back the same way. A fresh correlation
// ID is stamped into the outgoing metadata so unit-side logs can be
// matched to master-side calls.
func Invoke(ctx context.Context, conn grpc.ClientConnInterface, fullMethod string, payload []byte, logger logging.Logger) ([]byte, error) {
	if conn == nil {
		return nil, errors.NewValidationError("nil connection for invoke", nil)
	}
	if !strings.HasPrefix(fullMethod, "/") {
		fullMethod = "/" + fullMethod
	}

	correlationID := uuid.New().String()
	ctx = metadata.AppendToOutgoingContext(ctx, correlationIDHeader, correlationID)

	in := &rawPayload{data: payload}
	out := &rawPayload{}
	err := conn.Invoke(ctx, fullMethod, in, out, grpc.ForceCodec(rawCodec{}))
	if err != nil {
		logger.Errorf("Invoke client gateway: %v, method: %s, correlation_id: %s", err, fullMethod, correlationID)
		return nil, translateRPCError(err)
	}
	logger.Debugf("Invoke client gateway done, method: %s, correlation_id: %s", fullMethod, correlationID)
	return out.data, nil
}

type rawPayload struct {
	data []byte
}

// rawCodec passes payloads through untouched. Its name still reports
// "proto" so the server side decodes frames with its own registered
// proto codec.
type rawCodec struct{}

func (rawCodec) Marshal(v interface{}) ([]byte, error) {
	payload, ok := v.(*rawPayload)
	if !ok {
		return nil, errors.NewInternalError("raw codec cannot marshal typed message", nil)
	}
	return payload.data, nil
}

func (rawCodec) Unmarshal(data []byte, v interface{}) error {
	payload, ok := v.(*rawPayload)
	if !ok {
		return errors.NewInternalError("raw codec cannot unmarshal typed message", nil)
	}
	payload.data = data
	return nil
}

func (rawCodec) Name() string {
	return "proto"
}
