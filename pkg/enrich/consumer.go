package enrich

import (
	"context"
	"encoding/json"
	"fmt"

	"thoughtpost/pkg/channel"
	"thoughtpost/pkg/logger"
)

// ResponseSink receives parsed agent responses. Implemented by the
// lifecycle orchestrator, which owns all status transitions.
type ResponseSink interface {
	HandleAgentResponse(ctx context.Context, msg *Response) error
}

// ResponseHandler adapts a sink to a channel handler. Deserialization
// failures are returned as errors so the channel's bounded retry-then-skip
// policy applies; a malformed message can never crash the consumer.
func ResponseHandler(sink ResponseSink) channel.Handler {
	return func(ctx context.Context, key string, payload []byte) error {
		var msg Response
		if err := json.Unmarshal(payload, &msg); err != nil {
			return fmt.Errorf("undeserializable agent response (key %s): %w", key, err)
		}
		if msg.RequestID == "" {
			return fmt.Errorf("agent response without request_id (key %s)", key)
		}
		logger.Info("agent_response_received", "request", msg.RequestID, "status", msg.Status,
			"platforms", len(msg.EnrichedContents))
		return sink.HandleAgentResponse(ctx, &msg)
	}
}
