package observability

import (
	"context"
	"log/slog"

	"github.com/aretw0/parley/pkg/domain"
)

// LoggingHooks writes every lifecycle event to logger at debug level,
// except terminations, which are logged at info.
func LoggingHooks(logger *slog.Logger) domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnNodeVisit: func(ctx context.Context, e *domain.NodeEvent) {
			logger.DebugContext(ctx, "node_visit", "node_id", e.NodeID, "type", e.NodeType)
		},
		OnSuspend: func(ctx context.Context, e *domain.NodeEvent) {
			logger.DebugContext(ctx, "suspend", "node_id", e.NodeID, "type", e.NodeType)
		},
		OnTerminate: func(ctx context.Context, e *domain.TerminateEvent) {
			logger.InfoContext(ctx, "terminate", "last_node_id", e.LastNodeID, "reason", e.Reason)
		},
		OnVariableSet: func(ctx context.Context, e *domain.VariableEvent) {
			logger.DebugContext(ctx, "variable_set",
				"node_id", e.NodeID,
				"name", e.Name,
				"previous", e.Previous,
				"value", e.Value)
		},
	}
}
