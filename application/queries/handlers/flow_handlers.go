package handlers

import (
	"context"

	"github.com/Skozial17/supportchat/application/ports"
	"github.com/Skozial17/supportchat/application/queries"
	"github.com/Skozial17/supportchat/application/queries/bus"
)

// FlowQueryHandler serves the loaded conversation graphs
type FlowQueryHandler struct {
	flows ports.FlowCatalog
}

// NewFlowQueryHandler creates a flow query handler
func NewFlowQueryHandler(flows ports.FlowCatalog) *FlowQueryHandler {
	return &FlowQueryHandler{flows: flows}
}

// Register binds the flow queries on the bus
func (h *FlowQueryHandler) Register(b *bus.QueryBus) error {
	if err := b.Register(queries.ListFlowsQuery{}, bus.QueryHandlerFunc(func(ctx context.Context, q bus.Query) (interface{}, error) {
		return h.HandleListFlows(ctx, q.(queries.ListFlowsQuery))
	})); err != nil {
		return err
	}
	return b.Register(queries.GetFlowQuery{}, bus.QueryHandlerFunc(func(ctx context.Context, q bus.Query) (interface{}, error) {
		return h.HandleGetFlow(ctx, q.(queries.GetFlowQuery))
	}))
}

func (h *FlowQueryHandler) HandleListFlows(_ context.Context, _ queries.ListFlowsQuery) (*queries.FlowListResult, error) {
	result := &queries.FlowListResult{Default: h.flows.DefaultFlow()}
	for _, name := range h.flows.Names() {
		graph, err := h.flows.Graph(name)
		if err != nil {
			return nil, err
		}
		result.Flows = append(result.Flows, queries.FlowSummary{
			Name:       graph.Name(),
			Title:      graph.Title(),
			OnComplete: string(graph.OnComplete()),
			Default:    name == result.Default,
		})
	}
	return result, nil
}

func (h *FlowQueryHandler) HandleGetFlow(_ context.Context, q queries.GetFlowQuery) (*queries.FlowResult, error) {
	graph, err := h.flows.Graph(q.Name)
	if err != nil {
		return nil, err
	}
	return &queries.FlowResult{Definition: graph.Definition()}, nil
}
