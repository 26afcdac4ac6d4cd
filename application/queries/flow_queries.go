package queries

import (
	"errors"

	"github.com/Skozial17/supportchat/domain/conversation"
)

// ListFlowsQuery lists the loaded conversation graphs
type ListFlowsQuery struct{}

func (q ListFlowsQuery) Validate() error { return nil }

func (q ListFlowsQuery) CacheKey() string { return "flows:list" }

// FlowSummary names one conversation graph
type FlowSummary struct {
	Name       string `json:"name"`
	Title      string `json:"title"`
	OnComplete string `json:"on_complete"`
	Default    bool   `json:"default"`
}

type FlowListResult struct {
	Flows   []FlowSummary `json:"flows"`
	Default string        `json:"default"`
}

// GetFlowQuery reads one graph's step table
type GetFlowQuery struct {
	Name string
}

func (q GetFlowQuery) Validate() error {
	if q.Name == "" {
		return errors.New("flow name is required")
	}
	return nil
}

func (q GetFlowQuery) CacheKey() string { return "flows:" + q.Name }

// FlowResult is a graph definition as served to presentation layers
type FlowResult struct {
	conversation.Definition
}
