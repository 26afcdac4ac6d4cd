package services

import (
	"context"

	"github.com/Skozial17/supportchat/application/ports"
	"github.com/Skozial17/supportchat/domain/core/aggregates"
)

// LoadSession rehydrates a stored case with its flow graph.
func LoadSession(ctx context.Context, cases ports.CaseRepository, flows ports.FlowCatalog, store aggregates.Store, caseID string, opts ...aggregates.SessionOption) (*aggregates.CaseSession, error) {
	record, err := cases.Get(ctx, caseID)
	if err != nil {
		return nil, err
	}
	graph, err := flows.Graph(record.Snapshot.Flow)
	if err != nil {
		return nil, err
	}
	return aggregates.ReconstructCaseSession(record.Snapshot, graph, store, record.Messages, opts...)
}
