package dynamodb

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Skozial17/supportchat/application/ports"
	"github.com/Skozial17/supportchat/domain/events"
	"github.com/Skozial17/supportchat/pkg/utils"
)

// batchWriteLimit is the DynamoDB cap on items per BatchWriteItem call.
const batchWriteLimit = 25

// EventRecord is how an audit event is stored.
type EventRecord struct {
	PK          string `dynamodbav:"PK"` // EVENTS#<aggregate_id>
	SK          string `dynamodbav:"SK"` // EVENT#<timestamp>#<version>#<event_id>
	EntityType  string `dynamodbav:"EntityType"`
	EventID     string `dynamodbav:"EventID"`
	EventType   string `dynamodbav:"EventType"`
	AggregateID string `dynamodbav:"AggregateID"`
	Payload     string `dynamodbav:"Payload"`
	Timestamp   string `dynamodbav:"Timestamp"`
	Version     int    `dynamodbav:"Version"`
	TTL         int64  `dynamodbav:"TTL,omitempty"`
}

// EventStore implements ports.EventStore on the shared table.
type EventStore struct {
	client    API
	table     Table
	retention time.Duration
	logger    *zap.Logger
}

// NewEventStore creates an event store. A zero retention keeps events forever.
func NewEventStore(client API, table Table, retention time.Duration, logger *zap.Logger) *EventStore {
	return &EventStore{client: client, table: table, retention: retention, logger: logger}
}

func eventsPK(aggregateID string) string { return "EVENTS#" + aggregateID }

func (es *EventStore) toRecord(event events.DomainEvent) (EventRecord, error) {
	payload, err := json.Marshal(event)
	if err != nil {
		return EventRecord{}, fmt.Errorf("failed to marshal %s: %w", event.GetEventType(), err)
	}
	id := uuid.New().String()
	ts := utils.FormatTimestamp(event.GetTimestamp())
	record := EventRecord{
		PK:          eventsPK(event.GetAggregateID()),
		SK:          fmt.Sprintf("EVENT#%s#%010d#%s", ts, event.GetVersion(), id),
		EntityType:  "EVENT",
		EventID:     id,
		EventType:   event.GetEventType(),
		AggregateID: event.GetAggregateID(),
		Payload:     string(payload),
		Timestamp:   ts,
		Version:     event.GetVersion(),
	}
	if es.retention > 0 {
		record.TTL = event.GetTimestamp().Add(es.retention).Unix()
	}
	return record, nil
}

// SaveEvents writes events in chunks, resubmitting unprocessed items.
func (es *EventStore) SaveEvents(ctx context.Context, domainEvents []events.DomainEvent) error {
	if len(domainEvents) == 0 {
		return nil
	}

	requests := make([]types.WriteRequest, 0, len(domainEvents))
	for _, event := range domainEvents {
		record, err := es.toRecord(event)
		if err != nil {
			return err
		}
		item, err := attributevalue.MarshalMap(record)
		if err != nil {
			return fmt.Errorf("failed to marshal event record: %w", err)
		}
		requests = append(requests, types.WriteRequest{PutRequest: &types.PutRequest{Item: item}})
	}

	for start := 0; start < len(requests); start += batchWriteLimit {
		end := start + batchWriteLimit
		if end > len(requests) {
			end = len(requests)
		}
		if err := es.writeBatch(ctx, requests[start:end]); err != nil {
			return err
		}
	}
	return nil
}

func (es *EventStore) writeBatch(ctx context.Context, requests []types.WriteRequest) error {
	pending := map[string][]types.WriteRequest{es.table.Name: requests}
	backoff := 50 * time.Millisecond
	for attempt := 0; attempt < 5 && len(pending[es.table.Name]) > 0; attempt++ {
		out, err := es.client.BatchWriteItem(ctx, &dynamodb.BatchWriteItemInput{RequestItems: pending})
		if err != nil {
			return storeError("save_events", err)
		}
		pending = out.UnprocessedItems
		if len(pending[es.table.Name]) == 0 {
			return nil
		}
		es.logger.Debug("Retrying unprocessed events",
			zap.Int("count", len(pending[es.table.Name])),
			zap.Int("attempt", attempt+1),
		)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
			backoff *= 2
		}
	}
	if n := len(pending[es.table.Name]); n > 0 {
		return fmt.Errorf("failed to write %d events after retries", n)
	}
	return nil
}

// GetEvents returns the aggregate's events oldest first.
func (es *EventStore) GetEvents(ctx context.Context, aggregateID string) ([]ports.StoredEvent, error) {
	keyCond := expression.KeyAnd(
		expression.Key("PK").Equal(expression.Value(eventsPK(aggregateID))),
		expression.Key("SK").BeginsWith("EVENT#"),
	)
	expr, err := expression.NewBuilder().WithKeyCondition(keyCond).Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build event query: %w", err)
	}
	input := &dynamodb.QueryInput{
		TableName:                 aws.String(es.table.Name),
		KeyConditionExpression:    expr.KeyCondition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
		ScanIndexForward:          aws.Bool(true),
	}

	var stored []ports.StoredEvent
	for {
		out, err := es.client.Query(ctx, input)
		if err != nil {
			return nil, storeError("get_events", err)
		}
		for _, raw := range out.Items {
			var record EventRecord
			if err := attributevalue.UnmarshalMap(raw, &record); err != nil {
				return nil, fmt.Errorf("failed to unmarshal event record: %w", err)
			}
			ts, _ := utils.ParseTimestamp(record.Timestamp)
			stored = append(stored, ports.StoredEvent{
				AggregateID: record.AggregateID,
				EventType:   record.EventType,
				Version:     record.Version,
				Timestamp:   ts,
				Payload:     record.Payload,
			})
		}
		if len(out.LastEvaluatedKey) == 0 {
			break
		}
		input.ExclusiveStartKey = out.LastEvaluatedKey
	}
	return stored, nil
}
