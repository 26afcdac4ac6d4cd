package eventbridge

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge/types"
	"go.uber.org/zap"

	"github.com/Skozial17/supportchat/domain/events"
	pkgerrors "github.com/Skozial17/supportchat/pkg/errors"
)

// Source is the EventBridge source of every published event.
const Source = "supportchat"

// maxEntries is the EventBridge limit per PutEvents call.
const maxEntries = 10

// API is the part of the EventBridge client the publisher uses.
type API interface {
	PutEvents(ctx context.Context, params *eventbridge.PutEventsInput, optFns ...func(*eventbridge.Options)) (*eventbridge.PutEventsOutput, error)
}

// Publisher implements ports.EventPublisher using AWS EventBridge
type Publisher struct {
	client       API
	eventBusName string
	maxRetries   int
	logger       *zap.Logger
}

// NewPublisher creates an EventBridge publisher for eventBusName
func NewPublisher(client API, eventBusName string, logger *zap.Logger) *Publisher {
	return &Publisher{
		client:       client,
		eventBusName: eventBusName,
		maxRetries:   3,
		logger:       logger,
	}
}

// Publish sends a single event to EventBridge
func (p *Publisher) Publish(ctx context.Context, event events.DomainEvent) error {
	return p.PublishBatch(ctx, []events.DomainEvent{event})
}

// PublishBatch sends events in chunks of ten, retrying each chunk.
func (p *Publisher) PublishBatch(ctx context.Context, domainEvents []events.DomainEvent) error {
	for i := 0; i < len(domainEvents); i += maxEntries {
		end := i + maxEntries
		if end > len(domainEvents) {
			end = len(domainEvents)
		}
		if err := p.publishWithRetry(ctx, domainEvents[i:end]); err != nil {
			return pkgerrors.NewEventPublishFailedError(err)
		}
	}
	return nil
}

func (p *Publisher) publishWithRetry(ctx context.Context, batch []events.DomainEvent) error {
	backoff := 100 * time.Millisecond
	var err error
	for attempt := 0; attempt < p.maxRetries; attempt++ {
		batch, err = p.publishBatch(ctx, batch)
		if err == nil {
			return nil
		}
		if attempt == p.maxRetries-1 {
			break
		}
		p.logger.Warn("Retrying event publication",
			zap.Int("attempt", attempt+1),
			zap.Int("pending", len(batch)),
			zap.Error(err),
		)
		select {
		case <-time.After(backoff):
			backoff *= 2
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return fmt.Errorf("failed to publish events after %d attempts: %w", p.maxRetries, err)
}

// publishBatch sends up to ten events and returns the ones that failed.
func (p *Publisher) publishBatch(ctx context.Context, batch []events.DomainEvent) ([]events.DomainEvent, error) {
	entries := make([]types.PutEventsRequestEntry, 0, len(batch))
	sent := make([]events.DomainEvent, 0, len(batch))
	for _, event := range batch {
		detail, err := json.Marshal(event)
		if err != nil {
			p.logger.Error("Failed to marshal event",
				zap.Error(err),
				zap.String("eventType", event.GetEventType()),
			)
			continue
		}
		entries = append(entries, types.PutEventsRequestEntry{
			EventBusName: aws.String(p.eventBusName),
			Source:       aws.String(Source),
			DetailType:   aws.String(event.GetEventType()),
			Detail:       aws.String(string(detail)),
			Time:         aws.Time(event.GetTimestamp()),
			Resources:    []string{"supportchat:" + event.GetAggregateID()},
		})
		sent = append(sent, event)
	}
	if len(entries) == 0 {
		return nil, nil
	}

	result, err := p.client.PutEvents(ctx, &eventbridge.PutEventsInput{Entries: entries})
	if err != nil {
		return sent, fmt.Errorf("failed to publish events to EventBridge: %w", err)
	}
	if result.FailedEntryCount == 0 {
		p.logger.Debug("Events published to EventBridge",
			zap.Int("count", len(entries)),
			zap.String("eventBus", p.eventBusName),
		)
		return nil, nil
	}

	var failed []events.DomainEvent
	for i, entry := range result.Entries {
		if entry.ErrorCode == nil || i >= len(sent) {
			continue
		}
		p.logger.Error("Failed to publish event",
			zap.String("eventType", sent[i].GetEventType()),
			zap.String("errorCode", *entry.ErrorCode),
			zap.String("errorMessage", aws.ToString(entry.ErrorMessage)),
		)
		failed = append(failed, sent[i])
	}
	return failed, fmt.Errorf("%d events failed to publish", result.FailedEntryCount)
}

// LogPublisher logs events instead of sending them. It backs local runs.
type LogPublisher struct {
	logger *zap.Logger
}

// NewLogPublisher creates a publisher that only logs events
func NewLogPublisher(logger *zap.Logger) *LogPublisher {
	return &LogPublisher{logger: logger}
}

func (p *LogPublisher) Publish(ctx context.Context, event events.DomainEvent) error {
	return p.PublishBatch(ctx, []events.DomainEvent{event})
}

func (p *LogPublisher) PublishBatch(_ context.Context, domainEvents []events.DomainEvent) error {
	for _, event := range domainEvents {
		p.logger.Debug("Event published",
			zap.String("eventType", event.GetEventType()),
			zap.String("aggregateID", event.GetAggregateID()),
			zap.Int("version", event.GetVersion()),
		)
	}
	return nil
}
