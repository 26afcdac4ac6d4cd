package dynamodb

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"

	"github.com/Skozial17/supportchat/application/ports"
	"github.com/Skozial17/supportchat/domain/core/entities"
)

// messageStream polls a case partition for message items after the last
// sort key it has seen.
type messageStream struct {
	store    *CaseStore
	caseID   string
	interval time.Duration
	lastSK   string
	buffer   []*entities.Message
	pending  []string

	once sync.Once
	done chan struct{}
}

func newMessageStream(store *CaseStore, caseID string, interval time.Duration) *messageStream {
	return &messageStream{
		store:    store,
		caseID:   caseID,
		interval: interval,
		done:     make(chan struct{}),
	}
}

// Next returns buffered messages first and polls when the buffer is empty.
func (m *messageStream) Next(ctx context.Context) (*entities.Message, error) {
	for {
		if len(m.buffer) > 0 {
			msg := m.buffer[0]
			m.buffer = m.buffer[1:]
			m.lastSK = m.pending[0]
			m.pending = m.pending[1:]
			return msg, nil
		}

		select {
		case <-m.done:
			return nil, ports.ErrStreamClosed
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		if err := m.poll(ctx); err != nil {
			return nil, err
		}
		if len(m.buffer) > 0 {
			continue
		}

		timer := time.NewTimer(m.interval)
		select {
		case <-m.done:
			timer.Stop()
			return nil, ports.ErrStreamClosed
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
}

func (m *messageStream) poll(ctx context.Context) error {
	from := messageSK(0)
	if m.lastSK != "" {
		from = m.lastSK
	}
	keyCond := expression.Key("PK").Equal(expression.Value(casePK(m.caseID))).
		And(expression.Key("SK").Between(expression.Value(from), expression.Value(lastMessageSK)))
	expr, err := expression.NewBuilder().WithKeyCondition(keyCond).Build()
	if err != nil {
		return fmt.Errorf("failed to build stream query: %w", err)
	}
	input := &dynamodb.QueryInput{
		TableName:                 aws.String(m.store.table.Name),
		KeyConditionExpression:    expr.KeyCondition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
		ConsistentRead:            aws.Bool(true),
	}

	for {
		out, err := m.store.client.Query(ctx, input)
		if err != nil {
			return storeError("subscribe", err)
		}
		for _, raw := range out.Items {
			sk := stringAttr(raw, "SK")
			if sk == m.lastSK {
				continue
			}
			msg, err := unmarshalMessage(raw)
			if err != nil {
				return err
			}
			m.buffer = append(m.buffer, msg)
			m.pending = append(m.pending, sk)
		}
		if out.LastEvaluatedKey == nil {
			return nil
		}
		input.ExclusiveStartKey = out.LastEvaluatedKey
	}
}

func (m *messageStream) Close() error {
	m.once.Do(func() { close(m.done) })
	return nil
}
