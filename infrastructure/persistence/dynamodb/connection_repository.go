package dynamodb

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/Skozial17/supportchat/application/ports"
	"github.com/Skozial17/supportchat/domain/core/valueobjects"
	"github.com/Skozial17/supportchat/pkg/utils"
)

const connectionTTL = 2 * time.Hour

type connectionItem struct {
	PK           string `dynamodbav:"PK"`
	SK           string `dynamodbav:"SK"`
	GSI1PK       string `dynamodbav:"GSI1PK"`
	GSI1SK       string `dynamodbav:"GSI1SK"`
	EntityType   string `dynamodbav:"EntityType"`
	ConnectionID string `dynamodbav:"ConnectionID"`
	UserID       string `dynamodbav:"UserID"`
	Role         string `dynamodbav:"Role"`
	CaseID       string `dynamodbav:"CaseID"`
	ConnectedAt  string `dynamodbav:"ConnectedAt"`
	TTL          int64  `dynamodbav:"TTL"`
}

// ConnectionRepository tracks API Gateway WebSocket connections per case.
// Items expire through the table TTL when a disconnect is missed.
type ConnectionRepository struct {
	client API
	table  Table
}

// NewConnectionRepository creates a WebSocket connection repository
func NewConnectionRepository(client API, table Table) *ConnectionRepository {
	return &ConnectionRepository{client: client, table: table}
}

func connectionKey(connectionID string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK": &types.AttributeValueMemberS{Value: "CONN#" + connectionID},
		"SK": &types.AttributeValueMemberS{Value: "CONN"},
	}
}

func (r *ConnectionRepository) Save(ctx context.Context, conn ports.Connection) error {
	if conn.ConnectedAt.IsZero() {
		conn.ConnectedAt = time.Now()
	}
	item, err := attributevalue.MarshalMap(connectionItem{
		PK:           "CONN#" + conn.ConnectionID,
		SK:           "CONN",
		GSI1PK:       "CASECONN#" + conn.CaseID,
		GSI1SK:       conn.ConnectionID,
		EntityType:   "CONNECTION",
		ConnectionID: conn.ConnectionID,
		UserID:       conn.UserID,
		Role:         string(conn.Role),
		CaseID:       conn.CaseID,
		ConnectedAt:  utils.FormatTimestamp(conn.ConnectedAt),
		TTL:          conn.ConnectedAt.Add(connectionTTL).Unix(),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal connection: %w", err)
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.table.Name),
		Item:      item,
	})
	return storeError("save_connection", err)
}

func (r *ConnectionRepository) Delete(ctx context.Context, connectionID string) error {
	_, err := r.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(r.table.Name),
		Key:       connectionKey(connectionID),
	})
	return storeError("delete_connection", err)
}

func (r *ConnectionRepository) ListByCase(ctx context.Context, caseID string) ([]ports.Connection, error) {
	keyCond := expression.Key("GSI1PK").Equal(expression.Value("CASECONN#" + caseID))
	expr, err := expression.NewBuilder().WithKeyCondition(keyCond).Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build connection query: %w", err)
	}
	out, err := r.client.Query(ctx, &dynamodb.QueryInput{
		TableName:                 aws.String(r.table.Name),
		IndexName:                 aws.String(r.table.ByOwnerIndex),
		KeyConditionExpression:    expr.KeyCondition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	})
	if err != nil {
		return nil, storeError("list_connections", err)
	}

	conns := make([]ports.Connection, 0, len(out.Items))
	for _, raw := range out.Items {
		var item connectionItem
		if err := attributevalue.UnmarshalMap(raw, &item); err != nil {
			return nil, fmt.Errorf("failed to unmarshal connection: %w", err)
		}
		connectedAt, _ := utils.ParseTimestamp(item.ConnectedAt)
		conns = append(conns, ports.Connection{
			ConnectionID: item.ConnectionID,
			UserID:       item.UserID,
			Role:         valueobjects.Role(item.Role),
			CaseID:       item.CaseID,
			ConnectedAt:  connectedAt,
		})
	}
	return conns, nil
}
