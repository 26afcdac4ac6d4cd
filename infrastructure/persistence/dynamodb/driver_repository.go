package dynamodb

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"go.uber.org/zap"

	"github.com/Skozial17/supportchat/domain/core/entities"
	pkgerrors "github.com/Skozial17/supportchat/pkg/errors"
	"github.com/Skozial17/supportchat/pkg/utils"
)

func driverPK(id string) string         { return "DRIVER#" + id }
func driverEmailPK(email string) string { return "DRIVEREMAIL#" + strings.ToLower(email) }
func driverStatusPK(status entities.DriverStatus) string {
	return "DRIVERSTATUS#" + string(status)
}

type driverItem struct {
	PK           string `dynamodbav:"PK"`
	SK           string `dynamodbav:"SK"`
	GSI1PK       string `dynamodbav:"GSI1PK"`
	GSI1SK       string `dynamodbav:"GSI1SK"`
	EntityType   string `dynamodbav:"EntityType"`
	DriverID     string `dynamodbav:"DriverID"`
	Name         string `dynamodbav:"Name"`
	Email        string `dynamodbav:"Email"`
	Phone        string `dynamodbav:"Phone,omitempty"`
	Company      string `dynamodbav:"Company,omitempty"`
	Status       string `dynamodbav:"Status"`
	RejectReason string `dynamodbav:"RejectReason,omitempty"`
	ReviewedBy   string `dynamodbav:"ReviewedBy,omitempty"`
	CreatedAt    string `dynamodbav:"CreatedAt"`
	ReviewedAt   string `dynamodbav:"ReviewedAt,omitempty"`
	Version      int    `dynamodbav:"Version"`
}

// DriverRepository stores registrations with an email guard item so one
// email maps to one driver.
type DriverRepository struct {
	client API
	table  Table
	logger *zap.Logger
}

// NewDriverRepository creates a driver repository
func NewDriverRepository(client API, table Table, logger *zap.Logger) *DriverRepository {
	return &DriverRepository{client: client, table: table, logger: logger}
}

// Save writes the profile and claims its email in one transaction.
func (r *DriverRepository) Save(ctx context.Context, driver *entities.Driver) error {
	item, err := attributevalue.MarshalMap(toDriverItem(driver))
	if err != nil {
		return fmt.Errorf("failed to marshal driver: %w", err)
	}
	guard := map[string]types.AttributeValue{
		"PK":       &types.AttributeValueMemberS{Value: driverEmailPK(driver.Email())},
		"SK":       &types.AttributeValueMemberS{Value: "EMAIL"},
		"DriverID": &types.AttributeValueMemberS{Value: driver.ID()},
	}

	_, err = r.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			{Put: &types.Put{
				TableName:           aws.String(r.table.Name),
				Item:                guard,
				ConditionExpression: aws.String("attribute_not_exists(PK) OR DriverID = :id"),
				ExpressionAttributeValues: map[string]types.AttributeValue{
					":id": &types.AttributeValueMemberS{Value: driver.ID()},
				},
			}},
			{Put: &types.Put{
				TableName: aws.String(r.table.Name),
				Item:      item,
			}},
		},
	})
	if err != nil {
		if isTransactionConditionFailure(err) {
			return pkgerrors.ErrDriverAlreadyRegistered
		}
		return storeError("save_driver", err)
	}
	return nil
}

func (r *DriverRepository) GetByID(ctx context.Context, id string) (*entities.Driver, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.table.Name),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: driverPK(id)},
			"SK": &types.AttributeValueMemberS{Value: "PROFILE"},
		},
	})
	if err != nil {
		return nil, storeError("get_driver", err)
	}
	if out.Item == nil {
		return nil, pkgerrors.NewDriverNotFoundError(id)
	}
	var item driverItem
	if err := attributevalue.UnmarshalMap(out.Item, &item); err != nil {
		return nil, fmt.Errorf("failed to unmarshal driver: %w", err)
	}
	return item.toEntity()
}

func (r *DriverRepository) GetByEmail(ctx context.Context, email string) (*entities.Driver, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.table.Name),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: driverEmailPK(strings.TrimSpace(email))},
			"SK": &types.AttributeValueMemberS{Value: "EMAIL"},
		},
	})
	if err != nil {
		return nil, storeError("get_driver_by_email", err)
	}
	id := stringAttr(out.Item, "DriverID")
	if id == "" {
		return nil, pkgerrors.NewDriverNotFoundError(email)
	}
	return r.GetByID(ctx, id)
}

// ListByStatus returns the oldest registrations in status first.
func (r *DriverRepository) ListByStatus(ctx context.Context, status entities.DriverStatus, limit int) ([]*entities.Driver, error) {
	keyCond := expression.Key("GSI1PK").Equal(expression.Value(driverStatusPK(status)))
	expr, err := expression.NewBuilder().WithKeyCondition(keyCond).Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build driver query: %w", err)
	}
	input := &dynamodb.QueryInput{
		TableName:                 aws.String(r.table.Name),
		IndexName:                 aws.String(r.table.ByOwnerIndex),
		KeyConditionExpression:    expr.KeyCondition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
		ScanIndexForward:          aws.Bool(true),
	}
	if limit > 0 {
		input.Limit = aws.Int32(int32(limit))
	}

	out, err := r.client.Query(ctx, input)
	if err != nil {
		return nil, storeError("list_drivers", err)
	}
	drivers := make([]*entities.Driver, 0, len(out.Items))
	for _, raw := range out.Items {
		var item driverItem
		if err := attributevalue.UnmarshalMap(raw, &item); err != nil {
			return nil, fmt.Errorf("failed to unmarshal driver: %w", err)
		}
		d, err := item.toEntity()
		if err != nil {
			return nil, err
		}
		drivers = append(drivers, d)
	}
	return drivers, nil
}

func toDriverItem(d *entities.Driver) driverItem {
	item := driverItem{
		PK:           driverPK(d.ID()),
		SK:           "PROFILE",
		GSI1PK:       driverStatusPK(d.Status()),
		GSI1SK:       utils.FormatTimestamp(d.CreatedAt()) + "#" + d.ID(),
		EntityType:   "DRIVER",
		DriverID:     d.ID(),
		Name:         d.Name(),
		Email:        d.Email(),
		Phone:        d.Phone(),
		Company:      d.Company(),
		Status:       string(d.Status()),
		RejectReason: d.RejectReason(),
		ReviewedBy:   d.ReviewedBy(),
		CreatedAt:    utils.FormatTimestamp(d.CreatedAt()),
		Version:      d.Version(),
	}
	if d.ReviewedAt() != nil {
		item.ReviewedAt = utils.FormatTimestamp(*d.ReviewedAt())
	}
	return item
}

func (item driverItem) toEntity() (*entities.Driver, error) {
	createdAt, err := utils.ParseTimestamp(item.CreatedAt)
	if err != nil {
		return nil, err
	}
	var reviewedAt *time.Time
	if item.ReviewedAt != "" {
		t, err := utils.ParseTimestamp(item.ReviewedAt)
		if err != nil {
			return nil, err
		}
		reviewedAt = &t
	}
	return entities.ReconstructDriver(item.DriverID, item.Name, item.Email, item.Phone, item.Company,
		entities.DriverStatus(item.Status), item.RejectReason, item.ReviewedBy, createdAt, reviewedAt, item.Version), nil
}
