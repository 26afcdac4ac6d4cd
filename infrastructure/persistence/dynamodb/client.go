package dynamodb

import (
	"context"
	"errors"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"

	pkgerrors "github.com/Skozial17/supportchat/pkg/errors"
)

// API is the subset of the DynamoDB client used by the repositories.
type API interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	TransactWriteItems(ctx context.Context, params *dynamodb.TransactWriteItemsInput, optFns ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error)
	BatchWriteItem(ctx context.Context, params *dynamodb.BatchWriteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.BatchWriteItemOutput, error)
}

var _ API = (*dynamodb.Client)(nil)

// Table describes the single table and its secondary indexes.
type Table struct {
	Name string
	// ByOwnerIndex is GSI1 (GSI1PK/GSI1SK): cases per driver, drivers per
	// status, connections per case.
	ByOwnerIndex string
	// AllCasesIndex is GSI2 (GSI2PK/GSI2SK): every case newest first.
	AllCasesIndex string
}

func isConditionalCheckFailed(err error) bool {
	var ccf *types.ConditionalCheckFailedException
	return errors.As(err, &ccf)
}

// isTransactionConditionFailure reports whether a transaction was cancelled
// only because a condition did not hold.
func isTransactionConditionFailure(err error) bool {
	var tce *types.TransactionCanceledException
	if !errors.As(err, &tce) {
		return false
	}
	failed := false
	for _, reason := range tce.CancellationReasons {
		if reason.Code == nil || *reason.Code == "None" {
			continue
		}
		if *reason.Code != "ConditionalCheckFailed" {
			return false
		}
		failed = true
	}
	return failed
}

// storeError maps a transport or service failure to StoreUnavailable.
// Context cancellation is returned as is.
func storeError(operation string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	if pkgerrors.GetDomainError(err) != nil {
		return err
	}
	domainErr := pkgerrors.NewStoreUnavailableError(operation, err)
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		domainErr = domainErr.WithDetail("aws_code", apiErr.ErrorCode())
	}
	return domainErr
}
