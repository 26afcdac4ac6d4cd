package dynamodb

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Skozial17/supportchat/domain/core/aggregates"
	"github.com/Skozial17/supportchat/domain/core/entities"
	"github.com/Skozial17/supportchat/domain/core/valueobjects"
	pkgerrors "github.com/Skozial17/supportchat/pkg/errors"
)

type mockAPI struct {
	mock.Mock
}

func (m *mockAPI) GetItem(ctx context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	args := m.Called(ctx, in)
	out, _ := args.Get(0).(*dynamodb.GetItemOutput)
	return out, args.Error(1)
}

func (m *mockAPI) PutItem(ctx context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	args := m.Called(ctx, in)
	out, _ := args.Get(0).(*dynamodb.PutItemOutput)
	return out, args.Error(1)
}

func (m *mockAPI) UpdateItem(ctx context.Context, in *dynamodb.UpdateItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
	args := m.Called(ctx, in)
	out, _ := args.Get(0).(*dynamodb.UpdateItemOutput)
	return out, args.Error(1)
}

func (m *mockAPI) DeleteItem(ctx context.Context, in *dynamodb.DeleteItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error) {
	args := m.Called(ctx, in)
	out, _ := args.Get(0).(*dynamodb.DeleteItemOutput)
	return out, args.Error(1)
}

func (m *mockAPI) Query(ctx context.Context, in *dynamodb.QueryInput, _ ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	args := m.Called(ctx, in)
	out, _ := args.Get(0).(*dynamodb.QueryOutput)
	return out, args.Error(1)
}

func (m *mockAPI) TransactWriteItems(ctx context.Context, in *dynamodb.TransactWriteItemsInput, _ ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error) {
	args := m.Called(ctx, in)
	out, _ := args.Get(0).(*dynamodb.TransactWriteItemsOutput)
	return out, args.Error(1)
}

func (m *mockAPI) BatchWriteItem(ctx context.Context, in *dynamodb.BatchWriteItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.BatchWriteItemOutput, error) {
	args := m.Called(ctx, in)
	out, _ := args.Get(0).(*dynamodb.BatchWriteItemOutput)
	return out, args.Error(1)
}

var testTable = Table{Name: "supportchat", ByOwnerIndex: "GSI1", AllCasesIndex: "GSI2"}

func sampleSnapshot(t *testing.T) aggregates.CaseSnapshot {
	t.Helper()
	created := time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)
	return aggregates.CaseSnapshot{
		ID:        valueobjects.NewCaseID(),
		StoreRef:  "ref-1",
		Flow:      "driver_intake",
		Cursor:    "describe",
		Status:    valueobjects.CaseStatusOpen,
		Priority:  valueobjects.PriorityHigh,
		Completed: true,
		Driver: valueobjects.Identity{
			UserID: "driver-1",
			Role:   valueobjects.RoleDriver,
			Email:  "dana@example.com",
			Name:   "Dana",
		},
		Title:      "Driver Support - Payments",
		LastOption: "Payments",
		CreatedAt:  created,
		UpdatedAt:  created.Add(time.Minute),
		Version:    4,
	}
}

func TestCaseItemRoundTrip(t *testing.T) {
	snap := sampleSnapshot(t)

	item := toCaseItem(snap)
	assert.Equal(t, "CASE#"+snap.ID.String(), item.PK)
	assert.Equal(t, "DRIVER#driver-1", item.GSI1PK)
	assert.Equal(t, item.GSI1SK, item.GSI2SK)
	assert.Contains(t, item.SearchText, "dana")

	back, err := item.toSnapshot()
	require.NoError(t, err)
	assert.Equal(t, snap, back)
}

func TestCursorEncoding(t *testing.T) {
	key := map[string]types.AttributeValue{
		"PK":     &types.AttributeValueMemberS{Value: "CASE#case-1"},
		"GSI2SK": &types.AttributeValueMemberS{Value: "2024#case-1"},
	}

	cursor, err := encodeCursor(key)
	require.NoError(t, err)
	assert.NotEmpty(t, cursor)

	decoded, err := decodeCursor(cursor)
	require.NoError(t, err)
	assert.Equal(t, key, decoded)

	_, err = decodeCursor("%%%")
	assert.Error(t, err)

	empty, err := encodeCursor(nil)
	require.NoError(t, err)
	assert.Empty(t, empty)

	_, err = encodeCursor(map[string]types.AttributeValue{"Seq": &types.AttributeValueMemberN{Value: "1"}})
	assert.Error(t, err)
}

func TestStoreErrorMapping(t *testing.T) {
	assert.NoError(t, storeError("op", nil))
	assert.ErrorIs(t, storeError("op", context.Canceled), context.Canceled)

	notFound := pkgerrors.NewCaseNotFoundError("case-1")
	assert.Same(t, notFound, storeError("op", notFound))

	err := storeError("op", &smithy.GenericAPIError{Code: "ProvisionedThroughputExceededException"})
	assert.ErrorIs(t, err, pkgerrors.ErrStoreUnavailable)
	assert.Equal(t, "ProvisionedThroughputExceededException", pkgerrors.GetDomainError(err).Details["aws_code"])
}

func TestIsTransactionConditionFailure(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		matches bool
	}{
		{"plain error", errors.New("boom"), false},
		{"condition only", &types.TransactionCanceledException{CancellationReasons: []types.CancellationReason{
			{Code: aws.String("ConditionalCheckFailed")}, {Code: aws.String("None")},
		}}, true},
		{"throttled", &types.TransactionCanceledException{CancellationReasons: []types.CancellationReason{
			{Code: aws.String("ConditionalCheckFailed")}, {Code: aws.String("ThrottlingError")},
		}}, false},
		{"no reasons", &types.TransactionCanceledException{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.matches, isTransactionConditionFailure(tt.err))
		})
	}
}

func TestCaseStore_AppendMessageDuplicateIsNoop(t *testing.T) {
	// Arrange
	api := new(mockAPI)
	store := NewCaseStore(api, testTable, time.Millisecond, zap.NewNop())
	msg := entities.NewMessage("hello", valueobjects.SenderEndUser, "driver-1", time.Now())

	api.On("UpdateItem", mock.Anything, mock.Anything).Return(&dynamodb.UpdateItemOutput{
		Attributes: map[string]types.AttributeValue{"MessageSeq": &types.AttributeValueMemberN{Value: "3"}},
	}, nil)
	api.On("TransactWriteItems", mock.Anything, mock.MatchedBy(func(in *dynamodb.TransactWriteItemsInput) bool {
		sk := in.TransactItems[1].Put.Item["SK"].(*types.AttributeValueMemberS).Value
		return sk == "MSG#0000000003"
	})).Return(nil, &types.TransactionCanceledException{CancellationReasons: []types.CancellationReason{
		{Code: aws.String("ConditionalCheckFailed")}, {Code: aws.String("None")},
	}})

	// Act
	err := store.AppendMessage(context.Background(), "case-1", msg)

	// Assert
	require.NoError(t, err)
	api.AssertExpectations(t)
}

func TestCaseStore_AppendMessagesWritesOneTransaction(t *testing.T) {
	api := new(mockAPI)
	store := NewCaseStore(api, testTable, time.Millisecond, zap.NewNop())
	now := time.Now()
	msgs := []*entities.Message{
		entities.NewMessage("Yes", valueobjects.SenderEndUser, "driver-1", now),
		entities.NewMessage("Is the load still showing?", valueobjects.SenderSystem, "", now),
	}

	api.On("UpdateItem", mock.Anything, mock.MatchedBy(func(in *dynamodb.UpdateItemInput) bool {
		return in.ReturnValues == types.ReturnValueUpdatedNew
	})).Return(&dynamodb.UpdateItemOutput{
		Attributes: map[string]types.AttributeValue{"MessageSeq": &types.AttributeValueMemberN{Value: "5"}},
	}, nil).Once()
	api.On("TransactWriteItems", mock.Anything, mock.MatchedBy(func(in *dynamodb.TransactWriteItemsInput) bool {
		if len(in.TransactItems) != 4 {
			return false
		}
		first := in.TransactItems[1].Put.Item["SK"].(*types.AttributeValueMemberS).Value
		second := in.TransactItems[3].Put.Item["SK"].(*types.AttributeValueMemberS).Value
		return first == "MSG#0000000004" && second == "MSG#0000000005"
	})).Return(&dynamodb.TransactWriteItemsOutput{}, nil).Once()

	require.NoError(t, store.AppendMessages(context.Background(), "case-1", msgs))
	api.AssertExpectations(t)
}

func TestCaseStore_AppendMessagesRetriesWithoutStoredMessages(t *testing.T) {
	api := new(mockAPI)
	store := NewCaseStore(api, testTable, time.Millisecond, zap.NewNop())
	now := time.Now()
	echo := entities.NewMessage("Yes", valueobjects.SenderEndUser, "driver-1", now)
	prompt := entities.NewMessage("Is the load still showing?", valueobjects.SenderSystem, "", now)

	api.On("UpdateItem", mock.Anything, mock.Anything).Return(&dynamodb.UpdateItemOutput{
		Attributes: map[string]types.AttributeValue{"MessageSeq": &types.AttributeValueMemberN{Value: "2"}},
	}, nil).Once()
	api.On("TransactWriteItems", mock.Anything, mock.MatchedBy(func(in *dynamodb.TransactWriteItemsInput) bool {
		return len(in.TransactItems) == 4
	})).Return(nil, &types.TransactionCanceledException{CancellationReasons: []types.CancellationReason{
		{Code: aws.String("ConditionalCheckFailed")}, {Code: aws.String("None")},
		{Code: aws.String("None")}, {Code: aws.String("None")},
	}}).Once()
	api.On("TransactWriteItems", mock.Anything, mock.MatchedBy(func(in *dynamodb.TransactWriteItemsInput) bool {
		if len(in.TransactItems) != 2 {
			return false
		}
		guard := in.TransactItems[0].Put.Item["SK"].(*types.AttributeValueMemberS).Value
		return guard == guardPrefix+prompt.ID()
	})).Return(&dynamodb.TransactWriteItemsOutput{}, nil).Once()

	err := store.AppendMessages(context.Background(), "case-1", []*entities.Message{echo, prompt})

	require.NoError(t, err)
	api.AssertExpectations(t)
}

func TestCaseStore_SaveStaleVersion(t *testing.T) {
	api := new(mockAPI)
	store := NewCaseStore(api, testTable, time.Millisecond, zap.NewNop())
	api.On("UpdateItem", mock.Anything, mock.Anything).
		Return(nil, &types.ConditionalCheckFailedException{Message: aws.String("stale")})

	err := store.Save(context.Background(), sampleSnapshot(t))

	assert.ErrorIs(t, err, pkgerrors.ErrConcurrentModification)
}

func TestCaseStore_UpdateStatusUnknownCase(t *testing.T) {
	api := new(mockAPI)
	store := NewCaseStore(api, testTable, time.Millisecond, zap.NewNop())
	api.On("UpdateItem", mock.Anything, mock.Anything).
		Return(nil, &types.ConditionalCheckFailedException{})

	err := store.UpdateStatus(context.Background(), "case-missing", valueobjects.CaseStatusClosed)

	assert.ErrorIs(t, err, pkgerrors.ErrCaseNotFound)
}

func TestCaseStore_GetMissingCase(t *testing.T) {
	api := new(mockAPI)
	store := NewCaseStore(api, testTable, time.Millisecond, zap.NewNop())
	api.On("Query", mock.Anything, mock.Anything).Return(&dynamodb.QueryOutput{}, nil)

	_, err := store.Get(context.Background(), "case-missing")

	assert.ErrorIs(t, err, pkgerrors.ErrCaseNotFound)
}

func TestDistributedLock_TimesOutWhenHeld(t *testing.T) {
	api := new(mockAPI)
	locker := NewDistributedLock(api, testTable, zap.NewNop())
	api.On("PutItem", mock.Anything, mock.Anything).
		Return(nil, &types.ConditionalCheckFailedException{})

	_, err := locker.Acquire(context.Background(), "CASE#case-1", "owner-1", time.Second, 120*time.Millisecond)

	assert.ErrorIs(t, err, pkgerrors.ErrConcurrentModification)
}

func TestDistributedLock_AcquireAndRelease(t *testing.T) {
	api := new(mockAPI)
	locker := NewDistributedLock(api, testTable, zap.NewNop())
	api.On("PutItem", mock.Anything, mock.MatchedBy(func(in *dynamodb.PutItemInput) bool {
		return in.Item["PK"].(*types.AttributeValueMemberS).Value == "LOCK#CASE#case-1"
	})).Return(&dynamodb.PutItemOutput{}, nil)
	api.On("DeleteItem", mock.Anything, mock.Anything).
		Return(nil, &types.ConditionalCheckFailedException{})

	lock, err := locker.Acquire(context.Background(), "CASE#case-1", "owner-1", time.Second, 0)
	require.NoError(t, err)

	// A lock taken over after expiry releases without error.
	assert.NoError(t, lock.Release(context.Background()))
	api.AssertExpectations(t)
}
