package dynamodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"go.uber.org/zap"

	"github.com/Skozial17/supportchat/application/ports"
	pkgerrors "github.com/Skozial17/supportchat/pkg/errors"
	"github.com/Skozial17/supportchat/pkg/utils"
)

var errLockHeld = errors.New("lock already held")

// DistributedLock provides distributed locking using DynamoDB conditional writes
type DistributedLock struct {
	client API
	table  Table
	logger *zap.Logger
	now    func() time.Time
}

// NewDistributedLock creates a DynamoDB backed lock
func NewDistributedLock(client API, table Table, logger *zap.Logger) *DistributedLock {
	return &DistributedLock{client: client, table: table, logger: logger, now: time.Now}
}

func lockKey(resource string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK": &types.AttributeValueMemberS{Value: "LOCK#" + resource},
		"SK": &types.AttributeValueMemberS{Value: "LOCK"},
	}
}

func (dl *DistributedLock) tryAcquire(ctx context.Context, resource, owner string, ttl time.Duration) (*dynamoLock, error) {
	now := dl.now()
	expiresAt := now.Add(ttl)
	lockID := fmt.Sprintf("%s_%d", owner, now.UnixNano())

	item := lockKey(resource)
	item["LockID"] = &types.AttributeValueMemberS{Value: lockID}
	item["Owner"] = &types.AttributeValueMemberS{Value: owner}
	item["AcquiredAt"] = &types.AttributeValueMemberS{Value: utils.FormatTimestamp(now)}
	item["ExpiresAt"] = &types.AttributeValueMemberS{Value: utils.FormatTimestamp(expiresAt)}
	// TTL lags well behind ExpiresAt; expired locks are taken over by the condition.
	item["TTL"] = &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", expiresAt.Add(time.Hour).Unix())}

	_, err := dl.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(dl.table.Name),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(PK) OR ExpiresAt < :now"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":now": &types.AttributeValueMemberS{Value: utils.FormatTimestamp(now)},
		},
	})
	if err != nil {
		if isConditionalCheckFailed(err) {
			return nil, errLockHeld
		}
		return nil, storeError("acquire_lock", err)
	}
	return &dynamoLock{dl: dl, resource: resource, lockID: lockID, owner: owner}, nil
}

// Acquire retries with backoff until the lock is free or wait elapses.
func (dl *DistributedLock) Acquire(ctx context.Context, resource, owner string, ttl, wait time.Duration) (ports.Lock, error) {
	deadline := dl.now().Add(wait)
	retryInterval := 50 * time.Millisecond

	for {
		lock, err := dl.tryAcquire(ctx, resource, owner, ttl)
		if err == nil {
			dl.logger.Debug("Lock acquired",
				zap.String("resource", resource),
				zap.String("owner", owner),
			)
			return lock, nil
		}
		if !errors.Is(err, errLockHeld) {
			return nil, err
		}
		if !dl.now().Add(retryInterval).Before(deadline) {
			return nil, pkgerrors.NewConcurrentModificationError(resource)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(retryInterval):
			if retryInterval < time.Second {
				retryInterval = time.Duration(float64(retryInterval) * 1.5)
			}
		}
	}
}

type dynamoLock struct {
	dl       *DistributedLock
	resource string
	lockID   string
	owner    string
}

// Release deletes the lock if this holder still owns it.
func (l *dynamoLock) Release(ctx context.Context) error {
	_, err := l.dl.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName:           aws.String(l.dl.table.Name),
		Key:                 lockKey(l.resource),
		ConditionExpression: aws.String("LockID = :lockId AND #owner = :owner"),
		ExpressionAttributeNames: map[string]string{
			"#owner": "Owner",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":lockId": &types.AttributeValueMemberS{Value: l.lockID},
			":owner":  &types.AttributeValueMemberS{Value: l.owner},
		},
	})
	if err != nil {
		if isConditionalCheckFailed(err) {
			l.dl.logger.Warn("Lock already released or taken over",
				zap.String("resource", l.resource),
				zap.String("owner", l.owner),
			)
			return nil
		}
		return storeError("release_lock", err)
	}
	return nil
}
