package dynamodb

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"go.uber.org/zap"

	"github.com/Skozial17/supportchat/application/ports"
	"github.com/Skozial17/supportchat/domain/core/aggregates"
	"github.com/Skozial17/supportchat/domain/core/entities"
	"github.com/Skozial17/supportchat/domain/core/valueobjects"
	pkgerrors "github.com/Skozial17/supportchat/pkg/errors"
	"github.com/Skozial17/supportchat/pkg/utils"
)

const (
	metaSK        = "META"
	messagePrefix = "MSG#"
	guardPrefix   = "MSGID#"
	allCasesPK    = "CASES"
	lastMessageSK = "MSG#9999999999"
)

func casePK(caseID string) string          { return "CASE#" + caseID }
func messageSK(seq int64) string           { return fmt.Sprintf("%s%010d", messagePrefix, seq) }
func driverCasesPK(driverID string) string { return "DRIVER#" + driverID }
func caseSortKey(updated time.Time, id string) string {
	return utils.FormatTimestamp(updated) + "#" + id
}

// caseItem is the META item of a case: session state plus the finalized record.
type caseItem struct {
	PK                string `dynamodbav:"PK"`
	SK                string `dynamodbav:"SK"`
	GSI1PK            string `dynamodbav:"GSI1PK"`
	GSI1SK            string `dynamodbav:"GSI1SK"`
	GSI2PK            string `dynamodbav:"GSI2PK"`
	GSI2SK            string `dynamodbav:"GSI2SK"`
	EntityType        string `dynamodbav:"EntityType"`
	CaseID            string `dynamodbav:"CaseID"`
	StoreRef          string `dynamodbav:"StoreRef"`
	Flow              string `dynamodbav:"Flow"`
	Cursor            string `dynamodbav:"Cursor"`
	Status            string `dynamodbav:"Status"`
	Priority          string `dynamodbav:"Priority"`
	Completed         bool   `dynamodbav:"Completed"`
	Finalized         bool   `dynamodbav:"Finalized"`
	DriverID          string `dynamodbav:"DriverID"`
	DriverRole        string `dynamodbav:"DriverRole"`
	DriverEmail       string `dynamodbav:"DriverEmail"`
	DriverName        string `dynamodbav:"DriverName"`
	DriverAffiliation string `dynamodbav:"DriverAffiliation"`
	Title             string `dynamodbav:"Title"`
	Description       string `dynamodbav:"Description"`
	CloseReason       string `dynamodbav:"CloseReason"`
	LastOption        string `dynamodbav:"LastOption"`
	SearchText        string `dynamodbav:"SearchText"`
	CreatedAt         string `dynamodbav:"CreatedAt"`
	UpdatedAt         string `dynamodbav:"UpdatedAt"`
	Version           int    `dynamodbav:"Version"`
}

// messageItem is one transcript entry, ordered by its sequence in SK.
type messageItem struct {
	PK         string `dynamodbav:"PK"`
	SK         string `dynamodbav:"SK"`
	EntityType string `dynamodbav:"EntityType"`
	MessageID  string `dynamodbav:"MessageID"`
	Text       string `dynamodbav:"Text"`
	Sender     string `dynamodbav:"Sender"`
	SenderID   string `dynamodbav:"SenderID,omitempty"`
	Attachment string `dynamodbav:"Attachment,omitempty"`
	CreatedAt  string `dynamodbav:"CreatedAt"`
}

// CaseStore keeps cases and their transcripts in one DynamoDB partition per
// case. It serves as PersistenceGateway and CaseRepository.
type CaseStore struct {
	client       API
	table        Table
	pollInterval time.Duration
	logger       *zap.Logger
}

// NewCaseStore creates a case store. pollInterval paces Subscribe streams.
func NewCaseStore(client API, table Table, pollInterval time.Duration, logger *zap.Logger) *CaseStore {
	if pollInterval <= 0 {
		pollInterval = time.Second
	}
	return &CaseStore{client: client, table: table, pollInterval: pollInterval, logger: logger}
}

func (s *CaseStore) key(caseID, sk string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK": &types.AttributeValueMemberS{Value: casePK(caseID)},
		"SK": &types.AttributeValueMemberS{Value: sk},
	}
}

// CreateCase writes the finalized record onto the case. A second call for
// the same case leaves the first record in place.
func (s *CaseStore) CreateCase(ctx context.Context, attrs aggregates.CaseAttributes) (string, error) {
	caseID := attrs.CaseID.String()
	update := expression.Set(expression.Name("Title"), expression.Value(attrs.Title)).
		Set(expression.Name("Description"), expression.Value(attrs.Description)).
		Set(expression.Name("Status"), expression.Value(attrs.Status.String())).
		Set(expression.Name("Priority"), expression.Value(attrs.Priority.String())).
		Set(expression.Name("RecordedAt"), expression.Value(utils.FormatTimestamp(time.Now())))
	cond := expression.AttributeNotExists(expression.Name("RecordedAt"))

	expr, err := expression.NewBuilder().WithUpdate(update).WithCondition(cond).Build()
	if err != nil {
		return "", fmt.Errorf("failed to build create case expression: %w", err)
	}

	_, err = s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(s.table.Name),
		Key:                       s.key(caseID, metaSK),
		UpdateExpression:          expr.Update(),
		ConditionExpression:       expr.Condition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	})
	if err != nil {
		if isConditionalCheckFailed(err) {
			s.logger.Debug("Case record already exists", zap.String("caseID", caseID))
			return caseID, nil
		}
		return "", storeError("create_case", err)
	}

	s.logger.Info("Case record created",
		zap.String("caseID", caseID),
		zap.String("driverID", attrs.Driver.UserID),
		zap.String("title", attrs.Title),
	)
	return caseID, nil
}

// maxAppendBatch keeps a batch inside one transaction: each message writes
// an item and its guard.
const maxAppendBatch = 50

// AppendMessage stores a single message. See AppendMessages.
func (s *CaseStore) AppendMessage(ctx context.Context, caseID string, msg *entities.Message) error {
	return s.AppendMessages(ctx, caseID, []*entities.Message{msg})
}

// AppendMessages reserves one sequence number per message and writes every
// message with a guard item keyed by its id in a single transaction, so the
// batch is stored completely or not at all. Messages whose guard already
// exists are dropped and the rest of the batch is written again.
func (s *CaseStore) AppendMessages(ctx context.Context, caseID string, msgs []*entities.Message) error {
	if len(msgs) == 0 {
		return nil
	}
	if len(msgs) > maxAppendBatch {
		return pkgerrors.NewValidationError(fmt.Sprintf("cannot append more than %d messages at once", maxAppendBatch))
	}

	first, err := s.reserveSequence(ctx, caseID, len(msgs))
	if err != nil {
		return err
	}
	seqs := make([]int64, len(msgs))
	for i := range msgs {
		seqs[i] = first + int64(i)
	}

	for len(msgs) > 0 {
		items, err := s.appendItems(caseID, msgs, seqs)
		if err != nil {
			return err
		}
		_, err = s.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{TransactItems: items})
		if err == nil {
			return nil
		}
		if !isTransactionConditionFailure(err) {
			return storeError("append_message", err)
		}

		stored := storedGuards(err)
		var remainingMsgs []*entities.Message
		var remainingSeqs []int64
		for i, msg := range msgs {
			if stored[i] {
				s.logger.Debug("Message already stored",
					zap.String("caseID", caseID),
					zap.String("messageID", msg.ID()),
				)
				continue
			}
			remainingMsgs = append(remainingMsgs, msg)
			remainingSeqs = append(remainingSeqs, seqs[i])
		}
		if len(remainingMsgs) == len(msgs) {
			return storeError("append_message", err)
		}
		msgs, seqs = remainingMsgs, remainingSeqs
	}
	return nil
}

// reserveSequence bumps the case's message counter by n and returns the
// first reserved number.
func (s *CaseStore) reserveSequence(ctx context.Context, caseID string, n int) (int64, error) {
	seqExpr, err := expression.NewBuilder().
		WithUpdate(expression.Add(expression.Name("MessageSeq"), expression.Value(n))).
		Build()
	if err != nil {
		return 0, fmt.Errorf("failed to build sequence expression: %w", err)
	}
	out, err := s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(s.table.Name),
		Key:                       s.key(caseID, metaSK),
		UpdateExpression:          seqExpr.Update(),
		ExpressionAttributeNames:  seqExpr.Names(),
		ExpressionAttributeValues: seqExpr.Values(),
		ReturnValues:              types.ReturnValueUpdatedNew,
	})
	if err != nil {
		return 0, storeError("append_message", err)
	}
	var seq struct {
		MessageSeq int64 `dynamodbav:"MessageSeq"`
	}
	if err := attributevalue.UnmarshalMap(out.Attributes, &seq); err != nil {
		return 0, fmt.Errorf("failed to read message sequence: %w", err)
	}
	return seq.MessageSeq - int64(n) + 1, nil
}

// appendItems lays out guard and message puts in pairs: the guard of
// msgs[i] sits at index 2*i.
func (s *CaseStore) appendItems(caseID string, msgs []*entities.Message, seqs []int64) ([]types.TransactWriteItem, error) {
	items := make([]types.TransactWriteItem, 0, 2*len(msgs))
	for i, msg := range msgs {
		item, err := attributevalue.MarshalMap(toMessageItem(caseID, seqs[i], msg))
		if err != nil {
			return nil, fmt.Errorf("failed to marshal message: %w", err)
		}
		guard := map[string]types.AttributeValue{
			"PK":         &types.AttributeValueMemberS{Value: casePK(caseID)},
			"SK":         &types.AttributeValueMemberS{Value: guardPrefix + msg.ID()},
			"EntityType": &types.AttributeValueMemberS{Value: "MESSAGE_GUARD"},
			"Seq":        &types.AttributeValueMemberN{Value: strconv.FormatInt(seqs[i], 10)},
		}
		items = append(items,
			types.TransactWriteItem{Put: &types.Put{
				TableName:           aws.String(s.table.Name),
				Item:                guard,
				ConditionExpression: aws.String("attribute_not_exists(PK)"),
			}},
			types.TransactWriteItem{Put: &types.Put{
				TableName: aws.String(s.table.Name),
				Item:      item,
			}},
		)
	}
	return items, nil
}

// storedGuards maps the failed guard conditions of a cancelled append back
// to message positions.
func storedGuards(err error) map[int]bool {
	stored := make(map[int]bool)
	var tce *types.TransactionCanceledException
	if !errors.As(err, &tce) {
		return stored
	}
	for i, reason := range tce.CancellationReasons {
		if i%2 == 0 && reason.Code != nil && *reason.Code == "ConditionalCheckFailed" {
			stored[i/2] = true
		}
	}
	return stored
}

// UpdateStatus sets the status of an existing case.
func (s *CaseStore) UpdateStatus(ctx context.Context, caseID string, status valueobjects.CaseStatus) error {
	update := expression.Set(expression.Name("Status"), expression.Value(status.String()))
	cond := expression.AttributeExists(expression.Name("PK"))
	expr, err := expression.NewBuilder().WithUpdate(update).WithCondition(cond).Build()
	if err != nil {
		return fmt.Errorf("failed to build status expression: %w", err)
	}

	_, err = s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(s.table.Name),
		Key:                       s.key(caseID, metaSK),
		UpdateExpression:          expr.Update(),
		ConditionExpression:       expr.Condition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	})
	if err != nil {
		if isConditionalCheckFailed(err) {
			return pkgerrors.NewCaseNotFoundError(caseID)
		}
		return storeError("update_status", err)
	}
	return nil
}

// Subscribe opens a polling feed over the case's message items.
func (s *CaseStore) Subscribe(_ context.Context, caseID string) (ports.MessageStream, error) {
	return newMessageStream(s, caseID, s.pollInterval), nil
}

// Save writes the snapshot onto the META item without touching the message
// sequence. A stored version newer than the snapshot's fails the write.
func (s *CaseStore) Save(ctx context.Context, snap aggregates.CaseSnapshot) error {
	item := toCaseItem(snap)
	update := expression.Set(expression.Name("GSI1PK"), expression.Value(item.GSI1PK)).
		Set(expression.Name("GSI1SK"), expression.Value(item.GSI1SK)).
		Set(expression.Name("GSI2PK"), expression.Value(item.GSI2PK)).
		Set(expression.Name("GSI2SK"), expression.Value(item.GSI2SK)).
		Set(expression.Name("EntityType"), expression.Value(item.EntityType)).
		Set(expression.Name("CaseID"), expression.Value(item.CaseID)).
		Set(expression.Name("StoreRef"), expression.Value(item.StoreRef)).
		Set(expression.Name("Flow"), expression.Value(item.Flow)).
		Set(expression.Name("Cursor"), expression.Value(item.Cursor)).
		Set(expression.Name("Status"), expression.Value(item.Status)).
		Set(expression.Name("Priority"), expression.Value(item.Priority)).
		Set(expression.Name("Completed"), expression.Value(item.Completed)).
		Set(expression.Name("Finalized"), expression.Value(item.Finalized)).
		Set(expression.Name("DriverID"), expression.Value(item.DriverID)).
		Set(expression.Name("DriverRole"), expression.Value(item.DriverRole)).
		Set(expression.Name("DriverEmail"), expression.Value(item.DriverEmail)).
		Set(expression.Name("DriverName"), expression.Value(item.DriverName)).
		Set(expression.Name("DriverAffiliation"), expression.Value(item.DriverAffiliation)).
		Set(expression.Name("Title"), expression.Value(item.Title)).
		Set(expression.Name("Description"), expression.Value(item.Description)).
		Set(expression.Name("CloseReason"), expression.Value(item.CloseReason)).
		Set(expression.Name("LastOption"), expression.Value(item.LastOption)).
		Set(expression.Name("SearchText"), expression.Value(item.SearchText)).
		Set(expression.Name("CreatedAt"), expression.Value(item.CreatedAt)).
		Set(expression.Name("UpdatedAt"), expression.Value(item.UpdatedAt)).
		Set(expression.Name("Version"), expression.Value(item.Version))
	cond := expression.AttributeNotExists(expression.Name("Version")).
		Or(expression.Name("Version").LessThanEqual(expression.Value(item.Version)))

	expr, err := expression.NewBuilder().WithUpdate(update).WithCondition(cond).Build()
	if err != nil {
		return fmt.Errorf("failed to build save expression: %w", err)
	}

	_, err = s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(s.table.Name),
		Key:                       s.key(item.CaseID, metaSK),
		UpdateExpression:          expr.Update(),
		ConditionExpression:       expr.Condition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	})
	if err != nil {
		if isConditionalCheckFailed(err) {
			return pkgerrors.NewConcurrentModificationError(item.CaseID)
		}
		return storeError("save_case", err)
	}
	return nil
}

// Get reads the META item and every message of the case in one partition query.
func (s *CaseStore) Get(ctx context.Context, caseID string) (*ports.CaseRecord, error) {
	keyCond := expression.Key("PK").Equal(expression.Value(casePK(caseID))).
		And(expression.Key("SK").LessThanEqual(expression.Value(lastMessageSK)))
	expr, err := expression.NewBuilder().WithKeyCondition(keyCond).Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build case query: %w", err)
	}
	input := &dynamodb.QueryInput{
		TableName:                 aws.String(s.table.Name),
		KeyConditionExpression:    expr.KeyCondition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
		ConsistentRead:            aws.Bool(true),
	}

	var (
		meta     *caseItem
		messages []*entities.Message
	)
	for {
		out, err := s.client.Query(ctx, input)
		if err != nil {
			return nil, storeError("get_case", err)
		}
		for _, raw := range out.Items {
			sk := stringAttr(raw, "SK")
			switch {
			case sk == metaSK:
				var item caseItem
				if err := attributevalue.UnmarshalMap(raw, &item); err != nil {
					return nil, fmt.Errorf("failed to unmarshal case: %w", err)
				}
				meta = &item
			case strings.HasPrefix(sk, messagePrefix):
				msg, err := unmarshalMessage(raw)
				if err != nil {
					return nil, err
				}
				messages = append(messages, msg)
			}
		}
		if out.LastEvaluatedKey == nil {
			break
		}
		input.ExclusiveStartKey = out.LastEvaluatedKey
	}

	if meta == nil || meta.Version == 0 {
		return nil, pkgerrors.NewCaseNotFoundError(caseID)
	}
	snap, err := meta.toSnapshot()
	if err != nil {
		return nil, err
	}
	return &ports.CaseRecord{Snapshot: snap, Messages: messages}, nil
}

// List pages through a driver's cases, or all cases, newest first. Status and
// search are applied as filters, so pages are topped up until full.
func (s *CaseStore) List(ctx context.Context, criteria ports.CaseCriteria) (*ports.CasePage, error) {
	var (
		keyCond expression.KeyConditionBuilder
		index   string
	)
	if criteria.DriverID != "" {
		keyCond = expression.Key("GSI1PK").Equal(expression.Value(driverCasesPK(criteria.DriverID)))
		index = s.table.ByOwnerIndex
	} else {
		keyCond = expression.Key("GSI2PK").Equal(expression.Value(allCasesPK))
		index = s.table.AllCasesIndex
	}

	builder := expression.NewBuilder().WithKeyCondition(keyCond)
	var filters []expression.ConditionBuilder
	if criteria.Status != "" {
		filters = append(filters, expression.Name("Status").Equal(expression.Value(criteria.Status)))
	}
	if criteria.Search != "" {
		filters = append(filters, expression.Contains(expression.Name("SearchText"), strings.ToLower(criteria.Search)))
	}
	switch len(filters) {
	case 0:
	case 1:
		builder = builder.WithFilter(filters[0])
	default:
		builder = builder.WithFilter(expression.And(filters[0], filters[1], filters[2:]...))
	}
	expr, err := builder.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build list expression: %w", err)
	}

	startKey, err := decodeCursor(criteria.Cursor)
	if err != nil {
		return nil, pkgerrors.NewValidationError("invalid cursor")
	}

	limit := criteria.Limit
	if limit <= 0 {
		limit = 25
	}
	input := &dynamodb.QueryInput{
		TableName:                 aws.String(s.table.Name),
		IndexName:                 aws.String(index),
		KeyConditionExpression:    expr.KeyCondition(),
		FilterExpression:          expr.Filter(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
		ScanIndexForward:          aws.Bool(false),
		Limit:                     aws.Int32(int32(limit)),
		ExclusiveStartKey:         startKey,
	}

	page := &ports.CasePage{}
	for {
		out, err := s.client.Query(ctx, input)
		if err != nil {
			return nil, storeError("list_cases", err)
		}
		for _, raw := range out.Items {
			var item caseItem
			if err := attributevalue.UnmarshalMap(raw, &item); err != nil {
				return nil, fmt.Errorf("failed to unmarshal case: %w", err)
			}
			snap, err := item.toSnapshot()
			if err != nil {
				return nil, err
			}
			page.Cases = append(page.Cases, snap)
			if len(page.Cases) == limit {
				next, err := encodeCursor(caseCursorKey(raw, index == s.table.ByOwnerIndex))
				if err != nil {
					return nil, err
				}
				page.NextCursor = next
				return page, nil
			}
		}
		if out.LastEvaluatedKey == nil {
			return page, nil
		}
		input.ExclusiveStartKey = out.LastEvaluatedKey
	}
}

// caseCursorKey is the index key of the last returned item, used to resume.
func caseCursorKey(raw map[string]types.AttributeValue, byDriver bool) map[string]types.AttributeValue {
	names := []string{"PK", "SK", "GSI2PK", "GSI2SK"}
	if byDriver {
		names = []string{"PK", "SK", "GSI1PK", "GSI1SK"}
	}
	key := make(map[string]types.AttributeValue, len(names))
	for _, n := range names {
		if v, ok := raw[n]; ok {
			key[n] = v
		}
	}
	return key
}

// encodeCursor serializes a key made of string attributes.
func encodeCursor(key map[string]types.AttributeValue) (string, error) {
	if len(key) == 0 {
		return "", nil
	}
	plain := make(map[string]string, len(key))
	for name, v := range key {
		s, ok := v.(*types.AttributeValueMemberS)
		if !ok {
			return "", fmt.Errorf("cursor attribute %s is not a string", name)
		}
		plain[name] = s.Value
	}
	data, err := json.Marshal(plain)
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(data), nil
}

func decodeCursor(cursor string) (map[string]types.AttributeValue, error) {
	if cursor == "" {
		return nil, nil
	}
	data, err := base64.RawURLEncoding.DecodeString(cursor)
	if err != nil {
		return nil, err
	}
	var plain map[string]string
	if err := json.Unmarshal(data, &plain); err != nil {
		return nil, err
	}
	key := make(map[string]types.AttributeValue, len(plain))
	for name, v := range plain {
		key[name] = &types.AttributeValueMemberS{Value: v}
	}
	return key, nil
}

func toCaseItem(snap aggregates.CaseSnapshot) caseItem {
	id := snap.ID.String()
	sortKey := caseSortKey(snap.UpdatedAt, id)
	return caseItem{
		PK:                casePK(id),
		SK:                metaSK,
		GSI1PK:            driverCasesPK(snap.Driver.UserID),
		GSI1SK:            sortKey,
		GSI2PK:            allCasesPK,
		GSI2SK:            sortKey,
		EntityType:        "CASE",
		CaseID:            id,
		StoreRef:          snap.StoreRef,
		Flow:              snap.Flow,
		Cursor:            snap.Cursor,
		Status:            snap.Status.String(),
		Priority:          snap.Priority.String(),
		Completed:         snap.Completed,
		Finalized:         snap.Finalized,
		DriverID:          snap.Driver.UserID,
		DriverRole:        string(snap.Driver.Role),
		DriverEmail:       snap.Driver.Email,
		DriverName:        snap.Driver.Name,
		DriverAffiliation: snap.Driver.Affiliation,
		Title:             snap.Title,
		Description:       snap.Description,
		CloseReason:       snap.CloseReason,
		LastOption:        snap.LastOption,
		SearchText:        strings.ToLower(strings.Join([]string{id, snap.Title, snap.Driver.Name}, " ")),
		CreatedAt:         utils.FormatTimestamp(snap.CreatedAt),
		UpdatedAt:         utils.FormatTimestamp(snap.UpdatedAt),
		Version:           snap.Version,
	}
}

func (item caseItem) toSnapshot() (aggregates.CaseSnapshot, error) {
	id, err := valueobjects.NewCaseIDFromString(item.CaseID)
	if err != nil {
		return aggregates.CaseSnapshot{}, fmt.Errorf("stored case id %q: %w", item.CaseID, err)
	}
	status, err := valueobjects.ParseCaseStatus(item.Status)
	if err != nil {
		return aggregates.CaseSnapshot{}, err
	}
	priority, err := valueobjects.ParsePriority(item.Priority)
	if err != nil {
		return aggregates.CaseSnapshot{}, err
	}
	createdAt, err := utils.ParseTimestamp(item.CreatedAt)
	if err != nil {
		return aggregates.CaseSnapshot{}, err
	}
	updatedAt, err := utils.ParseTimestamp(item.UpdatedAt)
	if err != nil {
		return aggregates.CaseSnapshot{}, err
	}
	return aggregates.CaseSnapshot{
		ID:        id,
		StoreRef:  item.StoreRef,
		Flow:      item.Flow,
		Cursor:    item.Cursor,
		Status:    status,
		Priority:  priority,
		Completed: item.Completed,
		Finalized: item.Finalized,
		Driver: valueobjects.Identity{
			UserID:      item.DriverID,
			Role:        valueobjects.Role(item.DriverRole),
			Email:       item.DriverEmail,
			Name:        item.DriverName,
			Affiliation: item.DriverAffiliation,
		},
		Title:       item.Title,
		Description: item.Description,
		CloseReason: item.CloseReason,
		LastOption:  item.LastOption,
		CreatedAt:   createdAt,
		UpdatedAt:   updatedAt,
		Version:     item.Version,
	}, nil
}

func toMessageItem(caseID string, seq int64, msg *entities.Message) messageItem {
	return messageItem{
		PK:         casePK(caseID),
		SK:         messageSK(seq),
		EntityType: "MESSAGE",
		MessageID:  msg.ID(),
		Text:       msg.Text(),
		Sender:     msg.Sender().String(),
		SenderID:   msg.SenderID(),
		Attachment: msg.Attachment(),
		CreatedAt:  utils.FormatTimestamp(msg.CreatedAt()),
	}
}

func unmarshalMessage(raw map[string]types.AttributeValue) (*entities.Message, error) {
	var item messageItem
	if err := attributevalue.UnmarshalMap(raw, &item); err != nil {
		return nil, fmt.Errorf("failed to unmarshal message: %w", err)
	}
	sender, err := valueobjects.ParseSenderRole(item.Sender)
	if err != nil {
		return nil, err
	}
	createdAt, err := utils.ParseTimestamp(item.CreatedAt)
	if err != nil {
		return nil, err
	}
	return entities.ReconstructMessage(item.MessageID, item.Text, sender, item.SenderID, createdAt, item.Attachment)
}

func stringAttr(item map[string]types.AttributeValue, name string) string {
	if v, ok := item[name].(*types.AttributeValueMemberS); ok {
		return v.Value
	}
	return ""
}
