package repository

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"worldbuilder-agent/internal/domain"
)

const (
	skPrefixTurn = "TURN#"
	skMeta       = "META#"
	ttlDuration  = 30 * 24 * time.Hour // 30-day TTL
	defaultLimit = 20
	// Fixed-width so sort keys order the same as timestamps.
	skTimeLayout = "2006-01-02T15:04:05.000000000Z"
)

// dynamodbAPI is the minimal DynamoDB interface required by Client.
// Defined here for testability.
type dynamodbAPI interface {
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	Query(ctx context.Context, in *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	TransactWriteItems(ctx context.Context, in *dynamodb.TransactWriteItemsInput, optFns ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error)
}

// Client is the append-only turn audit log. Nothing read from it flows back
// into conversation memory.
type Client struct {
	api       dynamodbAPI
	tableName string
	now       func() time.Time
}

// New creates a new repository Client.
func New(api dynamodbAPI, tableName string) (*Client, error) {
	if api == nil {
		return nil, errors.New("repository: api must not be nil")
	}
	if strings.TrimSpace(tableName) == "" {
		return nil, errors.New("repository: table name must not be empty")
	}
	return &Client{api: api, tableName: tableName, now: time.Now}, nil
}

// threadPK returns the DynamoDB partition key for a thread.
func threadPK(threadID int64) string {
	return "THREAD#" + strconv.FormatInt(threadID, 10)
}

// turnSK orders turns chronologically within a thread.
func turnSK(ts time.Time, turnID string) string {
	return skPrefixTurn + ts.UTC().Format(skTimeLayout) + "#" + turnID
}

func (c *Client) ttlValue(now time.Time) int64 {
	return now.Add(ttlDuration).Unix()
}

// RecordTurn writes the turn and bumps the thread metadata in one transaction.
func (c *Client) RecordTurn(ctx context.Context, turn domain.TurnRecord) error {
	if strings.TrimSpace(turn.TurnID) == "" {
		return errors.New("repository: RecordTurn: turn id is required")
	}
	if turn.ThreadID <= 0 {
		return errors.New("repository: RecordTurn: thread id must be positive")
	}

	now := c.now().UTC()
	turn.PK = threadPK(turn.ThreadID)
	turn.SK = turnSK(now, turn.TurnID)
	turn.CreatedAt = now.Format(time.RFC3339Nano)
	turn.TTL = c.ttlValue(now)

	_, err := c.api.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			{
				Put: &types.Put{
					TableName:           aws.String(c.tableName),
					Item:                turnItem(turn),
					ConditionExpression: aws.String("attribute_not_exists(PK) AND attribute_not_exists(SK)"),
				},
			},
			{
				Update: &types.Update{
					TableName: aws.String(c.tableName),
					Key: map[string]types.AttributeValue{
						"PK": &types.AttributeValueMemberS{Value: turn.PK},
						"SK": &types.AttributeValueMemberS{Value: skMeta},
					},
					UpdateExpression:         aws.String("SET threadId = :tid, lastActivity = :ts, #ttl = :ttl ADD turns :one"),
					ExpressionAttributeNames: map[string]string{"#ttl": "ttl"},
					ExpressionAttributeValues: map[string]types.AttributeValue{
						":tid": &types.AttributeValueMemberN{Value: strconv.FormatInt(turn.ThreadID, 10)},
						":ts":  &types.AttributeValueMemberS{Value: turn.CreatedAt},
						":ttl": &types.AttributeValueMemberN{Value: strconv.FormatInt(turn.TTL, 10)},
						":one": &types.AttributeValueMemberN{Value: "1"},
					},
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("repository: RecordTurn: %w", err)
	}
	return nil
}

// ListTurns returns up to limit of the thread's most recent turns, oldest first.
func (c *Client) ListTurns(ctx context.Context, threadID int64, limit int) ([]domain.TurnRecord, error) {
	if limit <= 0 {
		limit = defaultLimit
	}
	limit = min(limit, math.MaxInt32)
	out, err := c.api.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(c.tableName),
		KeyConditionExpression: aws.String("PK = :pk AND begins_with(SK, :prefix)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk":     &types.AttributeValueMemberS{Value: threadPK(threadID)},
			":prefix": &types.AttributeValueMemberS{Value: skPrefixTurn},
		},
		// Read newest first so LIMIT keeps the most recent turns.
		ScanIndexForward: aws.Bool(false),
		Limit:            aws.Int32(int32(limit)),
	})
	if err != nil {
		return nil, fmt.Errorf("repository: ListTurns query: %w", err)
	}

	turns := make([]domain.TurnRecord, 0, len(out.Items))
	for _, item := range out.Items {
		turn, err := itemToTurn(item)
		if err != nil {
			return nil, fmt.Errorf("repository: ListTurns unmarshal: %w", err)
		}
		turns = append(turns, turn)
	}
	for i, j := 0, len(turns)-1; i < j; i, j = i+1, j-1 {
		turns[i], turns[j] = turns[j], turns[i]
	}
	return turns, nil
}

// GetThreadMeta returns the thread's aggregate record; ok is false when the
// thread has never been recorded.
func (c *Client) GetThreadMeta(ctx context.Context, threadID int64) (meta domain.ThreadMeta, ok bool, err error) {
	out, err := c.api.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(c.tableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: threadPK(threadID)},
			"SK": &types.AttributeValueMemberS{Value: skMeta},
		},
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return domain.ThreadMeta{}, false, fmt.Errorf("repository: GetThreadMeta get item: %w", err)
	}
	if out == nil || len(out.Item) == 0 {
		return domain.ThreadMeta{}, false, nil
	}

	turns, err := intAttr(out.Item, "turns")
	if err != nil {
		return domain.ThreadMeta{}, false, fmt.Errorf("repository: GetThreadMeta decode turns: %w", err)
	}
	last, _ := strAttr(out.Item, "lastActivity") // allow empty
	return domain.ThreadMeta{
		PK:           threadPK(threadID),
		SK:           skMeta,
		ThreadID:     threadID,
		LastActivity: last,
		Turns:        turns,
	}, true, nil
}

func turnItem(t domain.TurnRecord) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK":         &types.AttributeValueMemberS{Value: t.PK},
		"SK":         &types.AttributeValueMemberS{Value: t.SK},
		"turnId":     &types.AttributeValueMemberS{Value: t.TurnID},
		"threadId":   &types.AttributeValueMemberN{Value: strconv.FormatInt(t.ThreadID, 10)},
		"prompt":     &types.AttributeValueMemberS{Value: t.Prompt},
		"capability": &types.AttributeValueMemberS{Value: t.Capability},
		"source":     &types.AttributeValueMemberS{Value: string(t.Source)},
		"rationale":  &types.AttributeValueMemberS{Value: t.Rationale},
		"response":   &types.AttributeValueMemberS{Value: t.Response},
		"createdAt":  &types.AttributeValueMemberS{Value: t.CreatedAt},
		"ttl":        &types.AttributeValueMemberN{Value: strconv.FormatInt(t.TTL, 10)},
	}
}

// itemToTurn converts a DynamoDB attribute map to a TurnRecord.
func itemToTurn(item map[string]types.AttributeValue) (domain.TurnRecord, error) {
	pk, err := strAttr(item, "PK")
	if err != nil {
		return domain.TurnRecord{}, err
	}
	sk, err := strAttr(item, "SK")
	if err != nil {
		return domain.TurnRecord{}, err
	}
	turnID, err := strAttr(item, "turnId")
	if err != nil {
		return domain.TurnRecord{}, err
	}
	threadID, err := intAttr(item, "threadId")
	if err != nil {
		return domain.TurnRecord{}, err
	}
	prompt, err := strAttr(item, "prompt")
	if err != nil {
		return domain.TurnRecord{}, err
	}
	capability, err := strAttr(item, "capability")
	if err != nil {
		return domain.TurnRecord{}, err
	}
	source, _ := strAttr(item, "source")       // allow empty
	rationale, _ := strAttr(item, "rationale") // allow empty
	response, _ := strAttr(item, "response")   // allow empty
	createdAt, _ := strAttr(item, "createdAt") // allow empty

	return domain.TurnRecord{
		PK:         pk,
		SK:         sk,
		TurnID:     turnID,
		ThreadID:   int64(threadID),
		Prompt:     prompt,
		Capability: capability,
		Source:     domain.Source(source),
		Rationale:  rationale,
		Response:   response,
		CreatedAt:  createdAt,
	}, nil
}

func strAttr(item map[string]types.AttributeValue, key string) (string, error) {
	v, ok := item[key]
	if !ok {
		return "", fmt.Errorf("repository: missing attribute %q", key)
	}
	s, ok := v.(*types.AttributeValueMemberS)
	if !ok {
		return "", fmt.Errorf("repository: attribute %q is not a string", key)
	}
	return s.Value, nil
}

func intAttr(item map[string]types.AttributeValue, key string) (int, error) {
	v, ok := item[key]
	if !ok {
		return 0, fmt.Errorf("repository: missing attribute %q", key)
	}
	n, ok := v.(*types.AttributeValueMemberN)
	if !ok {
		return 0, fmt.Errorf("repository: attribute %q is not a number", key)
	}
	parsed, err := strconv.Atoi(n.Value)
	if err != nil {
		return 0, fmt.Errorf("repository: parse attribute %q: %w", key, err)
	}
	return parsed, nil
}
