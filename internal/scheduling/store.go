package scheduling

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/wardlink/clinic-comms-platform/pkg/logging"
)

type dynamoAPI interface {
	PutItem(context.Context, *dynamodb.PutItemInput, ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	GetItem(context.Context, *dynamodb.GetItemInput, ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	UpdateItem(context.Context, *dynamodb.UpdateItemInput, ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
}

// SessionStore persists scheduling sessions to DynamoDB. Transitions are
// guarded by an optimistic version token, and the expiresAt attribute
// doubles as a native TTL so DynamoDB reaps abandoned sessions.
type SessionStore struct {
	client    dynamoAPI
	tableName string
	logger    *logging.Logger
	now       func() time.Time
}

// NewSessionStore builds a store backed by the provided DynamoDB client.
func NewSessionStore(client dynamoAPI, tableName string, logger *logging.Logger) *SessionStore {
	if client == nil {
		panic("scheduling: dynamodb client cannot be nil")
	}
	if tableName == "" {
		panic("scheduling: table name cannot be empty")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &SessionStore{
		client:    client,
		tableName: tableName,
		logger:    logger,
		now:       time.Now,
	}
}

// Put inserts a new session in selecting_time.
func (s *SessionStore) Put(ctx context.Context, sess *Session) error {
	if sess == nil {
		return errors.New("scheduling: session cannot be nil")
	}
	now := s.now().UTC()
	sess.Status = StatusSelectingTime
	if sess.CreatedAt == "" {
		// Fixed-width fractional seconds keep the value bytewise sortable.
		sess.CreatedAt = now.Format("2006-01-02T15:04:05.000000000Z07:00")
	}
	if sess.ExpiresAt == 0 {
		sess.ExpiresAt = now.Add(SessionTTL).Unix()
	}
	if sess.Version == 0 {
		sess.Version = 1
	}

	item, err := attributevalue.MarshalMap(sess)
	if err != nil {
		return fmt.Errorf("scheduling: failed to marshal session: %w", err)
	}

	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(s.tableName),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(id)"),
	})
	if err != nil {
		return fmt.Errorf("scheduling: failed to put session: %w", err)
	}
	return nil
}

// Get loads a session by id. Sessions past their TTL are reported as
// absent; DynamoDB's reaper is eventually consistent so the check happens
// here too.
func (s *SessionStore) Get(ctx context.Context, id string) (*Session, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.tableName),
		Key: map[string]types.AttributeValue{
			"id": &types.AttributeValueMemberS{Value: id},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("scheduling: failed to get session %s: %w", id, err)
	}
	if out.Item == nil {
		return nil, ErrSessionNotFound
	}

	var sess Session
	if err := attributevalue.UnmarshalMap(out.Item, &sess); err != nil {
		return nil, fmt.Errorf("scheduling: failed to unmarshal session %s: %w", id, err)
	}
	return &sess, nil
}

// Transition moves a session to the given status, recording the selected
// time and reason when provided. The write is conditional on the version
// the caller read, so concurrent submissions cannot both win.
func (s *SessionStore) Transition(ctx context.Context, sess *Session, status SessionStatus) error {
	if sess == nil {
		return errors.New("scheduling: session cannot be nil")
	}

	_, err := s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(s.tableName),
		Key: map[string]types.AttributeValue{
			"id": &types.AttributeValueMemberS{Value: sess.ID},
		},
		UpdateExpression:    aws.String("SET #status = :status, version = :next, selectedTime = :selected, reason = :reason"),
		ConditionExpression: aws.String("version = :v"),
		ExpressionAttributeNames: map[string]string{
			"#status": "status",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":status":   &types.AttributeValueMemberS{Value: string(status)},
			":next":     &types.AttributeValueMemberN{Value: strconv.FormatInt(sess.Version+1, 10)},
			":selected": &types.AttributeValueMemberS{Value: sess.SelectedTime},
			":reason":   &types.AttributeValueMemberS{Value: sess.Reason},
			":v":        &types.AttributeValueMemberN{Value: strconv.FormatInt(sess.Version, 10)},
		},
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return fmt.Errorf("scheduling: session %s changed concurrently: %w", sess.ID, err)
		}
		return fmt.Errorf("scheduling: failed to transition session %s: %w", sess.ID, err)
	}

	sess.Status = status
	sess.Version++
	return nil
}
