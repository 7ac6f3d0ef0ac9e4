package escalation

import (
	"context"
	"errors"
	"fmt"
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
	Scan(context.Context, *dynamodb.ScanInput, ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
}

// Store persists escalation records to DynamoDB. Records are write-once;
// there is no update path.
type Store struct {
	client    dynamoAPI
	tableName string
	logger    *logging.Logger
}

// NewStore builds a store backed by the provided DynamoDB client.
func NewStore(client dynamoAPI, tableName string, logger *logging.Logger) *Store {
	if client == nil {
		panic("escalation: dynamodb client cannot be nil")
	}
	if tableName == "" {
		panic("escalation: table name cannot be empty")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Store{
		client:    client,
		tableName: tableName,
		logger:    logger,
	}
}

// Put inserts a new escalation record.
func (s *Store) Put(ctx context.Context, esc *Escalation) error {
	if esc == nil {
		return errors.New("escalation: record cannot be nil")
	}
	if esc.CreatedAt == "" {
		esc.CreatedAt = time.Now().UTC().Format(time.RFC3339Nano)
	}

	item, err := attributevalue.MarshalMap(esc)
	if err != nil {
		return fmt.Errorf("escalation: failed to marshal record: %w", err)
	}

	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(s.tableName),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(id)"),
	})
	if err != nil {
		return fmt.Errorf("escalation: failed to persist record: %w", err)
	}
	return nil
}

// Get fetches an escalation by id.
func (s *Store) Get(ctx context.Context, id string) (*Escalation, error) {
	if id == "" {
		return nil, errors.New("escalation: id required")
	}
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.tableName),
		Key: map[string]types.AttributeValue{
			"id": &types.AttributeValueMemberS{Value: id},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("escalation: failed to fetch record: %w", err)
	}
	if out.Item == nil {
		return nil, ErrNotFound
	}

	var esc Escalation
	if err := attributevalue.UnmarshalMap(out.Item, &esc); err != nil {
		return nil, fmt.Errorf("escalation: failed to decode record: %w", err)
	}
	return &esc, nil
}

// List returns up to limit escalation records for the dashboard read side.
func (s *Store) List(ctx context.Context, limit int32) ([]Escalation, error) {
	if limit <= 0 {
		limit = 50
	}
	out, err := s.client.Scan(ctx, &dynamodb.ScanInput{
		TableName: aws.String(s.tableName),
		Limit:     aws.Int32(limit),
	})
	if err != nil {
		return nil, fmt.Errorf("escalation: failed to list records: %w", err)
	}

	escalations := make([]Escalation, 0, len(out.Items))
	for _, item := range out.Items {
		var esc Escalation
		if err := attributevalue.UnmarshalMap(item, &esc); err != nil {
			return nil, fmt.Errorf("escalation: failed to decode record: %w", err)
		}
		escalations = append(escalations, esc)
	}
	return escalations, nil
}
