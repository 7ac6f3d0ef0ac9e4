package approval

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
	Query(context.Context, *dynamodb.QueryInput, ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	Scan(context.Context, *dynamodb.ScanInput, ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
}

// RequestStore persists meeting requests to DynamoDB. Status transitions
// are guarded by an optimistic version token so two racing resolutions
// cannot both leave pending.
type RequestStore struct {
	client             dynamoAPI
	tableName          string
	providerPhoneIndex string
	logger             *logging.Logger
}

// NewRequestStore builds a store backed by the provided DynamoDB client.
func NewRequestStore(client dynamoAPI, tableName, providerPhoneIndex string, logger *logging.Logger) *RequestStore {
	if client == nil {
		panic("approval: dynamodb client cannot be nil")
	}
	if tableName == "" {
		panic("approval: table name cannot be empty")
	}
	if providerPhoneIndex == "" {
		providerPhoneIndex = "providerPhone-createdAt-index"
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &RequestStore{
		client:             client,
		tableName:          tableName,
		providerPhoneIndex: providerPhoneIndex,
		logger:             logger,
	}
}

// createdAtFormat pads fractional seconds to a fixed width. The GSI sorts
// createdAt bytewise, and RFC3339Nano trims trailing zeros, which would let
// "05.1Z" sort after "05.12Z" and return the wrong "most recent" request.
const createdAtFormat = "2006-01-02T15:04:05.000000000Z07:00"

// Put inserts a new pending request.
func (s *RequestStore) Put(ctx context.Context, req *Request) error {
	if req == nil {
		return errors.New("approval: request cannot be nil")
	}
	now := time.Now().UTC()
	req.Status = StatusPending
	if req.CreatedAt == "" {
		req.CreatedAt = now.Format(createdAtFormat)
	}
	if req.ExpiresAt == 0 {
		req.ExpiresAt = now.Add(RequestTTL).Unix()
	}
	if req.Version == 0 {
		req.Version = 1
	}

	item, err := attributevalue.MarshalMap(req)
	if err != nil {
		return fmt.Errorf("approval: failed to marshal request: %w", err)
	}

	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(s.tableName),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(id)"),
	})
	if err != nil {
		return fmt.Errorf("approval: failed to persist request: %w", err)
	}
	return nil
}

// Get fetches a request by id.
func (s *RequestStore) Get(ctx context.Context, id string) (*Request, error) {
	if id == "" {
		return nil, errors.New("approval: id required")
	}
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.tableName),
		Key: map[string]types.AttributeValue{
			"id": &types.AttributeValueMemberS{Value: id},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("approval: failed to fetch request: %w", err)
	}
	if out.Item == nil {
		return nil, ErrNotFound
	}

	var req Request
	if err := attributevalue.UnmarshalMap(out.Item, &req); err != nil {
		return nil, fmt.Errorf("approval: failed to decode request: %w", err)
	}
	return &req, nil
}

// LatestPendingByProviderPhone returns the most recently created pending
// non-expired request for the provider, or ErrNothingPending.
func (s *RequestStore) LatestPendingByProviderPhone(ctx context.Context, providerPhone string, now time.Time) (*Request, error) {
	if providerPhone == "" {
		return nil, errors.New("approval: provider phone required")
	}
	out, err := s.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(s.tableName),
		IndexName:              aws.String(s.providerPhoneIndex),
		KeyConditionExpression: aws.String("providerPhone = :phone"),
		FilterExpression:       aws.String("#status = :pending"),
		ExpressionAttributeNames: map[string]string{
			"#status": "status",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":phone":   &types.AttributeValueMemberS{Value: providerPhone},
			":pending": &types.AttributeValueMemberS{Value: string(StatusPending)},
		},
		ScanIndexForward: aws.Bool(false),
	})
	if err != nil {
		return nil, fmt.Errorf("approval: failed to query pending requests: %w", err)
	}

	for _, item := range out.Items {
		var req Request
		if err := attributevalue.UnmarshalMap(item, &req); err != nil {
			return nil, fmt.Errorf("approval: failed to decode request: %w", err)
		}
		if req.Expired(now) {
			continue
		}
		return &req, nil
	}
	return nil, ErrNothingPending
}

// UpdateStatus transitions a pending request to a terminal status. The
// condition requires both pending status and the version the caller read,
// so a concurrent resolution fails with ErrAlreadyResolved instead of
// double-writing.
func (s *RequestStore) UpdateStatus(ctx context.Context, id string, expectedVersion int64, to Status, meetingLink, calendarEventID string) error {
	if id == "" {
		return errors.New("approval: id required")
	}

	values := map[string]types.AttributeValue{
		":pending": &types.AttributeValueMemberS{Value: string(StatusPending)},
		":status":  &types.AttributeValueMemberS{Value: string(to)},
		":v":       &types.AttributeValueMemberN{Value: strconv.FormatInt(expectedVersion, 10)},
		":next":    &types.AttributeValueMemberN{Value: strconv.FormatInt(expectedVersion+1, 10)},
		":link":    &types.AttributeValueMemberS{Value: meetingLink},
		":event":   &types.AttributeValueMemberS{Value: calendarEventID},
	}

	_, err := s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(s.tableName),
		Key: map[string]types.AttributeValue{
			"id": &types.AttributeValueMemberS{Value: id},
		},
		UpdateExpression: aws.String("SET #status = :status, version = :next, meetingLink = :link, calendarEventId = :event"),
		ExpressionAttributeNames: map[string]string{
			"#status": "status",
		},
		ExpressionAttributeValues: values,
		ConditionExpression:       aws.String("#status = :pending AND version = :v"),
	})
	if err != nil {
		var conditional *types.ConditionalCheckFailedException
		if errors.As(err, &conditional) {
			return ErrAlreadyResolved
		}
		return fmt.Errorf("approval: failed to update request %s: %w", id, err)
	}
	return nil
}

// UpdateDelivery records create-time notification outcomes.
func (s *RequestStore) UpdateDelivery(ctx context.Context, id string, delivery Delivery) error {
	if id == "" {
		return errors.New("approval: id required")
	}
	deliveryAttr, err := attributevalue.Marshal(delivery)
	if err != nil {
		return fmt.Errorf("approval: failed to marshal delivery: %w", err)
	}

	_, err = s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(s.tableName),
		Key: map[string]types.AttributeValue{
			"id": &types.AttributeValueMemberS{Value: id},
		},
		UpdateExpression: aws.String("SET delivery = :delivery"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":delivery": deliveryAttr,
		},
		ConditionExpression: aws.String("attribute_exists(id)"),
	})
	if err != nil {
		return fmt.Errorf("approval: failed to update delivery for %s: %w", id, err)
	}
	return nil
}

// List returns up to limit requests for the dashboard read side.
func (s *RequestStore) List(ctx context.Context, limit int32) ([]Request, error) {
	if limit <= 0 {
		limit = 50
	}
	out, err := s.client.Scan(ctx, &dynamodb.ScanInput{
		TableName: aws.String(s.tableName),
		Limit:     aws.Int32(limit),
	})
	if err != nil {
		return nil, fmt.Errorf("approval: failed to list requests: %w", err)
	}

	requests := make([]Request, 0, len(out.Items))
	for _, item := range out.Items {
		var req Request
		if err := attributevalue.UnmarshalMap(item, &req); err != nil {
			return nil, fmt.Errorf("approval: failed to decode request: %w", err)
		}
		requests = append(requests, req)
	}
	return requests, nil
}

// ListExpiredPending returns pending requests whose TTL lapsed before now.
func (s *RequestStore) ListExpiredPending(ctx context.Context, now time.Time) ([]Request, error) {
	out, err := s.client.Scan(ctx, &dynamodb.ScanInput{
		TableName:        aws.String(s.tableName),
		FilterExpression: aws.String("#status = :pending AND expiresAt < :now"),
		ExpressionAttributeNames: map[string]string{
			"#status": "status",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pending": &types.AttributeValueMemberS{Value: string(StatusPending)},
			":now":     &types.AttributeValueMemberN{Value: strconv.FormatInt(now.Unix(), 10)},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("approval: failed to scan expired requests: %w", err)
	}

	requests := make([]Request, 0, len(out.Items))
	for _, item := range out.Items {
		var req Request
		if err := attributevalue.UnmarshalMap(item, &req); err != nil {
			return nil, fmt.Errorf("approval: failed to decode request: %w", err)
		}
		requests = append(requests, req)
	}
	return requests, nil
}
