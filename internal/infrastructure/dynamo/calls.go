package dynamo

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/go-site-api/internal/domain"
)

// CallRepo provides typed DynamoDB operations for podcast call recordings.
type CallRepo struct {
	client    *dynamodb.Client
	tableName string
}

func NewCallRepo(client *dynamodb.Client, tableName string) *CallRepo {
	return &CallRepo{client: client, tableName: tableName}
}

func (r *CallRepo) Put(ctx context.Context, c *domain.CallRecording) error {
	item, err := attributevalue.MarshalMap(c)
	if err != nil {
		return fmt.Errorf("marshal call: %w", err)
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.tableName),
		Item:      item,
	})
	return writeErr(err)
}

func (r *CallRepo) Get(ctx context.Context, callID string) (*domain.CallRecording, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.tableName),
		Key:       strKey("call_id", callID),
	})
	if err != nil {
		return nil, err
	}
	if out.Item == nil {
		return nil, fmt.Errorf("call not found: %w", domain.ErrNotFound)
	}
	var c domain.CallRecording
	if err := attributevalue.UnmarshalMap(out.Item, &c); err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *CallRepo) ListByUser(ctx context.Context, userID string) ([]domain.CallRecording, error) {
	out, err := r.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(r.tableName),
		IndexName:              aws.String("user_id-index"),
		KeyConditionExpression: aws.String("user_id = :uid"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":uid": &types.AttributeValueMemberS{Value: userID},
		},
	})
	if err != nil {
		return nil, err
	}
	var calls []domain.CallRecording
	if err := attributevalue.UnmarshalListOfMaps(out.Items, &calls); err != nil {
		return nil, err
	}
	return calls, nil
}

// Scan returns every call recording. The admin review queue is small enough
// that a full table scan is fine here.
func (r *CallRepo) Scan(ctx context.Context) ([]domain.CallRecording, error) {
	out, err := r.client.Scan(ctx, &dynamodb.ScanInput{
		TableName: aws.String(r.tableName),
	})
	if err != nil {
		return nil, err
	}
	var calls []domain.CallRecording
	if err := attributevalue.UnmarshalListOfMaps(out.Items, &calls); err != nil {
		return nil, err
	}
	return calls, nil
}

func (r *CallRepo) Delete(ctx context.Context, callID string) error {
	_, err := r.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(r.tableName),
		Key:       strKey("call_id", callID),
	})
	return writeErr(err)
}
