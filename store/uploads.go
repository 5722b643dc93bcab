package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/Yulian302/lfusys-services-studio/apperror"
	"github.com/Yulian302/lfusys-services-studio/models"
	"github.com/Yulian302/lfusys-services-studio/retries"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

const userEmailIndex = "user_email-index"

type DynamoDbUploadStoreImpl struct {
	client    *dynamodb.Client
	tableName string
	now       func() time.Time
}

func NewDynamoDbUploadStoreImpl(client *dynamodb.Client, tableName string) *DynamoDbUploadStoreImpl {
	return &DynamoDbUploadStoreImpl{
		client:    client,
		tableName: tableName,
		now:       time.Now,
	}
}

func (s *DynamoDbUploadStoreImpl) IsReady(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 1*time.Second)
	defer cancel()

	return retries.Retry(
		ctx,
		retries.HealthAttempts,
		retries.HealthBaseDelay,
		func() error {
			_, err := s.client.DescribeTable(ctx, &dynamodb.DescribeTableInput{
				TableName: aws.String(s.tableName),
			})
			return err
		},
		retries.IsRetriableDbError,
	)
}

func (s *DynamoDbUploadStoreImpl) Name() string {
	return "UploadStore[uploads]"
}

func (s *DynamoDbUploadStoreImpl) Create(ctx context.Context, rec models.UploadRecord) error {
	item, err := attributevalue.MarshalMap(rec)
	if err != nil {
		return fmt.Errorf("marshal upload record: %w", err)
	}

	return retries.Retry(
		ctx,
		retries.DefaultAttempts,
		retries.DefaultBaseDelay,
		func() error {
			_, err := s.client.PutItem(ctx, &dynamodb.PutItemInput{
				TableName:           aws.String(s.tableName),
				Item:                item,
				ConditionExpression: aws.String("attribute_not_exists(object_key)"),
			})
			return err
		},
		retries.IsRetriableDbError,
	)
}

func (s *DynamoDbUploadStoreImpl) UpdateStatus(ctx context.Context, objectKey string, upd StatusUpdate) error {
	names := map[string]string{
		"#st": "status",
	}
	values := map[string]types.AttributeValue{
		":st": &types.AttributeValueMemberS{Value: upd.Status.String()},
		":ua": &types.AttributeValueMemberS{Value: s.now().UTC().Format(time.RFC3339Nano)},
	}
	expr := "SET #st = :st, updated_at = :ua"
	if upd.MessageID != "" {
		expr += ", message_id = :mid"
		values[":mid"] = &types.AttributeValueMemberS{Value: upd.MessageID}
	}
	if upd.Error != "" {
		expr += ", #err = :err"
		names["#err"] = "error"
		values[":err"] = &types.AttributeValueMemberS{Value: upd.Error}
	}

	err := retries.Retry(
		ctx,
		retries.DefaultAttempts,
		retries.DefaultBaseDelay,
		func() error {
			_, err := s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
				TableName: aws.String(s.tableName),
				Key: map[string]types.AttributeValue{
					"object_key": &types.AttributeValueMemberS{Value: objectKey},
				},
				UpdateExpression:          aws.String(expr),
				ConditionExpression:       aws.String("attribute_exists(object_key)"),
				ExpressionAttributeNames:  names,
				ExpressionAttributeValues: values,
			})
			return err
		},
		retries.IsRetriableDbError,
	)

	var condErr *types.ConditionalCheckFailedException
	if errors.As(err, &condErr) {
		return apperror.ErrRecordNotFound
	}
	return err
}

func (s *DynamoDbUploadStoreImpl) Get(ctx context.Context, objectKey string) (*models.UploadRecord, error) {
	var rec models.UploadRecord
	found := false

	err := retries.Retry(
		ctx,
		retries.DefaultAttempts,
		retries.DefaultBaseDelay,
		func() error {
			out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
				TableName: aws.String(s.tableName),
				Key: map[string]types.AttributeValue{
					"object_key": &types.AttributeValueMemberS{Value: objectKey},
				},
			})
			if err != nil {
				return err
			}

			if out.Item == nil {
				return nil
			}

			found = true
			return attributevalue.UnmarshalMap(out.Item, &rec)
		},
		retries.IsRetriableDbError,
	)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, apperror.ErrRecordNotFound
	}

	return &rec, nil
}

// ListByEmail returns every upload of a user, newest first.
func (s *DynamoDbUploadStoreImpl) ListByEmail(ctx context.Context, email string) ([]models.UploadRecord, error) {
	var records []models.UploadRecord

	err := retries.Retry(
		ctx,
		retries.DefaultAttempts,
		retries.DefaultBaseDelay,
		func() error {
			records = records[:0]
			paginator := dynamodb.NewQueryPaginator(s.client, &dynamodb.QueryInput{
				TableName:              aws.String(s.tableName),
				IndexName:              aws.String(userEmailIndex),
				KeyConditionExpression: aws.String("user_email = :email"),
				ExpressionAttributeValues: map[string]types.AttributeValue{
					":email": &types.AttributeValueMemberS{Value: email},
				},
			})

			for paginator.HasMorePages() {
				page, err := paginator.NextPage(ctx)
				if err != nil {
					return err
				}

				var batch []models.UploadRecord
				if err := attributevalue.UnmarshalListOfMaps(page.Items, &batch); err != nil {
					return err
				}
				records = append(records, batch...)
			}
			return nil
		},
		retries.IsRetriableDbError,
	)
	if err != nil {
		return nil, err
	}

	sort.Slice(records, func(i, j int) bool {
		return records[i].CreatedAt.After(records[j].CreatedAt)
	})
	return records, nil
}
