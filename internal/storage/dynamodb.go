package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/dynamodb"
	"github.com/aws/aws-sdk-go/service/dynamodb/dynamodbattribute"
	"github.com/aws/aws-sdk-go/service/dynamodb/dynamodbiface"

	"github.com/cyderes/facebook-auto-poster/internal/config"
	"github.com/cyderes/facebook-auto-poster/internal/models"
)

// DynamoDBStorage implements Storage interface using AWS DynamoDB
type DynamoDBStorage struct {
	client    dynamodbiface.DynamoDBAPI
	tableName string
}

type batchItem struct {
	ID          string    `dynamodbav:"id"`
	Identifiers []string  `dynamodbav:"identifiers"`
	UpdatedAt   time.Time `dynamodbav:"updated_at"`
}

// NewDynamoDBStorage creates a new DynamoDB storage instance
func NewDynamoDBStorage(cfg config.StorageConfig) (*DynamoDBStorage, error) {
	awsConfig := &aws.Config{
		Region: aws.String(cfg.Region),
	}

	// For local testing with DynamoDB Local
	if cfg.Endpoint != "" {
		awsConfig.Endpoint = aws.String(cfg.Endpoint)
	}

	sess, err := session.NewSession(awsConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS session: %w", err)
	}

	storage := newDynamoDBStorage(dynamodb.New(sess), cfg.TableName)

	// Create table if it doesn't exist (for local testing)
	if err := storage.ensureTable(); err != nil {
		return nil, fmt.Errorf("failed to ensure table exists: %w", err)
	}

	return storage, nil
}

func newDynamoDBStorage(client dynamodbiface.DynamoDBAPI, tableName string) *DynamoDBStorage {
	return &DynamoDBStorage{
		client:    client,
		tableName: tableName,
	}
}

// ensureTable creates the DynamoDB table if it doesn't exist
func (d *DynamoDBStorage) ensureTable() error {
	_, err := d.client.DescribeTable(&dynamodb.DescribeTableInput{
		TableName: aws.String(d.tableName),
	})
	if err == nil {
		return nil
	}

	input := &dynamodb.CreateTableInput{
		TableName: aws.String(d.tableName),
		KeySchema: []*dynamodb.KeySchemaElement{
			{
				AttributeName: aws.String("id"),
				KeyType:       aws.String("HASH"),
			},
		},
		AttributeDefinitions: []*dynamodb.AttributeDefinition{
			{
				AttributeName: aws.String("id"),
				AttributeType: aws.String("S"),
			},
		},
		BillingMode: aws.String("PAY_PER_REQUEST"),
	}

	if _, err := d.client.CreateTable(input); err != nil {
		return fmt.Errorf("failed to create table: %w", err)
	}

	return d.client.WaitUntilTableExists(&dynamodb.DescribeTableInput{
		TableName: aws.String(d.tableName),
	})
}

// LoadLastBatch reads the last_batch item
func (d *DynamoDBStorage) LoadLastBatch(ctx context.Context) (models.PostedBatch, error) {
	result, err := d.client.GetItemWithContext(ctx, d.getInput(lastBatchKey))
	if err != nil {
		return models.PostedBatch{}, persistenceError("get last batch", err)
	}
	if result.Item == nil {
		return models.PostedBatch{}, nil
	}

	var item batchItem
	if err := dynamodbattribute.UnmarshalMap(result.Item, &item); err != nil {
		return models.PostedBatch{}, persistenceError("unmarshal last batch", err)
	}

	return models.NewPostedBatch(item.Identifiers...), nil
}

// SaveLastBatch overwrites the last_batch item
func (d *DynamoDBStorage) SaveLastBatch(ctx context.Context, batch models.PostedBatch) error {
	item, err := dynamodbattribute.MarshalMap(batchItem{
		ID:          lastBatchKey,
		Identifiers: batch.IDs(),
		UpdatedAt:   time.Now().UTC(),
	})
	if err != nil {
		return persistenceError("marshal last batch", err)
	}

	_, err = d.client.PutItemWithContext(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(d.tableName),
		Item:      item,
	})
	if err != nil {
		return persistenceError("store last batch", err)
	}
	return nil
}

// UpdateRunStatus updates the run status item
func (d *DynamoDBStorage) UpdateRunStatus(ctx context.Context, status models.RunStatus) error {
	item, err := dynamodbattribute.MarshalMap(status)
	if err != nil {
		return persistenceError("marshal run status", err)
	}

	// Add a fixed key for the status record
	item["id"] = &dynamodb.AttributeValue{S: aws.String(runStatusKey)}

	_, err = d.client.PutItemWithContext(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(d.tableName),
		Item:      item,
	})
	if err != nil {
		return persistenceError("store run status", err)
	}
	return nil
}

// GetRunStatus retrieves the current run status
func (d *DynamoDBStorage) GetRunStatus(ctx context.Context) (*models.RunStatus, error) {
	result, err := d.client.GetItemWithContext(ctx, d.getInput(runStatusKey))
	if err != nil {
		return nil, persistenceError("get run status", err)
	}
	if result.Item == nil {
		return neverRunStatus(), nil
	}

	var status models.RunStatus
	if err := dynamodbattribute.UnmarshalMap(result.Item, &status); err != nil {
		return nil, persistenceError("unmarshal run status", err)
	}

	return &status, nil
}

// Close closes the DynamoDB connection
func (d *DynamoDBStorage) Close() error {
	// DynamoDB client doesn't need explicit closing
	return nil
}

func (d *DynamoDBStorage) getInput(key string) *dynamodb.GetItemInput {
	return &dynamodb.GetItemInput{
		TableName: aws.String(d.tableName),
		Key: map[string]*dynamodb.AttributeValue{
			"id": {
				S: aws.String(key),
			},
		},
	}
}
