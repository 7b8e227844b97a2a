package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"

	appconfig "salesassistant/config"
	"salesassistant/models"
)

// Archiver mirrors committed session output to durable storage. It is write
// only from the session's point of view: nothing is ever loaded back into a
// live session.
type Archiver interface {
	ArchiveTurn(ctx context.Context, sessionID SessionID, user, assistant models.Message) error
	ArchiveInsight(ctx context.Context, sessionID SessionID, insight models.IndexedInsight) error
}

type NopArchiver struct{}

func (NopArchiver) ArchiveTurn(context.Context, SessionID, models.Message, models.Message) error {
	return nil
}

func (NopArchiver) ArchiveInsight(context.Context, SessionID, models.IndexedInsight) error {
	return nil
}

const (
	archiveKindMessage = "message"
	archiveKindInsight = "insight"

	// sortable, fixed width
	archiveTimeLayout = "2006-01-02T15:04:05.000000000Z"
)

// ArchivedItem is one row of the archive table.
type ArchivedItem struct {
	SessionID string
	SK        string
	Kind      string
	Timestamp time.Time

	Role    string
	Content string

	Index            int
	ProductName      string
	CompanyURL       string
	Category         string
	ValueProposition string
}

// NewArchiver builds the archiver selected by cfg.Backend.
func NewArchiver(ctx context.Context, cfg appconfig.ArchiveConfig) (Archiver, error) {
	switch cfg.Backend {
	case "", "none":
		return NopArchiver{}, nil
	case "dynamodb":
		db, err := NewDynamoDBClient(ctx, cfg.Region, cfg.Endpoint)
		if err != nil {
			return nil, err
		}
		return NewDynamoArchiver(ctx, db, cfg.Table)
	}
	return nil, fmt.Errorf("unknown archive backend %q", cfg.Backend)
}

type DynamoArchiver struct {
	db    *dynamodb.Client
	table string
}

// NewDynamoDBClient builds a client for region. A non-empty endpoint points at
// DynamoDB Local with dummy static credentials.
func NewDynamoDBClient(ctx context.Context, region, endpoint string) (*dynamodb.Client, error) {
	opts := []func(*config.LoadOptions) error{
		config.WithRegion(region),
	}

	if endpoint != "" {
		customResolver := aws.EndpointResolverWithOptionsFunc(func(service, region string, options ...interface{}) (aws.Endpoint, error) {
			return aws.Endpoint{
				URL: endpoint,
			}, nil
		})
		opts = append(opts,
			config.WithEndpointResolverWithOptions(customResolver),
			config.WithCredentialsProvider(credentials.StaticCredentialsProvider{
				Value: aws.Credentials{
					AccessKeyID: "dummy", SecretAccessKey: "dummy", SessionToken: "dummy",
				},
			}),
		)
	}

	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return dynamodb.NewFromConfig(cfg), nil
}

// NewDynamoArchiver creates the table on first use.
func NewDynamoArchiver(ctx context.Context, db *dynamodb.Client, table string) (*DynamoArchiver, error) {
	a := &DynamoArchiver{db: db, table: table}
	if err := a.ensureTableExists(ctx); err != nil {
		return nil, err
	}
	return a, nil
}

func (a *DynamoArchiver) ensureTableExists(ctx context.Context) error {
	_, err := a.db.CreateTable(ctx, &dynamodb.CreateTableInput{
		TableName: aws.String(a.table),
		AttributeDefinitions: []types.AttributeDefinition{
			{
				AttributeName: aws.String("SessionID"),
				AttributeType: types.ScalarAttributeTypeS,
			},
			{
				AttributeName: aws.String("SK"),
				AttributeType: types.ScalarAttributeTypeS,
			},
		},
		KeySchema: []types.KeySchemaElement{
			{
				AttributeName: aws.String("SessionID"),
				KeyType:       types.KeyTypeHash,
			},
			{
				AttributeName: aws.String("SK"),
				KeyType:       types.KeyTypeRange,
			},
		},
		BillingMode: types.BillingModePayPerRequest,
	})
	var inUse *types.ResourceInUseException
	if err != nil && !errors.As(err, &inUse) {
		return fmt.Errorf("create table %s: %w", a.table, err)
	}
	return nil
}

func (a *DynamoArchiver) ArchiveTurn(ctx context.Context, sessionID SessionID, user, assistant models.Message) error {
	for pos, msg := range []models.Message{user, assistant} {
		ts := msg.CreatedAt.UTC().Format(archiveTimeLayout)
		_, err := a.db.PutItem(ctx, &dynamodb.PutItemInput{
			TableName: aws.String(a.table),
			Item: map[string]types.AttributeValue{
				"SessionID": &types.AttributeValueMemberS{Value: string(sessionID)},
				"SK":        &types.AttributeValueMemberS{Value: messageSortKey(ts, pos)},
				"Kind":      &types.AttributeValueMemberS{Value: archiveKindMessage},
				"Role":      &types.AttributeValueMemberS{Value: string(msg.Role)},
				"Content":   &types.AttributeValueMemberS{Value: msg.Content},
				"Timestamp": &types.AttributeValueMemberS{Value: ts},
			},
		})
		if err != nil {
			return fmt.Errorf("archive %s message: %w", msg.Role, err)
		}
	}
	return nil
}

// messageSortKey orders messages by time, then by position in the turn, so
// a user message sorts before its reply even when both share a timestamp.
func messageSortKey(ts string, pos int) string {
	return fmt.Sprintf("message#%s#%d#%s", ts, pos, uuid.New().String())
}

func (a *DynamoArchiver) ArchiveInsight(ctx context.Context, sessionID SessionID, insight models.IndexedInsight) error {
	_, err := a.db.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(a.table),
		Item: map[string]types.AttributeValue{
			"SessionID":        &types.AttributeValueMemberS{Value: string(sessionID)},
			"SK":               &types.AttributeValueMemberS{Value: fmt.Sprintf("insight#%06d", insight.Index)},
			"Kind":             &types.AttributeValueMemberS{Value: archiveKindInsight},
			"Index":            &types.AttributeValueMemberN{Value: strconv.Itoa(insight.Index)},
			"ProductName":      &types.AttributeValueMemberS{Value: insight.ProductName},
			"CompanyURL":       &types.AttributeValueMemberS{Value: insight.CompanyURL},
			"Category":         &types.AttributeValueMemberS{Value: insight.Category},
			"ValueProposition": &types.AttributeValueMemberS{Value: insight.ValueProposition},
			"Content":          &types.AttributeValueMemberS{Value: insight.Text},
			"Timestamp":        &types.AttributeValueMemberS{Value: insight.CreatedAt.UTC().Format(archiveTimeLayout)},
		},
	})
	if err != nil {
		return fmt.Errorf("archive insight %d: %w", insight.Index, err)
	}
	return nil
}

// ListSession returns every archived row for the session, insights first and
// then messages in time order.
func (a *DynamoArchiver) ListSession(ctx context.Context, sessionID SessionID) ([]ArchivedItem, error) {
	input := &dynamodb.QueryInput{
		TableName:              aws.String(a.table),
		KeyConditionExpression: aws.String("SessionID = :sid"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":sid": &types.AttributeValueMemberS{Value: string(sessionID)},
		},
		ScanIndexForward: aws.Bool(true),
	}

	items := make([]ArchivedItem, 0)
	for {
		result, err := a.db.Query(ctx, input)
		if err != nil {
			return nil, fmt.Errorf("query archive: %w", err)
		}
		for _, item := range result.Items {
			items = append(items, decodeArchivedItem(item))
		}
		if len(result.LastEvaluatedKey) == 0 {
			break
		}
		input.ExclusiveStartKey = result.LastEvaluatedKey
	}
	return items, nil
}

func decodeArchivedItem(item map[string]types.AttributeValue) ArchivedItem {
	str := func(key string) string {
		if v, ok := item[key].(*types.AttributeValueMemberS); ok {
			return v.Value
		}
		return ""
	}

	out := ArchivedItem{
		SessionID:        str("SessionID"),
		SK:               str("SK"),
		Kind:             str("Kind"),
		Role:             str("Role"),
		Content:          str("Content"),
		ProductName:      str("ProductName"),
		CompanyURL:       str("CompanyURL"),
		Category:         str("Category"),
		ValueProposition: str("ValueProposition"),
	}
	out.Timestamp, _ = time.Parse(archiveTimeLayout, str("Timestamp"))
	if n, ok := item["Index"].(*types.AttributeValueMemberN); ok {
		out.Index, _ = strconv.Atoi(n.Value)
	}
	return out
}
