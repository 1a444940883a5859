package dynamodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/smithy-go"
	"go.opentelemetry.io/otel/trace"

	"github.com/nimburion/itemservice/pkg/observability/metrics"
	"github.com/nimburion/itemservice/pkg/observability/tracing"
	"github.com/nimburion/itemservice/pkg/store"
)

// ItemAPI is the subset of the DynamoDB client used by Table. *Adapter satisfies it.
type ItemAPI interface {
	PutItem(ctx context.Context, input *dynamodb.PutItemInput) (*dynamodb.PutItemOutput, error)
	GetItem(ctx context.Context, input *dynamodb.GetItemInput) (*dynamodb.GetItemOutput, error)
	TableName() string
}

// TableConfig controls how records are addressed.
type TableConfig struct {
	// KeyAttribute is the partition key name. Defaults to store.DefaultKeyAttribute.
	KeyAttribute string
	// ConsistentRead requests strongly consistent reads on Get.
	ConsistentRead bool
}

// Table stores records in one DynamoDB table keyed by a single string attribute.
type Table struct {
	api            ItemAPI
	name           string
	keyAttribute   string
	consistentRead bool
}

var _ store.Table = (*Table)(nil)

// NewTable binds a record table to api.
func NewTable(api ItemAPI, cfg TableConfig) *Table {
	if cfg.KeyAttribute == "" {
		cfg.KeyAttribute = store.DefaultKeyAttribute
	}
	return &Table{
		api:            api,
		name:           api.TableName(),
		keyAttribute:   cfg.KeyAttribute,
		consistentRead: cfg.ConsistentRead,
	}
}

// Put writes record as-is, replacing any record under the same key.
func (t *Table) Put(ctx context.Context, record store.Record) (err error) {
	key, keyErr := record.Key(t.keyAttribute)
	ctx, span := tracing.StartStoreSpan(ctx, tracing.StoreCall{
		Operation:    tracing.StoreOperationPutItem,
		Table:        t.name,
		KeyAttribute: t.keyAttribute,
		Key:          key,
	})
	start := time.Now()
	defer func() { finish(span, tracing.StoreOperationPutItem, start, err) }()

	if keyErr != nil {
		return keyErr
	}
	item, err := marshalRecord(record)
	if err != nil {
		return &store.ValidationError{Message: err.Error()}
	}

	_, err = t.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(t.name),
		Item:      item,
	})
	if err != nil {
		return classify(tracing.StoreOperationPutItem, err)
	}
	return nil
}

// Get returns the record stored under id, or store.ErrNotFound.
func (t *Table) Get(ctx context.Context, id string) (record store.Record, err error) {
	ctx, span := tracing.StartStoreSpan(ctx, tracing.StoreCall{
		Operation:      tracing.StoreOperationGetItem,
		Table:          t.name,
		KeyAttribute:   t.keyAttribute,
		Key:            id,
		ConsistentRead: t.consistentRead,
	})
	start := time.Now()
	defer func() { finish(span, tracing.StoreOperationGetItem, start, err) }()

	key, err := attributevalue.MarshalMap(map[string]string{t.keyAttribute: id})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal key: %w", err)
	}

	out, err := t.api.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(t.name),
		Key:            key,
		ConsistentRead: aws.Bool(t.consistentRead),
	})
	if err != nil {
		return nil, classify(tracing.StoreOperationGetItem, err)
	}
	if len(out.Item) == 0 {
		return nil, store.ErrNotFound
	}

	record, err = unmarshalRecord(out.Item)
	if err != nil {
		return nil, fmt.Errorf("failed to decode item: %w", err)
	}
	return record, nil
}

// classify turns any error response from the DynamoDB API into a *store.ClientError.
// Transport failures and timeouts are returned wrapped but unclassified.
func classify(operation tracing.StoreOperation, err error) error {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return &store.ClientError{
			Operation: string(operation),
			Code:      apiErr.ErrorCode(),
			Message:   apiErr.ErrorMessage(),
			Err:       err,
		}
	}
	return fmt.Errorf("dynamodb %s failed: %w", operation, err)
}

// finish ends the span and records the call. A missing item is a normal
// answer, so it does not mark the span failed.
func finish(span trace.Span, operation tracing.StoreOperation, start time.Time, err error) {
	outcome, spanErr := metrics.OutcomeError, err
	switch {
	case err == nil:
		outcome = metrics.OutcomeSuccess
	case errors.Is(err, store.ErrNotFound):
		outcome, spanErr = metrics.OutcomeNotFound, nil
	case IsThrottlingError(err):
		outcome = metrics.OutcomeThrottled
	case store.IsClientError(err):
		outcome = metrics.OutcomeClientError
	case store.IsValidationError(err):
		outcome = metrics.OutcomeInvalid
	}
	tracing.EndSpan(span, spanErr)
	metrics.RecordStoreOperation(string(operation), outcome, time.Since(start))
}
