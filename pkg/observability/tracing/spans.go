// Package tracing configures the OpenTelemetry SDK and builds the client spans
// around item table calls.
package tracing

import (
	"context"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"
	"go.opentelemetry.io/otel/trace"
)

const storeTracer = "github.com/nimburion/itemservice/pkg/store/dynamodb"

// StoreOperation is the DynamoDB API action a span covers.
type StoreOperation string

const (
	StoreOperationGetItem       StoreOperation = "GetItem"
	StoreOperationPutItem       StoreOperation = "PutItem"
	StoreOperationDescribeTable StoreOperation = "DescribeTable"
)

// StoreCall describes one table request. Empty fields are left off the span.
type StoreCall struct {
	Operation    StoreOperation
	Table        string
	KeyAttribute string
	Key          string
	// ConsistentRead is recorded for GetItem only.
	ConsistentRead bool
}

// SpanName is "DynamoDB <operation> [<table>]".
func (c StoreCall) SpanName() string {
	return strings.TrimSpace("DynamoDB " + string(c.Operation) + " " + c.Table)
}

func (c StoreCall) attributes() []attribute.KeyValue {
	op := string(c.Operation)
	attrs := []attribute.KeyValue{
		semconv.DBSystemDynamoDB,
		semconv.DBOperationKey.String(op),
		semconv.RPCSystemKey.String("aws-api"),
		semconv.RPCServiceKey.String("DynamoDB"),
		semconv.RPCMethodKey.String(op),
	}
	if c.Table != "" {
		attrs = append(attrs, semconv.AWSDynamoDBTableNamesKey.StringSlice([]string{c.Table}))
	}
	if c.KeyAttribute != "" {
		attrs = append(attrs, attribute.String("item.key_attribute", c.KeyAttribute), attribute.String("item.key", c.Key))
	}
	if c.Operation == StoreOperationGetItem {
		attrs = append(attrs, semconv.AWSDynamoDBConsistentReadKey.Bool(c.ConsistentRead))
	}
	return attrs
}

// StartStoreSpan opens a client span for call under the request span in ctx.
func StartStoreSpan(ctx context.Context, call StoreCall) (context.Context, trace.Span) {
	return otel.Tracer(storeTracer).Start(ctx, call.SpanName(),
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(call.attributes()...),
	)
}

// EndSpan marks span failed with err, or OK when err is nil, and ends it.
func EndSpan(span trace.Span, err error) {
	defer span.End()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return
	}
	span.SetStatus(codes.Ok, "")
}
