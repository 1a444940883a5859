package dynamodb

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/nimburion/itemservice/pkg/observability/logger"
)

const (
	defaultOperationTimeout = 5 * time.Second
	healthCheckTimeout      = 2 * time.Second
)

// ErrClosed is returned by every call made after Close.
var ErrClosed = errors.New("dynamodb adapter is closed")

// Config locates the table and how to reach it. Empty credentials use the
// AWS default chain. Endpoint points the client at DynamoDB Local or a test
// double.
type Config struct {
	Region           string
	Endpoint         string
	AccessKeyID      string
	SecretAccessKey  string
	SessionToken     string
	Table            string
	OperationTimeout time.Duration
	// MaxAttempts overrides the SDK retryer attempt count when positive.
	MaxAttempts int
}

func (c Config) validate() error {
	var errs []error
	if c.Region == "" {
		errs = append(errs, errors.New("aws region is required"))
	}
	if c.Table == "" {
		errs = append(errs, errors.New("dynamodb table is required"))
	}
	return errors.Join(errs...)
}

// Adapter is a DynamoDB client bound to one existing table. Calls without a
// deadline get the operation timeout.
type Adapter struct {
	client  *dynamodb.Client
	log     logger.Logger
	table   string
	timeout time.Duration
	closed  atomic.Bool
}

// NewAdapter builds the client and describes the table once. A failed
// describe is logged as a warning and does not fail construction: the table
// may come up later, or the credentials may only allow item reads and writes.
// Readiness keeps probing through HealthCheck. The table is never created.
func NewAdapter(ctx context.Context, cfg Config, log logger.Logger) (*Adapter, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if cfg.OperationTimeout <= 0 {
		cfg.OperationTimeout = defaultOperationTimeout
	}

	client, err := newClient(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a := &Adapter{client: client, log: log, table: cfg.Table, timeout: cfg.OperationTimeout}
	if err := a.Ping(ctx); err != nil {
		log.Warn("DynamoDB table not reachable at startup", "region", cfg.Region, "table", cfg.Table, "error", err)
	}

	log.Info("DynamoDB adapter initialized", "region", cfg.Region, "endpoint", cfg.Endpoint, "table", cfg.Table)
	return a, nil
}

func newClient(ctx context.Context, cfg Config) (*dynamodb.Client, error) {
	load := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKeyID != "" || cfg.SecretAccessKey != "" {
		static := credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, cfg.SessionToken)
		load = append(load, awsconfig.WithCredentialsProvider(static))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, load...)
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config: %w", err)
	}

	return dynamodb.NewFromConfig(awsCfg, func(o *dynamodb.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		if cfg.MaxAttempts > 0 {
			o.RetryMaxAttempts = cfg.MaxAttempts
		}
	}), nil
}

// TableName returns the table every call defaults to.
func (a *Adapter) TableName() string {
	return a.table
}

// Ping describes the table. A table being deleted counts as unreachable.
func (a *Adapter) Ping(ctx context.Context) error {
	out, err := call(ctx, a, a.client.DescribeTable, &dynamodb.DescribeTableInput{TableName: aws.String(a.table)})
	if err != nil {
		if errors.Is(err, ErrClosed) {
			return err
		}
		return fmt.Errorf("dynamodb ping failed: %w", err)
	}
	if out.Table != nil && out.Table.TableStatus == types.TableStatusDeleting {
		return fmt.Errorf("dynamodb ping failed: table %s is being deleted", a.table)
	}
	return nil
}

// HealthCheck is Ping capped at two seconds, for the readiness registry.
func (a *Adapter) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
	defer cancel()
	if err := a.Ping(ctx); err != nil {
		a.log.Error("DynamoDB health check failed", "table", a.table, "error", err)
		return fmt.Errorf("dynamodb health check failed: %w", err)
	}
	return nil
}

// Close marks the adapter closed. The SDK client holds no connections that
// need releasing, so later calls just fail with ErrClosed.
func (a *Adapter) Close() error {
	if a.closed.CompareAndSwap(false, true) && a.log != nil {
		a.log.Info("DynamoDB adapter closed", "table", a.table)
	}
	return nil
}

// PutItem fills in the table name when the input leaves it nil.
func (a *Adapter) PutItem(ctx context.Context, in *dynamodb.PutItemInput) (*dynamodb.PutItemOutput, error) {
	if in != nil && in.TableName == nil {
		in.TableName = aws.String(a.table)
	}
	return call(ctx, a, a.client.PutItem, in)
}

// GetItem fills in the table name when the input leaves it nil.
func (a *Adapter) GetItem(ctx context.Context, in *dynamodb.GetItemInput) (*dynamodb.GetItemOutput, error) {
	if in != nil && in.TableName == nil {
		in.TableName = aws.String(a.table)
	}
	return call(ctx, a, a.client.GetItem, in)
}

// call runs one client operation unless the adapter is closed.
func call[In, Out any](ctx context.Context, a *Adapter, op func(context.Context, In, ...func(*dynamodb.Options)) (Out, error), in In) (Out, error) {
	if a.closed.Load() {
		var zero Out
		return zero, ErrClosed
	}
	ctx, cancel := a.operationContext(ctx)
	defer cancel()
	return op(ctx, in)
}

// operationContext applies the adapter timeout unless ctx already has a deadline.
func (a *Adapter) operationContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok || a.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, a.timeout)
}

// IsThrottlingError reports whether the table rejected a call for exceeding
// its provisioned throughput. Such calls are still client errors; the store
// metrics count them as throttled.
func IsThrottlingError(err error) bool {
	var pte *types.ProvisionedThroughputExceededException
	return errors.As(err, &pte)
}
