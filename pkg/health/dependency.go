package health

import (
	"context"
	"time"
)

const defaultCheckTimeout = 5 * time.Second

// Checkable is a backing service client that can test its connection, such
// as the DynamoDB adapter or the Redis rate limiter.
type Checkable interface {
	HealthCheck(ctx context.Context) error
}

// DependencyChecker reports a Checkable unhealthy when it fails or does not
// answer within the timeout.
type DependencyChecker struct {
	name     string
	target   Checkable
	timeout  time.Duration
	metadata map[string]any
}

// NewDependencyChecker uses a five second timeout when timeout is not positive.
func NewDependencyChecker(name string, target Checkable, timeout time.Duration) *DependencyChecker {
	if timeout <= 0 {
		timeout = defaultCheckTimeout
	}
	return &DependencyChecker{name: name, target: target, timeout: timeout}
}

// WithMetadata attaches fixed details, such as the table name, to every result.
func (c *DependencyChecker) WithMetadata(metadata map[string]any) *DependencyChecker {
	c.metadata = metadata
	return c
}

func (c *DependencyChecker) Name() string {
	return c.name
}

func (c *DependencyChecker) Check(ctx context.Context) CheckResult {
	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	err := c.target.HealthCheck(ctx)

	res := CheckResult{
		Name:      c.name,
		Status:    StatusHealthy,
		Message:   "OK",
		Timestamp: time.Now(),
		Duration:  time.Since(start),
		Metadata:  c.metadata,
	}
	if err != nil {
		res.Status, res.Message, res.Error = StatusUnhealthy, "", err.Error()
	}
	return res
}
