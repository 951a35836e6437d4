package types

import (
	"context"
	"time"
)

type HTTPClient interface {
	Call(ctx context.Context, method, url string, data interface{}, opts *CallOptions) ([]byte, int, error)
}

type CallOptions struct {
	Timeout time.Duration
	Retry   int
	Headers map[string]string
}
