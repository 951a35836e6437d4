package client

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/TrongNghianeee/Fraud-Creaditcard-Model-Detection-App/types"
	"github.com/TrongNghianeee/Fraud-Creaditcard-Model-Detection-App/utils"
)

type State int32

const (
	StateRunning State = iota
	StateStopped
)

const defaultBackoff = 500 * time.Millisecond

type ServiceClientConfig struct {
	Timeout        time.Duration
	Retries        int
	Backoff        time.Duration
	CircuitBreaker *types.CircuitBreakerConfig
}

// HTTPClient calls one upstream. Request bodies are JSON encoded; response
// bodies are returned raw together with the status code.
type HTTPClient struct {
	name           string
	logger         types.Logger
	metrics        types.MetricsManager
	client         *fasthttp.Client
	config         *ServiceClientConfig
	circuitBreaker *CircuitBreaker
	state          atomic.Value
}

func NewHTTPClient(logger types.Logger, metrics types.MetricsManager, serviceName string, config *ServiceClientConfig) *HTTPClient {
	if config.Backoff <= 0 {
		config.Backoff = defaultBackoff
	}

	httpClient := &fasthttp.Client{
		Name:                "fraud-api/" + serviceName,
		ReadTimeout:         config.Timeout,
		WriteTimeout:        config.Timeout,
		MaxIdleConnDuration: 90 * time.Second,
	}

	c := &HTTPClient{
		name:           serviceName,
		logger:         logger,
		metrics:        metrics,
		client:         httpClient,
		config:         config,
		circuitBreaker: NewCircuitBreaker(config.CircuitBreaker, logger, serviceName),
	}

	c.state.Store(StateRunning)

	return c
}

func (c *HTTPClient) Name() string {
	return c.name
}

func (c *HTTPClient) Breaker() *CircuitBreaker {
	return c.circuitBreaker
}

func (c *HTTPClient) Call(ctx context.Context, method, url string, data interface{}, opts *types.CallOptions) ([]byte, int, error) {
	if !c.IsRunning() {
		return nil, fasthttp.StatusServiceUnavailable, types.Errorf(types.ErrClientRequestFailed, "client %s is closed", c.name)
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(url)
	req.Header.SetMethod(method)
	req.Header.Set(fasthttp.HeaderAccept, "application/json")

	if data != nil {
		jsonData, err := utils.Marshal(data)
		if err != nil {
			return nil, fasthttp.StatusInternalServerError, types.WrapError(err, "failed to marshal request data")
		}
		req.SetBody(jsonData)
		req.Header.SetContentType("application/json")
	}

	timeout := c.config.Timeout
	retries := c.config.Retries

	if opts != nil {
		for key, value := range opts.Headers {
			req.Header.Set(key, value)
		}
		if opts.Timeout > 0 {
			timeout = opts.Timeout
		}
		if opts.Retry > 0 {
			retries = opts.Retry
		}
	}

	start := time.Now()
	body, status, err := c.executeWithRetries(ctx, req, resp, timeout, retries)

	c.recordMetrics(method, status, err, start)

	return body, status, err
}

func (c *HTTPClient) Close() {
	if !c.state.CompareAndSwap(StateRunning, StateStopped) {
		return
	}

	c.client.CloseIdleConnections()
	c.logger.Debug("HTTP client closed", zap.String("service", c.name))
}

func (c *HTTPClient) IsRunning() bool {
	return c.state.Load().(State) == StateRunning
}

func (c *HTTPClient) executeWithRetries(ctx context.Context, req *fasthttp.Request, resp *fasthttp.Response, timeout time.Duration, maxRetries int) ([]byte, int, error) {
	var lastErr error
	var statusCode int

	for attempt := 0; attempt <= maxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, fasthttp.StatusGatewayTimeout, types.Errorf(types.ErrClientTimeout, "%s: %v", c.name, err)
		}

		if !c.circuitBreaker.CanExecute() {
			return nil, fasthttp.StatusServiceUnavailable, types.Errorf(types.ErrCircuitBreakerOpen, "service %s", c.name)
		}

		deadline := time.Now().Add(timeout)
		if ctxDeadline, ok := ctx.Deadline(); ok && ctxDeadline.Before(deadline) {
			deadline = ctxDeadline
		}

		resp.Reset()
		err := c.client.DoDeadline(req, resp, deadline)
		statusCode = resp.StatusCode()

		if IsSuccessfulResponse(statusCode, err) {
			c.circuitBreaker.RecordSuccess()

			responseBody := make([]byte, len(resp.Body()))
			copy(responseBody, resp.Body())

			return responseBody, statusCode, nil
		}

		if IsCircuitBreakerFailure(statusCode, err) {
			c.circuitBreaker.RecordFailure()
		}

		lastErr = err
		if err == nil {
			lastErr = types.Errorf(types.ErrClientResponseInvalid, "HTTP %d: %s", statusCode, utils.Truncate(string(resp.Body()), 200))
		} else {
			statusCode = fasthttp.StatusBadGateway
		}

		if attempt == maxRetries || !IsRetryable(resp.StatusCode(), err) {
			break
		}

		backoff := time.Duration(attempt+1) * c.config.Backoff

		c.logger.Debug("Retrying request",
			zap.String("service", c.name),
			zap.Int("attempt", attempt+1),
			zap.Duration("backoff", backoff),
			zap.Error(lastErr))

		timer := time.NewTimer(backoff)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return nil, fasthttp.StatusGatewayTimeout, types.Errorf(types.ErrClientTimeout, "%s: %v", c.name, ctx.Err())
		}
	}

	return nil, statusCode, types.Errorf(types.ErrClientRequestFailed, "service %s: %v", c.name, lastErr)
}

func (c *HTTPClient) recordMetrics(method string, status int, err error, start time.Time) {
	if c.metrics == nil {
		return
	}

	result := "success"
	if err != nil {
		result = "error"
	}

	c.metrics.Counter("client_requests_total", map[string]string{
		"service": c.name,
		"method":  method,
		"result":  result,
	}).Inc()

	c.metrics.Histogram("client_request_duration_seconds", []float64{0.05, 0.1, 0.5, 1, 5, 30}, map[string]string{
		"service": c.name,
	}).ObserveDuration(start)

	if err != nil {
		c.logger.Debug("Upstream call failed",
			zap.String("service", c.name),
			zap.Int("status", status),
			zap.Error(err))
	}
}
