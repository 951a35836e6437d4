package middleware

import (
	"bytes"
	"compress/flate"
	"compress/gzip"
	"io"
	"strings"
	"sync"

	"github.com/andybalholm/brotli"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/TrongNghianeee/Fraud-Creaditcard-Model-Detection-App/types"
)

const (
	AlgorithmBrotli  = "br"
	AlgorithmGzip    = "gzip"
	AlgorithmDeflate = "deflate"
)

type CompressionMiddleware struct {
	logger            types.Logger
	metrics           types.MetricsManager
	compressionConfig *CompressionConfig
	weight            int
	gzipPool          sync.Pool
	deflatePool       sync.Pool
	brotliPool        sync.Pool
}

type CompressionConfig struct {
	MinSize    int      `json:"min_size"`
	Level      int      `json:"level"`
	Algorithms []string `json:"algorithms"`
}

func NewCompressionMiddleware(item *types.MiddlewareItemConfig, logger types.Logger, metrics types.MetricsManager) *CompressionMiddleware {
	compressionConfig := &CompressionConfig{
		MinSize:    1024,
		Level:      6,
		Algorithms: []string{AlgorithmBrotli, AlgorithmGzip, AlgorithmDeflate},
	}
	decodeParams(item, compressionConfig, logger, NameCompression)
	if compressionConfig.Level < 1 || compressionConfig.Level > 9 {
		compressionConfig.Level = 6
	}

	c := &CompressionMiddleware{
		logger:            logger,
		metrics:           metrics,
		compressionConfig: compressionConfig,
		weight:            weightOf(item, 70),
	}

	level := compressionConfig.Level
	c.gzipPool.New = func() interface{} {
		writer, _ := gzip.NewWriterLevel(io.Discard, level)
		return writer
	}
	c.deflatePool.New = func() interface{} {
		writer, _ := flate.NewWriter(io.Discard, level)
		return writer
	}
	c.brotliPool.New = func() interface{} {
		return brotli.NewWriterLevel(io.Discard, level)
	}

	return c
}

func (c *CompressionMiddleware) Name() string { return NameCompression }
func (c *CompressionMiddleware) Weight() int  { return c.weight }

func (c *CompressionMiddleware) Handle(ctx *fasthttp.RequestCtx, next func(*fasthttp.RequestCtx), _ *types.RouteConfig) {
	next(ctx)

	algorithm := c.negotiate(string(ctx.Request.Header.Peek(fasthttp.HeaderAcceptEncoding)))
	if algorithm == "" {
		return
	}

	body := ctx.Response.Body()
	if len(body) < c.compressionConfig.MinSize ||
		len(ctx.Response.Header.Peek(fasthttp.HeaderContentEncoding)) > 0 ||
		!compressible(string(ctx.Response.Header.ContentType())) {
		return
	}

	compressed, err := c.compress(algorithm, body)
	if err != nil {
		c.logger.Error("Failed to compress response", zap.String("algorithm", algorithm), zap.Error(err))
		return
	}
	if len(compressed) >= len(body) {
		return
	}

	c.metrics.Counter("http_compressed_responses_total", map[string]string{"algorithm": algorithm}).Inc()

	ctx.Response.SetBodyRaw(compressed)
	ctx.Response.Header.Set(fasthttp.HeaderContentEncoding, algorithm)
	ctx.Response.Header.Add(fasthttp.HeaderVary, fasthttp.HeaderAcceptEncoding)
}

// negotiate picks the first configured algorithm the client accepts.
func (c *CompressionMiddleware) negotiate(acceptEncoding string) string {
	if acceptEncoding == "" {
		return ""
	}

	accepted := make(map[string]bool)
	for _, part := range strings.Split(acceptEncoding, ",") {
		name, params, _ := strings.Cut(strings.TrimSpace(part), ";")
		if strings.ReplaceAll(strings.TrimSpace(params), " ", "") == "q=0" {
			continue
		}
		accepted[strings.ToLower(strings.TrimSpace(name))] = true
	}

	for _, algorithm := range c.compressionConfig.Algorithms {
		if accepted[algorithm] || accepted["*"] {
			return algorithm
		}
	}

	return ""
}

func (c *CompressionMiddleware) compress(algorithm string, data []byte) ([]byte, error) {
	var buf bytes.Buffer
	buf.Grow(len(data) / 2)

	switch algorithm {
	case AlgorithmGzip:
		writer := c.gzipPool.Get().(*gzip.Writer)
		defer c.gzipPool.Put(writer)
		writer.Reset(&buf)
		return finish(writer, data, &buf)
	case AlgorithmDeflate:
		writer := c.deflatePool.Get().(*flate.Writer)
		defer c.deflatePool.Put(writer)
		writer.Reset(&buf)
		return finish(writer, data, &buf)
	case AlgorithmBrotli:
		writer := c.brotliPool.Get().(*brotli.Writer)
		defer c.brotliPool.Put(writer)
		writer.Reset(&buf)
		return finish(writer, data, &buf)
	default:
		return nil, types.Errorf(types.ErrInvalidParameter, "compression algorithm %q", algorithm)
	}
}

func finish(writer io.WriteCloser, data []byte, buf *bytes.Buffer) ([]byte, error) {
	if _, err := writer.Write(data); err != nil {
		return nil, err
	}
	if err := writer.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func compressible(contentType string) bool {
	contentType = strings.ToLower(contentType)
	for _, prefix := range []string{"application/json", "text/", "application/xml", "application/javascript"} {
		if strings.HasPrefix(contentType, prefix) {
			return true
		}
	}
	return false
}
