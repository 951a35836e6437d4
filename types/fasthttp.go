package types

import (
	"net/http"

	"github.com/valyala/fasthttp"
)

type FastHTTPHandler func(ctx *fasthttp.RequestCtx)

// FastResponseWriter lets net/http handlers such as promhttp write into a
// fasthttp response.
type FastResponseWriter struct {
	ctx    *fasthttp.RequestCtx
	header http.Header
}

func NewFastResponseWriter(ctx *fasthttp.RequestCtx) *FastResponseWriter {
	return &FastResponseWriter{
		ctx:    ctx,
		header: make(http.Header),
	}
}

func (w *FastResponseWriter) Header() http.Header {
	return w.header
}

func (w *FastResponseWriter) Write(data []byte) (int, error) {
	w.flushHeader()
	return w.ctx.Write(data)
}

func (w *FastResponseWriter) WriteHeader(statusCode int) {
	w.flushHeader()
	w.ctx.SetStatusCode(statusCode)
}

func (w *FastResponseWriter) flushHeader() {
	for key, values := range w.header {
		for _, value := range values {
			w.ctx.Response.Header.Set(key, value)
		}
	}
	w.header = make(http.Header)
}
