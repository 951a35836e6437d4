package api

import (
	"context"
	"time"

	"github.com/tidwall/gjson"
	"github.com/valyala/fasthttp"

	"github.com/TrongNghianeee/Fraud-Creaditcard-Model-Detection-App/fraud"
	"github.com/TrongNghianeee/Fraud-Creaditcard-Model-Detection-App/llm"
	"github.com/TrongNghianeee/Fraud-Creaditcard-Model-Detection-App/middleware"
	"github.com/TrongNghianeee/Fraud-Creaditcard-Model-Detection-App/ocr"
	"github.com/TrongNghianeee/Fraud-Creaditcard-Model-Detection-App/types"
)

const (
	predictTimeout = 60 * time.Second
	aiTimeout      = 90 * time.Second
	ocrTimeout     = 120 * time.Second
)

// Handlers serves the public API. History may be nil, in which case the
// history routes are not registered.
type Handlers struct {
	detector *fraud.Detector
	ai       *llm.Service
	ocr      *ocr.Service
	history  types.HistoryStore
	logger   types.Logger
}

func NewHandlers(detector *fraud.Detector, ai *llm.Service, ocrService *ocr.Service, history types.HistoryStore, logger types.Logger) *Handlers {
	return &Handlers{
		detector: detector,
		ai:       ai,
		ocr:      ocrService,
		history:  history,
		logger:   logger,
	}
}

func (h *Handlers) Register(router types.HTTPRouter) {
	router.Group("/api/model").WithTimeout(predictTimeout).
		POST("/predict-fraud", h.PredictFraud)

	openai := router.Group("/api/openai").
		WithMiddlewares(middleware.NameRateLimit).
		WithTimeout(aiTimeout)
	openai.POST("/parse-transaction", h.ParseTransaction)
	openai.POST("/analyze-transaction", h.AnalyzeTransaction)
	openai.POST("/explain-prediction", h.ExplainPrediction)
	openai.POST("/chat", h.Chat)
	openai.POST("/generate-report", h.GenerateReport)

	preprocess := router.Group("/api/preprocess").
		WithMiddlewares(middleware.NameRateLimit).
		WithTimeout(ocrTimeout)
	preprocess.POST("/extract-text", h.ExtractText)
	preprocess.POST("/extract-and-parse", h.ExtractAndParse)

	if h.history != nil {
		history := router.Group("/api/history")
		history.GET("", h.ListHistory)
		history.GET("/{id}", h.GetHistory)
		history.DELETE("/{id}", h.DeleteHistory)
	}
}

// requestContext bounds a handler by its route timeout. The fasthttp ctx
// itself is the parent so server shutdown also cancels the work.
func requestContext(ctx *fasthttp.RequestCtx) (context.Context, context.CancelFunc) {
	if timeout, ok := ctx.UserValue(types.RouteTimeoutKey).(time.Duration); ok && timeout > 0 {
		return context.WithTimeout(ctx, timeout)
	}
	return context.WithCancel(ctx)
}

// jsonField reads a top-level field from a JSON object body. It reports
// false for a missing field, a JSON null or a body that is not an object.
func jsonField(body []byte, name string) (gjson.Result, bool) {
	if len(body) == 0 || !gjson.ValidBytes(body) {
		return gjson.Result{}, false
	}

	root := gjson.ParseBytes(body)
	if !root.IsObject() {
		return gjson.Result{}, false
	}

	field := root.Get(name)
	if !field.Exists() || field.Type == gjson.Null {
		return gjson.Result{}, false
	}
	return field, true
}

func objectField(body []byte, name string) map[string]interface{} {
	field, ok := jsonField(body, name)
	if !ok || !field.IsObject() {
		return nil
	}
	object, _ := field.Value().(map[string]interface{})
	return object
}
