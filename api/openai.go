package api

import (
	"strings"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/TrongNghianeee/Fraud-Creaditcard-Model-Detection-App/llm"
	"github.com/TrongNghianeee/Fraud-Creaditcard-Model-Detection-App/utils"
)

const defaultReportPeriod = "the selected period"

func (h *Handlers) ParseTransaction(ctx *fasthttp.RequestCtx) {
	field, ok := jsonField(ctx.PostBody(), "text")
	if !ok {
		utils.WriteError(ctx, fasthttp.StatusBadRequest, "Missing text in request body")
		return
	}

	text := field.String()
	if strings.TrimSpace(text) == "" {
		utils.WriteError(ctx, fasthttp.StatusBadRequest, "Text cannot be empty")
		return
	}

	requestCtx, cancel := requestContext(ctx)
	defer cancel()

	result := h.ai.ParseTransaction(requestCtx, text)
	if !result.Success {
		utils.WriteJSON(ctx, fasthttp.StatusBadRequest, result)
		return
	}

	utils.WriteJSON(ctx, fasthttp.StatusOK, result)
}

func (h *Handlers) AnalyzeTransaction(ctx *fasthttp.RequestCtx) {
	body := ctx.PostBody()

	field, ok := jsonField(body, "text")
	if !ok || strings.TrimSpace(field.String()) == "" {
		utils.WriteError(ctx, fasthttp.StatusBadRequest, "Missing text in request body")
		return
	}

	requestCtx, cancel := requestContext(ctx)
	defer cancel()

	analysis, err := h.ai.AnalyzeRisk(requestCtx, field.String(), objectField(body, "data"))
	if err != nil {
		h.writeAIError(ctx, "analyze-transaction", err)
		return
	}

	utils.WriteJSON(ctx, fasthttp.StatusOK, map[string]interface{}{
		"success":          true,
		"analysis":         analysis.Analysis,
		"transaction_text": analysis.TransactionText,
	})
}

func (h *Handlers) ExplainPrediction(ctx *fasthttp.RequestCtx) {
	body := ctx.PostBody()

	prediction, ok := jsonField(body, "prediction")
	if !ok || !prediction.IsObject() {
		utils.WriteError(ctx, fasthttp.StatusBadRequest, "Missing prediction in request body")
		return
	}

	summary := llm.PredictionSummary{
		IsFraud:          prediction.Get("is_fraud").Bool(),
		FraudProbability: prediction.Get("fraud_probability").Float(),
		RiskLevel:        prediction.Get("risk_level").String(),
	}

	detail := llm.DetailFull
	if field, ok := jsonField(body, "explanation_detail"); ok && field.String() == llm.DetailShort {
		detail = llm.DetailShort
	}

	requestCtx, cancel := requestContext(ctx)
	defer cancel()

	explanation, err := h.ai.ExplainPrediction(requestCtx, summary, objectField(body, "data"), detail)
	if err != nil {
		h.writeAIError(ctx, "explain-prediction", err)
		return
	}

	utils.WriteJSON(ctx, fasthttp.StatusOK, map[string]interface{}{
		"success":     true,
		"explanation": explanation,
	})
}

func (h *Handlers) Chat(ctx *fasthttp.RequestCtx) {
	body := ctx.PostBody()

	field, ok := jsonField(body, "message")
	if !ok || strings.TrimSpace(field.String()) == "" {
		utils.WriteError(ctx, fasthttp.StatusBadRequest, "Missing message in request body")
		return
	}

	requestCtx, cancel := requestContext(ctx)
	defer cancel()

	reply, err := h.ai.Chat(requestCtx, field.String(), objectField(body, "context"))
	if err != nil {
		h.writeAIError(ctx, "chat", err)
		return
	}

	utils.WriteJSON(ctx, fasthttp.StatusOK, map[string]interface{}{
		"success":  true,
		"response": reply,
	})
}

func (h *Handlers) GenerateReport(ctx *fasthttp.RequestCtx) {
	body := ctx.PostBody()

	field, ok := jsonField(body, "transactions")
	if !ok || !field.IsArray() {
		utils.WriteError(ctx, fasthttp.StatusBadRequest, "Missing transactions in request body")
		return
	}

	transactions := make([]map[string]interface{}, 0, len(field.Array()))
	for _, item := range field.Array() {
		if transaction, ok := item.Value().(map[string]interface{}); ok {
			transactions = append(transactions, transaction)
		}
	}

	period := defaultReportPeriod
	if value, ok := jsonField(body, "time_period"); ok && value.String() != "" {
		period = value.String()
	}

	requestCtx, cancel := requestContext(ctx)
	defer cancel()

	report, err := h.ai.GenerateReport(requestCtx, transactions, period)
	if err != nil {
		h.writeAIError(ctx, "generate-report", err)
		return
	}

	utils.WriteJSON(ctx, fasthttp.StatusOK, map[string]interface{}{
		"success":            true,
		"report":             report,
		"transactions_count": len(transactions),
		"time_period":        period,
	})
}

// writeAIError reports a missing API key as a client-side problem and any
// upstream failure as a server error.
func (h *Handlers) writeAIError(ctx *fasthttp.RequestCtx, operation string, err error) {
	h.logger.Error("AI request failed", zap.String("operation", operation), zap.Error(err))

	if llm.IsNotConfigured(err) {
		utils.WriteError(ctx, fasthttp.StatusBadRequest, err.Error())
		return
	}
	utils.WriteError(ctx, fasthttp.StatusInternalServerError, err.Error())
}
