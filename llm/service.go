package llm

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/TrongNghianeee/Fraud-Creaditcard-Model-Detection-App/types"
	"github.com/TrongNghianeee/Fraud-Creaditcard-Model-Detection-App/utils"
)

const (
	DetailShort = "short"
	DetailFull  = "full"
)

const defaultUSDToVNDRate = 24000

type ParseResult struct {
	Success     bool                   `json:"success"`
	Data        map[string]interface{} `json:"data,omitempty"`
	RawText     string                 `json:"raw_text,omitempty"`
	Error       string                 `json:"error,omitempty"`
	RawResponse *string                `json:"raw_response,omitempty"`
}

type Analysis struct {
	Analysis        string `json:"analysis"`
	TransactionText string `json:"transaction_text"`
}

// PredictionSummary is the part of a model verdict the explanation needs.
type PredictionSummary struct {
	IsFraud          bool    `json:"is_fraud"`
	FraudProbability float64 `json:"fraud_probability"`
	RiskLevel        string  `json:"risk_level,omitempty"`
}

// Service holds the prompt logic for every AI feature of the API.
type Service struct {
	completer Completer
	usdToVND  float64
	logger    types.Logger
}

func NewService(completer Completer, config *types.LLMConfig, logger types.Logger) *Service {
	rate := float64(defaultUSDToVNDRate)
	if config != nil && config.USDToVNDRate > 0 {
		rate = config.USDToVNDRate
	}

	return &Service{
		completer: completer,
		usdToVND:  rate,
		logger:    logger,
	}
}

// ParseTransaction extracts the transfer fields from OCR text. Failures are
// reported inside the result rather than as an error.
func (s *Service) ParseTransaction(ctx context.Context, text string) *ParseResult {
	s.logger.Info("Starting AI parsing for OCR text", zap.Int("length", len(text)))

	response, err := s.completer.Complete(ctx, parseMessages(text, s.usdToVND), 0.1, 1000)
	if err != nil {
		return &ParseResult{Success: false, Error: "AI API error: " + err.Error()}
	}

	s.logger.Debug("AI response preview", zap.String("preview", utils.Truncate(response, 300)))

	cleaned := stripCodeFence(response)

	var parsed map[string]interface{}
	if err := utils.Unmarshal([]byte(cleaned), &parsed); err != nil || parsed == nil {
		detail := "not a JSON object"
		if err != nil {
			detail = err.Error()
		}
		s.logger.Error("AI returned invalid JSON", zap.String("detail", detail), zap.String("response", utils.Truncate(response, 500)))
		return &ParseResult{
			Success:     false,
			Error:       "AI trả về JSON không hợp lệ. Chi tiết: " + detail,
			RawResponse: &cleaned,
		}
	}

	for _, field := range TransactionFields {
		if _, ok := parsed[field]; !ok {
			parsed[field] = nil
		}
	}

	s.logger.Info("AI parsing successful")

	return &ParseResult{Success: true, Data: parsed, RawText: text}
}

func (s *Service) AnalyzeRisk(ctx context.Context, text string, data map[string]interface{}) (*Analysis, error) {
	analysis, err := s.completer.Complete(ctx, analyzeMessages(text, data), 0.3, 0)
	if err != nil {
		return nil, err
	}

	return &Analysis{Analysis: analysis, TransactionText: text}, nil
}

// ExplainPrediction turns a model verdict into plain language. detail is
// DetailShort or DetailFull; anything else is treated as DetailFull.
func (s *Service) ExplainPrediction(ctx context.Context, prediction PredictionSummary, data interface{}, detail string) (string, error) {
	return s.completer.Complete(ctx, explainMessages(prediction.IsFraud, prediction.FraudProbability, data, detail), 0.5, 0)
}

func (s *Service) Chat(ctx context.Context, message string, chatContext map[string]interface{}) (string, error) {
	return s.completer.Complete(ctx, chatMessages(message, chatContext), 0.7, 0)
}

func (s *Service) GenerateReport(ctx context.Context, transactions []map[string]interface{}, timePeriod string) (string, error) {
	if timePeriod == "" {
		timePeriod = "the selected period"
	}
	return s.completer.Complete(ctx, reportMessages(transactions, timePeriod), 0.4, 1000)
}

// IsNotConfigured reports whether err comes from a missing API key.
func IsNotConfigured(err error) bool {
	return errors.Is(err, types.ErrLLMNotConfigured)
}
