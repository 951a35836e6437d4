package llm

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TrongNghianeee/Fraud-Creaditcard-Model-Detection-App/logger"
	"github.com/TrongNghianeee/Fraud-Creaditcard-Model-Detection-App/types"
)

type fakeCompleter struct {
	response    string
	err         error
	messages    []Message
	temperature float64
	maxTokens   int
	calls       int
}

func (f *fakeCompleter) Complete(_ context.Context, messages []Message, temperature float64, maxTokens int) (string, error) {
	f.calls++
	f.messages = messages
	f.temperature = temperature
	f.maxTokens = maxTokens
	return f.response, f.err
}

func newTestService(completer Completer) *Service {
	return NewService(completer, &types.LLMConfig{USDToVNDRate: 24000}, logger.NewNop())
}

func TestService_ParseTransaction(t *testing.T) {
	completer := &fakeCompleter{response: "```json\n{\"sender_name\":\"NGUYEN VAN A\",\"amount_vnd\":500000}\n```"}
	service := newTestService(completer)

	result := service.ParseTransaction(testContext(t), "CHUYEN TIEN 500,000 VND")

	require.True(t, result.Success)
	assert.Equal(t, "NGUYEN VAN A", result.Data["sender_name"])
	assert.EqualValues(t, 500000, result.Data["amount_vnd"])
	assert.Len(t, result.Data, len(TransactionFields))
	assert.Nil(t, result.Data["transaction_fee"])
	assert.Equal(t, "CHUYEN TIEN 500,000 VND", result.RawText)

	assert.InDelta(t, 0.1, completer.temperature, 1e-9)
	assert.Equal(t, 1000, completer.maxTokens)
	require.Len(t, completer.messages, 2)
	assert.Equal(t, RoleSystem, completer.messages[0].Role)
	assert.Contains(t, completer.messages[1].Content, "CHUYEN TIEN 500,000 VND")
	assert.Contains(t, completer.messages[1].Content, "1 USD = 24000 VND")
}

func TestService_ParseTransactionInvalidJSON(t *testing.T) {
	service := newTestService(&fakeCompleter{response: "Xin lỗi, tôi không đọc được"})

	result := service.ParseTransaction(testContext(t), "text")

	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "AI trả về JSON không hợp lệ")
	require.NotNil(t, result.RawResponse)
	assert.Equal(t, "Xin lỗi, tôi không đọc được", *result.RawResponse)
}

func TestService_ParseTransactionAPIError(t *testing.T) {
	service := newTestService(&fakeCompleter{err: types.Errorf(types.ErrLLMRequestFailed, "HTTP 401: invalid key")})

	result := service.ParseTransaction(testContext(t), "text")

	assert.False(t, result.Success)
	assert.Equal(t, "AI API error: AI service error: HTTP 401: invalid key", result.Error)
	assert.Nil(t, result.RawResponse)
}

func TestService_AnalyzeRisk(t *testing.T) {
	completer := &fakeCompleter{response: "Risk Level: High"}
	service := newTestService(completer)

	analysis, err := service.AnalyzeRisk(testContext(t), "transfer at 3am", map[string]interface{}{"amount": 900})

	require.NoError(t, err)
	assert.Equal(t, "Risk Level: High", analysis.Analysis)
	assert.Equal(t, "transfer at 3am", analysis.TransactionText)
	assert.InDelta(t, 0.3, completer.temperature, 1e-9)
	assert.Contains(t, completer.messages[1].Content, `Transaction Data: {"amount":900}`)
}

func TestService_ExplainPrediction(t *testing.T) {
	completer := &fakeCompleter{response: "  Giao dịch bị đánh dấu vì số tiền lớn.  "}
	service := newTestService(completer)

	explanation, err := service.ExplainPrediction(testContext(t), PredictionSummary{IsFraud: true, FraudProbability: 0.8734}, map[string]interface{}{"city": "ha noi"}, DetailShort)

	require.NoError(t, err)
	assert.Equal(t, "  Giao dịch bị đánh dấu vì số tiền lớn.  ", explanation)
	assert.InDelta(t, 0.5, completer.temperature, 1e-9)
	assert.Contains(t, completer.messages[1].Content, "Prediction: Fraudulent")
	assert.Contains(t, completer.messages[1].Content, "Fraud Probability: 87.34%")
	assert.Contains(t, completer.messages[1].Content, "2-3 sentences")

	_, err = service.ExplainPrediction(testContext(t), PredictionSummary{}, nil, DetailFull)
	require.NoError(t, err)
	assert.NotContains(t, completer.messages[1].Content, "2-3 sentences")
	assert.Contains(t, completer.messages[1].Content, "Prediction: Legitimate")
}

func TestService_Chat(t *testing.T) {
	completer := &fakeCompleter{response: "ok"}
	service := newTestService(completer)

	_, err := service.Chat(testContext(t), "Is this safe?", nil)
	require.NoError(t, err)
	assert.Equal(t, "Is this safe?", completer.messages[1].Content)
	assert.InDelta(t, 0.7, completer.temperature, 1e-9)

	_, err = service.Chat(testContext(t), "Is this safe?", map[string]interface{}{"risk_level": "high"})
	require.NoError(t, err)
	assert.Equal(t, "Context: {\"risk_level\":\"high\"}\n\nQuestion: Is this safe?", completer.messages[1].Content)
}

func TestService_GenerateReport(t *testing.T) {
	completer := &fakeCompleter{response: "Executive Summary"}
	service := newTestService(completer)

	report, err := service.GenerateReport(testContext(t), []map[string]interface{}{{"amt": 1}, {"amt": 2}}, "last week")

	require.NoError(t, err)
	assert.Equal(t, "Executive Summary", report)
	assert.InDelta(t, 0.4, completer.temperature, 1e-9)
	assert.Equal(t, 1000, completer.maxTokens)
	assert.Contains(t, completer.messages[1].Content, "for last week")
	assert.Contains(t, completer.messages[1].Content, "Number of Transactions: 2")
}

func TestService_PropagatesErrors(t *testing.T) {
	service := newTestService(&fakeCompleter{err: types.ErrLLMNotConfigured})

	_, err := service.Chat(testContext(t), "hi", nil)
	assert.True(t, IsNotConfigured(err))
	assert.False(t, IsNotConfigured(errors.New("other")))
}

func TestStripCodeFence(t *testing.T) {
	assert.Equal(t, `{"a":1}`, stripCodeFence("```json\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, stripCodeFence("```\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, stripCodeFence("  {\"a\":1}  "))
}
