package fraud

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/TrongNghianeee/Fraud-Creaditcard-Model-Detection-App/cache"
	"github.com/TrongNghianeee/Fraud-Creaditcard-Model-Detection-App/llm"
	"github.com/TrongNghianeee/Fraud-Creaditcard-Model-Detection-App/model"
	"github.com/TrongNghianeee/Fraud-Creaditcard-Model-Detection-App/types"
	"github.com/TrongNghianeee/Fraud-Creaditcard-Model-Detection-App/utils"
)

// Scorer is the model server as the detector sees it.
type Scorer interface {
	Predict(ctx context.Context, features model.Features) (*model.Prediction, error)
	Explain(ctx context.Context, features model.Features, topK int) ([]model.Factor, error)
}

// Narrator turns a verdict and its evidence into prose.
type Narrator interface {
	ExplainPrediction(ctx context.Context, prediction llm.PredictionSummary, data interface{}, detail string) (string, error)
}

type Verdict struct {
	IsFraud          bool    `json:"is_fraud"`
	FraudProbability float64 `json:"fraud_probability"`
	SafeProbability  float64 `json:"safe_probability"`
	RiskLevel        string  `json:"risk_level"`
	Confidence       string  `json:"confidence"`
}

// Input echoes what the user sent next to what the model received.
type Input struct {
	AmountVND        float64 `json:"amt_vnd"`
	AmountUSD        float64 `json:"amt_usd"`
	Gender           string  `json:"gender"`
	Category         string  `json:"category"`
	TransactionHour  int     `json:"transaction_hour"`
	TransactionDay   int     `json:"transaction_day"`
	TransactionMonth int     `json:"transaction_month"`
	Age              int     `json:"age"`
	City             string  `json:"city"`
	CityPop          int     `json:"city_pop"`
}

func (i Input) Map() map[string]interface{} {
	return map[string]interface{}{
		"amt_vnd":           i.AmountVND,
		"amt_usd":           i.AmountUSD,
		"gender":            i.Gender,
		"category":          i.Category,
		"transaction_hour":  i.TransactionHour,
		"transaction_day":   i.TransactionDay,
		"transaction_month": i.TransactionMonth,
		"age":               i.Age,
		"city":              i.City,
		"city_pop":          i.CityPop,
	}
}

// Explanation is only attached to fraudulent verdicts.
type Explanation struct {
	AIExplanation *string        `json:"ai_explanation"`
	Success       bool           `json:"ai_explanation_success"`
	Error         string         `json:"ai_explanation_error,omitempty"`
	TopFactors    []model.Factor `json:"model_top_factors,omitempty"`
}

type Response struct {
	Success    bool    `json:"success"`
	Prediction Verdict `json:"prediction"`
	Input      Input   `json:"input"`
	*Explanation
}

type Options struct {
	VNDToUSDRate float64
	TopK         int
}

// Detector scores transactions and, for fraudulent ones, grounds an AI
// explanation in the model's own feature contributions. Both expensive
// steps are memoised in their own cache.
type Detector struct {
	scorer        Scorer
	narrator      Narrator
	contributions types.CacheManager
	explanations  types.CacheManager
	history       types.HistoryStore
	metrics       types.MetricsManager
	logger        types.Logger
	vndToUSD      float64
	topK          int
}

// NewDetector wires the detector. history may be nil when recording is
// disabled.
func NewDetector(scorer Scorer, narrator Narrator, contributions, explanations types.CacheManager, history types.HistoryStore, metrics types.MetricsManager, logger types.Logger, options Options) *Detector {
	if options.VNDToUSDRate <= 0 {
		options.VNDToUSDRate = model.DefaultVNDToUSDRate
	}
	if options.TopK <= 0 {
		options.TopK = model.DefaultTopK
	}

	return &Detector{
		scorer:        scorer,
		narrator:      narrator,
		contributions: contributions,
		explanations:  explanations,
		history:       history,
		metrics:       metrics,
		logger:        logger,
		vndToUSD:      options.VNDToUSDRate,
		topK:          options.TopK,
	}
}

// Predict returns an error only when the model itself fails. Explanation
// failures are reported inside the response.
func (d *Detector) Predict(ctx context.Context, request *Request) (*Response, error) {
	features, converted := model.BuildFeatures(request.Transaction(), d.vndToUSD)

	d.logger.Info("Predicting fraud",
		zap.Float64("amt_vnd", request.Amount),
		zap.String("category", converted.CategoryEN),
		zap.Int("transaction_hour", request.TransactionHour),
		zap.Int("transaction_day", request.TransactionDay),
		zap.String("city", request.City),
		zap.Int("city_pop", converted.CityPop),
	)

	prediction, err := d.scorer.Predict(ctx, features)
	if err != nil {
		d.logger.Error("Prediction failed", zap.Error(err))
		return nil, err
	}

	risk, confidence := RiskBand(prediction.FraudProbability)

	response := &Response{
		Success: true,
		Prediction: Verdict{
			IsFraud:          prediction.IsFraud,
			FraudProbability: prediction.FraudProbability,
			SafeProbability:  prediction.SafeProbability,
			RiskLevel:        risk,
			Confidence:       confidence,
		},
		Input: Input{
			AmountVND:        converted.AmountVND,
			AmountUSD:        utils.Round(converted.AmountUSD, 2),
			Gender:           fmt.Sprintf("%s (%s)", converted.GenderVN, converted.GenderEN),
			Category:         fmt.Sprintf("%s (%s)", converted.CategoryVN, converted.CategoryEN),
			TransactionHour:  converted.TransactionHour,
			TransactionDay:   converted.TransactionDay,
			TransactionMonth: converted.TransactionMonth,
			Age:              converted.Age,
			City:             converted.City,
			CityPop:          converted.CityPop,
		},
	}

	d.logger.Info("Prediction done",
		zap.Bool("is_fraud", prediction.IsFraud),
		zap.Float64("fraud_probability", prediction.FraudProbability),
		zap.String("risk_level", risk),
	)

	verdict := "legit"
	if prediction.IsFraud {
		verdict = "fraud"
		response.Explanation = d.explain(ctx, request, features, response)
	}
	d.metrics.Counter("fraud_predictions_total", map[string]string{"verdict": verdict}).Inc()

	d.record(ctx, response)

	return response, nil
}

func (d *Detector) explain(ctx context.Context, request *Request, features model.Features, response *Response) *Explanation {
	factors, err := d.topFactors(ctx, request, features)
	if err == nil {
		var text string
		if text, err = d.narrate(ctx, request, response, factors); err == nil {
			return &Explanation{AIExplanation: &text, Success: true, TopFactors: factors}
		}
	}

	d.logger.Error("AI explanation failed", zap.Error(err))
	d.metrics.Counter("ai_explanations_total", map[string]string{"source": "error"}).Inc()

	return &Explanation{Success: false, Error: err.Error()}
}

// topFactors returns the user-controlled contributions, or all of them
// when none of the top factors came from user input.
func (d *Detector) topFactors(ctx context.Context, request *Request, features model.Features) ([]model.Factor, error) {
	key, err := cache.DeriveKey(request.keyFields())
	if err != nil {
		return nil, err
	}

	if value, ok := d.contributions.Get(key); ok {
		if factors, ok := decodeFactors(value); ok {
			return factors, nil
		}
		d.logger.Warn("Dropping unreadable cached contributions", zap.String("key", key))
	}

	factors, err := d.scorer.Explain(ctx, features, d.topK)
	if err != nil {
		return nil, err
	}

	factors = model.UserFactors(factors)
	d.contributions.Set(key, factors)

	return factors, nil
}

func (d *Detector) narrate(ctx context.Context, request *Request, response *Response, factors []model.Factor) (string, error) {
	summary := llm.PredictionSummary{
		IsFraud:          true,
		FraudProbability: utils.Round(response.Prediction.FraudProbability, 6),
		RiskLevel:        response.Prediction.RiskLevel,
	}

	input := response.Input.Map()

	key, err := cache.DeriveKey(map[string]interface{}{
		"prediction":        summary,
		"input":             input,
		"model_top_factors": factors,
	})
	if err != nil {
		return "", err
	}

	if value, ok := d.explanations.Get(key); ok {
		if text, ok := value.(string); ok {
			d.metrics.Counter("ai_explanations_total", map[string]string{"source": "cache"}).Inc()
			return text, nil
		}
	}

	data := input
	data["model_top_factors"] = factors

	text, err := d.narrator.ExplainPrediction(ctx, llm.PredictionSummary{
		IsFraud:          response.Prediction.IsFraud,
		FraudProbability: response.Prediction.FraudProbability,
		RiskLevel:        response.Prediction.RiskLevel,
	}, data, request.ExplanationDetail)
	if err != nil {
		return "", err
	}

	d.explanations.Set(key, text)
	d.metrics.Counter("ai_explanations_total", map[string]string{"source": "llm"}).Inc()

	return text, nil
}

func (d *Detector) record(ctx context.Context, response *Response) {
	if d.history == nil {
		return
	}

	record := &types.HistoryRecord{
		Input: response.Input.Map(),
		Prediction: types.HistoryPrediction{
			IsFraud:          response.Prediction.IsFraud,
			FraudProbability: response.Prediction.FraudProbability,
			SafeProbability:  response.Prediction.SafeProbability,
			RiskLevel:        response.Prediction.RiskLevel,
			Confidence:       response.Prediction.Confidence,
		},
	}
	if response.Explanation != nil {
		record.AIExplanation = response.Explanation.AIExplanation
	}

	if err := d.history.Save(ctx, record); err != nil {
		d.logger.Error("Failed to record prediction", zap.Error(err))
	}
}

// decodeFactors accepts both the in-process value and the generic form a
// shared backend hands back after a JSON round trip.
func decodeFactors(value interface{}) ([]model.Factor, bool) {
	if factors, ok := value.([]model.Factor); ok {
		return factors, true
	}

	data, err := utils.Marshal(value)
	if err != nil {
		return nil, false
	}

	var factors []model.Factor
	if err = utils.Unmarshal(data, &factors); err != nil {
		return nil, false
	}

	return factors, true
}
