package model

import (
	"context"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/TrongNghianeee/Fraud-Creaditcard-Model-Detection-App/types"
	"github.com/TrongNghianeee/Fraud-Creaditcard-Model-Detection-App/utils"
)

type Prediction struct {
	IsFraud          bool    `json:"is_fraud"`
	FraudProbability float64 `json:"fraud_probability"`
	SafeProbability  float64 `json:"safe_probability"`
}

// Factor is one feature's signed contribution to the fraud score.
type Factor struct {
	Feature      string      `json:"feature"`
	Value        interface{} `json:"value"`
	Contribution float64     `json:"contribution"`
	Direction    string      `json:"direction"`
	Source       string      `json:"source"`
}

const SourceUserInput = "user_input"

// Client talks to the model server that hosts the trained classifier.
type Client struct {
	http    types.HTTPClient
	baseURL string
	logger  types.Logger
}

func NewClient(httpClient types.HTTPClient, config *types.ModelConfig, logger types.Logger) *Client {
	return &Client{
		http:    httpClient,
		baseURL: strings.TrimRight(config.BaseURL, "/"),
		logger:  logger,
	}
}

func (c *Client) Predict(ctx context.Context, features Features) (*Prediction, error) {
	body, err := c.post(ctx, "/predict", map[string]interface{}{"features": features})
	if err != nil {
		return nil, err
	}

	fields := gjson.GetManyBytes(body, "is_fraud", "fraud_probability", "safe_probability")
	if fields[1].Type != gjson.Number {
		return nil, types.Errorf(types.ErrModelResponseInvalid, "fraud_probability missing in %q", utils.Truncate(string(body), 200))
	}

	prediction := &Prediction{
		FraudProbability: fields[1].Float(),
		SafeProbability:  1 - fields[1].Float(),
		IsFraud:          fields[1].Float() >= 0.5,
	}
	if fields[0].Exists() {
		prediction.IsFraud = fields[0].Bool()
	}
	if fields[2].Type == gjson.Number {
		prediction.SafeProbability = fields[2].Float()
	}

	return prediction, nil
}

// Explain returns the topK strongest feature contributions.
func (c *Client) Explain(ctx context.Context, features Features, topK int) ([]Factor, error) {
	if topK <= 0 {
		topK = DefaultTopK
	}

	body, err := c.post(ctx, "/explain", map[string]interface{}{"features": features, "top_k": topK})
	if err != nil {
		return nil, err
	}

	topFactors := gjson.GetBytes(body, "top_factors")
	if !topFactors.IsArray() {
		return nil, types.Errorf(types.ErrModelResponseInvalid, "top_factors missing in %q", utils.Truncate(string(body), 200))
	}

	factors := make([]Factor, 0, len(topFactors.Array()))
	topFactors.ForEach(func(_, item gjson.Result) bool {
		factors = append(factors, Factor{
			Feature:      item.Get("feature").String(),
			Value:        item.Get("value").Value(),
			Contribution: item.Get("contribution").Float(),
			Direction:    item.Get("direction").String(),
			Source:       item.Get("source").String(),
		})
		return true
	})

	return factors, nil
}

// UserFactors keeps the factors driven by what the user entered, or all of
// them when none are.
func UserFactors(factors []Factor) []Factor {
	user := make([]Factor, 0, len(factors))
	for _, factor := range factors {
		if factor.Source == SourceUserInput {
			user = append(user, factor)
		}
	}

	if len(user) == 0 {
		return factors
	}
	return user
}

func (c *Client) Health(ctx context.Context) error {
	_, status, err := c.http.Call(ctx, fasthttp.MethodGet, c.baseURL+"/health", nil, nil)
	if err != nil {
		return types.Errorf(types.ErrModelRequestFailed, "%v", err)
	}
	if status < 200 || status >= 300 {
		return types.Errorf(types.ErrModelRequestFailed, "health returned HTTP %d", status)
	}
	return nil
}

func (c *Client) post(ctx context.Context, path string, payload interface{}) ([]byte, error) {
	body, status, err := c.http.Call(ctx, fasthttp.MethodPost, c.baseURL+path, payload, nil)
	if err != nil {
		c.logger.Error("Model server call failed", zap.String("path", path), zap.Error(err))
		return nil, types.Errorf(types.ErrModelRequestFailed, "%v", err)
	}

	if status < 200 || status >= 300 {
		message := gjson.GetBytes(body, "error").String()
		if message == "" {
			message = utils.Truncate(string(body), 200)
		}
		return nil, types.Errorf(types.ErrModelRequestFailed, "HTTP %d: %s", status, message)
	}

	if !gjson.ValidBytes(body) {
		return nil, types.Errorf(types.ErrModelResponseInvalid, "invalid JSON: %q", utils.Truncate(string(body), 200))
	}

	return body, nil
}
