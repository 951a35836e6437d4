package types

import (
	"context"
	"time"
)

type HistoryPrediction struct {
	IsFraud          bool    `json:"is_fraud"`
	FraudProbability float64 `json:"fraud_probability"`
	SafeProbability  float64 `json:"safe_probability"`
	RiskLevel        string  `json:"risk_level"`
	Confidence       string  `json:"confidence"`
}

// HistoryRecord is one stored prediction. Input holds the echoed request
// values as returned to the client.
type HistoryRecord struct {
	ID            string                 `json:"id"`
	CreatedAt     time.Time              `json:"created_at"`
	Input         map[string]interface{} `json:"input"`
	Prediction    HistoryPrediction      `json:"prediction"`
	AIExplanation *string                `json:"ai_explanation"`
}

// HistoryStore persists predictions. List returns newest first.
type HistoryStore interface {
	LifecycleManager
	Save(ctx context.Context, record *HistoryRecord) error
	List(ctx context.Context, limit int) ([]*HistoryRecord, error)
	Get(ctx context.Context, id string) (*HistoryRecord, error)
	Delete(ctx context.Context, id string) error
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int, error)
	Count(ctx context.Context) (int, error)
}

type HistoryStoreCreator func(config *HistoryConfig, logger Logger) (HistoryStore, error)
