package fraud

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TrongNghianeee/Fraud-Creaditcard-Model-Detection-App/llm"
	"github.com/TrongNghianeee/Fraud-Creaditcard-Model-Detection-App/types"
)

const validBody = `{"amt":500000,"gender":"Nam","category":"xăng dầu","transaction_hour":13,"transaction_day":5,"age":28,"city":"ha noi"}`

func TestParseRequest(t *testing.T) {
	request, err := ParseRequest([]byte(validBody))

	require.NoError(t, err)
	assert.Equal(t, 500000.0, request.Amount)
	assert.Equal(t, "Nam", request.Gender)
	assert.Equal(t, "xăng dầu", request.Category)
	assert.Equal(t, 13, request.TransactionHour)
	assert.Equal(t, 5, request.TransactionDay)
	assert.Equal(t, 28, request.Age)
	assert.Equal(t, "ha noi", request.City)
	assert.Nil(t, request.CityPop)
	assert.Nil(t, request.TransactionMonth)
	assert.Equal(t, llm.DetailFull, request.ExplanationDetail)
}

func TestParseRequestOptionalFields(t *testing.T) {
	request, err := ParseRequest([]byte(`{"amt":"1200000","gender":"Nữ","category":"mua sắm online","transaction_hour":"2","transaction_day":6.9,
		"age":45,"city":"Đà Nẵng","city_pop":1231000,"transaction_month":12,"explanation_detail":"short"}`))

	require.NoError(t, err)
	assert.Equal(t, 1200000.0, request.Amount)
	assert.Equal(t, 2, request.TransactionHour)
	assert.Equal(t, 6, request.TransactionDay)
	require.NotNil(t, request.CityPop)
	assert.Equal(t, 1231000, *request.CityPop)
	require.NotNil(t, request.TransactionMonth)
	assert.Equal(t, 12, *request.TransactionMonth)
	assert.Equal(t, llm.DetailShort, request.ExplanationDetail)

	request, err = ParseRequest([]byte(`{"amt":1,"gender":"Nam","category":"khác","transaction_hour":0,"transaction_day":0,"age":18,"city":"x","city_pop":null,"transaction_month":null}`))
	require.NoError(t, err)
	assert.Nil(t, request.CityPop)
	assert.Nil(t, request.TransactionMonth)
}

func TestParseRequestErrors(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		message string
	}{
		{"empty body", ``, "No JSON data provided"},
		{"empty object", `{}`, "No JSON data provided"},
		{"not json", `amt=5`, "No JSON data provided"},
		{"missing in declared order", `{"gender":"Nam","age":30}`, "Missing required fields: amt, category, transaction_hour, transaction_day, city"},
		{"negative amount", `{"amt":-5,"gender":"Nam","category":"c","transaction_hour":1,"transaction_day":1,"age":30,"city":"c"}`, "Invalid amount: -5.0. Must be a positive number"},
		{"text amount", `{"amt":"abc","gender":"Nam","category":"c","transaction_hour":1,"transaction_day":1,"age":30,"city":"c"}`, "Invalid amount: abc. Must be a positive number"},
		{"null amount", `{"amt":null,"gender":"Nam","category":"c","transaction_hour":1,"transaction_day":1,"age":30,"city":"c"}`, "Invalid amount: None. Must be a positive number"},
		{"gender", `{"amt":5,"gender":"Male","category":"c","transaction_hour":1,"transaction_day":1,"age":30,"city":"c"}`, `Invalid gender: Male. Must be "Nam" or "Nữ"`},
		{"hour range", `{"amt":5,"gender":"Nam","category":"c","transaction_hour":24,"transaction_day":1,"age":30,"city":"c"}`, "Invalid transaction_hour: 24. Must be 0-23"},
		{"hour text", `{"amt":5,"gender":"Nam","category":"c","transaction_hour":"noon","transaction_day":1,"age":30,"city":"c"}`, "Invalid transaction_hour: noon. Must be 0-23"},
		{"day", `{"amt":5,"gender":"Nam","category":"c","transaction_hour":1,"transaction_day":7,"age":30,"city":"c"}`, "Invalid transaction_day: 7. Must be 0-6 (Monday=0, Sunday=6)"},
		{"age", `{"amt":5,"gender":"Nam","category":"c","transaction_hour":1,"transaction_day":1,"age":17,"city":"c"}`, "Invalid age: 17. Must be 18-100"},
		{"city_pop", `{"amt":5,"gender":"Nam","category":"c","transaction_hour":1,"transaction_day":1,"age":30,"city":"c","city_pop":0}`, "Invalid city_pop: 0. Must be a positive integer"},
		{"month", `{"amt":5,"gender":"Nam","category":"c","transaction_hour":1,"transaction_day":1,"age":30,"city":"c","transaction_month":13}`, "Invalid transaction_month: 13. Must be 1-12"},
		{"gender checked before hour", `{"amt":5,"gender":"x","category":"c","transaction_hour":"bad","transaction_day":1,"age":30,"city":"c"}`, `Invalid gender: x. Must be "Nam" or "Nữ"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseRequest([]byte(tt.body))

			require.Error(t, err)
			assert.ErrorIs(t, err, types.ErrValidation)
			assert.Equal(t, tt.message, err.Error())
		})
	}
}

func TestRiskBand(t *testing.T) {
	tests := []struct {
		probability float64
		risk        string
		confidence  string
	}{
		{0, LevelVeryLow, LevelVeryHigh},
		{0.099, LevelVeryLow, LevelVeryHigh},
		{0.1, LevelLow, LevelHigh},
		{0.3, LevelMedium, LevelMedium},
		{0.5, LevelHigh, LevelMedium},
		{0.7, LevelVeryHigh, LevelHigh},
		{1, LevelVeryHigh, LevelHigh},
	}

	for _, tt := range tests {
		risk, confidence := RiskBand(tt.probability)
		assert.Equal(t, tt.risk, risk, "probability %v", tt.probability)
		assert.Equal(t, tt.confidence, confidence, "probability %v", tt.probability)
	}
}
