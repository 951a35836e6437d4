package fraud

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/TrongNghianeee/Fraud-Creaditcard-Model-Detection-App/llm"
	"github.com/TrongNghianeee/Fraud-Creaditcard-Model-Detection-App/model"
	"github.com/TrongNghianeee/Fraud-Creaditcard-Model-Detection-App/types"
	"github.com/TrongNghianeee/Fraud-Creaditcard-Model-Detection-App/utils"
)

// RequiredFields are reported in this order when missing.
var RequiredFields = []string{"amt", "gender", "category", "transaction_hour", "transaction_day", "age", "city"}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Request is a validated predict-fraud body.
type Request struct {
	Amount            float64
	Gender            string
	Category          string
	TransactionHour   int
	TransactionDay    int
	Age               int
	City              string
	CityPop           *int
	TransactionMonth  *int
	ExplanationDetail string
}

// ParseRequest decodes and validates a predict-fraud body. Every failure
// is a *types.ValidationError whose message is returned to the client.
func ParseRequest(body []byte) (*Request, error) {
	var data map[string]interface{}
	if len(body) == 0 || utils.Unmarshal(body, &data) != nil || len(data) == 0 {
		return nil, types.NewValidationError("No JSON data provided")
	}

	var missing []string
	for _, field := range RequiredFields {
		if _, exists := data[field]; !exists {
			missing = append(missing, field)
		}
	}
	if len(missing) > 0 {
		return nil, types.NewValidationError("Missing required fields: %s", strings.Join(missing, ", "))
	}

	request := &Request{
		Category:          stringValue(data["category"]),
		City:              stringValue(data["city"]),
		ExplanationDetail: llm.DetailFull,
	}

	amount, ok := toFloat(data["amt"])
	if !ok || validate.Var(amount, "gt=0") != nil {
		shown := formatValue(data["amt"])
		if ok {
			shown = formatFloat(amount)
		}
		return nil, types.NewValidationError("Invalid amount: %s. Must be a positive number", shown)
	}
	request.Amount = amount

	gender, _ := data["gender"].(string)
	if validate.Var(gender, "oneof=Nam Nữ") != nil {
		return nil, types.NewValidationError(`Invalid gender: %s. Must be "Nam" or "Nữ"`, formatValue(data["gender"]))
	}
	request.Gender = gender

	var err error
	if request.TransactionHour, err = intField(data["transaction_hour"], "min=0,max=23", "Invalid transaction_hour: %s. Must be 0-23"); err != nil {
		return nil, err
	}
	if request.TransactionDay, err = intField(data["transaction_day"], "min=0,max=6", "Invalid transaction_day: %s. Must be 0-6 (Monday=0, Sunday=6)"); err != nil {
		return nil, err
	}
	if request.Age, err = intField(data["age"], "min=18,max=100", "Invalid age: %s. Must be 18-100"); err != nil {
		return nil, err
	}

	if raw := data["city_pop"]; raw != nil {
		cityPop, err := intField(raw, "gt=0", "Invalid city_pop: %s. Must be a positive integer")
		if err != nil {
			return nil, err
		}
		request.CityPop = &cityPop
	}

	if raw := data["transaction_month"]; raw != nil {
		month, err := intField(raw, "min=1,max=12", "Invalid transaction_month: %s. Must be 1-12")
		if err != nil {
			return nil, err
		}
		request.TransactionMonth = &month
	}

	if detail, ok := data["explanation_detail"].(string); ok && detail != "" {
		request.ExplanationDetail = detail
	}

	return request, nil
}

// Transaction maps the request onto the model's input.
func (r *Request) Transaction() model.Transaction {
	return model.Transaction{
		AmountVND:        r.Amount,
		Gender:           r.Gender,
		Category:         r.Category,
		TransactionHour:  r.TransactionHour,
		TransactionDay:   r.TransactionDay,
		TransactionMonth: r.TransactionMonth,
		Age:              r.Age,
		City:             r.City,
		CityPop:          r.CityPop,
	}
}

// keyFields is the identity of a request for the contributions cache:
// raw user values only, nothing derived.
func (r *Request) keyFields() map[string]interface{} {
	var cityPop, month interface{}
	if r.CityPop != nil {
		cityPop = *r.CityPop
	}
	if r.TransactionMonth != nil {
		month = *r.TransactionMonth
	}

	return map[string]interface{}{
		"amt":               r.Amount,
		"gender":            r.Gender,
		"category":          r.Category,
		"transaction_hour":  r.TransactionHour,
		"transaction_day":   r.TransactionDay,
		"age":               r.Age,
		"city":              r.City,
		"city_pop":          cityPop,
		"transaction_month": month,
	}
}

func intField(raw interface{}, rule, message string) (int, error) {
	value, ok := toInt(raw)
	if !ok {
		return 0, types.NewValidationError(message, formatValue(raw))
	}
	if validate.Var(value, rule) != nil {
		return 0, types.NewValidationError(message, strconv.Itoa(value))
	}
	return value, nil
}

// toFloat accepts JSON numbers and numeric strings.
func toFloat(raw interface{}) (float64, bool) {
	switch v := raw.(type) {
	case float64:
		return v, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

// toInt truncates JSON numbers toward zero and accepts integer strings.
func toInt(raw interface{}) (int, bool) {
	switch v := raw.(type) {
	case float64:
		if math.Abs(v) > math.MaxInt32 {
			return 0, false
		}
		return int(v), true
	case string:
		i, err := strconv.Atoi(strings.TrimSpace(v))
		return i, err == nil
	default:
		return 0, false
	}
}

func stringValue(raw interface{}) string {
	switch v := raw.(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return fmt.Sprint(v)
	}
}

func formatValue(raw interface{}) string {
	switch v := raw.(type) {
	case nil:
		return "None"
	case bool:
		if v {
			return "True"
		}
		return "False"
	case float64:
		if v == math.Trunc(v) && math.Abs(v) < 1e15 {
			return strconv.FormatInt(int64(v), 10)
		}
		return formatFloat(v)
	default:
		return stringValue(v)
	}
}

// formatFloat always shows a fractional part: -5 prints as "-5.0".
func formatFloat(v float64) string {
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.ContainsAny(s, ".eE") {
		s += ".0"
	}
	return s
}
