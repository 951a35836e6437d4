package model

import (
	"strconv"
	"strings"
)

const (
	DefaultVNDToUSDRate     = 25000
	DefaultTransactionMonth = 6
	DefaultCategory         = "misc_pos"
	DefaultGender           = "M"
	DefaultHour             = 12
	DefaultTopK             = 6
)

// CategoryVNToEN maps the Vietnamese category labels shown in the app to
// the merchant categories the classifier was trained on.
var CategoryVNToEN = map[string]string{
	"giải trí":         "entertainment",
	"ăn uống":          "food_dining",
	"xăng dầu":         "gas_transport",
	"siêu thị online":  "grocery_net",
	"siêu thị":         "grocery_pos",
	"sức khỏe":         "health_fitness",
	"nội thất":         "home",
	"trẻ em":           "kids_pets",
	"khác online":      "misc_net",
	"khác":             "misc_pos",
	"chăm sóc cá nhân": "personal_care",
	"mua sắm online":   "shopping_net",
	"mua sắm":          "shopping_pos",
	"du lịch":          "travel",
}

var GenderVNToEN = map[string]string{
	"nam": "M",
	"nữ":  "F",
}

// Training-set values for the columns the app never collects.
const (
	defaultCCNum     = 1234567890123456
	defaultMerchant  = "fraud_Kirlin and Sons"
	defaultFirst     = "John"
	defaultLast      = "Doe"
	defaultStreet    = "Main St"
	defaultCity      = "Houston"
	defaultState     = "TX"
	defaultZip       = 77001
	defaultJob       = "Food service"
	defaultLat       = 29.7604
	defaultLong      = -95.3698
	defaultMerchLat  = 29.7604
	defaultMerchLong = -95.3698

	DefaultCityPop = 2296224
)

// Transaction is a validated predict-fraud request.
type Transaction struct {
	AmountVND        float64
	Gender           string
	Category         string
	TransactionHour  int
	TransactionDay   int
	TransactionMonth *int
	Age              int
	City             string
	CityPop          *int
}

// Features is the row sent to the model server, in training column order.
type Features struct {
	CCNum            int64   `json:"cc_num"`
	Merchant         string  `json:"merchant"`
	Category         string  `json:"category"`
	Amount           float64 `json:"amt"`
	First            string  `json:"first"`
	Last             string  `json:"last"`
	Gender           string  `json:"gender"`
	Street           string  `json:"street"`
	City             string  `json:"city"`
	State            string  `json:"state"`
	Zip              int     `json:"zip"`
	Lat              float64 `json:"lat"`
	Long             float64 `json:"long"`
	CityPop          int     `json:"city_pop"`
	Job              string  `json:"job"`
	MerchLat         float64 `json:"merch_lat"`
	MerchLong        float64 `json:"merch_long"`
	TransactionHour  int     `json:"transaction_hour"`
	TransactionDay   int     `json:"transaction_day"`
	TransactionMonth int     `json:"transaction_month"`
	Age              int     `json:"age"`
}

// Converted keeps both the user's values and what the model received.
type Converted struct {
	AmountVND        float64
	AmountUSD        float64
	GenderVN         string
	GenderEN         string
	CategoryVN       string
	CategoryEN       string
	TransactionHour  int
	TransactionDay   int
	TransactionMonth int
	Age              int
	City             string
	CityPop          int
}

func ConvertCategory(category string) string {
	if en, ok := CategoryVNToEN[strings.ToLower(strings.TrimSpace(category))]; ok {
		return en
	}
	return DefaultCategory
}

func ConvertGender(gender string) string {
	if en, ok := GenderVNToEN[strings.ToLower(strings.TrimSpace(gender))]; ok {
		return en
	}
	return DefaultGender
}

func ConvertVNDToUSD(amountVND, rate float64) float64 {
	if rate <= 0 {
		rate = DefaultVNDToUSDRate
	}
	return amountVND / rate
}

// ParseHour reads the hour out of "HH:MM:SS" and falls back to noon.
func ParseHour(value string) int {
	head, _, _ := strings.Cut(strings.TrimSpace(value), ":")

	hour, err := strconv.Atoi(head)
	if err != nil || hour < 0 || hour > 23 {
		return DefaultHour
	}
	return hour
}

// BuildFeatures converts a transaction into the model row. A missing
// city_pop is looked up from the province table and falls back to the
// training-set default for unknown cities.
func BuildFeatures(tx Transaction, vndToUSD float64) (Features, Converted) {
	month := DefaultTransactionMonth
	if tx.TransactionMonth != nil {
		month = *tx.TransactionMonth
	}

	var cityPop int
	if tx.CityPop != nil {
		cityPop = *tx.CityPop
	} else {
		cityPop = LookupPopulation(tx.City)
	}
	if cityPop <= 0 {
		cityPop = DefaultCityPop
	}

	converted := Converted{
		AmountVND:        tx.AmountVND,
		AmountUSD:        ConvertVNDToUSD(tx.AmountVND, vndToUSD),
		GenderVN:         tx.Gender,
		GenderEN:         ConvertGender(tx.Gender),
		CategoryVN:       tx.Category,
		CategoryEN:       ConvertCategory(tx.Category),
		TransactionHour:  tx.TransactionHour,
		TransactionDay:   tx.TransactionDay,
		TransactionMonth: month,
		Age:              tx.Age,
		City:             tx.City,
		CityPop:          cityPop,
	}

	features := Features{
		CCNum:            defaultCCNum,
		Merchant:         defaultMerchant,
		Category:         converted.CategoryEN,
		Amount:           converted.AmountUSD,
		First:            defaultFirst,
		Last:             defaultLast,
		Gender:           converted.GenderEN,
		Street:           defaultStreet,
		City:             defaultCity,
		State:            defaultState,
		Zip:              defaultZip,
		Lat:              defaultLat,
		Long:             defaultLong,
		CityPop:          cityPop,
		Job:              defaultJob,
		MerchLat:         defaultMerchLat,
		MerchLong:        defaultMerchLong,
		TransactionHour:  tx.TransactionHour,
		TransactionDay:   tx.TransactionDay,
		TransactionMonth: month,
		Age:              tx.Age,
	}

	return features, converted
}
