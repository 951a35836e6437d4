package config

import (
	"github.com/bytedance/sonic"
	"github.com/tidwall/gjson"

	"github.com/TrongNghianeee/Fraud-Creaditcard-Model-Detection-App/types"
)

// Parser answers gjson path lookups such as "llm.model" against the JSON
// encoding of the loaded configuration. Fields tagged json:"-", like the
// LLM API key, never appear in it.
type Parser struct {
	document string
}

func NewParser(config *types.ServiceConfig) *Parser {
	document, err := sonic.MarshalString(config)
	if err != nil || !gjson.Valid(document) {
		return &Parser{document: "{}"}
	}
	return &Parser{document: document}
}

// GetValue returns the value at path as plain Go data: strings, float64,
// bool, []interface{} or map[string]interface{}. Missing and null values
// yield defaultValue.
func (p *Parser) GetValue(path string, defaultValue interface{}) interface{} {
	result, ok := p.lookup(path)
	if !ok {
		return defaultValue
	}
	return result.Value()
}

// GetAs decodes the sub-document at path into target. Durations travel as
// nanosecond integers, which is how they were encoded.
func (p *Parser) GetAs(path string, target interface{}) error {
	result, ok := p.lookup(path)
	if !ok {
		return types.Errorf(types.ErrConfigNotFound, "path: %s", path)
	}

	if err := sonic.UnmarshalString(result.Raw, target); err != nil {
		return types.Errorf(types.ErrConfigInvalidPath, "path %s: %v", path, err)
	}
	return nil
}

func (p *Parser) lookup(path string) (gjson.Result, bool) {
	if path == "" {
		return gjson.Parse(p.document), true
	}

	result := gjson.Get(p.document, path)
	if !result.Exists() || result.Type == gjson.Null {
		return gjson.Result{}, false
	}
	return result, true
}
