package utils

import (
	"bytes"
	"fmt"
	"sync"

	"github.com/bytedance/sonic"
)

type JSONBufferPool struct {
	pool sync.Pool
}

func (p *JSONBufferPool) Get() *bytes.Buffer {
	if buf := p.pool.Get(); buf != nil {
		return buf.(*bytes.Buffer)
	}
	return bytes.NewBuffer(make([]byte, 0, 1024))
}

func (p *JSONBufferPool) Put(buf *bytes.Buffer) {
	buf.Reset()
	if buf.Cap() < 16*1024 {
		p.pool.Put(buf)
	}
}

var jsonPool = &JSONBufferPool{}

// apiJSON keeps Vietnamese text readable in responses and in stored values.
var apiJSON = sonic.Config{
	EscapeHTML:       false,
	NoNullSliceOrMap: false,
}.Froze()

func MarshalToBuffer(data interface{}, buf *bytes.Buffer) error {
	buf.Reset()
	encoder := apiJSON.NewEncoder(buf)
	return encoder.Encode(data)
}

// Marshal encodes data without the trailing newline added by the encoder.
func Marshal(data interface{}) ([]byte, error) {
	buf := jsonPool.Get()
	defer jsonPool.Put(buf)

	if err := MarshalToBuffer(data, buf); err != nil {
		return nil, err
	}

	result := make([]byte, buf.Len())
	copy(result, buf.Bytes())
	return bytes.TrimRight(result, "\n"), nil
}

func Unmarshal[T any](data []byte, target *T) error {
	return apiJSON.Unmarshal(data, target)
}

// UnmarshalConfig converts a loosely typed value (a YAML sub-tree or a
// generically decoded JSON document) into T.
func UnmarshalConfig[T any](config interface{}, target *T) error {
	if config == nil {
		return fmt.Errorf("config is nil")
	}

	switch typed := config.(type) {
	case *T:
		*target = *typed
		return nil
	case T:
		*target = typed
		return nil
	}

	configBytes, err := apiJSON.Marshal(normalizeYAML(config))
	if err != nil {
		return err
	}

	return apiJSON.Unmarshal(configBytes, target)
}

// normalizeYAML rewrites map[interface{}]interface{} nodes so the JSON
// encoder accepts them.
func normalizeYAML(value interface{}) interface{} {
	switch v := value.(type) {
	case map[interface{}]interface{}:
		out := make(map[string]interface{}, len(v))
		for key, item := range v {
			out[fmt.Sprint(key)] = normalizeYAML(item)
		}
		return out
	case map[string]interface{}:
		out := make(map[string]interface{}, len(v))
		for key, item := range v {
			out[key] = normalizeYAML(item)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(v))
		for i, item := range v {
			out[i] = normalizeYAML(item)
		}
		return out
	default:
		return value
	}
}
