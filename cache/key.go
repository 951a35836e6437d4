package cache

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"

	"github.com/bytedance/sonic"
	"github.com/bytedance/sonic/utf8"

	"github.com/TrongNghianeee/Fraud-Creaditcard-Model-Detection-App/types"
)

// canonicalJSON emits sorted object keys, no whitespace and raw UTF-8.
// UseNumber keeps numeric literals intact across the decode step.
var canonicalJSON = sonic.Config{
	SortMapKeys: true,
	EscapeHTML:  false,
	UseNumber:   true,
}.Froze()

// documentJSON decodes raw documents the way request bodies are decoded:
// numbers become float64, so 5.0 and 5 yield the same key.
var documentJSON = sonic.Config{
	SortMapKeys: true,
	EscapeHTML:  false,
}.Froze()

// Canonicalize returns the canonical JSON form of v. Structs are first
// flattened to generic maps so their keys get sorted as well. Strings
// holding invalid UTF-8 are rejected rather than replaced, since
// replacement would map distinct inputs onto one key.
func Canonicalize(v interface{}) ([]byte, error) {
	raw, err := canonicalJSON.Marshal(v)
	if err != nil {
		return nil, types.Errorf(types.ErrCacheKeyDerivation, "marshal: %v", err)
	}
	if hasInvalidUTF8(raw) {
		return nil, types.Errorf(types.ErrCacheKeyDerivation, "invalid UTF-8 in string value")
	}

	var generic interface{}
	if err := canonicalJSON.Unmarshal(raw, &generic); err != nil {
		return nil, types.Errorf(types.ErrCacheKeyDerivation, "decode: %v", err)
	}

	canonical, err := canonicalJSON.Marshal(generic)
	if err != nil {
		return nil, types.Errorf(types.ErrCacheKeyDerivation, "re-marshal: %v", err)
	}

	return canonical, nil
}

// DeriveKey hashes the canonical JSON form of v with SHA-256 and returns
// the lower-case hex digest.
func DeriveKey(v interface{}) (string, error) {
	canonical, err := Canonicalize(v)
	if err != nil {
		return "", err
	}

	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:]), nil
}

// DeriveKeyJSON derives the key of an already encoded JSON document. The
// result equals DeriveKey applied to the same document decoded into Go
// values.
func DeriveKeyJSON(raw []byte) (string, error) {
	if !utf8.Validate(raw) {
		return "", types.Errorf(types.ErrCacheKeyDerivation, "invalid UTF-8 in document")
	}

	var generic interface{}
	if err := documentJSON.Unmarshal(raw, &generic); err != nil {
		return "", types.Errorf(types.ErrCacheKeyDerivation, "decode: %v", err)
	}
	return DeriveKey(generic)
}

var escapedReplacement = []byte(`\ufffd`)

// hasInvalidUTF8 reports whether encoded JSON carried invalid UTF-8. The
// native encoder copies such bytes through; the encoding/json fallback
// writes them as an escaped U+FFFD, which a real U+FFFD never produces
// with HTML escaping off.
func hasInvalidUTF8(encoded []byte) bool {
	if !utf8.Validate(encoded) {
		return true
	}

	for from := 0; ; {
		at := bytes.Index(encoded[from:], escapedReplacement)
		if at < 0 {
			return false
		}
		at += from

		slashes := 0
		for i := at - 1; i >= 0 && encoded[i] == '\\'; i-- {
			slashes++
		}
		if slashes%2 == 0 {
			return true
		}
		from = at + 1
	}
}
