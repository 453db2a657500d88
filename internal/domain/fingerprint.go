package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Fingerprint serializes params to canonical JSON. Object keys are sorted at
// every depth, so two structurally equal parameter lists produce the same
// string whatever their key order or Go type.
func Fingerprint(params ...any) (string, error) {
	if params == nil {
		params = []any{}
	}

	raw, err := json.Marshal(params)
	if err != nil {
		return "", fmt.Errorf("encode call parameters: %w", err)
	}

	decoder := json.NewDecoder(bytes.NewReader(raw))
	decoder.UseNumber()

	var generic any
	if err := decoder.Decode(&generic); err != nil {
		return "", fmt.Errorf("decode call parameters: %w", err)
	}

	canonical, err := json.Marshal(generic)
	if err != nil {
		return "", fmt.Errorf("encode canonical call parameters: %w", err)
	}

	return string(canonical), nil
}

func NewCallSignature(name string, params ...any) (CallSignature, error) {
	fingerprint, err := Fingerprint(params...)
	if err != nil {
		return CallSignature{}, err
	}

	return CallSignature{Name: name, Fingerprint: fingerprint}, nil
}
