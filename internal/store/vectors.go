package store

import (
	"encoding/json"
	"fmt"
	"math"
)

// encodeVector serializes a vector as a JSON float array. Only finite
// floats round-trip; callers validate before encoding.
func encodeVector(v []float32) (string, error) {
	for i, f := range v {
		if math.IsNaN(float64(f)) || math.IsInf(float64(f), 0) {
			return "", fmt.Errorf("vector component %d is not finite", i)
		}
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("encoding vector: %w", err)
	}
	return string(b), nil
}

// decodeVector parses a stored vector.
func decodeVector(s string) ([]float32, error) {
	var v []float32
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return nil, fmt.Errorf("decoding vector: %w", err)
	}
	for i, f := range v {
		if math.IsNaN(float64(f)) || math.IsInf(float64(f), 0) {
			return nil, fmt.Errorf("stored vector component %d is not finite", i)
		}
	}
	return v, nil
}

// NormalizeL2 scales v to unit length in place and returns it. A zero
// vector is returned unchanged.
func NormalizeL2(v []float32) []float32 {
	var sum float64
	for _, f := range v {
		sum += float64(f) * float64(f)
	}
	if sum == 0 {
		return v
	}
	norm := math.Sqrt(sum)
	for i := range v {
		v[i] = float32(float64(v[i]) / norm)
	}
	return v
}
