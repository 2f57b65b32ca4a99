package nnwire

import (
	"encoding/json"
	"fmt"
)

// Range is the output interval the server maps activations into.
type Range struct {
	From float64 `json:"from"`
	To   float64 `json:"to"`
}

func NewRange(from, to float64) *Range {
	return &Range{From: from, To: to}
}

// PairRange normalises the ordered-pair form [from, to].
func PairRange(pair [2]float64) *Range {
	return &Range{From: pair[0], To: pair[1]}
}

// UnmarshalJSON accepts both [from, to] and {"from": .., "to": ..}.
func (r *Range) UnmarshalJSON(data []byte) error {
	var pair []float64
	if err := json.Unmarshal(data, &pair); err == nil {
		if len(pair) != 2 {
			return fmt.Errorf("nnwire: range pair needs 2 values, got %d", len(pair))
		}
		r.From, r.To = pair[0], pair[1]
		return nil
	}
	type named Range
	var n named
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("nnwire: invalid range: %w", err)
	}
	*r = Range(n)
	return nil
}

// Sample is one training example.
type Sample struct {
	Input  []float64 `json:"input"`
	Output []float64 `json:"output"`
}

// TrainConfig carries trainer options. Zero values are left for the server to
// default.
type TrainConfig struct {
	Rate       float64 `json:"rate,omitempty"`
	Iterations int     `json:"iterations,omitempty"`
	Error      float64 `json:"error,omitempty"`
	Shuffle    *bool   `json:"shuffle,omitempty"`
	Cost       string  `json:"cost,omitempty"`
}
