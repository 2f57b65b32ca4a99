package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	json5 "github.com/yosuke-furukawa/json5/encoding/json5"

	"github.com/psichix/opennn-go/pkg/nnwire"
)

// readJSON5 decodes a user-authored data file. Comments and trailing commas
// are allowed. The document is normalised to plain JSON before it reaches v, so
// custom unmarshalers only ever see strict JSON.
func readJSON5(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var doc any
	if err := json5.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	normalised, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	if err := json.Unmarshal(normalised, v); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

// trainOptions is the --train-config file: trainer options plus an optional
// output range given as [from, to] or {from, to}.
type trainOptions struct {
	nnwire.TrainConfig
	Range *nnwire.Range `json:"range,omitempty"`
}

func readTrainOptions(path string) (*nnwire.TrainConfig, *nnwire.Range, error) {
	var opts trainOptions
	if err := readJSON5(path, &opts); err != nil {
		return nil, nil, err
	}
	return &opts.TrainConfig, opts.Range, nil
}

func readDescriptor(path string) (nnwire.Request, error) {
	var req map[string]any
	if err := readJSON5(path, &req); err != nil {
		return nil, err
	}
	return nnwire.Request(req), nil
}

// parseRange parses "from,to". An empty string means no range.
func parseRange(raw string) (*nnwire.Range, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	parts := strings.Split(raw, ",")
	if len(parts) != 2 {
		return nil, fmt.Errorf("range must be from,to: %q", raw)
	}
	var pair [2]float64
	for i, part := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid range bound %q: %w", part, err)
		}
		pair[i] = v
	}
	return nnwire.PairRange(pair), nil
}

func parseInts(args []string) ([]int, error) {
	out := make([]int, 0, len(args))
	for _, arg := range args {
		v, err := strconv.Atoi(arg)
		if err != nil {
			return nil, fmt.Errorf("invalid layer size %q", arg)
		}
		out = append(out, v)
	}
	return out, nil
}
