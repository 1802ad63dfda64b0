// Package decision validates the structured trade decision returned by the
// reasoning step. The payload is untrusted text; nothing downstream sees it
// until Parse has turned it into a Decision.
package decision

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

type Action string

const (
	Buy        Action = "BUY"
	Sell       Action = "SELL"
	Close      Action = "CLOSE"
	CloseLong  Action = "CLOSE_LONG"
	CloseShort Action = "CLOSE_SHORT"
	Hold       Action = "HOLD"

	// Invalid marks a decision-log entry for a cycle whose decision could not
	// be produced or parsed.
	Invalid Action = "INVALID"
)

// Known reports whether a is one of the actions the reasoning step may emit.
func (a Action) Known() bool {
	switch a {
	case Buy, Sell, Close, CloseLong, CloseShort, Hold:
		return true
	}
	return false
}

// Executable reports whether a leads to an order attempt.
func (a Action) Executable() bool {
	return a.Known() && a != Hold
}

// IsClose reports whether a only ever reduces exposure.
func (a Action) IsClose() bool {
	return a == Close || a == CloseLong || a == CloseShort
}

var ErrMalformed = errors.New("malformed decision")

// Decision is a validated reasoning result.
type Decision struct {
	Action    Action
	Quantity  float64
	Reasoning string

	// Raw is the JSON object the decision was read from.
	Raw json.RawMessage
	// Payload holds every field of Raw, including ones the pipeline ignores.
	Payload map[string]any
}

// Parse reads text strictly as a JSON object. When the text is not JSON it
// falls back to the outermost {...} fragment embedded in it.
func Parse(text string) (Decision, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return Decision{}, fmt.Errorf("%w: empty response", ErrMalformed)
	}

	obj, err := decodeObject([]byte(trimmed))
	if err != nil {
		fragment, ok := extractObject(trimmed)
		if !ok {
			return Decision{}, fmt.Errorf("%w: no JSON object found in response", ErrMalformed)
		}
		obj, err = decodeObject([]byte(fragment))
		if err != nil {
			return Decision{}, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		trimmed = fragment
	}
	return fromObject(json.RawMessage(trimmed), obj)
}

func decodeObject(b []byte) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	var obj map[string]any
	if err := dec.Decode(&obj); err != nil {
		return nil, err
	}
	if dec.More() {
		return nil, errors.New("trailing data after JSON object")
	}
	if obj == nil {
		return nil, errors.New("JSON value is not an object")
	}
	return obj, nil
}

func extractObject(s string) (string, bool) {
	start := strings.IndexByte(s, '{')
	end := strings.LastIndexByte(s, '}')
	if start < 0 || end <= start {
		return "", false
	}
	return s[start : end+1], true
}

func fromObject(raw json.RawMessage, obj map[string]any) (Decision, error) {
	rawAction, ok := obj["action"]
	if !ok {
		return Decision{}, fmt.Errorf("%w: missing action", ErrMalformed)
	}
	action, ok := rawAction.(string)
	if !ok || strings.TrimSpace(action) == "" {
		return Decision{}, fmt.Errorf("%w: action must be a non-empty string", ErrMalformed)
	}

	qty, err := quantity(obj["quantity"])
	if err != nil {
		return Decision{}, err
	}

	reasoning, _ := obj["reasoning"].(string)

	return Decision{
		Action:    Action(strings.ToUpper(strings.TrimSpace(action))),
		Quantity:  qty,
		Reasoning: reasoning,
		Raw:       raw,
		Payload:   obj,
	}, nil
}

func quantity(v any) (float64, error) {
	var (
		q   float64
		err error
	)
	switch t := v.(type) {
	case nil:
		return 0, nil
	case json.Number:
		q, err = t.Float64()
	case string:
		if strings.TrimSpace(t) == "" {
			return 0, nil
		}
		q, err = strconv.ParseFloat(strings.TrimSpace(t), 64)
	default:
		return 0, fmt.Errorf("%w: quantity must be a number, got %T", ErrMalformed, v)
	}
	if err != nil {
		return 0, fmt.Errorf("%w: quantity: %v", ErrMalformed, err)
	}
	if math.IsNaN(q) || math.IsInf(q, 0) || q < 0 {
		return 0, fmt.Errorf("%w: quantity must be a finite non-negative number, got %v", ErrMalformed, q)
	}
	return q, nil
}
