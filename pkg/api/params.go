package api

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"time"
)

// Defaults supplies the values used when a request omits a parameter.
type Defaults struct {
	Model             string
	MaxTokens         int
	EnhancedMaxTokens int
	Temperature       float64
	TopK              int
	EnhancedTopK      int
}

// DefaultDefaults returns the built-in request defaults.
func DefaultDefaults() Defaults {
	return Defaults{
		Model:             "default",
		MaxTokens:         500,
		EnhancedMaxTokens: 800,
		Temperature:       0.7,
		TopK:              5,
		EnhancedTopK:      3,
	}
}

// GenerateParams are the parameters of a generate request.
type GenerateParams struct {
	Model       string
	MaxTokens   int
	Temperature float64
}

// RAGParams are the parameters of a rag_query request.
type RAGParams struct {
	TopK int
}

// ToolCallParams are the parameters of a tool_call request.
type ToolCallParams struct {
	ToolName   string
	ToolParams map[string]any
}

// MultimodalParams are the parameters of a multimodal request.
type MultimodalParams struct {
	Modality  string
	InputData any
}

// EnhancedParams are the parameters of an enhanced request.
type EnhancedParams struct {
	UseRAG      bool
	TopK        int
	Model       string
	MaxTokens   int
	Temperature float64
}

// GenerateParams decodes the generate payload of r.
func (r *Request) GenerateParams(d Defaults) (GenerateParams, error) {
	var (
		p   = GenerateParams{Model: d.Model, MaxTokens: d.MaxTokens, Temperature: d.Temperature}
		err error
	)
	if p.Model, err = StringParam(r.Parameters, "model", p.Model); err != nil {
		return p, err
	}
	if p.MaxTokens, err = IntParam(r.Parameters, "max_tokens", p.MaxTokens); err != nil {
		return p, err
	}
	if p.MaxTokens <= 0 {
		return p, NewValidationError("max_tokens", "max_tokens must be positive")
	}
	if p.Temperature, err = FloatParam(r.Parameters, "temperature", p.Temperature); err != nil {
		return p, err
	}
	if p.Temperature < 0 || p.Temperature > 2 {
		return p, NewValidationError("temperature", "temperature must be between 0.0 and 2.0")
	}
	return p, nil
}

// RAGParams decodes the rag_query payload of r.
func (r *Request) RAGParams(d Defaults) (RAGParams, error) {
	k, err := IntParam(r.Parameters, "top_k", d.TopK)
	if err != nil {
		return RAGParams{}, err
	}
	if k < 0 {
		return RAGParams{}, NewValidationError("top_k", "top_k must not be negative")
	}
	return RAGParams{TopK: k}, nil
}

// ToolCallParams decodes the tool_call payload of r. A missing tool_name is
// a validation error, never a not-found error.
func (r *Request) ToolCallParams() (ToolCallParams, error) {
	name, err := StringParam(r.Parameters, "tool_name", "")
	if err != nil {
		return ToolCallParams{}, err
	}
	if name == "" {
		return ToolCallParams{}, NewValidationError("tool_name", "tool_name is required")
	}
	p := ToolCallParams{ToolName: name, ToolParams: map[string]any{}}
	switch v := r.Parameters["tool_params"].(type) {
	case nil:
	case map[string]any:
		p.ToolParams = v
	default:
		return p, NewValidationError("tool_params", fmt.Sprintf("tool_params must be an object, got %T", v))
	}
	return p, nil
}

// MultimodalParams decodes the multimodal payload of r.
func (r *Request) MultimodalParams() (MultimodalParams, error) {
	modality, err := StringParam(r.Parameters, "modality", "")
	if err != nil {
		return MultimodalParams{}, err
	}
	if modality == "" {
		return MultimodalParams{}, NewValidationError("modality", "modality is required")
	}
	return MultimodalParams{Modality: modality, InputData: r.Parameters["input_data"]}, nil
}

// EnhancedParams decodes the enhanced payload of r.
func (r *Request) EnhancedParams(d Defaults) (EnhancedParams, error) {
	p := EnhancedParams{
		UseRAG:      true,
		TopK:        d.EnhancedTopK,
		Model:       d.Model,
		MaxTokens:   d.EnhancedMaxTokens,
		Temperature: d.Temperature,
	}
	var err error
	if p.UseRAG, err = BoolParam(r.Parameters, "use_rag", p.UseRAG); err != nil {
		return p, err
	}
	if p.Model, err = StringParam(r.Parameters, "model", p.Model); err != nil {
		return p, err
	}
	if p.MaxTokens, err = IntParam(r.Parameters, "max_tokens", p.MaxTokens); err != nil {
		return p, err
	}
	if p.MaxTokens <= 0 {
		return p, NewValidationError("max_tokens", "max_tokens must be positive")
	}
	if p.Temperature, err = FloatParam(r.Parameters, "temperature", p.Temperature); err != nil {
		return p, err
	}
	if p.Temperature < 0 || p.Temperature > 2 {
		return p, NewValidationError("temperature", "temperature must be between 0.0 and 2.0")
	}
	return p, nil
}

// MaxTimeout bounds the timeout_ms request parameter.
const MaxTimeout = 24 * time.Hour

// Timeout returns the per-request deadline from the timeout_ms parameter,
// or zero when absent.
func (r *Request) Timeout() (time.Duration, error) {
	ms, err := IntParam(r.Parameters, "timeout_ms", 0)
	if err != nil {
		return 0, err
	}
	if ms < 0 {
		return 0, NewValidationError("timeout_ms", "timeout_ms must not be negative")
	}
	if int64(ms) > MaxTimeout.Milliseconds() {
		return 0, NewValidationError("timeout_ms",
			fmt.Sprintf("timeout_ms must not exceed %d", MaxTimeout.Milliseconds()))
	}
	return time.Duration(ms) * time.Millisecond, nil
}

// StringParam reads an optional string parameter. Missing or empty values
// yield def; other types yield a validation error naming key.
func StringParam(params map[string]any, key, def string) (string, error) {
	switch v := params[key].(type) {
	case nil:
		return def, nil
	case string:
		if v == "" {
			return def, nil
		}
		return v, nil
	default:
		return def, NewValidationError(key, fmt.Sprintf("%s must be a string, got %T", key, v))
	}
}

// IntParam reads an optional integer parameter, accepting JSON numbers and
// numeric strings.
func IntParam(params map[string]any, key string, def int) (int, error) {
	switch v := params[key].(type) {
	case nil:
		return def, nil
	case int:
		return v, nil
	case int64:
		if v < math.MinInt || v > math.MaxInt {
			return def, outOfRange(key)
		}
		return int(v), nil
	case float64:
		if v != math.Trunc(v) {
			return def, NewValidationError(key, fmt.Sprintf("%s must be an integer", key))
		}
		// float64(math.MaxInt) rounds up to 2^63, which does not fit.
		if v < math.MinInt || v >= math.MaxInt {
			return def, outOfRange(key)
		}
		return int(v), nil
	case json.Number:
		n, err := v.Int64()
		if err != nil {
			return def, NewValidationError(key, fmt.Sprintf("%s must be an integer", key))
		}
		if n < math.MinInt || n > math.MaxInt {
			return def, outOfRange(key)
		}
		return int(n), nil
	case string:
		n, err := strconv.Atoi(v)
		if err != nil {
			return def, NewValidationError(key, fmt.Sprintf("%s must be an integer", key))
		}
		return n, nil
	default:
		return def, NewValidationError(key, fmt.Sprintf("%s must be an integer, got %T", key, v))
	}
}

func outOfRange(key string) *APIError {
	return NewValidationError(key, fmt.Sprintf("%s is out of range", key))
}

// FloatParam reads an optional numeric parameter.
func FloatParam(params map[string]any, key string, def float64) (float64, error) {
	switch v := params[key].(type) {
	case nil:
		return def, nil
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int:
		return float64(v), nil
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return def, NewValidationError(key, fmt.Sprintf("%s must be a number", key))
		}
		return f, nil
	case string:
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return def, NewValidationError(key, fmt.Sprintf("%s must be a number", key))
		}
		return f, nil
	default:
		return def, NewValidationError(key, fmt.Sprintf("%s must be a number, got %T", key, v))
	}
}

// BoolParam reads an optional boolean parameter.
func BoolParam(params map[string]any, key string, def bool) (bool, error) {
	switch v := params[key].(type) {
	case nil:
		return def, nil
	case bool:
		return v, nil
	case string:
		b, err := strconv.ParseBool(v)
		if err != nil {
			return def, NewValidationError(key, fmt.Sprintf("%s must be a boolean", key))
		}
		return b, nil
	default:
		return def, NewValidationError(key, fmt.Sprintf("%s must be a boolean, got %T", key, v))
	}
}
