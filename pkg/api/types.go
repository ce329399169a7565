package api

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Kind selects which capability handles a request. The set is closed.
type Kind string

const (
	KindGenerate   Kind = "generate"
	KindRAGQuery   Kind = "rag_query"
	KindToolCall   Kind = "tool_call"
	KindMultimodal Kind = "multimodal"
	KindEnhanced   Kind = "enhanced"
)

// Kinds lists every valid Kind in routing order.
var Kinds = []Kind{KindGenerate, KindRAGQuery, KindToolCall, KindMultimodal, KindEnhanced}

// Valid reports whether k is one of the known kinds.
func (k Kind) Valid() bool {
	for _, known := range Kinds {
		if k == known {
			return true
		}
	}
	return false
}

// ParseKind converts a string into a Kind. Matching is case-insensitive and
// accepts dashes in place of underscores ("rag-query").
func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "-", "_"))
	if !k.Valid() {
		return "", NewValidationError("kind", fmt.Sprintf("unknown request kind %q", s))
	}
	return k, nil
}

// Request is a single unit of work for the engine.
type Request struct {
	ID         string         `json:"id,omitempty"`
	Kind       Kind           `json:"kind"`
	Prompt     string         `json:"prompt"`
	Parameters map[string]any `json:"parameters,omitempty"`
	Context    map[string]any `json:"context,omitempty"`
}

// Clone returns a copy of r whose maps can be modified independently.
// Nested values are shared.
func (r *Request) Clone() *Request {
	c := *r
	if r.Parameters != nil {
		c.Parameters = make(map[string]any, len(r.Parameters))
		for k, v := range r.Parameters {
			c.Parameters[k] = v
		}
	}
	if r.Context != nil {
		c.Context = make(map[string]any, len(r.Context))
		for k, v := range r.Context {
			c.Context[k] = v
		}
	}
	return &c
}

// Response is the outcome of one processed request.
type Response struct {
	ID             string         `json:"id"`
	Success        bool           `json:"success"`
	Result         any            `json:"result,omitempty"`
	Metadata       map[string]any `json:"metadata,omitempty"`
	Error          *APIError      `json:"error,omitempty"`
	ProcessingTime time.Duration  `json:"-"`
}

type responseJSON struct {
	ID             string         `json:"id"`
	Success        bool           `json:"success"`
	Result         any            `json:"result,omitempty"`
	Metadata       map[string]any `json:"metadata,omitempty"`
	Error          *APIError      `json:"error,omitempty"`
	ProcessingTime float64        `json:"processing_time"`
}

// MarshalJSON encodes ProcessingTime as fractional seconds.
func (r Response) MarshalJSON() ([]byte, error) {
	return json.Marshal(responseJSON{
		ID:             r.ID,
		Success:        r.Success,
		Result:         r.Result,
		Metadata:       r.Metadata,
		Error:          r.Error,
		ProcessingTime: r.ProcessingTime.Seconds(),
	})
}

// UnmarshalJSON decodes ProcessingTime from fractional seconds.
func (r *Response) UnmarshalJSON(data []byte) error {
	var raw responseJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*r = Response{
		ID:             raw.ID,
		Success:        raw.Success,
		Result:         raw.Result,
		Metadata:       raw.Metadata,
		Error:          raw.Error,
		ProcessingTime: time.Duration(raw.ProcessingTime * float64(time.Second)),
	}
	return nil
}

// Clone returns a copy of r whose Metadata and Error can be modified
// independently. Result is shared.
func (r *Response) Clone() *Response {
	c := *r
	if r.Metadata != nil {
		c.Metadata = make(map[string]any, len(r.Metadata))
		for k, v := range r.Metadata {
			c.Metadata[k] = v
		}
	}
	if r.Error != nil {
		e := *r.Error
		c.Error = &e
	}
	return &c
}

// Failure builds an unsuccessful Response for the request id.
func Failure(id string, err *APIError) *Response {
	return &Response{ID: id, Success: false, Error: err}
}
