package tools

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rhuss/lokal/pkg/api"
	"github.com/rhuss/lokal/pkg/observability"
)

func echoTool(name string, required ...string) Tool {
	return Tool{
		Definition: Definition{
			Name:        name,
			Description: "echoes its parameters",
			Parameters: ObjectSchema(map[string]Property{
				"text": {Type: "string", Description: "text to echo"},
			}, required...),
		},
		Handler: HandlerFunc(func(ctx context.Context, params map[string]any) (any, error) {
			return params["text"], nil
		}),
	}
}

func apiErrorType(t *testing.T, err error) api.ErrorType {
	t.Helper()
	var apiErr *api.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("error %v is not an *api.APIError", err)
	}
	return apiErr.Type
}

func TestRegistry_Invoke(t *testing.T) {
	r := NewRegistry()
	r.Register(echoTool("echo", "text"))

	res, err := r.Invoke(context.Background(), "echo", map[string]any{"text": "hi"})
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if res.Tool != "echo" || res.Output != "hi" {
		t.Errorf("result = %+v", res)
	}
}

func TestRegistry_UnknownToolListsNames(t *testing.T) {
	r := NewRegistry()
	r.Register(echoTool("zeta"))
	r.Register(echoTool("alpha"))

	_, err := r.Invoke(context.Background(), "missing", nil)
	if got := apiErrorType(t, err); got != api.ErrorTypeNotFound {
		t.Fatalf("error type = %q, want not_found", got)
	}
	if !strings.Contains(err.Error(), "alpha, zeta") {
		t.Errorf("error %q should list sorted tool names", err)
	}
}

func TestRegistry_MissingRequiredParam(t *testing.T) {
	var called atomic.Bool
	r := NewRegistry()
	r.Register(Tool{
		Definition: Definition{
			Name:       "needs_path",
			Parameters: ObjectSchema(map[string]Property{"file_path": {Type: "string"}}, "file_path"),
		},
		Handler: HandlerFunc(func(ctx context.Context, params map[string]any) (any, error) {
			called.Store(true)
			return nil, nil
		}),
	})

	for _, params := range []map[string]any{nil, {}, {"file_path": nil}} {
		_, err := r.Invoke(context.Background(), "needs_path", params)
		if got := apiErrorType(t, err); got != api.ErrorTypeInvalidRequest {
			t.Errorf("params %v: error type = %q, want invalid_request", params, got)
		}
		var apiErr *api.APIError
		errors.As(err, &apiErr)
		if apiErr.Param != "file_path" {
			t.Errorf("Param = %q, want file_path", apiErr.Param)
		}
	}
	if called.Load() {
		t.Error("handler must not run when a required parameter is missing")
	}
}

func TestRegistry_HandlerErrors(t *testing.T) {
	r := NewRegistry()
	r.Register(Tool{
		Definition: Definition{Name: "fails"},
		Handler: HandlerFunc(func(ctx context.Context, params map[string]any) (any, error) {
			return nil, errors.New("disk on fire")
		}),
	})
	r.Register(Tool{
		Definition: Definition{Name: "panics"},
		Handler: HandlerFunc(func(ctx context.Context, params map[string]any) (any, error) {
			panic("boom")
		}),
	})

	before := testutil.ToFloat64(observability.ToolExecutionsTotal.WithLabelValues("fails", "error"))

	_, err := r.Invoke(context.Background(), "fails", nil)
	if got := apiErrorType(t, err); got != api.ErrorTypeProviderError {
		t.Errorf("handler error type = %q, want provider_error", got)
	}
	if !strings.Contains(err.Error(), "disk on fire") {
		t.Errorf("error %q should carry the handler message", err)
	}
	if after := testutil.ToFloat64(observability.ToolExecutionsTotal.WithLabelValues("fails", "error")); after != before+1 {
		t.Errorf("error counter = %v, want %v", after, before+1)
	}

	res, err := r.Invoke(context.Background(), "panics", nil)
	if res != nil {
		t.Errorf("result = %+v, want nil after panic", res)
	}
	if got := apiErrorType(t, err); got != api.ErrorTypeProviderError {
		t.Errorf("panic error type = %q, want provider_error", got)
	}
}

func TestRegistry_LastRegistrationWins(t *testing.T) {
	r := NewRegistry()
	r.Register(echoTool("t"))
	r.Register(Tool{
		Definition: Definition{Name: "t", Description: "second"},
		Handler: HandlerFunc(func(ctx context.Context, params map[string]any) (any, error) {
			return "second", nil
		}),
	})

	if r.Len() != 1 {
		t.Errorf("Len() = %d, want 1", r.Len())
	}
	res, _ := r.Invoke(context.Background(), "t", nil)
	if res.Output != "second" {
		t.Errorf("Output = %v, want second", res.Output)
	}
	if def, _ := r.Get("t"); def.Parameters.Type != "object" {
		t.Errorf("empty schema should default to object, got %q", def.Parameters.Type)
	}
}

func TestRegistry_ListSorted(t *testing.T) {
	r := NewRegistry()
	for _, n := range []string{"c", "a", "b"} {
		r.Register(echoTool(n))
	}
	defs := r.List()
	if len(defs) != 3 || defs[0].Name != "a" || defs[2].Name != "c" {
		t.Errorf("List() = %v", defs)
	}
}

func TestRegistry_ConcurrentRegisterAndInvoke(t *testing.T) {
	r := NewRegistry()
	r.Register(echoTool("echo"))

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			r.Register(echoTool("echo"))
		}()
		go func() {
			defer wg.Done()
			if _, err := r.Invoke(context.Background(), "echo", map[string]any{"text": "x"}); err != nil {
				t.Errorf("Invoke: %v", err)
			}
		}()
	}
	wg.Wait()
}

func TestFilterDefinitions(t *testing.T) {
	defs := []Definition{{Name: "a"}, {Name: "b"}, {Name: "c"}}

	tests := []struct {
		name    string
		allowed []string
		want    []string
	}{
		{"no filter", nil, []string{"a", "b", "c"}},
		{"subset keeps order", []string{"c", "a"}, []string{"a", "c"}},
		{"unknown names", []string{"x"}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FilterDefinitions(defs, tt.allowed)
			if len(got) != len(tt.want) {
				t.Fatalf("got %d definitions, want %d", len(got), len(tt.want))
			}
			for i := range got {
				if got[i].Name != tt.want[i] {
					t.Errorf("got[%d] = %q, want %q", i, got[i].Name, tt.want[i])
				}
			}
		})
	}
}
