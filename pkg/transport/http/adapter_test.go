package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rhuss/lokal/pkg/api"
	"github.com/rhuss/lokal/pkg/contextstore"
	"github.com/rhuss/lokal/pkg/engine"
	"github.com/rhuss/lokal/pkg/provider/mock"
	"github.com/rhuss/lokal/pkg/retrieval"
	"github.com/rhuss/lokal/pkg/tools"
	"github.com/rhuss/lokal/pkg/transport"
)

func newTestEngine(gen *mock.Generator) *engine.Engine {
	svc := engine.Services{
		Documents: retrieval.New(mock.NewHashEmbedder(0), nil),
		Contexts:  contextstore.New(nil),
		Tools:     tools.NewRegistry(),
	}
	if gen != nil {
		svc.Generator = gen
	}
	return engine.New(svc, engine.DefaultConfig())
}

func newTestAdapter(t *testing.T, eng *engine.Engine) (*Adapter, *httptest.Server) {
	t.Helper()
	a := NewAdapter(eng, DefaultConfig(), transport.Recovery(), transport.RequestID())
	srv := httptest.NewServer(a.Handler())
	t.Cleanup(srv.Close)
	return a, srv
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal error: %v", err)
	}
	resp, err := http.Post(url, "application/json", bytes.NewReader(data))
	if err != nil {
		t.Fatalf("POST error: %v", err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func getJSON(t *testing.T, url string) *http.Response {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET error: %v", err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	return v
}

func TestProcessReturnsJSON(t *testing.T) {
	_, srv := newTestAdapter(t, newTestEngine(mock.NewGenerator()))

	resp := postJSON(t, srv.URL+"/v1/requests", api.Request{Kind: api.KindGenerate, Prompt: "hello there"})

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want %q", ct, "application/json")
	}

	got := decode[api.Response](t, resp)
	if !got.Success {
		t.Fatalf("Success = false: %+v", got.Error)
	}
	if !api.ValidateRequestID(got.ID) {
		t.Errorf("ID = %q, want a generated request ID", got.ID)
	}
	if h := resp.Header.Get("X-Request-ID"); h != got.ID {
		t.Errorf("X-Request-ID = %q, want %q", h, got.ID)
	}
}

func TestProcessUsesHeaderRequestID(t *testing.T) {
	_, srv := newTestAdapter(t, newTestEngine(mock.NewGenerator()))

	req, _ := http.NewRequest(http.MethodPost, srv.URL+"/v1/requests",
		strings.NewReader(`{"kind":"generate","prompt":"hi"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-ID", "client-chosen")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("POST error: %v", err)
	}
	defer resp.Body.Close()

	got := decode[api.Response](t, resp)
	if got.ID != "client-chosen" {
		t.Errorf("ID = %q, want %q", got.ID, "client-chosen")
	}
}

func TestProcessErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		gen        *mock.Generator
		body       api.Request
		wantStatus int
		wantType   api.ErrorType
	}{
		{"unknown kind", mock.NewGenerator(), api.Request{Kind: "translate", Prompt: "x"}, http.StatusBadRequest, api.ErrorTypeInvalidRequest},
		{"missing prompt", mock.NewGenerator(), api.Request{Kind: api.KindGenerate}, http.StatusBadRequest, api.ErrorTypeInvalidRequest},
		{"no generator", nil, api.Request{Kind: api.KindGenerate, Prompt: "x"}, http.StatusServiceUnavailable, api.ErrorTypeProviderUnavailable},
		{"generator fails", &mock.Generator{Err: errors.New("boom")}, api.Request{Kind: api.KindGenerate, Prompt: "x"}, http.StatusBadGateway, api.ErrorTypeProviderError},
		{"unknown tool", mock.NewGenerator(), api.Request{Kind: api.KindToolCall, Parameters: map[string]any{"tool_name": "nope"}}, http.StatusNotFound, api.ErrorTypeNotFound},
		{
			"deadline", &mock.Generator{Latency: time.Second},
			api.Request{Kind: api.KindGenerate, Prompt: "x", Parameters: map[string]any{"timeout_ms": 20}},
			http.StatusGatewayTimeout, api.ErrorTypeProviderTimeout,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, srv := newTestAdapter(t, newTestEngine(tt.gen))
			resp := postJSON(t, srv.URL+"/v1/requests", tt.body)

			if resp.StatusCode != tt.wantStatus {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.wantStatus)
			}
			got := decode[api.Response](t, resp)
			if got.Success || got.Error == nil || got.Error.Type != tt.wantType {
				t.Errorf("response = %+v (error %+v), want error type %q", got, got.Error, tt.wantType)
			}
		})
	}
}

func TestInvalidJSONBodyReturns400(t *testing.T) {
	_, srv := newTestAdapter(t, newTestEngine(mock.NewGenerator()))

	resp, err := http.Post(srv.URL+"/v1/requests", "application/json", strings.NewReader("{not json"))
	if err != nil {
		t.Fatalf("POST error: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusBadRequest)
	}
	errResp := decode[api.ErrorResponse](t, resp)
	if errResp.Error == nil || errResp.Error.Type != api.ErrorTypeInvalidRequest {
		t.Errorf("error = %+v, want invalid_request", errResp.Error)
	}
}

func TestOversizedBodyReturns413(t *testing.T) {
	a := NewAdapter(newTestEngine(mock.NewGenerator()), Config{MaxBodySize: 64})
	srv := httptest.NewServer(a.Handler())
	defer srv.Close()

	body := `{"kind":"generate","prompt":"` + strings.Repeat("a", 200) + `"}`
	resp, err := http.Post(srv.URL+"/v1/requests", "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("POST error: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusRequestEntityTooLarge {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusRequestEntityTooLarge)
	}
}

func TestWrongContentTypeReturns415(t *testing.T) {
	_, srv := newTestAdapter(t, newTestEngine(mock.NewGenerator()))

	resp, err := http.Post(srv.URL+"/v1/requests", "text/plain", strings.NewReader("{}"))
	if err != nil {
		t.Fatalf("POST error: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusUnsupportedMediaType {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusUnsupportedMediaType)
	}
}

func TestContentTypeWithCharsetAccepted(t *testing.T) {
	_, srv := newTestAdapter(t, newTestEngine(mock.NewGenerator()))

	resp, err := http.Post(srv.URL+"/v1/requests", "application/json; charset=utf-8",
		strings.NewReader(`{"kind":"generate","prompt":"hi"}`))
	if err != nil {
		t.Fatalf("POST error: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
}

func TestUnknownPathReturns404(t *testing.T) {
	_, srv := newTestAdapter(t, newTestEngine(nil))

	resp := getJSON(t, srv.URL+"/v1/nonexistent")
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusNotFound)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	_, srv := newTestAdapter(t, newTestEngine(nil))

	req, _ := http.NewRequest(http.MethodPut, srv.URL+"/v1/requests", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("PUT error: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusMethodNotAllowed)
	}
}

func TestGetReturnsRecordedResponse(t *testing.T) {
	_, srv := newTestAdapter(t, newTestEngine(mock.NewGenerator()))

	postJSON(t, srv.URL+"/v1/requests", api.Request{ID: "req_lookup", Kind: api.KindGenerate, Prompt: "hi"})

	resp := getJSON(t, srv.URL+"/v1/requests/req_lookup")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	got := decode[api.Response](t, resp)
	if got.ID != "req_lookup" || !got.Success {
		t.Errorf("response = %+v, want successful req_lookup", got)
	}
}

func TestGetUnknownIDReturns404(t *testing.T) {
	_, srv := newTestAdapter(t, newTestEngine(nil))

	resp := getJSON(t, srv.URL+"/v1/requests/req_missing")
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusNotFound)
	}
}

func TestDeleteUnknownIDReturns404(t *testing.T) {
	_, srv := newTestAdapter(t, newTestEngine(nil))

	req, _ := http.NewRequest(http.MethodDelete, srv.URL+"/v1/requests/req_missing", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("DELETE error: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusNotFound)
	}
}

func TestDeleteCancelsInFlightRequest(t *testing.T) {
	a, srv := newTestAdapter(t, newTestEngine(&mock.Generator{Latency: 5 * time.Second}))

	type result struct {
		status int
		resp   api.Response
	}
	done := make(chan result, 1)
	go func() {
		data, _ := json.Marshal(api.Request{ID: "req_slow", Kind: api.KindGenerate, Prompt: "wait"})
		resp, err := http.Post(srv.URL+"/v1/requests", "application/json", bytes.NewReader(data))
		if err != nil {
			done <- result{}
			return
		}
		defer resp.Body.Close()
		var got api.Response
		json.NewDecoder(resp.Body).Decode(&got)
		done <- result{status: resp.StatusCode, resp: got}
	}()

	deadline := time.Now().Add(2 * time.Second)
	for a.inflight.Len() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("request was never registered as in flight")
		}
		time.Sleep(5 * time.Millisecond)
	}

	req, _ := http.NewRequest(http.MethodDelete, srv.URL+"/v1/requests/req_slow", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("DELETE error: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("DELETE status = %d, want %d", resp.StatusCode, http.StatusNoContent)
	}

	select {
	case r := <-done:
		if r.status != http.StatusGatewayTimeout {
			t.Errorf("POST status = %d, want %d", r.status, http.StatusGatewayTimeout)
		}
		if r.resp.Error == nil || r.resp.Error.Type != api.ErrorTypeProviderTimeout {
			t.Errorf("error = %+v, want provider_timeout", r.resp.Error)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("cancelled request did not complete")
	}
	if a.inflight.Len() != 0 {
		t.Errorf("in-flight entries = %d, want 0", a.inflight.Len())
	}
}

func TestStatusAndCapabilities(t *testing.T) {
	_, srv := newTestAdapter(t, newTestEngine(mock.NewGenerator()))

	postJSON(t, srv.URL+"/v1/requests", api.Request{Kind: api.KindGenerate, Prompt: "hi"})
	postJSON(t, srv.URL+"/v1/requests", api.Request{Kind: api.KindGenerate})

	status := decode[engine.Status](t, getJSON(t, srv.URL+"/v1/status"))
	if !status.Initialized {
		t.Error("Initialized = false, want true")
	}
	if status.RequestCount != 2 || status.ResponseCount != 2 {
		t.Errorf("counts = (%d, %d), want (2, 2)", status.RequestCount, status.ResponseCount)
	}
	if status.SuccessRate != 0.5 {
		t.Errorf("SuccessRate = %v, want 0.5", status.SuccessRate)
	}

	caps := decode[engine.Capabilities](t, getJSON(t, srv.URL+"/v1/capabilities"))
	if !caps.Services[engine.ServiceGeneration] {
		t.Errorf("Services = %v, want %s available", caps.Services, engine.ServiceGeneration)
	}
	if len(caps.Kinds) != len(api.Kinds) {
		t.Errorf("Kinds = %v, want %v", caps.Kinds, api.Kinds)
	}
}

func TestDocumentsAddAndSearch(t *testing.T) {
	_, srv := newTestAdapter(t, newTestEngine(nil))

	resp := postJSON(t, srv.URL+"/v1/documents", map[string]any{
		"documents": []map[string]any{
			{"content": "Go channels connect goroutines.", "metadata": map[string]any{"topic": "go"}},
			{"content": "Postgres stores rows in heap pages."},
		},
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusCreated)
	}
	added := decode[struct{ IDs []string }](t, resp)
	if len(added.IDs) != 2 {
		t.Fatalf("ids = %v, want 2", added.IDs)
	}

	single := postJSON(t, srv.URL+"/v1/documents", map[string]any{"content": "A single document."})
	if single.StatusCode != http.StatusCreated {
		t.Errorf("single document status = %d, want %d", single.StatusCode, http.StatusCreated)
	}

	search := getJSON(t, srv.URL+"/v1/documents/search?q=Go+channels+connect+goroutines.&top_k=1")
	if search.StatusCode != http.StatusOK {
		t.Fatalf("search status = %d, want %d", search.StatusCode, http.StatusOK)
	}
	got := decode[struct {
		Results []retrieval.Source `json:"results"`
	}](t, search)
	if len(got.Results) != 1 {
		t.Fatalf("results = %d, want 1", len(got.Results))
	}
	if got.Results[0].ID != added.IDs[0] {
		t.Errorf("top result = %q, want %q", got.Results[0].ID, added.IDs[0])
	}
}

func TestDocumentsValidation(t *testing.T) {
	_, srv := newTestAdapter(t, newTestEngine(nil))

	tests := []struct {
		name string
		body any
	}{
		{"empty body", map[string]any{}},
		{"blank content", map[string]any{"documents": []map[string]any{{"content": "  "}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := postJSON(t, srv.URL+"/v1/documents", tt.body)
			if resp.StatusCode != http.StatusBadRequest {
				t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusBadRequest)
			}
		})
	}

	if resp := getJSON(t, srv.URL+"/v1/documents/search"); resp.StatusCode != http.StatusBadRequest {
		t.Errorf("search without q status = %d, want %d", resp.StatusCode, http.StatusBadRequest)
	}
	if resp := getJSON(t, srv.URL+"/v1/documents/search?q=x&top_k=-1"); resp.StatusCode != http.StatusBadRequest {
		t.Errorf("negative top_k status = %d, want %d", resp.StatusCode, http.StatusBadRequest)
	}
}

func TestDocumentsWithoutRetrieval(t *testing.T) {
	eng := engine.New(engine.Services{}, engine.DefaultConfig())
	_, srv := newTestAdapter(t, eng)

	resp := postJSON(t, srv.URL+"/v1/documents", map[string]any{"content": "x"})
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusServiceUnavailable)
	}
}

func TestContextsLifecycle(t *testing.T) {
	_, srv := newTestAdapter(t, newTestEngine(nil))

	resp := postJSON(t, srv.URL+"/v1/contexts", map[string]any{
		"name":     "Release notes",
		"content":  "Version 2 adds streaming ingestion.",
		"metadata": map[string]any{"type": "notes"},
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusCreated)
	}
	created := decode[map[string]string](t, resp)
	id := created["id"]

	conv := postJSON(t, srv.URL+"/v1/contexts", map[string]any{
		"conversation_id": "c1",
		"messages":        []map[string]string{{"role": "user", "content": "hello"}},
	})
	if conv.StatusCode != http.StatusCreated {
		t.Errorf("conversation status = %d, want %d", conv.StatusCode, http.StatusCreated)
	}

	rec := decode[contextstore.Record](t, getJSON(t, srv.URL+"/v1/contexts/"+id))
	if rec.Name != "Release notes" {
		t.Errorf("Name = %q, want %q", rec.Name, "Release notes")
	}

	found := decode[struct {
		Contexts []contextstore.Record `json:"contexts"`
	}](t, getJSON(t, srv.URL+"/v1/contexts?q=streaming"))
	if len(found.Contexts) != 1 || found.Contexts[0].ID != id {
		t.Errorf("search = %+v, want only %s", found.Contexts, id)
	}

	if resp := getJSON(t, srv.URL+"/v1/contexts/ctx_missing"); resp.StatusCode != http.StatusNotFound {
		t.Errorf("missing context status = %d, want %d", resp.StatusCode, http.StatusNotFound)
	}
	if resp := postJSON(t, srv.URL+"/v1/contexts", map[string]any{"content": "x"}); resp.StatusCode != http.StatusBadRequest {
		t.Errorf("nameless context status = %d, want %d", resp.StatusCode, http.StatusBadRequest)
	}
}

func TestSampleDataThenRAG(t *testing.T) {
	_, srv := newTestAdapter(t, newTestEngine(mock.NewGenerator()))

	resp := postJSON(t, srv.URL+"/v1/setup/sample-data", nil)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusCreated)
	}
	sample := decode[engine.SampleData](t, resp)
	if len(sample.DocumentIDs) != 4 {
		t.Errorf("document ids = %d, want 4", len(sample.DocumentIDs))
	}

	rag := postJSON(t, srv.URL+"/v1/requests", api.Request{
		Kind:       api.KindRAGQuery,
		Prompt:     "What is RAG?",
		Parameters: map[string]any{"top_k": 2},
	})
	got := decode[api.Response](t, rag)
	if !got.Success {
		t.Fatalf("rag_query failed: %+v", got.Error)
	}
}

func TestHealth(t *testing.T) {
	healthy := NewAdapter(newTestEngine(nil), DefaultConfig())
	rec := httptest.NewRecorder()
	healthy.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	failing := NewAdapter(newTestEngine(nil), Config{
		Health: func(context.Context) error { return errors.New("database unreachable") },
	})
	rec = httptest.NewRecorder()
	failing.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusServiceUnavailable)
	}
	if !strings.Contains(rec.Body.String(), "database unreachable") {
		t.Errorf("body = %q, want the health error", rec.Body.String())
	}
}

func TestMount(t *testing.T) {
	a := NewAdapter(newTestEngine(nil), DefaultConfig())
	a.Mount("GET /metrics", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("lokal_up 1\n"))
	}))

	rec := httptest.NewRecorder()
	a.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "lokal_up") {
		t.Errorf("mounted handler response = %d %q", rec.Code, rec.Body.String())
	}
}
