package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/rhuss/lokal/pkg/api"
	"github.com/rhuss/lokal/pkg/contextstore"
	"github.com/rhuss/lokal/pkg/engine"
	"github.com/rhuss/lokal/pkg/observability"
	"github.com/rhuss/lokal/pkg/retrieval"
	"github.com/rhuss/lokal/pkg/storage"
	"github.com/rhuss/lokal/pkg/transport"
)

// Adapter serves the engine over HTTP.
type Adapter struct {
	engine    *engine.Engine
	processor transport.Processor
	inflight  *transport.InFlightRegistry
	mux       *http.ServeMux
	config    Config
}

// Config holds configuration for the HTTP adapter.
type Config struct {
	MaxBodySize int64
	// Health reports readiness for /healthz. A nil Health always reports ok.
	Health func(context.Context) error
}

// DefaultConfig returns the default adapter configuration.
func DefaultConfig() Config {
	return Config{
		MaxBodySize: 10 << 20, // 10 MB
	}
}

// NewAdapter creates an HTTP adapter for eng. Middleware wraps the engine's
// request processing in the given order.
func NewAdapter(eng *engine.Engine, cfg Config, middlewares ...transport.Middleware) *Adapter {
	if cfg.MaxBodySize <= 0 {
		cfg.MaxBodySize = DefaultConfig().MaxBodySize
	}
	var processor transport.Processor = eng
	if len(middlewares) > 0 {
		processor = transport.Chain(middlewares...)(processor)
	}

	a := &Adapter{
		engine:    eng,
		processor: processor,
		inflight:  transport.NewInFlightRegistry(),
		mux:       http.NewServeMux(),
		config:    cfg,
	}

	a.mux.HandleFunc("POST /v1/requests", a.handleProcess)
	a.mux.HandleFunc("GET /v1/requests/{id}", a.handleGetResponse)
	a.mux.HandleFunc("DELETE /v1/requests/{id}", a.handleCancel)
	a.mux.HandleFunc("GET /v1/status", a.handleStatus)
	a.mux.HandleFunc("GET /v1/capabilities", a.handleCapabilities)
	a.mux.HandleFunc("POST /v1/documents", a.handleAddDocuments)
	a.mux.HandleFunc("GET /v1/documents/search", a.handleSearchDocuments)
	a.mux.HandleFunc("POST /v1/contexts", a.handleAddContext)
	a.mux.HandleFunc("GET /v1/contexts", a.handleSearchContexts)
	a.mux.HandleFunc("GET /v1/contexts/{id}", a.handleGetContext)
	a.mux.HandleFunc("POST /v1/setup/sample-data", a.handleSampleData)
	a.mux.HandleFunc("GET /healthz", a.handleHealth)

	return a
}

// Mount registers an additional handler, such as /metrics or /mcp, on the
// adapter's mux.
func (a *Adapter) Mount(pattern string, h http.Handler) {
	a.mux.Handle(pattern, h)
}

// Handler returns the http.Handler for this adapter. Use this to integrate
// with an http.Server or test with httptest. The returned handler includes
// HTTP-level middleware for metrics and request ID propagation.
func (a *Adapter) Handler() http.Handler {
	return observability.MetricsMiddleware(httpRequestIDMiddleware(a.mux))
}

// httpRequestIDMiddleware is HTTP-level middleware that propagates the
// X-Request-ID header. If present in the request, it is forwarded into the
// context and echoed on the response unless the handler set its own.
func httpRequestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id := r.Header.Get("X-Request-ID"); id != "" {
			ctx := transport.ContextWithRequestID(r.Context(), id)
			r = r.WithContext(ctx)
		}
		rw := &requestIDResponseWriter{ResponseWriter: w, r: r}
		next.ServeHTTP(rw, r)
	})
}

// requestIDResponseWriter wraps http.ResponseWriter to inject the
// X-Request-ID header before the first write.
type requestIDResponseWriter struct {
	http.ResponseWriter
	r           *http.Request
	headersSent bool
}

func (w *requestIDResponseWriter) WriteHeader(statusCode int) {
	w.ensureRequestIDHeader()
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *requestIDResponseWriter) Write(b []byte) (int, error) {
	w.ensureRequestIDHeader()
	return w.ResponseWriter.Write(b)
}

func (w *requestIDResponseWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Unwrap returns the underlying ResponseWriter for http.NewResponseController.
func (w *requestIDResponseWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

func (w *requestIDResponseWriter) ensureRequestIDHeader() {
	if w.headersSent {
		return
	}
	w.headersSent = true
	if w.ResponseWriter.Header().Get("X-Request-ID") != "" {
		return
	}
	if id := transport.RequestIDFromContext(w.r.Context()); id != "" {
		w.ResponseWriter.Header().Set("X-Request-ID", id)
	}
}

// decodeJSON checks the content type, limits the body size and decodes the
// body into v. On failure it writes the error response and returns false.
func (a *Adapter) decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if ct := r.Header.Get("Content-Type"); ct != "" {
		mt, _, err := mime.ParseMediaType(ct)
		if err != nil || mt != "application/json" {
			transport.WriteErrorResponse(w,
				api.NewValidationError("content_type", "Content-Type must be application/json"),
				http.StatusUnsupportedMediaType,
			)
			return false
		}
	}

	r.Body = http.MaxBytesReader(w, r.Body, a.config.MaxBodySize)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			transport.WriteErrorResponse(w,
				api.NewValidationError("body", fmt.Sprintf("request body too large (max %d bytes)", a.config.MaxBodySize)),
				http.StatusRequestEntityTooLarge,
			)
			return false
		}
		transport.WriteAPIError(w, api.NewValidationError("body", "invalid JSON: "+err.Error()))
		return false
	}
	return true
}

// handleProcess handles POST /v1/requests. The request is registered as in
// flight under its id until it completes, so DELETE can cancel it.
func (a *Adapter) handleProcess(w http.ResponseWriter, r *http.Request) {
	var req api.Request
	if !a.decodeJSON(w, r, &req) {
		return
	}
	if req.ID == "" {
		req.ID = transport.RequestIDFromContext(r.Context())
	}
	if req.ID == "" {
		req.ID = api.NewRequestID()
	}

	ctx, cancel := context.WithCancel(transport.ContextWithRequestID(r.Context(), req.ID))
	defer cancel()
	if !a.inflight.Register(req.ID, cancel) {
		transport.WriteAPIError(w, api.NewValidationError("id", "request "+req.ID+" is already in progress"))
		return
	}
	defer a.inflight.Remove(req.ID)

	resp := a.processor.Process(ctx, &req)
	w.Header().Set("X-Request-ID", resp.ID)
	transport.WriteJSON(w, transport.HTTPStatusFromError(resp.Error), resp)
}

// handleGetResponse handles GET /v1/requests/{id}. The most recent response
// recorded under the id is returned.
func (a *Adapter) handleGetResponse(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	responses := a.engine.History().Responses()
	for i := len(responses) - 1; i >= 0; i-- {
		if responses[i].ID == id {
			transport.WriteJSON(w, http.StatusOK, responses[i])
			return
		}
	}
	transport.WriteAPIError(w, api.NewNotFoundError("response "+id+" not found"))
}

// handleCancel handles DELETE /v1/requests/{id} by cancelling a request
// that is still being processed.
func (a *Adapter) handleCancel(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if a.inflight.Cancel(id) {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	transport.WriteAPIError(w, api.NewNotFoundError("request "+id+" is not in progress"))
}

// handleStatus handles GET /v1/status.
func (a *Adapter) handleStatus(w http.ResponseWriter, r *http.Request) {
	transport.WriteJSON(w, http.StatusOK, a.engine.Status())
}

// handleCapabilities handles GET /v1/capabilities.
func (a *Adapter) handleCapabilities(w http.ResponseWriter, r *http.Request) {
	transport.WriteJSON(w, http.StatusOK, a.engine.Capabilities())
}

type documentInput struct {
	Content  string         `json:"content"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

type addDocumentsRequest struct {
	Documents []documentInput `json:"documents"`
	documentInput
}

// handleAddDocuments handles POST /v1/documents. The body is either a
// single document or {"documents": [...]}.
func (a *Adapter) handleAddDocuments(w http.ResponseWriter, r *http.Request) {
	store := a.engine.Documents()
	if store == nil {
		transport.WriteAPIError(w, api.NewProviderUnavailableError("retrieval"))
		return
	}

	var body addDocumentsRequest
	if !a.decodeJSON(w, r, &body) {
		return
	}
	docs := body.Documents
	if len(docs) == 0 && body.Content != "" {
		docs = []documentInput{body.documentInput}
	}
	if len(docs) == 0 {
		transport.WriteAPIError(w, api.NewValidationError("documents", "at least one document is required"))
		return
	}

	inputs := make([]retrieval.Input, len(docs))
	for i, d := range docs {
		if strings.TrimSpace(d.Content) == "" {
			transport.WriteAPIError(w, api.NewValidationError(fmt.Sprintf("documents[%d].content", i), "content is required"))
			return
		}
		inputs[i] = retrieval.Input{Content: d.Content, Metadata: d.Metadata}
	}

	ids, err := store.AddMany(r.Context(), inputs)
	if err != nil {
		transport.WriteAPIError(w, api.AsAPIError(err, api.ErrorTypeProviderError))
		return
	}
	transport.WriteJSON(w, http.StatusCreated, map[string]any{"ids": ids})
}

// handleSearchDocuments handles GET /v1/documents/search?q=...&top_k=...
func (a *Adapter) handleSearchDocuments(w http.ResponseWriter, r *http.Request) {
	store := a.engine.Documents()
	if store == nil {
		transport.WriteAPIError(w, api.NewProviderUnavailableError("retrieval"))
		return
	}

	q := r.URL.Query()
	query := q.Get("q")
	if query == "" {
		transport.WriteAPIError(w, api.NewValidationError("q", "query is required"))
		return
	}
	topK, apiErr := intQuery(q.Get("top_k"), "top_k", api.DefaultDefaults().TopK)
	if apiErr != nil {
		transport.WriteAPIError(w, apiErr)
		return
	}

	matches, err := store.Retrieve(r.Context(), query, topK)
	if err != nil {
		transport.WriteAPIError(w, api.AsAPIError(err, api.ErrorTypeProviderError))
		return
	}
	transport.WriteJSON(w, http.StatusOK, map[string]any{
		"query":   query,
		"results": retrieval.Sources(matches),
	})
}

type addContextRequest struct {
	Name           string                 `json:"name"`
	Content        any                    `json:"content"`
	Metadata       map[string]any         `json:"metadata,omitempty"`
	ConversationID string                 `json:"conversation_id"`
	Messages       []contextstore.Message `json:"messages"`
}

// handleAddContext handles POST /v1/contexts. A body with conversation_id
// stores a conversation; otherwise name and content are required.
func (a *Adapter) handleAddContext(w http.ResponseWriter, r *http.Request) {
	store := a.engine.Contexts()
	if store == nil {
		transport.WriteAPIError(w, api.NewProviderUnavailableError("contexts"))
		return
	}

	var body addContextRequest
	if !a.decodeJSON(w, r, &body) {
		return
	}

	var (
		id  string
		err error
	)
	switch {
	case body.ConversationID != "":
		id, err = store.AddConversation(r.Context(), body.ConversationID, body.Messages)
	case body.Name == "":
		transport.WriteAPIError(w, api.NewValidationError("name", "name is required"))
		return
	case body.Content == nil:
		transport.WriteAPIError(w, api.NewValidationError("content", "content is required"))
		return
	default:
		id, err = store.Add(r.Context(), body.Name, body.Content, body.Metadata)
	}
	if err != nil {
		transport.WriteAPIError(w, api.AsAPIError(err, api.ErrorTypePersistence))
		return
	}
	transport.WriteJSON(w, http.StatusCreated, map[string]string{"id": id})
}

// handleSearchContexts handles GET /v1/contexts?q=...&limit=...
func (a *Adapter) handleSearchContexts(w http.ResponseWriter, r *http.Request) {
	store := a.engine.Contexts()
	if store == nil {
		transport.WriteAPIError(w, api.NewProviderUnavailableError("contexts"))
		return
	}
	q := r.URL.Query()
	limit, apiErr := intQuery(q.Get("limit"), "limit", 0)
	if apiErr != nil {
		transport.WriteAPIError(w, apiErr)
		return
	}
	transport.WriteJSON(w, http.StatusOK, map[string]any{
		"contexts": store.Search(q.Get("q"), limit),
	})
}

// handleGetContext handles GET /v1/contexts/{id}.
func (a *Adapter) handleGetContext(w http.ResponseWriter, r *http.Request) {
	store := a.engine.Contexts()
	if store == nil {
		transport.WriteAPIError(w, api.NewProviderUnavailableError("contexts"))
		return
	}
	id := r.PathValue("id")
	rec, err := store.Get(id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			transport.WriteAPIError(w, api.NewNotFoundError("context "+id+" not found"))
		} else {
			transport.WriteAPIError(w, api.AsAPIError(err, api.ErrorTypeServerError))
		}
		return
	}
	transport.WriteJSON(w, http.StatusOK, rec)
}

// handleSampleData handles POST /v1/setup/sample-data.
func (a *Adapter) handleSampleData(w http.ResponseWriter, r *http.Request) {
	out, err := a.engine.SetupSampleData(r.Context())
	if err != nil {
		transport.WriteAPIError(w, api.AsAPIError(err, api.ErrorTypeServerError))
		return
	}
	transport.WriteJSON(w, http.StatusCreated, out)
}

// handleHealth handles GET /healthz.
func (a *Adapter) handleHealth(w http.ResponseWriter, r *http.Request) {
	if a.config.Health != nil {
		if err := a.config.Health(r.Context()); err != nil {
			transport.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "unavailable",
				"error":  err.Error(),
			})
			return
		}
	}
	transport.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// intQuery parses an optional integer query parameter.
func intQuery(raw, name string, def int) (int, *api.APIError) {
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, api.NewValidationError(name, name+" must be a non-negative integer")
	}
	return n, nil
}
