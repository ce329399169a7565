package engine

import (
	"testing"
	"time"

	"github.com/rhuss/lokal/pkg/api"
)

func TestHistory_StatsEmpty(t *testing.T) {
	var h History
	st := h.Stats()
	if st != (HistoryStats{}) {
		t.Errorf("Stats() = %+v, want zero", st)
	}
}

func TestHistory_Stats(t *testing.T) {
	var h History
	h.addRequest(&api.Request{ID: "req_1", Kind: api.KindGenerate})
	h.addRequest(&api.Request{ID: "req_2", Kind: api.KindGenerate})
	h.addRequest(&api.Request{ID: "req_3", Kind: api.KindGenerate})
	h.addResponse(&api.Response{ID: "req_1", Success: true, ProcessingTime: 100 * time.Millisecond})
	h.addResponse(&api.Response{ID: "req_2", Success: false, ProcessingTime: 300 * time.Millisecond})

	st := h.Stats()
	if st.RequestCount != 3 || st.ResponseCount != 2 {
		t.Errorf("counts = %d/%d, want 3/2", st.RequestCount, st.ResponseCount)
	}
	if st.AvgProcessingTime != 0.2 {
		t.Errorf("AvgProcessingTime = %v, want 0.2", st.AvgProcessingTime)
	}
	if st.SuccessRate != 0.5 {
		t.Errorf("SuccessRate = %v, want 0.5", st.SuccessRate)
	}
}

func TestHistory_StoresCopies(t *testing.T) {
	var h History
	req := &api.Request{ID: "req_1", Kind: api.KindToolCall, Parameters: map[string]any{"tool_name": "a"}}
	h.addRequest(req)
	req.Parameters["tool_name"] = "b"

	got := h.Requests()
	if got[0].Parameters["tool_name"] != "a" {
		t.Errorf("recorded tool_name = %v, want a", got[0].Parameters["tool_name"])
	}

	got[0].ID = "changed"
	if h.Requests()[0].ID != "req_1" {
		t.Error("Requests() must return a copy")
	}
}

func TestHistory_ResponsesAreCopies(t *testing.T) {
	var h History
	resp := &api.Response{
		ID:       "req_1",
		Metadata: map[string]any{"service": "local_ai"},
		Error:    api.NewProviderExecutionError("boom"),
	}
	h.addResponse(resp)
	resp.Metadata["service"] = "changed"
	resp.Error.Message = "changed"

	got := h.Responses()
	if got[0].Metadata["service"] != "local_ai" || got[0].Error.Message != "boom" {
		t.Errorf("recorded response = %+v, want original values", got[0])
	}

	got[0].Metadata["service"] = "changed"
	if h.Responses()[0].Metadata["service"] != "local_ai" {
		t.Error("Responses() must not share metadata with the history")
	}

	h.addRequest(&api.Request{ID: "req_1", Parameters: map[string]any{"k": "v"}})
	h.Requests()[0].Parameters["k"] = "changed"
	if h.Requests()[0].Parameters["k"] != "v" {
		t.Error("Requests() must not share parameters with the history")
	}
}
