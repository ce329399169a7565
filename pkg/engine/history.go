package engine

import (
	"sync"
	"time"

	"github.com/rhuss/lokal/pkg/api"
)

// History is the append-only log of processed requests and their
// responses.
type History struct {
	mu        sync.Mutex
	requests  []api.Request
	responses []api.Response
}

// HistoryStats aggregates the responses in a History.
type HistoryStats struct {
	RequestCount      int     `json:"request_count"`
	ResponseCount     int     `json:"response_count"`
	AvgProcessingTime float64 `json:"avg_processing_time"`
	SuccessRate       float64 `json:"success_rate"`
}

func (h *History) addRequest(req *api.Request) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.requests = append(h.requests, *req.Clone())
}

func (h *History) addResponse(resp *api.Response) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.responses = append(h.responses, *resp.Clone())
}

// Requests returns a copy of the recorded requests, oldest first.
func (h *History) Requests() []api.Request {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]api.Request, len(h.requests))
	for i := range h.requests {
		out[i] = *h.requests[i].Clone()
	}
	return out
}

// Responses returns a copy of the recorded responses, oldest first.
func (h *History) Responses() []api.Response {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]api.Response, len(h.responses))
	for i := range h.responses {
		out[i] = *h.responses[i].Clone()
	}
	return out
}

// Stats computes the aggregate figures from the current history. Averages
// are zero when no response has been recorded.
func (h *History) Stats() HistoryStats {
	h.mu.Lock()
	defer h.mu.Unlock()

	st := HistoryStats{RequestCount: len(h.requests), ResponseCount: len(h.responses)}
	if len(h.responses) == 0 {
		return st
	}
	var total time.Duration
	succeeded := 0
	for _, r := range h.responses {
		total += r.ProcessingTime
		if r.Success {
			succeeded++
		}
	}
	n := float64(len(h.responses))
	st.AvgProcessingTime = total.Seconds() / n
	st.SuccessRate = float64(succeeded) / n
	return st
}
