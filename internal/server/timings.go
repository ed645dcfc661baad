package server

import (
	"encoding/json"
	"net/http"

	"github.com/eliasvob/readsync/internal/orchestrator"
	"github.com/eliasvob/readsync/pkg/timing"
)

// timingsRequest is the POST /v1/timings body.
type timingsRequest struct {
	AudioURL string `json:"audioUrl"`
	OwnerID  string `json:"ownerId"`
	TextHash string `json:"textHash"`
	Language string `json:"language,omitempty"`
}

// timingsResponse is the success body of POST /v1/timings.
type timingsResponse struct {
	Cached  bool        `json:"cached"`
	Timings *timing.Set `json:"timings"`
}

// handleTimings resolves the timing set for one narration: cached when
// available, freshly transcribed otherwise.
func (s *Server) handleTimings(w http.ResponseWriter, r *http.Request) {
	var req timingsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "malformed JSON body")
		return
	}
	if req.AudioURL == "" || req.OwnerID == "" || req.TextHash == "" {
		writeError(w, http.StatusBadRequest, "invalid_request",
			"audioUrl, ownerId and textHash are required")
		return
	}

	res, err := s.orch.ResolveTiming(r.Context(), orchestrator.TimingRequest{
		AudioURL: req.AudioURL,
		OwnerID:  req.OwnerID,
		TextHash: req.TextHash,
		Language: req.Language,
	})
	if err != nil {
		writeTimingError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, timingsResponse{Cached: res.Cached, Timings: res.Set})
}
