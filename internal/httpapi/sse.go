package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/dkurilov/paratrans/internal/jobs"
)

// jobStreamEntry is one job in a stream snapshot: the queue record plus live
// paragraph progress and, when streaming is enabled, the latest joined
// document preview.
type jobStreamEntry struct {
	*jobs.TranslationJob
	Done    int    `json:"done"`
	Total   int    `json:"total"`
	Running bool   `json:"running"`
	Preview string `json:"preview,omitempty"`
}

func (s *Server) streamSnapshot() []jobStreamEntry {
	list := s.queue.List()
	entries := make([]jobStreamEntry, 0, len(list))
	for _, job := range list {
		entry := jobStreamEntry{TranslationJob: job}
		entry.Done, entry.Total, entry.Running = s.svc.Progress(job.ID)
		if entry.Running {
			entry.Preview, _ = s.svc.Preview(job.ID)
		}
		entries = append(entries, entry)
	}
	return entries
}

// handleJobStream pushes a snapshot of every job with its translation
// progress once a second over SSE.
func (s *Server) handleJobStream(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	send := func() bool {
		payload, err := json.Marshal(s.streamSnapshot())
		if err != nil {
			return false
		}
		if _, err := fmt.Fprintf(w, "data: %s\n\n", payload); err != nil {
			return false
		}
		flusher.Flush()
		return true
	}

	if !send() {
		return
	}

	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
			if !send() {
				return
			}
		}
	}
}
