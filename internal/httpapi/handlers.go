package httpapi

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strings"

	"github.com/dkurilov/paratrans/internal/tokencost"
)

type enqueueJobRequest struct {
	DocumentPath string `json:"document_path"`
	SourceLang   string `json:"source_lang"`
	TargetLang   string `json:"target_lang"`
	Model        string `json:"model"`
}

func (s *Server) handleJobs(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, s.queue.List())
	case http.MethodPost:
		var req enqueueJobRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid json body")
			return
		}
		if req.DocumentPath == "" {
			writeError(w, http.StatusBadRequest, "document_path is required")
			return
		}

		job, created, err := s.svc.EnqueueDocument(req.DocumentPath, req.SourceLang, req.TargetLang, req.Model)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		code := http.StatusCreated
		if !created {
			code = http.StatusOK
		}
		writeJSON(w, code, map[string]any{
			"created": created,
			"job":     job,
		})
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// handleJobByID routes /api/jobs/{id}, /api/jobs/{id}/progress and
// /api/jobs/{id}/stop.
func (s *Server) handleJobByID(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/jobs/")
	jobID, action, _ := strings.Cut(rest, "/")
	if decoded, err := url.PathUnescape(jobID); err == nil {
		jobID = decoded
	}
	if jobID == "" {
		writeError(w, http.StatusBadRequest, "missing job id")
		return
	}

	switch action {
	case "":
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		job, ok := s.queue.Get(jobID)
		if !ok {
			writeError(w, http.StatusNotFound, "job not found")
			return
		}
		writeJSON(w, http.StatusOK, job)
	case "progress":
		s.handleJobProgress(w, r, jobID)
	case "stop":
		s.handleJobStop(w, r, jobID)
	default:
		writeError(w, http.StatusNotFound, "not found")
	}
}

func (s *Server) handleJobProgress(w http.ResponseWriter, r *http.Request, jobID string) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	job, ok := s.queue.Get(jobID)
	if !ok {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}

	done, total, running := s.svc.Progress(jobID)
	if !running {
		// Not actively running: report durable checkpoint state instead, so
		// stopped and restarted jobs still show how far they got.
		done, total, _ = s.svc.CheckpointProgress(r.Context(), job)
	}
	preview, _ := s.svc.Preview(jobID)
	writeJSON(w, http.StatusOK, map[string]any{
		"job_id":  jobID,
		"status":  job.Status,
		"running": running,
		"done":    done,
		"total":   total,
		"preview": preview,
	})
}

func (s *Server) handleJobStop(w http.ResponseWriter, r *http.Request, jobID string) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if !s.svc.StopJob(jobID) {
		writeError(w, http.StatusConflict, "job is not running")
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{
		"ok": true,
	})
}

func (s *Server) handleScan(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	s.svc.ScanInbox(r.Context())
	writeJSON(w, http.StatusAccepted, map[string]any{
		"ok": true,
	})
}

type estimateRequest struct {
	Text string `json:"text"`
}

func (s *Server) handleEstimate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req estimateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		writeError(w, http.StatusBadRequest, "text is required")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"input_tokens": tokencost.CountTokens(req.Text),
		"estimates":    tokencost.AllProviders(req.Text),
	})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{
		"error": msg,
	})
}
