package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
)

type scanRequest struct {
	CheckTasks    *bool `json:"checkTasks"`
	CheckProjects *bool `json:"checkProjects"`
}

// handleScan runs the selected scan bucket(s) once, synchronously.
// Omitted flags default to true.
func (s *Server) handleScan(w http.ResponseWriter, r *http.Request) {
	var req scanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		http.Error(w, "invalid JSON body", http.StatusBadRequest)
		return
	}
	tasks, projects := true, true
	if req.CheckTasks != nil {
		tasks = *req.CheckTasks
	}
	if req.CheckProjects != nil {
		projects = *req.CheckProjects
	}

	res := s.scan.RunOnce(r.Context(), tasks, projects)
	s.writeJSON(w, http.StatusOK, res)
}

type reminderRequest struct {
	Action string `json:"action"`
}

// handleReminders controls the periodic reminder job lifecycle.
func (s *Server) handleReminders(w http.ResponseWriter, r *http.Request) {
	var req reminderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON body", http.StatusBadRequest)
		return
	}

	switch req.Action {
	case "start":
		s.job.Start(r.Context())
		s.writeJSON(w, http.StatusOK, map[string]any{"running": s.job.Running()})
	case "stop":
		s.job.Stop()
		s.writeJSON(w, http.StatusOK, map[string]any{"running": s.job.Running()})
	case "check":
		sum := s.job.CheckNow(r.Context())
		s.writeJSON(w, http.StatusOK, sum)
	default:
		http.Error(w, "action must be start, stop or check", http.StatusBadRequest)
	}
}

// handleRemindersSend mails every currently-eligible task system-wide.
func (s *Server) handleRemindersSend(w http.ResponseWriter, r *http.Request) {
	sum := s.job.CheckNow(r.Context())
	s.writeJSON(w, http.StatusOK, sum)
}

// handleReminderPreview renders the reminder HTML for one task without
// sending anything.
func (s *Server) handleReminderPreview(w http.ResponseWriter, r *http.Request) {
	task := s.taskForPreview(w, r)
	if task == nil {
		return
	}
	subject, html := s.sender.Preview(*task)
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("X-Subject", subject)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(html))
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatusz(w http.ResponseWriter, _ *http.Request) {
	body := map[string]any{
		"streamUsers":    s.hub.Users(),
		"dedupCacheSize": s.scan.CacheSize(),
		"reminderJob":    s.job.Running(),
	}
	if s.stats != nil {
		body["counters"] = s.stats.Snapshot()
	}
	s.writeJSON(w, http.StatusOK, body)
}
