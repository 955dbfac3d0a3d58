package server

import (
	"net/http"

	"taskpulse/internal/model"
	"taskpulse/internal/notification"
	"taskpulse/internal/store"
	"taskpulse/pkg/logx"
)

// taskPullResponse is the fallback-polling view of a user's tasks. The
// windows here are wider than the scheduled sweep's and nothing touches
// the dispatch cache: polling the same state twice returns the same lists.
type taskPullResponse struct {
	Overdue      []notification.TaskAlert `json:"overdue"`
	DueSoon      []notification.TaskAlert `json:"dueSoon"`
	StartingSoon []notification.TaskAlert `json:"startingSoon"`
}

func (s *Server) handleTaskPull(w http.ResponseWriter, r *http.Request) {
	user := s.userID(r)
	if user == "" {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	ctx := r.Context()
	now := s.nowFn()
	f := store.TaskFilter{UserID: user, Limit: s.cfg.PullLimit}

	resp := taskPullResponse{
		Overdue:      []notification.TaskAlert{},
		DueSoon:      []notification.TaskAlert{},
		StartingSoon: []notification.TaskAlert{},
	}

	overdue, err := s.store.OverdueTasks(ctx, now, f)
	if err != nil {
		s.log.Warn("pull overdue query failed", logx.Err(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	for _, t := range overdue {
		resp.Overdue = append(resp.Overdue, notification.NewTaskOverdue(t, now))
	}

	due, err := s.store.TasksDueBetween(ctx, now, now.Add(s.cfg.PullDueWindow), f)
	if err != nil {
		s.log.Warn("pull dueSoon query failed", logx.Err(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	for _, t := range due {
		resp.DueSoon = append(resp.DueSoon, notification.NewTaskDueSoon(t, now))
	}

	starting, err := s.store.TasksStartingBetween(ctx, now, now.Add(s.cfg.PullStartWindow), f)
	if err != nil {
		s.log.Warn("pull startingSoon query failed", logx.Err(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	for _, t := range starting {
		resp.StartingSoon = append(resp.StartingSoon, notification.NewTaskStartingSoon(t, now))
	}

	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleProjectPull(w http.ResponseWriter, r *http.Request) {
	user := s.userID(r)
	if user == "" {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	ctx := r.Context()
	now := s.nowFn()

	projects, err := s.store.ProjectsDueBetween(ctx, now, now.Add(s.cfg.PullProjWindow), user, s.cfg.PullLimit)
	if err != nil {
		s.log.Warn("pull projects query failed", logx.Err(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	out := make([]notification.ProjectDue, 0, len(projects))
	for _, p := range projects {
		out = append(out, notification.NewProjectDue(p, now))
	}
	s.writeJSON(w, http.StatusOK, map[string][]notification.ProjectDue{"dueSoon": out})
}

// taskForPreview loads a task or writes the error response itself.
func (s *Server) taskForPreview(w http.ResponseWriter, r *http.Request) *model.Task {
	id := r.URL.Query().Get("task")
	if id == "" {
		http.Error(w, "task query parameter required", http.StatusBadRequest)
		return nil
	}
	task, err := s.store.TaskByID(r.Context(), id)
	if err != nil {
		s.log.Warn("task lookup failed", logx.String("task", id), logx.Err(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return nil
	}
	if task == nil {
		http.Error(w, "task not found", http.StatusNotFound)
		return nil
	}
	return task
}
