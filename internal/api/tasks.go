package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/maestro-ai/maestro/internal/core"
	"github.com/maestro-ai/maestro/internal/ident"
)

// taskDTO is the wire shape of a task.
type taskDTO struct {
	ID          string            `json:"id"`
	Title       string            `json:"title"`
	Description string            `json:"description,omitempty"`
	Type        string            `json:"type"`
	Status      string            `json:"status"`
	Strategy    string            `json:"strategy,omitempty"`
	Assignees   []string          `json:"assignees,omitempty"`
	Complexity  int               `json:"complexity"`
	Risk        int               `json:"risk"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
}

func toTaskDTO(t *core.Task) taskDTO {
	assignees := make([]string, len(t.Assignees))
	for i, a := range t.Assignees {
		assignees[i] = string(a)
	}
	return taskDTO{
		ID:          string(t.ID),
		Title:       t.Title,
		Description: t.Description,
		Type:        string(t.Type),
		Status:      string(t.Status),
		Strategy:    string(t.Strategy),
		Assignees:   assignees,
		Complexity:  t.Complexity,
		Risk:        t.Risk,
		Metadata:    t.Metadata,
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
	}
}

type taskListResponse struct {
	Tasks    []taskDTO `json:"tasks"`
	Page     int       `json:"page"`
	PageSize int       `json:"page_size"`
}

// handleListTasks serves GET /api/tasks with status, assignee, from/to
// range filters and page/pageSize pagination.
func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	page := core.Page{
		Page:     intQuery(r, "page", 1),
		PageSize: intQuery(r, "pageSize", 50),
	}
	if err := page.Validate(); err != nil {
		respondError(w, err)
		return
	}

	filter := core.TaskFilter{
		Status:  core.TaskStatus(r.URL.Query().Get("status")),
		AgentID: ident.AgentID(r.URL.Query().Get("assignee")),
		Limit:   int64(page.PageSize),
		Offset:  page.Offset(),
	}
	if from := r.URL.Query().Get("from"); from != "" {
		t, err := time.Parse(time.RFC3339, from)
		if err != nil {
			respondError(w, core.ErrInvalidInput("FROM", "from must be RFC3339"))
			return
		}
		filter.From = t
	}
	if to := r.URL.Query().Get("to"); to != "" {
		t, err := time.Parse(time.RFC3339, to)
		if err != nil {
			respondError(w, core.ErrInvalidInput("TO", "to must be RFC3339"))
			return
		}
		filter.To = t
	}

	tasks, err := s.tasks.QueryFiltered(r.Context(), filter)
	if err != nil {
		respondError(w, err)
		return
	}
	dtos := make([]taskDTO, len(tasks))
	for i, t := range tasks {
		dtos[i] = toTaskDTO(t)
	}
	respondJSON(w, http.StatusOK, taskListResponse{
		Tasks:    dtos,
		Page:     page.Page,
		PageSize: page.PageSize,
	})
}

// handleGetTask serves GET /api/tasks/{taskID}.
func (s *Server) handleGetTask(w http.ResponseWriter, r *http.Request) {
	taskID := chi.URLParam(r, "taskID")
	task, err := s.tasks.FindByID(r.Context(), ident.TaskID(taskID))
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, toTaskDTO(task))
}

func intQuery(r *http.Request, key string, def int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return n
}
