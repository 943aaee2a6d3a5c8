package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/go-chi/chi/v5"

	"github.com/sandeepkv93/taskgate/internal/apperr"
	"github.com/sandeepkv93/taskgate/internal/domain"
	"github.com/sandeepkv93/taskgate/internal/http/response"
	"github.com/sandeepkv93/taskgate/internal/observability"
	"github.com/sandeepkv93/taskgate/internal/session"
)

// TaskBackend is the slice of the API client the proxy forwards to. The
// principal travels in ctx; the client derives its backend token from it.
type TaskBackend interface {
	ListTasks(ctx context.Context, userID string) ([]domain.Task, error)
	CreateTask(ctx context.Context, userID string, in domain.TaskCreate) (*domain.Task, error)
	UpdateTask(ctx context.Context, userID string, id int, in domain.TaskUpdate) (*domain.Task, error)
	DeleteTask(ctx context.Context, userID string, id int) error
	ToggleComplete(ctx context.Context, userID string, id int) (*domain.Task, error)
	SendChat(ctx context.Context, userID string, in domain.ChatRequest) (*domain.ChatResponse, error)
}

type TaskHandler struct {
	backend TaskBackend
}

func NewTaskHandler(backend TaskBackend) *TaskHandler {
	return &TaskHandler{backend: backend}
}

func (h *TaskHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.owner(w, r)
	if !ok {
		return
	}
	tasks, err := h.backend.ListTasks(r.Context(), userID)
	if err != nil {
		backendError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, tasks)
}

func (h *TaskHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.owner(w, r)
	if !ok {
		return
	}
	var in domain.TaskCreate
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		response.Detail(w, r, http.StatusBadRequest, "invalid payload")
		return
	}
	in.Title = strings.TrimSpace(in.Title)
	if msg := validateTask(&in.Title, in.Description, true); msg != "" {
		response.Detail(w, r, http.StatusBadRequest, msg)
		return
	}
	task, err := h.backend.CreateTask(r.Context(), userID, in)
	if err != nil {
		backendError(w, r, err)
		return
	}
	observability.Audit(r, "task.create", "user_id", userID, "task_id", task.ID)
	response.JSON(w, r, http.StatusCreated, task)
}

func (h *TaskHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.owner(w, r)
	if !ok {
		return
	}
	id, ok := taskID(w, r)
	if !ok {
		return
	}
	var in domain.TaskUpdate
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		response.Detail(w, r, http.StatusBadRequest, "invalid payload")
		return
	}
	if in.Title != nil {
		trimmed := strings.TrimSpace(*in.Title)
		in.Title = &trimmed
	}
	if msg := validateTask(in.Title, in.Description, false); msg != "" {
		response.Detail(w, r, http.StatusBadRequest, msg)
		return
	}
	task, err := h.backend.UpdateTask(r.Context(), userID, id, in)
	if err != nil {
		backendError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, task)
}

func (h *TaskHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.owner(w, r)
	if !ok {
		return
	}
	id, ok := taskID(w, r)
	if !ok {
		return
	}
	if err := h.backend.DeleteTask(r.Context(), userID, id); err != nil {
		backendError(w, r, err)
		return
	}
	observability.Audit(r, "task.delete", "user_id", userID, "task_id", id)
	w.WriteHeader(http.StatusNoContent)
}

func (h *TaskHandler) ToggleComplete(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.owner(w, r)
	if !ok {
		return
	}
	id, ok := taskID(w, r)
	if !ok {
		return
	}
	task, err := h.backend.ToggleComplete(r.Context(), userID, id)
	if err != nil {
		backendError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, task)
}

func (h *TaskHandler) Chat(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.owner(w, r)
	if !ok {
		return
	}
	var in domain.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		response.Detail(w, r, http.StatusBadRequest, "invalid payload")
		return
	}
	if strings.TrimSpace(in.Message) == "" {
		response.Detail(w, r, http.StatusBadRequest, "message is required")
		return
	}
	out, err := h.backend.SendChat(r.Context(), userID, in)
	if err != nil {
		backendError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, out)
}

// owner returns the path user id once it is known to match the validated
// session. A mismatch is 403, not 404, matching the backend.
func (h *TaskHandler) owner(w http.ResponseWriter, r *http.Request) (string, bool) {
	p, ok := session.PrincipalFrom(r.Context())
	if !ok {
		w.Header().Set("WWW-Authenticate", "Bearer")
		response.Detail(w, r, http.StatusUnauthorized, "Not authenticated")
		return "", false
	}
	userID := chi.URLParam(r, "userId")
	if userID == "" || userID != p.User.ID {
		observability.Audit(r, "task.forbidden", "user_id", p.User.ID, "path_user_id", userID)
		response.Detail(w, r, http.StatusForbidden, "Not authorized to access this user's tasks")
		return "", false
	}
	return userID, true
}

func taskID(w http.ResponseWriter, r *http.Request) (int, bool) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil || id <= 0 {
		response.Detail(w, r, http.StatusBadRequest, "invalid task id")
		return 0, false
	}
	return id, true
}

func validateTask(title, description *string, titleRequired bool) string {
	if title == nil {
		if titleRequired {
			return "Title is required"
		}
	} else {
		n := utf8.RuneCountInString(*title)
		if n == 0 {
			return "Title is required"
		}
		if n > domain.TaskTitleMaxLen {
			return "Title must be at most " + strconv.Itoa(domain.TaskTitleMaxLen) + " characters"
		}
	}
	if description != nil && utf8.RuneCountInString(*description) > domain.TaskDescriptionMaxLen {
		return "Description must be at most " + strconv.Itoa(domain.TaskDescriptionMaxLen) + " characters"
	}
	return ""
}

// backendError relays a backend failure. Only AuthExpired keeps 401: a
// backend 401 without auth enforcement is not about the caller's session,
// so it goes out as a bad gateway.
func backendError(w http.ResponseWriter, r *http.Request, err error) {
	ae := apperr.From(err)
	switch {
	case ae != nil && ae.Kind == apperr.KindAuthExpired:
		w.Header().Set("WWW-Authenticate", "Bearer")
	case ae != nil && ae.Status == http.StatusUnauthorized:
		response.Detail(w, r, http.StatusBadGateway, ae.Detail)
		return
	}
	response.AppDetail(w, r, err)
}
