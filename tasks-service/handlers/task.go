package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/chepyr/go-task-demo/shared"
	"github.com/chepyr/go-task-demo/shared/models"
	"github.com/chepyr/go-task-demo/tasks-service/service"
)

const maxBodyBytes = 1 << 20 // 1MB

/*
routes:
- GET /tasks
- POST /tasks
*/
func (h *Handler) listTasks(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.requestContext(r)
	defer cancel()

	tasks, err := h.Tasks.List(ctx)
	if err != nil {
		h.sendServiceError(w, r, err)
		return
	}
	shared.SendJSON(w, http.StatusOK, tasks)
}

func (h *Handler) createTask(w http.ResponseWriter, r *http.Request) {
	input, ok := decodeTaskView(w, r)
	if !ok {
		return
	}
	if problems := validateNewTask(input); len(problems) > 0 {
		shared.SendValidationError(w, problems)
		return
	}

	ctx, cancel := h.requestContext(r)
	defer cancel()

	created, err := h.Tasks.Create(ctx, input)
	if err != nil {
		h.sendServiceError(w, r, err)
		return
	}
	h.WSHub.Broadcast(TaskEvent{Event: EventTaskCreated, TaskID: created.ID, Task: &created})

	w.Header().Set("Location", "/tasks/"+strconv.FormatInt(created.ID, 10))
	shared.SendJSON(w, http.StatusCreated, created)
}

/*
routes:
- GET /tasks/{id}
- PATCH /tasks/{id}
- DELETE /tasks/{id}
*/
func (h *Handler) getTask(w http.ResponseWriter, r *http.Request) {
	taskID, ok := parseTaskID(w, r)
	if !ok {
		return
	}

	ctx, cancel := h.requestContext(r)
	defer cancel()

	task, err := h.Tasks.Get(ctx, taskID)
	if err != nil {
		h.sendServiceError(w, r, err)
		return
	}
	shared.SendJSON(w, http.StatusOK, task)
}

func (h *Handler) updateTask(w http.ResponseWriter, r *http.Request) {
	taskID, ok := parseTaskID(w, r)
	if !ok {
		return
	}
	partial, ok := decodeTaskView(w, r)
	if !ok {
		return
	}

	ctx, cancel := h.requestContext(r)
	defer cancel()

	updated, err := h.Tasks.Update(ctx, taskID, partial)
	if err != nil {
		h.sendServiceError(w, r, err)
		return
	}
	h.WSHub.Broadcast(TaskEvent{Event: EventTaskUpdated, TaskID: updated.ID, Task: &updated})
	shared.SendJSON(w, http.StatusOK, updated)
}

func (h *Handler) deleteTask(w http.ResponseWriter, r *http.Request) {
	taskID, ok := parseTaskID(w, r)
	if !ok {
		return
	}

	ctx, cancel := h.requestContext(r)
	defer cancel()

	if err := h.Tasks.Delete(ctx, taskID); err != nil {
		h.sendServiceError(w, r, err)
		return
	}
	h.WSHub.Broadcast(TaskEvent{Event: EventTaskDeleted, TaskID: taskID})
	w.WriteHeader(http.StatusOK)
}

// sendServiceError maps service errors to responses. A missing task is a
// bare 404; anything else is an unexpected store failure.
func (h *Handler) sendServiceError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, service.ErrTaskNotFound) {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	zerolog.Ctx(r.Context()).Error().
		Err(err).
		Str("path", r.URL.Path).
		Msg("task request failed")
	shared.SendError(w, "Internal server error", http.StatusInternalServerError)
}

func parseTaskID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	taskID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || taskID <= 0 {
		shared.SendError(w, "task id must be a positive integer", http.StatusBadRequest)
		return 0, false
	}
	return taskID, true
}

// decodeTaskView reads a JSON task body. Malformed bodies are answered with
// the validation error shape.
func decodeTaskView(w http.ResponseWriter, r *http.Request) (models.TaskView, bool) {
	var view models.TaskView
	if !isJSONContentType(r) {
		shared.SendError(w, "Content-Type must be application/json", http.StatusUnsupportedMediaType)
		return view, false
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(&view); err != nil {
		shared.SendValidationError(w, []string{decodeErrorMessage(err)})
		return models.TaskView{}, false
	}
	return view, true
}

func decodeErrorMessage(err error) string {
	var maxBytesErr *http.MaxBytesError
	switch {
	case errors.Is(err, models.ErrInvalidStatus):
		return fmt.Sprintf("status must be one of %s", joinStatuses())
	case errors.As(err, &maxBytesErr):
		return "request body too large"
	default:
		return "malformed JSON body"
	}
}

func joinStatuses() string {
	names := make([]string, len(models.TaskStatuses))
	for i, status := range models.TaskStatuses {
		names[i] = string(status)
	}
	return strings.Join(names, ", ")
}

func isJSONContentType(r *http.Request) bool {
	ct := r.Header.Get("Content-Type")
	return strings.HasPrefix(strings.ToLower(ct), "application/json")
}
