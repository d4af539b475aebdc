// internal/handler/task.go
package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/tackboard/tackboard/internal/middleware"
	"github.com/tackboard/tackboard/internal/model"
	"github.com/tackboard/tackboard/internal/service"
	"github.com/tackboard/tackboard/internal/tenancy"
)

type TaskHandler struct {
	guard *tenancy.Guard
	board *service.BoardService
}

func NewTaskHandler(guard *tenancy.Guard, board *service.BoardService) *TaskHandler {
	return &TaskHandler{guard: guard, board: board}
}

type taskResponse struct {
	BaseResponse
	Task *model.Task `json:"task"`
}

func (h *TaskHandler) Get(w http.ResponseWriter, r *http.Request) {
	handle, ok := h.resolve(w, r)
	if !ok {
		return
	}
	respondWithJSON(w, http.StatusOK, taskResponse{BaseResponse{Ok: true}, handle.Task()})
}

func (h *TaskHandler) Move(w http.ResponseWriter, r *http.Request) {
	handle, ok := h.resolve(w, r)
	if !ok {
		return
	}
	var input service.MoveTaskInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	defer r.Body.Close()

	task, err := h.board.MoveTask(r.Context(), handle, input)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, taskResponse{BaseResponse{Ok: true}, task})
}

func (h *TaskHandler) Update(w http.ResponseWriter, r *http.Request) {
	handle, ok := h.resolve(w, r)
	if !ok {
		return
	}
	var input service.UpdateTaskInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	defer r.Body.Close()

	task, err := h.board.UpdateTaskFields(r.Context(), handle, input)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, taskResponse{BaseResponse{Ok: true}, task})
}

func (h *TaskHandler) Archive(w http.ResponseWriter, r *http.Request) {
	handle, ok := h.resolve(w, r)
	if !ok {
		return
	}
	task, err := h.board.ArchiveTask(r.Context(), handle)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, taskResponse{BaseResponse{Ok: true}, task})
}

func (h *TaskHandler) Delete(w http.ResponseWriter, r *http.Request) {
	handle, ok := h.resolve(w, r)
	if !ok {
		return
	}
	if err := h.board.DeleteTask(r.Context(), handle); err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, BaseResponse{Ok: true})
}

func (h *TaskHandler) Activity(w http.ResponseWriter, r *http.Request) {
	handle, ok := h.resolve(w, r)
	if !ok {
		return
	}
	entries, err := h.board.TaskActivity(r.Context(), handle)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]interface{}{"ok": true, "activity": entries})
}

func (h *TaskHandler) resolve(w http.ResponseWriter, r *http.Request) (tenancy.TaskHandle, bool) {
	caller, ok := middleware.CallerID(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "missing identity")
		return tenancy.TaskHandle{}, false
	}
	taskID, err := uuid.Parse(chi.URLParam(r, "taskID"))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid task id")
		return tenancy.TaskHandle{}, false
	}
	handle, err := h.guard.ResolveTask(r.Context(), caller, taskID)
	if err != nil {
		respondDomainError(w, r, err)
		return tenancy.TaskHandle{}, false
	}
	return handle, true
}
