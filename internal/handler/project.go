// internal/handler/project.go
package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/tackboard/tackboard/internal/middleware"
	"github.com/tackboard/tackboard/internal/model"
	"github.com/tackboard/tackboard/internal/service"
	"github.com/tackboard/tackboard/internal/tenancy"
)

type ProjectHandler struct {
	guard    *tenancy.Guard
	projects *service.ProjectService
	board    *service.BoardService
}

func NewProjectHandler(guard *tenancy.Guard, projects *service.ProjectService, board *service.BoardService) *ProjectHandler {
	return &ProjectHandler{guard: guard, projects: projects, board: board}
}

type projectResponse struct {
	BaseResponse
	Project *model.Project `json:"project"`
}

func (h *ProjectHandler) Create(w http.ResponseWriter, r *http.Request) {
	caller, ok := middleware.CallerID(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "missing identity")
		return
	}
	handle, err := h.guard.ResolveOrg(r.Context(), caller, chi.URLParam(r, "orgSlug"))
	if err != nil {
		respondDomainError(w, r, err)
		return
	}

	var input service.CreateProjectInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	defer r.Body.Close()

	project, err := h.projects.CreateProject(r.Context(), handle, input)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, projectResponse{BaseResponse{Ok: true}, project})
}

// List returns the projects the caller is a member of within the org.
func (h *ProjectHandler) List(w http.ResponseWriter, r *http.Request) {
	caller, ok := middleware.CallerID(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "missing identity")
		return
	}
	handle, err := h.guard.ResolveOrg(r.Context(), caller, chi.URLParam(r, "orgSlug"))
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	projects, err := h.projects.Projects(r.Context(), handle)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]interface{}{"ok": true, "projects": projects})
}

func (h *ProjectHandler) Get(w http.ResponseWriter, r *http.Request) {
	handle, ok := h.resolve(w, r)
	if !ok {
		return
	}
	respondWithJSON(w, http.StatusOK, projectResponse{BaseResponse{Ok: true}, handle.Project()})
}

func (h *ProjectHandler) Columns(w http.ResponseWriter, r *http.Request) {
	handle, ok := h.resolve(w, r)
	if !ok {
		return
	}
	columns, err := h.board.Columns(r.Context(), handle)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]interface{}{"ok": true, "columns": columns})
}

func (h *ProjectHandler) ColumnTasks(w http.ResponseWriter, r *http.Request) {
	handle, ok := h.resolve(w, r)
	if !ok {
		return
	}
	columnID, err := uuid.Parse(chi.URLParam(r, "columnID"))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid column id")
		return
	}
	tasks, err := h.board.ColumnTasks(r.Context(), handle, columnID)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]interface{}{"ok": true, "tasks": tasks})
}

func (h *ProjectHandler) CreateColumn(w http.ResponseWriter, r *http.Request) {
	handle, ok := h.resolve(w, r)
	if !ok {
		return
	}
	var input service.CreateColumnInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	defer r.Body.Close()

	column, err := h.board.CreateColumn(r.Context(), handle, input)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, map[string]interface{}{"ok": true, "column": column})
}

func (h *ProjectHandler) ReorderColumn(w http.ResponseWriter, r *http.Request) {
	handle, ok := h.resolve(w, r)
	if !ok {
		return
	}
	var input service.ReorderColumnInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	defer r.Body.Close()

	column, err := h.board.ReorderColumn(r.Context(), handle, input)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]interface{}{"ok": true, "column": column})
}

// Tasks lists the project's tasks, filtered by the query string:
// ?q=, ?priority=, ?label=, ?archived=, ?sort=, ?limit=, ?offset=.
func (h *ProjectHandler) Tasks(w http.ResponseWriter, r *http.Request) {
	handle, ok := h.resolve(w, r)
	if !ok {
		return
	}
	query := r.URL.Query()
	input := service.ListTasksInput{
		Search:   query.Get("q"),
		Priority: model.Priority(query.Get("priority")),
		Label:    query.Get("label"),
		Sort:     query.Get("sort"),
	}
	if v := query.Get("archived"); v != "" {
		archived, err := strconv.ParseBool(v)
		if err != nil {
			respondWithError(w, http.StatusBadRequest, "invalid archived filter")
			return
		}
		input.Archived = &archived
	}
	if v := query.Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil {
			respondWithError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		input.Limit = limit
	}
	if v := query.Get("offset"); v != "" {
		offset, err := strconv.Atoi(v)
		if err != nil {
			respondWithError(w, http.StatusBadRequest, "invalid offset")
			return
		}
		input.Offset = offset
	}

	tasks, err := h.board.ProjectTasks(r.Context(), handle, input)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]interface{}{"ok": true, "tasks": tasks})
}

func (h *ProjectHandler) CreateTask(w http.ResponseWriter, r *http.Request) {
	handle, ok := h.resolve(w, r)
	if !ok {
		return
	}
	var input service.CreateTaskInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	defer r.Body.Close()

	task, err := h.board.CreateTask(r.Context(), handle, input)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, map[string]interface{}{"ok": true, "task": task})
}

func (h *ProjectHandler) AddMember(w http.ResponseWriter, r *http.Request) {
	handle, ok := h.resolve(w, r)
	if !ok {
		return
	}
	var input service.AddProjectMemberInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	defer r.Body.Close()

	member, err := h.projects.AddMember(r.Context(), handle, input)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, map[string]interface{}{"ok": true, "member": member})
}

func (h *ProjectHandler) RemoveMember(w http.ResponseWriter, r *http.Request) {
	handle, ok := h.resolve(w, r)
	if !ok {
		return
	}
	userID, err := uuid.Parse(chi.URLParam(r, "userID"))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid user id")
		return
	}
	if err := h.projects.RemoveMember(r.Context(), handle, userID); err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, BaseResponse{Ok: true})
}

func (h *ProjectHandler) Archive(w http.ResponseWriter, r *http.Request) {
	handle, ok := h.resolve(w, r)
	if !ok {
		return
	}
	if err := h.projects.ArchiveProject(r.Context(), handle); err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, BaseResponse{Ok: true})
}

func (h *ProjectHandler) Delete(w http.ResponseWriter, r *http.Request) {
	handle, ok := h.resolve(w, r)
	if !ok {
		return
	}
	var input struct {
		ConfirmKey string `json:"confirm_key"`
	}
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	defer r.Body.Close()

	if err := h.projects.HardDeleteProject(r.Context(), handle, input.ConfirmKey); err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, BaseResponse{Ok: true})
}

func (h *ProjectHandler) resolve(w http.ResponseWriter, r *http.Request) (tenancy.ProjectHandle, bool) {
	caller, ok := middleware.CallerID(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "missing identity")
		return tenancy.ProjectHandle{}, false
	}
	handle, err := h.guard.ResolveProject(r.Context(), caller,
		chi.URLParam(r, "orgSlug"), chi.URLParam(r, "projectKey"))
	if err != nil {
		respondDomainError(w, r, err)
		return tenancy.ProjectHandle{}, false
	}
	return handle, true
}
