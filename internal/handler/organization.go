// internal/handler/organization.go
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

type OrgHandler struct {
	guard *tenancy.Guard
	orgs  *service.OrgService
}

func NewOrgHandler(guard *tenancy.Guard, orgs *service.OrgService) *OrgHandler {
	return &OrgHandler{guard: guard, orgs: orgs}
}

type orgResponse struct {
	BaseResponse
	Organization *model.Organization `json:"organization"`
}

func (h *OrgHandler) Create(w http.ResponseWriter, r *http.Request) {
	caller, ok := middleware.CallerID(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "missing identity")
		return
	}

	var input service.CreateOrgInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	defer r.Body.Close()

	org, err := h.orgs.CreateOrganization(r.Context(), caller, input)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, orgResponse{BaseResponse{Ok: true}, org})
}

func (h *OrgHandler) Get(w http.ResponseWriter, r *http.Request) {
	handle, ok := h.resolve(w, r)
	if !ok {
		return
	}
	respondWithJSON(w, http.StatusOK, orgResponse{BaseResponse{Ok: true}, handle.Org()})
}

func (h *OrgHandler) Archive(w http.ResponseWriter, r *http.Request) {
	handle, ok := h.resolve(w, r)
	if !ok {
		return
	}
	if err := h.orgs.ArchiveOrganization(r.Context(), handle); err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, BaseResponse{Ok: true})
}

func (h *OrgHandler) AddMember(w http.ResponseWriter, r *http.Request) {
	handle, ok := h.resolve(w, r)
	if !ok {
		return
	}
	var input service.AddOrgMemberInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	defer r.Body.Close()

	member, err := h.orgs.AddMember(r.Context(), handle, input)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, map[string]interface{}{"ok": true, "member": member})
}

func (h *OrgHandler) RemoveMember(w http.ResponseWriter, r *http.Request) {
	handle, ok := h.resolve(w, r)
	if !ok {
		return
	}
	userID, err := uuid.Parse(chi.URLParam(r, "userID"))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid user id")
		return
	}
	if err := h.orgs.RemoveMember(r.Context(), handle, userID); err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, BaseResponse{Ok: true})
}

func (h *OrgHandler) TransferOwnership(w http.ResponseWriter, r *http.Request) {
	handle, ok := h.resolve(w, r)
	if !ok {
		return
	}
	var input struct {
		NewOwnerID uuid.UUID `json:"new_owner_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	defer r.Body.Close()

	if err := h.orgs.TransferOwnership(r.Context(), handle, input.NewOwnerID); err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, BaseResponse{Ok: true})
}

func (h *OrgHandler) Members(w http.ResponseWriter, r *http.Request) {
	handle, ok := h.resolve(w, r)
	if !ok {
		return
	}
	members, err := h.orgs.Members(r.Context(), handle)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]interface{}{"ok": true, "members": members})
}

func (h *OrgHandler) resolve(w http.ResponseWriter, r *http.Request) (tenancy.OrgHandle, bool) {
	caller, ok := middleware.CallerID(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "missing identity")
		return tenancy.OrgHandle{}, false
	}
	handle, err := h.guard.ResolveOrg(r.Context(), caller, chi.URLParam(r, "orgSlug"))
	if err != nil {
		respondDomainError(w, r, err)
		return tenancy.OrgHandle{}, false
	}
	return handle, true
}
