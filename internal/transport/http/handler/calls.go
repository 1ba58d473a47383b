package handler

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-site-api/internal/application/call"
	"github.com/go-site-api/internal/pkg/validate"
	"github.com/go-site-api/internal/transport/http/middleware"
)

// CallHandler handles podcast-call submissions and the admin review queue.
type CallHandler struct {
	svc *call.Service
}

func NewCallHandler(svc *call.Service) *CallHandler {
	return &CallHandler{svc: svc}
}

type submitCallRequest struct {
	Title       string `json:"title" validate:"required,max=120"`
	Description string `json:"description" validate:"max=1000"`
	Filename    string `json:"filename" validate:"required"`
	Base64Audio string `json:"base64_audio" validate:"required"`
}

func (h *CallHandler) Submit(w http.ResponseWriter, r *http.Request) {
	u, ok := middleware.UserFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req submitCallRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := validate.Struct(&req); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	c, err := h.svc.Submit(r.Context(), call.SubmitInput{
		Title:       req.Title,
		Description: req.Description,
		Filename:    req.Filename,
		Base64Audio: req.Base64Audio,
		UserID:      u.UserID,
	})
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

func (h *CallHandler) List(w http.ResponseWriter, r *http.Request) {
	u, ok := middleware.UserFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	calls, err := h.svc.List(r.Context(), u.UserID, u.IsAdmin())
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, CallsEnvelope{Data: calls})
}

func (h *CallHandler) Get(w http.ResponseWriter, r *http.Request) {
	u, ok := middleware.UserFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	c, err := h.svc.Get(r.Context(), chi.URLParam(r, "id"), u.UserID, u.IsAdmin())
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// Audio streams the raw recording for playback in the admin review queue.
func (h *CallHandler) Audio(w http.ResponseWriter, r *http.Request) {
	u, ok := middleware.UserFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	rc, c, err := h.svc.Audio(r.Context(), chi.URLParam(r, "id"), u.UserID, u.IsAdmin())
	if err != nil {
		httpError(w, err)
		return
	}
	defer rc.Close()
	w.Header().Set("Content-Type", c.ContentType)
	w.WriteHeader(http.StatusOK)
	_, _ = io.Copy(w, rc)
}

func (h *CallHandler) Delete(w http.ResponseWriter, r *http.Request) {
	u, ok := middleware.UserFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	if err := h.svc.Remove(r.Context(), chi.URLParam(r, "id"), u.UserID, u.IsAdmin()); err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageEnvelope{Message: "deleted"})
}
