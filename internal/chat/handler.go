package chat

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/JaimeStill/triage/internal/identity"
	"github.com/JaimeStill/triage/pkg/handlers"
	"github.com/JaimeStill/triage/pkg/routes"
)

// bodyOverhead leaves room for the data URI header, base64 expansion and
// the rest of the JSON body.
const bodyOverhead = 64 << 10

type Handler struct {
	sys     System
	logger  *slog.Logger
	maxBody int64
}

type AttachRequest struct {
	Image string `json:"image"`
}

type SendRequest struct {
	Text  string  `json:"text"`
	Image *string `json:"image,omitempty"`
}

func NewHandler(sys System, logger *slog.Logger, maxImageSize int64) *Handler {
	return &Handler{
		sys:     sys,
		logger:  logger.With("handler", "chat"),
		maxBody: maxImageSize*4/3 + bodyOverhead,
	}
}

func (h *Handler) Routes() routes.Group {
	return routes.Group{
		Prefix: "/chat/sessions",
		Routes: []routes.Route{
			{Method: "POST", Pattern: "", Handler: h.Open},
			{Method: "GET", Pattern: "", Handler: h.List},
			{Method: "GET", Pattern: "/{id}", Handler: h.Get},
			{Method: "DELETE", Pattern: "/{id}", Handler: h.Close},
			{Method: "PUT", Pattern: "/{id}/attachment", Handler: h.Attach},
			{Method: "DELETE", Pattern: "/{id}/attachment", Handler: h.Detach},
			{Method: "POST", Pattern: "/{id}/messages", Handler: h.Send},
		},
	}
}

func (h *Handler) Open(w http.ResponseWriter, r *http.Request) {
	actor, _ := identity.FromContext(r.Context())

	snap, err := h.sys.Open(r.Context(), actor)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusCreated, snap)
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	actor, _ := identity.FromContext(r.Context())

	snaps, err := h.sys.List(r.Context(), actor)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, snaps)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := h.target(w, r)
	if !ok {
		return
	}

	snap, err := h.sys.Get(r.Context(), actor, id)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, snap)
}

func (h *Handler) Close(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := h.target(w, r)
	if !ok {
		return
	}

	if err := h.sys.Close(r.Context(), actor, id); err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) Attach(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := h.target(w, r)
	if !ok {
		return
	}

	var req AttachRequest
	if err := h.decode(w, r, &req); err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	snap, err := h.sys.Attach(r.Context(), actor, id, req.Image)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, snap)
}

func (h *Handler) Detach(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := h.target(w, r)
	if !ok {
		return
	}

	snap, err := h.sys.Detach(r.Context(), actor, id)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, snap)
}

// Send answers 200 with the updated transcript whether or not the classifier
// was reachable; an unreachable classifier shows up as the fallback message.
func (h *Handler) Send(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := h.target(w, r)
	if !ok {
		return
	}

	var req SendRequest
	if err := h.decode(w, r, &req); err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	snap, err := h.sys.Send(r.Context(), actor, id, req.Text, req.Image)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, snap)
}

func (h *Handler) target(w http.ResponseWriter, r *http.Request) (identity.Actor, uuid.UUID, bool) {
	actor, _ := identity.FromContext(r.Context())

	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusNotFound, ErrNotFound)
		return actor, uuid.Nil, false
	}
	return actor, id, true
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBody)

	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return ErrImageTooLarge
		}
		return ErrInvalidBody
	}
	return nil
}
