package review

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/JaimeStill/triage/internal/cases"
	"github.com/JaimeStill/triage/internal/identity"
	"github.com/JaimeStill/triage/pkg/handlers"
	"github.com/JaimeStill/triage/pkg/pagination"
	"github.com/JaimeStill/triage/pkg/routes"
)

// maxRespondBody bounds a respond call. Responses are free text with no
// attachments.
const maxRespondBody = 64 << 10

// Handler serves the doctor review endpoints.
type Handler struct {
	sys        System
	logger     *slog.Logger
	pagination pagination.Config
}

// ListResponse is the pending list screen.
type ListResponse struct {
	View  cases.View                         `json:"view"`
	Cases *pagination.PageResult[cases.Case] `json:"cases"`
}

// CaseResponse is a single case screen. Error is set when an action on the
// case failed and the doctor stays on it.
type CaseResponse struct {
	View  cases.View  `json:"view"`
	Case  *cases.Case `json:"case,omitempty"`
	Error string      `json:"error,omitempty"`
}

// RespondRequest is the body of a respond call.
type RespondRequest struct {
	Response string `json:"response"`
}

func NewHandler(sys System, logger *slog.Logger, pagination pagination.Config) *Handler {
	return &Handler{
		sys:        sys,
		logger:     logger.With("handler", "review"),
		pagination: pagination,
	}
}

func (h *Handler) Routes() routes.Group {
	return routes.Group{
		Prefix: "/review/cases",
		Routes: []routes.Route{
			{Method: "GET", Pattern: "", Handler: h.List},
			{Method: "GET", Pattern: "/{id}", Handler: h.Find},
			{Method: "GET", Pattern: "/{id}/image", Handler: h.Image},
			{Method: "POST", Pattern: "/{id}/respond", Handler: h.Respond},
		},
	}
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	page := pagination.PageRequestFromQuery(r.URL.Query(), h.pagination)

	result, err := h.sys.ListPending(r.Context(), page)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, ListResponse{View: cases.Listing(), Cases: result})
}

func (h *Handler) Find(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, ErrInvalidID)
		return
	}

	c, err := h.sys.Find(r.Context(), id)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, CaseResponse{View: cases.Viewing(id), Case: c})
}

// Respond records the doctor's response. Success returns the doctor to the
// list; failure keeps them on the case with the error attached.
func (h *Handler) Respond(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, ErrInvalidID)
		return
	}

	actor, err := identity.Require(r.Context())
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusUnauthorized, err)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxRespondBody)

	var req RespondRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.respondCaseError(w, id, ErrBodyTooLarge)
			return
		}
		h.respondCaseError(w, id, ErrInvalidBody)
		return
	}

	c, err := h.sys.Respond(r.Context(), id, actor.ID, req.Response)
	if err != nil {
		h.respondCaseError(w, id, err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, CaseResponse{View: cases.Listing(), Case: c})
}

func (h *Handler) Image(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, ErrInvalidID)
		return
	}

	obj, err := h.sys.Image(r.Context(), id)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}
	defer obj.Body.Close()

	w.Header().Set("Content-Type", obj.ContentType)
	if obj.Size > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(obj.Size, 10))
	}
	w.WriteHeader(http.StatusOK)

	if _, err := io.Copy(w, obj.Body); err != nil {
		h.logger.Warn("image stream interrupted", "id", id, "error", err)
	}
}

func (h *Handler) respondCaseError(w http.ResponseWriter, id uuid.UUID, err error) {
	status := MapHTTPStatus(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("respond failed", "id", id, "status", status, "error", err)
	} else {
		h.logger.Warn("respond rejected", "id", id, "status", status, "error", err)
	}

	handlers.RespondJSON(w, status, CaseResponse{View: cases.Viewing(id), Error: err.Error()})
}
