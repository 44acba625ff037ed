package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"joinflow/internal/invitation/models"
	"joinflow/internal/invitation/service"
	"joinflow/internal/platform/middleware"
	id "joinflow/pkg/domain"
	dErrors "joinflow/pkg/domain-errors"
	"joinflow/pkg/platform/httputil"
	"joinflow/pkg/requestcontext"
)

// Service defines the invitation operations the handler needs.
type Service interface {
	Create(ctx context.Context, sender id.UserID, in service.CreateInput) (*models.Invitation, error)
	MarkReady(ctx context.Context, actor id.UserID, invitationID id.InvitationID) (*models.Invitation, error)
	Get(ctx context.Context, actor id.UserID, invitationID id.InvitationID) (*models.Invitation, error)
}

// Handler handles invitation endpoints.
type Handler struct {
	invitations  Service
	logger       *slog.Logger
	jwtValidator middleware.JWTValidator
}

func New(invitations Service, logger *slog.Logger, jwtValidator middleware.JWTValidator) *Handler {
	return &Handler{invitations: invitations, logger: logger, jwtValidator: jwtValidator}
}

// Register registers the invitation routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(middleware.ContentTypeJSON)
		r.Use(middleware.RequireAuth(h.jwtValidator, h.logger))
		r.Post("/invitations", h.handleCreate)
		r.Get("/invitations/{id}", h.handleGet)
		r.Post("/invitations/{id}/ready", h.handleReady)
	})
}

type createRequest struct {
	TargetKind     string `json:"target_kind"`
	TargetID       string `json:"target_id"`
	RecipientEmail string `json:"recipient_email"`
	RecipientName  string `json:"recipient_name"`
	Title          string `json:"title"`
	Draft          bool   `json:"draft"`
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req createRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}
	target, err := id.ParseRef(req.TargetKind, req.TargetID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	inv, err := h.invitations.Create(ctx, requestcontext.UserID(ctx), service.CreateInput{
		Target:         target,
		RecipientEmail: req.RecipientEmail,
		RecipientName:  req.RecipientName,
		Title:          req.Title,
		Draft:          req.Draft,
	})
	if err != nil {
		h.writeServiceError(ctx, w, "create invitation", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, inv)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	invitationID, err := id.ParseInvitationID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	inv, err := h.invitations.Get(ctx, requestcontext.UserID(ctx), invitationID)
	if err != nil {
		h.writeServiceError(ctx, w, "load invitation", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, inv)
}

func (h *Handler) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	invitationID, err := id.ParseInvitationID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	inv, err := h.invitations.MarkReady(ctx, requestcontext.UserID(ctx), invitationID)
	if err != nil {
		h.writeServiceError(ctx, w, "mark invitation ready", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, inv)
}

func (h *Handler) writeServiceError(ctx context.Context, w http.ResponseWriter, op string, err error) {
	if dErrors.HasCode(err, dErrors.CodeInternal) || dErrors.CodeOf(err) == "" {
		h.logger.ErrorContext(ctx, "failed to "+op,
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
	}
	httputil.WriteError(w, err)
}
