package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"joinflow/internal/joinrequest/models"
	"joinflow/internal/platform/middleware"
	id "joinflow/pkg/domain"
	dErrors "joinflow/pkg/domain-errors"
	"joinflow/pkg/platform/httputil"
	"joinflow/pkg/requestcontext"
)

// Service defines the join request operations the handler needs.
type Service interface {
	Invite(ctx context.Context, introducer id.UserID, group id.Ref, addr string, role id.Role, comment string) (*models.JoinRequest, error)
	Request(ctx context.Context, candidate id.UserID, group id.Ref, comment string) (*models.JoinRequest, error)
	Accept(ctx context.Context, token string, actor id.UserID) (*models.JoinRequest, error)
	Decline(ctx context.Context, token string, actor id.UserID) (*models.JoinRequest, error)
	GetByToken(ctx context.Context, token string) (*models.JoinRequest, error)
	ListPendingForGroup(ctx context.Context, actor id.UserID, group id.Ref) ([]*models.JoinRequest, error)
}

// Handler serves join request endpoints. Requests are addressed by their
// secret token only.
type Handler struct {
	requests     Service
	logger       *slog.Logger
	jwtValidator middleware.JWTValidator
}

func New(requests Service, logger *slog.Logger, jwtValidator middleware.JWTValidator) *Handler {
	return &Handler{requests: requests, logger: logger, jwtValidator: jwtValidator}
}

// Register registers the join request routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(middleware.ContentTypeJSON)
		r.Use(middleware.RequireAuth(h.jwtValidator, h.logger))
		for _, kind := range []id.RefKind{id.RefSpace, id.RefEvent} {
			base := "/" + string(kind) + "s/{id}"
			r.Post(base+"/join_requests", h.handleRequest(kind))
			r.Get(base+"/join_requests", h.handleListPending(kind))
			r.Post(base+"/invitations", h.handleInvite(kind))
		}
		r.Get("/join_requests/{token}", h.handleGet)
		r.Post("/join_requests/{token}/accept", h.handleProcess("accept", h.requests.Accept))
		r.Post("/join_requests/{token}/decline", h.handleProcess("decline", h.requests.Decline))
	})
}

type joinRequestRequest struct {
	Comment string `json:"comment"`
}

type inviteRequest struct {
	Email   string `json:"email"`
	Role    string `json:"role,omitempty"`
	Comment string `json:"comment"`
}

func (h *Handler) handleRequest(kind id.RefKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		group, err := id.ParseGroupRef(string(kind), chi.URLParam(r, "id"))
		if err != nil {
			httputil.WriteError(w, err)
			return
		}
		var req joinRequestRequest
		if r.ContentLength != 0 {
			if err := httputil.DecodeJSON(r, &req); err != nil {
				httputil.WriteError(w, err)
				return
			}
		}
		created, err := h.requests.Request(ctx, requestcontext.UserID(ctx), group, req.Comment)
		if err != nil {
			h.writeServiceError(ctx, w, "create join request", err)
			return
		}
		httputil.WriteJSON(w, http.StatusCreated, created)
	}
}

func (h *Handler) handleInvite(kind id.RefKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		group, err := id.ParseGroupRef(string(kind), chi.URLParam(r, "id"))
		if err != nil {
			httputil.WriteError(w, err)
			return
		}
		var req inviteRequest
		if err := httputil.DecodeJSON(r, &req); err != nil {
			httputil.WriteError(w, err)
			return
		}
		role := id.RoleMember
		if req.Role != "" {
			if role, err = id.ParseRole(req.Role); err != nil {
				httputil.WriteError(w, err)
				return
			}
		}
		created, err := h.requests.Invite(ctx, requestcontext.UserID(ctx), group, req.Email, role, req.Comment)
		if err != nil {
			h.writeServiceError(ctx, w, "invite", err)
			return
		}
		httputil.WriteJSON(w, http.StatusCreated, created)
	}
}

func (h *Handler) handleListPending(kind id.RefKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		group, err := id.ParseGroupRef(string(kind), chi.URLParam(r, "id"))
		if err != nil {
			httputil.WriteError(w, err)
			return
		}
		pending, err := h.requests.ListPendingForGroup(ctx, requestcontext.UserID(ctx), group)
		if err != nil {
			h.writeServiceError(ctx, w, "list join requests", err)
			return
		}
		if pending == nil {
			pending = []*models.JoinRequest{}
		}
		httputil.WriteJSON(w, http.StatusOK, map[string]any{"join_requests": pending})
	}
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	found, err := h.requests.GetByToken(ctx, chi.URLParam(r, "token"))
	if err != nil {
		h.writeServiceError(ctx, w, "get join request", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, found)
}

type processFunc func(ctx context.Context, token string, actor id.UserID) (*models.JoinRequest, error)

func (h *Handler) handleProcess(op string, process processFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		processed, err := process(ctx, chi.URLParam(r, "token"), requestcontext.UserID(ctx))
		if err != nil {
			h.writeServiceError(ctx, w, op+" join request", err)
			return
		}
		httputil.WriteJSON(w, http.StatusOK, processed)
	}
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
