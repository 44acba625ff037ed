package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	activitymodels "joinflow/internal/activity/models"
	"joinflow/internal/group/models"
	"joinflow/internal/platform/middleware"
	id "joinflow/pkg/domain"
	dErrors "joinflow/pkg/domain-errors"
	"joinflow/pkg/platform/httputil"
	"joinflow/pkg/requestcontext"
)

// Service defines the group operations the handler needs.
type Service interface {
	CreateSpace(ctx context.Context, name string, creator id.UserID) (*models.Space, error)
	CreateEvent(ctx context.Context, name string, startsAt *time.Time, creator id.UserID) (*models.Event, error)
	AddMember(ctx context.Context, ref id.Ref, actor, userID id.UserID, role id.Role) error
	ListMembers(ctx context.Context, ref id.Ref) ([]*models.Membership, error)
	Activity(ctx context.Context, ref id.Ref, actor id.UserID) ([]*activitymodels.Entry, error)
}

// Handler handles space and event endpoints.
type Handler struct {
	groups       Service
	logger       *slog.Logger
	jwtValidator middleware.JWTValidator
}

func New(groups Service, logger *slog.Logger, jwtValidator middleware.JWTValidator) *Handler {
	return &Handler{groups: groups, logger: logger, jwtValidator: jwtValidator}
}

// Register registers the group routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(middleware.ContentTypeJSON)
		r.Use(middleware.RequireAuth(h.jwtValidator, h.logger))
		r.Post("/spaces", h.handleCreateSpace)
		r.Post("/events", h.handleCreateEvent)
		for _, kind := range []id.RefKind{id.RefSpace, id.RefEvent} {
			base := "/" + string(kind) + "s/{id}"
			r.Get(base+"/members", h.handleListMembers(kind))
			r.Post(base+"/members", h.handleAddMember(kind))
			r.Get(base+"/activity", h.handleActivity(kind))
		}
	})
}

type createGroupRequest struct {
	Name     string     `json:"name"`
	StartsAt *time.Time `json:"starts_at,omitempty"`
}

// activityResponse leaves out the notified flag, which only the dispatcher
// cares about.
type activityResponse struct {
	ID         string            `json:"id"`
	Key        string            `json:"key"`
	Trackable  string            `json:"trackable"`
	Parameters map[string]string `json:"parameters"`
	CreatedAt  time.Time         `json:"created_at"`
}

type addMemberRequest struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
}

func (h *Handler) handleCreateSpace(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req createGroupRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}
	if req.StartsAt != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "spaces have no start time"))
		return
	}
	space, err := h.groups.CreateSpace(ctx, req.Name, requestcontext.UserID(ctx))
	if err != nil {
		h.writeServiceError(ctx, w, "create space", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, space)
}

func (h *Handler) handleCreateEvent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req createGroupRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}
	event, err := h.groups.CreateEvent(ctx, req.Name, req.StartsAt, requestcontext.UserID(ctx))
	if err != nil {
		h.writeServiceError(ctx, w, "create event", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, event)
}

func (h *Handler) handleListMembers(kind id.RefKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		ref, err := id.ParseGroupRef(string(kind), chi.URLParam(r, "id"))
		if err != nil {
			httputil.WriteError(w, err)
			return
		}
		members, err := h.groups.ListMembers(ctx, ref)
		if err != nil {
			h.writeServiceError(ctx, w, "list members", err)
			return
		}
		httputil.WriteJSON(w, http.StatusOK, map[string]any{"members": members})
	}
}

func (h *Handler) handleActivity(kind id.RefKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		ref, err := id.ParseGroupRef(string(kind), chi.URLParam(r, "id"))
		if err != nil {
			httputil.WriteError(w, err)
			return
		}
		entries, err := h.groups.Activity(ctx, ref, requestcontext.UserID(ctx))
		if err != nil {
			h.writeServiceError(ctx, w, "list activity", err)
			return
		}
		resp := make([]activityResponse, 0, len(entries))
		for _, e := range entries {
			resp = append(resp, activityResponse{
				ID:         e.ID.String(),
				Key:        string(e.Key),
				Trackable:  e.Trackable.String(),
				Parameters: e.Parameters,
				CreatedAt:  e.CreatedAt,
			})
		}
		httputil.WriteJSON(w, http.StatusOK, map[string]any{"activity": resp})
	}
}

func (h *Handler) handleAddMember(kind id.RefKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		ref, err := id.ParseGroupRef(string(kind), chi.URLParam(r, "id"))
		if err != nil {
			httputil.WriteError(w, err)
			return
		}
		var req addMemberRequest
		if err := httputil.DecodeJSON(r, &req); err != nil {
			httputil.WriteError(w, err)
			return
		}
		userID, err := id.ParseUserID(req.UserID)
		if err != nil {
			httputil.WriteError(w, err)
			return
		}
		role, err := id.ParseRole(req.Role)
		if err != nil {
			httputil.WriteError(w, err)
			return
		}
		if err := h.groups.AddMember(ctx, ref, requestcontext.UserID(ctx), userID, role); err != nil {
			h.writeServiceError(ctx, w, "add member", err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
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
