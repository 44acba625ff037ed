package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"joinflow/internal/platform/middleware"
	"joinflow/internal/user/models"
	id "joinflow/pkg/domain"
	dErrors "joinflow/pkg/domain-errors"
	"joinflow/pkg/platform/httputil"
	"joinflow/pkg/requestcontext"
)

// Service defines the user operations the handler needs.
type Service interface {
	Register(ctx context.Context, name, addr string) (*models.User, error)
	Approve(ctx context.Context, actor, userID id.UserID) (*models.User, error)
	Get(ctx context.Context, userID id.UserID) (*models.User, error)
}

// TokenIssuer issues access tokens for newly registered users.
type TokenIssuer interface {
	GenerateAccessToken(userID id.UserID, expiresIn time.Duration) (string, error)
}

// Handler handles user endpoints.
type Handler struct {
	users        Service
	tokens       TokenIssuer
	tokenTTL     time.Duration
	logger       *slog.Logger
	jwtValidator middleware.JWTValidator
}

func New(users Service, tokens TokenIssuer, tokenTTL time.Duration, logger *slog.Logger, jwtValidator middleware.JWTValidator) *Handler {
	return &Handler{
		users:        users,
		tokens:       tokens,
		tokenTTL:     tokenTTL,
		logger:       logger,
		jwtValidator: jwtValidator,
	}
}

// Register registers the user routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	r.With(middleware.ContentTypeJSON).Post("/users", h.handleRegister)
	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireAuth(h.jwtValidator, h.logger))
		r.Get("/users/me", h.handleMe)
		r.Post("/users/{id}/approve", h.handleApprove)
	})
}

type registerRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

type registerResponse struct {
	User        *models.User `json:"user"`
	AccessToken string       `json:"access_token"`
	TokenType   string       `json:"token_type"`
	ExpiresIn   int          `json:"expires_in"`
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req registerRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}

	user, err := h.users.Register(ctx, req.Name, req.Email)
	if err != nil {
		h.writeServiceError(ctx, w, "register user", err)
		return
	}
	token, err := h.tokens.GenerateAccessToken(user.ID, h.tokenTTL)
	if err != nil {
		h.writeServiceError(ctx, w, "issue access token", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, registerResponse{
		User:        user,
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresIn:   int(h.tokenTTL.Seconds()),
	})
}

func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user, err := h.users.Get(ctx, requestcontext.UserID(ctx))
	if err != nil {
		h.writeServiceError(ctx, w, "load current user", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, user)
}

func (h *Handler) handleApprove(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, err := id.ParseUserID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	user, err := h.users.Approve(ctx, requestcontext.UserID(ctx), userID)
	if err != nil {
		h.writeServiceError(ctx, w, "approve user", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, user)
}

func (h *Handler) writeServiceError(ctx context.Context, w http.ResponseWriter, op string, err error) {
	if dErrors.HasCode(err, dErrors.CodeInternal) || dErrors.CodeOf(err) == "" {
		h.logger.ErrorContext(ctx, "failed to "+op,
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
	} else {
		h.logger.WarnContext(ctx, op+" rejected",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
	}
	httputil.WriteError(w, err)
}
