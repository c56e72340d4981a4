package http

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"

	"github.com/vidtube/backend/internal/domain"
	"github.com/vidtube/backend/internal/service"
	"github.com/vidtube/backend/pkg/httputil"
	"github.com/vidtube/backend/pkg/middleware"
)

// UserHandler handles account, channel and watch-history endpoints. All
// routes sit behind the auth gate.
type UserHandler struct {
	users    *service.UserService
	channels *service.ChannelService
	uploads  UploadConfig
	logger   *slog.Logger
}

// NewUserHandler creates a new user HTTP handler.
func NewUserHandler(users *service.UserService, channels *service.ChannelService, uploads UploadConfig, logger *slog.Logger) *UserHandler {
	return &UserHandler{users: users, channels: channels, uploads: uploads, logger: logger}
}

// --- Request DTOs ---

// ChangePasswordRequest is the change-password body.
type ChangePasswordRequest struct {
	OldPassword string `json:"oldPassword" validate:"required"`
	NewPassword string `json:"newPassword" validate:"required,notblank"`
}

func (req *ChangePasswordRequest) fromForm(v url.Values) {
	req.OldPassword = v.Get("oldPassword")
	req.NewPassword = v.Get("newPassword")
}

// UpdateAccountRequest is the update-account body.
type UpdateAccountRequest struct {
	FullName string `json:"fullName"`
	Email    string `json:"email"`
}

func (req *UpdateAccountRequest) fromForm(v url.Values) {
	req.FullName = v.Get("fullName")
	req.Email = v.Get("email")
}

// --- Handlers ---

// ChangePassword handles POST /api/v1/users/change-password.
func (h *UserHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	var req ChangePasswordRequest
	if err := decodeRequest(r, &req, false); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	userID := middleware.UserIDFromContext(r.Context())
	if err := h.users.ChangePassword(r.Context(), userID, req.OldPassword, req.NewPassword); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteSuccess(w, http.StatusOK, struct{}{}, "password changed successfully")
}

// CurrentUser handles GET /api/v1/users/current-user. It answers from the
// user the auth gate already resolved.
func (h *UserHandler) CurrentUser(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.PrincipalFromContext[*domain.PublicUser](r.Context())
	if !ok || user == nil {
		var err error
		user, err = h.users.GetCurrentUser(r.Context(), middleware.UserIDFromContext(r.Context()))
		if err != nil {
			httputil.WriteError(w, r, err, h.logger)
			return
		}
	}

	httputil.WriteSuccess(w, http.StatusOK, user, "current user fetched successfully")
}

// UpdateAccount handles PATCH /api/v1/users/update-account.
func (h *UserHandler) UpdateAccount(w http.ResponseWriter, r *http.Request) {
	var req UpdateAccountRequest
	if err := decodeRequest(r, &req, false); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	user, err := h.users.UpdateAccount(r.Context(), middleware.UserIDFromContext(r.Context()), req.FullName, req.Email)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteSuccess(w, http.StatusOK, user, "account details updated successfully")
}

// UpdateAvatar handles PATCH /api/v1/users/avatar (multipart field "avatar").
func (h *UserHandler) UpdateAvatar(w http.ResponseWriter, r *http.Request) {
	h.replaceMedia(w, r, "avatar", h.users.UpdateAvatar, "avatar updated successfully")
}

// UpdateCoverImage handles PATCH /api/v1/users/cover-image (multipart field
// "coverImage").
func (h *UserHandler) UpdateCoverImage(w http.ResponseWriter, r *http.Request) {
	h.replaceMedia(w, r, "coverImage", h.users.UpdateCoverImage, "cover image updated successfully")
}

type mediaUpdater func(ctx context.Context, userID string, f *service.File) (*domain.PublicUser, error)

func (h *UserHandler) replaceMedia(
	w http.ResponseWriter,
	r *http.Request,
	field string,
	update mediaUpdater,
	message string,
) {
	sp := newSpool(h.uploads, h.logger)
	defer sp.cleanup()

	if err := sp.parse(w, r); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	file, err := sp.take(r, field)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	user, err := update(r.Context(), middleware.UserIDFromContext(r.Context()), file)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteSuccess(w, http.StatusOK, user, message)
}

// ChannelProfile handles GET /api/v1/users/c/{username}.
func (h *UserHandler) ChannelProfile(w http.ResponseWriter, r *http.Request) {
	profile, err := h.channels.GetChannelProfile(r.Context(), chi.URLParam(r, "username"), middleware.UserIDFromContext(r.Context()))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteSuccess(w, http.StatusOK, profile, "user channel fetched successfully")
}

// WatchHistory handles GET /api/v1/users/watch-history.
func (h *UserHandler) WatchHistory(w http.ResponseWriter, r *http.Request) {
	history, err := h.channels.GetWatchHistory(r.Context(), middleware.UserIDFromContext(r.Context()))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteSuccess(w, http.StatusOK, history, "watch history fetched successfully")
}
