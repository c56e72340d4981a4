package http

import (
	"log/slog"
	"net/http"
	"net/url"

	"github.com/vidtube/backend/internal/service"
	"github.com/vidtube/backend/pkg/httputil"
	"github.com/vidtube/backend/pkg/middleware"
)

// AuthHandler handles registration and the session lifecycle.
type AuthHandler struct {
	service *service.UserService
	cookies CookieConfig
	uploads UploadConfig
	logger  *slog.Logger
}

// NewAuthHandler creates a new auth HTTP handler.
func NewAuthHandler(svc *service.UserService, cookies CookieConfig, uploads UploadConfig, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{service: svc, cookies: cookies, uploads: uploads, logger: logger}
}

// --- Request DTOs ---

// LoginRequest is the login body. One of userName or email is required.
type LoginRequest struct {
	UserName string `json:"userName"`
	Email    string `json:"email"`
	Password string `json:"password" validate:"required"`
}

func (req *LoginRequest) fromForm(v url.Values) {
	req.UserName = v.Get("userName")
	req.Email = v.Get("email")
	req.Password = v.Get("password")
}

// RefreshTokenRequest carries the refresh token when no cookie is sent.
type RefreshTokenRequest struct {
	RefreshToken string `json:"refreshToken"`
}

func (req *RefreshTokenRequest) fromForm(v url.Values) {
	req.RefreshToken = v.Get("refreshToken")
}

// --- Handlers ---

// Register handles POST /api/v1/users/register (multipart).
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	sp := newSpool(h.uploads, h.logger)
	defer sp.cleanup()

	if err := sp.parse(w, r); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	avatar, err := sp.take(r, "avatar")
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	cover, err := sp.take(r, "coverImage")
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	user, err := h.service.Register(r.Context(), service.RegisterInput{
		FullName:   r.FormValue("fullName"),
		Email:      r.FormValue("email"),
		UserName:   r.FormValue("userName"),
		Password:   r.FormValue("password"),
		Avatar:     avatar,
		CoverImage: cover,
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteSuccess(w, http.StatusCreated, user, "user registered successfully")
}

// Login handles POST /api/v1/users/login.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := decodeRequest(r, &req, false); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	res, err := h.service.Login(r.Context(), service.LoginInput{
		UserName: req.UserName,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	h.cookies.setSession(w, res.AccessToken, res.RefreshToken)
	httputil.WriteSuccess(w, http.StatusOK, res, "user logged in successfully")
}

// Logout handles POST /api/v1/users/logout.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Logout(r.Context(), middleware.UserIDFromContext(r.Context())); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	h.cookies.clearSession(w)
	httputil.WriteSuccess(w, http.StatusOK, struct{}{}, "user logged out")
}

// RefreshToken handles POST /api/v1/users/refresh-token. The cookie wins
// over the body.
func (h *AuthHandler) RefreshToken(w http.ResponseWriter, r *http.Request) {
	var incoming string
	if c, err := r.Cookie(refreshTokenCookie); err == nil {
		incoming = c.Value
	}
	if incoming == "" {
		var req RefreshTokenRequest
		if err := decodeRequest(r, &req, true); err != nil {
			httputil.WriteError(w, r, err, h.logger)
			return
		}
		incoming = req.RefreshToken
	}

	pair, err := h.service.RefreshToken(r.Context(), incoming)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	h.cookies.setPair(w, pair)
	httputil.WriteSuccess(w, http.StatusOK, pair, "access token refreshed")
}
