package http

import (
	"net/http"
	"strings"
	"time"

	"github.com/vidtube/backend/internal/domain"
)

const (
	accessTokenCookie  = "accessToken"
	refreshTokenCookie = "refreshToken"
)

// CookieConfig sets the attributes of the session cookies. Cookies are
// always HttpOnly with Path=/.
type CookieConfig struct {
	Secure        bool
	Domain        string
	SameSite      http.SameSite
	AccessMaxAge  time.Duration
	RefreshMaxAge time.Duration
}

// ParseSameSite maps "lax", "strict" or "none" to its http.SameSite mode.
// Anything else yields Lax.
func ParseSameSite(s string) http.SameSite {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "strict":
		return http.SameSiteStrictMode
	case "none":
		return http.SameSiteNoneMode
	default:
		return http.SameSiteLaxMode
	}
}

func (c CookieConfig) cookie(name, value string, maxAge time.Duration) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Domain:   c.Domain,
		MaxAge:   int(maxAge / time.Second),
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: c.SameSite,
	}
}

func (c CookieConfig) setSession(w http.ResponseWriter, access, refresh string) {
	http.SetCookie(w, c.cookie(accessTokenCookie, access, c.AccessMaxAge))
	http.SetCookie(w, c.cookie(refreshTokenCookie, refresh, c.RefreshMaxAge))
}

func (c CookieConfig) setPair(w http.ResponseWriter, pair *domain.TokenPair) {
	c.setSession(w, pair.AccessToken, pair.RefreshToken)
}

func (c CookieConfig) clearSession(w http.ResponseWriter) {
	for _, name := range []string{accessTokenCookie, refreshTokenCookie} {
		ck := c.cookie(name, "", 0)
		ck.MaxAge = -1
		http.SetCookie(w, ck)
	}
}
