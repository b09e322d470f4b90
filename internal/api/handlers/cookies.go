package handlers

import (
	"net/http"
	"time"

	"github.com/dom/auth-server/internal/api/middleware"
)

const (
	AccessTokenCookie  = middleware.AccessTokenCookie
	RefreshTokenCookie = "refreshToken"

	// RefreshPath limits the refresh cookie to the one route that reads it.
	RefreshPath = "/auth/refresh"
)

type CookieConfig struct {
	Secure     bool
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

func (c CookieConfig) cookie(name, value, path string, ttl time.Duration) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     path,
		MaxAge:   int(ttl / time.Second),
		Expires:  time.Now().Add(ttl),
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: http.SameSiteStrictMode,
	}
}

func (c CookieConfig) setAccess(w http.ResponseWriter, token string) {
	http.SetCookie(w, c.cookie(AccessTokenCookie, token, "/", c.AccessTTL))
}

func (c CookieConfig) setRefresh(w http.ResponseWriter, token string) {
	http.SetCookie(w, c.cookie(RefreshTokenCookie, token, RefreshPath, c.RefreshTTL))
}

func (c CookieConfig) setAuth(w http.ResponseWriter, accessToken, refreshToken string) {
	c.setAccess(w, accessToken)
	c.setRefresh(w, refreshToken)
}

func (c CookieConfig) clear(w http.ResponseWriter) {
	for _, ck := range []*http.Cookie{
		c.cookie(AccessTokenCookie, "", "/", 0),
		c.cookie(RefreshTokenCookie, "", RefreshPath, 0),
	} {
		ck.MaxAge = -1
		ck.Expires = time.Unix(0, 0)
		http.SetCookie(w, ck)
	}
}
