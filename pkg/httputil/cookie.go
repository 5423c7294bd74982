package httputil

import (
	"errors"
	"net/http"
	"strings"
	"time"
)

const TicketCookieName = "blockfall_ticket"

// SetTicketCookie stores a guest ticket. secure switches to SameSite=None for cross-site deployments.
func SetTicketCookie(w http.ResponseWriter, token string, ttl time.Duration, secure bool) {
	cookie := &http.Cookie{
		Name:     TicketCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(ttl.Seconds()),
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
	// SameSite=None requires Secure=true
	if secure {
		cookie.SameSite = http.SameSiteNoneMode
	}

	http.SetCookie(w, cookie)
}

func ClearTicketCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     TicketCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
	})
}

// GetTicketFromRequest prefers the cookie and falls back to a bearer Authorization header.
func GetTicketFromRequest(r *http.Request) (string, error) {
	if cookie, err := r.Cookie(TicketCookieName); err == nil && cookie.Value != "" {
		return cookie.Value, nil
	}

	if token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer "); ok && token != "" {
		return token, nil
	}

	return "", errors.New("no ticket in cookie or header")
}
