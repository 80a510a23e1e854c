package web

import (
	"crypto/rand"
	"crypto/subtle"
	"net/http"
	"time"
)

// The rotation form uses a double-submit cookie: the token in the hidden
// field must equal the cookie the page was served with.
const (
	csrfCookieName = "pskrotator_csrf"
	csrfFormField  = "csrf_token"
	csrfMaxAge     = 12 * time.Hour
)

// csrfToken returns the token for the rotation form, reusing the request's
// cookie so auto-refreshes and open tabs keep a valid form.
func csrfToken(w http.ResponseWriter, r *http.Request) string {
	if cookie, err := r.Cookie(csrfCookieName); err == nil && cookie.Value != "" {
		return cookie.Value
	}

	token := rand.Text()
	http.SetCookie(w, &http.Cookie{
		Name:     csrfCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(csrfMaxAge / time.Second),
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
		Secure:   r.TLS != nil,
	})
	return token
}

// validateCSRF reports whether the posted form token matches the cookie.
func validateCSRF(r *http.Request) bool {
	cookie, err := r.Cookie(csrfCookieName)
	if err != nil || cookie.Value == "" {
		return false
	}
	token := r.PostFormValue(csrfFormField)
	return token != "" && subtle.ConstantTimeCompare([]byte(token), []byte(cookie.Value)) == 1
}
