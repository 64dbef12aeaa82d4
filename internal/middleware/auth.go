package middleware

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"net/http"
	"strings"
)

// AuthCookie is the name of the session cookie set at login.
const AuthCookie = "authenticated"

// AuthCookieValue derives the cookie value for password.
func AuthCookieValue(password string) string {
	sum := sha256.Sum256([]byte("weapondetection:" + password))
	return hex.EncodeToString(sum[:])
}

func isPublic(path string) bool {
	return path == "/login" ||
		path == "/auth/login" ||
		path == "/metrics" ||
		strings.HasPrefix(path, "/static/") ||
		strings.HasPrefix(path, "/camera/")
}

// AuthMiddleware requires the login cookie on every non-public path. An empty
// password disables authentication.
func AuthMiddleware(password string) func(http.Handler) http.Handler {
	expected := []byte(AuthCookieValue(password))

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if password == "" || isPublic(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			cookie, err := r.Cookie(AuthCookie)
			if err == nil && subtle.ConstantTimeCompare([]byte(cookie.Value), expected) == 1 {
				next.ServeHTTP(w, r)
				return
			}

			// API clients get a status code, browsers the login page
			if strings.HasPrefix(r.URL.Path, "/api/") ||
				r.Header.Get("X-Requested-With") == "XMLHttpRequest" ||
				r.Header.Get("Content-Type") == "application/json" {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}
			http.Redirect(w, r, "/login", http.StatusSeeOther)
		})
	}
}
