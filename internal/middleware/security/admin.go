package security

import (
	"crypto/subtle"
	"net/http"

	applog "clubfines/internal/log"
)

// AdminHeader carries the shared admin password.
const AdminHeader = "X-Admin-Password"

// AdminGuard gates handlers behind a single shared password. An empty
// password locks every guarded handler.
type AdminGuard struct {
	password []byte
	logger   *applog.Logger
}

func NewAdminGuard(password string) *AdminGuard {
	return &AdminGuard{
		password: []byte(password),
		logger:   applog.NewLogger(applog.ComponentSecurity),
	}
}

// Enabled reports whether a password is configured.
func (g *AdminGuard) Enabled() bool {
	return len(g.password) > 0
}

// Check reports whether r carries the admin password.
func (g *AdminGuard) Check(r *http.Request) bool {
	if !g.Enabled() {
		return false
	}
	given := []byte(r.Header.Get(AdminHeader))
	return subtle.ConstantTimeCompare(given, g.password) == 1
}

// Require wraps next so it only runs for admin requests. onDenied writes
// the rejection; nil means a plain 401.
func (g *AdminGuard) Require(next http.HandlerFunc, onDenied func(http.ResponseWriter, *http.Request)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !g.Check(r) {
			g.logger.WarnContext(r.Context(), "Admin access denied",
				applog.FieldMethod, r.Method,
				applog.FieldPath, r.URL.Path,
				"configured", g.Enabled())
			if onDenied != nil {
				onDenied(w, r)
			} else {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
			}
			return
		}
		next(w, r)
	}
}
