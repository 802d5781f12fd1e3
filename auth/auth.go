// Package auth implements the shared-credential Basic authentication gate
// in front of the participants resource.
package auth

import (
	"crypto/subtle"
	"net/http"

	"github.com/Skryldev/census-api/httputil"
	"github.com/Skryldev/census-api/logger"
)

// UnauthorizedMessage is the body of every rejected request.
const UnauthorizedMessage = "Unauthorized - Invalid credentials"

// Credentials is the single accepted username/password pair.
type Credentials struct {
	Username string
	Password string
}

// Gate rejects requests that do not carry the configured credentials.
type Gate struct {
	creds Credentials
	realm string
}

// NewGate returns a Gate for creds. realm is announced in WWW-Authenticate.
func NewGate(creds Credentials, realm string) *Gate {
	if realm == "" {
		realm = "census"
	}
	return &Gate{creds: creds, realm: realm}
}

// Allow reports whether r carries the configured credentials.
func (g *Gate) Allow(r *http.Request) bool {
	user, pass, ok := r.BasicAuth()
	if !ok {
		return false
	}
	// Both comparisons always run.
	userOK := subtle.ConstantTimeCompare([]byte(user), []byte(g.creds.Username))
	passOK := subtle.ConstantTimeCompare([]byte(pass), []byte(g.creds.Password))
	return userOK&passOK == 1
}

// Middleware passes authorised requests through unchanged and answers all
// others with 401.
func (g *Gate) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !g.Allow(r) {
			_, _, hasHeader := r.BasicAuth()
			logger.FromContext(r.Context()).Warn("auth: rejected request",
				"method", r.Method,
				"route", logger.RoutePattern(r),
				"credentials_present", hasHeader,
			)
			w.Header().Set("WWW-Authenticate", `Basic realm="`+g.realm+`"`)
			httputil.Error(w, r, http.StatusUnauthorized, UnauthorizedMessage)
			return
		}
		next.ServeHTTP(w, r)
	})
}
