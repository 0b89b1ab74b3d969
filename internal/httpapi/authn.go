package httpapi

import (
	"net/http"
	"strings"

	"aguideptbr.org/internal/auth"
	"aguideptbr.org/internal/obs"
)

const authHeader = "Authorization"

// Public routes bypass the token gate via this explicit allow-list. There is
// no framework default to fall back on: a path not listed here requires a
// valid bearer token, full stop.
var publicPaths = []string{
	"/v1/auth/register",
	"/v1/auth/login",
	"/healthz",
	"/readyz",
	"/metrics",
}
var publicPrefixes = []string{
	"/assets/",
}

// withAuth runs the token validator state machine in front of every
// protected route. Rejections map to 401 with the machine-readable code in
// the body; only store failures surface as 500.
func (a *API) withAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions {
			next.ServeHTTP(w, r)
			return
		}
		if isPublicPath(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		identity, rejection, err := a.validator.Validate(r.Context(), r.Header.Get(authHeader))
		if err != nil {
			writeError(w, r, http.StatusInternalServerError, "authentication error")
			return
		}
		if rejection != nil {
			obs.ObserveTokenRejection(string(rejection.Code))
			// Warning only, no stack: routine auth failures must not
			// flood the log.
			obs.Warn("token rejected", map[string]any{
				"path":   r.URL.Path,
				"reason": string(rejection.Code),
			})
			respondRejection(w, rejection)
			return
		}

		ctx := auth.ContextWithIdentity(r.Context(), identity)
		ctx = auth.ContextWithToken(ctx, bearerToken(r.Header.Get(authHeader)))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func respondRejection(w http.ResponseWriter, rejection *auth.Rejection) {
	w.Header().Set("WWW-Authenticate", `Bearer realm="aguide"`)
	writeJSON(w, http.StatusUnauthorized, map[string]any{
		"error":   string(rejection.Code),
		"message": rejection.Message,
	})
}

// bearerToken strips the scheme prefix; validation has already succeeded by
// the time this runs.
func bearerToken(header string) string {
	return strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(header), "Bearer "))
}

func isPublicPath(path string) bool {
	for _, p := range publicPaths {
		if path == p {
			return true
		}
	}
	for _, prefix := range publicPrefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}
