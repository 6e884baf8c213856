package chi

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// Health and metrics stay open for load balancers and Prometheus.
var openPaths = map[string]bool{
	"/health":  true,
	"/metrics": true,
}

// apiKeys holds the accepted bearer tokens.
type apiKeys [][]byte

func newAPIKeys(keys []string) apiKeys {
	out := make(apiKeys, 0, len(keys))
	for _, k := range keys {
		if k = strings.TrimSpace(k); k != "" {
			out = append(out, []byte(k))
		}
	}
	return out
}

// accepts compares token against every key in constant time, so response latency
// does not reveal how many leading bytes matched or which key was close.
func (ks apiKeys) accepts(token string) bool {
	t := []byte(token)
	match := 0
	for _, k := range ks {
		match |= subtle.ConstantTimeCompare(t, k)
	}
	return match == 1
}

// bearerToken extracts the credential from an Authorization header. The scheme
// name is case-insensitive.
func bearerToken(header string) (string, bool) {
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// BearerAuthMiddleware rejects requests without one of apiKeys as a bearer token.
// With no non-blank keys configured the API is open.
func BearerAuthMiddleware(keys []string) func(http.Handler) http.Handler {
	accepted := newAPIKeys(keys)

	return func(next http.Handler) http.Handler {
		if len(accepted) == 0 {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if openPaths[r.URL.Path] {
				next.ServeHTTP(w, r)
				return
			}

			header := r.Header.Get("Authorization")
			if header == "" {
				unauthorized(w, "missing authorization header")
				return
			}
			token, ok := bearerToken(header)
			if !ok {
				unauthorized(w, "authorization header must use Bearer scheme")
				return
			}
			if !accepted.accepts(token) {
				unauthorized(w, "invalid api key")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func unauthorized(w http.ResponseWriter, msg string) {
	w.Header().Set("WWW-Authenticate", `Bearer realm="tenderdex"`)
	writeError(w, http.StatusUnauthorized, codeUnauthorized, msg)
}
