package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/sessiongate-io/sessiongate"
)

type identityContextKey struct{}

// IdentityFromContext returns the identity injected by [Guard].
func IdentityFromContext(ctx context.Context) (sessiongate.Identity, bool) {
	identity, ok := ctx.Value(identityContextKey{}).(sessiongate.Identity)
	return identity, ok
}

// Guard rejects requests whose bearer access token fails verification and
// injects the verified identity into the request context otherwise.
func Guard(engine *sessiongate.Engine) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if engine == nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			token, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			identity, err := engine.VerifyAccess(r.Context(), token)
			if err != nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), identityContextKey{}, identity)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(value string) (string, bool) {
	const bearer = "Bearer "
	if !strings.HasPrefix(value, bearer) {
		return "", false
	}

	token := value[len(bearer):]
	if token == "" {
		return "", false
	}

	return token, true
}
