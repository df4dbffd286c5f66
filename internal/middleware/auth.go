package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/onnwee/mealpilot/internal/auth"
)

// TokenValidator is satisfied by *auth.Service.
type TokenValidator interface {
	Validate(token string) (*auth.Claims, error)
}

// RequireAuth rejects requests without a valid bearer token with 401 and
// stores the token subject as the user id.
func RequireAuth(v TokenValidator, respond ErrorResponder) func(http.Handler) http.Handler {
	respond = responderOrPlain(respond)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r)
			if !ok {
				w.Header().Set("WWW-Authenticate", `Bearer realm="mealpilot"`)
				respond(w, r, http.StatusUnauthorized, ErrorCodeAuthFailed, "missing bearer token")
				return
			}

			claims, err := v.Validate(token)
			if err != nil {
				msg := "invalid token"
				if errors.Is(err, auth.ErrExpiredToken) {
					msg = "token has expired"
				}
				w.Header().Set("WWW-Authenticate", `Bearer realm="mealpilot", error="invalid_token"`)
				respond(w, r, http.StatusUnauthorized, ErrorCodeAuthFailed, msg)
				return
			}

			next.ServeHTTP(w, r.WithContext(SetUserID(r.Context(), claims.UserID())))
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	scheme, token, found := strings.Cut(h, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
