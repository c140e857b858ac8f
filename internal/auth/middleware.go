package auth

import (
	"net/http"
	"strings"

	"viewsphere/internal/web"
)

// Middleware gates a handler behind access-token verification. The token
// comes from the accessToken cookie or an Authorization bearer header; the
// cookie wins when both are present. The check is stateless: no store
// lookup, so an access token stays valid until its own expiry even after
// logout.
func Middleware(issuer *TokenIssuer, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenString := extractAccessToken(r)
		if tokenString == "" {
			web.Error(w, http.StatusUnauthorized, "missing authorization token")
			return
		}

		userID, err := issuer.Verify(tokenString, KindAccess)
		if err != nil {
			web.Error(w, http.StatusUnauthorized, "invalid or expired token")
			return
		}

		next.ServeHTTP(w, r.WithContext(web.WithUserID(r.Context(), userID)))
	})
}

func extractAccessToken(r *http.Request) string {
	if cookie, err := r.Cookie(AccessCookie); err == nil && cookie.Value != "" {
		return cookie.Value
	}

	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
