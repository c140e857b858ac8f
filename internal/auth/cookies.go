package auth

import (
	"net/http"
	"time"
)

const (
	AccessCookie  = "accessToken"
	RefreshCookie = "refreshToken"
)

// SetTokenCookies delivers a freshly issued pair as HttpOnly+Secure cookies.
func SetTokenCookies(w http.ResponseWriter, tokens TokenPair, accessTTL, refreshTTL time.Duration) {
	http.SetCookie(w, tokenCookie(AccessCookie, tokens.AccessToken, int(accessTTL.Seconds())))
	http.SetCookie(w, tokenCookie(RefreshCookie, tokens.RefreshToken, int(refreshTTL.Seconds())))
}

// ClearTokenCookies drops both cookie artifacts regardless of server-side state.
func ClearTokenCookies(w http.ResponseWriter) {
	http.SetCookie(w, tokenCookie(AccessCookie, "", -1))
	http.SetCookie(w, tokenCookie(RefreshCookie, "", -1))
}

func tokenCookie(name, value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteLaxMode,
	}
}
