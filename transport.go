package sessiongate

import (
	"net/http"
	"strings"
	"time"
)

// RefreshHeader is the request header carrying the refresh token in
// header auth mode.
const RefreshHeader = "X-Refresh-Token"

// SetRefreshCookie writes the refresh token cookie. The cookie is
// HTTP-only, secure, and SameSite=None so browser clients on another
// origin can present it; its lifetime matches the refresh TTL. A no-op in
// header auth mode.
func (e *Engine) SetRefreshCookie(w http.ResponseWriter, refreshToken string) {
	if e == nil || e.config.AuthMode != AuthModeCookie {
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     e.config.Cookie.Name,
		Value:    refreshToken,
		Domain:   e.config.Cookie.Domain,
		Path:     "/",
		MaxAge:   int(e.config.JWT.RefreshTTL / time.Second),
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteNoneMode,
	})
}

// ClearRefreshCookie expires the refresh token cookie. A no-op in header
// auth mode.
func (e *Engine) ClearRefreshCookie(w http.ResponseWriter) {
	if e == nil || e.config.AuthMode != AuthModeCookie {
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     e.config.Cookie.Name,
		Value:    "",
		Domain:   e.config.Cookie.Domain,
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteNoneMode,
	})
}

// CredentialsBody is the JSON shape returned to clients after a
// successful login or refresh. RefreshToken is empty in cookie auth
// mode, where the refresh token travels only in the cookie.
type CredentialsBody struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
}

// CredentialsBodyFor builds the response body for pair, omitting the
// refresh token when the engine runs in cookie auth mode.
func (e *Engine) CredentialsBodyFor(pair *TokenPair) CredentialsBody {
	body := CredentialsBody{AccessToken: pair.AccessToken}
	if e == nil || e.config.AuthMode == AuthModeHeader {
		body.RefreshToken = pair.RefreshToken
	}
	return body
}

// RefreshTokenFromRequest extracts the refresh token the client presented,
// from the cookie or the [RefreshHeader] header depending on auth mode.
// Returns "" when the client holds none.
func (e *Engine) RefreshTokenFromRequest(r *http.Request) string {
	if e == nil {
		return ""
	}
	if e.config.AuthMode == AuthModeHeader {
		return r.Header.Get(RefreshHeader)
	}
	cookie, err := r.Cookie(e.config.Cookie.Name)
	if err != nil {
		return ""
	}
	return cookie.Value
}

// RequestMetaFrom captures the client address and user agent of r. The
// first X-Forwarded-For hop wins over RemoteAddr; the header is only
// meaningful behind a proxy that strips or rewrites client-supplied
// values, so deploy without a trusted proxy at your own risk.
func RequestMetaFrom(r *http.Request) RequestMeta {
	ip := r.Header.Get("X-Forwarded-For")
	if idx := strings.IndexByte(ip, ','); idx >= 0 {
		ip = ip[:idx]
	}
	ip = strings.TrimSpace(ip)
	if ip == "" {
		ip = r.RemoteAddr
	}
	return RequestMeta{
		IP:        ip,
		UserAgent: r.UserAgent(),
	}
}
