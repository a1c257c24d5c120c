// Package common contains shared constants and sentinel errors used across
// authpipe components.
package common

// AuthorizationHeaderName is the HTTP header (and gRPC metadata key, lower
// cased) that carries the bearer access token on outbound requests.
const AuthorizationHeaderName = "Authorization"

// BearerScheme prefixes the access token in the Authorization header.
const BearerScheme = "Bearer"

// RefreshCookieName is the HTTP-only cookie holding the refresh credential.
// The client never reads it; the cookie jar sends it automatically.
const RefreshCookieName = "refresh_token"

// Default API paths relative to the base URL.
const (
	DefaultLoginPath   = "/login/"
	DefaultLogoutPath  = "/logout/"
	DefaultRefreshPath = "/token/refresh/"
)

// BearerValue formats token as an Authorization header value.
func BearerValue(token string) string {
	return BearerScheme + " " + token
}
