// Package common contains shared constants and sentinel errors used across
// bloghub components.
package common

// AuthorizationHeaderName carries the bearer access token on HTTP requests.
const AuthorizationHeaderName = "Authorization"

// BearerPrefix precedes the JWT in the Authorization header.
const BearerPrefix = "Bearer "

// RequestIDHeaderName is echoed back on every response.
const RequestIDHeaderName = "X-Request-Id"

// ArticleListNamespace prefixes every cached article listing key.
const ArticleListNamespace = "articles"
