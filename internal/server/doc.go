// Package server runs the short-lived local HTTP server that receives the Spotify OAuth2 callback.
//
// # Router
//
// [BasicRouter] wraps [http.ServeMux] with method filtering and a [Middleware] stack.
// Middleware wraps handlers in reverse order (last added executes first).
//
// # OAuth Callback
//
// [OAuthHandler] validates the state parameter, exchanges the authorization code through a
// [TokenExchanger], and sends exactly one [OAuthResult] on its result channel. Later callbacks
// are rejected.
//
// [WaitForCallback] serves the handler on the configured address until a result arrives or the
// context ends, then shuts the server down.
package server
