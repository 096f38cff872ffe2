// Package server provides HTTP routing, middleware, and the session lifecycle
// for the top tracks web service.
//
// # Router Infrastructure
//
// The [Router] interface defines HTTP routing with middleware support.
//
// [Middleware] wraps handlers in reverse order (last added executes first), following the standard Go pattern.
//
// The [BasicRouter] implementation uses [http.ServeMux] internally with method filtering.
//
// # Routes
//
//	GET /api/spotify/connect  → authorization URL + anti-replay state cookie
//	GET /api/spotify/callback → code exchange, redirects to the frontend with a signed token
//	GET /api/spotify/songs    → protected top-tracks fetch (Bearer signed token)
//	GET /api/health           → liveness probe
//
// # Session Lifecycle
//
// The server holds no session state. The browser presents a signed token on
// every protected request; [Authorizer] decodes it, refreshes the underlying
// Spotify credentials when they have lapsed, and hands back a rotated token
// for the client to store. A failed decode or refresh terminates the request
// with 401 and the client restarts the authorization flow.
//
// # Handler Interface
//
// Custom handlers implement the [Handler] interface, which wraps the stdlib handler interface and adds routes,
// allowing handlers to register multiple routes to encapsulate route definitions within the implementation.
package server
