// Package server provides the small HTTP surface the CLI needs: a router with
// middleware support and the OAuth callback handler used by `festa auth login`.
//
// # Router Infrastructure
//
// The [Router] interface defines HTTP routing with middleware support.
//
// [Middleware] wraps handlers in reverse order (last added executes first), following the standard Go pattern.
//
// The [BasicRouter] implementation uses [http.ServeMux] internally with method filtering.
//
// # OAuth Callback Handler
//
// [OAuthHandler] receives the authorization code from the platform's login
// redirect, checks the state parameter, and trades the code for platform
// tokens through a [CodeExchanger]. It processes a single callback and
// reports the outcome on its result channel.
//
// [ListenForCallback] runs the handler on localhost until a result arrives
// or the context ends, then shuts the listener down.
package server
