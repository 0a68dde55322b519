// Package services talks to the festival platform's REST API.
//
// # Client
//
// [Client] wraps every chat-related endpoint under the authenticated user
// prefix (default /api/auth/user). Requests carry the stored access token as
// a bearer header through an [oauth2.Transport] fed by [SessionTokenSource],
// and are throttled by a [rate.Limiter] so polling and companion-room
// enrichment cannot burst the server.
//
// Responses are wrapped in a {"data": ..., "message": ...} envelope; list
// endpoints nest their items under data.content.
//
// # Error Handling
//
// Non-2xx responses become an [*APIError] carrying the server's message
// verbatim. It unwraps to a sentinel from the shared package:
//   - [shared.ErrNotFound] : 404
//   - [shared.ErrInvalidReference] : 400, 422
//   - [shared.ErrNotAuthenticated] : 401
//   - [shared.ErrForbidden] : 403
//   - [shared.ErrAPIRequest] : anything else
//
// A missing or expired token fails before the request is sent, with
// [shared.ErrNotAuthenticated] or [shared.ErrTokenExpired].
//
// # Raw Requests
//
// [APIService] issues unauthenticated-or-bearer GET/POST requests and returns
// the raw response, for the `festa api` debugging commands.
package services
