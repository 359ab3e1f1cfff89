// Package middleware provides HTTP middleware for the gateway: bearer token
// authentication and Redis-backed rate limiting.
//
// # Overview
//
// The auth middleware verifies access tokens minted by pkg/auth and places
// the verified claims on the request context. The rate limiter is a fixed
// window counter in Redis keyed by client address, shared across instances;
// it fails open when Redis is unavailable.
//
// # Related Packages
//
//   - pkg/auth: token verification
//   - pkg/httputil: error responses
package middleware
