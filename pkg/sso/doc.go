// Package sso implements the identity federation gateway: login into a tenant
// account through an external identity provider instead of a local password.
//
// # Overview
//
// The package ties together four pieces:
//  1. A correlation state codec that binds each login attempt to a tenant and
//     provider with an HMAC-signed, TTL-bounded opaque value.
//  2. Provider adapters, one per OAuth2 provider (google, microsoft, github)
//     plus a SAML adapter, that build authorization requests and resolve
//     callbacks to a normalized ExternalIdentity.
//  3. An identity resolver that maps an external identity to a local user,
//     auto-provisioning a federation-only account on first login.
//  4. The Gateway orchestrator exposing Initiate and CompleteCallback flows
//     and the HTTP handlers in front of them.
//
// # Security model
//
// The destination tenant for an OAuth login is always taken from the signed
// state token, never from client-controlled callback parameters. For SAML the
// tenant binding comes from the validated assertion issuer. Adapter failures
// are collapsed to an opaque authentication error at the HTTP boundary;
// internal error kinds are kept for logs and metrics only.
//
// # Usage Example
//
//	codec := sso.NewStateCodec(stateSecret, 10*time.Minute)
//	registry := sso.NewRegistry(
//		sso.NewGoogleAdapter(tenants, codec, google, fetcher),
//	)
//	gateway := sso.NewGateway(registry, samlAdapter, resolver, issuer, tenants, codec, logger, metrics)
//	handlers := sso.NewHandlers(gateway, logger)
//	handlers.RegisterRoutes(router)
//
// # Related Packages
//
//   - pkg/auth: user model, token signing, session issuance
//   - pkg/storage/postgres: tenant/user/session stores
package sso
