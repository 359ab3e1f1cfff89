// Package auth holds the account domain model and credential issuance for the
// federation gateway.
//
// # Overview
//
// The package defines tenants, users, sessions, and the signed token pair the
// gateway hands out after a successful federated login. Tokens are JWTs with
// independent signing secrets for the access and refresh halves, so a leaked
// access-token key cannot be used to mint refresh tokens.
//
// # Usage Example
//
// Issue a token pair and a persisted session for a resolved user:
//
//	signer, _ := auth.NewTokenSigner(auth.SignerConfig{
//		AccessSecret:  accessSecret,
//		RefreshSecret: refreshSecret,
//		AccessTTL:     15 * time.Minute,
//		RefreshTTL:    7 * 24 * time.Hour,
//		Issuer:        "fedgate",
//	})
//	issuer := auth.NewIssuer(signer, sessionStore, 7*24*time.Hour)
//	pair, session, err := issuer.Issue(ctx, user, auth.ClientInfo{
//		IPAddress: ip,
//		UserAgent: ua,
//	})
//
// # Related Packages
//
//   - pkg/sso: federation flows that resolve external identities to users
//   - pkg/storage/postgres: durable stores for users, tenants, and sessions
package auth
