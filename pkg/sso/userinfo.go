package sso

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"
)

// OIDCFetcher resolves authorization codes through an OpenID Connect
// provider: exchange the code, verify the ID token, and read the standard
// profile claims. Used for google and microsoft.
type OIDCFetcher struct {
	oauth    *oauth2.Config
	provider *oidc.Provider
	verifier *oidc.IDTokenVerifier
}

// NewOIDCFetcher discovers the provider at issuerURL and prepares an ID token
// verifier for the adapter's client ID. skipIssuerCheck accommodates
// multi-tenant issuers (Azure AD "common") whose discovery document carries a
// templated issuer.
func NewOIDCFetcher(ctx context.Context, issuerURL string, oauthCfg *oauth2.Config, skipIssuerCheck bool) (*OIDCFetcher, error) {
	if skipIssuerCheck {
		ctx = oidc.InsecureIssuerURLContext(ctx, issuerURL)
	}

	provider, err := oidc.NewProvider(ctx, issuerURL)
	if err != nil {
		return nil, fmt.Errorf("failed to discover OIDC provider: %w", err)
	}

	verifier := provider.Verifier(&oidc.Config{
		ClientID:        oauthCfg.ClientID,
		SkipIssuerCheck: skipIssuerCheck,
	})

	return &OIDCFetcher{
		oauth:    oauthCfg,
		provider: provider,
		verifier: verifier,
	}, nil
}

// Fetch exchanges the code and extracts the identity from the verified ID
// token, falling back to the userinfo endpoint for missing name fields.
func (f *OIDCFetcher) Fetch(ctx context.Context, code string) (*ExternalIdentity, error) {
	token, err := f.oauth.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange code: %w", err)
	}

	rawIDToken, ok := token.Extra("id_token").(string)
	if !ok {
		return nil, fmt.Errorf("missing id_token in token response")
	}

	idToken, err := f.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return nil, fmt.Errorf("failed to verify ID token: %w", err)
	}

	var claims struct {
		Email      string `json:"email"`
		GivenName  string `json:"given_name"`
		FamilyName string `json:"family_name"`
	}
	if err := idToken.Claims(&claims); err != nil {
		return nil, fmt.Errorf("failed to parse ID token claims: %w", err)
	}

	identity := &ExternalIdentity{
		Email:     claims.Email,
		FirstName: claims.GivenName,
		LastName:  claims.FamilyName,
		SubjectID: idToken.Subject,
	}

	// Some providers withhold profile claims from the ID token even with the
	// profile scope granted; the userinfo endpoint still has them.
	if identity.Email == "" || identity.FirstName == "" {
		f.mergeUserInfo(ctx, token, identity)
	}

	return identity, nil
}

func (f *OIDCFetcher) mergeUserInfo(ctx context.Context, token *oauth2.Token, identity *ExternalIdentity) {
	userInfo, err := f.provider.UserInfo(ctx, oauth2.StaticTokenSource(token))
	if err != nil {
		return
	}

	var claims struct {
		Email      string `json:"email"`
		GivenName  string `json:"given_name"`
		FamilyName string `json:"family_name"`
	}
	if err := userInfo.Claims(&claims); err != nil {
		return
	}

	if identity.Email == "" {
		identity.Email = claims.Email
	}
	if identity.FirstName == "" {
		identity.FirstName = claims.GivenName
	}
	if identity.LastName == "" {
		identity.LastName = claims.FamilyName
	}
}

// GitHubFetcher resolves authorization codes against the GitHub REST API,
// which predates OIDC: the user document plus the emails endpoint when the
// profile email is private.
type GitHubFetcher struct {
	oauth   *oauth2.Config
	baseURL string
}

// NewGitHubFetcher creates a fetcher for the GitHub API. baseURL overrides
// https://api.github.com, for GitHub Enterprise or tests.
func NewGitHubFetcher(oauthCfg *oauth2.Config, baseURL string) *GitHubFetcher {
	if baseURL == "" {
		baseURL = "https://api.github.com"
	}
	return &GitHubFetcher{oauth: oauthCfg, baseURL: strings.TrimSuffix(baseURL, "/")}
}

// Fetch exchanges the code and reads the authenticated user's profile
func (f *GitHubFetcher) Fetch(ctx context.Context, code string) (*ExternalIdentity, error) {
	token, err := f.oauth.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange code: %w", err)
	}

	client := f.oauth.Client(ctx, token)

	var user struct {
		ID    int64  `json:"id"`
		Login string `json:"login"`
		Name  string `json:"name"`
		Email string `json:"email"`
	}
	if err := f.getJSON(ctx, client, "/user", &user); err != nil {
		return nil, fmt.Errorf("failed to fetch user profile: %w", err)
	}

	email := user.Email
	if email == "" {
		email, err = f.primaryEmail(ctx, client)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch user email: %w", err)
		}
	}

	first, last := splitName(user.Name)
	return &ExternalIdentity{
		Email:     email,
		FirstName: first,
		LastName:  last,
		SubjectID: fmt.Sprintf("%d", user.ID),
	}, nil
}

func (f *GitHubFetcher) primaryEmail(ctx context.Context, client *http.Client) (string, error) {
	var emails []struct {
		Email    string `json:"email"`
		Primary  bool   `json:"primary"`
		Verified bool   `json:"verified"`
	}
	if err := f.getJSON(ctx, client, "/user/emails", &emails); err != nil {
		return "", err
	}

	for _, e := range emails {
		if e.Primary && e.Verified {
			return e.Email, nil
		}
	}
	for _, e := range emails {
		if e.Verified {
			return e.Email, nil
		}
	}
	return "", fmt.Errorf("no verified email on account")
}

func (f *GitHubFetcher) getJSON(ctx context.Context, client *http.Client, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.baseURL+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/vnd.github+json")

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("request failed with status %d: %s", resp.StatusCode, string(body))
	}

	return json.NewDecoder(resp.Body).Decode(out)
}

// splitName splits a display name into first/last on the first space
func splitName(name string) (first, last string) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", ""
	}
	parts := strings.SplitN(name, " ", 2)
	if len(parts) == 1 {
		return parts[0], ""
	}
	return parts[0], parts[1]
}
