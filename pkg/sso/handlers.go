package sso

import (
	"errors"
	"fmt"
	"mime"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/fedgate/pkg/audit"
	"github.com/platinummonkey/fedgate/pkg/auth"
	"github.com/platinummonkey/fedgate/pkg/httputil"
	"github.com/platinummonkey/fedgate/pkg/middleware"
	"github.com/platinummonkey/fedgate/pkg/observability"
)

// Handlers exposes the federation flows over HTTP
type Handlers struct {
	gateway *Gateway
	logger  *observability.Logger
}

// NewHandlers creates the HTTP handlers for the gateway
func NewHandlers(gateway *Gateway, logger *observability.Logger) *Handlers {
	return &Handlers{
		gateway: gateway,
		logger:  logger,
	}
}

// RegisterRoutes mounts the SSO routes on the router. Middleware passed here
// wraps only the initiate endpoints, where rate limiting applies.
func (h *Handlers) RegisterRoutes(r *mux.Router, initiateMiddleware ...mux.MiddlewareFunc) {
	initiateOAuth := http.Handler(http.HandlerFunc(h.InitiateOAuth))
	initiateSAML := http.Handler(http.HandlerFunc(h.InitiateSAML))
	for i := len(initiateMiddleware) - 1; i >= 0; i-- {
		initiateOAuth = initiateMiddleware[i](initiateOAuth)
		initiateSAML = initiateMiddleware[i](initiateSAML)
	}

	r.Handle("/sso/oauth/initiate", initiateOAuth).Methods(http.MethodPost)
	r.HandleFunc("/sso/oauth/callback", h.OAuthCallback).Methods(http.MethodGet)
	r.Handle("/sso/saml/initiate", initiateSAML).Methods(http.MethodPost)
	r.HandleFunc("/sso/saml/callback", h.SAMLCallback).Methods(http.MethodPost)
	r.HandleFunc("/sso/config/{tenantID}", h.TenantConfig).Methods(http.MethodGet)
	r.HandleFunc("/sso/saml/metadata/{tenantID}", h.SAMLMetadata).Methods(http.MethodGet)
}

// RegisterAuthenticatedRoutes mounts the routes that require a verified
// access token. authMiddleware wraps every route registered here and is
// expected to place claims on the request context.
func (h *Handlers) RegisterAuthenticatedRoutes(r *mux.Router, authMiddleware mux.MiddlewareFunc) {
	r.Handle("/sso/logout", authMiddleware(http.HandlerFunc(h.Logout))).Methods(http.MethodPost)
	r.Handle("/sso/audit/events", authMiddleware(http.HandlerFunc(h.AuditEvents))).Methods(http.MethodGet)
}

// InitiateOAuthRequest is the body for POST /sso/oauth/initiate
type InitiateOAuthRequest struct {
	TenantID string `json:"tenant_id"`
	Provider string `json:"provider"`
}

// InitiateOAuth starts an OAuth2 login and returns the authorization URL
func (h *Handlers) InitiateOAuth(w http.ResponseWriter, r *http.Request) {
	var req InitiateOAuthRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if req.TenantID == "" || req.Provider == "" {
		httputil.WriteBadRequest(w, "tenant_id and provider are required")
		return
	}

	initiation, err := h.gateway.InitiateOAuth(r.Context(), req.Provider, req.TenantID)
	if err != nil {
		h.writeError(w, err)
		return
	}

	httputil.WriteSuccess(w, map[string]string{
		"auth_url": initiation.AuthURL,
		"state":    initiation.State,
		"provider": req.Provider,
	})
}

// OAuthCallback completes an OAuth2 login from the provider redirect
func (h *Handlers) OAuthCallback(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	provider := query.Get("provider")
	code := query.Get("code")
	state := query.Get("state")
	if provider == "" || code == "" || state == "" {
		httputil.WriteBadRequest(w, "provider, code and state are required")
		return
	}

	result, err := h.gateway.CompleteOAuthCallback(r.Context(), provider, code, state, clientInfo(r))
	if err != nil {
		h.writeError(w, err)
		return
	}

	httputil.WriteSuccess(w, loginResponse(result))
}

// InitiateSAMLRequest is the body for POST /sso/saml/initiate
type InitiateSAMLRequest struct {
	TenantID string `json:"tenant_id"`
}

// InitiateSAML starts a SAML login and returns the request document plus the
// IdP redirect URL
func (h *Handlers) InitiateSAML(w http.ResponseWriter, r *http.Request) {
	var req InitiateSAMLRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if req.TenantID == "" {
		httputil.WriteBadRequest(w, "tenant_id is required")
		return
	}

	initiation, err := h.gateway.InitiateSAML(r.Context(), req.TenantID)
	if err != nil {
		h.writeError(w, err)
		return
	}

	httputil.WriteSuccess(w, map[string]string{
		"saml_request": initiation.SAMLRequest,
		"redirect_url": initiation.RedirectURL,
	})
}

// SAMLCallback completes a SAML login from the IdP's POST binding. IdPs post
// form-encoded bodies; a JSON body is also accepted for API clients.
func (h *Handlers) SAMLCallback(w http.ResponseWriter, r *http.Request) {
	samlResponse, relayState := samlCallbackPayload(r)
	if samlResponse == "" {
		httputil.WriteBadRequest(w, "SAMLResponse is required")
		return
	}

	result, err := h.gateway.CompleteSAMLCallback(r.Context(), samlResponse, relayState, clientInfo(r))
	if err != nil {
		h.writeError(w, err)
		return
	}

	httputil.WriteSuccess(w, loginResponse(result))
}

// TenantConfig reports a tenant's available login methods
func (h *Handlers) TenantConfig(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := httputil.ParsePathStringOrError(w, r, "tenantID")
	if !ok {
		return
	}

	config, err := h.gateway.ConfigForTenant(r.Context(), tenantID)
	if err != nil {
		h.writeError(w, err)
		return
	}

	httputil.WriteSuccess(w, config)
}

// SAMLMetadata serves the SP entity descriptor for a tenant
func (h *Handlers) SAMLMetadata(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := httputil.ParsePathStringOrError(w, r, "tenantID")
	if !ok {
		return
	}

	metadata, err := h.gateway.SAMLMetadata(r.Context(), tenantID)
	if err != nil {
		h.writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/samlmetadata+xml")
	w.WriteHeader(http.StatusOK)
	w.Write(metadata)
}

// LogoutRequest is the body for POST /sso/logout
type LogoutRequest struct {
	SessionID string `json:"session_id"`
}

// Logout revokes one of the caller's sessions
func (h *Handlers) Logout(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "missing authentication")
		return
	}

	var req LogoutRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if req.SessionID == "" {
		httputil.WriteBadRequest(w, "session_id is required")
		return
	}

	if err := h.gateway.Logout(r.Context(), req.SessionID, claims.Subject); err != nil {
		h.writeError(w, err)
		return
	}

	httputil.WriteSuccess(w, map[string]string{"status": "revoked"})
}

// AuditEvents returns the caller's tenant login audit trail, newest first.
// Optional query parameters: type, since (RFC 3339), limit.
func (h *Handlers) AuditEvents(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "missing authentication")
		return
	}

	filter, err := auditFilter(r)
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}

	events, err := h.gateway.AuditEvents(r.Context(), claims.TenantID, filter)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if events == nil {
		events = []*audit.Event{}
	}

	httputil.WriteSuccess(w, map[string]interface{}{"events": events})
}

func auditFilter(r *http.Request) (audit.Filter, error) {
	var filter audit.Filter
	query := r.URL.Query()

	filter.Type = audit.EventType(query.Get("type"))
	if raw := query.Get("since"); raw != "" {
		since, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return filter, fmt.Errorf("invalid since parameter: must be RFC 3339")
		}
		filter.Since = since
	}
	if raw := query.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit <= 0 {
			return filter, fmt.Errorf("invalid limit parameter: must be a positive integer")
		}
		filter.Limit = limit
	}
	return filter, nil
}

// writeError maps gateway errors to HTTP responses. Authentication failures
// stay opaque; the precise kind was already logged by the gateway.
func (h *Handlers) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrTenantNotFound),
		errors.Is(err, ErrUnsupportedProvider),
		errors.Is(err, ErrSSONotConfigured):
		httputil.WriteBadRequest(w, err.Error())
	case errors.Is(err, auth.ErrNotFound):
		httputil.WriteNotFoundError(w, "session not found")
	case errors.Is(err, ErrAuthenticationFailed):
		httputil.WriteUnauthorized(w, ErrAuthenticationFailed.Error())
	case errors.Is(err, ErrPersistence):
		h.logger.WithError(err).Error("persistence failure during federation")
		httputil.WriteInternalError(w, fmt.Errorf("internal server error"))
	default:
		h.logger.WithError(err).Error("unexpected federation error")
		httputil.WriteInternalError(w, fmt.Errorf("internal server error"))
	}
}

func loginResponse(result *LoginResult) map[string]interface{} {
	return map[string]interface{}{
		"access_token":  result.Tokens.AccessToken,
		"refresh_token": result.Tokens.RefreshToken,
		"session_id":    result.SessionID,
		"user": map[string]interface{}{
			"id":         result.User.ID,
			"email":      result.User.Email,
			"first_name": result.User.FirstName,
			"last_name":  result.User.LastName,
			"role":       result.User.Role,
		},
	}
}

func samlCallbackPayload(r *http.Request) (samlResponse, relayState string) {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err == nil && mediaType == "application/json" {
		var body struct {
			SAMLResponse string `json:"SAMLResponse"`
			RelayState   string `json:"RelayState"`
		}
		if err := httputil.ParseJSON(r, &body); err != nil {
			return "", ""
		}
		return body.SAMLResponse, body.RelayState
	}

	if err := r.ParseForm(); err != nil {
		return "", ""
	}
	return r.PostFormValue("SAMLResponse"), r.PostFormValue("RelayState")
}

func clientInfo(r *http.Request) auth.ClientInfo {
	return auth.ClientInfo{
		IPAddress: httputil.ClientIP(r),
		UserAgent: r.Header.Get("User-Agent"),
	}
}
