package sso

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	saml2 "github.com/russellhaering/gosaml2"
	"github.com/russellhaering/gosaml2/types"

	"github.com/platinummonkey/fedgate/pkg/audit"
	"github.com/platinummonkey/fedgate/pkg/auth"
	"github.com/platinummonkey/fedgate/pkg/observability"
)

// fakeTenantStore serves tenants from a map keyed by id and by SAML issuer
type fakeTenantStore struct {
	tenants map[string]*auth.Tenant
	err     error
}

func newFakeTenantStore(tenants ...*auth.Tenant) *fakeTenantStore {
	store := &fakeTenantStore{tenants: make(map[string]*auth.Tenant)}
	for _, tenant := range tenants {
		store.tenants[tenant.ID] = tenant
	}
	return store
}

func (s *fakeTenantStore) GetTenant(ctx context.Context, tenantID string) (*auth.Tenant, error) {
	if s.err != nil {
		return nil, s.err
	}
	tenant, ok := s.tenants[tenantID]
	if !ok {
		return nil, auth.ErrNotFound
	}
	return tenant, nil
}

func (s *fakeTenantStore) GetTenantBySAMLIssuer(ctx context.Context, issuer string) (*auth.Tenant, error) {
	if s.err != nil {
		return nil, s.err
	}
	for _, tenant := range s.tenants {
		if tenant.SAML != nil && tenant.SAML.IdPEntityID == issuer {
			return tenant, nil
		}
	}
	return nil, auth.ErrNotFound
}

// fakeUserStore is an in-memory user store with the same create-or-get
// semantics as the postgres one
type fakeUserStore struct {
	mu    sync.Mutex
	users map[string]*auth.User
	err   error
}

func newFakeUserStore() *fakeUserStore {
	return &fakeUserStore{users: make(map[string]*auth.User)}
}

func userKey(tenantID, email string) string {
	return tenantID + "\x00" + email
}

func (s *fakeUserStore) GetByTenantEmail(ctx context.Context, tenantID, email string) (*auth.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	user, ok := s.users[userKey(tenantID, email)]
	if !ok {
		return nil, auth.ErrNotFound
	}
	copied := *user
	return &copied, nil
}

func (s *fakeUserStore) CreateIfAbsent(ctx context.Context, user *auth.User) (*auth.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	key := userKey(user.TenantID, user.Email)
	if existing, ok := s.users[key]; ok {
		copied := *existing
		return &copied, nil
	}
	copied := *user
	s.users[key] = &copied
	result := copied
	return &result, nil
}

func (s *fakeUserStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.users)
}

// fakeSessionStore records created sessions in memory
type fakeSessionStore struct {
	mu       sync.Mutex
	sessions []*auth.Session
	err      error
}

func (s *fakeSessionStore) Create(ctx context.Context, session *auth.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	copied := *session
	s.sessions = append(s.sessions, &copied)
	return nil
}

func (s *fakeSessionStore) Revoke(ctx context.Context, sessionID, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, session := range s.sessions {
		if session.ID == sessionID && session.UserID == userID {
			session.Revoked = true
			return nil
		}
	}
	return auth.ErrNotFound
}

func (s *fakeSessionStore) byID(sessionID string) *auth.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, session := range s.sessions {
		if session.ID == sessionID {
			return session
		}
	}
	return nil
}

func (s *fakeSessionStore) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	return 0, nil
}

func (s *fakeSessionStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// fakeFetcher returns a canned identity or error
type fakeFetcher struct {
	identity *ExternalIdentity
	err      error
	lastCode string
}

func (f *fakeFetcher) Fetch(ctx context.Context, code string) (*ExternalIdentity, error) {
	f.lastCode = code
	if f.err != nil {
		return nil, f.err
	}
	return f.identity, nil
}

// fakeSP stands in for the gosaml2 service provider
type fakeSP struct {
	authRequest string
	authURL     string
	info        *saml2.AssertionInfo
	err         error
}

func (f *fakeSP) BuildAuthRequest() (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return f.authRequest, nil
}

func (f *fakeSP) BuildAuthURL(relayState string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return f.authURL + "?RelayState=" + relayState, nil
}

func (f *fakeSP) RetrieveAssertionInfo(encodedResponse string) (*saml2.AssertionInfo, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.info, nil
}

func assertionInfo(nameID string, attrs map[string]string) *saml2.AssertionInfo {
	info := &saml2.AssertionInfo{
		NameID:      nameID,
		Values:      make(saml2.Values),
		WarningInfo: &saml2.WarningInfo{},
	}
	for name, value := range attrs {
		info.Values[name] = types.Attribute{
			Name:   name,
			Values: []types.AttributeValue{{Value: value}},
		}
	}
	return info
}

func testTenant(id string) *auth.Tenant {
	return &auth.Tenant{
		ID:         id,
		Name:       "Tenant " + id,
		SSOEnabled: true,
		CreatedAt:  time.Now(),
		UpdatedAt:  time.Now(),
	}
}

func testSAMLTenant(id, issuer string) *auth.Tenant {
	tenant := testTenant(id)
	tenant.SAML = &auth.TenantSAML{
		IdPSSOURL:      "https://idp.example.com/sso",
		IdPEntityID:    issuer,
		IdPCertificate: "-----BEGIN CERTIFICATE-----\nMIIB\n-----END CERTIFICATE-----",
	}
	return tenant
}

// fakeRecorder collects audit events in memory
type fakeRecorder struct {
	mu     sync.Mutex
	events []*audit.Event
	err    error
}

func (r *fakeRecorder) Record(_ context.Context, event *audit.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.events = append(r.events, event)
	return nil
}

func (r *fakeRecorder) Query(_ context.Context, filter audit.Filter) ([]*audit.Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	var matched []*audit.Event
	for _, event := range r.events {
		if filter.TenantID != "" && event.TenantID != filter.TenantID {
			continue
		}
		if filter.Type != "" && event.Type != filter.Type {
			continue
		}
		matched = append(matched, event)
	}
	return matched, nil
}

func (r *fakeRecorder) byType(eventType audit.EventType) []*audit.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var matched []*audit.Event
	for _, event := range r.events {
		if event.Type == eventType {
			matched = append(matched, event)
		}
	}
	return matched
}

func testLogger() *observability.Logger {
	return observability.NewLogger(observability.ErrorLevel, io.Discard)
}

func testMetrics() *observability.Metrics {
	return observability.NewMetrics(prometheus.NewRegistry())
}
