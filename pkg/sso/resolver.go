package sso

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/platinummonkey/fedgate/pkg/auth"
)

// UserStore is the persistence surface the resolver needs
type UserStore interface {
	// GetByTenantEmail returns the user for the (tenant, email) pair, or
	// auth.ErrNotFound.
	GetByTenantEmail(ctx context.Context, tenantID, email string) (*auth.User, error)

	// CreateIfAbsent inserts the user unless a row for the same
	// (tenant, email) pair already exists, in which case it returns the
	// existing row. Concurrent callers all receive the same row.
	CreateIfAbsent(ctx context.Context, user *auth.User) (*auth.User, error)
}

// Resolver maps an external identity onto a tenant user account,
// auto-provisioning a member account on first login.
type Resolver struct {
	users UserStore
	now   func() time.Time
}

// NewResolver creates a resolver backed by the given user store
func NewResolver(users UserStore) *Resolver {
	return &Resolver{users: users, now: time.Now}
}

// Resolve returns the tenant account for the identity, creating one if none
// exists. An existing account is returned untouched; federated logins never
// update the stored profile. The second return value reports whether the
// account was provisioned by this call.
func (r *Resolver) Resolve(ctx context.Context, tenantID string, identity *ExternalIdentity) (*auth.User, bool, error) {
	existing, err := r.users.GetByTenantEmail(ctx, tenantID, identity.Email)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, auth.ErrNotFound) {
		return nil, false, fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	now := r.now().UTC()
	candidate := &auth.User{
		ID:        uuid.NewString(),
		TenantID:  tenantID,
		Email:     identity.Email,
		FirstName: identity.FirstName,
		LastName:  identity.LastName,
		Role:      auth.RoleUser,
		CreatedAt: now,
		UpdatedAt: now,
	}

	user, err := r.users.CreateIfAbsent(ctx, candidate)
	if err != nil {
		return nil, false, fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	// A concurrent login may have won the insert; in that case the store
	// returned the winner's row and this call provisioned nothing.
	created := user.ID == candidate.ID
	return user, created, nil
}
