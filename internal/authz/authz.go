// Package authz decides whether an account may run administrative operations.
package authz

import (
	"context"
	"strings"

	"github.com/lherron/roster/internal/domain"
)

// Gate authorizes an actor before a privileged operation runs.
type Gate interface {
	Authorize(ctx context.Context, actorUUID string) (*domain.Account, error)
}

// AccountLookup loads accounts by UUID.
type AccountLookup interface {
	GetByUUID(ctx context.Context, accountUUID string) (*domain.Account, error)
}

// RoleGate admits accounts holding one of a fixed set of roles.
type RoleGate struct {
	accounts AccountLookup
	allowed  map[domain.AccountRole]bool
}

// NewRoleGate creates a gate admitting the given roles.
func NewRoleGate(accounts AccountLookup, roles ...domain.AccountRole) *RoleGate {
	allowed := make(map[domain.AccountRole]bool, len(roles))
	for _, r := range roles {
		allowed[r] = true
	}
	return &RoleGate{accounts: accounts, allowed: allowed}
}

// NewMergeGate admits instructors and administrators.
func NewMergeGate(accounts AccountLookup) *RoleGate {
	return NewRoleGate(accounts, domain.AccountRoleInstructor, domain.AccountRoleAdmin)
}

// Authorize returns the actor's account, a *domain.NotFoundError for an
// unknown actor, or a *domain.ForbiddenError when the role is not admitted.
func (g *RoleGate) Authorize(ctx context.Context, actorUUID string) (*domain.Account, error) {
	if strings.TrimSpace(actorUUID) == "" {
		return nil, &domain.ForbiddenError{}
	}
	account, err := g.accounts.GetByUUID(ctx, actorUUID)
	if err != nil {
		return nil, err
	}
	if !g.allowed[account.Role] {
		return nil, &domain.ForbiddenError{ActorUUID: actorUUID, Role: account.Role}
	}
	return account, nil
}
