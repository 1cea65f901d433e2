package auth

import (
	"context"
	"crypto/subtle"

	"github.com/kohakuhub/hub/internal/apperr"
	"github.com/kohakuhub/hub/internal/metadata"
)

// Identity is the resolved caller of a request: either the zero value
// (anonymous) or a loaded User row.
type Identity struct {
	User *metadata.User
}

// Anonymous reports whether no credential resolved to a user.
func (i Identity) Anonymous() bool { return i.User == nil }

// CanRead reports whether identity may read repo, per spec §4.C: public
// repos are always readable; private repos require ownership or org
// membership at any role.
func CanRead(ctx context.Context, store metadata.Store, identity Identity, repo *metadata.Repository) (bool, error) {
	if !repo.Private {
		return true, nil
	}

	if identity.Anonymous() {
		return false, nil
	}

	return ownerOrMember(ctx, store, identity, repo.OwnerID, metadata.RoleVisitor)
}

// CanWrite reports whether identity may push commits to repo: owner, or
// an org member with role >= member.
func CanWrite(ctx context.Context, store metadata.Store, identity Identity, repo *metadata.Repository) (bool, error) {
	if identity.Anonymous() {
		return false, nil
	}

	return ownerOrMember(ctx, store, identity, repo.OwnerID, metadata.RoleMember)
}

// CanDelete reports whether identity may delete repo or change its
// settings: owner, or an org member with role >= admin.
func CanDelete(ctx context.Context, store metadata.Store, identity Identity, repo *metadata.Repository) (bool, error) {
	if identity.Anonymous() {
		return false, nil
	}

	return ownerOrMember(ctx, store, identity, repo.OwnerID, metadata.RoleAdmin)
}

func ownerOrMember(ctx context.Context, store metadata.Store, identity Identity, ownerID int64, minRole metadata.OrgRole) (bool, error) {
	if identity.User.ID == ownerID {
		return true, nil
	}

	owner, err := store.Users().FindByID(ctx, ownerID)
	if err != nil {
		return false, err
	}

	if !owner.IsOrg {
		return false, nil
	}

	membership, err := store.Users().Membership(ctx, ownerID, identity.User.ID)
	if err != nil {
		if apperr.StatusCode(err) == 404 {
			return false, nil
		}

		return false, err
	}

	return roleRank(membership.Role) >= roleRank(minRole), nil
}

func roleRank(r metadata.OrgRole) int {
	switch r {
	case metadata.RoleSuperAdmin:
		return 3
	case metadata.RoleAdmin:
		return 2
	case metadata.RoleMember:
		return 1
	default:
		return 0
	}
}

// CheckAdminSecret compares provided against the process-wide admin
// secret in constant time. enabled must be checked by the caller first
// (spec §4.C: HTTP 503 when the admin API is disabled, not 401/403).
func CheckAdminSecret(configured, provided string) bool {
	if configured == "" {
		return false
	}

	return subtle.ConstantTimeCompare([]byte(configured), []byte(provided)) == 1
}
