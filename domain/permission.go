package domain

import (
	"context"
	"fmt"
)

// AccessStore loads the channel and share rows the oracle inspects. The
// oracle never writes.
type AccessStore interface {
	GetChannel(ctx context.Context, channelID string) (*Channel, error)
	ListShares(ctx context.Context, channelID string) ([]Share, error)
}

// Decision is the oracle's answer for one (resource, principal, capability)
// triple.
type Decision struct {
	Allowed bool
	Role    Role
}

// Oracle centralises every capability check. Each mutating operation and
// every subscription authorization consults it before touching shared state
// or transport.
type Oracle struct {
	store AccessStore
}

func NewOracle(store AccessStore) Oracle { return Oracle{store: store} }

// Check resolves the principal's effective role on the channel and reports
// whether it grants the capability. A missing channel is ErrNotFound; callers
// that must not leak existence translate it themselves.
func (o Oracle) Check(ctx context.Context, channelID string, principal Principal, cap Capability) (Decision, error) {
	if principal.UserID == "" {
		return Decision{}, ErrUnauthenticated
	}
	ch, err := o.store.GetChannel(ctx, channelID)
	if err != nil {
		return Decision{}, err
	}
	if ch == nil {
		return Decision{}, fmt.Errorf("channel %s: %w", channelID, ErrNotFound)
	}
	role, ok, err := o.roleFor(ctx, ch, principal)
	if err != nil {
		return Decision{}, err
	}
	if !ok {
		return Decision{Allowed: false}, nil
	}
	return Decision{Allowed: role.Grants(cap), Role: role}, nil
}

func (o Oracle) roleFor(ctx context.Context, ch *Channel, principal Principal) (Role, bool, error) {
	if ch.OwnerID == principal.UserID {
		return RoleOwner, true, nil
	}
	shares, err := o.store.ListShares(ctx, ch.ID)
	if err != nil {
		return "", false, err
	}
	best := Role("")
	for _, s := range shares {
		if !s.Accepted {
			continue
		}
		if !shareMatches(s, principal) {
			continue
		}
		if best == "" || s.Role.Grants(CapabilityEdit) && !best.Grants(CapabilityEdit) {
			best = s.Role
		}
	}
	if best != "" {
		return best, true, nil
	}
	if ch.Public {
		return RoleViewer, true, nil
	}
	return "", false, nil
}

func shareMatches(s Share, principal Principal) bool {
	if s.UserID != "" && s.UserID == principal.UserID {
		return true
	}
	return s.Email != "" && principal.Email != "" && s.Email == principal.Email
}
