package auth

import (
	"fmt"
	"group-chat/domain"
	"group-chat/errors"

	"github.com/samber/lo"
)

// Policy is the declarative role guard, checked before an operation touches any state.
// Methods absent from the restricted set are open to every authenticated user; per-group
// checks (membership, invitation, ownership) happen inside the operations themselves.
type Policy struct {
	elevated   map[domain.Role]struct{}
	restricted map[domain.Method]struct{}
}

func NewPolicy(elevatedRoles []domain.Role) *Policy {
	return &Policy{
		elevated: lo.SliceToMap(elevatedRoles, func(role domain.Role) (domain.Role, struct{}) {
			return role, struct{}{}
		}),
		restricted: map[domain.Method]struct{}{
			domain.BroadcastToAllMethod: {},
		},
	}
}

func (p *Policy) IsElevated(role domain.Role) bool {
	_, ok := p.elevated[role]
	return ok
}

func (p *Policy) Authorize(method domain.Method, role domain.Role) error {
	if _, ok := p.restricted[method]; !ok || p.IsElevated(role) {
		return nil
	}
	return fmt.Errorf("%s requires an elevated role, got %q: %w", method, role, errors.ErrInsufficientRole)
}
