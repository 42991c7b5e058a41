package session

import (
	"context"

	"github.com/AbhaySingh6921/carbon-SIH-Project/pkg/models"
	"github.com/ethereum/go-ethereum/common"
)

// AdminSet is the static trusted-admin allowlist. Addresses are stored in
// canonical form, so membership checks are case-insensitive.
type AdminSet map[common.Address]struct{}

func NewAdminSet(addrs []string) AdminSet {
	set := make(AdminSet, len(addrs))
	for _, raw := range addrs {
		if common.IsHexAddress(raw) {
			set[common.HexToAddress(raw)] = struct{}{}
		}
	}
	return set
}

func (s AdminSet) Contains(addr common.Address) bool {
	_, ok := s[addr]
	return ok
}

type WhitelistReader interface {
	IsWhitelisted(ctx context.Context, account common.Address) (bool, error)
}

// ResolveRole classifies an address. Admin membership wins without touching
// the chain; otherwise exactly one whitelist read decides NGO vs PUBLIC.
// Never cached: recomputed on every session establishment.
func ResolveRole(ctx context.Context, addr common.Address, admins AdminSet, whitelist WhitelistReader) (models.Role, error) {
	if admins.Contains(addr) {
		return models.RoleAdmin, nil
	}
	whitelisted, err := whitelist.IsWhitelisted(ctx, addr)
	if err != nil {
		return models.RolePublic, err
	}
	if whitelisted {
		return models.RoleNGO, nil
	}
	return models.RolePublic, nil
}
