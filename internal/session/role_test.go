package session

import (
	"context"
	"errors"
	"testing"

	"github.com/AbhaySingh6921/carbon-SIH-Project/pkg/models"
	"github.com/ethereum/go-ethereum/common"
)

type whitelistFunc func(ctx context.Context, account common.Address) (bool, error)

func (f whitelistFunc) IsWhitelisted(ctx context.Context, account common.Address) (bool, error) {
	return f(ctx, account)
}

func TestResolveRoleAdminSkipsChainRead(t *testing.T) {
	admins := NewAdminSet([]string{"0x90F79bf6EB2c4f870365E785982E1f101E93b906"})
	poisoned := whitelistFunc(func(context.Context, common.Address) (bool, error) {
		t.Fatal("admin classification must not read the chain")
		return false, nil
	})

	// Lowercased form of the configured admin address.
	addr := common.HexToAddress("0x90f79bf6eb2c4f870365e785982e1f101e93b906")
	role, err := ResolveRole(context.Background(), addr, admins, poisoned)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if role != models.RoleAdmin {
		t.Fatalf("expected ADMIN, got %s", role)
	}
}

func TestResolveRoleWhitelistDecides(t *testing.T) {
	cases := []struct {
		name        string
		whitelisted bool
		want        models.Role
	}{
		{"whitelisted is ngo", true, models.RoleNGO},
		{"plain is public", false, models.RolePublic},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			wl := whitelistFunc(func(context.Context, common.Address) (bool, error) {
				return tc.whitelisted, nil
			})
			role, err := ResolveRole(context.Background(), common.HexToAddress("0x01"), nil, wl)
			if err != nil {
				t.Fatalf("resolve: %v", err)
			}
			if role != tc.want {
				t.Fatalf("expected %s, got %s", tc.want, role)
			}
		})
	}
}

func TestResolveRolePropagatesReadFailure(t *testing.T) {
	readErr := errors.New("rpc unreachable")
	wl := whitelistFunc(func(context.Context, common.Address) (bool, error) {
		return false, readErr
	})
	if _, err := ResolveRole(context.Background(), common.HexToAddress("0x01"), nil, wl); !errors.Is(err, readErr) {
		t.Fatalf("expected the read failure, got %v", err)
	}
}

func TestNewAdminSetDropsMalformedEntries(t *testing.T) {
	set := NewAdminSet([]string{"not-an-address", "0x90F79bf6EB2c4f870365E785982E1f101E93b906"})
	if len(set) != 1 {
		t.Fatalf("expected 1 admin, got %d", len(set))
	}
}
