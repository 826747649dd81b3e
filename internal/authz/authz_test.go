package authz

import (
	"errors"
	"testing"

	"github.com/harshsingh9817/datacollection/pkg/domain"
)

func TestAuthorize(t *testing.T) {
	alice := domain.Identity{ID: "u1", Email: "alice@example.com"}
	cases := []struct {
		name    string
		actor   domain.Identity
		isAdmin bool
		target  string
		wantErr error
	}{
		{"self", alice, false, "u1", nil},
		{"other denied", alice, false, "u2", ErrPermissionDenied},
		{"admin other", alice, true, "u2", nil},
		{"admin self", alice, true, "u1", nil},
		{"no identity", domain.Identity{}, false, "u1", ErrUnauthenticated},
		{"no identity admin flag", domain.Identity{}, true, "u1", ErrUnauthenticated},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := Authorize(tc.actor, tc.isAdmin, tc.target)
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("Authorize() = %v, want %v", err, tc.wantErr)
			}
		})
	}
}

func TestEffectiveOwner(t *testing.T) {
	actor := domain.Identity{ID: "u1"}
	if got := EffectiveOwner(actor, ""); got != "u1" {
		t.Fatalf("EffectiveOwner(empty) = %q, want %q", got, "u1")
	}
	if got := EffectiveOwner(actor, "  "); got != "u1" {
		t.Fatalf("EffectiveOwner(blank) = %q, want %q", got, "u1")
	}
	if got := EffectiveOwner(actor, "u2"); got != "u2" {
		t.Fatalf("EffectiveOwner(explicit) = %q, want %q", got, "u2")
	}
}
