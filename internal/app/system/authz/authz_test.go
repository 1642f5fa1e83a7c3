package authz_test

import (
	"net/http/httptest"
	"testing"

	"github.com/chitchatclub/chitchatclub/internal/app/system/auth"
	"github.com/chitchatclub/chitchatclub/internal/app/system/authz"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestUserCtx_NoUser(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)

	role, name, uid, ok := authz.UserCtx(req)
	if ok {
		t.Fatal("expected ok=false for anonymous request")
	}
	if role != "visitor" || name != "" || uid != primitive.NilObjectID {
		t.Errorf("got role=%q name=%q uid=%v", role, name, uid)
	}
}

func TestUserCtx_MalformedID(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	req = auth.WithTestUser(req, &auth.SessionUser{ID: "not-an-oid", Role: "admin"})

	if _, _, _, ok := authz.UserCtx(req); ok {
		t.Fatal("expected ok=false for malformed user ID")
	}
}

func TestUserCtx_ValidUser(t *testing.T) {
	oid := primitive.NewObjectID()
	req := httptest.NewRequest("GET", "/", nil)
	req = auth.WithTestUser(req, &auth.SessionUser{ID: oid.Hex(), Name: "Ana", Role: "Moderator"})

	role, name, uid, ok := authz.UserCtx(req)
	if !ok {
		t.Fatal("expected ok=true")
	}
	if role != "moderator" {
		t.Errorf("role = %q, want lowercased %q", role, "moderator")
	}
	if name != "Ana" || uid != oid {
		t.Errorf("got name=%q uid=%v", name, uid)
	}
}

func TestRoleChecks(t *testing.T) {
	for _, tt := range []struct {
		role        string
		isAdmin     bool
		isSuper     bool
		canModerate bool
	}{
		{"member", false, false, false},
		{"moderator", false, false, true},
		{"admin", true, false, true},
		{"superadmin", true, true, true},
	} {
		req := httptest.NewRequest("GET", "/", nil)
		req = auth.WithTestUser(req, &auth.SessionUser{ID: primitive.NewObjectID().Hex(), Role: tt.role})

		if got := authz.IsAdmin(req); got != tt.isAdmin {
			t.Errorf("IsAdmin(%s) = %v, want %v", tt.role, got, tt.isAdmin)
		}
		if got := authz.IsSuperAdmin(req); got != tt.isSuper {
			t.Errorf("IsSuperAdmin(%s) = %v, want %v", tt.role, got, tt.isSuper)
		}
		if got := authz.CanModerate(req); got != tt.canModerate {
			t.Errorf("CanModerate(%s) = %v, want %v", tt.role, got, tt.canModerate)
		}
	}
}

func TestHasAnyRole(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	req = auth.WithTestUser(req, &auth.SessionUser{ID: primitive.NewObjectID().Hex(), Role: "moderator"})

	if !authz.HasAnyRole(req, "admin", " Moderator ") {
		t.Error("expected match on trimmed, case-folded role")
	}
	if authz.HasAnyRole(req, "admin") {
		t.Error("unexpected match")
	}
	if authz.HasAnyRole(httptest.NewRequest("GET", "/", nil), "moderator") {
		t.Error("anonymous request should never match")
	}
}
