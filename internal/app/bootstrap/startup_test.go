package bootstrap

import (
	"testing"

	settingstore "github.com/chitchatclub/chitchatclub/internal/app/store/settings"
	userstore "github.com/chitchatclub/chitchatclub/internal/app/store/users"
	"github.com/chitchatclub/chitchatclub/internal/domain/models"
	"github.com/chitchatclub/chitchatclub/internal/testutil"
	"go.mongodb.org/mongo-driver/bson"
	"go.uber.org/zap"
)

func testLogger() *zap.Logger {
	return zap.NewNop()
}

func TestEnsureSuperAdminCreatesNew(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	deps := DBDeps{MongoDatabase: db}

	if err := ensureSuperAdmin(ctx, deps, "boss@club.org", testLogger()); err != nil {
		t.Fatalf("ensureSuperAdmin failed: %v", err)
	}

	var user models.User
	if err := db.Collection("users").FindOne(ctx, bson.M{"email": "boss@club.org"}).Decode(&user); err != nil {
		t.Fatalf("failed to find created user: %v", err)
	}

	if user.Role != models.RoleSuperAdmin {
		t.Errorf("expected role %q, got %q", models.RoleSuperAdmin, user.Role)
	}
	if !user.EmailVerified {
		t.Error("expected created superadmin to be email-verified")
	}
	if user.PasswordHash != "" {
		t.Error("expected created superadmin to have no password hash")
	}
}

func TestEnsureSuperAdminPromotesExisting(t *testing.T) {
	db := testutil.SetupTestDB(t)
	f := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	existing := f.CreateUserWithRole(ctx, "Maya Ortiz", "maya@club.org", models.RoleMember)

	deps := DBDeps{MongoDatabase: db}
	if err := ensureSuperAdmin(ctx, deps, "maya@club.org", testLogger()); err != nil {
		t.Fatalf("ensureSuperAdmin failed: %v", err)
	}

	users := userstore.New(db)
	got, err := users.GetByID(ctx, existing.ID)
	if err != nil {
		t.Fatalf("reload user: %v", err)
	}
	if got.Role != models.RoleSuperAdmin {
		t.Errorf("expected promotion to superadmin, got %q", got.Role)
	}
}

func TestEnsureSuperAdminAlreadySuperAdmin(t *testing.T) {
	db := testutil.SetupTestDB(t)
	f := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	existing := f.CreateUserWithRole(ctx, "Root One", "root@club.org", models.RoleSuperAdmin)

	deps := DBDeps{MongoDatabase: db}
	if err := ensureSuperAdmin(ctx, deps, "root@club.org", testLogger()); err != nil {
		t.Fatalf("ensureSuperAdmin failed: %v", err)
	}

	// No duplicate should have been created.
	n, err := db.Collection("users").CountDocuments(ctx, bson.M{"email": "root@club.org"})
	if err != nil {
		t.Fatalf("count users: %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 user, got %d", n)
	}

	got, err := userstore.New(db).GetByID(ctx, existing.ID)
	if err != nil {
		t.Fatalf("reload user: %v", err)
	}
	if got.Role != models.RoleSuperAdmin {
		t.Errorf("role changed unexpectedly: %q", got.Role)
	}
}

func TestStartupSeedsSettings(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	deps := DBDeps{MongoDatabase: db}
	if err := Startup(ctx, nil, AppConfig{}, deps, testLogger()); err != nil {
		t.Fatalf("Startup failed: %v", err)
	}

	settings := settingstore.New(db)
	got, err := settings.GetInt(ctx, settingstore.KeyMaxNoShows, -1)
	if err != nil {
		t.Fatalf("read seeded setting: %v", err)
	}
	if got != settingstore.DefaultMaxNoShows {
		t.Errorf("expected seeded max_no_shows %d, got %d", settingstore.DefaultMaxNoShows, got)
	}

	// Admin-tuned values survive a restart.
	if err := settings.SetInt(ctx, settingstore.KeyMaxNoShows, 7); err != nil {
		t.Fatalf("tune setting: %v", err)
	}
	if err := Startup(ctx, nil, AppConfig{}, deps, testLogger()); err != nil {
		t.Fatalf("second Startup failed: %v", err)
	}
	got, err = settings.GetInt(ctx, settingstore.KeyMaxNoShows, -1)
	if err != nil {
		t.Fatalf("re-read setting: %v", err)
	}
	if got != 7 {
		t.Errorf("expected tuned value 7 to survive, got %d", got)
	}
}
