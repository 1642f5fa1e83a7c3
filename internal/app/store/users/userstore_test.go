package userstore_test

import (
	"context"
	"errors"
	"testing"
	"time"

	userstore "github.com/chitchatclub/chitchatclub/internal/app/store/users"
	"github.com/chitchatclub/chitchatclub/internal/domain/models"
	"github.com/chitchatclub/chitchatclub/internal/testutil"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func ensureEmailIndex(ctx context.Context, db *mongo.Database) error {
	_, err := db.Collection("users").Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true).SetName("uniq_users_email"),
	})
	return err
}

func TestCreateNormalizes(t *testing.T) {
	db := testutil.SetupTestDB(t)
	s := userstore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	u, err := s.Create(ctx, models.User{
		FullName: "  José   García ",
		Email:    " JOSE@Example.COM ",
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if u.FullName != "José García" {
		t.Errorf("FullName = %q, want collapsed whitespace", u.FullName)
	}
	if u.Email != "jose@example.com" {
		t.Errorf("Email = %q, want lowercased", u.Email)
	}
	if u.FullNameCI == "" || u.FullNameCI == u.FullName {
		t.Errorf("FullNameCI = %q, want folded form", u.FullNameCI)
	}
	if u.Role != models.RoleMember {
		t.Errorf("Role = %q, want default member", u.Role)
	}
	if u.Status != "active" {
		t.Errorf("Status = %q, want default active", u.Status)
	}
	if u.CreatedAt.IsZero() || u.UpdatedAt.IsZero() {
		t.Error("timestamps should be set")
	}
}

func TestCreateRejectsBadInput(t *testing.T) {
	db := testutil.SetupTestDB(t)
	s := userstore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	if _, err := s.Create(ctx, models.User{FullName: "X", Email: "x@y.z", Role: "owner"}); err == nil {
		t.Error("unknown role should be rejected")
	}
	if _, err := s.Create(ctx, models.User{FullName: "X", Email: "x2@y.z", EnglishLevelType: "TOEFL"}); err == nil {
		t.Error("unknown level scale should be rejected")
	}
}

func TestGetByEmailIsCaseInsensitive(t *testing.T) {
	db := testutil.SetupTestDB(t)
	s := userstore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	created, err := s.Create(ctx, models.User{FullName: "Ana Lima", Email: "ana@club.org"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	got, err := s.GetByEmail(ctx, "ANA@Club.ORG")
	if err != nil {
		t.Fatalf("GetByEmail: %v", err)
	}
	if got.ID != created.ID {
		t.Errorf("GetByEmail returned wrong user")
	}
}

func TestLevelOverrideLifecycle(t *testing.T) {
	db := testutil.SetupTestDB(t)
	s := userstore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	u, err := s.Create(ctx, models.User{FullName: "Ben Kato", Email: "ben@club.org"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if err := s.UpdateLevel(ctx, u.ID, models.ScaleIELTS, "6.5"); err != nil {
		t.Fatalf("UpdateLevel: %v", err)
	}

	bucket := models.BucketC1
	if err := s.SetOverride(ctx, u.ID, &bucket); err != nil {
		t.Fatalf("SetOverride: %v", err)
	}

	got, err := s.GetByID(ctx, u.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.EnglishLevelType != models.ScaleIELTS || got.EnglishLevelValue != "6.5" {
		t.Errorf("level = %s %q, want IELTS 6.5", got.EnglishLevelType, got.EnglishLevelValue)
	}
	if got.ProficiencyOverride == nil || *got.ProficiencyOverride != models.BucketC1 {
		t.Errorf("override = %v, want C1", got.ProficiencyOverride)
	}

	if err := s.SetOverride(ctx, u.ID, nil); err != nil {
		t.Fatalf("clear override: %v", err)
	}
	got, err = s.GetByID(ctx, u.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.ProficiencyOverride != nil {
		t.Errorf("override should be cleared, got %v", *got.ProficiencyOverride)
	}
}

func TestNoShowAndBlacklist(t *testing.T) {
	db := testutil.SetupTestDB(t)
	s := userstore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	u, err := s.Create(ctx, models.User{FullName: "Flaky Finn", Email: "finn@club.org"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	for want := 1; want <= 3; want++ {
		n, err := s.IncNoShow(ctx, u.ID)
		if err != nil {
			t.Fatalf("IncNoShow: %v", err)
		}
		if n != want {
			t.Errorf("IncNoShow = %d, want %d", n, want)
		}
	}

	until := time.Now().UTC().AddDate(0, 0, 30)
	if err := s.SetBlacklist(ctx, u.ID, until); err != nil {
		t.Fatalf("SetBlacklist: %v", err)
	}
	got, err := s.GetByID(ctx, u.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.BlacklistedUntil == nil || !got.BlacklistedUntil.After(time.Now()) {
		t.Errorf("BlacklistedUntil = %v, want future time", got.BlacklistedUntil)
	}

	if err := s.ClearBlacklist(ctx, u.ID); err != nil {
		t.Fatalf("ClearBlacklist: %v", err)
	}
	got, err = s.GetByID(ctx, u.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.BlacklistedUntil != nil {
		t.Errorf("blacklist should be lifted, got %v", got.BlacklistedUntil)
	}
	if got.NoShowCount != 0 {
		t.Errorf("no-show count should reset, got %d", got.NoShowCount)
	}
}

func TestSearchFoldsDiacritics(t *testing.T) {
	db := testutil.SetupTestDB(t)
	s := userstore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	if _, err := s.Create(ctx, models.User{FullName: "José García", Email: "jg@club.org"}); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := s.Create(ctx, models.User{FullName: "Priya Nair", Email: "pn@club.org"}); err != nil {
		t.Fatalf("Create: %v", err)
	}

	got, err := s.Search(ctx, "jose", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(got) != 1 || got[0].FullName != "José García" {
		t.Errorf("Search(jose) = %d results, want José García", len(got))
	}
}

func TestCreateDuplicateEmailNeedsIndex(t *testing.T) {
	// Uniqueness is enforced by the uniq_users_email index; creation
	// surfaces it as ErrDuplicateEmail. Covered here end to end.
	db := testutil.SetupTestDB(t)
	s := userstore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	if err := ensureEmailIndex(ctx, db); err != nil {
		t.Fatalf("ensure index: %v", err)
	}

	if _, err := s.Create(ctx, models.User{FullName: "A", Email: "dup@club.org"}); err != nil {
		t.Fatalf("first Create: %v", err)
	}
	_, err := s.Create(ctx, models.User{FullName: "B", Email: "DUP@club.org"})
	if !errors.Is(err, userstore.ErrDuplicateEmail) {
		t.Errorf("second Create err = %v, want ErrDuplicateEmail", err)
	}
}
