package levels_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/chitchatclub/chitchatclub/internal/app/features/levels"
	levelhistorystore "github.com/chitchatclub/chitchatclub/internal/app/store/levelhistory"
	registrationstore "github.com/chitchatclub/chitchatclub/internal/app/store/registrations"
	roomstore "github.com/chitchatclub/chitchatclub/internal/app/store/rooms"
	userstore "github.com/chitchatclub/chitchatclub/internal/app/store/users"
	"github.com/chitchatclub/chitchatclub/internal/domain/models"
	"github.com/chitchatclub/chitchatclub/internal/testutil"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

func newTestHandler(t *testing.T) (*levels.Handler, *testutil.Fixtures, *mongo.Database) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	h := levels.NewHandler(
		userstore.New(db),
		levelhistorystore.New(db),
		registrationstore.New(db),
		roomstore.New(db),
		zap.NewNop(),
	)
	return h, testutil.NewFixtures(t, db), db
}

func TestUpdateMineRecordsHistory(t *testing.T) {
	h, fx, db := newTestHandler(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	u := fx.CreateUser(ctx, "Ana", "ana@club.org", models.ScaleIELTS, "5.0")

	req := testutil.JSONRequest(t, http.MethodPut, "/levels/me", map[string]string{
		"english_level_type":  "ielts",
		"english_level_value": "7.0",
	})
	req = testutil.WithUser(req, u.ID, u.FullName, u.Role)
	rec := httptest.NewRecorder()
	h.ServeUpdateMine(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("update = %d: %s", rec.Code, rec.Body.String())
	}

	var got struct {
		ProficiencyBucket string `json:"proficiency_bucket"`
		ProficiencyLevel  string `json:"proficiency_level"`
	}
	testutil.DecodeJSON(t, rec, &got)
	if got.ProficiencyBucket != "C1" {
		t.Errorf("bucket = %q, want C1 for IELTS 7.0", got.ProficiencyBucket)
	}
	if got.ProficiencyLevel != "Advanced" {
		t.Errorf("level = %q, want Advanced", got.ProficiencyLevel)
	}

	fresh, err := userstore.New(db).GetByID(ctx, u.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if fresh.EnglishLevelValue != "7.0" {
		t.Errorf("stored value = %q, want 7.0", fresh.EnglishLevelValue)
	}

	history, err := levelhistorystore.New(db).ListByUser(ctx, u.ID)
	if err != nil {
		t.Fatalf("ListByUser: %v", err)
	}
	if len(history) != 1 {
		t.Fatalf("history entries = %d, want 1", len(history))
	}
	entry := history[0]
	if entry.PreviousValue != "5.0" || entry.NewValue != "7.0" {
		t.Errorf("history = %q -> %q, want 5.0 -> 7.0", entry.PreviousValue, entry.NewValue)
	}
	if entry.ChangedBy != u.ID {
		t.Error("history should be attributed to the user")
	}
}

func TestUpdateMineRejectsUnknownScale(t *testing.T) {
	h, fx, _ := newTestHandler(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	u := fx.CreateUser(ctx, "Ana", "ana@club.org", models.ScaleIELTS, "5.0")

	req := testutil.JSONRequest(t, http.MethodPut, "/levels/me", map[string]string{
		"english_level_type":  "GUESSWORK",
		"english_level_value": "9000",
	})
	req = testutil.WithUser(req, u.ID, u.FullName, u.Role)
	rec := httptest.NewRecorder()
	h.ServeUpdateMine(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("unknown scale = %d, want 400", rec.Code)
	}
}

func TestSetAndClearOverride(t *testing.T) {
	h, fx, db := newTestHandler(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	u := fx.CreateUser(ctx, "Ana", "ana@club.org", models.ScaleIELTS, "5.0")
	admin := fx.CreateUserWithRole(ctx, "Ada", "ada@club.org", models.RoleAdmin)

	// Set override: IELTS 5.0 is B1, override to C2.
	req := testutil.JSONRequest(t, http.MethodPut, "/levels/override/"+u.ID.Hex(), map[string]string{
		"bucket": "c2", "reason": "interview placement",
	})
	req = testutil.WithChiURLParam(req, "userID", u.ID.Hex())
	req = testutil.WithUser(req, admin.ID, admin.FullName, admin.Role)
	rec := httptest.NewRecorder()
	h.ServeSetOverride(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("set override = %d: %s", rec.Code, rec.Body.String())
	}

	var got struct {
		Override          string `json:"override"`
		ProficiencyBucket string `json:"proficiency_bucket"`
	}
	testutil.DecodeJSON(t, rec, &got)
	if got.Override != "C2" || got.ProficiencyBucket != "C2" {
		t.Errorf("after set: override=%q bucket=%q, want C2/C2", got.Override, got.ProficiencyBucket)
	}

	// Clear override: effective bucket falls back to normalization.
	req = testutil.JSONRequest(t, http.MethodPut, "/levels/override/"+u.ID.Hex(), map[string]string{
		"bucket": "",
	})
	req = testutil.WithChiURLParam(req, "userID", u.ID.Hex())
	req = testutil.WithUser(req, admin.ID, admin.FullName, admin.Role)
	rec = httptest.NewRecorder()
	h.ServeSetOverride(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("clear override = %d: %s", rec.Code, rec.Body.String())
	}
	testutil.DecodeJSON(t, rec, &got)
	if got.Override != "" || got.ProficiencyBucket != "B1" {
		t.Errorf("after clear: override=%q bucket=%q, want empty/B1", got.Override, got.ProficiencyBucket)
	}

	history, err := levelhistorystore.New(db).ListByUser(ctx, u.ID)
	if err != nil {
		t.Fatalf("ListByUser: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("history entries = %d, want 2", len(history))
	}
	if history[1].Reason != "interview placement" {
		t.Errorf("reason = %q, want recorded reason", history[1].Reason)
	}
	if history[1].ChangedBy != admin.ID {
		t.Error("override history should be attributed to the admin")
	}
}

func updateUserReq(t *testing.T, caller models.User, targetID string) *http.Request {
	t.Helper()
	req := testutil.JSONRequest(t, http.MethodPut, "/levels/user/"+targetID, map[string]string{
		"english_level_type":  "IELTS",
		"english_level_value": "6.5",
		"reason":              "session assessment",
	})
	req = testutil.WithChiURLParam(req, "userID", targetID)
	return testutil.WithUser(req, caller.ID, caller.FullName, caller.Role)
}

func TestModeratorUpdatesSharedSessionUser(t *testing.T) {
	h, fx, db := newTestHandler(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	mod := fx.CreateUserWithRole(ctx, "Mia", "mia@club.org", models.RoleModerator)
	target := fx.CreateUser(ctx, "Ana", "ana@club.org", models.ScaleIELTS, "5.0")
	cs := fx.CreateSession(ctx, "Talk", time.Now().Add(time.Hour))
	fx.CreateRegistration(ctx, cs.ID, mod.ID, true)
	fx.CreateRegistration(ctx, cs.ID, target.ID, false)

	rec := httptest.NewRecorder()
	h.ServeUpdateUser(rec, updateUserReq(t, mod, target.ID.Hex()))
	if rec.Code != http.StatusOK {
		t.Fatalf("update = %d: %s", rec.Code, rec.Body.String())
	}

	fresh, err := userstore.New(db).GetByID(ctx, target.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if fresh.EnglishLevelValue != "6.5" {
		t.Errorf("stored value = %q, want 6.5", fresh.EnglishLevelValue)
	}

	history, err := levelhistorystore.New(db).ListByUser(ctx, target.ID)
	if err != nil {
		t.Fatalf("ListByUser: %v", err)
	}
	if len(history) != 1 {
		t.Fatalf("history entries = %d, want 1", len(history))
	}
	if history[0].ChangedBy != mod.ID {
		t.Error("history should be attributed to the moderator")
	}
	if history[0].Reason != "session assessment" {
		t.Errorf("reason = %q, want recorded reason", history[0].Reason)
	}
}

func TestModeratorUpdatesRoomMember(t *testing.T) {
	h, fx, db := newTestHandler(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	mod := fx.CreateUserWithRole(ctx, "Mia", "mia@club.org", models.RoleModerator)
	target := fx.CreateUser(ctx, "Ana", "ana@club.org", models.ScaleIELTS, "5.0")
	cs := fx.CreateSession(ctx, "Talk", time.Now().Add(time.Hour))

	// No shared registration, only a room assignment.
	rooms := roomstore.New(db)
	room, err := rooms.InsertRoom(ctx, cs.ID, 1, models.BucketB1)
	if err != nil {
		t.Fatalf("InsertRoom: %v", err)
	}
	if err := rooms.InsertModerator(ctx, cs.ID, room.ID, mod.ID); err != nil {
		t.Fatalf("InsertModerator: %v", err)
	}
	if err := rooms.InsertMember(ctx, cs.ID, room.ID, target.ID); err != nil {
		t.Fatalf("InsertMember: %v", err)
	}

	rec := httptest.NewRecorder()
	h.ServeUpdateUser(rec, updateUserReq(t, mod, target.ID.Hex()))
	if rec.Code != http.StatusOK {
		t.Fatalf("update = %d: %s", rec.Code, rec.Body.String())
	}
}

func TestModeratorCannotUpdateStranger(t *testing.T) {
	h, fx, _ := newTestHandler(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	mod := fx.CreateUserWithRole(ctx, "Mia", "mia@club.org", models.RoleModerator)
	target := fx.CreateUser(ctx, "Ana", "ana@club.org", models.ScaleIELTS, "5.0")

	rec := httptest.NewRecorder()
	h.ServeUpdateUser(rec, updateUserReq(t, mod, target.ID.Hex()))
	if rec.Code != http.StatusForbidden {
		t.Fatalf("stranger update = %d, want 403", rec.Code)
	}
}

func TestAdminUpdatesAnyUser(t *testing.T) {
	h, fx, _ := newTestHandler(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	admin := fx.CreateUserWithRole(ctx, "Ada", "ada@club.org", models.RoleAdmin)
	target := fx.CreateUser(ctx, "Ana", "ana@club.org", models.ScaleIELTS, "5.0")

	rec := httptest.NewRecorder()
	h.ServeUpdateUser(rec, updateUserReq(t, admin, target.ID.Hex()))
	if rec.Code != http.StatusOK {
		t.Fatalf("admin update = %d: %s", rec.Code, rec.Body.String())
	}
}

func TestSetOverrideUnknownBucket(t *testing.T) {
	h, fx, _ := newTestHandler(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	u := fx.CreateUser(ctx, "Ana", "ana@club.org", models.ScaleIELTS, "5.0")
	admin := fx.CreateUserWithRole(ctx, "Ada", "ada@club.org", models.RoleAdmin)

	req := testutil.JSONRequest(t, http.MethodPut, "/levels/override/"+u.ID.Hex(), map[string]string{
		"bucket": "Z9",
	})
	req = testutil.WithChiURLParam(req, "userID", u.ID.Hex())
	req = testutil.WithUser(req, admin.ID, admin.FullName, admin.Role)
	rec := httptest.NewRecorder()
	h.ServeSetOverride(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("unknown bucket = %d, want 400", rec.Code)
	}
}

func TestPreview(t *testing.T) {
	h, fx, _ := newTestHandler(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	u := fx.CreateUser(ctx, "Ana", "ana@club.org", models.ScaleIELTS, "5.0")

	tests := []struct {
		scale, value, want string
	}{
		{"IELTS", "6.5", "B2"},
		{"CEFR", "a2", "A2"},
		{"DUOLINGO", "135", "C1"},
		{"OTHER", "fluent", "UNSPECIFIED"},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "/levels/preview?scale="+tt.scale+"&value="+tt.value, nil)
		req = testutil.WithUser(req, u.ID, u.FullName, u.Role)
		rec := httptest.NewRecorder()
		h.ServePreview(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("preview %s %s = %d", tt.scale, tt.value, rec.Code)
		}
		var got struct {
			ProficiencyBucket string `json:"proficiency_bucket"`
		}
		testutil.DecodeJSON(t, rec, &got)
		if got.ProficiencyBucket != tt.want {
			t.Errorf("preview %s %s = %q, want %q", tt.scale, tt.value, got.ProficiencyBucket, tt.want)
		}
	}
}
