package sessions_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/chitchatclub/chitchatclub/internal/app/features/sessions"
	clubsessionstore "github.com/chitchatclub/chitchatclub/internal/app/store/clubsessions"
	registrationstore "github.com/chitchatclub/chitchatclub/internal/app/store/registrations"
	settingstore "github.com/chitchatclub/chitchatclub/internal/app/store/settings"
	userstore "github.com/chitchatclub/chitchatclub/internal/app/store/users"
	"github.com/chitchatclub/chitchatclub/internal/app/system/mailer"
	"github.com/chitchatclub/chitchatclub/internal/domain/models"
	"github.com/chitchatclub/chitchatclub/internal/testutil"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

func newTestHandler(t *testing.T) (*sessions.Handler, *testutil.Fixtures, *mongo.Database) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	h := sessions.NewHandler(
		clubsessionstore.New(db),
		registrationstore.New(db),
		userstore.New(db),
		settingstore.New(db),
		mailer.New(mailer.Config{}, zap.NewNop()),
		"ChitChat Club",
		zap.NewNop(),
	)
	return h, testutil.NewFixtures(t, db), db
}

func registerReq(t *testing.T, sessionID primitive.ObjectID, u models.User, asModerator bool) *http.Request {
	t.Helper()
	req := testutil.JSONRequest(t, http.MethodPost, "/sessions/"+sessionID.Hex()+"/register",
		map[string]bool{"as_moderator": asModerator})
	req = testutil.WithChiURLParam(req, "sessionID", sessionID.Hex())
	return testutil.WithUser(req, u.ID, u.FullName, u.Role)
}

func TestRegisterOpenSession(t *testing.T) {
	h, fx, _ := newTestHandler(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	cs := fx.CreateSession(ctx, "Tuesday Talk", time.Now().Add(72*time.Hour))
	u := fx.CreateUser(ctx, "Ana", "ana@club.org", models.ScaleIELTS, "5.0")

	rec := httptest.NewRecorder()
	h.ServeRegister(rec, registerReq(t, cs.ID, u, false))
	if rec.Code != http.StatusCreated {
		t.Fatalf("register = %d, want 201: %s", rec.Code, rec.Body.String())
	}

	rec = httptest.NewRecorder()
	h.ServeRegister(rec, registerReq(t, cs.ID, u, false))
	if rec.Code != http.StatusConflict {
		t.Fatalf("duplicate register = %d, want 409", rec.Code)
	}
}

func TestRegisterClosedSession(t *testing.T) {
	h, fx, db := newTestHandler(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	cs := fx.CreateSession(ctx, "Draft Talk", time.Now().Add(72*time.Hour))
	if err := clubsessionstore.New(db).SetStatus(ctx, cs.ID, models.SessionDraft); err != nil {
		t.Fatalf("SetStatus: %v", err)
	}
	u := fx.CreateUser(ctx, "Ana", "ana@club.org", models.ScaleIELTS, "5.0")

	rec := httptest.NewRecorder()
	h.ServeRegister(rec, registerReq(t, cs.ID, u, false))
	if rec.Code != http.StatusConflict {
		t.Fatalf("register on draft = %d, want 409", rec.Code)
	}
}

func TestRegisterBlacklisted(t *testing.T) {
	h, fx, db := newTestHandler(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	cs := fx.CreateSession(ctx, "Talk", time.Now().Add(72*time.Hour))
	u := fx.CreateUser(ctx, "Ana", "ana@club.org", models.ScaleIELTS, "5.0")
	if err := userstore.New(db).SetBlacklist(ctx, u.ID, time.Now().Add(7*24*time.Hour)); err != nil {
		t.Fatalf("SetBlacklist: %v", err)
	}

	rec := httptest.NewRecorder()
	h.ServeRegister(rec, registerReq(t, cs.ID, u, false))
	if rec.Code != http.StatusForbidden {
		t.Fatalf("blacklisted register = %d, want 403", rec.Code)
	}
}

func TestRegisterExpiredBlacklistAllowed(t *testing.T) {
	h, fx, db := newTestHandler(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	cs := fx.CreateSession(ctx, "Talk", time.Now().Add(72*time.Hour))
	u := fx.CreateUser(ctx, "Ana", "ana@club.org", models.ScaleIELTS, "5.0")
	if err := userstore.New(db).SetBlacklist(ctx, u.ID, time.Now().Add(-time.Hour)); err != nil {
		t.Fatalf("SetBlacklist: %v", err)
	}

	rec := httptest.NewRecorder()
	h.ServeRegister(rec, registerReq(t, cs.ID, u, false))
	if rec.Code != http.StatusCreated {
		t.Fatalf("expired blacklist register = %d, want 201: %s", rec.Code, rec.Body.String())
	}

	// The lapsed block is wiped on the way through.
	fresh, err := userstore.New(db).GetByID(ctx, u.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if fresh.BlacklistedUntil != nil {
		t.Error("expired blacklist should be cleared on registration")
	}
	if fresh.NoShowCount != 0 {
		t.Errorf("no_show_count = %d, want 0 after clear", fresh.NoShowCount)
	}
}

func TestRegisterModeratorNeedsPrivilege(t *testing.T) {
	h, fx, _ := newTestHandler(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	cs := fx.CreateSession(ctx, "Talk", time.Now().Add(72*time.Hour))
	member := fx.CreateUser(ctx, "Ana", "ana@club.org", models.ScaleIELTS, "5.0")
	mod := fx.CreateUserWithRole(ctx, "Mia", "mia@club.org", models.RoleModerator)

	rec := httptest.NewRecorder()
	h.ServeRegister(rec, registerReq(t, cs.ID, member, true))
	if rec.Code != http.StatusForbidden {
		t.Fatalf("member as moderator = %d, want 403", rec.Code)
	}

	rec = httptest.NewRecorder()
	h.ServeRegister(rec, registerReq(t, cs.ID, mod, true))
	if rec.Code != http.StatusCreated {
		t.Fatalf("moderator register = %d, want 201: %s", rec.Code, rec.Body.String())
	}
}

func TestRegisterCapacity(t *testing.T) {
	h, fx, db := newTestHandler(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	cs := fx.CreateSession(ctx, "Tiny Talk", time.Now().Add(72*time.Hour))
	_, err := db.Collection("club_sessions").UpdateOne(ctx,
		bson.M{"_id": cs.ID}, bson.M{"$set": bson.M{"max_participants": 1}})
	if err != nil {
		t.Fatalf("set capacity: %v", err)
	}

	first := fx.CreateUser(ctx, "Ana", "ana@club.org", models.ScaleIELTS, "5.0")
	fx.CreateRegistration(ctx, cs.ID, first.ID, false)

	second := fx.CreateUser(ctx, "Ben", "ben@club.org", models.ScaleIELTS, "5.0")
	rec := httptest.NewRecorder()
	h.ServeRegister(rec, registerReq(t, cs.ID, second, false))
	if rec.Code != http.StatusConflict {
		t.Fatalf("register over capacity = %d, want 409", rec.Code)
	}

	// Moderators do not consume participant slots.
	mod := fx.CreateUserWithRole(ctx, "Mia", "mia@club.org", models.RoleModerator)
	rec = httptest.NewRecorder()
	h.ServeRegister(rec, registerReq(t, cs.ID, mod, true))
	if rec.Code != http.StatusCreated {
		t.Fatalf("moderator register on full session = %d, want 201: %s", rec.Code, rec.Body.String())
	}
}

func TestUnregisterCutoff(t *testing.T) {
	h, fx, _ := newTestHandler(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	u := fx.CreateUser(ctx, "Ana", "ana@club.org", models.ScaleIELTS, "5.0")

	soon := fx.CreateSession(ctx, "Starting Soon", time.Now().Add(2*time.Hour))
	fx.CreateRegistration(ctx, soon.ID, u.ID, false)

	req := httptest.NewRequest(http.MethodDelete, "/sessions/"+soon.ID.Hex()+"/register", nil)
	req = testutil.WithChiURLParam(req, "sessionID", soon.ID.Hex())
	req = testutil.WithUser(req, u.ID, u.FullName, u.Role)
	rec := httptest.NewRecorder()
	h.ServeUnregister(rec, req)
	if rec.Code != http.StatusConflict {
		t.Fatalf("unregister inside cutoff = %d, want 409", rec.Code)
	}

	later := fx.CreateSession(ctx, "Next Week", time.Now().Add(7*24*time.Hour))
	fx.CreateRegistration(ctx, later.ID, u.ID, false)

	req = httptest.NewRequest(http.MethodDelete, "/sessions/"+later.ID.Hex()+"/register", nil)
	req = testutil.WithChiURLParam(req, "sessionID", later.ID.Hex())
	req = testutil.WithUser(req, u.ID, u.FullName, u.Role)
	rec = httptest.NewRecorder()
	h.ServeUnregister(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("unregister outside cutoff = %d, want 200: %s", rec.Code, rec.Body.String())
	}

	// Second attempt finds no registration.
	req = httptest.NewRequest(http.MethodDelete, "/sessions/"+later.ID.Hex()+"/register", nil)
	req = testutil.WithChiURLParam(req, "sessionID", later.ID.Hex())
	req = testutil.WithUser(req, u.ID, u.FullName, u.Role)
	rec = httptest.NewRecorder()
	h.ServeUnregister(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("repeat unregister = %d, want 404", rec.Code)
	}
}

func TestDetailMeetingVisibility(t *testing.T) {
	h, fx, db := newTestHandler(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	cs := fx.CreateSession(ctx, "Hidden Talk", time.Now().Add(72*time.Hour))
	_, err := db.Collection("club_sessions").UpdateOne(ctx,
		bson.M{"_id": cs.ID}, bson.M{"$set": bson.M{"meeting_link": "https://meet.example.org/abc"}})
	if err != nil {
		t.Fatalf("set meeting link: %v", err)
	}

	detail := func(u models.User) map[string]any {
		req := httptest.NewRequest(http.MethodGet, "/sessions/"+cs.ID.Hex(), nil)
		req = testutil.WithChiURLParam(req, "sessionID", cs.ID.Hex())
		req = testutil.WithUser(req, u.ID, u.FullName, u.Role)
		rec := httptest.NewRecorder()
		h.ServeDetail(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("detail = %d: %s", rec.Code, rec.Body.String())
		}
		var got map[string]any
		testutil.DecodeJSON(t, rec, &got)
		return got
	}

	stranger := fx.CreateUser(ctx, "Sam", "sam@club.org", models.ScaleIELTS, "5.0")
	if got := detail(stranger); got["meeting_link"] != nil {
		t.Errorf("unregistered user sees meeting_link = %v", got["meeting_link"])
	}

	registrant := fx.CreateUser(ctx, "Ana", "ana@club.org", models.ScaleIELTS, "5.0")
	fx.CreateRegistration(ctx, cs.ID, registrant.ID, false)
	if got := detail(registrant); got["meeting_link"] != "https://meet.example.org/abc" {
		t.Errorf("verified registrant meeting_link = %v, want link", got["meeting_link"])
	}

	mod := fx.CreateUserWithRole(ctx, "Mia", "mia@club.org", models.RoleModerator)
	got := detail(mod)
	if got["meeting_link"] != "https://meet.example.org/abc" {
		t.Errorf("moderator meeting_link = %v, want link", got["meeting_link"])
	}
	if got["attendance_code"] != "42" {
		t.Errorf("moderator attendance_code = %v, want 42", got["attendance_code"])
	}
	if _, ok := detail(registrant)["attendance_code"]; ok {
		t.Error("registrant should not see the attendance code")
	}
}

func TestCreateUpdateStatusAndCode(t *testing.T) {
	h, fx, _ := newTestHandler(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	admin := fx.CreateUserWithRole(ctx, "Ada", "ada@club.org", models.RoleAdmin)

	req := testutil.JSONRequest(t, http.MethodPost, "/sessions", map[string]any{
		"title":            "  Friday <b>Club</b>  ",
		"start_at":         time.Now().Add(96 * time.Hour).Format(time.RFC3339),
		"duration_minutes": 45,
		"max_participants": 12,
		"meeting_link":     "https://meet.example.org/xyz",
	})
	req = testutil.WithUser(req, admin.ID, admin.FullName, admin.Role)
	rec := httptest.NewRecorder()
	h.ServeCreate(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create = %d: %s", rec.Code, rec.Body.String())
	}

	var created struct {
		ID             string `json:"id"`
		Title          string `json:"title"`
		Status         string `json:"status"`
		AttendanceCode string `json:"attendance_code"`
	}
	testutil.DecodeJSON(t, rec, &created)
	if created.Title != "Friday Club" {
		t.Errorf("title = %q, want tags stripped and trimmed", created.Title)
	}
	if created.Status != models.SessionDraft {
		t.Errorf("status = %q, want draft", created.Status)
	}
	if len(created.AttendanceCode) != 2 {
		t.Errorf("attendance_code = %q, want two digits", created.AttendanceCode)
	}

	// status: draft -> open
	req = testutil.JSONRequest(t, http.MethodPost, "/sessions/"+created.ID+"/status", map[string]string{"status": "open"})
	req = testutil.WithChiURLParam(req, "sessionID", created.ID)
	req = testutil.WithUser(req, admin.ID, admin.FullName, admin.Role)
	rec = httptest.NewRecorder()
	h.ServeSetStatus(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("set status = %d: %s", rec.Code, rec.Body.String())
	}

	// invalid status rejected
	req = testutil.JSONRequest(t, http.MethodPost, "/sessions/"+created.ID+"/status", map[string]string{"status": "paused"})
	req = testutil.WithChiURLParam(req, "sessionID", created.ID)
	req = testutil.WithUser(req, admin.ID, admin.FullName, admin.Role)
	rec = httptest.NewRecorder()
	h.ServeSetStatus(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("invalid status = %d, want 400", rec.Code)
	}

	// update patches only given fields
	req = testutil.JSONRequest(t, http.MethodPatch, "/sessions/"+created.ID, map[string]any{"duration_minutes": 90})
	req = testutil.WithChiURLParam(req, "sessionID", created.ID)
	req = testutil.WithUser(req, admin.ID, admin.FullName, admin.Role)
	rec = httptest.NewRecorder()
	h.ServeUpdate(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("update = %d: %s", rec.Code, rec.Body.String())
	}
	var updated struct {
		Title           string `json:"title"`
		DurationMinutes int    `json:"duration_minutes"`
	}
	testutil.DecodeJSON(t, rec, &updated)
	if updated.DurationMinutes != 90 || updated.Title != "Friday Club" {
		t.Errorf("after patch: duration=%d title=%q", updated.DurationMinutes, updated.Title)
	}

	// regenerate code
	req = httptest.NewRequest(http.MethodPost, "/sessions/"+created.ID+"/attendance-code", nil)
	req = testutil.WithChiURLParam(req, "sessionID", created.ID)
	req = testutil.WithUser(req, admin.ID, admin.FullName, admin.Role)
	rec = httptest.NewRecorder()
	h.ServeRegenerateCode(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("regenerate = %d: %s", rec.Code, rec.Body.String())
	}
	var code struct {
		AttendanceCode string `json:"attendance_code"`
	}
	testutil.DecodeJSON(t, rec, &code)
	if len(code.AttendanceCode) != 2 {
		t.Errorf("regenerated code = %q, want two digits", code.AttendanceCode)
	}
}

func TestUpcomingReturnsNextThree(t *testing.T) {
	h, fx, _ := newTestHandler(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	for i := 1; i <= 5; i++ {
		fx.CreateSession(ctx, "Talk", time.Now().Add(time.Duration(i)*24*time.Hour))
	}
	u := fx.CreateUser(ctx, "Ana", "ana@club.org", models.ScaleIELTS, "5.0")

	req := httptest.NewRequest(http.MethodGet, "/sessions/upcoming", nil)
	req = testutil.WithUser(req, u.ID, u.FullName, u.Role)
	rec := httptest.NewRecorder()
	h.ServeUpcoming(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("upcoming = %d: %s", rec.Code, rec.Body.String())
	}

	var got struct {
		Sessions []struct {
			StartAt time.Time `json:"start_at"`
		} `json:"sessions"`
	}
	testutil.DecodeJSON(t, rec, &got)
	if len(got.Sessions) != 3 {
		t.Fatalf("upcoming sessions = %d, want 3", len(got.Sessions))
	}
	for i := 1; i < len(got.Sessions); i++ {
		if got.Sessions[i].StartAt.Before(got.Sessions[i-1].StartAt) {
			t.Error("upcoming sessions should be sorted by start time")
		}
	}
}

func TestAnnounceCountsRecipients(t *testing.T) {
	h, fx, _ := newTestHandler(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	cs := fx.CreateSession(ctx, "Talk", time.Now().Add(24*time.Hour))
	for _, name := range []string{"Ana", "Ben"} {
		u := fx.CreateUser(ctx, name, strings.ToLower(name)+"@club.org", models.ScaleIELTS, "5.0")
		fx.CreateRegistration(ctx, cs.ID, u.ID, false)
	}
	admin := fx.CreateUserWithRole(ctx, "Ada", "ada@club.org", models.RoleAdmin)

	// The test mailer runs in log-only mode, so every send succeeds.
	req := testutil.JSONRequest(t, http.MethodPost, "/sessions/"+cs.ID.Hex()+"/announce", nil)
	req = testutil.WithChiURLParam(req, "sessionID", cs.ID.Hex())
	req = testutil.WithUser(req, admin.ID, admin.FullName, admin.Role)
	rec := httptest.NewRecorder()
	h.ServeAnnounce(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("announce = %d: %s", rec.Code, rec.Body.String())
	}

	var got struct {
		Sent int `json:"sent"`
	}
	testutil.DecodeJSON(t, rec, &got)
	if got.Sent != 2 {
		t.Errorf("sent = %d, want 2", got.Sent)
	}
}

func TestDetailUnknownSession(t *testing.T) {
	h, fx, _ := newTestHandler(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	u := fx.CreateUser(ctx, "Ana", "ana@club.org", models.ScaleIELTS, "5.0")

	req := httptest.NewRequest(http.MethodGet, "/sessions/"+primitive.NewObjectID().Hex(), nil)
	req = testutil.WithChiURLParam(req, "sessionID", primitive.NewObjectID().Hex())
	req = testutil.WithUser(req, u.ID, u.FullName, u.Role)
	rec := httptest.NewRecorder()
	h.ServeDetail(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("unknown session = %d, want 404", rec.Code)
	}
}
