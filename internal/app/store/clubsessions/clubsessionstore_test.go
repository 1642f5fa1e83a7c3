package clubsessionstore_test

import (
	"errors"
	"testing"
	"time"

	clubsessionstore "github.com/chitchatclub/chitchatclub/internal/app/store/clubsessions"
	"github.com/chitchatclub/chitchatclub/internal/domain/models"
	"github.com/chitchatclub/chitchatclub/internal/testutil"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

func TestCreateDefaults(t *testing.T) {
	db := testutil.SetupTestDB(t)
	s := clubsessionstore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	cs, err := s.Create(ctx, models.ClubSession{
		Title:   "  Monday   Mixer ",
		StartAt: time.Now().Add(48 * time.Hour),
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if cs.Title != "Monday Mixer" {
		t.Errorf("Title = %q, want collapsed whitespace", cs.Title)
	}
	if cs.TitleCI != "monday mixer" {
		t.Errorf("TitleCI = %q, want folded", cs.TitleCI)
	}
	if cs.Status != models.SessionDraft {
		t.Errorf("Status = %q, want draft", cs.Status)
	}
	if len(cs.AttendanceCode) != 2 {
		t.Errorf("AttendanceCode = %q, want two digits", cs.AttendanceCode)
	}

	if _, err := s.Create(ctx, models.ClubSession{Title: "   "}); err == nil {
		t.Error("empty title should be rejected")
	}
	if _, err := s.Create(ctx, models.ClubSession{Title: "X", Status: "paused"}); err == nil {
		t.Error("unknown status should be rejected")
	}
}

func TestApplyPatchesOnlyGivenFields(t *testing.T) {
	db := testutil.SetupTestDB(t)
	s := clubsessionstore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	cs, err := s.Create(ctx, models.ClubSession{
		Title:           "Friday Club",
		DurationMinutes: 60,
		MaxParticipants: 20,
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	duration := 90
	link := "https://meet.example.org/abc"
	if err := s.Apply(ctx, cs.ID, clubsessionstore.Update{
		DurationMinutes: &duration,
		MeetingLink:     &link,
	}); err != nil {
		t.Fatalf("Apply: %v", err)
	}

	got, err := s.GetByID(ctx, cs.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.DurationMinutes != 90 {
		t.Errorf("DurationMinutes = %d, want 90", got.DurationMinutes)
	}
	if got.MeetingLink != link {
		t.Errorf("MeetingLink = %q, want %q", got.MeetingLink, link)
	}
	if got.Title != "Friday Club" || got.MaxParticipants != 20 {
		t.Error("untouched fields should be preserved")
	}

	empty := "   "
	if err := s.Apply(ctx, cs.ID, clubsessionstore.Update{Title: &empty}); err == nil {
		t.Error("blank title patch should be rejected")
	}
	if err := s.Apply(ctx, primitive.NewObjectID(), clubsessionstore.Update{DurationMinutes: &duration}); !errors.Is(err, mongo.ErrNoDocuments) {
		t.Errorf("Apply unknown id err = %v, want ErrNoDocuments", err)
	}
}

func TestStatusLifecycle(t *testing.T) {
	db := testutil.SetupTestDB(t)
	s := clubsessionstore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	cs, err := s.Create(ctx, models.ClubSession{Title: "Lifecycle"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if err := s.SetStatus(ctx, cs.ID, models.SessionOpen); err != nil {
		t.Fatalf("SetStatus open: %v", err)
	}
	if err := s.SetStatus(ctx, cs.ID, "archived"); err == nil {
		t.Error("unknown status should be rejected")
	}

	got, err := s.GetByID(ctx, cs.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Status != models.SessionOpen {
		t.Errorf("Status = %q, want open", got.Status)
	}
}

func TestListUpcomingFiltersStatusAndTime(t *testing.T) {
	db := testutil.SetupTestDB(t)
	s := clubsessionstore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	mk := func(title, status string, startAt time.Time) {
		t.Helper()
		if _, err := s.Create(ctx, models.ClubSession{Title: title, Status: status, StartAt: startAt}); err != nil {
			t.Fatalf("Create %s: %v", title, err)
		}
	}

	now := time.Now().UTC()
	mk("Soon", models.SessionOpen, now.Add(2*time.Hour))
	mk("Later", models.SessionOpen, now.Add(48*time.Hour))
	mk("Past", models.SessionOpen, now.Add(-2*time.Hour))
	mk("Draft", models.SessionDraft, now.Add(2*time.Hour))
	mk("Cancelled", models.SessionCancelled, now.Add(2*time.Hour))

	got, err := s.ListUpcoming(ctx, 10)
	if err != nil {
		t.Fatalf("ListUpcoming: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("ListUpcoming = %d sessions, want 2", len(got))
	}
	if got[0].Title != "Soon" || got[1].Title != "Later" {
		t.Errorf("order = [%s, %s], want soonest first", got[0].Title, got[1].Title)
	}
}

func TestRegenerateAttendanceCode(t *testing.T) {
	db := testutil.SetupTestDB(t)
	s := clubsessionstore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	cs, err := s.Create(ctx, models.ClubSession{Title: "Codes"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	code, err := s.RegenerateAttendanceCode(ctx, cs.ID)
	if err != nil {
		t.Fatalf("RegenerateAttendanceCode: %v", err)
	}
	if len(code) != 2 || code[0] < '0' || code[0] > '9' || code[1] < '0' || code[1] > '9' {
		t.Errorf("code = %q, want two digits", code)
	}

	got, err := s.GetByID(ctx, cs.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.AttendanceCode != code {
		t.Errorf("stored code = %q, want %q", got.AttendanceCode, code)
	}

	if _, err := s.RegenerateAttendanceCode(ctx, primitive.NewObjectID()); !errors.Is(err, mongo.ErrNoDocuments) {
		t.Errorf("unknown id err = %v, want ErrNoDocuments", err)
	}
}
