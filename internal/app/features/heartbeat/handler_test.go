package heartbeat_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/chitchatclub/chitchatclub/internal/app/features/heartbeat"
	authsessionstore "github.com/chitchatclub/chitchatclub/internal/app/store/authsessions"
	"github.com/chitchatclub/chitchatclub/internal/testutil"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

func TestServeHeartbeat_TouchesOpenSession(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := authsessionstore.New(db)
	handler := heartbeat.NewHandler(store, zap.NewNop())
	ctx, cancel := testutil.TestContext()
	defer cancel()

	userID := primitive.NewObjectID()
	if _, err := store.Create(ctx, userID, "127.0.0.1", "test", authsessionstore.CreatedByLogin); err != nil {
		t.Fatalf("failed to create auth session: %v", err)
	}

	req := httptest.NewRequest("POST", "/heartbeat", nil)
	req = testutil.WithUser(req, userID, "Ana", "member")
	rec := httptest.NewRecorder()
	handler.ServeHeartbeat(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("expected status %d, got %d", http.StatusOK, rec.Code)
	}

	active, err := store.GetActiveByUser(ctx, userID)
	if err != nil {
		t.Fatalf("GetActiveByUser failed: %v", err)
	}
	if len(active) != 1 {
		t.Errorf("active sessions = %d, want 1", len(active))
	}
}

func TestServeHeartbeat_RecreatesClosedSession(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := authsessionstore.New(db)
	handler := heartbeat.NewHandler(store, zap.NewNop())
	ctx, cancel := testutil.TestContext()
	defer cancel()

	userID := primitive.NewObjectID()

	req := httptest.NewRequest("POST", "/heartbeat", nil)
	req = testutil.WithUser(req, userID, "Ana", "member")
	rec := httptest.NewRecorder()
	handler.ServeHeartbeat(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("expected status %d, got %d", http.StatusOK, rec.Code)
	}

	active, err := store.GetActiveByUser(ctx, userID)
	if err != nil {
		t.Fatalf("GetActiveByUser failed: %v", err)
	}
	if len(active) != 1 {
		t.Fatalf("active sessions = %d, want recreated session", len(active))
	}
	if active[0].CreatedBy != authsessionstore.CreatedByHeartbeat {
		t.Errorf("created_by = %q, want %q", active[0].CreatedBy, authsessionstore.CreatedByHeartbeat)
	}
}

func TestServeHeartbeat_AnonymousIsNoop(t *testing.T) {
	db := testutil.SetupTestDB(t)
	handler := heartbeat.NewHandler(authsessionstore.New(db), zap.NewNop())

	rec := httptest.NewRecorder()
	handler.ServeHeartbeat(rec, httptest.NewRequest("POST", "/heartbeat", nil))

	if rec.Code != http.StatusOK {
		t.Errorf("expected status %d, got %d", http.StatusOK, rec.Code)
	}
}
