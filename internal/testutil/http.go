package testutil

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/chitchatclub/chitchatclub/internal/app/system/auth"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// WithChiURLParam adds a chi URL parameter to the request context. Use
// this in handler tests that call chi.URLParam.
func WithChiURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// WithUser attaches a session user to the request context, bypassing
// cookies.
func WithUser(r *http.Request, id primitive.ObjectID, name, role string) *http.Request {
	return auth.WithTestUser(r, &auth.SessionUser{
		ID:            id.Hex(),
		Name:          name,
		Email:         name + "@test.local",
		Role:          role,
		EmailVerified: true,
	})
}

// JSONRequest builds a request whose body is the JSON encoding of v.
func JSONRequest(t *testing.T, method, target string, v interface{}) *http.Request {
	t.Helper()

	var body bytes.Buffer
	if v != nil {
		if err := json.NewEncoder(&body).Encode(v); err != nil {
			t.Fatalf("failed to encode request body: %v", err)
		}
	}
	req := httptest.NewRequest(method, target, &body)
	req.Header.Set("Content-Type", "application/json")
	return req
}

// DecodeJSON decodes the recorder's body into out.
func DecodeJSON(t *testing.T, rec *httptest.ResponseRecorder, out interface{}) {
	t.Helper()

	if err := json.NewDecoder(rec.Body).Decode(out); err != nil {
		t.Fatalf("failed to decode response body: %v", err)
	}
}
