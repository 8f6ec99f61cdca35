package apiapp

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	authsvc "github.com/Arnold003-blacko/etosha-backend-sub000/internal/services/auth"
)

func TestAuthMiddlewarePassesValidToken(t *testing.T) {
	jwtManager := authsvc.NewJWTManager("test-secret", 15*time.Minute)
	authService := authsvc.NewService(jwtManager)

	token, _, err := jwtManager.GenerateAccessToken(10, "member")
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}

	var gotMemberID int64
	mw := AuthMiddleware(authService, nil)
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity, ok := authsvc.IdentityFromContext(r.Context())
		if !ok {
			t.Fatalf("identity missing from context")
		}
		gotMemberID = identity.MemberID
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodGet, "/purchases", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusNoContent {
		t.Fatalf("unexpected status: %d", rr.Code)
	}
	if gotMemberID != 10 {
		t.Fatalf("unexpected member id: %d", gotMemberID)
	}
}

func TestAuthMiddlewareRejectsMissingToken(t *testing.T) {
	authService := authsvc.NewService(authsvc.NewJWTManager("test-secret", 15*time.Minute))

	mw := AuthMiddleware(authService, nil)
	handler := mw(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Fatalf("handler must not be called without a token")
	}))

	req := httptest.NewRequest(http.MethodGet, "/purchases", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("unexpected status: %d", rr.Code)
	}
}

func TestAuthMiddlewareRejectsForgedToken(t *testing.T) {
	authService := authsvc.NewService(authsvc.NewJWTManager("test-secret", 15*time.Minute))
	forger := authsvc.NewJWTManager("other-secret", 15*time.Minute)

	token, _, err := forger.GenerateAccessToken(10, "member")
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}

	mw := AuthMiddleware(authService, nil)
	handler := mw(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Fatalf("handler must not be called with a forged token")
	}))

	req := httptest.NewRequest(http.MethodGet, "/purchases", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("unexpected status: %d", rr.Code)
	}
}

func TestExtractBearerToken(t *testing.T) {
	if _, ok := extractBearerToken("Basic abc"); ok {
		t.Fatalf("non-bearer scheme must be rejected")
	}
	if _, ok := extractBearerToken(""); ok {
		t.Fatalf("empty header must be rejected")
	}
	token, ok := extractBearerToken("bearer abc.def.ghi")
	if !ok || token != "abc.def.ghi" {
		t.Fatalf("case-insensitive bearer must be accepted, got %q %v", token, ok)
	}
}
