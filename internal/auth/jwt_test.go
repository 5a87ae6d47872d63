package auth

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/waliasolutions/mindful-mindset-coaching-sub001/internal/identity"
)

func TestVerifierIssueAndVerify(t *testing.T) {
	v, err := NewVerifier("secret", "sitecontent")
	if err != nil {
		t.Fatalf("new verifier: %v", err)
	}
	token, err := v.Issue("coach@example.com", "admin", time.Hour)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	actor, err := v.Verify(token)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if actor.ID != identity.EditorUUID("coach@example.com") || actor.Role != "admin" {
		t.Fatalf("unexpected actor %+v", actor)
	}
}

func TestVerifierRejectsExpiredAndForeignTokens(t *testing.T) {
	past := time.Now().Add(-2 * time.Hour)
	issuer, _ := NewVerifier("secret", "sitecontent", WithClock(func() time.Time { return past }))
	expired, _ := issuer.Issue("coach", "admin", time.Minute)

	v, _ := NewVerifier("secret", "sitecontent")
	if _, err := v.Verify(expired); !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("expected expired error, got %v", err)
	}

	other, _ := NewVerifier("other-secret", "sitecontent")
	foreign, _ := other.Issue("coach", "admin", time.Hour)
	if _, err := v.Verify(foreign); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected invalid token error, got %v", err)
	}

	wrongIssuer, _ := NewVerifier("secret", "elsewhere")
	token, _ := wrongIssuer.Issue("coach", "admin", time.Hour)
	if _, err := v.Verify(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected issuer mismatch to be rejected, got %v", err)
	}
}

func TestNewVerifierRequiresSecret(t *testing.T) {
	if _, err := NewVerifier(" ", ""); !errors.Is(err, ErrSecretRequired) {
		t.Fatalf("expected ErrSecretRequired, got %v", err)
	}
}

func TestMiddleware(t *testing.T) {
	v, _ := NewVerifier("secret", "")
	token, _ := v.Issue("coach", "admin", time.Hour)

	var sawActor bool
	handler := v.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, sawActor = ActorFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	cases := []struct {
		name       string
		header     string
		wantStatus int
		wantActor  bool
	}{
		{"anonymous", "", http.StatusNoContent, false},
		{"valid", "Bearer " + token, http.StatusNoContent, true},
		{"bad scheme", "Basic abc", http.StatusUnauthorized, false},
		{"bad token", "Bearer nope", http.StatusUnauthorized, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			sawActor = false
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			if rec.Code != tc.wantStatus || sawActor != tc.wantActor {
				t.Fatalf("status %d actor %v", rec.Code, sawActor)
			}
		})
	}
}
