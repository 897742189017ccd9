package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/hitoshi/agencysite/internal/model"
)

// --- モック定義 ---

type mockSessionValidator struct {
	validateFn func(ctx context.Context, token string) (*model.Session, error)
	calls      int
}

func (m *mockSessionValidator) ValidateSession(ctx context.Context, token string) (*model.Session, error) {
	m.calls++
	if m.validateFn != nil {
		return m.validateFn(ctx, token)
	}
	return nil, nil
}

// validatorFor は指定トークンのみを有効とするバリデーターを返す。
func validatorFor(token string, role model.Role) *mockSessionValidator {
	return &mockSessionValidator{
		validateFn: func(_ context.Context, got string) (*model.Session, error) {
			if got == token {
				return &model.Session{
					ID:        "session-1",
					UserID:    "user-123",
					Role:      role,
					ExpiresAt: time.Now().Add(time.Hour),
				}, nil
			}
			return nil, nil
		},
	}
}

var _ SessionValidator = (*mockSessionValidator)(nil)

// --- テスト ---

func TestSessionMiddleware_ValidSession_InjectsUserAndRole(t *testing.T) {
	mw := NewSessionMiddleware(validatorFor("valid-token", model.RoleAdmin))

	var capturedUserID string
	var capturedRole model.Role
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, err := UserIDFromContext(r.Context())
		if err != nil {
			t.Errorf("expected no error, got %v", err)
		}
		capturedUserID = userID
		capturedRole = RoleFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/admin/stats", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: "valid-token"})
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if capturedUserID != "user-123" {
		t.Errorf("userID = %q, want %q", capturedUserID, "user-123")
	}
	if capturedRole != model.RoleAdmin {
		t.Errorf("role = %q, want %q", capturedRole, model.RoleAdmin)
	}
}

func TestSessionMiddleware_Unauthorized(t *testing.T) {
	tests := []struct {
		name      string
		cookie    *http.Cookie
		validator *mockSessionValidator
	}{
		{"no cookie", nil, validatorFor("valid-token", model.RoleAdmin)},
		{"empty cookie", &http.Cookie{Name: SessionCookieName, Value: ""}, validatorFor("valid-token", model.RoleAdmin)},
		{"invalid token", &http.Cookie{Name: SessionCookieName, Value: "forged"}, validatorFor("valid-token", model.RoleAdmin)},
		{"wrong cookie name", &http.Cookie{Name: "session_id", Value: "valid-token"}, validatorFor("valid-token", model.RoleAdmin)},
		{"validator error", &http.Cookie{Name: SessionCookieName, Value: "valid-token"}, &mockSessionValidator{
			validateFn: func(context.Context, string) (*model.Session, error) {
				return nil, errors.New("db down")
			},
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := NewSessionMiddleware(tt.validator)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				t.Fatal("handler should not be called")
			}))

			req := httptest.NewRequest(http.MethodGet, "/api/admin/contacts", nil)
			if tt.cookie != nil {
				req.AddCookie(tt.cookie)
			}
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			if w.Code != http.StatusUnauthorized {
				t.Errorf("status = %d, want %d", w.Code, http.StatusUnauthorized)
			}
			var body ErrorResponseBody
			if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
				t.Fatalf("failed to decode body: %v", err)
			}
			if body.Code != model.ErrCodeUnauthorized {
				t.Errorf("code = %q, want %q", body.Code, model.ErrCodeUnauthorized)
			}
		})
	}
}

func TestRequireAdminMiddleware(t *testing.T) {
	tests := []struct {
		name string
		role model.Role
		want int
	}{
		{"admin passes", model.RoleAdmin, http.StatusOK},
		{"user forbidden", model.RoleUser, http.StatusForbidden},
		{"no role forbidden", "", http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := NewRequireAdminMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
			}))

			req := httptest.NewRequest(http.MethodPatch, "/api/admin/users/u1/role", nil)
			if tt.role != "" {
				req = req.WithContext(ContextWithSession(req.Context(), &model.Session{UserID: "user-1", Role: tt.role}))
			}
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			if w.Code != tt.want {
				t.Errorf("status = %d, want %d", w.Code, tt.want)
			}
		})
	}
}

func TestNewSessionCookie_Attributes(t *testing.T) {
	c := NewSessionCookie("token-value", 86400, CookieConfig{Secure: true, Domain: "example.com"})

	if c.Name != "admin_session" {
		t.Errorf("Name = %q, want admin_session", c.Name)
	}
	if !c.HttpOnly {
		t.Error("HttpOnly should be true")
	}
	if !c.Secure {
		t.Error("Secure should be true")
	}
	if c.SameSite != http.SameSiteLaxMode {
		t.Errorf("SameSite = %v, want Lax", c.SameSite)
	}
	if c.Path != "/" || c.MaxAge != 86400 || c.Domain != "example.com" {
		t.Errorf("unexpected cookie: %+v", c)
	}
}

func TestExpiredSessionCookie_ClearsValue(t *testing.T) {
	c := ExpiredSessionCookie(CookieConfig{})
	if c.Value != "" || c.MaxAge >= 0 {
		t.Errorf("cookie should be expired: %+v", c)
	}
	if c.Name != SessionCookieName || c.Path != "/" {
		t.Errorf("cookie must target the session cookie: %+v", c)
	}
}

func TestUserIDFromContext_Missing(t *testing.T) {
	if _, err := UserIDFromContext(context.Background()); err == nil {
		t.Error("expected error for missing user ID")
	}
	if RoleFromContext(context.Background()) != "" {
		t.Error("expected empty role")
	}
}

func TestContextWithUserID(t *testing.T) {
	ctx := ContextWithUserID(context.Background(), "user-9")
	got, err := UserIDFromContext(ctx)
	if err != nil || got != "user-9" {
		t.Errorf("UserIDFromContext() = %q, %v", got, err)
	}
}
