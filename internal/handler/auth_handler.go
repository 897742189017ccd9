// Package handler はHTTPハンドラーを提供する。
package handler

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/hitoshi/agencysite/internal/auth"
	"github.com/hitoshi/agencysite/internal/metrics"
	"github.com/hitoshi/agencysite/internal/middleware"
	"github.com/hitoshi/agencysite/internal/model"
)

const (
	oauthStateCookie = "oauth_state"

	// MsgLoginSuccessful はログイン成功時のメッセージ。
	MsgLoginSuccessful = "Login successful."
	// MsgAccountCreated は登録成功時のメッセージ。
	MsgAccountCreated = "Account created successfully."
	// MsgLoggedOut はログアウト時のメッセージ。
	MsgLoggedOut = "Logged out."
)

// ログイン試行のメトリクスラベル。
const (
	loginOutcomeSuccess            = "success"
	loginOutcomeInvalidCredentials = "invalid_credentials"
	loginOutcomeValidation         = "validation"
	loginOutcomeError              = "error"
)

// AuthServiceInterface は認証ハンドラーが必要とするサービスインターフェース。
type AuthServiceInterface interface {
	Login(ctx context.Context, email, password string) (*auth.LoginResult, error)
	Register(ctx context.Context, name, email, password string) (*model.User, error)
	Logout(ctx context.Context, token string) error
	GetCurrentUser(ctx context.Context, userID string) (*model.User, error)
	OAuthEnabled() bool
	GetLoginURL(state string) string
	HandleCallback(ctx context.Context, code string) (*auth.IssuedSession, error)
	SessionMaxAge() int
}

// AuthHandlerConfig は認証ハンドラーの設定。
type AuthHandlerConfig struct {
	Cookie  middleware.CookieConfig
	Metrics metrics.MetricsCollector
}

// AuthHandler は認証関連のHTTPハンドラー。
type AuthHandler struct {
	service AuthServiceInterface
	config  AuthHandlerConfig
	metrics metrics.MetricsCollector
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(service AuthServiceInterface, config AuthHandlerConfig) *AuthHandler {
	collector := config.Metrics
	if collector == nil {
		collector = metrics.NopCollector{}
	}
	return &AuthHandler{
		service: service,
		config:  config,
		metrics: collector,
	}
}

// userResponse はパスワードハッシュを含まないユーザーの公開表現。
type userResponse struct {
	ID    string     `json:"id"`
	Name  string     `json:"name"`
	Email string     `json:"email"`
	Role  model.Role `json:"role,omitempty"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Message string       `json:"message"`
	User    userResponse `json:"user"`
}

type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login はメールアドレスとパスワードでログインし、セッションCookieを1つだけ設定する。
// POST /api/auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.metrics.RecordLogin(loginOutcomeValidation)
		middleware.WriteMessageResponse(w, http.StatusBadRequest, auth.MsgLoginFieldsRequired)
		return
	}

	result, err := h.service.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		h.metrics.RecordLogin(loginOutcome(err))
		writeAppError(w, err)
		return
	}

	h.metrics.RecordLogin(loginOutcomeSuccess)
	http.SetCookie(w, middleware.NewSessionCookie(result.Session.Token, h.service.SessionMaxAge(), h.config.Cookie))
	writeJSON(w, http.StatusOK, loginResponse{
		Message: MsgLoginSuccessful,
		User: userResponse{
			ID:    result.User.ID,
			Name:  result.User.Name,
			Email: result.User.Email,
			Role:  result.User.Role,
		},
	})
}

// loginOutcome はログイン失敗のエラーをメトリクスのラベルに変換する。
func loginOutcome(err error) string {
	var appErr *model.AppError
	if !errors.As(err, &appErr) {
		return loginOutcomeError
	}
	switch appErr.Kind {
	case model.KindInvalidCredentials:
		return loginOutcomeInvalidCredentials
	case model.KindValidation:
		return loginOutcomeValidation
	default:
		return loginOutcomeError
	}
}

// Register はパスワードでログインするアカウントを作成する。セッションは発行しない。
// POST /api/auth/register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		middleware.WriteMessageResponse(w, http.StatusBadRequest, auth.MsgRegisterFieldsRequired)
		return
	}

	user, err := h.service.Register(r.Context(), req.Name, req.Email, req.Password)
	if err != nil {
		writeAppError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"message": MsgAccountCreated,
		"user": userResponse{
			ID:    user.ID,
			Name:  user.Name,
			Email: user.Email,
		},
	})
}

// Logout はセッションを破棄し、セッションCookieを削除する。
// セッションの破棄に失敗してもCookieは削除する。
// POST /api/auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if token := middleware.SessionTokenFromRequest(r); token != "" {
		if err := h.service.Logout(r.Context(), token); err != nil {
			slog.Error("failed to logout", slog.String("error", err.Error()))
		}
	}

	http.SetCookie(w, middleware.ExpiredSessionCookie(h.config.Cookie))
	middleware.WriteMessageResponse(w, http.StatusOK, MsgLoggedOut)
}

// Me は現在のログインユーザー情報を返す。セッションミドルウェアの後に配置する。
// GET /api/auth/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	user, err := h.service.GetCurrentUser(r.Context(), userID)
	if err != nil {
		slog.Warn("failed to get current user",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"user": userResponse{
			ID:    user.ID,
			Name:  user.Name,
			Email: user.Email,
			Role:  user.Role,
		},
	})
}

// GoogleLogin はGoogle OAuthフローを開始する。OAuth未設定の場合は404を返す。
// GET /auth/google/login
func (h *AuthHandler) GoogleLogin(w http.ResponseWriter, r *http.Request) {
	if !h.service.OAuthEnabled() {
		http.NotFound(w, r)
		return
	}

	state, err := generateState()
	if err != nil {
		slog.Error("failed to generate oauth state", slog.String("error", err.Error()))
		middleware.WriteMessageResponse(w, http.StatusInternalServerError, model.MsgInternal)
		return
	}

	// stateをCookieに保存（CSRF対策）
	http.SetCookie(w, &http.Cookie{
		Name:     oauthStateCookie,
		Value:    state,
		Path:     "/auth/google",
		MaxAge:   600, // 10分
		HttpOnly: true,
		Secure:   h.config.Cookie.Secure,
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, h.service.GetLoginURL(state), http.StatusFound)
}

// GoogleCallback はOAuthコールバックを処理し、資格情報ログインと同じセッションを発行して管理画面へ遷移する。
// 失敗時はエラーを示すクエリ付きでログインページへ戻す。
// GET /auth/google/callback?code=xxx&state=yyy
func (h *AuthHandler) GoogleCallback(w http.ResponseWriter, r *http.Request) {
	if !h.service.OAuthEnabled() {
		http.NotFound(w, r)
		return
	}

	// 1. stateの検証（CSRF対策）
	state := r.URL.Query().Get("state")
	stateCookie, err := r.Cookie(oauthStateCookie)
	if err != nil || state == "" || stateCookie.Value != state {
		slog.Warn("oauth state mismatch")
		h.metrics.RecordLogin(loginOutcomeValidation)
		http.Redirect(w, r, middleware.LoginPath+"?error=oauth_state", http.StatusFound)
		return
	}

	// stateクッキーを削除
	http.SetCookie(w, &http.Cookie{
		Name:     oauthStateCookie,
		Value:    "",
		Path:     "/auth/google",
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		HttpOnly: true,
		Secure:   h.config.Cookie.Secure,
		SameSite: http.SameSiteLaxMode,
	})

	// 2. 認可コードの取得
	code := r.URL.Query().Get("code")
	if code == "" {
		h.metrics.RecordLogin(loginOutcomeValidation)
		http.Redirect(w, r, middleware.LoginPath+"?error=oauth_denied", http.StatusFound)
		return
	}

	// 3. 認証処理
	issued, err := h.service.HandleCallback(r.Context(), code)
	if err != nil {
		if errors.Is(err, auth.ErrOAuthEmailTaken) {
			slog.Warn("oauth email already registered")
			h.metrics.RecordLogin(loginOutcomeValidation)
			http.Redirect(w, r, middleware.LoginPath+"?error=oauth_email_taken", http.StatusFound)
			return
		}
		slog.Error("oauth callback failed", slog.String("error", err.Error()))
		h.metrics.RecordLogin(loginOutcomeError)
		http.Redirect(w, r, middleware.LoginPath+"?error=oauth_failed", http.StatusFound)
		return
	}

	// 4. セッションCookieを設定して管理画面へ
	h.metrics.RecordLogin(loginOutcomeSuccess)
	http.SetCookie(w, middleware.NewSessionCookie(issued.Token, h.service.SessionMaxAge(), h.config.Cookie))
	http.Redirect(w, r, middleware.AdminPath, http.StatusFound)
}

// generateState はCSRF対策用のランダムなstate値を生成する。
func generateState() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
