// Package auth は資格情報ログイン、OAuth認証フロー、セッション管理を提供する。
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/hitoshi/agencysite/internal/model"
	"github.com/hitoshi/agencysite/internal/repository"
)

// MinPasswordLength は登録時に要求するパスワードの最小文字数。
const MinPasswordLength = 6

// 公開エンドポイントが返す入力検証メッセージ。
const (
	MsgLoginFieldsRequired    = "Email and password are required."
	MsgRegisterFieldsRequired = "Name, email, and password are required."
	MsgPasswordTooShort       = "Password must be at least 6 characters."
	MsgPasswordTooLong        = "Password must be at most 72 bytes."
	MsgEmailTaken             = "An account with this email already exists."
)

// ErrOAuthEmailTaken はOAuthで新規作成しようとしたメールアドレスが既存アカウントと衝突した場合に返す。
// 未確認メールでは既存アカウントへの紐付けを行わないため、この場合はログインを拒否する。
var ErrOAuthEmailTaken = errors.New("oauth email already belongs to another account")

// OAuthUserInfo はOAuthプロバイダーから取得したユーザー情報を表す。
type OAuthUserInfo struct {
	ProviderUserID string
	Email          string
	EmailVerified  bool
	Name           string
	Provider       string // "google" 等
}

// OAuthProvider はOAuth認証プロバイダーのインターフェース。
type OAuthProvider interface {
	// GetLoginURL はOAuth認証URLを生成する。
	GetLoginURL(state string) string
	// ExchangeCode は認可コードをトークンに交換し、ユーザー情報を取得する。
	ExchangeCode(ctx context.Context, code string) (*OAuthUserInfo, error)
}

// LoginResult はログイン成功時の結果。
type LoginResult struct {
	User    *model.User
	Session *IssuedSession
}

// Service は認証に関するビジネスロジックを提供する。
type Service struct {
	oauth     OAuthProvider
	userRepo  repository.UserRepository
	identRepo repository.IdentityRepository
	sessions  *SessionIssuer
	hasher    *PasswordHasher
}

// NewService はServiceを生成する。oauthがnilの場合はOAuthログインを無効とする。
func NewService(
	oauth OAuthProvider,
	userRepo repository.UserRepository,
	identRepo repository.IdentityRepository,
	sessions *SessionIssuer,
	hasher *PasswordHasher,
) *Service {
	return &Service{
		oauth:     oauth,
		userRepo:  userRepo,
		identRepo: identRepo,
		sessions:  sessions,
		hasher:    hasher,
	}
}

// Login はメールアドレスとパスワードを検証し、成功時にセッションを発行する。
// 未登録・パスワード未設定・不一致のいずれも同じ認証失敗エラーを返し、失敗時は状態を変更しない。
func (s *Service) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	// 1. 入力の存在チェック
	if email == "" || password == "" {
		return nil, model.NewValidationError(MsgLoginFieldsRequired)
	}

	// 2. メールアドレスの完全一致でユーザーを検索
	user, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		return nil, model.NewInternalError(fmt.Errorf("failed to find user: %w", err))
	}

	// 3. パスワード照合。未登録でもダミー照合で処理時間を揃える
	if user == nil {
		s.hasher.VerifyDummy(password)
		slog.Info("login rejected", slog.String("reason", "unknown_email"))
		return nil, model.NewInvalidCredentialsError()
	}
	if !user.HasPassword() {
		s.hasher.VerifyDummy(password)
		slog.Info("login rejected", slog.String("reason", "no_password"), slog.String("user_id", user.ID))
		return nil, model.NewInvalidCredentialsError()
	}
	if !s.hasher.Verify(password, user.PasswordHash) {
		slog.Info("login rejected", slog.String("reason", "password_mismatch"), slog.String("user_id", user.ID))
		return nil, model.NewInvalidCredentialsError()
	}

	// 4. セッションを発行
	issued, err := s.sessions.Issue(ctx, user)
	if err != nil {
		return nil, model.NewInternalError(fmt.Errorf("failed to issue session: %w", err))
	}

	slog.Info("user logged in",
		slog.String("user_id", user.ID),
		slog.String("method", "password"),
	)
	return &LoginResult{User: user, Session: issued}, nil
}

// Register はパスワードでログインするアカウントをroleがuserの状態で作成する。
// セッションは発行しない。
func (s *Service) Register(ctx context.Context, name, email, password string) (*model.User, error) {
	// 1. 入力チェック。長さチェックは重複チェックより先に行う
	if name == "" || email == "" || password == "" {
		return nil, model.NewValidationError(MsgRegisterFieldsRequired)
	}
	if utf8.RuneCountInString(password) < MinPasswordLength {
		return nil, model.NewValidationError(MsgPasswordTooShort)
	}
	if len(password) > MaxPasswordBytes {
		return nil, model.NewValidationError(MsgPasswordTooLong)
	}

	// 2. 重複チェック
	existing, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		return nil, model.NewInternalError(fmt.Errorf("failed to find user: %w", err))
	}
	if existing != nil {
		return nil, model.NewConflictError(MsgEmailTaken)
	}

	// 3. ハッシュ化して作成
	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, model.NewInternalError(err)
	}

	now := time.Now()
	user := &model.User{
		ID:           uuid.New().String(),
		Email:        email,
		PasswordHash: hash,
		Name:         name,
		Role:         model.RoleUser,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		// 同時登録で重複チェックをすり抜けた場合も409にする
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, model.NewConflictError(MsgEmailTaken)
		}
		return nil, model.NewInternalError(fmt.Errorf("failed to create user: %w", err))
	}

	slog.Info("user registered", slog.String("user_id", user.ID))
	return user, nil
}

// SeedAdmin は管理者アカウントが未登録の場合のみ作成する。既存アカウントは変更しない。
// 作成した場合はtrueを返す。
func (s *Service) SeedAdmin(ctx context.Context, name, email, password string) (bool, error) {
	if email == "" || password == "" {
		return false, fmt.Errorf("seed admin email and password are required")
	}
	if len(password) > MaxPasswordBytes {
		return false, fmt.Errorf("seed admin password exceeds %d bytes", MaxPasswordBytes)
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return false, err
	}

	now := time.Now()
	created, err := s.userRepo.CreateIfAbsent(ctx, &model.User{
		ID:           uuid.New().String(),
		Email:        email,
		PasswordHash: hash,
		Name:         name,
		Role:         model.RoleAdmin,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if err != nil {
		return false, fmt.Errorf("failed to seed admin: %w", err)
	}
	return created, nil
}

// OAuthEnabled はOAuthログインが設定されているかを返す。
func (s *Service) OAuthEnabled() bool {
	return s.oauth != nil
}

// GetLoginURL はOAuth認証URLを生成する。
func (s *Service) GetLoginURL(state string) string {
	if s.oauth == nil {
		return ""
	}
	return s.oauth.GetLoginURL(state)
}

// HandleCallback はOAuthコールバックを処理し、資格情報ログインと同じ方式でセッションを発行する。
// 未登録ユーザーの場合はusersレコードとidentitiesレコードを同時に自動作成する。
// 検証済みメールアドレスが既存ユーザーと一致する場合はそのユーザーにidentityを紐付ける。
func (s *Service) HandleCallback(ctx context.Context, code string) (*IssuedSession, error) {
	if s.oauth == nil {
		return nil, fmt.Errorf("oauth login is not configured")
	}

	// 1. 認可コードをトークンに交換し、ユーザー情報を取得
	userInfo, err := s.oauth.ExchangeCode(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange oauth code: %w", err)
	}

	// 2. identitiesテーブルで既存ユーザーを検索
	identity, err := s.identRepo.FindByProviderAndProviderUserID(ctx, userInfo.Provider, userInfo.ProviderUserID)
	if err != nil {
		return nil, fmt.Errorf("failed to find identity: %w", err)
	}

	var user *model.User
	if identity != nil {
		// 3a. 既存identity: 紐付くユーザーでログイン
		user, err = s.userRepo.FindByID(ctx, identity.UserID)
		if err != nil {
			return nil, fmt.Errorf("failed to find user: %w", err)
		}
		if user == nil {
			return nil, fmt.Errorf("user for identity not found")
		}
	} else {
		// 3b. 新規identity: 既存ユーザーへの紐付け、またはユーザーの新規作成
		user, err = s.linkOrCreateUser(ctx, userInfo)
		if err != nil {
			return nil, err
		}
	}

	// 4. セッションを発行
	issued, err := s.sessions.Issue(ctx, user)
	if err != nil {
		return nil, fmt.Errorf("failed to issue session: %w", err)
	}

	slog.Info("user logged in",
		slog.String("user_id", user.ID),
		slog.String("method", userInfo.Provider),
	)
	return issued, nil
}

// linkOrCreateUser はidentity未登録のOAuthユーザーに対応するユーザーを返す。
func (s *Service) linkOrCreateUser(ctx context.Context, userInfo *OAuthUserInfo) (*model.User, error) {
	now := time.Now()
	newIdentity := &model.Identity{
		ID:             uuid.New().String(),
		Provider:       userInfo.Provider,
		ProviderUserID: userInfo.ProviderUserID,
		CreatedAt:      now,
	}

	if userInfo.EmailVerified && userInfo.Email != "" {
		existing, err := s.userRepo.FindByEmail(ctx, userInfo.Email)
		if err != nil {
			return nil, fmt.Errorf("failed to find user: %w", err)
		}
		if existing != nil {
			newIdentity.UserID = existing.ID
			if err := s.identRepo.Create(ctx, newIdentity); err != nil {
				return nil, fmt.Errorf("failed to link identity: %w", err)
			}
			slog.Info("identity linked to existing user",
				slog.String("user_id", existing.ID),
				slog.String("provider", userInfo.Provider),
			)
			return existing, nil
		}
	}

	newUser := &model.User{
		ID:        uuid.New().String(),
		Email:     userInfo.Email,
		Name:      userInfo.Name,
		Role:      model.RoleUser,
		CreatedAt: now,
		UpdatedAt: now,
	}
	newIdentity.UserID = newUser.ID

	if err := s.userRepo.CreateWithIdentity(ctx, newUser, newIdentity); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrOAuthEmailTaken
		}
		return nil, fmt.Errorf("failed to create user and identity: %w", err)
	}

	slog.Info("new user created",
		slog.String("user_id", newUser.ID),
		slog.String("provider", userInfo.Provider),
	)
	return newUser, nil
}

// Logout はトークンが指すセッションを破棄する。
func (s *Service) Logout(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	if err := s.sessions.Revoke(ctx, token); err != nil {
		return err
	}
	slog.Info("user logged out")
	return nil
}

// ValidateSession はトークンが有効なセッションであればそのセッションを返す。
// 無効な場合はnil, nilを返す。
func (s *Service) ValidateSession(ctx context.Context, token string) (*model.Session, error) {
	return s.sessions.Validate(ctx, token)
}

// GetCurrentUser はユーザーIDから現在のユーザーを取得する。
func (s *Service) GetCurrentUser(ctx context.Context, userID string) (*model.User, error) {
	if userID == "" {
		return nil, fmt.Errorf("user ID is required")
	}

	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return nil, fmt.Errorf("user not found")
	}

	return user, nil
}

// SessionMaxAge はCookieのMax-Ageに使うセッション有効期間（秒）を返す。
func (s *Service) SessionMaxAge() int {
	return int(s.sessions.MaxAge() / time.Second)
}
