package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/agencysite/internal/model"
	"github.com/hitoshi/agencysite/internal/repository"
)

// DefaultSessionMaxAge はセッションの有効期間（秒）のデフォルト値。24時間。
const DefaultSessionMaxAge = 86400

// IssuedSession は発行済みセッションとCookieに載せる署名付きトークンの組。
type IssuedSession struct {
	Session *model.Session
	Token   string
}

// SessionIssuer はセッションの発行・検証・破棄を行う。
// トークン単体で署名と期限を検証したうえで、sessions行の存在を確認することで
// ログアウト済みセッションと削除済みユーザーを無効として扱う。
type SessionIssuer struct {
	repo   repository.SessionRepository
	codec  *TokenCodec
	maxAge time.Duration
	now    func() time.Time
}

// NewSessionIssuer はSessionIssuerを生成する。maxAgeSecondsが0以下の場合は24時間。
func NewSessionIssuer(repo repository.SessionRepository, codec *TokenCodec, maxAgeSeconds int) *SessionIssuer {
	if maxAgeSeconds <= 0 {
		maxAgeSeconds = DefaultSessionMaxAge
	}
	return &SessionIssuer{
		repo:   repo,
		codec:  codec,
		maxAge: time.Duration(maxAgeSeconds) * time.Second,
		now:    time.Now,
	}
}

// MaxAge はセッションの有効期間を返す。
func (i *SessionIssuer) MaxAge() time.Duration {
	return i.maxAge
}

// Issue は認証済みユーザーに対してセッションを作成し、署名付きトークンを返す。
// 呼び出し元は資格情報またはIdPによる検証を済ませていなければならない。
func (i *SessionIssuer) Issue(ctx context.Context, user *model.User) (*IssuedSession, error) {
	sessionID, err := generateSessionID()
	if err != nil {
		return nil, fmt.Errorf("failed to generate session ID: %w", err)
	}

	now := i.now()
	session := &model.Session{
		ID:        sessionID,
		UserID:    user.ID,
		Role:      user.Role,
		ExpiresAt: now.Add(i.maxAge),
		CreatedAt: now,
	}

	if err := i.repo.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}

	token, err := i.codec.Sign(session)
	if err != nil {
		return nil, err
	}

	return &IssuedSession{Session: session, Token: token}, nil
}

// Validate はトークンが有効なセッションを指していればそのセッションを返す。
// 形式不正・署名不一致・期限切れ・セッション行なし・ユーザーなしはすべてnil, nilを返す。
// エラーはDB障害などの内部要因の場合のみ返す。
func (i *SessionIssuer) Validate(ctx context.Context, token string) (*model.Session, error) {
	if token == "" {
		return nil, nil
	}

	claims, err := i.codec.Parse(token)
	if err != nil {
		return nil, nil
	}

	session, err := i.repo.FindByID(ctx, claims.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to find session: %w", err)
	}
	if session == nil || session.UserID != claims.Subject {
		return nil, nil
	}
	if !session.ExpiresAt.After(i.now()) {
		return nil, nil
	}

	return session, nil
}

// Revoke はトークンが指すセッションを削除する。
// 期限切れトークンでも署名が正しければ削除する。不正なトークンは何もしない。
func (i *SessionIssuer) Revoke(ctx context.Context, token string) error {
	sessionID, err := i.codec.SessionID(token)
	if err != nil {
		if errors.Is(err, ErrInvalidToken) {
			slog.Warn("logout with invalid session token")
			return nil
		}
		return err
	}

	if err := i.repo.DeleteByID(ctx, sessionID); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// generateSessionID は暗号的に安全なセッションIDを生成する。
func generateSessionID() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
