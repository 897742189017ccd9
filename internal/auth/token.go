package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/hitoshi/agencysite/internal/model"
)

// tokenIssuer はセッショントークンのiss。
const tokenIssuer = "agencysite"

// ErrInvalidToken はトークンの形式・署名・期限のいずれかが不正な場合に返す。
var ErrInvalidToken = errors.New("invalid session token")

// SessionClaims はセッショントークンに含めるクレーム。
// subにユーザーID、jtiにセッションIDを格納する。
type SessionClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// TokenCodec はセッショントークン（HS256署名のJWT）の署名と検証を行う。
type TokenCodec struct {
	secret []byte
	now    func() time.Time
}

// NewTokenCodec はTokenCodecを生成する。secretはSESSION_SECRETを渡す。
func NewTokenCodec(secret string) *TokenCodec {
	return &TokenCodec{
		secret: []byte(secret),
		now:    time.Now,
	}
}

// Sign はセッションに対応する署名付きトークンを生成する。
func (c *TokenCodec) Sign(session *model.Session) (string, error) {
	claims := SessionClaims{
		Role: string(session.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    tokenIssuer,
			Subject:   session.UserID,
			ID:        session.ID,
			IssuedAt:  jwt.NewNumericDate(session.CreatedAt),
			ExpiresAt: jwt.NewNumericDate(session.ExpiresAt),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign session token: %w", err)
	}
	return signed, nil
}

// Parse はトークンの署名と有効期限を検証し、クレームを返す。
// 失敗理由にかかわらずErrInvalidTokenでラップしたエラーを返す。
func (c *TokenCodec) Parse(tokenString string) (*SessionClaims, error) {
	claims := &SessionClaims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, c.keyFunc,
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(c.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.ID == "" || claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing jti or sub", ErrInvalidToken)
	}
	return claims, nil
}

// SessionID は署名のみを検証してセッションIDを取り出す。
// 期限切れトークンでもログアウト時にセッション行を削除できるようにする。
func (c *TokenCodec) SessionID(tokenString string) (string, error) {
	claims := &SessionClaims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, c.keyFunc,
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithoutClaimsValidation(),
	)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.ID == "" {
		return "", fmt.Errorf("%w: missing jti", ErrInvalidToken)
	}
	return claims.ID, nil
}

func (c *TokenCodec) keyFunc(_ *jwt.Token) (any, error) {
	return c.secret, nil
}
