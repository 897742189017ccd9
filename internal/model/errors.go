// Package model はドメインモデルを定義する。
package model

import "fmt"

// ErrorKind はサービス層エラーの分類。HTTPステータスへの変換はhandler層で行う。
type ErrorKind string

const (
	// KindValidation は入力不足・形式不正（400）。
	KindValidation ErrorKind = "validation"
	// KindInvalidCredentials は認証情報の不一致（401）。原因によらず同一メッセージを返す。
	KindInvalidCredentials ErrorKind = "invalid_credentials"
	// KindConflict は一意制約違反（409）。
	KindConflict ErrorKind = "conflict"
	// KindInternal は想定外の障害（500）。詳細はログのみに記録する。
	KindInternal ErrorKind = "internal"
)

// 公開エンドポイントが返す固定メッセージ。
const (
	MsgInvalidCredentials = "Invalid email or password."
	MsgInternal           = "Internal server error."
	MsgInternalRetry      = "Internal server error. Please try again later."
	MsgInvalidEmail       = "Please provide a valid email address."
)

// AppError は認証・フォーム系エンドポイントが {"message": "..."} 形式で返すエラー。
type AppError struct {
	Kind    ErrorKind
	Message string
	Err     error // 内部原因。クライアントには返さない
}

// Error はerrorインターフェースを実装する。
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap は内部原因を返す。
func (e *AppError) Unwrap() error {
	return e.Err
}

// NewValidationError は入力検証エラーを生成する。
func NewValidationError(message string) *AppError {
	return &AppError{Kind: KindValidation, Message: message}
}

// NewInvalidCredentialsError は認証失敗エラーを生成する。
// メールアドレス未登録・パスワード不一致・パスワード未設定のいずれでも同じ値になる。
func NewInvalidCredentialsError() *AppError {
	return &AppError{Kind: KindInvalidCredentials, Message: MsgInvalidCredentials}
}

// NewConflictError は重複エラーを生成する。
func NewConflictError(message string) *AppError {
	return &AppError{Kind: KindConflict, Message: message}
}

// NewInternalError は内部エラーを生成する。
func NewInternalError(err error) *AppError {
	return &AppError{Kind: KindInternal, Message: MsgInternal, Err: err}
}

// NewRetryableInternalError は再試行を促すメッセージ付きの内部エラーを生成する。
// 公開フォーム（問い合わせ・ニュースレター）で使う。
func NewRetryableInternalError(err error) *AppError {
	return &AppError{Kind: KindInternal, Message: MsgInternalRetry, Err: err}
}

// APIError は管理APIの統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, admin, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeUnauthorized = "UNAUTHORIZED"
	ErrCodeForbidden    = "FORBIDDEN"
	ErrCodeUserNotFound = "USER_NOT_FOUND"
	ErrCodeInvalidRole  = "INVALID_ROLE"
	ErrCodeSelfDemotion = "SELF_DEMOTION"
)

// NewUnauthorizedError は未認証エラーを生成する。
func NewUnauthorizedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthorized,
		Message:  "Authentication required.",
		Category: "auth",
		Action:   "Sign in and try again.",
	}
}

// NewForbiddenError は権限不足エラーを生成する。
func NewForbiddenError() *APIError {
	return &APIError{
		Code:     ErrCodeForbidden,
		Message:  "Administrator role required.",
		Category: "auth",
		Action:   "Ask an administrator to grant you access.",
	}
}

// NewUserNotFoundError はユーザーが見つからない場合のエラーを生成する。
func NewUserNotFoundError(userID string) *APIError {
	return &APIError{
		Code:     ErrCodeUserNotFound,
		Message:  fmt.Sprintf("User not found: %s", userID),
		Category: "admin",
		Action:   "Check the user ID.",
	}
}

// NewInvalidRoleError は未定義ロールが指定された場合のエラーを生成する。
func NewInvalidRoleError(role string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidRole,
		Message:  fmt.Sprintf("Invalid role: %s", role),
		Category: "validation",
		Action:   `Use "admin" or "user".`,
	}
}

// NewSelfDemotionError は管理者が自分自身の管理者ロールを外そうとした場合のエラーを生成する。
func NewSelfDemotionError() *APIError {
	return &APIError{
		Code:     ErrCodeSelfDemotion,
		Message:  "You cannot remove your own administrator role.",
		Category: "admin",
		Action:   "Ask another administrator to change your role.",
	}
}
