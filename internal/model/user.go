// Package model はドメインモデルを定義する。
package model

import "time"

// Role は管理画面へのアクセス制御に使うユーザーロール。
type Role string

const (
	// RoleAdmin は管理者ロール。
	RoleAdmin Role = "admin"
	// RoleUser は一般ユーザーロール。登録時のデフォルト。
	RoleUser Role = "user"
)

// Valid はロールが定義済みの値かどうかを返す。
func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleUser
}

// User は認証可能なアカウントを表す。
// PasswordHashはIdP経由で作成されたアカウントでは空になる。
type User struct {
	ID           string    `db:"id"`
	Email        string    `db:"email"`
	PasswordHash string    `db:"password_hash"`
	Name         string    `db:"name"`
	Role         Role      `db:"role"`
	CreatedAt    time.Time `db:"created_at"`
	UpdatedAt    time.Time `db:"updated_at"`
}

// HasPassword はパスワードでログイン可能なアカウントかどうかを返す。
func (u *User) HasPassword() bool {
	return u.PasswordHash != ""
}

// IsAdmin は管理者ロールを持つかどうかを返す。
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// Identity は外部IdPとの紐付け情報を表す。
type Identity struct {
	ID             string    `db:"id"`
	UserID         string    `db:"user_id"`
	Provider       string    `db:"provider"`
	ProviderUserID string    `db:"provider_user_id"`
	CreatedAt      time.Time `db:"created_at"`
}

// Session はユーザーのログインセッションを表す。
// IDは署名付きセッショントークンのjtiと一致する。
type Session struct {
	ID        string    `db:"id"`
	UserID    string    `db:"user_id"`
	Role      Role      `db:"role"`
	ExpiresAt time.Time `db:"expires_at"`
	CreatedAt time.Time `db:"created_at"`
}
