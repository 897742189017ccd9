// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"errors"

	"github.com/hitoshi/agencysite/internal/model"
)

var (
	// ErrDuplicate は一意制約（メールアドレス等）に違反した場合に返す。
	ErrDuplicate = errors.New("duplicate record")
	// ErrNotFound は更新対象のレコードが存在しない場合に返す。
	// 参照系メソッドは見つからない場合nilを返し、このエラーは使わない。
	ErrNotFound = errors.New("record not found")
)

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// FindByEmail はメールアドレスの完全一致（大文字小文字を区別）でユーザーを取得する。
	// 見つからない場合はnilを返す。
	FindByEmail(ctx context.Context, email string) (*model.User, error)

	// Create はユーザーを作成する。メールアドレスが重複する場合はErrDuplicateを返す。
	Create(ctx context.Context, user *model.User) error

	// CreateIfAbsent はメールアドレスが未登録の場合のみユーザーを作成する。
	// 既存ユーザーは変更せず、作成した場合のみtrueを返す。
	CreateIfAbsent(ctx context.Context, user *model.User) (bool, error)

	// CreateWithIdentity はユーザーとidentityを同一トランザクションで作成する。
	CreateWithIdentity(ctx context.Context, user *model.User, identity *model.Identity) error

	// List は全ユーザーを作成日時の降順で返す。
	List(ctx context.Context) ([]*model.User, error)

	// UpdateRole はユーザーのロールを更新する。対象がない場合はErrNotFoundを返す。
	UpdateRole(ctx context.Context, id string, role model.Role) error

	// CountByRole は全ユーザー数と管理者数を返す。
	CountByRole(ctx context.Context) (total int, admins int, err error)
}

// IdentityRepository は外部IdP紐付け情報の永続化インターフェース。
type IdentityRepository interface {
	// FindByProviderAndProviderUserID はproviderとprovider_user_idでidentityを検索する。
	// 見つからない場合はnilを返す。
	FindByProviderAndProviderUserID(ctx context.Context, provider, providerUserID string) (*model.Identity, error)

	// Create は既存ユーザーにidentityを紐付ける。
	Create(ctx context.Context, identity *model.Identity) error
}

// SessionRepository はセッションデータの永続化インターフェース。
type SessionRepository interface {
	// Create はセッションを作成する。
	Create(ctx context.Context, session *model.Session) error
	// FindByID は指定IDのセッションをユーザーのロール付きで取得する。
	// 期限切れ、またはユーザーが存在しない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Session, error)
	// DeleteByID は指定IDのセッションを削除する。
	DeleteByID(ctx context.Context, id string) error
	// DeleteByUserID は指定ユーザーの全セッションを削除する。
	DeleteByUserID(ctx context.Context, userID string) error
	// DeleteExpired は期限切れセッションを削除し、削除件数を返す。
	DeleteExpired(ctx context.Context) (int64, error)
}

// ContactRepository はお問い合わせの永続化インターフェース。
type ContactRepository interface {
	// Create はお問い合わせを保存する。
	Create(ctx context.Context, contact *model.Contact) error
	// List は全お問い合わせを受信日時の降順で返す。
	List(ctx context.Context) ([]*model.Contact, error)
	// Count はお問い合わせ件数を返す。
	Count(ctx context.Context) (int, error)
}

// SubscriberRepository はニュースレター購読者の永続化インターフェース。
type SubscriberRepository interface {
	// FindByEmail はメールアドレスで購読者を取得する。見つからない場合はnilを返す。
	FindByEmail(ctx context.Context, email string) (*model.Subscriber, error)
	// Create は購読者を作成する。重複する場合はErrDuplicateを返す。
	Create(ctx context.Context, subscriber *model.Subscriber) error
	// SetActive は購読状態を更新する。対象がない場合はErrNotFoundを返す。
	SetActive(ctx context.Context, email string, active bool) error
	// List は全購読者を購読日時の降順で返す。
	List(ctx context.Context) ([]*model.Subscriber, error)
	// Counts は購読者の総数とアクティブ数を返す。
	Counts(ctx context.Context) (total int, active int, err error)
}
