package auth

import (
	"fmt"
	"sync"

	"golang.org/x/crypto/bcrypt"
)

// DefaultPasswordCost はbcryptのコストファクター。
// ログイン1回あたり数十〜数百ミリ秒を要するが、この遅さがオフライン攻撃への耐性になる。
const DefaultPasswordCost = 12

// MaxPasswordBytes はbcryptが扱える入力の上限バイト数。
const MaxPasswordBytes = 72

// PasswordHasher はソルト付きbcryptでパスワードのハッシュ化と照合を行う。
type PasswordHasher struct {
	cost int

	dummyOnce sync.Once
	dummyHash []byte
}

// NewPasswordHasher はPasswordHasherを生成する。
// costがbcryptの許容範囲外の場合はDefaultPasswordCostを使う。
func NewPasswordHasher(cost int) *PasswordHasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = DefaultPasswordCost
	}
	return &PasswordHasher{cost: cost}
}

// Cost はハッシュ化に使うコストファクターを返す。
func (h *PasswordHasher) Cost() int {
	return h.cost
}

// Hash は平文パスワードからソルト付きダイジェストを生成する。
func (h *PasswordHasher) Hash(plaintext string) (string, error) {
	digest, err := bcrypt.GenerateFromPassword([]byte(plaintext), h.cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(digest), nil
}

// Verify は平文パスワードとダイジェストを定数時間で照合する。
// 不一致、空のダイジェスト、形式不正のダイジェストはすべてfalseを返す。
func (h *PasswordHasher) Verify(plaintext, digest string) bool {
	if digest == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(digest), []byte(plaintext)) == nil
}

// VerifyDummy は存在しないユーザーに対しても同じコストで照合処理を行う。
// ユーザー存在有無による応答時間差を小さくするために使う。結果は常にfalse。
func (h *PasswordHasher) VerifyDummy(plaintext string) bool {
	h.dummyOnce.Do(func() {
		digest, err := bcrypt.GenerateFromPassword([]byte("dummy-password-for-timing"), h.cost)
		if err == nil {
			h.dummyHash = digest
		}
	})
	if h.dummyHash != nil {
		_ = bcrypt.CompareHashAndPassword(h.dummyHash, []byte(plaintext))
	}
	return false
}
