// Package security はアプリケーションのセキュリティ機能を提供する。
//
// FormSanitizer は公開フォームから受け取ったテキストからHTMLを取り除き、
// 管理画面に表示する前にマークアップが混入しないようにする。
package security

import (
	"html"
	"regexp"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// emailPattern は空白と@を含まないローカル部・ドメイン・TLDからなる簡易形式。
var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// IsValidEmail はメールアドレスが簡易形式に一致するかを返す。
func IsValidEmail(email string) bool {
	return emailPattern.MatchString(email)
}

// TextSanitizer はフォーム入力のサニタイズ機能のインターフェース。
type TextSanitizer interface {
	// SanitizeText は全てのタグを除去したプレーンテキストを返す。
	// 前後の空白は取り除く。同一入力に対して常に同一出力を返す。
	SanitizeText(raw string) string
}

// FormSanitizer はTextSanitizerの実装。
// bluemondayのStrictPolicyで全タグを除去し、エスケープされた文字実体を元に戻す。
// 出力はプレーンテキストとして保存され、表示時にテンプレートでエスケープされる。
type FormSanitizer struct {
	policy *bluemonday.Policy
}

// NewFormSanitizer はFormSanitizerを生成する。
func NewFormSanitizer() *FormSanitizer {
	return &FormSanitizer{policy: bluemonday.StrictPolicy()}
}

// SanitizeText は全てのタグを除去したプレーンテキストを返す。
func (s *FormSanitizer) SanitizeText(raw string) string {
	if raw == "" {
		return ""
	}
	stripped := s.policy.Sanitize(raw)
	return strings.TrimSpace(html.UnescapeString(stripped))
}

// compile-time interface check
var _ TextSanitizer = (*FormSanitizer)(nil)
