// Package contact はお問い合わせフォームのドメインロジックを提供する。
package contact

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/agencysite/internal/model"
	"github.com/hitoshi/agencysite/internal/repository"
	"github.com/hitoshi/agencysite/internal/security"
)

const (
	// MsgFieldsRequired は必須項目が欠けている場合のメッセージ。
	MsgFieldsRequired = "All fields are required."
	// MsgReceived は送信を受け付けた場合のメッセージ。
	MsgReceived = "Message received! We'll be in touch."
)

// SubmitInput はお問い合わせフォームの入力値。
type SubmitInput struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Subject string `json:"subject"`
	Message string `json:"message"`
}

// Service はお問い合わせのサービス層。
type Service struct {
	repo      repository.ContactRepository
	sanitizer security.TextSanitizer
	now       func() time.Time
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(repo repository.ContactRepository, sanitizer security.TextSanitizer) *Service {
	return &Service{
		repo:      repo,
		sanitizer: sanitizer,
		now:       time.Now,
	}
}

// Submit はお問い合わせを検証して保存する。
// 全項目はタグ除去後に空でないこと、メールアドレスは簡易形式に一致することを要求する。
func (s *Service) Submit(ctx context.Context, input SubmitInput) (*model.Contact, error) {
	// 1. タグを除去して正規化
	contact := &model.Contact{
		Name:    s.sanitizer.SanitizeText(input.Name),
		Email:   s.sanitizer.SanitizeText(input.Email),
		Subject: s.sanitizer.SanitizeText(input.Subject),
		Message: s.sanitizer.SanitizeText(input.Message),
	}

	// 2. 入力検証
	if contact.Name == "" || contact.Email == "" || contact.Subject == "" || contact.Message == "" {
		return nil, model.NewValidationError(MsgFieldsRequired)
	}
	if !security.IsValidEmail(contact.Email) {
		return nil, model.NewValidationError(model.MsgInvalidEmail)
	}

	// 3. 保存
	contact.ID = uuid.NewString()
	contact.CreatedAt = s.now().UTC()
	if err := s.repo.Create(ctx, contact); err != nil {
		return nil, model.NewRetryableInternalError(fmt.Errorf("failed to save contact: %w", err))
	}

	slog.Info("contact received",
		slog.String("contact_id", contact.ID),
	)

	return contact, nil
}

// List は全お問い合わせを受信日時の降順で返す。
func (s *Service) List(ctx context.Context) ([]*model.Contact, error) {
	contacts, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list contacts: %w", err)
	}
	return contacts, nil
}

// Count はお問い合わせ件数を返す。
func (s *Service) Count(ctx context.Context) (int, error) {
	count, err := s.repo.Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to count contacts: %w", err)
	}
	return count, nil
}
