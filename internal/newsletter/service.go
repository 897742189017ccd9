// Package newsletter はニュースレター購読のドメインロジックを提供する。
package newsletter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/agencysite/internal/model"
	"github.com/hitoshi/agencysite/internal/repository"
	"github.com/hitoshi/agencysite/internal/security"
)

// 購読結果ごとのメッセージ。
const (
	MsgEmailRequired     = "Email is required."
	MsgSubscribed        = "Successfully subscribed!"
	MsgResubscribed      = "Welcome back! You've been re-subscribed."
	MsgAlreadySubscribed = "You're already subscribed!"
)

// Outcome は購読処理の結果。
type Outcome int

const (
	// Subscribed は新規に購読した。
	Subscribed Outcome = iota
	// Resubscribed は購読解除済みのアドレスを再有効化した。
	Resubscribed
	// AlreadySubscribed は既に購読中だった。
	AlreadySubscribed
)

// Message は結果に対応する応答メッセージを返す。
func (o Outcome) Message() string {
	switch o {
	case Resubscribed:
		return MsgResubscribed
	case AlreadySubscribed:
		return MsgAlreadySubscribed
	default:
		return MsgSubscribed
	}
}

// String はログとメトリクスのラベルに使う名前を返す。
func (o Outcome) String() string {
	switch o {
	case Resubscribed:
		return "resubscribed"
	case AlreadySubscribed:
		return "already_subscribed"
	default:
		return "subscribed"
	}
}

// Service はニュースレター購読のサービス層。
type Service struct {
	repo repository.SubscriberRepository
	now  func() time.Time
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(repo repository.SubscriberRepository) *Service {
	return &Service{repo: repo, now: time.Now}
}

// NormalizeEmail は前後の空白を除去し小文字化したメールアドレスを返す。
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Subscribe はメールアドレスを購読者として登録する。
// 同一アドレスは1件のみ保持し、購読解除済みであれば再有効化する。
func (s *Service) Subscribe(ctx context.Context, email string) (Outcome, error) {
	// 1. 入力検証
	email = NormalizeEmail(email)
	if email == "" {
		return 0, model.NewValidationError(MsgEmailRequired)
	}
	if !security.IsValidEmail(email) {
		return 0, model.NewValidationError(model.MsgInvalidEmail)
	}

	// 2. 既存購読者の確認
	existing, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		return 0, model.NewRetryableInternalError(fmt.Errorf("failed to find subscriber: %w", err))
	}
	if existing != nil {
		if existing.Active {
			return AlreadySubscribed, nil
		}
		if err := s.repo.SetActive(ctx, email, true); err != nil {
			return 0, model.NewRetryableInternalError(fmt.Errorf("failed to reactivate subscriber: %w", err))
		}
		slog.Info("subscriber reactivated", slog.String("subscriber_id", existing.ID))
		return Resubscribed, nil
	}

	// 3. 新規登録。同時登録で一意制約に違反した場合は購読済みとして扱う
	subscriber := &model.Subscriber{
		ID:           uuid.NewString(),
		Email:        email,
		Active:       true,
		SubscribedAt: s.now().UTC(),
	}
	if err := s.repo.Create(ctx, subscriber); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return AlreadySubscribed, nil
		}
		return 0, model.NewRetryableInternalError(fmt.Errorf("failed to create subscriber: %w", err))
	}

	slog.Info("subscriber created", slog.String("subscriber_id", subscriber.ID))
	return Subscribed, nil
}

// List は全購読者を購読日時の降順で返す。
func (s *Service) List(ctx context.Context) ([]*model.Subscriber, error) {
	subs, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list subscribers: %w", err)
	}
	return subs, nil
}

// Counts は購読者の総数とアクティブ数を返す。
func (s *Service) Counts(ctx context.Context) (total int, active int, err error) {
	total, active, err = s.repo.Counts(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to count subscribers: %w", err)
	}
	return total, active, nil
}
