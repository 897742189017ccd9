// Package user はユーザー管理のドメインロジックを提供する。
package user

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hitoshi/agencysite/internal/model"
	"github.com/hitoshi/agencysite/internal/repository"
)

// Service はユーザー管理のサービス層。
// 管理画面の一覧表示とロール変更のビジネスロジックを提供する。
type Service struct {
	userRepo repository.UserRepository
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(userRepo repository.UserRepository) *Service {
	return &Service{userRepo: userRepo}
}

// List は全ユーザーを作成日時の降順で返す。
func (s *Service) List(ctx context.Context) ([]*model.User, error) {
	users, err := s.userRepo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	return users, nil
}

// Counts は全ユーザー数と管理者数を返す。
func (s *Service) Counts(ctx context.Context) (total int, admins int, err error) {
	total, admins, err = s.userRepo.CountByRole(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to count users: %w", err)
	}
	return total, admins, nil
}

// UpdateRole は対象ユーザーのロールを変更し、変更後のユーザーを返す。
// 管理者が自分自身の管理者ロールを外すことはできない。
// ロールはセッション検証のたびにusersから読み直すため、変更は次のリクエストから反映される。
func (s *Service) UpdateRole(ctx context.Context, actorID, targetID string, role model.Role) (*model.User, error) {
	// 1. ロールの検証
	if !role.Valid() {
		return nil, model.NewInvalidRoleError(string(role))
	}

	// 2. 自己降格の防止
	if actorID == targetID && role != model.RoleAdmin {
		return nil, model.NewSelfDemotionError()
	}

	// 3. 対象ユーザーの存在確認
	target, err := s.userRepo.FindByID(ctx, targetID)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if target == nil {
		return nil, model.NewUserNotFoundError(targetID)
	}
	if target.Role == role {
		return target, nil
	}

	// 4. ロールを更新
	if err := s.userRepo.UpdateRole(ctx, targetID, role); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, model.NewUserNotFoundError(targetID)
		}
		return nil, fmt.Errorf("failed to update role: %w", err)
	}

	slog.Info("user role updated",
		slog.String("actor_id", actorID),
		slog.String("user_id", targetID),
		slog.String("from", string(target.Role)),
		slog.String("to", string(role)),
	)

	target.Role = role
	return target, nil
}
