package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/hitoshi/agencysite/internal/model"
)

// PostgresSubscriberRepo はPostgreSQLを使用したニュースレター購読者リポジトリ。
type PostgresSubscriberRepo struct {
	db *sqlx.DB
}

// NewPostgresSubscriberRepo はPostgresSubscriberRepoを生成する。
func NewPostgresSubscriberRepo(db *sqlx.DB) *PostgresSubscriberRepo {
	return &PostgresSubscriberRepo{db: db}
}

// FindByEmail はメールアドレスで購読者を取得する。見つからない場合はnilを返す。
func (r *PostgresSubscriberRepo) FindByEmail(ctx context.Context, email string) (*model.Subscriber, error) {
	sub := &model.Subscriber{}
	err := r.db.GetContext(ctx, sub,
		`SELECT id, email, active, subscribed_at FROM newsletter_subscribers WHERE email = $1`,
		email,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find subscriber: %w", err)
	}
	return sub, nil
}

// Create は購読者を作成する。重複する場合はErrDuplicateを返す。
func (r *PostgresSubscriberRepo) Create(ctx context.Context, subscriber *model.Subscriber) error {
	_, err := r.db.NamedExecContext(ctx,
		`INSERT INTO newsletter_subscribers (id, email, active, subscribed_at)
		 VALUES (:id, :email, :active, :subscribed_at)`,
		subscriber,
	)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("failed to insert subscriber: %w", err)
	}
	return nil
}

// SetActive は購読状態を更新する。対象がない場合はErrNotFoundを返す。
func (r *PostgresSubscriberRepo) SetActive(ctx context.Context, email string, active bool) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE newsletter_subscribers SET active = $2 WHERE email = $1`,
		email, active,
	)
	if err != nil {
		return fmt.Errorf("failed to update subscriber: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// List は全購読者を購読日時の降順で返す。
func (r *PostgresSubscriberRepo) List(ctx context.Context) ([]*model.Subscriber, error) {
	subs := []*model.Subscriber{}
	err := r.db.SelectContext(ctx, &subs,
		`SELECT id, email, active, subscribed_at
		 FROM newsletter_subscribers
		 ORDER BY subscribed_at DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list subscribers: %w", err)
	}
	return subs, nil
}

// Counts は購読者の総数とアクティブ数を返す。
func (r *PostgresSubscriberRepo) Counts(ctx context.Context) (int, int, error) {
	var counts struct {
		Total  int `db:"total"`
		Active int `db:"active"`
	}
	err := r.db.GetContext(ctx, &counts,
		`SELECT count(*) AS total,
		        count(*) FILTER (WHERE active) AS active
		 FROM newsletter_subscribers`,
	)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to count subscribers: %w", err)
	}
	return counts.Total, counts.Active, nil
}

// compile-time interface check
var _ SubscriberRepository = (*PostgresSubscriberRepo)(nil)
