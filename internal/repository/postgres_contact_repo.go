package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/hitoshi/agencysite/internal/model"
)

// PostgresContactRepo はPostgreSQLを使用したお問い合わせリポジトリ。
type PostgresContactRepo struct {
	db *sqlx.DB
}

// NewPostgresContactRepo はPostgresContactRepoを生成する。
func NewPostgresContactRepo(db *sqlx.DB) *PostgresContactRepo {
	return &PostgresContactRepo{db: db}
}

// Create はお問い合わせを保存する。
func (r *PostgresContactRepo) Create(ctx context.Context, contact *model.Contact) error {
	_, err := r.db.NamedExecContext(ctx,
		`INSERT INTO contacts (id, name, email, subject, message, created_at)
		 VALUES (:id, :name, :email, :subject, :message, :created_at)`,
		contact,
	)
	if err != nil {
		return fmt.Errorf("failed to insert contact: %w", err)
	}
	return nil
}

// List は全お問い合わせを受信日時の降順で返す。
func (r *PostgresContactRepo) List(ctx context.Context) ([]*model.Contact, error) {
	contacts := []*model.Contact{}
	err := r.db.SelectContext(ctx, &contacts,
		`SELECT id, name, email, subject, message, created_at
		 FROM contacts
		 ORDER BY created_at DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list contacts: %w", err)
	}
	return contacts, nil
}

// Count はお問い合わせ件数を返す。
func (r *PostgresContactRepo) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.db.GetContext(ctx, &count, `SELECT count(*) FROM contacts`); err != nil {
		return 0, fmt.Errorf("failed to count contacts: %w", err)
	}
	return count, nil
}

// compile-time interface check
var _ ContactRepository = (*PostgresContactRepo)(nil)
