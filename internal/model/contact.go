package model

import "time"

// Contact はお問い合わせフォームの送信内容を表す。
type Contact struct {
	ID        string    `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Email     string    `db:"email" json:"email"`
	Subject   string    `db:"subject" json:"subject"`
	Message   string    `db:"message" json:"message"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Subscriber はニュースレター購読者を表す。
// 購読解除されたレコードは削除せずactive=falseで保持する。
type Subscriber struct {
	ID           string    `db:"id" json:"id"`
	Email        string    `db:"email" json:"email"`
	Active       bool      `db:"active" json:"active"`
	SubscribedAt time.Time `db:"subscribed_at" json:"subscribed_at"`
}
