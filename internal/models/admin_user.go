package models

import (
	"context"
	"time"

	"github.com/uptrace/bun"
)

type AdminUser struct {
	bun.BaseModel `bun:"table:admin_users,alias:au"`

	ID           int64      `bun:"id,pk,autoincrement" json:"id"`
	Email        string     `bun:"email,notnull,unique" json:"email"`
	PasswordHash string     `bun:"password_hash,notnull" json:"-"`
	FullName     *string    `bun:"full_name" json:"full_name,omitempty"`
	IsActive     bool       `bun:"is_active,default:true" json:"is_active"`
	LastLoginAt  *time.Time `bun:"last_login_at" json:"last_login_at,omitempty"`
	CreatedAt    time.Time  `bun:"created_at,nullzero,default:now()" json:"created_at"`
}

var _ bun.BeforeInsertHook = (*AdminUser)(nil)

func (u *AdminUser) BeforeInsert(ctx context.Context, query *bun.InsertQuery) error {
	u.CreatedAt = time.Now()
	return nil
}
