package models

import (
	"context"
	"strings"
	"time"

	"github.com/uptrace/bun"
)

type Lead struct {
	bun.BaseModel `bun:"table:leads,alias:l"`

	ID       int64  `bun:"id,pk,autoincrement" json:"id"`
	CPF      string `bun:"cpf,notnull,unique" json:"cpf"`
	FullName string `bun:"full_name,notnull" json:"full_name"`

	// Encrypted content (stored encrypted, decrypted on read)
	PhoneEncrypted  string  `bun:"phone_encrypted,notnull" json:"-"`
	Phone2Encrypted *string `bun:"phone2_encrypted" json:"-"`
	EmailEncrypted  *string `bun:"email_encrypted" json:"-"`

	// Decrypted fields (not stored in DB, populated by service)
	Phone  string  `bun:"-" json:"phone,omitempty"`
	Phone2 *string `bun:"-" json:"phone2,omitempty"`
	Email  *string `bun:"-" json:"email,omitempty"`

	BirthDate *time.Time `bun:"birth_date" json:"birth_date,omitempty"`

	// Address (autofilled from postal code lookup)
	CEP      *string `bun:"cep" json:"cep,omitempty"`
	Street   *string `bun:"street" json:"street,omitempty"`
	District *string `bun:"district" json:"district,omitempty"`
	City     *string `bun:"city" json:"city,omitempty"`
	State    *string `bun:"state" json:"state,omitempty"`

	Blacklisted bool `bun:"blacklisted,default:false" json:"blacklisted"`

	CreatedAt time.Time `bun:"created_at,nullzero,default:now()" json:"created_at"`
	UpdatedAt time.Time `bun:"updated_at,nullzero,default:now()" json:"updated_at"`
}

// FirstName returns the first word of the full name, used for greetings.
func (l *Lead) FirstName() string {
	name := strings.TrimSpace(l.FullName)
	if idx := strings.IndexByte(name, ' '); idx > 0 {
		return name[:idx]
	}
	return name
}

var _ bun.BeforeInsertHook = (*Lead)(nil)

func (l *Lead) BeforeInsert(ctx context.Context, query *bun.InsertQuery) error {
	l.CreatedAt = time.Now()
	l.UpdatedAt = time.Now()
	return nil
}

var _ bun.BeforeUpdateHook = (*Lead)(nil)

func (l *Lead) BeforeUpdate(ctx context.Context, query *bun.UpdateQuery) error {
	l.UpdatedAt = time.Now()
	return nil
}
