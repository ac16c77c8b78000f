package models

import (
	"context"
	"time"

	"github.com/uptrace/bun"
)

// EligibleDevice is one allowlist row: a case-insensitive regex over the
// detected model string plus the credit ceiling granted on match.
type EligibleDevice struct {
	bun.BaseModel `bun:"table:eligible_devices,alias:ed"`

	ID             int64     `bun:"id,pk,autoincrement" json:"id"`
	Brand          string    `bun:"brand,notnull" json:"brand"`
	ModelPattern   string    `bun:"model_pattern,notnull" json:"model_pattern"`
	Description    *string   `bun:"description" json:"description,omitempty"`
	ApprovedAmount float64   `bun:"approved_amount,default:1500" json:"approved_amount"`
	Active         bool      `bun:"active,default:true" json:"active"`
	CreatedAt      time.Time `bun:"created_at,nullzero,default:now()" json:"created_at"`
	UpdatedAt      time.Time `bun:"updated_at,nullzero,default:now()" json:"updated_at"`
}

var _ bun.BeforeInsertHook = (*EligibleDevice)(nil)

func (d *EligibleDevice) BeforeInsert(ctx context.Context, query *bun.InsertQuery) error {
	d.CreatedAt = time.Now()
	d.UpdatedAt = time.Now()
	return nil
}

var _ bun.BeforeUpdateHook = (*EligibleDevice)(nil)

func (d *EligibleDevice) BeforeUpdate(ctx context.Context, query *bun.UpdateQuery) error {
	d.UpdatedAt = time.Now()
	return nil
}
