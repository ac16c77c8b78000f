package models

import (
	"context"
	"time"

	"github.com/uptrace/bun"
)

// OTPCode is one issued verification code. A partial unique index keeps at
// most one unused row per journey; expired or attempt-capped unused rows are
// marked used before a new code is inserted.
type OTPCode struct {
	bun.BaseModel `bun:"table:otp_codes,alias:oc"`

	ID        int64     `bun:"id,pk,autoincrement" json:"id"`
	JourneyID int64     `bun:"journey_id,notnull" json:"journey_id"`
	CodeHash  string    `bun:"code_hash,notnull" json:"-"`
	ExpiresAt time.Time `bun:"expires_at,notnull" json:"expires_at"`
	Used      bool      `bun:"used,default:false" json:"used"`
	Attempts  int       `bun:"attempts,default:0" json:"attempts"`
	CreatedAt time.Time `bun:"created_at,nullzero,default:now()" json:"created_at"`
}

// IsExpired reports whether the code itself (not the verified proof) has
// passed its validity window.
func (o *OTPCode) IsExpired(now time.Time) bool {
	return now.After(o.ExpiresAt)
}

var _ bun.BeforeInsertHook = (*OTPCode)(nil)

func (o *OTPCode) BeforeInsert(ctx context.Context, query *bun.InsertQuery) error {
	o.CreatedAt = time.Now()
	return nil
}
