package models

import (
	"context"
	"time"

	"github.com/uptrace/bun"
)

// Event types written by the backend. The frontend tracker may submit others
// (button_clicked, input_focused, ...); the column is free-form on purpose.
const (
	EventSessionStarted   = "session_started"
	EventSessionResumed   = "session_resumed"
	EventOTPSent          = "otp_sent"
	EventOTPVerified      = "otp_verified"
	EventOTPFailed        = "otp_failed"
	EventStepCompleted    = "step_completed"
	EventDeviceEligible   = "device_eligible"
	EventDeviceIneligible = "device_ineligible"
	EventIncomeValidated  = "income_validated"
	EventOfferAccepted    = "offer_accepted"
	EventGuardVerified    = "guard_verified"
	EventContractSigned   = "contract_signed"
	EventJourneyCompleted = "journey_completed"
	EventJourneyAbandoned = "journey_abandoned"
	EventReminderSent     = "reminder_sent"
)

// EventMetadata carries the known analytics fields plus an open extension
// map for ad hoc client-side payloads. Everything is optional.
type EventMetadata struct {
	Success     *bool    `json:"success,omitempty"`
	Channel     string   `json:"channel,omitempty"`
	Model       string   `json:"model,omitempty"`
	Vendor      string   `json:"vendor,omitempty"`
	Eligible    *bool    `json:"eligible,omitempty"`
	Amount      *float64 `json:"amount,omitempty"`
	Platform    string   `json:"platform,omitempty"`
	ContractID  string   `json:"contract_id,omitempty"`
	Reason      string   `json:"reason,omitempty"`
	AbandonedAt string   `json:"abandoned_at,omitempty"`
	Attempts    *int     `json:"attempts,omitempty"`

	Extra map[string]any `json:"extra,omitempty"`
}

type JourneyEvent struct {
	bun.BaseModel `bun:"table:journey_events,alias:je"`

	ID        int64         `bun:"id,pk,autoincrement" json:"id"`
	JourneyID int64         `bun:"journey_id,notnull" json:"journey_id"`
	EventType string        `bun:"event_type,notnull" json:"event_type"`
	StepName  string        `bun:"step_name,default:'unknown'" json:"step_name"`
	Metadata  EventMetadata `bun:"metadata,type:jsonb" json:"metadata"`
	CreatedAt time.Time     `bun:"created_at,nullzero,default:now()" json:"created_at"`
}

var _ bun.BeforeInsertHook = (*JourneyEvent)(nil)

func (e *JourneyEvent) BeforeInsert(ctx context.Context, query *bun.InsertQuery) error {
	e.CreatedAt = time.Now()
	if e.StepName == "" {
		e.StepName = "unknown"
	}
	return nil
}
