package models

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type Journey struct {
	bun.BaseModel `bun:"table:journeys,alias:j"`

	ID    int64     `bun:"id,pk,autoincrement" json:"id"`
	Token uuid.UUID `bun:"token,notnull,unique,default:gen_random_uuid()" json:"token"`

	LeadID int64 `bun:"lead_id,notnull" json:"lead_id"`
	Lead   *Lead `bun:"rel:belongs-to,join:lead_id=id" json:"lead,omitempty"`

	Status      string `bun:"status,default:'in_progress'" json:"status"`
	CurrentStep Step   `bun:"current_step,default:'cpf'" json:"current_step"`

	OtpVerifiedAt *time.Time `bun:"otp_verified_at" json:"otp_verified_at,omitempty"`

	DeviceModel     *string    `bun:"device_model" json:"device_model,omitempty"`
	DeviceVendor    *string    `bun:"device_vendor" json:"device_vendor,omitempty"`
	DeviceEligible  bool       `bun:"device_eligible,default:false" json:"device_eligible"`
	DeviceAttempts  int        `bun:"device_attempts,default:0" json:"device_attempts"`
	DeviceCheckedAt *time.Time `bun:"device_checked_at" json:"device_checked_at,omitempty"`
	ApprovedAmount  *float64   `bun:"approved_amount" json:"approved_amount,omitempty"`

	IncomePlatform  *string    `bun:"income_platform" json:"income_platform,omitempty"`
	IncomeScore     *int       `bun:"income_score" json:"income_score,omitempty"`
	IncomeCheckedAt *time.Time `bun:"income_checked_at" json:"income_checked_at,omitempty"`

	OfferAcceptedAt *time.Time `bun:"offer_accepted_at" json:"offer_accepted_at,omitempty"`

	GuardIMEI       *string    `bun:"guard_imei" json:"guard_imei,omitempty"`
	GuardVerifiedAt *time.Time `bun:"guard_verified_at" json:"guard_verified_at,omitempty"`

	ContractID       *string    `bun:"contract_id" json:"contract_id,omitempty"`
	ContractSignedAt *time.Time `bun:"contract_signed_at" json:"contract_signed_at,omitempty"`

	IPAddress       *string    `bun:"ip_address" json:"-"`
	UserAgent       *string    `bun:"user_agent" json:"-"`
	LastHeartbeatAt *time.Time `bun:"last_heartbeat_at" json:"-"`

	ExpiresAt time.Time `bun:"expires_at,notnull" json:"expires_at"`
	CreatedAt time.Time `bun:"created_at,nullzero,default:now()" json:"created_at"`
	UpdatedAt time.Time `bun:"updated_at,nullzero,default:now()" json:"updated_at"`
}

// Journey statuses
const (
	JourneyInProgress = "in_progress"
	JourneyCompleted  = "completed"
	JourneyRejected   = "rejected"
	JourneyExpired    = "expired"
	JourneyAbandoned  = "abandoned"
)

// IsExpired reports whether the absolute session expiry has passed.
func (j *Journey) IsExpired(now time.Time) bool {
	return now.After(j.ExpiresAt)
}

// OtpValid reports whether the OTP possession proof is still inside its
// validity window.
func (j *Journey) OtpValid(now time.Time, proofTTL time.Duration) bool {
	if j.OtpVerifiedAt == nil {
		return false
	}
	return now.Sub(*j.OtpVerifiedAt) < proofTTL
}

// JourneyResponse is the resume payload returned to clients. CPF and phone
// are intentionally absent.
type JourneyResponse struct {
	ID             int64    `json:"id"`
	Step           Step     `json:"step"`
	Progress       int      `json:"progress"`
	OtpValid       bool     `json:"otpValid"`
	LeadName       *string  `json:"leadName,omitempty"`
	DeviceModel    *string  `json:"deviceModel,omitempty"`
	DeviceVendor   *string  `json:"deviceVendor,omitempty"`
	DeviceApproved bool     `json:"deviceApproved"`
	DeviceAttempts int      `json:"deviceAttempts"`
	ApprovedAmount *float64 `json:"approvedAmount,omitempty"`
	IncomePlatform *string  `json:"incomePlatform,omitempty"`
	GuardIMEI      *string  `json:"guardImei,omitempty"`
	ContractID     *string  `json:"contractId,omitempty"`
}

func (j *Journey) ToResponse(now time.Time, proofTTL time.Duration) *JourneyResponse {
	resp := &JourneyResponse{
		ID:             j.ID,
		Step:           j.CurrentStep,
		Progress:       Progress(j.CurrentStep),
		OtpValid:       j.OtpValid(now, proofTTL),
		DeviceModel:    j.DeviceModel,
		DeviceVendor:   j.DeviceVendor,
		DeviceApproved: j.DeviceEligible,
		DeviceAttempts: j.DeviceAttempts,
		ApprovedAmount: j.ApprovedAmount,
		IncomePlatform: j.IncomePlatform,
		GuardIMEI:      j.GuardIMEI,
		ContractID:     j.ContractID,
	}
	if j.Lead != nil && j.Lead.FullName != "" {
		name := j.Lead.FullName
		resp.LeadName = &name
	}
	return resp
}

var _ bun.BeforeInsertHook = (*Journey)(nil)

func (j *Journey) BeforeInsert(ctx context.Context, query *bun.InsertQuery) error {
	j.CreatedAt = time.Now()
	j.UpdatedAt = time.Now()
	if j.Token == uuid.Nil {
		j.Token = uuid.New()
	}
	return nil
}

var _ bun.BeforeUpdateHook = (*Journey)(nil)

func (j *Journey) BeforeUpdate(ctx context.Context, query *bun.UpdateQuery) error {
	j.UpdatedAt = time.Now()
	return nil
}
