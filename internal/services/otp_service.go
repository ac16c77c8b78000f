package services

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"math/big"
	"time"

	"github.com/cashly/journey-api/internal/database"
	"github.com/cashly/journey-api/internal/models"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/driver/pgdriver"
)

// OTPService issues and verifies one-time codes. Issuance keeps the
// single-active-code invariant; verification is a single guarded transaction
// so duplicate submissions cannot both succeed.
type OTPService struct {
	codeTTL     time.Duration
	maxSends    int
	maxAttempts int

	whatsapp *WhatsAppService
	sms      *SMSService
	events   *EventService
	devMode  bool
}

func NewOTPService(codeTTL time.Duration, maxSends, maxAttempts int, whatsapp *WhatsAppService, sms *SMSService, events *EventService, devMode bool) *OTPService {
	return &OTPService{
		codeTTL:     codeTTL,
		maxSends:    maxSends,
		maxAttempts: maxAttempts,
		whatsapp:    whatsapp,
		sms:         sms,
		events:      events,
		devMode:     devMode,
	}
}

var ErrRateLimited = errors.New("otp send limit reached")

// GenerateCode produces a 6-digit numeric code.
func GenerateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()+100000), nil
}

// HashCode returns the hex SHA-256 of the code, the form stored at rest.
func HashCode(code string) string {
	sum := sha256.Sum256([]byte(code))
	return hex.EncodeToString(sum[:])
}

// SendResult reports how an issuance request was resolved.
type SendResult struct {
	AlreadySent bool
	Delivered   bool
}

// SendDecision is the issuance outcome for one send request.
type SendDecision int

const (
	SendIssue SendDecision = iota
	SendAlreadySent
	SendRateLimited
)

// evaluateSend decides how to resolve a send request from the newest unused
// code (nil when none) and the rolling-window send count. A code that
// expired or burned through its attempts is not active anymore; the holder
// needs a replacement, subject to the rolling limit. Pure function.
func evaluateSend(active *models.OTPCode, recentSends int, now time.Time, maxSends, maxAttempts int) SendDecision {
	if active != nil && !active.IsExpired(now) && active.Attempts < maxAttempts {
		return SendAlreadySent
	}
	if recentSends >= maxSends {
		return SendRateLimited
	}
	return SendIssue
}

// isUniqueViolation reports whether err is a Postgres duplicate-key error
// (SQLSTATE 23505).
func isUniqueViolation(err error) bool {
	var pgErr pgdriver.Error
	return errors.As(err, &pgErr) && pgErr.Field('C') == "23505"
}

// Send issues a code for the journey and dispatches it to the phone.
// Behavior in order:
//   - an active code exists (unexpired, attempts below the cap): idempotent
//     "already sent", no new row
//   - more than maxSends rows in the rolling hour: ErrRateLimited
//   - otherwise retire expired or attempt-capped unused codes to free the
//     unique constraint, insert the hash and deliver via WhatsApp, falling
//     back to SMS; delivery failure does not fail issuance
func (s *OTPService) Send(ctx context.Context, journey *models.Journey, phone string) (*SendResult, error) {
	now := time.Now()

	active := new(models.OTPCode)
	err := database.DB.NewSelect().
		Model(active).
		Where("journey_id = ?", journey.ID).
		Where("used = FALSE").
		Order("created_at DESC").
		Limit(1).
		Scan(ctx)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("check existing code: %w", err)
		}
		active = nil
	}

	count, err := database.DB.NewSelect().
		Model((*models.OTPCode)(nil)).
		Where("journey_id = ?", journey.ID).
		Where("created_at >= ?", now.Add(-time.Hour)).
		Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("count recent sends: %w", err)
	}

	switch evaluateSend(active, count, now, s.maxSends, s.maxAttempts) {
	case SendAlreadySent:
		return &SendResult{AlreadySent: true}, nil
	case SendRateLimited:
		return nil, ErrRateLimited
	}

	// Retire dead unused codes so the partial unique index allows a new
	// insert.
	_, err = database.DB.NewUpdate().
		Model((*models.OTPCode)(nil)).
		Set("used = TRUE").
		Where("journey_id = ?", journey.ID).
		Where("used = FALSE").
		Where("(expires_at <= ? OR attempts >= ?)", now, s.maxAttempts).
		Exec(ctx)
	if err != nil {
		return nil, fmt.Errorf("retire stale codes: %w", err)
	}

	code, err := GenerateCode()
	if err != nil {
		return nil, fmt.Errorf("generate code: %w", err)
	}

	record := &models.OTPCode{
		JourneyID: journey.ID,
		CodeHash:  HashCode(code),
		ExpiresAt: now.Add(s.codeTTL),
	}
	if _, err := database.DB.NewInsert().Model(record).Exec(ctx); err != nil {
		// A concurrent duplicate send won the insert race against the
		// single-active-code index; its code is on the way.
		if isUniqueViolation(err) {
			return &SendResult{AlreadySent: true}, nil
		}
		return nil, fmt.Errorf("store code: %w", err)
	}

	delivered := s.deliver(phone, code)
	if !delivered && s.devMode {
		log.Printf("[OTPService] Dev code for journey %d: %s", journey.ID, code)
	}

	ok := delivered
	s.events.Log(ctx, journey.ID, models.EventOTPSent, models.StepOTP, models.EventMetadata{
		Success: &ok,
		Channel: "whatsapp",
	})

	return &SendResult{Delivered: delivered}, nil
}

func (s *OTPService) deliver(phone, code string) bool {
	if err := s.whatsapp.SendOTP(phone, code); err == nil {
		return true
	} else {
		log.Printf("[OTPService] WhatsApp delivery failed: %v", err)
	}
	if s.sms == nil {
		return false
	}
	if err := s.sms.SendOTP(phone, code); err != nil {
		log.Printf("[OTPService] SMS fallback failed: %v", err)
		return false
	}
	return true
}

// VerifyOutcome is the decision for one verification attempt.
type VerifyOutcome string

const (
	VerifySuccess         VerifyOutcome = "success"
	VerifyNotFound        VerifyOutcome = "not_found"
	VerifyInvalidCode     VerifyOutcome = "invalid_code"
	VerifyTooManyAttempts VerifyOutcome = "too_many_attempts"
)

// VerifyResult carries the outcome plus the attempt count after the call.
type VerifyResult struct {
	Outcome  VerifyOutcome
	Attempts int
}

// evaluateCode decides the outcome for a submitted hash against the active
// record. Pure function; the caller applies the matching writes.
func evaluateCode(record *models.OTPCode, submittedHash string, now time.Time, maxAttempts int) VerifyOutcome {
	if record == nil || record.Used || record.IsExpired(now) {
		return VerifyNotFound
	}
	if record.Attempts >= maxAttempts {
		return VerifyTooManyAttempts
	}
	if record.CodeHash != submittedHash {
		return VerifyInvalidCode
	}
	return VerifySuccess
}

// Verify checks a submitted code inside one transaction. The active record
// is locked with FOR UPDATE so two concurrent submissions of the same code
// serialize: the first consumes it, the second sees it used. Success stamps
// otp_verified_at and advances the journey to the device step.
func (s *OTPService) Verify(ctx context.Context, journey *models.Journey, code string) (*VerifyResult, error) {
	submittedHash := HashCode(code)
	result := &VerifyResult{}

	err := database.DB.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		now := time.Now()

		record := new(models.OTPCode)
		err := tx.NewSelect().
			Model(record).
			Where("journey_id = ?", journey.ID).
			Where("used = FALSE").
			Order("created_at DESC").
			Limit(1).
			For("UPDATE").
			Scan(ctx)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				result.Outcome = VerifyNotFound
				return nil
			}
			return fmt.Errorf("load active code: %w", err)
		}

		result.Attempts = record.Attempts
		result.Outcome = evaluateCode(record, submittedHash, now, s.maxAttempts)

		switch result.Outcome {
		case VerifyInvalidCode:
			attempts := record.Attempts + 1
			q := tx.NewUpdate().
				Model((*models.OTPCode)(nil)).
				Set("attempts = ?", attempts).
				Where("id = ?", record.ID)
			// The final failed attempt consumes the code, otherwise the
			// single-active-code index would block a fresh send until the
			// locked one expired.
			if attempts >= s.maxAttempts {
				q = q.Set("used = TRUE")
			}
			if _, err := q.Exec(ctx); err != nil {
				return fmt.Errorf("increment attempts: %w", err)
			}
			result.Attempts = attempts

		case VerifyTooManyAttempts:
			_, err := tx.NewUpdate().
				Model((*models.OTPCode)(nil)).
				Set("used = TRUE").
				Where("id = ?", record.ID).
				Exec(ctx)
			if err != nil {
				return fmt.Errorf("retire locked code: %w", err)
			}

		case VerifySuccess:
			_, err := tx.NewUpdate().
				Model((*models.OTPCode)(nil)).
				Set("used = TRUE").
				Where("id = ?", record.ID).
				Exec(ctx)
			if err != nil {
				return fmt.Errorf("consume code: %w", err)
			}

			res, err := tx.NewUpdate().
				Model((*models.Journey)(nil)).
				Set("otp_verified_at = ?", now).
				Set("current_step = ?", models.StepDevice).
				Set("updated_at = NOW()").
				Where("id = ?", journey.ID).
				Where("status = ?", models.JourneyInProgress).
				Where("current_step = ?", models.StepOTP).
				Exec(ctx)
			if err != nil {
				return fmt.Errorf("advance journey: %w", err)
			}
			// OTP re-verification mid-journey only refreshes the proof; the
			// step update matching zero rows is expected then.
			if n, _ := res.RowsAffected(); n == 0 {
				_, err := tx.NewUpdate().
					Model((*models.Journey)(nil)).
					Set("otp_verified_at = ?", now).
					Set("updated_at = NOW()").
					Where("id = ?", journey.ID).
					Where("status = ?", models.JourneyInProgress).
					Exec(ctx)
				if err != nil {
					return fmt.Errorf("refresh otp proof: %w", err)
				}
			}
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	switch result.Outcome {
	case VerifySuccess:
		s.events.Log(ctx, journey.ID, models.EventOTPVerified, models.StepOTP, models.EventMetadata{})
	case VerifyInvalidCode, VerifyTooManyAttempts:
		s.events.Log(ctx, journey.ID, models.EventOTPFailed, models.StepOTP, models.EventMetadata{
			Reason:   string(result.Outcome),
			Attempts: &result.Attempts,
		})
	}

	return result, nil
}
