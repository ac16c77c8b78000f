package services

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"time"

	"github.com/cashly/journey-api/internal/database"
	"github.com/cashly/journey-api/internal/models"
	"github.com/cashly/journey-api/internal/validators"
)

// cpfCacheEntry caches existence lookups. Identity existence is
// near-immutable, so a stale read within the TTL is acceptable.
type cpfCacheEntry struct {
	exists      bool
	leadID      int64
	blacklisted bool
	cachedAt    time.Time
}

// LeadService looks up and registers applicants. Phone and email are
// encrypted at rest.
type LeadService struct {
	cryptoService *CryptoService
	cacheTTL      time.Duration

	mu    sync.Mutex
	cache map[string]cpfCacheEntry
}

func NewLeadService(cryptoService *CryptoService, cacheTTL time.Duration) *LeadService {
	return &LeadService{
		cryptoService: cryptoService,
		cacheTTL:      cacheTTL,
		cache:         make(map[string]cpfCacheEntry),
	}
}

// CPFCheckResult is the outcome of a lookup by national ID.
type CPFCheckResult struct {
	Exists      bool
	LeadID      int64
	Blacklisted bool
}

// CheckCPF reports whether a lead exists for the given CPF, going through a
// short-TTL read-through cache.
func (s *LeadService) CheckCPF(ctx context.Context, cpf string) (*CPFCheckResult, error) {
	clean := validators.OnlyDigits(cpf)

	s.mu.Lock()
	if entry, ok := s.cache[clean]; ok && time.Since(entry.cachedAt) < s.cacheTTL {
		s.mu.Unlock()
		return &CPFCheckResult{Exists: entry.exists, LeadID: entry.leadID, Blacklisted: entry.blacklisted}, nil
	}
	s.mu.Unlock()

	lead := new(models.Lead)
	err := database.DB.NewSelect().
		Model(lead).
		Column("id", "blacklisted").
		Where("cpf = ?", clean).
		Scan(ctx)

	result := &CPFCheckResult{}
	switch {
	case err == nil:
		result.Exists = true
		result.LeadID = lead.ID
		result.Blacklisted = lead.Blacklisted
	case errors.Is(err, sql.ErrNoRows):
		// Not-found is a normal outcome
	default:
		return nil, err
	}

	s.mu.Lock()
	s.cache[clean] = cpfCacheEntry{
		exists:      result.Exists,
		leadID:      result.LeadID,
		blacklisted: result.Blacklisted,
		cachedAt:    time.Now(),
	}
	s.mu.Unlock()

	return result, nil
}

// RegisterInput is the payload for creating a new lead (registration step).
type RegisterInput struct {
	CPF       string
	FullName  string
	Phone     string
	Phone2    *string
	Email     *string
	BirthDate *time.Time
	CEP       *string
	Street    *string
	District  *string
	City      *string
	State     *string
}

// Register creates a lead with encrypted contact fields and invalidates the
// CPF cache entry.
func (s *LeadService) Register(ctx context.Context, input RegisterInput) (*models.Lead, error) {
	phoneEnc, err := s.cryptoService.Encrypt(validators.OnlyDigits(input.Phone))
	if err != nil {
		return nil, err
	}
	var phone2Enc *string
	if input.Phone2 != nil {
		clean := validators.OnlyDigits(*input.Phone2)
		phone2Enc, err = s.cryptoService.EncryptPtr(&clean)
		if err != nil {
			return nil, err
		}
	}
	emailEnc, err := s.cryptoService.EncryptPtr(input.Email)
	if err != nil {
		return nil, err
	}

	lead := &models.Lead{
		CPF:             validators.OnlyDigits(input.CPF),
		FullName:        input.FullName,
		PhoneEncrypted:  phoneEnc,
		Phone2Encrypted: phone2Enc,
		EmailEncrypted:  emailEnc,
		BirthDate:       input.BirthDate,
		CEP:             input.CEP,
		Street:          input.Street,
		District:        input.District,
		City:            input.City,
		State:           input.State,
	}

	if _, err := database.DB.NewInsert().Model(lead).Exec(ctx); err != nil {
		return nil, err
	}

	s.mu.Lock()
	delete(s.cache, lead.CPF)
	s.mu.Unlock()

	return lead, nil
}

// GetByID retrieves a lead with decrypted contact fields.
func (s *LeadService) GetByID(ctx context.Context, id int64) (*models.Lead, error) {
	lead := new(models.Lead)
	err := database.DB.NewSelect().
		Model(lead).
		Where("id = ?", id).
		Scan(ctx)
	if err != nil {
		return nil, err
	}

	lead.Phone, _ = s.cryptoService.Decrypt(lead.PhoneEncrypted)
	lead.Phone2, _ = s.cryptoService.DecryptPtr(lead.Phone2Encrypted)
	lead.Email, _ = s.cryptoService.DecryptPtr(lead.EmailEncrypted)

	return lead, nil
}
