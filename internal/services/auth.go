package services

import (
	"context"

	"github.com/cashly/journey-api/internal/database"
	"github.com/cashly/journey-api/internal/models"
	"golang.org/x/crypto/bcrypt"
)

// AuthService authenticates admin users (allowlist management, exports).
type AuthService struct {
	jwtService *JWTService
}

func NewAuthService(jwtService *JWTService) *AuthService {
	return &AuthService{jwtService: jwtService}
}

// HashPassword hashes a password using bcrypt
func (a *AuthService) HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(bytes), err
}

// CheckPassword compares a password with a hash
func (a *AuthService) CheckPassword(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}

// GetAdminByEmail retrieves an admin user by email
func (a *AuthService) GetAdminByEmail(ctx context.Context, email string) (*models.AdminUser, error) {
	admin := new(models.AdminUser)
	err := database.DB.NewSelect().
		Model(admin).
		Where("LOWER(email) = LOWER(?)", email).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return admin, nil
}

// UpdateLastLogin updates the last_login_at timestamp
func (a *AuthService) UpdateLastLogin(ctx context.Context, adminID int64) error {
	_, err := database.DB.NewUpdate().
		Model((*models.AdminUser)(nil)).
		Set("last_login_at = NOW()").
		Where("id = ?", adminID).
		Exec(ctx)
	return err
}

// GenerateToken generates a JWT token for an admin
func (a *AuthService) GenerateToken(admin *models.AdminUser) (string, error) {
	return a.jwtService.GenerateToken(admin.ID, admin.Email)
}
