package handlers

import (
	"fmt"
	"log"
	"regexp"
	"strconv"
	"time"

	"github.com/cashly/journey-api/internal/database"
	"github.com/cashly/journey-api/internal/middleware"
	"github.com/cashly/journey-api/internal/models"
	"github.com/cashly/journey-api/internal/services"
	"github.com/cashly/journey-api/internal/validators"
	"github.com/gofiber/fiber/v3"
	"github.com/xuri/excelize/v2"
)

type AdminHandler struct {
	authService *services.AuthService
	jwtService  *services.JWTService
}

func NewAdminHandler(as *services.AuthService, js *services.JWTService) *AdminHandler {
	return &AdminHandler{
		authService: as,
		jwtService:  js,
	}
}

// LoginRequest represents the admin login payload
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login handles POST /api/admin/login
func (h *AdminHandler) Login(c fiber.Ctx) error {
	var req LoginRequest
	if err := c.Bind().JSON(&req); err != nil {
		return errValidation(c, "Invalid request body")
	}
	if req.Email == "" || req.Password == "" {
		return errValidation(c, "Email and password are required")
	}

	admin, err := h.authService.GetAdminByEmail(c.Context(), req.Email)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error":   "unauthorized",
			"message": "Invalid email or password",
		})
	}

	if !h.authService.CheckPassword(req.Password, admin.PasswordHash) {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error":   "unauthorized",
			"message": "Invalid email or password",
		})
	}

	if !admin.IsActive {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error":   "forbidden",
			"message": "Account is deactivated",
		})
	}

	_ = h.authService.UpdateLastLogin(c.Context(), admin.ID)

	token, err := h.authService.GenerateToken(admin)
	if err != nil {
		return errInternal(c, "Failed to generate token")
	}

	c.Cookie(&fiber.Cookie{
		Name:     "token",
		Value:    token,
		Path:     "/",
		Expires:  time.Now().Add(h.jwtService.GetExpiry()),
		HTTPOnly: true,
		Secure:   false, // Set to true in production
		SameSite: "Lax",
	})

	return c.JSON(fiber.Map{
		"admin": admin,
		"token": token,
	})
}

// Me handles GET /api/admin/me
func (h *AdminHandler) Me(c fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"admin_id": middleware.GetAdminID(c),
		"email":    middleware.GetAdminEmail(c),
	})
}

// ListDevices handles GET /api/admin/devices
func (h *AdminHandler) ListDevices(c fiber.Ctx) error {
	var devices []models.EligibleDevice
	err := database.DB.NewSelect().
		Model(&devices).
		Order("brand ASC", "id ASC").
		Scan(c.Context())
	if err != nil {
		return errInternal(c, "Failed to load devices")
	}
	return c.JSON(fiber.Map{"devices": devices})
}

// DeviceRequest is the allowlist create/update payload.
type DeviceRequest struct {
	Brand          string   `json:"brand"`
	ModelPattern   string   `json:"model_pattern"`
	Description    *string  `json:"description,omitempty"`
	ApprovedAmount *float64 `json:"approved_amount,omitempty"`
	Active         *bool    `json:"active,omitempty"`
}

// CreateDevice handles POST /api/admin/devices
func (h *AdminHandler) CreateDevice(c fiber.Ctx) error {
	var req DeviceRequest
	if err := c.Bind().JSON(&req); err != nil {
		return errValidation(c, "Invalid request body")
	}
	if req.Brand == "" || req.ModelPattern == "" {
		return errValidation(c, "Brand and model pattern are required")
	}
	if _, err := regexp.Compile("(?i)" + req.ModelPattern); err != nil {
		return errValidation(c, "Model pattern is not a valid regular expression")
	}

	device := &models.EligibleDevice{
		Brand:        req.Brand,
		ModelPattern: req.ModelPattern,
		Description:  req.Description,
		Active:       true,
	}
	if req.ApprovedAmount != nil {
		device.ApprovedAmount = *req.ApprovedAmount
	} else {
		device.ApprovedAmount = 1500
	}
	if req.Active != nil {
		device.Active = *req.Active
	}

	if _, err := database.DB.NewInsert().Model(device).Exec(c.Context()); err != nil {
		return errInternal(c, "Failed to create device")
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"device": device})
}

// UpdateDevice handles PUT /api/admin/devices/:id
func (h *AdminHandler) UpdateDevice(c fiber.Ctx) error {
	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil || id <= 0 {
		return errValidation(c, "Invalid device id")
	}

	var req DeviceRequest
	if err := c.Bind().JSON(&req); err != nil {
		return errValidation(c, "Invalid request body")
	}

	device := new(models.EligibleDevice)
	if err := database.DB.NewSelect().Model(device).Where("id = ?", id).Scan(c.Context()); err != nil {
		return errNotFound(c, "Device not found")
	}

	if req.Brand != "" {
		device.Brand = req.Brand
	}
	if req.ModelPattern != "" {
		if _, err := regexp.Compile("(?i)" + req.ModelPattern); err != nil {
			return errValidation(c, "Model pattern is not a valid regular expression")
		}
		device.ModelPattern = req.ModelPattern
	}
	if req.Description != nil {
		device.Description = req.Description
	}
	if req.ApprovedAmount != nil {
		device.ApprovedAmount = *req.ApprovedAmount
	}
	if req.Active != nil {
		device.Active = *req.Active
	}

	if _, err := database.DB.NewUpdate().Model(device).WherePK().Exec(c.Context()); err != nil {
		return errInternal(c, "Failed to update device")
	}
	return c.JSON(fiber.Map{"device": device})
}

// DeleteDevice handles DELETE /api/admin/devices/:id (soft delete via
// active=false so historical approvals keep their provenance).
func (h *AdminHandler) DeleteDevice(c fiber.Ctx) error {
	id := c.Params("id")

	res, err := database.DB.NewUpdate().
		Model((*models.EligibleDevice)(nil)).
		Set("active = FALSE").
		Set("updated_at = NOW()").
		Where("id = ?", id).
		Exec(c.Context())
	if err != nil {
		return errInternal(c, "Failed to deactivate device")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errNotFound(c, "Device not found")
	}
	return c.JSON(fiber.Map{"deactivated": true})
}

// ExportJourneys handles GET /api/admin/journeys/export: the funnel report
// as an Excel workbook.
func (h *AdminHandler) ExportJourneys(c fiber.Ctx) error {
	var journeys []models.Journey
	err := database.DB.NewSelect().
		Model(&journeys).
		Relation("Lead").
		Order("j.created_at DESC").
		Limit(10000).
		Scan(c.Context())
	if err != nil {
		return errInternal(c, "Failed to load journeys")
	}

	f := excelize.NewFile()
	defer func() {
		if err := f.Close(); err != nil {
			log.Printf("[AdminHandler] Failed to close workbook: %v", err)
		}
	}()

	sheet := "Journeys"
	f.SetSheetName("Sheet1", sheet)

	headers := []string{"ID", "CPF", "Name", "Status", "Step", "Device", "Eligible", "Amount", "Income Platform", "Contract", "Created", "Expires"}
	for i, header := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(sheet, cell, header)
	}

	for row, j := range journeys {
		values := []any{
			j.ID,
			leadCPF(j.Lead),
			leadName(j.Lead),
			j.Status,
			string(j.CurrentStep),
			deref(j.DeviceModel),
			j.DeviceEligible,
			derefFloat(j.ApprovedAmount),
			deref(j.IncomePlatform),
			deref(j.ContractID),
			j.CreatedAt.Format(time.RFC3339),
			j.ExpiresAt.Format(time.RFC3339),
		}
		for col, value := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row+2)
			f.SetCellValue(sheet, cell, value)
		}
	}

	_ = f.SetColWidth(sheet, "A", "L", 18)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return errInternal(c, "Failed to build export")
	}

	filename := fmt.Sprintf("journeys-%s.xlsx", time.Now().Format("2006-01-02"))
	c.Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	return c.Send(buf.Bytes())
}

func leadCPF(lead *models.Lead) string {
	if lead == nil {
		return ""
	}
	return validators.FormatCPF(lead.CPF)
}

func leadName(lead *models.Lead) string {
	if lead == nil {
		return ""
	}
	return lead.FullName
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func derefFloat(f *float64) float64 {
	if f == nil {
		return 0
	}
	return *f
}
