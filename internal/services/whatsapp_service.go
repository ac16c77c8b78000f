package services

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/cashly/journey-api/internal/validators"
)

// WhatsAppService delivers OTP codes through a Callbell-style messaging API.
type WhatsAppService struct {
	apiURL      string
	apiKey      string
	channelUUID string
	client      *http.Client
}

func NewWhatsAppService(apiURL, apiKey, channelUUID string) *WhatsAppService {
	return &WhatsAppService{
		apiURL:      apiURL,
		apiKey:      apiKey,
		channelUUID: channelUUID,
		client:      &http.Client{Timeout: 30 * time.Second},
	}
}

type whatsAppMessageRequest struct {
	To          string            `json:"to"`
	From        string            `json:"from"`
	Type        string            `json:"type"`
	Content     map[string]string `json:"content"`
	ChannelUUID string            `json:"channel_uuid,omitempty"`
}

type whatsAppResponse struct {
	Message *struct {
		UUID   string `json:"uuid"`
		Status string `json:"status"`
	} `json:"message"`
	Error string `json:"error"`
}

// FormatInternational normalizes a Brazilian number to +55XXXXXXXXXXX.
func FormatInternational(phone string) string {
	clean := validators.OnlyDigits(phone)
	if !strings.HasPrefix(clean, "55") {
		clean = "55" + clean
	}
	return "+" + clean
}

// SendOTP sends the verification code as a WhatsApp text message.
func (s *WhatsAppService) SendOTP(phone, code string) error {
	if s.apiKey == "" {
		return fmt.Errorf("CALLBELL_API_KEY not configured")
	}

	message := fmt.Sprintf("*Cashly* - Seu código de verificação é: *%s*\n\nEste código expira em 20 minutos.\nNão compartilhe este código com ninguém.", code)

	payload := whatsAppMessageRequest{
		To:          FormatInternational(phone),
		From:        "whatsapp",
		Type:        "text",
		Content:     map[string]string{"text": message},
		ChannelUUID: s.channelUUID,
	}

	jsonBody, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequest("POST", s.apiURL, bytes.NewBuffer(jsonBody))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.apiKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	var body whatsAppResponse
	_ = json.NewDecoder(resp.Body).Decode(&body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 || body.Message == nil {
		if body.Error != "" {
			return fmt.Errorf("WhatsApp API error (status %d): %s", resp.StatusCode, body.Error)
		}
		return fmt.Errorf("WhatsApp API error (status %d)", resp.StatusCode)
	}

	return nil
}

// SendText sends an arbitrary message, used by the re-engagement worker.
func (s *WhatsAppService) SendText(phone, message string) error {
	if s.apiKey == "" {
		return fmt.Errorf("CALLBELL_API_KEY not configured")
	}

	payload := whatsAppMessageRequest{
		To:          FormatInternational(phone),
		From:        "whatsapp",
		Type:        "text",
		Content:     map[string]string{"text": message},
		ChannelUUID: s.channelUUID,
	}

	jsonBody, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequest("POST", s.apiURL, bytes.NewBuffer(jsonBody))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.apiKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("WhatsApp API error (status %d)", resp.StatusCode)
	}
	return nil
}
