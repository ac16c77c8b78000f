package services

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// SMSService is the ClickSend-style fallback delivery channel, used when the
// WhatsApp send fails.
type SMSService struct {
	apiURL   string
	username string
	apiKey   string
	client   *http.Client
}

func NewSMSService(apiURL, username, apiKey string) *SMSService {
	return &SMSService{
		apiURL:   apiURL,
		username: username,
		apiKey:   apiKey,
		client:   &http.Client{Timeout: 30 * time.Second},
	}
}

type smsMessage struct {
	To   string `json:"to"`
	Body string `json:"body"`
	From string `json:"from"`
}

type smsRequest struct {
	Messages []smsMessage `json:"messages"`
}

type smsResponse struct {
	ResponseCode string `json:"response_code"`
	ResponseMsg  string `json:"response_msg"`
}

// SendOTP sends the verification code as a plain SMS.
func (s *SMSService) SendOTP(phone, code string) error {
	if s.username == "" || s.apiKey == "" {
		return fmt.Errorf("ClickSend credentials not configured")
	}

	message := fmt.Sprintf("Cashly - Seu código de verificação é: %s. Não compartilhe este código.", code)

	payload := smsRequest{
		Messages: []smsMessage{{
			To:   FormatInternational(phone),
			Body: message,
			From: "Cashly",
		}},
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
	req.SetBasicAuth(s.username, s.apiKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	var body smsResponse
	_ = json.NewDecoder(resp.Body).Decode(&body)

	if body.ResponseCode != "SUCCESS" {
		if body.ResponseMsg != "" {
			return fmt.Errorf("SMS API error: %s", body.ResponseMsg)
		}
		return fmt.Errorf("SMS API error (status %d)", resp.StatusCode)
	}

	return nil
}
