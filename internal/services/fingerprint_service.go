package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// FingerprintService calls the device-fingerprint vendor API with the
// request's user-agent and client-hint headers. Best effort: callers fall
// back to weaker detection layers on any failure.
type FingerprintService struct {
	apiURL string
	apiKey string
	client *http.Client
}

func NewFingerprintService(apiURL, apiKey string) *FingerprintService {
	return &FingerprintService{
		apiURL: apiURL,
		apiKey: apiKey,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// Configured reports whether the vendor integration is usable.
func (s *FingerprintService) Configured() bool {
	return s.apiURL != ""
}

// clientHintHeaders are forwarded to the vendor when present.
var clientHintHeaders = []string{
	"Sec-CH-UA",
	"Sec-CH-UA-Mobile",
	"Sec-CH-UA-Platform",
	"Sec-CH-UA-Model",
	"Sec-CH-UA-Platform-Version",
	"Sec-CH-UA-Full-Version-List",
}

type fingerprintRequest struct {
	Headers map[string]string `json:"headers"`
}

type fingerprintResponse struct {
	Device struct {
		HardwareVendor string `json:"hardwarevendor"`
		HardwareModel  string `json:"hardwaremodel"`
		HardwareName   string `json:"hardwarename"`
		PlatformName   string `json:"platformname"`
		DeviceType     string `json:"devicetype"`
	} `json:"device"`
}

// Lookup resolves hardware fields for the given request headers.
func (s *FingerprintService) Lookup(ctx context.Context, headers map[string]string) (DeviceInfo, error) {
	if !s.Configured() {
		return DeviceInfo{}, fmt.Errorf("fingerprint API not configured")
	}

	forwarded := map[string]string{
		"user-agent": headers["User-Agent"],
	}
	for _, h := range clientHintHeaders {
		if v := headers[h]; v != "" {
			forwarded[h] = v
		}
	}

	jsonBody, err := json.Marshal(fingerprintRequest{Headers: forwarded})
	if err != nil {
		return DeviceInfo{}, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", s.apiURL, bytes.NewBuffer(jsonBody))
	if err != nil {
		return DeviceInfo{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.apiKey)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return DeviceInfo{}, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return DeviceInfo{}, fmt.Errorf("fingerprint API error (status %d)", resp.StatusCode)
	}

	var body fingerprintResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return DeviceInfo{}, fmt.Errorf("failed to decode response: %w", err)
	}

	model := body.Device.HardwareModel
	if model == "" {
		model = body.Device.HardwareName
	}
	vendor := body.Device.HardwareVendor
	if vendor == "" {
		vendor = "unknown"
	}

	return DeviceInfo{
		Model:      model,
		Vendor:     vendor,
		Source:     SourceFingerprint,
		Confidence: 95,
	}, nil
}
