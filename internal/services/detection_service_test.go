package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseUserAgent(t *testing.T) {
	tests := []struct {
		name       string
		userAgent  string
		wantModel  string
		wantVendor string
	}{
		{
			"samsung galaxy",
			"Mozilla/5.0 (Linux; Android 13; SM-A546E) AppleWebKit/537.36",
			"SM-A546E", "Samsung",
		},
		{
			"samsung lowercase normalized",
			"Mozilla/5.0 (Linux; Android 13; sm-a546e) AppleWebKit/537.36",
			"SM-A546E", "Samsung",
		},
		{
			"iphone fixed model",
			"Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X) AppleWebKit/605.1.15",
			"iPhone", "Apple",
		},
		{
			"realme code",
			"Mozilla/5.0 (Linux; Android 14; RMX3761) AppleWebKit/537.36",
			"RMX3761", "Realme",
		},
		{
			"oppo code",
			"Mozilla/5.0 (Linux; Android 13; CPH2591) AppleWebKit/537.36",
			"CPH2591", "OPPO",
		},
		{
			"xiaomi year code",
			"Mozilla/5.0 (Linux; Android 14; 23117RA68G) AppleWebKit/537.36",
			"23117RA68G", "Xiaomi",
		},
		{
			"desktop chrome",
			"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36",
			"unknown", "unknown",
		},
		{
			"empty",
			"",
			"unknown", "unknown",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info := ParseUserAgent(tt.userAgent)
			assert.Equal(t, tt.wantModel, info.Model)
			assert.Equal(t, tt.wantVendor, info.Vendor)
			assert.Equal(t, SourceUserAgent, info.Source)
		})
	}
}

func TestParseUserAgentConfidence(t *testing.T) {
	samsung := ParseUserAgent("Mozilla/5.0 (Linux; Android 13; SM-A546E)")
	apple := ParseUserAgent("Mozilla/5.0 (iPhone; CPU iPhone OS 17_0)")
	unknown := ParseUserAgent("curl/8.0")

	assert.Greater(t, samsung.Confidence, apple.Confidence, "exact model codes beat fixed Apple labels")
	assert.Equal(t, 0, unknown.Confidence)
}

func TestDetectClientHintBeatsUserAgent(t *testing.T) {
	svc := NewDetectionService(nil)

	info := svc.Detect(context.Background(), map[string]string{
		"User-Agent":         "Mozilla/5.0 (Linux; Android 13; SM-A546E)",
		"Sec-CH-UA-Model":    `"SM-S918B"`,
		"Sec-CH-UA-Platform": `"Android"`,
	})

	assert.Equal(t, "SM-S918B", info.Model)
	assert.Equal(t, "Android", info.Vendor)
	assert.Equal(t, SourceClientHintHigh, info.Source)
	assert.Equal(t, 75, info.Confidence)
}

func TestDetectFallsBackToUserAgent(t *testing.T) {
	svc := NewDetectionService(nil)

	info := svc.Detect(context.Background(), map[string]string{
		"User-Agent": "Mozilla/5.0 (Linux; Android 13; SM-A546E) AppleWebKit/537.36",
	})

	assert.Equal(t, "SM-A546E", info.Model)
	assert.Equal(t, SourceUserAgent, info.Source)
}

func TestDetectUnknownDevice(t *testing.T) {
	svc := NewDetectionService(nil)

	info := svc.Detect(context.Background(), map[string]string{
		"User-Agent": "Mozilla/5.0 (X11; Linux x86_64)",
	})

	assert.Equal(t, "unknown", info.Model)
	assert.Equal(t, 0, info.Confidence)
}
