package services

import (
	"context"
	"log"
	"regexp"
	"strings"
)

// DeviceInfo is one detection outcome with its provenance and confidence.
type DeviceInfo struct {
	Model      string `json:"model"`
	Vendor     string `json:"vendor"`
	UserAgent  string `json:"-"`
	Source     string `json:"source"`
	Confidence int    `json:"confidence"` // 0-100
}

// Detection sources, strongest first.
const (
	SourceFingerprint    = "fingerprint_api"
	SourceClientHintHigh = "client_hints_high"
	SourceUserAgent      = "user_agent"
)

// DetectionService resolves a device model from request headers using a
// layered fallback: fingerprint vendor API, then the Sec-CH-UA-Model client
// hint, then user-agent parsing. The first layer returning a non-empty model
// wins.
type DetectionService struct {
	fingerprint *FingerprintService
}

func NewDetectionService(fingerprint *FingerprintService) *DetectionService {
	return &DetectionService{fingerprint: fingerprint}
}

// Detect runs the fallback chain over the request headers.
func (s *DetectionService) Detect(ctx context.Context, headers map[string]string) DeviceInfo {
	userAgent := headers["User-Agent"]

	if s.fingerprint != nil && s.fingerprint.Configured() {
		info, err := s.fingerprint.Lookup(ctx, headers)
		if err != nil {
			log.Printf("[DetectionService] Fingerprint lookup failed, falling back: %v", err)
		} else if info.Model != "" && info.Model != "unknown" {
			info.UserAgent = userAgent
			return info
		}
	}

	if model := strings.Trim(headers["Sec-CH-UA-Model"], `" `); model != "" {
		vendor := strings.Trim(headers["Sec-CH-UA-Platform"], `" `)
		if vendor == "" {
			vendor = "unknown"
		}
		return DeviceInfo{
			Model:      model,
			Vendor:     vendor,
			UserAgent:  userAgent,
			Source:     SourceClientHintHigh,
			Confidence: 75,
		}
	}

	return ParseUserAgent(userAgent)
}

// uaRule extracts a model from a user-agent substring. Fixed model/vendor
// are used when the pattern carries no capture worth keeping (Apple devices
// never reveal the exact model).
type uaRule struct {
	pattern    *regexp.Regexp
	vendor     string
	fixedModel string
	upper      bool
	confidence int
}

// Order matters: Apple first to avoid false positives, generic Xiaomi
// numeric codes last.
var uaRules = []uaRule{
	{pattern: regexp.MustCompile(`iPhone`), vendor: "Apple", fixedModel: "iPhone", confidence: 60},
	{pattern: regexp.MustCompile(`iPad`), vendor: "Apple", fixedModel: "iPad", confidence: 60},
	{pattern: regexp.MustCompile(`Macintosh`), vendor: "Apple", fixedModel: "Mac", confidence: 60},
	{pattern: regexp.MustCompile(`(?i)SM-[A-Z]\d{3,4}[A-Z]?`), vendor: "Samsung", upper: true, confidence: 80},
	{pattern: regexp.MustCompile(`(?i)motorola\s+edge\s*[a-z0-9\s]+`), vendor: "Motorola", confidence: 70},
	{pattern: regexp.MustCompile(`(?i)moto\s*[a-z0-9()\s]+`), vendor: "Motorola", confidence: 70},
	{pattern: regexp.MustCompile(`(?i)RMX\d{4}`), vendor: "Realme", upper: true, confidence: 75},
	{pattern: regexp.MustCompile(`(?i)CPH\d{4}`), vendor: "OPPO", upper: true, confidence: 75},
	{pattern: regexp.MustCompile(`(?i)Infinix\s*X\d{3,4}`), vendor: "Infinix", confidence: 70},
	{pattern: regexp.MustCompile(`(?i)Redmi\s+[A-Za-z0-9]+(\s+[A-Za-z0-9]+)?`), vendor: "Xiaomi", confidence: 70},
	{pattern: regexp.MustCompile(`(?i)POCO\s+[A-Za-z0-9]+`), vendor: "Xiaomi", confidence: 70},
	// Year-prefixed Xiaomi model codes, e.g. 23117RA68G
	{pattern: regexp.MustCompile(`(?i)\b(2[0-5]\d{3,4}[A-Z]{2,}[A-Z0-9]*)\b`), vendor: "Xiaomi", upper: true, confidence: 65},
}

// ParseUserAgent extracts a device model from the raw user-agent string.
// Returns model "unknown" with confidence 0 when nothing matches.
func ParseUserAgent(userAgent string) DeviceInfo {
	for _, rule := range uaRules {
		match := rule.pattern.FindString(userAgent)
		if match == "" {
			continue
		}

		model := rule.fixedModel
		if model == "" {
			model = strings.TrimSpace(match)
			if rule.upper {
				model = strings.ToUpper(model)
			}
		}

		return DeviceInfo{
			Model:      model,
			Vendor:     rule.vendor,
			UserAgent:  userAgent,
			Source:     SourceUserAgent,
			Confidence: rule.confidence,
		}
	}

	return DeviceInfo{
		Model:      "unknown",
		Vendor:     "unknown",
		UserAgent:  userAgent,
		Source:     SourceUserAgent,
		Confidence: 0,
	}
}
