package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/cashly/journey-api/internal/validators"
)

// CEPService looks up address fields for a postal code (ViaCEP-style API).
// Autofill only: a failed lookup returns nil, never an error the caller
// should block on.
type CEPService struct {
	baseURL string
	client  *http.Client
}

func NewCEPService(baseURL string) *CEPService {
	return &CEPService{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 5 * time.Second},
	}
}

type viaCEPResponse struct {
	CEP        string `json:"cep"`
	Logradouro string `json:"logradouro"`
	Bairro     string `json:"bairro"`
	Localidade string `json:"localidade"`
	UF         string `json:"uf"`
	Erro       bool   `json:"erro"`
}

// Address is the autofill payload.
type Address struct {
	Street   string `json:"street"`
	District string `json:"district"`
	City     string `json:"city"`
	State    string `json:"state"`
}

// Lookup resolves a CEP to address fields. Returns (nil, nil) for unknown
// postal codes.
func (s *CEPService) Lookup(ctx context.Context, cep string) (*Address, error) {
	clean := validators.OnlyDigits(cep)
	if len(clean) != 8 {
		return nil, fmt.Errorf("invalid CEP")
	}

	url := fmt.Sprintf("%s/%s/json/", s.baseURL, clean)
	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("CEP API error (status %d)", resp.StatusCode)
	}

	var body viaCEPResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	if body.Erro {
		return nil, nil
	}

	return &Address{
		Street:   body.Logradouro,
		District: body.Bairro,
		City:     body.Localidade,
		State:    body.UF,
	}, nil
}
