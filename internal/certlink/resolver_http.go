package certlink

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// HTTPResolver reads certificates from a remote health service, for
// deployments where the two domains run as separate services.
type HTTPResolver struct {
	BaseURL string
	Token   string // service-to-service bearer token
	Client  *http.Client
}

func (r *HTTPResolver) client() *http.Client {
	if r.Client != nil {
		return r.Client
	}
	return http.DefaultClient
}

type certificatePayload struct {
	ID        string `json:"id"`
	PatientID string `json:"patient_id"`
	Type      string `json:"type"`
	ValidFrom string `json:"valid_from"`
	ValidTo   string `json:"valid_to"`
}

func (r *HTTPResolver) Resolve(ctx context.Context, id string) (Certificate, error) {
	url := strings.TrimRight(r.BaseURL, "/") + "/health/certificates/" + id
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Certificate{}, fmt.Errorf("build certificate request: %w", err)
	}
	if r.Token != "" {
		req.Header.Set("Authorization", "Bearer "+r.Token)
	}
	resp, err := r.client().Do(req)
	if err != nil {
		return Certificate{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return Certificate{}, ErrCertificateNotFound
	default:
		return Certificate{}, fmt.Errorf("%w: health service returned %d", ErrUnavailable, resp.StatusCode)
	}

	var payload certificatePayload
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return Certificate{}, fmt.Errorf("%w: decode certificate: %v", ErrUnavailable, err)
	}
	validFrom, err := parseWhen(payload.ValidFrom)
	if err != nil {
		return Certificate{}, fmt.Errorf("%w: bad valid_from: %v", ErrUnavailable, err)
	}
	validTo, err := parseWhen(payload.ValidTo)
	if err != nil {
		return Certificate{}, fmt.Errorf("%w: bad valid_to: %v", ErrUnavailable, err)
	}
	return Certificate{
		ID:        payload.ID,
		PatientID: payload.PatientID,
		Type:      payload.Type,
		ValidFrom: validFrom,
		ValidTo:   validTo,
	}, nil
}

// parseWhen accepts both date-only and RFC3339 timestamps; the health
// service stores dates but older deployments serialize full timestamps.
func parseWhen(v string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", v)
}
