package fraud

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/payflex/payflex/internal/metrics"
	"github.com/payflex/payflex/internal/retry"
)

// nominalOrderAmount is the fixed order value reported to the vendor. The
// vendor scores the subject, not the transfer, so the real amount is not sent.
const nominalOrderAmount = 100

// VendorClient calls the FraudLabs Pro order-verify API for an external risk
// signal.
type VendorClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// Compile-time check that VendorClient implements ExternalScorer.
var _ ExternalScorer = (*VendorClient)(nil)

// NewVendorClient creates a vendor client.
func NewVendorClient(baseURL, apiKey string) *VendorClient {
	return &VendorClient{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 5 * time.Second,
		},
	}
}

type vendorRequest struct {
	OrderID   string  `json:"order_id"`
	IPAddress string  `json:"ip_address"`
	Amount    float64 `json:"amount"`
	Phone     string  `json:"phone,omitempty"`
}

type vendorResponse struct {
	IsSpamScore int `json:"is_spam_score"`
}

// Score submits the subject to the vendor and returns its spam score (0-100).
// Transient failures are retried with backoff before giving up.
func (v *VendorClient) Score(ctx context.Context, did, phone, ip string) (int, error) {
	body, err := json.Marshal(vendorRequest{
		OrderID:   did,
		IPAddress: ip,
		Amount:    nominalOrderAmount,
		Phone:     phone,
	})
	if err != nil {
		return 0, fmt.Errorf("encode vendor request: %w", err)
	}

	var score int
	err = retry.Do(ctx, 3, 300*time.Millisecond, func() error {
		req, rerr := http.NewRequestWithContext(ctx, http.MethodPost,
			v.baseURL+"?key="+v.apiKey, bytes.NewReader(body))
		if rerr != nil {
			return retry.Permanent(rerr)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, rerr := v.httpClient.Do(req)
		if rerr != nil {
			return fmt.Errorf("vendor request: %w", rerr)
		}
		defer func() { _ = resp.Body.Close() }()

		if resp.StatusCode >= 400 && resp.StatusCode < 500 {
			return retry.Permanent(fmt.Errorf("vendor rejected request: status %d", resp.StatusCode))
		}
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("vendor status %d", resp.StatusCode)
		}

		var vr vendorResponse
		if rerr := json.NewDecoder(resp.Body).Decode(&vr); rerr != nil {
			return fmt.Errorf("decode vendor response: %w", rerr)
		}
		score = vr.IsSpamScore
		return nil
	})
	if err != nil {
		metrics.ProviderRequestsTotal.WithLabelValues("fraudlabspro", "error").Inc()
		return 0, err
	}

	metrics.ProviderRequestsTotal.WithLabelValues("fraudlabspro", "ok").Inc()
	return score, nil
}
