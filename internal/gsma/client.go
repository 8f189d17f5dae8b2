// Package gsma is the client for the GSMA Mobile Money API gateway, used to
// initialize Orange Money payments and poll their status.
package gsma

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/payflex/payflex/internal/metrics"
	"github.com/payflex/payflex/internal/retry"
)

// Payment statuses reported by the gateway.
const (
	StatusPending = "PENDING"
	StatusSuccess = "SUCCESS"
	StatusFailed  = "FAILED"
)

var (
	// ErrProviderUnavailable is returned when the gateway cannot be reached
	// after retries.
	ErrProviderUnavailable = errors.New("mobile money provider unavailable")
	// ErrPaymentNotFound is returned when the gateway has no record of a
	// transaction ID.
	ErrPaymentNotFound = errors.New("payment not found")
)

// InitializeRequest describes a payment to initialize with the gateway.
type InitializeRequest struct {
	Amount            float64
	Currency          string
	SubscriberPhone   string
	ExternalReference string
}

// InitializeResult is the gateway's handle for an initialized payment. The
// subscriber completes the payment at PaymentURL.
type InitializeResult struct {
	TransactionID string
	PaymentURL    string
}

// Client talks to a GSMA Mobile Money API gateway.
type Client struct {
	baseURL    string
	apiKey     string
	provider   string
	httpClient *http.Client
}

// NewClient creates a gateway client for the given provider (e.g. "ORANGE").
func NewClient(baseURL, apiKey, provider string) *Client {
	return &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		apiKey:   apiKey,
		provider: provider,
		httpClient: &http.Client{
			Timeout: 5 * time.Second,
		},
	}
}

type initializePayload struct {
	Provider          string  `json:"provider"`
	Amount            float64 `json:"amount"`
	Currency          string  `json:"currency"`
	SubscriberPhone   string  `json:"subscriberPhone"`
	ExternalReference string  `json:"externalReference"`
}

type initializeResponse struct {
	TransactionID string `json:"transactionId"`
	PaymentURL    string `json:"paymentUrl"`
}

type statusResponse struct {
	Status string `json:"status"`
}

// Initialize registers a payment with the gateway and returns the transaction
// handle. Transient failures are retried; exhausting retries yields
// ErrProviderUnavailable.
func (c *Client) Initialize(ctx context.Context, req InitializeRequest) (*InitializeResult, error) {
	body, err := json.Marshal(initializePayload{
		Provider:          c.provider,
		Amount:            req.Amount,
		Currency:          req.Currency,
		SubscriberPhone:   req.SubscriberPhone,
		ExternalReference: req.ExternalReference,
	})
	if err != nil {
		return nil, fmt.Errorf("encode initialize request: %w", err)
	}

	var result InitializeResult
	err = retry.Do(ctx, 3, 500*time.Millisecond, func() error {
		httpReq, rerr := http.NewRequestWithContext(ctx, http.MethodPost,
			c.baseURL+"/v1/payments", bytes.NewReader(body))
		if rerr != nil {
			return retry.Permanent(rerr)
		}
		c.setHeaders(httpReq)

		resp, rerr := c.httpClient.Do(httpReq)
		if rerr != nil {
			return fmt.Errorf("%w: %v", ErrProviderUnavailable, rerr)
		}
		defer func() { _ = resp.Body.Close() }()

		if resp.StatusCode >= 400 && resp.StatusCode < 500 {
			return retry.Permanent(fmt.Errorf("gateway rejected payment: status %d", resp.StatusCode))
		}
		if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
			return fmt.Errorf("%w: gateway status %d", ErrProviderUnavailable, resp.StatusCode)
		}

		var ir initializeResponse
		if rerr := json.NewDecoder(resp.Body).Decode(&ir); rerr != nil {
			return fmt.Errorf("decode initialize response: %w", rerr)
		}
		result = InitializeResult{TransactionID: ir.TransactionID, PaymentURL: ir.PaymentURL}
		return nil
	})
	if err != nil {
		metrics.ProviderRequestsTotal.WithLabelValues("gsma", "error").Inc()
		return nil, err
	}

	metrics.ProviderRequestsTotal.WithLabelValues("gsma", "ok").Inc()
	return &result, nil
}

// Status polls the gateway for a payment's current status.
func (c *Client) Status(ctx context.Context, transactionID string) (string, error) {
	var status string
	err := retry.Do(ctx, 3, 500*time.Millisecond, func() error {
		httpReq, rerr := http.NewRequestWithContext(ctx, http.MethodGet,
			c.baseURL+"/v1/payments/"+transactionID, nil)
		if rerr != nil {
			return retry.Permanent(rerr)
		}
		c.setHeaders(httpReq)

		resp, rerr := c.httpClient.Do(httpReq)
		if rerr != nil {
			return fmt.Errorf("%w: %v", ErrProviderUnavailable, rerr)
		}
		defer func() { _ = resp.Body.Close() }()

		if resp.StatusCode == http.StatusNotFound {
			return retry.Permanent(ErrPaymentNotFound)
		}
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("%w: gateway status %d", ErrProviderUnavailable, resp.StatusCode)
		}

		var sr statusResponse
		if rerr := json.NewDecoder(resp.Body).Decode(&sr); rerr != nil {
			return fmt.Errorf("decode status response: %w", rerr)
		}
		status = normalizeStatus(sr.Status)
		return nil
	})
	if err != nil {
		metrics.ProviderRequestsTotal.WithLabelValues("gsma", "error").Inc()
		return "", err
	}

	metrics.ProviderRequestsTotal.WithLabelValues("gsma", "ok").Inc()
	return status, nil
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-Key", c.apiKey)
}

// normalizeStatus maps the gateway's lowercase statuses to the canonical form.
func normalizeStatus(s string) string {
	switch strings.ToLower(s) {
	case "success", "succeeded", "completed":
		return StatusSuccess
	case "failed", "rejected":
		return StatusFailed
	default:
		return StatusPending
	}
}
