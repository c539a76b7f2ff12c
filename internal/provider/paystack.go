package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/streetgottalent/vote-payments/internal/interfaces"
	"github.com/streetgottalent/vote-payments/internal/models"
	"github.com/streetgottalent/vote-payments/internal/telemetry"
)

// PaystackClient talks to the Paystack REST API. Transient network failures
// are retried with backoff; provider-reported rejections are not.
type PaystackClient struct {
	baseURL    string
	secretKey  string
	httpClient *http.Client
}

func NewPaystackClient(baseURL, secretKey string) *PaystackClient {
	return &PaystackClient{
		baseURL:   strings.TrimRight(baseURL, "/"),
		secretKey: secretKey,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// NewReference builds a reference unique per attempt: monotonic wall-clock
// millis plus a random suffix, same scheme the checkout widget uses.
func NewReference() string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
	return fmt.Sprintf("sgt-%d-%s", time.Now().UnixMilli(), suffix)
}

type initializeRequest struct {
	Email     string            `json:"email"`
	Amount    int64             `json:"amount"`
	Currency  string            `json:"currency"`
	Reference string            `json:"reference"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

type initializeResponse struct {
	Status  bool   `json:"status"`
	Message string `json:"message"`
	Data    struct {
		AuthorizationURL string `json:"authorization_url"`
		AccessCode       string `json:"access_code"`
		Reference        string `json:"reference"`
	} `json:"data"`
}

type verifyResponse struct {
	Status  bool   `json:"status"`
	Message string `json:"message"`
	Data    struct {
		Status    string `json:"status"`
		Reference string `json:"reference"`
		Amount    int64  `json:"amount"`
		Currency  string `json:"currency"`
		Channel   string `json:"channel"`
		PaidAt    string `json:"paid_at"`
	} `json:"data"`
}

func (c *PaystackClient) InitializeTransaction(ctx context.Context, reference string, intent models.PaymentIntent) (string, error) {
	body := initializeRequest{
		Email:     intent.PayerEmail,
		Amount:    intent.Amount,
		Currency:  intent.Currency,
		Reference: reference,
		Metadata: map[string]string{
			"payment_for": string(intent.Purpose),
			"subject_id":  intent.SubjectID,
			"item_id":     intent.ItemID,
			"channel":     "web",
		},
	}

	var resp initializeResponse
	if err := c.do(ctx, http.MethodPost, "/transaction/initialize", body, &resp); err != nil {
		return "", err
	}
	if !resp.Status {
		return "", fmt.Errorf("paystack rejected initialize: %s", resp.Message)
	}
	return resp.Data.AuthorizationURL, nil
}

func (c *PaystackClient) VerifyTransaction(ctx context.Context, reference string) (*models.ProviderTransaction, error) {
	var resp verifyResponse
	err := c.do(ctx, http.MethodGet, "/transaction/verify/"+reference, nil, &resp)
	if err != nil {
		return nil, err
	}
	if !resp.Status {
		return nil, interfaces.ErrTransactionNotFound
	}

	tx := &models.ProviderTransaction{
		Reference: resp.Data.Reference,
		Status:    resp.Data.Status,
		Amount:    resp.Data.Amount,
		Currency:  resp.Data.Currency,
		Channel:   resp.Data.Channel,
	}
	if resp.Data.PaidAt != "" {
		if paidAt, perr := time.Parse(time.RFC3339, resp.Data.PaidAt); perr == nil {
			tx.PaidAt = paidAt
		}
	}
	return tx, nil
}

// do performs one API call with bounded retry on network failure and 5xx.
// 4xx responses are terminal.
func (c *PaystackClient) do(ctx context.Context, method, path string, reqBody, out interface{}) error {
	var payload []byte
	if reqBody != nil {
		var err error
		payload, err = json.Marshal(reqBody)
		if err != nil {
			return fmt.Errorf("marshal paystack request: %w", err)
		}
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 3), ctx)

	operation := func() error {
		var reader io.Reader
		if payload != nil {
			reader = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Authorization", "Bearer "+c.secretKey)
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			telemetry.Logger.Warn("Paystack request failed, retrying",
				zap.String("path", path),
				zap.Error(err),
			)
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 500 {
			return fmt.Errorf("paystack returned %d", resp.StatusCode)
		}
		if resp.StatusCode == http.StatusNotFound {
			return backoff.Permanent(interfaces.ErrTransactionNotFound)
		}
		if resp.StatusCode >= 400 {
			raw, _ := io.ReadAll(resp.Body)
			return backoff.Permanent(fmt.Errorf("paystack returned %d: %s", resp.StatusCode, string(raw)))
		}

		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return backoff.Permanent(fmt.Errorf("decode paystack response: %w", err))
		}
		return nil
	}

	return backoff.Retry(operation, policy)
}
