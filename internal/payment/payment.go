// Package payment creates donation payment links with the payment provider.
package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"
	"time"
)

// ErrInvalidAmount is returned for a zero, negative, non-finite or
// out-of-range amount.
var ErrInvalidAmount = errors.New("amount must be a positive number")

// maxAmount keeps amount*100 exactly representable and well inside int64.
const maxAmount = (1 << 53) / 100

// Customer identifies the supporter on the payment page.
type Customer struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Contact string `json:"contact"`
}

// LinkRequest is a request for a donation link. Amount is in major units.
type LinkRequest struct {
	Amount   float64   `json:"amount"`
	Customer *Customer `json:"customer,omitempty"`
	Purpose  string    `json:"purpose"`
}

// WithDefaults fills an unset amount, customer and purpose the way the
// donation page expects.
func (r LinkRequest) WithDefaults(amount float64) LinkRequest {
	if r.Amount == 0 {
		r.Amount = amount
	}
	if r.Customer == nil {
		r.Customer = &Customer{Name: "Supporter"}
	}
	if r.Purpose == "" {
		r.Purpose = "Donation"
	}
	return r
}

// Link is the provider's payment link object, passed through as returned.
type Link map[string]any

// LinkCreator creates payment links.
type LinkCreator interface {
	CreateLink(ctx context.Context, req LinkRequest) (Link, error)
}

// ProviderError carries the provider's own description of a failure.
type ProviderError struct {
	Status      int
	Code        string
	Description string
}

func (e *ProviderError) Error() string {
	if e.Description == "" {
		return fmt.Sprintf("payment provider returned %d", e.Status)
	}
	return e.Description
}

// Razorpay creates links through the Razorpay payment links API.
type Razorpay struct {
	baseURL   string
	keyID     string
	keySecret string
	currency  string
	client    *http.Client
	now       func() time.Time
}

// NewRazorpay creates a client for baseURL (e.g. https://api.razorpay.com/v1).
func NewRazorpay(baseURL, keyID, keySecret string) *Razorpay {
	return &Razorpay{
		baseURL:   strings.TrimRight(baseURL, "/"),
		keyID:     keyID,
		keySecret: keySecret,
		currency:  "INR",
		client:    &http.Client{Timeout: 15 * time.Second},
		now:       time.Now,
	}
}

type notify struct {
	SMS   bool `json:"sms"`
	Email bool `json:"email"`
}

type createLinkBody struct {
	Amount         int64    `json:"amount"`
	Currency       string   `json:"currency"`
	AcceptPartial  bool     `json:"accept_partial"`
	Description    string   `json:"description"`
	ReferenceID    string   `json:"reference_id"`
	Customer       Customer `json:"customer"`
	Notify         notify   `json:"notify"`
	ReminderEnable bool     `json:"reminder_enable"`
}

type errorBody struct {
	Error struct {
		Code        string `json:"code"`
		Description string `json:"description"`
	} `json:"error"`
}

// CreateLink creates a single-use link for req.Amount in minor units.
func (r *Razorpay) CreateLink(ctx context.Context, req LinkRequest) (Link, error) {
	if req.Amount <= 0 || math.IsNaN(req.Amount) || math.IsInf(req.Amount, 0) || req.Amount > maxAmount {
		return nil, ErrInvalidAmount
	}
	if r.keyID == "" || r.keySecret == "" {
		return nil, errors.New("payment provider credentials not configured")
	}

	body := createLinkBody{
		Amount:      int64(math.Round(req.Amount * 100)),
		Currency:    r.currency,
		Description: req.Purpose,
		ReferenceID: fmt.Sprintf("don-%d", r.now().UnixMilli()),
	}
	if req.Customer != nil {
		body.Customer = *req.Customer
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshaling link request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+"/payment_links", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.SetBasicAuth(r.keyID, r.keySecret)

	resp, err := r.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("calling payment provider: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("reading provider response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		pe := &ProviderError{Status: resp.StatusCode}
		var eb errorBody
		if json.Unmarshal(data, &eb) == nil {
			pe.Code = eb.Error.Code
			pe.Description = eb.Error.Description
		}
		return nil, pe
	}

	var link Link
	if err := json.Unmarshal(data, &link); err != nil {
		return nil, fmt.Errorf("decoding provider response: %w", err)
	}
	return link, nil
}
