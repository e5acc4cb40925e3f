package payment

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestRazorpay_CreateLink(t *testing.T) {
	var got createLinkBody
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/v1/payment_links" {
			t.Errorf("%s %s", r.Method, r.URL.Path)
		}
		user, pass, ok := r.BasicAuth()
		if !ok || user != "rzp_key" || pass != "rzp_secret" {
			t.Errorf("basic auth = %q/%q", user, pass)
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"plink_1","short_url":"https://rzp.io/i/abc","status":"created"}`))
	}))
	defer server.Close()

	rp := NewRazorpay(server.URL+"/v1/", "rzp_key", "rzp_secret")
	rp.now = func() time.Time { return time.UnixMilli(1700000000000) }

	req := LinkRequest{Amount: 49.99, Purpose: "Stream tip"}.WithDefaults(10)
	link, err := rp.CreateLink(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	if link["short_url"] != "https://rzp.io/i/abc" {
		t.Errorf("link = %v", link)
	}
	if got.Amount != 4999 || got.Currency != "INR" {
		t.Errorf("amount = %d %s, want 4999 INR", got.Amount, got.Currency)
	}
	if got.ReferenceID != "don-1700000000000" || got.Description != "Stream tip" {
		t.Errorf("body = %+v", got)
	}
	if got.Customer.Name != "Supporter" || got.Notify.SMS || got.ReminderEnable {
		t.Errorf("body = %+v", got)
	}
}

func TestRazorpay_ProviderError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"code":"BAD_REQUEST_ERROR","description":"The amount must be atleast INR 1.00"}}`))
	}))
	defer server.Close()

	rp := NewRazorpay(server.URL, "k", "s")
	_, err := rp.CreateLink(context.Background(), LinkRequest{Amount: 0.5})
	var pe *ProviderError
	if !errors.As(err, &pe) {
		t.Fatalf("err = %v, want ProviderError", err)
	}
	if pe.Status != 400 || pe.Code != "BAD_REQUEST_ERROR" || !strings.Contains(pe.Error(), "atleast") {
		t.Errorf("provider error = %+v", pe)
	}
}

func TestRazorpay_Validation(t *testing.T) {
	rp := NewRazorpay("http://unused", "k", "s")
	for _, amount := range []float64{-1, math.NaN(), math.Inf(1), 1e17, math.MaxFloat64} {
		if _, err := rp.CreateLink(context.Background(), LinkRequest{Amount: amount}); !errors.Is(err, ErrInvalidAmount) {
			t.Errorf("amount %v: err = %v", amount, err)
		}
	}
	noCreds := NewRazorpay("http://unused", "", "")
	if _, err := noCreds.CreateLink(context.Background(), LinkRequest{Amount: 10}); err == nil {
		t.Error("expected error without credentials")
	}
}

func TestLinkRequest_WithDefaults(t *testing.T) {
	r := LinkRequest{}.WithDefaults(10)
	if r.Amount != 10 || r.Purpose != "Donation" || r.Customer == nil || r.Customer.Name != "Supporter" {
		t.Errorf("defaults = %+v", r)
	}
	kept := LinkRequest{Amount: 5, Purpose: "x", Customer: &Customer{Name: "Asha"}}.WithDefaults(10)
	if kept.Amount != 5 || kept.Purpose != "x" || kept.Customer.Name != "Asha" {
		t.Errorf("explicit values overwritten: %+v", kept)
	}
}
