package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/streetgottalent/vote-payments/internal/interfaces"
	"github.com/streetgottalent/vote-payments/internal/telemetry"
)

func TestMain(m *testing.M) {
	telemetry.Logger = zap.NewNop()
	os.Exit(m.Run())
}

func TestVerifyRetriesServerErrorsThenSucceeds(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer sk_test" {
			t.Errorf("Authorization = %q, want bearer secret", got)
		}
		if atomic.AddInt32(&calls, 1) <= 2 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"status":true,"message":"Verification successful","data":{
			"status":"success","reference":"ref-9","amount":1500,"currency":"NGN",
			"channel":"card","paid_at":"2026-08-28T10:00:00Z"}}`)
	}))
	defer srv.Close()

	client := NewPaystackClient(srv.URL, "sk_test")
	tx, err := client.VerifyTransaction(context.Background(), "ref-9")
	if err != nil {
		t.Fatalf("VerifyTransaction: %v", err)
	}
	if got := atomic.LoadInt32(&calls); got != 3 {
		t.Errorf("request count = %d, want 3 (two 5xx retries then success)", got)
	}
	if tx.Status != "success" || tx.Amount != 1500 || tx.Currency != "NGN" {
		t.Errorf("unexpected transaction: %+v", tx)
	}
	want := time.Date(2026, 8, 28, 10, 0, 0, 0, time.UTC)
	if !tx.PaidAt.Equal(want) {
		t.Errorf("paid_at = %v, want %v", tx.PaidAt, want)
	}
}

func TestVerifyNotFoundIsTerminal(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	client := NewPaystackClient(srv.URL, "sk_test")
	_, err := client.VerifyTransaction(context.Background(), "ghost")
	if !errors.Is(err, interfaces.ErrTransactionNotFound) {
		t.Fatalf("expected ErrTransactionNotFound, got %v", err)
	}
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Errorf("request count = %d, want 1 (404 must not retry)", got)
	}
}

func TestVerifyClientErrorIsTerminal(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"status":false,"message":"Invalid key"}`)
	}))
	defer srv.Close()

	client := NewPaystackClient(srv.URL, "bad_key")
	_, err := client.VerifyTransaction(context.Background(), "ref-9")
	if err == nil {
		t.Fatal("expected error on 401")
	}
	if !strings.Contains(err.Error(), "401") {
		t.Errorf("error should carry the status code, got %v", err)
	}
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Errorf("request count = %d, want 1 (4xx must not retry)", got)
	}
}
