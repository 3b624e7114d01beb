package services

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func newTestAlphaVantage(t *testing.T, handler http.HandlerFunc) *AlphaVantageService {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	// Fresh breakers so failures in one test cannot open the circuit for another
	SetGlobalRegistry(NewCircuitBreakerRegistry(DefaultCircuitBreakerConfig))

	service := NewAlphaVantageService("test-api-key")
	service.baseURL = server.URL
	service.retry = RetryConfig{
		MaxRetries:     2,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     5 * time.Millisecond,
	}
	return service
}

const eurUSDResponse = `{
	"Realtime Currency Exchange Rate": {
		"1. From_Currency Code": "EUR",
		"2. From_Currency Name": "Euro",
		"3. To_Currency Code": "USD",
		"4. To_Currency Name": "United States Dollar",
		"5. Exchange Rate": "1.08450000",
		"6. Last Refreshed": "2024-05-01 12:00:01",
		"7. Time Zone": "UTC",
		"8. Bid Price": "1.08440000",
		"9. Ask Price": "1.08460000"
	}
}`

func TestNewAlphaVantageService(t *testing.T) {
	service := NewAlphaVantageService("test-api-key")
	if service == nil {
		t.Fatal("NewAlphaVantageService should not return nil")
	}
	if service.apiKey != "test-api-key" {
		t.Errorf("apiKey = %v, want 'test-api-key'", service.apiKey)
	}
	if service.httpClient == nil {
		t.Error("httpClient should not be nil")
	}
	if service.baseURL != "https://www.alphavantage.co/query" {
		t.Errorf("baseURL = %v, want 'https://www.alphavantage.co/query'", service.baseURL)
	}
}

func TestExchangeRateResponse_Deserialization(t *testing.T) {
	var resp ExchangeRateResponse
	if err := json.Unmarshal([]byte(eurUSDResponse), &resp); err != nil {
		t.Fatalf("Failed to unmarshal ExchangeRateResponse: %v", err)
	}

	if resp.Rate.FromCode != "EUR" {
		t.Errorf("FromCode = %v, want 'EUR'", resp.Rate.FromCode)
	}
	if resp.Rate.ToCode != "USD" {
		t.Errorf("ToCode = %v, want 'USD'", resp.Rate.ToCode)
	}
	if resp.Rate.ExchangeRate != "1.08450000" {
		t.Errorf("ExchangeRate = %v, want '1.08450000'", resp.Rate.ExchangeRate)
	}
	if resp.apiError() != nil {
		t.Errorf("apiError() = %v, want nil", resp.apiError())
	}
}

func TestAlphaVantageService_GetExchangeRate(t *testing.T) {
	service := newTestAlphaVantage(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("function") != "CURRENCY_EXCHANGE_RATE" {
			t.Errorf("function = %v, want CURRENCY_EXCHANGE_RATE", q.Get("function"))
		}
		if q.Get("from_currency") != "EUR" || q.Get("to_currency") != "USD" {
			t.Errorf("unexpected currencies %v/%v", q.Get("from_currency"), q.Get("to_currency"))
		}
		if q.Get("apikey") != "test-api-key" {
			t.Errorf("apikey = %v, want test-api-key", q.Get("apikey"))
		}
		w.Write([]byte(eurUSDResponse))
	})

	rate, err := service.GetExchangeRate(context.Background(), "eur", "usd")
	if err != nil {
		t.Fatalf("GetExchangeRate() error = %v", err)
	}
	if rate.From != "EUR" || rate.To != "USD" {
		t.Errorf("pair = %v/%v, want EUR/USD", rate.From, rate.To)
	}
	if !rate.Rate.Equal(decimal.RequireFromString("1.0845")) {
		t.Errorf("Rate = %v, want 1.0845", rate.Rate)
	}
	if rate.FetchedAt.IsZero() {
		t.Error("FetchedAt should be set")
	}
}

func TestAlphaVantageService_GetExchangeRate_SameCurrency(t *testing.T) {
	service := newTestAlphaVantage(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected for identical currencies")
	})

	rate, err := service.GetExchangeRate(context.Background(), "USD", "USD")
	if err != nil {
		t.Fatalf("GetExchangeRate() error = %v", err)
	}
	if !rate.Rate.Equal(decimal.NewFromInt(1)) {
		t.Errorf("Rate = %v, want 1", rate.Rate)
	}
}

func TestAlphaVantageService_GetExchangeRate_RetriesRateLimit(t *testing.T) {
	var calls atomic.Int32
	service := newTestAlphaVantage(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.Write([]byte(`{"Note": "Thank you for using Alpha Vantage! Our standard API call frequency is 5 calls per minute."}`))
			return
		}
		w.Write([]byte(eurUSDResponse))
	})

	rate, err := service.GetExchangeRate(context.Background(), "EUR", "USD")
	if err != nil {
		t.Fatalf("GetExchangeRate() error = %v", err)
	}
	if !rate.Rate.Equal(decimal.RequireFromString("1.0845")) {
		t.Errorf("Rate = %v, want 1.0845", rate.Rate)
	}
	if calls.Load() != 2 {
		t.Errorf("calls = %d, want 2", calls.Load())
	}
}

func TestAlphaVantageService_GetExchangeRate_ErrorMessageIsPermanent(t *testing.T) {
	var calls atomic.Int32
	service := newTestAlphaVantage(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Write([]byte(`{"Error Message": "Invalid API call. Please retry or visit the documentation."}`))
	})

	_, err := service.GetExchangeRate(context.Background(), "XXX", "USD")
	if err == nil {
		t.Fatal("expected error for invalid currency")
	}
	if calls.Load() != 1 {
		t.Errorf("calls = %d, want 1", calls.Load())
	}
}

func TestAlphaVantageService_UnknownCurrencyKeepsBreakerClosed(t *testing.T) {
	var calls atomic.Int32
	service := newTestAlphaVantage(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Write([]byte(`{"Error Message": "Invalid API call. Please retry or visit the documentation."}`))
	})

	for i := 0; i < 5; i++ {
		_, err := service.GetExchangeRate(context.Background(), "XXX", "USD")
		if err == nil {
			t.Fatal("expected error for invalid currency")
		}
		if errors.Is(err, ErrBreakerOpen) {
			t.Fatalf("call %d rejected by open breaker: %v", i+1, err)
		}
	}

	if open := GetGlobalRegistry().Open(); len(open) != 0 {
		t.Errorf("Open() = %v, want none", open)
	}
	if calls.Load() != 5 {
		t.Errorf("calls = %d, want 5", calls.Load())
	}
}

func TestAlphaVantageService_GetExchangeRate_ServerError(t *testing.T) {
	var calls atomic.Int32
	service := newTestAlphaVantage(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	})

	_, err := service.GetExchangeRate(context.Background(), "EUR", "USD")
	if err == nil {
		t.Fatal("expected error on server failure")
	}
	// initial attempt plus two retries
	if calls.Load() != 3 {
		t.Errorf("calls = %d, want 3", calls.Load())
	}
}

func TestAlphaVantageService_GetExchangeRate_InvalidRate(t *testing.T) {
	service := newTestAlphaVantage(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"Realtime Currency Exchange Rate": {"5. Exchange Rate": "0"}}`))
	})

	if _, err := service.GetExchangeRate(context.Background(), "EUR", "USD"); err == nil {
		t.Fatal("expected error for non-positive rate")
	}
}

func TestAlphaVantageService_GetExchangeRate_ContextCancelled(t *testing.T) {
	service := newTestAlphaVantage(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(eurUSDResponse))
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := service.GetExchangeRate(ctx, "EUR", "USD")
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestCategorizeAPIError(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, "none"},
		{context.DeadlineExceeded, "timeout"},
		{errors.New("alpha vantage rate limit: call frequency"), "rate_limit"},
		{errors.New("status 401 unauthorized"), "auth_error"},
		{errors.New("alpaca circuit breaker open"), "circuit_open"},
		{ErrBreakerOpen, "circuit_open"},
		{errors.New("connection refused"), "connection_error"},
		{errors.New("something else"), "unknown"},
	}

	for _, tt := range tests {
		if got := categorizeAPIError(tt.err); got != tt.want {
			t.Errorf("categorizeAPIError(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}
