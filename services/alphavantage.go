package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"cash-buying-power/models"
	"cash-buying-power/observability"

	"github.com/shopspring/decimal"
)

// AlphaVantageService fetches currency conversion rates from Alpha Vantage
type AlphaVantageService struct {
	apiKey     string
	httpClient *http.Client
	baseURL    string
	retry      RetryConfig
}

// NewAlphaVantageService creates a new AlphaVantageService instance
func NewAlphaVantageService(apiKey string) *AlphaVantageService {
	return &AlphaVantageService{
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    "https://www.alphavantage.co/query",
		retry:      DefaultRetryConfig,
	}
}

// ExchangeRateResponse represents the CURRENCY_EXCHANGE_RATE response
type ExchangeRateResponse struct {
	Rate struct {
		FromCode      string `json:"1. From_Currency Code"`
		FromName      string `json:"2. From_Currency Name"`
		ToCode        string `json:"3. To_Currency Code"`
		ToName        string `json:"4. To_Currency Name"`
		ExchangeRate  string `json:"5. Exchange Rate"`
		LastRefreshed string `json:"6. Last Refreshed"`
		TimeZone      string `json:"7. Time Zone"`
		BidPrice      string `json:"8. Bid Price"`
		AskPrice      string `json:"9. Ask Price"`
	} `json:"Realtime Currency Exchange Rate"`

	// Alpha Vantage reports failures with a 200 status and one of these
	ErrorMessage string `json:"Error Message"`
	Note         string `json:"Note"`
	Information  string `json:"Information"`
}

func (r *ExchangeRateResponse) apiError() error {
	switch {
	case r.ErrorMessage != "":
		return fmt.Errorf("alpha vantage error: %s", r.ErrorMessage)
	case r.Note != "":
		return fmt.Errorf("alpha vantage rate limit: %s", r.Note)
	case r.Information != "":
		return fmt.Errorf("alpha vantage rate limit: %s", r.Information)
	}
	return nil
}

// GetExchangeRate returns the value of one unit of from expressed in to
func (s *AlphaVantageService) GetExchangeRate(ctx context.Context, from, to string) (*models.ExchangeRate, error) {
	from = strings.ToUpper(from)
	to = strings.ToUpper(to)
	if from == to {
		return &models.ExchangeRate{From: from, To: to, Rate: decimal.NewFromInt(1), FetchedAt: time.Now()}, nil
	}

	metrics := observability.GetMetrics()
	metrics.RecordExternalAPIRequest(BreakerAlphaVantage, "exchange_rate")
	timer := metrics.NewTimer()

	rate, err := WithCircuitBreaker(ctx, BreakerAlphaVantage, func() (*models.ExchangeRate, error) {
		var result *models.ExchangeRate
		err := WithRetry(ctx, s.retry, func() error {
			r, err := s.fetchExchangeRate(ctx, from, to)
			if err != nil {
				return err
			}
			result = r
			return nil
		})
		return result, err
	})

	timer.ObserveExternalAPI(BreakerAlphaVantage, "exchange_rate")
	if err != nil {
		metrics.RecordExternalAPIError(BreakerAlphaVantage, "exchange_rate", categorizeAPIError(err))
		return nil, fmt.Errorf("failed to get exchange rate %s/%s: %w", from, to, err)
	}

	observability.Debug("fetched exchange rate",
		"from", from,
		"to", to,
		"rate", rate.Rate.String())
	return rate, nil
}

func (s *AlphaVantageService) fetchExchangeRate(ctx context.Context, from, to string) (*models.ExchangeRate, error) {
	params := url.Values{}
	params.Set("function", "CURRENCY_EXCHANGE_RATE")
	params.Set("from_currency", from)
	params.Set("to_currency", to)
	params.Set("apikey", s.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, Permanent(fmt.Errorf("failed to build exchange rate request: %w", err))
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch exchange rate: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("exchange rate request returned status %d", resp.StatusCode)
	}

	var body ExchangeRateResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("failed to decode exchange rate: %w", err)
	}
	if err := body.apiError(); err != nil {
		// An unknown currency will not start working on retry
		if body.ErrorMessage != "" {
			return nil, Permanent(err)
		}
		return nil, err
	}

	rate, err := decimal.NewFromString(body.Rate.ExchangeRate)
	if err != nil {
		return nil, Permanent(fmt.Errorf("invalid exchange rate %q: %w", body.Rate.ExchangeRate, err))
	}
	if !rate.IsPositive() {
		return nil, Permanent(fmt.Errorf("non-positive exchange rate %s for %s/%s", rate, from, to))
	}

	return &models.ExchangeRate{
		From:      from,
		To:        to,
		Rate:      rate,
		FetchedAt: time.Now(),
	}, nil
}
