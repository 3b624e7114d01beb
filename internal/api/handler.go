package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"

	"cash-buying-power/config"
	"cash-buying-power/internal/app"
	"cash-buying-power/models"
	"cash-buying-power/observability"
	"cash-buying-power/services"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
)

var symbolPattern = regexp.MustCompile(`^[A-Z0-9./-]+$`)

// Handler handles HTTP API requests
type Handler struct {
	app *app.App
	cfg *config.Config
}

// NewHandler creates a new Handler
func NewHandler(application *app.App, cfg *config.Config) *Handler {
	return &Handler{app: application, cfg: cfg}
}

// HandleHealth returns the health status of the application
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	status := map[string]interface{}{
		"status":          "ok",
		"account_id":      h.cfg.Account.ID,
		"snapshot_source": h.cfg.Account.SnapshotSource,
	}

	database := "not_configured"
	if h.cfg.HasDatabase() {
		if err := h.app.Health(r.Context()); err == nil {
			database = "connected"
		} else {
			database = "disconnected"
			status["status"] = "degraded"
		}
	}
	status["services"] = map[string]string{"database": database}

	registry := services.GetGlobalRegistry()
	status["circuit_breakers"] = registry.Status()
	if open := registry.Open(); len(open) > 0 {
		status["status"] = "degraded"
		status["open_circuits"] = open
	}

	h.jsonResponse(w, status)
}

// HandleGetLeverage returns the leverage applied to a security
func (h *Handler) HandleGetLeverage(w http.ResponseWriter, r *http.Request) {
	symbol, ok := h.symbolParam(w, r)
	if !ok {
		return
	}

	leverage, err := h.app.Leverage(r.Context(), symbol)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	h.jsonResponse(w, map[string]interface{}{
		"symbol":   symbol,
		"leverage": leverage,
	})
}

// SetLeverageRequest represents a leverage change
type SetLeverageRequest struct {
	Leverage decimal.Decimal `json:"leverage"`
}

// HandleSetLeverage accepts a leverage change. Cash accounts keep leverage 1.
func (h *Handler) HandleSetLeverage(w http.ResponseWriter, r *http.Request) {
	symbol, ok := h.symbolParam(w, r)
	if !ok {
		return
	}

	var req SetLeverageRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}

	if err := h.app.SetLeverage(r.Context(), symbol, req.Leverage); err != nil {
		h.handleError(w, r, err)
		return
	}

	h.jsonResponse(w, StatusResponse{Status: "accepted", Message: "cash accounts are not leveraged"})
}

// HandleGetReservedBuyingPower returns the buying power held back by a position
func (h *Handler) HandleGetReservedBuyingPower(w http.ResponseWriter, r *http.Request) {
	symbol, ok := h.symbolParam(w, r)
	if !ok {
		return
	}

	reserved, err := h.app.ReservedForPosition(r.Context(), symbol)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	h.jsonResponse(w, map[string]interface{}{
		"symbol":   symbol,
		"reserved": reserved,
	})
}

// HandleGetBuyingPower returns the units available to buy or sell
func (h *Handler) HandleGetBuyingPower(w http.ResponseWriter, r *http.Request) {
	symbol, ok := h.symbolParam(w, r)
	if !ok {
		return
	}

	direction := models.ParseDirection(strings.ToLower(r.URL.Query().Get("direction")))
	if direction == models.DirectionHold {
		h.jsonError(w, "direction must be buy or sell", http.StatusBadRequest)
		return
	}

	bp, err := h.app.AvailableBuyingPower(r.Context(), symbol, direction)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	h.jsonResponse(w, bp)
}

// HandleCanAfford reports whether the account can pay for an order
func (h *Handler) HandleCanAfford(w http.ResponseWriter, r *http.Request) {
	var req app.OrderRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}
	if !h.validSymbol(w, &req.Symbol) {
		return
	}

	affordable, err := h.app.CanAfford(r.Context(), req)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	h.jsonResponse(w, map[string]interface{}{
		"symbol":     req.Symbol,
		"affordable": affordable,
	})
}

// MaxQuantityRequest represents a sizing request
type MaxQuantityRequest struct {
	Symbol      string          `json:"symbol"`
	TargetValue decimal.Decimal `json:"target_value"`
}

// HandleMaxQuantity sizes an order toward a target position value
func (h *Handler) HandleMaxQuantity(w http.ResponseWriter, r *http.Request) {
	var req MaxQuantityRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}
	if !h.validSymbol(w, &req.Symbol) {
		return
	}

	quantity, err := h.app.MaxQuantity(r.Context(), req.Symbol, req.TargetValue)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	h.jsonResponse(w, map[string]interface{}{
		"symbol":       req.Symbol,
		"target_value": req.TargetValue,
		"quantity":     quantity,
	})
}

// HandleGetOrders returns recent orders; ?status=open limits them to open ones
func (h *Handler) HandleGetOrders(w http.ResponseWriter, r *http.Request) {
	limit := h.ParseLimitParam(r, 50)
	openOnly := r.URL.Query().Get("status") == "open"

	orders, err := h.app.ListOrders(r.Context(), openOnly, limit)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	h.jsonResponse(w, orders)
}

// HandleCreateOrder records a new open order
func (h *Handler) HandleCreateOrder(w http.ResponseWriter, r *http.Request) {
	var req app.OrderRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}
	if !h.validSymbol(w, &req.Symbol) {
		return
	}

	order, err := h.app.CreateOrder(r.Context(), req)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	w.Header().Set("Location", "/api/orders/"+order.ID.String())
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(order)
}

// HandleCancelOrder cancels an open order
func (h *Handler) HandleCancelOrder(w http.ResponseWriter, r *http.Request) {
	if err := h.app.CancelOrder(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.handleError(w, r, err)
		return
	}

	h.jsonResponse(w, StatusResponse{Status: "cancelled"})
}

// HandleFillOrder marks an open order filled
func (h *Handler) HandleFillOrder(w http.ResponseWriter, r *http.Request) {
	if err := h.app.FillOrder(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.handleError(w, r, err)
		return
	}

	h.jsonResponse(w, StatusResponse{Status: "filled"})
}

// SetCashRequest represents a balance update. ConversionRate is optional.
type SetCashRequest struct {
	Amount         decimal.Decimal  `json:"amount"`
	ConversionRate *decimal.Decimal `json:"conversion_rate,omitempty"`
}

// HandleSetCash stores the balance held in a currency
func (h *Handler) HandleSetCash(w http.ResponseWriter, r *http.Request) {
	var req SetCashRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}

	cash, err := h.app.SetCash(r.Context(), chi.URLParam(r, "currency"), req.Amount, req.ConversionRate)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	h.jsonResponse(w, cash)
}

// HandleGetCash returns every balance and the account's total cash value
func (h *Handler) HandleGetCash(w http.ResponseWriter, r *http.Request) {
	summary, err := h.app.GetCash(r.Context())
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	h.jsonResponse(w, summary)
}

// SetPriceRequest represents a market price update
type SetPriceRequest struct {
	Price         decimal.Decimal `json:"price"`
	QuoteCurrency string          `json:"quote_currency,omitempty"`
}

// HandleSetPrice stores the market price of a security
func (h *Handler) HandleSetPrice(w http.ResponseWriter, r *http.Request) {
	symbol, ok := h.symbolParam(w, r)
	if !ok {
		return
	}

	var req SetPriceRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}

	price, err := h.app.SetPrice(r.Context(), symbol, req.QuoteCurrency, req.Price)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	h.jsonResponse(w, price)
}

// HandleGetEvaluations returns recent evaluation audit entries
func (h *Handler) HandleGetEvaluations(w http.ResponseWriter, r *http.Request) {
	limit := h.ParseLimitParam(r, 50)

	evals, err := h.app.GetEvaluations(r.Context(), limit)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	h.jsonResponse(w, evals)
}

// ValidateSymbol validates a security symbol
func (h *Handler) ValidateSymbol(symbol string) error {
	if symbol == "" {
		return fmt.Errorf("symbol is required")
	}

	if len(symbol) > 16 {
		return fmt.Errorf("symbol too long (max 16 characters)")
	}

	if !symbolPattern.MatchString(symbol) {
		return fmt.Errorf("invalid symbol format (alphanumeric, dots, slashes and dashes only)")
	}

	return nil
}

// ParseLimitParam parses the limit query parameter
func (h *Handler) ParseLimitParam(r *http.Request, defaultLimit int) int {
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 {
			return l
		}
	}
	return defaultLimit
}

// symbolParam reads and validates the {symbol} URL parameter
func (h *Handler) symbolParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	symbol := chi.URLParam(r, "symbol")
	return symbol, h.validSymbol(w, &symbol)
}

// validSymbol normalizes symbol in place, writing a 400 when it is invalid
func (h *Handler) validSymbol(w http.ResponseWriter, symbol *string) bool {
	*symbol = strings.ToUpper(strings.TrimSpace(*symbol))
	if err := h.ValidateSymbol(*symbol); err != nil {
		h.jsonError(w, err.Error(), http.StatusBadRequest)
		return false
	}
	return true
}

func (h *Handler) decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		h.jsonError(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return false
	}
	return true
}

// statusFor maps application errors onto HTTP status codes
func statusFor(err error) int {
	switch {
	case errors.Is(err, models.ErrSecurityNotFound),
		errors.Is(err, models.ErrAccountNotFound),
		errors.Is(err, models.ErrOrderNotFound):
		return http.StatusNotFound
	case errors.Is(err, app.ErrInvalidInput),
		errors.Is(err, models.ErrInvalidOrder),
		errors.Is(err, models.ErrUnknownFeeModel):
		return http.StatusBadRequest
	case errors.Is(err, app.ErrReadOnlySource):
		return http.StatusConflict
	case errors.Is(err, app.ErrBusy):
		return http.StatusTooManyRequests
	case errors.Is(err, models.ErrSnapshotUnavailable),
		errors.Is(err, app.ErrDatabaseUnavailable),
		errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) handleError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		observability.WithContext(r.Context()).Warn("request error", "status", status, "error", err)
	}
	h.jsonError(w, err.Error(), status)
}

func (h *Handler) jsonResponse(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func (h *Handler) jsonError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}

// StatusResponse represents a status response
type StatusResponse struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}
