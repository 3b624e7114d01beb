package models

import (
	"time"

	"github.com/google/uuid"
)

// Evaluation is an audit record of one buying power query.
type Evaluation struct {
	ID         uuid.UUID              `json:"id"`
	AccountID  string                 `json:"account_id"`
	Operation  EvaluationOperation    `json:"operation"`
	Symbol     string                 `json:"symbol"`
	InputData  map[string]interface{} `json:"input_data,omitempty"`
	Result     string                 `json:"result"`
	Error      string                 `json:"error,omitempty"`
	DurationMs int                    `json:"duration_ms"`
	CreatedAt  time.Time              `json:"created_at"`
}

type EvaluationOperation string

const (
	OperationCanAfford            EvaluationOperation = "can_afford"
	OperationMaxQuantity          EvaluationOperation = "max_quantity"
	OperationAvailableBuyingPower EvaluationOperation = "available_buying_power"
	OperationReservedForPosition  EvaluationOperation = "reserved_for_position"
	OperationLeverage             EvaluationOperation = "leverage"
	OperationSetLeverage          EvaluationOperation = "set_leverage"
)

func NewEvaluation(accountID string, op EvaluationOperation, symbol string, input map[string]interface{}) *Evaluation {
	return &Evaluation{
		ID:        uuid.New(),
		AccountID: accountID,
		Operation: op,
		Symbol:    symbol,
		InputData: input,
		CreatedAt: time.Now(),
	}
}

// Complete stamps the result and elapsed time.
func (e *Evaluation) Complete(result string) {
	e.Result = result
	e.DurationMs = int(time.Since(e.CreatedAt).Milliseconds())
}

func (e *Evaluation) Fail(err error) {
	e.Error = err.Error()
	e.DurationMs = int(time.Since(e.CreatedAt).Milliseconds())
}
