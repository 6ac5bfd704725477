// =============================================
// File: internal/task/task.go
// =============================================
package task

import (
	"fmt"
	"math/big"
	"time"
)

// OperationType defines the supported operation types
type OperationType string

const (
	OperationBuy  OperationType = "buy"
	OperationSell OperationType = "sell"
)

// Task is one trade instruction from the YAML task file. Amount is a
// decimal string in base units for buys and token units for sells.
type Task struct {
	ID          int
	TaskName    string
	WalletName  string
	Operation   OperationType
	Token       string
	Amount      string
	SlippageBps uint64
	CreatedAt   time.Time
}

// NewTask creates a properly initialized task
func NewTask(name, walletName string, op OperationType, token, amount string, slippageBps uint64) *Task {
	return &Task{
		TaskName:    name,
		WalletName:  walletName,
		Operation:   op,
		Token:       token,
		Amount:      amount,
		SlippageBps: slippageBps,
		CreatedAt:   time.Now(),
	}
}

// Validate checks if the task has valid parameters
func (t *Task) Validate() error {
	if t.TaskName == "" {
		return fmt.Errorf("task name cannot be empty")
	}
	if t.WalletName == "" {
		return fmt.Errorf("wallet name cannot be empty")
	}
	if t.Token == "" {
		return fmt.Errorf("token address cannot be empty")
	}

	switch t.Operation {
	case OperationBuy, OperationSell:
	default:
		return fmt.Errorf("invalid operation: %s", t.Operation)
	}

	amount, ok := new(big.Int).SetString(t.Amount, 10)
	if !ok || amount.Sign() <= 0 {
		return fmt.Errorf("amount must be a positive integer, got %q", t.Amount)
	}

	if t.SlippageBps >= 10_000 {
		return fmt.Errorf("slippage must be below 10000 bps, got %d", t.SlippageBps)
	}
	return nil
}

// AmountInt returns the parsed amount. Call Validate first.
func (t *Task) AmountInt() *big.Int {
	amount, _ := new(big.Int).SetString(t.Amount, 10)
	return amount
}
