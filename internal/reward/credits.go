// Package reward handles break credits and streak milestones.
package reward

import (
	"context"
	"fmt"
	"sync"

	"habit-planner/internal/calendar"
)

// CreditEvery is the number of consecutive streak intervals that earn one
// break credit.
const CreditEvery = 7

// Ledger stores the break-credit balance per task.
type Ledger interface {
	Get(ctx context.Context, taskID uint) (int, error)
	Set(ctx context.Context, taskID uint, balance int) error
}

// atomicConsumer is implemented by ledgers that can decrement a positive
// balance in one step.
type atomicConsumer interface {
	TryConsume(ctx context.Context, taskID uint) (bool, error)
}

// daySpender is implemented by ledgers that record the covered day together
// with the decrement, all or nothing.
type daySpender interface {
	Spend(ctx context.Context, taskID uint, day calendar.Date) (bool, error)
}

// CreditsEarned is the number of credits granted when a streak moves from
// prev to next: one per multiple of CreditEvery crossed.
func CreditsEarned(prev, next int) int {
	if next <= prev {
		return 0
	}
	return max(next/CreditEvery-max(prev, 0)/CreditEvery, 0)
}

// CreditManager grants and spends break credits on top of a Ledger.
type CreditManager struct {
	ledger Ledger
}

func NewCreditManager(ledger Ledger) *CreditManager {
	return &CreditManager{ledger: ledger}
}

// Balance returns the current balance of taskID.
func (m *CreditManager) Balance(ctx context.Context, taskID uint) (int, error) {
	balance, err := m.ledger.Get(ctx, taskID)
	if err != nil {
		return 0, fmt.Errorf("get credit balance for task %d: %w", taskID, err)
	}
	return balance, nil
}

// Accrue grants the credits earned by moving from prevStreak to newStreak
// and returns how many were granted.
func (m *CreditManager) Accrue(ctx context.Context, taskID uint, prevStreak, newStreak int) (int, error) {
	granted := CreditsEarned(prevStreak, newStreak)
	if granted == 0 {
		return 0, nil
	}
	balance, err := m.Balance(ctx, taskID)
	if err != nil {
		return 0, err
	}
	if err := m.ledger.Set(ctx, taskID, balance+granted); err != nil {
		return 0, fmt.Errorf("grant credits for task %d: %w", taskID, err)
	}
	return granted, nil
}

// Consume spends one credit. It returns false, and changes nothing, when the
// balance is zero.
func (m *CreditManager) Consume(ctx context.Context, taskID uint) (bool, error) {
	if c, ok := m.ledger.(atomicConsumer); ok {
		return c.TryConsume(ctx, taskID)
	}
	balance, err := m.Balance(ctx, taskID)
	if err != nil {
		return false, err
	}
	if balance <= 0 {
		return false, nil
	}
	if err := m.ledger.Set(ctx, taskID, balance-1); err != nil {
		return false, fmt.Errorf("consume credit for task %d: %w", taskID, err)
	}
	return true, nil
}

// Spend spends one credit to cover day. Ledgers that track covered days
// refuse a day twice; others only guard the balance.
func (m *CreditManager) Spend(ctx context.Context, taskID uint, day calendar.Date) (bool, error) {
	sp, ok := m.ledger.(daySpender)
	if !ok {
		return m.Consume(ctx, taskID)
	}
	spent, err := sp.Spend(ctx, taskID, day)
	if err != nil {
		return false, fmt.Errorf("spend credit for task %d on %s: %w", taskID, day, err)
	}
	return spent, nil
}

// MemoryLedger is an in-process Ledger, suitable for a single invocation or
// for tests.
type MemoryLedger struct {
	mu       sync.Mutex
	balances map[uint]int
}

func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{balances: make(map[uint]int)}
}

func (l *MemoryLedger) Get(_ context.Context, taskID uint) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.balances[taskID], nil
}

func (l *MemoryLedger) Set(_ context.Context, taskID uint, balance int) error {
	if balance < 0 {
		return fmt.Errorf("credit balance must not be negative, got %d", balance)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.balances[taskID] = balance
	return nil
}

func (l *MemoryLedger) TryConsume(_ context.Context, taskID uint) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.balances[taskID] <= 0 {
		return false, nil
	}
	l.balances[taskID]--
	return true, nil
}
