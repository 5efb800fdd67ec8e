package reward

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"habit-planner/internal/calendar"
)

func TestDetectMilestone(t *testing.T) {
	tests := []struct {
		prev, next int
		want       int
		ok         bool
	}{
		{6, 7, 7, true},
		{7, 7, 0, false},
		{7, 8, 0, false},
		{0, 15, 14, true},
		{13, 40, 30, true},
		{364, 365, 365, true},
		{999, 1000, 1000, true},
		{1000, 1099, 0, false},
		{1099, 1100, 1100, true},
		{1050, 1250, 1200, true},
		{10, 3, 0, false},
	}
	for _, tt := range tests {
		got, ok := DetectMilestone(tt.prev, tt.next)
		assert.Equal(t, tt.ok, ok, "%d -> %d", tt.prev, tt.next)
		assert.Equal(t, tt.want, got, "%d -> %d", tt.prev, tt.next)
	}
}

func TestDetectMilestoneNeverFiresWithoutChange(t *testing.T) {
	for n := 0; n <= 1500; n++ {
		_, ok := DetectMilestone(n, n)
		require.False(t, ok, "streak %d", n)
	}
}

func TestThresholds(t *testing.T) {
	assert.Equal(t, []int{7, 14, 30}, Thresholds(40))
	assert.Equal(t, []int{7, 14, 30, 50, 100, 365, 500, 1000, 1100, 1200}, Thresholds(1250))
	assert.Empty(t, Thresholds(6))

	assert.True(t, IsThreshold(365))
	assert.True(t, IsThreshold(1300))
	assert.False(t, IsThreshold(200))
	assert.False(t, IsThreshold(1150))
}

func TestCreditsEarned(t *testing.T) {
	assert.Equal(t, 1, CreditsEarned(6, 7))
	assert.Equal(t, 0, CreditsEarned(7, 8))
	assert.Equal(t, 2, CreditsEarned(0, 14))
	assert.Equal(t, 0, CreditsEarned(14, 3))
	assert.Equal(t, 0, CreditsEarned(5, 5))
}

func TestCreditManagerAccrueAndConsume(t *testing.T) {
	ctx := context.Background()
	mgr := NewCreditManager(NewMemoryLedger())

	granted, err := mgr.Accrue(ctx, 1, 6, 7)
	require.NoError(t, err)
	assert.Equal(t, 1, granted)

	balance, err := mgr.Balance(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, balance)

	// Re-crossing nothing grants nothing.
	granted, err = mgr.Accrue(ctx, 1, 7, 7)
	require.NoError(t, err)
	assert.Zero(t, granted)

	ok, err := mgr.Consume(ctx, 1)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = mgr.Consume(ctx, 1)
	require.NoError(t, err)
	assert.False(t, ok)

	balance, err = mgr.Balance(ctx, 1)
	require.NoError(t, err)
	assert.Zero(t, balance)
}

// plainLedger has no TryConsume so the manager falls back to Get/Set.
type plainLedger struct {
	balances map[uint]int
}

func (l *plainLedger) Get(_ context.Context, taskID uint) (int, error) {
	return l.balances[taskID], nil
}

func (l *plainLedger) Set(_ context.Context, taskID uint, balance int) error {
	l.balances[taskID] = balance
	return nil
}

func TestCreditManagerWithPlainLedger(t *testing.T) {
	ctx := context.Background()
	ledger := &plainLedger{balances: map[uint]int{3: 1}}
	mgr := NewCreditManager(ledger)

	ok, err := mgr.Consume(ctx, 3)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = mgr.Consume(ctx, 3)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Zero(t, ledger.balances[3])
}

// dayLedger records covered days next to the balance.
type dayLedger struct {
	plainLedger
	covered map[calendar.Date]bool
}

func (l *dayLedger) Spend(_ context.Context, taskID uint, day calendar.Date) (bool, error) {
	if l.covered[day] || l.balances[taskID] == 0 {
		return false, nil
	}
	l.covered[day] = true
	l.balances[taskID]--
	return true, nil
}

func TestCreditManagerSpend(t *testing.T) {
	ctx := context.Background()
	monday := calendar.MustParse("2024-01-08")

	ledger := &dayLedger{plainLedger: plainLedger{balances: map[uint]int{1: 2}}, covered: map[calendar.Date]bool{}}
	mgr := NewCreditManager(ledger)
	ok, err := mgr.Spend(ctx, 1, monday)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = mgr.Spend(ctx, 1, monday)
	require.NoError(t, err)
	assert.False(t, ok, "a covered day is not paid for twice")
	assert.Equal(t, 1, ledger.balances[1])

	// Without day records only the balance guards the spend.
	plain := &plainLedger{balances: map[uint]int{1: 1}}
	mgr = NewCreditManager(plain)
	ok, err = mgr.Spend(ctx, 1, monday)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = mgr.Spend(ctx, 1, monday.AddDays(1))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryLedgerNeverGoesNegative(t *testing.T) {
	ctx := context.Background()
	ledger := NewMemoryLedger()
	require.NoError(t, ledger.Set(ctx, 1, 5))
	assert.Error(t, ledger.Set(ctx, 1, -1))

	mgr := NewCreditManager(ledger)
	var wg sync.WaitGroup
	var mu sync.Mutex
	spent := 0
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := mgr.Consume(ctx, 1)
			assert.NoError(t, err)
			if ok {
				mu.Lock()
				spent++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 5, spent)
	balance, err := ledger.Get(ctx, 1)
	require.NoError(t, err)
	assert.Zero(t, balance)
}
