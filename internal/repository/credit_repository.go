package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"habit-planner/internal/calendar"
	"habit-planner/internal/model"
)

// errNoCredit rolls back a Spend that has nothing to spend or nothing to cover.
var errNoCredit = errors.New("no credit to spend")

// CreditRepository persists break-credit balances and the days they covered.
// It satisfies reward.Ledger.
type CreditRepository struct {
	db *gorm.DB
}

func NewCreditRepository(db *gorm.DB) *CreditRepository {
	return &CreditRepository{db: db}
}

func (r *CreditRepository) Get(ctx context.Context, taskID uint) (int, error) {
	var ledger model.CreditLedger
	err := r.db.WithContext(ctx).Where("task_id = ?", taskID).First(&ledger).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return 0, nil
	case err != nil:
		return 0, fmt.Errorf("get credit ledger: %w", err)
	}
	return ledger.Balance, nil
}

// Set stores a new balance. Increases are also added to the earned total.
func (r *CreditRepository) Set(ctx context.Context, taskID uint, balance int) error {
	if balance < 0 {
		return fmt.Errorf("credit balance must not be negative, got %d", balance)
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var ledger model.CreditLedger
		err := tx.Where("task_id = ?", taskID).First(&ledger).Error
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("get credit ledger: %w", err)
		}
		if balance > ledger.Balance {
			ledger.Earned += balance - ledger.Balance
		}
		ledger.TaskID = taskID
		ledger.Balance = balance
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "task_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"balance", "earned", "updated_at"}),
		}).Create(&ledger).Error; err != nil {
			return fmt.Errorf("save credit ledger: %w", err)
		}
		return nil
	})
}

// Ledger returns the full ledger row, zero-valued when none exists.
func (r *CreditRepository) Ledger(ctx context.Context, taskID uint) (model.CreditLedger, error) {
	var ledger model.CreditLedger
	err := r.db.WithContext(ctx).Where("task_id = ?", taskID).First(&ledger).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return model.CreditLedger{}, fmt.Errorf("get credit ledger: %w", err)
	}
	ledger.TaskID = taskID
	return ledger, nil
}

// Spend records day as forgiven and takes one credit from the balance in a
// single transaction. It returns false, changing nothing, when the day is
// already forgiven or the balance is zero.
func (r *CreditRepository) Spend(ctx context.Context, taskID uint, day calendar.Date) (bool, error) {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&model.CreditUse{TaskID: taskID, Day: day})
		switch {
		case errors.Is(res.Error, gorm.ErrDuplicatedKey):
			return errNoCredit
		case res.Error != nil:
			return fmt.Errorf("record credit use: %w", res.Error)
		case res.RowsAffected == 0:
			return errNoCredit
		}

		res = tx.Model(&model.CreditLedger{}).
			Where("task_id = ? AND balance > 0", taskID).
			Update("balance", gorm.Expr("balance - 1"))
		switch {
		case res.Error != nil:
			return fmt.Errorf("consume credit: %w", res.Error)
		case res.RowsAffected == 0:
			return errNoCredit
		}
		return nil
	})
	switch {
	case errors.Is(err, errNoCredit):
		return false, nil
	case err != nil:
		return false, err
	}
	return true, nil
}

// ListForgiven returns the forgiven days of taskID, ascending.
func (r *CreditRepository) ListForgiven(ctx context.Context, taskID uint) ([]calendar.Date, error) {
	var uses []model.CreditUse
	if err := r.db.WithContext(ctx).Where("task_id = ?", taskID).Order("day ASC").Find(&uses).Error; err != nil {
		return nil, fmt.Errorf("list credit uses: %w", err)
	}
	days := make([]calendar.Date, 0, len(uses))
	for _, u := range uses {
		days = append(days, u.Day)
	}
	return days, nil
}
