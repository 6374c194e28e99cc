package models

import (
	"context"
	"strings"
	"time"

	"bitbucket.org/mmdatafocus/leatherworks/config"
	"bitbucket.org/mmdatafocus/leatherworks/utils"
	"github.com/shopspring/decimal"
)

// ExpenseCategory ("chiqim turi") groups workshop overheads such as rent or electricity.
type ExpenseCategory struct {
	ID        int       `gorm:"primary_key" json:"id"`
	Name      string    `gorm:"size:200;not null;uniqueIndex" json:"name"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

type NewExpenseCategory struct {
	Name string `json:"name" binding:"required"`
}

// Expense ("chiqim") is money spent outside material intake.
type Expense struct {
	ID          int              `gorm:"primary_key" json:"id"`
	Name        string           `gorm:"size:500;not null" json:"name"`
	CategoryId  *int             `gorm:"index" json:"category_id"`
	Category    *ExpenseCategory `gorm:"foreignKey:CategoryId" json:"category,omitempty"`
	Amount      decimal.Decimal  `gorm:"type:decimal(20,4);not null" json:"amount"`
	ExpenseDate time.Time        `gorm:"type:date;not null;index" json:"expense_date"`
	CreatedBy   string           `gorm:"size:100;default:null" json:"created_by"`
	CreatedAt   time.Time        `gorm:"autoCreateTime" json:"created_at"`
}

type NewExpense struct {
	Name        string          `json:"name" binding:"required"`
	CategoryId  *int            `json:"category_id"`
	Amount      decimal.Decimal `json:"amount"`
	ExpenseDate *time.Time      `json:"expense_date"`
}

type ExpenseFilter struct {
	CategoryId *int       `form:"category_id"`
	FromDate   *time.Time `form:"from_date" time_format:"2006-01-02"`
	ToDate     *time.Time `form:"to_date" time_format:"2006-01-02"`
}

// ExpenseTotals sums expenses for the day, the calendar month and all time.
type ExpenseTotals struct {
	Today decimal.Decimal `json:"today"`
	Month decimal.Decimal `json:"month"`
	Total decimal.Decimal `json:"total"`
}

func (input *NewExpense) validate() error {
	if strings.TrimSpace(input.Name) == "" {
		return utils.NewInvalidInput("name", "is required")
	}
	if !input.Amount.IsPositive() {
		return utils.NewInvalidInput("amount", "must be positive")
	}
	return nil
}

func CreateExpenseCategory(ctx context.Context, input *NewExpenseCategory) (*ExpenseCategory, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, utils.NewInvalidInput("name", "is required")
	}
	category := ExpenseCategory{Name: name}
	if err := config.GetDB().WithContext(ctx).Create(&category).Error; err != nil {
		if utils.IsDuplicateKeyError(err) {
			return nil, utils.NewInvalidInput("name", "expense category already exists")
		}
		return nil, err
	}
	return &category, nil
}

func ListExpenseCategories(ctx context.Context) ([]*ExpenseCategory, error) {
	return utils.FetchAllModels[ExpenseCategory](ctx)
}

func CreateExpense(ctx context.Context, input *NewExpense) (*Expense, error) {
	if err := input.validate(); err != nil {
		return nil, err
	}
	if input.CategoryId != nil {
		if err := utils.ValidateResourceId[ExpenseCategory](ctx, "expense category", *input.CategoryId); err != nil {
			return nil, err
		}
	}
	expenseDate := time.Now()
	if input.ExpenseDate != nil {
		expenseDate = *input.ExpenseDate
	}
	expense := Expense{
		Name:        strings.TrimSpace(input.Name),
		CategoryId:  input.CategoryId,
		Amount:      input.Amount,
		ExpenseDate: utils.DateOnly(expenseDate),
		CreatedBy:   utils.ActorFromContext(ctx),
	}
	if err := config.GetDB().WithContext(ctx).Create(&expense).Error; err != nil {
		config.LogError(config.GetLogger(), "Expense", "CreateExpense", "creating expense", input, err)
		return nil, err
	}
	return &expense, nil
}

func DeleteExpense(ctx context.Context, id int) error {
	result := config.GetDB().WithContext(ctx).Delete(&Expense{}, id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return utils.NewNotFound("expense", id)
	}
	return nil
}

// ListExpenses returns expenses newest first.
func ListExpenses(ctx context.Context, filter ExpenseFilter) ([]*Expense, error) {
	dbCtx := config.GetDB().WithContext(ctx).Preload("Category")
	if filter.CategoryId != nil {
		dbCtx = dbCtx.Where("category_id = ?", *filter.CategoryId)
	}
	if filter.FromDate != nil {
		dbCtx = dbCtx.Where("expense_date >= ?", utils.DateOnly(*filter.FromDate))
	}
	if filter.ToDate != nil {
		dbCtx = dbCtx.Where("expense_date <= ?", utils.DateOnly(*filter.ToDate))
	}
	var expenses []*Expense
	if err := dbCtx.Order("expense_date DESC, id DESC").Limit(maxPageLimit).Find(&expenses).Error; err != nil {
		return nil, err
	}
	return expenses, nil
}

// MonthStart is midnight on the first day of t's month.
func MonthStart(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
}

// GetExpenseTotals sums expenses dated on asOf's day, in its calendar month and overall.
func GetExpenseTotals(ctx context.Context, asOf time.Time) (*ExpenseTotals, error) {
	today := utils.DateOnly(asOf)
	totals := ExpenseTotals{}
	err := config.GetDB().WithContext(ctx).Model(&Expense{}).
		Select(`COALESCE(SUM(CASE WHEN expense_date = ? THEN amount ELSE 0 END), 0) AS today,
			COALESCE(SUM(CASE WHEN expense_date >= ? AND expense_date < ? THEN amount ELSE 0 END), 0) AS month,
			COALESCE(SUM(amount), 0) AS total`,
			today, MonthStart(today), MonthStart(today).AddDate(0, 1, 0)).
		Scan(&totals).Error
	if err != nil {
		return nil, err
	}
	return &totals, nil
}
