package models

import (
	"context"
	"time"

	"bitbucket.org/mmdatafocus/leatherworks/config"
	"bitbucket.org/mmdatafocus/leatherworks/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm/clause"
)

// PayPeriod ("oylik") is one closed batch of a worker's production events.
type PayPeriod struct {
	ID          int             `gorm:"primary_key" json:"id"`
	WorkerId    int             `gorm:"index;not null" json:"worker_id"`
	ClosedUntil time.Time       `gorm:"type:date;not null" json:"closed_until"`
	EventCount  int             `gorm:"not null" json:"event_count"`
	TotalAmount decimal.Decimal `gorm:"type:decimal(20,4);not null;default:0" json:"total_amount"`
	ClosedBy    string          `gorm:"size:100;default:null" json:"closed_by"`
	CreatedAt   time.Time       `gorm:"autoCreateTime" json:"created_at"`
}

// ClosePayPeriod flips the worker's open events up to and including until
// from new to closed and records their total.
func ClosePayPeriod(ctx context.Context, workerId int, until time.Time) (*PayPeriod, error) {
	logger := config.GetLogger()
	db := config.GetDB()
	if until.IsZero() {
		until = time.Now()
	}
	until = utils.DateOnly(until)

	tx := db.WithContext(ctx).Begin()
	if err := utils.ValidateResourceIdTx[Worker](tx, "worker", workerId); err != nil {
		tx.Rollback()
		return nil, err
	}
	var events []ProductionEvent
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Select("id", "total_amount").
		Where("worker_id = ? AND status = ? AND event_date <= ?", workerId, ProductionEventStatusNew, until).
		Find(&events).Error; err != nil {
		tx.Rollback()
		return nil, err
	}
	if len(events) == 0 {
		tx.Rollback()
		return nil, utils.NewInvalidInput("worker_id", "no open production events to close")
	}
	period := PayPeriod{
		WorkerId:    workerId,
		ClosedUntil: until,
		EventCount:  len(events),
		TotalAmount: decimal.Zero,
		ClosedBy:    utils.ActorFromContext(ctx),
	}
	ids := make([]int, 0, len(events))
	for _, e := range events {
		period.TotalAmount = period.TotalAmount.Add(e.TotalAmount)
		ids = append(ids, e.ID)
	}
	if err := tx.Create(&period).Error; err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.Model(&ProductionEvent{}).Where("id IN ?", ids).Updates(map[string]interface{}{
		"status":        ProductionEventStatusClosed,
		"pay_period_id": period.ID,
	}).Error; err != nil {
		tx.Rollback()
		config.LogError(logger, "Payroll", "ClosePayPeriod", "closing events", map[string]any{"worker_id": workerId}, err)
		return nil, err
	}
	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	return &period, nil
}

// ProductEarnings is one product's share of a worker's open events.
type ProductEarnings struct {
	ProductId   int             `json:"product_id"`
	ProductName string          `json:"product_name"`
	Quantity    int             `json:"quantity"`
	Amount      decimal.Decimal `json:"amount"`
}

// WorkerEarnings is what a worker is owed for events not yet closed into a pay period.
type WorkerEarnings struct {
	WorkerId    int               `json:"worker_id"`
	EventCount  int               `json:"event_count"`
	Quantity    int               `json:"quantity"`
	TotalAmount decimal.Decimal   `json:"total_amount"`
	Products    []ProductEarnings `json:"products"`
}

// GetWorkerEarnings groups the worker's open events by product.
func GetWorkerEarnings(ctx context.Context, workerId int) (*WorkerEarnings, error) {
	if err := utils.ValidateResourceId[Worker](ctx, "worker", workerId); err != nil {
		return nil, err
	}
	var rows []struct {
		ProductEarnings
		EventCount int
	}
	err := config.GetDB().WithContext(ctx).Model(&ProductionEvent{}).
		Select(`production_events.product_id, products.name AS product_name,
			COUNT(*) AS event_count,
			COALESCE(SUM(production_events.quantity), 0) AS quantity,
			COALESCE(SUM(production_events.total_amount), 0) AS amount`).
		Joins("JOIN products ON products.id = production_events.product_id").
		Where("production_events.worker_id = ? AND production_events.status = ?", workerId, ProductionEventStatusNew).
		Group("production_events.product_id, products.name").
		Order("products.name").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	earnings := WorkerEarnings{WorkerId: workerId, TotalAmount: decimal.Zero, Products: []ProductEarnings{}}
	for _, row := range rows {
		earnings.EventCount += row.EventCount
		earnings.Quantity += row.Quantity
		earnings.TotalAmount = earnings.TotalAmount.Add(row.Amount)
		earnings.Products = append(earnings.Products, row.ProductEarnings)
	}
	return &earnings, nil
}
