package models

import (
	"context"
	"time"

	"bitbucket.org/mmdatafocus/leatherworks/config"
	"bitbucket.org/mmdatafocus/leatherworks/utils"
	"github.com/shopspring/decimal"
)

type NewMaterialIntake struct {
	MaterialId int              `json:"material_id" binding:"required"`
	VariantId  *int             `json:"variant_id"`
	Quantity   decimal.Decimal  `json:"quantity" binding:"required"`
	UnitPrice  *decimal.Decimal `json:"unit_price"`
	TotalPrice *decimal.Decimal `json:"total_price"`
	SupplierId *int             `json:"supplier_id"`
	Note       string           `json:"note"`
	ReceivedAt *time.Time       `json:"received_at"`
}

type NewMaterialConsumption struct {
	MaterialId int             `json:"material_id" binding:"required"`
	VariantId  *int            `json:"variant_id"`
	Quantity   decimal.Decimal `json:"quantity" binding:"required"`
	Note       string          `json:"note"`
	UsedAt     *time.Time      `json:"used_at"`
}

type NewInventoryCount struct {
	MaterialId int             `json:"material_id" binding:"required"`
	VariantId  *int            `json:"variant_id"`
	Counted    decimal.Decimal `json:"counted" binding:"required"`
	Note       string          `json:"note"`
}

// StockMutationResult is returned by direct stock operations so callers can
// confirm what moved and what is left.
type StockMutationResult struct {
	Movement *MaterialMovement `json:"movement"`
	Balance  decimal.Decimal   `json:"balance"`
}

// RecordMaterialIntake books incoming stock from a supplier.
func RecordMaterialIntake(ctx context.Context, input *NewMaterialIntake) (*StockMutationResult, error) {
	pool := StockPool{MaterialId: input.MaterialId, VariantId: input.VariantId}
	if input.SupplierId != nil {
		if err := utils.ValidateResourceId[Supplier](ctx, "supplier", *input.SupplierId); err != nil {
			return nil, err
		}
	}
	return postDirectMovement(ctx, "RecordMaterialIntake", &NewMaterialMovement{
		Pool:       pool,
		Kind:       MovementKindIntake,
		Quantity:   input.Quantity,
		UnitPrice:  input.UnitPrice,
		TotalPrice: input.TotalPrice,
		SupplierId: input.SupplierId,
		Note:       input.Note,
		Actor:      utils.ActorFromContext(ctx),
		MovedAt:    input.ReceivedAt,
	}, true)
}

// RecordMaterialConsumption writes stock off outside of a production stage.
func RecordMaterialConsumption(ctx context.Context, input *NewMaterialConsumption) (*StockMutationResult, error) {
	return postDirectMovement(ctx, "RecordMaterialConsumption", &NewMaterialMovement{
		Pool:     StockPool{MaterialId: input.MaterialId, VariantId: input.VariantId},
		Kind:     MovementKindConsumption,
		Quantity: input.Quantity,
		Note:     input.Note,
		Actor:    utils.ActorFromContext(ctx),
		MovedAt:  input.UsedAt,
	}, false)
}

// RecordInventoryCount sets a pool to a physically counted quantity by
// posting the difference as an inventory adjustment.
func RecordInventoryCount(ctx context.Context, input *NewInventoryCount) (*StockMutationResult, error) {
	if input.Counted.IsNegative() {
		return nil, utils.NewInvalidInput("counted", "cannot be negative")
	}
	pool := StockPool{MaterialId: input.MaterialId, VariantId: input.VariantId}
	logger := config.GetLogger()
	db := config.GetDB()

	tx := db.WithContext(ctx).Begin()
	current, err := LockBalance(tx, pool)
	if err != nil {
		tx.Rollback()
		return nil, err
	}
	delta := input.Counted.Sub(current)
	if delta.IsZero() {
		tx.Rollback()
		return &StockMutationResult{Balance: current}, nil
	}
	movement, err := PostMovement(tx, &NewMaterialMovement{
		Pool:     pool,
		Kind:     MovementKindInventoryAdjustment,
		Quantity: delta,
		Note:     input.Note,
		Actor:    utils.ActorFromContext(ctx),
	})
	if err != nil {
		tx.Rollback()
		config.LogError(logger, "MaterialStock", "RecordInventoryCount", "posting adjustment", input, err)
		return nil, err
	}
	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	InvalidateLowStockCache()
	return &StockMutationResult{Movement: movement, Balance: input.Counted}, nil
}

func postDirectMovement(ctx context.Context, funcName string, input *NewMaterialMovement, isIntake bool) (*StockMutationResult, error) {
	logger := config.GetLogger()
	db := config.GetDB()

	tx := db.WithContext(ctx).Begin()
	material, err := fetchMaterialWithCategory(tx, input.Pool.MaterialId)
	if err != nil {
		tx.Rollback()
		return nil, err
	}
	// intake into a material that has variants must name the variant too
	if isIntake {
		if err := checkConsumablePool(tx, input.Pool); err != nil {
			tx.Rollback()
			return nil, err
		}
	}
	if input.UnitPrice == nil && input.TotalPrice != nil && input.Quantity.IsPositive() {
		unitPrice := input.TotalPrice.DivRound(input.Quantity, 4)
		input.UnitPrice = &unitPrice
	}
	movement, err := PostMovement(tx, input)
	if err != nil {
		tx.Rollback()
		config.LogError(logger, "MaterialStock", funcName, "posting movement", map[string]any{
			"material_id": material.ID,
			"pool":        input.Pool.String(),
			"quantity":    input.Quantity.String(),
		}, err)
		return nil, err
	}
	balance, err := LockBalance(tx, input.Pool)
	if err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	InvalidateLowStockCache()
	return &StockMutationResult{Movement: movement, Balance: balance}, nil
}
