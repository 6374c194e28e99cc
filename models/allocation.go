package models

import (
	"context"
	"fmt"
	"strings"
	"time"

	"bitbucket.org/mmdatafocus/leatherworks/config"
	"bitbucket.org/mmdatafocus/leatherworks/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// WorkerAllocation ("taminlash") is a batch of real materials issued to a
// worker ahead of use. Issued stock leaves the ledger immediately.
type WorkerAllocation struct {
	ID             int              `gorm:"primary_key" json:"id"`
	WorkerId       int              `gorm:"index;not null" json:"worker_id"`
	Worker         *Worker          `gorm:"foreignKey:WorkerId" json:"worker,omitempty"`
	AllocationDate time.Time        `gorm:"type:date;not null" json:"allocation_date"`
	Note           string           `gorm:"type:text;default:null" json:"note"`
	Status         AllocationStatus `gorm:"type:enum('active','returned','completed');not null;default:'active'" json:"status"`
	Items          []AllocationItem `gorm:"foreignKey:AllocationId" json:"items"`
	CreatedBy      string           `gorm:"size:100;default:null" json:"created_by"`
	CreatedAt      time.Time        `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time        `gorm:"autoUpdateTime" json:"updated_at"`
}

// AllocationItem keeps Quantity = ConsumedQty + ReturnedQty + RemainingQty.
type AllocationItem struct {
	ID           int             `gorm:"primary_key" json:"id"`
	AllocationId int             `gorm:"index;not null" json:"allocation_id"`
	MaterialId   int             `gorm:"index;not null" json:"material_id"`
	VariantId    *int            `gorm:"index" json:"variant_id"`
	Quantity     decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"quantity"`
	UnitPrice    decimal.Decimal `gorm:"type:decimal(20,4);not null;default:0" json:"unit_price"`
	ConsumedQty  decimal.Decimal `gorm:"type:decimal(20,4);not null;default:0" json:"consumed_qty"`
	ReturnedQty  decimal.Decimal `gorm:"type:decimal(20,4);not null;default:0" json:"returned_qty"`
	RemainingQty decimal.Decimal `gorm:"type:decimal(20,4);not null;default:0" json:"remaining_qty"`
	CreatedAt    time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewAllocation struct {
	WorkerId       int                 `json:"worker_id" binding:"required"`
	AllocationDate time.Time           `json:"allocation_date"`
	Note           string              `json:"note"`
	Items          []NewAllocationItem `json:"items" binding:"required,min=1,dive"`
}

type NewAllocationItem struct {
	MaterialId int              `json:"material_id" binding:"required"`
	VariantId  *int             `json:"variant_id"`
	Quantity   decimal.Decimal  `json:"quantity" binding:"required"`
	UnitPrice  *decimal.Decimal `json:"unit_price"`
}

func (item *AllocationItem) Pool() StockPool {
	return StockPool{MaterialId: item.MaterialId, VariantId: item.VariantId}
}

// AllocationReturnResult reports what went back to stock.
type AllocationReturnResult struct {
	Allocation *WorkerAllocation   `json:"allocation"`
	Restored   decimal.Decimal     `json:"restored"`
	Movements  []*MaterialMovement `json:"movements"`
	Message    string              `json:"message,omitempty"`
}

func (input *NewAllocation) validate() error {
	if input.WorkerId <= 0 {
		return utils.NewInvalidInput("worker_id", "is required")
	}
	if len(input.Items) == 0 {
		return utils.NewInvalidInput("items", "at least one item is required")
	}
	for i, item := range input.Items {
		if !item.Quantity.IsPositive() {
			return utils.NewInvalidInput(fmt.Sprintf("items[%d].quantity", i), "must be greater than zero")
		}
		if item.UnitPrice != nil && item.UnitPrice.IsNegative() {
			return utils.NewInvalidInput(fmt.Sprintf("items[%d].unit_price", i), "cannot be negative")
		}
	}
	return nil
}

// IssueAllocation issues every line or none. Each line is taken out of its
// pool through a provisioning movement.
func IssueAllocation(ctx context.Context, input *NewAllocation) (*WorkerAllocation, error) {
	if err := input.validate(); err != nil {
		return nil, err
	}
	logger := config.GetLogger()
	db := config.GetDB()
	actor := utils.ActorFromContext(ctx)
	allocDate := input.AllocationDate
	if allocDate.IsZero() {
		allocDate = time.Now()
	}

	tx := db.WithContext(ctx).Begin()
	if err := utils.ValidateResourceIdTx[Worker](tx, "worker", input.WorkerId); err != nil {
		tx.Rollback()
		return nil, err
	}
	allocation := WorkerAllocation{
		WorkerId:       input.WorkerId,
		AllocationDate: utils.DateOnly(allocDate),
		Note:           strings.TrimSpace(input.Note),
		Status:         AllocationStatusActive,
		CreatedBy:      actor,
	}
	if err := tx.Create(&allocation).Error; err != nil {
		tx.Rollback()
		return nil, err
	}

	for _, line := range input.Items {
		pool := StockPool{MaterialId: line.MaterialId, VariantId: line.VariantId}
		material, err := fetchMaterialWithCategory(tx, line.MaterialId)
		if err != nil {
			tx.Rollback()
			return nil, err
		}
		if material.Kind() != MaterialCategoryReal {
			tx.Rollback()
			return nil, utils.NewInvalidInput("material_id", fmt.Sprintf("material #%d is not a real material", material.ID))
		}
		item := AllocationItem{
			AllocationId: allocation.ID,
			MaterialId:   line.MaterialId,
			VariantId:    line.VariantId,
			Quantity:     line.Quantity,
			RemainingQty: line.Quantity,
		}
		if err := tx.Create(&item).Error; err != nil {
			tx.Rollback()
			return nil, err
		}
		movement, err := PostMovement(tx, &NewMaterialMovement{
			Pool:          pool,
			Kind:          MovementKindProvisioning,
			Quantity:      line.Quantity,
			UnitPrice:     line.UnitPrice,
			ReferenceType: ReferenceTypeAllocationItem,
			ReferenceId:   &item.ID,
			Note:          fmt.Sprintf("issued to worker #%d", input.WorkerId),
			Actor:         actor,
			MovedAt:       &allocation.AllocationDate,
		})
		if err != nil {
			tx.Rollback()
			config.LogError(logger, "Allocation", "IssueAllocation", "provisioning line", map[string]any{
				"worker_id": input.WorkerId,
				"pool":      pool.String(),
				"quantity":  line.Quantity.String(),
			}, err)
			return nil, err
		}
		if err := tx.Model(&item).Update("unit_price", movement.UnitPrice).Error; err != nil {
			tx.Rollback()
			return nil, err
		}
		item.UnitPrice = movement.UnitPrice
		allocation.Items = append(allocation.Items, item)
	}

	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	InvalidateLowStockCache()
	return &allocation, nil
}

func lockAllocation(tx *gorm.DB, id int) (*WorkerAllocation, error) {
	var allocation WorkerAllocation
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&allocation, id).Error; err != nil {
		return nil, utils.NotFoundOr(err, "allocation", id)
	}
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("allocation_id = ?", id).Order("id").Find(&allocation.Items).Error; err != nil {
		return nil, err
	}
	return &allocation, nil
}

// returnItem puts qty of an item back into its pool and updates its counters.
func returnItem(tx *gorm.DB, item *AllocationItem, qty decimal.Decimal, actor string) (*MaterialMovement, error) {
	movement, err := PostMovement(tx, &NewMaterialMovement{
		Pool:          item.Pool(),
		Kind:          MovementKindReturn,
		Quantity:      qty,
		UnitPrice:     &item.UnitPrice,
		ReferenceType: ReferenceTypeAllocationItem,
		ReferenceId:   &item.ID,
		Note:          fmt.Sprintf("returned from allocation #%d", item.AllocationId),
		Actor:         actor,
	})
	if err != nil {
		return nil, err
	}
	item.ReturnedQty = item.ReturnedQty.Add(qty)
	item.RemainingQty = item.RemainingQty.Sub(qty)
	if err := tx.Model(item).Updates(map[string]interface{}{
		"returned_qty":  item.ReturnedQty,
		"remaining_qty": item.RemainingQty,
	}).Error; err != nil {
		return nil, err
	}
	return movement, nil
}

// NextAllocationStatus decides the status once no item has anything left.
// Anything returned makes it returned; fully consumed makes it completed.
func NextAllocationStatus(items []AllocationItem, current AllocationStatus) AllocationStatus {
	anyReturned := false
	for _, item := range items {
		if item.RemainingQty.IsPositive() {
			return current
		}
		if item.ReturnedQty.IsPositive() {
			anyReturned = true
		}
	}
	if anyReturned {
		return AllocationStatusReturned
	}
	return AllocationStatusCompleted
}

func setAllocationStatus(tx *gorm.DB, allocation *WorkerAllocation, status AllocationStatus) error {
	if allocation.Status == status {
		return nil
	}
	allocation.Status = status
	return tx.Model(&WorkerAllocation{}).Where("id = ?", allocation.ID).Update("status", status).Error
}

// ReturnAllocation gives every item's remaining quantity back to stock and
// marks the allocation returned. Consumed quantity stays consumed. When
// nothing remains the call changes nothing and says so in Message.
func ReturnAllocation(ctx context.Context, allocationId int) (*AllocationReturnResult, error) {
	logger := config.GetLogger()
	db := config.GetDB()
	actor := utils.ActorFromContext(ctx)

	tx := db.WithContext(ctx).Begin()
	allocation, err := lockAllocation(tx, allocationId)
	if err != nil {
		tx.Rollback()
		return nil, err
	}
	result := &AllocationReturnResult{Allocation: allocation, Restored: decimal.Zero}
	for i := range allocation.Items {
		item := &allocation.Items[i]
		if !item.RemainingQty.IsPositive() {
			continue
		}
		qty := item.RemainingQty
		movement, err := returnItem(tx, item, qty, actor)
		if err != nil {
			tx.Rollback()
			config.LogError(logger, "Allocation", "ReturnAllocation", "returning item", item, err)
			return nil, err
		}
		result.Restored = result.Restored.Add(qty)
		result.Movements = append(result.Movements, movement)
	}
	if len(result.Movements) == 0 {
		tx.Rollback()
		result.Message = "nothing left to return"
		return result, nil
	}
	if err := setAllocationStatus(tx, allocation, AllocationStatusReturned); err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	InvalidateLowStockCache()
	return result, nil
}

// ReturnAllocationItem returns part of one item. The allocation flips to
// returned once no item has anything remaining.
func ReturnAllocationItem(ctx context.Context, itemId int, qty decimal.Decimal) (*AllocationReturnResult, error) {
	if !qty.IsPositive() {
		return nil, utils.NewInvalidInput("quantity", "must be greater than zero")
	}
	actor := utils.ActorFromContext(ctx)
	return mutateAllocationItem(ctx, "ReturnAllocationItem", itemId, func(tx *gorm.DB, allocation *WorkerAllocation, item *AllocationItem) (*AllocationReturnResult, error) {
		if qty.GreaterThan(item.RemainingQty) {
			return nil, utils.NewInvalidInput("quantity", fmt.Sprintf("cannot exceed remaining %s", item.RemainingQty.String()))
		}
		movement, err := returnItem(tx, item, qty, actor)
		if err != nil {
			return nil, err
		}
		return &AllocationReturnResult{Allocation: allocation, Restored: qty, Movements: []*MaterialMovement{movement}}, nil
	})
}

// ConsumeAllocationItem marks part of an item as used in production. Stock
// is untouched; it already left the ledger when the item was issued.
func ConsumeAllocationItem(ctx context.Context, itemId int, qty decimal.Decimal) (*AllocationReturnResult, error) {
	if !qty.IsPositive() {
		return nil, utils.NewInvalidInput("quantity", "must be greater than zero")
	}
	return mutateAllocationItem(ctx, "ConsumeAllocationItem", itemId, func(tx *gorm.DB, allocation *WorkerAllocation, item *AllocationItem) (*AllocationReturnResult, error) {
		if qty.GreaterThan(item.RemainingQty) {
			return nil, utils.NewInvalidInput("quantity", fmt.Sprintf("cannot exceed remaining %s", item.RemainingQty.String()))
		}
		item.ConsumedQty = item.ConsumedQty.Add(qty)
		item.RemainingQty = item.RemainingQty.Sub(qty)
		if err := tx.Model(item).Updates(map[string]interface{}{
			"consumed_qty":  item.ConsumedQty,
			"remaining_qty": item.RemainingQty,
		}).Error; err != nil {
			return nil, err
		}
		return &AllocationReturnResult{Allocation: allocation, Restored: decimal.Zero}, nil
	})
}

func mutateAllocationItem(ctx context.Context, funcName string, itemId int, fn func(*gorm.DB, *WorkerAllocation, *AllocationItem) (*AllocationReturnResult, error)) (*AllocationReturnResult, error) {
	logger := config.GetLogger()
	db := config.GetDB()

	tx := db.WithContext(ctx).Begin()
	var ref AllocationItem
	if err := tx.Select("id", "allocation_id").First(&ref, itemId).Error; err != nil {
		tx.Rollback()
		return nil, utils.NotFoundOr(err, "allocation item", itemId)
	}
	allocation, err := lockAllocation(tx, ref.AllocationId)
	if err != nil {
		tx.Rollback()
		return nil, err
	}
	var item *AllocationItem
	for i := range allocation.Items {
		if allocation.Items[i].ID == itemId {
			item = &allocation.Items[i]
		}
	}
	if item == nil {
		tx.Rollback()
		return nil, utils.NewNotFound("allocation item", itemId)
	}
	result, err := fn(tx, allocation, item)
	if err != nil {
		tx.Rollback()
		config.LogError(logger, "Allocation", funcName, "updating item", map[string]any{"item_id": itemId}, err)
		return nil, err
	}
	if err := setAllocationStatus(tx, allocation, NextAllocationStatus(allocation.Items, allocation.Status)); err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	InvalidateLowStockCache()
	return result, nil
}

func GetAllocation(ctx context.Context, id int) (*WorkerAllocation, error) {
	return utils.FetchModel[WorkerAllocation](ctx, "allocation", id, "Items")
}
