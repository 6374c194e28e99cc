package models

import (
	"context"
	"fmt"
	"sort"

	"bitbucket.org/mmdatafocus/leatherworks/config"
	"bitbucket.org/mmdatafocus/leatherworks/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// StockPool addresses one balance: a material's own quantity, or one of its variants.
type StockPool struct {
	MaterialId int  `json:"material_id"`
	VariantId  *int `json:"variant_id"`
}

func MaterialPool(materialId int) StockPool {
	return StockPool{MaterialId: materialId}
}

func VariantPool(materialId int, variantId int) StockPool {
	return StockPool{MaterialId: materialId, VariantId: &variantId}
}

func (p StockPool) IsVariant() bool {
	return p.VariantId != nil
}

func (p StockPool) String() string {
	if p.VariantId != nil {
		return fmt.Sprintf("material #%d variant #%d", p.MaterialId, *p.VariantId)
	}
	return fmt.Sprintf("material #%d", p.MaterialId)
}

func (p StockPool) lockOrder() string {
	if p.VariantId != nil {
		return fmt.Sprintf("v%012d", *p.VariantId)
	}
	return fmt.Sprintf("m%012d", p.MaterialId)
}

// Key is used to aggregate requests against the same pool.
func (p StockPool) Key() string {
	return p.String()
}

// GetBalance reads a pool without locking it.
func GetBalance(ctx context.Context, pool StockPool) (decimal.Decimal, error) {
	return readBalance(config.GetDB().WithContext(ctx), pool, false)
}

// LockBalance reads a pool with SELECT ... FOR UPDATE; the lock lasts until tx ends.
func LockBalance(tx *gorm.DB, pool StockPool) (decimal.Decimal, error) {
	return readBalance(tx, pool, true)
}

func readBalance(tx *gorm.DB, pool StockPool, lock bool) (decimal.Decimal, error) {
	q := tx
	if lock {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	if pool.VariantId != nil {
		var variant MaterialVariant
		if err := q.Select("id", "material_id", "quantity").First(&variant, *pool.VariantId).Error; err != nil {
			return decimal.Zero, utils.NotFoundOr(err, "material variant", *pool.VariantId)
		}
		if variant.MaterialId != pool.MaterialId {
			return decimal.Zero, utils.NewConsistencyViolation("variant #%d does not belong to material #%d", variant.ID, pool.MaterialId)
		}
		return variant.Quantity, nil
	}
	var material Material
	if err := q.Select("id", "quantity").First(&material, pool.MaterialId).Error; err != nil {
		return decimal.Zero, utils.NotFoundOr(err, "material", pool.MaterialId)
	}
	return material.Quantity, nil
}

// checkConsumablePool rejects taking stock from a material's own quantity
// while it has variants; the variant sub-pools hold that stock.
func checkConsumablePool(tx *gorm.DB, pool StockPool) error {
	if pool.VariantId != nil || config.LegacyAggregateConsumption() {
		return nil
	}
	var count int64
	if err := tx.Model(&MaterialVariant{}).Where("material_id = ?", pool.MaterialId).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return utils.NewInvalidInput("variant_id", fmt.Sprintf("material #%d has variants; select one", pool.MaterialId))
	}
	return nil
}

// DecrementStock takes qty out of pool after checking it under a row lock.
func DecrementStock(tx *gorm.DB, pool StockPool, qty decimal.Decimal) error {
	if !qty.IsPositive() {
		return utils.NewInvalidInput("quantity", "must be greater than zero")
	}
	if err := checkConsumablePool(tx, pool); err != nil {
		return err
	}
	available, err := LockBalance(tx, pool)
	if err != nil {
		return err
	}
	if available.LessThan(qty) {
		return &utils.InsufficientStockError{Pool: pool.String(), Requested: qty, Available: available}
	}
	return applyDelta(tx, pool, qty.Neg())
}

// IncrementStock adds qty to pool.
func IncrementStock(tx *gorm.DB, pool StockPool, qty decimal.Decimal) error {
	if !qty.IsPositive() {
		return utils.NewInvalidInput("quantity", "must be greater than zero")
	}
	if _, err := LockBalance(tx, pool); err != nil {
		return err
	}
	return applyDelta(tx, pool, qty)
}

func applyDelta(tx *gorm.DB, pool StockPool, delta decimal.Decimal) error {
	if pool.VariantId != nil {
		return tx.Exec("UPDATE material_variants SET quantity = quantity + ?, updated_at = NOW() WHERE id = ?", delta, *pool.VariantId).Error
	}
	return tx.Exec("UPDATE materials SET quantity = quantity + ?, updated_at = NOW() WHERE id = ?", delta, pool.MaterialId).Error
}

// PoolRequest is one requested withdrawal used by multi-source pre-checks.
type PoolRequest struct {
	Pool     StockPool
	Quantity decimal.Decimal
}

// AggregatePoolRequests sums requests per pool, keeping first-seen order.
func AggregatePoolRequests(requests []PoolRequest) []PoolRequest {
	index := map[string]int{}
	var out []PoolRequest
	for _, r := range requests {
		if i, ok := index[r.Pool.Key()]; ok {
			out[i].Quantity = out[i].Quantity.Add(r.Quantity)
			continue
		}
		index[r.Pool.Key()] = len(out)
		out = append(out, r)
	}
	return out
}

// CheckSufficiency locks every pool and verifies the summed requests fit
// before anything is written. The first shortfall is returned.
func CheckSufficiency(tx *gorm.DB, requests []PoolRequest) error {
	pools := AggregatePoolRequests(requests)
	// fixed lock order across concurrent events
	sort.SliceStable(pools, func(i, j int) bool {
		return pools[i].Pool.lockOrder() < pools[j].Pool.lockOrder()
	})
	for _, r := range pools {
		if err := checkConsumablePool(tx, r.Pool); err != nil {
			return err
		}
		available, err := LockBalance(tx, r.Pool)
		if err != nil {
			return err
		}
		if available.LessThan(r.Quantity) {
			return &utils.InsufficientStockError{Pool: r.Pool.String(), Requested: r.Quantity, Available: available}
		}
	}
	return nil
}
