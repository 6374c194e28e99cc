package models

import (
	"context"
	"time"

	"bitbucket.org/mmdatafocus/leatherworks/config"
	"bitbucket.org/mmdatafocus/leatherworks/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const lowStockCacheKey = "LowStockMaterials"

// cached for a minute; every stock write drops it
const lowStockCacheTTL = time.Minute

// InvalidateLowStockCache drops the cached report after a committed stock write.
func InvalidateLowStockCache() {
	if err := config.RemoveRedisKey(lowStockCacheKey); err != nil {
		config.GetLogger().WithField("key", lowStockCacheKey).Warn("failed to drop cache: " + err.Error())
	}
}

// lowStockScope keeps active real materials strictly below their minimum.
// Process materials are work in progress and never reported.
func lowStockScope(db *gorm.DB) *gorm.DB {
	return db.Joins("JOIN material_categories ON material_categories.id = materials.category_id").
		Where("material_categories.kind = ?", MaterialCategoryReal).
		Where("materials.status = ? AND materials.quantity < materials.minimum_qty", MaterialStatusActive)
}

// ListLowStockMaterials returns active real materials below their minimum.
func ListLowStockMaterials(ctx context.Context) ([]*Material, error) {
	var materials []*Material
	if ok, err := config.GetRedisObject(lowStockCacheKey, &materials); err == nil && ok {
		return materials, nil
	}
	err := config.GetDB().WithContext(ctx).Scopes(lowStockScope).
		Order("materials.quantity").Find(&materials).Error
	if err != nil {
		return nil, err
	}
	if err := config.SetRedisObject(lowStockCacheKey, materials, lowStockCacheTTL); err != nil {
		config.GetLogger().WithField("key", lowStockCacheKey).Warn("failed to cache: " + err.Error())
	}
	return materials, nil
}

type MovementTotals struct {
	Count    int64           `json:"count"`
	Quantity decimal.Decimal `json:"quantity"`
	Amount   decimal.Decimal `json:"amount"`
}

type MaterialStatistics struct {
	Material    *Material      `json:"material"`
	Intake      MovementTotals `json:"intake"`
	Consumption MovementTotals `json:"consumption"`
}

type MaterialOverview struct {
	Total    int64 `json:"total"`
	Active   int64 `json:"active"`
	LowStock int64 `json:"low_stock"`
}

// GetMaterialStatistics sums intake and consumption movements of one material.
// Provisioning counts as consumption.
func GetMaterialStatistics(ctx context.Context, materialId int) (*MaterialStatistics, error) {
	material, err := utils.FetchModel[Material](ctx, "material", materialId, "Category")
	if err != nil {
		return nil, err
	}
	stats := MaterialStatistics{Material: material}
	db := config.GetDB().WithContext(ctx)
	queries := []struct {
		kinds []MovementKind
		dest  *MovementTotals
	}{
		{[]MovementKind{MovementKindIntake}, &stats.Intake},
		{[]MovementKind{MovementKindConsumption, MovementKindProvisioning}, &stats.Consumption},
	}
	for _, q := range queries {
		if err := db.Model(&MaterialMovement{}).
			Select("COUNT(*) AS count, COALESCE(SUM(quantity), 0) AS quantity, COALESCE(SUM(total_price), 0) AS amount").
			Where("material_id = ? AND kind IN ?", materialId, q.kinds).
			Scan(q.dest).Error; err != nil {
			return nil, err
		}
	}
	return &stats, nil
}

func GetMaterialOverview(ctx context.Context) (*MaterialOverview, error) {
	var overview MaterialOverview
	db := config.GetDB().WithContext(ctx)
	err := db.Model(&Material{}).
		Select(`COUNT(*) AS total,
			COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0) AS active`,
			MaterialStatusActive).
		Scan(&overview).Error
	if err != nil {
		return nil, err
	}
	if err := db.Model(&Material{}).Scopes(lowStockScope).Count(&overview.LowStock).Error; err != nil {
		return nil, err
	}
	return &overview, nil
}
