package models

import (
	"context"
	"time"

	"bitbucket.org/mmdatafocus/leatherworks/config"
	"bitbucket.org/mmdatafocus/leatherworks/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// HideConsumptionRecord ("teri sarfi") is how much of one hide a cut event used.
type HideConsumptionRecord struct {
	ID                  int             `gorm:"primary_key" json:"id"`
	ProductionEventId   int             `gorm:"index;not null" json:"production_event_id"`
	MaterialId          int             `gorm:"index;not null" json:"material_id"`
	VariantId           *int            `gorm:"index" json:"variant_id"`
	PerUnit             decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"per_unit"`
	Quantity            decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"quantity"`
	StageMaterialLinkId *int            `json:"stage_material_link_id"`
	CreatedAt           time.Time       `gorm:"autoCreateTime" json:"created_at"`
}

func (r *HideConsumptionRecord) Pool() StockPool {
	return StockPool{MaterialId: r.MaterialId, VariantId: r.VariantId}
}

// RecordHideConsumption writes the record for a hide already consumed through link.
func RecordHideConsumption(tx *gorm.DB, event *ProductionEvent, link *ProductionStageMaterialLink, perUnit decimal.Decimal) (*HideConsumptionRecord, error) {
	record := HideConsumptionRecord{
		ProductionEventId:   event.ID,
		MaterialId:          link.MaterialId,
		VariantId:           link.VariantId,
		PerUnit:             perUnit,
		Quantity:            link.Quantity,
		StageMaterialLinkId: &link.ID,
	}
	if err := tx.Create(&record).Error; err != nil {
		return nil, err
	}
	return &record, nil
}

// DeleteHideConsumption removes a record and gives its quantity back to the
// hide or variant it came from, along with the matching stage link.
func DeleteHideConsumption(ctx context.Context, id int) (*MaterialMovement, error) {
	logger := config.GetLogger()
	db := config.GetDB()

	tx := db.WithContext(ctx).Begin()
	// a concurrent delete of the same record waits here and then finds nothing
	var record HideConsumptionRecord
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&record, id).Error; err != nil {
		tx.Rollback()
		return nil, utils.NotFoundOr(err, "hide consumption", id)
	}
	movement, err := PostMovement(tx, &NewMaterialMovement{
		Pool:          record.Pool(),
		Kind:          MovementKindReturn,
		Quantity:      record.Quantity,
		ReferenceType: ReferenceTypeHideConsumption,
		ReferenceId:   &record.ID,
		Note:          "hide consumption deleted",
		Actor:         utils.ActorFromContext(ctx),
	})
	if err != nil {
		tx.Rollback()
		config.LogError(logger, "HideConsumption", "DeleteHideConsumption", "restoring stock", &record, err)
		return nil, err
	}
	if record.StageMaterialLinkId != nil {
		if err := tx.Delete(&ProductionStageMaterialLink{}, *record.StageMaterialLinkId).Error; err != nil {
			tx.Rollback()
			return nil, err
		}
	}
	deleted := tx.Delete(&record)
	if deleted.Error != nil {
		tx.Rollback()
		return nil, deleted.Error
	}
	if deleted.RowsAffected == 0 {
		tx.Rollback()
		return nil, utils.NewNotFound("hide consumption", id)
	}
	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	InvalidateLowStockCache()
	return movement, nil
}

// HideUsageTotal sums hide consumption per event.
type HideUsageTotal struct {
	ProductionEventId int             `json:"production_event_id"`
	Quantity          decimal.Decimal `json:"quantity"`
	Sources           int             `json:"sources"`
}

func GetHideUsageByEvent(ctx context.Context, eventId int) (*HideUsageTotal, error) {
	if err := utils.ValidateResourceId[ProductionEvent](ctx, "production event", eventId); err != nil {
		return nil, err
	}
	total := HideUsageTotal{ProductionEventId: eventId}
	err := config.GetDB().WithContext(ctx).Model(&HideConsumptionRecord{}).
		Select("COALESCE(SUM(quantity), 0) AS quantity, COUNT(*) AS sources").
		Where("production_event_id = ?", eventId).
		Scan(&total).Error
	if err != nil {
		return nil, err
	}
	return &total, nil
}
