package models

import (
	"time"

	"bitbucket.org/mmdatafocus/leatherworks/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ProductionStageMaterialLink records one material (or variant) consumed by a production event.
type ProductionStageMaterialLink struct {
	ID                int             `gorm:"primary_key" json:"id"`
	ProductionEventId int             `gorm:"index;not null" json:"production_event_id"`
	MaterialId        int             `gorm:"index;not null" json:"material_id"`
	VariantId         *int            `gorm:"index" json:"variant_id"`
	Quantity          decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"quantity"`
	UnitPrice         decimal.Decimal `gorm:"type:decimal(20,4);not null;default:0" json:"unit_price"`
	MovementId        *int            `json:"movement_id"`
	CreatedAt         time.Time       `gorm:"autoCreateTime" json:"created_at"`
}

type NewStageMaterial struct {
	Pool      StockPool
	Quantity  decimal.Decimal
	UnitPrice *decimal.Decimal
	Note      string
	Actor     string
}

// validateStageMaterial checks a link before it is written: positive quantity,
// a variant that belongs to the material, and for real materials enough stock
// in the selected pool. Process materials are checked by the stage itself.
func validateStageMaterial(tx *gorm.DB, material *Material, input *NewStageMaterial) error {
	if !input.Quantity.IsPositive() {
		return utils.NewInvalidInput("quantity", "must be greater than zero")
	}
	if input.Pool.MaterialId != material.ID {
		return utils.NewConsistencyViolation("link pool material #%d differs from material #%d", input.Pool.MaterialId, material.ID)
	}
	available, err := LockBalance(tx, input.Pool)
	if err != nil {
		return err
	}
	if material.Kind() == MaterialCategoryReal && available.LessThan(input.Quantity) {
		return &utils.InsufficientStockError{Pool: input.Pool.String(), Requested: input.Quantity, Available: available}
	}
	return nil
}

// ConsumeForStage validates, posts a consumption movement and writes the
// link row for one material used by event.
func ConsumeForStage(tx *gorm.DB, event *ProductionEvent, input *NewStageMaterial) (*ProductionStageMaterialLink, error) {
	material, err := fetchMaterialWithCategory(tx, input.Pool.MaterialId)
	if err != nil {
		return nil, err
	}
	if err := validateStageMaterial(tx, material, input); err != nil {
		return nil, err
	}
	movement, err := PostMovement(tx, &NewMaterialMovement{
		Pool:          input.Pool,
		Kind:          MovementKindConsumption,
		Quantity:      input.Quantity,
		UnitPrice:     input.UnitPrice,
		ReferenceType: ReferenceTypeProductionEvent,
		ReferenceId:   &event.ID,
		Note:          input.Note,
		Actor:         input.Actor,
		MovedAt:       &event.EventDate,
	})
	if err != nil {
		return nil, err
	}
	link := ProductionStageMaterialLink{
		ProductionEventId: event.ID,
		MaterialId:        material.ID,
		VariantId:         input.Pool.VariantId,
		Quantity:          input.Quantity,
		UnitPrice:         movement.UnitPrice,
		MovementId:        &movement.ID,
	}
	if err := tx.Create(&link).Error; err != nil {
		return nil, err
	}
	return &link, nil
}
