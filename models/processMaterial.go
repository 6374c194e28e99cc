package models

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"bitbucket.org/mmdatafocus/leatherworks/config"
	"bitbucket.org/mmdatafocus/leatherworks/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ProduceProcessMaterial adds qty pieces of a stage's output for product.
// The row is keyed by (product, stage category, color) and created at zero
// on first use; the unique index makes concurrent first uses collapse into one row.
func ProduceProcessMaterial(tx *gorm.DB, product *Product, stage StageKind, color string, qty int, event *ProductionEvent, actor string) (*Material, error) {
	if !stage.ProducesMaterial() {
		return nil, utils.NewInvalidInput("stage", fmt.Sprintf("%s does not produce a process material", stage))
	}
	category, err := GetStageCategory(tx, stage)
	if err != nil {
		return nil, err
	}
	color = strings.TrimSpace(color)
	productId := product.ID
	candidate := Material{
		Name:       processMaterialName(product, category, color),
		CategoryId: category.ID,
		ProductId:  &productId,
		Color:      color,
		Quantity:   decimal.Zero,
		Unit:       MaterialUnitPiece,
		Status:     MaterialStatusActive,
	}
	if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&candidate).Error; err != nil {
		return nil, err
	}
	var material Material
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("product_id = ? AND category_id = ? AND color = ?", product.ID, category.ID, color).
		First(&material).Error; err != nil {
		return nil, err
	}
	zero := decimal.Zero
	movement := &NewMaterialMovement{
		Pool:          MaterialPool(material.ID),
		Kind:          MovementKindIntake,
		Quantity:      decimal.NewFromInt(int64(qty)),
		UnitPrice:     &zero,
		ReferenceType: ReferenceTypeProductionEvent,
		Note:          fmt.Sprintf("%s output", stage),
		Actor:         actor,
	}
	if event != nil {
		movement.ReferenceId = &event.ID
		movement.MovedAt = &event.EventDate
	}
	if _, err := PostMovement(tx, movement); err != nil {
		return nil, err
	}
	material.Quantity = material.Quantity.Add(movement.Quantity)
	material.Category = category
	return &material, nil
}

func processMaterialName(product *Product, category *MaterialCategory, color string) string {
	name := fmt.Sprintf("%s - %s", product.Name, category.Name)
	if color != "" {
		name += " (" + color + ")"
	}
	return name
}

// FetchUpstreamMaterial loads the process material a stage will consume and
// checks it holds the expected stage's output for the same product.
func FetchUpstreamMaterial(tx *gorm.DB, materialId int, productId int, stage StageKind) (*Material, error) {
	material, err := fetchMaterialWithCategory(tx, materialId)
	if err != nil {
		return nil, err
	}
	if material.Category == nil || material.Category.Kind != MaterialCategoryProcess {
		return nil, utils.NewConsistencyViolation("material #%d is not a process material", material.ID)
	}
	if material.Category.Stage == nil || *material.Category.Stage != stage {
		return nil, utils.NewInvalidInput("upstream_material_id", fmt.Sprintf("material #%d is not %s-stage output", material.ID, stage))
	}
	if material.ProductId == nil || *material.ProductId != productId {
		return nil, utils.NewConsistencyViolation("material #%d belongs to another product", material.ID)
	}
	return material, nil
}

// ListProcessMaterials returns a product's stage output that still has pieces
// available for the next stage.
func ListProcessMaterials(ctx context.Context, productId int, stage StageKind) ([]*Material, error) {
	if !stage.ProducesMaterial() {
		return nil, utils.NewInvalidInput("stage", "must be trim, cut or hide_cut")
	}
	if err := utils.ValidateResourceId[Product](ctx, "product", productId); err != nil {
		return nil, err
	}
	db := config.GetDB().WithContext(ctx)
	category, err := GetStageCategory(db, stage)
	if err != nil {
		if errors.Is(err, utils.ErrConsistencyViolation) {
			return []*Material{}, nil
		}
		return nil, err
	}
	var materials []*Material
	err = db.Where("product_id = ? AND category_id = ? AND status = ? AND quantity > 0", productId, category.ID, MaterialStatusActive).
		Order("id").Find(&materials).Error
	return materials, err
}
