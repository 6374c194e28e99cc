package models

import (
	"context"
	"strings"
	"time"

	"bitbucket.org/mmdatafocus/leatherworks/config"
	"bitbucket.org/mmdatafocus/leatherworks/utils"
	"github.com/shopspring/decimal"
)

// MaterialVariant is a color/thickness/batch sub-pool of a material.
// Its quantity is tracked independently of the parent's.
type MaterialVariant struct {
	ID         int             `gorm:"primary_key" json:"id"`
	MaterialId int             `gorm:"index;not null" json:"material_id"`
	Color      string          `gorm:"size:50;default:null" json:"color"`
	Thickness  string          `gorm:"size:50;default:null" json:"thickness"`
	BatchCode  string          `gorm:"size:100;default:null" json:"batch_code"`
	Quantity   decimal.Decimal `gorm:"type:decimal(20,4);not null;default:0" json:"quantity"`
	UnitPrice  decimal.Decimal `gorm:"type:decimal(20,4);not null;default:0" json:"unit_price"`
	CreatedAt  time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewMaterialVariant struct {
	MaterialId int             `json:"material_id" binding:"required"`
	Color      string          `json:"color"`
	Thickness  string          `json:"thickness"`
	BatchCode  string          `json:"batch_code"`
	UnitPrice  decimal.Decimal `json:"unit_price"`
}

func (v *MaterialVariant) Label() string {
	parts := []string{}
	for _, p := range []string{v.Color, v.Thickness, v.BatchCode} {
		if strings.TrimSpace(p) != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, " / ")
}

// CreateMaterialVariant adds an empty sub-pool under a real material.
func CreateMaterialVariant(ctx context.Context, input *NewMaterialVariant) (*MaterialVariant, error) {
	if input.UnitPrice.IsNegative() {
		return nil, utils.NewInvalidInput("unit_price", "cannot be negative")
	}
	material, err := utils.FetchModel[Material](ctx, "material", input.MaterialId, "Category")
	if err != nil {
		return nil, err
	}
	if material.Kind() == MaterialCategoryProcess {
		return nil, utils.NewConsistencyViolation("process material #%d cannot have variants", material.ID)
	}
	price := input.UnitPrice
	if price.IsZero() {
		price = material.UnitPrice
	}
	variant := MaterialVariant{
		MaterialId: material.ID,
		Color:      strings.TrimSpace(input.Color),
		Thickness:  strings.TrimSpace(input.Thickness),
		BatchCode:  strings.TrimSpace(input.BatchCode),
		UnitPrice:  price,
	}
	if err := config.GetDB().WithContext(ctx).Create(&variant).Error; err != nil {
		return nil, err
	}
	return &variant, nil
}

// ListMaterialVariants lists a material's variants, optionally only those with stock.
func ListMaterialVariants(ctx context.Context, materialId int, inStockOnly bool) ([]*MaterialVariant, error) {
	if err := utils.ValidateResourceId[Material](ctx, "material", materialId); err != nil {
		return nil, err
	}
	dbCtx := config.GetDB().WithContext(ctx).Where("material_id = ?", materialId)
	if inStockOnly {
		dbCtx = dbCtx.Where("quantity > 0")
	}
	var variants []*MaterialVariant
	if err := dbCtx.Order("id").Find(&variants).Error; err != nil {
		return nil, err
	}
	return variants, nil
}
