package models

import (
	"context"
	"strings"
	"time"

	"bitbucket.org/mmdatafocus/leatherworks/config"
	"bitbucket.org/mmdatafocus/leatherworks/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Product is a finished-good design. Stage prices are the piece rates paid
// per item; usage fields drive default hide and lining consumption when cutting.
type Product struct {
	ID                 int              `gorm:"primary_key" json:"id"`
	Name               string           `gorm:"size:200;not null" json:"name"`
	Code               string           `gorm:"size:50;index" json:"code"`
	PriceTrim          decimal.Decimal  `gorm:"type:decimal(20,4);not null;default:0" json:"price_trim"`
	PriceCut           decimal.Decimal  `gorm:"type:decimal(20,4);not null;default:0" json:"price_cut"`
	PriceHideCut       decimal.Decimal  `gorm:"type:decimal(20,4);not null;default:0" json:"price_hide_cut"`
	PriceFinish        decimal.Decimal  `gorm:"type:decimal(20,4);not null;default:0" json:"price_finish"`
	HideUsagePerUnit   decimal.Decimal  `gorm:"type:decimal(20,4);not null;default:0" json:"hide_usage_per_unit"`
	LiningUsagePerUnit decimal.Decimal  `gorm:"type:decimal(20,4);not null;default:0" json:"lining_usage_per_unit"`
	SalePrice          decimal.Decimal  `gorm:"type:decimal(20,4);not null;default:0" json:"sale_price"`
	Quantity           int              `gorm:"not null;default:0" json:"quantity"`
	IsActive           *bool            `gorm:"not null;default:true" json:"is_active"`
	Variants           []ProductVariant `gorm:"foreignKey:ProductId" json:"variants,omitempty"`
	CreatedAt          time.Time        `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt          time.Time        `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewProduct struct {
	Name               string          `json:"name" binding:"required"`
	Code               string          `json:"code"`
	PriceTrim          decimal.Decimal `json:"price_trim"`
	PriceCut           decimal.Decimal `json:"price_cut"`
	PriceHideCut       decimal.Decimal `json:"price_hide_cut"`
	PriceFinish        decimal.Decimal `json:"price_finish"`
	HideUsagePerUnit   decimal.Decimal `json:"hide_usage_per_unit"`
	LiningUsagePerUnit decimal.Decimal `json:"lining_usage_per_unit"`
	SalePrice          decimal.Decimal `json:"sale_price"`
}

func (input *NewProduct) validate() error {
	if strings.TrimSpace(input.Name) == "" {
		return utils.NewInvalidInput("name", "is required")
	}
	for field, v := range map[string]decimal.Decimal{
		"price_trim":            input.PriceTrim,
		"price_cut":             input.PriceCut,
		"price_hide_cut":        input.PriceHideCut,
		"price_finish":          input.PriceFinish,
		"hide_usage_per_unit":   input.HideUsagePerUnit,
		"lining_usage_per_unit": input.LiningUsagePerUnit,
		"sale_price":            input.SalePrice,
	} {
		if v.IsNegative() {
			return utils.NewInvalidInput(field, "cannot be negative")
		}
	}
	return nil
}

func CreateProduct(ctx context.Context, input *NewProduct) (*Product, error) {
	if err := input.validate(); err != nil {
		return nil, err
	}
	if code := strings.TrimSpace(input.Code); code != "" {
		if err := utils.ValidateUnique[Product](ctx, "code", code, 0); err != nil {
			return nil, err
		}
	}
	product := Product{
		Name:               strings.TrimSpace(input.Name),
		Code:               strings.TrimSpace(input.Code),
		PriceTrim:          input.PriceTrim,
		PriceCut:           input.PriceCut,
		PriceHideCut:       input.PriceHideCut,
		PriceFinish:        input.PriceFinish,
		HideUsagePerUnit:   input.HideUsagePerUnit,
		LiningUsagePerUnit: input.LiningUsagePerUnit,
		SalePrice:          input.SalePrice,
		IsActive:           utils.NewTrue(),
	}
	if err := config.GetDB().WithContext(ctx).Create(&product).Error; err != nil {
		return nil, err
	}
	return &product, nil
}

func GetProduct(ctx context.Context, id int) (*Product, error) {
	return utils.FetchModel[Product](ctx, "product", id, "Variants")
}

// StagePrice is the piece rate paid for one item at the given stage.
func (p *Product) StagePrice(stage StageKind) decimal.Decimal {
	switch stage {
	case StageTrim:
		return p.PriceTrim
	case StageCut:
		return p.PriceCut
	case StageHideCut:
		return p.PriceHideCut
	case StageFinish:
		return p.PriceFinish
	}
	return decimal.Zero
}

// RecomputeProductStock sets a product's quantity to the sum of its variants' stock.
func RecomputeProductStock(tx *gorm.DB, productId int) error {
	return tx.Exec(`
		UPDATE products
		SET quantity = (SELECT COALESCE(SUM(stock), 0) FROM product_variants WHERE product_id = ?),
		    updated_at = NOW()
		WHERE id = ?`, productId, productId).Error
}
