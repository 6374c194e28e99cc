package models

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"bitbucket.org/mmdatafocus/leatherworks/config"
	"bitbucket.org/mmdatafocus/leatherworks/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ProductVariant is a sellable finished-good unit with its own piece stock.
type ProductVariant struct {
	ID        int             `gorm:"primary_key" json:"id"`
	ProductId int             `gorm:"not null;uniqueIndex:uq_product_variant,priority:1" json:"product_id"`
	Color     string          `gorm:"size:50;not null;default:'';uniqueIndex:uq_product_variant,priority:2" json:"color"`
	Size      string          `gorm:"size:20;not null;default:'';uniqueIndex:uq_product_variant,priority:3" json:"size"`
	Kind      string          `gorm:"size:50;not null;default:'';uniqueIndex:uq_product_variant,priority:4" json:"kind"`
	Sku       string          `gorm:"size:150;not null;uniqueIndex" json:"sku"`
	Stock     int             `gorm:"not null;default:0" json:"stock"`
	Price     decimal.Decimal `gorm:"type:decimal(20,4);not null;default:0" json:"price"`
	CreatedAt time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewProductVariant struct {
	ProductId int             `json:"product_id" binding:"required"`
	Color     string          `json:"color"`
	Size      string          `json:"size"`
	Kind      string          `json:"kind"`
	Price     decimal.Decimal `json:"price"`
}

// BuildSku derives the variant code from its attributes.
func BuildSku(productId int, color, size, kind string) string {
	parts := []string{fmt.Sprintf("P%d", productId)}
	for _, p := range []string{color, size, kind} {
		p = strings.ToUpper(strings.Join(strings.Fields(p), ""))
		if p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, "-")
}

func CreateProductVariant(ctx context.Context, input *NewProductVariant) (*ProductVariant, error) {
	if input.Price.IsNegative() {
		return nil, utils.NewInvalidInput("price", "cannot be negative")
	}
	product, err := utils.FetchModel[Product](ctx, "product", input.ProductId)
	if err != nil {
		return nil, err
	}
	price := input.Price
	if price.IsZero() {
		price = product.SalePrice
	}
	color, size, kind := strings.TrimSpace(input.Color), strings.TrimSpace(input.Size), strings.TrimSpace(input.Kind)
	variant := ProductVariant{
		ProductId: product.ID,
		Color:     color,
		Size:      size,
		Kind:      kind,
		Sku:       BuildSku(product.ID, color, size, kind),
		Price:     price,
	}
	if err := config.GetDB().WithContext(ctx).Create(&variant).Error; err != nil {
		if utils.IsDuplicateKeyError(err) {
			return nil, utils.NewInvalidInput("variant", "already exists for this color, size and kind")
		}
		return nil, err
	}
	return &variant, nil
}

// lockProductVariant reads a finished-good variant with FOR UPDATE.
func lockProductVariant(tx *gorm.DB, id int) (*ProductVariant, error) {
	var variant ProductVariant
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&variant, id).Error; err != nil {
		return nil, utils.NotFoundOr(err, "product variant", id)
	}
	return &variant, nil
}

// AdjustProductVariantStock moves a variant's stock by delta and refreshes
// the product's derived quantity. Negative deltas are checked under lock.
func AdjustProductVariantStock(tx *gorm.DB, variantId int, delta int) (*ProductVariant, error) {
	variant, err := lockProductVariant(tx, variantId)
	if err != nil {
		return nil, err
	}
	if delta == 0 {
		return variant, nil
	}
	if delta < 0 && variant.Stock < -delta {
		return nil, &utils.InsufficientStockError{
			Pool:      fmt.Sprintf("product variant #%d (%s)", variant.ID, variant.Sku),
			Requested: decimal.NewFromInt(int64(-delta)),
			Available: decimal.NewFromInt(int64(variant.Stock)),
		}
	}
	if err := tx.Exec("UPDATE product_variants SET stock = stock + ?, updated_at = NOW() WHERE id = ?", delta, variant.ID).Error; err != nil {
		return nil, err
	}
	variant.Stock += delta
	if err := RecomputeProductStock(tx, variant.ProductId); err != nil {
		return nil, err
	}
	return variant, nil
}

// UpsertFinishedGoodVariant adds qty pieces to the (product, color, size)
// variant, creating it at zero stock first when missing.
func UpsertFinishedGoodVariant(tx *gorm.DB, product *Product, color, size string, qty int) (*ProductVariant, error) {
	color, size = strings.TrimSpace(color), strings.TrimSpace(size)
	candidate := ProductVariant{
		ProductId: product.ID,
		Color:     color,
		Size:      size,
		Sku:       BuildSku(product.ID, color, size, ""),
		Price:     product.SalePrice,
	}
	if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&candidate).Error; err != nil {
		return nil, err
	}
	var existing ProductVariant
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("product_id = ? AND color = ? AND size = ? AND kind = ?", product.ID, color, size, "").
		First(&existing).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.NewConsistencyViolation("sku %s is taken by another variant of product #%d", candidate.Sku, product.ID)
		}
		return nil, err
	}
	return AdjustProductVariantStock(tx, existing.ID, qty)
}

func ListProductVariants(ctx context.Context, productId int) ([]*ProductVariant, error) {
	if err := utils.ValidateResourceId[Product](ctx, "product", productId); err != nil {
		return nil, err
	}
	var variants []*ProductVariant
	err := config.GetDB().WithContext(ctx).Where("product_id = ?", productId).Order("id").Find(&variants).Error
	return variants, err
}
