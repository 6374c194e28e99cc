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

// Material is a stock pool of its own. Process materials are keyed by
// (product, category, color); real materials leave ProductId NULL so the
// same unique index does not constrain them.
type Material struct {
	ID         int               `gorm:"primary_key" json:"id"`
	Name       string            `gorm:"size:200;not null" json:"name"`
	CategoryId int               `gorm:"not null;uniqueIndex:uq_process_material,priority:2" json:"category_id"`
	Category   *MaterialCategory `gorm:"foreignKey:CategoryId" json:"category,omitempty"`
	ProductId  *int              `gorm:"uniqueIndex:uq_process_material,priority:1" json:"product_id"`
	Color      string            `gorm:"size:50;not null;default:'';uniqueIndex:uq_process_material,priority:3" json:"color"`
	Quantity   decimal.Decimal   `gorm:"type:decimal(20,4);not null;default:0" json:"quantity"`
	Unit       MaterialUnit      `gorm:"type:enum('kg','gr','lt','dona','dm');not null;default:'dona'" json:"unit"`
	MinimumQty decimal.Decimal   `gorm:"type:decimal(20,4);not null;default:0" json:"minimum_qty"`
	UnitPrice  decimal.Decimal   `gorm:"type:decimal(20,4);not null;default:0" json:"unit_price"`
	SupplierId *int              `gorm:"index" json:"supplier_id"`
	Status     MaterialStatus    `gorm:"type:enum('active','inactive','expired');not null;default:'active'" json:"status"`
	Variants   []MaterialVariant `gorm:"foreignKey:MaterialId" json:"variants,omitempty"`
	CreatedAt  time.Time         `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time         `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewMaterial struct {
	Name       string          `json:"name" binding:"required"`
	CategoryId int             `json:"category_id" binding:"required"`
	ProductId  *int            `json:"product_id"`
	Color      string          `json:"color"`
	Unit       MaterialUnit    `json:"unit" binding:"required"`
	MinimumQty decimal.Decimal `json:"minimum_qty"`
	UnitPrice  decimal.Decimal `json:"unit_price"`
	SupplierId *int            `json:"supplier_id"`
}

// CheckKindInvariant: a process material belongs to exactly one product, a real material to none.
func CheckKindInvariant(kind MaterialCategoryKind, productId *int) error {
	switch kind {
	case MaterialCategoryProcess:
		if productId == nil || *productId <= 0 {
			return utils.NewConsistencyViolation("process material requires a target product")
		}
	case MaterialCategoryReal:
		if productId != nil {
			return utils.NewConsistencyViolation("real material cannot reference a product")
		}
	default:
		return utils.NewInvalidInput("kind", "unknown material kind")
	}
	return nil
}

func (input *NewMaterial) validate(ctx context.Context) (*MaterialCategory, error) {
	if strings.TrimSpace(input.Name) == "" {
		return nil, utils.NewInvalidInput("name", "is required")
	}
	if !input.Unit.IsValid() {
		return nil, utils.NewInvalidInput("unit", "must be one of kg, gr, lt, dona, dm")
	}
	if input.MinimumQty.IsNegative() || input.UnitPrice.IsNegative() {
		return nil, utils.NewInvalidInput("minimum_qty/unit_price", "cannot be negative")
	}
	category, err := utils.FetchModel[MaterialCategory](ctx, "material category", input.CategoryId)
	if err != nil {
		return nil, err
	}
	if err := CheckKindInvariant(category.Kind, input.ProductId); err != nil {
		return nil, err
	}
	if input.ProductId != nil {
		if err := utils.ValidateResourceId[Product](ctx, "product", *input.ProductId); err != nil {
			return nil, err
		}
	}
	if input.SupplierId != nil {
		if err := utils.ValidateResourceId[Supplier](ctx, "supplier", *input.SupplierId); err != nil {
			return nil, err
		}
	}
	return category, nil
}

// CreateMaterial registers a material with zero stock; stock arrives through intake movements.
func CreateMaterial(ctx context.Context, input *NewMaterial) (*Material, error) {
	category, err := input.validate(ctx)
	if err != nil {
		return nil, err
	}
	material := Material{
		Name:       strings.TrimSpace(input.Name),
		CategoryId: category.ID,
		ProductId:  input.ProductId,
		Color:      strings.TrimSpace(input.Color),
		Unit:       input.Unit,
		MinimumQty: input.MinimumQty,
		UnitPrice:  input.UnitPrice,
		SupplierId: input.SupplierId,
		Status:     MaterialStatusActive,
	}
	if err := config.GetDB().WithContext(ctx).Create(&material).Error; err != nil {
		if utils.IsDuplicateKeyError(err) {
			return nil, utils.NewInvalidInput("product_id", "process material already exists for this product, stage and color")
		}
		return nil, err
	}
	InvalidateLowStockCache()
	return &material, nil
}

func GetMaterial(ctx context.Context, id int) (*Material, error) {
	return utils.FetchModel[Material](ctx, "material", id, "Category", "Variants")
}

// fetchMaterialWithCategory loads a material and its category inside tx.
func fetchMaterialWithCategory(tx *gorm.DB, id int) (*Material, error) {
	return utils.FetchModelTx[Material](tx, "material", id, "Category")
}

func (m *Material) Kind() MaterialCategoryKind {
	if m.Category == nil {
		return ""
	}
	return m.Category.Kind
}

// Role is nil for process materials and for real categories with no production role.
func (m *Material) Role() *MaterialRole {
	if m.Category == nil {
		return nil
	}
	return m.Category.Role
}

// UpdateMaterialStatus toggles availability; quantity is never edited directly.
func UpdateMaterialStatus(ctx context.Context, id int, status MaterialStatus) (*Material, error) {
	switch status {
	case MaterialStatusActive, MaterialStatusInactive, MaterialStatusExpired:
	default:
		return nil, utils.NewInvalidInput("status", "must be active, inactive or expired")
	}
	db := config.GetDB().WithContext(ctx)
	res := db.Model(&Material{}).Where("id = ?", id).Update("status", status)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		if err := utils.ValidateResourceId[Material](ctx, "material", id); err != nil {
			return nil, err
		}
	}
	InvalidateLowStockCache()
	return GetMaterial(ctx, id)
}
