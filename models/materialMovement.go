package models

import (
	"strings"
	"time"

	"bitbucket.org/mmdatafocus/leatherworks/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// MaterialMovement is an append-only stock movement. Recording it never
// touches a balance; ApplyEffect does, once.
//
// Quantity is positive for every kind except inventory_adjustment, where
// the sign is the direction of the correction.
type MaterialMovement struct {
	ID            int             `gorm:"primary_key" json:"id"`
	MaterialId    int             `gorm:"index;not null" json:"material_id"`
	VariantId     *int            `gorm:"index" json:"variant_id"`
	Kind          MovementKind    `gorm:"type:enum('intake','consumption','inventory_adjustment','return','provisioning');not null" json:"kind"`
	Quantity      decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"quantity"`
	UnitPrice     decimal.Decimal `gorm:"type:decimal(20,4);not null;default:0" json:"unit_price"`
	TotalPrice    decimal.Decimal `gorm:"type:decimal(20,4);not null;default:0" json:"total_price"`
	SupplierId    *int            `gorm:"index" json:"supplier_id"`
	ReferenceType string          `gorm:"size:50;default:null;index:idx_movement_reference,priority:1" json:"reference_type"`
	ReferenceId   *int            `gorm:"index:idx_movement_reference,priority:2" json:"reference_id"`
	Note          string          `gorm:"type:text;default:null" json:"note"`
	Actor         string          `gorm:"size:100;default:null" json:"actor"`
	EffectApplied bool            `gorm:"not null;default:false" json:"effect_applied"`
	MovedAt       time.Time       `gorm:"not null;index" json:"moved_at"`
	CreatedAt     time.Time       `gorm:"autoCreateTime" json:"created_at"`
}

type NewMaterialMovement struct {
	Pool          StockPool        `json:"pool"`
	Kind          MovementKind     `json:"kind" binding:"required"`
	Quantity      decimal.Decimal  `json:"quantity" binding:"required"`
	UnitPrice     *decimal.Decimal `json:"unit_price"`
	TotalPrice    *decimal.Decimal `json:"total_price"`
	SupplierId    *int             `json:"supplier_id"`
	ReferenceType string           `json:"reference_type"`
	ReferenceId   *int             `json:"reference_id"`
	Note          string           `json:"note"`
	Actor         string           `json:"actor"`
	MovedAt       *time.Time       `json:"moved_at"`
}

func (input *NewMaterialMovement) validate() error {
	if !input.Kind.IsValid() {
		return utils.NewInvalidInput("kind", "unknown movement kind")
	}
	if input.Pool.MaterialId <= 0 {
		return utils.NewInvalidInput("material_id", "is required")
	}
	if input.Kind == MovementKindInventoryAdjustment {
		if input.Quantity.IsZero() {
			return utils.NewInvalidInput("quantity", "adjustment cannot be zero")
		}
	} else if !input.Quantity.IsPositive() {
		return utils.NewInvalidInput("quantity", "must be greater than zero")
	}
	if input.UnitPrice != nil && input.UnitPrice.IsNegative() {
		return utils.NewInvalidInput("unit_price", "cannot be negative")
	}
	return nil
}

// Delta is the signed change this movement makes to its pool.
func (m *MaterialMovement) Delta() decimal.Decimal {
	switch m.Kind {
	case MovementKindIntake, MovementKindReturn:
		return m.Quantity
	case MovementKindConsumption, MovementKindProvisioning:
		return m.Quantity.Neg()
	case MovementKindInventoryAdjustment:
		return m.Quantity
	}
	return decimal.Zero
}

func (m *MaterialMovement) Pool() StockPool {
	return StockPool{MaterialId: m.MaterialId, VariantId: m.VariantId}
}

// RecordMovement inserts the movement row. Prices default to the pool's
// unit price; the total defaults to unit price times quantity.
func RecordMovement(tx *gorm.DB, input *NewMaterialMovement) (*MaterialMovement, error) {
	if err := input.validate(); err != nil {
		return nil, err
	}
	unitPrice, err := poolUnitPrice(tx, input.Pool, input.UnitPrice)
	if err != nil {
		return nil, err
	}
	total := unitPrice.Mul(input.Quantity.Abs())
	if input.TotalPrice != nil {
		total = *input.TotalPrice
	}
	movedAt := time.Now()
	if input.MovedAt != nil {
		movedAt = *input.MovedAt
	}
	movement := MaterialMovement{
		MaterialId:    input.Pool.MaterialId,
		VariantId:     input.Pool.VariantId,
		Kind:          input.Kind,
		Quantity:      input.Quantity,
		UnitPrice:     unitPrice,
		TotalPrice:    total,
		SupplierId:    input.SupplierId,
		ReferenceType: input.ReferenceType,
		ReferenceId:   input.ReferenceId,
		Note:          strings.TrimSpace(input.Note),
		Actor:         input.Actor,
		MovedAt:       movedAt,
	}
	if err := tx.Create(&movement).Error; err != nil {
		return nil, err
	}
	return &movement, nil
}

// ApplyEffect moves the pool balance by Delta. The effect_applied flag is
// flipped with a conditional update first, so a second call is a no-op.
func (m *MaterialMovement) ApplyEffect(tx *gorm.DB) error {
	res := tx.Model(&MaterialMovement{}).
		Where("id = ? AND effect_applied = ?", m.ID, false).
		Update("effect_applied", true)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		m.EffectApplied = true
		return nil
	}
	m.EffectApplied = true

	delta := m.Delta()
	if delta.IsPositive() {
		return IncrementStock(tx, m.Pool(), delta)
	}
	return DecrementStock(tx, m.Pool(), delta.Neg())
}

// PostMovement records a movement and applies it in the same transaction.
func PostMovement(tx *gorm.DB, input *NewMaterialMovement) (*MaterialMovement, error) {
	movement, err := RecordMovement(tx, input)
	if err != nil {
		return nil, err
	}
	if err := movement.ApplyEffect(tx); err != nil {
		return nil, err
	}
	return movement, nil
}

func poolUnitPrice(tx *gorm.DB, pool StockPool, override *decimal.Decimal) (decimal.Decimal, error) {
	if override != nil {
		return *override, nil
	}
	if pool.VariantId != nil {
		var variant MaterialVariant
		if err := tx.Select("id", "unit_price").First(&variant, *pool.VariantId).Error; err != nil {
			return decimal.Zero, utils.NotFoundOr(err, "material variant", *pool.VariantId)
		}
		if variant.UnitPrice.IsPositive() {
			return variant.UnitPrice, nil
		}
	}
	var material Material
	if err := tx.Select("id", "unit_price").First(&material, pool.MaterialId).Error; err != nil {
		return decimal.Zero, utils.NotFoundOr(err, "material", pool.MaterialId)
	}
	return material.UnitPrice, nil
}

// ListMovementsByReference returns the movements written for one business record.
func ListMovementsByReference(tx *gorm.DB, referenceType string, referenceId int) ([]MaterialMovement, error) {
	var movements []MaterialMovement
	err := tx.Where("reference_type = ? AND reference_id = ?", referenceType, referenceId).
		Order("id").Find(&movements).Error
	return movements, err
}
