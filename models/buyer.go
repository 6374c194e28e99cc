package models

import (
	"context"
	"strings"
	"time"

	"bitbucket.org/mmdatafocus/leatherworks/config"
	"bitbucket.org/mmdatafocus/leatherworks/utils"
	"github.com/shopspring/decimal"
)

// Buyer ("mijoz") carries the default discount applied to their sales.
type Buyer struct {
	ID           int             `gorm:"primary_key" json:"id"`
	Name         string          `gorm:"size:200;not null" json:"name"`
	Phone        string          `gorm:"size:30;default:null" json:"phone"`
	Address      string          `gorm:"size:255;default:null" json:"address"`
	DiscountType DiscountType    `gorm:"type:enum('P','A');not null;default:'P'" json:"discount_type"`
	Discount     decimal.Decimal `gorm:"type:decimal(20,4);not null;default:0" json:"discount"`
	CreatedAt    time.Time       `gorm:"autoCreateTime" json:"created_at"`
}

type NewBuyer struct {
	Name         string          `json:"name" binding:"required"`
	Phone        string          `json:"phone"`
	Address      string          `json:"address"`
	DiscountType DiscountType    `json:"discount_type"`
	Discount     decimal.Decimal `json:"discount"`
}

func validateDiscount(discountType DiscountType, discount decimal.Decimal) error {
	if discountType != DiscountTypePercent && discountType != DiscountTypeAmount {
		return utils.NewInvalidInput("discount_type", "must be P or A")
	}
	if discount.IsNegative() {
		return utils.NewInvalidInput("discount", "cannot be negative")
	}
	if discountType == DiscountTypePercent && discount.GreaterThan(decimal.NewFromInt(100)) {
		return utils.NewInvalidInput("discount", "percent cannot exceed 100")
	}
	return nil
}

func CreateBuyer(ctx context.Context, input *NewBuyer) (*Buyer, error) {
	if strings.TrimSpace(input.Name) == "" {
		return nil, utils.NewInvalidInput("name", "is required")
	}
	if input.DiscountType == "" {
		input.DiscountType = DiscountTypePercent
	}
	if err := validateDiscount(input.DiscountType, input.Discount); err != nil {
		return nil, err
	}
	if input.Phone != "" {
		if err := utils.ValidatePhoneNumber(input.Phone, utils.CountryCode); err != nil {
			return nil, utils.NewInvalidInput("phone", err.Error())
		}
	}
	buyer := Buyer{
		Name:         strings.TrimSpace(input.Name),
		Phone:        input.Phone,
		Address:      input.Address,
		DiscountType: input.DiscountType,
		Discount:     input.Discount,
	}
	if err := config.GetDB().WithContext(ctx).Create(&buyer).Error; err != nil {
		return nil, err
	}
	return &buyer, nil
}
