package models

import (
	"context"
	"strings"
	"time"

	"bitbucket.org/mmdatafocus/leatherworks/config"
	"bitbucket.org/mmdatafocus/leatherworks/utils"
)

type Supplier struct {
	ID        int       `gorm:"primary_key" json:"id"`
	Name      string    `gorm:"size:200;not null" json:"name"`
	Phone     string    `gorm:"size:30;default:null" json:"phone"`
	Address   string    `gorm:"size:255;default:null" json:"address"`
	Note      string    `gorm:"type:text;default:null" json:"note"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

type NewSupplier struct {
	Name    string `json:"name" binding:"required"`
	Phone   string `json:"phone"`
	Address string `json:"address"`
	Note    string `json:"note"`
}

func CreateSupplier(ctx context.Context, input *NewSupplier) (*Supplier, error) {
	if strings.TrimSpace(input.Name) == "" {
		return nil, utils.NewInvalidInput("name", "is required")
	}
	if input.Phone != "" {
		if err := utils.ValidatePhoneNumber(input.Phone, utils.CountryCode); err != nil {
			return nil, utils.NewInvalidInput("phone", err.Error())
		}
	}
	supplier := Supplier{
		Name:    strings.TrimSpace(input.Name),
		Phone:   input.Phone,
		Address: input.Address,
		Note:    input.Note,
	}
	if err := config.GetDB().WithContext(ctx).Create(&supplier).Error; err != nil {
		return nil, err
	}
	return &supplier, nil
}
