package models

import (
	"context"
	"fmt"
	"strings"
	"time"

	"bitbucket.org/mmdatafocus/leatherworks/config"
	"bitbucket.org/mmdatafocus/leatherworks/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Sale ("sotuv") totals are derived from its lines on every line change.
type Sale struct {
	ID             int             `gorm:"primary_key" json:"id"`
	BuyerId        *int            `gorm:"index" json:"buyer_id"`
	Buyer          *Buyer          `gorm:"foreignKey:BuyerId" json:"buyer,omitempty"`
	SaleDate       time.Time       `gorm:"type:date;not null;index" json:"sale_date"`
	DiscountType   DiscountType    `gorm:"type:enum('P','A');not null;default:'P'" json:"discount_type"`
	Discount       decimal.Decimal `gorm:"type:decimal(20,4);not null;default:0" json:"discount"`
	TotalAmount    decimal.Decimal `gorm:"type:decimal(20,4);not null;default:0" json:"total_amount"`
	DiscountAmount decimal.Decimal `gorm:"type:decimal(20,4);not null;default:0" json:"discount_amount"`
	NetAmount      decimal.Decimal `gorm:"type:decimal(20,4);not null;default:0" json:"net_amount"`
	Note           string          `gorm:"type:text;default:null" json:"note"`
	Lines          []SaleLine      `gorm:"foreignKey:SaleId" json:"lines"`
	Receipt        *SaleReceipt    `gorm:"foreignKey:SaleId" json:"receipt,omitempty"`
	CreatedBy      string          `gorm:"size:100;default:null" json:"created_by"`
	CreatedAt      time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type SaleLine struct {
	ID               int             `gorm:"primary_key" json:"id"`
	SaleId           int             `gorm:"index;not null" json:"sale_id"`
	ProductVariantId int             `gorm:"index;not null" json:"product_variant_id"`
	Quantity         int             `gorm:"not null" json:"quantity"`
	UnitPrice        decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"unit_price"`
	LineTotal        decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"line_total"`
	CreatedAt        time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

// SaleReceipt ("kirim") is the income record mirroring a sale's net amount.
type SaleReceipt struct {
	ID         int             `gorm:"primary_key" json:"id"`
	SaleId     int             `gorm:"uniqueIndex;not null" json:"sale_id"`
	Amount     decimal.Decimal `gorm:"type:decimal(20,4);not null;default:0" json:"amount"`
	ReceivedAt time.Time       `gorm:"type:date;not null" json:"received_at"`
	Note       string          `gorm:"size:255;default:null" json:"note"`
	CreatedAt  time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewSale struct {
	BuyerId      *int             `json:"buyer_id"`
	SaleDate     time.Time        `json:"sale_date"`
	DiscountType *DiscountType    `json:"discount_type"`
	Discount     *decimal.Decimal `json:"discount"`
	Note         string           `json:"note"`
	Lines        []NewSaleLine    `json:"lines" binding:"required,min=1,dive"`
}

type NewSaleLine struct {
	ProductVariantId int              `json:"product_variant_id" binding:"required"`
	Quantity         int              `json:"quantity" binding:"required"`
	UnitPrice        *decimal.Decimal `json:"unit_price"`
}

type UpdateSaleLineInput struct {
	Quantity  int              `json:"quantity" binding:"required"`
	UnitPrice *decimal.Decimal `json:"unit_price"`
}

// SaleTotals is the derived money of a sale.
type SaleTotals struct {
	Total          decimal.Decimal
	DiscountAmount decimal.Decimal
	Net            decimal.Decimal
}

// ComputeSaleTotals sums line totals and applies the sale discount.
func ComputeSaleTotals(lines []SaleLine, discountType DiscountType, discount decimal.Decimal) SaleTotals {
	total := decimal.Zero
	for _, line := range lines {
		total = total.Add(line.LineTotal)
	}
	discountAmount := utils.CalculateDiscountAmount(total, discount, string(discountType))
	return SaleTotals{
		Total:          total,
		DiscountAmount: discountAmount,
		Net:            total.Sub(discountAmount),
	}
}

func lineTotal(unitPrice decimal.Decimal, qty int) decimal.Decimal {
	return unitPrice.Mul(decimal.NewFromInt(int64(qty)))
}

// CreateSale writes the header with zero totals, then adds every line the
// same way AddSaleLine does. Any failing line rolls back the whole sale.
func CreateSale(ctx context.Context, input *NewSale) (*Sale, error) {
	if len(input.Lines) == 0 {
		return nil, utils.NewInvalidInput("lines", "at least one line is required")
	}
	logger := config.GetLogger()
	db := config.GetDB()

	tx := db.WithContext(ctx).Begin()
	discountType := DiscountTypePercent
	discount := decimal.Zero
	if input.BuyerId != nil {
		buyer, err := utils.FetchModelTx[Buyer](tx, "buyer", *input.BuyerId)
		if err != nil {
			tx.Rollback()
			return nil, err
		}
		discountType, discount = buyer.DiscountType, buyer.Discount
	}
	if input.DiscountType != nil {
		discountType = *input.DiscountType
	}
	if input.Discount != nil {
		discount = *input.Discount
	}
	if err := validateDiscount(discountType, discount); err != nil {
		tx.Rollback()
		return nil, err
	}
	saleDate := input.SaleDate
	if saleDate.IsZero() {
		saleDate = time.Now()
	}
	sale := Sale{
		BuyerId:      input.BuyerId,
		SaleDate:     utils.DateOnly(saleDate),
		DiscountType: discountType,
		Discount:     discount,
		Note:         strings.TrimSpace(input.Note),
		CreatedBy:    utils.ActorFromContext(ctx),
	}
	if err := tx.Create(&sale).Error; err != nil {
		tx.Rollback()
		return nil, err
	}
	for i := range input.Lines {
		if _, err := addSaleLine(tx, &sale, &input.Lines[i]); err != nil {
			tx.Rollback()
			config.LogError(logger, "Sale", "CreateSale", fmt.Sprintf("adding line %d", i), input.Lines[i], err)
			return nil, err
		}
	}
	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	return GetSale(ctx, sale.ID)
}

// AddSaleLine adds one line to an existing sale.
func AddSaleLine(ctx context.Context, saleId int, input *NewSaleLine) (*SaleLine, error) {
	var line *SaleLine
	err := mutateSale(ctx, "AddSaleLine", saleId, func(tx *gorm.DB, sale *Sale) error {
		var err error
		line, err = addSaleLine(tx, sale, input)
		return err
	})
	return line, err
}

// UpdateSaleLine changes a line's quantity or price; only the change in
// quantity is checked against stock.
func UpdateSaleLine(ctx context.Context, lineId int, input *UpdateSaleLineInput) (*SaleLine, error) {
	if input.Quantity < 1 {
		return nil, utils.NewInvalidInput("quantity", "must be at least 1")
	}
	if input.UnitPrice != nil && input.UnitPrice.IsNegative() {
		return nil, utils.NewInvalidInput("unit_price", "cannot be negative")
	}
	saleId, err := saleIdOfLine(ctx, lineId)
	if err != nil {
		return nil, err
	}
	var line SaleLine
	err = mutateSale(ctx, "UpdateSaleLine", saleId, func(tx *gorm.DB, sale *Sale) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&line, lineId).Error; err != nil {
			return utils.NotFoundOr(err, "sale line", lineId)
		}
		delta := input.Quantity - line.Quantity
		if _, err := AdjustProductVariantStock(tx, line.ProductVariantId, -delta); err != nil {
			return err
		}
		if input.UnitPrice != nil {
			line.UnitPrice = *input.UnitPrice
		}
		line.Quantity = input.Quantity
		line.LineTotal = lineTotal(line.UnitPrice, line.Quantity)
		return tx.Model(&line).Updates(map[string]interface{}{
			"quantity":   line.Quantity,
			"unit_price": line.UnitPrice,
			"line_total": line.LineTotal,
		}).Error
	})
	if err != nil {
		return nil, err
	}
	return &line, nil
}

// RemoveSaleLine deletes a line and puts its pieces back on the variant.
func RemoveSaleLine(ctx context.Context, lineId int) (*Sale, error) {
	saleId, err := saleIdOfLine(ctx, lineId)
	if err != nil {
		return nil, err
	}
	err = mutateSale(ctx, "RemoveSaleLine", saleId, func(tx *gorm.DB, sale *Sale) error {
		var line SaleLine
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&line, lineId).Error; err != nil {
			return utils.NotFoundOr(err, "sale line", lineId)
		}
		if _, err := AdjustProductVariantStock(tx, line.ProductVariantId, line.Quantity); err != nil {
			return err
		}
		return tx.Delete(&line).Error
	})
	if err != nil {
		return nil, err
	}
	return GetSale(ctx, saleId)
}

func GetSale(ctx context.Context, id int) (*Sale, error) {
	return utils.FetchModel[Sale](ctx, "sale", id, "Lines", "Receipt")
}

func saleIdOfLine(ctx context.Context, lineId int) (int, error) {
	var line SaleLine
	if err := config.GetDB().WithContext(ctx).Select("id", "sale_id").First(&line, lineId).Error; err != nil {
		return 0, utils.NotFoundOr(err, "sale line", lineId)
	}
	return line.SaleId, nil
}

// mutateSale locks the sale header, runs fn and recomputes totals in one transaction.
func mutateSale(ctx context.Context, funcName string, saleId int, fn func(*gorm.DB, *Sale) error) error {
	logger := config.GetLogger()
	db := config.GetDB()

	tx := db.WithContext(ctx).Begin()
	var sale Sale
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&sale, saleId).Error; err != nil {
		tx.Rollback()
		return utils.NotFoundOr(err, "sale", saleId)
	}
	if err := fn(tx, &sale); err != nil {
		tx.Rollback()
		config.LogError(logger, "Sale", funcName, "mutating sale", map[string]any{"sale_id": saleId}, err)
		return err
	}
	if err := recomputeSaleTotals(tx, &sale); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit().Error
}

func addSaleLine(tx *gorm.DB, sale *Sale, input *NewSaleLine) (*SaleLine, error) {
	if input.Quantity < 1 {
		return nil, utils.NewInvalidInput("quantity", "must be at least 1")
	}
	if input.UnitPrice != nil && input.UnitPrice.IsNegative() {
		return nil, utils.NewInvalidInput("unit_price", "cannot be negative")
	}
	variant, err := AdjustProductVariantStock(tx, input.ProductVariantId, -input.Quantity)
	if err != nil {
		return nil, err
	}
	unitPrice := variant.Price
	if input.UnitPrice != nil {
		unitPrice = *input.UnitPrice
	}
	line := SaleLine{
		SaleId:           sale.ID,
		ProductVariantId: variant.ID,
		Quantity:         input.Quantity,
		UnitPrice:        unitPrice,
		LineTotal:        lineTotal(unitPrice, input.Quantity),
	}
	if err := tx.Create(&line).Error; err != nil {
		return nil, err
	}
	if err := recomputeSaleTotals(tx, sale); err != nil {
		return nil, err
	}
	return &line, nil
}

// recomputeSaleTotals rebuilds header totals from the stored lines and
// keeps the receipt equal to the net amount.
func recomputeSaleTotals(tx *gorm.DB, sale *Sale) error {
	var lines []SaleLine
	if err := tx.Where("sale_id = ?", sale.ID).Find(&lines).Error; err != nil {
		return err
	}
	totals := ComputeSaleTotals(lines, sale.DiscountType, sale.Discount)
	sale.TotalAmount = totals.Total
	sale.DiscountAmount = totals.DiscountAmount
	sale.NetAmount = totals.Net
	if err := tx.Model(&Sale{}).Where("id = ?", sale.ID).Updates(map[string]interface{}{
		"total_amount":    sale.TotalAmount,
		"discount_amount": sale.DiscountAmount,
		"net_amount":      sale.NetAmount,
	}).Error; err != nil {
		return err
	}
	receipt := SaleReceipt{
		SaleId:     sale.ID,
		Amount:     sale.NetAmount,
		ReceivedAt: sale.SaleDate,
		Note:       fmt.Sprintf("sale #%d", sale.ID),
	}
	return tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "sale_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"amount", "updated_at"}),
	}).Create(&receipt).Error
}
