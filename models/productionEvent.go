package models

import (
	"context"
	"time"

	"bitbucket.org/mmdatafocus/leatherworks/config"
	"bitbucket.org/mmdatafocus/leatherworks/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ProductionEvent ("ish") is one worker's recorded output at one stage.
type ProductionEvent struct {
	ID                 int                           `gorm:"primary_key" json:"id"`
	WorkerId           *int                          `gorm:"index" json:"worker_id"`
	Worker             *Worker                       `gorm:"foreignKey:WorkerId" json:"worker,omitempty"`
	ProductId          int                           `gorm:"index;not null" json:"product_id"`
	Stage              StageKind                     `gorm:"type:enum('trim','cut','hide_cut','finish','other');not null" json:"stage"`
	Quantity           int                           `gorm:"not null" json:"quantity"`
	UnitPrice          decimal.Decimal               `gorm:"type:decimal(20,4);not null;default:0" json:"unit_price"`
	TotalAmount        decimal.Decimal               `gorm:"type:decimal(20,4);not null;default:0" json:"total_amount"`
	Standalone         bool                          `gorm:"not null;default:false" json:"standalone"`
	UpstreamMaterialId *int                          `json:"upstream_material_id"`
	OutputMaterialId   *int                          `json:"output_material_id"`
	Color              string                        `gorm:"size:50;default:null" json:"color"`
	Size               string                        `gorm:"size:20;default:null" json:"size"`
	EventDate          time.Time                     `gorm:"type:date;not null;index" json:"event_date"`
	Status             ProductionEventStatus         `gorm:"type:enum('new','closed');not null;default:'new';index" json:"status"`
	PayPeriodId        *int                          `gorm:"index" json:"pay_period_id"`
	Note               string                        `gorm:"type:text;default:null" json:"note"`
	MaterialLinks      []ProductionStageMaterialLink `gorm:"foreignKey:ProductionEventId" json:"material_links,omitempty"`
	HideConsumptions   []HideConsumptionRecord       `gorm:"foreignKey:ProductionEventId" json:"hide_consumptions,omitempty"`
	CreatedAt          time.Time                     `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt          time.Time                     `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewProductionEvent struct {
	Worker             *Worker
	Product            *Product
	Stage              StageKind
	Quantity           int
	Standalone         bool
	UpstreamMaterialId *int
	Color              string
	Size               string
	EventDate          time.Time
	Note               string
}

// PieceRate is the product's price for the stage times the quantity.
func PieceRate(product *Product, stage StageKind, qty int) (unitPrice decimal.Decimal, total decimal.Decimal) {
	unitPrice = product.StagePrice(stage)
	return unitPrice, unitPrice.Mul(decimal.NewFromInt(int64(qty)))
}

// CreateProductionEvent inserts the event row inside the caller's transaction.
func CreateProductionEvent(tx *gorm.DB, input *NewProductionEvent) (*ProductionEvent, error) {
	if input.Quantity < 1 {
		return nil, utils.NewInvalidInput("quantity", "must be at least 1")
	}
	if input.Product == nil {
		return nil, utils.NewInvalidInput("product_id", "is required")
	}
	unitPrice, total := PieceRate(input.Product, input.Stage, input.Quantity)
	event := ProductionEvent{
		ProductId:          input.Product.ID,
		Stage:              input.Stage,
		Quantity:           input.Quantity,
		UnitPrice:          unitPrice,
		TotalAmount:        total,
		Standalone:         input.Standalone,
		UpstreamMaterialId: input.UpstreamMaterialId,
		Color:              input.Color,
		Size:               input.Size,
		EventDate:          utils.DateOnly(input.EventDate),
		Status:             ProductionEventStatusNew,
		Note:               input.Note,
	}
	if input.Worker != nil {
		event.WorkerId = &input.Worker.ID
	}
	if err := tx.Create(&event).Error; err != nil {
		return nil, err
	}
	return &event, nil
}

// SetOutputMaterial records which process material the event produced.
func (e *ProductionEvent) SetOutputMaterial(tx *gorm.DB, materialId int) error {
	e.OutputMaterialId = &materialId
	return tx.Model(&ProductionEvent{}).Where("id = ?", e.ID).Update("output_material_id", materialId).Error
}

func GetProductionEvent(ctx context.Context, id int) (*ProductionEvent, error) {
	return utils.FetchModel[ProductionEvent](ctx, "production event", id, "MaterialLinks", "HideConsumptions")
}

type ProductionEventFilter struct {
	WorkerId  *int                   `form:"worker_id"`
	ProductId *int                   `form:"product_id"`
	Stage     *StageKind             `form:"stage"`
	Status    *ProductionEventStatus `form:"status"`
	FromDate  *time.Time             `form:"from_date" time_format:"2006-01-02"`
	ToDate    *time.Time             `form:"to_date" time_format:"2006-01-02"`
	After     string                 `form:"after"`
	Limit     int                    `form:"limit"`
}

type ProductionEventPage struct {
	Events   []*ProductionEvent `json:"events"`
	PageInfo PageInfo           `json:"page_info"`
}

// ListProductionEvents pages through events newest first.
func ListProductionEvents(ctx context.Context, filter ProductionEventFilter) (*ProductionEventPage, error) {
	dbCtx := config.GetDB().WithContext(ctx)
	if filter.WorkerId != nil {
		dbCtx = dbCtx.Where("worker_id = ?", *filter.WorkerId)
	}
	if filter.ProductId != nil {
		dbCtx = dbCtx.Where("product_id = ?", *filter.ProductId)
	}
	if filter.Stage != nil {
		dbCtx = dbCtx.Where("stage = ?", *filter.Stage)
	}
	if filter.Status != nil {
		dbCtx = dbCtx.Where("status = ?", *filter.Status)
	}
	if filter.FromDate != nil {
		dbCtx = dbCtx.Where("event_date >= ?", utils.DateOnly(*filter.FromDate))
	}
	if filter.ToDate != nil {
		dbCtx = dbCtx.Where("event_date <= ?", utils.DateOnly(*filter.ToDate))
	}
	if filter.After != "" {
		afterDate, afterId, ok := DecodeEventCursor(filter.After)
		if !ok {
			return nil, utils.NewInvalidInput("after", "invalid cursor")
		}
		dbCtx = dbCtx.Where("(event_date < ? OR (event_date = ? AND id < ?))", afterDate, afterDate, afterId)
	}
	limit := pageLimit(filter.Limit)

	var events []*ProductionEvent
	if err := dbCtx.Order("event_date DESC, id DESC").Limit(limit + 1).Find(&events).Error; err != nil {
		return nil, err
	}
	page := &ProductionEventPage{Events: events}
	if len(events) > limit {
		page.Events = events[:limit]
		page.PageInfo.HasNextPage = true
	}
	if n := len(page.Events); n > 0 {
		last := page.Events[n-1]
		page.PageInfo.EndCursor = EncodeEventCursor(last.EventDate, last.ID)
	}
	return page, nil
}
