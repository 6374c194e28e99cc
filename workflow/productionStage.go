package workflow

import (
	"time"

	"bitbucket.org/mmdatafocus/leatherworks/models"
	"bitbucket.org/mmdatafocus/leatherworks/utils"
	"github.com/shopspring/decimal"
)

// StageInput is one of TrimInput, CutInput, HideCutInput, FinishInput or OtherInput.
type StageInput interface {
	Kind() models.StageKind
	Common() StageCommon
	validate() error
}

// StageCommon is what every production event carries.
type StageCommon struct {
	WorkerId  int       `json:"worker_id"`
	ProductId int       `json:"product_id"`
	Quantity  int       `json:"quantity"`
	EventDate time.Time `json:"event_date"`
	Note      string    `json:"note"`
}

func (c StageCommon) Common() StageCommon { return c }

func (c StageCommon) validate() error {
	if c.WorkerId <= 0 {
		return utils.NewInvalidInput("worker_id", "is required")
	}
	if c.ProductId <= 0 {
		return utils.NewInvalidInput("product_id", "is required")
	}
	if c.Quantity < 1 {
		return utils.NewInvalidInput("quantity", "must be at least 1")
	}
	return nil
}

// Upstream says where a stage's input pieces come from: a previous stage's
// process material, or nowhere for standalone work.
type Upstream interface {
	isUpstream()
}

type LinkedUpstream struct {
	MaterialId int
}

type StandaloneUpstream struct{}

func (LinkedUpstream) isUpstream()     {}
func (StandaloneUpstream) isUpstream() {}

func validateUpstream(u Upstream) error {
	switch u := u.(type) {
	case LinkedUpstream:
		if u.MaterialId <= 0 {
			return utils.NewInvalidInput("upstream_material_id", "is required")
		}
		return nil
	case StandaloneUpstream:
		return nil
	}
	return utils.NewInvalidInput("upstream_material_id", "select an upstream material or mark the work standalone")
}

// TrimInput ("zakatovka") turns cut pieces into trimmed pieces.
type TrimInput struct {
	StageCommon
	Upstream Upstream
	Color    string
}

func (TrimInput) Kind() models.StageKind { return models.StageTrim }

func (in TrimInput) validate() error {
	if err := in.StageCommon.validate(); err != nil {
		return err
	}
	return validateUpstream(in.Upstream)
}

// MaterialSource picks a real material pool and, optionally, how much of it
// one finished item uses.
type MaterialSource struct {
	MaterialId int              `json:"material_id"`
	VariantId  *int             `json:"variant_id"`
	PerUnit    *decimal.Decimal `json:"per_unit"`
}

func (s MaterialSource) Pool() models.StockPool {
	return models.StockPool{MaterialId: s.MaterialId, VariantId: s.VariantId}
}

func (s MaterialSource) validate(field string) error {
	if s.MaterialId <= 0 {
		return utils.NewInvalidInput(field+".material_id", "is required")
	}
	if s.PerUnit != nil && !s.PerUnit.IsPositive() {
		return utils.NewInvalidInput(field+".per_unit", "must be greater than zero")
	}
	return nil
}

// CutInput ("kroy") cuts one or more hides, and optionally lining, into pieces.
type CutInput struct {
	StageCommon
	Hides  []MaterialSource
	Lining *MaterialSource
	Color  string
}

func (CutInput) Kind() models.StageKind { return models.StageCut }

func (in CutInput) validate() error {
	if err := in.StageCommon.validate(); err != nil {
		return err
	}
	if len(in.Hides) == 0 {
		return utils.NewInvalidInput("hides", "at least one hide is required")
	}
	for _, h := range in.Hides {
		if err := h.validate("hides"); err != nil {
			return err
		}
	}
	if in.Lining != nil {
		return in.Lining.validate("lining")
	}
	return nil
}

// HideCutInput ("kosib") assembles trimmed pieces with hardware into finished goods.
type HideCutInput struct {
	StageCommon
	Upstream Upstream
	Hardware MaterialSource
	Color    string
	Size     string
}

func (HideCutInput) Kind() models.StageKind { return models.StageHideCut }

func (in HideCutInput) validate() error {
	if err := in.StageCommon.validate(); err != nil {
		return err
	}
	if err := validateUpstream(in.Upstream); err != nil {
		return err
	}
	if in.Hardware.PerUnit != nil {
		return utils.NewInvalidInput("hardware.per_unit", "hardware is used one per item")
	}
	return in.Hardware.validate("hardware")
}

// FinishInput ("pardoz") only records the work.
type FinishInput struct {
	StageCommon
}

func (FinishInput) Kind() models.StageKind { return models.StageFinish }

// OtherInput covers roles without a stage of their own.
type OtherInput struct {
	StageCommon
}

func (OtherInput) Kind() models.StageKind { return models.StageOther }

// ConsumedMaterial is one pool drawn down by a stage and what it has left.
type ConsumedMaterial struct {
	MaterialId int             `json:"material_id"`
	VariantId  *int            `json:"variant_id"`
	Quantity   decimal.Decimal `json:"quantity"`
	Remaining  decimal.Decimal `json:"remaining"`
}

// StageResult is what a caller needs to confirm the event.
type StageResult struct {
	Event        *models.ProductionEvent `json:"event"`
	Consumed     []ConsumedMaterial      `json:"consumed"`
	Output       *models.Material        `json:"output,omitempty"`
	FinishedGood *models.ProductVariant  `json:"finished_good,omitempty"`
}
