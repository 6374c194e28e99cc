package workflow

import (
	"context"
	"fmt"
	"time"

	"bitbucket.org/mmdatafocus/leatherworks/config"
	"bitbucket.org/mmdatafocus/leatherworks/models"
	"bitbucket.org/mmdatafocus/leatherworks/utils"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"
)

var tracer = otel.Tracer("leatherworks/workflow")

// stageRun is the state shared by one ExecuteStage call.
type stageRun struct {
	tx      *gorm.DB
	worker  *models.Worker
	product *models.Product
	actor   string
	result  *StageResult
}

// ExecuteStage records one production event and every stock movement it
// causes in a single transaction. Nothing is written if any step fails.
func ExecuteStage(ctx context.Context, input StageInput) (*StageResult, error) {
	if input == nil {
		return nil, utils.NewInvalidInput("stage", "is required")
	}
	if err := input.validate(); err != nil {
		return nil, err
	}
	common := input.Common()

	ctx, span := tracer.Start(ctx, "ExecuteStage", trace.WithSpanKind(trace.SpanKindInternal))
	defer span.End()
	span.SetAttributes(
		attribute.String("stage", string(input.Kind())),
		attribute.Int("worker_id", common.WorkerId),
		attribute.Int("product_id", common.ProductId),
		attribute.Int("quantity", common.Quantity),
	)

	logger := config.GetLogger()
	if config.StageRedisLock() {
		release, err := utils.ObtainLock(ctx, "ProductionStage", common.ProductId, "ProductionStage", "ExecuteStage")
		if err != nil {
			return nil, err
		}
		defer release()
	}

	result, err := executeStageTx(ctx, input)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		config.LogError(logger, "ProductionStage", "ExecuteStage", string(input.Kind()), map[string]any{
			"worker_id":  common.WorkerId,
			"product_id": common.ProductId,
			"quantity":   common.Quantity,
			"input":      input,
		}, err)
		return nil, err
	}
	config.LogInfo(logger, "ProductionStage", "ExecuteStage", map[string]any{
		"event_id": result.Event.ID,
		"stage":    result.Event.Stage,
		"quantity": result.Event.Quantity,
		"consumed": result.Consumed,
	}, "production event recorded")
	return result, nil
}

func executeStageTx(ctx context.Context, input StageInput) (*StageResult, error) {
	common := input.Common()
	tx := config.GetDB().WithContext(ctx).Begin()
	if tx.Error != nil {
		return nil, tx.Error
	}
	run, err := loadStageRun(ctx, tx, input)
	if err != nil {
		tx.Rollback()
		return nil, err
	}

	switch in := input.(type) {
	case TrimInput:
		err = run.trim(in)
	case CutInput:
		err = run.cut(in)
	case HideCutInput:
		err = run.hideCut(in)
	case FinishInput, OtherInput:
		_, err = run.createEvent(common, input.Kind(), nil, "", "")
	default:
		err = utils.NewInvalidInput("stage", fmt.Sprintf("unsupported stage input %T", input))
	}
	if err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	if len(run.result.Consumed) > 0 {
		models.InvalidateLowStockCache()
	}
	return run.result, nil
}

// loadStageRun resolves the worker and product and checks the worker's role
// matches the stage being recorded.
func loadStageRun(ctx context.Context, tx *gorm.DB, input StageInput) (*stageRun, error) {
	common := input.Common()
	worker, err := models.FetchWorkerWithRole(tx, common.WorkerId)
	if err != nil {
		return nil, err
	}
	if worker.Stage() != input.Kind() {
		return nil, utils.NewInvalidInput("worker_id", fmt.Sprintf("worker #%d records %s work, not %s", worker.ID, worker.Stage(), input.Kind()))
	}
	product, err := utils.FetchModelTx[models.Product](tx, "product", common.ProductId)
	if err != nil {
		return nil, err
	}
	return &stageRun{
		tx:      tx,
		worker:  worker,
		product: product,
		actor:   utils.ActorFromContext(ctx),
		result:  &StageResult{},
	}, nil
}

func (r *stageRun) createEvent(common StageCommon, stage models.StageKind, upstream Upstream, color, size string) (*models.ProductionEvent, error) {
	eventDate := common.EventDate
	if eventDate.IsZero() {
		eventDate = time.Now()
	}
	input := &models.NewProductionEvent{
		Worker:    r.worker,
		Product:   r.product,
		Stage:     stage,
		Quantity:  common.Quantity,
		Color:     color,
		Size:      size,
		EventDate: eventDate,
		Note:      common.Note,
	}
	switch u := upstream.(type) {
	case LinkedUpstream:
		input.UpstreamMaterialId = &u.MaterialId
	case StandaloneUpstream:
		input.Standalone = true
	}
	event, err := models.CreateProductionEvent(r.tx, input)
	if err != nil {
		return nil, err
	}
	r.result.Event = event
	return event, nil
}

// consume draws qty from pool for the current event and notes what is left.
func (r *stageRun) consume(pool models.StockPool, qty decimal.Decimal) (*models.ProductionStageMaterialLink, error) {
	link, err := models.ConsumeForStage(r.tx, r.result.Event, &models.NewStageMaterial{
		Pool:     pool,
		Quantity: qty,
		Actor:    r.actor,
	})
	if err != nil {
		return nil, err
	}
	remaining, err := models.LockBalance(r.tx, pool)
	if err != nil {
		return nil, err
	}
	r.result.Consumed = append(r.result.Consumed, ConsumedMaterial{
		MaterialId: pool.MaterialId,
		VariantId:  pool.VariantId,
		Quantity:   qty,
		Remaining:  remaining,
	})
	return link, nil
}

func (r *stageRun) produce(stage models.StageKind, color string) error {
	output, err := models.ProduceProcessMaterial(r.tx, r.product, stage, color, r.result.Event.Quantity, r.result.Event, r.actor)
	if err != nil {
		return err
	}
	r.result.Output = output
	return r.result.Event.SetOutputMaterial(r.tx, output.ID)
}

// upstreamRequest checks a linked upstream belongs to the product and the
// expected stage. Standalone work returns no request.
func (r *stageRun) upstreamRequest(upstream Upstream, from models.StageKind, qty int) ([]models.PoolRequest, error) {
	linked, ok := upstream.(LinkedUpstream)
	if !ok {
		return nil, nil
	}
	material, err := models.FetchUpstreamMaterial(r.tx, linked.MaterialId, r.product.ID, from)
	if err != nil {
		return nil, err
	}
	return []models.PoolRequest{{Pool: models.MaterialPool(material.ID), Quantity: decimal.NewFromInt(int64(qty))}}, nil
}

func (r *stageRun) trim(in TrimInput) error {
	requests, err := r.upstreamRequest(in.Upstream, models.StageCut, in.Quantity)
	if err != nil {
		return err
	}
	if err := models.CheckSufficiency(r.tx, requests); err != nil {
		return err
	}
	if _, err := r.createEvent(in.StageCommon, models.StageTrim, in.Upstream, in.Color, ""); err != nil {
		return err
	}
	for _, req := range requests {
		if _, err := r.consume(req.Pool, req.Quantity); err != nil {
			return err
		}
	}
	return r.produce(models.StageTrim, in.Color)
}

// HideRequirement is perUnit times qty, perUnit falling back to the product default.
func HideRequirement(override *decimal.Decimal, productDefault decimal.Decimal, qty int) (perUnit decimal.Decimal, total decimal.Decimal) {
	perUnit = productDefault
	if override != nil {
		perUnit = *override
	}
	return perUnit, perUnit.Mul(decimal.NewFromInt(int64(qty)))
}

type plannedDraw struct {
	source  MaterialSource
	perUnit decimal.Decimal
	qty     decimal.Decimal
	role    models.MaterialRole
	field   string
}

func (r *stageRun) planCut(in CutInput) ([]plannedDraw, error) {
	var plan []plannedDraw
	for i, hide := range in.Hides {
		perUnit, qty := HideRequirement(hide.PerUnit, r.product.HideUsagePerUnit, in.Quantity)
		if !qty.IsPositive() {
			return nil, utils.NewInvalidInput(fmt.Sprintf("hides[%d].per_unit", i), "product has no hide usage configured")
		}
		plan = append(plan, plannedDraw{
			source:  hide,
			perUnit: perUnit,
			qty:     qty,
			role:    models.MaterialRoleHide,
			field:   fmt.Sprintf("hides[%d].material_id", i),
		})
	}
	if in.Lining != nil {
		perUnit, qty := HideRequirement(in.Lining.PerUnit, r.product.LiningUsagePerUnit, in.Quantity)
		if !qty.IsPositive() {
			return nil, utils.NewInvalidInput("lining.per_unit", "product has no lining usage configured")
		}
		plan = append(plan, plannedDraw{
			source:  *in.Lining,
			perUnit: perUnit,
			qty:     qty,
			role:    models.MaterialRoleLining,
			field:   "lining.material_id",
		})
	}
	return plan, nil
}

// requireRole accepts only a real material whose category supplies role.
func (r *stageRun) requireRole(materialId int, role models.MaterialRole, field string) error {
	material, err := utils.FetchModelTx[models.Material](r.tx, "material", materialId, "Category")
	if err != nil {
		return err
	}
	if material.Kind() != models.MaterialCategoryReal {
		return utils.NewInvalidInput(field, fmt.Sprintf("material #%d is not a real material", materialId))
	}
	if got := material.Role(); got == nil || *got != role {
		return utils.NewInvalidInput(field, fmt.Sprintf("material #%d is not %s", materialId, role))
	}
	return nil
}

// cut checks every hide and lining draw, summed per pool, before writing anything.
func (r *stageRun) cut(in CutInput) error {
	plan, err := r.planCut(in)
	if err != nil {
		return err
	}
	requests := make([]models.PoolRequest, 0, len(plan))
	for _, d := range plan {
		if err := r.requireRole(d.source.MaterialId, d.role, d.field); err != nil {
			return err
		}
		requests = append(requests, models.PoolRequest{Pool: d.source.Pool(), Quantity: d.qty})
	}
	if err := models.CheckSufficiency(r.tx, requests); err != nil {
		return err
	}

	event, err := r.createEvent(in.StageCommon, models.StageCut, nil, in.Color, "")
	if err != nil {
		return err
	}
	for _, d := range plan {
		link, err := r.consume(d.source.Pool(), d.qty)
		if err != nil {
			return err
		}
		if d.role == models.MaterialRoleHide {
			if _, err := models.RecordHideConsumption(r.tx, event, link, d.perUnit); err != nil {
				return err
			}
		}
	}
	return r.produce(models.StageCut, in.Color)
}

func (r *stageRun) hideCut(in HideCutInput) error {
	requests, err := r.upstreamRequest(in.Upstream, models.StageTrim, in.Quantity)
	if err != nil {
		return err
	}
	if err := r.requireRole(in.Hardware.MaterialId, models.MaterialRoleHardware, "hardware.material_id"); err != nil {
		return err
	}
	requests = append(requests, models.PoolRequest{Pool: in.Hardware.Pool(), Quantity: decimal.NewFromInt(int64(in.Quantity))})
	if err := models.CheckSufficiency(r.tx, requests); err != nil {
		return err
	}

	if _, err := r.createEvent(in.StageCommon, models.StageHideCut, in.Upstream, in.Color, in.Size); err != nil {
		return err
	}
	for _, req := range requests {
		if _, err := r.consume(req.Pool, req.Quantity); err != nil {
			return err
		}
	}
	variant, err := models.UpsertFinishedGoodVariant(r.tx, r.product, in.Color, in.Size, in.Quantity)
	if err != nil {
		return err
	}
	r.result.FinishedGood = variant
	return r.produce(models.StageHideCut, in.Color)
}
