package main

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"bitbucket.org/mmdatafocus/leatherworks/middlewares"
	"bitbucket.org/mmdatafocus/leatherworks/models"
	"bitbucket.org/mmdatafocus/leatherworks/utils"
	"bitbucket.org/mmdatafocus/leatherworks/workflow"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

func registerRoutes(r *gin.Engine) {
	api := r.Group("/api", middlewares.RequireUser())
	staff := api.Group("", middlewares.RequireStaff())

	api.GET("/categories", listCategories)
	staff.POST("/categories", createCategory)
	staff.POST("/categories/defaults", seedCategories)

	staff.POST("/suppliers", createSupplier)

	api.GET("/materials/:id", getMaterial)
	staff.POST("/materials", createMaterial)
	staff.PATCH("/materials/:id/status", updateMaterialStatus)
	api.GET("/materials/:id/variants", listMaterialVariants)
	staff.POST("/materials/:id/variants", createMaterialVariant)
	api.GET("/materials/:id/balance", getMaterialBalance)
	api.GET("/materials/:id/statistics", getMaterialStatistics)
	api.GET("/reports/low-stock", listLowStock)
	api.GET("/reports/materials", getOverview)
	api.GET("/process-materials", listProcessMaterials)

	staff.POST("/stock/intake", recordIntake)
	staff.POST("/stock/consumption", recordConsumption)
	staff.POST("/stock/inventory-count", recordInventoryCount)

	api.GET("/products/:id", getProduct)
	staff.POST("/products", createProduct)
	api.GET("/products/:id/variants", listProductVariants)
	staff.POST("/products/:id/variants", createProductVariant)

	staff.POST("/worker-roles", createWorkerRole)
	staff.POST("/workers", createWorker)
	staff.POST("/workers/:id/close-period", closePayPeriod)
	staff.GET("/workers/:id/earnings", getWorkerEarnings)

	staff.POST("/production/:stage", executeStage)
	api.GET("/production/events", listEvents)
	api.GET("/production/events/:id", getEvent)
	api.GET("/production/events/:id/hide-usage", getHideUsage)
	staff.DELETE("/production/hide-consumptions/:id", deleteHideConsumption)

	api.GET("/allocations/:id", getAllocation)
	staff.POST("/allocations", issueAllocation)
	staff.POST("/allocations/:id/return", returnAllocation)
	staff.POST("/allocation-items/:id/return", returnAllocationItem)
	staff.POST("/allocation-items/:id/consume", consumeAllocationItem)

	staff.POST("/buyers", createBuyer)
	api.GET("/sales/:id", getSale)
	staff.POST("/sales", createSale)
	staff.POST("/sales/:id/lines", addSaleLine)
	staff.PUT("/sale-lines/:id", updateSaleLine)
	staff.DELETE("/sale-lines/:id", removeSaleLine)

	staff.GET("/expense-categories", listExpenseCategories)
	staff.POST("/expense-categories", createExpenseCategory)
	staff.GET("/expenses", listExpenses)
	staff.POST("/expenses", createExpense)
	staff.DELETE("/expenses/:id", deleteExpense)
	staff.GET("/reports/expenses", getExpenseTotals)
}

// statusFor maps domain errors onto HTTP status codes.
func statusFor(err error) int {
	var validationErrors validator.ValidationErrors
	switch {
	case errors.As(err, &validationErrors):
		return http.StatusUnprocessableEntity
	case errors.Is(err, utils.ErrNotFound), errors.Is(err, utils.ErrorRecordNotFound):
		return http.StatusNotFound
	case errors.Is(err, utils.ErrInsufficientStock):
		return http.StatusConflict
	case errors.Is(err, utils.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, utils.ErrConsistencyViolation):
		return http.StatusUnprocessableEntity
	case errors.Is(err, utils.ErrLockBusy):
		return http.StatusLocked
	default:
		return http.StatusInternalServerError
	}
}

func respondError(c *gin.Context, err error) {
	_ = c.Error(err)
	status := statusFor(err)
	body := gin.H{"error": err.Error()}

	var validationErrors validator.ValidationErrors
	var insufficient *utils.InsufficientStockError
	switch {
	case errors.As(err, &validationErrors):
		body = gin.H{"error": "validation failed", "fields": utils.ProcessValidationErrors(err)}
	case errors.As(err, &insufficient):
		body["pool"] = insufficient.Pool
		body["requested"] = insufficient.Requested
		body["available"] = insufficient.Available
		body["shortfall"] = insufficient.Shortfall()
	case status == http.StatusInternalServerError:
		body = gin.H{"error": "internal error"}
	}
	c.AbortWithStatusJSON(status, body)
}

func respond(c *gin.Context, status int, obj any, err error) {
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(status, obj)
}

func bindJSON(c *gin.Context, dest any) bool {
	if err := c.ShouldBindJSON(dest); err != nil {
		var validationErrors validator.ValidationErrors
		if errors.As(err, &validationErrors) {
			respondError(c, err)
		} else {
			respondError(c, utils.NewInvalidInput("body", err.Error()))
		}
		return false
	}
	return true
}

func pathId(c *gin.Context) (int, bool) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		respondError(c, utils.NewInvalidInput("id", "must be a positive integer"))
		return 0, false
	}
	return id, true
}

func queryInt(c *gin.Context, key string) (*int, bool) {
	raw := c.Query(key)
	if raw == "" {
		return nil, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		respondError(c, utils.NewInvalidInput(key, "must be an integer"))
		return nil, false
	}
	return &v, true
}

type quantityBody struct {
	Quantity decimal.Decimal `json:"quantity" binding:"required"`
}

// categories

func listCategories(c *gin.Context) {
	result, err := models.ListMaterialCategories(c.Request.Context())
	respond(c, http.StatusOK, result, err)
}

func createCategory(c *gin.Context) {
	var input models.NewMaterialCategory
	if !bindJSON(c, &input) {
		return
	}
	result, err := models.CreateMaterialCategory(c.Request.Context(), &input)
	respond(c, http.StatusCreated, result, err)
}

func seedCategories(c *gin.Context) {
	result, err := models.EnsureDefaultCategories(c.Request.Context())
	respond(c, http.StatusOK, result, err)
}

func createSupplier(c *gin.Context) {
	var input models.NewSupplier
	if !bindJSON(c, &input) {
		return
	}
	result, err := models.CreateSupplier(c.Request.Context(), &input)
	respond(c, http.StatusCreated, result, err)
}

// materials

func getMaterial(c *gin.Context) {
	id, ok := pathId(c)
	if !ok {
		return
	}
	result, err := models.GetMaterial(c.Request.Context(), id)
	respond(c, http.StatusOK, result, err)
}

func createMaterial(c *gin.Context) {
	var input models.NewMaterial
	if !bindJSON(c, &input) {
		return
	}
	result, err := models.CreateMaterial(c.Request.Context(), &input)
	respond(c, http.StatusCreated, result, err)
}

func updateMaterialStatus(c *gin.Context) {
	id, ok := pathId(c)
	if !ok {
		return
	}
	var input struct {
		Status models.MaterialStatus `json:"status" binding:"required"`
	}
	if !bindJSON(c, &input) {
		return
	}
	result, err := models.UpdateMaterialStatus(c.Request.Context(), id, input.Status)
	respond(c, http.StatusOK, result, err)
}

func listMaterialVariants(c *gin.Context) {
	id, ok := pathId(c)
	if !ok {
		return
	}
	inStock := c.Query("in_stock") == "true"
	result, err := models.ListMaterialVariants(c.Request.Context(), id, inStock)
	respond(c, http.StatusOK, result, err)
}

func createMaterialVariant(c *gin.Context) {
	id, ok := pathId(c)
	if !ok {
		return
	}
	var input models.NewMaterialVariant
	input.MaterialId = id
	if !bindJSON(c, &input) {
		return
	}
	input.MaterialId = id
	result, err := models.CreateMaterialVariant(c.Request.Context(), &input)
	respond(c, http.StatusCreated, result, err)
}

func getMaterialBalance(c *gin.Context) {
	id, ok := pathId(c)
	if !ok {
		return
	}
	variantId, ok := queryInt(c, "variant_id")
	if !ok {
		return
	}
	pool := models.StockPool{MaterialId: id, VariantId: variantId}
	balance, err := models.GetBalance(c.Request.Context(), pool)
	respond(c, http.StatusOK, gin.H{"pool": pool.String(), "balance": balance}, err)
}

func getMaterialStatistics(c *gin.Context) {
	id, ok := pathId(c)
	if !ok {
		return
	}
	result, err := models.GetMaterialStatistics(c.Request.Context(), id)
	respond(c, http.StatusOK, result, err)
}

func listLowStock(c *gin.Context) {
	result, err := models.ListLowStockMaterials(c.Request.Context())
	respond(c, http.StatusOK, result, err)
}

func getOverview(c *gin.Context) {
	result, err := models.GetMaterialOverview(c.Request.Context())
	respond(c, http.StatusOK, result, err)
}

func listProcessMaterials(c *gin.Context) {
	productId, ok := queryInt(c, "product_id")
	if !ok {
		return
	}
	if productId == nil {
		respondError(c, utils.NewInvalidInput("product_id", "required"))
		return
	}
	stage := models.StageKind(c.Query("stage"))
	if !stage.ProducesMaterial() {
		respondError(c, utils.NewInvalidInput("stage", "must be a stage that produces material"))
		return
	}
	result, err := models.ListProcessMaterials(c.Request.Context(), *productId, stage)
	respond(c, http.StatusOK, result, err)
}

// direct stock movements

func recordIntake(c *gin.Context) {
	var input models.NewMaterialIntake
	if !bindJSON(c, &input) {
		return
	}
	result, err := models.RecordMaterialIntake(c.Request.Context(), &input)
	respond(c, http.StatusCreated, result, err)
}

func recordConsumption(c *gin.Context) {
	var input models.NewMaterialConsumption
	if !bindJSON(c, &input) {
		return
	}
	result, err := models.RecordMaterialConsumption(c.Request.Context(), &input)
	respond(c, http.StatusCreated, result, err)
}

func recordInventoryCount(c *gin.Context) {
	var input models.NewInventoryCount
	if !bindJSON(c, &input) {
		return
	}
	result, err := models.RecordInventoryCount(c.Request.Context(), &input)
	respond(c, http.StatusOK, result, err)
}

// products

func getProduct(c *gin.Context) {
	id, ok := pathId(c)
	if !ok {
		return
	}
	result, err := models.GetProduct(c.Request.Context(), id)
	respond(c, http.StatusOK, result, err)
}

func createProduct(c *gin.Context) {
	var input models.NewProduct
	if !bindJSON(c, &input) {
		return
	}
	result, err := models.CreateProduct(c.Request.Context(), &input)
	respond(c, http.StatusCreated, result, err)
}

func listProductVariants(c *gin.Context) {
	id, ok := pathId(c)
	if !ok {
		return
	}
	result, err := models.ListProductVariants(c.Request.Context(), id)
	respond(c, http.StatusOK, result, err)
}

func createProductVariant(c *gin.Context) {
	id, ok := pathId(c)
	if !ok {
		return
	}
	var input models.NewProductVariant
	input.ProductId = id
	if !bindJSON(c, &input) {
		return
	}
	input.ProductId = id
	result, err := models.CreateProductVariant(c.Request.Context(), &input)
	respond(c, http.StatusCreated, result, err)
}

// workers

func createWorkerRole(c *gin.Context) {
	var input models.NewWorkerRole
	if !bindJSON(c, &input) {
		return
	}
	result, err := models.CreateWorkerRole(c.Request.Context(), &input)
	respond(c, http.StatusCreated, result, err)
}

func createWorker(c *gin.Context) {
	var input models.NewWorker
	if !bindJSON(c, &input) {
		return
	}
	result, err := models.CreateWorker(c.Request.Context(), &input)
	respond(c, http.StatusCreated, result, err)
}

func closePayPeriod(c *gin.Context) {
	id, ok := pathId(c)
	if !ok {
		return
	}
	until := time.Now()
	if raw := c.Query("until"); raw != "" {
		t, err := time.Parse(time.DateOnly, raw)
		if err != nil {
			respondError(c, utils.NewInvalidInput("until", "must be YYYY-MM-DD"))
			return
		}
		until = t
	}
	result, err := models.ClosePayPeriod(c.Request.Context(), id, until)
	respond(c, http.StatusCreated, result, err)
}

func getWorkerEarnings(c *gin.Context) {
	id, ok := pathId(c)
	if !ok {
		return
	}
	result, err := models.GetWorkerEarnings(c.Request.Context(), id)
	respond(c, http.StatusOK, result, err)
}

// production

func executeStage(c *gin.Context) {
	stage := models.StageKind(c.Param("stage"))
	if !stage.IsValid() {
		respondError(c, utils.NewInvalidInput("stage", "unknown stage"))
		return
	}
	var req workflow.StageRequest
	if !bindJSON(c, &req) {
		return
	}
	input, err := req.ToInput(stage)
	if err != nil {
		respondError(c, err)
		return
	}
	result, err := workflow.ExecuteStage(c.Request.Context(), input)
	respond(c, http.StatusCreated, result, err)
}

func listEvents(c *gin.Context) {
	var filter models.ProductionEventFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		respondError(c, utils.NewInvalidInput("query", err.Error()))
		return
	}
	result, err := models.ListProductionEvents(c.Request.Context(), filter)
	respond(c, http.StatusOK, result, err)
}

func getEvent(c *gin.Context) {
	id, ok := pathId(c)
	if !ok {
		return
	}
	result, err := models.GetProductionEvent(c.Request.Context(), id)
	respond(c, http.StatusOK, result, err)
}

func getHideUsage(c *gin.Context) {
	id, ok := pathId(c)
	if !ok {
		return
	}
	result, err := models.GetHideUsageByEvent(c.Request.Context(), id)
	respond(c, http.StatusOK, result, err)
}

func deleteHideConsumption(c *gin.Context) {
	id, ok := pathId(c)
	if !ok {
		return
	}
	result, err := models.DeleteHideConsumption(c.Request.Context(), id)
	respond(c, http.StatusOK, result, err)
}

// allocations

func getAllocation(c *gin.Context) {
	id, ok := pathId(c)
	if !ok {
		return
	}
	result, err := models.GetAllocation(c.Request.Context(), id)
	respond(c, http.StatusOK, result, err)
}

func issueAllocation(c *gin.Context) {
	var input models.NewAllocation
	if !bindJSON(c, &input) {
		return
	}
	result, err := models.IssueAllocation(c.Request.Context(), &input)
	respond(c, http.StatusCreated, result, err)
}

func returnAllocation(c *gin.Context) {
	id, ok := pathId(c)
	if !ok {
		return
	}
	result, err := models.ReturnAllocation(c.Request.Context(), id)
	respond(c, http.StatusOK, result, err)
}

func returnAllocationItem(c *gin.Context) {
	id, ok := pathId(c)
	if !ok {
		return
	}
	var body quantityBody
	if !bindJSON(c, &body) {
		return
	}
	result, err := models.ReturnAllocationItem(c.Request.Context(), id, body.Quantity)
	respond(c, http.StatusOK, result, err)
}

func consumeAllocationItem(c *gin.Context) {
	id, ok := pathId(c)
	if !ok {
		return
	}
	var body quantityBody
	if !bindJSON(c, &body) {
		return
	}
	result, err := models.ConsumeAllocationItem(c.Request.Context(), id, body.Quantity)
	respond(c, http.StatusOK, result, err)
}

// sales

func createBuyer(c *gin.Context) {
	var input models.NewBuyer
	if !bindJSON(c, &input) {
		return
	}
	result, err := models.CreateBuyer(c.Request.Context(), &input)
	respond(c, http.StatusCreated, result, err)
}

func getSale(c *gin.Context) {
	id, ok := pathId(c)
	if !ok {
		return
	}
	result, err := models.GetSale(c.Request.Context(), id)
	respond(c, http.StatusOK, result, err)
}

func createSale(c *gin.Context) {
	var input models.NewSale
	if !bindJSON(c, &input) {
		return
	}
	result, err := models.CreateSale(c.Request.Context(), &input)
	respond(c, http.StatusCreated, result, err)
}

func addSaleLine(c *gin.Context) {
	id, ok := pathId(c)
	if !ok {
		return
	}
	var input models.NewSaleLine
	if !bindJSON(c, &input) {
		return
	}
	result, err := models.AddSaleLine(c.Request.Context(), id, &input)
	respond(c, http.StatusCreated, result, err)
}

func updateSaleLine(c *gin.Context) {
	id, ok := pathId(c)
	if !ok {
		return
	}
	var input models.UpdateSaleLineInput
	if !bindJSON(c, &input) {
		return
	}
	result, err := models.UpdateSaleLine(c.Request.Context(), id, &input)
	respond(c, http.StatusOK, result, err)
}

func removeSaleLine(c *gin.Context) {
	id, ok := pathId(c)
	if !ok {
		return
	}
	result, err := models.RemoveSaleLine(c.Request.Context(), id)
	respond(c, http.StatusOK, result, err)
}

// expenses

func listExpenseCategories(c *gin.Context) {
	result, err := models.ListExpenseCategories(c.Request.Context())
	respond(c, http.StatusOK, result, err)
}

func createExpenseCategory(c *gin.Context) {
	var input models.NewExpenseCategory
	if !bindJSON(c, &input) {
		return
	}
	result, err := models.CreateExpenseCategory(c.Request.Context(), &input)
	respond(c, http.StatusCreated, result, err)
}

func listExpenses(c *gin.Context) {
	var filter models.ExpenseFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		respondError(c, utils.NewInvalidInput("query", err.Error()))
		return
	}
	result, err := models.ListExpenses(c.Request.Context(), filter)
	respond(c, http.StatusOK, result, err)
}

func createExpense(c *gin.Context) {
	var input models.NewExpense
	if !bindJSON(c, &input) {
		return
	}
	result, err := models.CreateExpense(c.Request.Context(), &input)
	respond(c, http.StatusCreated, result, err)
}

func deleteExpense(c *gin.Context) {
	id, ok := pathId(c)
	if !ok {
		return
	}
	if err := models.DeleteExpense(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func getExpenseTotals(c *gin.Context) {
	result, err := models.GetExpenseTotals(c.Request.Context(), time.Now())
	respond(c, http.StatusOK, result, err)
}
