package handlers

import (
	"context"
	"log"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/hikarudo/uwabami/app/dto"
	businessflow "github.com/hikarudo/uwabami/business_flow"
	"github.com/hikarudo/uwabami/models"
	"github.com/hikarudo/uwabami/utils"
)

// OpsHandlerInterface defines the contract for operator pipeline handlers
type OpsHandlerInterface interface {
	RunIngest(c fiber.Ctx) error
	MergeProducts(c fiber.Ctx) error
}

// OpsHandler handles operator pipeline HTTP requests
type OpsHandler struct {
	ingestionFlow businessflow.IngestionFlow
	mergeFlow     businessflow.MergeFlow
	validator     *validator.Validate
}

// NewOpsHandler creates a new ops handler
func NewOpsHandler(ingestionFlow businessflow.IngestionFlow, mergeFlow businessflow.MergeFlow) *OpsHandler {
	return &OpsHandler{
		ingestionFlow: ingestionFlow,
		mergeFlow:     mergeFlow,
		validator:     validator.New(),
	}
}

func (h *OpsHandler) ErrorResponse(c fiber.Ctx, statusCode int, message, errorCode string, details any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: false,
		Message: message,
		Error: dto.ErrorDetail{
			Code:    errorCode,
			Details: details,
		},
	})
}

func (h *OpsHandler) SuccessResponse(c fiber.Ctx, statusCode int, message string, data any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// RunIngest fetches and processes one source's listings
// @Summary Run Ingestion
// @Description Fetch fresh listings for one source and process everything due
// @Tags Ops
// @Accept json
// @Produce json
// @Param request body dto.RunIngestRequest true "Ingestion run parameters"
// @Success 200 {object} dto.APIResponse{data=dto.RunIngestResponse} "Batch completed"
// @Failure 400 {object} dto.APIResponse "Validation error"
// @Failure 409 {object} dto.APIResponse "A batch for this source is already running"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/ops/ingest/run [post]
func (h *OpsHandler) RunIngest(c fiber.Ctx) error {
	var req dto.RunIngestRequest
	if err := c.Bind().JSON(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}

	if err := h.validator.Struct(&req); err != nil {
		var validationErrors []string
		for _, err := range err.(validator.ValidationErrors) {
			validationErrors = append(validationErrors, getValidationErrorMessage(err))
		}
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", validationErrors)
	}

	// Batches can outlive the usual request timeout
	ctx := h.createRequestContextWithTimeout(c, "/api/v1/ops/ingest/run", 10*time.Minute)
	summary, err := h.ingestionFlow.Run(ctx, models.ASPName(req.Source), req.Limit)
	if err != nil {
		if businessflow.IsBatchAlreadyRunning(err) {
			return h.ErrorResponse(c, fiber.StatusConflict, "A batch for this source is already running", "BATCH_ALREADY_RUNNING", nil)
		}
		if businessflow.IsUnknownSource(err) || businessflow.IsInvalidSource(err) {
			return h.ErrorResponse(c, fiber.StatusBadRequest, "Unknown source", "UNKNOWN_SOURCE", nil)
		}

		log.Println("Ingestion run failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Ingestion run failed", "INGEST_RUN_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Batch completed", dto.RunIngestResponse{
		Source:  summary.Source.String(),
		Fetched: summary.Fetched,
		Created: summary.Created,
		Updated: summary.Updated,
		Skipped: summary.Skipped,
		Errors:  summary.Errors,
	})
}

// MergeProducts folds one canonical product into another
// @Summary Merge Products
// @Description Move all listings and associations from one product to another and mark the loser merged
// @Tags Ops
// @Accept json
// @Produce json
// @Param request body dto.MergeProductsRequest true "Merge parameters"
// @Success 200 {object} dto.APIResponse{data=dto.MergeProductsResponse} "Products merged"
// @Failure 400 {object} dto.APIResponse "Validation error"
// @Failure 404 {object} dto.APIResponse "Product not found"
// @Failure 409 {object} dto.APIResponse "Merge not allowed"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/ops/products/merge [post]
func (h *OpsHandler) MergeProducts(c fiber.Ctx) error {
	var req dto.MergeProductsRequest
	if err := c.Bind().JSON(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}

	if err := h.validator.Struct(&req); err != nil {
		var validationErrors []string
		for _, err := range err.(validator.ValidationErrors) {
			validationErrors = append(validationErrors, getValidationErrorMessage(err))
		}
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", validationErrors)
	}

	result, err := h.mergeFlow.Merge(h.createRequestContext(c, "/api/v1/ops/products/merge"), &req)
	if err != nil {
		if businessflow.IsProductNotFound(err) {
			return h.ErrorResponse(c, fiber.StatusNotFound, "Product not found", "PRODUCT_NOT_FOUND", nil)
		}
		if businessflow.IsSameProduct(err) {
			return h.ErrorResponse(c, fiber.StatusBadRequest, "Survivor and loser are the same product", "SAME_PRODUCT", nil)
		}
		if businessflow.IsProductMerged(err) {
			return h.ErrorResponse(c, fiber.StatusConflict, "One of the products is already merged", "PRODUCT_ALREADY_MERGED", nil)
		}

		log.Println("Merge products failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Merge failed", "MERGE_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Products merged", result)
}

func (h *OpsHandler) createRequestContext(c fiber.Ctx, endpoint string) context.Context {
	return h.createRequestContextWithTimeout(c, endpoint, 10*time.Second)
}

func (h *OpsHandler) createRequestContextWithTimeout(c fiber.Ctx, endpoint string, timeout time.Duration) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	ctx = context.WithValue(ctx, utils.RequestIDKey, c.Get("X-Request-ID"))
	ctx = context.WithValue(ctx, utils.UserAgentKey, c.Get("User-Agent"))
	ctx = context.WithValue(ctx, utils.IPAddressKey, c.IP())
	ctx = context.WithValue(ctx, utils.EndpointKey, endpoint)
	ctx = context.WithValue(ctx, utils.TimeoutKey, timeout)
	ctx = context.WithValue(ctx, utils.CancelFuncKey, cancel)
	return ctx
}
