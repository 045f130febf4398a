package handlers

import (
	"context"
	"log"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/hikarudo/uwabami/app/dto"
	"github.com/hikarudo/uwabami/app/middleware"
	businessflow "github.com/hikarudo/uwabami/business_flow"
	"github.com/hikarudo/uwabami/utils"
)

// ReviewHandlerInterface defines the contract for review queue handlers
type ReviewHandlerInterface interface {
	ListFlags(c fiber.Ctx) error
	ResolveFlag(c fiber.Ctx) error
}

// ReviewHandler handles review queue HTTP requests
type ReviewHandler struct {
	reviewFlow businessflow.ReviewFlow
	validator  *validator.Validate
}

// NewReviewHandler creates a new review handler
func NewReviewHandler(reviewFlow businessflow.ReviewFlow) *ReviewHandler {
	return &ReviewHandler{
		reviewFlow: reviewFlow,
		validator:  validator.New(),
	}
}

func (h *ReviewHandler) ErrorResponse(c fiber.Ctx, statusCode int, message, errorCode string, details any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: false,
		Message: message,
		Error: dto.ErrorDetail{
			Code:    errorCode,
			Details: details,
		},
	})
}

func (h *ReviewHandler) SuccessResponse(c fiber.Ctx, statusCode int, message string, data any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// ListFlags returns a filtered page of review flags
// @Summary List Review Flags
// @Description List records parked for operator review
// @Tags Ops
// @Produce json
// @Param kind query string false "Flag kind filter"
// @Param status query string false "Flag status filter"
// @Param page query int false "Page number"
// @Param page_size query int false "Page size"
// @Success 200 {object} dto.APIResponse{data=dto.ListReviewFlagsResponse} "Flags retrieved successfully"
// @Failure 400 {object} dto.APIResponse "Validation error"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/ops/review-flags [get]
func (h *ReviewHandler) ListFlags(c fiber.Ctx) error {
	var req dto.ListReviewFlagsRequest
	if err := c.Bind().Query(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid query parameters", "INVALID_REQUEST", err.Error())
	}

	if err := h.validator.Struct(&req); err != nil {
		var validationErrors []string
		for _, err := range err.(validator.ValidationErrors) {
			validationErrors = append(validationErrors, getValidationErrorMessage(err))
		}
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", validationErrors)
	}

	result, err := h.reviewFlow.ListFlags(h.createRequestContext(c, "/api/v1/ops/review-flags"), &req)
	if err != nil {
		if businessflow.IsInvalidPage(err) || businessflow.IsInvalidPageSize(err) {
			return h.ErrorResponse(c, fiber.StatusBadRequest, err.Error(), "INVALID_FILTER", nil)
		}

		log.Println("List review flags failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to list review flags", "LIST_FLAGS_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Flags retrieved successfully", result)
}

// ResolveFlag closes an open review flag
// @Summary Resolve Review Flag
// @Description Mark a review flag as handled by the current operator
// @Tags Ops
// @Accept json
// @Produce json
// @Param request body dto.ResolveReviewFlagRequest true "Flag to resolve"
// @Success 200 {object} dto.APIResponse{data=dto.ResolveReviewFlagResponse} "Flag resolved"
// @Failure 400 {object} dto.APIResponse "Validation error"
// @Failure 404 {object} dto.APIResponse "Flag not found"
// @Failure 409 {object} dto.APIResponse "Flag already resolved"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/ops/review-flags/resolve [post]
func (h *ReviewHandler) ResolveFlag(c fiber.Ctx) error {
	operatorID, ok := middleware.GetOperatorIDFromContext(c)
	if !ok || operatorID == 0 {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "Operator authentication required", "OPERATOR_AUTHENTICATION_REQUIRED", nil)
	}

	var req dto.ResolveReviewFlagRequest
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

	result, err := h.reviewFlow.ResolveFlag(h.createRequestContext(c, "/api/v1/ops/review-flags/resolve"), &req, operatorID)
	if err != nil {
		if businessflow.IsReviewFlagNotFound(err) {
			return h.ErrorResponse(c, fiber.StatusNotFound, "Review flag not found", "FLAG_NOT_FOUND", nil)
		}
		if businessflow.IsReviewFlagAlreadyResolved(err) {
			return h.ErrorResponse(c, fiber.StatusConflict, "Review flag is already resolved", "FLAG_ALREADY_RESOLVED", nil)
		}

		log.Println("Resolve review flag failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to resolve review flag", "RESOLVE_FLAG_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Flag resolved", result)
}

func (h *ReviewHandler) createRequestContext(c fiber.Ctx, endpoint string) context.Context {
	return h.createRequestContextWithTimeout(c, endpoint, 10*time.Second)
}

func (h *ReviewHandler) createRequestContextWithTimeout(c fiber.Ctx, endpoint string, timeout time.Duration) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	ctx = context.WithValue(ctx, utils.RequestIDKey, c.Get("X-Request-ID"))
	ctx = context.WithValue(ctx, utils.UserAgentKey, c.Get("User-Agent"))
	ctx = context.WithValue(ctx, utils.IPAddressKey, c.IP())
	ctx = context.WithValue(ctx, utils.EndpointKey, endpoint)
	ctx = context.WithValue(ctx, utils.TimeoutKey, timeout)
	ctx = context.WithValue(ctx, utils.CancelFuncKey, cancel)
	return ctx
}
