package handlers

import (
	"context"
	"log"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/hikarudo/uwabami/app/dto"
	businessflow "github.com/hikarudo/uwabami/business_flow"
	"github.com/hikarudo/uwabami/utils"
)

// ProductHandlerInterface defines the contract for public catalog handlers
type ProductHandlerInterface interface {
	ListProducts(c fiber.Ctx) error
	GetProduct(c fiber.Ctx) error
}

// ProductHandler handles public catalog HTTP requests
type ProductHandler struct {
	catalogFlow businessflow.CatalogFlow
	validator   *validator.Validate
}

// NewProductHandler creates a new product handler
func NewProductHandler(catalogFlow businessflow.CatalogFlow) *ProductHandler {
	return &ProductHandler{
		catalogFlow: catalogFlow,
		validator:   validator.New(),
	}
}

func (h *ProductHandler) ErrorResponse(c fiber.Ctx, statusCode int, message, errorCode string, details any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: false,
		Message: message,
		Error: dto.ErrorDetail{
			Code:    errorCode,
			Details: details,
		},
	})
}

func (h *ProductHandler) SuccessResponse(c fiber.Ctx, statusCode int, message string, data any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// ListProducts returns a filtered page of catalog products
// @Summary List Products
// @Description List active canonical products with optional filters
// @Tags Catalog
// @Produce json
// @Param title query string false "Title substring filter"
// @Param maker query string false "Maker name filter"
// @Param released_after query string false "Release date lower bound (YYYY-MM-DD)"
// @Param released_before query string false "Release date upper bound (YYYY-MM-DD)"
// @Param page query int false "Page number"
// @Param page_size query int false "Page size"
// @Success 200 {object} dto.APIResponse{data=dto.ListProductsResponse} "Products retrieved successfully"
// @Failure 400 {object} dto.APIResponse "Validation error"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/products [get]
func (h *ProductHandler) ListProducts(c fiber.Ctx) error {
	var req dto.ListProductsRequest
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

	result, err := h.catalogFlow.ListProducts(h.createRequestContext(c, "/api/v1/products"), &req)
	if err != nil {
		if businessflow.IsInvalidPage(err) || businessflow.IsInvalidPageSize(err) || businessflow.IsStartDateAfterEndDate(err) {
			return h.ErrorResponse(c, fiber.StatusBadRequest, err.Error(), "INVALID_FILTER", nil)
		}

		log.Println("List products failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to list products", "LIST_PRODUCTS_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Products retrieved successfully", result)
}

// GetProduct returns one product by normalized id
// @Summary Get Product
// @Description Get one canonical product with its listings, performers, and tags
// @Tags Catalog
// @Produce json
// @Param normalized_id path string true "Normalized product id"
// @Success 200 {object} dto.APIResponse{data=dto.ProductDTO} "Product retrieved successfully"
// @Failure 404 {object} dto.APIResponse "Product not found"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/products/{normalized_id} [get]
func (h *ProductHandler) GetProduct(c fiber.Ctx) error {
	normalizedID := c.Params("normalized_id")
	if normalizedID == "" {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Normalized product id is required", "INVALID_REQUEST", nil)
	}

	result, err := h.catalogFlow.GetProduct(h.createRequestContext(c, "/api/v1/products/"+normalizedID), normalizedID)
	if err != nil {
		if businessflow.IsProductNotFound(err) {
			return h.ErrorResponse(c, fiber.StatusNotFound, "Product not found", "PRODUCT_NOT_FOUND", nil)
		}

		log.Println("Get product failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to get product", "GET_PRODUCT_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Product retrieved successfully", result)
}

func (h *ProductHandler) createRequestContext(c fiber.Ctx, endpoint string) context.Context {
	return h.createRequestContextWithTimeout(c, endpoint, 10*time.Second)
}

func (h *ProductHandler) createRequestContextWithTimeout(c fiber.Ctx, endpoint string, timeout time.Duration) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	ctx = context.WithValue(ctx, utils.RequestIDKey, c.Get("X-Request-ID"))
	ctx = context.WithValue(ctx, utils.UserAgentKey, c.Get("User-Agent"))
	ctx = context.WithValue(ctx, utils.IPAddressKey, c.IP())
	ctx = context.WithValue(ctx, utils.EndpointKey, endpoint)
	ctx = context.WithValue(ctx, utils.TimeoutKey, timeout)
	ctx = context.WithValue(ctx, utils.CancelFuncKey, cancel)
	return ctx
}
