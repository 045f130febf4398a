package businessflow

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hikarudo/uwabami/app/dto"
	"github.com/hikarudo/uwabami/app/services"
	"github.com/hikarudo/uwabami/models"
	"github.com/hikarudo/uwabami/repository"
	"github.com/hikarudo/uwabami/utils"
)

// CatalogFlow serves read-only product queries
type CatalogFlow interface {
	ListProducts(ctx context.Context, request *dto.ListProductsRequest) (*dto.ListProductsResponse, error)
	GetProduct(ctx context.Context, normalizedID string) (*dto.ProductDTO, error)
}

// CatalogFlowImpl implements the catalog read business flow
type CatalogFlowImpl struct {
	productRepo repository.CanonicalProductRepository
	cache       services.Cache
}

// NewCatalogFlow creates a new catalog flow instance. cache may be nil, which
// disables detail caching.
func NewCatalogFlow(productRepo repository.CanonicalProductRepository, cache services.Cache) CatalogFlow {
	return &CatalogFlowImpl{
		productRepo: productRepo,
		cache:       cache,
	}
}

// ListProducts returns a filtered page of active products, newest first
func (f *CatalogFlowImpl) ListProducts(ctx context.Context, request *dto.ListProductsRequest) (*dto.ListProductsResponse, error) {
	page := request.Page
	if page == 0 {
		page = 1
	}
	pageSize := request.PageSize
	if pageSize == 0 {
		pageSize = utils.DefaultPageSize
	}
	if page < 1 {
		return nil, ErrInvalidPage
	}
	if pageSize < 1 || pageSize > utils.MaxPageSize {
		return nil, ErrInvalidPageSize
	}

	filter, err := f.buildFilter(request)
	if err != nil {
		return nil, err
	}

	products, err := f.productRepo.ByFilter(ctx, *filter, "created_at DESC", pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, NewBusinessError("CATALOG_LIST_FAILED", "Failed to list products", err)
	}
	total, err := f.productRepo.Count(ctx, *filter)
	if err != nil {
		return nil, NewBusinessError("CATALOG_LIST_FAILED", "Failed to count products", err)
	}

	out := &dto.ListProductsResponse{
		Items:    make([]dto.ProductDTO, 0, len(products)),
		Total:    total,
		Page:     page,
		PageSize: pageSize,
	}
	for _, product := range products {
		out.Items = append(out.Items, ToProductDTO(*product))
	}
	return out, nil
}

// GetProduct returns one product with its listings, performers, and tags.
// Requests for a merged product resolve to the survivor.
func (f *CatalogFlowImpl) GetProduct(ctx context.Context, normalizedID string) (*dto.ProductDTO, error) {
	cacheKey := "product:" + normalizedID
	if f.cache != nil {
		if raw, hit, err := f.cache.Get(ctx, cacheKey); err == nil && hit {
			var cached dto.ProductDTO
			if err := json.Unmarshal(raw, &cached); err == nil {
				return &cached, nil
			}
		}
	}

	product, err := f.productRepo.ByNormalizedIDWithRelations(ctx, normalizedID)
	if err != nil {
		return nil, NewBusinessError("CATALOG_GET_FAILED", "Failed to load product", err)
	}
	if product == nil {
		return nil, fmt.Errorf("%w: %s", ErrProductNotFound, normalizedID)
	}

	for product.IsMerged() {
		if product.MergedIntoID == nil {
			return nil, fmt.Errorf("%w: product %d is merged but has no survivor", ErrProductMerged, product.ID)
		}
		survivor, err := f.productRepo.ByID(ctx, *product.MergedIntoID)
		if err != nil {
			return nil, NewBusinessError("CATALOG_GET_FAILED", "Failed to follow merge pointer", err)
		}
		if survivor == nil {
			return nil, fmt.Errorf("%w: survivor of %s", ErrProductNotFound, normalizedID)
		}
		product, err = f.productRepo.ByNormalizedIDWithRelations(ctx, survivor.NormalizedProductID)
		if err != nil || product == nil {
			return nil, NewBusinessError("CATALOG_GET_FAILED", "Failed to load survivor", err)
		}
	}

	result := ToProductDTO(*product)
	if f.cache != nil {
		if raw, err := json.Marshal(result); err == nil {
			_ = f.cache.Set(ctx, cacheKey, raw, utils.CatalogCacheTTL)
		}
	}
	return &result, nil
}

func (f *CatalogFlowImpl) buildFilter(request *dto.ListProductsRequest) (*models.CanonicalProductFilter, error) {
	status := models.ProductStatusActive
	filter := &models.CanonicalProductFilter{Status: &status}

	if request.Title != "" {
		filter.TitleContains = &request.Title
	}
	if request.Maker != "" {
		filter.MakerName = &request.Maker
	}
	if request.ReleasedAfter != "" {
		after, err := time.Parse("2006-01-02", request.ReleasedAfter)
		if err != nil {
			return nil, NewBusinessError("CATALOG_LIST_FAILED", "Invalid released_after date", err)
		}
		filter.ReleasedAfter = &after
	}
	if request.ReleasedBefore != "" {
		before, err := time.Parse("2006-01-02", request.ReleasedBefore)
		if err != nil {
			return nil, NewBusinessError("CATALOG_LIST_FAILED", "Invalid released_before date", err)
		}
		filter.ReleasedBefore = &before
	}
	if filter.ReleasedAfter != nil && filter.ReleasedBefore != nil && filter.ReleasedAfter.After(*filter.ReleasedBefore) {
		return nil, ErrStartDateAfterEndDate
	}
	return filter, nil
}
