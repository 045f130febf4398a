package businessflow

import (
	"context"
	"fmt"
	"sort"

	"github.com/hikarudo/uwabami/app/dto"
	"github.com/hikarudo/uwabami/models"
	"github.com/hikarudo/uwabami/repository"
	"gorm.io/gorm"
)

// MergeFlow folds one canonical product into another when an operator
// determines they describe the same release
type MergeFlow interface {
	Merge(ctx context.Context, request *dto.MergeProductsRequest) (*dto.MergeProductsResponse, error)
}

// MergeFlowImpl implements the merge business flow
type MergeFlowImpl struct {
	productRepo repository.CanonicalProductRepository
	sourceRepo  repository.ProductSourceRepository
	linkRepo    repository.RawCanonicalLinkRepository
	locks       *keyLocks
	db          *gorm.DB
}

// NewMergeFlow creates a new merge flow instance
func NewMergeFlow(
	productRepo repository.CanonicalProductRepository,
	sourceRepo repository.ProductSourceRepository,
	linkRepo repository.RawCanonicalLinkRepository,
	db *gorm.DB,
) MergeFlow {
	return &MergeFlowImpl{
		productRepo: productRepo,
		sourceRepo:  sourceRepo,
		linkRepo:    linkRepo,
		locks:       defaultProductLocks,
		db:          db,
	}
}

// Merge moves the loser's listings, provenance links, and associations onto
// the survivor, then marks the loser merged. The loser row survives with a
// pointer at the survivor so stored ids keep resolving; its id is never
// reused. Everything moves in one transaction.
func (f *MergeFlowImpl) Merge(ctx context.Context, request *dto.MergeProductsRequest) (*dto.MergeProductsResponse, error) {
	if request.LoserNormalizedID == request.SurvivorNormalizedID {
		return nil, ErrSameProduct
	}

	// Lock both codes in a stable order so two crossing merges cannot
	// deadlock.
	keys := []string{request.LoserNormalizedID, request.SurvivorNormalizedID}
	sort.Strings(keys)
	for _, key := range keys {
		f.locks.Lock(key)
	}
	defer func() {
		for _, key := range keys {
			f.locks.Unlock(key)
		}
	}()

	loser, err := f.load(ctx, request.LoserNormalizedID)
	if err != nil {
		return nil, err
	}
	survivor, err := f.load(ctx, request.SurvivorNormalizedID)
	if err != nil {
		return nil, err
	}
	if loser.ID == survivor.ID {
		return nil, ErrSameProduct
	}
	if loser.IsMerged() || survivor.IsMerged() {
		return nil, ErrProductMerged
	}

	moved, err := f.sourceRepo.ListByCanonicalProduct(ctx, loser.ID)
	if err != nil {
		return nil, NewBusinessError("MERGE_FAILED", "Failed to list loser sources", err)
	}

	err = repository.WithTransaction(ctx, f.db, func(txCtx context.Context) error {
		if err := f.sourceRepo.ReassignToProduct(txCtx, loser.ID, survivor.ID); err != nil {
			return err
		}
		if err := f.linkRepo.ReassignToProduct(txCtx, loser.ID, survivor.ID); err != nil {
			return err
		}
		if err := f.productRepo.ReassignAssociations(txCtx, loser.ID, survivor.ID); err != nil {
			return err
		}
		return f.productRepo.MarkMerged(txCtx, loser.ID, survivor.ID)
	})
	if err != nil {
		return nil, NewBusinessError("MERGE_FAILED", "Failed to merge products", err)
	}

	return &dto.MergeProductsResponse{
		SurvivorID:           survivor.ID,
		SurvivorNormalizedID: survivor.NormalizedProductID,
		LoserID:              loser.ID,
		MovedSources:         len(moved),
	}, nil
}

func (f *MergeFlowImpl) load(ctx context.Context, normalizedID string) (*models.CanonicalProduct, error) {
	product, err := f.productRepo.ByNormalizedID(ctx, normalizedID)
	if err != nil {
		return nil, NewBusinessError("MERGE_FAILED", "Failed to load product", err)
	}
	if product == nil {
		return nil, fmt.Errorf("%w: %s", ErrProductNotFound, normalizedID)
	}
	return product, nil
}
