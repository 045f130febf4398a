package businessflow

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/hikarudo/uwabami/app/dto"
	"github.com/hikarudo/uwabami/models"
	"github.com/hikarudo/uwabami/repository"
	"github.com/hikarudo/uwabami/utils"
)

// ReviewFlow serves the operator review queue
type ReviewFlow interface {
	ListFlags(ctx context.Context, request *dto.ListReviewFlagsRequest) (*dto.ListReviewFlagsResponse, error)
	ResolveFlag(ctx context.Context, request *dto.ResolveReviewFlagRequest, operatorID uint) (*dto.ResolveReviewFlagResponse, error)
}

// ReviewFlowImpl implements the review queue business flow
type ReviewFlowImpl struct {
	flagRepo repository.ReviewFlagRepository
	rawRepo  repository.RawRecordRepository
}

// NewReviewFlow creates a new review flow instance
func NewReviewFlow(flagRepo repository.ReviewFlagRepository, rawRepo repository.RawRecordRepository) ReviewFlow {
	return &ReviewFlowImpl{flagRepo: flagRepo, rawRepo: rawRepo}
}

// ListFlags returns a filtered page of review flags, newest first
func (f *ReviewFlowImpl) ListFlags(ctx context.Context, request *dto.ListReviewFlagsRequest) (*dto.ListReviewFlagsResponse, error) {
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

	filter := models.ReviewFlagFilter{}
	if request.Kind != "" {
		kind := models.ReviewFlagKind(request.Kind)
		filter.Kind = &kind
	}
	if request.Status != "" {
		status := models.ReviewFlagStatus(request.Status)
		filter.Status = &status
	}

	flags, err := f.flagRepo.ByFilter(ctx, filter, "created_at DESC", pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, NewBusinessError("REVIEW_LIST_FAILED", "Failed to list review flags", err)
	}
	total, err := f.flagRepo.Count(ctx, filter)
	if err != nil {
		return nil, NewBusinessError("REVIEW_LIST_FAILED", "Failed to count review flags", err)
	}

	out := &dto.ListReviewFlagsResponse{
		Items:    make([]dto.ReviewFlagDTO, 0, len(flags)),
		Total:    total,
		Page:     page,
		PageSize: pageSize,
	}
	for _, flag := range flags {
		out.Items = append(out.Items, ToReviewFlagDTO(*flag))
	}
	return out, nil
}

// ResolveFlag closes an open review flag on behalf of an operator
func (f *ReviewFlowImpl) ResolveFlag(ctx context.Context, request *dto.ResolveReviewFlagRequest, operatorID uint) (*dto.ResolveReviewFlagResponse, error) {
	id, err := uuid.Parse(request.UUID)
	if err != nil {
		return nil, NewBusinessError("REVIEW_RESOLVE_FAILED", "Invalid review flag id", err)
	}

	flag, err := f.flagRepo.ByUUID(ctx, id)
	if err != nil {
		return nil, NewBusinessError("REVIEW_RESOLVE_FAILED", "Failed to load review flag", err)
	}
	if flag == nil {
		return nil, ErrReviewFlagNotFound
	}
	if flag.Status == models.ReviewFlagStatusResolved {
		return nil, ErrReviewFlagAlreadyResolved
	}

	if err := f.flagRepo.Resolve(ctx, flag.ID, operatorID); err != nil {
		return nil, NewBusinessError("REVIEW_RESOLVE_FAILED", "Failed to resolve review flag", err)
	}

	// Release the parked record so the next pass picks it up again. Records
	// that were processed in the meantime keep their stamp and stay out.
	if err := f.rawRepo.ClearPark(ctx, flag.Source, flag.SourceProductID); err != nil {
		return nil, NewBusinessError("REVIEW_RESOLVE_FAILED", "Failed to release parked record", err)
	}

	return &dto.ResolveReviewFlagResponse{
		UUID:       flag.UUID.String(),
		Status:     models.ReviewFlagStatusResolved.String(),
		ResolvedAt: utils.UTCNow().Format(time.RFC3339),
	}, nil
}
