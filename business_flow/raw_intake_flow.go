package businessflow

import (
	"context"
	"fmt"

	"github.com/hikarudo/uwabami/app/services"
	"github.com/hikarudo/uwabami/app/sources"
	"github.com/hikarudo/uwabami/hasher"
	"github.com/hikarudo/uwabami/models"
	"github.com/hikarudo/uwabami/repository"
	"github.com/hikarudo/uwabami/utils"
	"gorm.io/gorm"
)

// RawIntakeFlow stores fetched listing snapshots and hands their bodies back
// to processing
type RawIntakeFlow interface {
	// Put stores one fetched snapshot, keyed by (source, source product id).
	// Returns true when the content changed since the last fetch, including
	// first sight; an unchanged snapshot only bumps the fetch timestamp.
	Put(ctx context.Context, listing sources.Listing) (bool, error)
	// Get returns the stored record together with its body, transparently
	// reading offloaded bodies back from the object store.
	Get(ctx context.Context, source models.ASPName, sourceProductID string) (*models.RawRecord, []byte, error)
	// Body returns the snapshot body for an already loaded record.
	Body(ctx context.Context, record *models.RawRecord) ([]byte, error)
}

// RawIntakeFlowImpl implements the raw intake business flow
type RawIntakeFlowImpl struct {
	rawRepo     repository.RawRecordRepository
	objectStore services.ObjectStore
	db          *gorm.DB
}

// NewRawIntakeFlow creates a new raw intake flow instance
func NewRawIntakeFlow(
	rawRepo repository.RawRecordRepository,
	objectStore services.ObjectStore,
	db *gorm.DB,
) RawIntakeFlow {
	return &RawIntakeFlowImpl{
		rawRepo:     rawRepo,
		objectStore: objectStore,
		db:          db,
	}
}

// Put stores one fetched snapshot
func (f *RawIntakeFlowImpl) Put(ctx context.Context, listing sources.Listing) (bool, error) {
	if !listing.Source.Valid() {
		return false, NewBusinessError("RAW_PUT_FAILED", "Failed to store snapshot", ErrInvalidSource)
	}
	if listing.SourceProductID == "" || len(listing.Body) == 0 {
		return false, NewBusinessError("RAW_PUT_FAILED", "Failed to store snapshot", ErrEmptyBody)
	}

	record := &models.RawRecord{
		Source:          listing.Source,
		SourceProductID: listing.SourceProductID,
		ContentHash:     hasher.Sum(listing.Body),
		FetchedAt:       utils.UTCNow(),
	}
	if listing.URL != "" {
		record.URL = &listing.URL
	}

	// Large bodies go to the object store before the row commits, so a crash
	// can orphan an object but never leave a row pointing at nothing. The
	// object key includes the content hash, which makes re-uploads of the
	// same content idempotent.
	if len(listing.Body) > utils.InlineBodyLimit {
		key := fmt.Sprintf("raw/%s/%s/%s", listing.Source, listing.SourceProductID, record.ContentHash)
		ref, err := f.objectStore.PutBytes(ctx, key, listing.Body)
		if err != nil {
			return false, NewBusinessError("RAW_PUT_FAILED", "Failed to offload snapshot body", err)
		}
		record.BodyRef = &ref
	} else {
		record.Body = listing.Body
	}

	changed, err := f.rawRepo.Put(ctx, record)
	if err != nil {
		return false, NewBusinessError("RAW_PUT_FAILED", "Failed to store snapshot", err)
	}
	return changed, nil
}

// Get returns the stored record together with its body
func (f *RawIntakeFlowImpl) Get(ctx context.Context, source models.ASPName, sourceProductID string) (*models.RawRecord, []byte, error) {
	record, err := f.rawRepo.ByKey(ctx, source, sourceProductID)
	if err != nil {
		return nil, nil, NewBusinessError("RAW_GET_FAILED", "Failed to load snapshot", err)
	}
	if record == nil {
		return nil, nil, ErrRawRecordNotFound
	}

	body, err := f.Body(ctx, record)
	if err != nil {
		return nil, nil, err
	}
	return record, body, nil
}

// Body returns the snapshot body for an already loaded record
func (f *RawIntakeFlowImpl) Body(ctx context.Context, record *models.RawRecord) ([]byte, error) {
	if record.Inline() {
		return record.Body, nil
	}
	body, err := f.objectStore.GetBytes(ctx, *record.BodyRef)
	if err != nil {
		return nil, NewBusinessError("RAW_GET_FAILED", "Failed to load offloaded snapshot body", err)
	}
	return body, nil
}
