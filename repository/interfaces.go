// Package repository provides data access layer implementations and interfaces for database operations
package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/hikarudo/uwabami/models"
)

// RepositoryContext key for transaction in context
type contextKey string

const TxContextKey contextKey = "tx"

type Repository[T any, F any] interface {
	ByID(ctx context.Context, id uint) (*T, error)
	ByFilter(ctx context.Context, filter F, orderBy string, limit, offset int) ([]*T, error)
	Save(ctx context.Context, entity *T) error
	SaveBatch(ctx context.Context, entities []*T) error
	Count(ctx context.Context, filter F) (int64, error)
	Exists(ctx context.Context, filter F) (bool, error)
}

// RawRecordRepository defines operations for raw listing snapshots
type RawRecordRepository interface {
	Repository[models.RawRecord, models.RawRecordFilter]
	ByKey(ctx context.Context, source models.ASPName, sourceProductID string) (*models.RawRecord, error)
	// Put stores a fetched snapshot. When the content hash is unchanged it
	// only bumps fetched_at; when it changed it overwrites the body and
	// clears processed_at and process_note. Returns true when content changed
	// (including first sight).
	Put(ctx context.Context, record *models.RawRecord) (changed bool, err error)
	// ListUnprocessed returns records awaiting processing, oldest fetch
	// first. Records parked with a process note are excluded.
	ListUnprocessed(ctx context.Context, source models.ASPName, limit int) ([]*models.RawRecord, error)
	// MarkProcessed stamps processed_at only if the record still carries
	// expectedHash. Returns false when a concurrent re-fetch changed the
	// content, in which case the record stays due for another pass.
	MarkProcessed(ctx context.Context, source models.ASPName, sourceProductID, expectedHash string) (bool, error)
	// Park records why the record is set aside. processed_at stays null; the
	// process note alone keeps the record out of the queue.
	Park(ctx context.Context, source models.ASPName, sourceProductID, note string) error
	// ClearPark removes the park note so the record becomes due again unless
	// it was processed in the meantime.
	ClearPark(ctx context.Context, source models.ASPName, sourceProductID string) error
}

// CanonicalProductRepository defines operations for canonical products
type CanonicalProductRepository interface {
	Repository[models.CanonicalProduct, models.CanonicalProductFilter]
	ByNormalizedID(ctx context.Context, normalizedID string) (*models.CanonicalProduct, error)
	ByNormalizedIDWithRelations(ctx context.Context, normalizedID string) (*models.CanonicalProduct, error)
	Update(ctx context.Context, product *models.CanonicalProduct) error
	// MarkMerged points the loser at the survivor and flips its status.
	MarkMerged(ctx context.Context, loserID, survivorID uint) error
	AttachPerformer(ctx context.Context, productID, performerID uint) error
	AttachTag(ctx context.Context, productID, tagID uint) error
	ReassignAssociations(ctx context.Context, fromProductID, toProductID uint) error
}

// ProductSourceRepository defines operations for per-site listings
type ProductSourceRepository interface {
	Repository[models.ProductSource, models.ProductSourceFilter]
	ByASPAndSourceProductID(ctx context.Context, asp models.ASPName, sourceProductID string) (*models.ProductSource, error)
	ListByCanonicalProduct(ctx context.Context, canonicalProductID uint) ([]*models.ProductSource, error)
	Update(ctx context.Context, source *models.ProductSource) error
	ReassignToProduct(ctx context.Context, fromProductID, toProductID uint) error
}

// RawCanonicalLinkRepository defines operations for raw-to-canonical provenance links
type RawCanonicalLinkRepository interface {
	Repository[models.RawCanonicalLink, models.RawCanonicalLinkFilter]
	// Upsert records the link, overwriting the stored hash when the triple
	// already exists.
	Upsert(ctx context.Context, link *models.RawCanonicalLink) error
	ByTriple(ctx context.Context, canonicalProductID uint, sourceType models.ASPName, rawRecordKey string) (*models.RawCanonicalLink, error)
	ListByProduct(ctx context.Context, canonicalProductID uint) ([]*models.RawCanonicalLink, error)
	// NeedsReprocessing reports whether the raw record's current hash differs
	// from the hash recorded when the link was written.
	NeedsReprocessing(ctx context.Context, canonicalProductID uint, sourceType models.ASPName, rawRecordKey, currentHash string) (bool, error)
	ReassignToProduct(ctx context.Context, fromProductID, toProductID uint) error
}

// PerformerRepository defines operations for performers
type PerformerRepository interface {
	Repository[models.Performer, models.PerformerFilter]
	ByCanonicalName(ctx context.Context, name string) ([]*models.Performer, error)
	ByIDWithRelations(ctx context.Context, id uint) (*models.Performer, error)
	Update(ctx context.Context, performer *models.Performer) error
}

// PerformerAliasRepository defines operations for performer aliases
type PerformerAliasRepository interface {
	Repository[models.PerformerAlias, models.PerformerAliasFilter]
	ByAliasName(ctx context.Context, alias string) ([]*models.PerformerAlias, error)
	ByPerformerAndAlias(ctx context.Context, performerID uint, alias string) (*models.PerformerAlias, error)
}

// PerformerExternalIDRepository defines operations for performer external ids
type PerformerExternalIDRepository interface {
	Repository[models.PerformerExternalID, models.PerformerExternalIDFilter]
	ByProviderAndExternalID(ctx context.Context, provider, externalID string) (*models.PerformerExternalID, error)
	ListByPerformer(ctx context.Context, performerID uint) ([]*models.PerformerExternalID, error)
}

// TagRepository defines operations for tags
type TagRepository interface {
	Repository[models.Tag, models.TagFilter]
	ByName(ctx context.Context, name string) (*models.Tag, error)
	ListByNames(ctx context.Context, names []string) ([]*models.Tag, error)
}

// ReviewFlagRepository defines operations for review flags
type ReviewFlagRepository interface {
	Repository[models.ReviewFlag, models.ReviewFlagFilter]
	ByUUID(ctx context.Context, id uuid.UUID) (*models.ReviewFlag, error)
	// OpenByRecordAndKind fetches the open flag for a record, used to avoid
	// stacking duplicate flags across processing passes.
	OpenByRecordAndKind(ctx context.Context, source models.ASPName, sourceProductID string, kind models.ReviewFlagKind) (*models.ReviewFlag, error)
	Resolve(ctx context.Context, id uint, resolvedBy uint) error
}

// OperatorRepository defines operations for operator accounts
type OperatorRepository interface {
	Repository[models.Operator, models.OperatorFilter]
	ByUsername(ctx context.Context, username string) (*models.Operator, error)
	UpdateLastLogin(ctx context.Context, operatorID uint) error
}
