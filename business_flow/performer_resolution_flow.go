package businessflow

import (
	"context"
	"fmt"

	"github.com/hikarudo/uwabami/app/services"
	"github.com/hikarudo/uwabami/models"
	"github.com/hikarudo/uwabami/normalize"
	"github.com/hikarudo/uwabami/repository"
	"gorm.io/gorm"
)

// wikiMinConfidence is the lowest wiki match confidence we accept before
// attaching a credit to an existing identity
const wikiMinConfidence = 0.8

// PerformerCredit is one performer mention extracted from a raw snapshot
type PerformerCredit struct {
	Name   string
	Source models.ASPName
	// SourceExternalID is the source site's own id for the performer, when
	// the site exposes one
	SourceExternalID string
	// ProductCode is the normalized product id the credit appeared on, used
	// for wiki fallback lookups
	ProductCode string
}

// PerformerResolutionFlow resolves a raw performer credit to a stored
// identity, creating one when nothing matches
type PerformerResolutionFlow interface {
	Resolve(ctx context.Context, credit PerformerCredit) (*models.Performer, error)
}

// PerformerResolutionFlowImpl implements the performer resolution business flow
type PerformerResolutionFlowImpl struct {
	performerRepo  repository.PerformerRepository
	aliasRepo      repository.PerformerAliasRepository
	externalIDRepo repository.PerformerExternalIDRepository
	wikiClient     services.WikiClient
	locks          *keyLocks
	db             *gorm.DB
}

// NewPerformerResolutionFlow creates a new performer resolution flow instance.
// wikiClient may be nil, which disables the fallback lookup.
func NewPerformerResolutionFlow(
	performerRepo repository.PerformerRepository,
	aliasRepo repository.PerformerAliasRepository,
	externalIDRepo repository.PerformerExternalIDRepository,
	wikiClient services.WikiClient,
	db *gorm.DB,
) PerformerResolutionFlow {
	return &PerformerResolutionFlowImpl{
		performerRepo:  performerRepo,
		aliasRepo:      aliasRepo,
		externalIDRepo: externalIDRepo,
		wikiClient:     wikiClient,
		locks:          defaultPerformerLocks,
		db:             db,
	}
}

// Resolve finds or creates the identity behind one performer credit. The
// match order is source external id, exact canonical name, exact alias, then
// a best effort wiki lookup; only when all of those come up empty does a new
// performer get created. Aliases only ever accumulate, discovering one never
// merges two identities.
func (f *PerformerResolutionFlowImpl) Resolve(ctx context.Context, credit PerformerCredit) (*models.Performer, error) {
	name, err := normalize.PerformerName(credit.Name)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidPerformerName, credit.Name)
	}

	// Serialize per name. Two credits carrying the same new name must not
	// both miss the lookup and insert duplicate identities; the name itself
	// has no unique constraint because distinct performers can share one.
	f.locks.Lock(name)
	defer f.locks.Unlock(name)

	// Source external id is the strongest signal: sites keep their performer
	// ids stable across renames.
	if credit.SourceExternalID != "" {
		performer, err := f.byExternalID(ctx, credit.Source.String(), credit.SourceExternalID)
		if err != nil {
			return nil, err
		}
		if performer != nil {
			if err := f.ensureAlias(ctx, performer, name, credit.Source); err != nil {
				return nil, err
			}
			return performer, nil
		}
	}

	performer, err := f.byName(ctx, name)
	if err != nil {
		return nil, err
	}
	if performer != nil {
		if err := f.registerExternalID(ctx, performer.ID, credit.Source.String(), credit.SourceExternalID); err != nil {
			return nil, err
		}
		return performer, nil
	}

	if f.wikiClient != nil && credit.ProductCode != "" {
		performer, err = f.byWiki(ctx, name, credit)
		if err != nil {
			return nil, err
		}
		if performer != nil {
			return performer, nil
		}
	}

	return f.create(ctx, name, credit)
}

// byExternalID resolves through the (provider, external id) table
func (f *PerformerResolutionFlowImpl) byExternalID(ctx context.Context, provider, externalID string) (*models.Performer, error) {
	ext, err := f.externalIDRepo.ByProviderAndExternalID(ctx, provider, externalID)
	if err != nil {
		return nil, NewBusinessError("PERFORMER_LOOKUP_FAILED", "Failed to look up performer external id", err)
	}
	if ext == nil {
		return nil, nil
	}
	performer, err := f.performerRepo.ByID(ctx, ext.PerformerID)
	if err != nil {
		return nil, NewBusinessError("PERFORMER_LOOKUP_FAILED", "Failed to load performer", err)
	}
	return performer, nil
}

// byName resolves through exact canonical name then exact alias. A name that
// matches more than one identity is ambiguous and never auto-attached.
func (f *PerformerResolutionFlowImpl) byName(ctx context.Context, name string) (*models.Performer, error) {
	matches, err := f.performerRepo.ByCanonicalName(ctx, name)
	if err != nil {
		return nil, NewBusinessError("PERFORMER_LOOKUP_FAILED", "Failed to look up performer by name", err)
	}
	if len(matches) == 1 {
		return matches[0], nil
	}
	if len(matches) > 1 {
		return nil, fmt.Errorf("%w: %q", ErrAmbiguousPerformer, name)
	}

	aliases, err := f.aliasRepo.ByAliasName(ctx, name)
	if err != nil {
		return nil, NewBusinessError("PERFORMER_LOOKUP_FAILED", "Failed to look up performer by alias", err)
	}
	ids := make(map[uint]struct{})
	for _, alias := range aliases {
		ids[alias.PerformerID] = struct{}{}
	}
	if len(ids) > 1 {
		return nil, fmt.Errorf("%w: %q", ErrAmbiguousPerformer, name)
	}
	if len(ids) == 1 {
		performer, err := f.performerRepo.ByID(ctx, aliases[0].PerformerID)
		if err != nil {
			return nil, NewBusinessError("PERFORMER_LOOKUP_FAILED", "Failed to load performer", err)
		}
		return performer, nil
	}
	return nil, nil
}

// byWiki asks the external wiki for identities credited on the product and
// matches the credit name against them. Lookups are best effort: any wiki
// failure or an unconvincing match just means no hint.
func (f *PerformerResolutionFlowImpl) byWiki(ctx context.Context, name string, credit PerformerCredit) (*models.Performer, error) {
	candidates, err := f.wikiClient.SearchByProductCode(ctx, credit.ProductCode)
	if err != nil {
		return nil, nil
	}

	for _, candidate := range candidates {
		if candidate.Confidence < wikiMinConfidence {
			continue
		}
		if candidate.Name != name && !containsName(candidate.Aliases, name) {
			continue
		}

		performer, err := f.byExternalID(ctx, candidate.Provider, candidate.ExternalID)
		if err != nil {
			return nil, err
		}
		if performer == nil {
			continue
		}
		// The wiki says this credit name belongs to a known identity under a
		// different name. Record it as an alias.
		if err := f.ensureAlias(ctx, performer, name, credit.Source); err != nil {
			return nil, err
		}
		if err := f.registerExternalID(ctx, performer.ID, credit.Source.String(), credit.SourceExternalID); err != nil {
			return nil, err
		}
		return performer, nil
	}
	return nil, nil
}

// create stores a brand new identity for the credit
func (f *PerformerResolutionFlowImpl) create(ctx context.Context, name string, credit PerformerCredit) (*models.Performer, error) {
	performer := &models.Performer{CanonicalName: name}

	err := repository.WithTransaction(ctx, f.db, func(txCtx context.Context) error {
		if err := f.performerRepo.Save(txCtx, performer); err != nil {
			return err
		}
		if credit.SourceExternalID != "" {
			ext := &models.PerformerExternalID{
				PerformerID: performer.ID,
				Provider:    credit.Source.String(),
				ExternalID:  credit.SourceExternalID,
			}
			if err := f.externalIDRepo.Save(txCtx, ext); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		// A concurrent worker registered the same external id first. Resolve
		// to the identity it created.
		if repository.IsUniqueViolation(err) && credit.SourceExternalID != "" {
			performer, lookupErr := f.byExternalID(ctx, credit.Source.String(), credit.SourceExternalID)
			if lookupErr == nil && performer != nil {
				return performer, nil
			}
		}
		return nil, NewBusinessError("PERFORMER_CREATE_FAILED", "Failed to create performer", err)
	}
	return performer, nil
}

// ensureAlias attaches name to the performer as an alias when it differs from
// the canonical name and is not recorded yet
func (f *PerformerResolutionFlowImpl) ensureAlias(ctx context.Context, performer *models.Performer, name string, source models.ASPName) error {
	if performer.CanonicalName == name {
		return nil
	}
	existing, err := f.aliasRepo.ByPerformerAndAlias(ctx, performer.ID, name)
	if err != nil {
		return NewBusinessError("PERFORMER_ALIAS_FAILED", "Failed to look up alias", err)
	}
	if existing != nil {
		return nil
	}

	alias := &models.PerformerAlias{
		PerformerID: performer.ID,
		AliasName:   name,
		SourceASP:   &source,
	}
	if err := f.aliasRepo.Save(ctx, alias); err != nil {
		if repository.IsUniqueViolation(err) {
			return nil
		}
		return NewBusinessError("PERFORMER_ALIAS_FAILED", "Failed to save alias", err)
	}
	return nil
}

// registerExternalID records the source site's performer id when it is new
func (f *PerformerResolutionFlowImpl) registerExternalID(ctx context.Context, performerID uint, provider, externalID string) error {
	if externalID == "" {
		return nil
	}
	existing, err := f.externalIDRepo.ByProviderAndExternalID(ctx, provider, externalID)
	if err != nil {
		return NewBusinessError("PERFORMER_LOOKUP_FAILED", "Failed to look up performer external id", err)
	}
	if existing != nil {
		return nil
	}

	ext := &models.PerformerExternalID{
		PerformerID: performerID,
		Provider:    provider,
		ExternalID:  externalID,
	}
	if err := f.externalIDRepo.Save(ctx, ext); err != nil {
		if repository.IsUniqueViolation(err) {
			return nil
		}
		return NewBusinessError("PERFORMER_LOOKUP_FAILED", "Failed to save performer external id", err)
	}
	return nil
}

func containsName(names []string, name string) bool {
	for _, n := range names {
		if n == name {
			return true
		}
	}
	return false
}
