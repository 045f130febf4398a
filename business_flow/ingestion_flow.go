package businessflow

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/hikarudo/uwabami/app/sources"
	"github.com/hikarudo/uwabami/models"
	"github.com/hikarudo/uwabami/repository"
	"github.com/hikarudo/uwabami/utils"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"golang.org/x/sync/errgroup"
)

var (
	ingestRecordsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "uwabami_ingest_records_total",
		Help: "Raw records handled by ingestion batches, by source and outcome",
	}, []string{"source", "outcome"})

	ingestFetchedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "uwabami_ingest_fetched_total",
		Help: "Listings fetched from source sites, by source and whether the content changed",
	}, []string{"source", "changed"})

	ingestBatchDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "uwabami_ingest_batch_duration_seconds",
		Help:    "Wall time of one ingestion batch",
		Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
	}, []string{"source"})
)

// SourceAll requests one run across every registered source
const SourceAll models.ASPName = "all"

// IngestionFlow drives the fetch and process pipeline for source catalogs
type IngestionFlow interface {
	// Run fetches fresh listings for a source and then processes everything
	// due, returning per-record outcome counts. Passing SourceAll runs every
	// registered source in turn and aggregates the counts.
	Run(ctx context.Context, source models.ASPName, limit int) (*BatchSummary, error)
	// FetchAndStore pulls up to limit listings from the source and stores
	// their snapshots, returning how many were fetched.
	FetchAndStore(ctx context.Context, source models.ASPName, limit int) (int, error)
	// ProcessBatch resolves up to limit due records for the source. A record
	// that fails stays due and never aborts the rest of the batch.
	ProcessBatch(ctx context.Context, source models.ASPName, limit int) (*BatchSummary, error)
}

// IngestionFlowImpl implements the ingestion business flow
type IngestionFlowImpl struct {
	registry   *sources.Registry
	intake     RawIntakeFlow
	resolution ProductResolutionFlow
	rawRepo    repository.RawRecordRepository
	flagRepo   repository.ReviewFlagRepository
	workers    int

	mu      sync.Mutex
	running map[models.ASPName]bool
}

// NewIngestionFlow creates a new ingestion flow instance. workers bounds how
// many records are resolved concurrently within one batch.
func NewIngestionFlow(
	registry *sources.Registry,
	intake RawIntakeFlow,
	resolution ProductResolutionFlow,
	rawRepo repository.RawRecordRepository,
	flagRepo repository.ReviewFlagRepository,
	workers int,
) IngestionFlow {
	if workers <= 0 {
		workers = utils.DefaultIngestWorkers
	}
	return &IngestionFlowImpl{
		registry:   registry,
		intake:     intake,
		resolution: resolution,
		rawRepo:    rawRepo,
		flagRepo:   flagRepo,
		workers:    workers,
		running:    make(map[models.ASPName]bool),
	}
}

// Run fetches then processes one source end to end
func (f *IngestionFlowImpl) Run(ctx context.Context, source models.ASPName, limit int) (*BatchSummary, error) {
	if source == SourceAll {
		return f.runAll(ctx, limit)
	}

	fetched, err := f.FetchAndStore(ctx, source, limit)
	if err != nil {
		return nil, err
	}

	summary, err := f.ProcessBatch(ctx, source, limit)
	if err != nil {
		return nil, err
	}
	summary.Fetched = fetched
	return summary, nil
}

// runAll runs every registered source in turn and sums the counts. A source
// whose batch is already in flight is skipped; the rest still run.
func (f *IngestionFlowImpl) runAll(ctx context.Context, limit int) (*BatchSummary, error) {
	total := &BatchSummary{Source: SourceAll}
	for _, name := range f.registry.Names() {
		summary, err := f.Run(ctx, name, limit)
		if err != nil {
			if IsBatchAlreadyRunning(err) {
				continue
			}
			return nil, err
		}
		total.Fetched += summary.Fetched
		total.Created += summary.Created
		total.Updated += summary.Updated
		total.Skipped += summary.Skipped
		total.Errors += summary.Errors
	}
	return total, nil
}

// FetchAndStore pulls listings from the source and stores their snapshots
func (f *IngestionFlowImpl) FetchAndStore(ctx context.Context, source models.ASPName, limit int) (int, error) {
	if !source.Valid() {
		return 0, ErrInvalidSource
	}
	client, err := f.registry.Get(source)
	if err != nil {
		return 0, fmt.Errorf("%w: %s", ErrUnknownSource, source)
	}

	limit = clampLimit(limit)
	listings, err := client.FetchListings(ctx, limit)
	if err != nil {
		return 0, NewBusinessErrorf("INGEST_FETCH_FAILED", "Failed to fetch listings from %s", err, source)
	}

	for _, listing := range listings {
		changed, err := f.intake.Put(ctx, listing)
		if err != nil {
			// A single bad listing must not lose the rest of the fetch
			ingestFetchedTotal.WithLabelValues(source.String(), "error").Inc()
			continue
		}
		ingestFetchedTotal.WithLabelValues(source.String(), fmt.Sprintf("%t", changed)).Inc()
	}
	return len(listings), nil
}

// ProcessBatch resolves due records through a bounded worker pool. Records
// with different product codes process in parallel; the resolution flow
// serializes records that normalize to the same code.
func (f *IngestionFlowImpl) ProcessBatch(ctx context.Context, source models.ASPName, limit int) (*BatchSummary, error) {
	if source != "" && !source.Valid() {
		return nil, ErrInvalidSource
	}
	if !f.tryStart(source) {
		return nil, fmt.Errorf("%w: %s", ErrBatchAlreadyRunning, source)
	}
	defer f.finish(source)

	timer := prometheus.NewTimer(ingestBatchDuration.WithLabelValues(source.String()))
	defer timer.ObserveDuration()

	records, err := f.rawRepo.ListUnprocessed(ctx, source, clampLimit(limit))
	if err != nil {
		return nil, NewBusinessError("INGEST_PROCESS_FAILED", "Failed to list due records", err)
	}

	var created, updated, skipped, failures atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(f.workers)
	for _, record := range records {
		record := record
		g.Go(func() error {
			if gctx.Err() != nil {
				return gctx.Err()
			}

			outcome, err := f.processRecord(gctx, record)
			if err != nil {
				// The record stays due for a later pass
				failures.Add(1)
				ingestRecordsTotal.WithLabelValues(record.Source.String(), "error").Inc()
				return nil
			}

			switch outcome {
			case OutcomeCreated:
				created.Add(1)
			case OutcomeUpdated:
				updated.Add(1)
			default:
				skipped.Add(1)
			}
			ingestRecordsTotal.WithLabelValues(record.Source.String(), string(outcome)).Inc()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, NewBusinessError("INGEST_PROCESS_FAILED", "Batch cancelled", err)
	}

	return &BatchSummary{
		Source:  source,
		Created: int(created.Load()),
		Updated: int(updated.Load()),
		Skipped: int(skipped.Load()),
		Errors:  int(failures.Load()),
	}, nil
}

// processRecord resolves one raw record and stamps it processed. The stamp is
// optimistic on the content hash: when a concurrent re-fetch changed the
// content mid-processing the stamp misses and the record stays due.
func (f *IngestionFlowImpl) processRecord(ctx context.Context, record *models.RawRecord) (ResolutionOutcome, error) {
	body, err := f.intake.Body(ctx, record)
	if err != nil {
		return "", err
	}

	fields, err := sources.ParseFields(record.Source, body)
	if err != nil {
		// Parsing is deterministic, retrying the same bytes cannot help.
		// Park the record and surface it to an operator.
		if parkErr := f.parkForReview(ctx, record, models.ReviewFlagKindParseFailure, err.Error()); parkErr != nil {
			return "", parkErr
		}
		return OutcomeSkipped, nil
	}

	result, err := f.resolution.Resolve(ctx, record, fields)
	if err != nil {
		return "", err
	}

	if _, err := f.rawRepo.MarkProcessed(ctx, record.Source, record.SourceProductID, record.ContentHash); err != nil {
		return "", err
	}
	return result.Outcome, nil
}

// parkForReview sets a record aside with a note and opens a review flag
// unless an identical one is already open
func (f *IngestionFlowImpl) parkForReview(ctx context.Context, record *models.RawRecord, kind models.ReviewFlagKind, detail string) error {
	if err := f.rawRepo.Park(ctx, record.Source, record.SourceProductID, string(kind)); err != nil {
		return err
	}

	open, err := f.flagRepo.OpenByRecordAndKind(ctx, record.Source, record.SourceProductID, kind)
	if err != nil {
		return err
	}
	if open != nil {
		return nil
	}
	return f.flagRepo.Save(ctx, &models.ReviewFlag{
		Kind:            kind,
		Source:          record.Source,
		SourceProductID: record.SourceProductID,
		Detail:          detail,
	})
}

func (f *IngestionFlowImpl) tryStart(source models.ASPName) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.running[source] {
		return false
	}
	f.running[source] = true
	return true
}

func (f *IngestionFlowImpl) finish(source models.ASPName) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.running, source)
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return utils.DefaultBatchLimit
	}
	if limit > utils.MaxBatchLimit {
		return utils.MaxBatchLimit
	}
	return limit
}
