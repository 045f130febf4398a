package tests

import (
	"context"
	"testing"

	"github.com/hikarudo/uwabami/app/services"
	"github.com/hikarudo/uwabami/app/sources"
	businessflow "github.com/hikarudo/uwabami/business_flow"
	"github.com/hikarudo/uwabami/models"
	"github.com/hikarudo/uwabami/repository"
	testingutil "github.com/hikarudo/uwabami/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// stubSourceClient serves canned listings in place of a live site
type stubSourceClient struct {
	name     models.ASPName
	listings []sources.Listing
}

func (s *stubSourceClient) Name() models.ASPName { return s.name }

func (s *stubSourceClient) FetchListings(ctx context.Context, limit int) ([]sources.Listing, error) {
	if limit < len(s.listings) {
		return s.listings[:limit], nil
	}
	return s.listings, nil
}

func newIngestionFlow(db *gorm.DB, registry *sources.Registry, workers int) businessflow.IngestionFlow {
	rawRepo := repository.NewRawRecordRepository(db)
	intake := businessflow.NewRawIntakeFlow(rawRepo, services.NewMockObjectStore(), db)
	return businessflow.NewIngestionFlow(
		registry,
		intake,
		newResolutionFlow(db),
		rawRepo,
		repository.NewReviewFlagRepository(db),
		workers,
	)
}

func TestIngestionFlow(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		ctx := testingutil.CreateTestContext()

		stub := &stubSourceClient{
			name: models.ASPDMM,
			listings: []sources.Listing{
				{
					Source:          models.ASPDMM,
					SourceProductID: "mium00501",
					URL:             "https://www.dmm.co.jp/detail/mium00501/",
					Body:            testingutil.DMMListingJSON("mium00501", "素人ナンパ501", "プレステージ", []string{"女優A"}),
				},
				{
					Source:          models.ASPDMM,
					SourceProductID: "mium00502",
					URL:             "https://www.dmm.co.jp/detail/mium00502/",
					Body:            testingutil.DMMListingJSON("mium00502", "素人ナンパ502", "プレステージ", []string{"女優B"}),
				},
			},
		}
		registry := sources.NewRegistry(stub)
		flow := newIngestionFlow(testDB.DB, registry, 4)

		t.Run("RunCreatesProductsEndToEnd", func(t *testing.T) {
			summary, err := flow.Run(ctx, models.ASPDMM, 100)
			require.NoError(t, err)
			assert.Equal(t, 2, summary.Fetched)
			assert.Equal(t, 2, summary.Created)
			assert.Equal(t, 0, summary.Errors)

			var count int64
			require.NoError(t, testDB.DB.Model(&models.CanonicalProduct{}).Count(&count).Error)
			assert.Equal(t, int64(2), count)

			product := &models.CanonicalProduct{}
			require.NoError(t, testDB.DB.Where("normalized_product_id = ?", "MIUM-501").First(product).Error)
			require.NotNil(t, product.Title)
			assert.Equal(t, "素人ナンパ501", *product.Title)
		})

		t.Run("SecondRunDoesNothingNew", func(t *testing.T) {
			summary, err := flow.Run(ctx, models.ASPDMM, 100)
			require.NoError(t, err)
			assert.Equal(t, 2, summary.Fetched)
			assert.Equal(t, 0, summary.Created)
			assert.Equal(t, 0, summary.Updated)
			assert.Equal(t, 0, summary.Errors)
		})

		t.Run("ChangedListingReprocessesAsUpdate", func(t *testing.T) {
			stub.listings[0].Body = testingutil.DMMListingJSON("mium00501", "素人ナンパ501 完全版", "プレステージ", []string{"女優A"})

			summary, err := flow.Run(ctx, models.ASPDMM, 100)
			require.NoError(t, err)
			assert.Equal(t, 0, summary.Created)
			assert.Equal(t, 1, summary.Updated)
		})

		t.Run("FetchLimitIsHonored", func(t *testing.T) {
			fetched, err := flow.FetchAndStore(ctx, models.ASPDMM, 1)
			require.NoError(t, err)
			assert.Equal(t, 1, fetched)
		})

		t.Run("UnknownSourceIsRejected", func(t *testing.T) {
			_, err := flow.FetchAndStore(ctx, models.ASPMGS, 10)
			assert.True(t, businessflow.IsUnknownSource(err))

			_, err = flow.FetchAndStore(ctx, "fanza", 10)
			assert.True(t, businessflow.IsInvalidSource(err))
		})

		return nil
	})
	require.NoError(t, err)
}

func TestIngestionFlowRunAll(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		ctx := testingutil.CreateTestContext()

		dmm := &stubSourceClient{
			name: models.ASPDMM,
			listings: []sources.Listing{{
				Source:          models.ASPDMM,
				SourceProductID: "abw00811",
				Body:            testingutil.DMMListingJSON("abw00811", "夏空の下で", "プレステージ", []string{"女優C"}),
			}},
		}
		adultfesta := &stubSourceClient{
			name: models.ASPAdultfesta,
			listings: []sources.Listing{{
				Source:          models.ASPAdultfesta,
				SourceProductID: "af-2001",
				Body:            []byte(`{"品番":"MIUM-812","商品名":"路上インタビュー812","出演者":"女優D"}`),
			}},
		}
		registry := sources.NewRegistry(dmm, adultfesta)
		flow := newIngestionFlow(testDB.DB, registry, 2)

		summary, err := flow.Run(ctx, businessflow.SourceAll, 100)
		require.NoError(t, err)
		assert.Equal(t, businessflow.SourceAll, summary.Source)
		assert.Equal(t, 2, summary.Fetched)
		assert.Equal(t, 2, summary.Created)
		assert.Equal(t, 0, summary.Errors)

		// One product per source landed
		var count int64
		require.NoError(t, testDB.DB.Model(&models.CanonicalProduct{}).Count(&count).Error)
		assert.Equal(t, int64(2), count)

		return nil
	})
	require.NoError(t, err)
}

func TestIngestionFlowParseFailure(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		ctx := testingutil.CreateTestContext()

		stub := &stubSourceClient{
			name: models.ASPDMM,
			listings: []sources.Listing{{
				Source:          models.ASPDMM,
				SourceProductID: "corrupt-001",
				Body:            []byte(`this is not json`),
			}},
		}
		registry := sources.NewRegistry(stub)
		flow := newIngestionFlow(testDB.DB, registry, 2)

		summary, err := flow.Run(ctx, models.ASPDMM, 10)
		require.NoError(t, err)
		assert.Equal(t, 1, summary.Fetched)
		assert.Equal(t, 1, summary.Skipped)
		assert.Equal(t, 0, summary.Errors)

		// The record is parked and flagged, not retried forever
		rawRepo := repository.NewRawRecordRepository(testDB.DB)
		record, err := rawRepo.ByKey(ctx, models.ASPDMM, "corrupt-001")
		require.NoError(t, err)
		assert.False(t, record.NeedsProcessing())

		var count int64
		require.NoError(t, testDB.DB.Model(&models.ReviewFlag{}).
			Where("source = ? AND source_product_id = ? AND kind = ?",
				models.ASPDMM, "corrupt-001", models.ReviewFlagKindParseFailure).
			Count(&count).Error)
		assert.Equal(t, int64(1), count)

		// A second pass with the same bytes must not stack a second flag
		summary, err = flow.Run(ctx, models.ASPDMM, 10)
		require.NoError(t, err)
		assert.Equal(t, 0, summary.Errors)

		require.NoError(t, testDB.DB.Model(&models.ReviewFlag{}).
			Where("source = ? AND source_product_id = ? AND kind = ?",
				models.ASPDMM, "corrupt-001", models.ReviewFlagKindParseFailure).
			Count(&count).Error)
		assert.Equal(t, int64(1), count)

		return nil
	})
	require.NoError(t, err)
}
