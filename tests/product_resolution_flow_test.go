package tests

import (
	"sync"
	"testing"

	"github.com/hikarudo/uwabami/app/sources"
	businessflow "github.com/hikarudo/uwabami/business_flow"
	"github.com/hikarudo/uwabami/hasher"
	"github.com/hikarudo/uwabami/models"
	"github.com/hikarudo/uwabami/repository"
	testingutil "github.com/hikarudo/uwabami/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newResolutionFlow(db *gorm.DB) businessflow.ProductResolutionFlow {
	performerFlow := businessflow.NewPerformerResolutionFlow(
		repository.NewPerformerRepository(db),
		repository.NewPerformerAliasRepository(db),
		repository.NewPerformerExternalIDRepository(db),
		nil,
		db,
	)
	return businessflow.NewProductResolutionFlow(
		repository.NewCanonicalProductRepository(db),
		repository.NewProductSourceRepository(db),
		repository.NewRawCanonicalLinkRepository(db),
		repository.NewTagRepository(db),
		repository.NewRawRecordRepository(db),
		repository.NewReviewFlagRepository(db),
		performerFlow,
		db,
	)
}

func TestProductResolutionFlow(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		ctx := testingutil.CreateTestContext()
		fixtures := testingutil.NewTestFixtures(testDB)
		flow := newResolutionFlow(testDB.DB)
		productRepo := repository.NewCanonicalProductRepository(testDB.DB)
		sourceRepo := repository.NewProductSourceRepository(testDB.DB)

		t.Run("CreatesProductOnFirstSight", func(t *testing.T) {
			record, err := fixtures.CreateTestRawRecord(models.ASPDMM, "mium00001", []byte(`v1`))
			require.NoError(t, err)

			price := uint(1980)
			maker := "プレステージ"
			fields := &sources.ExtractedFields{
				RawCode:        "mium00001",
				Title:          "渋谷で声をかけた女子大生",
				MakerName:      &maker,
				PriceJPY:       &price,
				Genres:         []string{"ナンパ", "Amateur"},
				PerformerNames: []string{"葵つかさ"},
				PerformerIDs:   map[string]string{"葵つかさ": "26125"},
			}

			result, err := flow.Resolve(ctx, record, fields)
			require.NoError(t, err)
			assert.Equal(t, businessflow.OutcomeCreated, result.Outcome)
			require.NotNil(t, result.Product)
			assert.Equal(t, "MIUM-001", result.Product.NormalizedProductID)

			product, err := productRepo.ByNormalizedIDWithRelations(ctx, "MIUM-001")
			require.NoError(t, err)
			require.NotNil(t, product)
			assert.Len(t, product.Sources, 1)
			assert.Len(t, product.Performers, 1)
			assert.Len(t, product.Tags, 2)
			require.NotNil(t, product.Title)
			assert.Equal(t, "渋谷で声をかけた女子大生", *product.Title)
		})

		t.Run("CrossSiteListingsConverge", func(t *testing.T) {
			record, err := fixtures.CreateTestRawRecord(models.ASPMGS, "300MIUM-001", []byte(`v1`))
			require.NoError(t, err)

			price := uint(2480)
			fields := &sources.ExtractedFields{
				RawCode:  "300MIUM-001",
				Title:    "渋谷で声をかけた女子大生",
				PriceJPY: &price,
			}

			result, err := flow.Resolve(ctx, record, fields)
			require.NoError(t, err)
			assert.Equal(t, businessflow.OutcomeUpdated, result.Outcome)
			assert.Equal(t, "MIUM-001", result.Product.NormalizedProductID)

			listings, err := sourceRepo.ListByCanonicalProduct(ctx, result.Product.ID)
			require.NoError(t, err)
			assert.Len(t, listings, 2)

			// Prices stay per site
			var prices []uint
			for _, listing := range listings {
				require.NotNil(t, listing.PriceJPY)
				prices = append(prices, *listing.PriceJPY)
			}
			assert.ElementsMatch(t, []uint{1980, 2480}, prices)
		})

		t.Run("SameContentSkipsOnSecondPass", func(t *testing.T) {
			record, err := fixtures.CreateTestRawRecord(models.ASPDMM, "mium00002", []byte(`v1`))
			require.NoError(t, err)
			fields := &sources.ExtractedFields{RawCode: "mium00002", Title: "二度目は飛ばす作品"}

			first, err := flow.Resolve(ctx, record, fields)
			require.NoError(t, err)
			require.Equal(t, businessflow.OutcomeCreated, first.Outcome)

			second, err := flow.Resolve(ctx, record, fields)
			require.NoError(t, err)
			assert.Equal(t, businessflow.OutcomeSkipped, second.Outcome)
		})

		t.Run("ChangedContentFillsMissingFields", func(t *testing.T) {
			record, err := fixtures.CreateTestRawRecord(models.ASPDMM, "mium00003", []byte(`v1`))
			require.NoError(t, err)
			_, err = flow.Resolve(ctx, record, &sources.ExtractedFields{RawCode: "mium00003", Title: "初回タイトル"})
			require.NoError(t, err)

			record.ContentHash = hasher.Sum([]byte(`v2`))
			desc := "追加された説明文"
			result, err := flow.Resolve(ctx, record, &sources.ExtractedFields{
				RawCode:     "mium00003",
				Title:       "後から来た別タイトル",
				Description: &desc,
			})
			require.NoError(t, err)
			assert.Equal(t, businessflow.OutcomeUpdated, result.Outcome)

			product, err := productRepo.ByNormalizedID(ctx, "MIUM-003")
			require.NoError(t, err)
			require.NotNil(t, product.Title)
			// A real title is never clobbered; the missing description fills in
			assert.Equal(t, "初回タイトル", *product.Title)
			require.NotNil(t, product.Description)
			assert.Equal(t, desc, *product.Description)
		})

		t.Run("RealTitleReplacesPlaceholder", func(t *testing.T) {
			record, err := fixtures.CreateTestRawRecord(models.ASPAdultfesta, "mium-004", []byte(`v1`))
			require.NoError(t, err)
			_, err = flow.Resolve(ctx, record, &sources.ExtractedFields{RawCode: "MIUM-004", Title: "タイトル未定"})
			require.NoError(t, err)

			record2, err := fixtures.CreateTestRawRecord(models.ASPDMM, "mium00004", []byte(`v1`))
			require.NoError(t, err)
			_, err = flow.Resolve(ctx, record2, &sources.ExtractedFields{RawCode: "mium00004", Title: "本物のタイトル"})
			require.NoError(t, err)

			product, err := productRepo.ByNormalizedID(ctx, "MIUM-004")
			require.NoError(t, err)
			require.NotNil(t, product.Title)
			assert.Equal(t, "本物のタイトル", *product.Title)
		})

		t.Run("EmptyCodeParksForReview", func(t *testing.T) {
			record, err := fixtures.CreateTestRawRecord(models.ASPDMM, "broken-listing", []byte(`v1`))
			require.NoError(t, err)
			fields := &sources.ExtractedFields{RawCode: "!!!", Title: "コード無し"}

			result, err := flow.Resolve(ctx, record, fields)
			require.NoError(t, err)
			assert.Equal(t, businessflow.OutcomeSkipped, result.Outcome)
			assert.Nil(t, result.Product)

			rawRepo := repository.NewRawRecordRepository(testDB.DB)
			parked, err := rawRepo.ByKey(ctx, models.ASPDMM, "broken-listing")
			require.NoError(t, err)
			assert.False(t, parked.NeedsProcessing())
			require.NotNil(t, parked.ProcessNote)
			assert.Equal(t, "empty_code", *parked.ProcessNote)

			// A repeated pass must not stack a second flag
			_, err = flow.Resolve(ctx, record, fields)
			require.NoError(t, err)

			var count int64
			require.NoError(t, testDB.DB.Model(&models.ReviewFlag{}).
				Where("source = ? AND source_product_id = ? AND kind = ?",
					models.ASPDMM, "broken-listing", models.ReviewFlagKindEmptyCode).
				Count(&count).Error)
			assert.Equal(t, int64(1), count)
		})

		t.Run("WorkOnMergedProductLandsOnSurvivor", func(t *testing.T) {
			survivor, err := fixtures.CreateTestProduct("MIUM-777", "生存作品")
			require.NoError(t, err)
			loser, err := fixtures.CreateTestProduct("SOKMIL:MIUM-777", "重複作品")
			require.NoError(t, err)
			_, err = fixtures.CreateTestProductSource(loser.ID, models.ASPSokmil, "mium00777")
			require.NoError(t, err)

			loser.Status = models.ProductStatusMerged
			loser.MergedIntoID = &survivor.ID
			require.NoError(t, testDB.DB.Save(loser).Error)

			record, err := fixtures.CreateTestRawRecord(models.ASPSokmil, "mium00777", []byte(`v2`))
			require.NoError(t, err)

			result, err := flow.Resolve(ctx, record, &sources.ExtractedFields{RawCode: "mium00777", Title: "再告知"})
			require.NoError(t, err)
			assert.Equal(t, businessflow.OutcomeUpdated, result.Outcome)
			assert.Equal(t, survivor.ID, result.Product.ID)
		})

		return nil
	})
	require.NoError(t, err)
}

func TestProductResolutionFlowConcurrency(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		ctx := testingutil.CreateTestContext()
		fixtures := testingutil.NewTestFixtures(testDB)
		flow := newResolutionFlow(testDB.DB)

		dmmRecord, err := fixtures.CreateTestRawRecord(models.ASPDMM, "abw00900", []byte(`dmm`))
		require.NoError(t, err)
		mgsRecord, err := fixtures.CreateTestRawRecord(models.ASPMGS, "259ABW-900", []byte(`mgs`))
		require.NoError(t, err)

		records := []*models.RawRecord{dmmRecord, mgsRecord}
		fields := []*sources.ExtractedFields{
			{RawCode: "abw00900", Title: "同一作品"},
			{RawCode: "259ABW-900", Title: "同一作品"},
		}

		var wg sync.WaitGroup
		errs := make([]error, len(records))
		for i := range records {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				_, errs[i] = flow.Resolve(ctx, records[i], fields[i])
			}(i)
		}
		wg.Wait()
		for _, err := range errs {
			require.NoError(t, err)
		}

		// Exactly one product exists and both listings landed on it
		var products []models.CanonicalProduct
		require.NoError(t, testDB.DB.Where("normalized_product_id = ?", "ABW-900").Find(&products).Error)
		require.Len(t, products, 1)

		var count int64
		require.NoError(t, testDB.DB.Model(&models.ProductSource{}).
			Where("canonical_product_id = ?", products[0].ID).Count(&count).Error)
		assert.Equal(t, int64(2), count)

		return nil
	})
	require.NoError(t, err)
}
