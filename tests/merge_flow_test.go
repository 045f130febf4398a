package tests

import (
	"testing"

	"github.com/hikarudo/uwabami/app/dto"
	businessflow "github.com/hikarudo/uwabami/business_flow"
	"github.com/hikarudo/uwabami/models"
	"github.com/hikarudo/uwabami/repository"
	testingutil "github.com/hikarudo/uwabami/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newMergeFlow(db *gorm.DB) businessflow.MergeFlow {
	return businessflow.NewMergeFlow(
		repository.NewCanonicalProductRepository(db),
		repository.NewProductSourceRepository(db),
		repository.NewRawCanonicalLinkRepository(db),
		db,
	)
}

func TestMergeFlow(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		ctx := testingutil.CreateTestContext()
		fixtures := testingutil.NewTestFixtures(testDB)
		flow := newMergeFlow(testDB.DB)
		productRepo := repository.NewCanonicalProductRepository(testDB.DB)
		sourceRepo := repository.NewProductSourceRepository(testDB.DB)

		t.Run("MergeMovesEverythingToSurvivor", func(t *testing.T) {
			survivor, err := fixtures.CreateTestProduct("MIUM-601", "正規の作品")
			require.NoError(t, err)
			_, err = fixtures.CreateTestProductSource(survivor.ID, models.ASPDMM, "mium00601")
			require.NoError(t, err)

			loser, err := fixtures.CreateTestProduct("SOKMIL:MIUM-601", "ソクミルの重複")
			require.NoError(t, err)
			_, err = fixtures.CreateTestProductSource(loser.ID, models.ASPSokmil, "mium00601")
			require.NoError(t, err)

			performer, err := fixtures.CreateTestPerformer("出演者X", "", "")
			require.NoError(t, err)
			require.NoError(t, productRepo.AttachPerformer(ctx, loser.ID, performer.ID))

			link := &models.RawCanonicalLink{
				CanonicalProductID:      loser.ID,
				SourceType:              models.ASPSokmil,
				RawRecordKey:            "mium00601",
				ContentHashAtProcessing: "deadbeef",
			}
			require.NoError(t, testDB.DB.Create(link).Error)

			response, err := flow.Merge(ctx, &dto.MergeProductsRequest{
				LoserNormalizedID:    "SOKMIL:MIUM-601",
				SurvivorNormalizedID: "MIUM-601",
			})
			require.NoError(t, err)
			assert.Equal(t, survivor.ID, response.SurvivorID)
			assert.Equal(t, loser.ID, response.LoserID)
			assert.Equal(t, 1, response.MovedSources)

			// Loser row survives as a pointer
			merged, err := productRepo.ByNormalizedID(ctx, "SOKMIL:MIUM-601")
			require.NoError(t, err)
			require.NotNil(t, merged)
			assert.True(t, merged.IsMerged())
			require.NotNil(t, merged.MergedIntoID)
			assert.Equal(t, survivor.ID, *merged.MergedIntoID)

			// Listings, links, and credits all belong to the survivor now
			listings, err := sourceRepo.ListByCanonicalProduct(ctx, survivor.ID)
			require.NoError(t, err)
			assert.Len(t, listings, 2)

			var linkCount int64
			require.NoError(t, testDB.DB.Model(&models.RawCanonicalLink{}).
				Where("canonical_product_id = ?", survivor.ID).Count(&linkCount).Error)
			assert.Equal(t, int64(1), linkCount)

			full, err := productRepo.ByNormalizedIDWithRelations(ctx, "MIUM-601")
			require.NoError(t, err)
			assert.Len(t, full.Performers, 1)
		})

		t.Run("MergeIntoItselfIsRejected", func(t *testing.T) {
			_, err := fixtures.CreateTestProduct("MIUM-602", "作品")
			require.NoError(t, err)

			_, err = flow.Merge(ctx, &dto.MergeProductsRequest{
				LoserNormalizedID:    "MIUM-602",
				SurvivorNormalizedID: "MIUM-602",
			})
			assert.True(t, businessflow.IsSameProduct(err))
		})

		t.Run("MissingProductIsRejected", func(t *testing.T) {
			_, err := fixtures.CreateTestProduct("MIUM-603", "作品")
			require.NoError(t, err)

			_, err = flow.Merge(ctx, &dto.MergeProductsRequest{
				LoserNormalizedID:    "MIUM-603",
				SurvivorNormalizedID: "NOPE-999",
			})
			assert.True(t, businessflow.IsProductNotFound(err))
		})

		t.Run("AlreadyMergedProductsStayPut", func(t *testing.T) {
			_, err := fixtures.CreateTestProduct("MIUM-604", "作品A")
			require.NoError(t, err)
			_, err = fixtures.CreateTestProduct("MGS:MIUM-604", "作品B")
			require.NoError(t, err)
			_, err = fixtures.CreateTestProduct("DUGA:MIUM-604", "作品C")
			require.NoError(t, err)

			_, err = flow.Merge(ctx, &dto.MergeProductsRequest{
				LoserNormalizedID:    "MGS:MIUM-604",
				SurvivorNormalizedID: "MIUM-604",
			})
			require.NoError(t, err)

			// The loser cannot merge a second time, in either role
			_, err = flow.Merge(ctx, &dto.MergeProductsRequest{
				LoserNormalizedID:    "MGS:MIUM-604",
				SurvivorNormalizedID: "DUGA:MIUM-604",
			})
			assert.True(t, businessflow.IsProductMerged(err))

			_, err = flow.Merge(ctx, &dto.MergeProductsRequest{
				LoserNormalizedID:    "DUGA:MIUM-604",
				SurvivorNormalizedID: "MGS:MIUM-604",
			})
			assert.True(t, businessflow.IsProductMerged(err))
		})

		return nil
	})
	require.NoError(t, err)
}
