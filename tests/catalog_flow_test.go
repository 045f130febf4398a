package tests

import (
	"testing"
	"time"

	"github.com/hikarudo/uwabami/app/dto"
	"github.com/hikarudo/uwabami/app/services"
	businessflow "github.com/hikarudo/uwabami/business_flow"
	"github.com/hikarudo/uwabami/models"
	"github.com/hikarudo/uwabami/repository"
	testingutil "github.com/hikarudo/uwabami/testing"
	"github.com/hikarudo/uwabami/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCatalogFlow(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		ctx := testingutil.CreateTestContext()
		fixtures := testingutil.NewTestFixtures(testDB)
		productRepo := repository.NewCanonicalProductRepository(testDB.DB)
		flow := businessflow.NewCatalogFlow(productRepo, nil)

		maker := "プレステージ"
		release := time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC)

		seed := func(id, title string, withMaker bool, released *time.Time) *models.CanonicalProduct {
			product, err := fixtures.CreateTestProduct(id, title)
			require.NoError(t, err)
			if withMaker {
				product.MakerName = &maker
			}
			product.ReleaseDate = released
			require.NoError(t, testDB.DB.Save(product).Error)
			return product
		}

		seed("ABW-701", "夏の作品", true, &release)
		seed("ABW-702", "冬の作品", false, nil)
		seed("ABW-703", "夏の続編", true, nil)

		t.Run("ListReturnsActiveProducts", func(t *testing.T) {
			response, err := flow.ListProducts(ctx, &dto.ListProductsRequest{})
			require.NoError(t, err)
			assert.Equal(t, int64(3), response.Total)
			assert.Len(t, response.Items, 3)
			assert.Equal(t, utils.DefaultPageSize, response.PageSize)
		})

		t.Run("TitleFilter", func(t *testing.T) {
			response, err := flow.ListProducts(ctx, &dto.ListProductsRequest{Title: "夏"})
			require.NoError(t, err)
			assert.Equal(t, int64(2), response.Total)
		})

		t.Run("MakerFilter", func(t *testing.T) {
			response, err := flow.ListProducts(ctx, &dto.ListProductsRequest{Maker: maker})
			require.NoError(t, err)
			assert.Equal(t, int64(2), response.Total)
		})

		t.Run("ReleaseDateWindow", func(t *testing.T) {
			response, err := flow.ListProducts(ctx, &dto.ListProductsRequest{
				ReleasedAfter:  "2026-01-01",
				ReleasedBefore: "2026-12-31",
			})
			require.NoError(t, err)
			assert.Equal(t, int64(1), response.Total)
			require.Len(t, response.Items, 1)
			assert.Equal(t, "ABW-701", response.Items[0].NormalizedProductID)
		})

		t.Run("InvertedDateWindowIsRejected", func(t *testing.T) {
			_, err := flow.ListProducts(ctx, &dto.ListProductsRequest{
				ReleasedAfter:  "2026-12-31",
				ReleasedBefore: "2026-01-01",
			})
			assert.True(t, businessflow.IsStartDateAfterEndDate(err))
		})

		t.Run("Pagination", func(t *testing.T) {
			page1, err := flow.ListProducts(ctx, &dto.ListProductsRequest{Page: 1, PageSize: 2})
			require.NoError(t, err)
			assert.Len(t, page1.Items, 2)
			assert.Equal(t, int64(3), page1.Total)

			page2, err := flow.ListProducts(ctx, &dto.ListProductsRequest{Page: 2, PageSize: 2})
			require.NoError(t, err)
			assert.Len(t, page2.Items, 1)

			_, err = flow.ListProducts(ctx, &dto.ListProductsRequest{Page: 1, PageSize: utils.MaxPageSize + 1})
			assert.True(t, businessflow.IsInvalidPageSize(err))
		})

		t.Run("MergedProductsStayOutOfTheList", func(t *testing.T) {
			survivor := seed("ABW-704", "生存作品", false, nil)
			loser := seed("SOKMIL:ABW-704", "重複作品", false, nil)
			loser.Status = models.ProductStatusMerged
			loser.MergedIntoID = &survivor.ID
			require.NoError(t, testDB.DB.Save(loser).Error)

			response, err := flow.ListProducts(ctx, &dto.ListProductsRequest{})
			require.NoError(t, err)
			for _, item := range response.Items {
				assert.NotEqual(t, "SOKMIL:ABW-704", item.NormalizedProductID)
			}
		})

		t.Run("GetProductWithRelations", func(t *testing.T) {
			product, err := fixtures.CreateTestProduct("ABW-710", "詳細取得")
			require.NoError(t, err)
			// The weaker source arrives first; the listing order must not
			// depend on insertion order
			_, err = fixtures.CreateTestProductSource(product.ID, models.ASPAdultfesta, "af-0710")
			require.NoError(t, err)
			_, err = fixtures.CreateTestProductSource(product.ID, models.ASPDMM, "abw00710")
			require.NoError(t, err)
			performer, err := fixtures.CreateTestPerformer("出演者Y", "", "")
			require.NoError(t, err)
			require.NoError(t, productRepo.AttachPerformer(ctx, product.ID, performer.ID))

			detail, err := flow.GetProduct(ctx, "ABW-710")
			require.NoError(t, err)
			assert.Equal(t, "ABW-710", detail.NormalizedProductID)
			require.Len(t, detail.Sources, 2)
			assert.Equal(t, "dmm", detail.Sources[0].ASPName)
			assert.Equal(t, "adultfesta", detail.Sources[1].ASPName)
			require.Len(t, detail.Performers, 1)
			assert.Equal(t, "出演者Y", detail.Performers[0].CanonicalName)
		})

		t.Run("GetProductFollowsMerge", func(t *testing.T) {
			detail, err := flow.GetProduct(ctx, "SOKMIL:ABW-704")
			require.NoError(t, err)
			assert.Equal(t, "ABW-704", detail.NormalizedProductID)
		})

		t.Run("GetMissingProduct", func(t *testing.T) {
			_, err := flow.GetProduct(ctx, "NOPE-000")
			assert.True(t, businessflow.IsProductNotFound(err))
		})

		return nil
	})
	require.NoError(t, err)
}

func TestCatalogFlowCaching(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		ctx := testingutil.CreateTestContext()
		fixtures := testingutil.NewTestFixtures(testDB)
		productRepo := repository.NewCanonicalProductRepository(testDB.DB)
		cache := services.NewMemoryCache(16)
		flow := businessflow.NewCatalogFlow(productRepo, cache)

		product, err := fixtures.CreateTestProduct("ABW-720", "キャッシュ対象")
		require.NoError(t, err)

		first, err := flow.GetProduct(ctx, "ABW-720")
		require.NoError(t, err)
		require.NotNil(t, first.Title)
		assert.Equal(t, "キャッシュ対象", *first.Title)

		// Within the TTL the cached copy is served even after the row changes
		newTitle := "更新後タイトル"
		product.Title = &newTitle
		require.NoError(t, testDB.DB.Save(product).Error)

		second, err := flow.GetProduct(ctx, "ABW-720")
		require.NoError(t, err)
		require.NotNil(t, second.Title)
		assert.Equal(t, "キャッシュ対象", *second.Title)

		// Dropping the key serves fresh data again
		require.NoError(t, cache.Delete(ctx, "product:ABW-720"))
		third, err := flow.GetProduct(ctx, "ABW-720")
		require.NoError(t, err)
		require.NotNil(t, third.Title)
		assert.Equal(t, "更新後タイトル", *third.Title)

		return nil
	})
	require.NoError(t, err)
}
