// Package tests contains test cases for models and repository packages to avoid circular imports
package tests

import (
	"testing"

	"github.com/hikarudo/uwabami/hasher"
	"github.com/hikarudo/uwabami/models"
	testingutil "github.com/hikarudo/uwabami/testing"
	"github.com/hikarudo/uwabami/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestASPName(t *testing.T) {
	t.Run("Constants", func(t *testing.T) {
		assert.Equal(t, "dmm", models.ASPDMM.String())
		assert.Equal(t, "mgs", models.ASPMGS.String())
		assert.Equal(t, "sokmil", models.ASPSokmil.String())
		assert.Equal(t, "duga", models.ASPDuga.String())
		assert.Equal(t, "adultfesta", models.ASPAdultfesta.String())
	})

	t.Run("Valid", func(t *testing.T) {
		for _, name := range models.AllASPNames {
			assert.True(t, name.Valid(), "expected %s to be valid", name)
		}
		assert.False(t, models.ASPName("fanza").Valid())
		assert.False(t, models.ASPName("").Valid())
	})

	t.Run("Priority", func(t *testing.T) {
		assert.Equal(t, 0, models.ASPDMM.Priority())
		assert.Less(t, models.ASPDMM.Priority(), models.ASPDuga.Priority())
		assert.Equal(t, len(models.AllASPNames), models.ASPName("unknown").Priority())
	})
}

func TestRawRecord(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		fixtures := testingutil.NewTestFixtures(testDB)

		t.Run("CreateAndNeedsProcessing", func(t *testing.T) {
			record, err := fixtures.CreateTestRawRecord(models.ASPDMM, "h_086abw00101", []byte(`{"title":"x"}`))
			require.NoError(t, err)
			assert.NotZero(t, record.ID)
			assert.True(t, record.Inline())
			assert.True(t, record.NeedsProcessing())
			assert.Equal(t, hasher.Sum([]byte(`{"title":"x"}`)), record.ContentHash)
		})

		t.Run("ProcessedRecordIsNotDue", func(t *testing.T) {
			record, err := fixtures.CreateTestRawRecord(models.ASPDMM, "h_086abw00102", []byte(`{}`))
			require.NoError(t, err)

			now := utils.UTCNow()
			record.ProcessedAt = &now
			require.NoError(t, testDB.DB.Save(record).Error)
			assert.False(t, record.NeedsProcessing())
		})

		t.Run("ParkedRecordIsNotDue", func(t *testing.T) {
			record, err := fixtures.CreateTestRawRecord(models.ASPDMM, "h_086abw00103", []byte(`{}`))
			require.NoError(t, err)

			note := "empty_code"
			record.ProcessNote = &note
			require.NoError(t, testDB.DB.Save(record).Error)
			assert.False(t, record.NeedsProcessing())
		})

		t.Run("NaturalKeyIsUnique", func(t *testing.T) {
			_, err := fixtures.CreateTestRawRecord(models.ASPMGS, "300MIUM-001", []byte(`a`))
			require.NoError(t, err)

			_, err = fixtures.CreateTestRawRecord(models.ASPMGS, "300MIUM-001", []byte(`b`))
			assert.Error(t, err)

			// The same listing id on another source is a different record
			_, err = fixtures.CreateTestRawRecord(models.ASPDuga, "300MIUM-001", []byte(`b`))
			assert.NoError(t, err)
		})

		t.Run("OffloadedBodyIsNotInline", func(t *testing.T) {
			ref := "mock://raw/dmm/big/abc"
			record := &models.RawRecord{
				Source:          models.ASPDMM,
				SourceProductID: "h_086abw00104",
				BodyRef:         &ref,
				ContentHash:     hasher.Sum([]byte("big")),
			}
			require.NoError(t, testDB.DB.Create(record).Error)
			assert.False(t, record.Inline())
		})

		return nil
	})
	require.NoError(t, err)
}

func TestCanonicalProduct(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		fixtures := testingutil.NewTestFixtures(testDB)

		t.Run("NormalizedIDIsUnique", func(t *testing.T) {
			_, err := fixtures.CreateTestProduct("ABW-101", "テスト作品")
			require.NoError(t, err)

			_, err = fixtures.CreateTestProduct("ABW-101", "別タイトル")
			assert.Error(t, err)
		})

		t.Run("StatusDefaultsToActive", func(t *testing.T) {
			product := &models.CanonicalProduct{NormalizedProductID: "ABW-102"}
			require.NoError(t, testDB.DB.Create(product).Error)

			var loaded models.CanonicalProduct
			require.NoError(t, testDB.DB.First(&loaded, product.ID).Error)
			assert.Equal(t, models.ProductStatusActive, loaded.Status)
			assert.False(t, loaded.IsMerged())
		})

		t.Run("MergedProduct", func(t *testing.T) {
			survivor, err := fixtures.CreateTestProduct("ABW-103", "生存")
			require.NoError(t, err)
			loser, err := fixtures.CreateTestProduct("SOKMIL:ABW-103", "重複")
			require.NoError(t, err)

			loser.Status = models.ProductStatusMerged
			loser.MergedIntoID = &survivor.ID
			require.NoError(t, testDB.DB.Save(loser).Error)
			assert.True(t, loser.IsMerged())
		})

		t.Run("LocalizedTitlesRoundTrip", func(t *testing.T) {
			product, err := fixtures.CreateTestProduct("ABW-104", "日本語タイトル")
			require.NoError(t, err)

			var loaded models.CanonicalProduct
			require.NoError(t, testDB.DB.First(&loaded, product.ID).Error)
			assert.Equal(t, "日本語タイトル", loaded.LocalizedTitles["ja"])
		})

		return nil
	})
	require.NoError(t, err)
}

func TestProductSource(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		fixtures := testingutil.NewTestFixtures(testDB)

		t.Run("ListingKeyIsUniquePerSite", func(t *testing.T) {
			product, err := fixtures.CreateTestProduct("MIUM-201", "作品")
			require.NoError(t, err)

			_, err = fixtures.CreateTestProductSource(product.ID, models.ASPMGS, "300MIUM-201")
			require.NoError(t, err)

			_, err = fixtures.CreateTestProductSource(product.ID, models.ASPMGS, "300MIUM-201")
			assert.Error(t, err)
		})

		t.Run("OneProductManySites", func(t *testing.T) {
			product, err := fixtures.CreateTestProduct("MIUM-202", "作品")
			require.NoError(t, err)

			_, err = fixtures.CreateTestProductSource(product.ID, models.ASPDMM, "mium00202")
			require.NoError(t, err)
			_, err = fixtures.CreateTestProductSource(product.ID, models.ASPMGS, "300MIUM-202")
			require.NoError(t, err)

			var count int64
			require.NoError(t, testDB.DB.Model(&models.ProductSource{}).
				Where("canonical_product_id = ?", product.ID).Count(&count).Error)
			assert.Equal(t, int64(2), count)
		})

		return nil
	})
	require.NoError(t, err)
}

func TestPerformerExternalID(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		fixtures := testingutil.NewTestFixtures(testDB)

		t.Run("ProviderIDIsUnique", func(t *testing.T) {
			_, err := fixtures.CreateTestPerformer("三上悠亜", "dmm", "1008887")
			require.NoError(t, err)

			other, err := fixtures.CreateTestPerformer("別人", "", "")
			require.NoError(t, err)

			dup := &models.PerformerExternalID{
				PerformerID: other.ID,
				Provider:    "dmm",
				ExternalID:  "1008887",
			}
			assert.Error(t, testDB.DB.Create(dup).Error)
		})

		t.Run("SameIDOnAnotherProvider", func(t *testing.T) {
			performer, err := fixtures.CreateTestPerformer("河北彩花", "dmm", "2020001")
			require.NoError(t, err)

			ext := &models.PerformerExternalID{
				PerformerID: performer.ID,
				Provider:    "sokmil",
				ExternalID:  "2020001",
			}
			assert.NoError(t, testDB.DB.Create(ext).Error)
		})

		return nil
	})
	require.NoError(t, err)
}

func TestReviewFlag(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		fixtures := testingutil.NewTestFixtures(testDB)

		t.Run("KindConstants", func(t *testing.T) {
			assert.True(t, models.ReviewFlagKindEmptyCode.Valid())
			assert.True(t, models.ReviewFlagKindParseFailure.Valid())
			assert.True(t, models.ReviewFlagKindAmbiguousIdentity.Valid())
			assert.True(t, models.ReviewFlagKindInvalidPerformer.Valid())
			assert.True(t, models.ReviewFlagKindPlaceholderTitle.Valid())
			assert.False(t, models.ReviewFlagKind("bogus").Valid())
		})

		t.Run("BeforeCreateSetsUUIDAndStatus", func(t *testing.T) {
			flag := &models.ReviewFlag{
				Kind:            models.ReviewFlagKindEmptyCode,
				Source:          models.ASPDuga,
				SourceProductID: "kmproduce-0456",
				Detail:          "could not derive a product code",
			}
			require.NoError(t, testDB.DB.Create(flag).Error)
			assert.NotEqual(t, "00000000-0000-0000-0000-000000000000", flag.UUID.String())
			assert.Equal(t, models.ReviewFlagStatusOpen, flag.Status)
			assert.Nil(t, flag.ResolvedAt)
		})

		t.Run("FixtureCreatesOpenFlag", func(t *testing.T) {
			flag, err := fixtures.CreateTestReviewFlag(models.ReviewFlagKindParseFailure, models.ASPAdultfesta, "af-901", "bad xlsx row")
			require.NoError(t, err)
			assert.Equal(t, models.ReviewFlagStatusOpen, flag.Status)
		})

		return nil
	})
	require.NoError(t, err)
}

func TestOperator(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		fixtures := testingutil.NewTestFixtures(testDB)

		t.Run("CreateOperator", func(t *testing.T) {
			operator, err := fixtures.CreateTestOperator("catalog-admin", "SecurePass123!")
			require.NoError(t, err)
			assert.NotZero(t, operator.ID)
			assert.True(t, utils.IsTrue(operator.IsActive))
			assert.NotEqual(t, "SecurePass123!", operator.PasswordHash)
		})

		t.Run("UsernameIsUnique", func(t *testing.T) {
			_, err := fixtures.CreateTestOperator("reviewer", "SecurePass123!")
			require.NoError(t, err)

			_, err = fixtures.CreateTestOperator("reviewer", "OtherPass456!")
			assert.Error(t, err)
		})

		return nil
	})
	require.NoError(t, err)
}
