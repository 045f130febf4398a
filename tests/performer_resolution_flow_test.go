package tests

import (
	"sync"
	"testing"

	"github.com/hikarudo/uwabami/app/services"
	businessflow "github.com/hikarudo/uwabami/business_flow"
	"github.com/hikarudo/uwabami/models"
	"github.com/hikarudo/uwabami/repository"
	testingutil "github.com/hikarudo/uwabami/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newPerformerFlow(db *gorm.DB, wiki services.WikiClient) businessflow.PerformerResolutionFlow {
	return businessflow.NewPerformerResolutionFlow(
		repository.NewPerformerRepository(db),
		repository.NewPerformerAliasRepository(db),
		repository.NewPerformerExternalIDRepository(db),
		wiki,
		db,
	)
}

func TestPerformerResolutionFlow(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		ctx := testingutil.CreateTestContext()
		fixtures := testingutil.NewTestFixtures(testDB)
		flow := newPerformerFlow(testDB.DB, nil)
		externalIDRepo := repository.NewPerformerExternalIDRepository(testDB.DB)
		aliasRepo := repository.NewPerformerAliasRepository(testDB.DB)

		t.Run("CreatesIdentityOnFirstCredit", func(t *testing.T) {
			performer, err := flow.Resolve(ctx, businessflow.PerformerCredit{
				Name:             "葵つかさ",
				Source:           models.ASPDMM,
				SourceExternalID: "26125",
				ProductCode:      "MIUM-001",
			})
			require.NoError(t, err)
			assert.Equal(t, "葵つかさ", performer.CanonicalName)

			ext, err := externalIDRepo.ByProviderAndExternalID(ctx, "dmm", "26125")
			require.NoError(t, err)
			require.NotNil(t, ext)
			assert.Equal(t, performer.ID, ext.PerformerID)
		})

		t.Run("ExternalIDBeatsNameChanges", func(t *testing.T) {
			created, err := flow.Resolve(ctx, businessflow.PerformerCredit{
				Name:             "深田えいみ",
				Source:           models.ASPDMM,
				SourceExternalID: "1039003",
			})
			require.NoError(t, err)

			// The site renamed the performer but kept its id. Same identity,
			// new alias.
			renamed, err := flow.Resolve(ctx, businessflow.PerformerCredit{
				Name:             "FUKADA",
				Source:           models.ASPDMM,
				SourceExternalID: "1039003",
			})
			require.NoError(t, err)
			assert.Equal(t, created.ID, renamed.ID)

			alias, err := aliasRepo.ByPerformerAndAlias(ctx, created.ID, "FUKADA")
			require.NoError(t, err)
			require.NotNil(t, alias)
			require.NotNil(t, alias.SourceASP)
			assert.Equal(t, models.ASPDMM, *alias.SourceASP)
		})

		t.Run("NameMatchRegistersNewExternalID", func(t *testing.T) {
			created, err := flow.Resolve(ctx, businessflow.PerformerCredit{
				Name:   "河北彩花",
				Source: models.ASPDMM,
			})
			require.NoError(t, err)

			matched, err := flow.Resolve(ctx, businessflow.PerformerCredit{
				Name:             "河北彩花",
				Source:           models.ASPSokmil,
				SourceExternalID: "sok-5501",
			})
			require.NoError(t, err)
			assert.Equal(t, created.ID, matched.ID)

			ext, err := externalIDRepo.ByProviderAndExternalID(ctx, "sokmil", "sok-5501")
			require.NoError(t, err)
			require.NotNil(t, ext)
			assert.Equal(t, created.ID, ext.PerformerID)
		})

		t.Run("AliasMatchResolvesIdentity", func(t *testing.T) {
			performer, err := fixtures.CreateTestPerformer("本名太郎", "", "")
			require.NoError(t, err)
			alias := &models.PerformerAlias{PerformerID: performer.ID, AliasName: "芸名タロウ"}
			require.NoError(t, testDB.DB.Create(alias).Error)

			matched, err := flow.Resolve(ctx, businessflow.PerformerCredit{
				Name:   "芸名タロウ",
				Source: models.ASPMGS,
			})
			require.NoError(t, err)
			assert.Equal(t, performer.ID, matched.ID)
		})

		t.Run("InvalidNameIsRejected", func(t *testing.T) {
			_, err := flow.Resolve(ctx, businessflow.PerformerCredit{Name: "デ", Source: models.ASPDuga})
			assert.True(t, businessflow.IsInvalidPerformerName(err))

			_, err = flow.Resolve(ctx, businessflow.PerformerCredit{Name: "素人", Source: models.ASPDuga})
			assert.True(t, businessflow.IsInvalidPerformerName(err))

			_, err = flow.Resolve(ctx, businessflow.PerformerCredit{Name: "   ", Source: models.ASPDuga})
			assert.True(t, businessflow.IsInvalidPerformerName(err))
		})

		t.Run("DuplicateNamesAreAmbiguous", func(t *testing.T) {
			_, err := fixtures.CreateTestPerformer("同姓同名", "", "")
			require.NoError(t, err)
			_, err = fixtures.CreateTestPerformer("同姓同名", "", "")
			require.NoError(t, err)

			_, err = flow.Resolve(ctx, businessflow.PerformerCredit{Name: "同姓同名", Source: models.ASPDMM})
			assert.True(t, businessflow.IsAmbiguousPerformer(err))
		})

		return nil
	})
	require.NoError(t, err)
}

func TestPerformerResolutionFlowConcurrency(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		ctx := testingutil.CreateTestContext()
		flow := newPerformerFlow(testDB.DB, nil)

		// Two credits carry the same brand new name, with no external id to
		// dedupe on. Only one identity may come out.
		credits := []businessflow.PerformerCredit{
			{Name: "月乃ひかり", Source: models.ASPDMM},
			{Name: "月乃ひかり", Source: models.ASPMGS},
		}

		var wg sync.WaitGroup
		resolved := make([]*models.Performer, len(credits))
		errs := make([]error, len(credits))
		for i := range credits {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				resolved[i], errs[i] = flow.Resolve(ctx, credits[i])
			}(i)
		}
		wg.Wait()
		for _, err := range errs {
			require.NoError(t, err)
		}
		assert.Equal(t, resolved[0].ID, resolved[1].ID)

		var performers []models.Performer
		require.NoError(t, testDB.DB.Where("canonical_name = ?", "月乃ひかり").Find(&performers).Error)
		assert.Len(t, performers, 1)

		return nil
	})
	require.NoError(t, err)
}

func TestPerformerResolutionWikiFallback(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		ctx := testingutil.CreateTestContext()
		fixtures := testingutil.NewTestFixtures(testDB)
		wiki := services.NewMockWikiClient()
		flow := newPerformerFlow(testDB.DB, wiki)

		t.Run("ConfidentMatchAttachesAlias", func(t *testing.T) {
			known, err := fixtures.CreateTestPerformer("橋本ありな", "av-wiki", "wiki-7001")
			require.NoError(t, err)
			wiki.Results["ABW-123"] = []services.WikiPerformer{{
				Provider:   "av-wiki",
				ExternalID: "wiki-7001",
				Name:       "橋本ありな",
				Aliases:    []string{"はしもとありな"},
				Confidence: 0.93,
			}}

			matched, err := flow.Resolve(ctx, businessflow.PerformerCredit{
				Name:        "はしもとありな",
				Source:      models.ASPMGS,
				ProductCode: "ABW-123",
			})
			require.NoError(t, err)
			assert.Equal(t, known.ID, matched.ID)
			assert.Equal(t, []string{"ABW-123"}, wiki.Queries)

			aliasRepo := repository.NewPerformerAliasRepository(testDB.DB)
			alias, err := aliasRepo.ByPerformerAndAlias(ctx, known.ID, "はしもとありな")
			require.NoError(t, err)
			assert.NotNil(t, alias)
		})

		t.Run("LowConfidenceHintIsIgnored", func(t *testing.T) {
			known, err := fixtures.CreateTestPerformer("小島みなみ", "av-wiki", "wiki-7002")
			require.NoError(t, err)
			wiki.Results["ABW-200"] = []services.WikiPerformer{{
				Provider:   "av-wiki",
				ExternalID: "wiki-7002",
				Name:       "こじまみなみ",
				Confidence: 0.4,
			}}

			matched, err := flow.Resolve(ctx, businessflow.PerformerCredit{
				Name:        "こじまみなみ",
				Source:      models.ASPMGS,
				ProductCode: "ABW-200",
			})
			require.NoError(t, err)
			assert.NotEqual(t, known.ID, matched.ID)
			assert.Equal(t, "こじまみなみ", matched.CanonicalName)
		})

		t.Run("WikiFailureFallsBackToCreate", func(t *testing.T) {
			wiki.ShouldFail = true
			defer func() { wiki.ShouldFail = false }()

			performer, err := flow.Resolve(ctx, businessflow.PerformerCredit{
				Name:        "新人女優",
				Source:      models.ASPDMM,
				ProductCode: "ABW-300",
			})
			require.NoError(t, err)
			assert.Equal(t, "新人女優", performer.CanonicalName)
		})

		return nil
	})
	require.NoError(t, err)
}
