package tests

import (
	"testing"

	"github.com/google/uuid"
	"github.com/hikarudo/uwabami/app/dto"
	businessflow "github.com/hikarudo/uwabami/business_flow"
	"github.com/hikarudo/uwabami/models"
	"github.com/hikarudo/uwabami/repository"
	testingutil "github.com/hikarudo/uwabami/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReviewFlow(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		ctx := testingutil.CreateTestContext()
		fixtures := testingutil.NewTestFixtures(testDB)
		rawRepo := repository.NewRawRecordRepository(testDB.DB)
		flow := businessflow.NewReviewFlow(repository.NewReviewFlagRepository(testDB.DB), rawRepo)

		operator, err := fixtures.CreateTestOperator("reviewer", "SecurePass123!")
		require.NoError(t, err)

		emptyCode, err := fixtures.CreateTestReviewFlag(models.ReviewFlagKindEmptyCode, models.ASPDuga, "kmproduce-0456", "no code in feed row")
		require.NoError(t, err)
		_, err = fixtures.CreateTestReviewFlag(models.ReviewFlagKindParseFailure, models.ASPDMM, "corrupt-001", "invalid json")
		require.NoError(t, err)
		ambiguous, err := fixtures.CreateTestReviewFlag(models.ReviewFlagKindAmbiguousIdentity, models.ASPMGS, "300MIUM-050", `performer "同姓同名" matches multiple identities`)
		require.NoError(t, err)

		t.Run("ListAllOpenFlags", func(t *testing.T) {
			response, err := flow.ListFlags(ctx, &dto.ListReviewFlagsRequest{Status: "open"})
			require.NoError(t, err)
			assert.Equal(t, int64(3), response.Total)
			assert.Len(t, response.Items, 3)
		})

		t.Run("FilterByKind", func(t *testing.T) {
			response, err := flow.ListFlags(ctx, &dto.ListReviewFlagsRequest{Kind: "parse_failure"})
			require.NoError(t, err)
			assert.Equal(t, int64(1), response.Total)
			require.Len(t, response.Items, 1)
			assert.Equal(t, "corrupt-001", response.Items[0].SourceProductID)
		})

		t.Run("ResolveFlag", func(t *testing.T) {
			response, err := flow.ResolveFlag(ctx, &dto.ResolveReviewFlagRequest{UUID: emptyCode.UUID.String()}, operator.ID)
			require.NoError(t, err)
			assert.Equal(t, "resolved", response.Status)
			assert.NotEmpty(t, response.ResolvedAt)

			// The queue shrinks and the flag records who closed it
			open, err := flow.ListFlags(ctx, &dto.ListReviewFlagsRequest{Status: "open"})
			require.NoError(t, err)
			assert.Equal(t, int64(2), open.Total)

			var resolved models.ReviewFlag
			require.NoError(t, testDB.DB.First(&resolved, emptyCode.ID).Error)
			assert.Equal(t, models.ReviewFlagStatusResolved, resolved.Status)
			require.NotNil(t, resolved.ResolvedBy)
			assert.Equal(t, operator.ID, *resolved.ResolvedBy)
			assert.NotNil(t, resolved.ResolvedAt)
		})

		t.Run("ResolveReleasesParkedRecord", func(t *testing.T) {
			_, err := fixtures.CreateTestRawRecord(models.ASPMGS, "300MIUM-050", []byte(`<html>listing</html>`))
			require.NoError(t, err)
			require.NoError(t, rawRepo.Park(ctx, models.ASPMGS, "300MIUM-050", "ambiguous_identity"))

			_, err = flow.ResolveFlag(ctx, &dto.ResolveReviewFlagRequest{UUID: ambiguous.UUID.String()}, operator.ID)
			require.NoError(t, err)

			// Closing the flag puts the record back in the queue
			record, err := rawRepo.ByKey(ctx, models.ASPMGS, "300MIUM-050")
			require.NoError(t, err)
			require.NotNil(t, record)
			assert.Nil(t, record.ProcessNote)
			assert.True(t, record.NeedsProcessing())
		})

		t.Run("ResolveTwiceIsRejected", func(t *testing.T) {
			_, err := flow.ResolveFlag(ctx, &dto.ResolveReviewFlagRequest{UUID: emptyCode.UUID.String()}, operator.ID)
			assert.True(t, businessflow.IsReviewFlagAlreadyResolved(err))
		})

		t.Run("UnknownFlagIsRejected", func(t *testing.T) {
			_, err := flow.ResolveFlag(ctx, &dto.ResolveReviewFlagRequest{UUID: uuid.NewString()}, operator.ID)
			assert.True(t, businessflow.IsReviewFlagNotFound(err))
		})

		t.Run("MalformedUUIDIsRejected", func(t *testing.T) {
			_, err := flow.ResolveFlag(ctx, &dto.ResolveReviewFlagRequest{UUID: "not-a-uuid"}, operator.ID)
			assert.Error(t, err)
		})

		return nil
	})
	require.NoError(t, err)
}
