package tests

import (
	"testing"
	"time"

	"github.com/hikarudo/uwabami/app/dto"
	"github.com/hikarudo/uwabami/app/services"
	businessflow "github.com/hikarudo/uwabami/business_flow"
	"github.com/hikarudo/uwabami/repository"
	testingutil "github.com/hikarudo/uwabami/testing"
	"github.com/hikarudo/uwabami/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testJWTSecret = "test-only-secret-key-0123456789abcdef0123456789abcdef"

func TestOperatorAuthFlow(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		ctx := testingutil.CreateTestContext()
		fixtures := testingutil.NewTestFixtures(testDB)

		tokenService, err := services.NewTokenService(
			15*time.Minute, 24*time.Hour, "uwabami", "uwabami-api", false, "", "", testJWTSecret)
		require.NoError(t, err)

		operatorRepo := repository.NewOperatorRepository(testDB.DB)
		flow := businessflow.NewOperatorAuthFlow(operatorRepo, tokenService)

		operator, err := fixtures.CreateTestOperator("catalog-admin", "SecurePass123!")
		require.NoError(t, err)

		t.Run("LoginSucceeds", func(t *testing.T) {
			response, err := flow.Login(ctx, &dto.OperatorLoginRequest{
				Username: "catalog-admin",
				Password: "SecurePass123!",
			})
			require.NoError(t, err)
			assert.NotEmpty(t, response.AccessToken)
			assert.NotEmpty(t, response.RefreshToken)
			assert.Equal(t, "Bearer", response.TokenType)
			assert.Equal(t, operator.ID, response.Operator.ID)
			assert.Equal(t, "catalog-admin", response.Operator.Username)

			claims, err := tokenService.ValidateOperatorToken(response.AccessToken)
			require.NoError(t, err)
			assert.Equal(t, operator.ID, claims.OperatorID)

			// Last login timestamp is recorded
			refreshed, err := operatorRepo.ByID(ctx, operator.ID)
			require.NoError(t, err)
			assert.NotNil(t, refreshed.LastLoginAt)
		})

		t.Run("WrongPassword", func(t *testing.T) {
			_, err := flow.Login(ctx, &dto.OperatorLoginRequest{
				Username: "catalog-admin",
				Password: "WrongPass000!",
			})
			assert.True(t, businessflow.IsIncorrectPassword(err))
		})

		t.Run("UnknownUsername", func(t *testing.T) {
			_, err := flow.Login(ctx, &dto.OperatorLoginRequest{
				Username: "nobody",
				Password: "SecurePass123!",
			})
			assert.True(t, businessflow.IsOperatorNotFound(err))
		})

		t.Run("InactiveOperatorCannotLogin", func(t *testing.T) {
			disabled, err := fixtures.CreateTestOperator("former-staff", "SecurePass123!")
			require.NoError(t, err)
			disabled.IsActive = utils.ToPtr(false)
			require.NoError(t, testDB.DB.Save(disabled).Error)

			_, err = flow.Login(ctx, &dto.OperatorLoginRequest{
				Username: "former-staff",
				Password: "SecurePass123!",
			})
			assert.True(t, businessflow.IsAccountInactive(err))
		})

		t.Run("RefreshIssuesNewTokens", func(t *testing.T) {
			login, err := flow.Login(ctx, &dto.OperatorLoginRequest{
				Username: "catalog-admin",
				Password: "SecurePass123!",
			})
			require.NoError(t, err)

			refreshed, err := flow.Refresh(ctx, &dto.RefreshTokenRequest{RefreshToken: login.RefreshToken})
			require.NoError(t, err)
			assert.NotEmpty(t, refreshed.AccessToken)
			assert.NotEmpty(t, refreshed.RefreshToken)
			assert.Equal(t, operator.ID, refreshed.Operator.ID)
		})

		t.Run("GarbageRefreshTokenIsRejected", func(t *testing.T) {
			_, err := flow.Refresh(ctx, &dto.RefreshTokenRequest{RefreshToken: "not.a.jwt"})
			assert.Error(t, err)
		})

		return nil
	})
	require.NoError(t, err)
}
