package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// createTestTokenService creates a token service for testing with symmetric key
func createTestTokenService() (TokenService, error) {
	return NewTokenService(
		15*time.Minute,
		7*24*time.Hour,
		"test-issuer",
		"test-audience",
		false, // useRSAKeys
		"",    // privateKeyPEM
		"",    // publicKeyPEM
		"test-secret-key-for-jwt-signing-32-chars", // secretKey
	)
}

func TestNewTokenService(t *testing.T) {
	tests := []struct {
		name        string
		secretKey   string
		expectError bool
	}{
		{
			name:        "valid symmetric key configuration",
			secretKey:   "test-secret-key-for-jwt-signing-32-chars",
			expectError: false,
		},
		{
			name:        "missing secret key",
			secretKey:   "",
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			service, err := NewTokenService(
				15*time.Minute,
				7*24*time.Hour,
				"test-issuer",
				"test-audience",
				false,
				"",
				"",
				tt.secretKey,
			)

			if tt.expectError {
				assert.Error(t, err)
				assert.Nil(t, service)
			} else {
				assert.NoError(t, err)
				assert.NotNil(t, service)
			}
		})
	}
}

func TestGenerateOperatorTokens(t *testing.T) {
	service, err := createTestTokenService()
	require.NoError(t, err)

	tests := []struct {
		name       string
		operatorID uint
	}{
		{name: "valid operator ID", operatorID: 123},
		{name: "zero operator ID", operatorID: 0},
		{name: "large operator ID", operatorID: 999999999},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			accessToken, refreshToken, err := service.GenerateOperatorTokens(tt.operatorID)

			assert.NoError(t, err)
			assert.NotEmpty(t, accessToken)
			assert.NotEmpty(t, refreshToken)
			assert.NotEqual(t, accessToken, refreshToken)

			// Valid JWT format (should start with "eyJ")
			assert.Contains(t, accessToken, "eyJ")
			assert.Contains(t, refreshToken, "eyJ")
		})
	}
}

func TestValidateOperatorToken(t *testing.T) {
	service, err := createTestTokenService()
	require.NoError(t, err)

	accessToken, refreshToken, err := service.GenerateOperatorTokens(123)
	require.NoError(t, err)

	tests := []struct {
		name         string
		token        string
		expectError  bool
		expectClaims *OperatorTokenClaims
	}{
		{
			name:        "valid access token",
			token:       accessToken,
			expectError: false,
			expectClaims: &OperatorTokenClaims{
				OperatorID: 123,
				TokenType:  "access",
			},
		},
		{
			name:        "valid refresh token",
			token:       refreshToken,
			expectError: false,
			expectClaims: &OperatorTokenClaims{
				OperatorID: 123,
				TokenType:  "refresh",
			},
		},
		{
			name:        "empty token",
			token:       "",
			expectError: true,
		},
		{
			name:        "invalid token format",
			token:       "invalid.token.format",
			expectError: true,
		},
		{
			name:        "malformed token",
			token:       "eyJhbGciOiJIUzI1NiIsInR5cCI6IkpXVCJ9.invalid.signature",
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			claims, err := service.ValidateOperatorToken(tt.token)

			if tt.expectError {
				assert.Error(t, err)
				assert.Nil(t, claims)
			} else {
				assert.NoError(t, err)
				require.NotNil(t, claims)

				assert.Equal(t, tt.expectClaims.OperatorID, claims.OperatorID)
				assert.Equal(t, tt.expectClaims.TokenType, claims.TokenType)
				assert.NotEmpty(t, claims.TokenID)
				assert.False(t, claims.IssuedAt.IsZero())
				assert.True(t, claims.ExpiresAt.After(claims.IssuedAt))
			}
		})
	}
}

func TestRefreshOperatorToken(t *testing.T) {
	service, err := createTestTokenService()
	require.NoError(t, err)

	_, refreshToken, err := service.GenerateOperatorTokens(123)
	require.NoError(t, err)

	t.Run("valid refresh token", func(t *testing.T) {
		newAccessToken, newRefreshToken, err := service.RefreshOperatorToken(refreshToken)
		assert.NoError(t, err)
		assert.NotEmpty(t, newAccessToken)
		assert.NotEmpty(t, newRefreshToken)
		assert.NotEqual(t, newAccessToken, newRefreshToken)
	})

	t.Run("empty refresh token", func(t *testing.T) {
		_, _, err := service.RefreshOperatorToken("")
		assert.Error(t, err)
	})

	t.Run("access token instead of refresh token", func(t *testing.T) {
		accessToken, _, err := service.GenerateOperatorTokens(123)
		require.NoError(t, err)
		_, _, err = service.RefreshOperatorToken(accessToken)
		assert.Error(t, err)
	})
}

func TestTokenExpiration(t *testing.T) {
	// Very short TTL to exercise expiration
	service, err := NewTokenService(1*time.Second, 2*time.Second, "test-issuer", "test-audience", false, "", "", "test-secret-key-for-jwt-signing-32-chars")
	require.NoError(t, err)

	accessToken, refreshToken, err := service.GenerateOperatorTokens(123)
	require.NoError(t, err)

	claims, err := service.ValidateOperatorToken(accessToken)
	assert.NoError(t, err)
	require.NotNil(t, claims)
	assert.Equal(t, uint(123), claims.OperatorID)

	time.Sleep(3 * time.Second)

	claims, err = service.ValidateOperatorToken(accessToken)
	assert.Error(t, err)
	assert.Nil(t, claims)

	_, _, err = service.RefreshOperatorToken(refreshToken)
	assert.Error(t, err)
}

func TestTokenSecurity(t *testing.T) {
	service1, err := NewTokenService(15*time.Minute, 7*24*time.Hour, "issuer1", "audience1", false, "", "", "test-secret-key-1-for-jwt-signing-32-chars")
	require.NoError(t, err)

	service2, err := NewTokenService(15*time.Minute, 7*24*time.Hour, "issuer2", "audience2", false, "", "", "test-secret-key-2-for-jwt-signing-32-chars")
	require.NoError(t, err)

	token1, _, err := service1.GenerateOperatorTokens(123)
	require.NoError(t, err)

	token2, _, err := service2.GenerateOperatorTokens(123)
	require.NoError(t, err)

	assert.NotEqual(t, token1, token2)

	// Tokens from one service must not validate in another
	claims, err := service1.ValidateOperatorToken(token2)
	assert.Error(t, err)
	assert.Nil(t, claims)

	claims, err = service2.ValidateOperatorToken(token1)
	assert.Error(t, err)
	assert.Nil(t, claims)
}

func TestConcurrentTokenGeneration(t *testing.T) {
	service, err := createTestTokenService()
	require.NoError(t, err)

	const numGoroutines = 10
	tokens := make(chan string, numGoroutines)
	errs := make(chan error, numGoroutines)

	for i := 0; i < numGoroutines; i++ {
		go func(operatorID uint) {
			accessToken, _, err := service.GenerateOperatorTokens(operatorID)
			if err != nil {
				errs <- err
				return
			}
			tokens <- accessToken
		}(uint(i + 1))
	}

	generatedTokens := make(map[string]bool)
	for i := 0; i < numGoroutines; i++ {
		select {
		case token := <-tokens:
			assert.NotEmpty(t, token)
			assert.False(t, generatedTokens[token], "Duplicate token generated")
			generatedTokens[token] = true
		case err := <-errs:
			t.Errorf("Error generating token: %v", err)
		}
	}

	assert.Equal(t, numGoroutines, len(generatedTokens))
}
