package businessflow

import (
	"context"

	"github.com/hikarudo/uwabami/app/dto"
	"github.com/hikarudo/uwabami/app/services"
	"github.com/hikarudo/uwabami/repository"
	"github.com/hikarudo/uwabami/utils"
	"golang.org/x/crypto/bcrypt"
)

// OperatorAuthFlow handles operator authentication for the ops API
type OperatorAuthFlow interface {
	Login(ctx context.Context, request *dto.OperatorLoginRequest) (*dto.OperatorLoginResponse, error)
	Refresh(ctx context.Context, request *dto.RefreshTokenRequest) (*dto.OperatorLoginResponse, error)
}

// OperatorAuthFlowImpl implements the operator authentication business flow
type OperatorAuthFlowImpl struct {
	operatorRepo repository.OperatorRepository
	tokenService services.TokenService
}

// NewOperatorAuthFlow creates a new operator auth flow instance
func NewOperatorAuthFlow(
	operatorRepo repository.OperatorRepository,
	tokenService services.TokenService,
) OperatorAuthFlow {
	return &OperatorAuthFlowImpl{
		operatorRepo: operatorRepo,
		tokenService: tokenService,
	}
}

// Login authenticates an operator with username and password
func (f *OperatorAuthFlowImpl) Login(ctx context.Context, request *dto.OperatorLoginRequest) (*dto.OperatorLoginResponse, error) {
	operator, err := f.operatorRepo.ByUsername(ctx, request.Username)
	if err != nil {
		return nil, NewBusinessError("LOGIN_FAILED", "Login failed", err)
	}
	if operator == nil {
		return nil, ErrOperatorNotFound
	}
	if !utils.IsTrue(operator.IsActive) {
		return nil, ErrAccountInactive
	}

	if err := bcrypt.CompareHashAndPassword([]byte(operator.PasswordHash), []byte(request.Password)); err != nil {
		return nil, ErrIncorrectPassword
	}

	accessToken, refreshToken, err := f.tokenService.GenerateOperatorTokens(operator.ID)
	if err != nil {
		return nil, NewBusinessError("LOGIN_FAILED", "Failed to generate tokens", err)
	}

	_ = f.operatorRepo.UpdateLastLogin(ctx, operator.ID)

	return &dto.OperatorLoginResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		TokenType:    "Bearer",
		ExpiresIn:    utils.AccessTokenTTLSeconds,
		Operator:     ToOperatorInfo(*operator),
	}, nil
}

// Refresh exchanges a refresh token for a fresh token pair
func (f *OperatorAuthFlowImpl) Refresh(ctx context.Context, request *dto.RefreshTokenRequest) (*dto.OperatorLoginResponse, error) {
	claims, err := f.tokenService.ValidateOperatorToken(request.RefreshToken)
	if err != nil {
		return nil, NewBusinessError("REFRESH_FAILED", "Invalid refresh token", err)
	}

	operator, err := f.operatorRepo.ByID(ctx, claims.OperatorID)
	if err != nil {
		return nil, NewBusinessError("REFRESH_FAILED", "Failed to load operator", err)
	}
	if operator == nil {
		return nil, ErrOperatorNotFound
	}
	if !utils.IsTrue(operator.IsActive) {
		return nil, ErrAccountInactive
	}

	accessToken, refreshToken, err := f.tokenService.RefreshOperatorToken(request.RefreshToken)
	if err != nil {
		return nil, NewBusinessError("REFRESH_FAILED", "Failed to refresh tokens", err)
	}

	return &dto.OperatorLoginResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		TokenType:    "Bearer",
		ExpiresIn:    utils.AccessTokenTTLSeconds,
		Operator:     ToOperatorInfo(*operator),
	}, nil
}
