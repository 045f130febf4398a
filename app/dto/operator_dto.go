package dto

// OperatorLoginRequest represents the request payload for operator login
type OperatorLoginRequest struct {
	Username string `json:"username" validate:"required,min=3,max=64" example:"catalog-admin"`
	Password string `json:"password" validate:"required,min=8,max=100" example:"SecurePass123!"`
}

// OperatorInfo represents operator information returned in login responses
type OperatorInfo struct {
	ID       uint   `json:"id" example:"1"`
	UUID     string `json:"uuid" example:"550e8400-e29b-41d4-a716-446655440000"`
	Username string `json:"username" example:"catalog-admin"`
}

// OperatorLoginResponse represents the successful operator login response
type OperatorLoginResponse struct {
	AccessToken  string       `json:"access_token"`
	RefreshToken string       `json:"refresh_token"`
	TokenType    string       `json:"token_type" example:"Bearer"`
	ExpiresIn    int          `json:"expires_in" example:"3600"`
	Operator     OperatorInfo `json:"operator"`
}

// RefreshTokenRequest represents the request to refresh an access token
type RefreshTokenRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}
