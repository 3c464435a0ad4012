package auth

// ChallengeRequest represents a challenge issuance request
type ChallengeRequest struct {
	WalletAddress string `json:"wallet_address" validate:"required,evm_address"`
}

// ChallengeResponse carries the message the wallet must sign
type ChallengeResponse struct {
	Message string `json:"message"`
}

// VerifyRequest represents a signature verification request
type VerifyRequest struct {
	WalletAddress string `json:"wallet_address" validate:"required,evm_address"`
	Signature     string `json:"signature" validate:"required"`
}

// VerifyResponse carries the session token for a verified wallet
type VerifyResponse struct {
	AccessToken string `json:"access_token"`
	User        *User  `json:"user"`
}
