package models

import "encoding/json"

// Credential is only held for the duration of a single token exchange.
type Credential struct {
	Username string
	Password string
}

type AccessToken struct {
	AccessToken  string `json:"access_token" yaml:"access_token"`
	RefreshToken string `json:"refresh_token" yaml:"refresh_token"`
	ExpiresIn    int    `json:"expires_in" yaml:"expires_in"`
	Scope        string `json:"scope" yaml:"scope"`
}

type TokenResponse struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	ExpiresIn    int    `json:"expiresIn"`
	Scope        string `json:"scope"`
}

// Transaction correlates an OTP challenge with its authorization and the
// sign request that follows.
type Transaction struct {
	TransactionID string          `json:"transactionId" yaml:"transactionId"`
	Raw           json.RawMessage `json:"response,omitempty" yaml:"-"`
}

type ChallengeResponse struct {
	TransactionID string `json:"transactionId"`
	ID            string `json:"id"`
}

type AuthorizeRequest struct {
	SignaturesNumber int    `json:"signaturesNumber"`
	TransactionID    string `json:"transactionId"`
	OTP              string `json:"otp"`
	PIN              string `json:"pin"`
}

type AuthorizeResponse struct {
	SAT string `json:"sat"`
}

// SignatureAuthorization carries the SAT required by the sign call.
type SignatureAuthorization struct {
	SAT string `json:"Infocert-SAT" yaml:"Infocert-SAT"`
}
