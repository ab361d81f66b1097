package auth

import "github.com/golang-jwt/jwt/v5"

// tokenUse marks tokens this service accepts on the API.
const tokenUse = "settlement_api"

// Claims carry who is calling and which party they act for.
// PartyID is the customer or producer id; operator tokens leave it empty.
type Claims struct {
	jwt.RegisteredClaims

	UserID  string `json:"user_id"`
	PartyID string `json:"party_id,omitempty"`
	Role    string `json:"role"`
	Use     string `json:"use"`
}
