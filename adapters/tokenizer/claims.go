package tokenizer

import "github.com/golang-jwt/jwt/v5"

const (
	TypeAccess  = "access"
	TypeRefresh = "refresh"
)

// SessionClaims are shared by access and refresh tokens; Type tells them apart
type SessionClaims struct {
	jwt.RegisteredClaims
	Type      string `json:"type"`
	SessionID string `json:"sid"`
	Nip05     string `json:"nip05,omitempty"`
	Role      string `json:"role,omitempty"`
	RefreshID string `json:"rid,omitempty"` // ID of the paired refresh token, access tokens only
}
