package jwt

import (
	"github.com/golang-jwt/jwt/v5"
)

// RegisteredClaims 标准 Claims 别名
type RegisteredClaims = jwt.RegisteredClaims

// Claims 与托管后端签发的访问令牌字段一致
type Claims struct {
	RegisteredClaims
	Email        string         `json:"email,omitempty"`
	Role         string         `json:"role,omitempty"`
	SessionID    string         `json:"session_id,omitempty"`
	UserMetadata map[string]any `json:"user_metadata,omitempty"`
}

// TokenPair 一次签发的令牌
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
	ExpiresAt    int64  `json:"expires_at"`
}
