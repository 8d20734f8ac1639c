package jwt

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
)

// 校验失败时返回的哨兵错误
var (
	ErrInvalidToken     = errors.New("jwt: invalid access token")
	ErrExpiredToken     = errors.New("jwt: access token expired")
	ErrInvalidSignature = errors.New("jwt: signature mismatch")
	ErrEmptySecret      = errors.New("jwt: empty signing secret")
)

// JWT 令牌签发与校验
type JWT struct {
	config *Config
	clock  clockwork.Clock
}

type Option func(*JWT)

// WithClock 测试中使用假时钟
func WithClock(c clockwork.Clock) Option {
	return func(j *JWT) {
		j.clock = c
	}
}

func New(config *Config, opts ...Option) (*JWT, error) {
	if config == nil {
		config = &Config{}
	}
	if err := config.init(); err != nil {
		return nil, err
	}
	j := &JWT{config: config, clock: clockwork.NewRealClock()}
	for _, opt := range opts {
		opt(j)
	}
	return j, nil
}

// Issue 为用户签发访问令牌和刷新令牌，两者共享 session_id
func (j *JWT) Issue(subject string, claims Claims) (*TokenPair, error) {
	now := j.clock.Now()
	if claims.SessionID == "" {
		claims.SessionID = uuid.NewString()
	}
	if claims.Role == "" {
		claims.Role = "authenticated"
	}

	access := claims
	access.RegisteredClaims = j.registered(subject, now, j.config.AccessTokenTTL)
	accessToken, err := j.sign(&access)
	if err != nil {
		return nil, err
	}

	refresh := Claims{SessionID: claims.SessionID, Role: claims.Role}
	refresh.RegisteredClaims = j.registered(subject, now, j.config.RefreshTokenTTL)
	refreshToken, err := j.sign(&refresh)
	if err != nil {
		return nil, err
	}

	return &TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    int64(j.config.AccessTokenTTL / time.Second),
		ExpiresAt:    access.ExpiresAt.Unix(),
	}, nil
}

// Parse 校验签名和有效期
func (j *JWT) Parse(token string) (*Claims, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		if t.Method != j.config.method() {
			return nil, ErrInvalidSignature
		}
		return []byte(j.config.Secret), nil
	}, jwt.WithTimeFunc(j.clock.Now))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !parsed.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

func (j *JWT) registered(subject string, now time.Time, ttl time.Duration) RegisteredClaims {
	rc := RegisteredClaims{
		ID:        uuid.NewString(),
		Subject:   subject,
		Issuer:    j.config.Issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	if len(j.config.Audience) > 0 {
		rc.Audience = j.config.Audience
	}
	return rc
}

func (j *JWT) sign(claims *Claims) (string, error) {
	return jwt.NewWithClaims(j.config.method(), claims).SignedString([]byte(j.config.Secret))
}

// Expiry 不校验签名，只读取 exp
func Expiry(token string) (time.Time, error) {
	claims := &Claims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, nil
	}
	return claims.ExpiresAt.Time, nil
}
