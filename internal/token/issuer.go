// Package token はアクセストークン・リフレッシュトークン（HS256 JWT）の発行と検証を行う。
package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/hitoshi/studentms/internal/model"
)

const (
	// AccessTokenTTL はアクセストークンの有効期間。
	AccessTokenTTL = time.Hour
	// RefreshTokenTTL はリフレッシュトークンの有効期間。
	RefreshTokenTTL = 30 * 24 * time.Hour
)

// Kind はトークンの種別。typクレームに格納する。
type Kind string

const (
	KindAccess  Kind = "access"
	KindRefresh Kind = "refresh"
)

var (
	// ErrSigningFailed はトークンの署名に失敗したことを表す。
	ErrSigningFailed = errors.New("token signing failed")
	// ErrInvalidToken は署名・有効期限・種別のいずれかの検証に失敗したことを表す。
	ErrInvalidToken = errors.New("invalid token")
)

// Claims はトークンのクレーム。ユーザーIDはsubに格納する。
type Claims struct {
	Type Kind `json:"typ"`
	jwt.RegisteredClaims
}

// Issuer はJWTの発行者。アクセス・リフレッシュの両トークンで同じ秘密鍵を使う。
type Issuer struct {
	key        any
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

// Option はIssuerのオプション。
type Option func(*Issuer)

// WithClock は現在時刻の取得関数を差し替える。
func WithClock(now func() time.Time) Option {
	return func(i *Issuer) { i.now = now }
}

// WithTTL はアクセス・リフレッシュトークンの有効期間を差し替える。
func WithTTL(access, refresh time.Duration) Option {
	return func(i *Issuer) {
		i.accessTTL = access
		i.refreshTTL = refresh
	}
}

// NewIssuer はIssuerを生成する。
func NewIssuer(secret string, opts ...Option) (*Issuer, error) {
	if secret == "" {
		return nil, errors.New("token secret cannot be empty")
	}
	i := &Issuer{
		key:        []byte(secret),
		accessTTL:  AccessTokenTTL,
		refreshTTL: RefreshTokenTTL,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(i)
	}
	return i, nil
}

// Issue は指定ユーザーのトークンペアを発行する。
func (i *Issuer) Issue(userID string) (*model.TokenPair, error) {
	now := i.now()

	access, accessExp, err := i.sign(userID, KindAccess, now, i.accessTTL)
	if err != nil {
		return nil, err
	}
	refresh, refreshExp, err := i.sign(userID, KindRefresh, now, i.refreshTTL)
	if err != nil {
		return nil, err
	}

	return &model.TokenPair{
		AccessToken:      access,
		RefreshToken:     refresh,
		AccessExpiresAt:  accessExp,
		RefreshExpiresAt: refreshExp,
	}, nil
}

func (i *Issuer) sign(userID string, kind Kind, now time.Time, ttl time.Duration) (string, time.Time, error) {
	exp := jwt.NewNumericDate(now.Add(ttl))
	claims := &Claims{
		Type: kind,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: exp,
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.key)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("%w: %s token: %v", ErrSigningFailed, kind, err)
	}
	return signed, exp.Time, nil
}

// Parse はトークンを検証し、クレームを返す。
// 種別が一致しないトークン（例: リフレッシュトークンをBearerに使用）はErrInvalidTokenとなる。
func (i *Issuer) Parse(raw string, kind Kind) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(raw, claims,
		func(*jwt.Token) (any, error) { return i.key, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(i.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.Type != kind {
		return nil, fmt.Errorf("%w: expected %s token, got %q", ErrInvalidToken, kind, claims.Type)
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}
	return claims, nil
}
