package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Claims はJWTトークンのクレーム（ペイロード）を表す。
// ユーザーID等の情報をサービス間で伝播するために使用する。
type Claims struct {
	jwt.RegisteredClaims
	// UserID は認証済みユーザーの一意識別子。
	UserID string `json:"user_id"`
	// Email はユーザーのメールアドレス。
	Email string `json:"email"`
}

// 検証エラーの分類。呼び出し元はerrors.Isで判別できる。
var (
	// ErrMalformed はトークンの形式が不正であることを表す。
	ErrMalformed = errors.New("トークンの形式が不正")
	// ErrInvalidSignature は署名が一致しないことを表す。
	ErrInvalidSignature = errors.New("トークンの署名が不正")
	// ErrExpired はトークンの有効期限が切れていることを表す。
	ErrExpired = errors.New("トークンの有効期限切れ")
)

// Codec は単一の秘密鍵と有効期限の組でJWTを発行・検証する。
// アクセストークン用とリフレッシュトークン用で別々のインスタンスを使う。
type Codec struct {
	// secret はHMAC-SHA256署名用の秘密鍵。
	secret []byte
	// ttl はトークンの有効期間。
	ttl time.Duration
	// issuer はトークンのiss（発行者）クレーム。
	issuer string
}

// NewCodec は新しいCodecを生成する。
func NewCodec(secret string, ttl time.Duration, issuer string) *Codec {
	return &Codec{
		secret: []byte(secret),
		ttl:    ttl,
		issuer: issuer,
	}
}

// Issue はユーザー情報から署名済みトークンを発行する。
func (c *Codec) Issue(userID, email string) (string, error) {
	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			// jtiを付与し、同一秒内に発行したトークン同士も異なる値にする
			ID:        uuid.New().String(),
			ExpiresAt: jwt.NewNumericDate(now.Add(c.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    c.issuer,
		},
		UserID: userID,
		Email:  email,
	}

	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := tok.SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("JWTトークンの署名に失敗: %w", err)
	}
	return signed, nil
}

// Verify はトークンの署名と有効期限を検証し、クレームを返す。
// 検証は副作用を持たず、失敗理由はErrMalformed/ErrInvalidSignature/ErrExpiredで返す。
func (c *Codec) Verify(tokenString string) (*Claims, error) {
	claims := &Claims{}
	tok, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("想定外の署名アルゴリズム: %v", t.Header["alg"])
		}
		return c.secret, nil
	})
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, ErrExpired
		case errors.Is(err, jwt.ErrTokenSignatureInvalid):
			return nil, ErrInvalidSignature
		default:
			return nil, ErrMalformed
		}
	}
	if !tok.Valid {
		return nil, ErrInvalidSignature
	}
	return claims, nil
}

// TTL はこのCodecが発行するトークンの有効期間を返す。
// リフレッシュトークンレコードの有効期限計算に使用する。
func (c *Codec) TTL() time.Duration {
	return c.ttl
}
