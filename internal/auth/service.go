package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/Kvisus/micronotes-back/pkg/response"
	"github.com/Kvisus/micronotes-back/pkg/token"
)

// TokenPair はアクセストークンとリフレッシュトークンの組。
type TokenPair struct {
	// AccessToken は短命のアクセストークン。
	AccessToken string `json:"accessToken"`
	// RefreshToken は長命のリフレッシュトークン。
	RefreshToken string `json:"refreshToken"`
}

// Profile はユーザープロファイルのレスポンス表現。
type Profile struct {
	// ID はユーザーの一意識別子。
	ID string `json:"id"`
	// Email はユーザーのメールアドレス。
	Email string `json:"email"`
	// CreatedAt は作成日時。
	CreatedAt time.Time `json:"createdAt"`
	// UpdatedAt は更新日時。
	UpdatedAt time.Time `json:"updatedAt"`
}

// errInvalidCredentials はログイン失敗時のドメインエラー。
// ユーザー不在とパスワード不一致で同一のメッセージとステータスを返し、
// メールアドレスの存在を推測されないようにする。
func errInvalidCredentials() *response.Error {
	return response.NewError(http.StatusUnauthorized, "INVALID_CREDENTIALS",
		"メールアドレスまたはパスワードが正しくありません")
}

// errInvalidRefreshToken はリフレッシュトークンが使用できない場合のドメインエラー。
func errInvalidRefreshToken() *response.Error {
	return response.NewError(http.StatusUnauthorized, "INVALID_REFRESH_TOKEN",
		"リフレッシュトークンが無効または期限切れです")
}

// Service は認証プロトコルのオーケストレーションを行う。
// コラボレータ（ストア、トークンコーデック）はコンストラクタで注入される。
type Service struct {
	// store はクレデンシャルとリフレッシュトークンの永続化先。
	store Store
	// accessCodec はアクセストークン用のコーデック。
	accessCodec *token.Codec
	// refreshCodec はリフレッシュトークン用のコーデック。
	refreshCodec *token.Codec
	// bcryptCost はパスワードハッシュのコストファクタ。
	bcryptCost int
}

// NewService は新しい認証サービスを生成する。
func NewService(store Store, accessCodec, refreshCodec *token.Codec, bcryptCost int) *Service {
	return &Service{
		store:        store,
		accessCodec:  accessCodec,
		refreshCodec: refreshCodec,
		bcryptCost:   bcryptCost,
	}
}

// Register は新規ユーザーを登録し、トークンペアを発行する。
// メールアドレスが既に使われている場合は409を返す。
func (s *Service) Register(ctx context.Context, email, password string) (*TokenPair, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("パスワードのハッシュ化に失敗: %w", err)
	}

	user := User{
		ID:           uuid.New().String(),
		Email:        email,
		PasswordHash: string(hash),
	}
	if err := s.store.CreateUser(ctx, user); err != nil {
		if errors.Is(err, ErrUserExists) {
			return nil, response.NewError(http.StatusConflict, "USER_EXISTS",
				"このメールアドレスは既に登録されています")
		}
		return nil, err
	}

	return s.issueTokenPair(ctx, user.ID, user.Email)
}

// Login はクレデンシャルを検証し、新しいトークンペアを発行する。
func (s *Service) Login(ctx context.Context, email, password string) (*TokenPair, error) {
	user, err := s.store.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, errInvalidCredentials()
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, errInvalidCredentials()
	}

	return s.issueTokenPair(ctx, user.ID, user.Email)
}

// Refresh はリフレッシュトークンを消費して新しいトークンペアを発行する。
// 消費したトークンのレコードは削除されるため、同じトークンは二度使えない。
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	if _, err := s.refreshCodec.Verify(refreshToken); err != nil {
		return nil, errInvalidRefreshToken()
	}

	rec, err := s.store.GetRefreshToken(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, errInvalidRefreshToken()
		}
		return nil, err
	}

	if time.Now().After(rec.ExpiresAt) {
		// 期限切れレコードは掃除してから拒否する
		_ = s.store.ConsumeRefreshToken(ctx, refreshToken)
		return nil, errInvalidRefreshToken()
	}

	// 先に削除することで、同じトークンの並行使用はどちらか一方だけが成功する
	if err := s.store.ConsumeRefreshToken(ctx, refreshToken); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, errInvalidRefreshToken()
		}
		return nil, err
	}

	user, err := s.store.GetUserByID(ctx, rec.UserID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, errInvalidRefreshToken()
		}
		return nil, err
	}

	return s.issueTokenPair(ctx, user.ID, user.Email)
}

// Logout はリフレッシュトークンをサーバー側で失効させる。
// 存在しないトークンの削除もエラーにしない（冪等）。
func (s *Service) Logout(ctx context.Context, refreshToken string) error {
	if err := s.store.ConsumeRefreshToken(ctx, refreshToken); err != nil && !errors.Is(err, ErrNotFound) {
		return err
	}
	return nil
}

// Validate はアクセストークンを検証し、クレームを返す。
// トークンが有効でも参照先ユーザーが削除済みの場合は404を返す。
// 他のサービスが帯域外でトークンを再検証するために呼び出す。
func (s *Service) Validate(ctx context.Context, accessToken string) (*token.Claims, error) {
	claims, err := s.accessCodec.Verify(accessToken)
	if err != nil {
		return nil, response.NewError(http.StatusUnauthorized, "INVALID_TOKEN",
			"トークンが無効または期限切れです")
	}

	if _, err := s.store.GetUserByID(ctx, claims.UserID); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, response.NewError(http.StatusNotFound, "USER_NOT_FOUND",
				"ユーザーが見つかりません")
		}
		return nil, err
	}

	return claims, nil
}

// GetProfile はユーザーのプロファイル情報を返す。
func (s *Service) GetProfile(ctx context.Context, userID string) (*Profile, error) {
	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, response.NewError(http.StatusNotFound, "USER_NOT_FOUND",
				"ユーザーが見つかりません")
		}
		return nil, err
	}
	return &Profile{
		ID:        user.ID,
		Email:     user.Email,
		CreatedAt: user.CreatedAt,
		UpdatedAt: user.UpdatedAt,
	}, nil
}

// DeleteAccount はユーザーと全リフレッシュトークンを削除する。
// 発行済みのアクセストークンは失効できないが、Validateがユーザー不在を
// 検出して拒否する。
func (s *Service) DeleteAccount(ctx context.Context, userID string) error {
	if err := s.store.DeleteUser(ctx, userID); err != nil {
		if errors.Is(err, ErrNotFound) {
			return response.NewError(http.StatusNotFound, "USER_NOT_FOUND",
				"ユーザーが見つかりません")
		}
		return err
	}
	return nil
}

// issueTokenPair はアクセス・リフレッシュのトークンペアを発行し、
// リフレッシュトークンのレコードを永続化する。
func (s *Service) issueTokenPair(ctx context.Context, userID, email string) (*TokenPair, error) {
	accessToken, err := s.accessCodec.Issue(userID, email)
	if err != nil {
		return nil, err
	}
	refreshToken, err := s.refreshCodec.Issue(userID, email)
	if err != nil {
		return nil, err
	}

	rec := RefreshToken{
		ID:        uuid.New().String(),
		UserID:    userID,
		Token:     refreshToken,
		ExpiresAt: time.Now().Add(s.refreshCodec.TTL()),
	}
	if err := s.store.CreateRefreshToken(ctx, rec); err != nil {
		return nil, err
	}

	return &TokenPair{AccessToken: accessToken, RefreshToken: refreshToken}, nil
}
