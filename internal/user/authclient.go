package user

import (
	"context"
	"time"

	"github.com/Kvisus/micronotes-back/pkg/httpclient"
)

// AuthValidator はauthサービスへのトークン帯域外検証を抽象化する。
// テストではフェイク実装に差し替えられる。
type AuthValidator interface {
	// ValidateToken はアクセストークンをauthサービスで再検証する。
	// トークンが有効でもアカウントが削除済みの場合は失敗する。
	ValidateToken(ctx context.Context, bearerToken string) error
}

// authServiceClient はHTTP経由でauthサービスを呼び出すAuthValidatorの実装。
type authServiceClient struct {
	client *httpclient.Client
}

// NewAuthServiceClient はauthサービスへの検証クライアントを生成する。
func NewAuthServiceClient(baseURL string) AuthValidator {
	return &authServiceClient{
		client: httpclient.New(baseURL, 5*time.Second),
	}
}

// ValidateToken はauthサービスのGET /auth/validateを同期的に呼び出す。
// 接続失敗・タイムアウトは503、authサービスからのエラーは
// そのステータスのドメインエラーとして呼び出し元に返る。
func (a *authServiceClient) ValidateToken(ctx context.Context, bearerToken string) error {
	return a.client.GetJSON(ctx, "/auth/validate", bearerToken, nil)
}
