package notes

import (
	"context"
	"time"

	"github.com/Kvisus/micronotes-back/pkg/httpclient"
)

// TagValidator はtagsサービスへのタグID検証呼び出しを抽象化する。
// テストではフェイク実装に差し替えられる。
type TagValidator interface {
	// ValidateTags はタグIDのリストを検証し、無効なIDのリストを返す。
	// bearerTokenには元のリクエストのアクセストークンを渡す。
	ValidateTags(ctx context.Context, tagIDs []string, bearerToken string) ([]string, error)
}

// tagServiceClient はHTTP経由でtagsサービスを呼び出すTagValidatorの実装。
type tagServiceClient struct {
	client *httpclient.Client
}

// NewTagServiceClient はtagsサービスへの検証クライアントを生成する。
func NewTagServiceClient(baseURL string) TagValidator {
	return &tagServiceClient{
		client: httpclient.New(baseURL, 5*time.Second),
	}
}

// validateTagsResult はtagsサービスの検証レスポンスのdata部。
type validateTagsResult struct {
	// InvalidTags は無効と判定されたタグID。
	InvalidTags []string `json:"invalidTags"`
}

// validateTagsEnvelope はtagsサービスのレスポンスエンベロープ。
type validateTagsEnvelope struct {
	// Success は処理が成功したかどうか。
	Success bool `json:"success"`
	// Data は検証結果。
	Data validateTagsResult `json:"data"`
}

// ValidateTags はtagsサービスのPOST /tags/validateを同期的に呼び出す。
// 接続失敗・タイムアウトは503、tagsサービスからのエラーは
// そのステータスのドメインエラーとして呼び出し元に返る。
func (t *tagServiceClient) ValidateTags(ctx context.Context, tagIDs []string, bearerToken string) ([]string, error) {
	var result validateTagsEnvelope
	err := t.client.PostJSON(ctx, "/tags/validate", bearerToken,
		map[string][]string{"tagIds": tagIDs}, &result)
	if err != nil {
		return nil, err
	}
	return result.Data.InvalidTags, nil
}
