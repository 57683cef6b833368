package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/Kvisus/micronotes-back/pkg/response"
)

// DefaultTimeout はサービス間呼び出しの標準タイムアウト。
// 検証系の同期呼び出しは短く抑え、依存サービスの遅延が
// 呼び出し元のリクエストを長時間塞がないようにする。
const DefaultTimeout = 5 * time.Second

// Client はサービス間通信用のHTTPクライアント。
type Client struct {
	// httpClient は内部で使用するHTTPクライアント。
	httpClient *http.Client
	// baseURL は接続先サービスのベースURL。
	baseURL string
}

// New は新しいサービス間通信用HTTPクライアントを生成する。
// baseURLには接続先サービスのベースURL（例: "http://tags:3004"）を指定する。
func New(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL: baseURL,
	}
}

// PostJSON は指定パスにJSONボディでPOSTリクエストを送信する。
// bearerTokenには元のリクエストのアクセストークンを渡し、
// 依存サービス側で元のユーザーとして再認証させる。
func (c *Client) PostJSON(ctx context.Context, path, bearerToken string, body any, result any) error {
	return c.doJSON(ctx, http.MethodPost, path, bearerToken, body, result)
}

// GetJSON は指定パスにGETリクエストを送信する。
func (c *Client) GetJSON(ctx context.Context, path, bearerToken string, result any) error {
	return c.doJSON(ctx, http.MethodGet, path, bearerToken, nil, result)
}

// doJSON はJSON形式のHTTPリクエストを実行する共通処理。
// 接続失敗・タイムアウトは503のドメインエラー、依存サービスからの
// エラーレスポンスはそのステータスとメッセージをドメインエラーとして返す。
func (c *Client) doJSON(ctx context.Context, method, path, bearerToken string, body any, result any) error {
	var bodyReader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("リクエストボディのシリアライズに失敗: %w", err)
		}
		bodyReader = bytes.NewReader(jsonBody)
	}

	url := c.baseURL + path
	req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
	if err != nil {
		return fmt.Errorf("HTTPリクエストの作成に失敗: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if bearerToken != "" {
		req.Header.Set("Authorization", "Bearer "+bearerToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return response.NewError(http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE",
			"依存サービスに接続できません")
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("レスポンスボディの読み取りに失敗: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return dependencyError(resp.StatusCode, respBody)
	}

	if result != nil {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("レスポンスボディのデシリアライズに失敗: %w", err)
		}
	}
	return nil
}

// dependencyError は依存サービスのエラーレスポンスをドメインエラーに変換する。
// 依存サービスが報告したステータスとメッセージを透過し、一律500に潰さない。
func dependencyError(status int, body []byte) *response.Error {
	var env response.Envelope
	if err := json.Unmarshal(body, &env); err == nil && env.Error != "" {
		return response.NewError(status, "DEPENDENCY_ERROR", env.Error)
	}
	return response.NewError(status, "DEPENDENCY_ERROR",
		fmt.Sprintf("依存サービスがエラーを返しました (status=%d)", status))
}
