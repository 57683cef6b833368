package gateway

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Kvisus/micronotes-back/pkg/token"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// testJWTSecret はテスト用のJWT署名秘密鍵。
const testJWTSecret = "test-secret-key"

// newTestServer はテスト用のGatewayサーバーを生成する。
// 内部サービスURLには到達できないダミー値を設定する。
func newTestServer(t *testing.T) *Server {
	t.Helper()
	return newTestServerWithURLs(t, serviceURLConfig{
		Auth:  "http://localhost:19001",
		User:  "http://localhost:19002",
		Notes: "http://localhost:19003",
		Tags:  "http://localhost:19004",
	})
}

// newTestServerWithBackend はモックバックエンドサービスを持つテスト用Gatewayサーバーを生成する。
// backendHandlerで指定したハンドラが全内部サービスとして応答する。
func newTestServerWithBackend(t *testing.T, backendHandler http.HandlerFunc) *Server {
	t.Helper()

	backend := httptest.NewServer(backendHandler)
	t.Cleanup(backend.Close)

	return newTestServerWithURLs(t, serviceURLConfig{
		Auth:  backend.URL,
		User:  backend.URL,
		Notes: backend.URL,
		Tags:  backend.URL,
	})
}

// newTestServerWithURLs は内部サービスURLを指定してGatewayサーバーを生成する。
func newTestServerWithURLs(t *testing.T, urls serviceURLConfig) *Server {
	t.Helper()

	router := gin.New()
	s := &Server{
		router:      router,
		port:        "0",
		jwtSecret:   testJWTSecret,
		serviceURLs: urls,
		httpClient:  &http.Client{Timeout: proxyTimeout},
	}
	s.setupRoutes()

	return s
}

// generateTestJWT はテスト用のアクセストークンを生成する。
func generateTestJWT(t *testing.T, secret, userID, email string) string {
	t.Helper()

	signed, err := token.NewCodec(secret, 15*time.Minute, "test").Issue(userID, email)
	if err != nil {
		t.Fatalf("テスト用JWT生成に失敗: %v", err)
	}
	return signed
}

// echoBackend はリクエストの内容をJSONで返すバックエンドハンドラ。
func echoBackend() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		w.Header().Set("Content-Type", "application/json")
		resp := map[string]string{
			"path":       r.URL.Path,
			"query":      r.URL.RawQuery,
			"method":     r.Method,
			"user_id":    r.Header.Get("X-User-ID"),
			"user_email": r.Header.Get("X-User-Email"),
			"auth":       r.Header.Get("Authorization"),
			"body":       string(body),
		}
		_ = json.NewEncoder(w).Encode(resp)
	}
}

// decodeEcho はechoBackendのレスポンスをパースする。
func decodeEcho(t *testing.T, w *httptest.ResponseRecorder) map[string]string {
	t.Helper()

	var result map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &result); err != nil {
		t.Fatalf("レスポンスのパースに失敗: %v (body=%s)", err, w.Body.String())
	}
	return result
}

// TestGatewayAuthentication はgatewayの認証境界のテスト。
func TestGatewayAuthentication(t *testing.T) {
	t.Parallel()

	t.Run("保護ルートはトークンなしで401を返しバックエンドに到達しない", func(t *testing.T) {
		t.Parallel()

		backendCalled := false
		s := newTestServerWithBackend(t, func(w http.ResponseWriter, r *http.Request) {
			backendCalled = true
			w.WriteHeader(http.StatusOK)
		})

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/api/notes", nil)
		s.router.ServeHTTP(w, req)

		if w.Code != http.StatusUnauthorized {
			t.Errorf("ステータスコード: got %d, want %d", w.Code, http.StatusUnauthorized)
		}
		if backendCalled {
			t.Error("認証前にバックエンドへリクエストが到達した")
		}
	})

	t.Run("無効なトークンは403を返す", func(t *testing.T) {
		t.Parallel()

		s := newTestServer(t)

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/api/notes", nil)
		req.Header.Set("Authorization", "Bearer invalid-token")
		s.router.ServeHTTP(w, req)

		if w.Code != http.StatusForbidden {
			t.Errorf("ステータスコード: got %d, want %d", w.Code, http.StatusForbidden)
		}
	})

	t.Run("別の秘密鍵で署名されたトークンは403を返す", func(t *testing.T) {
		t.Parallel()

		s := newTestServer(t)
		wrongToken := generateTestJWT(t, "wrong-secret", "user-1", "test@example.com")

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/api/notes", nil)
		req.Header.Set("Authorization", "Bearer "+wrongToken)
		s.router.ServeHTTP(w, req)

		if w.Code != http.StatusForbidden {
			t.Errorf("ステータスコード: got %d, want %d", w.Code, http.StatusForbidden)
		}
	})

	t.Run("秘密鍵が未設定の場合はフェイルクローズして500を返す", func(t *testing.T) {
		t.Parallel()

		router := gin.New()
		s := &Server{
			router:     router,
			port:       "0",
			jwtSecret:  "",
			httpClient: &http.Client{Timeout: proxyTimeout},
		}
		s.setupRoutes()

		accessToken := generateTestJWT(t, testJWTSecret, "user-1", "test@example.com")

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/api/notes", nil)
		req.Header.Set("Authorization", "Bearer "+accessToken)
		s.router.ServeHTTP(w, req)

		if w.Code != http.StatusInternalServerError {
			t.Errorf("ステータスコード: got %d, want %d", w.Code, http.StatusInternalServerError)
		}
	})

	t.Run("公開ルートはトークンなしでバックエンドに転送される", func(t *testing.T) {
		t.Parallel()

		s := newTestServerWithBackend(t, echoBackend())

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/auth/login",
			strings.NewReader(`{"email":"a@example.com","password":"Passw0rd!"}`))
		req.Header.Set("Content-Type", "application/json")
		s.router.ServeHTTP(w, req)

		if w.Code != http.StatusOK {
			t.Fatalf("ステータスコード: got %d, want %d, body=%s", w.Code, http.StatusOK, w.Body.String())
		}
		result := decodeEcho(t, w)
		if result["path"] != "/auth/login" {
			t.Errorf("転送先パス: got %q, want %q", result["path"], "/auth/login")
		}
		if !strings.Contains(result["body"], "a@example.com") {
			t.Error("リクエストボディが転送されていない")
		}
	})

	t.Run("公開ルートでない認証系パスは認証必須", func(t *testing.T) {
		t.Parallel()

		s := newTestServerWithBackend(t, echoBackend())

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/api/auth/profile", nil)
		s.router.ServeHTTP(w, req)

		if w.Code != http.StatusUnauthorized {
			t.Errorf("ステータスコード: got %d, want %d", w.Code, http.StatusUnauthorized)
		}
	})
}

// TestGatewayProxy はプロキシ転送のテスト。
func TestGatewayProxy(t *testing.T) {
	t.Parallel()

	t.Run("外部プレフィックスを内部パスに書き換えて転送する", func(t *testing.T) {
		t.Parallel()

		s := newTestServerWithBackend(t, echoBackend())
		accessToken := generateTestJWT(t, testJWTSecret, "user-1", "test@example.com")

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/api/notes/abc-123", nil)
		req.Header.Set("Authorization", "Bearer "+accessToken)
		s.router.ServeHTTP(w, req)

		if w.Code != http.StatusOK {
			t.Fatalf("ステータスコード: got %d, want %d, body=%s", w.Code, http.StatusOK, w.Body.String())
		}
		result := decodeEcho(t, w)
		if result["path"] != "/notes/abc-123" {
			t.Errorf("転送先パス: got %q, want %q", result["path"], "/notes/abc-123")
		}
	})

	t.Run("プレフィックスだけのパスも転送できる", func(t *testing.T) {
		t.Parallel()

		s := newTestServerWithBackend(t, echoBackend())
		accessToken := generateTestJWT(t, testJWTSecret, "user-1", "test@example.com")

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/api/tags", nil)
		req.Header.Set("Authorization", "Bearer "+accessToken)
		s.router.ServeHTTP(w, req)

		if w.Code != http.StatusOK {
			t.Fatalf("ステータスコード: got %d, want %d", w.Code, http.StatusOK)
		}
		result := decodeEcho(t, w)
		if result["path"] != "/tags" {
			t.Errorf("転送先パス: got %q, want %q", result["path"], "/tags")
		}
	})

	t.Run("検証済みの識別情報をヘッダーとして付与する", func(t *testing.T) {
		t.Parallel()

		s := newTestServerWithBackend(t, echoBackend())
		accessToken := generateTestJWT(t, testJWTSecret, "user-42", "id@example.com")

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/api/user/profile", nil)
		req.Header.Set("Authorization", "Bearer "+accessToken)
		s.router.ServeHTTP(w, req)

		if w.Code != http.StatusOK {
			t.Fatalf("ステータスコード: got %d, want %d", w.Code, http.StatusOK)
		}
		result := decodeEcho(t, w)
		if result["user_id"] != "user-42" {
			t.Errorf("X-User-ID: got %q, want %q", result["user_id"], "user-42")
		}
		if result["user_email"] != "id@example.com" {
			t.Errorf("X-User-Email: got %q, want %q", result["user_email"], "id@example.com")
		}
		// 内部サービスが再検証できるようAuthorizationヘッダーも転送される
		if result["auth"] != "Bearer "+accessToken {
			t.Error("Authorizationヘッダーが転送されていない")
		}
	})

	t.Run("クライアントが偽装した識別ヘッダーは転送されない", func(t *testing.T) {
		t.Parallel()

		s := newTestServerWithBackend(t, echoBackend())
		accessToken := generateTestJWT(t, testJWTSecret, "real-user", "real@example.com")

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/api/notes", nil)
		req.Header.Set("Authorization", "Bearer "+accessToken)
		req.Header.Set("X-User-ID", "spoofed-user")
		req.Header.Set("X-User-Email", "spoofed@example.com")
		s.router.ServeHTTP(w, req)

		if w.Code != http.StatusOK {
			t.Fatalf("ステータスコード: got %d, want %d", w.Code, http.StatusOK)
		}
		result := decodeEcho(t, w)
		// トークン由来の値で上書きされ、クライアント指定の値は届かない
		if result["user_id"] != "real-user" {
			t.Errorf("X-User-ID: got %q, want %q", result["user_id"], "real-user")
		}
		if result["user_email"] != "real@example.com" {
			t.Errorf("X-User-Email: got %q, want %q", result["user_email"], "real@example.com")
		}
	})

	t.Run("クエリパラメータが転送される", func(t *testing.T) {
		t.Parallel()

		s := newTestServerWithBackend(t, echoBackend())
		accessToken := generateTestJWT(t, testJWTSecret, "user-1", "test@example.com")

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/api/notes?page=2&limit=10&search=memo", nil)
		req.Header.Set("Authorization", "Bearer "+accessToken)
		s.router.ServeHTTP(w, req)

		if w.Code != http.StatusOK {
			t.Fatalf("ステータスコード: got %d, want %d", w.Code, http.StatusOK)
		}
		result := decodeEcho(t, w)
		for _, param := range []string{"page=2", "limit=10", "search=memo"} {
			if !strings.Contains(result["query"], param) {
				t.Errorf("クエリパラメータ %s が転送されていない: got %q", param, result["query"])
			}
		}
	})

	t.Run("POSTリクエストのボディとメソッドが転送される", func(t *testing.T) {
		t.Parallel()

		s := newTestServerWithBackend(t, echoBackend())
		accessToken := generateTestJWT(t, testJWTSecret, "user-1", "test@example.com")

		requestBody := `{"title":"新しいノート","content":"本文"}`
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/notes", strings.NewReader(requestBody))
		req.Header.Set("Authorization", "Bearer "+accessToken)
		req.Header.Set("Content-Type", "application/json")
		s.router.ServeHTTP(w, req)

		if w.Code != http.StatusOK {
			t.Fatalf("ステータスコード: got %d, want %d", w.Code, http.StatusOK)
		}
		result := decodeEcho(t, w)
		if result["method"] != http.MethodPost {
			t.Errorf("メソッド: got %q, want %q", result["method"], http.MethodPost)
		}
		if result["body"] != requestBody {
			t.Errorf("ボディ: got %q, want %q", result["body"], requestBody)
		}
	})

	t.Run("バックエンドのエラーステータスをそのまま返す", func(t *testing.T) {
		t.Parallel()

		s := newTestServerWithBackend(t, func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusConflict)
			_, _ = w.Write([]byte(`{"success":false,"error":"既に存在します"}`))
		})

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/auth/register",
			strings.NewReader(`{"email":"dup@example.com","password":"Passw0rd!"}`))
		req.Header.Set("Content-Type", "application/json")
		s.router.ServeHTTP(w, req)

		if w.Code != http.StatusConflict {
			t.Errorf("ステータスコード: got %d, want %d", w.Code, http.StatusConflict)
		}
		if !strings.Contains(w.Body.String(), "既に存在します") {
			t.Error("エラーボディが透過されていない")
		}
	})

	t.Run("バックエンドに接続できない場合は503を返す", func(t *testing.T) {
		t.Parallel()

		// ダミーURLのバックエンドには到達できない
		s := newTestServer(t)
		accessToken := generateTestJWT(t, testJWTSecret, "user-1", "test@example.com")

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/api/notes", nil)
		req.Header.Set("Authorization", "Bearer "+accessToken)
		s.router.ServeHTTP(w, req)

		if w.Code != http.StatusServiceUnavailable {
			t.Errorf("ステータスコード: got %d, want %d", w.Code, http.StatusServiceUnavailable)
		}
	})
}

// TestGatewayLocalEndpoints はgateway自身が応答するエンドポイントのテスト。
func TestGatewayLocalEndpoints(t *testing.T) {
	t.Parallel()

	s := newTestServer(t)

	tests := []struct {
		name string
		path string
	}{
		{name: "ヘルスチェック", path: "/health"},
		{name: "ステータス", path: "/status"},
		{name: "ルート", path: "/"},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%sは認証なしで200を返す", tt.name), func(t *testing.T) {
			t.Parallel()

			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			s.router.ServeHTTP(w, req)

			if w.Code != http.StatusOK {
				t.Errorf("ステータスコード: got %d, want %d", w.Code, http.StatusOK)
			}
		})
	}
}
