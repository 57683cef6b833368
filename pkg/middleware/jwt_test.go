package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
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

// newProtectedRouter はJWTAuthで保護されたテスト用ルーターを生成する。
func newProtectedRouter(secret string) *gin.Engine {
	router := gin.New()
	router.Use(JWTAuth(secret))
	router.GET("/protected", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"user_id": GetUserID(c),
			"email":   GetUserEmail(c),
		})
	})
	return router
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

// TestJWTAuth はJWT認証ミドルウェアのテスト。
func TestJWTAuth(t *testing.T) {
	t.Parallel()

	t.Run("有効なトークンでコンテキストに識別情報が設定される", func(t *testing.T) {
		t.Parallel()

		router := newProtectedRouter(testJWTSecret)
		accessToken := generateTestJWT(t, testJWTSecret, "user-1", "test@example.com")

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/protected", nil)
		req.Header.Set("Authorization", "Bearer "+accessToken)
		router.ServeHTTP(w, req)

		if w.Code != http.StatusOK {
			t.Fatalf("ステータスコード: got %d, want %d", w.Code, http.StatusOK)
		}

		var result map[string]string
		if err := json.Unmarshal(w.Body.Bytes(), &result); err != nil {
			t.Fatalf("レスポンスのパースに失敗: %v", err)
		}
		if result["user_id"] != "user-1" {
			t.Errorf("user_id: got %q, want %q", result["user_id"], "user-1")
		}
		if result["email"] != "test@example.com" {
			t.Errorf("email: got %q, want %q", result["email"], "test@example.com")
		}
	})

	t.Run("認証ヘッダーが無い場合は401を返す", func(t *testing.T) {
		t.Parallel()

		router := newProtectedRouter(testJWTSecret)

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/protected", nil)
		router.ServeHTTP(w, req)

		if w.Code != http.StatusUnauthorized {
			t.Errorf("ステータスコード: got %d, want %d", w.Code, http.StatusUnauthorized)
		}
	})

	t.Run("Bearer接頭辞なしのヘッダーは401を返す", func(t *testing.T) {
		t.Parallel()

		router := newProtectedRouter(testJWTSecret)
		accessToken := generateTestJWT(t, testJWTSecret, "user-1", "test@example.com")

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/protected", nil)
		req.Header.Set("Authorization", accessToken)
		router.ServeHTTP(w, req)

		if w.Code != http.StatusUnauthorized {
			t.Errorf("ステータスコード: got %d, want %d", w.Code, http.StatusUnauthorized)
		}
	})

	t.Run("別の秘密鍵で署名されたトークンは403を返す", func(t *testing.T) {
		t.Parallel()

		router := newProtectedRouter(testJWTSecret)
		wrongToken := generateTestJWT(t, "wrong-secret", "user-1", "test@example.com")

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/protected", nil)
		req.Header.Set("Authorization", "Bearer "+wrongToken)
		router.ServeHTTP(w, req)

		if w.Code != http.StatusForbidden {
			t.Errorf("ステータスコード: got %d, want %d", w.Code, http.StatusForbidden)
		}
	})

	t.Run("秘密鍵が未設定の場合は有効なトークンでも500を返す", func(t *testing.T) {
		t.Parallel()

		router := newProtectedRouter("")
		accessToken := generateTestJWT(t, testJWTSecret, "user-1", "test@example.com")

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/protected", nil)
		req.Header.Set("Authorization", "Bearer "+accessToken)
		router.ServeHTTP(w, req)

		if w.Code != http.StatusInternalServerError {
			t.Errorf("ステータスコード: got %d, want %d", w.Code, http.StatusInternalServerError)
		}
	})
}

// TestBearerToken はAuthorizationヘッダーの解析のテスト。
func TestBearerToken(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		header    string
		wantToken string
		wantOK    bool
	}{
		{name: "Bearer形式のヘッダーからトークンを取り出す", header: "Bearer abc123", wantToken: "abc123", wantOK: true},
		{name: "ヘッダーが無い場合は失敗", header: "", wantToken: "", wantOK: false},
		{name: "Bearer接頭辞が無い場合は失敗", header: "abc123", wantToken: "", wantOK: false},
		{name: "トークン部分が空の場合は失敗", header: "Bearer ", wantToken: "", wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			c, _ := gin.CreateTestContext(httptest.NewRecorder())
			c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				c.Request.Header.Set("Authorization", tt.header)
			}

			got, ok := BearerToken(c)
			if ok != tt.wantOK {
				t.Errorf("ok: got %v, want %v", ok, tt.wantOK)
			}
			if got != tt.wantToken {
				t.Errorf("token: got %q, want %q", got, tt.wantToken)
			}
		})
	}
}
