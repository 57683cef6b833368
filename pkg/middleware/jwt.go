package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/Kvisus/micronotes-back/pkg/response"
	"github.com/Kvisus/micronotes-back/pkg/token"
)

// HeaderUserID はサービス間でユーザーIDを伝播するためのHTTPヘッダーキー。
// gatewayが検証済みトークンから設定する。クライアントが直接指定した値は信用しない。
const HeaderUserID = "X-User-ID"

// HeaderUserEmail はサービス間でメールアドレスを伝播するためのHTTPヘッダーキー。
const HeaderUserEmail = "X-User-Email"

// contextKeyUserID はGinコンテキストに認証済みユーザーIDを格納するキー。
const contextKeyUserID = "user_id"

// contextKeyEmail はGinコンテキストに認証済みメールアドレスを格納するキー。
const contextKeyEmail = "email"

// JWTAuth はアクセストークンを検証するGinミドルウェアを返す。
// gatewayを経由しない直接アクセスに備えて、各内部サービスも
// このミドルウェアで自らトークンを再検証する（多層防御）。
//
// secretが未設定の場合はフェイルクローズし、全リクエストに500を返す。
// トークン欠如は401、検証失敗は403を返す。
func JWTAuth(secret string) gin.HandlerFunc {
	codec := token.NewCodec(secret, 0, "")
	return func(c *gin.Context) {
		if secret == "" {
			response.Fail(c, http.StatusInternalServerError, "サーバー設定エラーが発生しました")
			c.Abort()
			return
		}

		tokenString, ok := BearerToken(c)
		if !ok {
			response.Fail(c, http.StatusUnauthorized, "アクセストークンが必要です")
			c.Abort()
			return
		}

		claims, err := codec.Verify(tokenString)
		if err != nil {
			response.Fail(c, http.StatusForbidden, "トークンが無効または期限切れです")
			c.Abort()
			return
		}

		c.Set(contextKeyUserID, claims.UserID)
		c.Set(contextKeyEmail, claims.Email)
		c.Next()
	}
}

// BearerToken はAuthorizationヘッダーからBearerトークンを取り出す。
// ヘッダーが無い、またはBearer形式でない場合はfalseを返す。
func BearerToken(c *gin.Context) (string, bool) {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		return "", false
	}
	tokenString, found := strings.CutPrefix(authHeader, "Bearer ")
	if !found || tokenString == "" {
		return "", false
	}
	return tokenString, true
}

// GetUserID はGinコンテキストから認証済みユーザーIDを取得する。
// JWTAuthミドルウェアが事前に適用されている必要がある。
func GetUserID(c *gin.Context) string {
	userID, _ := c.Get(contextKeyUserID)
	if id, ok := userID.(string); ok {
		return id
	}
	return ""
}

// GetUserEmail はGinコンテキストから認証済みメールアドレスを取得する。
func GetUserEmail(c *gin.Context) string {
	email, _ := c.Get(contextKeyEmail)
	if e, ok := email.(string); ok {
		return e
	}
	return ""
}
