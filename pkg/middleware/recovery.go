package middleware

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Kvisus/micronotes-back/pkg/response"
)

// Recovery はパニックからの回復を行うGinミドルウェアを返す。
// パニック発生時に内容をログに出力し、スタックトレースを
// クライアントに漏らさず500エラーのエンベロープを返す。
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				log.Printf("[PANIC] %s %s: %v", c.Request.Method, c.Request.URL.Path, r)
				response.Fail(c, http.StatusInternalServerError, "内部サーバーエラーが発生しました")
				c.Abort()
			}
		}()
		c.Next()
	}
}
