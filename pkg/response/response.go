package response

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
)

// Envelope は全サービス共通のJSONレスポンス形式。
type Envelope struct {
	// Success は処理が成功したかどうか。
	Success bool `json:"success"`
	// Data は成功時のレスポンスデータ。
	Data any `json:"data,omitempty"`
	// Message は人間向けの補足メッセージ。
	Message string `json:"message,omitempty"`
	// Error は失敗時のエラーメッセージ。
	Error string `json:"error,omitempty"`
	// Errors はフィールド単位のバリデーションエラー。
	Errors map[string][]string `json:"errors,omitempty"`
}

// OK は成功レスポンスを返す。
func OK(c *gin.Context, status int, data any) {
	c.JSON(status, Envelope{Success: true, Data: data})
}

// OKWithMessage はメッセージ付きの成功レスポンスを返す。
func OKWithMessage(c *gin.Context, status int, message string, data any) {
	c.JSON(status, Envelope{Success: true, Message: message, Data: data})
}

// Fail はエラーレスポンスを返す。
func Fail(c *gin.Context, status int, message string) {
	c.JSON(status, Envelope{Success: false, Error: message})
}

// FailValidation はフィールド単位の詳細を含むバリデーションエラーを返す。
func FailValidation(c *gin.Context, fieldErrors map[string][]string) {
	c.JSON(http.StatusBadRequest, Envelope{
		Success: false,
		Message: "入力値が不正です",
		Errors:  fieldErrors,
	})
}

// FailFromError はエラーをドメインエラーとして解釈してレスポンスを返す。
// ドメインエラーでない場合は詳細を隠して500を返す（内部情報を漏らさない）。
func FailFromError(c *gin.Context, err error) {
	var domainErr *Error
	if errors.As(err, &domainErr) {
		Fail(c, domainErr.Status, domainErr.Message)
		return
	}
	log.Printf("予期しないエラー: %s %s: %v", c.Request.Method, c.Request.URL.Path, err)
	Fail(c, http.StatusInternalServerError, "内部サーバーエラーが発生しました")
}
