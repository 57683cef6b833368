package response

import "fmt"

// Error はHTTPステータスとエラーコードを持つドメインエラー。
// サービス層で生成され、ハンドラでエンベロープに変換される。
type Error struct {
	// Status はHTTPステータスコード。
	Status int
	// Code は機械可読なエラーコード（例: INVALID_CREDENTIALS）。
	Code string
	// Message はクライアントに返すエラーメッセージ。
	Message string
}

// Error はerrorインターフェースを実装する。
func (e *Error) Error() string {
	return fmt.Sprintf("%s (status=%d, code=%s)", e.Message, e.Status, e.Code)
}

// NewError は新しいドメインエラーを生成する。
func NewError(status int, code, message string) *Error {
	return &Error{Status: status, Code: code, Message: message}
}
