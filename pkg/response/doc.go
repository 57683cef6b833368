// Package response は全サービス共通のJSONレスポンス形式とドメインエラーを提供する。
//
// すべてのサービスは {success, data?, message?, error?, errors?} の
// エンベロープ形式でレスポンスを返す。永続化層の内部エラーは
// クライアントに到達する前にドメインエラーへ変換される。
package response
