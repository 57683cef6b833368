// Package httpclient はサービス間のHTTP通信を行うクライアントを提供する。
//
// notesサービスからtagsサービスへのタグ検証、userサービスからauthサービスへの
// トークン検証など、同期的なサービス間呼び出しのパターンを統一する。
// 呼び出しは元のリクエストのBearerトークンを転送し、元のユーザーとして
// 再認証される（サービス専用のクレデンシャルは存在しない）。
//
// 全リクエストにタイムアウトを設定し、応答しない依存サービスが
// リクエストスロットを占有し続けることを防ぐ。
package httpclient
