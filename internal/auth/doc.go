// Package auth は認証サービスの内部実装を提供する。
//
// ユーザー登録・ログイン・トークン更新・ログアウト・トークン検証を担当する。
// アクセストークンは短命で暗号学的にのみ検証される。リフレッシュトークンは
// 長命でDBに永続化され、サーバー側で失効（ログアウト）できる。
// リフレッシュトークンは一度使うと削除され、新しいペアが発行される
// （ローテーション）。同じトークンの再利用は失敗する。
package auth
