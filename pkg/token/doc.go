// Package token はJWTトークンの発行と検証を行うコーデックを提供する。
//
// アクセストークンとリフレッシュトークンは独立した秘密鍵と有効期限を持つ
// 別々のCodecとして生成される。片方の鍵で署名されたトークンは
// もう片方のCodecでは検証に失敗する。
package token
