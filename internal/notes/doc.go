// Package notes はノートサービスの内部実装を提供する。
//
// ユーザーごとのノートのCRUDを担当する。ノートにタグを付与する際は、
// 書き込みを確定する前にtagsサービスへ同期的に検証を依頼し、1つでも
// 無効なタグIDがあれば操作全体を拒否する（部分的な書き込みは残さない）。
// 検証呼び出しは元のリクエストのBearerトークンを転送し、元のユーザー
// として再認証される。
package notes
