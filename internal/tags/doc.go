// Package tags はタグサービスの内部実装を提供する。
//
// ユーザーごとのタグのCRUDと、notesサービスが同期的に呼び出す
// タグID検証エンドポイント（POST /tags/validate）を担当する。
// 検証は呼び出し元ユーザーの所有するタグに限定される。
package tags
