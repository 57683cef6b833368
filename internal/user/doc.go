// Package user はユーザープロファイルサービスの内部実装を提供する。
//
// 認証クレデンシャル（authサービスが所有）とは別の、表示用プロファイル
// 情報のCRUDを担当する。プロファイルの書き込み前にはauthサービスへ
// トークンの帯域外検証を依頼し、削除済みアカウントのプロファイルが
// 作成されないようにする。
package user
