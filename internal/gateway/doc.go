// Package gateway はAPI Gatewayサービスの内部実装を提供する。
//
// 外部からアクセス可能な唯一の入口であり、認証とパスベースの
// リバースプロキシを担当する。公開ルート以外の全リクエストに対して
// アクセストークンをローカルで検証し（authサービスと秘密鍵を共有する
// 意図的な設計判断。レイテンシのために /auth/validate 呼び出しを
// インライン化している）、検証済みの識別情報をX-User-ID/X-User-Email
// ヘッダーとして内部サービスに転送する。
//
// 信頼境界: この識別ヘッダーはgatewayが唯一の入口である
// ネットワーク構成でのみ信頼できる。内部サービスが直接到達可能な
// 構成にデプロイする場合、各サービスはヘッダーを信用せず
// Bearerトークンを自ら再検証しなければならない（現に全サービスが
// 再検証している。多層防御であり冗長ではない）。
package gateway
