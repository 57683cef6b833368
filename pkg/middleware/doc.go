// Package middleware は全サービス共通のGinミドルウェアを提供する。
//
// JWT検証、CORS、パニック回復を担当する。JWT検証はgatewayだけでなく
// 各内部サービスでも行う。プロキシが付与するX-User-ID/X-User-Email
// ヘッダーはgatewayが唯一の入口である場合にのみ信頼できるため、
// 各サービスはBearerトークンを自ら再検証する。
package middleware
