package gateway

import "strings"

// publicRoute は認証不要の公開ルートのエントリ。
type publicRoute struct {
	// path はルートのパス。
	path string
	// prefix がtrueの場合、pathで始まる全パスが公開扱いになる。
	prefix bool
}

// publicRoutes は認証をスキップする公開ルートの静的な許可リスト。
// プロセス起動時に確定し、以後変更されない。
var publicRoutes = []publicRoute{
	{path: "/health"},
	{path: "/status"},
	{path: "/"},
	{path: "/api/auth/register"},
	{path: "/api/auth/login"},
	{path: "/api/auth/refresh"},
}

// isPublicRoute はパスが公開ルートに一致するかを判定する。
// 完全一致、またはエントリに"/"を付けたパスで始まる場合に一致とみなす。
// 一致しないパスはすべて認証必須となる。
func isPublicRoute(path string) bool {
	for _, route := range publicRoutes {
		if route.prefix {
			if strings.HasPrefix(path, route.path) {
				return true
			}
			continue
		}
		if path == route.path || strings.HasPrefix(path, route.path+"/") {
			return true
		}
	}
	return false
}
