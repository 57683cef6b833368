// 認証サービスのエントリポイント。
// ユーザー登録・ログイン・トークン更新・ログアウト・トークン検証を担当する。
package main

import (
	"log"

	"github.com/Kvisus/micronotes-back/internal/auth"
	"github.com/Kvisus/micronotes-back/internal/config"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("設定の読み込みに失敗: %v", err)
	}

	server, err := auth.NewServer(cfg)
	if err != nil {
		log.Fatalf("Authサーバーの初期化に失敗: %v", err)
	}

	log.Printf("Authサービスを起動します: :%s", cfg.Port)
	if err := server.Run(); err != nil {
		log.Fatalf("Authサービスの起動に失敗: %v", err)
	}
}
