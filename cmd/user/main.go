// ユーザープロファイルサービスのエントリポイント。
// 表示用プロファイルのCRUDを担当する。
package main

import (
	"log"

	"github.com/Kvisus/micronotes-back/internal/config"
	"github.com/Kvisus/micronotes-back/internal/user"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("設定の読み込みに失敗: %v", err)
	}

	server, err := user.NewServer(cfg)
	if err != nil {
		log.Fatalf("Userサーバーの初期化に失敗: %v", err)
	}

	log.Printf("Userサービスを起動します: :%s", cfg.Port)
	if err := server.Run(); err != nil {
		log.Fatalf("Userサービスの起動に失敗: %v", err)
	}
}
