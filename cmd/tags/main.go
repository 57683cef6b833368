// タグサービスのエントリポイント。
// タグのCRUDとnotesサービス向けのタグID検証を担当する。
package main

import (
	"log"

	"github.com/Kvisus/micronotes-back/internal/config"
	"github.com/Kvisus/micronotes-back/internal/tags"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("設定の読み込みに失敗: %v", err)
	}

	server, err := tags.NewServer(cfg)
	if err != nil {
		log.Fatalf("Tagsサーバーの初期化に失敗: %v", err)
	}

	log.Printf("Tagsサービスを起動します: :%s", cfg.Port)
	if err := server.Run(); err != nil {
		log.Fatalf("Tagsサービスの起動に失敗: %v", err)
	}
}
