// ノートサービスのエントリポイント。
// ノートのCRUDとtagsサービスへの同期的なタグ検証を担当する。
package main

import (
	"log"

	"github.com/Kvisus/micronotes-back/internal/config"
	"github.com/Kvisus/micronotes-back/internal/notes"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("設定の読み込みに失敗: %v", err)
	}

	server, err := notes.NewServer(cfg)
	if err != nil {
		log.Fatalf("Notesサーバーの初期化に失敗: %v", err)
	}

	log.Printf("Notesサービスを起動します: :%s", cfg.Port)
	if err := server.Run(); err != nil {
		log.Fatalf("Notesサービスの起動に失敗: %v", err)
	}
}
