// Package sqlitedb はSQLiteデータベース接続の共通設定を提供する。
package sqlitedb

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite" // SQLiteドライバ
)

// Open はSQLiteデータベースを開き、接続設定とPRAGMAを適用する。
// pathに":memory:"を指定するとインメモリデータベースになる(テスト用)。
func Open(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("データベースのオープンに失敗: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("データベースへの接続確認に失敗: %w", err)
	}

	// SQLiteは書き込みが単一ライターのため、接続は1本に制限する。
	// インメモリDBでは接続ごとに別のデータベースになるため、この制限は必須。
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	pragmas := []string{
		"PRAGMA journal_mode = WAL;",
		"PRAGMA synchronous = NORMAL;",
		"PRAGMA foreign_keys = ON;",
		"PRAGMA busy_timeout = 5000;",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("PRAGMAの設定に失敗: %w", err)
		}
	}

	return db, nil
}
